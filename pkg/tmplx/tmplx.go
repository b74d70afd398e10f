// Package tmplx renders operator-authored text templates, such as email
// subjects and bodies, with a small set of text helpers.
package tmplx

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"text/template"
	"unicode/utf8"

	"github.com/goccy/go-json"
	"github.com/spf13/cast"
)

var (
	ErrParse    = errors.New("tmplx: parse error")
	ErrRender   = errors.New("tmplx: render error")
	ErrTooLarge = errors.New("tmplx: output too large")
)

type Template struct {
	tmpl    *template.Template
	maxSize int
}

type options struct {
	funcs     template.FuncMap
	sample    any
	hasSample bool
	maxSize   int
}

type Option func(*options)

// WithFunc registers an extra helper, overriding a built-in one of the
// same name.
func WithFunc(name string, fn any) Option {
	return func(o *options) {
		o.funcs[name] = fn
	}
}

// WithSample makes Parse fail unless the template renders against data.
func WithSample(data any) Option {
	return func(o *options) {
		o.sample = data
		o.hasSample = true
	}
}

// WithMaxSize caps the rendered output in bytes.
func WithMaxSize(n int) Option {
	return func(o *options) {
		o.maxSize = n
	}
}

func helpers() template.FuncMap {
	return template.FuncMap{
		"firstName": firstName,
		"initials":  initials,
		"default":   defaultValue,
		"truncate":  truncate,
		"json":      toJSON,
		"upper":     strings.ToUpper,
		"lower":     strings.ToLower,
		"trim":      strings.TrimSpace,
	}
}

func Parse(name, text string, opts ...Option) (*Template, error) {
	o := &options{funcs: helpers()}
	for _, opt := range opts {
		opt(o)
	}

	tmpl, err := template.New(name).
		Option("missingkey=zero").
		Funcs(o.funcs).
		Parse(text)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrParse, err)
	}

	t := &Template{tmpl: tmpl, maxSize: o.maxSize}
	if o.hasSample {
		if _, err := t.Render(o.sample); err != nil {
			return nil, fmt.Errorf("%w: sample: %w", ErrParse, err)
		}
	}
	return t, nil
}

func MustParse(name, text string, opts ...Option) *Template {
	t, err := Parse(name, text, opts...)
	if err != nil {
		panic(err)
	}
	return t
}

func (t *Template) Render(data any) (string, error) {
	var buf bytes.Buffer
	if err := t.tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("%w: %w", ErrRender, err)
	}
	if t.maxSize > 0 && buf.Len() > t.maxSize {
		return "", fmt.Errorf("%w: %d bytes, limit %d", ErrTooLarge, buf.Len(), t.maxSize)
	}
	return buf.String(), nil
}

func firstName(name any) string {
	fields := strings.Fields(cast.ToString(name))
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

// initials of the first and last word, "Maria da Silva" gives "MS".
func initials(name any) string {
	fields := strings.Fields(cast.ToString(name))
	if len(fields) == 0 {
		return ""
	}
	first, _ := utf8.DecodeRuneInString(fields[0])
	out := string(first)
	if len(fields) > 1 {
		last, _ := utf8.DecodeRuneInString(fields[len(fields)-1])
		out += string(last)
	}
	return strings.ToUpper(out)
}

func defaultValue(def, value any) any {
	if s, err := cast.ToStringE(value); err == nil && strings.TrimSpace(s) == "" {
		return def
	}
	if value == nil {
		return def
	}
	return value
}

// truncate shortens s to n runes, ending with an ellipsis when cut.
func truncate(n any, s any) string {
	limit := cast.ToInt(n)
	str := cast.ToString(s)
	if limit <= 0 || utf8.RuneCountInString(str) <= limit {
		return str
	}
	runes := []rune(str)
	return string(runes[:limit]) + "…"
}

func toJSON(value any) (string, error) {
	data, err := json.Marshal(value)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
