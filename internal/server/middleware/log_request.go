package middleware

import (
	"bufio"
	"bytes"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/labstack/echo/v4"
)

type LogRequestConfig struct {
	Logger  Logger
	Skipper Skipper
	// Bodies reports whether JSON request and response bodies are logged.
	Bodies func(c echo.Context) bool
	// Redact lists JSON keys, at any depth, whose values are masked.
	Redact []string
	// MaxBodySize truncates logged bodies. Zero means 4KiB.
	MaxBodySize int
	// Fields adds extra key/value pairs once the handler has run.
	Fields func(c echo.Context) []any
}

const redacted = "[REDACTED]"

// LogRequest writes one line per request, at error level for 5xx and
// warn level for 4xx.
func LogRequest(conf LogRequestConfig) echo.MiddlewareFunc {
	if conf.Logger == nil {
		panic("LogRequest requires a Logger")
	}
	if conf.Skipper == nil {
		conf.Skipper = DefaultSkipper
	}
	if conf.Bodies == nil {
		conf.Bodies = func(echo.Context) bool { return true }
	}
	if conf.MaxBodySize <= 0 {
		conf.MaxBodySize = 4 << 10
	}
	redact := make(map[string]struct{}, len(conf.Redact))
	for _, k := range conf.Redact {
		redact[strings.ToLower(k)] = struct{}{}
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if conf.Skipper(c) {
				return next(c)
			}
			start := time.Now()
			req := c.Request()
			res := c.Response()

			bodies := conf.Bodies(c)
			var reqBody []byte
			var resBuf *bytes.Buffer
			if bodies {
				if isJSON(req.Header.Get(echo.HeaderContentType)) && req.Body != nil {
					reqBody, _ = io.ReadAll(req.Body)
					req.Body = io.NopCloser(bytes.NewReader(reqBody))
				}
				resBuf = new(bytes.Buffer)
				res.Writer = &bodyDumpWriter{Writer: io.MultiWriter(res.Writer, resBuf), ResponseWriter: res.Writer}
			}

			err := next(c)
			if err != nil {
				c.Error(err)
			}

			args := []any{
				"status", res.Status,
				"method", req.Method,
				"route", c.Path(),
				"uri", req.RequestURI,
				"latency_ms", time.Since(start).Milliseconds(),
				"real_ip", c.RealIP(),
				"user_agent", req.UserAgent(),
				"request_id", GetRequestID(c),
			}
			if id := GetOperatorID(c); id != "" {
				args = append(args, "operator_id", id)
			}
			if id := GetSessionID(c); id != "" {
				args = append(args, "session_id", id)
			}
			if names := c.ParamNames(); len(names) > 0 {
				params := make(map[string]string, len(names))
				for _, name := range names {
					params[name] = c.Param(name)
				}
				args = append(args, "params", params)
			}
			if conf.Fields != nil {
				args = append(args, conf.Fields(c)...)
			}
			if bodies {
				if b := sanitizeBody(reqBody, redact, conf.MaxBodySize); b != nil {
					args = append(args, "request_body", b)
				}
				if isJSON(res.Header().Get(echo.HeaderContentType)) {
					if b := sanitizeBody(resBuf.Bytes(), redact, conf.MaxBodySize); b != nil {
						args = append(args, "response_body", b)
					}
				}
			}

			switch {
			case res.Status >= http.StatusInternalServerError:
				if err != nil {
					args = append(args, "error", err.Error())
				}
				conf.Logger.Errorw("request", args...)
			case res.Status >= http.StatusBadRequest:
				conf.Logger.Warnw("request", args...)
			default:
				conf.Logger.Infow("request", args...)
			}
			return err
		}
	}
}

func isJSON(contentType string) bool {
	return strings.HasPrefix(contentType, echo.MIMEApplicationJSON)
}

// sanitizeBody masks redacted keys in JSON objects and arrays and truncates
// the result. Anything else is logged verbatim as a truncated string.
func sanitizeBody(body []byte, redact map[string]struct{}, limit int) any {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil
	}
	if trimmed[0] != '{' && trimmed[0] != '[' {
		return truncateBody(string(body), limit)
	}
	var doc any
	if err := json.Unmarshal(body, &doc); err != nil {
		return truncateBody(string(body), limit)
	}
	if len(redact) > 0 {
		doc = redactValue(doc, redact)
	}
	out, err := json.Marshal(doc)
	if err != nil {
		return nil
	}
	if len(out) > limit {
		return truncateBody(string(out), limit)
	}
	return json.RawMessage(out)
}

func redactValue(v any, keys map[string]struct{}) any {
	switch t := v.(type) {
	case map[string]any:
		for k, child := range t {
			if _, ok := keys[strings.ToLower(k)]; ok {
				t[k] = redacted
				continue
			}
			t[k] = redactValue(child, keys)
		}
	case []any:
		for i := range t {
			t[i] = redactValue(t[i], keys)
		}
	}
	return v
}

func truncateBody(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[:limit] + "...(truncated)"
}

type bodyDumpWriter struct {
	io.Writer
	http.ResponseWriter
}

func (w *bodyDumpWriter) WriteHeader(code int) {
	w.ResponseWriter.WriteHeader(code)
}

func (w *bodyDumpWriter) Write(b []byte) (int, error) {
	return w.Writer.Write(b)
}

func (w *bodyDumpWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (w *bodyDumpWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	return http.NewResponseController(w.ResponseWriter).Hijack()
}
