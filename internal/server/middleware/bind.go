package middleware

import (
	"fmt"
	"net/http"
	"reflect"
	"strings"

	"github.com/cstockton/go-conv"
	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
)

// BindAndValidate fills req from the body, path params and query (echo's
// binder), then from `header` and `jwt` tags, and validates the result.
func BindAndValidate(c echo.Context, req any) error {
	if err := c.Bind(req); err != nil {
		return err
	}
	if err := bindHeader(c.Request().Header, req); err != nil {
		return err
	}
	if err := bindJwt(c, req); err != nil {
		return err
	}
	return c.Validate(req)
}

// getClaims returns the session token claims set by JWTAuth, or nil.
func getClaims(c echo.Context) *jwt.RegisteredClaims {
	token, ok := c.Get(ContextKeyUser).(*jwt.Token)
	if !ok || token == nil {
		return nil
	}
	claims, _ := token.Claims.(*jwt.RegisteredClaims)
	return claims
}

// GetOperatorID returns the subject of the session token.
func GetOperatorID(c echo.Context) string {
	if claims := getClaims(c); claims != nil {
		return claims.Subject
	}
	return ""
}

// GetSessionID returns the console session the token was issued for.
func GetSessionID(c echo.Context) string {
	if claims := getClaims(c); claims != nil {
		return claims.ID
	}
	return ""
}

func unixOrZero(d *jwt.NumericDate) int64 {
	if d == nil {
		return 0
	}
	return d.Unix()
}

// bindJwt decodes registered jwt claims to struct by tag `jwt:"payloadField"`
func bindJwt(c echo.Context, dst any) error {
	claims := getClaims(c)
	if claims == nil {
		return nil
	}

	getValueFn := func(tagValue string) (any, error) {
		var value any
		switch tagValue {
		case "sub":
			value = claims.Subject
		case "iss":
			value = claims.Issuer
		case "aud":
			value = strings.Join(claims.Audience, ";")
		case "jti":
			value = claims.ID
		case "exp":
			value = unixOrZero(claims.ExpiresAt)
		case "iat":
			value = unixOrZero(claims.IssuedAt)
		case "nbf":
			value = unixOrZero(claims.NotBefore)
		default:
			return nil, fmt.Errorf("binding jwt field %s is not supported", tagValue)
		}
		return value, nil
	}

	return bindStruct(dst, "jwt", getValueFn)
}

// bindHeader decode http header to struct by tag `header:"<header_name>"`
// out must be a pointer to a struct
func bindHeader(header http.Header, dst any) error {
	getValueFn := func(tagValue string) (any, error) {
		return header.Get(tagValue), nil
	}

	return bindStruct(dst, "header", getValueFn)
}

// bindStruct decode to struct by custom tag `tagName:"tagValue"`
// dst must be a pointer to a struct
func bindStruct(dst any, tagName string, getValueFn func(tagValue string) (any, error)) error {
	ptr := reflect.ValueOf(dst)
	if ptr.Kind() != reflect.Ptr {
		return fmt.Errorf("non-pointer passed to Unmarshal")
	}

	indirect := reflect.Indirect(ptr)
	structType := indirect.Type()

	for i := 0; i < structType.NumField(); i++ {
		structField := structType.Field(i)
		tagValue := structField.Tag.Get(tagName)
		if tagValue == "-" || tagValue == "" {
			continue
		}

		field := indirect.Field(i)
		value, err := getValueFn(tagValue)
		if err != nil {
			return err
		}
		if err := conv.Infer(field, value); err != nil {
			return fmt.Errorf("cannot parse %s.%s as %s from: %#v / %s",
				structType.Name(), structField.Name, field.Type(), value, err)
		}
	}

	return nil
}
