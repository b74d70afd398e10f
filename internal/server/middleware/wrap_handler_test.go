package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type themeRequest struct {
	Theme string `json:"theme" validate:"required,oneof=light dark"`
}

func TestWrapHandler(t *testing.T) {
	e := echo.New()
	e.Validator = NewValidator()
	e.HTTPErrorHandler = ErrorHandler(&recordingLogger{})

	e.PUT("/theme", WrapHandler(func(c echo.Context, req themeRequest) (map[string]string, error) {
		return map[string]string{"theme": req.Theme}, nil
	}))
	e.POST("/emails", WrapHandler(func(c echo.Context, req struct{}) (*Response, error) {
		return &Response{Status: http.StatusAccepted, Success: true}, nil
	}))
	e.DELETE("/contacts", WrapHandler(func(c echo.Context, req struct{}) error {
		return nil
	}))
	e.GET("/fail", WrapHandler(func(c echo.Context, req struct{}) (any, error) {
		return nil, errors.New("boom")
	}))

	do := func(method, path, body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)
		return rec
	}

	rec := do(http.MethodPut, "/theme", `{"theme":"dark"}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"success":true,"data":{"theme":"dark"}}`, rec.Body.String())

	rec = do(http.MethodPut, "/theme", `{"theme":"pink"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "INVALID_ARGUMENT")

	rec = do(http.MethodPost, "/emails", `{}`)
	assert.Equal(t, http.StatusAccepted, rec.Code)

	rec = do(http.MethodDelete, "/contacts", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"success":true}`, rec.Body.String())

	rec = do(http.MethodGet, "/fail", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestWrapHandlerRejectsBadShapes(t *testing.T) {
	bad := []any{
		"not a func",
		func(c echo.Context) error { return nil },
		func(c echo.Context, req string) error { return nil },
		func(c echo.Context, req struct{}) {},
		func(c echo.Context, req struct{}) (string, string) { return "", "" },
		func(req struct{}, c echo.Context) error { return nil },
	}
	for _, f := range bad {
		assert.Panics(t, func() { WrapHandler(f) })
	}
	require.NotPanics(t, func() { WrapHandler(func(c echo.Context, req struct{}) error { return nil }) })
}
