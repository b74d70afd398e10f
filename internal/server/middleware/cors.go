package middleware

import (
	"net/http"
	"regexp"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
)

type CORSConfig struct {
	// Origins that may call the API with credentials.
	AllowOrigin *regexp.Regexp
	// Headers the browser may read from responses.
	ExposeHeaders []string
	// MaxAge of a cached preflight, in seconds. Zero omits the header.
	MaxAge int
}

var corsAllowMethods = strings.Join([]string{
	http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions,
}, ", ")

// CORS answers preflights and echoes back origins matching the pattern.
// Requests from other origins pass through without CORS headers.
func CORS(conf CORSConfig) echo.MiddlewareFunc {
	expose := strings.Join(conf.ExposeHeaders, ", ")
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			header := c.Response().Header()
			header.Add(echo.HeaderVary, echo.HeaderOrigin)

			origin := req.Header.Get(echo.HeaderOrigin)
			if origin == "" || conf.AllowOrigin == nil || !conf.AllowOrigin.MatchString(origin) {
				return next(c)
			}
			header.Set(echo.HeaderAccessControlAllowOrigin, origin)
			header.Set(echo.HeaderAccessControlAllowCredentials, "true")
			if expose != "" {
				header.Set(echo.HeaderAccessControlExposeHeaders, expose)
			}

			if req.Method != http.MethodOptions {
				return next(c)
			}
			// `*` alone does not cover Authorization in Safari 12
			header.Set(echo.HeaderAccessControlAllowHeaders, "*, Authorization")
			header.Set(echo.HeaderAccessControlAllowMethods, corsAllowMethods)
			if conf.MaxAge > 0 {
				header.Set(echo.HeaderAccessControlMaxAge, strconv.Itoa(conf.MaxAge))
			}
			return c.NoContent(http.StatusNoContent)
		}
	}
}
