// middleware/security_headers.go
package middleware

import (
	"strings"

	"github.com/labstack/echo/v4"
)

type SecurityConfig struct {
	AllowedDomains []string
	AllowInlineJS  bool
	AllowEval      bool
}

// SecurityHeadersWithConfig sets the standard browser hardening headers. The
// API serves JSON (plus the referral QR as a data URI), so the CSP only needs
// to cover the rendered error pages and the websocket origin.
func SecurityHeadersWithConfig(config SecurityConfig) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			h := c.Response().Header()

			h.Set("X-Frame-Options", "DENY")
			h.Set("X-Content-Type-Options", "nosniff")
			h.Set("X-XSS-Protection", "1; mode=block")
			h.Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains; preload")
			h.Set("Content-Security-Policy", buildCSP(config))
			h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
			h.Set("Permissions-Policy", "geolocation=(), microphone=(), camera=()")

			h.Del("Server")
			h.Del("X-Powered-By")

			return next(c)
		}
	}
}

func buildCSP(config SecurityConfig) string {
	// data: covers the base64 QR codes embedded in referral responses.
	csp := []string{
		"default-src 'self'",
		"img-src 'self' data:",
		"style-src 'self'",
	}

	script := "script-src 'self'"
	if config.AllowInlineJS {
		script += " 'unsafe-inline'"
	}
	if config.AllowEval {
		script += " 'unsafe-eval'"
	}
	csp = append(csp, script)

	if len(config.AllowedDomains) > 0 {
		csp = append(csp, "connect-src 'self' "+strings.Join(config.AllowedDomains, " "))
	}

	return strings.Join(csp, "; ")
}
