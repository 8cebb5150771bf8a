package middleware

import (
	"os"
	"strings"

	"github.com/labstack/echo/v4"
	echoMiddleware "github.com/labstack/echo/v4/middleware"
)

// GlobalCORS allows the dashboard origins plus anything listed in
// CORS_ALLOWED_ORIGINS (comma separated). Webhook traffic is server to
// server and never preflights, so it is unaffected.
func GlobalCORS() echo.MiddlewareFunc {
	origins := []string{
		"http://localhost:3000",
		"http://localhost:8080",
		"https://fadeclub.com",
		"https://www.fadeclub.com",
		"https://app.fadeclub.com",
	}
	for _, origin := range strings.Split(os.Getenv("CORS_ALLOWED_ORIGINS"), ",") {
		if origin = strings.TrimSpace(origin); origin != "" {
			origins = append(origins, origin)
		}
	}

	return echoMiddleware.CORSWithConfig(echoMiddleware.CORSConfig{
		AllowOrigins:     origins,
		AllowMethods:     []string{"GET", "HEAD", "PUT", "PATCH", "POST", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Requested-With"},
		AllowCredentials: true,
		ExposeHeaders:    []string{"Content-Length", "Content-Type"},
		MaxAge:           86400,
	})
}
