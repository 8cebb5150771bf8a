package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echoMiddleware "github.com/labstack/echo/v4/middleware"

	"github.com/fadeclub/fadeclub_backend/config"
	"github.com/fadeclub/fadeclub_backend/controllers"
	"github.com/fadeclub/fadeclub_backend/middleware"
	"github.com/fadeclub/fadeclub_backend/repositories"
	"github.com/fadeclub/fadeclub_backend/routes"
	"github.com/fadeclub/fadeclub_backend/services"
	"github.com/fadeclub/fadeclub_backend/websocket"
)

// CustomValidator is a custom validator for Echo
type CustomValidator struct {
	validator *validator.Validate
}

// Validate validates the request body
func (cv *CustomValidator) Validate(i interface{}) error {
	return cv.validator.Struct(i)
}

func main() {
	// Load .env file
	err := godotenv.Load()
	if err != nil {
		log.Println("Warning: .env file not found")
	}

	// Connect to Redis (settings cache)
	config.ConnectRedis()

	// Connect to database
	client := config.ConnectDB()

	// Create WebSocket hub
	wsHub := websocket.NewHub()
	go wsHub.Run()

	// Create a new Echo instance
	e := echo.New()

	// Initialize custom validator
	customValidator := &CustomValidator{validator: validator.New()}
	e.Validator = customValidator

	// Initialize rate limiter
	rateLimiter := middleware.NewRateLimiter()

	// Middleware
	e.Use(echoMiddleware.Logger())
	e.Use(echoMiddleware.Recover())
	e.Use(middleware.GlobalCORS())
	e.Use(echoMiddleware.Secure())
	e.Use(rateLimiter.RateLimit())
	e.Use(middleware.SecurityHeadersWithConfig(middleware.SecurityConfig{
		AllowedDomains: []string{"*"}, // Configure this based on your needs
		AllowInlineJS:  false,
		AllowEval:      false,
	}))
	e.Use(httpsRedirect())

	// Initialize repositories
	memberRepo := repositories.NewMemberRepository(client)
	matrixRepo := repositories.NewMatrixRepository(client)
	commissionRepo := repositories.NewCommissionRepository(client)
	settingsRepo := repositories.NewSettingsRepository(client, config.RedisClient)
	placementLogRepo := repositories.NewPlacementLogRepository(client)

	// Initialize services
	placementService := services.NewPlacementService(matrixRepo, memberRepo, settingsRepo, placementLogRepo)
	commissionService := services.NewCommissionService(memberRepo, matrixRepo, commissionRepo, settingsRepo)
	auditService := services.NewAuditService(matrixRepo, settingsRepo)

	// Initialize controllers
	matrixController := controllers.NewMatrixController(client, wsHub, placementService, commissionService, memberRepo, matrixRepo)
	ctl := routes.Controllers{
		Auth:         controllers.NewAuthController(client, memberRepo),
		Matrix:       matrixController,
		Billing:      controllers.NewBillingController(client, wsHub, memberRepo, commissionService, matrixController),
		Commission:   controllers.NewCommissionController(client, commissionRepo),
		Audit:        controllers.NewAuditController(auditService),
		Settings:     controllers.NewSettingsController(settingsRepo),
		Admin:        controllers.NewAdminController(client, memberRepo, placementLogRepo, matrixController),
		Referral:     controllers.NewReferralController(memberRepo),
		Notification: controllers.NewNotificationController(client),
		Plan:         controllers.NewPlanController(client),
	}

	routes.SetupRoutes(e, client, wsHub, ctl)

	// Deactivate members whose paid-through date has lapsed
	go func() {
		for {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			expired, err := memberRepo.ExpireLapsed(ctx, time.Now())
			cancel()
			if err != nil {
				log.Printf("Subscription expiry sweep failed: %v", err)
			} else if expired > 0 {
				log.Printf("Subscription expiry sweep deactivated %d members", expired)
			}
			time.Sleep(5 * time.Minute)
		}
	}()

	// Prune expired tokens from the logout blacklist
	go middleware.CleanupBlacklist()

	// Start server
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	e.Logger.Fatal(e.Start(":" + port))
}

func httpsRedirect() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if c.Request().Header.Get("X-Forwarded-Proto") == "http" {
				return c.Redirect(301, "https://"+c.Request().Host+c.Request().RequestURI)
			}
			return next(c)
		}
	}
}
