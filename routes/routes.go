package routes

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/fadeclub/fadeclub_backend/controllers"
	"github.com/fadeclub/fadeclub_backend/middleware"
	"github.com/fadeclub/fadeclub_backend/models"
	"github.com/fadeclub/fadeclub_backend/utils"
	"github.com/fadeclub/fadeclub_backend/websocket"
)

// Controllers bundles everything the route registration needs.
type Controllers struct {
	Auth         *controllers.AuthController
	Matrix       *controllers.MatrixController
	Billing      *controllers.BillingController
	Commission   *controllers.CommissionController
	Audit        *controllers.AuditController
	Settings     *controllers.SettingsController
	Admin        *controllers.AdminController
	Referral     *controllers.ReferralController
	Notification *controllers.NotificationController
	Plan         *controllers.PlanController
}

// SetupRoutes configures all API routes
func SetupRoutes(e *echo.Echo, db *mongo.Client, hub *websocket.Hub, ctl Controllers) {
	e.GET("/", func(c echo.Context) error {
		return c.JSON(http.StatusOK, models.Response{
			Status:  http.StatusOK,
			Message: "FadeClub API",
		})
	})
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})

	RegisterAuthRoutes(e, ctl)
	RegisterWebhookRoutes(e, ctl)
	RegisterMemberRoutes(e, hub, ctl)
	RegisterAdminRoutes(e, ctl)
}

// RegisterAuthRoutes sets up the public authentication routes
func RegisterAuthRoutes(e *echo.Echo, ctl Controllers) {
	e.POST("/api/auth/signup", ctl.Auth.Signup)
	e.POST("/api/auth/login", ctl.Auth.Login)
	e.POST("/api/auth/logout", ctl.Auth.Logout)
	e.GET("/api/auth/validate-token", ctl.Auth.ValidateToken, middleware.JWTMiddleware())

	// Plan catalog is public so the signup flow can show prices
	e.GET("/api/plans", ctl.Plan.ListPlans)
}

// RegisterWebhookRoutes sets up the billing collaborator webhook. It is
// authenticated by shared secret, not JWT.
func RegisterWebhookRoutes(e *echo.Echo, ctl Controllers) {
	e.POST("/api/webhooks/billing", ctl.Billing.HandleWebhook)
}

// RegisterMemberRoutes sets up the authenticated member-facing routes
func RegisterMemberRoutes(e *echo.Echo, hub *websocket.Hub, ctl Controllers) {
	api := e.Group("/api", middleware.JWTMiddleware())

	api.GET("/referral", ctl.Referral.GetReferralInfo)
	api.GET("/matrix/position", ctl.Matrix.GetMyPosition)
	api.GET("/matrix/downline", ctl.Matrix.GetDownline)
	api.GET("/commissions", ctl.Commission.GetMyCommissions)
	api.GET("/notifications", ctl.Notification.GetMyNotifications)
	api.PUT("/notifications/:id/read", ctl.Notification.MarkNotificationRead)

	api.GET("/ws", func(c echo.Context) error {
		memberID, err := utils.GetMemberIDFromToken(c)
		if err != nil {
			return c.JSON(http.StatusUnauthorized, models.Response{
				Status:  http.StatusUnauthorized,
				Message: "Invalid token",
			})
		}
		return websocket.HandleWebSocket(c, hub, memberID)
	})
}

// RegisterAdminRoutes sets up the back-office routes
func RegisterAdminRoutes(e *echo.Echo, ctl Controllers) {
	admin := e.Group("/api/admin", middleware.JWTMiddleware(), middleware.RequireAdmin())

	admin.GET("/members", ctl.Admin.ListMembers)
	admin.POST("/members", ctl.Admin.CreateMember)

	admin.POST("/matrix/placements", ctl.Matrix.PlaceMember)
	admin.GET("/matrix/placements", ctl.Admin.GetPlacementLogs)
	admin.GET("/matrix/audit", ctl.Audit.RunAudit)
	admin.GET("/matrix/nodes/:id/verify", ctl.Audit.VerifyNode)

	admin.GET("/commissions", ctl.Commission.ListCommissions)
	admin.PUT("/commissions/:id/status", ctl.Commission.UpdateCommissionStatus)

	admin.GET("/settings/commissions", ctl.Settings.GetCommissionSettings)
	admin.PUT("/settings/commissions", ctl.Settings.UpdateCommissionSettings)

	admin.POST("/plans", ctl.Plan.CreatePlan)
	admin.PUT("/plans/:id", ctl.Plan.UpdatePlan)
}
