package controllers

import (
	"context"
	"crypto/subtle"
	"errors"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/fadeclub/fadeclub_backend/models"
	"github.com/fadeclub/fadeclub_backend/repositories"
	"github.com/fadeclub/fadeclub_backend/services"
	"github.com/fadeclub/fadeclub_backend/utils"
	"github.com/fadeclub/fadeclub_backend/websocket"
)

// BillingController receives webhook events from the billing collaborator.
// Deliveries can arrive more than once; every path through here is idempotent.
type BillingController struct {
	db          *mongo.Client
	hub         *websocket.Hub
	members     repositories.MemberRepository
	commissions *services.CommissionService
	matrix      *MatrixController
}

func NewBillingController(db *mongo.Client, hub *websocket.Hub, members repositories.MemberRepository, commissions *services.CommissionService, matrix *MatrixController) *BillingController {
	return &BillingController{
		db:          db,
		hub:         hub,
		members:     members,
		commissions: commissions,
		matrix:      matrix,
	}
}

// HandleWebhook dispatches a billing event to the matching engine path.
func (bc *BillingController) HandleWebhook(c echo.Context) error {
	if !bc.verifySecret(c) {
		return c.JSON(http.StatusUnauthorized, models.Response{
			Status:  http.StatusUnauthorized,
			Message: "Invalid webhook secret",
		})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 20*time.Second)
	defer cancel()

	var event models.BillingEvent
	if err := c.Bind(&event); err != nil {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Invalid request body",
		})
	}
	if err := c.Validate(&event); err != nil {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Validation failed",
			Data:    err.Error(),
		})
	}

	memberID, err := primitive.ObjectIDFromHex(event.MemberID)
	if err != nil {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Invalid member ID format",
		})
	}

	// Deliveries without an event ID cannot be deduplicated across retries,
	// so each gets a fresh one and is treated as a distinct event.
	if event.EventID == "" {
		event.EventID = "gen:" + uuid.NewString()
		log.Printf("Billing event of type %s arrived without an event ID; assigned %s", event.Type, event.EventID)
	}

	switch event.Type {
	case "checkout.completed":
		return bc.handleCheckoutCompleted(ctx, c, memberID, event)
	case "invoice.paid":
		return bc.handleInvoicePaid(ctx, c, memberID, event)
	case "subscription.canceled":
		return bc.handleSubscriptionCanceled(ctx, c, memberID, event)
	case "product.purchased":
		return bc.handleProductPurchased(ctx, c, memberID, event)
	}

	return c.JSON(http.StatusBadRequest, models.Response{
		Status:  http.StatusBadRequest,
		Message: "Unknown event type",
	})
}

// handleCheckoutCompleted activates the membership and triggers matrix
// placement plus the one-time bonus programs.
func (bc *BillingController) handleCheckoutCompleted(ctx context.Context, c echo.Context, memberID primitive.ObjectID, event models.BillingEvent) error {
	member, err := bc.members.FindByID(ctx, memberID)
	if err != nil {
		return c.JSON(http.StatusNotFound, models.Response{
			Status:  http.StatusNotFound,
			Message: "Member not found",
		})
	}

	if err := bc.members.RecordRenewal(ctx, memberID, paidThrough(event.PeriodMonths), event.Amount); err != nil {
		log.Printf("Failed to activate member %s for event %s: %v", memberID.Hex(), event.EventID, err)
		return c.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Failed to activate membership",
		})
	}

	result, err := bc.matrix.ExecutePlacement(ctx, memberID, member.ReferredBy, event.EventID)
	if err != nil {
		if errors.Is(err, models.ErrMatrixFull) {
			go utils.NotifyAdminMatrixFull(memberID.Hex())
			return c.JSON(http.StatusConflict, models.Response{
				Status:  http.StatusConflict,
				Message: "Matrix is full; member activated and queued for manual placement",
			})
		}
		log.Printf("Placement failed for member %s (event %s): %v", memberID.Hex(), event.EventID, err)
		return c.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Member activated but placement failed",
		})
	}

	message := "Member activated and placed"
	if result.AlreadyPlaced {
		message = "Member already placed; activation refreshed"
	}
	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: message,
		Data:    result,
	})
}

// handleInvoicePaid extends the paid-through date and pays the recurring
// level bonus.
func (bc *BillingController) handleInvoicePaid(ctx context.Context, c echo.Context, memberID primitive.ObjectID, event models.BillingEvent) error {
	if _, err := bc.members.FindByID(ctx, memberID); err != nil {
		return c.JSON(http.StatusNotFound, models.Response{
			Status:  http.StatusNotFound,
			Message: "Member not found",
		})
	}

	if err := bc.members.RecordRenewal(ctx, memberID, paidThrough(event.PeriodMonths), event.Amount); err != nil {
		log.Printf("Failed to renew member %s for event %s: %v", memberID.Hex(), event.EventID, err)
		return c.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Failed to record renewal",
		})
	}

	events, err := bc.commissions.OnRenewal(ctx, memberID, event.EventID)
	if err != nil {
		log.Printf("Renewal bonus failed for member %s (event %s): %v", memberID.Hex(), event.EventID, err)
	}
	bc.notifyBeneficiaries(events)

	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Renewal recorded",
	})
}

// handleSubscriptionCanceled deactivates the member. The matrix node stays:
// positions are permanent, only earning eligibility lapses.
func (bc *BillingController) handleSubscriptionCanceled(ctx context.Context, c echo.Context, memberID primitive.ObjectID, event models.BillingEvent) error {
	if err := bc.members.SetActive(ctx, memberID, false); err != nil {
		log.Printf("Failed to deactivate member %s for event %s: %v", memberID.Hex(), event.EventID, err)
		return c.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Failed to deactivate membership",
		})
	}
	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Membership deactivated",
	})
}

// handleProductPurchased pays the sponsor's cut of a shop sale.
func (bc *BillingController) handleProductPurchased(ctx context.Context, c echo.Context, memberID primitive.ObjectID, event models.BillingEvent) error {
	if event.Amount <= 0 {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Purchase amount must be positive",
		})
	}

	events, err := bc.commissions.OnProductPurchase(ctx, memberID, event.Amount, event.EventID)
	if err != nil {
		if errors.Is(err, models.ErrMissingDependency) {
			return c.JSON(http.StatusNotFound, models.Response{
				Status:  http.StatusNotFound,
				Message: "Member not found",
			})
		}
		log.Printf("Product commission failed for member %s (event %s): %v", memberID.Hex(), event.EventID, err)
		return c.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Failed to record product commission",
		})
	}
	bc.notifyBeneficiaries(events)

	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Product purchase processed",
		Data:    events,
	})
}

func (bc *BillingController) notifyBeneficiaries(events []models.CommissionEvent) {
	if len(events) == 0 {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		for _, event := range events {
			beneficiary, err := bc.members.FindByID(ctx, event.BeneficiaryID)
			if err != nil {
				log.Printf("Warning: cannot notify beneficiary %s: %v", event.BeneficiaryID.Hex(), err)
				continue
			}
			utils.NotifyCommissionEarned(bc.db, beneficiary, event)
			_ = bc.hub.NotifyCommissionEarned(event.BeneficiaryID, event)
		}
	}()
}

// verifySecret checks the shared webhook secret. An unset WEBHOOK_SECRET
// disables the check for local development.
func (bc *BillingController) verifySecret(c echo.Context) bool {
	secret := os.Getenv("WEBHOOK_SECRET")
	if secret == "" {
		return true
	}
	presented := c.Request().Header.Get("X-Webhook-Secret")
	return subtle.ConstantTimeCompare([]byte(secret), []byte(presented)) == 1
}

func paidThrough(periodMonths int) time.Time {
	if periodMonths <= 0 {
		periodMonths = 1
	}
	return time.Now().AddDate(0, periodMonths, 0)
}
