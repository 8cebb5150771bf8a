package controllers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/fadeclub/fadeclub_backend/models"
	"github.com/fadeclub/fadeclub_backend/repositories"
	"github.com/fadeclub/fadeclub_backend/utils"
)

type CommissionController struct {
	db     *mongo.Client
	ledger repositories.CommissionRepository
}

func NewCommissionController(db *mongo.Client, ledger repositories.CommissionRepository) *CommissionController {
	return &CommissionController{db: db, ledger: ledger}
}

// GetMyCommissions returns the authenticated member's ledger rows plus
// per-status totals. An optional status query param filters the rows.
func (cc *CommissionController) GetMyCommissions(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	memberID, err := utils.GetMemberIDFromToken(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, models.Response{
			Status:  http.StatusUnauthorized,
			Message: "Invalid token",
		})
	}

	status := c.QueryParam("status")
	if status != "" && !validCommissionStatus(status) {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Unknown status filter",
		})
	}

	events, err := cc.ledger.FindByBeneficiary(ctx, memberID, status)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Failed to load commissions",
		})
	}
	summaries, err := cc.ledger.SummarizeByBeneficiary(ctx, memberID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Failed to summarize commissions",
		})
	}

	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Commissions retrieved successfully",
		Data: map[string]interface{}{
			"commissions": events,
			"summary":     summaries,
		},
	})
}

// ListCommissions returns ledger rows across all members for admin payout
// review, newest first.
func (cc *CommissionController) ListCommissions(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	status := c.QueryParam("status")
	if status != "" && !validCommissionStatus(status) {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Unknown status filter",
		})
	}

	limit := int64(100)
	if limitParam := c.QueryParam("limit"); limitParam != "" {
		if parsed, err := strconv.ParseInt(limitParam, 10, 64); err == nil && parsed > 0 && parsed <= 1000 {
			limit = parsed
		}
	}

	events, err := cc.ledger.List(ctx, status, limit)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Failed to load commissions",
		})
	}

	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Commissions retrieved successfully",
		Data:    events,
	})
}

// UpdateCommissionStatus applies a payout status transition: pending rows can
// be marked paid or canceled, and a paid row can be reopened to pending.
func (cc *CommissionController) UpdateCommissionStatus(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	commissionID, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Invalid commission ID format",
		})
	}

	var req models.CommissionStatusRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Invalid request body",
		})
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Validation failed",
			Data:    err.Error(),
		})
	}

	updated, err := cc.ledger.UpdateStatus(ctx, commissionID, req.Status)
	if err != nil {
		switch {
		case errors.Is(err, models.ErrInvalidStatusChange):
			return c.JSON(http.StatusConflict, models.Response{
				Status:  http.StatusConflict,
				Message: "Status transition not allowed",
			})
		case errors.Is(err, models.ErrMissingDependency):
			return c.JSON(http.StatusNotFound, models.Response{
				Status:  http.StatusNotFound,
				Message: "Commission not found",
			})
		}
		return c.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Failed to update commission status",
		})
	}

	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Commission status updated successfully",
		Data:    updated,
	})
}

func validCommissionStatus(status string) bool {
	switch status {
	case models.CommissionPending, models.CommissionPaid, models.CommissionCanceled:
		return true
	}
	return false
}
