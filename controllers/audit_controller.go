package controllers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/fadeclub/fadeclub_backend/models"
	"github.com/fadeclub/fadeclub_backend/services"
)

type AuditController struct {
	audit *services.AuditService
}

func NewAuditController(audit *services.AuditService) *AuditController {
	return &AuditController{audit: audit}
}

// RunAudit sweeps the whole matrix and returns the integrity report. The
// sweep reads every node, so the timeout is generous.
func (ac *AuditController) RunAudit(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 60*time.Second)
	defer cancel()

	report, err := ac.audit.RunFullIntegrityAudit(ctx)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Audit sweep failed",
		})
	}

	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Integrity audit completed",
		Data:    report,
	})
}

// VerifyNode runs the structural checks against a single matrix node
func (ac *AuditController) VerifyNode(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 15*time.Second)
	defer cancel()

	nodeID, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Invalid node ID format",
		})
	}

	result, err := ac.audit.VerifyNode(ctx, nodeID)
	if err != nil {
		if errors.Is(err, models.ErrNodeNotFound) {
			return c.JSON(http.StatusNotFound, models.Response{
				Status:  http.StatusNotFound,
				Message: "Matrix node not found",
			})
		}
		return c.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Node verification failed",
		})
	}

	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Node verification completed",
		Data:    result,
	})
}
