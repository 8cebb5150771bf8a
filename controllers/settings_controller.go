package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/fadeclub/fadeclub_backend/models"
	"github.com/fadeclub/fadeclub_backend/repositories"
)

type SettingsController struct {
	settings repositories.SettingsRepository
}

func NewSettingsController(settings repositories.SettingsRepository) *SettingsController {
	return &SettingsController{settings: settings}
}

// GetCommissionSettings returns the live bonus configuration
func (sc *SettingsController) GetCommissionSettings(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	settings, err := sc.settings.Get(ctx)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Failed to load commission settings",
		})
	}

	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Commission settings retrieved successfully",
		Data:    settings,
	})
}

// UpdateCommissionSettings replaces the bonus configuration. The next engine
// invocation picks up the new values; rows already recorded keep the amounts
// they were computed with.
func (sc *SettingsController) UpdateCommissionSettings(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	var req models.CommissionSettings
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

	if err := sc.settings.Update(ctx, &req); err != nil {
		return c.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Failed to update commission settings",
		})
	}

	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Commission settings updated successfully",
		Data:    req,
	})
}
