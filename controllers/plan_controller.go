package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/fadeclub/fadeclub_backend/config"
	"github.com/fadeclub/fadeclub_backend/models"
)

// PlanController manages the membership plan catalog the billing checkout
// links against.
type PlanController struct {
	db *mongo.Client
}

func NewPlanController(db *mongo.Client) *PlanController {
	return &PlanController{db: db}
}

func (pc *PlanController) collection() *mongo.Collection {
	return config.GetCollection(pc.db, "subscription_plans")
}

// ListPlans returns all plans, active first
func (pc *PlanController) ListPlans(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	opts := options.Find().SetSort(bson.D{
		{Key: "isActive", Value: -1},
		{Key: "price", Value: 1},
	})
	cursor, err := pc.collection().Find(ctx, bson.M{}, opts)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Failed to load plans",
		})
	}
	defer cursor.Close(ctx)

	var plans []models.SubscriptionPlan
	if err := cursor.All(ctx, &plans); err != nil {
		return c.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Failed to decode plans",
		})
	}

	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Plans retrieved successfully",
		Data:    plans,
	})
}

// CreatePlan adds a membership plan
func (pc *PlanController) CreatePlan(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	var req models.SubscriptionPlanRequest
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

	now := time.Now()
	plan := models.SubscriptionPlan{
		ID:        primitive.NewObjectID(),
		Title:     req.Title,
		Price:     req.Price,
		Duration:  req.Duration,
		IsActive:  req.IsActive,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if _, err := pc.collection().InsertOne(ctx, plan); err != nil {
		return c.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Failed to create plan",
		})
	}

	return c.JSON(http.StatusCreated, models.Response{
		Status:  http.StatusCreated,
		Message: "Plan created successfully",
		Data:    plan,
	})
}

// UpdatePlan edits an existing plan
func (pc *PlanController) UpdatePlan(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	planID, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Invalid plan ID format",
		})
	}

	var req models.SubscriptionPlanRequest
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

	result, err := pc.collection().UpdateByID(ctx, planID, bson.M{"$set": bson.M{
		"title":     req.Title,
		"price":     req.Price,
		"duration":  req.Duration,
		"isActive":  req.IsActive,
		"updatedAt": time.Now(),
	}})
	if err != nil {
		return c.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Failed to update plan",
		})
	}
	if result.MatchedCount == 0 {
		return c.JSON(http.StatusNotFound, models.Response{
			Status:  http.StatusNotFound,
			Message: "Plan not found",
		})
	}

	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Plan updated successfully",
	})
}
