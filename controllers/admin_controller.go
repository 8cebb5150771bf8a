package controllers

import (
	"context"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/fadeclub/fadeclub_backend/config"
	"github.com/fadeclub/fadeclub_backend/models"
	"github.com/fadeclub/fadeclub_backend/repositories"
	"github.com/fadeclub/fadeclub_backend/utils"
)

// AdminController covers back-office member management and the placement
// audit trail.
type AdminController struct {
	db      *mongo.Client
	members repositories.MemberRepository
	logs    repositories.PlacementLogRepository
	matrix  *MatrixController
}

func NewAdminController(db *mongo.Client, members repositories.MemberRepository, logs repositories.PlacementLogRepository, matrix *MatrixController) *AdminController {
	return &AdminController{db: db, members: members, logs: logs, matrix: matrix}
}

// ListMembers returns members newest first, optionally filtered by active
// status.
func (ac *AdminController) ListMembers(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	filter := bson.M{}
	switch c.QueryParam("active") {
	case "true":
		filter["isActive"] = true
	case "false":
		filter["isActive"] = false
	}

	limit := int64(100)
	if limitParam := c.QueryParam("limit"); limitParam != "" {
		if parsed, err := strconv.ParseInt(limitParam, 10, 64); err == nil && parsed > 0 && parsed <= 1000 {
			limit = parsed
		}
	}

	collection := config.GetCollection(ac.db, "users")
	opts := options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: -1}}).
		SetLimit(limit).
		SetProjection(bson.M{"password": 0})
	cursor, err := collection.Find(ctx, filter, opts)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Failed to load members",
		})
	}
	defer cursor.Close(ctx)

	var members []models.Member
	if err := cursor.All(ctx, &members); err != nil {
		return c.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Failed to decode members",
		})
	}

	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Members retrieved successfully",
		Data:    members,
	})
}

// CreateMember provisions an account from the back office. With
// PlaceImmediately set the member is activated and inserted into the matrix
// without waiting for a billing checkout event.
func (ac *AdminController) CreateMember(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 15*time.Second)
	defer cancel()

	var req models.AdminCreateMemberRequest
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

	if _, err := ac.members.FindByEmail(ctx, req.Email); err == nil {
		return c.JSON(http.StatusConflict, models.Response{
			Status:  http.StatusConflict,
			Message: "Email already registered",
		})
	}

	member := models.Member{
		Email:              req.Email,
		FullName:           req.FullName,
		UserType:           "member",
		IsActive:           req.PlaceImmediately,
		SubscriptionAmount: req.SubscriptionAmount,
	}

	if req.SponsorCode != "" {
		sponsor, err := ac.members.FindByReferralCode(ctx, req.SponsorCode)
		if err != nil {
			return c.JSON(http.StatusBadRequest, models.Response{
				Status:  http.StatusBadRequest,
				Message: "Unknown sponsor code",
			})
		}
		member.ReferredBy = &sponsor.ID
	}

	hashedPassword, err := utils.HashPassword(req.Password)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Failed to process password",
		})
	}
	member.Password = hashedPassword

	referralCode, err := utils.GenerateReferralCode()
	if err != nil {
		return c.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Failed to generate referral code",
		})
	}
	member.ReferralCode = referralCode

	if err := ac.members.Insert(ctx, &member); err != nil {
		return c.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Failed to create member",
		})
	}
	if member.ReferredBy != nil {
		if err := ac.members.AddReferral(ctx, *member.ReferredBy, member.ID); err != nil {
			log.Printf("Warning: failed to record referral edge for %s: %v", member.ID.Hex(), err)
		}
	}

	member.Password = ""
	response := map[string]interface{}{"member": member}

	if req.PlaceImmediately {
		result, err := ac.matrix.ExecutePlacement(ctx, member.ID, member.ReferredBy, "admin:"+member.ID.Hex())
		if err != nil {
			return ac.matrix.placementError(c, member.ID, err)
		}
		response["placement"] = result
	}

	return c.JSON(http.StatusCreated, models.Response{
		Status:  http.StatusCreated,
		Message: "Member created successfully",
		Data:    response,
	})
}

// GetPlacementLogs returns the placement audit trail, newest first. A
// memberId query param narrows it to one member's history.
func (ac *AdminController) GetPlacementLogs(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	if memberParam := c.QueryParam("memberId"); memberParam != "" {
		memberID, err := primitive.ObjectIDFromHex(memberParam)
		if err != nil {
			return c.JSON(http.StatusBadRequest, models.Response{
				Status:  http.StatusBadRequest,
				Message: "Invalid member ID format",
			})
		}
		entries, err := ac.logs.FindByMember(ctx, memberID)
		if err != nil {
			return c.JSON(http.StatusInternalServerError, models.Response{
				Status:  http.StatusInternalServerError,
				Message: "Failed to load placement logs",
			})
		}
		return c.JSON(http.StatusOK, models.Response{
			Status:  http.StatusOK,
			Message: "Placement logs retrieved successfully",
			Data:    entries,
		})
	}

	limit := int64(100)
	if limitParam := c.QueryParam("limit"); limitParam != "" {
		if parsed, err := strconv.ParseInt(limitParam, 10, 64); err == nil && parsed > 0 && parsed <= 1000 {
			limit = parsed
		}
	}

	collection := config.GetCollection(ac.db, "placement_logs")
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}}).SetLimit(limit)
	cursor, err := collection.Find(ctx, bson.M{}, opts)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Failed to load placement logs",
		})
	}
	defer cursor.Close(ctx)

	var entries []models.PlacementLogEntry
	if err := cursor.All(ctx, &entries); err != nil {
		return c.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Failed to decode placement logs",
		})
	}

	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Placement logs retrieved successfully",
		Data:    entries,
	})
}
