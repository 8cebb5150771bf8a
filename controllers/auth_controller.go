package controllers

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/fadeclub/fadeclub_backend/middleware"
	"github.com/fadeclub/fadeclub_backend/models"
	"github.com/fadeclub/fadeclub_backend/repositories"
	"github.com/fadeclub/fadeclub_backend/utils"
)

type AuthController struct {
	db      *mongo.Client
	members repositories.MemberRepository
}

func NewAuthController(db *mongo.Client, members repositories.MemberRepository) *AuthController {
	return &AuthController{db: db, members: members}
}

// Signup registers a new member. The referral code, when present, resolves
// to the sponsor; matrix placement waits for the billing checkout event.
func (ac *AuthController) Signup(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	var req models.SignupRequest
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
		Email:    req.Email,
		FullName: req.FullName,
		Phone:    req.Phone,
		UserType: "member",
		IsActive: false,
	}

	if req.ReferralCode != "" {
		sponsor, err := ac.members.FindByReferralCode(ctx, req.ReferralCode)
		if err != nil {
			return c.JSON(http.StatusBadRequest, models.Response{
				Status:  http.StatusBadRequest,
				Message: "Unknown referral code",
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

	token, _, err := middleware.GenerateJWT(member.ID.Hex(), member.Email, member.UserType)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Failed to generate token",
		})
	}

	member.Password = ""
	return c.JSON(http.StatusCreated, models.Response{
		Status:  http.StatusCreated,
		Message: "Member created successfully",
		Data:    models.LoginResponse{Token: token, Member: member},
	})
}

// Login authenticates a member
func (ac *AuthController) Login(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	var req models.LoginRequest
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

	member, err := ac.members.FindByEmail(ctx, req.Email)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, models.Response{
			Status:  http.StatusUnauthorized,
			Message: "Invalid email or password",
		})
	}
	if err := utils.CheckPassword(member.Password, req.Password); err != nil {
		return c.JSON(http.StatusUnauthorized, models.Response{
			Status:  http.StatusUnauthorized,
			Message: "Invalid email or password",
		})
	}

	token, _, err := middleware.GenerateJWT(member.ID.Hex(), member.Email, member.UserType)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Failed to generate token",
		})
	}

	member.Password = ""
	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Login successful",
		Data:    models.LoginResponse{Token: token, Member: *member},
	})
}

// Logout blacklists the presented token
func (ac *AuthController) Logout(c echo.Context) error {
	authHeader := c.Request().Header.Get("Authorization")
	if len(authHeader) > 7 && authHeader[:7] == "Bearer " {
		middleware.BlacklistToken(authHeader[7:], time.Now().Add(24*time.Hour))
	}
	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Logged out successfully",
	})
}

// ValidateToken reports whether the presented token is still usable and
// returns the member it belongs to
func (ac *AuthController) ValidateToken(c echo.Context) error {
	member, err := utils.GetMemberFromToken(c, ac.members)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, models.Response{
			Status:  http.StatusUnauthorized,
			Message: "Invalid or expired token",
		})
	}
	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Token is valid",
		Data:    member,
	})
}
