// utils/auth.go
package utils

import (
	"context"
	"errors"
	"time"

	"github.com/labstack/echo/v4"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"golang.org/x/crypto/bcrypt"

	"github.com/fadeclub/fadeclub_backend/middleware"
	"github.com/fadeclub/fadeclub_backend/models"
	"github.com/fadeclub/fadeclub_backend/repositories"
)

// HashPassword hashes a plaintext password with bcrypt
func HashPassword(password string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

// CheckPassword compares a plaintext password against its bcrypt hash
func CheckPassword(hashed, password string) error {
	return bcrypt.CompareHashAndPassword([]byte(hashed), []byte(password))
}

// GetMemberIDFromToken extracts the authenticated member id from the request
func GetMemberIDFromToken(c echo.Context) (primitive.ObjectID, error) {
	userID, err := middleware.ExtractUserID(c)
	if err != nil {
		return primitive.NilObjectID, err
	}
	objID, err := primitive.ObjectIDFromHex(userID)
	if err != nil {
		return primitive.NilObjectID, errors.New("invalid user ID format")
	}
	return objID, nil
}

// GetMemberFromToken loads the full member record for the authenticated
// request. The password hash is cleared before returning.
func GetMemberFromToken(c echo.Context, members repositories.MemberRepository) (*models.Member, error) {
	memberID, err := GetMemberIDFromToken(c)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	member, err := members.FindByID(ctx, memberID)
	if err != nil {
		return nil, err
	}
	member.Password = ""
	return member, nil
}
