// models/member.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Member model. ReferredBy is set once at signup and never changes; members
// are never deleted, only deactivated when billing lapses.
type Member struct {
	ID                 primitive.ObjectID   `json:"id,omitempty" bson:"_id,omitempty"`
	Email              string               `json:"email" bson:"email"`
	Password           string               `json:"password,omitempty" bson:"password"`
	FullName           string               `json:"fullName" bson:"fullName"`
	Phone              string               `json:"phone,omitempty" bson:"phone,omitempty"`
	UserType           string               `json:"userType" bson:"userType"` // "member", "admin"
	IsActive           bool                 `json:"isActive" bson:"isActive"` // active paid subscription
	ReferralCode       string               `json:"referralCode,omitempty" bson:"referralCode,omitempty"`
	ReferredBy         *primitive.ObjectID  `json:"referredBy,omitempty" bson:"referredBy,omitempty"`
	Referrals          []primitive.ObjectID `json:"referrals,omitempty" bson:"referrals,omitempty"`
	SubscriptionAmount float64              `json:"subscriptionAmount" bson:"subscriptionAmount"`
	PlanID             *primitive.ObjectID  `json:"planId,omitempty" bson:"planId,omitempty"`
	PaidThrough        *time.Time           `json:"paidThrough,omitempty" bson:"paidThrough,omitempty"`
	CreatedAt          time.Time            `json:"createdAt" bson:"createdAt"`
	UpdatedAt          time.Time            `json:"updatedAt" bson:"updatedAt"`
}

// Response is the standard API response envelope
type Response struct {
	Status  int         `json:"status"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

type SignupRequest struct {
	Email        string `json:"email" validate:"required,email"`
	Password     string `json:"password" validate:"required,min=8"`
	FullName     string `json:"fullName" validate:"required"`
	Phone        string `json:"phone,omitempty"`
	ReferralCode string `json:"referralCode,omitempty"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type LoginResponse struct {
	Token  string `json:"token"`
	Member Member `json:"member"`
}

// AdminCreateMemberRequest is used by admin manual member creation. When
// PlaceImmediately is set the member is inserted into the matrix right away
// instead of waiting for a billing checkout event.
type AdminCreateMemberRequest struct {
	Email              string  `json:"email" validate:"required,email"`
	Password           string  `json:"password" validate:"required,min=8"`
	FullName           string  `json:"fullName" validate:"required"`
	SponsorCode        string  `json:"sponsorCode,omitempty"`
	SubscriptionAmount float64 `json:"subscriptionAmount" validate:"gte=0"`
	PlaceImmediately   bool    `json:"placeImmediately"`
}

type ReferralInfo struct {
	ReferralCode  string `json:"referralCode"`
	ReferralLink  string `json:"referralLink"`
	QRCode        string `json:"qrCode,omitempty"`
	ReferralCount int    `json:"referralCount"`
}
