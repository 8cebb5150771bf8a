package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// SubscriptionPlan represents a membership plan
type SubscriptionPlan struct {
	ID        primitive.ObjectID `json:"id,omitempty" bson:"_id,omitempty"`
	Title     string             `json:"title,omitempty" bson:"title,omitempty"`
	Price     float64            `json:"price,omitempty" bson:"price,omitempty"`
	Duration  int                `json:"duration,omitempty" bson:"duration,omitempty"` // months
	CreatedAt time.Time          `json:"createdAt,omitempty" bson:"createdAt,omitempty"`
	UpdatedAt time.Time          `json:"updatedAt,omitempty" bson:"updatedAt,omitempty"`
	IsActive  bool               `json:"isActive,omitempty" bson:"isActive,omitempty"`
}

// SubscriptionPlanRequest represents the request body for creating/updating plans
type SubscriptionPlanRequest struct {
	Title    string  `json:"title" validate:"required"`
	Price    float64 `json:"price" validate:"required,gt=0"`
	Duration int     `json:"duration" validate:"required,gt=0"`
	IsActive bool    `json:"isActive"`
}

// BillingEvent is the payload delivered by the billing collaborator webhook.
type BillingEvent struct {
	Type         string  `json:"type" validate:"required,oneof=checkout.completed invoice.paid subscription.canceled product.purchased"`
	EventID      string  `json:"eventId"`
	MemberID     string  `json:"memberId" validate:"required"`
	Amount       float64 `json:"amount,omitempty"`
	PeriodMonths int     `json:"periodMonths,omitempty"`
}
