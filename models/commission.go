package models

import (
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Commission kinds
const (
	CommissionFastStart         = "fast_start"
	CommissionMatrixPlacement   = "matrix_placement"
	CommissionMatchingBonus     = "matching_bonus"
	CommissionLevelBonus        = "level_bonus"
	CommissionProductCommission = "product_commission"
)

// Commission statuses
const (
	CommissionPending  = "pending"
	CommissionPaid     = "paid"
	CommissionCanceled = "canceled"
)

// CommissionEvent is an immutable ledger row. Only Status, PaidAt and
// UpdatedAt ever change after insert, and only through the payout flow.
type CommissionEvent struct {
	ID             primitive.ObjectID `json:"id,omitempty" bson:"_id,omitempty"`
	BeneficiaryID  primitive.ObjectID `json:"beneficiaryId" bson:"beneficiaryId"`
	SourceID       primitive.ObjectID `json:"sourceId" bson:"sourceId"` // member whose action triggered the payment
	Kind           string             `json:"kind" bson:"kind"`
	Level          int                `json:"level,omitempty" bson:"level,omitempty"` // hop distance, 0 for non-level kinds
	Amount         float64            `json:"amount" bson:"amount"`
	EventID        string             `json:"eventId" bson:"eventId"` // triggering billing/placement event
	IdempotencyKey string             `json:"-" bson:"idempotencyKey"`
	Status         string             `json:"status" bson:"status"`
	CreatedAt      time.Time          `json:"createdAt" bson:"createdAt"`
	PaidAt         *time.Time         `json:"paidAt,omitempty" bson:"paidAt,omitempty"`
	UpdatedAt      time.Time          `json:"updatedAt" bson:"updatedAt"`
}

// CommissionIdempotencyKey builds the unique key that suppresses duplicate
// ledger rows when a billing webhook is redelivered.
func CommissionIdempotencyKey(eventID string, beneficiary primitive.ObjectID, kind string, level int, source primitive.ObjectID) string {
	return fmt.Sprintf("%s:%s:%s:%d:%s", eventID, beneficiary.Hex(), kind, level, source.Hex())
}

// CanTransition reports whether a ledger status change is allowed. Pending
// and paid convert both ways; canceled is terminal and only reachable from
// pending.
func CanTransition(from, to string) bool {
	switch from {
	case CommissionPending:
		return to == CommissionPaid || to == CommissionCanceled
	case CommissionPaid:
		return to == CommissionPending
	}
	return false
}

// CommissionSummary is the per-status aggregate returned alongside ledger
// listings.
type CommissionSummary struct {
	Status string  `json:"status" bson:"_id"`
	Count  int64   `json:"count" bson:"count"`
	Total  float64 `json:"total" bson:"total"`
}

type CommissionStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=pending paid canceled"`
}

type ProductPurchaseRequest struct {
	MemberID string  `json:"memberId" validate:"required"`
	Amount   float64 `json:"amount" validate:"required,gt=0"`
	EventID  string  `json:"eventId,omitempty"`
}
