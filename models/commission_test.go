package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestCanTransition(t *testing.T) {
	assert.True(t, CanTransition(CommissionPending, CommissionPaid))
	assert.True(t, CanTransition(CommissionPending, CommissionCanceled))
	assert.True(t, CanTransition(CommissionPaid, CommissionPending))

	assert.False(t, CanTransition(CommissionPaid, CommissionCanceled))
	assert.False(t, CanTransition(CommissionCanceled, CommissionPending))
	assert.False(t, CanTransition(CommissionCanceled, CommissionPaid))
	assert.False(t, CanTransition(CommissionPending, CommissionPending))
}

func TestCommissionIdempotencyKeyDistinguishesDimensions(t *testing.T) {
	beneficiary := primitive.NewObjectID()
	source := primitive.NewObjectID()

	base := CommissionIdempotencyKey("evt-1", beneficiary, CommissionFastStart, 1, source)

	assert.NotEqual(t, base, CommissionIdempotencyKey("evt-2", beneficiary, CommissionFastStart, 1, source))
	assert.NotEqual(t, base, CommissionIdempotencyKey("evt-1", primitive.NewObjectID(), CommissionFastStart, 1, source))
	assert.NotEqual(t, base, CommissionIdempotencyKey("evt-1", beneficiary, CommissionMatchingBonus, 1, source))
	assert.NotEqual(t, base, CommissionIdempotencyKey("evt-1", beneficiary, CommissionFastStart, 2, source))

	// Same inputs always produce the same key.
	assert.Equal(t, base, CommissionIdempotencyKey("evt-1", beneficiary, CommissionFastStart, 1, source))
}

func TestFastStartAmountWindow(t *testing.T) {
	settings := DefaultCommissionSettings()
	assert.Equal(t, 25.0, settings.FastStartAmount(1))
	assert.Equal(t, 10.0, settings.FastStartAmount(2))
	assert.Equal(t, 5.0, settings.FastStartAmount(3))
	assert.Equal(t, 0.0, settings.FastStartAmount(0))
	assert.Equal(t, 0.0, settings.FastStartAmount(4))
}

func TestMatchingRateWindow(t *testing.T) {
	settings := DefaultCommissionSettings()
	assert.Equal(t, 0.10, settings.MatchingRate(1))
	assert.Equal(t, 0.05, settings.MatchingRate(2))
	assert.Equal(t, 0.0, settings.MatchingRate(0))
	assert.Equal(t, 0.0, settings.MatchingRate(3))
}
