package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// CommissionSettings holds the externally managed bonus configuration. It is
// stored as a single document and read fresh on every engine invocation so
// rate changes take effect without a deploy.
type CommissionSettings struct {
	ID                    primitive.ObjectID `json:"id,omitempty" bson:"_id,omitempty"`
	MaxDepth              int                `json:"maxDepth" bson:"maxDepth" validate:"required,gte=1,lte=12"`
	FastStartAmounts      []float64          `json:"fastStartAmounts" bson:"fastStartAmounts" validate:"required,len=3,dive,gte=0"`
	MatrixPlacementAmount float64            `json:"matrixPlacementAmount" bson:"matrixPlacementAmount" validate:"gte=0"`
	MatchingRates         []float64          `json:"matchingRates" bson:"matchingRates" validate:"required,len=2,dive,gte=0,lte=1"`
	LevelBonusAmount      float64            `json:"levelBonusAmount" bson:"levelBonusAmount" validate:"gte=0"`
	ProductCommissionRate float64            `json:"productCommissionRate" bson:"productCommissionRate" validate:"gte=0,lte=1"`
	UpdatedAt             time.Time          `json:"updatedAt" bson:"updatedAt"`
}

// DefaultCommissionSettings seeds the settings document on first boot.
func DefaultCommissionSettings() CommissionSettings {
	return CommissionSettings{
		MaxDepth:              8,
		FastStartAmounts:      []float64{25, 10, 5},
		MatrixPlacementAmount: 0.50,
		MatchingRates:         []float64{0.10, 0.05},
		LevelBonusAmount:      5,
		ProductCommissionRate: 0.20,
	}
}

// FastStartAmount returns the configured amount for a 1-based sponsor-chain
// level, or 0 when the level is outside the fast-start window.
func (s *CommissionSettings) FastStartAmount(level int) float64 {
	if level < 1 || level > len(s.FastStartAmounts) {
		return 0
	}
	return s.FastStartAmounts[level-1]
}

// MatchingRate returns the configured rate for a 1-based matching hop.
func (s *CommissionSettings) MatchingRate(hop int) float64 {
	if hop < 1 || hop > len(s.MatchingRates) {
		return 0
	}
	return s.MatchingRates[hop-1]
}
