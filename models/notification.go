package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Notification model
type Notification struct {
	ID        primitive.ObjectID `json:"id,omitempty" bson:"_id,omitempty"`
	UserID    primitive.ObjectID `json:"userId" bson:"userId"`
	Title     string             `json:"title" bson:"title"`
	Message   string             `json:"message" bson:"message"`
	Type      string             `json:"type" bson:"type"` // e.g. "commission_earned", "placement_completed"
	Data      interface{}        `json:"data,omitempty" bson:"data"`
	IsRead    bool               `json:"isRead" bson:"isRead"`
	CreatedAt time.Time          `json:"createdAt" bson:"createdAt"`
}
