// models/matrix.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Matrix slot numbers. Slots are inspected and filled in this order.
const (
	SlotLeft   = 1
	SlotMiddle = 2
	SlotRight  = 3
)

// MatrixWidth is the fixed fan-out of the placement tree.
const MatrixWidth = 3

// MatrixNode is one position in the forced 3-wide matrix. Every member owns
// at most one node. Parent and slot describe where the node hangs in the
// tree; SponsorID is the referral relationship and can diverge from the tree
// parent under spillover. Child slots are set exactly once and never cleared.
type MatrixNode struct {
	ID            primitive.ObjectID  `json:"id,omitempty" bson:"_id,omitempty"`
	OwnerID       primitive.ObjectID  `json:"ownerId" bson:"ownerId"`
	ParentID      *primitive.ObjectID `json:"parentId,omitempty" bson:"parentId,omitempty"`
	SponsorID     *primitive.ObjectID `json:"sponsorId,omitempty" bson:"sponsorId,omitempty"`
	Level         int                 `json:"level" bson:"level"`
	Slot          int                 `json:"slot,omitempty" bson:"slot,omitempty"` // 0 for root
	LeftID        *primitive.ObjectID `json:"leftId,omitempty" bson:"leftId,omitempty"`
	MiddleID      *primitive.ObjectID `json:"middleId,omitempty" bson:"middleId,omitempty"`
	RightID       *primitive.ObjectID `json:"rightId,omitempty" bson:"rightId,omitempty"`
	PositionIndex int64               `json:"positionIndex" bson:"positionIndex"`
	CreatedAt     time.Time           `json:"createdAt" bson:"createdAt"`
}

// IsRoot reports whether the node is the tree root.
func (n *MatrixNode) IsRoot() bool {
	return n.ParentID == nil
}

// ChildID returns the child reference occupying the given slot.
func (n *MatrixNode) ChildID(slot int) *primitive.ObjectID {
	switch slot {
	case SlotLeft:
		return n.LeftID
	case SlotMiddle:
		return n.MiddleID
	case SlotRight:
		return n.RightID
	}
	return nil
}

// ChildIDs returns the occupied child references in left, middle, right order.
func (n *MatrixNode) ChildIDs() []primitive.ObjectID {
	ids := make([]primitive.ObjectID, 0, MatrixWidth)
	for _, slot := range []int{SlotLeft, SlotMiddle, SlotRight} {
		if id := n.ChildID(slot); id != nil {
			ids = append(ids, *id)
		}
	}
	return ids
}

// OpenSlot returns the first empty slot in left, middle, right order, or 0
// when all three are taken.
func (n *MatrixNode) OpenSlot() int {
	for _, slot := range []int{SlotLeft, SlotMiddle, SlotRight} {
		if n.ChildID(slot) == nil {
			return slot
		}
	}
	return 0
}

// SlotName maps a slot number to its name for responses and logs.
func SlotName(slot int) string {
	switch slot {
	case SlotLeft:
		return "left"
	case SlotMiddle:
		return "middle"
	case SlotRight:
		return "right"
	}
	return "root"
}

// LevelCapacity returns how many positions level holds: 3^(level-1).
func LevelCapacity(level int) int64 {
	if level < 1 {
		return 0
	}
	capacity := int64(1)
	for i := 1; i < level; i++ {
		capacity *= MatrixWidth
	}
	return capacity
}

// TreeCapacity returns the total number of positions in a tree of maxDepth
// levels: (3^maxDepth - 1) / 2.
func TreeCapacity(maxDepth int) int64 {
	total := int64(0)
	for level := 1; level <= maxDepth; level++ {
		total += LevelCapacity(level)
	}
	return total
}

// LevelForPosition derives the level a breadth-first position index lands on.
// Position 1 is the root; positions 2-4 are level 2, 5-13 level 3 and so on.
func LevelForPosition(position int64) int {
	if position < 1 {
		return 0
	}
	level := 1
	cumulative := LevelCapacity(1)
	for position > cumulative {
		level++
		cumulative += LevelCapacity(level)
	}
	return level
}

// PlacementLogEntry is the append-only forensic record written after each
// successful matrix insertion. Entries are never updated or deleted.
type PlacementLogEntry struct {
	ID            primitive.ObjectID  `json:"id,omitempty" bson:"_id,omitempty"`
	MemberID      primitive.ObjectID  `json:"memberId" bson:"memberId"`
	NodeID        primitive.ObjectID  `json:"nodeId" bson:"nodeId"`
	ParentID      *primitive.ObjectID `json:"parentId,omitempty" bson:"parentId,omitempty"`
	SponsorID     *primitive.ObjectID `json:"sponsorId,omitempty" bson:"sponsorId,omitempty"`
	Level         int                 `json:"level" bson:"level"`
	Slot          int                 `json:"slot" bson:"slot"`
	PositionIndex int64               `json:"positionIndex" bson:"positionIndex"`
	EventID       string              `json:"eventId" bson:"eventId"`
	Attempts      int                 `json:"attempts" bson:"attempts"` // BFS retries consumed by slot conflicts
	ChecksPassed  []string            `json:"checksPassed" bson:"checksPassed"`
	CreatedAt     time.Time           `json:"createdAt" bson:"createdAt"`
}

type PlacementRequest struct {
	MemberID  string `json:"memberId" validate:"required"`
	SponsorID string `json:"sponsorId,omitempty"`
}

type PlacementResult struct {
	NodeID        string `json:"nodeId"`
	Level         int    `json:"level"`
	Slot          string `json:"slot"`
	PositionIndex int64  `json:"positionIndex"`
	AlreadyPlaced bool   `json:"alreadyPlaced"`
}

// DownlineNode is the read-model returned by the downline/genealogy endpoint.
type DownlineNode struct {
	NodeID        string          `json:"nodeId"`
	MemberID      string          `json:"memberId"`
	FullName      string          `json:"fullName,omitempty"`
	Level         int             `json:"level"`
	Slot          string          `json:"slot"`
	PositionIndex int64           `json:"positionIndex"`
	Children      []*DownlineNode `json:"children,omitempty"`
}
