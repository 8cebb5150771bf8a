package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestLevelCapacity(t *testing.T) {
	assert.Equal(t, int64(0), LevelCapacity(0))
	assert.Equal(t, int64(1), LevelCapacity(1))
	assert.Equal(t, int64(3), LevelCapacity(2))
	assert.Equal(t, int64(9), LevelCapacity(3))
	assert.Equal(t, int64(2187), LevelCapacity(8))
}

func TestTreeCapacity(t *testing.T) {
	assert.Equal(t, int64(1), TreeCapacity(1))
	assert.Equal(t, int64(4), TreeCapacity(2))
	assert.Equal(t, int64(13), TreeCapacity(3))
	// (3^8 - 1) / 2
	assert.Equal(t, int64(3280), TreeCapacity(8))
}

func TestLevelForPosition(t *testing.T) {
	cases := []struct {
		position int64
		level    int
	}{
		{1, 1},
		{2, 2}, {4, 2},
		{5, 3}, {13, 3},
		{14, 4}, {40, 4},
		{41, 5},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.level, LevelForPosition(tc.position), "position %d", tc.position)
	}
	assert.Equal(t, 0, LevelForPosition(0))
}

func TestOpenSlotOrder(t *testing.T) {
	node := &MatrixNode{}
	assert.Equal(t, SlotLeft, node.OpenSlot())

	id := primitive.NewObjectID()
	node.LeftID = &id
	assert.Equal(t, SlotMiddle, node.OpenSlot())

	node.MiddleID = &id
	assert.Equal(t, SlotRight, node.OpenSlot())

	node.RightID = &id
	assert.Equal(t, 0, node.OpenSlot())
}

func TestSlotName(t *testing.T) {
	assert.Equal(t, "left", SlotName(SlotLeft))
	assert.Equal(t, "middle", SlotName(SlotMiddle))
	assert.Equal(t, "right", SlotName(SlotRight))
	assert.Equal(t, "root", SlotName(0))
}
