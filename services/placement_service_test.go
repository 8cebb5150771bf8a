package services

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/fadeclub/fadeclub_backend/models"
	"github.com/fadeclub/fadeclub_backend/repositories"
)

type placementFixture struct {
	members   *repositories.MemoryMemberRepository
	matrix    *repositories.MemoryMatrixRepository
	settings  *repositories.MemorySettingsRepository
	logs      *repositories.MemoryPlacementLogRepository
	placement *PlacementService
}

func newPlacementFixture(t *testing.T, maxDepth int) *placementFixture {
	t.Helper()
	f := &placementFixture{
		members:  repositories.NewMemoryMemberRepository(),
		matrix:   repositories.NewMemoryMatrixRepository(),
		settings: repositories.NewMemorySettingsRepository(),
		logs:     repositories.NewMemoryPlacementLogRepository(),
	}
	settings := models.DefaultCommissionSettings()
	settings.MaxDepth = maxDepth
	require.NoError(t, f.settings.Update(context.Background(), &settings))
	f.placement = NewPlacementService(f.matrix, f.members, f.settings, f.logs)
	return f
}

func (f *placementFixture) addMember(t *testing.T, name string, referredBy *primitive.ObjectID) *models.Member {
	t.Helper()
	member := &models.Member{
		Email:      name + "@fadeclub.test",
		FullName:   name,
		UserType:   "member",
		IsActive:   true,
		ReferredBy: referredBy,
	}
	require.NoError(t, f.members.Insert(context.Background(), member))
	return member
}

func TestPlaceFirstMemberBecomesRoot(t *testing.T) {
	f := newPlacementFixture(t, 8)
	member := f.addMember(t, "root", nil)

	node, alreadyPlaced, err := f.placement.Place(context.Background(), member.ID, nil, "evt-1")
	require.NoError(t, err)
	assert.False(t, alreadyPlaced)
	assert.True(t, node.IsRoot())
	assert.Equal(t, 1, node.Level)
	assert.Equal(t, int64(1), node.PositionIndex)
}

func TestPlaceIsIdempotentPerMember(t *testing.T) {
	f := newPlacementFixture(t, 8)
	member := f.addMember(t, "root", nil)

	first, _, err := f.placement.Place(context.Background(), member.ID, nil, "evt-1")
	require.NoError(t, err)

	second, alreadyPlaced, err := f.placement.Place(context.Background(), member.ID, nil, "evt-2")
	require.NoError(t, err)
	assert.True(t, alreadyPlaced)
	assert.Equal(t, first.ID, second.ID)

	count, err := f.matrix.CountNodes(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestPlaceUnknownMemberFails(t *testing.T) {
	f := newPlacementFixture(t, 8)

	_, _, err := f.placement.Place(context.Background(), primitive.NewObjectID(), nil, "evt-1")
	assert.ErrorIs(t, err, models.ErrMissingDependency)
}

func TestPlacePacksBreadthFirstLeftToRight(t *testing.T) {
	f := newPlacementFixture(t, 4)
	ctx := context.Background()

	// Fill the first three levels completely: 1 + 3 + 9 nodes.
	nodes := make([]*models.MatrixNode, 0, 13)
	for i := 0; i < 13; i++ {
		member := f.addMember(t, fmt.Sprintf("member-%d", i), nil)
		node, alreadyPlaced, err := f.placement.Place(ctx, member.ID, nil, fmt.Sprintf("evt-%d", i))
		require.NoError(t, err)
		require.False(t, alreadyPlaced)
		nodes = append(nodes, node)
	}

	for i, node := range nodes {
		position := int64(i + 1)
		assert.Equal(t, position, node.PositionIndex, "position %d", position)
		assert.Equal(t, models.LevelForPosition(position), node.Level, "level at position %d", position)
	}

	// The root's slots fill left, middle, right in arrival order.
	root, err := f.matrix.FindRoot(ctx)
	require.NoError(t, err)
	require.NotNil(t, root.LeftID)
	require.NotNil(t, root.MiddleID)
	require.NotNil(t, root.RightID)
	assert.Equal(t, nodes[1].ID, *root.LeftID)
	assert.Equal(t, nodes[2].ID, *root.MiddleID)
	assert.Equal(t, nodes[3].ID, *root.RightID)

	// Level 3 hangs under level 2 in the same order: positions 5-7 under
	// position 2, 8-10 under position 3, 11-13 under position 4.
	for i := 4; i < 13; i++ {
		expectedParent := nodes[1+(i-4)/3]
		require.NotNil(t, nodes[i].ParentID)
		assert.Equal(t, expectedParent.ID, *nodes[i].ParentID, "parent of position %d", i+1)
	}
}

func TestPlaceSpilloverKeepsSponsor(t *testing.T) {
	f := newPlacementFixture(t, 8)
	ctx := context.Background()

	rootMember := f.addMember(t, "root", nil)
	_, _, err := f.placement.Place(ctx, rootMember.ID, nil, "evt-root")
	require.NoError(t, err)

	// Five signups all sponsored by the root member. The fifth overflows the
	// root's three slots and lands under the leftmost child.
	var fifth *models.MatrixNode
	for i := 0; i < 5; i++ {
		member := f.addMember(t, fmt.Sprintf("ref-%d", i), &rootMember.ID)
		node, _, err := f.placement.Place(ctx, member.ID, &rootMember.ID, fmt.Sprintf("evt-%d", i))
		require.NoError(t, err)
		fifth = node
	}

	rootNode, err := f.matrix.FindByOwner(ctx, rootMember.ID)
	require.NoError(t, err)

	require.NotNil(t, fifth.SponsorID)
	assert.Equal(t, rootMember.ID, *fifth.SponsorID)
	require.NotNil(t, fifth.ParentID)
	assert.NotEqual(t, rootNode.ID, *fifth.ParentID, "spillover node must hang below a different tree parent")
	assert.Equal(t, 3, fifth.Level)
}

func TestPlaceMatrixFull(t *testing.T) {
	f := newPlacementFixture(t, 2)
	ctx := context.Background()

	// Depth 2 holds 1 + 3 = 4 nodes.
	for i := 0; i < 4; i++ {
		member := f.addMember(t, fmt.Sprintf("member-%d", i), nil)
		_, _, err := f.placement.Place(ctx, member.ID, nil, fmt.Sprintf("evt-%d", i))
		require.NoError(t, err)
	}

	overflow := f.addMember(t, "overflow", nil)
	_, _, err := f.placement.Place(ctx, overflow.ID, nil, "evt-overflow")
	assert.ErrorIs(t, err, models.ErrMatrixFull)

	count, err := f.matrix.CountNodes(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(4), count)
}

// contentiousMatrixRepository fails AttachNode with ErrSlotTaken a fixed
// number of times before delegating, simulating concurrent claims stealing
// the slot the BFS found.
type contentiousMatrixRepository struct {
	*repositories.MemoryMatrixRepository
	conflicts int
}

func (r *contentiousMatrixRepository) AttachNode(ctx context.Context, node *models.MatrixNode, parentID primitive.ObjectID, slot int) error {
	if r.conflicts > 0 {
		r.conflicts--
		return models.ErrSlotTaken
	}
	return r.MemoryMatrixRepository.AttachNode(ctx, node, parentID, slot)
}

func TestPlaceRetriesAfterSlotConflict(t *testing.T) {
	f := newPlacementFixture(t, 8)
	ctx := context.Background()

	rootMember := f.addMember(t, "root", nil)
	_, _, err := f.placement.Place(ctx, rootMember.ID, nil, "evt-root")
	require.NoError(t, err)

	contended := &contentiousMatrixRepository{MemoryMatrixRepository: f.matrix, conflicts: 2}
	placement := NewPlacementService(contended, f.members, f.settings, f.logs)

	member := f.addMember(t, "latecomer", nil)
	node, alreadyPlaced, err := placement.Place(ctx, member.ID, nil, "evt-contended")
	require.NoError(t, err)
	assert.False(t, alreadyPlaced)
	assert.Equal(t, int64(2), node.PositionIndex)

	entries, err := f.logs.FindByMember(ctx, member.ID)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, 3, entries[0].Attempts)
}

func TestPlaceGivesUpAfterRepeatedConflicts(t *testing.T) {
	f := newPlacementFixture(t, 8)
	ctx := context.Background()

	rootMember := f.addMember(t, "root", nil)
	_, _, err := f.placement.Place(ctx, rootMember.ID, nil, "evt-root")
	require.NoError(t, err)

	contended := &contentiousMatrixRepository{MemoryMatrixRepository: f.matrix, conflicts: 100}
	placement := NewPlacementService(contended, f.members, f.settings, f.logs)

	member := f.addMember(t, "unlucky", nil)
	_, _, err = placement.Place(ctx, member.ID, nil, "evt-contended")
	assert.ErrorIs(t, err, models.ErrPlacementContention)
}

func TestPlaceWritesAuditLog(t *testing.T) {
	f := newPlacementFixture(t, 8)
	ctx := context.Background()

	rootMember := f.addMember(t, "root", nil)
	rootNode, _, err := f.placement.Place(ctx, rootMember.ID, nil, "evt-root")
	require.NoError(t, err)

	member := f.addMember(t, "second", &rootMember.ID)
	node, _, err := f.placement.Place(ctx, member.ID, &rootMember.ID, "evt-second")
	require.NoError(t, err)

	entries, err := f.logs.FindByMember(ctx, member.ID)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	entry := entries[0]
	assert.Equal(t, node.ID, entry.NodeID)
	require.NotNil(t, entry.ParentID)
	assert.Equal(t, rootNode.ID, *entry.ParentID)
	assert.Equal(t, "evt-second", entry.EventID)
	assert.Equal(t, int64(2), entry.PositionIndex)
	assert.Contains(t, entry.ChecksPassed, "slot_claimed")
}
