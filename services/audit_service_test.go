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

// staticMatrixRepository serves a fixed node set, letting tests hand the
// auditor corrupted tree shapes the write path would never produce.
type staticMatrixRepository struct {
	nodes []*models.MatrixNode
}

func (r *staticMatrixRepository) FindByID(_ context.Context, id primitive.ObjectID) (*models.MatrixNode, error) {
	for _, node := range r.nodes {
		if node.ID == id {
			return node, nil
		}
	}
	return nil, models.ErrNodeNotFound
}

func (r *staticMatrixRepository) FindByOwner(_ context.Context, ownerID primitive.ObjectID) (*models.MatrixNode, error) {
	for _, node := range r.nodes {
		if node.OwnerID == ownerID {
			return node, nil
		}
	}
	return nil, models.ErrNodeNotFound
}

func (r *staticMatrixRepository) FindRoot(_ context.Context) (*models.MatrixNode, error) {
	for _, node := range r.nodes {
		if node.ParentID == nil {
			return node, nil
		}
	}
	return nil, models.ErrNodeNotFound
}

func (r *staticMatrixRepository) FindByIDs(ctx context.Context, ids []primitive.ObjectID) ([]*models.MatrixNode, error) {
	var found []*models.MatrixNode
	for _, id := range ids {
		if node, err := r.FindByID(ctx, id); err == nil {
			found = append(found, node)
		}
	}
	return found, nil
}

func (r *staticMatrixRepository) FindAll(_ context.Context) ([]*models.MatrixNode, error) {
	return r.nodes, nil
}

func (r *staticMatrixRepository) CountNodes(_ context.Context) (int64, error) {
	return int64(len(r.nodes)), nil
}

func (r *staticMatrixRepository) CountBelow(_ context.Context, position int64) (int64, error) {
	var count int64
	for _, node := range r.nodes {
		if node.PositionIndex < position {
			count++
		}
	}
	return count, nil
}

func (r *staticMatrixRepository) CreateRoot(_ context.Context, _ *models.MatrixNode) error {
	panic("static repository is read-only")
}

func (r *staticMatrixRepository) AttachNode(_ context.Context, _ *models.MatrixNode, _ primitive.ObjectID, _ int) error {
	panic("static repository is read-only")
}

// buildTree places count members through the real placement path so audits
// run against tree shapes production would produce.
func buildTree(t *testing.T, count int) (*repositories.MemoryMatrixRepository, *repositories.MemorySettingsRepository, []*models.MatrixNode) {
	t.Helper()
	ctx := context.Background()
	members := repositories.NewMemoryMemberRepository()
	matrix := repositories.NewMemoryMatrixRepository()
	settings := repositories.NewMemorySettingsRepository()
	placement := NewPlacementService(matrix, members, settings, repositories.NewMemoryPlacementLogRepository())

	nodes := make([]*models.MatrixNode, 0, count)
	for i := 0; i < count; i++ {
		member := &models.Member{
			Email:    fmt.Sprintf("member-%d@fadeclub.test", i),
			FullName: fmt.Sprintf("member-%d", i),
			UserType: "member",
			IsActive: true,
		}
		require.NoError(t, members.Insert(ctx, member))
		node, _, err := placement.Place(ctx, member.ID, nil, fmt.Sprintf("evt-%d", i))
		require.NoError(t, err)
		nodes = append(nodes, node)
	}
	return matrix, settings, nodes
}

func TestVerifyNodePassesOnHealthyTree(t *testing.T) {
	matrix, settings, nodes := buildTree(t, 7)
	audit := NewAuditService(matrix, settings)

	for _, node := range nodes {
		result, err := audit.VerifyNode(context.Background(), node.ID)
		require.NoError(t, err)
		assert.True(t, result.Passed, "node at position %d: %+v", node.PositionIndex, result.Checks)
		assert.Len(t, result.Checks, 6)
	}
}

func TestVerifyNodeUnknownNode(t *testing.T) {
	matrix, settings, _ := buildTree(t, 1)
	audit := NewAuditService(matrix, settings)

	_, err := audit.VerifyNode(context.Background(), primitive.NewObjectID())
	assert.ErrorIs(t, err, models.ErrNodeNotFound)
}

func TestVerifyNodeDetectsLevelMismatch(t *testing.T) {
	rootID := primitive.NewObjectID()
	childID := primitive.NewObjectID()
	root := &models.MatrixNode{
		ID:            rootID,
		OwnerID:       primitive.NewObjectID(),
		Level:         1,
		PositionIndex: 1,
		LeftID:        &childID,
	}
	// Stored level disagrees with both the parent link and the position.
	child := &models.MatrixNode{
		ID:            childID,
		OwnerID:       primitive.NewObjectID(),
		ParentID:      &rootID,
		Level:         4,
		Slot:          models.SlotLeft,
		PositionIndex: 2,
	}
	audit := NewAuditService(&staticMatrixRepository{nodes: []*models.MatrixNode{root, child}}, repositories.NewMemorySettingsRepository())

	result, err := audit.VerifyNode(context.Background(), childID)
	require.NoError(t, err)
	assert.False(t, result.Passed)

	failed := make(map[string]bool)
	for _, check := range result.Checks {
		if !check.Passed {
			failed[check.Name] = true
		}
	}
	assert.True(t, failed["parent_link"])
	assert.True(t, failed["position_level"])
}

func TestFullAuditHealthyTree(t *testing.T) {
	matrix, settings, _ := buildTree(t, 13)
	audit := NewAuditService(matrix, settings)

	report, err := audit.RunFullIntegrityAudit(context.Background())
	require.NoError(t, err)

	assert.Equal(t, models.HealthHealthy, report.Health)
	assert.Equal(t, int64(13), report.TotalNodes)
	assert.Equal(t, int64(13), report.MaxPosition)
	assert.Empty(t, report.Holes)
	assert.Empty(t, report.DuplicatePositions)
	assert.Empty(t, report.Orphans)
	assert.Empty(t, report.Cycles)

	require.Len(t, report.LevelCounts, 3)
	assert.Equal(t, int64(1), report.LevelCounts[0].Count)
	assert.Equal(t, int64(3), report.LevelCounts[1].Count)
	assert.Equal(t, int64(9), report.LevelCounts[2].Count)
	assert.Equal(t, int64(9), report.LevelCounts[2].Capacity)
}

func TestFullAuditEmptyTree(t *testing.T) {
	audit := NewAuditService(&staticMatrixRepository{}, repositories.NewMemorySettingsRepository())

	report, err := audit.RunFullIntegrityAudit(context.Background())
	require.NoError(t, err)
	assert.Equal(t, models.HealthHealthy, report.Health)
	assert.Zero(t, report.TotalNodes)
}

func TestFullAuditReportsHoleAsCritical(t *testing.T) {
	rootID := primitive.NewObjectID()
	nodes := []*models.MatrixNode{
		{ID: rootID, OwnerID: primitive.NewObjectID(), Level: 1, PositionIndex: 1},
		// Position 2 is missing.
		{ID: primitive.NewObjectID(), OwnerID: primitive.NewObjectID(), ParentID: &rootID, Level: 2, Slot: models.SlotMiddle, PositionIndex: 3},
	}
	audit := NewAuditService(&staticMatrixRepository{nodes: nodes}, repositories.NewMemorySettingsRepository())

	report, err := audit.RunFullIntegrityAudit(context.Background())
	require.NoError(t, err)
	assert.Equal(t, models.HealthCritical, report.Health)
	assert.Equal(t, []int64{2}, report.Holes)
}

func TestFullAuditReportsDuplicatePositionAsCritical(t *testing.T) {
	rootID := primitive.NewObjectID()
	nodes := []*models.MatrixNode{
		{ID: rootID, OwnerID: primitive.NewObjectID(), Level: 1, PositionIndex: 1},
		{ID: primitive.NewObjectID(), OwnerID: primitive.NewObjectID(), ParentID: &rootID, Level: 2, Slot: models.SlotLeft, PositionIndex: 2},
		{ID: primitive.NewObjectID(), OwnerID: primitive.NewObjectID(), ParentID: &rootID, Level: 2, Slot: models.SlotMiddle, PositionIndex: 2},
	}
	audit := NewAuditService(&staticMatrixRepository{nodes: nodes}, repositories.NewMemorySettingsRepository())

	report, err := audit.RunFullIntegrityAudit(context.Background())
	require.NoError(t, err)
	assert.Equal(t, models.HealthCritical, report.Health)
	assert.Equal(t, []int64{2}, report.DuplicatePositions)
}

func TestFullAuditReportsOrphanAsWarning(t *testing.T) {
	rootID := primitive.NewObjectID()
	ghostParent := primitive.NewObjectID()
	orphanID := primitive.NewObjectID()
	nodes := []*models.MatrixNode{
		{ID: rootID, OwnerID: primitive.NewObjectID(), Level: 1, PositionIndex: 1},
		{ID: orphanID, OwnerID: primitive.NewObjectID(), ParentID: &ghostParent, Level: 2, Slot: models.SlotLeft, PositionIndex: 2},
	}
	audit := NewAuditService(&staticMatrixRepository{nodes: nodes}, repositories.NewMemorySettingsRepository())

	report, err := audit.RunFullIntegrityAudit(context.Background())
	require.NoError(t, err)
	assert.Equal(t, models.HealthWarning, report.Health)
	assert.Equal(t, []string{orphanID.Hex()}, report.Orphans)
}

func TestFullAuditReportsCycleAsCritical(t *testing.T) {
	firstID := primitive.NewObjectID()
	secondID := primitive.NewObjectID()
	nodes := []*models.MatrixNode{
		{ID: firstID, OwnerID: primitive.NewObjectID(), ParentID: &secondID, Level: 1, PositionIndex: 1},
		{ID: secondID, OwnerID: primitive.NewObjectID(), ParentID: &firstID, Level: 2, Slot: models.SlotLeft, PositionIndex: 2},
	}
	audit := NewAuditService(&staticMatrixRepository{nodes: nodes}, repositories.NewMemorySettingsRepository())

	report, err := audit.RunFullIntegrityAudit(context.Background())
	require.NoError(t, err)
	assert.Equal(t, models.HealthCritical, report.Health)
	assert.NotEmpty(t, report.Cycles)
}
