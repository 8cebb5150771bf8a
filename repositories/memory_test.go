package repositories

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/fadeclub/fadeclub_backend/models"
)

func TestMemoryMatrixCreateRootOnce(t *testing.T) {
	repo := NewMemoryMatrixRepository()
	ctx := context.Background()

	first := &models.MatrixNode{OwnerID: primitive.NewObjectID()}
	require.NoError(t, repo.CreateRoot(ctx, first))
	assert.Equal(t, 1, first.Level)
	assert.Equal(t, int64(1), first.PositionIndex)

	second := &models.MatrixNode{OwnerID: primitive.NewObjectID()}
	assert.ErrorIs(t, repo.CreateRoot(ctx, second), models.ErrSlotTaken)
}

func TestMemoryMatrixAttachNodeClaimsSlotOnce(t *testing.T) {
	repo := NewMemoryMatrixRepository()
	ctx := context.Background()

	root := &models.MatrixNode{OwnerID: primitive.NewObjectID()}
	require.NoError(t, repo.CreateRoot(ctx, root))

	first := &models.MatrixNode{OwnerID: primitive.NewObjectID(), Level: 2}
	require.NoError(t, repo.AttachNode(ctx, first, root.ID, models.SlotLeft))
	assert.Equal(t, int64(2), first.PositionIndex)
	assert.Equal(t, models.SlotLeft, first.Slot)

	// The same slot cannot be claimed twice.
	loser := &models.MatrixNode{OwnerID: primitive.NewObjectID(), Level: 2}
	assert.ErrorIs(t, repo.AttachNode(ctx, loser, root.ID, models.SlotLeft), models.ErrSlotTaken)

	// The same owner cannot gain a second node.
	duplicate := &models.MatrixNode{OwnerID: first.OwnerID, Level: 2}
	assert.ErrorIs(t, repo.AttachNode(ctx, duplicate, root.ID, models.SlotMiddle), models.ErrAlreadyPlaced)

	// Parent back-reference is written with the claim.
	reloaded, err := repo.FindByID(ctx, root.ID)
	require.NoError(t, err)
	require.NotNil(t, reloaded.LeftID)
	assert.Equal(t, first.ID, *reloaded.LeftID)
	assert.Nil(t, reloaded.MiddleID)
}

func TestMemoryMatrixPositionsAreGapless(t *testing.T) {
	repo := NewMemoryMatrixRepository()
	ctx := context.Background()

	root := &models.MatrixNode{OwnerID: primitive.NewObjectID()}
	require.NoError(t, repo.CreateRoot(ctx, root))
	for i, slot := range []int{models.SlotLeft, models.SlotMiddle, models.SlotRight} {
		node := &models.MatrixNode{OwnerID: primitive.NewObjectID(), Level: 2}
		require.NoError(t, repo.AttachNode(ctx, node, root.ID, slot))
		assert.Equal(t, int64(i+2), node.PositionIndex)
	}

	below, err := repo.CountBelow(ctx, 4)
	require.NoError(t, err)
	assert.Equal(t, int64(3), below)
}

func TestMemoryCommissionDuplicateKeyRejected(t *testing.T) {
	repo := NewMemoryCommissionRepository()
	ctx := context.Background()

	event := models.CommissionEvent{
		BeneficiaryID: primitive.NewObjectID(),
		SourceID:      primitive.NewObjectID(),
		Kind:          models.CommissionFastStart,
		Level:         1,
		Amount:        25,
		EventID:       "evt-1",
	}
	require.NoError(t, repo.Insert(ctx, &event))
	assert.Equal(t, models.CommissionPending, event.Status)

	replay := models.CommissionEvent{
		BeneficiaryID: event.BeneficiaryID,
		SourceID:      event.SourceID,
		Kind:          event.Kind,
		Level:         event.Level,
		Amount:        event.Amount,
		EventID:       event.EventID,
	}
	assert.ErrorIs(t, repo.Insert(ctx, &replay), models.ErrDuplicateCommission)
}

func TestMemoryCommissionStatusTransitions(t *testing.T) {
	repo := NewMemoryCommissionRepository()
	ctx := context.Background()

	event := models.CommissionEvent{
		BeneficiaryID: primitive.NewObjectID(),
		SourceID:      primitive.NewObjectID(),
		Kind:          models.CommissionLevelBonus,
		Level:         1,
		Amount:        5,
		EventID:       "inv-1",
	}
	require.NoError(t, repo.Insert(ctx, &event))

	paid, err := repo.UpdateStatus(ctx, event.ID, models.CommissionPaid)
	require.NoError(t, err)
	assert.Equal(t, models.CommissionPaid, paid.Status)
	assert.NotNil(t, paid.PaidAt)

	// Paid cannot be canceled directly.
	_, err = repo.UpdateStatus(ctx, event.ID, models.CommissionCanceled)
	assert.ErrorIs(t, err, models.ErrInvalidStatusChange)

	// Reopening clears the paid timestamp.
	reopened, err := repo.UpdateStatus(ctx, event.ID, models.CommissionPending)
	require.NoError(t, err)
	assert.Nil(t, reopened.PaidAt)

	canceled, err := repo.UpdateStatus(ctx, event.ID, models.CommissionCanceled)
	require.NoError(t, err)
	assert.Equal(t, models.CommissionCanceled, canceled.Status)
}

func TestMemoryMemberExpireLapsed(t *testing.T) {
	repo := NewMemoryMemberRepository()
	ctx := context.Background()
	now := time.Now()

	lapsed := &models.Member{Email: "lapsed@fadeclub.test", UserType: "member"}
	require.NoError(t, repo.Insert(ctx, lapsed))
	require.NoError(t, repo.RecordRenewal(ctx, lapsed.ID, now.Add(-time.Hour), 30))

	current := &models.Member{Email: "current@fadeclub.test", UserType: "member"}
	require.NoError(t, repo.Insert(ctx, current))
	require.NoError(t, repo.RecordRenewal(ctx, current.ID, now.Add(30*24*time.Hour), 30))

	expired, err := repo.ExpireLapsed(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, int64(1), expired)

	reloaded, err := repo.FindByID(ctx, lapsed.ID)
	require.NoError(t, err)
	assert.False(t, reloaded.IsActive)

	stillActive, err := repo.FindByID(ctx, current.ID)
	require.NoError(t, err)
	assert.True(t, stillActive.IsActive)
}
