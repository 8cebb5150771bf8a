package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/fadeclub/fadeclub_backend/models"
	"github.com/fadeclub/fadeclub_backend/repositories"
)

type commissionFixture struct {
	members     *repositories.MemoryMemberRepository
	matrix      *repositories.MemoryMatrixRepository
	ledger      *repositories.MemoryCommissionRepository
	settings    *repositories.MemorySettingsRepository
	placement   *PlacementService
	commissions *CommissionService
}

func newCommissionFixture(t *testing.T) *commissionFixture {
	t.Helper()
	f := &commissionFixture{
		members:  repositories.NewMemoryMemberRepository(),
		matrix:   repositories.NewMemoryMatrixRepository(),
		ledger:   repositories.NewMemoryCommissionRepository(),
		settings: repositories.NewMemorySettingsRepository(),
	}
	f.placement = NewPlacementService(f.matrix, f.members, f.settings, repositories.NewMemoryPlacementLogRepository())
	f.commissions = NewCommissionService(f.members, f.matrix, f.ledger, f.settings)
	return f
}

func (f *commissionFixture) addMember(t *testing.T, name string, referredBy *primitive.ObjectID) *models.Member {
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

func (f *commissionFixture) place(t *testing.T, member *models.Member, eventID string) *models.MatrixNode {
	t.Helper()
	node, _, err := f.placement.Place(context.Background(), member.ID, member.ReferredBy, eventID)
	require.NoError(t, err)
	return node
}

// referralChain builds members a <- b <- c <- d (each referring the next) and
// places them in order, so the matrix holds a as root with b, c, d as its
// children.
func (f *commissionFixture) referralChain(t *testing.T) (a, b, c, d *models.Member) {
	t.Helper()
	a = f.addMember(t, "a", nil)
	b = f.addMember(t, "b", &a.ID)
	c = f.addMember(t, "c", &b.ID)
	d = f.addMember(t, "d", &c.ID)
	f.place(t, a, "seed-a")
	f.place(t, b, "seed-b")
	f.place(t, c, "seed-c")
	f.place(t, d, "seed-d")
	return a, b, c, d
}

func eventsFor(events []models.CommissionEvent, beneficiary primitive.ObjectID, kind string) []models.CommissionEvent {
	var matched []models.CommissionEvent
	for _, event := range events {
		if event.BeneficiaryID == beneficiary && event.Kind == kind {
			matched = append(matched, event)
		}
	}
	return matched
}

func singleAmount(t *testing.T, events []models.CommissionEvent, beneficiary primitive.ObjectID, kind string) float64 {
	t.Helper()
	matched := eventsFor(events, beneficiary, kind)
	require.Len(t, matched, 1, "expected one %s row for %s", kind, beneficiary.Hex())
	return matched[0].Amount
}

func TestOnMemberPlacedFastStartThreeLevels(t *testing.T) {
	f := newCommissionFixture(t)
	ctx := context.Background()
	a, b, c, d := f.referralChain(t)

	e := f.addMember(t, "e", &d.ID)
	node := f.place(t, e, "evt-e")

	events, err := f.commissions.OnMemberPlaced(ctx, e.ID, &d.ID, node, "evt-e")
	require.NoError(t, err)

	assert.Equal(t, 25.0, singleAmount(t, events, d.ID, models.CommissionFastStart))
	assert.Equal(t, 10.0, singleAmount(t, events, c.ID, models.CommissionFastStart))
	assert.Equal(t, 5.0, singleAmount(t, events, b.ID, models.CommissionFastStart))
	// The chain is four deep but fast start stops after three hops.
	assert.Empty(t, eventsFor(events, a.ID, models.CommissionFastStart))
}

func TestOnMemberPlacedInactiveSponsorSkippedButWalkContinues(t *testing.T) {
	f := newCommissionFixture(t)
	ctx := context.Background()
	_, b, c, d := f.referralChain(t)
	require.NoError(t, f.members.SetActive(ctx, c.ID, false))

	e := f.addMember(t, "e", &d.ID)
	node := f.place(t, e, "evt-e")

	events, err := f.commissions.OnMemberPlaced(ctx, e.ID, &d.ID, node, "evt-e")
	require.NoError(t, err)

	assert.Equal(t, 25.0, singleAmount(t, events, d.ID, models.CommissionFastStart))
	assert.Empty(t, eventsFor(events, c.ID, models.CommissionFastStart), "inactive sponsor earns nothing")
	// c is skipped, not a wall: b still collects the level-3 amount.
	assert.Equal(t, 5.0, singleAmount(t, events, b.ID, models.CommissionFastStart))
}

func TestOnMemberPlacedMatrixBonusFollowsTreeParents(t *testing.T) {
	f := newCommissionFixture(t)
	ctx := context.Background()
	a, b, c, d := f.referralChain(t)

	// e spills over: sponsored by d but attached under b, the root's leftmost
	// child.
	e := f.addMember(t, "e", &d.ID)
	node := f.place(t, e, "evt-e")
	require.NotNil(t, node.ParentID)

	events, err := f.commissions.OnMemberPlaced(ctx, e.ID, &d.ID, node, "evt-e")
	require.NoError(t, err)

	// Tree ancestors are b then a; the referral-only ancestors c and d get no
	// matrix bonus.
	assert.Equal(t, 0.50, singleAmount(t, events, b.ID, models.CommissionMatrixPlacement))
	assert.Equal(t, 0.50, singleAmount(t, events, a.ID, models.CommissionMatrixPlacement))
	assert.Empty(t, eventsFor(events, c.ID, models.CommissionMatrixPlacement))
	assert.Empty(t, eventsFor(events, d.ID, models.CommissionMatrixPlacement))
}

func TestOnMemberPlacedMatchingBonusUsesPerEventBasis(t *testing.T) {
	f := newCommissionFixture(t)
	ctx := context.Background()
	a, _, c, d := f.referralChain(t)

	e := f.addMember(t, "e", &d.ID)
	node := f.place(t, e, "evt-e")

	events, err := f.commissions.OnMemberPlaced(ctx, e.ID, &d.ID, node, "evt-e")
	require.NoError(t, err)

	// d earned 25 from this event; d's sponsor c matches 10% of it and
	// grand-sponsor b 5%.
	dMatches := eventsFor(events, c.ID, models.CommissionMatchingBonus)
	require.NotEmpty(t, dMatches)
	foundTenPercent := false
	for _, event := range dMatches {
		if event.Amount == 2.5 {
			foundTenPercent = true
		}
	}
	assert.True(t, foundTenPercent, "c should match 10%% of d's 25.00")

	// b earned 5 (fast start) + 0.50 (matrix) = 5.50 from this event; b's
	// sponsor a matches 10% of that.
	aMatches := eventsFor(events, a.ID, models.CommissionMatchingBonus)
	foundMatchOnB := false
	for _, event := range aMatches {
		if event.Amount == 0.55 {
			foundMatchOnB = true
		}
	}
	assert.True(t, foundMatchOnB, "a should match 10%% of b's 5.50")
}

func TestOnMemberPlacedRedeliveryPaysNothingTwice(t *testing.T) {
	f := newCommissionFixture(t)
	ctx := context.Background()
	_, _, _, d := f.referralChain(t)

	e := f.addMember(t, "e", &d.ID)
	node := f.place(t, e, "evt-e")

	first, err := f.commissions.OnMemberPlaced(ctx, e.ID, &d.ID, node, "evt-e")
	require.NoError(t, err)
	require.NotEmpty(t, first)

	second, err := f.commissions.OnMemberPlaced(ctx, e.ID, &d.ID, node, "evt-e")
	require.NoError(t, err)
	assert.Empty(t, second, "redelivered event must not create new rows")

	all, err := f.ledger.List(ctx, "", 0)
	require.NoError(t, err)
	assert.Len(t, all, len(first))
}

func TestOnRenewalPaysDirectSponsorOnly(t *testing.T) {
	f := newCommissionFixture(t)
	ctx := context.Background()
	_, b, c, d := f.referralChain(t)

	events, err := f.commissions.OnRenewal(ctx, d.ID, "inv-1")
	require.NoError(t, err)

	require.Len(t, events, 1)
	assert.Empty(t, eventsFor(events, b.ID, models.CommissionLevelBonus), "renewal bonus reaches one level only")
	assert.Equal(t, c.ID, events[0].BeneficiaryID)
	assert.Equal(t, models.CommissionLevelBonus, events[0].Kind)
	assert.Equal(t, 5.0, events[0].Amount)
	assert.Equal(t, 1, events[0].Level)
}

func TestOnRenewalInactiveSponsorEarnsNothing(t *testing.T) {
	f := newCommissionFixture(t)
	ctx := context.Background()
	_, _, c, d := f.referralChain(t)
	require.NoError(t, f.members.SetActive(ctx, c.ID, false))

	events, err := f.commissions.OnRenewal(ctx, d.ID, "inv-1")
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestOnRenewalRedeliverySuppressed(t *testing.T) {
	f := newCommissionFixture(t)
	ctx := context.Background()
	_, _, _, d := f.referralChain(t)

	first, err := f.commissions.OnRenewal(ctx, d.ID, "inv-1")
	require.NoError(t, err)
	require.Len(t, first, 1)

	second, err := f.commissions.OnRenewal(ctx, d.ID, "inv-1")
	require.NoError(t, err)
	assert.Empty(t, second)
}

func TestOnProductPurchasePaysSponsorCut(t *testing.T) {
	f := newCommissionFixture(t)
	ctx := context.Background()
	_, _, c, d := f.referralChain(t)

	events, err := f.commissions.OnProductPurchase(ctx, d.ID, 100, "sale-1")
	require.NoError(t, err)

	require.Len(t, events, 1)
	assert.Equal(t, c.ID, events[0].BeneficiaryID)
	assert.Equal(t, models.CommissionProductCommission, events[0].Kind)
	assert.Equal(t, 20.0, events[0].Amount)
}

func TestOnProductPurchaseWithoutSponsor(t *testing.T) {
	f := newCommissionFixture(t)
	ctx := context.Background()
	solo := f.addMember(t, "solo", nil)

	events, err := f.commissions.OnProductPurchase(ctx, solo.ID, 100, "sale-1")
	require.NoError(t, err)
	assert.Empty(t, events)
}
