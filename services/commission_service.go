// services/commission_service.go
package services

import (
	"context"
	"fmt"
	"log"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/fadeclub/fadeclub_backend/models"
	"github.com/fadeclub/fadeclub_backend/repositories"
)

// CommissionService records ledger rows for the bonus programs. Every insert
// commits on its own and carries an idempotency key, so a redelivered billing
// event re-runs the computation without paying anyone twice. A missing
// profile mid-walk aborts the remainder of that walk only; rows already
// recorded stay recorded.
type CommissionService struct {
	members  repositories.MemberRepository
	matrix   repositories.MatrixRepository
	ledger   repositories.CommissionRepository
	settings repositories.SettingsRepository
}

func NewCommissionService(members repositories.MemberRepository, matrix repositories.MatrixRepository, ledger repositories.CommissionRepository, settings repositories.SettingsRepository) *CommissionService {
	return &CommissionService{members: members, matrix: matrix, ledger: ledger, settings: settings}
}

// OnMemberPlaced runs the one-time bonuses for a fresh placement: fast-start
// up the sponsor chain, matrix-placement up the tree parent chain, then
// matching bonuses on top of what those two paid out. Returns the rows it
// recorded so callers can notify beneficiaries.
func (s *CommissionService) OnMemberPlaced(ctx context.Context, memberID primitive.ObjectID, sponsorID *primitive.ObjectID, node *models.MatrixNode, eventID string) ([]models.CommissionEvent, error) {
	settings, err := s.settings.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: commission settings", models.ErrMissingDependency)
	}

	var recorded []models.CommissionEvent
	earned := make(map[primitive.ObjectID]float64)
	var earnOrder []primitive.ObjectID

	credit := func(event models.CommissionEvent) {
		inserted, err := s.record(ctx, event)
		if err != nil {
			log.Printf("Warning: failed to record %s commission for %s: %v", event.Kind, event.BeneficiaryID.Hex(), err)
			return
		}
		if inserted != nil {
			recorded = append(recorded, *inserted)
		}
		// Duplicates still count toward the matching basis: the amounts are
		// identical on a redelivery and the matching rows have their own
		// idempotency keys.
		if _, seen := earned[event.BeneficiaryID]; !seen {
			earnOrder = append(earnOrder, event.BeneficiaryID)
		}
		earned[event.BeneficiaryID] += event.Amount
	}

	s.payFastStart(ctx, memberID, sponsorID, settings, eventID, credit)
	s.payMatrixPlacement(ctx, memberID, node, settings, eventID, credit)
	matching := s.payMatching(ctx, memberID, earnOrder, earned, settings, eventID)
	recorded = append(recorded, matching...)

	return recorded, nil
}

// payFastStart walks the referral chain up to 3 hops. An inactive ancestor
// earns nothing but does not stop the walk; the chain ending or a read
// failure does.
func (s *CommissionService) payFastStart(ctx context.Context, memberID primitive.ObjectID, sponsorID *primitive.ObjectID, settings *models.CommissionSettings, eventID string, credit func(models.CommissionEvent)) {
	current := sponsorID
	for level := 1; level <= len(settings.FastStartAmounts) && current != nil; level++ {
		sponsor, err := s.members.FindByID(ctx, *current)
		if err != nil {
			log.Printf("Warning: fast-start walk aborted at level %d for member %s: %v", level, memberID.Hex(), err)
			return
		}
		if amount := settings.FastStartAmount(level); sponsor.IsActive && amount > 0 {
			credit(models.CommissionEvent{
				BeneficiaryID: sponsor.ID,
				SourceID:      memberID,
				Kind:          models.CommissionFastStart,
				Level:         level,
				Amount:        amount,
				EventID:       eventID,
			})
		}
		current = sponsor.ReferredBy
	}
}

// payMatrixPlacement walks the tree parent chain up to the configured depth
// and pays the flat per-placement amount to every active ancestor.
func (s *CommissionService) payMatrixPlacement(ctx context.Context, memberID primitive.ObjectID, node *models.MatrixNode, settings *models.CommissionSettings, eventID string, credit func(models.CommissionEvent)) {
	if node == nil || settings.MatrixPlacementAmount <= 0 {
		return
	}
	current := node.ParentID
	for hop := 1; hop <= settings.MaxDepth && current != nil; hop++ {
		ancestor, err := s.matrix.FindByID(ctx, *current)
		if err != nil {
			log.Printf("Warning: matrix-bonus walk aborted at hop %d for member %s: %v", hop, memberID.Hex(), err)
			return
		}
		owner, err := s.members.FindByID(ctx, ancestor.OwnerID)
		if err != nil {
			log.Printf("Warning: matrix-bonus walk aborted at hop %d for member %s: %v", hop, memberID.Hex(), err)
			return
		}
		if owner.IsActive {
			credit(models.CommissionEvent{
				BeneficiaryID: owner.ID,
				SourceID:      memberID,
				Kind:          models.CommissionMatrixPlacement,
				Level:         hop,
				Amount:        settings.MatrixPlacementAmount,
				EventID:       eventID,
			})
		}
		current = ancestor.ParentID
	}
}

// payMatching pays each earner's sponsor and grand-sponsor a percentage of
// what the earner just made from this single placement event. The basis is
// per-event, never cumulative earnings.
func (s *CommissionService) payMatching(ctx context.Context, memberID primitive.ObjectID, earnOrder []primitive.ObjectID, earned map[primitive.ObjectID]float64, settings *models.CommissionSettings, eventID string) []models.CommissionEvent {
	var recorded []models.CommissionEvent
	for _, earnerID := range earnOrder {
		total := earned[earnerID]
		if total <= 0 {
			continue
		}
		earner, err := s.members.FindByID(ctx, earnerID)
		if err != nil {
			log.Printf("Warning: matching walk skipped for earner %s: %v", earnerID.Hex(), err)
			continue
		}
		current := earner.ReferredBy
		for hop := 1; hop <= len(settings.MatchingRates) && current != nil; hop++ {
			ancestor, err := s.members.FindByID(ctx, *current)
			if err != nil {
				log.Printf("Warning: matching walk aborted at hop %d for earner %s: %v", hop, earnerID.Hex(), err)
				break
			}
			if rate := settings.MatchingRate(hop); ancestor.IsActive && rate > 0 {
				event := models.CommissionEvent{
					BeneficiaryID: ancestor.ID,
					SourceID:      memberID,
					Kind:          models.CommissionMatchingBonus,
					Level:         hop,
					Amount:        total * rate,
					EventID:       eventID,
					// The same ancestor can match several earners off one
					// placement, so the key carries the earner too.
					IdempotencyKey: models.CommissionIdempotencyKey(
						eventID+":"+earnerID.Hex(), ancestor.ID, models.CommissionMatchingBonus, hop, memberID),
				}
				inserted, err := s.record(ctx, event)
				if err != nil {
					log.Printf("Warning: failed to record matching bonus for %s: %v", ancestor.ID.Hex(), err)
				} else if inserted != nil {
					recorded = append(recorded, *inserted)
				}
			}
			current = ancestor.ReferredBy
		}
	}
	return recorded
}

// OnRenewal pays the recurring level bonus for a successful subscription
// renewal: the direct sponsor only, one level, flat amount.
func (s *CommissionService) OnRenewal(ctx context.Context, memberID primitive.ObjectID, eventID string) ([]models.CommissionEvent, error) {
	settings, err := s.settings.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: commission settings", models.ErrMissingDependency)
	}
	member, err := s.members.FindByID(ctx, memberID)
	if err != nil {
		return nil, fmt.Errorf("%w: member %s", models.ErrMissingDependency, memberID.Hex())
	}
	if member.ReferredBy == nil || settings.LevelBonusAmount <= 0 {
		return nil, nil
	}
	sponsor, err := s.members.FindByID(ctx, *member.ReferredBy)
	if err != nil {
		return nil, fmt.Errorf("%w: sponsor of %s", models.ErrMissingDependency, memberID.Hex())
	}
	if !sponsor.IsActive {
		return nil, nil
	}
	inserted, err := s.record(ctx, models.CommissionEvent{
		BeneficiaryID: sponsor.ID,
		SourceID:      memberID,
		Kind:          models.CommissionLevelBonus,
		Level:         1,
		Amount:        settings.LevelBonusAmount,
		EventID:       eventID,
	})
	if err != nil {
		return nil, err
	}
	if inserted == nil {
		return nil, nil
	}
	return []models.CommissionEvent{*inserted}, nil
}

// OnProductPurchase pays the direct sponsor a percentage of a shop product
// sale.
func (s *CommissionService) OnProductPurchase(ctx context.Context, memberID primitive.ObjectID, amount float64, eventID string) ([]models.CommissionEvent, error) {
	settings, err := s.settings.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: commission settings", models.ErrMissingDependency)
	}
	if settings.ProductCommissionRate <= 0 || amount <= 0 {
		return nil, nil
	}
	member, err := s.members.FindByID(ctx, memberID)
	if err != nil {
		return nil, fmt.Errorf("%w: member %s", models.ErrMissingDependency, memberID.Hex())
	}
	if member.ReferredBy == nil {
		return nil, nil
	}
	sponsor, err := s.members.FindByID(ctx, *member.ReferredBy)
	if err != nil {
		return nil, fmt.Errorf("%w: sponsor of %s", models.ErrMissingDependency, memberID.Hex())
	}
	if !sponsor.IsActive {
		return nil, nil
	}
	inserted, err := s.record(ctx, models.CommissionEvent{
		BeneficiaryID: sponsor.ID,
		SourceID:      memberID,
		Kind:          models.CommissionProductCommission,
		Level:         1,
		Amount:        amount * settings.ProductCommissionRate,
		EventID:       eventID,
	})
	if err != nil {
		return nil, err
	}
	if inserted == nil {
		return nil, nil
	}
	return []models.CommissionEvent{*inserted}, nil
}

// record inserts one ledger row. A duplicate idempotency key means a
// redelivered event and is not an error; it returns (nil, nil).
func (s *CommissionService) record(ctx context.Context, event models.CommissionEvent) (*models.CommissionEvent, error) {
	err := s.ledger.Insert(ctx, &event)
	if err == models.ErrDuplicateCommission {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &event, nil
}
