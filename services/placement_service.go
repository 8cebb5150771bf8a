// services/placement_service.go
package services

import (
	"context"
	"fmt"
	"log"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/fadeclub/fadeclub_backend/models"
	"github.com/fadeclub/fadeclub_backend/repositories"
)

// maxPlacementRetries bounds how often the BFS is re-run after a concurrent
// claim stole the slot it found.
const maxPlacementRetries = 5

// PlacementService inserts members into the forced 3-wide matrix. Placement
// is idempotent per member and safe under concurrent invocations: the slot
// found by the breadth-first search is claimed with a conditional write, and
// a lost claim restarts the search.
type PlacementService struct {
	matrix   repositories.MatrixRepository
	members  repositories.MemberRepository
	settings repositories.SettingsRepository
	logs     repositories.PlacementLogRepository
}

func NewPlacementService(matrix repositories.MatrixRepository, members repositories.MemberRepository, settings repositories.SettingsRepository, logs repositories.PlacementLogRepository) *PlacementService {
	return &PlacementService{matrix: matrix, members: members, settings: settings, logs: logs}
}

// Place finds the next open slot breadth-first and inserts a node for the
// member. A second call for an already-placed member returns the existing
// node with alreadyPlaced set. Returns models.ErrMatrixFull when every
// position within the configured depth is taken and
// models.ErrPlacementContention when retries are exhausted.
func (s *PlacementService) Place(ctx context.Context, memberID primitive.ObjectID, sponsorID *primitive.ObjectID, eventID string) (*models.MatrixNode, bool, error) {
	existing, err := s.matrix.FindByOwner(ctx, memberID)
	if err == nil {
		return existing, true, nil
	}
	if err != models.ErrNodeNotFound {
		return nil, false, err
	}

	if _, err := s.members.FindByID(ctx, memberID); err != nil {
		return nil, false, fmt.Errorf("%w: member %s", models.ErrMissingDependency, memberID.Hex())
	}

	settings, err := s.settings.Get(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("%w: commission settings", models.ErrMissingDependency)
	}

	for attempt := 1; attempt <= maxPlacementRetries; attempt++ {
		node, alreadyPlaced, err := s.tryPlace(ctx, memberID, sponsorID, settings.MaxDepth)
		if err == models.ErrSlotTaken {
			log.Printf("Placement conflict for member %s, retrying (attempt %d/%d)", memberID.Hex(), attempt, maxPlacementRetries)
			continue
		}
		if err != nil {
			return nil, false, err
		}
		if !alreadyPlaced {
			s.appendLog(ctx, node, eventID, attempt)
		}
		return node, alreadyPlaced, nil
	}
	return nil, false, models.ErrPlacementContention
}

func (s *PlacementService) tryPlace(ctx context.Context, memberID primitive.ObjectID, sponsorID *primitive.ObjectID, maxDepth int) (*models.MatrixNode, bool, error) {
	root, err := s.matrix.FindRoot(ctx)
	if err == models.ErrNodeNotFound {
		node := &models.MatrixNode{OwnerID: memberID, SponsorID: sponsorID}
		if err := s.matrix.CreateRoot(ctx, node); err != nil {
			if err == models.ErrAlreadyPlaced {
				return s.refetch(ctx, memberID)
			}
			return nil, false, err
		}
		return node, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	parent, slot, err := s.findOpenSlot(ctx, root, maxDepth)
	if err != nil {
		return nil, false, err
	}

	node := &models.MatrixNode{
		OwnerID:   memberID,
		SponsorID: sponsorID,
		Level:     parent.Level + 1,
	}
	if err := s.matrix.AttachNode(ctx, node, parent.ID, slot); err != nil {
		if err == models.ErrAlreadyPlaced {
			return s.refetch(ctx, memberID)
		}
		return nil, false, err
	}
	return node, false, nil
}

func (s *PlacementService) refetch(ctx context.Context, memberID primitive.ObjectID) (*models.MatrixNode, bool, error) {
	node, err := s.matrix.FindByOwner(ctx, memberID)
	if err != nil {
		return nil, false, err
	}
	return node, true, nil
}

// findOpenSlot walks the tree level by level from the root. Slots are
// inspected left, middle, right; nodes sitting on the maximum depth are
// skipped because their children would exceed it. An exhausted queue means
// the matrix is packed full.
func (s *PlacementService) findOpenSlot(ctx context.Context, root *models.MatrixNode, maxDepth int) (*models.MatrixNode, int, error) {
	queue := []*models.MatrixNode{root}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		if current.Level >= maxDepth {
			continue
		}
		if slot := current.OpenSlot(); slot != 0 {
			return current, slot, nil
		}

		childIDs := current.ChildIDs()
		children, err := s.matrix.FindByIDs(ctx, childIDs)
		if err != nil {
			return nil, 0, err
		}
		// Re-order the batch fetch into left, middle, right so the BFS keeps
		// the canonical packing order.
		byID := make(map[primitive.ObjectID]*models.MatrixNode, len(children))
		for _, child := range children {
			byID[child.ID] = child
		}
		for _, id := range childIDs {
			if child, ok := byID[id]; ok {
				queue = append(queue, child)
			}
		}
	}
	return nil, 0, models.ErrMatrixFull
}

// appendLog writes the forensic placement record. Log failures never fail
// the placement itself.
func (s *PlacementService) appendLog(ctx context.Context, node *models.MatrixNode, eventID string, attempts int) {
	checks := []string{"owner_unplaced", "slot_claimed", "position_allocated"}
	if node.IsRoot() {
		checks = []string{"owner_unplaced", "root_bootstrap"}
	}
	entry := &models.PlacementLogEntry{
		MemberID:      node.OwnerID,
		NodeID:        node.ID,
		ParentID:      node.ParentID,
		SponsorID:     node.SponsorID,
		Level:         node.Level,
		Slot:          node.Slot,
		PositionIndex: node.PositionIndex,
		EventID:       eventID,
		Attempts:      attempts,
		ChecksPassed:  checks,
	}
	if err := s.logs.Append(ctx, entry); err != nil {
		log.Printf("Warning: failed to append placement log for member %s: %v", node.OwnerID.Hex(), err)
	}
}
