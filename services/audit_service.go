// services/audit_service.go
package services

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/fadeclub/fadeclub_backend/models"
	"github.com/fadeclub/fadeclub_backend/repositories"
)

// AuditService re-derives the expected tree shape and reports deviations. It
// only ever reads; findings never block live placements.
type AuditService struct {
	matrix   repositories.MatrixRepository
	settings repositories.SettingsRepository
}

func NewAuditService(matrix repositories.MatrixRepository, settings repositories.SettingsRepository) *AuditService {
	return &AuditService{matrix: matrix, settings: settings}
}

// VerifyNode runs the six structural checks against a single node.
func (s *AuditService) VerifyNode(ctx context.Context, nodeID primitive.ObjectID) (*models.ValidationResult, error) {
	node, err := s.matrix.FindByID(ctx, nodeID)
	if err != nil {
		return nil, err
	}
	settings, err := s.settings.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: commission settings", models.ErrMissingDependency)
	}
	maxDepth := settings.MaxDepth

	result := &models.ValidationResult{NodeID: node.ID.Hex(), Passed: true}
	add := func(name string, passed bool, detail string) {
		result.Checks = append(result.Checks, models.CheckResult{Name: name, Passed: passed, Detail: detail})
		if !passed {
			result.Passed = false
		}
	}

	add(s.checkWidth(node))
	add(s.checkDepth(node, maxDepth))
	add(s.checkParentBackReference(ctx, node))
	add(s.checkPositionLevel(node))
	add(s.checkNoGaps(ctx, node))
	add(s.checkAncestorChain(ctx, node, maxDepth))

	return result, nil
}

func (s *AuditService) checkWidth(node *models.MatrixNode) (string, bool, string) {
	children := node.ChildIDs()
	seen := make(map[primitive.ObjectID]bool, len(children))
	for _, id := range children {
		if id == node.ID {
			return "width", false, "node references itself as a child"
		}
		if seen[id] {
			return "width", false, fmt.Sprintf("child %s occupies two slots", id.Hex())
		}
		seen[id] = true
	}
	return "width", true, fmt.Sprintf("%d of %d child slots occupied", len(children), models.MatrixWidth)
}

func (s *AuditService) checkDepth(node *models.MatrixNode, maxDepth int) (string, bool, string) {
	if node.Level < 1 || node.Level > maxDepth {
		return "depth", false, fmt.Sprintf("level %d outside [1, %d]", node.Level, maxDepth)
	}
	return "depth", true, fmt.Sprintf("level %d within [1, %d]", node.Level, maxDepth)
}

func (s *AuditService) checkParentBackReference(ctx context.Context, node *models.MatrixNode) (string, bool, string) {
	if node.IsRoot() {
		if node.Level != 1 {
			return "parent_link", false, fmt.Sprintf("root node has level %d", node.Level)
		}
		return "parent_link", true, "root node, no parent expected"
	}
	parent, err := s.matrix.FindByID(ctx, *node.ParentID)
	if err != nil {
		return "parent_link", false, fmt.Sprintf("parent %s does not resolve", node.ParentID.Hex())
	}
	back := parent.ChildID(node.Slot)
	if back == nil || *back != node.ID {
		return "parent_link", false, fmt.Sprintf("parent slot %s does not reference this node", models.SlotName(node.Slot))
	}
	if node.Level != parent.Level+1 {
		return "parent_link", false, fmt.Sprintf("level %d is not parent level %d + 1", node.Level, parent.Level)
	}
	return "parent_link", true, fmt.Sprintf("slot %s of parent %s", models.SlotName(node.Slot), parent.ID.Hex())
}

func (s *AuditService) checkPositionLevel(node *models.MatrixNode) (string, bool, string) {
	expected := models.LevelForPosition(node.PositionIndex)
	if expected != node.Level {
		return "position_level", false, fmt.Sprintf("position %d implies level %d, stored level is %d", node.PositionIndex, expected, node.Level)
	}
	return "position_level", true, fmt.Sprintf("position %d maps to level %d", node.PositionIndex, node.Level)
}

func (s *AuditService) checkNoGaps(ctx context.Context, node *models.MatrixNode) (string, bool, string) {
	below, err := s.matrix.CountBelow(ctx, node.PositionIndex)
	if err != nil {
		return "no_gaps", false, fmt.Sprintf("count failed: %v", err)
	}
	if below != node.PositionIndex-1 {
		return "no_gaps", false, fmt.Sprintf("expected %d nodes below position %d, found %d", node.PositionIndex-1, node.PositionIndex, below)
	}
	return "no_gaps", true, fmt.Sprintf("%d nodes below position %d", below, node.PositionIndex)
}

func (s *AuditService) checkAncestorChain(ctx context.Context, node *models.MatrixNode, maxDepth int) (string, bool, string) {
	seen := map[primitive.ObjectID]bool{node.OwnerID: true}
	current := node.ParentID
	for steps := 0; current != nil; steps++ {
		if steps >= maxDepth {
			return "ancestor_chain", false, fmt.Sprintf("parent chain did not reach the root within %d steps", maxDepth)
		}
		ancestor, err := s.matrix.FindByID(ctx, *current)
		if err != nil {
			return "ancestor_chain", false, fmt.Sprintf("ancestor %s does not resolve", current.Hex())
		}
		if seen[ancestor.OwnerID] {
			return "ancestor_chain", false, fmt.Sprintf("member %s appears twice in the ancestor chain", ancestor.OwnerID.Hex())
		}
		seen[ancestor.OwnerID] = true
		current = ancestor.ParentID
	}
	return "ancestor_chain", true, fmt.Sprintf("chain of %d members terminates at the root", len(seen))
}

// RunFullIntegrityAudit sweeps the whole tree once and grades its health:
// any hole, duplicate position or cycle is critical; orphans alone are a
// warning.
func (s *AuditService) RunFullIntegrityAudit(ctx context.Context) (*models.IntegrityReport, error) {
	nodes, err := s.matrix.FindAll(ctx)
	if err != nil {
		return nil, err
	}

	report := &models.IntegrityReport{
		TotalNodes:  int64(len(nodes)),
		GeneratedAt: time.Now(),
		Health:      models.HealthHealthy,
	}
	if len(nodes) == 0 {
		return report, nil
	}

	byID := make(map[primitive.ObjectID]*models.MatrixNode, len(nodes))
	levelCounts := make(map[int]int64)
	positions := make(map[int64]int64)
	var maxPosition int64
	for _, node := range nodes {
		byID[node.ID] = node
		levelCounts[node.Level]++
		positions[node.PositionIndex]++
		if node.PositionIndex > maxPosition {
			maxPosition = node.PositionIndex
		}
	}
	report.MaxPosition = maxPosition

	levels := make([]int, 0, len(levelCounts))
	for level := range levelCounts {
		levels = append(levels, level)
	}
	sort.Ints(levels)
	for _, level := range levels {
		report.LevelCounts = append(report.LevelCounts, models.LevelCount{
			Level:    level,
			Count:    levelCounts[level],
			Capacity: models.LevelCapacity(level),
		})
	}

	for position := int64(1); position <= maxPosition; position++ {
		count := positions[position]
		if count == 0 {
			report.Holes = append(report.Holes, position)
		}
		if count > 1 {
			report.DuplicatePositions = append(report.DuplicatePositions, position)
		}
	}

	for _, node := range nodes {
		if node.ParentID == nil {
			continue
		}
		if _, ok := byID[*node.ParentID]; !ok {
			report.Orphans = append(report.Orphans, node.ID.Hex())
		}
	}

	// Cycle sweep: walking up from any node must terminate without
	// revisiting a node. Bounded by the node count so a corrupt chain cannot
	// loop forever.
	for _, node := range nodes {
		seen := map[primitive.ObjectID]bool{node.ID: true}
		current := node.ParentID
		for steps := 0; current != nil && steps <= len(nodes); steps++ {
			ancestor, ok := byID[*current]
			if !ok {
				break // orphaned chain, reported above
			}
			if seen[ancestor.ID] {
				report.Cycles = append(report.Cycles, node.ID.Hex())
				break
			}
			seen[ancestor.ID] = true
			current = ancestor.ParentID
		}
	}

	if len(report.Orphans) > 0 {
		report.Health = models.HealthWarning
	}
	if len(report.Holes) > 0 || len(report.DuplicatePositions) > 0 || len(report.Cycles) > 0 {
		report.Health = models.HealthCritical
	}
	return report, nil
}
