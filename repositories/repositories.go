// Package repositories holds the persistence layer. The engines depend on
// these interfaces; Mongo implementations back the live service and the
// in-memory implementations back the tests and local tooling.
package repositories

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/fadeclub/fadeclub_backend/models"
)

// MemberRepository is the membership store. The engines read it; only
// billing-driven status transitions write to it.
type MemberRepository interface {
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.Member, error)
	FindByEmail(ctx context.Context, email string) (*models.Member, error)
	FindByReferralCode(ctx context.Context, code string) (*models.Member, error)
	Insert(ctx context.Context, member *models.Member) error
	AddReferral(ctx context.Context, sponsorID, memberID primitive.ObjectID) error
	SetActive(ctx context.Context, id primitive.ObjectID, active bool) error
	RecordRenewal(ctx context.Context, id primitive.ObjectID, paidThrough time.Time, amount float64) error
	ExpireLapsed(ctx context.Context, now time.Time) (int64, error)
}

// MatrixRepository is the matrix tree store. AttachNode and CreateRoot are
// the only mutations; both are atomic so a node never exists without its
// parent-slot back-reference.
type MatrixRepository interface {
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.MatrixNode, error)
	FindByOwner(ctx context.Context, ownerID primitive.ObjectID) (*models.MatrixNode, error)
	FindRoot(ctx context.Context) (*models.MatrixNode, error)
	FindByIDs(ctx context.Context, ids []primitive.ObjectID) ([]*models.MatrixNode, error)
	FindAll(ctx context.Context) ([]*models.MatrixNode, error)
	CountNodes(ctx context.Context) (int64, error)
	// CountBelow returns how many nodes hold a position index strictly less
	// than position; used by the gap check.
	CountBelow(ctx context.Context, position int64) (int64, error)

	// CreateRoot inserts the level-1 node at position 1. Returns
	// models.ErrSlotTaken when another root won the race.
	CreateRoot(ctx context.Context, node *models.MatrixNode) error

	// AttachNode claims the given parent slot, allocates the next position
	// index and inserts the node as one transaction. Returns
	// models.ErrSlotTaken when the slot filled since the BFS read it, and
	// models.ErrAlreadyPlaced when the owner gained a node concurrently.
	AttachNode(ctx context.Context, node *models.MatrixNode, parentID primitive.ObjectID, slot int) error
}

// CommissionRepository is the append-mostly ledger store.
type CommissionRepository interface {
	// Insert records a ledger row. Returns models.ErrDuplicateCommission
	// when the idempotency key already exists.
	Insert(ctx context.Context, event *models.CommissionEvent) error
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.CommissionEvent, error)
	FindByBeneficiary(ctx context.Context, beneficiaryID primitive.ObjectID, status string) ([]models.CommissionEvent, error)
	List(ctx context.Context, status string, limit int64) ([]models.CommissionEvent, error)
	SummarizeByBeneficiary(ctx context.Context, beneficiaryID primitive.ObjectID) ([]models.CommissionSummary, error)
	// UpdateStatus applies a payout status transition, rejecting anything
	// models.CanTransition disallows.
	UpdateStatus(ctx context.Context, id primitive.ObjectID, to string) (*models.CommissionEvent, error)
}

// SettingsRepository serves the commission configuration. Get must reflect
// the latest admin update on the next engine invocation.
type SettingsRepository interface {
	Get(ctx context.Context) (*models.CommissionSettings, error)
	Update(ctx context.Context, settings *models.CommissionSettings) error
}

// PlacementLogRepository is the append-only placement audit trail.
type PlacementLogRepository interface {
	Append(ctx context.Context, entry *models.PlacementLogEntry) error
	FindByMember(ctx context.Context, memberID primitive.ObjectID) ([]models.PlacementLogEntry, error)
}
