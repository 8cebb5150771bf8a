package repositories

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/fadeclub/fadeclub_backend/models"
)

// In-memory implementations of the store interfaces. They back the engine
// tests and local tooling; the mutex inside each one gives the same
// atomicity the Mongo implementations get from transactions and unique
// indexes.

type MemoryMemberRepository struct {
	mu      sync.RWMutex
	members map[primitive.ObjectID]*models.Member
}

func NewMemoryMemberRepository() *MemoryMemberRepository {
	return &MemoryMemberRepository{members: make(map[primitive.ObjectID]*models.Member)}
}

func cloneMember(m *models.Member) *models.Member {
	cp := *m
	if m.ReferredBy != nil {
		id := *m.ReferredBy
		cp.ReferredBy = &id
	}
	cp.Referrals = append([]primitive.ObjectID(nil), m.Referrals...)
	return &cp
}

func (r *MemoryMemberRepository) FindByID(_ context.Context, id primitive.ObjectID) (*models.Member, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	member, ok := r.members[id]
	if !ok {
		return nil, models.ErrMemberNotFound
	}
	return cloneMember(member), nil
}

func (r *MemoryMemberRepository) FindByEmail(_ context.Context, email string) (*models.Member, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, member := range r.members {
		if member.Email == email {
			return cloneMember(member), nil
		}
	}
	return nil, models.ErrMemberNotFound
}

func (r *MemoryMemberRepository) FindByReferralCode(_ context.Context, code string) (*models.Member, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, member := range r.members {
		if member.ReferralCode == code {
			return cloneMember(member), nil
		}
	}
	return nil, models.ErrMemberNotFound
}

func (r *MemoryMemberRepository) Insert(_ context.Context, member *models.Member) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if member.ID.IsZero() {
		member.ID = primitive.NewObjectID()
	}
	member.CreatedAt = time.Now()
	member.UpdatedAt = member.CreatedAt
	r.members[member.ID] = cloneMember(member)
	return nil
}

func (r *MemoryMemberRepository) AddReferral(_ context.Context, sponsorID, memberID primitive.ObjectID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	sponsor, ok := r.members[sponsorID]
	if !ok {
		return models.ErrMemberNotFound
	}
	for _, id := range sponsor.Referrals {
		if id == memberID {
			return nil
		}
	}
	sponsor.Referrals = append(sponsor.Referrals, memberID)
	return nil
}

func (r *MemoryMemberRepository) SetActive(_ context.Context, id primitive.ObjectID, active bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	member, ok := r.members[id]
	if !ok {
		return models.ErrMemberNotFound
	}
	member.IsActive = active
	member.UpdatedAt = time.Now()
	return nil
}

func (r *MemoryMemberRepository) RecordRenewal(_ context.Context, id primitive.ObjectID, paidThrough time.Time, amount float64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	member, ok := r.members[id]
	if !ok {
		return models.ErrMemberNotFound
	}
	member.IsActive = true
	member.PaidThrough = &paidThrough
	if amount > 0 {
		member.SubscriptionAmount = amount
	}
	member.UpdatedAt = time.Now()
	return nil
}

func (r *MemoryMemberRepository) ExpireLapsed(_ context.Context, now time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var expired int64
	for _, member := range r.members {
		if member.IsActive && member.PaidThrough != nil && member.PaidThrough.Before(now) {
			member.IsActive = false
			member.UpdatedAt = now
			expired++
		}
	}
	return expired, nil
}

type MemoryMatrixRepository struct {
	mu      sync.Mutex
	nodes   map[primitive.ObjectID]*models.MatrixNode
	byOwner map[primitive.ObjectID]primitive.ObjectID
	rootID  *primitive.ObjectID
	nextPos int64
}

func NewMemoryMatrixRepository() *MemoryMatrixRepository {
	return &MemoryMatrixRepository{
		nodes:   make(map[primitive.ObjectID]*models.MatrixNode),
		byOwner: make(map[primitive.ObjectID]primitive.ObjectID),
		nextPos: 1,
	}
}

func cloneNode(n *models.MatrixNode) *models.MatrixNode {
	cp := *n
	clone := func(id *primitive.ObjectID) *primitive.ObjectID {
		if id == nil {
			return nil
		}
		v := *id
		return &v
	}
	cp.ParentID = clone(n.ParentID)
	cp.SponsorID = clone(n.SponsorID)
	cp.LeftID = clone(n.LeftID)
	cp.MiddleID = clone(n.MiddleID)
	cp.RightID = clone(n.RightID)
	return &cp
}

func (r *MemoryMatrixRepository) FindByID(_ context.Context, id primitive.ObjectID) (*models.MatrixNode, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	node, ok := r.nodes[id]
	if !ok {
		return nil, models.ErrNodeNotFound
	}
	return cloneNode(node), nil
}

func (r *MemoryMatrixRepository) FindByOwner(_ context.Context, ownerID primitive.ObjectID) (*models.MatrixNode, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	nodeID, ok := r.byOwner[ownerID]
	if !ok {
		return nil, models.ErrNodeNotFound
	}
	return cloneNode(r.nodes[nodeID]), nil
}

func (r *MemoryMatrixRepository) FindRoot(_ context.Context) (*models.MatrixNode, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.rootID == nil {
		return nil, models.ErrNodeNotFound
	}
	return cloneNode(r.nodes[*r.rootID]), nil
}

func (r *MemoryMatrixRepository) FindByIDs(_ context.Context, ids []primitive.ObjectID) ([]*models.MatrixNode, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	nodes := make([]*models.MatrixNode, 0, len(ids))
	for _, id := range ids {
		if node, ok := r.nodes[id]; ok {
			nodes = append(nodes, cloneNode(node))
		}
	}
	return nodes, nil
}

func (r *MemoryMatrixRepository) FindAll(_ context.Context) ([]*models.MatrixNode, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	nodes := make([]*models.MatrixNode, 0, len(r.nodes))
	for _, node := range r.nodes {
		nodes = append(nodes, cloneNode(node))
	}
	sort.Slice(nodes, func(i, j int) bool { return nodes[i].PositionIndex < nodes[j].PositionIndex })
	return nodes, nil
}

func (r *MemoryMatrixRepository) CountNodes(_ context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return int64(len(r.nodes)), nil
}

func (r *MemoryMatrixRepository) CountBelow(_ context.Context, position int64) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var count int64
	for _, node := range r.nodes {
		if node.PositionIndex < position {
			count++
		}
	}
	return count, nil
}

func (r *MemoryMatrixRepository) CreateRoot(_ context.Context, node *models.MatrixNode) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.rootID != nil {
		return models.ErrSlotTaken
	}
	if _, exists := r.byOwner[node.OwnerID]; exists {
		return models.ErrAlreadyPlaced
	}
	if node.ID.IsZero() {
		node.ID = primitive.NewObjectID()
	}
	node.ParentID = nil
	node.Slot = 0
	node.Level = 1
	node.PositionIndex = 1
	node.CreatedAt = time.Now()

	stored := cloneNode(node)
	r.nodes[node.ID] = stored
	r.byOwner[node.OwnerID] = node.ID
	rootID := node.ID
	r.rootID = &rootID
	r.nextPos = 2
	return nil
}

func (r *MemoryMatrixRepository) AttachNode(_ context.Context, node *models.MatrixNode, parentID primitive.ObjectID, slot int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	parent, ok := r.nodes[parentID]
	if !ok {
		return models.ErrNodeNotFound
	}
	if parent.ChildID(slot) != nil {
		return models.ErrSlotTaken
	}
	if _, exists := r.byOwner[node.OwnerID]; exists {
		return models.ErrAlreadyPlaced
	}
	if node.ID.IsZero() {
		node.ID = primitive.NewObjectID()
	}

	node.ParentID = &parentID
	node.Slot = slot
	node.PositionIndex = r.nextPos
	node.CreatedAt = time.Now()

	childID := node.ID
	switch slot {
	case models.SlotLeft:
		parent.LeftID = &childID
	case models.SlotMiddle:
		parent.MiddleID = &childID
	case models.SlotRight:
		parent.RightID = &childID
	default:
		return models.ErrSlotTaken
	}

	r.nodes[node.ID] = cloneNode(node)
	r.byOwner[node.OwnerID] = node.ID
	r.nextPos++
	return nil
}

type MemoryCommissionRepository struct {
	mu     sync.Mutex
	events map[primitive.ObjectID]*models.CommissionEvent
	keys   map[string]struct{}
}

func NewMemoryCommissionRepository() *MemoryCommissionRepository {
	return &MemoryCommissionRepository{
		events: make(map[primitive.ObjectID]*models.CommissionEvent),
		keys:   make(map[string]struct{}),
	}
}

func (r *MemoryCommissionRepository) Insert(_ context.Context, event *models.CommissionEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if event.ID.IsZero() {
		event.ID = primitive.NewObjectID()
	}
	if event.Status == "" {
		event.Status = models.CommissionPending
	}
	if event.IdempotencyKey == "" {
		event.IdempotencyKey = models.CommissionIdempotencyKey(
			event.EventID, event.BeneficiaryID, event.Kind, event.Level, event.SourceID)
	}
	if _, exists := r.keys[event.IdempotencyKey]; exists {
		return models.ErrDuplicateCommission
	}
	event.CreatedAt = time.Now()
	event.UpdatedAt = event.CreatedAt

	stored := *event
	r.events[event.ID] = &stored
	r.keys[event.IdempotencyKey] = struct{}{}
	return nil
}

func (r *MemoryCommissionRepository) FindByID(_ context.Context, id primitive.ObjectID) (*models.CommissionEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	event, ok := r.events[id]
	if !ok {
		return nil, models.ErrMissingDependency
	}
	cp := *event
	return &cp, nil
}

func (r *MemoryCommissionRepository) FindByBeneficiary(_ context.Context, beneficiaryID primitive.ObjectID, status string) ([]models.CommissionEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var events []models.CommissionEvent
	for _, event := range r.events {
		if event.BeneficiaryID != beneficiaryID {
			continue
		}
		if status != "" && event.Status != status {
			continue
		}
		events = append(events, *event)
	}
	sort.Slice(events, func(i, j int) bool { return events[i].CreatedAt.After(events[j].CreatedAt) })
	return events, nil
}

func (r *MemoryCommissionRepository) List(_ context.Context, status string, limit int64) ([]models.CommissionEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var events []models.CommissionEvent
	for _, event := range r.events {
		if status != "" && event.Status != status {
			continue
		}
		events = append(events, *event)
	}
	sort.Slice(events, func(i, j int) bool { return events[i].CreatedAt.After(events[j].CreatedAt) })
	if limit > 0 && int64(len(events)) > limit {
		events = events[:limit]
	}
	return events, nil
}

func (r *MemoryCommissionRepository) SummarizeByBeneficiary(_ context.Context, beneficiaryID primitive.ObjectID) ([]models.CommissionSummary, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	byStatus := make(map[string]*models.CommissionSummary)
	for _, event := range r.events {
		if event.BeneficiaryID != beneficiaryID {
			continue
		}
		summary, ok := byStatus[event.Status]
		if !ok {
			summary = &models.CommissionSummary{Status: event.Status}
			byStatus[event.Status] = summary
		}
		summary.Count++
		summary.Total += event.Amount
	}
	summaries := make([]models.CommissionSummary, 0, len(byStatus))
	for _, summary := range byStatus {
		summaries = append(summaries, *summary)
	}
	sort.Slice(summaries, func(i, j int) bool { return summaries[i].Status < summaries[j].Status })
	return summaries, nil
}

func (r *MemoryCommissionRepository) UpdateStatus(_ context.Context, id primitive.ObjectID, to string) (*models.CommissionEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	event, ok := r.events[id]
	if !ok {
		return nil, models.ErrMissingDependency
	}
	if !models.CanTransition(event.Status, to) {
		return nil, models.ErrInvalidStatusChange
	}
	now := time.Now()
	event.Status = to
	event.UpdatedAt = now
	if to == models.CommissionPaid {
		event.PaidAt = &now
	} else {
		event.PaidAt = nil
	}
	cp := *event
	return &cp, nil
}

type MemorySettingsRepository struct {
	mu       sync.RWMutex
	settings *models.CommissionSettings
}

func NewMemorySettingsRepository() *MemorySettingsRepository {
	return &MemorySettingsRepository{}
}

func (r *MemorySettingsRepository) Get(_ context.Context) (*models.CommissionSettings, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.settings == nil {
		defaults := models.DefaultCommissionSettings()
		return &defaults, nil
	}
	cp := *r.settings
	cp.FastStartAmounts = append([]float64(nil), r.settings.FastStartAmounts...)
	cp.MatchingRates = append([]float64(nil), r.settings.MatchingRates...)
	return &cp, nil
}

func (r *MemorySettingsRepository) Update(_ context.Context, settings *models.CommissionSettings) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	settings.UpdatedAt = time.Now()
	cp := *settings
	cp.FastStartAmounts = append([]float64(nil), settings.FastStartAmounts...)
	cp.MatchingRates = append([]float64(nil), settings.MatchingRates...)
	r.settings = &cp
	return nil
}

type MemoryPlacementLogRepository struct {
	mu      sync.Mutex
	entries []models.PlacementLogEntry
}

func NewMemoryPlacementLogRepository() *MemoryPlacementLogRepository {
	return &MemoryPlacementLogRepository{}
}

func (r *MemoryPlacementLogRepository) Append(_ context.Context, entry *models.PlacementLogEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if entry.ID.IsZero() {
		entry.ID = primitive.NewObjectID()
	}
	entry.CreatedAt = time.Now()
	r.entries = append(r.entries, *entry)
	return nil
}

func (r *MemoryPlacementLogRepository) FindByMember(_ context.Context, memberID primitive.ObjectID) ([]models.PlacementLogEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var entries []models.PlacementLogEntry
	for _, entry := range r.entries {
		if entry.MemberID == memberID {
			entries = append(entries, entry)
		}
	}
	return entries, nil
}
