package models

import "errors"

// Placement and audit error taxonomy. ErrAlreadyPlaced is idempotent success
// from the caller's perspective; everything else must reach the caller.
var (
	ErrAlreadyPlaced        = errors.New("member already has a matrix node")
	ErrMatrixFull           = errors.New("matrix has no open slot within the configured depth")
	ErrSlotTaken            = errors.New("matrix slot was claimed concurrently")
	ErrPlacementContention  = errors.New("placement retries exhausted under contention")
	ErrMissingDependency    = errors.New("referenced member or configuration not found")
	ErrMemberNotFound       = errors.New("member not found")
	ErrNodeNotFound         = errors.New("matrix node not found")
	ErrDuplicateCommission  = errors.New("commission already recorded for this event")
	ErrInvalidStatusChange  = errors.New("commission status transition not allowed")
)
