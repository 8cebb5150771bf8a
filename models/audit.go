package models

import "time"

// Audit health tiers
const (
	HealthHealthy  = "healthy"
	HealthWarning  = "warning"
	HealthCritical = "critical"
)

// CheckResult is one named verification outcome with human-readable detail.
type CheckResult struct {
	Name   string `json:"name"`
	Passed bool   `json:"passed"`
	Detail string `json:"detail"`
}

// ValidationResult is the outcome of verifying a single matrix node.
type ValidationResult struct {
	NodeID string        `json:"nodeId"`
	Passed bool          `json:"passed"`
	Checks []CheckResult `json:"checks"`
}

// LevelCount compares the observed node count on a level with the ternary
// capacity 3^(level-1).
type LevelCount struct {
	Level    int   `json:"level"`
	Count    int64 `json:"count"`
	Capacity int64 `json:"capacity"`
}

// IntegrityReport is the result of the full read-only tree sweep.
type IntegrityReport struct {
	TotalNodes         int64        `json:"totalNodes"`
	MaxPosition        int64        `json:"maxPosition"`
	LevelCounts        []LevelCount `json:"levelCounts"`
	Holes              []int64      `json:"holes,omitempty"`
	DuplicatePositions []int64      `json:"duplicatePositions,omitempty"`
	Orphans            []string     `json:"orphans,omitempty"`
	Cycles             []string     `json:"cycles,omitempty"`
	Health             string       `json:"health"`
	GeneratedAt        time.Time    `json:"generatedAt"`
}
