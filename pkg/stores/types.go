package stores

import "time"

// RunRecord is one persisted convergence run summary.
type RunRecord struct {
	// RunID is the run's unique identifier.
	RunID string `json:"run_id"`

	// ManifestPath is the desired-state input the run converged.
	ManifestPath string `json:"manifest_path"`

	// Status is "converged" or "failed".
	Status string `json:"status"`

	// StartedAt and CompletedAt delimit the run.
	StartedAt   time.Time `json:"started_at"`
	CompletedAt time.Time `json:"completed_at"`

	// Applied, AlreadySatisfied and Failed count per-action outcomes.
	Applied          int `json:"applied"`
	AlreadySatisfied int `json:"already_satisfied"`
	Failed           int `json:"failed"`
}

// OutcomeRecord is one persisted per-action outcome.
type OutcomeRecord struct {
	// RunID is the run the outcome belongs to.
	RunID string `json:"run_id"`

	// Position is the action's index in plan order.
	Position int `json:"position"`

	// ResourceID, Op and Status mirror the engine outcome.
	ResourceID string `json:"resource_id"`
	Op         string `json:"op"`
	Status     string `json:"status"`

	// Reason carries the diff reason or failure cause.
	Reason string `json:"reason,omitempty"`

	// DurationMS is the action wall time in milliseconds.
	DurationMS int64 `json:"duration_ms"`
}
