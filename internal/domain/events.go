package domain

import "time"

// Event types
const (
	EventTypeAggregationStale   = "aggregation.stale"
	EventTypeAggregationRebuilt = "aggregation.rebuilt"
)

// AggregationStatus is the freshness of a case's cached aggregate.
type AggregationStatus string

const (
	AggregationCurrent    AggregationStatus = "CURRENT"
	AggregationStale      AggregationStatus = "STALE"
	AggregationRebuilding AggregationStatus = "REBUILDING"
)

// RebuildLease is how long a REBUILDING state blocks other rebuilds. Older
// rebuild markers are treated as abandoned.
const RebuildLease = 5 * time.Minute

// AggregationState is the cache row deciding whether a case must be recomputed.
type AggregationState struct {
	CaseID         string
	Status         AggregationStatus
	PendingChanges int
	LastHash       string
	LastBuiltAt    *time.Time
	UpdatedAt      time.Time
}

// AggregationEvent is published when a case's aggregate changes state.
type AggregationEvent struct {
	Type           string    `json:"type"`
	CaseID         string    `json:"caseId"`
	Reason         string    `json:"reason,omitempty"`
	PendingChanges int       `json:"pendingChanges"`
	Hash           string    `json:"hash,omitempty"`
	OccurredAt     time.Time `json:"occurredAt"`
}

// RebuildActive reports whether a rebuild started less than RebuildLease ago.
func (s *AggregationState) RebuildActive(at time.Time) bool {
	return s.Status == AggregationRebuilding && at.Sub(s.UpdatedAt) < RebuildLease
}
