package domain

// WarningType classifies a non-fatal finding of an aggregation run.
type WarningType string

const (
	WarningUnklarAboveThreshold  WarningType = "UNKLAR_ABOVE_THRESHOLD"
	WarningCategoryConflict      WarningType = "CATEGORY_CONFLICT"
	WarningOutflowExceedsBalance WarningType = "OUTFLOW_EXCEEDS_BALANCE"
	WarningBeyondHorizon         WarningType = "BEYOND_HORIZON"
	WarningUnreviewableEntry     WarningType = "UNREVIEWABLE_ENTRY"
	WarningManualReviewRequired  WarningType = "MANUAL_REVIEW_REQUIRED"
)

// Severity of a warning.
type Severity string

const (
	SeverityInfo     Severity = "INFO"
	SeverityWarning  Severity = "WARNING"
	SeverityCritical Severity = "CRITICAL"
)

// Warning is attached to an aggregation result and never aborts the run.
type Warning struct {
	Type        WarningType `json:"type"`
	Severity    Severity    `json:"severity"`
	Message     string      `json:"message"`
	Count       int         `json:"count"`
	AmountCents int64       `json:"amountCents"`
	EntryIDs    []string    `json:"entryIds,omitempty"`
	PeriodIndex *int        `json:"periodIndex,omitempty"`
}
