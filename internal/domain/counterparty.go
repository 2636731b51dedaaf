package domain

import "time"

// FallbackRule decides how an entry without service period is settled.
type FallbackRule string

const (
	FallbackNone          FallbackRule = "NONE"
	FallbackPreviousMonth FallbackRule = "PREVIOUS_MONTH"
	FallbackManual        FallbackRule = "MANUAL"
)

// Counterparty is a case-scoped creditor or debtor.
type Counterparty struct {
	ID     string
	CaseID string
	Name   string
	// MatchPattern is a case-insensitive regular expression over entry descriptions.
	MatchPattern string
	// Type doubles as the contract type for contract rules.
	Type               string
	DisplayOrder       int
	DefaultCategoryTag string
	FallbackRule       FallbackRule
	CreatedAt          time.Time
	UpdatedAt          time.Time
}
