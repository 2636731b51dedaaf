package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// Configuration errors abort an aggregation call.
	ErrMissingCutoff = errors.New("case has no cutoff date")
	ErrInvalidPlan   = errors.New("invalid plan")
	ErrNoActivePlan  = errors.New("case has no active plan")
	ErrInvalidRatio  = errors.New("invalid ratio")
	ErrInvalidRule   = errors.New("invalid contract rule")

	// Lookup errors
	ErrCaseNotFound         = errors.New("case not found")
	ErrEntryNotFound        = errors.New("ledger entry not found")
	ErrCounterpartyNotFound = errors.New("counterparty not found")
	ErrScopeNotFound        = errors.New("scope not found")

	// Per-entry data errors are collected as warnings.
	ErrInvalidServicePeriod   = errors.New("invalid service period")
	ErrMissingTransactionDate = errors.New("missing transaction date")

	// Review and split errors reject the write.
	ErrSplitSumMismatch     = errors.New("split amounts do not sum to parent amount")
	ErrAlreadySplit         = errors.New("entry is already split")
	ErrRecursiveSplit       = errors.New("split children cannot be split again")
	ErrNotSplit             = errors.New("entry is not split")
	ErrSplitReasonRequired  = errors.New("split reason is required")
	ErrAdjustReasonRequired = errors.New("adjust reason is required")
	ErrInvalidReviewAction  = errors.New("invalid review action")
	ErrEmptySplit           = errors.New("split needs at least two children")
	ErrSplitPreviewRequired = errors.New("split must be previewed before it is committed")
)

// SplitMismatchError reports the cent difference between a parent and its proposed children.
type SplitMismatchError struct {
	ParentCents   int64
	ChildrenCents int64
}

// DiffCents is parent minus children.
func (e *SplitMismatchError) DiffCents() int64 {
	return e.ParentCents - e.ChildrenCents
}

func (e *SplitMismatchError) Error() string {
	return fmt.Sprintf("%s: parent %d, children %d, diff %d",
		ErrSplitSumMismatch, e.ParentCents, e.ChildrenCents, e.DiffCents())
}

func (e *SplitMismatchError) Unwrap() error { return ErrSplitSumMismatch }

// EntryError ties a per-entry data error to the entry it came from.
type EntryError struct {
	EntryID string
	Err     error
}

func (e *EntryError) Error() string {
	return fmt.Sprintf("entry %s: %v", e.EntryID, e.Err)
}

func (e *EntryError) Unwrap() error { return e.Err }

// ValidationErrors collects multiple field errors.
type ValidationErrors []error

func (v ValidationErrors) Error() string {
	msgs := make([]string, len(v))
	for i, err := range v {
		msgs[i] = err.Error()
	}
	return strings.Join(msgs, "; ")
}

func (v ValidationErrors) Unwrap() []error { return v }

// OrNil returns nil when nothing was collected.
func (v ValidationErrors) OrNil() error {
	if len(v) == 0 {
		return nil
	}
	return v
}
