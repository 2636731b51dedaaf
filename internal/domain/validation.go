package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Validation constants
const (
	MaxReasonLength      = 2000
	MaxSplitChildren     = 100
	MaxDescriptionLength = 4000
)

// ValidateEntry checks the data an entry needs before it can be resolved and bucketed.
func ValidateEntry(e *LedgerEntry) error {
	if e.TransactionDate.IsZero() {
		return ErrMissingTransactionDate
	}
	if e.ServicePeriod != nil && !e.ServicePeriod.Valid() {
		return fmt.Errorf("%w: %s to %s", ErrInvalidServicePeriod,
			formatDate(e.ServicePeriod.Start), formatDate(e.ServicePeriod.End))
	}
	if e.EstateRatio != nil && !e.EstateRatio.IsShare() {
		return fmt.Errorf("%w: estate ratio %s", ErrInvalidRatio, e.EstateRatio)
	}
	return nil
}

// SplitChild is one proposed part of a split entry.
type SplitChild struct {
	AmountCents    int64
	Description    string
	CounterpartyID string
	LocationID     string
	CategoryTag    string
	ServicePeriod  *ServicePeriod
}

// SplitRequest divides a parent entry into children whose amounts sum exactly to the parent.
type SplitRequest struct {
	Reason   string
	Children []SplitChild
}

// ValidateSplit checks a split request against its parent.
func ValidateSplit(parent *LedgerEntry, parentHasChildren bool, req SplitRequest) error {
	reason := strings.TrimSpace(req.Reason)
	if reason == "" {
		return ErrSplitReasonRequired
	}
	if len(reason) > MaxReasonLength {
		return fmt.Errorf("%w: reason exceeds %d characters", ErrSplitReasonRequired, MaxReasonLength)
	}
	if parent.ParentEntryID != "" {
		return ErrRecursiveSplit
	}
	if parentHasChildren {
		return ErrAlreadySplit
	}
	if len(req.Children) < 2 || len(req.Children) > MaxSplitChildren {
		return fmt.Errorf("%w: got %d", ErrEmptySplit, len(req.Children))
	}

	var sum int64
	for i, c := range req.Children {
		if c.ServicePeriod != nil && !c.ServicePeriod.Valid() {
			return fmt.Errorf("child %d: %w", i, ErrInvalidServicePeriod)
		}
		sum += c.AmountCents
	}
	if sum != parent.AmountCents {
		return &SplitMismatchError{ParentCents: parent.AmountCents, ChildrenCents: sum}
	}
	return nil
}

// SplitToken fingerprints a split request against the parent version it was
// previewed with. A commit must present the token of its preview.
func SplitToken(parent *LedgerEntry, req SplitRequest) string {
	h := sha256.New()
	write := func(parts ...string) {
		for _, p := range parts {
			h.Write([]byte(p))
			h.Write([]byte{0x1f})
		}
		h.Write([]byte{'\n'})
	}
	write(parent.ID, strconv.FormatInt(parent.AmountCents, 10), parent.UpdatedAt.UTC().Format(time.RFC3339Nano), strings.TrimSpace(req.Reason))
	for _, c := range req.Children {
		start, end := "", ""
		if c.ServicePeriod != nil {
			start, end = formatDate(c.ServicePeriod.Start), formatDate(c.ServicePeriod.End)
		}
		write(strconv.FormatInt(c.AmountCents, 10), c.Description, c.CounterpartyID, c.LocationID, c.CategoryTag, start, end)
	}
	return hex.EncodeToString(h.Sum(nil))
}

// BuildSplitChildren derives the child entries of a validated split. Children
// inherit the parent's dates, review state and allocation unless the child
// overrides them. ids supplies one ID per child.
func BuildSplitChildren(parent *LedgerEntry, req SplitRequest, ids []string, at time.Time) []LedgerEntry {
	children := make([]LedgerEntry, len(req.Children))
	for i, c := range req.Children {
		child := parent.Clone()
		child.ID = ""
		if i < len(ids) {
			child.ID = ids[i]
		}
		child.ParentEntryID = parent.ID
		child.AmountCents = c.AmountCents
		if d := strings.TrimSpace(c.Description); d != "" {
			child.Description = d
		}
		if c.CounterpartyID != "" {
			child.CounterpartyID = c.CounterpartyID
		}
		if c.LocationID != "" {
			child.LocationID = c.LocationID
		}
		if c.CategoryTag != "" {
			child.CategoryTag = c.CategoryTag
		}
		if c.ServicePeriod != nil {
			sp := *c.ServicePeriod
			child.ServicePeriod = &sp
			if child.AllocationSource != AllocationSourceManual {
				child.EstateAllocation = ""
				child.AllocationSource = ""
				child.EstateRatio = nil
			}
		}
		child.ImportSource = "split"
		child.ImportRow = i + 1
		child.ImportHash = ""
		child.SuggestedCounterpartyID = ""
		child.SuggestedCategoryTag = ""
		child.SuggestedReason = ""
		child.ReviewNote = strings.TrimSpace(req.Reason)
		child.CreatedAt = at
		child.UpdatedAt = at
		children[i] = child
	}
	return children
}

// ReviewAction is what a reviewer does with an entry.
type ReviewAction string

const (
	ReviewActionConfirm ReviewAction = "confirm"
	ReviewActionAdjust  ReviewAction = "adjust"
)

// ReviewRequest confirms an entry as is, or adjusts its classification.
type ReviewRequest struct {
	Action   ReviewAction
	Reviewer string
	Reason   string

	CounterpartyID   string
	CategoryTag      string
	LegalBucket      LegalBucket
	EstateAllocation EstateAllocation
	EstateRatio      *Ratio
	ServicePeriod    *ServicePeriod
}

// ValidateReview checks a review request.
func ValidateReview(req ReviewRequest) error {
	var errs ValidationErrors
	switch req.Action {
	case ReviewActionConfirm:
	case ReviewActionAdjust:
		if strings.TrimSpace(req.Reason) == "" {
			errs = append(errs, ErrAdjustReasonRequired)
		}
	default:
		errs = append(errs, fmt.Errorf("%w: %q", ErrInvalidReviewAction, req.Action))
	}
	if len(req.Reason) > MaxReasonLength {
		errs = append(errs, fmt.Errorf("reason exceeds %d characters", MaxReasonLength))
	}
	if req.EstateRatio != nil && !req.EstateRatio.IsShare() {
		errs = append(errs, fmt.Errorf("%w: estate ratio %s", ErrInvalidRatio, req.EstateRatio))
	}
	if req.EstateAllocation == EstateMixed && req.EstateRatio == nil {
		errs = append(errs, fmt.Errorf("%w: mixed allocation needs a ratio", ErrInvalidRatio))
	}
	if req.ServicePeriod != nil && !req.ServicePeriod.Valid() {
		errs = append(errs, ErrInvalidServicePeriod)
	}
	return errs.OrNil()
}

// Apply produces the reviewed entry. The input entry is not modified.
func (req ReviewRequest) Apply(e *LedgerEntry, at time.Time) LedgerEntry {
	out := e.Clone()
	out.ReviewedBy = req.Reviewer
	out.ReviewedAt = &at
	out.ReviewNote = strings.TrimSpace(req.Reason)
	out.UpdatedAt = at

	if req.Action == ReviewActionConfirm {
		out.ReviewStatus = ReviewStatusConfirmed
		if out.CounterpartyID == "" {
			out.CounterpartyID = out.SuggestedCounterpartyID
		}
		if out.CategoryTag == "" {
			out.CategoryTag = out.SuggestedCategoryTag
		}
		return out
	}

	out.ReviewStatus = ReviewStatusAdjusted
	if req.CounterpartyID != "" {
		out.CounterpartyID = req.CounterpartyID
	}
	if req.CategoryTag != "" {
		out.CategoryTag = req.CategoryTag
	}
	if req.LegalBucket != "" {
		out.LegalBucket = req.LegalBucket
	}
	if req.ServicePeriod != nil {
		sp := *req.ServicePeriod
		out.ServicePeriod = &sp
	}
	if req.EstateRatio != nil {
		r := *req.EstateRatio
		out.EstateRatio = &r
		out.EstateAllocation = allocationForRatio(r)
		out.AllocationSource = AllocationSourceManual
	} else if req.EstateAllocation != "" {
		out.EstateAllocation = req.EstateAllocation
		out.AllocationSource = AllocationSourceManual
	}
	return out
}

func allocationForRatio(neu Ratio) EstateAllocation {
	switch {
	case neu.IsZero():
		return EstateAltmasse
	case neu.IsOne():
		return EstateNeumasse
	default:
		return EstateMixed
	}
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return "<unset>"
	}
	return t.Format(time.DateOnly)
}
