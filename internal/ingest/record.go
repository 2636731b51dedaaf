// Package ingest resolves the accepted input shapes into canonical ledger entries.
package ingest

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/iho/estateledger/internal/aggregation"
	"github.com/iho/estateledger/internal/domain"
)

// Kind discriminates records.
type Kind string

const (
	KindLegacy Kind = "legacy"
	KindLedger Kind = "ledger"
)

var ErrInvalidRecord = errors.New("invalid record")

// LegacyValue is a category/line/period value triple from the old plan format.
type LegacyValue struct {
	Category    string `json:"category"`
	Line        string `json:"line"`
	PeriodIndex int    `json:"periodIndex"`
	AmountCents int64  `json:"amountCents"`
	ValueKind   string `json:"valueKind,omitempty"`
	Estate      string `json:"estate,omitempty"`
}

// LedgerRecord is the flat external form of a ledger entry. Dates are YYYY-MM-DD.
type LedgerRecord struct {
	ID                     string   `json:"id"`
	TransactionDate        string   `json:"transactionDate"`
	ServicePeriodStart     string   `json:"servicePeriodStart,omitempty"`
	ServicePeriodEnd       string   `json:"servicePeriodEnd,omitempty"`
	ServiceDate            string   `json:"serviceDate,omitempty"`
	AmountCents            int64    `json:"amountCents"`
	Description            string   `json:"description"`
	CounterpartyID         string   `json:"counterpartyId,omitempty"`
	LocationID             string   `json:"locationId,omitempty"`
	BankAccountID          string   `json:"bankAccountId,omitempty"`
	ValueKind              string   `json:"valueKind,omitempty"`
	ReviewStatus           string   `json:"reviewStatus,omitempty"`
	EstateAllocation       string   `json:"estateAllocation,omitempty"`
	AllocationSource       string   `json:"allocationSource,omitempty"`
	EstateRatio            string   `json:"estateRatio,omitempty"`
	CategoryTag            string   `json:"categoryTag,omitempty"`
	SuggestedCategoryTag   string   `json:"suggestedCategoryTag,omitempty"`
	LegalBucket            string   `json:"legalBucket,omitempty"`
	SteeringTags           []string `json:"steeringTags,omitempty"`
	TransferPartnerEntryID string   `json:"transferPartnerEntryId,omitempty"`
	ParentEntryID          string   `json:"parentEntryId,omitempty"`
	ImportSource           string   `json:"importSource,omitempty"`
	ImportRow              int      `json:"importRow,omitempty"`
}

// Record is either a legacy triple or a ledger record.
type Record struct {
	Kind   Kind          `json:"kind"`
	Legacy *LegacyValue  `json:"legacy,omitempty"`
	Ledger *LedgerRecord `json:"ledger,omitempty"`
}

// UnmarshalJSON checks that the payload matches the discriminator.
func (r *Record) UnmarshalJSON(b []byte) error {
	type plain Record
	var p plain
	if err := json.Unmarshal(b, &p); err != nil {
		return err
	}
	switch p.Kind {
	case KindLegacy:
		if p.Legacy == nil || p.Ledger != nil {
			return fmt.Errorf("%w: legacy record needs exactly the legacy payload", ErrInvalidRecord)
		}
	case KindLedger:
		if p.Ledger == nil || p.Legacy != nil {
			return fmt.Errorf("%w: ledger record needs exactly the ledger payload", ErrInvalidRecord)
		}
	default:
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidRecord, p.Kind)
	}
	*r = Record(p)
	return nil
}

// Resolve turns records into ledger entries of caseID. Legacy values are dated at
// the start of their plan period and count as confirmed.
func Resolve(caseID string, plan *domain.Plan, records []Record) ([]domain.LedgerEntry, error) {
	var bucketer *aggregation.Bucketer
	entries := make([]domain.LedgerEntry, 0, len(records))
	seen := make(map[string]bool, len(records))

	for i, rec := range records {
		var (
			e   domain.LedgerEntry
			err error
		)
		switch rec.Kind {
		case KindLegacy:
			if bucketer == nil {
				if bucketer, err = aggregation.NewBucketer(plan); err != nil {
					return nil, fmt.Errorf("record %d: %w", i, err)
				}
			}
			e, err = fromLegacy(caseID, bucketer, rec.Legacy)
		case KindLedger:
			e, err = fromLedger(caseID, rec.Ledger)
		default:
			err = fmt.Errorf("%w: unknown kind %q", ErrInvalidRecord, rec.Kind)
		}
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
		if seen[e.ID] {
			return nil, fmt.Errorf("record %d: %w: duplicate id %s", i, ErrInvalidRecord, e.ID)
		}
		seen[e.ID] = true
		entries = append(entries, e)
	}
	return entries, nil
}

func fromLegacy(caseID string, b *aggregation.Bucketer, v *LegacyValue) (domain.LedgerEntry, error) {
	if v == nil {
		return domain.LedgerEntry{}, fmt.Errorf("%w: missing legacy payload", ErrInvalidRecord)
	}
	if v.PeriodIndex < 0 || v.PeriodIndex >= b.Count() {
		return domain.LedgerEntry{}, fmt.Errorf("%w: period %d outside plan", ErrInvalidRecord, v.PeriodIndex)
	}
	if strings.TrimSpace(v.Category) == "" {
		return domain.LedgerEntry{}, fmt.Errorf("%w: missing category", ErrInvalidRecord)
	}
	start, _ := b.Bounds(v.PeriodIndex)
	e := domain.LedgerEntry{
		ID:              fmt.Sprintf("legacy:%s:%s:%d", v.Category, v.Line, v.PeriodIndex),
		CaseID:          caseID,
		TransactionDate: start,
		AmountCents:     v.AmountCents,
		Description:     strings.TrimSpace(v.Category + " " + v.Line),
		CounterpartyID:  v.Line,
		CategoryTag:     v.Category,
		ValueKind:       valueKind(v.ValueKind, domain.ValueKindProjected),
		ReviewStatus:    domain.ReviewStatusConfirmed,
		ImportSource:    string(KindLegacy),
	}
	if v.Estate != "" {
		alloc := domain.EstateAllocation(strings.ToUpper(v.Estate))
		switch alloc {
		case domain.EstateAltmasse, domain.EstateNeumasse, domain.EstateUnklar:
			e.EstateAllocation = alloc
			e.AllocationSource = domain.AllocationSourceManual
		default:
			return domain.LedgerEntry{}, fmt.Errorf("%w: legacy estate %q", ErrInvalidRecord, v.Estate)
		}
	}
	return e, nil
}

func fromLedger(caseID string, r *LedgerRecord) (domain.LedgerEntry, error) {
	if r == nil {
		return domain.LedgerEntry{}, fmt.Errorf("%w: missing ledger payload", ErrInvalidRecord)
	}
	if strings.TrimSpace(r.ID) == "" {
		return domain.LedgerEntry{}, fmt.Errorf("%w: missing id", ErrInvalidRecord)
	}

	e := domain.LedgerEntry{
		ID:                     r.ID,
		CaseID:                 caseID,
		AmountCents:            r.AmountCents,
		Description:            r.Description,
		CounterpartyID:         r.CounterpartyID,
		LocationID:             r.LocationID,
		BankAccountID:          r.BankAccountID,
		ValueKind:              valueKind(r.ValueKind, domain.ValueKindActual),
		ReviewStatus:           reviewStatus(r.ReviewStatus),
		EstateAllocation:       domain.EstateAllocation(strings.ToUpper(r.EstateAllocation)),
		AllocationSource:       domain.AllocationSource(strings.ToUpper(r.AllocationSource)),
		CategoryTag:            r.CategoryTag,
		SuggestedCategoryTag:   r.SuggestedCategoryTag,
		LegalBucket:            domain.LegalBucket(strings.ToUpper(r.LegalBucket)),
		SteeringTags:           r.SteeringTags,
		TransferPartnerEntryID: r.TransferPartnerEntryID,
		ParentEntryID:          r.ParentEntryID,
		ImportSource:           r.ImportSource,
		ImportRow:              r.ImportRow,
	}

	// Unreadable dates keep the record. A zero transaction date or an
	// incomplete service period is reported as unreviewable during aggregation.
	e.TransactionDate = lenientDate(r.TransactionDate)
	if r.ServicePeriodStart != "" || r.ServicePeriodEnd != "" {
		e.ServicePeriod = &domain.ServicePeriod{
			Start: lenientDate(r.ServicePeriodStart),
			End:   lenientDate(r.ServicePeriodEnd),
		}
	}
	if r.ServiceDate != "" {
		if sd, err := parseDate(r.ServiceDate); err == nil {
			e.ServiceDate = &sd
		} else if e.ServicePeriod == nil {
			e.ServicePeriod = &domain.ServicePeriod{}
		}
	}
	if r.EstateRatio != "" {
		ratio, err := domain.ParseRatio(r.EstateRatio)
		if err != nil {
			return domain.LedgerEntry{}, err
		}
		e.EstateRatio = &ratio
		if e.EstateAllocation == "" {
			e.EstateAllocation = domain.EstateMixed
		}
	}
	return e, nil
}

// lenientDate returns the zero time for empty or unreadable input.
func lenientDate(s string) time.Time {
	t, err := parseDate(s)
	if err != nil {
		return time.Time{}
	}
	return t
}

// parseDate returns the zero time for empty input.
func parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %v", ErrInvalidRecord, err)
	}
	return t, nil
}

func valueKind(s string, def domain.ValueKind) domain.ValueKind {
	switch domain.ValueKind(strings.ToUpper(s)) {
	case domain.ValueKindActual:
		return domain.ValueKindActual
	case domain.ValueKindProjected:
		return domain.ValueKindProjected
	}
	return def
}

func reviewStatus(s string) domain.ReviewStatus {
	switch domain.ReviewStatus(strings.ToUpper(s)) {
	case domain.ReviewStatusConfirmed:
		return domain.ReviewStatusConfirmed
	case domain.ReviewStatusAdjusted:
		return domain.ReviewStatusAdjusted
	}
	return domain.ReviewStatusUnreviewed
}
