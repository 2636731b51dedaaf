package domain

import (
	"slices"
	"time"
)

// ValueKind distinguishes booked cash from forecast values.
type ValueKind string

const (
	ValueKindActual    ValueKind = "ACTUAL"
	ValueKindProjected ValueKind = "PROJECTED"
)

// ReviewStatus is the governance state of a ledger entry.
type ReviewStatus string

const (
	ReviewStatusUnreviewed ReviewStatus = "UNREVIEWED"
	ReviewStatusConfirmed  ReviewStatus = "CONFIRMED"
	ReviewStatusAdjusted   ReviewStatus = "ADJUSTED"
)

// IsReviewed reports whether a human reviewer has confirmed or adjusted the entry.
func (s ReviewStatus) IsReviewed() bool {
	return s == ReviewStatusConfirmed || s == ReviewStatusAdjusted
}

// EstateAllocation assigns an entry to the pre-filing or post-filing estate.
type EstateAllocation string

const (
	EstateAltmasse EstateAllocation = "ALTMASSE"
	EstateNeumasse EstateAllocation = "NEUMASSE"
	EstateMixed    EstateAllocation = "MIXED"
	EstateUnklar   EstateAllocation = "UNKLAR"
)

// AllocationSource records which rule produced an estate allocation.
type AllocationSource string

const (
	AllocationSourceContractRule  AllocationSource = "CONTRACT_RULE"
	AllocationSourceServiceDate   AllocationSource = "SERVICE_DATE"
	AllocationSourcePeriodProrata AllocationSource = "PERIOD_PRORATA"
	AllocationSourcePreviousMonth AllocationSource = "PREVIOUS_MONTH"
	AllocationSourceManual        AllocationSource = "MANUAL"
	AllocationSourceUnresolved    AllocationSource = "UNRESOLVED"
)

// LegalBucket is the legal treatment of a cash movement.
type LegalBucket string

const (
	LegalBucketMasse       LegalBucket = "MASSE"
	LegalBucketAbsonderung LegalBucket = "ABSONDERUNG"
	LegalBucketNeutral     LegalBucket = "NEUTRAL"
	LegalBucketUnknown     LegalBucket = "UNKNOWN"
)

// SteeringTagInternalTransfer marks money moved between the case's own accounts.
const SteeringTagInternalTransfer = "INTERNAL_TRANSFER"

// ServicePeriod is the inclusive date range a payment settles.
type ServicePeriod struct {
	Start time.Time
	End   time.Time
}

// Valid reports whether both bounds are set and ordered.
func (p ServicePeriod) Valid() bool {
	return !p.Start.IsZero() && !p.End.IsZero() && !DateOf(p.End).Before(DateOf(p.Start))
}

// Days returns the inclusive number of days covered.
func (p ServicePeriod) Days() int64 {
	return DaysBetween(p.Start, p.End) + 1
}

// LedgerEntry is a single cash transaction of a case. Confirmed entries are immutable.
type LedgerEntry struct {
	ID              string
	CaseID          string
	TransactionDate time.Time
	ServicePeriod   *ServicePeriod
	ServiceDate     *time.Time
	AmountCents     int64
	Description     string

	CounterpartyID string
	LocationID     string
	BankAccountID  string

	ValueKind    ValueKind
	ReviewStatus ReviewStatus

	EstateAllocation EstateAllocation
	AllocationSource AllocationSource
	// EstateRatio is the Neumasse share of a MIXED allocation.
	EstateRatio *Ratio

	CategoryTag  string
	LegalBucket  LegalBucket
	SteeringTags []string

	TransferPartnerEntryID string
	ParentEntryID          string

	ImportSource string
	ImportRow    int
	ImportHash   string

	SuggestedCounterpartyID string
	SuggestedCategoryTag    string
	SuggestedReason         string

	ReviewedBy string
	ReviewedAt *time.Time
	ReviewNote string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// HasSteeringTag reports whether the entry carries the given steering tag.
func (e *LedgerEntry) HasSteeringTag(tag string) bool {
	return slices.Contains(e.SteeringTags, tag)
}

// IsInternalTransfer reports whether the entry moves money between the case's own accounts.
func (e *LedgerEntry) IsInternalTransfer() bool {
	return e.TransferPartnerEntryID != "" || e.HasSteeringTag(SteeringTagInternalTransfer)
}

// IsInflow reports whether the entry increases liquidity.
func (e *LedgerEntry) IsInflow() bool {
	return e.AmountCents > 0
}

// HasConfirmedAllocation reports whether a reviewer fixed the estate split by hand.
func (e *LedgerEntry) HasConfirmedAllocation() bool {
	if e.EstateAllocation == "" {
		return false
	}
	return e.AllocationSource == AllocationSourceManual || e.EstateRatio != nil
}

// Clone returns a deep copy so snapshots cannot be mutated through shared pointers.
func (e *LedgerEntry) Clone() LedgerEntry {
	c := *e
	if e.ServicePeriod != nil {
		sp := *e.ServicePeriod
		c.ServicePeriod = &sp
	}
	if e.ServiceDate != nil {
		sd := *e.ServiceDate
		c.ServiceDate = &sd
	}
	if e.EstateRatio != nil {
		r := *e.EstateRatio
		c.EstateRatio = &r
	}
	if e.ReviewedAt != nil {
		ra := *e.ReviewedAt
		c.ReviewedAt = &ra
	}
	c.SteeringTags = slices.Clone(e.SteeringTags)
	return c
}
