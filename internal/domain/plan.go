package domain

import (
	"fmt"
	"time"
)

// PeriodType is the granularity of a liquidity plan.
type PeriodType string

const (
	PeriodWeekly  PeriodType = "WEEKLY"
	PeriodMonthly PeriodType = "MONTHLY"
)

// MaxPeriodCount caps the horizon of a plan.
const MaxPeriodCount = 520

// Plan is the period grid of a case's liquidity forecast.
type Plan struct {
	ID                  string
	CaseID              string
	Name                string
	PeriodType          PeriodType
	PeriodCount         int
	StartDate           time.Time
	OpeningBalanceCents int64
	IsActive            bool
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// Validate checks the plan can be bucketed.
func (p *Plan) Validate() error {
	if p == nil {
		return ErrNoActivePlan
	}
	if p.PeriodType != PeriodWeekly && p.PeriodType != PeriodMonthly {
		return fmt.Errorf("%w: unknown period type %q", ErrInvalidPlan, p.PeriodType)
	}
	if p.PeriodCount <= 0 || p.PeriodCount > MaxPeriodCount {
		return fmt.Errorf("%w: period count %d out of range", ErrInvalidPlan, p.PeriodCount)
	}
	if p.StartDate.IsZero() {
		return fmt.Errorf("%w: missing start date", ErrInvalidPlan)
	}
	return nil
}

// ContractRule overrides the estate split for one contract type in one calendar period.
// Period is "YYYY-MM" or "YYYY-Qn".
type ContractRule struct {
	ContractType string
	Period       string
	AltShare     Ratio
	NeuShare     Ratio
	Note         string
}

// Location is an operating site of the debtor.
type Location struct {
	ID   string
	Name string
}

// Case is an insolvency proceeding.
type Case struct {
	ID            string
	Name          string
	CutoffDate    *time.Time
	ContractRules []ContractRule
	Locations     []Location
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Cutoff returns the cutoff date or ErrMissingCutoff.
func (c *Case) Cutoff() (time.Time, error) {
	if c == nil || c.CutoffDate == nil || c.CutoffDate.IsZero() {
		return time.Time{}, ErrMissingCutoff
	}
	return DateOf(*c.CutoffDate), nil
}
