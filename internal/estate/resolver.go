// Package estate assigns ledger entries to the pre-filing (Altmasse) and
// post-filing (Neumasse) estates.
package estate

import (
	"fmt"
	"time"

	"github.com/iho/estateledger/internal/domain"
)

// Allocation is the exact cent split of one entry. AltCents+NeuCents+UnklarCents
// always equals the entry amount.
type Allocation struct {
	AltCents     int64                   `json:"altCents"`
	NeuCents     int64                   `json:"neuCents"`
	UnklarCents  int64                   `json:"unklarCents"`
	Kind         domain.EstateAllocation `json:"kind"`
	Source       domain.AllocationSource `json:"source"`
	Note         string                  `json:"note,omitempty"`
	ManualReview bool                    `json:"manualReview"`
}

// Resolver applies the allocation rules of one case.
type Resolver struct {
	cutoff time.Time
	rules  *RulesTable
}

// NewResolver builds a resolver from the case configuration.
func NewResolver(c *domain.Case) (*Resolver, error) {
	cutoff, err := c.Cutoff()
	if err != nil {
		return nil, err
	}
	rules, err := NewRulesTable(c.ContractRules)
	if err != nil {
		return nil, err
	}
	return &Resolver{cutoff: cutoff, rules: rules}, nil
}

// Cutoff returns the date from which entries belong to the Neumasse.
func (r *Resolver) Cutoff() time.Time { return r.cutoff }

// Resolve allocates e. cp may be nil when the entry has no counterparty.
func (r *Resolver) Resolve(e *domain.LedgerEntry, cp *domain.Counterparty) (Allocation, error) {
	if e.HasConfirmedAllocation() {
		return r.confirmed(e)
	}

	contractType := ""
	if cp != nil {
		contractType = cp.Type
	}

	if e.ServicePeriod != nil {
		if !e.ServicePeriod.Valid() {
			return Allocation{}, fmt.Errorf("%w: entry %s", domain.ErrInvalidServicePeriod, e.ID)
		}
		if r.spans(*e.ServicePeriod) {
			if rule, ok := r.rules.Lookup(contractType, *e.ServicePeriod); ok {
				return r.applyRule(e.AmountCents, rule)
			}
		}
	}

	if e.ServiceDate != nil && e.ServicePeriod == nil {
		if domain.DateOf(*e.ServiceDate).Before(r.cutoff) {
			return whole(e.AmountCents, domain.EstateAltmasse, domain.AllocationSourceServiceDate, ""), nil
		}
		return whole(e.AmountCents, domain.EstateNeumasse, domain.AllocationSourceServiceDate, ""), nil
	}

	if e.ServicePeriod != nil {
		return r.byPeriod(e.AmountCents, *e.ServicePeriod, contractType, domain.AllocationSourcePeriodProrata)
	}

	if cp != nil && cp.FallbackRule == domain.FallbackPreviousMonth {
		if e.TransactionDate.IsZero() {
			return Allocation{}, fmt.Errorf("%w: entry %s", domain.ErrMissingTransactionDate, e.ID)
		}
		prev := domain.AddMonths(e.TransactionDate, -1)
		sp := domain.ServicePeriod{Start: prev, End: domain.MonthEnd(prev)}
		a, err := r.byPeriod(e.AmountCents, sp, contractType, domain.AllocationSourcePreviousMonth)
		if err != nil {
			return Allocation{}, err
		}
		if a.Note == "" {
			a.Note = "service period derived from previous month " + prev.Format("2006-01")
		}
		return a, nil
	}

	a := whole(e.AmountCents, domain.EstateUnklar, domain.AllocationSourceUnresolved, "no service period")
	a.ManualReview = true
	return a, nil
}

func (r *Resolver) confirmed(e *domain.LedgerEntry) (Allocation, error) {
	source := e.AllocationSource
	if source == "" {
		source = domain.AllocationSourceManual
	}
	if e.EstateRatio != nil {
		neu := *e.EstateRatio
		if !neu.IsShare() {
			return Allocation{}, fmt.Errorf("%w: entry %s ratio %s", domain.ErrInvalidRatio, e.ID, neu)
		}
		return split(e.AmountCents, neu.Complement(), neu, source, e.ReviewNote)
	}

	switch e.EstateAllocation {
	case domain.EstateAltmasse, domain.EstateNeumasse:
		return whole(e.AmountCents, e.EstateAllocation, source, e.ReviewNote), nil
	case domain.EstateUnklar:
		a := whole(e.AmountCents, domain.EstateUnklar, source, e.ReviewNote)
		a.ManualReview = true
		return a, nil
	default:
		return Allocation{}, fmt.Errorf("%w: entry %s has %s allocation without ratio",
			domain.ErrInvalidRatio, e.ID, e.EstateAllocation)
	}
}

func (r *Resolver) spans(sp domain.ServicePeriod) bool {
	return domain.DateOf(sp.Start).Before(r.cutoff) && !domain.DateOf(sp.End).Before(r.cutoff)
}

func (r *Resolver) byPeriod(amount int64, sp domain.ServicePeriod, contractType string, source domain.AllocationSource) (Allocation, error) {
	if domain.DateOf(sp.End).Before(r.cutoff) {
		return whole(amount, domain.EstateAltmasse, source, ""), nil
	}
	if !domain.DateOf(sp.Start).Before(r.cutoff) {
		return whole(amount, domain.EstateNeumasse, source, ""), nil
	}
	if rule, ok := r.rules.Lookup(contractType, sp); ok {
		return r.applyRule(amount, rule)
	}

	total := sp.Days()
	altDays := domain.DaysBetween(sp.Start, r.cutoff)
	alt, err := domain.NewRatio(altDays, total)
	if err != nil {
		return Allocation{}, err
	}
	note := fmt.Sprintf("%d of %d days before cutoff", altDays, total)
	return split(amount, alt, alt.Complement(), source, note)
}

func (r *Resolver) applyRule(amount int64, rule domain.ContractRule) (Allocation, error) {
	note := rule.Note
	if note == "" {
		note = fmt.Sprintf("contract rule %s %s", rule.ContractType, rule.Period)
	}
	return split(amount, rule.AltShare, rule.NeuShare, domain.AllocationSourceContractRule, note)
}

func split(amount int64, alt, neu domain.Ratio, source domain.AllocationSource, note string) (Allocation, error) {
	parts, err := domain.SplitCents(amount, alt, neu)
	if err != nil {
		return Allocation{}, err
	}
	kind := domain.EstateMixed
	switch {
	case alt.IsOne():
		kind = domain.EstateAltmasse
	case neu.IsOne():
		kind = domain.EstateNeumasse
	}
	return Allocation{AltCents: parts[0], NeuCents: parts[1], Kind: kind, Source: source, Note: note}, nil
}

func whole(amount int64, kind domain.EstateAllocation, source domain.AllocationSource, note string) Allocation {
	a := Allocation{Kind: kind, Source: source, Note: note}
	switch kind {
	case domain.EstateAltmasse:
		a.AltCents = amount
	case domain.EstateNeumasse:
		a.NeuCents = amount
	default:
		a.UnklarCents = amount
	}
	return a
}
