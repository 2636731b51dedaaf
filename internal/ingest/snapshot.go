package ingest

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/iho/estateledger/internal/aggregation"
	"github.com/iho/estateledger/internal/domain"
	"github.com/iho/estateledger/internal/estate"
)

// CaseSpec is the external form of a case.
type CaseSpec struct {
	ID         string            `json:"id"`
	Name       string            `json:"name"`
	CutoffDate string            `json:"cutoffDate"`
	Rules      []estate.RuleSpec `json:"rules,omitempty"`
	Locations  []domain.Location `json:"locations,omitempty"`
}

// PlanSpec is the external form of a plan.
type PlanSpec struct {
	ID                  string `json:"id"`
	PeriodType          string `json:"periodType"`
	PeriodCount         int    `json:"periodCount"`
	StartDate           string `json:"startDate"`
	OpeningBalanceCents int64  `json:"openingBalanceCents"`
}

// CounterpartySpec is the external form of a counterparty.
type CounterpartySpec struct {
	ID                 string `json:"id"`
	Name               string `json:"name"`
	MatchPattern       string `json:"matchPattern,omitempty"`
	Type               string `json:"type,omitempty"`
	DisplayOrder       int    `json:"displayOrder"`
	DefaultCategoryTag string `json:"defaultCategoryTag,omitempty"`
	FallbackRule       string `json:"fallbackRule,omitempty"`
}

// BankAccountSpec is the external form of a bank account.
type BankAccountSpec struct {
	ID                  string `json:"id"`
	Name                string `json:"name"`
	BankName            string `json:"bankName,omitempty"`
	IBAN                string `json:"iban,omitempty"`
	OpeningBalanceCents int64  `json:"openingBalanceCents"`
	LocationID          string `json:"locationId,omitempty"`
	Status              string `json:"status,omitempty"`
	DisplayOrder        int    `json:"displayOrder"`
}

// Snapshot is a self-contained case export used by previews and the CLI.
type Snapshot struct {
	Case           CaseSpec           `json:"case"`
	Plan           PlanSpec           `json:"plan"`
	Counterparties []CounterpartySpec `json:"counterparties,omitempty"`
	BankAccounts   []BankAccountSpec  `json:"bankAccounts,omitempty"`
	Records        []Record           `json:"records"`
}

// Resolved is a snapshot in canonical form.
type Resolved struct {
	Case           *domain.Case
	Plan           *domain.Plan
	Entries        []domain.LedgerEntry
	Counterparties []domain.Counterparty
	BankAccounts   []domain.BankAccount
}

// Input builds an aggregation input for scope and opts.
func (r *Resolved) Input(scope aggregation.Scope, opts aggregation.Options) aggregation.Input {
	return aggregation.Input{
		Case:           r.Case,
		Plan:           r.Plan,
		Entries:        r.Entries,
		Counterparties: r.Counterparties,
		BankAccounts:   r.BankAccounts,
		Scope:          scope,
		Options:        opts,
	}
}

// DecodeSnapshot reads a JSON snapshot.
func DecodeSnapshot(r io.Reader) (*Snapshot, error) {
	var s Snapshot
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&s); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	return &s, nil
}

// Resolve converts the snapshot into domain types. A missing cutoff is not an
// error here; aggregation reports it.
func (s *Snapshot) Resolve() (*Resolved, error) {
	c := &domain.Case{ID: s.Case.ID, Name: s.Case.Name, Locations: s.Case.Locations}
	if s.Case.CutoffDate != "" {
		cut, err := parseDate(s.Case.CutoffDate)
		if err != nil {
			return nil, fmt.Errorf("cutoff date: %w", err)
		}
		c.CutoffDate = &cut
	}
	rules, err := estate.ParseRules(s.Case.Rules)
	if err != nil {
		return nil, err
	}
	c.ContractRules = rules

	start, err := parseDate(s.Plan.StartDate)
	if err != nil {
		return nil, fmt.Errorf("plan start date: %w", err)
	}
	plan := &domain.Plan{
		ID:                  s.Plan.ID,
		CaseID:              c.ID,
		PeriodType:          domain.PeriodType(strings.ToUpper(s.Plan.PeriodType)),
		PeriodCount:         s.Plan.PeriodCount,
		StartDate:           start,
		OpeningBalanceCents: s.Plan.OpeningBalanceCents,
		IsActive:            true,
	}

	entries, err := Resolve(c.ID, plan, s.Records)
	if err != nil {
		return nil, err
	}

	cps := make([]domain.Counterparty, 0, len(s.Counterparties))
	for _, cp := range s.Counterparties {
		fallback := domain.FallbackRule(strings.ToUpper(cp.FallbackRule))
		if fallback == "" {
			fallback = domain.FallbackNone
		}
		cps = append(cps, domain.Counterparty{
			ID:                 cp.ID,
			CaseID:             c.ID,
			Name:               cp.Name,
			MatchPattern:       cp.MatchPattern,
			Type:               cp.Type,
			DisplayOrder:       cp.DisplayOrder,
			DefaultCategoryTag: cp.DefaultCategoryTag,
			FallbackRule:       fallback,
		})
	}

	accounts := make([]domain.BankAccount, 0, len(s.BankAccounts))
	for _, a := range s.BankAccounts {
		status := domain.AccountStatus(strings.ToUpper(a.Status))
		if status == "" {
			status = domain.AccountStatusAvailable
		}
		if !status.Valid() {
			return nil, fmt.Errorf("%w: bank account %s status %q", ErrInvalidRecord, a.ID, a.Status)
		}
		accounts = append(accounts, domain.BankAccount{
			ID:                  a.ID,
			CaseID:              c.ID,
			Name:                a.Name,
			BankName:            a.BankName,
			IBAN:                a.IBAN,
			OpeningBalanceCents: a.OpeningBalanceCents,
			LocationID:          a.LocationID,
			Status:              status,
			DisplayOrder:        a.DisplayOrder,
		})
	}

	return &Resolved{Case: c, Plan: plan, Entries: entries, Counterparties: cps, BankAccounts: accounts}, nil
}
