package aggregation

import (
	"time"

	"github.com/iho/estateledger/internal/domain"
)

// Flow is the direction of a cash movement.
type Flow string

const (
	FlowInflow  Flow = "INFLOW"
	FlowOutflow Flow = "OUTFLOW"
)

// Fallback keys for entries without category or counterparty.
const (
	UncategorizedTag = "UNCATEGORIZED"
	UnassignedLine   = "UNASSIGNED"
)

// EstateSplit is an amount broken down by estate. Outflows are stored as positive magnitudes.
type EstateSplit struct {
	AltCents    int64 `json:"altCents"`
	NeuCents    int64 `json:"neuCents"`
	UnklarCents int64 `json:"unklarCents"`
}

// Total returns Alt + Neu + Unklar.
func (s EstateSplit) Total() int64 { return s.AltCents + s.NeuCents + s.UnklarCents }

func (s *EstateSplit) add(o EstateSplit) {
	s.AltCents += o.AltCents
	s.NeuCents += o.NeuCents
	s.UnklarCents += o.UnklarCents
}

// Period is one bucket of the plan.
type Period struct {
	Index               int         `json:"index"`
	Label               string      `json:"label"`
	Start               time.Time   `json:"start"`
	End                 time.Time   `json:"end"`
	OpeningBalanceCents int64       `json:"openingBalanceCents"`
	ClosingBalanceCents int64       `json:"closingBalanceCents"`
	Inflow              EstateSplit `json:"inflow"`
	Outflow             EstateSplit `json:"outflow"`
	NetCents            int64       `json:"netCents"`
	EntryCount          int         `json:"entryCount"`
}

// Line is a counterparty row within a category.
type Line struct {
	CounterpartyID string  `json:"counterpartyId"`
	Name           string  `json:"name"`
	PeriodCents    []int64 `json:"periodCents"`
	TotalCents     int64   `json:"totalCents"`
}

// Category sums one category tag in one flow direction.
type Category struct {
	Flow        Flow        `json:"flow"`
	Tag         string      `json:"tag"`
	PeriodCents []int64     `json:"periodCents"`
	TotalCents  int64       `json:"totalCents"`
	Estate      EstateSplit `json:"estate"`
	Lines       []Line      `json:"lines"`
}

// EstateSummary is the Altmasse/Neumasse view over the whole horizon.
type EstateSummary struct {
	Inflow            EstateSplit `json:"inflow"`
	Outflow           EstateSplit `json:"outflow"`
	UnklarEntryCount  int         `json:"unklarEntryCount"`
	ManualReviewCount int         `json:"manualReviewCount"`
}

// NetAltCents is Altmasse inflow minus outflow.
func (s EstateSummary) NetAltCents() int64 { return s.Inflow.AltCents - s.Outflow.AltCents }

// NetNeuCents is Neumasse inflow minus outflow.
func (s EstateSummary) NetNeuCents() int64 { return s.Inflow.NeuCents - s.Outflow.NeuCents }

// Result is the aggregate of one case, plan and scope.
type Result struct {
	CaseID              string            `json:"caseId"`
	PlanID              string            `json:"planId"`
	Scope               Scope             `json:"scope"`
	PeriodType          domain.PeriodType `json:"periodType"`
	Periods             []Period          `json:"periods"`
	Categories          []Category        `json:"categories"`
	Inflow              EstateSplit       `json:"inflow"`
	Outflow             EstateSplit       `json:"outflow"`
	OpeningBalanceCents int64             `json:"openingBalanceCents"`
	ClosingBalanceCents int64             `json:"closingBalanceCents"`
	Estate              EstateSummary     `json:"estate"`
	Warnings            []domain.Warning  `json:"warnings"`

	EntryCount    int `json:"entryCount"`
	ExcludedCount int `json:"excludedCount"`
	PreStartCount int `json:"preStartCount"`

	CentralCostsOmitted bool  `json:"centralCostsOmitted"`
	OmittedEntryCount   int   `json:"omittedEntryCount"`
	OmittedAmountCents  int64 `json:"omittedAmountCents"`

	ContentHash  string    `json:"contentHash"`
	CalculatedAt time.Time `json:"calculatedAt"`
}

// WarningsOf returns the warnings of type t.
func (r *Result) WarningsOf(t domain.WarningType) []domain.Warning {
	var out []domain.Warning
	for _, w := range r.Warnings {
		if w.Type == t {
			out = append(out, w)
		}
	}
	return out
}
