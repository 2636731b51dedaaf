// Package bankbalance computes per-account balance trajectories over a plan.
package bankbalance

import (
	"cmp"
	"slices"
	"time"

	"github.com/iho/estateledger/internal/aggregation"
	"github.com/iho/estateledger/internal/domain"
)

// PeriodStatus tells whether a balance was computed from entries or carried forward.
type PeriodStatus string

const (
	StatusComputed PeriodStatus = "COMPUTED"
	StatusFrozen   PeriodStatus = "FROZEN"
)

// Input is the snapshot for one calculation.
type Input struct {
	Plan             *domain.Plan
	Accounts         []domain.BankAccount
	Entries          []domain.LedgerEntry
	Scope            aggregation.Scope
	IncludeProjected bool
	// ReviewStatuses defaults to CONFIRMED and ADJUSTED.
	ReviewStatuses []domain.ReviewStatus
}

var reviewedStatuses = []domain.ReviewStatus{domain.ReviewStatusConfirmed, domain.ReviewStatusAdjusted}

// AccountPeriod is the balance of one account at the end of one period.
type AccountPeriod struct {
	Index        int          `json:"index"`
	BalanceCents int64        `json:"balanceCents"`
	NetCents     int64        `json:"netCents"`
	EntryCount   int          `json:"entryCount"`
	Status       PeriodStatus `json:"status"`
	// LastTransactionDate is the period's own last entry when COMPUTED and the
	// last active period's last entry when FROZEN.
	LastTransactionDate *time.Time `json:"lastTransactionDate,omitempty"`
}

// AccountBalance is the trajectory of one bank account.
type AccountBalance struct {
	AccountID           string               `json:"accountId"`
	Name                string               `json:"name"`
	BankName            string               `json:"bankName,omitempty"`
	LocationID          string               `json:"locationId,omitempty"`
	Status              domain.AccountStatus `json:"status"`
	OpeningBalanceCents int64                `json:"openingBalanceCents"`
	StartBalanceCents   int64                `json:"startBalanceCents"`
	Periods             []AccountPeriod      `json:"periods"`
	FinalBalanceCents   int64                `json:"finalBalanceCents"`
}

// PeriodTotal sums all accounts for one period.
type PeriodTotal struct {
	Index          int    `json:"index"`
	Label          string `json:"label"`
	TotalCents     int64  `json:"totalCents"`
	AvailableCents int64  `json:"availableCents"`
}

// Report is the result of a calculation.
type Report struct {
	Scope               aggregation.Scope `json:"scope"`
	Accounts            []AccountBalance  `json:"accounts"`
	Totals              []PeriodTotal     `json:"totals"`
	FinalTotalCents     int64             `json:"finalTotalCents"`
	FinalAvailableCents int64             `json:"finalAvailableCents"`
	UnassignedCount     int               `json:"unassignedCount"`
	BeyondHorizonCount  int               `json:"beyondHorizonCount"`
}

type accountState struct {
	balance AccountBalance
	net     []int64
	count   []int
	last    []time.Time
	preLast time.Time
	order   int
}

// Calculate builds the balance report. Only the plan configuration can fail.
func Calculate(in Input) (*Report, error) {
	b, err := aggregation.NewBucketer(in.Plan)
	if err != nil {
		return nil, err
	}
	if in.Scope.ID == "" && in.Scope.IsGlobal() {
		in.Scope = aggregation.GlobalScope()
	}
	filter, err := aggregation.NewScopeFilter(in.Scope, nil)
	if err != nil {
		return nil, err
	}

	statuses := in.ReviewStatuses
	if len(statuses) == 0 {
		statuses = reviewedStatuses
	}

	n := b.Count()
	states := make(map[string]*accountState)
	var order []*accountState
	for _, a := range in.Accounts {
		if !filter.IncludesAccount(&a) {
			continue
		}
		s := &accountState{
			balance: AccountBalance{
				AccountID:           a.ID,
				Name:                a.Name,
				BankName:            a.BankName,
				LocationID:          a.LocationID,
				Status:              a.Status,
				OpeningBalanceCents: a.OpeningBalanceCents,
				StartBalanceCents:   a.OpeningBalanceCents,
			},
			net:   make([]int64, n),
			count: make([]int, n),
			last:  make([]time.Time, n),
			order: a.DisplayOrder,
		}
		states[a.ID] = s
		order = append(order, s)
	}
	slices.SortStableFunc(order, func(x, y *accountState) int {
		return cmp.Or(cmp.Compare(x.order, y.order), cmp.Compare(x.balance.AccountID, y.balance.AccountID))
	})

	rep := &Report{Scope: in.Scope, Accounts: make([]AccountBalance, 0, len(order)), Totals: make([]PeriodTotal, n)}
	parents := make(map[string]bool)
	for i := range in.Entries {
		if p := in.Entries[i].ParentEntryID; p != "" {
			parents[p] = true
		}
	}

	for i := range in.Entries {
		e := &in.Entries[i]
		if parents[e.ID] || !slices.Contains(statuses, e.ReviewStatus) {
			continue
		}
		if e.ValueKind == domain.ValueKindProjected && !in.IncludeProjected {
			continue
		}
		s, ok := states[e.BankAccountID]
		if !ok {
			if e.BankAccountID == "" {
				rep.UnassignedCount++
			}
			continue
		}
		if e.TransactionDate.IsZero() {
			continue
		}
		tx := domain.DateOf(e.TransactionDate)
		idx, pos := b.Index(tx)
		switch pos {
		case aggregation.PositionBefore:
			s.balance.StartBalanceCents += e.AmountCents
			if tx.After(s.preLast) {
				s.preLast = tx
			}
		case aggregation.PositionBeyond:
			rep.BeyondHorizonCount++
		default:
			s.net[idx] += e.AmountCents
			s.count[idx]++
			if tx.After(s.last[idx]) {
				s.last[idx] = tx
			}
		}
	}

	for i := range rep.Totals {
		rep.Totals[i] = PeriodTotal{Index: i, Label: b.Label(i)}
	}
	for _, s := range order {
		s.finish(n)
		for i, p := range s.balance.Periods {
			rep.Totals[i].TotalCents += p.BalanceCents
			if s.balance.Status == domain.AccountStatusAvailable {
				rep.Totals[i].AvailableCents += p.BalanceCents
			}
		}
		rep.FinalTotalCents += s.balance.FinalBalanceCents
		if s.balance.Status == domain.AccountStatusAvailable {
			rep.FinalAvailableCents += s.balance.FinalBalanceCents
		}
		rep.Accounts = append(rep.Accounts, s.balance)
	}
	return rep, nil
}

func (s *accountState) finish(n int) {
	balance := s.balance.StartBalanceCents
	var lastActive *time.Time
	if !s.preLast.IsZero() {
		t := s.preLast
		lastActive = &t
	}

	s.balance.Periods = make([]AccountPeriod, n)
	for i := 0; i < n; i++ {
		p := AccountPeriod{Index: i, NetCents: s.net[i], EntryCount: s.count[i]}
		if s.count[i] > 0 {
			balance += s.net[i]
			t := s.last[i]
			lastActive = &t
			p.Status = StatusComputed
		} else {
			p.Status = StatusFrozen
		}
		if lastActive != nil {
			t := *lastActive
			p.LastTransactionDate = &t
		}
		p.BalanceCents = balance
		s.balance.Periods[i] = p
	}
	s.balance.FinalBalanceCents = balance
}
