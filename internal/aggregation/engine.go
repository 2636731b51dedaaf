// Package aggregation turns a case's ledger into a period-bucketed liquidity
// forecast split between Altmasse, Neumasse and unresolved amounts.
package aggregation

import (
	"cmp"
	"fmt"
	"slices"
	"time"

	"github.com/iho/estateledger/internal/domain"
	"github.com/iho/estateledger/internal/estate"
)

// Options tune one aggregation run.
type Options struct {
	// ValueKinds defaults to ACTUAL and PROJECTED.
	ValueKinds []domain.ValueKind
	// ReviewStatuses defaults to CONFIRMED and ADJUSTED.
	ReviewStatuses []domain.ReviewStatus
	// UnklarThresholdCents is the materiality limit for unresolved amounts. Negative disables the warning.
	UnklarThresholdCents int64
	// CentralCostPatterns mark procedure costs that scoped views omit.
	CentralCostPatterns []string
}

// DefaultOptions returns options with every default filled in.
func DefaultOptions() Options {
	return Options{}.withDefaults()
}

func (o Options) withDefaults() Options {
	if len(o.ValueKinds) == 0 {
		o.ValueKinds = []domain.ValueKind{domain.ValueKindActual, domain.ValueKindProjected}
	}
	if len(o.ReviewStatuses) == 0 {
		o.ReviewStatuses = []domain.ReviewStatus{domain.ReviewStatusConfirmed, domain.ReviewStatusAdjusted}
	}
	if o.CentralCostPatterns == nil {
		o.CentralCostPatterns = DefaultCentralCostPatterns
	}
	o.ValueKinds = sortedUnique(o.ValueKinds)
	o.ReviewStatuses = sortedUnique(o.ReviewStatuses)
	return o
}

func sortedUnique[T cmp.Ordered](in []T) []T {
	out := slices.Clone(in)
	slices.Sort(out)
	return slices.Compact(out)
}

// Input is an immutable snapshot of everything one aggregation needs.
type Input struct {
	Case           *domain.Case
	Plan           *domain.Plan
	Entries        []domain.LedgerEntry
	Counterparties []domain.Counterparty
	BankAccounts   []domain.BankAccount
	Scope          Scope
	Options        Options
}

// Engine aggregates snapshots. It holds no mutable state and is safe for concurrent use.
type Engine struct {
	now func() time.Time
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithClock sets the clock used for CalculatedAt.
func WithClock(now func() time.Time) EngineOption {
	return func(e *Engine) { e.now = now }
}

// NewEngine creates an Engine.
func NewEngine(opts ...EngineOption) *Engine {
	e := &Engine{now: time.Now}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

type lineKey struct {
	flow Flow
	tag  string
}

type issueSet struct {
	count  int
	amount int64
	ids    []string
}

func (s *issueSet) add(e *domain.LedgerEntry) {
	s.count++
	s.amount += e.AmountCents
	if len(s.ids) < maxWarningEntryIDs {
		s.ids = append(s.ids, e.ID)
	}
}

const maxWarningEntryIDs = 50

type run struct {
	bucketer *Bucketer
	resolver *estate.Resolver
	filter   *ScopeFilter
	opts     Options
	cps      map[string]*domain.Counterparty

	res        *Result
	categories map[lineKey]*Category
	lines      map[lineKey]map[string]*Line

	beyond, unreviewable, manual, conflict issueSet
	unklarAbs                              int64
}

// Aggregate computes the forecast for in. Configuration errors abort the run;
// per-entry problems are reported as warnings.
func (g *Engine) Aggregate(in Input) (*Result, error) {
	if in.Case == nil {
		return nil, domain.ErrCaseNotFound
	}
	resolver, err := estate.NewResolver(in.Case)
	if err != nil {
		return nil, err
	}
	bucketer, err := NewBucketer(in.Plan)
	if err != nil {
		return nil, err
	}
	opts := in.Options.withDefaults()
	if in.Scope.ID == "" && in.Scope.IsGlobal() {
		in.Scope = GlobalScope()
	}
	filter, err := NewScopeFilter(in.Scope, opts.CentralCostPatterns)
	if err != nil {
		return nil, err
	}

	r := &run{
		bucketer:   bucketer,
		resolver:   resolver,
		filter:     filter,
		opts:       opts,
		cps:        make(map[string]*domain.Counterparty, len(in.Counterparties)),
		categories: make(map[lineKey]*Category),
		lines:      make(map[lineKey]map[string]*Line),
		res: &Result{
			CaseID:     in.Case.ID,
			PlanID:     in.Plan.ID,
			Scope:      in.Scope,
			PeriodType: in.Plan.PeriodType,
			Periods:    make([]Period, bucketer.Count()),
			Warnings:   []domain.Warning{},
		},
	}
	for i := range in.Counterparties {
		r.cps[in.Counterparties[i].ID] = &in.Counterparties[i]
	}

	opening := in.Plan.OpeningBalanceCents
	if !in.Scope.IsGlobal() {
		opening = filter.OpeningBalance(in.BankAccounts)
	}

	entries := make([]domain.LedgerEntry, len(in.Entries))
	for i := range in.Entries {
		entries[i] = in.Entries[i].Clone()
	}
	slices.SortFunc(entries, func(a, b domain.LedgerEntry) int { return cmp.Compare(a.ID, b.ID) })
	parents := splitParents(entries)
	r.res.CentralCostsOmitted = !in.Scope.IsGlobal()

	for i := range entries {
		e := &entries[i]
		if !r.eligible(e, parents) {
			r.res.ExcludedCount++
			continue
		}
		switch filter.decide(e) {
		case omitOutOfScope:
			continue
		case omitUnlocated, omitCentralCost:
			r.res.OmittedEntryCount++
			r.res.OmittedAmountCents += e.AmountCents
			continue
		}
		opening += r.add(e)
	}

	r.finish(opening)
	r.res.ContentHash = ContentHash(in, opts)
	r.res.CalculatedAt = g.now().UTC()
	return r.res, nil
}

func splitParents(entries []domain.LedgerEntry) map[string]bool {
	parents := make(map[string]bool)
	for i := range entries {
		if entries[i].ParentEntryID != "" {
			parents[entries[i].ParentEntryID] = true
		}
	}
	return parents
}

func (r *run) eligible(e *domain.LedgerEntry, parents map[string]bool) bool {
	if !slices.Contains(r.opts.ReviewStatuses, e.ReviewStatus) {
		return false
	}
	if !slices.Contains(r.opts.ValueKinds, e.ValueKind) {
		return false
	}
	if e.IsInternalTransfer() || parents[e.ID] {
		return false
	}
	return true
}

// add books e and returns the amount that rolls into the opening balance.
// Entries with invalid data land in the unreviewable bucket and stay out of
// every total.
func (r *run) add(e *domain.LedgerEntry) int64 {
	if err := domain.ValidateEntry(e); err != nil {
		r.unreviewable.add(e)
		return 0
	}
	idx, pos := r.bucketer.Index(e.TransactionDate)
	switch pos {
	case PositionBefore:
		r.res.PreStartCount++
		return e.AmountCents
	case PositionBeyond:
		r.beyond.add(e)
		return 0
	}

	alloc, err := r.resolver.Resolve(e, r.cps[e.CounterpartyID])
	if err != nil {
		r.unreviewable.add(e)
		return 0
	}
	if alloc.ManualReview {
		r.manual.add(e)
	}
	if alloc.UnklarCents != 0 {
		r.res.Estate.UnklarEntryCount++
		r.unklarAbs += abs(alloc.UnklarCents)
	}
	if e.CategoryTag != "" && e.SuggestedCategoryTag != "" && e.CategoryTag != e.SuggestedCategoryTag {
		r.conflict.add(e)
	}

	split := EstateSplit{AltCents: alloc.AltCents, NeuCents: alloc.NeuCents, UnklarCents: alloc.UnklarCents}
	flow := FlowInflow
	if e.AmountCents < 0 {
		flow = FlowOutflow
		split = EstateSplit{AltCents: -split.AltCents, NeuCents: -split.NeuCents, UnklarCents: -split.UnklarCents}
	}

	p := &r.res.Periods[idx]
	p.EntryCount++
	r.res.EntryCount++
	if flow == FlowInflow {
		p.Inflow.add(split)
		r.res.Estate.Inflow.add(split)
	} else {
		p.Outflow.add(split)
		r.res.Estate.Outflow.add(split)
	}
	r.book(flow, e, idx, split)
	return 0
}

func (r *run) book(flow Flow, e *domain.LedgerEntry, idx int, split EstateSplit) {
	tag := e.CategoryTag
	if tag == "" {
		tag = UncategorizedTag
	}
	key := lineKey{flow: flow, tag: tag}
	n := r.bucketer.Count()

	cat, ok := r.categories[key]
	if !ok {
		cat = &Category{Flow: flow, Tag: tag, PeriodCents: make([]int64, n)}
		r.categories[key] = cat
		r.lines[key] = make(map[string]*Line)
	}
	amount := split.Total()
	cat.PeriodCents[idx] += amount
	cat.TotalCents += amount
	cat.Estate.add(split)

	lineID := e.CounterpartyID
	if lineID == "" {
		lineID = UnassignedLine
	}
	line, ok := r.lines[key][lineID]
	if !ok {
		name := lineID
		if cp := r.cps[e.CounterpartyID]; cp != nil && cp.Name != "" {
			name = cp.Name
		}
		line = &Line{CounterpartyID: lineID, Name: name, PeriodCents: make([]int64, n)}
		r.lines[key][lineID] = line
	}
	line.PeriodCents[idx] += amount
	line.TotalCents += amount
}

func (r *run) finish(opening int64) {
	res := r.res
	res.OpeningBalanceCents = opening
	balance := opening
	for i := range res.Periods {
		p := &res.Periods[i]
		p.Index = i
		p.Label = r.bucketer.Label(i)
		p.Start, p.End = r.bucketer.Bounds(i)
		p.OpeningBalanceCents = balance
		p.NetCents = p.Inflow.Total() - p.Outflow.Total()
		p.ClosingBalanceCents = p.OpeningBalanceCents + p.NetCents
		balance = p.ClosingBalanceCents

		res.Inflow.add(p.Inflow)
		res.Outflow.add(p.Outflow)

		// A deficit carried in from earlier periods is not available liquidity,
		// and it is not reported again here.
		available := max(p.OpeningBalanceCents, 0) + p.Inflow.Total()
		if out := p.Outflow.Total(); out > 0 && out > available {
			idx := i
			res.Warnings = append(res.Warnings, domain.Warning{
				Type:        domain.WarningOutflowExceedsBalance,
				Severity:    domain.SeverityInfo,
				Message:     fmt.Sprintf("%s: outflows exceed available liquidity", p.Label),
				Count:       1,
				AmountCents: out - available,
				PeriodIndex: &idx,
			})
		}
	}
	res.ClosingBalanceCents = balance
	res.Estate.ManualReviewCount = r.manual.count

	cats := make([]Category, 0, len(r.categories))
	for key, c := range r.categories {
		lines := make([]Line, 0, len(r.lines[key]))
		for _, l := range r.lines[key] {
			lines = append(lines, *l)
		}
		slices.SortFunc(lines, func(a, b Line) int { return cmp.Compare(a.CounterpartyID, b.CounterpartyID) })
		c.Lines = lines
		cats = append(cats, *c)
	}
	slices.SortFunc(cats, func(a, b Category) int {
		return cmp.Or(cmp.Compare(a.Flow, b.Flow), cmp.Compare(a.Tag, b.Tag))
	})
	res.Categories = cats

	r.warn(domain.WarningUnreviewableEntry, domain.SeverityWarning, "entries with invalid data", r.unreviewable)
	r.warn(domain.WarningBeyondHorizon, domain.SeverityInfo, "entries after the last plan period", r.beyond)
	r.warn(domain.WarningManualReviewRequired, domain.SeverityWarning, "entries need a manual estate allocation", r.manual)
	r.warn(domain.WarningCategoryConflict, domain.SeverityWarning, "confirmed category differs from suggestion", r.conflict)

	if r.opts.UnklarThresholdCents >= 0 && r.unklarAbs > r.opts.UnklarThresholdCents {
		sev := domain.SeverityWarning
		if r.opts.UnklarThresholdCents > 0 && r.unklarAbs > 10*r.opts.UnklarThresholdCents {
			sev = domain.SeverityCritical
		}
		res.Warnings = append(res.Warnings, domain.Warning{
			Type:        domain.WarningUnklarAboveThreshold,
			Severity:    sev,
			Message:     fmt.Sprintf("unresolved estate amount %d cents exceeds threshold %d cents", r.unklarAbs, r.opts.UnklarThresholdCents),
			Count:       res.Estate.UnklarEntryCount,
			AmountCents: r.unklarAbs,
		})
	}
}

func (r *run) warn(t domain.WarningType, sev domain.Severity, msg string, s issueSet) {
	if s.count == 0 {
		return
	}
	r.res.Warnings = append(r.res.Warnings, domain.Warning{
		Type:        t,
		Severity:    sev,
		Message:     fmt.Sprintf("%d %s", s.count, msg),
		Count:       s.count,
		AmountCents: s.amount,
		EntryIDs:    s.ids,
	})
}

func abs(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
