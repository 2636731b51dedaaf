package aggregation

import (
	"slices"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iho/estateledger/internal/domain"
)

var fixedNow = time.Date(2025, 11, 14, 9, 30, 0, 0, time.UTC)

func fixedEngine() *Engine {
	return NewEngine(WithClock(func() time.Time { return fixedNow }))
}

func sp(start, end time.Time) *domain.ServicePeriod {
	return &domain.ServicePeriod{Start: start, End: end}
}

func confirmed(id string, tx time.Time, amount int64) domain.LedgerEntry {
	return domain.LedgerEntry{
		ID:              id,
		CaseID:          "case-1",
		TransactionDate: tx,
		AmountCents:     amount,
		ValueKind:       domain.ValueKindActual,
		ReviewStatus:    domain.ReviewStatusConfirmed,
	}
}

func fixtureInput() Input {
	cut := d(2025, 10, 29)
	c := &domain.Case{
		ID:         "case-1",
		CutoffDate: &cut,
		ContractRules: []domain.ContractRule{{
			ContractType: "ENERGY",
			Period:       "2025-10",
			AltShare:     domain.MustRatio(1, 3),
			NeuShare:     domain.MustRatio(2, 3),
		}},
	}
	plan := &domain.Plan{ID: "plan-1", CaseID: "case-1", PeriodType: domain.PeriodWeekly, PeriodCount: 4, StartDate: d(2025, 10, 27), OpeningBalanceCents: 10_000}

	a := confirmed("a", d(2025, 10, 28), 1_575_000)
	a.ServicePeriod = sp(d(2025, 7, 1), d(2025, 9, 30))
	a.CategoryTag = "REVENUE"
	a.CounterpartyID = "cp-customer"

	b := confirmed("b", d(2025, 11, 3), -300)
	b.ServicePeriod = sp(d(2025, 10, 1), d(2025, 10, 31))
	b.CategoryTag = "ENERGY"
	b.CounterpartyID = "cp-energy"

	u := confirmed("u", d(2025, 11, 4), -50_000)
	u.ReviewStatus = domain.ReviewStatusAdjusted

	transfer := confirmed("t", d(2025, 10, 29), -99_999)
	transfer.SteeringTags = []string{domain.SteeringTagInternalTransfer}

	unreviewed := confirmed("r", d(2025, 10, 29), 77)
	unreviewed.ReviewStatus = domain.ReviewStatusUnreviewed

	parent := confirmed("p", d(2025, 10, 30), -1_000)
	p1 := confirmed("p1", d(2025, 10, 30), -600)
	p1.ParentEntryID = "p"
	p1.ServicePeriod = sp(d(2025, 11, 1), d(2025, 11, 30))
	p1.CategoryTag = "RENT"
	p2 := confirmed("p2", d(2025, 10, 30), -400)
	p2.ParentEntryID = "p"
	p2.ServicePeriod = sp(d(2025, 9, 1), d(2025, 9, 30))
	p2.CategoryTag = "RENT"

	preStart := confirmed("s", d(2025, 10, 20), 5_000)
	beyond := confirmed("y", d(2026, 1, 10), 1)

	return Input{
		Case:    c,
		Plan:    plan,
		Entries: []domain.LedgerEntry{a, b, u, transfer, unreviewed, parent, p1, p2, preStart, beyond},
		Counterparties: []domain.Counterparty{
			{ID: "cp-customer", Name: "Kunde AG", Type: "CUSTOMER"},
			{ID: "cp-energy", Name: "Stadtwerke", Type: "ENERGY"},
		},
		Options: Options{UnklarThresholdCents: 10_000},
	}
}

func TestAggregate_Fixture(t *testing.T) {
	res, err := fixedEngine().Aggregate(fixtureInput())
	require.NoError(t, err)

	assert.Equal(t, GlobalScopeID, res.Scope.ID)
	assert.Equal(t, 3, res.ExcludedCount)
	assert.Equal(t, 5, res.EntryCount)
	assert.Equal(t, 1, res.PreStartCount)
	assert.Equal(t, int64(15_000), res.OpeningBalanceCents)
	assert.Equal(t, fixedNow, res.CalculatedAt)
	assert.False(t, res.CentralCostsOmitted)

	require.Len(t, res.Periods, 4)
	p0, p1 := res.Periods[0], res.Periods[1]
	assert.Equal(t, "KW 44", p0.Label)
	assert.Equal(t, EstateSplit{AltCents: 1_575_000}, p0.Inflow)
	assert.Equal(t, EstateSplit{AltCents: 400, NeuCents: 600}, p0.Outflow)
	assert.Equal(t, int64(1_589_000), p0.ClosingBalanceCents)

	assert.Equal(t, EstateSplit{AltCents: 100, NeuCents: 200, UnklarCents: 50_000}, p1.Outflow)
	assert.Equal(t, int64(1_538_700), p1.ClosingBalanceCents)
	assert.Equal(t, int64(1_538_700), res.Periods[3].ClosingBalanceCents)
	assert.Equal(t, int64(1_538_700), res.ClosingBalanceCents)

	assert.Equal(t, int64(500), res.Estate.Outflow.AltCents)
	assert.Equal(t, int64(800), res.Estate.Outflow.NeuCents)
	assert.Equal(t, int64(50_000), res.Estate.Outflow.UnklarCents)
	assert.Equal(t, 1, res.Estate.UnklarEntryCount)
	assert.Equal(t, 1, res.Estate.ManualReviewCount)

	require.Len(t, res.WarningsOf(domain.WarningBeyondHorizon), 1)
	assert.Equal(t, []string{"y"}, res.WarningsOf(domain.WarningBeyondHorizon)[0].EntryIDs)
	require.Len(t, res.WarningsOf(domain.WarningManualReviewRequired), 1)
	unklar := res.WarningsOf(domain.WarningUnklarAboveThreshold)
	require.Len(t, unklar, 1)
	assert.Equal(t, domain.SeverityWarning, unklar[0].Severity)
	assert.Equal(t, int64(50_000), unklar[0].AmountCents)
	assert.Empty(t, res.WarningsOf(domain.WarningOutflowExceedsBalance))
}

func TestAggregate_Categories(t *testing.T) {
	res, err := fixedEngine().Aggregate(fixtureInput())
	require.NoError(t, err)

	tags := make([]string, 0, len(res.Categories))
	for _, c := range res.Categories {
		tags = append(tags, string(c.Flow)+"/"+c.Tag)
	}
	assert.Equal(t, []string{"INFLOW/REVENUE", "OUTFLOW/ENERGY", "OUTFLOW/RENT", "OUTFLOW/UNCATEGORIZED"}, tags)

	energy := res.Categories[1]
	assert.Equal(t, int64(300), energy.TotalCents)
	assert.Equal(t, []int64{0, 300, 0, 0}, energy.PeriodCents)
	require.Len(t, energy.Lines, 1)
	assert.Equal(t, "Stadtwerke", energy.Lines[0].Name)

	uncategorized := res.Categories[3]
	require.Len(t, uncategorized.Lines, 1)
	assert.Equal(t, UnassignedLine, uncategorized.Lines[0].CounterpartyID)
}

func TestAggregate_BalanceConservation(t *testing.T) {
	res, err := fixedEngine().Aggregate(fixtureInput())
	require.NoError(t, err)

	for i, p := range res.Periods {
		assert.Equal(t, p.Inflow.Total()-p.Outflow.Total(), p.ClosingBalanceCents-p.OpeningBalanceCents, "period %d", i)
		if i+1 < len(res.Periods) {
			assert.Equal(t, p.ClosingBalanceCents, res.Periods[i+1].OpeningBalanceCents, "period %d", i)
		}
	}
}

func TestAggregate_Idempotent(t *testing.T) {
	in := fixtureInput()
	first, err := fixedEngine().Aggregate(in)
	require.NoError(t, err)

	reversed := fixtureInput()
	slices.Reverse(reversed.Entries)
	second, err := NewEngine().Aggregate(reversed)
	require.NoError(t, err)

	assert.Equal(t, first.ContentHash, second.ContentHash)
	assert.Equal(t, first.Periods, second.Periods)
	assert.Equal(t, first.Categories, second.Categories)
	assert.Len(t, first.ContentHash, 64)
}

func TestAggregate_HashChangesWithInput(t *testing.T) {
	base, err := fixedEngine().Aggregate(fixtureInput())
	require.NoError(t, err)

	changed := fixtureInput()
	changed.Entries[0].AmountCents++
	res, err := fixedEngine().Aggregate(changed)
	require.NoError(t, err)
	assert.NotEqual(t, base.ContentHash, res.ContentHash)

	cut := d(2025, 10, 30)
	moved := fixtureInput()
	moved.Case.CutoffDate = &cut
	res, err = fixedEngine().Aggregate(moved)
	require.NoError(t, err)
	assert.NotEqual(t, base.ContentHash, res.ContentHash)
}

func TestAggregate_DoesNotMutateInput(t *testing.T) {
	in := fixtureInput()
	before := make([]domain.LedgerEntry, len(in.Entries))
	for i := range in.Entries {
		before[i] = in.Entries[i].Clone()
	}
	_, err := fixedEngine().Aggregate(in)
	require.NoError(t, err)
	assert.Equal(t, before, in.Entries)
}

func TestAggregate_ConfigurationErrors(t *testing.T) {
	in := fixtureInput()
	in.Case.CutoffDate = nil
	_, err := fixedEngine().Aggregate(in)
	require.ErrorIs(t, err, domain.ErrMissingCutoff)

	in = fixtureInput()
	in.Plan.PeriodCount = 0
	_, err = fixedEngine().Aggregate(in)
	require.ErrorIs(t, err, domain.ErrInvalidPlan)

	in = fixtureInput()
	in.Plan = nil
	_, err = fixedEngine().Aggregate(in)
	require.ErrorIs(t, err, domain.ErrNoActivePlan)
}

func TestAggregate_ValueKindFilter(t *testing.T) {
	in := fixtureInput()
	proj := confirmed("proj", d(2025, 11, 5), 9_999)
	proj.ValueKind = domain.ValueKindProjected
	in.Entries = append(in.Entries, proj)

	all, err := fixedEngine().Aggregate(in)
	require.NoError(t, err)
	assert.Equal(t, int64(9_999), all.Periods[1].Inflow.UnklarCents)

	in.Options.ValueKinds = []domain.ValueKind{domain.ValueKindActual}
	actual, err := fixedEngine().Aggregate(in)
	require.NoError(t, err)
	assert.Zero(t, actual.Periods[1].Inflow.Total())
	assert.NotEqual(t, all.ContentHash, actual.ContentHash)
}

func TestAggregate_PerEntryProblemsBecomeWarnings(t *testing.T) {
	in := fixtureInput()
	bad := confirmed("bad", d(2025, 11, 5), -700)
	bad.ServicePeriod = sp(d(2025, 11, 30), d(2025, 11, 1))
	undated := confirmed("undated", time.Time{}, -5)
	conflict := confirmed("conflict", d(2025, 11, 5), -10)
	conflict.ServicePeriod = sp(d(2025, 11, 1), d(2025, 11, 30))
	conflict.CategoryTag = "RENT"
	conflict.SuggestedCategoryTag = "ENERGY"
	in.Entries = append(in.Entries, bad, undated, conflict)

	res, err := fixedEngine().Aggregate(in)
	require.NoError(t, err)

	unreviewable := res.WarningsOf(domain.WarningUnreviewableEntry)
	require.Len(t, unreviewable, 1)
	assert.Equal(t, 2, unreviewable[0].Count)
	assert.ElementsMatch(t, []string{"bad", "undated"}, unreviewable[0].EntryIDs)
	assert.Equal(t, int64(50_000), res.Periods[1].Outflow.UnklarCents, "invalid entries stay out of the totals")
	assert.Equal(t, int64(-705), unreviewable[0].AmountCents)

	conflicts := res.WarningsOf(domain.WarningCategoryConflict)
	require.Len(t, conflicts, 1)
	assert.Equal(t, []string{"conflict"}, conflicts[0].EntryIDs)
}

func TestAggregate_InvalidServicePeriodExcludedFromTotals(t *testing.T) {
	in := fixtureInput()
	bad := confirmed("bad", d(2025, 10, 28), 5_000)
	bad.ServicePeriod = sp(d(2025, 10, 31), d(2025, 10, 1))
	in.Entries = []domain.LedgerEntry{bad}
	in.Options.UnklarThresholdCents = 0

	res, err := fixedEngine().Aggregate(in)
	require.NoError(t, err)

	assert.Zero(t, res.Inflow.Total())
	assert.Zero(t, res.Estate.UnklarEntryCount)
	assert.Zero(t, res.EntryCount)
	assert.Equal(t, in.Plan.OpeningBalanceCents, res.ClosingBalanceCents)
	assert.Empty(t, res.WarningsOf(domain.WarningUnklarAboveThreshold))

	ws := res.WarningsOf(domain.WarningUnreviewableEntry)
	require.Len(t, ws, 1)
	assert.Equal(t, []string{"bad"}, ws[0].EntryIDs)
}

func TestAggregate_OutflowExceedsBalance(t *testing.T) {
	in := fixtureInput()
	in.Plan.OpeningBalanceCents = 0
	out := confirmed("big", d(2025, 10, 27), -2_000_000)
	out.ServicePeriod = sp(d(2025, 11, 1), d(2025, 11, 30))
	in.Entries = []domain.LedgerEntry{out}

	res, err := fixedEngine().Aggregate(in)
	require.NoError(t, err)
	ws := res.WarningsOf(domain.WarningOutflowExceedsBalance)
	require.Len(t, ws, 1)
	assert.Equal(t, domain.SeverityInfo, ws[0].Severity)
	require.NotNil(t, ws[0].PeriodIndex)
	assert.Equal(t, 0, *ws[0].PeriodIndex)
	assert.Equal(t, int64(2_000_000), ws[0].AmountCents)
}

func TestAggregate_OutflowExceedsBalanceReportsOwnShortfall(t *testing.T) {
	in := fixtureInput()
	in.Plan.OpeningBalanceCents = 0
	in.Entries = []domain.LedgerEntry{
		confirmed("big", d(2025, 10, 27), -2_000_000),
		confirmed("in", d(2025, 11, 10), 300),
		confirmed("small", d(2025, 11, 11), -500),
	}

	res, err := fixedEngine().Aggregate(in)
	require.NoError(t, err)

	ws := res.WarningsOf(domain.WarningOutflowExceedsBalance)
	require.Len(t, ws, 2, "periods without outflows never warn")
	assert.Equal(t, 0, *ws[0].PeriodIndex)
	assert.Equal(t, 2, *ws[1].PeriodIndex)
	assert.Equal(t, int64(200), ws[1].AmountCents, "carried deficit is not repeated")
}

func TestAggregate_UnklarNeverFolded(t *testing.T) {
	in := fixtureInput()
	in.Options.UnklarThresholdCents = -1
	res, err := fixedEngine().Aggregate(in)
	require.NoError(t, err)

	assert.Empty(t, res.WarningsOf(domain.WarningUnklarAboveThreshold))
	var unklar int64
	for _, p := range res.Periods {
		unklar += p.Outflow.UnklarCents + p.Inflow.UnklarCents
	}
	assert.Equal(t, int64(50_000), unklar)
}
