package estate

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iho/estateledger/internal/domain"
)

func d(y int, m time.Month, day int) time.Time {
	return time.Date(y, m, day, 0, 0, 0, 0, time.UTC)
}

func period(start, end time.Time) *domain.ServicePeriod {
	return &domain.ServicePeriod{Start: start, End: end}
}

func newCase(rules ...domain.ContractRule) *domain.Case {
	cut := d(2025, 10, 29)
	return &domain.Case{ID: "case-1", CutoffDate: &cut, ContractRules: rules}
}

func mustResolver(t *testing.T, c *domain.Case) *Resolver {
	t.Helper()
	r, err := NewResolver(c)
	require.NoError(t, err)
	return r
}

func assertConserved(t *testing.T, amount int64, a Allocation) {
	t.Helper()
	assert.Equal(t, amount, a.AltCents+a.NeuCents+a.UnklarCents, "allocation must sum to amount")
}

func TestNewResolver_MissingCutoff(t *testing.T) {
	_, err := NewResolver(&domain.Case{ID: "c"})
	require.ErrorIs(t, err, domain.ErrMissingCutoff)
}

func TestNewResolver_InvalidRule(t *testing.T) {
	c := newCase(domain.ContractRule{ContractType: "ENERGY", Period: "2025-13", AltShare: domain.RatioOne})
	_, err := NewResolver(c)
	require.ErrorIs(t, err, domain.ErrInvalidRule)
}

func TestResolve_ServicePeriodBeforeCutoff(t *testing.T) {
	r := mustResolver(t, newCase())
	e := &domain.LedgerEntry{
		ID:              "a",
		TransactionDate: d(2025, 10, 15),
		ServicePeriod:   period(d(2025, 7, 1), d(2025, 9, 30)),
		AmountCents:     1_575_000,
	}

	a, err := r.Resolve(e, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(1_575_000), a.AltCents)
	assert.Zero(t, a.NeuCents)
	assert.Zero(t, a.UnklarCents)
	assert.Equal(t, domain.EstateAltmasse, a.Kind)
	assert.Equal(t, domain.AllocationSourcePeriodProrata, a.Source)
}

func TestResolve_ServicePeriodOnOrAfterCutoff(t *testing.T) {
	r := mustResolver(t, newCase())
	for _, start := range []time.Time{d(2025, 10, 29), d(2025, 11, 1)} {
		e := &domain.LedgerEntry{ID: "n", ServicePeriod: period(start, d(2025, 11, 30)), AmountCents: -4_200}
		a, err := r.Resolve(e, nil)
		require.NoError(t, err)
		assert.Equal(t, int64(-4_200), a.NeuCents)
		assert.Zero(t, a.AltCents)
		assert.Equal(t, domain.EstateNeumasse, a.Kind)
	}
}

func TestResolve_ContractRuleOverride(t *testing.T) {
	rule := domain.ContractRule{
		ContractType: "energy",
		Period:       "2025-10",
		AltShare:     domain.MustRatio(1, 3),
		NeuShare:     domain.MustRatio(2, 3),
		Note:         "documented supplier agreement",
	}
	r := mustResolver(t, newCase(rule))
	cp := &domain.Counterparty{ID: "cp", Type: "ENERGY"}
	e := &domain.LedgerEntry{ID: "b", ServicePeriod: period(d(2025, 10, 1), d(2025, 10, 31)), AmountCents: 300}

	a, err := r.Resolve(e, cp)
	require.NoError(t, err)
	assert.Equal(t, int64(100), a.AltCents)
	assert.Equal(t, int64(200), a.NeuCents)
	assert.Equal(t, domain.AllocationSourceContractRule, a.Source)
	assert.Equal(t, domain.EstateMixed, a.Kind)
	assert.Equal(t, "documented supplier agreement", a.Note)

	e.AmountCents = 100
	a, err = r.Resolve(e, cp)
	require.NoError(t, err)
	assert.Equal(t, int64(33), a.AltCents)
	assert.Equal(t, int64(67), a.NeuCents)

	e.AmountCents = -100
	a, err = r.Resolve(e, cp)
	require.NoError(t, err)
	assert.Equal(t, int64(-33), a.AltCents)
	assert.Equal(t, int64(-67), a.NeuCents)
}

func TestResolve_RuleIgnoredWhenPeriodDoesNotSpanCutoff(t *testing.T) {
	rule := domain.ContractRule{ContractType: "ENERGY", Period: "2025-Q3", AltShare: domain.MustRatio(1, 2), NeuShare: domain.MustRatio(1, 2)}
	r := mustResolver(t, newCase(rule))
	e := &domain.LedgerEntry{ID: "x", ServicePeriod: period(d(2025, 8, 1), d(2025, 8, 31)), AmountCents: 1000}

	a, err := r.Resolve(e, &domain.Counterparty{Type: "ENERGY"})
	require.NoError(t, err)
	assert.Equal(t, int64(1000), a.AltCents)
	assert.NotEqual(t, domain.AllocationSourceContractRule, a.Source)
}

func TestResolve_MonthRuleBeatsQuarterRule(t *testing.T) {
	r := mustResolver(t, newCase(
		domain.ContractRule{ContractType: "RENT", Period: "2025-Q4", AltShare: domain.MustRatio(1, 2), NeuShare: domain.MustRatio(1, 2), Note: "quarter"},
		domain.ContractRule{ContractType: "RENT", Period: "2025-10", AltShare: domain.MustRatio(1, 4), NeuShare: domain.MustRatio(3, 4), Note: "month"},
	))
	e := &domain.LedgerEntry{ID: "x", ServicePeriod: period(d(2025, 10, 1), d(2025, 10, 31)), AmountCents: 400}

	a, err := r.Resolve(e, &domain.Counterparty{Type: "RENT"})
	require.NoError(t, err)
	assert.Equal(t, "month", a.Note)
	assert.Equal(t, int64(100), a.AltCents)

	e.ServicePeriod = period(d(2025, 10, 1), d(2025, 11, 30))
	a, err = r.Resolve(e, &domain.Counterparty{Type: "RENT"})
	require.NoError(t, err)
	assert.Equal(t, "quarter", a.Note)
	assert.Equal(t, int64(200), a.AltCents)
}

func TestResolve_ProrataByDays(t *testing.T) {
	r := mustResolver(t, newCase())
	e := &domain.LedgerEntry{ID: "p", ServicePeriod: period(d(2025, 10, 1), d(2025, 10, 31)), AmountCents: 31_00}

	a, err := r.Resolve(e, nil)
	require.NoError(t, err)
	// 28 of 31 days before the cutoff.
	assert.Equal(t, int64(28_00), a.AltCents)
	assert.Equal(t, int64(3_00), a.NeuCents)
	assert.Equal(t, domain.AllocationSourcePeriodProrata, a.Source)
	assertConserved(t, e.AmountCents, a)
}

func TestResolve_ServiceDate(t *testing.T) {
	r := mustResolver(t, newCase())

	before := d(2025, 10, 28)
	a, err := r.Resolve(&domain.LedgerEntry{ID: "s1", ServiceDate: &before, AmountCents: 500}, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(500), a.AltCents)
	assert.Equal(t, domain.AllocationSourceServiceDate, a.Source)

	on := d(2025, 10, 29)
	a, err = r.Resolve(&domain.LedgerEntry{ID: "s2", ServiceDate: &on, AmountCents: 500}, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(500), a.NeuCents)
}

func TestResolve_PreviousMonthFallback(t *testing.T) {
	r := mustResolver(t, newCase())
	cp := &domain.Counterparty{ID: "cp", FallbackRule: domain.FallbackPreviousMonth}

	e := &domain.LedgerEntry{ID: "f", TransactionDate: d(2025, 10, 5), AmountCents: -9_000}
	a, err := r.Resolve(e, cp)
	require.NoError(t, err)
	assert.Equal(t, int64(-9_000), a.AltCents)
	assert.Equal(t, domain.AllocationSourcePreviousMonth, a.Source)

	e.TransactionDate = d(2025, 12, 3)
	a, err = r.Resolve(e, cp)
	require.NoError(t, err)
	assert.Equal(t, int64(-9_000), a.NeuCents)
}

func TestResolve_UnresolvedIsUnklar(t *testing.T) {
	r := mustResolver(t, newCase())
	e := &domain.LedgerEntry{ID: "u", TransactionDate: d(2025, 10, 30), AmountCents: 1234}

	a, err := r.Resolve(e, &domain.Counterparty{FallbackRule: domain.FallbackNone})
	require.NoError(t, err)
	assert.Equal(t, int64(1234), a.UnklarCents)
	assert.Zero(t, a.AltCents+a.NeuCents)
	assert.True(t, a.ManualReview)
	assert.Equal(t, domain.EstateUnklar, a.Kind)
}

func TestResolve_ConfirmedAllocationUnchanged(t *testing.T) {
	r := mustResolver(t, newCase())

	ratio := domain.MustRatio(1, 4)
	e := &domain.LedgerEntry{
		ID:               "m",
		ServicePeriod:    period(d(2025, 7, 1), d(2025, 7, 31)),
		AmountCents:      1000,
		EstateAllocation: domain.EstateMixed,
		EstateRatio:      &ratio,
	}
	a, err := r.Resolve(e, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(750), a.AltCents)
	assert.Equal(t, int64(250), a.NeuCents)

	manual := &domain.LedgerEntry{
		ID:               "m2",
		ServicePeriod:    period(d(2025, 7, 1), d(2025, 7, 31)),
		AmountCents:      1000,
		EstateAllocation: domain.EstateNeumasse,
		AllocationSource: domain.AllocationSourceManual,
	}
	a, err = r.Resolve(manual, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(1000), a.NeuCents)
	assert.Equal(t, domain.AllocationSourceManual, a.Source)
}

func TestResolve_InvalidServicePeriod(t *testing.T) {
	r := mustResolver(t, newCase())
	e := &domain.LedgerEntry{ID: "bad", ServicePeriod: period(d(2025, 10, 31), d(2025, 10, 1)), AmountCents: 10}

	_, err := r.Resolve(e, nil)
	require.ErrorIs(t, err, domain.ErrInvalidServicePeriod)
}

func TestResolve_ConservationAcrossAmounts(t *testing.T) {
	r := mustResolver(t, newCase())
	sp := period(d(2025, 10, 20), d(2025, 11, 2))
	for amount := int64(-500); amount <= 500; amount += 7 {
		a, err := r.Resolve(&domain.LedgerEntry{ID: "c", ServicePeriod: sp, AmountCents: amount}, nil)
		require.NoError(t, err)
		assertConserved(t, amount, a)
	}
}
