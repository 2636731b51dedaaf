package usecase_test

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"go.uber.org/mock/gomock"

	"github.com/iho/estateledger/internal/domain"
	"github.com/iho/estateledger/internal/usecase"
	"github.com/iho/estateledger/internal/usecase/mocks"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

type storeMocks struct {
	cases     *mocks.MockCaseRepository
	plans     *mocks.MockPlanRepository
	entries   *mocks.MockEntryRepository
	cps       *mocks.MockCounterpartyRepository
	accounts  *mocks.MockBankAccountRepository
	state     *mocks.MockAggregationStateRepository
	audit     *mocks.MockAuditRepository
	txManager *mocks.MockTransactionManager
	tx        *mocks.MockTransaction
	retrier   *mocks.MockRetrier
	publisher *mocks.MockEventPublisher
	loader    *usecase.SnapshotLoader
}

func newStoreMocks(ctrl *gomock.Controller) *storeMocks {
	m := &storeMocks{
		cases:     mocks.NewMockCaseRepository(ctrl),
		plans:     mocks.NewMockPlanRepository(ctrl),
		entries:   mocks.NewMockEntryRepository(ctrl),
		cps:       mocks.NewMockCounterpartyRepository(ctrl),
		accounts:  mocks.NewMockBankAccountRepository(ctrl),
		state:     mocks.NewMockAggregationStateRepository(ctrl),
		audit:     mocks.NewMockAuditRepository(ctrl),
		txManager: mocks.NewMockTransactionManager(ctrl),
		tx:        mocks.NewMockTransaction(ctrl),
		retrier:   mocks.NewMockRetrier(ctrl),
		publisher: mocks.NewMockEventPublisher(ctrl),
	}
	m.loader = usecase.NewSnapshotLoader(m.cases, m.plans, m.entries, m.cps, m.accounts, time.Second)
	return m
}

// expectTx expects one committed transaction.
func (m *storeMocks) expectTx() {
	m.txManager.EXPECT().Begin(gomock.Any()).Return(m.tx, nil)
	m.tx.EXPECT().Commit(gomock.Any()).Return(nil)
	m.tx.EXPECT().Rollback(gomock.Any()).Return(nil).AnyTimes()
}

// expectRolledBackTx expects one transaction that is never committed.
func (m *storeMocks) expectRolledBackTx() {
	m.txManager.EXPECT().Begin(gomock.Any()).Return(m.tx, nil)
	m.tx.EXPECT().Rollback(gomock.Any()).Return(nil)
}

func (m *storeMocks) passthroughRetrier() {
	m.retrier.EXPECT().Retry(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, op func() error) error { return op() }).
		AnyTimes()
}

func (m *storeMocks) expectSnapshot(c *domain.Case, entries []domain.LedgerEntry) {
	m.cases.EXPECT().GetByID(gomock.Any(), c.ID).Return(c, nil).AnyTimes()
	m.plans.EXPECT().GetActive(gomock.Any(), c.ID).Return(fixturePlan(c.ID), nil)
	m.entries.EXPECT().ListByCase(gomock.Any(), c.ID).Return(entries, nil)
	m.cps.EXPECT().ListByCase(gomock.Any(), c.ID).Return(fixtureCounterparties(c.ID), nil)
	m.accounts.EXPECT().ListByCase(gomock.Any(), c.ID).Return(fixtureAccounts(c.ID), nil)
}

func fixtureCase() *domain.Case {
	cutoff := day(2025, 10, 29)
	return &domain.Case{
		ID:         "case-1",
		Name:       "Muster GmbH",
		CutoffDate: &cutoff,
		Locations:  []domain.Location{{ID: "L1", Name: "Filiale Nord"}},
	}
}

func fixturePlan(caseID string) *domain.Plan {
	return &domain.Plan{
		ID:                  "plan-1",
		CaseID:              caseID,
		PeriodType:          domain.PeriodWeekly,
		PeriodCount:         13,
		StartDate:           day(2025, 10, 27),
		OpeningBalanceCents: 100_000,
		IsActive:            true,
	}
}

func fixtureCounterparties(caseID string) []domain.Counterparty {
	return []domain.Counterparty{
		{ID: "cp-energy", CaseID: caseID, Name: "Stadtwerke", MatchPattern: "stadtwerke", Type: "ENERGY", DisplayOrder: 1, DefaultCategoryTag: "ENERGY"},
		{ID: "cp-broken", CaseID: caseID, Name: "Kaputt", MatchPattern: "([", DisplayOrder: 2},
	}
}

func fixtureAccounts(caseID string) []domain.BankAccount {
	return []domain.BankAccount{
		{ID: "acc-1", CaseID: caseID, Name: "Sparkasse", OpeningBalanceCents: 100_000, Status: domain.AccountStatusAvailable, LocationID: "L1"},
	}
}

func fixtureEntries() []domain.LedgerEntry {
	return []domain.LedgerEntry{
		{
			ID:              "e1",
			CaseID:          "case-1",
			TransactionDate: day(2025, 11, 3),
			ServicePeriod:   &domain.ServicePeriod{Start: day(2025, 10, 1), End: day(2025, 10, 31)},
			AmountCents:     -300,
			Description:     "Stadtwerke Abschlag Oktober",
			CounterpartyID:  "cp-energy",
			BankAccountID:   "acc-1",
			LocationID:      "L1",
			ValueKind:       domain.ValueKindActual,
			ReviewStatus:    domain.ReviewStatusConfirmed,
			CategoryTag:     "ENERGY",
		},
		{
			ID:              "e2",
			CaseID:          "case-1",
			TransactionDate: day(2025, 11, 4),
			AmountCents:     5_000,
			Description:     "Stadtwerke Gutschrift",
			BankAccountID:   "acc-1",
			ValueKind:       domain.ValueKindActual,
			ReviewStatus:    domain.ReviewStatusUnreviewed,
		},
		{
			ID:              "e3",
			CaseID:          "case-1",
			TransactionDate: day(2025, 11, 5),
			AmountCents:     -1_200,
			Description:     "Lastschrift Telekom",
			BankAccountID:   "acc-1",
			ValueKind:       domain.ValueKindActual,
			ReviewStatus:    domain.ReviewStatusUnreviewed,
		},
	}
}

func nopLogger() zerolog.Logger { return zerolog.Nop() }
