package usecase_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/mock/gomock"

	"github.com/iho/estateledger/internal/classification"
	"github.com/iho/estateledger/internal/domain"
	"github.com/iho/estateledger/internal/usecase"
	"github.com/iho/estateledger/internal/usecase/mocks"
)

func newClassificationUseCase(m *storeMocks, metrics usecase.Metrics) *usecase.ClassificationUseCase {
	return usecase.NewClassificationUseCase(m.txManager, m.entries, m.cps, m.state, m.audit, m.retrier, m.publisher, metrics, nopLogger())
}

func TestClassificationUseCase_Run(t *testing.T) {
	ctrl := gomock.NewController(t)
	m := newStoreMocks(ctrl)
	metrics := mocks.NewMockMetrics(ctrl)

	m.cps.EXPECT().ListByCase(gomock.Any(), "case-1").Return(fixtureCounterparties("case-1"), nil)
	m.entries.EXPECT().ListByCase(gomock.Any(), "case-1").Return(fixtureEntries(), nil)
	metrics.EXPECT().ObserveClassification(1, 1, 1)
	m.passthroughRetrier()
	m.expectTx()
	m.entries.EXPECT().ApplySuggestions(gomock.Any(), m.tx, "case-1", gomock.Any()).
		DoAndReturn(func(_ context.Context, _ usecase.Transaction, _ string, s []classification.Suggestion) (int, error) {
			if len(s) != 1 || s[0].EntryID != "e2" || s[0].CounterpartyID != "cp-energy" {
				t.Errorf("unexpected suggestions %+v", s)
			}
			return 1, nil
		})
	m.state.EXPECT().MarkStale(gomock.Any(), m.tx, "case-1", gomock.Any()).
		Return(&domain.AggregationState{CaseID: "case-1", Status: domain.AggregationStale, PendingChanges: 1}, nil)
	m.audit.EXPECT().CreateTx(gomock.Any(), m.tx, gomock.Any()).Return(nil)
	m.publisher.EXPECT().Publish(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, e domain.AggregationEvent) error {
			if e.Type != domain.EventTypeAggregationStale || e.PendingChanges != 1 {
				t.Errorf("unexpected event %+v", e)
			}
			return nil
		})

	uc := newClassificationUseCase(m, metrics)
	out, err := uc.Run(context.Background(), usecase.ClassifyInput{CaseID: "case-1", UserID: "u"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if out.Applied != 1 {
		t.Errorf("expected 1 applied suggestion, got %d", out.Applied)
	}
	if out.Skipped != 1 {
		t.Errorf("expected the confirmed entry to be skipped, got %d", out.Skipped)
	}
	if len(out.Unmatched) != 1 || out.Unmatched[0].EntryID != "e3" {
		t.Errorf("expected e3 unmatched, got %+v", out.Unmatched)
	}
	if len(out.PatternErrors) != 1 || out.PatternErrors[0].CounterpartyID != "cp-broken" {
		t.Errorf("expected broken pattern to be reported, got %+v", out.PatternErrors)
	}
}

func TestClassificationUseCase_DryRunDoesNotWrite(t *testing.T) {
	ctrl := gomock.NewController(t)
	m := newStoreMocks(ctrl)

	m.cps.EXPECT().ListByCase(gomock.Any(), "case-1").Return(fixtureCounterparties("case-1"), nil)
	m.entries.EXPECT().ListByCase(gomock.Any(), "case-1").Return(fixtureEntries(), nil)

	uc := newClassificationUseCase(m, nil)
	out, err := uc.Run(context.Background(), usecase.ClassifyInput{CaseID: "case-1", DryRun: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(out.Suggestions) != 1 || out.Applied != 0 {
		t.Errorf("expected one unapplied suggestion, got %d/%d", len(out.Suggestions), out.Applied)
	}
}

func TestClassificationUseCase_NothingAppliedKeepsState(t *testing.T) {
	ctrl := gomock.NewController(t)
	m := newStoreMocks(ctrl)

	m.cps.EXPECT().ListByCase(gomock.Any(), "case-1").Return(fixtureCounterparties("case-1"), nil)
	m.entries.EXPECT().ListByCase(gomock.Any(), "case-1").Return(fixtureEntries(), nil)
	m.passthroughRetrier()
	m.expectTx()
	m.entries.EXPECT().ApplySuggestions(gomock.Any(), m.tx, "case-1", gomock.Any()).Return(0, nil)
	m.audit.EXPECT().CreateTx(gomock.Any(), m.tx, gomock.Any()).Return(nil)

	uc := newClassificationUseCase(m, nil)
	out, err := uc.Run(context.Background(), usecase.ClassifyInput{CaseID: "case-1"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Applied != 0 {
		t.Errorf("expected nothing applied, got %d", out.Applied)
	}
}

func TestClassificationUseCase_RetriesWriteConflicts(t *testing.T) {
	ctrl := gomock.NewController(t)
	m := newStoreMocks(ctrl)
	conflict := errors.New("serialization failure")

	m.cps.EXPECT().ListByCase(gomock.Any(), "case-1").Return(fixtureCounterparties("case-1"), nil)
	m.entries.EXPECT().ListByCase(gomock.Any(), "case-1").Return(fixtureEntries(), nil)
	m.retrier.EXPECT().Retry(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, op func() error) error {
			if err := op(); !errors.Is(err, conflict) {
				t.Errorf("expected first attempt to fail with conflict, got %v", err)
			}
			return op()
		})

	m.txManager.EXPECT().Begin(gomock.Any()).Return(m.tx, nil).Times(2)
	m.tx.EXPECT().Rollback(gomock.Any()).Return(nil).AnyTimes()
	m.tx.EXPECT().Commit(gomock.Any()).Return(nil)
	gomock.InOrder(
		m.entries.EXPECT().ApplySuggestions(gomock.Any(), m.tx, "case-1", gomock.Any()).Return(0, conflict),
		m.entries.EXPECT().ApplySuggestions(gomock.Any(), m.tx, "case-1", gomock.Any()).Return(1, nil),
	)
	m.state.EXPECT().MarkStale(gomock.Any(), m.tx, "case-1", gomock.Any()).
		Return(&domain.AggregationState{CaseID: "case-1", Status: domain.AggregationStale, PendingChanges: 1, UpdatedAt: time.Now()}, nil)
	m.audit.EXPECT().CreateTx(gomock.Any(), m.tx, gomock.Any()).Return(nil)
	m.publisher.EXPECT().Publish(gomock.Any(), gomock.Any()).Return(errors.New("broker down"))

	uc := newClassificationUseCase(m, nil)
	out, err := uc.Run(context.Background(), usecase.ClassifyInput{CaseID: "case-1"})
	if err != nil {
		t.Fatalf("publish failures must not fail the run: %v", err)
	}
	if out.Applied != 1 {
		t.Errorf("expected second attempt to apply 1, got %d", out.Applied)
	}
}
