package usecase_test

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/mock/gomock"

	"github.com/iho/estateledger/internal/domain"
	"github.com/iho/estateledger/internal/usecase"
)

func newReviewUseCase(m *storeMocks) *usecase.ReviewUseCase {
	return usecase.NewReviewUseCase(m.txManager, m.entries, m.state, m.audit, m.retrier, m.publisher, nopLogger())
}

func unreviewedEntry() *domain.LedgerEntry {
	e := fixtureEntries()[1]
	e.SuggestedCounterpartyID = "cp-energy"
	e.SuggestedCategoryTag = "ENERGY"
	return &e
}

func TestReviewUseCase_Confirm(t *testing.T) {
	ctrl := gomock.NewController(t)
	m := newStoreMocks(ctrl)

	m.passthroughRetrier()
	m.expectTx()
	m.entries.EXPECT().GetByIDForUpdate(gomock.Any(), m.tx, "case-1", "e2").Return(unreviewedEntry(), nil)
	m.entries.EXPECT().UpdateReview(gomock.Any(), m.tx, gomock.Any()).
		DoAndReturn(func(_ context.Context, _ usecase.Transaction, e *domain.LedgerEntry) error {
			if e.ReviewStatus != domain.ReviewStatusConfirmed || e.CounterpartyID != "cp-energy" {
				t.Errorf("expected confirmed entry with suggestion taken over, got %+v", e)
			}
			return nil
		})
	m.state.EXPECT().MarkStale(gomock.Any(), m.tx, "case-1", gomock.Any()).
		Return(&domain.AggregationState{CaseID: "case-1", Status: domain.AggregationStale, PendingChanges: 4}, nil)
	m.audit.EXPECT().CreateTx(gomock.Any(), m.tx, gomock.Any()).
		DoAndReturn(func(_ context.Context, _ usecase.Transaction, log *domain.AuditLog) error {
			if log.Action != domain.AuditActionEntryConfirm || log.ResourceID != "e2" || log.UserID != "anna" {
				t.Errorf("unexpected audit log %+v", log)
			}
			if log.BeforeState == nil || log.AfterState == nil {
				t.Errorf("expected before and after state")
			}
			return nil
		})
	m.publisher.EXPECT().Publish(gomock.Any(), gomock.Any()).Return(nil)

	uc := newReviewUseCase(m)
	got, err := uc.Review(context.Background(), usecase.ReviewInput{
		CaseID:  "case-1",
		EntryID: "e2",
		Request: domain.ReviewRequest{Action: domain.ReviewActionConfirm, Reviewer: "anna"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.ReviewedBy != "anna" || got.ReviewedAt == nil {
		t.Errorf("expected reviewer to be recorded, got %+v", got)
	}
}

func TestReviewUseCase_ConfirmTwiceIsNoOp(t *testing.T) {
	ctrl := gomock.NewController(t)
	m := newStoreMocks(ctrl)

	confirmed := fixtureEntries()[0]
	m.passthroughRetrier()
	m.expectRolledBackTx()
	m.entries.EXPECT().GetByIDForUpdate(gomock.Any(), m.tx, "case-1", "e1").Return(&confirmed, nil)

	uc := newReviewUseCase(m)
	got, err := uc.Review(context.Background(), usecase.ReviewInput{
		CaseID:  "case-1",
		EntryID: "e1",
		Request: domain.ReviewRequest{Action: domain.ReviewActionConfirm, Reviewer: "anna"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.ID != "e1" || got.ReviewStatus != domain.ReviewStatusConfirmed {
		t.Errorf("expected untouched confirmed entry, got %+v", got)
	}
}

func TestReviewUseCase_AdjustSetsManualAllocation(t *testing.T) {
	ctrl := gomock.NewController(t)
	m := newStoreMocks(ctrl)

	ratio := domain.MustRatio(1, 4)
	m.passthroughRetrier()
	m.expectTx()
	m.entries.EXPECT().GetByIDForUpdate(gomock.Any(), m.tx, "case-1", "e2").Return(unreviewedEntry(), nil)
	m.entries.EXPECT().UpdateReview(gomock.Any(), m.tx, gomock.Any()).
		DoAndReturn(func(_ context.Context, _ usecase.Transaction, e *domain.LedgerEntry) error {
			if e.ReviewStatus != domain.ReviewStatusAdjusted || e.AllocationSource != domain.AllocationSourceManual {
				t.Errorf("expected manual adjusted entry, got %+v", e)
			}
			if e.EstateAllocation != domain.EstateMixed || e.EstateRatio == nil || e.EstateRatio.Cmp(ratio) != 0 {
				t.Errorf("expected mixed 1/4 allocation, got %s %v", e.EstateAllocation, e.EstateRatio)
			}
			return nil
		})
	m.state.EXPECT().MarkStale(gomock.Any(), m.tx, "case-1", gomock.Any()).
		Return(&domain.AggregationState{CaseID: "case-1", Status: domain.AggregationStale}, nil)
	m.audit.EXPECT().CreateTx(gomock.Any(), m.tx, gomock.Any()).Return(nil)
	m.publisher.EXPECT().Publish(gomock.Any(), gomock.Any()).Return(nil)

	uc := newReviewUseCase(m)
	_, err := uc.Review(context.Background(), usecase.ReviewInput{
		CaseID:  "case-1",
		EntryID: "e2",
		Request: domain.ReviewRequest{
			Action:      domain.ReviewActionAdjust,
			Reviewer:    "anna",
			Reason:      "Gutschrift betrifft Oktober und November",
			EstateRatio: &ratio,
		},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestReviewUseCase_RejectsInvalidRequestBeforeWrite(t *testing.T) {
	ctrl := gomock.NewController(t)
	m := newStoreMocks(ctrl)

	uc := newReviewUseCase(m)
	_, err := uc.Review(context.Background(), usecase.ReviewInput{
		CaseID:  "case-1",
		EntryID: "e2",
		Request: domain.ReviewRequest{Action: domain.ReviewActionAdjust, Reviewer: "anna"},
	})
	if !errors.Is(err, domain.ErrAdjustReasonRequired) {
		t.Fatalf("expected ErrAdjustReasonRequired, got %v", err)
	}
}

func TestReviewUseCase_EntryNotFound(t *testing.T) {
	ctrl := gomock.NewController(t)
	m := newStoreMocks(ctrl)

	m.passthroughRetrier()
	m.expectRolledBackTx()
	m.entries.EXPECT().GetByIDForUpdate(gomock.Any(), m.tx, "case-1", "nope").Return(nil, domain.ErrEntryNotFound)

	uc := newReviewUseCase(m)
	_, err := uc.Review(context.Background(), usecase.ReviewInput{
		CaseID:  "case-1",
		EntryID: "nope",
		Request: domain.ReviewRequest{Action: domain.ReviewActionConfirm},
	})
	if !errors.Is(err, domain.ErrEntryNotFound) {
		t.Fatalf("expected ErrEntryNotFound, got %v", err)
	}
}
