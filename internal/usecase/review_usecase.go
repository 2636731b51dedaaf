package usecase

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/iho/estateledger/internal/domain"
)

// ReviewUseCase records reviewer decisions on ledger entries.
type ReviewUseCase struct {
	txManager TransactionManager
	entryRepo EntryRepository
	auditRepo AuditRepository
	retrier   Retrier
	stale     staleMarker
	now       func() time.Time
}

// NewReviewUseCase creates a new ReviewUseCase.
func NewReviewUseCase(
	txManager TransactionManager,
	entryRepo EntryRepository,
	stateRepo AggregationStateRepository,
	auditRepo AuditRepository,
	retrier Retrier,
	publisher EventPublisher,
	logger zerolog.Logger,
) *ReviewUseCase {
	return &ReviewUseCase{
		txManager: txManager,
		entryRepo: entryRepo,
		auditRepo: auditRepo,
		retrier:   retrier,
		stale:     staleMarker{stateRepo: stateRepo, publisher: publisher, logger: logger},
		now:       time.Now,
	}
}

// ReviewInput identifies the entry and the decision.
type ReviewInput struct {
	CaseID    string
	EntryID   string
	RequestID string
	Request   domain.ReviewRequest
}

// Review confirms or adjusts an entry. Confirming an entry that is already
// reviewed is a no-op, so retried confirmations are safe.
func (uc *ReviewUseCase) Review(ctx context.Context, input ReviewInput) (*domain.LedgerEntry, error) {
	if err := domain.ValidateReview(input.Request); err != nil {
		return nil, err
	}

	var (
		reviewed *domain.LedgerEntry
		state    *domain.AggregationState
	)
	err := uc.retrier.Retry(ctx, func() error {
		e, st, err := uc.review(ctx, input)
		if err != nil {
			return err
		}
		reviewed, state = e, st
		return nil
	})
	if err != nil {
		return nil, err
	}

	uc.stale.publish(ctx, state, "entry."+string(input.Request.Action), uc.now().UTC())
	return reviewed, nil
}

func (uc *ReviewUseCase) review(ctx context.Context, input ReviewInput) (*domain.LedgerEntry, *domain.AggregationState, error) {
	tx, err := uc.txManager.Begin(ctx)
	if err != nil {
		return nil, nil, err
	}
	defer tx.Rollback(ctx)

	entry, err := uc.entryRepo.GetByIDForUpdate(ctx, tx, input.CaseID, input.EntryID)
	if err != nil {
		return nil, nil, err
	}
	if input.Request.Action == domain.ReviewActionConfirm && entry.ReviewStatus.IsReviewed() {
		return entry, nil, nil
	}

	now := uc.now().UTC()
	updated := input.Request.Apply(entry, now)
	if err := uc.entryRepo.UpdateReview(ctx, tx, &updated); err != nil {
		return nil, nil, err
	}

	state, err := uc.stale.mark(ctx, tx, input.CaseID, now)
	if err != nil {
		return nil, nil, err
	}

	action := domain.AuditActionEntryConfirm
	if input.Request.Action == domain.ReviewActionAdjust {
		action = domain.AuditActionEntryAdjust
	}
	err = uc.auditRepo.CreateTx(ctx, tx, &domain.AuditLog{
		CaseID:       input.CaseID,
		UserID:       input.Request.Reviewer,
		Action:       action,
		ResourceType: "entry",
		ResourceID:   entry.ID,
		RequestID:    input.RequestID,
		BeforeState:  domain.MarshalState(entry),
		AfterState:   domain.MarshalState(updated),
		Status:       domain.AuditStatusSuccess,
		CreatedAt:    now,
	})
	if err != nil {
		return nil, nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, nil, err
	}
	return &updated, state, nil
}
