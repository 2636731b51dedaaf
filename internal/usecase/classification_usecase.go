package usecase

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/iho/estateledger/internal/classification"
	"github.com/iho/estateledger/internal/domain"
)

// ClassificationUseCase suggests counterparties for unreviewed entries.
type ClassificationUseCase struct {
	txManager        TransactionManager
	entryRepo        EntryRepository
	counterpartyRepo CounterpartyRepository
	auditRepo        AuditRepository
	retrier          Retrier
	stale            staleMarker
	metrics          Metrics
	logger           zerolog.Logger
	now              func() time.Time
}

// NewClassificationUseCase creates a new ClassificationUseCase.
func NewClassificationUseCase(
	txManager TransactionManager,
	entryRepo EntryRepository,
	counterpartyRepo CounterpartyRepository,
	stateRepo AggregationStateRepository,
	auditRepo AuditRepository,
	retrier Retrier,
	publisher EventPublisher,
	metrics Metrics,
	logger zerolog.Logger,
) *ClassificationUseCase {
	if metrics == nil {
		metrics = NopMetrics{}
	}
	return &ClassificationUseCase{
		txManager:        txManager,
		entryRepo:        entryRepo,
		counterpartyRepo: counterpartyRepo,
		auditRepo:        auditRepo,
		retrier:          retrier,
		stale:            staleMarker{stateRepo: stateRepo, publisher: publisher, logger: logger},
		metrics:          metrics,
		logger:           logger,
		now:              time.Now,
	}
}

// ClassifyInput selects the case to classify.
type ClassifyInput struct {
	CaseID    string
	UserID    string
	RequestID string
	DryRun    bool
}

// ClassifyOutput reports one classification run.
type ClassifyOutput struct {
	classification.Result
	Applied       int
	PatternErrors []classification.PatternError
}

// Run matches every unreviewed entry against the counterparty patterns and
// stores the suggestions. Reviewed entries are never touched.
func (uc *ClassificationUseCase) Run(ctx context.Context, input ClassifyInput) (*ClassifyOutput, error) {
	counterparties, err := uc.counterpartyRepo.ListByCase(ctx, input.CaseID)
	if err != nil {
		return nil, err
	}
	entries, err := uc.entryRepo.ListByCase(ctx, input.CaseID)
	if err != nil {
		return nil, err
	}

	matcher, patternErrs := classification.Compile(counterparties)
	for _, pe := range patternErrs {
		uc.logger.Warn().
			Str("case_id", input.CaseID).
			Str("counterparty_id", pe.CounterpartyID).
			Str("pattern", pe.Pattern).
			Err(pe.Err).
			Msg("skipping malformed counterparty pattern")
	}

	out := &ClassifyOutput{Result: matcher.Classify(entries), PatternErrors: patternErrs}
	uc.metrics.ObserveClassification(len(out.Suggestions), len(out.Unmatched), len(patternErrs))
	if input.DryRun || len(out.Suggestions) == 0 {
		return out, nil
	}

	var state *domain.AggregationState
	err = uc.retrier.Retry(ctx, func() error {
		applied, st, err := uc.apply(ctx, input, out)
		if err != nil {
			return err
		}
		out.Applied, state = applied, st
		return nil
	})
	if err != nil {
		return nil, err
	}

	uc.logger.Info().
		Str("case_id", input.CaseID).
		Int("suggested", len(out.Suggestions)).
		Int("applied", out.Applied).
		Int("unmatched", len(out.Unmatched)).
		Msg("classification run finished")
	uc.stale.publish(ctx, state, string(domain.AuditActionClassificationRun), uc.now().UTC())
	return out, nil
}

func (uc *ClassificationUseCase) apply(ctx context.Context, input ClassifyInput, out *ClassifyOutput) (int, *domain.AggregationState, error) {
	tx, err := uc.txManager.Begin(ctx)
	if err != nil {
		return 0, nil, err
	}
	defer tx.Rollback(ctx)

	applied, err := uc.entryRepo.ApplySuggestions(ctx, tx, input.CaseID, out.Suggestions)
	if err != nil {
		return 0, nil, err
	}

	now := uc.now().UTC()
	var state *domain.AggregationState
	if applied > 0 {
		if state, err = uc.stale.mark(ctx, tx, input.CaseID, now); err != nil {
			return 0, nil, err
		}
	}

	err = uc.auditRepo.CreateTx(ctx, tx, &domain.AuditLog{
		CaseID:       input.CaseID,
		UserID:       input.UserID,
		Action:       domain.AuditActionClassificationRun,
		ResourceType: "classification",
		ResourceID:   input.CaseID,
		RequestID:    input.RequestID,
		AfterState: domain.JSON{
			"suggested":     len(out.Suggestions),
			"applied":       applied,
			"unmatched":     len(out.Unmatched),
			"patternErrors": len(out.PatternErrors),
		},
		Status:    domain.AuditStatusSuccess,
		CreatedAt: now,
	})
	if err != nil {
		return 0, nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, nil, err
	}
	return applied, state, nil
}
