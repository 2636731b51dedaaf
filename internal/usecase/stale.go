package usecase

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/iho/estateledger/internal/domain"
)

// staleMarker flags a case's aggregate as outdated inside a write transaction
// and announces it once the transaction has committed.
type staleMarker struct {
	stateRepo AggregationStateRepository
	publisher EventPublisher
	logger    zerolog.Logger
}

func (m staleMarker) mark(ctx context.Context, tx Transaction, caseID string, at time.Time) (*domain.AggregationState, error) {
	return m.stateRepo.MarkStale(ctx, tx, caseID, at)
}

func (m staleMarker) publish(ctx context.Context, state *domain.AggregationState, reason string, at time.Time) {
	if m.publisher == nil || state == nil {
		return
	}
	err := m.publisher.Publish(ctx, domain.AggregationEvent{
		Type:           domain.EventTypeAggregationStale,
		CaseID:         state.CaseID,
		Reason:         reason,
		PendingChanges: state.PendingChanges,
		OccurredAt:     at,
	})
	if err != nil {
		m.logger.Warn().Err(err).Str("case_id", state.CaseID).Str("reason", reason).Msg("failed to publish stale event")
	}
}
