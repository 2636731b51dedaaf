package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/iho/estateledger/internal/domain"
	"github.com/iho/estateledger/internal/usecase"
)

const stateColumns = `case_id, status, pending_changes, last_hash, last_built_at, updated_at`

// AggregationStateRepository implements usecase.AggregationStateRepository.
type AggregationStateRepository struct {
	db querier
}

// NewAggregationStateRepository creates a new AggregationStateRepository.
func NewAggregationStateRepository(pool *pgxpool.Pool) *AggregationStateRepository {
	return &AggregationStateRepository{db: pool}
}

// Get returns the aggregation state of a case, STALE if it was never built.
func (r *AggregationStateRepository) Get(ctx context.Context, caseID string) (*domain.AggregationState, error) {
	s, err := scanState(r.db.QueryRow(ctx, `SELECT `+stateColumns+` FROM aggregation_state WHERE case_id = $1`, caseID))
	if errors.Is(err, pgx.ErrNoRows) {
		return &domain.AggregationState{CaseID: caseID, Status: domain.AggregationStale}, nil
	}
	return s, err
}

// MarkStale counts one pending change. A running rebuild keeps its status and
// lease so the change is picked up when it finishes.
func (r *AggregationStateRepository) MarkStale(ctx context.Context, tx usecase.Transaction, caseID string, at time.Time) (*domain.AggregationState, error) {
	query := `
		INSERT INTO aggregation_state (case_id, status, pending_changes, updated_at)
		VALUES ($1, 'STALE', 1, $2)
		ON CONFLICT (case_id) DO UPDATE SET
			pending_changes = aggregation_state.pending_changes + 1,
			status = CASE WHEN aggregation_state.status = 'REBUILDING' THEN 'REBUILDING' ELSE 'STALE' END,
			updated_at = CASE WHEN aggregation_state.status = 'REBUILDING' THEN aggregation_state.updated_at ELSE EXCLUDED.updated_at END
		RETURNING ` + stateColumns

	return scanState(txQuerier(tx).QueryRow(ctx, query, caseID, at))
}

// MarkRebuilding takes the rebuild lease and returns the state it replaced.
// When another rebuild holds the lease the returned state is that rebuild.
func (r *AggregationStateRepository) MarkRebuilding(ctx context.Context, caseID string, at time.Time) (*domain.AggregationState, error) {
	query := `
		WITH prev AS (
			SELECT ` + stateColumns + ` FROM aggregation_state WHERE case_id = $1
		), lease AS (
			INSERT INTO aggregation_state (case_id, status, pending_changes, updated_at)
			VALUES ($1, 'REBUILDING', 0, $2)
			ON CONFLICT (case_id) DO UPDATE SET
				status = 'REBUILDING',
				updated_at = EXCLUDED.updated_at
			WHERE aggregation_state.status <> 'REBUILDING' OR aggregation_state.updated_at <= $3
			RETURNING case_id
		)
		SELECT EXISTS (SELECT 1 FROM lease), p.status, p.pending_changes, p.last_hash, p.last_built_at, p.updated_at
		FROM (SELECT 1) AS one
		LEFT JOIN prev p ON TRUE
	`

	var (
		acquired  bool
		status    pgtype.Text
		pending   pgtype.Int4
		hash      pgtype.Text
		builtAt   pgtype.Timestamptz
		updatedAt pgtype.Timestamptz
	)
	err := r.db.QueryRow(ctx, query, caseID, at, at.Add(-domain.RebuildLease)).
		Scan(&acquired, &status, &pending, &hash, &builtAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	if !acquired {
		s := &domain.AggregationState{CaseID: caseID, Status: domain.AggregationRebuilding, UpdatedAt: at}
		if updatedAt.Valid {
			s.UpdatedAt = updatedAt.Time
			s.PendingChanges = int(pending.Int32)
			s.LastHash = hash.String
			s.LastBuiltAt = pgToTimePtr(builtAt)
		}
		return s, nil
	}
	if !status.Valid {
		return &domain.AggregationState{CaseID: caseID, Status: domain.AggregationStale}, nil
	}
	prev := &domain.AggregationState{
		CaseID:         caseID,
		Status:         domain.AggregationStatus(status.String),
		PendingChanges: int(pending.Int32),
		LastHash:       hash.String,
		LastBuiltAt:    pgToTimePtr(builtAt),
		UpdatedAt:      updatedAt.Time,
	}
	// An expired lease was ours to take over.
	if prev.Status == domain.AggregationRebuilding {
		prev.Status = domain.AggregationStale
	}
	return prev, nil
}

// MarkCurrent records a finished rebuild. Changes that arrived after the
// rebuild started stay pending and keep the case STALE.
func (r *AggregationStateRepository) MarkCurrent(ctx context.Context, tx usecase.Transaction, caseID, hash string, covered int, at time.Time) (*domain.AggregationState, error) {
	query := `
		UPDATE aggregation_state SET
			pending_changes = GREATEST(pending_changes - $2, 0),
			status = CASE WHEN pending_changes - $2 > 0 THEN 'STALE' ELSE 'CURRENT' END,
			last_hash = $3,
			last_built_at = $4,
			updated_at = $4
		WHERE case_id = $1
		RETURNING ` + stateColumns

	s, err := scanState(txQuerier(tx).QueryRow(ctx, query, caseID, covered, hash, at))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrCaseNotFound
	}
	return s, err
}

// ResetRebuilding releases the lease of a failed rebuild.
func (r *AggregationStateRepository) ResetRebuilding(ctx context.Context, caseID string, at time.Time) error {
	_, err := r.db.Exec(ctx, `
		UPDATE aggregation_state SET status = 'STALE', updated_at = $2
		WHERE case_id = $1 AND status = 'REBUILDING'
	`, caseID, at)
	return err
}

func scanState(row scanner) (*domain.AggregationState, error) {
	var (
		s       domain.AggregationState
		builtAt pgtype.Timestamptz
	)
	if err := row.Scan(&s.CaseID, &s.Status, &s.PendingChanges, &s.LastHash, &builtAt, &s.UpdatedAt); err != nil {
		return nil, err
	}
	s.LastBuiltAt = pgToTimePtr(builtAt)
	return &s, nil
}
