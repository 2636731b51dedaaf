package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/iho/estateledger/internal/domain"
)

// PlanRepository implements usecase.PlanRepository.
type PlanRepository struct {
	db querier
}

// NewPlanRepository creates a new PlanRepository.
func NewPlanRepository(pool *pgxpool.Pool) *PlanRepository {
	return &PlanRepository{db: pool}
}

// GetActive returns the active plan of a case.
func (r *PlanRepository) GetActive(ctx context.Context, caseID string) (*domain.Plan, error) {
	query := `
		SELECT id, case_id, name, period_type, period_count, start_date,
		       opening_balance_cents, is_active, created_at, updated_at
		FROM plans
		WHERE case_id = $1 AND is_active
	`

	var p domain.Plan
	err := r.db.QueryRow(ctx, query, caseID).Scan(
		&p.ID,
		&p.CaseID,
		&p.Name,
		&p.PeriodType,
		&p.PeriodCount,
		&p.StartDate,
		&p.OpeningBalanceCents,
		&p.IsActive,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNoActivePlan
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}
