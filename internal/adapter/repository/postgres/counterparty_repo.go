package postgres

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/iho/estateledger/internal/domain"
)

// CounterpartyRepository implements usecase.CounterpartyRepository.
type CounterpartyRepository struct {
	db querier
}

// NewCounterpartyRepository creates a new CounterpartyRepository.
func NewCounterpartyRepository(pool *pgxpool.Pool) *CounterpartyRepository {
	return &CounterpartyRepository{db: pool}
}

// ListByCase returns the counterparties of a case in match priority order.
func (r *CounterpartyRepository) ListByCase(ctx context.Context, caseID string) ([]domain.Counterparty, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, case_id, name, match_pattern, type, display_order,
		       default_category_tag, fallback_rule, created_at, updated_at
		FROM counterparties
		WHERE case_id = $1
		ORDER BY display_order, id
	`, caseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Counterparty
	for rows.Next() {
		var c domain.Counterparty
		err := rows.Scan(
			&c.ID,
			&c.CaseID,
			&c.Name,
			&c.MatchPattern,
			&c.Type,
			&c.DisplayOrder,
			&c.DefaultCategoryTag,
			&c.FallbackRule,
			&c.CreatedAt,
			&c.UpdatedAt,
		)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
