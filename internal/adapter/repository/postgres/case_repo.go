package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/iho/estateledger/internal/domain"
)

// CaseRepository implements usecase.CaseRepository.
type CaseRepository struct {
	db querier
}

// NewCaseRepository creates a new CaseRepository.
func NewCaseRepository(pool *pgxpool.Pool) *CaseRepository {
	return &CaseRepository{db: pool}
}

// GetByID loads a case with its locations and contract rules.
func (r *CaseRepository) GetByID(ctx context.Context, id string) (*domain.Case, error) {
	query := `
		SELECT id, name, cutoff_date, created_at, updated_at
		FROM cases
		WHERE id = $1
	`

	var (
		c      domain.Case
		cutoff pgtype.Date
	)
	err := r.db.QueryRow(ctx, query, id).Scan(&c.ID, &c.Name, &cutoff, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrCaseNotFound
		}
		return nil, err
	}
	c.CutoffDate = pgToDatePtr(cutoff)

	if c.Locations, err = r.locations(ctx, id); err != nil {
		return nil, err
	}
	if c.ContractRules, err = r.rules(ctx, id); err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *CaseRepository) locations(ctx context.Context, caseID string) ([]domain.Location, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, name
		FROM case_locations
		WHERE case_id = $1
		ORDER BY display_order, id
	`, caseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var locations []domain.Location
	for rows.Next() {
		var l domain.Location
		if err := rows.Scan(&l.ID, &l.Name); err != nil {
			return nil, err
		}
		locations = append(locations, l)
	}
	return locations, rows.Err()
}

func (r *CaseRepository) rules(ctx context.Context, caseID string) ([]domain.ContractRule, error) {
	rows, err := r.db.Query(ctx, `
		SELECT contract_type, period, alt_share, neu_share, note
		FROM contract_rules
		WHERE case_id = $1
		ORDER BY contract_type, period
	`, caseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rules []domain.ContractRule
	for rows.Next() {
		var (
			rule     domain.ContractRule
			alt, neu string
		)
		if err := rows.Scan(&rule.ContractType, &rule.Period, &alt, &neu, &rule.Note); err != nil {
			return nil, err
		}
		if rule.AltShare, err = domain.ParseRatio(alt); err != nil {
			return nil, fmt.Errorf("rule %s %s: %w", rule.ContractType, rule.Period, err)
		}
		if rule.NeuShare, err = domain.ParseRatio(neu); err != nil {
			return nil, fmt.Errorf("rule %s %s: %w", rule.ContractType, rule.Period, err)
		}
		rules = append(rules, rule)
	}
	return rules, rows.Err()
}
