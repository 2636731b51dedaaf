package postgres

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/iho/estateledger/internal/domain"
)

// BankAccountRepository implements usecase.BankAccountRepository.
type BankAccountRepository struct {
	db querier
}

// NewBankAccountRepository creates a new BankAccountRepository.
func NewBankAccountRepository(pool *pgxpool.Pool) *BankAccountRepository {
	return &BankAccountRepository{db: pool}
}

// ListByCase returns the bank accounts of a case in display order.
func (r *BankAccountRepository) ListByCase(ctx context.Context, caseID string) ([]domain.BankAccount, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, case_id, name, bank_name, iban, opening_balance_cents,
		       location_id, status, display_order, created_at, updated_at
		FROM bank_accounts
		WHERE case_id = $1
		ORDER BY display_order, id
	`, caseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.BankAccount
	for rows.Next() {
		var a domain.BankAccount
		err := rows.Scan(
			&a.ID,
			&a.CaseID,
			&a.Name,
			&a.BankName,
			&a.IBAN,
			&a.OpeningBalanceCents,
			&a.LocationID,
			&a.Status,
			&a.DisplayOrder,
			&a.CreatedAt,
			&a.UpdatedAt,
		)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
