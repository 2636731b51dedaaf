package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/iho/estateledger/internal/classification"
	"github.com/iho/estateledger/internal/domain"
	"github.com/iho/estateledger/internal/usecase"
)

const entryColumns = `
	id, case_id, transaction_date, service_period_start, service_period_end, service_date,
	amount_cents, description, counterparty_id, location_id, bank_account_id,
	value_kind, review_status, estate_allocation, allocation_source, estate_ratio,
	category_tag, legal_bucket, steering_tags, transfer_partner_entry_id, parent_entry_id,
	import_source, import_row, import_hash,
	suggested_counterparty_id, suggested_category_tag, suggested_reason,
	reviewed_by, reviewed_at, review_note, created_at, updated_at`

// EntryRepository implements usecase.EntryRepository.
type EntryRepository struct {
	db querier
}

// NewEntryRepository creates a new EntryRepository.
func NewEntryRepository(pool *pgxpool.Pool) *EntryRepository {
	return &EntryRepository{db: pool}
}

// ListByCase returns all entries of a case ordered by transaction date.
func (r *EntryRepository) ListByCase(ctx context.Context, caseID string) ([]domain.LedgerEntry, error) {
	return r.list(ctx, r.db, `SELECT `+entryColumns+`
		FROM ledger_entries
		WHERE case_id = $1
		ORDER BY transaction_date NULLS LAST, id`, caseID)
}

// GetByID retrieves an entry.
func (r *EntryRepository) GetByID(ctx context.Context, caseID, id string) (*domain.LedgerEntry, error) {
	return r.get(ctx, r.db, `SELECT `+entryColumns+`
		FROM ledger_entries
		WHERE case_id = $1 AND id = $2`, caseID, id)
}

// GetByIDForUpdate retrieves an entry and locks its row.
func (r *EntryRepository) GetByIDForUpdate(ctx context.Context, tx usecase.Transaction, caseID, id string) (*domain.LedgerEntry, error) {
	return r.get(ctx, txQuerier(tx), `SELECT `+entryColumns+`
		FROM ledger_entries
		WHERE case_id = $1 AND id = $2
		FOR UPDATE`, caseID, id)
}

// ListChildren returns the split children of an entry.
func (r *EntryRepository) ListChildren(ctx context.Context, tx usecase.Transaction, parentID string) ([]domain.LedgerEntry, error) {
	return r.list(ctx, txQuerier(tx), `SELECT `+entryColumns+`
		FROM ledger_entries
		WHERE parent_entry_id = $1
		ORDER BY import_row, id`, parentID)
}

// CreateTx inserts an entry.
func (r *EntryRepository) CreateTx(ctx context.Context, tx usecase.Transaction, e *domain.LedgerEntry) error {
	query := `INSERT INTO ledger_entries (` + entryColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16,
		        $17, $18, $19, $20, $21, $22, $23, $24, $25, $26, $27, $28, $29, $30, $31, $32)`

	start, end := servicePeriodToPg(e.ServicePeriod)
	tags := e.SteeringTags
	if tags == nil {
		tags = []string{}
	}

	_, err := txQuerier(tx).Exec(ctx, query,
		e.ID,
		e.CaseID,
		dateToPg(e.TransactionDate),
		start,
		end,
		datePtrToPg(e.ServiceDate),
		e.AmountCents,
		e.Description,
		e.CounterpartyID,
		e.LocationID,
		e.BankAccountID,
		e.ValueKind,
		e.ReviewStatus,
		e.EstateAllocation,
		e.AllocationSource,
		ratioToPg(e.EstateRatio),
		e.CategoryTag,
		e.LegalBucket,
		tags,
		e.TransferPartnerEntryID,
		textOrNull(e.ParentEntryID),
		e.ImportSource,
		e.ImportRow,
		e.ImportHash,
		e.SuggestedCounterpartyID,
		e.SuggestedCategoryTag,
		e.SuggestedReason,
		e.ReviewedBy,
		timePtrToPgTimestamptz(e.ReviewedAt),
		e.ReviewNote,
		e.CreatedAt,
		e.UpdatedAt,
	)
	return err
}

// UpdateReview stores the review outcome of an entry.
func (r *EntryRepository) UpdateReview(ctx context.Context, tx usecase.Transaction, e *domain.LedgerEntry) error {
	query := `
		UPDATE ledger_entries SET
			review_status = $3,
			counterparty_id = $4,
			category_tag = $5,
			legal_bucket = $6,
			service_period_start = $7,
			service_period_end = $8,
			estate_allocation = $9,
			allocation_source = $10,
			estate_ratio = $11,
			reviewed_by = $12,
			reviewed_at = $13,
			review_note = $14,
			updated_at = $15
		WHERE case_id = $1 AND id = $2
	`

	start, end := servicePeriodToPg(e.ServicePeriod)
	tag, err := txQuerier(tx).Exec(ctx, query,
		e.CaseID,
		e.ID,
		e.ReviewStatus,
		e.CounterpartyID,
		e.CategoryTag,
		e.LegalBucket,
		start,
		end,
		e.EstateAllocation,
		e.AllocationSource,
		ratioToPg(e.EstateRatio),
		e.ReviewedBy,
		timePtrToPgTimestamptz(e.ReviewedAt),
		e.ReviewNote,
		e.UpdatedAt,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrEntryNotFound
	}
	return nil
}

// DeleteChildren removes the split children of an entry.
func (r *EntryRepository) DeleteChildren(ctx context.Context, tx usecase.Transaction, parentID string) (int, error) {
	tag, err := txQuerier(tx).Exec(ctx, `DELETE FROM ledger_entries WHERE parent_entry_id = $1`, parentID)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

// ApplySuggestions writes classification suggestions. Entries reviewed in the
// meantime are left untouched and not counted.
func (r *EntryRepository) ApplySuggestions(ctx context.Context, tx usecase.Transaction, caseID string, suggestions []classification.Suggestion) (int, error) {
	query := `
		UPDATE ledger_entries SET
			suggested_counterparty_id = $3,
			suggested_category_tag = $4,
			suggested_reason = $5,
			updated_at = NOW()
		WHERE case_id = $1 AND id = $2 AND review_status = 'UNREVIEWED'
	`

	q := txQuerier(tx)
	applied := 0
	for _, s := range suggestions {
		tag, err := q.Exec(ctx, query, caseID, s.EntryID, s.CounterpartyID, s.CategoryTag, s.Reason)
		if err != nil {
			return applied, fmt.Errorf("apply suggestion for %s: %w", s.EntryID, err)
		}
		applied += int(tag.RowsAffected())
	}
	return applied, nil
}

func (r *EntryRepository) get(ctx context.Context, q querier, query string, args ...any) (*domain.LedgerEntry, error) {
	e, err := scanEntry(q.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrEntryNotFound
		}
		return nil, err
	}
	return e, nil
}

func (r *EntryRepository) list(ctx context.Context, q querier, query string, args ...any) ([]domain.LedgerEntry, error) {
	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []domain.LedgerEntry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, *e)
	}
	return entries, rows.Err()
}

func scanEntry(row scanner) (*domain.LedgerEntry, error) {
	var (
		e                             domain.LedgerEntry
		txDate, spStart, spEnd, sDate pgtype.Date
		ratio, parent                 pgtype.Text
		reviewedAt                    pgtype.Timestamptz
	)
	err := row.Scan(
		&e.ID,
		&e.CaseID,
		&txDate,
		&spStart,
		&spEnd,
		&sDate,
		&e.AmountCents,
		&e.Description,
		&e.CounterpartyID,
		&e.LocationID,
		&e.BankAccountID,
		&e.ValueKind,
		&e.ReviewStatus,
		&e.EstateAllocation,
		&e.AllocationSource,
		&ratio,
		&e.CategoryTag,
		&e.LegalBucket,
		&e.SteeringTags,
		&e.TransferPartnerEntryID,
		&parent,
		&e.ImportSource,
		&e.ImportRow,
		&e.ImportHash,
		&e.SuggestedCounterpartyID,
		&e.SuggestedCategoryTag,
		&e.SuggestedReason,
		&e.ReviewedBy,
		&reviewedAt,
		&e.ReviewNote,
		&e.CreatedAt,
		&e.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	e.TransactionDate = pgToDate(txDate)
	if spStart.Valid || spEnd.Valid {
		e.ServicePeriod = &domain.ServicePeriod{Start: pgToDate(spStart), End: pgToDate(spEnd)}
	}
	e.ServiceDate = pgToDatePtr(sDate)
	e.ParentEntryID = parent.String
	e.ReviewedAt = pgToTimePtr(reviewedAt)
	if ratio.Valid {
		r, err := domain.ParseRatio(ratio.String)
		if err != nil {
			return nil, fmt.Errorf("entry %s: %w", e.ID, err)
		}
		e.EstateRatio = &r
	}
	return &e, nil
}

func servicePeriodToPg(p *domain.ServicePeriod) (pgtype.Date, pgtype.Date) {
	if p == nil {
		return pgtype.Date{}, pgtype.Date{}
	}
	return dateToPg(p.Start), dateToPg(p.End)
}

func ratioToPg(r *domain.Ratio) pgtype.Text {
	if r == nil {
		return pgtype.Text{}
	}
	return pgtype.Text{String: r.String(), Valid: true}
}
