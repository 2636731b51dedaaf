package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/pashagolub/pgxmock/v4"

	"github.com/iho/estateledger/internal/domain"
)

var stateColumnNames = []string{"case_id", "status", "pending_changes", "last_hash", "last_built_at", "updated_at"}

var leaseColumnNames = []string{"exists", "status", "pending_changes", "last_hash", "last_built_at", "updated_at"}

func TestAggregationStateGetNeverBuilt(t *testing.T) {
	pool := newMockPool(t)
	pool.ExpectQuery("FROM aggregation_state WHERE case_id = \\$1").
		WithArgs("case-1").
		WillReturnError(pgx.ErrNoRows)

	repo := &AggregationStateRepository{db: pool}
	s, err := repo.Get(context.Background(), "case-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.Status != domain.AggregationStale || s.CaseID != "case-1" {
		t.Errorf("expected STALE default state, got %+v", s)
	}
}

func TestAggregationStateMarkStale(t *testing.T) {
	at := time.Date(2025, 11, 4, 10, 0, 0, 0, time.UTC)
	pool := newMockPool(t)
	tx := beginMockTx(t, pool)
	pool.ExpectQuery("INSERT INTO aggregation_state").
		WithArgs("case-1", at).
		WillReturnRows(pool.NewRows(stateColumnNames).
			AddRow("case-1", domain.AggregationStale, 3, "h1", pgtype.Timestamptz{}, at))

	repo := &AggregationStateRepository{db: pool}
	s, err := repo.MarkStale(context.Background(), tx, "case-1", at)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.PendingChanges != 3 || s.LastBuiltAt != nil {
		t.Errorf("unexpected state %+v", s)
	}
	assertExpectations(t, pool)
}

func TestAggregationStateMarkRebuilding(t *testing.T) {
	at := time.Date(2025, 11, 4, 10, 0, 0, 0, time.UTC)
	earlier := at.Add(-time.Minute)

	tests := []struct {
		name       string
		row        []any
		wantStatus domain.AggregationStatus
		wantActive bool
		wantCover  int
	}{
		{
			name:       "takes the lease from a stale case",
			row:        []any{true, pgtype.Text{String: "STALE", Valid: true}, pgtype.Int4{Int32: 4, Valid: true}, pgtype.Text{String: "h1", Valid: true}, pgtype.Timestamptz{}, pgtype.Timestamptz{Time: earlier, Valid: true}},
			wantStatus: domain.AggregationStale,
			wantCover:  4,
		},
		{
			name:       "first build of a case",
			row:        []any{true, nil, nil, nil, nil, nil},
			wantStatus: domain.AggregationStale,
		},
		{
			name:       "another rebuild holds the lease",
			row:        []any{false, pgtype.Text{String: "REBUILDING", Valid: true}, pgtype.Int4{Int32: 1, Valid: true}, pgtype.Text{}, pgtype.Timestamptz{}, pgtype.Timestamptz{Time: earlier, Valid: true}},
			wantStatus: domain.AggregationRebuilding,
			wantActive: true,
			wantCover:  1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pool := newMockPool(t)
			pool.ExpectQuery("WITH prev AS").
				WithArgs("case-1", at, at.Add(-domain.RebuildLease)).
				WillReturnRows(pool.NewRows(leaseColumnNames).AddRow(tt.row...))

			repo := &AggregationStateRepository{db: pool}
			s, err := repo.MarkRebuilding(context.Background(), "case-1", at)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if s.Status != tt.wantStatus {
				t.Errorf("expected status %s, got %s", tt.wantStatus, s.Status)
			}
			if s.RebuildActive(at) != tt.wantActive {
				t.Errorf("expected active=%v, got %v", tt.wantActive, s.RebuildActive(at))
			}
			if s.PendingChanges != tt.wantCover {
				t.Errorf("expected %d pending changes, got %d", tt.wantCover, s.PendingChanges)
			}
			assertExpectations(t, pool)
		})
	}
}

func TestAggregationStateMarkCurrent(t *testing.T) {
	at := time.Date(2025, 11, 4, 10, 0, 0, 0, time.UTC)
	pool := newMockPool(t)
	tx := beginMockTx(t, pool)
	pool.ExpectQuery("UPDATE aggregation_state SET pending_changes = GREATEST").
		WithArgs("case-1", 4, "h2", at).
		WillReturnRows(pool.NewRows(stateColumnNames).
			AddRow("case-1", domain.AggregationCurrent, 0, "h2", pgtype.Timestamptz{Time: at, Valid: true}, at))

	repo := &AggregationStateRepository{db: pool}
	s, err := repo.MarkCurrent(context.Background(), tx, "case-1", "h2", 4, at)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.Status != domain.AggregationCurrent || s.LastBuiltAt == nil || !s.LastBuiltAt.Equal(at) {
		t.Errorf("unexpected state %+v", s)
	}
	assertExpectations(t, pool)
}

func TestAggregationStateResetRebuilding(t *testing.T) {
	at := time.Date(2025, 11, 4, 10, 0, 0, 0, time.UTC)
	pool := newMockPool(t)
	pool.ExpectExec("status = 'REBUILDING'").
		WithArgs("case-1", at).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	repo := &AggregationStateRepository{db: pool}
	if err := repo.ResetRebuilding(context.Background(), "case-1", at); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	assertExpectations(t, pool)
}
