package usecase

import (
	"context"
	"time"

	"github.com/iho/estateledger/internal/aggregation"
	"github.com/iho/estateledger/internal/classification"
	"github.com/iho/estateledger/internal/domain"
)

// CaseRepository defines data access for insolvency cases.
type CaseRepository interface {
	GetByID(ctx context.Context, id string) (*domain.Case, error)
}

// PlanRepository defines data access for liquidity plans.
type PlanRepository interface {
	// GetActive returns domain.ErrNoActivePlan when the case has no active plan.
	GetActive(ctx context.Context, caseID string) (*domain.Plan, error)
}

// EntryRepository defines data access for ledger entries.
type EntryRepository interface {
	ListByCase(ctx context.Context, caseID string) ([]domain.LedgerEntry, error)
	GetByID(ctx context.Context, caseID, id string) (*domain.LedgerEntry, error)
	GetByIDForUpdate(ctx context.Context, tx Transaction, caseID, id string) (*domain.LedgerEntry, error)
	ListChildren(ctx context.Context, tx Transaction, parentID string) ([]domain.LedgerEntry, error)
	CreateTx(ctx context.Context, tx Transaction, entry *domain.LedgerEntry) error
	UpdateReview(ctx context.Context, tx Transaction, entry *domain.LedgerEntry) error
	DeleteChildren(ctx context.Context, tx Transaction, parentID string) (int, error)
	// ApplySuggestions writes classifier suggestions to entries that are still
	// unreviewed and returns how many rows changed.
	ApplySuggestions(ctx context.Context, tx Transaction, caseID string, suggestions []classification.Suggestion) (int, error)
}

// CounterpartyRepository defines data access for counterparties.
type CounterpartyRepository interface {
	ListByCase(ctx context.Context, caseID string) ([]domain.Counterparty, error)
}

// BankAccountRepository defines data access for bank accounts.
type BankAccountRepository interface {
	ListByCase(ctx context.Context, caseID string) ([]domain.BankAccount, error)
}

// AggregationStateRepository tracks whether a case's aggregate is current.
type AggregationStateRepository interface {
	// Get returns a STALE state without error when the case was never built.
	Get(ctx context.Context, caseID string) (*domain.AggregationState, error)
	// MarkStale records one more pending change.
	MarkStale(ctx context.Context, tx Transaction, caseID string, at time.Time) (*domain.AggregationState, error)
	// MarkRebuilding returns the previous state. It leaves the row alone when
	// that state is an active rebuild.
	MarkRebuilding(ctx context.Context, caseID string, at time.Time) (*domain.AggregationState, error)
	// MarkCurrent subtracts the covered pending changes. The state stays STALE
	// when changes arrived during the rebuild.
	MarkCurrent(ctx context.Context, tx Transaction, caseID, hash string, covered int, at time.Time) (*domain.AggregationState, error)
	// ResetRebuilding returns a failed rebuild to STALE.
	ResetRebuilding(ctx context.Context, caseID string, at time.Time) error
}

// AuditRepository defines data access for audit logs.
type AuditRepository interface {
	CreateTx(ctx context.Context, tx Transaction, log *domain.AuditLog) error
	List(ctx context.Context, filter domain.AuditFilter) ([]*domain.AuditLog, error)
}

// Transaction represents a database transaction.
type Transaction interface {
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// TransactionManager handles transaction lifecycle.
type TransactionManager interface {
	Begin(ctx context.Context) (Transaction, error)
}

// Retrier re-runs operations that failed on transient store conflicts.
type Retrier interface {
	Retry(ctx context.Context, op func() error) error
}

// IDGenerator generates unique IDs.
type IDGenerator interface {
	Generate() string
}

// Cache defines caching operations.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// IdempotencyStore handles idempotency key storage.
type IdempotencyStore interface {
	// CheckAndSet atomically checks if key exists, sets if not.
	// Returns (exists, existingValue, error).
	CheckAndSet(ctx context.Context, key string, response []byte, ttl time.Duration) (bool, []byte, error)
	// Update updates an existing key with the final response.
	Update(ctx context.Context, key string, response []byte, ttl time.Duration) error
	// Release drops a claimed key so the request can be retried.
	Release(ctx context.Context, key string) error
}

// EventPublisher publishes aggregation lifecycle events.
type EventPublisher interface {
	Publish(ctx context.Context, event domain.AggregationEvent) error
}

// Metrics records use-case level measurements.
type Metrics interface {
	ObserveAggregation(scope string, elapsed time.Duration, res *aggregation.Result)
	ObserveClassification(matched, unmatched, patternErrors int)
	ObserveCache(hit bool)
}

// NopMetrics discards all measurements.
type NopMetrics struct{}

func (NopMetrics) ObserveAggregation(string, time.Duration, *aggregation.Result) {}
func (NopMetrics) ObserveClassification(int, int, int)                          {}
func (NopMetrics) ObserveCache(bool)                                            {}
