package usecase

import "time"

const (
	// DefaultTransactionTimeout is the maximum duration for a database transaction
	// This prevents long-running transactions from blocking tables
	DefaultTransactionTimeout = 10 * time.Second

	// DefaultAggregationCacheTTL is how long a computed aggregate stays in the cache.
	DefaultAggregationCacheTTL = 15 * time.Minute

	// IdempotencyKeyTTL is how long idempotency keys are cached
	IdempotencyKeyTTL = 24 * time.Hour

	// IdempotencyProcessing is stored under a claimed key until the response is known.
	IdempotencyProcessing = "processing"

	// DefaultAuditLimit caps audit log listings.
	DefaultAuditLimit = 100
)
