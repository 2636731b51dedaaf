// Package memory keeps a case in process memory. The CLI runs the same use
// cases against it that the server runs against PostgreSQL.
package memory

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/iho/estateledger/internal/domain"
	"github.com/iho/estateledger/internal/ingest"
	"github.com/iho/estateledger/internal/usecase"
)

var errForeignTx = errors.New("memory: transaction was not started by this store")

type caseData struct {
	c              *domain.Case
	plan           *domain.Plan
	entries        map[string]domain.LedgerEntry
	counterparties []domain.Counterparty
	accounts       []domain.BankAccount
	state          *domain.AggregationState
}

// Store is an in-memory, thread-safe store for any number of cases.
type Store struct {
	mu    sync.RWMutex
	cases map[string]*caseData
	audit []*domain.AuditLog
	now   func() time.Time
}

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{
		cases: make(map[string]*caseData),
		now:   time.Now,
	}
}

// Seed loads a resolved snapshot, replacing any earlier data of that case.
func (s *Store) Seed(res *ingest.Resolved) {
	s.mu.Lock()
	defer s.mu.Unlock()

	d := &caseData{
		c:              res.Case,
		plan:           res.Plan,
		entries:        make(map[string]domain.LedgerEntry, len(res.Entries)),
		counterparties: append([]domain.Counterparty(nil), res.Counterparties...),
		accounts:       append([]domain.BankAccount(nil), res.BankAccounts...),
	}
	for _, e := range res.Entries {
		d.entries[e.ID] = cloneEntry(e)
	}
	s.cases[res.Case.ID] = d
}

// Snapshot returns the current contents of a case in resolved form.
func (s *Store) Snapshot(caseID string) (*ingest.Resolved, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	d, ok := s.cases[caseID]
	if !ok {
		return nil, domain.ErrCaseNotFound
	}
	return &ingest.Resolved{
		Case:           d.c,
		Plan:           d.plan,
		Entries:        d.sortedEntries(),
		Counterparties: append([]domain.Counterparty(nil), d.counterparties...),
		BankAccounts:   append([]domain.BankAccount(nil), d.accounts...),
	}, nil
}

func (s *Store) caseByID(id string) (*caseData, error) {
	d, ok := s.cases[id]
	if !ok {
		return nil, domain.ErrCaseNotFound
	}
	return d, nil
}

// sortedEntries mirrors the ORDER BY transaction_date, id of the SQL store.
func (d *caseData) sortedEntries() []domain.LedgerEntry {
	out := make([]domain.LedgerEntry, 0, len(d.entries))
	for _, e := range d.entries {
		out = append(out, cloneEntry(e))
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].TransactionDate.Equal(out[j].TransactionDate) {
			return out[i].TransactionDate.Before(out[j].TransactionDate)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func cloneEntry(e domain.LedgerEntry) domain.LedgerEntry {
	if e.SteeringTags != nil {
		e.SteeringTags = append([]string(nil), e.SteeringTags...)
	}
	return e
}

// Tx records undo steps so a rollback restores the store.
type Tx struct {
	store *Store
	undo  []func()
	done  bool
}

// Commit keeps the changes made through tx.
func (t *Tx) Commit(ctx context.Context) error {
	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	t.done = true
	t.undo = nil
	return nil
}

// Rollback reverts the changes made through tx. It is a no-op after Commit.
func (t *Tx) Rollback(ctx context.Context) error {
	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	if t.done {
		return nil
	}
	for i := len(t.undo) - 1; i >= 0; i-- {
		t.undo[i]()
	}
	t.done = true
	t.undo = nil
	return nil
}

// TxManager hands out store transactions.
type TxManager struct {
	store *Store
}

// NewTxManager creates a TxManager.
func NewTxManager(store *Store) *TxManager {
	return &TxManager{store: store}
}

// Begin starts a transaction.
func (m *TxManager) Begin(ctx context.Context) (usecase.Transaction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &Tx{store: m.store}, nil
}

// memTx must be called with the store lock held.
func (s *Store) memTx(tx usecase.Transaction) (*Tx, error) {
	t, ok := tx.(*Tx)
	if !ok || t.store != s {
		return nil, errForeignTx
	}
	if t.done {
		return nil, errors.New("memory: transaction already finished")
	}
	return t, nil
}

// Retrier runs an operation once. The store has no transient conflicts.
type Retrier struct{}

// Retry runs op.
func (Retrier) Retry(ctx context.Context, op func() error) error {
	return op()
}

var (
	_ usecase.TransactionManager = (*TxManager)(nil)
	_ usecase.Retrier            = Retrier{}
)
