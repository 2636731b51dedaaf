package memory

import (
	"context"
	"time"

	"github.com/iho/estateledger/internal/domain"
	"github.com/iho/estateledger/internal/usecase"
)

// AggregationStateRepository tracks aggregate freshness in a Store. It follows
// the same lease rules as the PostgreSQL table.
type AggregationStateRepository struct{ store *Store }

// NewAggregationStateRepository creates an AggregationStateRepository.
func NewAggregationStateRepository(store *Store) *AggregationStateRepository {
	return &AggregationStateRepository{store: store}
}

func (r *AggregationStateRepository) Get(ctx context.Context, caseID string) (*domain.AggregationState, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	d, err := r.store.caseByID(caseID)
	if err != nil {
		return nil, err
	}
	if d.state == nil {
		return &domain.AggregationState{CaseID: caseID, Status: domain.AggregationStale}, nil
	}
	s := *d.state
	return &s, nil
}

// MarkStale counts one pending change. A running rebuild keeps its lease.
func (r *AggregationStateRepository) MarkStale(ctx context.Context, tx usecase.Transaction, caseID string, at time.Time) (*domain.AggregationState, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	t, err := r.store.memTx(tx)
	if err != nil {
		return nil, err
	}
	d, err := r.store.caseByID(caseID)
	if err != nil {
		return nil, err
	}

	prev := d.state
	next := domain.AggregationState{CaseID: caseID, Status: domain.AggregationStale, PendingChanges: 1, UpdatedAt: at}
	if prev != nil {
		next = *prev
		next.PendingChanges++
		if next.Status != domain.AggregationRebuilding {
			next.Status = domain.AggregationStale
			next.UpdatedAt = at
		}
	}

	d.state = &next
	t.undo = append(t.undo, func() { d.state = prev })
	s := next
	return &s, nil
}

// MarkRebuilding takes the rebuild lease and returns the state it replaced.
func (r *AggregationStateRepository) MarkRebuilding(ctx context.Context, caseID string, at time.Time) (*domain.AggregationState, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	d, err := r.store.caseByID(caseID)
	if err != nil {
		return nil, err
	}

	if d.state == nil {
		d.state = &domain.AggregationState{CaseID: caseID, Status: domain.AggregationRebuilding, UpdatedAt: at}
		return &domain.AggregationState{CaseID: caseID, Status: domain.AggregationStale}, nil
	}
	if d.state.RebuildActive(at) {
		s := *d.state
		return &s, nil
	}

	prev := *d.state
	if prev.Status == domain.AggregationRebuilding {
		prev.Status = domain.AggregationStale
	}
	d.state.Status = domain.AggregationRebuilding
	d.state.UpdatedAt = at
	return &prev, nil
}

// MarkCurrent subtracts the covered changes. Changes that arrived during the
// rebuild keep the case STALE.
func (r *AggregationStateRepository) MarkCurrent(ctx context.Context, tx usecase.Transaction, caseID, hash string, covered int, at time.Time) (*domain.AggregationState, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	t, err := r.store.memTx(tx)
	if err != nil {
		return nil, err
	}
	d, err := r.store.caseByID(caseID)
	if err != nil {
		return nil, err
	}
	if d.state == nil {
		return nil, domain.ErrCaseNotFound
	}

	prev := d.state
	next := *prev
	next.PendingChanges -= covered
	next.Status = domain.AggregationCurrent
	if next.PendingChanges > 0 {
		next.Status = domain.AggregationStale
	} else {
		next.PendingChanges = 0
	}
	next.LastHash = hash
	builtAt := at
	next.LastBuiltAt = &builtAt
	next.UpdatedAt = at

	d.state = &next
	t.undo = append(t.undo, func() { d.state = prev })
	s := next
	return &s, nil
}

// ResetRebuilding releases the lease of a failed rebuild.
func (r *AggregationStateRepository) ResetRebuilding(ctx context.Context, caseID string, at time.Time) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	d, err := r.store.caseByID(caseID)
	if err != nil {
		return err
	}
	if d.state != nil && d.state.Status == domain.AggregationRebuilding {
		d.state.Status = domain.AggregationStale
		d.state.UpdatedAt = at
	}
	return nil
}

var _ usecase.AggregationStateRepository = (*AggregationStateRepository)(nil)
