package memory

import (
	"context"

	"github.com/google/uuid"

	"github.com/iho/estateledger/internal/classification"
	"github.com/iho/estateledger/internal/domain"
	"github.com/iho/estateledger/internal/usecase"
)

// CaseRepository reads cases from a Store.
type CaseRepository struct{ store *Store }

// NewCaseRepository creates a CaseRepository.
func NewCaseRepository(store *Store) *CaseRepository { return &CaseRepository{store: store} }

func (r *CaseRepository) GetByID(ctx context.Context, id string) (*domain.Case, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	d, err := r.store.caseByID(id)
	if err != nil {
		return nil, err
	}
	c := *d.c
	return &c, nil
}

// PlanRepository reads plans from a Store.
type PlanRepository struct{ store *Store }

// NewPlanRepository creates a PlanRepository.
func NewPlanRepository(store *Store) *PlanRepository { return &PlanRepository{store: store} }

func (r *PlanRepository) GetActive(ctx context.Context, caseID string) (*domain.Plan, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	d, err := r.store.caseByID(caseID)
	if err != nil {
		return nil, err
	}
	if d.plan == nil || !d.plan.IsActive {
		return nil, domain.ErrNoActivePlan
	}
	p := *d.plan
	return &p, nil
}

// CounterpartyRepository reads counterparties from a Store.
type CounterpartyRepository struct{ store *Store }

// NewCounterpartyRepository creates a CounterpartyRepository.
func NewCounterpartyRepository(store *Store) *CounterpartyRepository {
	return &CounterpartyRepository{store: store}
}

func (r *CounterpartyRepository) ListByCase(ctx context.Context, caseID string) ([]domain.Counterparty, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	d, err := r.store.caseByID(caseID)
	if err != nil {
		return nil, err
	}
	return append([]domain.Counterparty(nil), d.counterparties...), nil
}

// BankAccountRepository reads bank accounts from a Store.
type BankAccountRepository struct{ store *Store }

// NewBankAccountRepository creates a BankAccountRepository.
func NewBankAccountRepository(store *Store) *BankAccountRepository {
	return &BankAccountRepository{store: store}
}

func (r *BankAccountRepository) ListByCase(ctx context.Context, caseID string) ([]domain.BankAccount, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	d, err := r.store.caseByID(caseID)
	if err != nil {
		return nil, err
	}
	return append([]domain.BankAccount(nil), d.accounts...), nil
}

// EntryRepository stores ledger entries in a Store.
type EntryRepository struct{ store *Store }

// NewEntryRepository creates an EntryRepository.
func NewEntryRepository(store *Store) *EntryRepository { return &EntryRepository{store: store} }

func (r *EntryRepository) ListByCase(ctx context.Context, caseID string) ([]domain.LedgerEntry, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	d, err := r.store.caseByID(caseID)
	if err != nil {
		return nil, err
	}
	return d.sortedEntries(), nil
}

func (r *EntryRepository) GetByID(ctx context.Context, caseID, id string) (*domain.LedgerEntry, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	return r.get(caseID, id)
}

// GetByIDForUpdate reads an entry inside tx. The store lock serialises
// writers, so there is no row lock to take.
func (r *EntryRepository) GetByIDForUpdate(ctx context.Context, tx usecase.Transaction, caseID, id string) (*domain.LedgerEntry, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	if _, err := r.store.memTx(tx); err != nil {
		return nil, err
	}
	return r.get(caseID, id)
}

func (r *EntryRepository) get(caseID, id string) (*domain.LedgerEntry, error) {
	d, ok := r.store.cases[caseID]
	if !ok {
		return nil, domain.ErrEntryNotFound
	}
	e, ok := d.entries[id]
	if !ok {
		return nil, domain.ErrEntryNotFound
	}
	e = cloneEntry(e)
	return &e, nil
}

func (r *EntryRepository) ListChildren(ctx context.Context, tx usecase.Transaction, parentID string) ([]domain.LedgerEntry, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	if _, err := r.store.memTx(tx); err != nil {
		return nil, err
	}

	var children []domain.LedgerEntry
	for _, d := range r.store.cases {
		for _, e := range d.sortedEntries() {
			if e.ParentEntryID == parentID {
				children = append(children, e)
			}
		}
	}
	return children, nil
}

func (r *EntryRepository) CreateTx(ctx context.Context, tx usecase.Transaction, e *domain.LedgerEntry) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	t, err := r.store.memTx(tx)
	if err != nil {
		return err
	}
	d, err := r.store.caseByID(e.CaseID)
	if err != nil {
		return err
	}
	if e.ID == "" {
		e.ID = uuid.New().String()
	}

	d.entries[e.ID] = cloneEntry(*e)
	id := e.ID
	t.undo = append(t.undo, func() { delete(d.entries, id) })
	return nil
}

// UpdateReview stores the review outcome of an entry.
func (r *EntryRepository) UpdateReview(ctx context.Context, tx usecase.Transaction, e *domain.LedgerEntry) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	t, err := r.store.memTx(tx)
	if err != nil {
		return err
	}
	d, ok := r.store.cases[e.CaseID]
	if !ok {
		return domain.ErrEntryNotFound
	}
	prev, ok := d.entries[e.ID]
	if !ok {
		return domain.ErrEntryNotFound
	}

	next := prev
	next.ReviewStatus = e.ReviewStatus
	next.CounterpartyID = e.CounterpartyID
	next.CategoryTag = e.CategoryTag
	next.LegalBucket = e.LegalBucket
	next.ServicePeriod = e.ServicePeriod
	next.EstateAllocation = e.EstateAllocation
	next.AllocationSource = e.AllocationSource
	next.EstateRatio = e.EstateRatio
	next.ReviewedBy = e.ReviewedBy
	next.ReviewedAt = e.ReviewedAt
	next.ReviewNote = e.ReviewNote
	next.UpdatedAt = e.UpdatedAt

	d.entries[e.ID] = next
	t.undo = append(t.undo, func() { d.entries[prev.ID] = prev })
	return nil
}

func (r *EntryRepository) DeleteChildren(ctx context.Context, tx usecase.Transaction, parentID string) (int, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	t, err := r.store.memTx(tx)
	if err != nil {
		return 0, err
	}

	removed := 0
	for _, d := range r.store.cases {
		for id, e := range d.entries {
			if e.ParentEntryID != parentID {
				continue
			}
			delete(d.entries, id)
			removed++
			d, e := d, e
			t.undo = append(t.undo, func() { d.entries[e.ID] = e })
		}
	}
	return removed, nil
}

// ApplySuggestions only touches entries that are still unreviewed.
func (r *EntryRepository) ApplySuggestions(ctx context.Context, tx usecase.Transaction, caseID string, suggestions []classification.Suggestion) (int, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	t, err := r.store.memTx(tx)
	if err != nil {
		return 0, err
	}
	d, err := r.store.caseByID(caseID)
	if err != nil {
		return 0, err
	}

	now := r.store.now().UTC()
	applied := 0
	for _, s := range suggestions {
		prev, ok := d.entries[s.EntryID]
		if !ok || prev.ReviewStatus != domain.ReviewStatusUnreviewed {
			continue
		}
		next := prev
		next.SuggestedCounterpartyID = s.CounterpartyID
		next.SuggestedCategoryTag = s.CategoryTag
		next.SuggestedReason = s.Reason
		next.UpdatedAt = now
		d.entries[s.EntryID] = next
		t.undo = append(t.undo, func() { d.entries[prev.ID] = prev })
		applied++
	}
	return applied, nil
}

// AuditRepository stores audit logs in a Store.
type AuditRepository struct{ store *Store }

// NewAuditRepository creates an AuditRepository.
func NewAuditRepository(store *Store) *AuditRepository { return &AuditRepository{store: store} }

func (r *AuditRepository) CreateTx(ctx context.Context, tx usecase.Transaction, log *domain.AuditLog) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	t, err := r.store.memTx(tx)
	if err != nil {
		return err
	}
	if log.ID == "" {
		log.ID = uuid.New().String()
	}

	stored := *log
	r.store.audit = append(r.store.audit, &stored)
	n := len(r.store.audit) - 1
	t.undo = append(t.undo, func() { r.store.audit = r.store.audit[:n] })
	return nil
}

// List returns matching audit logs, newest first.
func (r *AuditRepository) List(ctx context.Context, filter domain.AuditFilter) ([]*domain.AuditLog, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	var out []*domain.AuditLog
	for i := len(r.store.audit) - 1; i >= 0; i-- {
		l := r.store.audit[i]
		switch {
		case filter.CaseID != "" && l.CaseID != filter.CaseID,
			filter.Action != "" && l.Action != filter.Action,
			filter.ResourceType != "" && l.ResourceType != filter.ResourceType,
			filter.ResourceID != "" && l.ResourceID != filter.ResourceID:
			continue
		}
		c := *l
		out = append(out, &c)
	}

	if filter.Offset > 0 {
		if filter.Offset >= len(out) {
			return nil, nil
		}
		out = out[filter.Offset:]
	}
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

var (
	_ usecase.CaseRepository         = (*CaseRepository)(nil)
	_ usecase.PlanRepository         = (*PlanRepository)(nil)
	_ usecase.EntryRepository        = (*EntryRepository)(nil)
	_ usecase.CounterpartyRepository = (*CounterpartyRepository)(nil)
	_ usecase.BankAccountRepository  = (*BankAccountRepository)(nil)
	_ usecase.AuditRepository        = (*AuditRepository)(nil)
)
