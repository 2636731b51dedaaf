package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/iho/estateledger/internal/ingest"
)

// SnapshotLoader reads everything an aggregation needs for one case.
type SnapshotLoader struct {
	caseRepo         CaseRepository
	planRepo         PlanRepository
	entryRepo        EntryRepository
	counterpartyRepo CounterpartyRepository
	accountRepo      BankAccountRepository
	timeout          time.Duration
}

// NewSnapshotLoader creates a new SnapshotLoader. A zero timeout leaves the
// caller's deadline in place.
func NewSnapshotLoader(
	caseRepo CaseRepository,
	planRepo PlanRepository,
	entryRepo EntryRepository,
	counterpartyRepo CounterpartyRepository,
	accountRepo BankAccountRepository,
	timeout time.Duration,
) *SnapshotLoader {
	return &SnapshotLoader{
		caseRepo:         caseRepo,
		planRepo:         planRepo,
		entryRepo:        entryRepo,
		counterpartyRepo: counterpartyRepo,
		accountRepo:      accountRepo,
		timeout:          timeout,
	}
}

// Load returns a consistent snapshot of the case. Any failed read fails the
// whole load so callers never aggregate partial data.
func (l *SnapshotLoader) Load(ctx context.Context, caseID string) (*ingest.Resolved, error) {
	if l.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.timeout)
		defer cancel()
	}

	c, err := l.caseRepo.GetByID(ctx, caseID)
	if err != nil {
		return nil, err
	}

	plan, err := l.planRepo.GetActive(ctx, caseID)
	if err != nil {
		return nil, err
	}

	entries, err := l.entryRepo.ListByCase(ctx, caseID)
	if err != nil {
		return nil, fmt.Errorf("load entries: %w", err)
	}

	counterparties, err := l.counterpartyRepo.ListByCase(ctx, caseID)
	if err != nil {
		return nil, fmt.Errorf("load counterparties: %w", err)
	}

	accounts, err := l.accountRepo.ListByCase(ctx, caseID)
	if err != nil {
		return nil, fmt.Errorf("load bank accounts: %w", err)
	}

	return &ingest.Resolved{
		Case:           c,
		Plan:           plan,
		Entries:        entries,
		Counterparties: counterparties,
		BankAccounts:   accounts,
	}, nil
}
