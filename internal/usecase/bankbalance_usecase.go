package usecase

import (
	"context"

	"github.com/iho/estateledger/internal/aggregation"
	"github.com/iho/estateledger/internal/bankbalance"
	"github.com/iho/estateledger/internal/domain"
)

// BankBalanceUseCase reports per-account balance trajectories.
type BankBalanceUseCase struct {
	loader *SnapshotLoader
}

// NewBankBalanceUseCase creates a new BankBalanceUseCase.
func NewBankBalanceUseCase(loader *SnapshotLoader) *BankBalanceUseCase {
	return &BankBalanceUseCase{loader: loader}
}

// BankBalanceInput selects the case, scope and entries. IncludeUnreviewed
// also books UNREVIEWED entries, which reviewed reports leave out.
type BankBalanceInput struct {
	CaseID            string
	ScopeID           string
	IncludeProjected  bool
	IncludeUnreviewed bool
}

// Balances computes the balance report of a case.
func (uc *BankBalanceUseCase) Balances(ctx context.Context, input BankBalanceInput) (*bankbalance.Report, error) {
	snap, err := uc.loader.Load(ctx, input.CaseID)
	if err != nil {
		return nil, err
	}
	scope, err := aggregation.ResolveScope(snap.Case, input.ScopeID)
	if err != nil {
		return nil, err
	}
	var statuses []domain.ReviewStatus
	if input.IncludeUnreviewed {
		statuses = []domain.ReviewStatus{domain.ReviewStatusConfirmed, domain.ReviewStatusAdjusted, domain.ReviewStatusUnreviewed}
	}
	return bankbalance.Calculate(bankbalance.Input{
		Plan:             snap.Plan,
		Accounts:         snap.BankAccounts,
		Entries:          snap.Entries,
		Scope:            scope,
		IncludeProjected: input.IncludeProjected,
		ReviewStatuses:   statuses,
	})
}
