package usecase

import (
	"context"
	"slices"

	"github.com/iho/estateledger/internal/domain"
)

// EntryUseCase handles read access to ledger entries and their audit trail.
type EntryUseCase struct {
	entryRepo EntryRepository
	auditRepo AuditRepository
}

// NewEntryUseCase creates a new EntryUseCase.
func NewEntryUseCase(entryRepo EntryRepository, auditRepo AuditRepository) *EntryUseCase {
	return &EntryUseCase{
		entryRepo: entryRepo,
		auditRepo: auditRepo,
	}
}

// ListEntriesInput represents input for listing entries.
type ListEntriesInput struct {
	CaseID       string
	ReviewStatus domain.ReviewStatus
	Limit        int
	Offset       int
}

// ListEntries lists the entries of a case, optionally by review status.
func (uc *EntryUseCase) ListEntries(ctx context.Context, input ListEntriesInput) ([]domain.LedgerEntry, error) {
	if input.Limit <= 0 {
		input.Limit = 20
	}

	if input.Limit > 100 {
		input.Limit = 100
	}

	entries, err := uc.entryRepo.ListByCase(ctx, input.CaseID)
	if err != nil {
		return nil, err
	}

	if input.ReviewStatus != "" {
		entries = slices.DeleteFunc(entries, func(e domain.LedgerEntry) bool {
			return e.ReviewStatus != input.ReviewStatus
		})
	}

	if input.Offset >= len(entries) {
		return []domain.LedgerEntry{}, nil
	}
	end := min(input.Offset+input.Limit, len(entries))
	return entries[input.Offset:end], nil
}

// GetEntry returns one entry of a case.
func (uc *EntryUseCase) GetEntry(ctx context.Context, caseID, entryID string) (*domain.LedgerEntry, error) {
	return uc.entryRepo.GetByID(ctx, caseID, entryID)
}

// ListAudit returns the audit trail of a case, newest first.
func (uc *EntryUseCase) ListAudit(ctx context.Context, filter domain.AuditFilter) ([]*domain.AuditLog, error) {
	if filter.Limit <= 0 || filter.Limit > DefaultAuditLimit {
		filter.Limit = DefaultAuditLimit
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}
	return uc.auditRepo.List(ctx, filter)
}
