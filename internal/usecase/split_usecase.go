package usecase

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/iho/estateledger/internal/domain"
)

// SplitUseCase divides one bank line into several ledger entries and undoes it.
type SplitUseCase struct {
	txManager TransactionManager
	entryRepo EntryRepository
	auditRepo AuditRepository
	retrier   Retrier
	idGen     IDGenerator
	stale     staleMarker
	now       func() time.Time
}

// NewSplitUseCase creates a new SplitUseCase.
func NewSplitUseCase(
	txManager TransactionManager,
	entryRepo EntryRepository,
	stateRepo AggregationStateRepository,
	auditRepo AuditRepository,
	retrier Retrier,
	idGen IDGenerator,
	publisher EventPublisher,
	logger zerolog.Logger,
) *SplitUseCase {
	return &SplitUseCase{
		txManager: txManager,
		entryRepo: entryRepo,
		auditRepo: auditRepo,
		retrier:   retrier,
		idGen:     idGen,
		stale:     staleMarker{stateRepo: stateRepo, publisher: publisher, logger: logger},
		now:       time.Now,
	}
}

// SplitInput describes a split. DryRun validates and previews without writing.
// A commit must carry the PreviewToken returned by its dry run.
type SplitInput struct {
	CaseID       string
	EntryID      string
	UserID       string
	RequestID    string
	Request      domain.SplitRequest
	DryRun       bool
	PreviewToken string
}

// SplitOutput is the previewed or committed split.
type SplitOutput struct {
	Parent       domain.LedgerEntry
	Children     []domain.LedgerEntry
	PreviewToken string
	Committed    bool
}

// Split validates the request against the parent and, unless DryRun is set,
// stores the children. Mismatched sums are rejected before anything is written.
func (uc *SplitUseCase) Split(ctx context.Context, input SplitInput) (*SplitOutput, error) {
	if input.DryRun {
		return uc.preview(ctx, input)
	}
	if input.PreviewToken == "" {
		return nil, domain.ErrSplitPreviewRequired
	}

	var (
		out   *SplitOutput
		state *domain.AggregationState
	)
	err := uc.retrier.Retry(ctx, func() error {
		o, st, err := uc.commit(ctx, input)
		if err != nil {
			return err
		}
		out, state = o, st
		return nil
	})
	if err != nil {
		return nil, err
	}

	uc.stale.publish(ctx, state, string(domain.AuditActionEntrySplit), uc.now().UTC())
	return out, nil
}

func (uc *SplitUseCase) preview(ctx context.Context, input SplitInput) (*SplitOutput, error) {
	tx, err := uc.txManager.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	parent, children, err := uc.validate(ctx, tx, input)
	if err != nil {
		return nil, err
	}
	return &SplitOutput{
		Parent:       *parent,
		Children:     children,
		PreviewToken: domain.SplitToken(parent, input.Request),
	}, nil
}

func (uc *SplitUseCase) validate(ctx context.Context, tx Transaction, input SplitInput) (*domain.LedgerEntry, []domain.LedgerEntry, error) {
	parent, err := uc.entryRepo.GetByIDForUpdate(ctx, tx, input.CaseID, input.EntryID)
	if err != nil {
		return nil, nil, err
	}
	existing, err := uc.entryRepo.ListChildren(ctx, tx, parent.ID)
	if err != nil {
		return nil, nil, err
	}
	if err := domain.ValidateSplit(parent, len(existing) > 0, input.Request); err != nil {
		return nil, nil, err
	}
	return parent, domain.BuildSplitChildren(parent, input.Request, nil, uc.now().UTC()), nil
}

func (uc *SplitUseCase) commit(ctx context.Context, input SplitInput) (*SplitOutput, *domain.AggregationState, error) {
	tx, err := uc.txManager.Begin(ctx)
	if err != nil {
		return nil, nil, err
	}
	defer tx.Rollback(ctx)

	parent, _, err := uc.validate(ctx, tx, input)
	if err != nil {
		return nil, nil, err
	}
	if domain.SplitToken(parent, input.Request) != input.PreviewToken {
		return nil, nil, domain.ErrSplitPreviewRequired
	}

	ids := make([]string, len(input.Request.Children))
	for i := range ids {
		ids[i] = uc.idGen.Generate()
	}
	now := uc.now().UTC()
	children := domain.BuildSplitChildren(parent, input.Request, ids, now)
	for i := range children {
		if err := uc.entryRepo.CreateTx(ctx, tx, &children[i]); err != nil {
			return nil, nil, err
		}
	}

	state, err := uc.stale.mark(ctx, tx, input.CaseID, now)
	if err != nil {
		return nil, nil, err
	}

	err = uc.auditRepo.CreateTx(ctx, tx, &domain.AuditLog{
		CaseID:       input.CaseID,
		UserID:       input.UserID,
		Action:       domain.AuditActionEntrySplit,
		ResourceType: "entry",
		ResourceID:   parent.ID,
		RequestID:    input.RequestID,
		BeforeState:  domain.MarshalState(parent),
		AfterState:   domain.JSON{"reason": input.Request.Reason, "childIds": ids},
		Status:       domain.AuditStatusSuccess,
		CreatedAt:    now,
	})
	if err != nil {
		return nil, nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, nil, err
	}
	return &SplitOutput{Parent: *parent, Children: children, PreviewToken: input.PreviewToken, Committed: true}, state, nil
}

// UnsplitInput identifies the split parent to restore.
type UnsplitInput struct {
	CaseID    string
	EntryID   string
	UserID    string
	RequestID string
	Reason    string
}

// Unsplit removes all children of a split entry so the parent counts again.
func (uc *SplitUseCase) Unsplit(ctx context.Context, input UnsplitInput) (int, error) {
	var (
		removed int
		state   *domain.AggregationState
	)
	err := uc.retrier.Retry(ctx, func() error {
		n, st, err := uc.unsplit(ctx, input)
		if err != nil {
			return err
		}
		removed, state = n, st
		return nil
	})
	if err != nil {
		return 0, err
	}

	uc.stale.publish(ctx, state, string(domain.AuditActionEntryUnsplit), uc.now().UTC())
	return removed, nil
}

func (uc *SplitUseCase) unsplit(ctx context.Context, input UnsplitInput) (int, *domain.AggregationState, error) {
	tx, err := uc.txManager.Begin(ctx)
	if err != nil {
		return 0, nil, err
	}
	defer tx.Rollback(ctx)

	parent, err := uc.entryRepo.GetByIDForUpdate(ctx, tx, input.CaseID, input.EntryID)
	if err != nil {
		return 0, nil, err
	}
	children, err := uc.entryRepo.ListChildren(ctx, tx, parent.ID)
	if err != nil {
		return 0, nil, err
	}
	if len(children) == 0 {
		return 0, nil, domain.ErrNotSplit
	}

	removed, err := uc.entryRepo.DeleteChildren(ctx, tx, parent.ID)
	if err != nil {
		return 0, nil, err
	}

	now := uc.now().UTC()
	state, err := uc.stale.mark(ctx, tx, input.CaseID, now)
	if err != nil {
		return 0, nil, err
	}

	childIDs := make([]string, len(children))
	for i := range children {
		childIDs[i] = children[i].ID
	}
	err = uc.auditRepo.CreateTx(ctx, tx, &domain.AuditLog{
		CaseID:       input.CaseID,
		UserID:       input.UserID,
		Action:       domain.AuditActionEntryUnsplit,
		ResourceType: "entry",
		ResourceID:   parent.ID,
		RequestID:    input.RequestID,
		BeforeState:  domain.JSON{"childIds": childIDs},
		AfterState:   domain.JSON{"reason": input.Reason, "removed": removed},
		Status:       domain.AuditStatusSuccess,
		CreatedAt:    now,
	})
	if err != nil {
		return 0, nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, nil, err
	}
	return removed, state, nil
}
