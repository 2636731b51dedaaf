package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/iho/estateledger/internal/aggregation"
	"github.com/iho/estateledger/internal/domain"
	"github.com/iho/estateledger/internal/ingest"
)

// ErrRebuildInProgress is returned when a rebuild is requested while one is running.
var ErrRebuildInProgress = errors.New("aggregation rebuild already in progress")

// AggregationSettings tune the aggregation use case.
type AggregationSettings struct {
	Options  aggregation.Options
	CacheTTL time.Duration
}

// AggregationUseCase serves period aggregates and keeps the per-case state current.
type AggregationUseCase struct {
	loader    *SnapshotLoader
	stateRepo AggregationStateRepository
	txManager TransactionManager
	auditRepo AuditRepository
	cache     Cache
	publisher EventPublisher
	metrics   Metrics
	engine    *aggregation.Engine
	settings  AggregationSettings
	logger    zerolog.Logger
	now       func() time.Time
}

// NewAggregationUseCase creates a new AggregationUseCase. cache and publisher may be nil.
func NewAggregationUseCase(
	loader *SnapshotLoader,
	stateRepo AggregationStateRepository,
	txManager TransactionManager,
	auditRepo AuditRepository,
	cache Cache,
	publisher EventPublisher,
	metrics Metrics,
	settings AggregationSettings,
	logger zerolog.Logger,
) *AggregationUseCase {
	if metrics == nil {
		metrics = NopMetrics{}
	}
	if settings.CacheTTL <= 0 {
		settings.CacheTTL = DefaultAggregationCacheTTL
	}
	return &AggregationUseCase{
		loader:    loader,
		stateRepo: stateRepo,
		txManager: txManager,
		auditRepo: auditRepo,
		cache:     cache,
		publisher: publisher,
		metrics:   metrics,
		engine:    aggregation.NewEngine(),
		settings:  settings,
		logger:    logger,
		now:       time.Now,
	}
}

// AggregateInput selects the view to aggregate.
type AggregateInput struct {
	CaseID     string
	ScopeID    string
	ValueKinds []domain.ValueKind
}

// AggregationView is an aggregate together with the freshness of the case.
type AggregationView struct {
	Result         *aggregation.Result
	Status         domain.AggregationStatus
	PendingChanges int
	Cached         bool
}

// Aggregate returns the aggregate for input. Results are cached only while the
// case is CURRENT, keyed by the content hash of its last build.
func (uc *AggregationUseCase) Aggregate(ctx context.Context, input AggregateInput) (*AggregationView, error) {
	state, err := uc.stateRepo.Get(ctx, input.CaseID)
	if err != nil {
		return nil, err
	}
	view := &AggregationView{Status: state.Status, PendingChanges: state.PendingChanges}

	key := ""
	if uc.cache != nil && state.Status == domain.AggregationCurrent && state.LastHash != "" {
		key = cacheKey(input, state.LastHash)
		if res, ok := uc.cached(ctx, key); ok {
			view.Result = res
			view.Cached = true
			return view, nil
		}
	}

	snap, err := uc.loader.Load(ctx, input.CaseID)
	if err != nil {
		return nil, err
	}
	res, err := uc.compute(snap, input.ScopeID, input.ValueKinds)
	if err != nil {
		return nil, err
	}
	view.Result = res

	if key != "" {
		if data, err := json.Marshal(res); err == nil {
			if err := uc.cache.Set(ctx, key, data, uc.settings.CacheTTL); err != nil {
				uc.logger.Warn().Err(err).Str("case_id", input.CaseID).Msg("aggregation cache write failed")
			}
		}
	}
	return view, nil
}

// Preview aggregates an inline snapshot without touching the store.
func (uc *AggregationUseCase) Preview(snap *ingest.Snapshot, scopeID string, kinds []domain.ValueKind) (*aggregation.Result, error) {
	resolved, err := snap.Resolve()
	if err != nil {
		return nil, err
	}
	return uc.compute(resolved, scopeID, kinds)
}

// Status returns the aggregation state of a case.
func (uc *AggregationUseCase) Status(ctx context.Context, caseID string) (*domain.AggregationState, error) {
	return uc.stateRepo.Get(ctx, caseID)
}

// RebuildInput identifies who requested a rebuild.
type RebuildInput struct {
	CaseID    string
	UserID    string
	RequestID string
}

// Rebuild recomputes the global aggregate and marks the case CURRENT. Changes
// that arrive while the rebuild runs keep the case STALE.
func (uc *AggregationUseCase) Rebuild(ctx context.Context, input RebuildInput) (*aggregation.Result, *domain.AggregationState, error) {
	now := uc.now().UTC()
	started, err := uc.stateRepo.MarkRebuilding(ctx, input.CaseID, now)
	if err != nil {
		return nil, nil, err
	}
	if started.RebuildActive(now) {
		return nil, nil, ErrRebuildInProgress
	}

	res, state, err := uc.rebuild(ctx, input, started)
	if err != nil {
		if rerr := uc.stateRepo.ResetRebuilding(ctx, input.CaseID, uc.now().UTC()); rerr != nil {
			uc.logger.Error().Err(rerr).Str("case_id", input.CaseID).Msg("failed to reset rebuilding state")
		}
		return nil, nil, err
	}
	uc.publishRebuilt(ctx, state)
	return res, state, nil
}

func (uc *AggregationUseCase) rebuild(ctx context.Context, input RebuildInput, started *domain.AggregationState) (*aggregation.Result, *domain.AggregationState, error) {
	snap, err := uc.loader.Load(ctx, input.CaseID)
	if err != nil {
		return nil, nil, err
	}
	res, err := uc.compute(snap, aggregation.GlobalScopeID, nil)
	if err != nil {
		return nil, nil, err
	}

	tx, err := uc.txManager.Begin(ctx)
	if err != nil {
		return nil, nil, err
	}
	defer tx.Rollback(ctx)

	now := uc.now().UTC()
	state, err := uc.stateRepo.MarkCurrent(ctx, tx, input.CaseID, res.ContentHash, started.PendingChanges, now)
	if err != nil {
		return nil, nil, err
	}

	err = uc.auditRepo.CreateTx(ctx, tx, &domain.AuditLog{
		CaseID:       input.CaseID,
		UserID:       input.UserID,
		Action:       domain.AuditActionAggregationBuild,
		ResourceType: "aggregation",
		ResourceID:   input.CaseID,
		RequestID:    input.RequestID,
		BeforeState:  domain.MarshalState(started),
		AfterState:   domain.JSON{"status": state.Status, "hash": res.ContentHash, "pendingChanges": state.PendingChanges},
		Status:       domain.AuditStatusSuccess,
		CreatedAt:    now,
	})
	if err != nil {
		return nil, nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, nil, err
	}
	return res, state, nil
}

func (uc *AggregationUseCase) publishRebuilt(ctx context.Context, state *domain.AggregationState) {
	if uc.publisher == nil {
		return
	}
	event := domain.AggregationEvent{
		Type:           domain.EventTypeAggregationRebuilt,
		CaseID:         state.CaseID,
		PendingChanges: state.PendingChanges,
		Hash:           state.LastHash,
		OccurredAt:     uc.now().UTC(),
	}
	if err := uc.publisher.Publish(ctx, event); err != nil {
		uc.logger.Warn().Err(err).Str("case_id", state.CaseID).Msg("failed to publish rebuilt event")
	}
}

// EstateSummaryView is the Altmasse/Neumasse overview of a case.
type EstateSummaryView struct {
	CaseID      string
	Scope       aggregation.Scope
	Cutoff      time.Time
	Summary     aggregation.EstateSummary
	Warnings    []domain.Warning
	ContentHash string
	Status      domain.AggregationStatus
}

// EstateSummary returns the estate split of all in-horizon entries.
func (uc *AggregationUseCase) EstateSummary(ctx context.Context, caseID, scopeID string) (*EstateSummaryView, error) {
	view, err := uc.Aggregate(ctx, AggregateInput{CaseID: caseID, ScopeID: scopeID})
	if err != nil {
		return nil, err
	}
	snapCase, err := uc.loader.caseRepo.GetByID(ctx, caseID)
	if err != nil {
		return nil, err
	}
	cutoff, err := snapCase.Cutoff()
	if err != nil {
		return nil, err
	}
	return &EstateSummaryView{
		CaseID:      caseID,
		Scope:       view.Result.Scope,
		Cutoff:      cutoff,
		Summary:     view.Result.Estate,
		Warnings:    view.Result.Warnings,
		ContentHash: view.Result.ContentHash,
		Status:      view.Status,
	}, nil
}

func (uc *AggregationUseCase) compute(snap *ingest.Resolved, scopeID string, kinds []domain.ValueKind) (*aggregation.Result, error) {
	scope, err := aggregation.ResolveScope(snap.Case, scopeID)
	if err != nil {
		return nil, err
	}
	opts := uc.settings.Options
	if len(kinds) > 0 {
		opts.ValueKinds = kinds
	}

	start := time.Now()
	res, err := uc.engine.Aggregate(snap.Input(scope, opts))
	if err != nil {
		return nil, err
	}
	uc.metrics.ObserveAggregation(scope.ID, time.Since(start), res)
	return res, nil
}

func (uc *AggregationUseCase) cached(ctx context.Context, key string) (*aggregation.Result, bool) {
	data, err := uc.cache.Get(ctx, key)
	if err != nil || data == nil {
		uc.metrics.ObserveCache(false)
		return nil, false
	}
	var res aggregation.Result
	if err := json.Unmarshal(data, &res); err != nil {
		uc.logger.Warn().Err(err).Str("key", key).Msg("dropping unreadable cached aggregate")
		_ = uc.cache.Delete(ctx, key)
		uc.metrics.ObserveCache(false)
		return nil, false
	}
	uc.metrics.ObserveCache(true)
	return &res, true
}

func cacheKey(input AggregateInput, hash string) string {
	scope := strings.TrimSpace(input.ScopeID)
	if scope == "" || strings.EqualFold(scope, aggregation.GlobalScopeID) {
		scope = aggregation.GlobalScopeID
	}
	kinds := make([]string, 0, len(input.ValueKinds))
	for _, k := range input.ValueKinds {
		kinds = append(kinds, string(k))
	}
	slices.Sort(kinds)
	kinds = slices.Compact(kinds)
	return fmt.Sprintf("aggregation:%s:%s:%s:%s", input.CaseID, hash, scope, strings.Join(kinds, ","))
}
