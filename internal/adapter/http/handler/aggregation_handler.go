package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/iho/estateledger/internal/adapter/http/dto"
	"github.com/iho/estateledger/internal/aggregation"
	"github.com/iho/estateledger/internal/domain"
	"github.com/iho/estateledger/internal/ingest"
	"github.com/iho/estateledger/internal/usecase"
)

// AggregationService defines the behavior needed by AggregationHandler.
type AggregationService interface {
	Aggregate(ctx context.Context, input usecase.AggregateInput) (*usecase.AggregationView, error)
	Status(ctx context.Context, caseID string) (*domain.AggregationState, error)
	Rebuild(ctx context.Context, input usecase.RebuildInput) (*aggregation.Result, *domain.AggregationState, error)
	EstateSummary(ctx context.Context, caseID, scopeID string) (*usecase.EstateSummaryView, error)
	Preview(snap *ingest.Snapshot, scopeID string, kinds []domain.ValueKind) (*aggregation.Result, error)
}

// AggregationHandler handles aggregation requests.
type AggregationHandler struct {
	aggregationUC AggregationService
}

// NewAggregationHandler creates a new AggregationHandler.
func NewAggregationHandler(aggregationUC AggregationService) *AggregationHandler {
	return &AggregationHandler{aggregationUC: aggregationUC}
}

// Get returns the period aggregate of a case.
func (h *AggregationHandler) Get(w http.ResponseWriter, r *http.Request) {
	caseID := chi.URLParam(r, "caseID")
	kinds, err := parseValueKinds(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid query", err.Error())
		return
	}

	view, err := h.aggregationUC.Aggregate(r.Context(), usecase.AggregateInput{
		CaseID:     caseID,
		ScopeID:    r.URL.Query().Get("scope"),
		ValueKinds: kinds,
	})
	if err != nil {
		writeDomainError(w, "failed to aggregate case", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.AggregationFromView(view))
}

// Status returns whether the aggregate of a case is current.
func (h *AggregationHandler) Status(w http.ResponseWriter, r *http.Request) {
	state, err := h.aggregationUC.Status(r.Context(), chi.URLParam(r, "caseID"))
	if err != nil {
		writeDomainError(w, "failed to get aggregation status", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.StatusFromDomain(state))
}

// Rebuild recomputes the aggregate of a case.
func (h *AggregationHandler) Rebuild(w http.ResponseWriter, r *http.Request) {
	res, state, err := h.aggregationUC.Rebuild(r.Context(), usecase.RebuildInput{
		CaseID:    chi.URLParam(r, "caseID"),
		UserID:    userID(r),
		RequestID: requestID(r),
	})
	if err != nil {
		writeDomainError(w, "failed to rebuild aggregation", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.RebuildResponse{
		State:       dto.StatusFromDomain(state),
		Aggregation: dto.AggregationFromResult(res),
	})
}

// EstateSummary returns the Altmasse/Neumasse overview of a case.
func (h *AggregationHandler) EstateSummary(w http.ResponseWriter, r *http.Request) {
	view, err := h.aggregationUC.EstateSummary(r.Context(), chi.URLParam(r, "caseID"), r.URL.Query().Get("scope"))
	if err != nil {
		writeDomainError(w, "failed to summarize estate", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.EstateSummaryFromView(view))
}

// Preview aggregates an inline snapshot without touching the store.
func (h *AggregationHandler) Preview(w http.ResponseWriter, r *http.Request) {
	kinds, err := parseValueKinds(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid query", err.Error())
		return
	}
	snap, err := ingest.DecodeSnapshot(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid snapshot", err.Error())
		return
	}

	res, err := h.aggregationUC.Preview(snap, r.URL.Query().Get("scope"), kinds)
	if err != nil {
		writeDomainError(w, "failed to aggregate snapshot", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.AggregationFromResult(res))
}
