package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/iho/estateledger/internal/adapter/http/dto"
	"github.com/iho/estateledger/internal/domain"
	"github.com/iho/estateledger/internal/usecase"
)

// EntryService defines the read behavior needed by EntryHandler.
type EntryService interface {
	ListEntries(ctx context.Context, input usecase.ListEntriesInput) ([]domain.LedgerEntry, error)
	GetEntry(ctx context.Context, caseID, entryID string) (*domain.LedgerEntry, error)
	ListAudit(ctx context.Context, filter domain.AuditFilter) ([]*domain.AuditLog, error)
}

// ReviewService records reviewer decisions.
type ReviewService interface {
	Review(ctx context.Context, input usecase.ReviewInput) (*domain.LedgerEntry, error)
}

// SplitService splits and restores entries.
type SplitService interface {
	Split(ctx context.Context, input usecase.SplitInput) (*usecase.SplitOutput, error)
	Unsplit(ctx context.Context, input usecase.UnsplitInput) (int, error)
}

// EntryHandler handles ledger entry requests.
type EntryHandler struct {
	entryUC  EntryService
	reviewUC ReviewService
	splitUC  SplitService
}

// NewEntryHandler creates a new EntryHandler.
func NewEntryHandler(entryUC EntryService, reviewUC ReviewService, splitUC SplitService) *EntryHandler {
	return &EntryHandler{
		entryUC:  entryUC,
		reviewUC: reviewUC,
		splitUC:  splitUC,
	}
}

// List lists the entries of a case.
func (h *EntryHandler) List(w http.ResponseWriter, r *http.Request) {
	entries, err := h.entryUC.ListEntries(r.Context(), usecase.ListEntriesInput{
		CaseID:       chi.URLParam(r, "caseID"),
		ReviewStatus: domain.ReviewStatus(strings.ToUpper(r.URL.Query().Get("reviewStatus"))),
		Limit:        parseIntQuery(r, "limit", 20),
		Offset:       parseIntQuery(r, "offset", 0),
	})
	if err != nil {
		writeDomainError(w, "failed to list entries", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.ListEntriesResponse{
		Entries: dto.EntriesFromDomain(entries),
		Total:   int64(len(entries)),
	})
}

// Get retrieves one entry.
func (h *EntryHandler) Get(w http.ResponseWriter, r *http.Request) {
	entry, err := h.entryUC.GetEntry(r.Context(), chi.URLParam(r, "caseID"), chi.URLParam(r, "entryID"))
	if err != nil {
		writeDomainError(w, "failed to get entry", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.EntryFromDomain(entry))
}

// Review confirms or adjusts an entry.
func (h *EntryHandler) Review(w http.ResponseWriter, r *http.Request) {
	var req dto.ReviewRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	review, err := req.ToDomain()
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid review", err.Error())
		return
	}
	if review.Reviewer == "" {
		review.Reviewer = userID(r)
	}

	entry, err := h.reviewUC.Review(r.Context(), usecase.ReviewInput{
		CaseID:    chi.URLParam(r, "caseID"),
		EntryID:   chi.URLParam(r, "entryID"),
		RequestID: requestID(r),
		Request:   review,
	})
	if err != nil {
		writeDomainError(w, "failed to review entry", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.EntryFromDomain(entry))
}

// Split previews (dryRun=true) or commits a split.
func (h *EntryHandler) Split(w http.ResponseWriter, r *http.Request) {
	var req dto.SplitRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	split, err := req.ToDomain()
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid split", err.Error())
		return
	}

	out, err := h.splitUC.Split(r.Context(), usecase.SplitInput{
		CaseID:       chi.URLParam(r, "caseID"),
		EntryID:      chi.URLParam(r, "entryID"),
		UserID:       userID(r),
		RequestID:    requestID(r),
		Request:      split,
		DryRun:       parseBoolQuery(r, "dryRun"),
		PreviewToken: req.PreviewToken,
	})
	if err != nil {
		writeDomainError(w, "failed to split entry", err)
		return
	}

	status := http.StatusOK
	if out.Committed {
		status = http.StatusCreated
	}
	writeJSON(w, status, dto.SplitFromOutput(out))
}

// Unsplit removes the children of a split entry.
func (h *EntryHandler) Unsplit(w http.ResponseWriter, r *http.Request) {
	var req dto.UnsplitRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	entryID := chi.URLParam(r, "entryID")
	removed, err := h.splitUC.Unsplit(r.Context(), usecase.UnsplitInput{
		CaseID:    chi.URLParam(r, "caseID"),
		EntryID:   entryID,
		UserID:    userID(r),
		RequestID: requestID(r),
		Reason:    req.Reason,
	})
	if err != nil {
		writeDomainError(w, "failed to unsplit entry", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.UnsplitResponse{EntryID: entryID, RemovedChildren: removed})
}

// ListAudit lists the audit trail of a case.
func (h *EntryHandler) ListAudit(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	logs, err := h.entryUC.ListAudit(r.Context(), domain.AuditFilter{
		CaseID:       chi.URLParam(r, "caseID"),
		Action:       domain.AuditAction(q.Get("action")),
		ResourceType: q.Get("resourceType"),
		ResourceID:   q.Get("resourceId"),
		Limit:        parseIntQuery(r, "limit", 50),
		Offset:       parseIntQuery(r, "offset", 0),
	})
	if err != nil {
		writeDomainError(w, "failed to list audit logs", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.AuditLogsFromDomain(logs))
}
