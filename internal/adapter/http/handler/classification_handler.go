package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/iho/estateledger/internal/adapter/http/dto"
	"github.com/iho/estateledger/internal/usecase"
)

// ClassificationService defines the behavior needed by ClassificationHandler.
type ClassificationService interface {
	Run(ctx context.Context, input usecase.ClassifyInput) (*usecase.ClassifyOutput, error)
}

// ClassificationHandler handles classification runs.
type ClassificationHandler struct {
	classificationUC ClassificationService
}

// NewClassificationHandler creates a new ClassificationHandler.
func NewClassificationHandler(classificationUC ClassificationService) *ClassificationHandler {
	return &ClassificationHandler{classificationUC: classificationUC}
}

// Run suggests counterparties for the unreviewed entries of a case.
func (h *ClassificationHandler) Run(w http.ResponseWriter, r *http.Request) {
	var req dto.ClassificationRunRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	out, err := h.classificationUC.Run(r.Context(), usecase.ClassifyInput{
		CaseID:    chi.URLParam(r, "caseID"),
		UserID:    userID(r),
		RequestID: requestID(r),
		DryRun:    req.DryRun || parseBoolQuery(r, "dryRun"),
	})
	if err != nil {
		writeDomainError(w, "failed to classify entries", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.ClassificationFromOutput(out))
}
