package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/iho/estateledger/internal/adapter/http/dto"
	"github.com/iho/estateledger/internal/bankbalance"
	"github.com/iho/estateledger/internal/usecase"
)

// BankBalanceService defines the behavior needed by BankBalanceHandler.
type BankBalanceService interface {
	Balances(ctx context.Context, input usecase.BankBalanceInput) (*bankbalance.Report, error)
}

// BankBalanceHandler handles bank balance requests.
type BankBalanceHandler struct {
	balanceUC BankBalanceService
}

// NewBankBalanceHandler creates a new BankBalanceHandler.
func NewBankBalanceHandler(balanceUC BankBalanceService) *BankBalanceHandler {
	return &BankBalanceHandler{balanceUC: balanceUC}
}

// Get returns the per-account balance trajectory of a case.
func (h *BankBalanceHandler) Get(w http.ResponseWriter, r *http.Request) {
	report, err := h.balanceUC.Balances(r.Context(), usecase.BankBalanceInput{
		CaseID:            chi.URLParam(r, "caseID"),
		ScopeID:           r.URL.Query().Get("scope"),
		IncludeProjected:  parseBoolQuery(r, "includeProjected"),
		IncludeUnreviewed: parseBoolQuery(r, "includeUnreviewed"),
	})
	if err != nil {
		writeDomainError(w, "failed to compute bank balances", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.BankBalancesFromReport(report))
}
