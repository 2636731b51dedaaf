package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/iho/estateledger/internal/adapter/http/dto"
	"github.com/iho/estateledger/internal/domain"
	"github.com/iho/estateledger/internal/usecase"
)

// UserIDHeader names the acting user for audit logs.
const UserIDHeader = "X-User-ID"

// maxBodyBytes bounds request bodies, inline snapshots included.
const maxBodyBytes = 8 << 20

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// writeError writes an error response.
func writeError(w http.ResponseWriter, status int, message, details string) {
	writeErrorResponse(w, status, dto.ErrorResponse{
		Error:   message,
		Message: details,
	})
}

func writeErrorResponse(w http.ResponseWriter, status int, resp dto.ErrorResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(resp)
}

// writeDomainError maps err to a status and writes it. Split mismatches carry
// the amounts involved.
func writeDomainError(w http.ResponseWriter, message string, err error) {
	resp := dto.ErrorResponse{Error: message, Message: err.Error()}

	var mismatch *domain.SplitMismatchError
	if errors.As(err, &mismatch) {
		resp.Details = map[string]any{
			"parent":   dto.MoneyFromCents(mismatch.ParentCents),
			"children": dto.MoneyFromCents(mismatch.ChildrenCents),
			"diff":     dto.MoneyFromCents(mismatch.DiffCents()),
		}
	}

	writeErrorResponse(w, mapDomainError(err), resp)
}

// mapDomainError maps domain errors to HTTP status codes.
func mapDomainError(err error) int {
	switch {
	case errors.Is(err, domain.ErrMissingCutoff),
		errors.Is(err, domain.ErrInvalidPlan),
		errors.Is(err, domain.ErrNoActivePlan),
		errors.Is(err, domain.ErrInvalidRule),
		errors.Is(err, domain.ErrInvalidRatio):
		return http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrCaseNotFound),
		errors.Is(err, domain.ErrEntryNotFound),
		errors.Is(err, domain.ErrCounterpartyNotFound),
		errors.Is(err, domain.ErrScopeNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrSplitSumMismatch),
		errors.Is(err, domain.ErrAlreadySplit),
		errors.Is(err, domain.ErrRecursiveSplit),
		errors.Is(err, domain.ErrNotSplit),
		errors.Is(err, domain.ErrEmptySplit),
		errors.Is(err, domain.ErrSplitReasonRequired),
		errors.Is(err, domain.ErrAdjustReasonRequired),
		errors.Is(err, domain.ErrInvalidReviewAction),
		errors.Is(err, domain.ErrInvalidServicePeriod),
		errors.Is(err, domain.ErrMissingTransactionDate):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrSplitPreviewRequired),
		errors.Is(err, usecase.ErrRebuildInProgress):
		return http.StatusConflict
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// parseIntQuery parses an integer query parameter with a default value.
func parseIntQuery(r *http.Request, key string, defaultValue int) int {
	val := r.URL.Query().Get(key)
	if val == "" {
		return defaultValue
	}
	i, err := strconv.Atoi(val)
	if err != nil {
		return defaultValue
	}
	return i
}

// parseBoolQuery parses a boolean query parameter; anything unparsable is false.
func parseBoolQuery(r *http.Request, key string) bool {
	b, _ := strconv.ParseBool(r.URL.Query().Get(key))
	return b
}

// parseValueKinds reads valueKind as a repeated or comma-separated parameter.
// Unknown kinds are rejected.
func parseValueKinds(r *http.Request) ([]domain.ValueKind, error) {
	var kinds []domain.ValueKind
	for _, raw := range r.URL.Query()["valueKind"] {
		for _, k := range strings.Split(raw, ",") {
			if k = strings.TrimSpace(k); k == "" {
				continue
			}
			kind := domain.ValueKind(strings.ToUpper(k))
			if kind != domain.ValueKindActual && kind != domain.ValueKindProjected {
				return nil, fmt.Errorf("unknown valueKind %q", k)
			}
			kinds = append(kinds, kind)
		}
	}
	return kinds, nil
}

// decodeBody decodes an optional JSON body; an empty body leaves v untouched.
func decodeBody(r *http.Request, v any) error {
	if r.Body == nil || r.Body == http.NoBody {
		return nil
	}
	err := json.NewDecoder(r.Body).Decode(v)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

func userID(r *http.Request) string {
	return r.Header.Get(UserIDHeader)
}

func requestID(r *http.Request) string {
	return chimiddleware.GetReqID(r.Context())
}
