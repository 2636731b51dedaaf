package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/iho/estateledger/internal/adapter/http/dto"
	"github.com/iho/estateledger/internal/bankbalance"
	"github.com/iho/estateledger/internal/classification"
	"github.com/iho/estateledger/internal/domain"
	"github.com/iho/estateledger/internal/usecase"
)

type classificationServiceStub struct {
	runFn func(ctx context.Context, input usecase.ClassifyInput) (*usecase.ClassifyOutput, error)
}

func (s *classificationServiceStub) Run(ctx context.Context, input usecase.ClassifyInput) (*usecase.ClassifyOutput, error) {
	return s.runFn(ctx, input)
}

type bankBalanceServiceStub struct {
	balancesFn func(ctx context.Context, input usecase.BankBalanceInput) (*bankbalance.Report, error)
}

func (s *bankBalanceServiceStub) Balances(ctx context.Context, input usecase.BankBalanceInput) (*bankbalance.Report, error) {
	return s.balancesFn(ctx, input)
}

func TestClassificationHandler_Run(t *testing.T) {
	tests := []struct {
		name       string
		target     string
		body       string
		wantDryRun bool
	}{
		{name: "empty body writes suggestions", target: "/", body: "", wantDryRun: false},
		{name: "dry run from body", target: "/", body: `{"dry_run":true}`, wantDryRun: true},
		{name: "dry run from query", target: "/?dryRun=true", body: "", wantDryRun: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var captured usecase.ClassifyInput
			h := NewClassificationHandler(&classificationServiceStub{
				runFn: func(ctx context.Context, input usecase.ClassifyInput) (*usecase.ClassifyOutput, error) {
					captured = input
					return &usecase.ClassifyOutput{
						Result:  classification.Result{Suggestions: []classification.Suggestion{{EntryID: "e2"}}},
						Applied: 1,
					}, nil
				},
			})

			req := httptest.NewRequest(http.MethodPost, tt.target, bytes.NewBufferString(tt.body))
			req = setChiURLParams(req, "caseID", "case-1")
			rec := httptest.NewRecorder()

			h.Run(rec, req)

			if rec.Code != http.StatusOK {
				t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
			}
			if captured.CaseID != "case-1" || captured.DryRun != tt.wantDryRun {
				t.Fatalf("unexpected input %+v", captured)
			}

			var resp dto.ClassificationResponse
			if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
				t.Fatalf("failed to decode response: %v", err)
			}
			if resp.SuggestionCount != 1 || resp.Applied != 1 {
				t.Fatalf("unexpected response %+v", resp)
			}
		})
	}
}

func TestClassificationHandler_CaseNotFound(t *testing.T) {
	h := NewClassificationHandler(&classificationServiceStub{
		runFn: func(ctx context.Context, input usecase.ClassifyInput) (*usecase.ClassifyOutput, error) {
			return nil, domain.ErrCaseNotFound
		},
	})

	req := setChiURLParams(httptest.NewRequest(http.MethodPost, "/", nil), "caseID", "nope")
	rec := httptest.NewRecorder()

	h.Run(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestBankBalanceHandler_Get(t *testing.T) {
	var captured usecase.BankBalanceInput
	h := NewBankBalanceHandler(&bankBalanceServiceStub{
		balancesFn: func(ctx context.Context, input usecase.BankBalanceInput) (*bankbalance.Report, error) {
			captured = input
			return &bankbalance.Report{FinalTotalCents: 103_500, FinalAvailableCents: 100_000}, nil
		},
	})

	req := httptest.NewRequest(http.MethodGet, "/?scope=L1&includeProjected=true&includeUnreviewed=true", nil)
	req = setChiURLParams(req, "caseID", "case-1")
	rec := httptest.NewRecorder()

	h.Get(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if captured.ScopeID != "L1" || !captured.IncludeProjected || !captured.IncludeUnreviewed {
		t.Fatalf("unexpected input %+v", captured)
	}

	var resp dto.BankBalancesResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.FinalTotal.EUR != "1035.00" || resp.FinalAvailable.Cents != 100_000 {
		t.Fatalf("unexpected response %+v", resp)
	}
}
