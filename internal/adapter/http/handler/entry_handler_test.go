package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/iho/estateledger/internal/adapter/http/dto"
	"github.com/iho/estateledger/internal/domain"
	"github.com/iho/estateledger/internal/usecase"
)

type entryServiceStub struct {
	listFn  func(ctx context.Context, input usecase.ListEntriesInput) ([]domain.LedgerEntry, error)
	getFn   func(ctx context.Context, caseID, entryID string) (*domain.LedgerEntry, error)
	auditFn func(ctx context.Context, filter domain.AuditFilter) ([]*domain.AuditLog, error)
}

func (s *entryServiceStub) ListEntries(ctx context.Context, input usecase.ListEntriesInput) ([]domain.LedgerEntry, error) {
	return s.listFn(ctx, input)
}

func (s *entryServiceStub) GetEntry(ctx context.Context, caseID, entryID string) (*domain.LedgerEntry, error) {
	return s.getFn(ctx, caseID, entryID)
}

func (s *entryServiceStub) ListAudit(ctx context.Context, filter domain.AuditFilter) ([]*domain.AuditLog, error) {
	return s.auditFn(ctx, filter)
}

type reviewServiceStub struct {
	reviewFn func(ctx context.Context, input usecase.ReviewInput) (*domain.LedgerEntry, error)
}

func (s *reviewServiceStub) Review(ctx context.Context, input usecase.ReviewInput) (*domain.LedgerEntry, error) {
	return s.reviewFn(ctx, input)
}

type splitServiceStub struct {
	splitFn   func(ctx context.Context, input usecase.SplitInput) (*usecase.SplitOutput, error)
	unsplitFn func(ctx context.Context, input usecase.UnsplitInput) (int, error)
}

func (s *splitServiceStub) Split(ctx context.Context, input usecase.SplitInput) (*usecase.SplitOutput, error) {
	return s.splitFn(ctx, input)
}

func (s *splitServiceStub) Unsplit(ctx context.Context, input usecase.UnsplitInput) (int, error) {
	return s.unsplitFn(ctx, input)
}

func TestEntryHandler_List(t *testing.T) {
	var captured usecase.ListEntriesInput
	h := NewEntryHandler(&entryServiceStub{
		listFn: func(ctx context.Context, input usecase.ListEntriesInput) ([]domain.LedgerEntry, error) {
			captured = input
			return []domain.LedgerEntry{{ID: "e1", AmountCents: -300}, {ID: "e2", AmountCents: 1200}}, nil
		},
	}, nil, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/cases/case-1/entries?reviewStatus=unreviewed&limit=5", nil)
	req = setChiURLParams(req, "caseID", "case-1")
	rec := httptest.NewRecorder()

	h.List(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if captured.ReviewStatus != domain.ReviewStatusUnreviewed || captured.Limit != 5 {
		t.Fatalf("unexpected input %+v", captured)
	}

	var resp dto.ListEntriesResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Total != 2 || resp.Entries[1].Amount.EUR != "12.00" {
		t.Fatalf("unexpected response %+v", resp)
	}
}

func TestEntryHandler_GetNotFound(t *testing.T) {
	h := NewEntryHandler(&entryServiceStub{
		getFn: func(ctx context.Context, caseID, entryID string) (*domain.LedgerEntry, error) {
			return nil, domain.ErrEntryNotFound
		},
	}, nil, nil)

	req := setChiURLParams(httptest.NewRequest(http.MethodGet, "/", nil), "caseID", "case-1", "entryID", "nope")
	rec := httptest.NewRecorder()

	h.Get(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestEntryHandler_ReviewUsesHeaderReviewer(t *testing.T) {
	var captured usecase.ReviewInput
	h := NewEntryHandler(nil, &reviewServiceStub{
		reviewFn: func(ctx context.Context, input usecase.ReviewInput) (*domain.LedgerEntry, error) {
			captured = input
			return &domain.LedgerEntry{ID: input.EntryID, ReviewStatus: domain.ReviewStatusConfirmed}, nil
		},
	}, nil)

	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewBufferString(`{"action":"confirm"}`))
	req.Header.Set(UserIDHeader, "anna")
	req = setChiURLParams(req, "caseID", "case-1", "entryID", "e1")
	rec := httptest.NewRecorder()

	h.Review(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if captured.EntryID != "e1" || captured.Request.Reviewer != "anna" || captured.Request.Action != domain.ReviewActionConfirm {
		t.Fatalf("unexpected input %+v", captured)
	}
}

func TestEntryHandler_ReviewAdjustWithoutReason(t *testing.T) {
	h := NewEntryHandler(nil, &reviewServiceStub{
		reviewFn: func(ctx context.Context, input usecase.ReviewInput) (*domain.LedgerEntry, error) {
			return nil, domain.ErrAdjustReasonRequired
		},
	}, nil)

	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewBufferString(`{"action":"adjust","category_tag":"RENT"}`))
	req = setChiURLParams(req, "caseID", "case-1", "entryID", "e1")
	rec := httptest.NewRecorder()

	h.Review(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestEntryHandler_ReviewInvalidBody(t *testing.T) {
	h := NewEntryHandler(nil, &reviewServiceStub{}, nil)

	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewBufferString(`{`))
	req = setChiURLParams(req, "caseID", "case-1", "entryID", "e1")
	rec := httptest.NewRecorder()

	h.Review(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestEntryHandler_SplitDryRun(t *testing.T) {
	var captured usecase.SplitInput
	h := NewEntryHandler(nil, nil, &splitServiceStub{
		splitFn: func(ctx context.Context, input usecase.SplitInput) (*usecase.SplitOutput, error) {
			captured = input
			return &usecase.SplitOutput{
				Parent:       domain.LedgerEntry{ID: "e1", AmountCents: -300},
				Children:     []domain.LedgerEntry{{AmountCents: -100}, {AmountCents: -200}},
				PreviewToken: "tok",
			}, nil
		},
	})

	body := `{"reason":"zwei Standorte","children":[{"amount_cents":-100,"location_id":"L1"},{"amount":"-2.00","location_id":"L2"}]}`
	req := httptest.NewRequest(http.MethodPost, "/?dryRun=true", bytes.NewBufferString(body))
	req = setChiURLParams(req, "caseID", "case-1", "entryID", "e1")
	rec := httptest.NewRecorder()

	h.Split(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if !captured.DryRun || len(captured.Request.Children) != 2 || captured.Request.Children[1].AmountCents != -200 {
		t.Fatalf("unexpected input %+v", captured)
	}

	var resp dto.SplitResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.PreviewToken != "tok" || resp.Committed {
		t.Fatalf("unexpected response %+v", resp)
	}
}

func TestEntryHandler_SplitCommitCreated(t *testing.T) {
	var captured usecase.SplitInput
	h := NewEntryHandler(nil, nil, &splitServiceStub{
		splitFn: func(ctx context.Context, input usecase.SplitInput) (*usecase.SplitOutput, error) {
			captured = input
			return &usecase.SplitOutput{Parent: domain.LedgerEntry{ID: "e1"}, Committed: true}, nil
		},
	})

	body := `{"reason":"r","preview_token":"tok","children":[{"amount_cents":-100},{"amount_cents":-200}]}`
	req := setChiURLParams(httptest.NewRequest(http.MethodPost, "/", bytes.NewBufferString(body)), "caseID", "case-1", "entryID", "e1")
	rec := httptest.NewRecorder()

	h.Split(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}
	if captured.DryRun || captured.PreviewToken != "tok" {
		t.Fatalf("unexpected input %+v", captured)
	}
}

func TestEntryHandler_SplitMismatch(t *testing.T) {
	h := NewEntryHandler(nil, nil, &splitServiceStub{
		splitFn: func(ctx context.Context, input usecase.SplitInput) (*usecase.SplitOutput, error) {
			return nil, &domain.SplitMismatchError{ParentCents: -300, ChildrenCents: -299}
		},
	})

	body := `{"reason":"r","children":[{"amount_cents":-100},{"amount_cents":-199}]}`
	req := setChiURLParams(httptest.NewRequest(http.MethodPost, "/?dryRun=true", bytes.NewBufferString(body)), "caseID", "case-1", "entryID", "e1")
	rec := httptest.NewRecorder()

	h.Split(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}

	var resp dto.ErrorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Details == nil {
		t.Fatalf("expected mismatch details, got %+v", resp)
	}
}

func TestEntryHandler_SplitPreviewRequired(t *testing.T) {
	h := NewEntryHandler(nil, nil, &splitServiceStub{
		splitFn: func(ctx context.Context, input usecase.SplitInput) (*usecase.SplitOutput, error) {
			return nil, domain.ErrSplitPreviewRequired
		},
	})

	body := `{"reason":"r","children":[{"amount_cents":-100},{"amount_cents":-200}]}`
	req := setChiURLParams(httptest.NewRequest(http.MethodPost, "/", bytes.NewBufferString(body)), "caseID", "case-1", "entryID", "e1")
	rec := httptest.NewRecorder()

	h.Split(rec, req)

	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rec.Code)
	}
}

func TestEntryHandler_UnsplitWithoutBody(t *testing.T) {
	h := NewEntryHandler(nil, nil, &splitServiceStub{
		unsplitFn: func(ctx context.Context, input usecase.UnsplitInput) (int, error) {
			if input.EntryID != "e1" {
				t.Fatalf("unexpected input %+v", input)
			}
			return 2, nil
		},
	})

	req := setChiURLParams(httptest.NewRequest(http.MethodDelete, "/", nil), "caseID", "case-1", "entryID", "e1")
	rec := httptest.NewRecorder()

	h.Unsplit(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp dto.UnsplitResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.RemovedChildren != 2 {
		t.Fatalf("expected 2 removed children, got %d", resp.RemovedChildren)
	}
}

func TestEntryHandler_UnsplitNotSplit(t *testing.T) {
	h := NewEntryHandler(nil, nil, &splitServiceStub{
		unsplitFn: func(ctx context.Context, input usecase.UnsplitInput) (int, error) {
			return 0, domain.ErrNotSplit
		},
	})

	req := setChiURLParams(httptest.NewRequest(http.MethodDelete, "/", nil), "caseID", "case-1", "entryID", "e1")
	rec := httptest.NewRecorder()

	h.Unsplit(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestEntryHandler_ListAudit(t *testing.T) {
	var captured domain.AuditFilter
	h := NewEntryHandler(&entryServiceStub{
		auditFn: func(ctx context.Context, filter domain.AuditFilter) ([]*domain.AuditLog, error) {
			captured = filter
			return []*domain.AuditLog{{ID: "a1", Action: domain.AuditActionEntrySplit, Status: domain.AuditStatusSuccess}}, nil
		},
	}, nil, nil)

	req := httptest.NewRequest(http.MethodGet, "/?action=entry.split&resourceId=e1", nil)
	req = setChiURLParams(req, "caseID", "case-1")
	rec := httptest.NewRecorder()

	h.ListAudit(rec, req)

	if captured.CaseID != "case-1" || captured.Action != domain.AuditActionEntrySplit || captured.ResourceID != "e1" || captured.Limit != 50 {
		t.Fatalf("unexpected filter %+v", captured)
	}

	var resp []dto.AuditLogResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(resp) != 1 || resp[0].Action != "entry.split" {
		t.Fatalf("unexpected response %+v", resp)
	}
}
