package middleware

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
)

func TestLoggingMiddlewareRecordsStatus(t *testing.T) {
	var buf bytes.Buffer
	mw := NewLoggingMiddleware(zerolog.New(&buf))

	rr := httptest.NewRecorder()
	mw.Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	})).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))

	if !strings.Contains(buf.String(), `"status":202`) {
		t.Fatalf("expected status in log line, got %s", buf.String())
	}
	if !strings.Contains(buf.String(), `"level":"info"`) {
		t.Fatalf("expected info level, got %s", buf.String())
	}
}

func TestLoggingMiddlewareAddsRequestContext(t *testing.T) {
	var buf bytes.Buffer
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(NewLoggingMiddleware(zerolog.New(&buf)).Wrap)
	r.Post("/cases/{caseID}/aggregation/rebuild", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	req := httptest.NewRequest(http.MethodPost, "/cases/case-7/aggregation/rebuild", nil)
	req.Header.Set("X-User-ID", "anna")
	r.ServeHTTP(httptest.NewRecorder(), req)

	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("log line is not json: %v (%s)", err, buf.String())
	}

	if line["level"] != "error" {
		t.Errorf("expected error level for a 500, got %v", line["level"])
	}
	if line["case_id"] != "case-7" || line["user_id"] != "anna" {
		t.Errorf("expected case and user fields, got %v", line)
	}
	if line["route"] != "/cases/{caseID}/aggregation/rebuild" {
		t.Errorf("expected route pattern, got %v", line["route"])
	}
	if id, _ := line["request_id"].(string); id == "" {
		t.Errorf("expected a request id, got %v", line)
	}
}

func TestLoggingMiddlewareWarnsOnClientErrors(t *testing.T) {
	var buf bytes.Buffer
	mw := NewLoggingMiddleware(zerolog.New(&buf))

	mw.Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})).ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/nope", nil))

	if !strings.Contains(buf.String(), `"level":"warn"`) || !strings.Contains(buf.String(), `"route":"unmatched"`) {
		t.Fatalf("expected warn level for an unmatched route, got %s", buf.String())
	}
}
