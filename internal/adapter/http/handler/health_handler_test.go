package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func TestHealthHandler_Liveness(t *testing.T) {
	rec := httptest.NewRecorder()
	NewHealthHandlerWithChecks().Liveness(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestHealthHandler_ReadinessWithRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	rec := httptest.NewRecorder()
	NewHealthHandler(nil, client).Readiness(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp["redis"] != "ok" || resp["status"] != "ready" {
		t.Fatalf("unexpected response %+v", resp)
	}
}

func TestHealthHandler_ReadinessFailsOnFirstBrokenCheck(t *testing.T) {
	var redisProbed bool
	h := NewHealthHandlerWithChecks(
		Check{Name: "postgres", Probe: func(ctx context.Context) error { return errors.New("connection refused") }},
		Check{Name: "redis", Probe: func(ctx context.Context) error { redisProbed = true; return nil }},
	)

	rec := httptest.NewRecorder()
	h.Readiness(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
	if redisProbed {
		t.Fatalf("expected checks to stop at the first failure")
	}
}
