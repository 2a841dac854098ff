package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

type stubChecker struct {
	err error
}

func (s stubChecker) HealthCheck(context.Context) error { return s.err }

func decodeHealth(t *testing.T, rec *httptest.ResponseRecorder) HealthResponse {
	t.Helper()
	var resp HealthResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return resp
}

func TestHealth(t *testing.T) {
	h := NewHealthHandlers(HealthHandlersConfig{})

	rec := httptest.NewRecorder()
	h.Health(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if resp := decodeHealth(t, rec); resp.Status != "ok" {
		t.Errorf("status = %s, want ok", resp.Status)
	}
}

func TestReady_NoDependencies(t *testing.T) {
	h := NewHealthHandlers(HealthHandlersConfig{})

	rec := httptest.NewRecorder()
	h.Ready(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	resp := decodeHealth(t, rec)
	if resp.Checks["database"] != "ok" || resp.Checks["redis"] != "ok" {
		t.Errorf("checks = %v", resp.Checks)
	}
}

func TestReady_DatabaseFailureBlocksReadiness(t *testing.T) {
	h := NewHealthHandlers(HealthHandlersConfig{
		DBChecker: stubChecker{err: errors.New("connection refused")},
	})

	rec := httptest.NewRecorder()
	h.Ready(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
	resp := decodeHealth(t, rec)
	if resp.Status != "unhealthy" || resp.Checks["database"] != "error" {
		t.Errorf("response = %+v", resp)
	}
}

func TestReady_RedisFailureIsDegradedOnly(t *testing.T) {
	h := NewHealthHandlers(HealthHandlersConfig{
		DBChecker:    stubChecker{},
		RedisChecker: stubChecker{err: errors.New("connection refused")},
	})

	rec := httptest.NewRecorder()
	h.Ready(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (seen tracking fails open)", rec.Code)
	}
	resp := decodeHealth(t, rec)
	if resp.Status != "ok" || resp.Checks["redis"] != "degraded" {
		t.Errorf("response = %+v", resp)
	}
}

func TestHealth_MethodNotAllowed(t *testing.T) {
	h := NewHealthHandlers(HealthHandlersConfig{})

	rec := httptest.NewRecorder()
	h.Health(rec, httptest.NewRequest(http.MethodPost, "/health", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want 405", rec.Code)
	}
}
