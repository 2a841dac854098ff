package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func captureLogger() (*slog.Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	return logger, &buf
}

func TestLogging_BasicFields(t *testing.T) {
	logger, buf := captureLogger()

	handler := Logging(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("hello")); err != nil {
			t.Errorf("write: %v", err)
		}
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/trends", nil))

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("decode log line %q: %v", buf.String(), err)
	}
	if entry["method"] != "GET" || entry["path"] != "/api/trends" {
		t.Errorf("entry = %v", entry)
	}
	if entry["status"] != float64(http.StatusOK) {
		t.Errorf("status = %v, want 200", entry["status"])
	}
	if entry["size"] != float64(5) {
		t.Errorf("size = %v, want 5", entry["size"])
	}
	if entry["level"] != "INFO" {
		t.Errorf("level = %v, want INFO", entry["level"])
	}
}

func TestLogging_ErrorCodeViaUpdatedContext(t *testing.T) {
	logger, buf := captureLogger()

	handler := Logging(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := SetErrorCode(r.Context(), "not_found")
		ctx = SetViewerID(ctx, "u1")
		UpdateResponseContext(w, ctx)
		w.WriteHeader(http.StatusNotFound)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/users/u1", nil))

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if entry["error_code"] != "not_found" {
		t.Errorf("error_code = %v, want not_found (set after the handler derived a new context)", entry["error_code"])
	}
	if entry["user_id"] != "u1" {
		t.Errorf("user_id = %v, want u1", entry["user_id"])
	}
	if entry["level"] != "WARN" {
		t.Errorf("level = %v, want WARN for 4xx", entry["level"])
	}
}

func TestLogging_ServerErrorLevel(t *testing.T) {
	logger, buf := captureLogger()

	handler := Logging(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if !strings.Contains(buf.String(), `"level":"ERROR"`) {
		t.Errorf("expected ERROR level for 5xx, got %s", buf.String())
	}
}

func TestResponseWriter_FirstStatusWins(t *testing.T) {
	rec := httptest.NewRecorder()
	rw := newResponseWriter(rec)

	rw.WriteHeader(http.StatusNotFound)
	rw.WriteHeader(http.StatusOK)

	if rw.statusCode != http.StatusNotFound {
		t.Errorf("statusCode = %d, want first write (404) to win", rw.statusCode)
	}
	if rec.Code != http.StatusNotFound {
		t.Errorf("recorded code = %d, want 404", rec.Code)
	}
}

func TestContextAccessors(t *testing.T) {
	ctx := context.Background()

	if GetViewerID(ctx) != "" || GetErrorCode(ctx) != "" {
		t.Error("empty context must yield empty values")
	}

	ctx = SetViewerID(ctx, "u1")
	ctx = SetErrorCode(ctx, "validation_error")
	if GetViewerID(ctx) != "u1" {
		t.Errorf("viewer id = %s, want u1", GetViewerID(ctx))
	}
	if GetErrorCode(ctx) != "validation_error" {
		t.Errorf("error code = %s, want validation_error", GetErrorCode(ctx))
	}
}

func TestUpdateResponseContext_PlainWriterIsNoop(t *testing.T) {
	// Recorders do not implement contextUpdater; the call must be a no-op.
	rec := httptest.NewRecorder()
	UpdateResponseContext(rec, context.Background())
}

func TestNewLogger(t *testing.T) {
	if NewLogger("production") == nil {
		t.Error("production logger is nil")
	}
	if NewLogger("development") == nil {
		t.Error("development logger is nil")
	}
}
