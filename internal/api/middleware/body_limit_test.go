package middleware

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestMaxBodySize_WithinLimit(t *testing.T) {
	handler := MaxBodySize(DefaultMaxBodyBytes)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	body := bytes.NewReader(make([]byte, 100*1024)) // 100KB
	req := httptest.NewRequest(http.MethodPost, "/api/v1/executions", body)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", rec.Code)
	}
}

func TestMaxBodySize_ExceedsLimit(t *testing.T) {
	handler := MaxBodySize(DefaultMaxBodyBytes)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// MaxBytesReader surfaces the limit as a read error.
		buf := make([]byte, DefaultMaxBodyBytes+1)
		_, err := r.Body.Read(buf)
		if err != nil {
			http.Error(w, "Request body too large", http.StatusRequestEntityTooLarge)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))

	body := bytes.NewReader(make([]byte, 600*1024)) // 600KB > 512KB limit
	req := httptest.NewRequest(http.MethodPost, "/api/v1/executions", body)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("Expected status 413, got %d", rec.Code)
	}
}

func TestMaxBodySize_GETRequest_NoLimit(t *testing.T) {
	var limited bool
	handler := MaxBodySize(16)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		buf := make([]byte, 1024)
		if _, err := r.Body.Read(buf); err != nil && err.Error() == "http: request body too large" {
			limited = true
		}
		w.WriteHeader(http.StatusOK)
	}))

	// GET bodies are unusual but must not be capped.
	body := bytes.NewReader(make([]byte, 1024))
	req := httptest.NewRequest(http.MethodGet, "/api/v1/anomalies", body)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", rec.Code)
	}
	if limited {
		t.Error("GET request body should not be limited")
	}
}

func TestMaxBodySize_NilBody(t *testing.T) {
	handler := MaxBodySize(DefaultMaxBodyBytes)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/anomalies", nil)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", rec.Code)
	}
}
