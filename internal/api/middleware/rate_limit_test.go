package middleware

import (
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
}

func TestRateLimitMiddleware_HealthEndpoint_Bypass(t *testing.T) {
	handler := RateLimit()(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", rec.Code)
	}
}

func TestRateLimitMiddleware_Loopback_Bypass(t *testing.T) {
	handler := RateLimit()(okHandler())

	// Loopback traffic is exempt even when hammered past the GET budget.
	for i := 0; i < rateLimitGetBurst+10; i++ {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/anomalies", nil)
		req.RemoteAddr = "127.0.0.1:12345"
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("Request %d: expected status 200 for loopback, got %d", i, rec.Code)
		}
	}
}

func TestRateLimitMiddleware_GET_Allowed(t *testing.T) {
	handler := RateLimit()(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/anomalies", nil)
	req.RemoteAddr = "192.168.1.1:12345"
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", rec.Code)
	}

	limit := rec.Header().Get("X-RateLimit-Limit")
	if limit != strconv.Itoa(rateLimitGetPerMin) {
		t.Errorf("Expected X-RateLimit-Limit %d, got %s", rateLimitGetPerMin, limit)
	}

	remaining := rec.Header().Get("X-RateLimit-Remaining")
	if remaining == "" {
		t.Error("Expected X-RateLimit-Remaining header")
	}
}

func TestRateLimitMiddleware_GET_ExceedsLimit(t *testing.T) {
	handler := RateLimit()(okHandler())

	ip := "192.168.1.2"
	for i := 0; i < rateLimitGetBurst+1; i++ {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/anomalies", nil)
		req.RemoteAddr = ip + ":12345"
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		if i >= rateLimitGetBurst {
			if rec.Code != http.StatusTooManyRequests {
				t.Errorf("Request %d: Expected status 429, got %d", i, rec.Code)
			}
			if !strings.Contains(rec.Body.String(), "Too many requests") {
				t.Errorf("Request %d: Expected rate limit error message", i)
			}
			if rec.Header().Get("Retry-After") == "" {
				t.Error("Expected Retry-After header")
			}
		}
	}
}

func TestRateLimitMiddleware_POST_StandardTier(t *testing.T) {
	handler := RateLimit()(okHandler())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/anomalies/check", nil)
	req.RemoteAddr = "192.168.1.3:12345"
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", rec.Code)
	}

	limit := rec.Header().Get("X-RateLimit-Limit")
	if limit != strconv.Itoa(rateLimitStandardPerMin) {
		t.Errorf("Expected X-RateLimit-Limit %d, got %s", rateLimitStandardPerMin, limit)
	}
}

func TestRateLimitMiddleware_Ingest_Tier(t *testing.T) {
	handler := RateLimit()(okHandler())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/executions", nil)
	req.RemoteAddr = "192.168.1.4:12345"
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", rec.Code)
	}

	limit := rec.Header().Get("X-RateLimit-Limit")
	if limit != strconv.Itoa(rateLimitIngestPerMin) {
		t.Errorf("Expected X-RateLimit-Limit %d, got %s", rateLimitIngestPerMin, limit)
	}
}

func TestRateLimitMiddleware_IngestTier_OutlivesGetBudget(t *testing.T) {
	handler := RateLimit()(okHandler())

	// A CI reporter bursting executions stays within the ingest budget well
	// past the point where the GET tier would have throttled it.
	ip := "192.168.1.8"
	for i := 0; i < rateLimitGetBurst+50; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/executions", nil)
		req.RemoteAddr = ip + ":12345"
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("Request %d: expected status 200 on ingest tier, got %d", i, rec.Code)
		}
	}
}

func TestRateLimitMiddleware_DifferentIPs_Independent(t *testing.T) {
	handler := RateLimit()(okHandler())

	// Exhaust limit for IP1
	ip1 := "192.168.1.5"
	for i := 0; i < rateLimitGetBurst+1; i++ {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/anomalies", nil)
		req.RemoteAddr = ip1 + ":12345"
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
	}

	// IP2 should still be able to make requests
	ip2 := "192.168.1.6"
	req := httptest.NewRequest(http.MethodGet, "/api/v1/anomalies", nil)
	req.RemoteAddr = ip2 + ":12345"
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("Expected status 200 for different IP, got %d", rec.Code)
	}
}

func TestRateLimitMiddleware_XForwardedFor_IP(t *testing.T) {
	handler := RateLimit()(okHandler())

	ip := "10.0.0.1"
	for i := 0; i < rateLimitGetBurst+1; i++ {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/anomalies", nil)
		req.Header.Set("X-Forwarded-For", ip)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		if i >= rateLimitGetBurst {
			if rec.Code != http.StatusTooManyRequests {
				t.Errorf("Request %d: Expected status 429, got %d", i, rec.Code)
			}
		}
	}
}

func TestRateLimitMiddleware_XRealIP_IP(t *testing.T) {
	handler := RateLimit()(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/anomalies", nil)
	req.Header.Set("X-Real-IP", "10.0.0.2")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", rec.Code)
	}
}

func TestRateLimitMiddleware_ResetHeader(t *testing.T) {
	handler := RateLimit()(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/anomalies", nil)
	req.RemoteAddr = "192.168.1.7:12345"
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	reset := rec.Header().Get("X-RateLimit-Reset")
	if reset == "" {
		t.Error("Expected X-RateLimit-Reset header")
	}

	resetTime, err := strconv.ParseInt(reset, 10, 64)
	if err != nil {
		t.Fatalf("Failed to parse reset time: %v", err)
	}

	// Reset should be approximately 1 minute from now
	expectedReset := time.Now().Add(time.Minute).Unix()
	diff := resetTime - expectedReset
	if diff < -5 || diff > 5 {
		t.Errorf("Reset time should be ~1 minute from now, got diff %d seconds", diff)
	}
}
