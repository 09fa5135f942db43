package xadmit

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

// 端到端: Redis 存储 + 路由表 + HTTP 中间件
func TestEndToEnd_RedisBackedMiddleware(t *testing.T) {
	mr, client := setupMiniredis(t)

	store, err := NewRedisStore(client)
	if err != nil {
		t.Fatalf("NewRedisStore: %v", err)
	}

	adm, err := New(store,
		WithPolicies(StrictPolicy(), StandardPolicy(), UnlimitedPolicy()),
		WithRoute("/api/v1/upload/**", "strict"),
		WithRoute("/api/v1/queries/**", "standard"),
		WithRoute("/health", "unlimited"),
		WithStoreTimeout(200*time.Millisecond),
	)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer adm.Close()

	mux := http.NewServeMux()
	mux.Handle("/", okHandler())
	handler := CorrelationMiddleware(adm.Middleware()(mux))

	send := func(path, ip string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, path, nil)
		req.RemoteAddr = ip + ":40000"
		handler.ServeHTTP(rec, req)
		return rec
	}

	t.Run("strict route exhausts at capacity", func(t *testing.T) {
		for i := 0; i < 5; i++ {
			rec := send("/api/v1/upload/file", "203.0.113.1")
			if rec.Code != http.StatusOK {
				t.Fatalf("upload %d: %d", i+1, rec.Code)
			}
		}
		rec := send("/api/v1/upload/file", "203.0.113.1")
		if rec.Code != http.StatusTooManyRequests {
			t.Fatalf("sixth upload should be rejected, got %d", rec.Code)
		}

		var body rejectBody
		if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		if body.RetryAfter < 1 || body.RetryAfter > 60 {
			t.Errorf("retryAfter out of range: %d", body.RetryAfter)
		}
	})

	t.Run("standard route unaffected by strict bucket", func(t *testing.T) {
		rec := send("/api/v1/queries/42", "203.0.113.1")
		if rec.Code != http.StatusOK {
			t.Fatalf("query request: %d", rec.Code)
		}
		if got := rec.Header().Get(HeaderLimit); got != "100" {
			t.Errorf("X-RateLimit-Limit = %q, want 100", got)
		}
	})

	t.Run("other client keeps own quota", func(t *testing.T) {
		rec := send("/api/v1/upload/file", "203.0.113.2")
		if rec.Code != http.StatusOK {
			t.Fatalf("distinct client should pass, got %d", rec.Code)
		}
	})

	t.Run("correlation id present", func(t *testing.T) {
		rec := send("/health", "203.0.113.3")
		if rec.Header().Get(HeaderRequestID) == "" {
			t.Error("expected request id header")
		}
	})

	t.Run("redis outage fails open", func(t *testing.T) {
		mr.Close()

		for i := 0; i < 10; i++ {
			rec := send("/api/v1/upload/file", "203.0.113.1")
			if rec.Code != http.StatusOK {
				t.Fatalf("store outage must admit, got %d on call %d", rec.Code, i)
			}
		}
	})
}
