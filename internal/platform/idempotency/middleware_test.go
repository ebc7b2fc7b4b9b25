package idempotency

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

var fixedTime = time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)

func newGuardedHandler(store Store, status int, calls *int, opts ...Option) http.Handler {
	opts = append([]Option{WithClock(func() time.Time { return fixedTime })}, opts...)
	return Guard(store, opts...)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		*calls++
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(`{"created":true}`))
	}))
}

func postIntents(body, key string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/events/evt-1/discount-intents", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	if key != "" {
		req.Header.Set(defaultHeaderName, key)
	}
	return req
}

func TestGuardPassesThroughWithoutKey(t *testing.T) {
	var calls int
	handler := newGuardedHandler(NewMemoryStore(), http.StatusCreated, &calls)

	for i := 0; i < 2; i++ {
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, postIntents(`{"amount":1000}`, ""))
		if rr.Code != http.StatusCreated {
			t.Fatalf("expected 201, got %d", rr.Code)
		}
	}
	if calls != 2 {
		t.Fatalf("expected handler to run twice, got %d", calls)
	}
}

func TestGuardRequiresKeyWhenConfigured(t *testing.T) {
	var calls int
	handler := newGuardedHandler(NewMemoryStore(), http.StatusCreated, &calls, WithKeyRequired())

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, postIntents(`{}`, ""))
	if rr.Code != http.StatusBadRequest || calls != 0 {
		t.Fatalf("expected 400 without handler call, got %d (calls=%d)", rr.Code, calls)
	}
	if !strings.Contains(rr.Body.String(), "idempotency_key_required") {
		t.Fatalf("unexpected body %s", rr.Body.String())
	}
}

func TestGuardReplaysCompletedResponse(t *testing.T) {
	var calls int
	handler := newGuardedHandler(NewMemoryStore(), http.StatusCreated, &calls)

	first := httptest.NewRecorder()
	handler.ServeHTTP(first, postIntents(`{"amount":1000}`, "batch-1"))
	second := httptest.NewRecorder()
	handler.ServeHTTP(second, postIntents(`{"amount":1000}`, "batch-1"))

	if calls != 1 {
		t.Fatalf("expected a single handler call, got %d", calls)
	}
	if second.Code != http.StatusCreated {
		t.Fatalf("expected replayed 201, got %d", second.Code)
	}
	if second.Header().Get(replayHeaderName) != "true" {
		t.Fatalf("expected replay header")
	}
	if second.Header().Get("Content-Type") != "application/json" {
		t.Fatalf("expected stored content type, got %q", second.Header().Get("Content-Type"))
	}
	if second.Body.String() != first.Body.String() {
		t.Fatalf("expected identical body, got %q vs %q", second.Body.String(), first.Body.String())
	}
}

func TestGuardRejectsKeyReuseWithDifferentBody(t *testing.T) {
	var calls int
	handler := newGuardedHandler(NewMemoryStore(), http.StatusCreated, &calls)

	handler.ServeHTTP(httptest.NewRecorder(), postIntents(`{"amount":1000}`, "batch-1"))
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, postIntents(`{"amount":2000}`, "batch-1"))

	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", rr.Code)
	}
	if calls != 1 {
		t.Fatalf("expected handler to run once, got %d", calls)
	}
}

func TestGuardReportsInProgressReservation(t *testing.T) {
	store := NewMemoryStore()
	req := postIntents(`{"amount":1000}`, "batch-1")
	body := []byte(`{"amount":1000}`)
	storeKey := sha256Hex([]byte("|batch-1"))
	if _, _, err := store.Reserve(req.Context(), storeKey, fingerprintOf(req, body, ""), fixedTime, time.Hour); err != nil {
		t.Fatalf("reserve: %v", err)
	}

	var calls int
	rr := httptest.NewRecorder()
	newGuardedHandler(store, http.StatusCreated, &calls).ServeHTTP(rr, req)
	if rr.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rr.Code)
	}
	if calls != 0 {
		t.Fatalf("handler should not run while reservation is pending")
	}
}

func TestGuardReleasesKeyOnServerError(t *testing.T) {
	store := NewMemoryStore()
	var failing int
	newGuardedHandler(store, http.StatusServiceUnavailable, &failing).
		ServeHTTP(httptest.NewRecorder(), postIntents(`{"amount":1000}`, "batch-1"))

	var calls int
	rr := httptest.NewRecorder()
	newGuardedHandler(store, http.StatusCreated, &calls).ServeHTTP(rr, postIntents(`{"amount":1000}`, "batch-1"))
	if rr.Code != http.StatusCreated || calls != 1 {
		t.Fatalf("expected retry to run handler, got %d (calls=%d)", rr.Code, calls)
	}
}

func TestGuardNilStoreIsTransparent(t *testing.T) {
	var calls int
	rr := httptest.NewRecorder()
	newGuardedHandler(nil, http.StatusCreated, &calls).ServeHTTP(rr, postIntents(`{}`, "batch-1"))
	if rr.Code != http.StatusCreated || calls != 1 {
		t.Fatalf("expected passthrough, got %d (calls=%d)", rr.Code, calls)
	}
}
