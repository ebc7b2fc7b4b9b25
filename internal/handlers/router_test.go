package handlers

import (
	"bytes"
	"context"
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	domain "github.com/suitline/fulfillment/internal/domain"
	"github.com/suitline/fulfillment/internal/platform/auth"
	"github.com/suitline/fulfillment/internal/services"
)

func TestNewRouterMountsGroups(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	health := NewHealthHandlers(
		WithHealthSystemService(&stubSystemService{
			report: services.SystemHealthReport{
				Status:      domain.HealthStatusOK,
				GeneratedAt: now,
				Checks: map[string]domain.SystemHealthCheck{
					"firestore": {Status: domain.HealthStatusOK},
				},
			},
		}),
		WithHealthClock(func() time.Time { return now }),
	)

	const secret = "webhook-secret"
	verifier := auth.NewWebhookVerifier(auth.StaticSecret(secret))
	assembler := &stubOrderAssembler{
		assembleFn: func(_ context.Context, event domain.OrderPaidEvent) (domain.Order, error) {
			return domain.Order{ID: "ord_1", ExternalID: event.OrderID, Status: domain.OrderStatusReady}, nil
		},
	}
	discounts := &stubDiscountService{}

	router := NewRouter(
		WithHealthHandlers(health),
		WithWebhookRoutes(NewWebhookHandlers(assembler).Routes),
		WithWebhookMiddlewares(verifier.Require("orders")),
		WithEventRoutes(NewEventHandlers(discounts).Routes),
	)

	t.Run("healthz", func(t *testing.T) {
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
		if rr.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d", rr.Code)
		}
		if ct := rr.Header().Get("Content-Type"); ct != "application/json" {
			t.Fatalf("expected content-type application/json, got %s", ct)
		}
	})

	t.Run("readyz", func(t *testing.T) {
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/readyz", nil))
		if rr.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d", rr.Code)
		}
	})

	t.Run("signed webhook", func(t *testing.T) {
		body := []byte(paidOrderBody)
		req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/orders/paid", bytes.NewReader(body))
		req.Header.Set("X-Webhook-Hmac-Sha256", base64.StdEncoding.EncodeToString(auth.ComputeSignature([]byte(secret), body)))
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)
		if rr.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
		}
		if assembler.calls != 1 {
			t.Fatalf("expected assembler to run once, got %d", assembler.calls)
		}
	})

	t.Run("unsigned webhook", func(t *testing.T) {
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/orders/paid", bytes.NewReader([]byte(paidOrderBody))))
		if rr.Code != http.StatusUnauthorized {
			t.Fatalf("expected 401, got %d", rr.Code)
		}
		if assembler.calls != 1 {
			t.Fatalf("assembler should not run for unsigned requests")
		}
	})

	t.Run("event routes", func(t *testing.T) {
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v1/events/evt_1/attendees/att_1/group-discount", nil))
		if rr.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rr.Code)
		}
	})

	t.Run("unknown route", func(t *testing.T) {
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v1/carts", nil))
		if rr.Code != http.StatusNotFound {
			t.Fatalf("expected 404, got %d", rr.Code)
		}
		if !bytes.Contains(rr.Body.Bytes(), []byte(errorNotFoundCode)) {
			t.Fatalf("expected route_not_found payload, got %s", rr.Body.String())
		}
	})

	t.Run("method not allowed", func(t *testing.T) {
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v1/events/evt_1/discount-intents", nil))
		if rr.Code != http.StatusMethodNotAllowed {
			t.Fatalf("expected 405, got %d", rr.Code)
		}
	})
}
