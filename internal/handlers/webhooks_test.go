package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	domain "github.com/suitline/fulfillment/internal/domain"
	"github.com/suitline/fulfillment/internal/services"
)

type stubOrderAssembler struct {
	assembleFn func(ctx context.Context, event domain.OrderPaidEvent) (domain.Order, error)
	calls      int
}

func (s *stubOrderAssembler) Assemble(ctx context.Context, event domain.OrderPaidEvent) (domain.Order, error) {
	s.calls++
	if s.assembleFn != nil {
		return s.assembleFn(ctx, event)
	}
	return domain.Order{}, nil
}

func newWebhookTestRouter(assembler services.OrderAssembler) http.Handler {
	r := chi.NewRouter()
	r.Route("/webhooks", NewWebhookHandlers(assembler).Routes)
	return r
}

const paidOrderBody = `{
  "orderId": "1001",
  "orderNumber": "#1001",
  "customerEmail": "groom@example.com",
  "lineItems": [
    {"sku": "101A2BLK", "name": "Jacket", "price": 25000, "quantity": 1},
    {"sku": "401A", "name": "Shirt", "price": 6000, "quantity": 1}
  ],
  "noteAttributes": {"__event_id": "evt_1"}
}`

func TestWebhookOrderPaidAssemblesOrder(t *testing.T) {
	placed := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	assembler := &stubOrderAssembler{
		assembleFn: func(_ context.Context, event domain.OrderPaidEvent) (domain.Order, error) {
			if event.OrderID != "1001" || event.EventID() != "evt_1" || len(event.LineItems) != 2 {
				return domain.Order{}, fmt.Errorf("unexpected event %+v", event)
			}
			return domain.Order{
				ID:         "ord_1",
				ExternalID: event.OrderID,
				Status:     domain.OrderStatusPendingMeasurements,
				EventID:    "evt_1",
				Lines: []domain.OrderLine{
					{Position: 0, CatalogSKU: "101A2BLK", ResolvedSKU: "101A2BLK40R", Product: &domain.Product{ID: "prd_1"}, Quantity: 1},
					{Position: 1, CatalogSKU: "401A", Quantity: 1},
				},
				PlacedAt: placed,
			}, nil
		},
	}

	rr := httptest.NewRecorder()
	newWebhookTestRouter(assembler).ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/webhooks/orders/paid", strings.NewReader(paidOrderBody)))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var resp orderResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Order.ID != "ord_1" || resp.Order.Status != string(domain.OrderStatusPendingMeasurements) {
		t.Fatalf("unexpected order payload %+v", resp.Order)
	}
	if len(resp.Order.Lines) != 2 || !resp.Order.Lines[0].Resolved || resp.Order.Lines[1].Resolved {
		t.Fatalf("unexpected line resolution %+v", resp.Order.Lines)
	}
	if resp.Order.Lines[0].ProductID != "prd_1" {
		t.Fatalf("expected product id on resolved line, got %+v", resp.Order.Lines[0])
	}
}

func TestWebhookOrderPaidRejectsInvalidPayloads(t *testing.T) {
	cases := map[string]string{
		"empty body":    "",
		"invalid json":  "{",
		"missing id":    `{"lineItems":[{"sku":"401A","quantity":1}]}`,
		"no line items": `{"orderId":"1001","lineItems":[]}`,
		"bad quantity":  `{"orderId":"1001","lineItems":[{"sku":"401A","quantity":0}]}`,
		"bad email":     `{"orderId":"1001","customerEmail":"nope","lineItems":[{"sku":"401A","quantity":1}]}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			assembler := &stubOrderAssembler{}
			rr := httptest.NewRecorder()
			newWebhookTestRouter(assembler).ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/webhooks/orders/paid", strings.NewReader(body)))

			if rr.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d: %s", rr.Code, rr.Body.String())
			}
			if assembler.calls != 0 {
				t.Fatalf("assembler should not be called")
			}
		})
	}
}

func TestWebhookOrderPaidMapsServiceErrors(t *testing.T) {
	cases := []struct {
		name       string
		err        error
		status     int
		retryAfter string
	}{
		{"invalid input", fmt.Errorf("%w: no lines", services.ErrOrderInvalidInput), http.StatusBadRequest, ""},
		{"backing service", fmt.Errorf("%w: firestore down", services.ErrService), http.StatusServiceUnavailable, "30"},
		{"unexpected", fmt.Errorf("boom"), http.StatusInternalServerError, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assembler := &stubOrderAssembler{
				assembleFn: func(context.Context, domain.OrderPaidEvent) (domain.Order, error) {
					return domain.Order{}, tc.err
				},
			}
			rr := httptest.NewRecorder()
			newWebhookTestRouter(assembler).ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/webhooks/orders/paid", strings.NewReader(paidOrderBody)))
			if rr.Code != tc.status {
				t.Fatalf("expected %d, got %d", tc.status, rr.Code)
			}
			if got := rr.Header().Get("Retry-After"); got != tc.retryAfter {
				t.Fatalf("expected Retry-After %q, got %q", tc.retryAfter, got)
			}
		})
	}
}
