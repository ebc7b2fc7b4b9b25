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

type stubDiscountService struct {
	createFn  func(ctx context.Context, cmd services.CreateDiscountIntentsCommand) (services.DiscountIntentBatch, error)
	offerFn   func(ctx context.Context, eventID, attendeeID string) (domain.GroupDiscountOffer, error)
	issueFn   func(ctx context.Context, eventID, attendeeID string) (domain.Discount, error)
	lastEvent string
}

func (s *stubDiscountService) CreateIntents(ctx context.Context, cmd services.CreateDiscountIntentsCommand) (services.DiscountIntentBatch, error) {
	s.lastEvent = cmd.EventID
	if s.createFn != nil {
		return s.createFn(ctx, cmd)
	}
	return services.DiscountIntentBatch{}, nil
}

func (s *stubDiscountService) RedeemForOrder(context.Context, string, string) (services.RedemptionResult, error) {
	return services.RedemptionResult{}, nil
}

func (s *stubDiscountService) GroupDiscount(ctx context.Context, eventID, attendeeID string) (domain.GroupDiscountOffer, error) {
	if s.offerFn != nil {
		return s.offerFn(ctx, eventID, attendeeID)
	}
	return domain.GroupDiscountOffer{}, nil
}

func (s *stubDiscountService) IssueGroupDiscount(ctx context.Context, eventID, attendeeID string) (domain.Discount, error) {
	if s.issueFn != nil {
		return s.issueFn(ctx, eventID, attendeeID)
	}
	return domain.Discount{}, nil
}

func (s *stubDiscountService) MarkUsed(context.Context, []string, time.Time) error {
	return nil
}

var _ services.DiscountService = (*stubDiscountService)(nil)

func newEventTestRouter(svc services.DiscountService) http.Handler {
	r := chi.NewRouter()
	r.Route("/events", NewEventHandlers(svc).Routes)
	return r
}

func TestCreateDiscountIntents(t *testing.T) {
	created := time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC)
	svc := &stubDiscountService{
		createFn: func(_ context.Context, cmd services.CreateDiscountIntentsCommand) (services.DiscountIntentBatch, error) {
			if len(cmd.Intents) != 2 || cmd.Intents[0].AttendeeID != "att_1" || cmd.Intents[1].Amount != 2500 {
				return services.DiscountIntentBatch{}, fmt.Errorf("unexpected command %+v", cmd)
			}
			return services.DiscountIntentBatch{
				EventID:   cmd.EventID,
				ProductID: "prod_1",
				SKU:       "DSC-evt_1-01",
				Total:     7500,
				Intents: []domain.Discount{
					{ID: "dsc_1", EventID: cmd.EventID, AttendeeID: "att_1", Type: domain.DiscountTypeGift, Amount: 5000, CreatedAt: created},
					{ID: "dsc_2", EventID: cmd.EventID, AttendeeID: "att_2", Type: domain.DiscountTypeGift, Amount: 2500, CreatedAt: created},
				},
			}, nil
		},
	}

	body := `{"intents":[{"attendeeId":" att_1 ","amount":5000},{"attendeeId":"att_2","amount":2500}]}`
	rr := httptest.NewRecorder()
	newEventTestRouter(svc).ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/events/evt_1/discount-intents", strings.NewReader(body)))

	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rr.Code, rr.Body.String())
	}
	if svc.lastEvent != "evt_1" {
		t.Fatalf("expected event id from path, got %q", svc.lastEvent)
	}
	var resp discountBatchPayload
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.SKU != "DSC-evt_1-01" || resp.Total != 7500 || len(resp.Intents) != 2 {
		t.Fatalf("unexpected response %+v", resp)
	}
	if resp.Intents[0].Code != "" || resp.Intents[0].Type != "GIFT" {
		t.Fatalf("expected un-coded gift intent, got %+v", resp.Intents[0])
	}
}

func TestCreateDiscountIntentsValidationAndErrors(t *testing.T) {
	cases := []struct {
		name   string
		body   string
		err    error
		status int
	}{
		{name: "no intents", body: `{"intents":[]}`, status: http.StatusBadRequest},
		{name: "zero amount", body: `{"intents":[{"attendeeId":"att_1","amount":0}]}`, status: http.StatusBadRequest},
		{name: "missing attendee", body: `{"intents":[{"amount":100}]}`, status: http.StatusBadRequest},
		{name: "exceeds look", body: `{"intents":[{"attendeeId":"att_1","amount":100}]}`, err: services.ErrDiscountExceedsLook, status: http.StatusConflict},
		{name: "not eligible", body: `{"intents":[{"attendeeId":"att_1","amount":100}]}`, err: services.ErrAttendeeNotEligible, status: http.StatusUnprocessableEntity},
		{name: "unknown event", body: `{"intents":[{"attendeeId":"att_1","amount":100}]}`, err: services.ErrNotFound, status: http.StatusNotFound},
		{name: "commerce down", body: `{"intents":[{"attendeeId":"att_1","amount":100}]}`, err: services.ErrService, status: http.StatusServiceUnavailable},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc := &stubDiscountService{
				createFn: func(context.Context, services.CreateDiscountIntentsCommand) (services.DiscountIntentBatch, error) {
					if tc.err != nil {
						return services.DiscountIntentBatch{}, fmt.Errorf("%w: detail", tc.err)
					}
					return services.DiscountIntentBatch{}, nil
				},
			}
			rr := httptest.NewRecorder()
			newEventTestRouter(svc).ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/events/evt_1/discount-intents", strings.NewReader(tc.body)))
			if rr.Code != tc.status {
				t.Fatalf("expected %d, got %d: %s", tc.status, rr.Code, rr.Body.String())
			}
		})
	}
}

func TestGroupDiscountOfferAndIssue(t *testing.T) {
	svc := &stubDiscountService{
		offerFn: func(_ context.Context, eventID, attendeeID string) (domain.GroupDiscountOffer, error) {
			if attendeeID == "att_small" {
				return domain.GroupDiscountOffer{}, fmt.Errorf("%w: only 3 eligible", services.ErrGroupDiscountIneligible)
			}
			return domain.GroupDiscountOffer{EventID: eventID, AttendeeID: attendeeID, Amount: 10000, MinimumOrder: 26000}, nil
		},
		issueFn: func(_ context.Context, eventID, attendeeID string) (domain.Discount, error) {
			return domain.Discount{
				ID: "dsc_g", EventID: eventID, AttendeeID: attendeeID, Type: domain.DiscountTypeGroup,
				Amount: 10000, MinimumOrder: 26000, Code: "GROUP-ABCD-EFGH",
			}, nil
		},
	}
	router := newEventTestRouter(svc)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/events/evt_1/attendees/att_1/group-discount", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var offer groupOfferPayload
	if err := json.Unmarshal(rr.Body.Bytes(), &offer); err != nil {
		t.Fatalf("decode offer: %v", err)
	}
	if offer.Amount != 10000 || offer.MinimumOrder != 26000 || offer.AttendeeID != "att_1" {
		t.Fatalf("unexpected offer %+v", offer)
	}

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/events/evt_1/attendees/att_small/group-discount", nil))
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 for ineligible group, got %d", rr.Code)
	}

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/events/evt_1/attendees/att_1/group-discount:issue", nil))
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rr.Code, rr.Body.String())
	}
	var issued struct {
		Discount discountPayload `json:"discount"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &issued); err != nil {
		t.Fatalf("decode issued: %v", err)
	}
	if issued.Discount.Code != "GROUP-ABCD-EFGH" || issued.Discount.Type != "GROUP" {
		t.Fatalf("unexpected issued discount %+v", issued.Discount)
	}
}
