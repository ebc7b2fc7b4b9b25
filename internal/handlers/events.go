package handlers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	domain "github.com/suitline/fulfillment/internal/domain"
	"github.com/suitline/fulfillment/internal/platform/httpx"
	"github.com/suitline/fulfillment/internal/services"
)

const maxDiscountIntentBodySize = 64 * 1024

// EventHandlers exposes event-scoped discount endpoints.
type EventHandlers struct {
	discounts services.DiscountService
}

// NewEventHandlers constructs the event discount handlers.
func NewEventHandlers(discounts services.DiscountService) *EventHandlers {
	return &EventHandlers{discounts: discounts}
}

// Routes registers the /events endpoints.
func (h *EventHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Post("/{eventId}/discount-intents", h.createIntents)
	r.Get("/{eventId}/attendees/{attendeeId}/group-discount", h.groupDiscount)
	r.Post("/{eventId}/attendees/{attendeeId}/group-discount:issue", h.issueGroupDiscount)
}

type createIntentsRequest struct {
	Intents []intentRequest `json:"intents" validate:"required,min=1,dive"`
}

type intentRequest struct {
	AttendeeID string `json:"attendeeId" validate:"required"`
	Amount     int64  `json:"amount" validate:"gt=0"`
}

func (h *EventHandlers) createIntents(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.discounts == nil {
		httpx.WriteError(ctx, w, httpx.NewError("discount_service_unavailable", "discount service unavailable", http.StatusServiceUnavailable))
		return
	}

	var req createIntentsRequest
	if !decodeRequest(w, r, maxDiscountIntentBodySize, &req) {
		return
	}

	cmd := services.CreateDiscountIntentsCommand{
		EventID: strings.TrimSpace(chi.URLParam(r, "eventId")),
		Intents: make([]services.DiscountIntentInput, 0, len(req.Intents)),
	}
	for _, intent := range req.Intents {
		cmd.Intents = append(cmd.Intents, services.DiscountIntentInput{
			AttendeeID: strings.TrimSpace(intent.AttendeeID),
			Amount:     intent.Amount,
		})
	}

	batch, err := h.discounts.CreateIntents(ctx, cmd)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}

	resp := discountBatchPayload{
		EventID:   batch.EventID,
		ProductID: batch.ProductID,
		SKU:       batch.SKU,
		VariantID: batch.VariantID,
		Total:     batch.Total,
		Intents:   make([]discountPayload, 0, len(batch.Intents)),
	}
	for _, intent := range batch.Intents {
		resp.Intents = append(resp.Intents, buildDiscountPayload(intent))
	}
	httpx.WriteJSON(w, http.StatusCreated, resp)
}

func (h *EventHandlers) groupDiscount(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.discounts == nil {
		httpx.WriteError(ctx, w, httpx.NewError("discount_service_unavailable", "discount service unavailable", http.StatusServiceUnavailable))
		return
	}

	offer, err := h.discounts.GroupDiscount(ctx,
		strings.TrimSpace(chi.URLParam(r, "eventId")),
		strings.TrimSpace(chi.URLParam(r, "attendeeId")),
	)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, groupOfferPayload{
		EventID:      offer.EventID,
		AttendeeID:   offer.AttendeeID,
		Amount:       offer.Amount,
		MinimumOrder: offer.MinimumOrder,
	})
}

func (h *EventHandlers) issueGroupDiscount(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.discounts == nil {
		httpx.WriteError(ctx, w, httpx.NewError("discount_service_unavailable", "discount service unavailable", http.StatusServiceUnavailable))
		return
	}

	discount, err := h.discounts.IssueGroupDiscount(ctx,
		strings.TrimSpace(chi.URLParam(r, "eventId")),
		strings.TrimSpace(chi.URLParam(r, "attendeeId")),
	)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, map[string]any{"discount": buildDiscountPayload(discount)})
}

type discountBatchPayload struct {
	EventID   string            `json:"eventId"`
	ProductID string            `json:"productId"`
	SKU       string            `json:"sku"`
	VariantID string            `json:"variantId,omitempty"`
	Total     int64             `json:"total"`
	Intents   []discountPayload `json:"intents"`
}

type discountPayload struct {
	ID           string `json:"id"`
	EventID      string `json:"eventId"`
	AttendeeID   string `json:"attendeeId"`
	Type         string `json:"type"`
	Amount       int64  `json:"amount"`
	MinimumOrder int64  `json:"minimumOrder,omitempty"`
	Code         string `json:"code,omitempty"`
	Used         bool   `json:"used"`
	UsedAt       string `json:"usedAt,omitempty"`
	CreatedAt    string `json:"createdAt,omitempty"`
}

type groupOfferPayload struct {
	EventID      string `json:"eventId"`
	AttendeeID   string `json:"attendeeId"`
	Amount       int64  `json:"amount"`
	MinimumOrder int64  `json:"minimumOrder"`
}

func buildDiscountPayload(d domain.Discount) discountPayload {
	return discountPayload{
		ID:           d.ID,
		EventID:      d.EventID,
		AttendeeID:   d.AttendeeID,
		Type:         string(d.Type),
		Amount:       d.Amount,
		MinimumOrder: d.MinimumOrder,
		Code:         d.Code,
		Used:         d.Used,
		UsedAt:       formatTimePtr(d.UsedAt),
		CreatedAt:    formatTime(d.CreatedAt),
	}
}
