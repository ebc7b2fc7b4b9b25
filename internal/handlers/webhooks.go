package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	domain "github.com/suitline/fulfillment/internal/domain"
	"github.com/suitline/fulfillment/internal/platform/httpx"
	"github.com/suitline/fulfillment/internal/services"
)

const maxWebhookBodySize = 512 * 1024

// WebhookHandlers receives storefront notifications. Signature checks run in middleware.
type WebhookHandlers struct {
	assembler services.OrderAssembler
}

// NewWebhookHandlers constructs the storefront webhook handlers.
func NewWebhookHandlers(assembler services.OrderAssembler) *WebhookHandlers {
	return &WebhookHandlers{assembler: assembler}
}

// Routes registers the /webhooks endpoints.
func (h *WebhookHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Post("/orders/paid", h.orderPaid)
}

func (h *WebhookHandlers) orderPaid(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.assembler == nil {
		httpx.WriteError(ctx, w, httpx.NewError("assembler_unavailable", "order assembly unavailable", http.StatusServiceUnavailable))
		return
	}

	var event domain.OrderPaidEvent
	if !decodeRequest(w, r, maxWebhookBodySize, &event) {
		return
	}

	order, err := h.assembler.Assemble(ctx, event)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, orderResponse{Order: buildOrderPayload(order)})
}

type orderResponse struct {
	Order orderPayload `json:"order"`
}

type orderPayload struct {
	ID          string             `json:"id"`
	ExternalID  string             `json:"externalId"`
	OrderNumber string             `json:"orderNumber,omitempty"`
	Status      string             `json:"status"`
	EventID     string             `json:"eventId,omitempty"`
	AttendeeID  string             `json:"attendeeId,omitempty"`
	Lines       []orderLinePayload `json:"lines"`
	PlacedAt    string             `json:"placedAt,omitempty"`
	UpdatedAt   string             `json:"updatedAt,omitempty"`
}

type orderLinePayload struct {
	Position    int    `json:"position"`
	CatalogSKU  string `json:"catalogSku"`
	ResolvedSKU string `json:"resolvedSku,omitempty"`
	ProductID   string `json:"productId,omitempty"`
	Quantity    int    `json:"quantity"`
	Synthesized bool   `json:"synthesized,omitempty"`
	Resolved    bool   `json:"resolved"`
}

func buildOrderPayload(order domain.Order) orderPayload {
	payload := orderPayload{
		ID:          order.ID,
		ExternalID:  order.ExternalID,
		OrderNumber: order.OrderNumber,
		Status:      string(order.Status),
		EventID:     order.EventID,
		AttendeeID:  order.AttendeeID,
		Lines:       make([]orderLinePayload, 0, len(order.Lines)),
		PlacedAt:    formatTime(order.PlacedAt),
		UpdatedAt:   formatTime(order.UpdatedAt),
	}
	for _, line := range order.Lines {
		item := orderLinePayload{
			Position:    line.Position,
			CatalogSKU:  line.CatalogSKU,
			ResolvedSKU: line.ResolvedSKU,
			Quantity:    line.Quantity,
			Synthesized: line.Synthesized,
			Resolved:    line.Resolved(),
		}
		if line.Product != nil {
			item.ProductID = line.Product.ID
		}
		payload.Lines = append(payload.Lines, item)
	}
	return payload
}
