package services

import (
	"context"
	"time"

	domain "github.com/suitline/fulfillment/internal/domain"
)

// OrderAssembler turns a paid storefront order into a persisted fulfillment order.
type OrderAssembler interface {
	Assemble(ctx context.Context, event domain.OrderPaidEvent) (domain.Order, error)
}

// DiscountService allocates gift and group credits for event attendees.
type DiscountService interface {
	CreateIntents(ctx context.Context, cmd CreateDiscountIntentsCommand) (DiscountIntentBatch, error)
	RedeemForOrder(ctx context.Context, productSKU string, orderID string) (RedemptionResult, error)
	GroupDiscount(ctx context.Context, eventID string, attendeeID string) (domain.GroupDiscountOffer, error)
	IssueGroupDiscount(ctx context.Context, eventID string, attendeeID string) (domain.Discount, error)
	MarkUsed(ctx context.Context, codes []string, usedAt time.Time) error
}

// CreateDiscountIntentsCommand carries the gift amounts a buyer wants to fund for attendees.
type CreateDiscountIntentsCommand struct {
	EventID string
	Intents []DiscountIntentInput
}

// DiscountIntentInput is a single attendee allocation in minor units.
type DiscountIntentInput struct {
	AttendeeID string
	Amount     int64
}

// DiscountIntentBatch describes the virtual product created for a batch of intents.
type DiscountIntentBatch struct {
	EventID   string
	ProductID string
	SKU       string
	VariantID string
	Total     int64
	Intents   []domain.Discount
}

// RedemptionResult reports per-intent outcomes of a discount redemption.
type RedemptionResult struct {
	Issued []domain.Discount
	Failed []RedemptionFailure
}

// RedemptionFailure records an intent that stayed un-coded and can be retried.
type RedemptionFailure struct {
	DiscountID string
	AttendeeID string
	Err        error
}

// OrderEventPublisher publishes order domain events for downstream consumers.
type OrderEventPublisher interface {
	PublishOrderEvent(ctx context.Context, event OrderEvent) error
}

// OrderEvent captures metadata for emitted order domain events.
type OrderEvent struct {
	Type          string
	OrderID       string
	ExternalID    string
	OrderNumber   string
	Status        string
	EventID       string
	AttendeeID    string
	LineCount     int
	UnresolvedSKU []string
	OccurredAt    time.Time
	Metadata      map[string]any
}

// SystemService exposes readiness reporting.
type SystemService interface {
	HealthReport(ctx context.Context) (SystemHealthReport, error)
}

// SystemHealthReport aggregates dependency status for health endpoints.
type SystemHealthReport = domain.SystemHealthReport
