package domain

import "time"

// OrderStatus reflects whether an order can ship or is waiting on information.
type OrderStatus string

const (
	OrderStatusReady               OrderStatus = "READY"
	OrderStatusPendingMeasurements OrderStatus = "PENDING_MEASUREMENTS"
	OrderStatusPendingMissingSKU   OrderStatus = "PENDING_MISSING_SKU"
)

// EventNoteAttribute links a storefront order to an event when present in note attributes.
const EventNoteAttribute = "__event_id"

// DiscountProductSKUPrefix marks the virtual products used to sell event discounts.
const DiscountProductSKUPrefix = "DSC-"

// Order is the persisted aggregate produced from an inbound paid order.
type Order struct {
	ID              string
	ExternalID      string
	OrderNumber     string
	CustomerEmail   string
	UserID          string
	Status          OrderStatus
	EventID         string
	AttendeeID      string
	Lines           []OrderLine
	Metadata        OrderMetadata
	DiscountCodes   []string
	ShippingAddress *Address
	NoteAttributes  map[string]string
	PlacedAt        time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// OrderMetadata records the sizing inputs used, enabling audit and reprocessing.
type OrderMetadata struct {
	SizingID      string
	MeasurementID string
}

// OrderLine is a purchased (or synthesized) line item.
type OrderLine struct {
	Position    int
	CatalogSKU  string
	Name        string
	ResolvedSKU string
	Product     *Product
	Price       int64
	Quantity    int
	Synthesized bool
}

// Resolved reports whether the line is linked to a warehouse product or passes through unchanged.
func (l OrderLine) Resolved() bool {
	if l.Product != nil {
		return true
	}
	switch CategoryOf(l.CatalogSKU) {
	case CategorySuit, CategoryUnknown:
		return l.ResolvedSKU != ""
	}
	return false
}

// Address captures the shipping destination forwarded with the order.
type Address struct {
	Name       string
	Line1      string
	Line2      string
	City       string
	State      string
	PostalCode string
	Country    string
	Phone      string
}

// OrderPaidEvent is the inbound notification emitted by the storefront when an order is paid.
type OrderPaidEvent struct {
	OrderID         string            `json:"orderId" validate:"required"`
	OrderNumber     string            `json:"orderNumber"`
	CustomerEmail   string            `json:"customerEmail" validate:"omitempty,email"`
	CreatedAt       time.Time         `json:"createdAt"`
	LineItems       []OrderPaidLine   `json:"lineItems" validate:"required,min=1,dive"`
	ShippingAddress *Address          `json:"shippingAddress"`
	NoteAttributes  map[string]string `json:"noteAttributes"`
	DiscountCodes   []string          `json:"discountCodes"`
}

// OrderPaidLine is a single purchased item within an OrderPaidEvent.
type OrderPaidLine struct {
	SKU       string `json:"sku"`
	Name      string `json:"name"`
	Price     int64  `json:"price" validate:"gte=0"`
	Quantity  int    `json:"quantity" validate:"gte=1"`
	ProductID string `json:"productId"`
	VariantID string `json:"variantId"`
}

// EventID returns the event reference carried in note attributes, if any.
func (e OrderPaidEvent) EventID() string {
	if e.NoteAttributes == nil {
		return ""
	}
	return e.NoteAttributes[EventNoteAttribute]
}
