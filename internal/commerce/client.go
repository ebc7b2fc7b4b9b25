package commerce

import (
	"context"
	"errors"

	domain "github.com/suitline/fulfillment/internal/domain"
)

var (
	// ErrNotFound indicates the platform has no product or variant for the requested identifier.
	ErrNotFound = errors.New("commerce: not found")
	// ErrInvalidRequest indicates the request was rejected before reaching the platform.
	ErrInvalidRequest = errors.New("commerce: invalid request")
)

// Logger receives structured log events from commerce clients.
type Logger func(ctx context.Context, event string, fields map[string]any)

// Client is the commerce platform capability consumed by the fulfillment services. Reads
// are used while resolving orders; writes are used by the discount allocator.
type Client interface {
	GetVariantBySKU(ctx context.Context, sku string) (domain.CatalogVariant, error)
	CreateDiscountCode(ctx context.Context, req DiscountCodeRequest) (string, error)
	CreateDiscountProduct(ctx context.Context, req DiscountProductRequest) (domain.CatalogVariant, error)
	ArchiveProduct(ctx context.Context, productID string) error
	DeleteProduct(ctx context.Context, productID string) error
}

// DiscountCodeRequest describes a single-use fixed amount code.
type DiscountCodeRequest struct {
	Code         string
	Title        string
	Amount       int64
	Currency     string
	MinimumOrder int64
	// ProductIDs restricts the code to the listed products (the attendee's look bundle).
	ProductIDs []string
	Metadata   map[string]string
}

// DiscountProductRequest describes the virtual product attendees' gifters purchase at checkout.
type DiscountProductRequest struct {
	SKU      string
	Title    string
	Price    int64
	Currency string
	Metadata map[string]string
}

func noopLogger(context.Context, string, map[string]any) {}
