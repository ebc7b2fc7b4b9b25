package commerce

import (
	"context"
	"fmt"
	"strings"
	"sync"

	domain "github.com/suitline/fulfillment/internal/domain"
)

// FakeClient is an in-memory Client for local development and tests. It never
// talks to the network.
type FakeClient struct {
	mu       sync.Mutex
	variants map[string]domain.CatalogVariant
	archived map[string]bool
	deleted  map[string]bool
	codes    map[string]DiscountCodeRequest
	logger   Logger
}

var _ Client = (*FakeClient)(nil)

// NewFakeClient seeds the fake catalog with the provided variants keyed by SKU.
func NewFakeClient(logger Logger, variants ...domain.CatalogVariant) *FakeClient {
	if logger == nil {
		logger = noopLogger
	}
	c := &FakeClient{
		variants: make(map[string]domain.CatalogVariant, len(variants)),
		archived: make(map[string]bool),
		deleted:  make(map[string]bool),
		codes:    make(map[string]DiscountCodeRequest),
		logger:   logger,
	}
	for _, variant := range variants {
		c.AddVariant(variant)
	}
	return c
}

// AddVariant registers or replaces a catalog variant.
func (c *FakeClient) AddVariant(variant domain.CatalogVariant) {
	sku := strings.TrimSpace(variant.SKU)
	if sku == "" {
		return
	}
	if variant.ProductID == "" {
		variant.ProductID = sku
	}
	if variant.VariantID == "" {
		variant.VariantID = "var_" + sku
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.variants[sku] = variant
}

// GetVariantBySKU implements Client.
func (c *FakeClient) GetVariantBySKU(_ context.Context, sku string) (domain.CatalogVariant, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	variant, ok := c.variants[strings.TrimSpace(sku)]
	if !ok || c.deleted[variant.ProductID] {
		return domain.CatalogVariant{}, fmt.Errorf("%w: sku %s", ErrNotFound, sku)
	}
	return variant, nil
}

// CreateDiscountProduct implements Client.
func (c *FakeClient) CreateDiscountProduct(ctx context.Context, req DiscountProductRequest) (domain.CatalogVariant, error) {
	sku := strings.TrimSpace(req.SKU)
	if sku == "" {
		return domain.CatalogVariant{}, fmt.Errorf("%w: discount product sku is required", ErrInvalidRequest)
	}
	variant := domain.CatalogVariant{
		ProductID:    sku,
		VariantID:    "var_" + sku,
		SKU:          sku,
		ProductTitle: req.Title,
		Price:        req.Price,
		Currency:     strings.ToUpper(req.Currency),
	}
	c.mu.Lock()
	c.variants[sku] = variant
	c.mu.Unlock()
	c.logger(ctx, "commerce.fake.discount_product.created", map[string]any{"sku": sku})
	return variant, nil
}

// CreateDiscountCode implements Client.
func (c *FakeClient) CreateDiscountCode(ctx context.Context, req DiscountCodeRequest) (string, error) {
	code := strings.TrimSpace(req.Code)
	if code == "" || req.Amount <= 0 {
		return "", fmt.Errorf("%w: code and positive amount are required", ErrInvalidRequest)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.codes[code]; exists {
		return "", fmt.Errorf("%w: code %s already exists", ErrInvalidRequest, code)
	}
	c.codes[code] = req
	c.logger(ctx, "commerce.fake.discount_code.created", map[string]any{"amount": req.Amount})
	return code, nil
}

// ArchiveProduct implements Client.
func (c *FakeClient) ArchiveProduct(_ context.Context, productID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.hasProduct(productID) {
		return fmt.Errorf("%w: product %s", ErrNotFound, productID)
	}
	c.archived[productID] = true
	return nil
}

// DeleteProduct implements Client.
func (c *FakeClient) DeleteProduct(_ context.Context, productID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.hasProduct(productID) {
		return fmt.Errorf("%w: product %s", ErrNotFound, productID)
	}
	c.deleted[productID] = true
	return nil
}

// Archived reports whether ArchiveProduct was called for the product.
func (c *FakeClient) Archived(productID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.archived[productID]
}

// Deleted reports whether DeleteProduct was called for the product.
func (c *FakeClient) Deleted(productID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.deleted[productID]
}

// IssuedCode returns the request recorded for an issued code.
func (c *FakeClient) IssuedCode(code string) (DiscountCodeRequest, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	req, ok := c.codes[code]
	return req, ok
}

func (c *FakeClient) hasProduct(productID string) bool {
	for _, variant := range c.variants {
		if variant.ProductID == productID {
			return true
		}
	}
	return false
}
