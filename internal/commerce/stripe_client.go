package commerce

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/stripe/stripe-go/v78"
	"github.com/stripe/stripe-go/v78/client"

	domain "github.com/suitline/fulfillment/internal/domain"
)

type stripeProductAPI interface {
	New(params *stripe.ProductParams) (*stripe.Product, error)
	Get(id string, params *stripe.ProductParams) (*stripe.Product, error)
	Update(id string, params *stripe.ProductParams) (*stripe.Product, error)
	Del(id string, params *stripe.ProductParams) (*stripe.Product, error)
}

type stripeCouponAPI interface {
	New(params *stripe.CouponParams) (*stripe.Coupon, error)
}

type stripePromotionCodeAPI interface {
	New(params *stripe.PromotionCodeParams) (*stripe.PromotionCode, error)
}

// StripeAPIs lets callers substitute individual Stripe resource clients.
type StripeAPIs struct {
	Products       stripeProductAPI
	Coupons        stripeCouponAPI
	PromotionCodes stripePromotionCodeAPI
}

// StripeClientConfig configures the StripeClient.
type StripeClientConfig struct {
	APIKey    string
	AccountID string
	Currency  string
	Backends  *stripe.Backends
	Logger    Logger
	APIs      *StripeAPIs
}

// StripeClient implements Client on top of Stripe products, coupons, and promotion codes.
// Warehouse products are created with their SKU as the Stripe product id.
type StripeClient struct {
	api      StripeAPIs
	account  string
	currency string
	logger   Logger
}

var _ Client = (*StripeClient)(nil)

// NewStripeClient constructs a Stripe backed commerce client.
func NewStripeClient(cfg StripeClientConfig) (*StripeClient, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" && cfg.APIs == nil {
		return nil, errors.New("stripe: api key is required")
	}

	var apis StripeAPIs
	if cfg.APIs != nil {
		apis = *cfg.APIs
	} else {
		sc := client.New(apiKey, cfg.Backends)
		apis = StripeAPIs{
			Products:       sc.Products,
			Coupons:        sc.Coupons,
			PromotionCodes: sc.PromotionCodes,
		}
	}
	if apis.Products == nil || apis.Coupons == nil || apis.PromotionCodes == nil {
		return nil, errors.New("stripe: incomplete client configuration")
	}

	currency := strings.ToLower(strings.TrimSpace(cfg.Currency))
	if currency == "" {
		currency = string(stripe.CurrencyUSD)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = noopLogger
	}

	return &StripeClient{
		api:      apis,
		account:  strings.TrimSpace(cfg.AccountID),
		currency: currency,
		logger:   logger,
	}, nil
}

// GetVariantBySKU fetches the product stored under the SKU together with its default price.
func (c *StripeClient) GetVariantBySKU(ctx context.Context, sku string) (domain.CatalogVariant, error) {
	sku = strings.TrimSpace(sku)
	if sku == "" {
		return domain.CatalogVariant{}, fmt.Errorf("%w: sku is required", ErrInvalidRequest)
	}

	params := &stripe.ProductParams{}
	c.prepare(ctx, &params.Params)
	params.AddExpand("default_price")

	product, err := c.api.Products.Get(sku, params)
	if err != nil {
		return domain.CatalogVariant{}, c.wrap("get product", err)
	}
	if product.DefaultPrice == nil {
		return domain.CatalogVariant{}, fmt.Errorf("%w: product %s has no default price", ErrNotFound, sku)
	}
	return variantFromProduct(product, sku), nil
}

// CreateDiscountProduct creates the virtual product sold to fund attendee discounts.
func (c *StripeClient) CreateDiscountProduct(ctx context.Context, req DiscountProductRequest) (domain.CatalogVariant, error) {
	sku := strings.TrimSpace(req.SKU)
	if sku == "" || strings.TrimSpace(req.Title) == "" {
		return domain.CatalogVariant{}, fmt.Errorf("%w: discount product sku and title are required", ErrInvalidRequest)
	}
	if req.Price < 0 {
		return domain.CatalogVariant{}, fmt.Errorf("%w: discount product price must be >= 0", ErrInvalidRequest)
	}

	params := &stripe.ProductParams{
		ID:   stripe.String(sku),
		Name: stripe.String(req.Title),
		DefaultPriceData: &stripe.ProductDefaultPriceDataParams{
			Currency:   stripe.String(c.currencyOr(req.Currency)),
			UnitAmount: stripe.Int64(req.Price),
		},
		Metadata: copyMetadata(req.Metadata, "sku", sku),
	}
	c.prepare(ctx, &params.Params)
	params.SetIdempotencyKey("discount-product-" + sku)
	params.AddExpand("default_price")

	product, err := c.api.Products.New(params)
	if err != nil {
		return domain.CatalogVariant{}, c.wrap("create discount product", err)
	}

	c.logger(ctx, "commerce.stripe.discount_product.created", map[string]any{
		"productId": product.ID,
		"sku":       sku,
		"price":     req.Price,
	})
	return variantFromProduct(product, sku), nil
}

// CreateDiscountCode creates a single-use coupon and exposes it through a promotion code.
func (c *StripeClient) CreateDiscountCode(ctx context.Context, req DiscountCodeRequest) (string, error) {
	code := strings.TrimSpace(req.Code)
	if code == "" {
		return "", fmt.Errorf("%w: code is required", ErrInvalidRequest)
	}
	if req.Amount <= 0 {
		return "", fmt.Errorf("%w: amount must be > 0", ErrInvalidRequest)
	}
	currency := c.currencyOr(req.Currency)

	couponParams := &stripe.CouponParams{
		AmountOff:      stripe.Int64(req.Amount),
		Currency:       stripe.String(currency),
		Duration:       stripe.String(string(stripe.CouponDurationOnce)),
		MaxRedemptions: stripe.Int64(1),
		Metadata:       copyMetadata(req.Metadata, "code", code),
	}
	if title := strings.TrimSpace(req.Title); title != "" {
		couponParams.Name = stripe.String(title)
	}
	if len(req.ProductIDs) > 0 {
		couponParams.AppliesTo = &stripe.CouponAppliesToParams{
			Products: stripe.StringSlice(req.ProductIDs),
		}
	}
	c.prepare(ctx, &couponParams.Params)
	couponParams.SetIdempotencyKey("coupon-" + code)

	coupon, err := c.api.Coupons.New(couponParams)
	if err != nil {
		return "", c.wrap("create coupon", err)
	}

	promoParams := &stripe.PromotionCodeParams{
		Coupon:         stripe.String(coupon.ID),
		Code:           stripe.String(code),
		MaxRedemptions: stripe.Int64(1),
		Metadata:       copyMetadata(req.Metadata, "code", code),
	}
	if req.MinimumOrder > 0 {
		promoParams.Restrictions = &stripe.PromotionCodeRestrictionsParams{
			MinimumAmount:         stripe.Int64(req.MinimumOrder),
			MinimumAmountCurrency: stripe.String(currency),
		}
	}
	c.prepare(ctx, &promoParams.Params)
	promoParams.SetIdempotencyKey("promotion-code-" + code)

	promo, err := c.api.PromotionCodes.New(promoParams)
	if err != nil {
		return "", c.wrap("create promotion code", err)
	}

	c.logger(ctx, "commerce.stripe.discount_code.created", map[string]any{
		"couponId":        coupon.ID,
		"promotionCodeId": promo.ID,
		"amount":          req.Amount,
	})
	return promo.Code, nil
}

// ArchiveProduct deactivates the product so it can no longer be purchased.
func (c *StripeClient) ArchiveProduct(ctx context.Context, productID string) error {
	productID = strings.TrimSpace(productID)
	if productID == "" {
		return fmt.Errorf("%w: product id is required", ErrInvalidRequest)
	}
	params := &stripe.ProductParams{Active: stripe.Bool(false)}
	c.prepare(ctx, &params.Params)
	if _, err := c.api.Products.Update(productID, params); err != nil {
		return c.wrap("archive product", err)
	}
	c.logger(ctx, "commerce.stripe.product.archived", map[string]any{"productId": productID})
	return nil
}

// DeleteProduct removes a product that was never sold.
func (c *StripeClient) DeleteProduct(ctx context.Context, productID string) error {
	productID = strings.TrimSpace(productID)
	if productID == "" {
		return fmt.Errorf("%w: product id is required", ErrInvalidRequest)
	}
	params := &stripe.ProductParams{}
	c.prepare(ctx, &params.Params)
	if _, err := c.api.Products.Del(productID, params); err != nil {
		return c.wrap("delete product", err)
	}
	c.logger(ctx, "commerce.stripe.product.deleted", map[string]any{"productId": productID})
	return nil
}

func (c *StripeClient) prepare(ctx context.Context, params *stripe.Params) {
	params.Context = ctx
	if c.account != "" {
		params.SetStripeAccount(c.account)
	}
}

func (c *StripeClient) currencyOr(value string) string {
	if trimmed := strings.ToLower(strings.TrimSpace(value)); trimmed != "" {
		return trimmed
	}
	return c.currency
}

func (c *StripeClient) wrap(op string, err error) error {
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) && stripeErr.HTTPStatusCode == http.StatusNotFound {
		return fmt.Errorf("stripe: %s: %w: %v", op, ErrNotFound, err)
	}
	return fmt.Errorf("stripe: %s: %w", op, err)
}

func variantFromProduct(product *stripe.Product, sku string) domain.CatalogVariant {
	variant := domain.CatalogVariant{
		ProductID:    product.ID,
		SKU:          sku,
		ProductTitle: product.Name,
	}
	if stored := strings.TrimSpace(product.Metadata["sku"]); stored != "" {
		variant.SKU = stored
	}
	if price := product.DefaultPrice; price != nil {
		variant.VariantID = price.ID
		variant.Price = price.UnitAmount
		variant.Currency = strings.ToUpper(string(price.Currency))
	}
	return variant
}

func copyMetadata(src map[string]string, key, value string) map[string]string {
	out := make(map[string]string, len(src)+1)
	for k, v := range src {
		out[k] = v
	}
	if key != "" && value != "" {
		out[key] = value
	}
	return out
}
