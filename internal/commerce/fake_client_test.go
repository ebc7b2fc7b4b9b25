package commerce

import (
	"context"
	"errors"
	"testing"

	domain "github.com/suitline/fulfillment/internal/domain"
)

func TestFakeClientVariantLifecycle(t *testing.T) {
	ctx := context.Background()
	client := NewFakeClient(nil, domain.CatalogVariant{SKU: "001A2BLK42R", Price: 39900})

	variant, err := client.GetVariantBySKU(ctx, " 001A2BLK42R ")
	if err != nil {
		t.Fatalf("get variant: %v", err)
	}
	if variant.ProductID != "001A2BLK42R" || variant.VariantID != "var_001A2BLK42R" {
		t.Fatalf("expected default ids, got %+v", variant)
	}

	if err := client.ArchiveProduct(ctx, variant.ProductID); err != nil {
		t.Fatalf("archive: %v", err)
	}
	if !client.Archived(variant.ProductID) {
		t.Fatalf("expected product archived")
	}

	if err := client.DeleteProduct(ctx, variant.ProductID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := client.GetVariantBySKU(ctx, "001A2BLK42R"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected deleted product to be missing, got %v", err)
	}
	if err := client.ArchiveProduct(ctx, "unknown"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found for unknown product, got %v", err)
	}
}

func TestFakeClientDiscountCodes(t *testing.T) {
	ctx := context.Background()
	client := NewFakeClient(nil)

	product, err := client.CreateDiscountProduct(ctx, DiscountProductRequest{SKU: "DSC-evt-1", Title: "Gift", Price: 5000, Currency: "usd"})
	if err != nil {
		t.Fatalf("create product: %v", err)
	}
	if product.Currency != "USD" || product.Price != 5000 {
		t.Fatalf("unexpected product %+v", product)
	}

	code, err := client.CreateDiscountCode(ctx, DiscountCodeRequest{Code: "GIFT-AAAA-BBBB", Amount: 5000, ProductIDs: []string{product.ProductID}})
	if err != nil {
		t.Fatalf("create code: %v", err)
	}
	if req, ok := client.IssuedCode(code); !ok || req.Amount != 5000 {
		t.Fatalf("expected issued code recorded, got %+v", req)
	}
	if _, err := client.CreateDiscountCode(ctx, DiscountCodeRequest{Code: "GIFT-AAAA-BBBB", Amount: 5000}); !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("expected duplicate code rejected, got %v", err)
	}
	if _, err := client.CreateDiscountCode(ctx, DiscountCodeRequest{Code: "GIFT-CCCC-DDDD"}); !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("expected zero amount rejected, got %v", err)
	}
}
