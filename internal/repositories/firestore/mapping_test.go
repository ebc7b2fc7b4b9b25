package firestore

import (
	"testing"
	"time"

	domain "github.com/suitline/fulfillment/internal/domain"
	pfirestore "github.com/suitline/fulfillment/internal/platform/firestore"
)

func TestChunkStrings(t *testing.T) {
	values := make([]string, 65)
	for i := range values {
		values[i] = string(rune('a' + i%26))
	}
	chunks := chunkStrings(values, maxInFilterValues)
	if len(chunks) != 3 {
		t.Fatalf("expected 3 chunks, got %d", len(chunks))
	}
	if len(chunks[0]) != 30 || len(chunks[1]) != 30 || len(chunks[2]) != 5 {
		t.Fatalf("unexpected chunk sizes %d/%d/%d", len(chunks[0]), len(chunks[1]), len(chunks[2]))
	}
	if chunkStrings(nil, maxInFilterValues) != nil {
		t.Fatalf("expected no chunks for empty input")
	}
}

func TestOrderDocumentRoundTripKeepsProductSnapshot(t *testing.T) {
	placed := time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC)
	order := domain.Order{
		ExternalID:    " 1001 ",
		CustomerEmail: "Groom@Example.com ",
		Status:        domain.OrderStatusPendingMeasurements,
		Metadata:      domain.OrderMetadata{SizingID: "sz_1"},
		ShippingAddress: &domain.Address{
			Line1: "1 Main St", City: "Austin", PostalCode: "78701", Country: "US",
		},
		PlacedAt: placed,
	}
	doc := fromDomainOrder(order)
	if doc.ExternalID != "1001" || doc.CustomerEmail != "groom@example.com" {
		t.Fatalf("expected normalised identifiers, got %+v", doc)
	}

	restored := toDomainOrder(doc)
	if restored.Metadata.SizingID != "sz_1" || restored.ShippingAddress == nil || restored.ShippingAddress.City != "Austin" {
		t.Fatalf("unexpected restored order %+v", restored)
	}

	line := domain.OrderLine{
		Position:    2,
		CatalogSKU:  "801A",
		ResolvedSKU: "801A10",
		Product:     &domain.Product{ID: "prd_9", Name: "Oxford", Price: 12000},
		Quantity:    1,
	}
	back := toDomainLine(fromDomainLine(line))
	if back.Product == nil || back.Product.ID != "prd_9" || back.Product.SKU != "801A10" {
		t.Fatalf("expected product snapshot, got %+v", back.Product)
	}
	if lineDocID(2) != "0002" {
		t.Fatalf("unexpected line doc id %s", lineDocID(2))
	}
}

func TestDiscountDocumentTracksIssuedFlag(t *testing.T) {
	doc := fromDomainDiscount(domain.Discount{ID: "dsc_1", Type: domain.DiscountTypeGift, Amount: 100})
	if doc.Issued {
		t.Fatalf("expected un-coded intent to be unissued")
	}
	doc = fromDomainDiscount(domain.Discount{ID: "dsc_1", Code: "GIFT-AAAA-BBBB"})
	if !doc.Issued {
		t.Fatalf("expected coded discount to be issued")
	}

	early := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	out := toDomainDiscounts([]pfirestore.Document[discountDocument]{
		{ID: "b", Data: discountDocument{CreatedAt: early.Add(time.Hour)}},
		{ID: "a", Data: discountDocument{CreatedAt: early}},
	})
	if out[0].ID != "a" || out[1].ID != "b" {
		t.Fatalf("expected oldest first, got %s,%s", out[0].ID, out[1].ID)
	}
}
