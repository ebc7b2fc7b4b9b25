package firestore

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"cloud.google.com/go/firestore"

	domain "github.com/suitline/fulfillment/internal/domain"
	pfirestore "github.com/suitline/fulfillment/internal/platform/firestore"
	"github.com/suitline/fulfillment/internal/platform/textutil"
	"github.com/suitline/fulfillment/internal/repositories"
)

const (
	discountsCollection = "discounts"
	// Firestore caps "in" filters at 30 values.
	maxInFilterValues = 30
)

// DiscountRepository persists discount intents and issued codes.
type DiscountRepository struct {
	base *pfirestore.BaseRepository[discountDocument]
}

var _ repositories.DiscountRepository = (*DiscountRepository)(nil)

// NewDiscountRepository constructs a Firestore-backed discount repository.
func NewDiscountRepository(provider *pfirestore.Provider) (*DiscountRepository, error) {
	if provider == nil {
		return nil, errors.New("discount repository requires firestore provider")
	}
	return &DiscountRepository{
		base: pfirestore.NewBaseRepository[discountDocument](provider, discountsCollection, nil, nil),
	}, nil
}

// Insert creates a new discount and fails when the id is taken.
func (r *DiscountRepository) Insert(ctx context.Context, discount domain.Discount) error {
	if r == nil || r.base == nil {
		return errors.New("discount repository not initialised")
	}
	if strings.TrimSpace(discount.ID) == "" {
		return errors.New("discount id is required")
	}
	return r.base.Create(ctx, discount.ID, fromDomainDiscount(discount))
}

// Update overwrites the stored discount.
func (r *DiscountRepository) Update(ctx context.Context, discount domain.Discount) error {
	if r == nil || r.base == nil {
		return errors.New("discount repository not initialised")
	}
	if strings.TrimSpace(discount.ID) == "" {
		return errors.New("discount id is required")
	}
	return r.base.Set(ctx, discount.ID, fromDomainDiscount(discount))
}

// Delete removes the discount.
func (r *DiscountRepository) Delete(ctx context.Context, discountID string) error {
	if r == nil || r.base == nil {
		return errors.New("discount repository not initialised")
	}
	return r.base.Delete(ctx, discountID)
}

// List returns the discounts matching every non-empty filter field, oldest first.
func (r *DiscountRepository) List(ctx context.Context, filter repositories.DiscountFilter) ([]domain.Discount, error) {
	if r == nil || r.base == nil {
		return nil, errors.New("discount repository not initialised")
	}

	build := func(q firestore.Query) firestore.Query {
		if filter.EventID != "" {
			q = q.Where("eventId", "==", filter.EventID)
		}
		if filter.ProductSKU != "" {
			q = q.Where("productSku", "==", filter.ProductSKU)
		}
		if filter.Type != "" {
			q = q.Where("type", "==", string(filter.Type))
		}
		if filter.Issued != nil {
			q = q.Where("issued", "==", *filter.Issued)
		}
		if filter.Used != nil {
			q = q.Where("used", "==", *filter.Used)
		}
		return q
	}

	attendees := textutil.CompactStrings(filter.AttendeeIDs)
	if len(attendees) == 0 {
		docs, err := r.base.Query(ctx, build)
		if err != nil {
			return nil, err
		}
		return toDomainDiscounts(docs), nil
	}

	var docs []pfirestore.Document[discountDocument]
	for _, chunk := range chunkStrings(attendees, maxInFilterValues) {
		page, err := r.base.Query(ctx, func(q firestore.Query) firestore.Query {
			return build(q).Where("attendeeId", "in", chunk)
		})
		if err != nil {
			return nil, err
		}
		docs = append(docs, page...)
	}
	return toDomainDiscounts(docs), nil
}

// FindByCodes returns the discounts issued under any of the codes.
func (r *DiscountRepository) FindByCodes(ctx context.Context, codes []string) ([]domain.Discount, error) {
	if r == nil || r.base == nil {
		return nil, errors.New("discount repository not initialised")
	}
	codes = textutil.CompactStrings(codes)
	var docs []pfirestore.Document[discountDocument]
	for _, chunk := range chunkStrings(codes, maxInFilterValues) {
		page, err := r.base.Query(ctx, func(q firestore.Query) firestore.Query {
			return q.Where("code", "in", chunk)
		})
		if err != nil {
			return nil, err
		}
		docs = append(docs, page...)
	}
	return toDomainDiscounts(docs), nil
}

type discountDocument struct {
	EventID      string     `firestore:"eventId"`
	AttendeeID   string     `firestore:"attendeeId"`
	Type         string     `firestore:"type"`
	Amount       int64      `firestore:"amount"`
	MinimumOrder int64      `firestore:"minimumOrder,omitempty"`
	Code         string     `firestore:"code"`
	Issued       bool       `firestore:"issued"`
	Used         bool       `firestore:"used"`
	UsedAt       *time.Time `firestore:"usedAt,omitempty"`
	ProductID    string     `firestore:"productId,omitempty"`
	ProductSKU   string     `firestore:"productSku,omitempty"`
	VariantID    string     `firestore:"variantId,omitempty"`
	CreatedAt    time.Time  `firestore:"createdAt"`
	UpdatedAt    time.Time  `firestore:"updatedAt"`
}

func fromDomainDiscount(d domain.Discount) discountDocument {
	doc := discountDocument{
		EventID:      d.EventID,
		AttendeeID:   d.AttendeeID,
		Type:         string(d.Type),
		Amount:       d.Amount,
		MinimumOrder: d.MinimumOrder,
		Code:         d.Code,
		Issued:       d.Issued(),
		Used:         d.Used,
		ProductID:    d.ProductID,
		ProductSKU:   d.ProductSKU,
		VariantID:    d.VariantID,
		CreatedAt:    d.CreatedAt.UTC(),
		UpdatedAt:    d.UpdatedAt.UTC(),
	}
	if d.UsedAt != nil {
		usedAt := d.UsedAt.UTC()
		doc.UsedAt = &usedAt
	}
	return doc
}

func toDomainDiscounts(docs []pfirestore.Document[discountDocument]) []domain.Discount {
	out := make([]domain.Discount, 0, len(docs))
	for _, doc := range docs {
		out = append(out, domain.Discount{
			ID:           doc.ID,
			EventID:      doc.Data.EventID,
			AttendeeID:   doc.Data.AttendeeID,
			Type:         domain.DiscountType(doc.Data.Type),
			Amount:       doc.Data.Amount,
			MinimumOrder: doc.Data.MinimumOrder,
			Code:         doc.Data.Code,
			Used:         doc.Data.Used,
			UsedAt:       doc.Data.UsedAt,
			ProductID:    doc.Data.ProductID,
			ProductSKU:   doc.Data.ProductSKU,
			VariantID:    doc.Data.VariantID,
			CreatedAt:    doc.Data.CreatedAt,
			UpdatedAt:    doc.Data.UpdatedAt,
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

func chunkStrings(values []string, size int) [][]string {
	var chunks [][]string
	for start := 0; start < len(values); start += size {
		end := min(start+size, len(values))
		chunks = append(chunks, values[start:end])
	}
	return chunks
}
