package firestore

import (
	"context"
	"errors"
	"strings"
	"time"

	domain "github.com/suitline/fulfillment/internal/domain"
	pfirestore "github.com/suitline/fulfillment/internal/platform/firestore"
	"github.com/suitline/fulfillment/internal/repositories"
)

const productsCollection = "products"

// ProductRepository stores warehouse products keyed by their resolved SKU.
type ProductRepository struct {
	base *pfirestore.BaseRepository[productDocument]
}

var _ repositories.ProductRepository = (*ProductRepository)(nil)

// NewProductRepository constructs a Firestore-backed product repository.
func NewProductRepository(provider *pfirestore.Provider) (*ProductRepository, error) {
	if provider == nil {
		return nil, errors.New("product repository requires firestore provider")
	}
	return &ProductRepository{
		base: pfirestore.NewBaseRepository[productDocument](provider, productsCollection, nil, nil),
	}, nil
}

// GetProductBySKU loads the product registered for the SKU.
func (r *ProductRepository) GetProductBySKU(ctx context.Context, sku string) (domain.Product, error) {
	if r == nil || r.base == nil {
		return domain.Product{}, errors.New("product repository not initialised")
	}
	sku = strings.TrimSpace(sku)
	if sku == "" {
		return domain.Product{}, errors.New("product sku is required")
	}
	doc, err := r.base.Get(ctx, sku)
	if err != nil {
		return domain.Product{}, err
	}
	return toDomainProduct(doc), nil
}

// CreateProduct registers the product. When another writer registered the SKU first, the stored
// product is returned instead.
func (r *ProductRepository) CreateProduct(ctx context.Context, product domain.Product) (domain.Product, error) {
	if r == nil || r.base == nil {
		return domain.Product{}, errors.New("product repository not initialised")
	}
	sku := strings.TrimSpace(product.SKU)
	if sku == "" {
		return domain.Product{}, errors.New("product sku is required")
	}
	if product.CreatedAt.IsZero() {
		product.CreatedAt = time.Now()
	}

	err := r.base.Create(ctx, sku, productDocument{
		ProductID: product.ID,
		SKU:       sku,
		Name:      strings.TrimSpace(product.Name),
		Price:     product.Price,
		CreatedAt: product.CreatedAt.UTC(),
	})
	if err != nil {
		var repoErr repositories.RepositoryError
		if errors.As(err, &repoErr) && repoErr.IsConflict() {
			return r.GetProductBySKU(ctx, sku)
		}
		return domain.Product{}, err
	}
	product.SKU = sku
	product.CreatedAt = product.CreatedAt.UTC()
	return product, nil
}

type productDocument struct {
	ProductID string    `firestore:"productId"`
	SKU       string    `firestore:"sku"`
	Name      string    `firestore:"name"`
	Price     int64     `firestore:"price"`
	CreatedAt time.Time `firestore:"createdAt"`
}

func toDomainProduct(doc pfirestore.Document[productDocument]) domain.Product {
	product := domain.Product{
		ID:        doc.Data.ProductID,
		SKU:       doc.Data.SKU,
		Name:      doc.Data.Name,
		Price:     doc.Data.Price,
		CreatedAt: doc.Data.CreatedAt,
	}
	if product.SKU == "" {
		product.SKU = doc.ID
	}
	if product.CreatedAt.IsZero() {
		product.CreatedAt = doc.CreateTime
	}
	return product
}
