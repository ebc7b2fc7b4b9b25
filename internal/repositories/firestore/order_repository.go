package firestore

import (
	"context"
	"errors"
	"fmt"
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
	ordersCollection  = "orders"
	orderLinesSubpath = "lines"
)

// OrderRepository persists assembled orders with their lines stored in a subcollection.
type OrderRepository struct {
	base *pfirestore.BaseRepository[orderDocument]
}

var _ repositories.OrderRepository = (*OrderRepository)(nil)

// NewOrderRepository constructs a Firestore-backed order repository.
func NewOrderRepository(provider *pfirestore.Provider) (*OrderRepository, error) {
	if provider == nil {
		return nil, errors.New("order repository requires firestore provider")
	}
	return &OrderRepository{
		base: pfirestore.NewBaseRepository[orderDocument](provider, ordersCollection, nil, nil),
	}, nil
}

// Save writes the order header and its lines. Lines at positions beyond the new line count but
// within previousLineCount are removed.
func (r *OrderRepository) Save(ctx context.Context, order domain.Order, previousLineCount int) error {
	if r == nil || r.base == nil {
		return errors.New("order repository not initialised")
	}
	orderID := strings.TrimSpace(order.ID)
	if orderID == "" {
		return errors.New("order id is required")
	}

	if err := r.base.Set(ctx, orderID, fromDomainOrder(order)); err != nil {
		return err
	}

	ref, err := r.base.DocumentRef(ctx, orderID)
	if err != nil {
		return err
	}
	lines := ref.Collection(orderLinesSubpath)
	for _, line := range order.Lines {
		if err := pfirestore.SetDocument(ctx, lines.Doc(lineDocID(line.Position)), fromDomainLine(line)); err != nil {
			return pfirestore.WrapError("orders.lines.set", err)
		}
	}
	for pos := len(order.Lines); pos < previousLineCount; pos++ {
		if err := pfirestore.DeleteDocument(ctx, lines.Doc(lineDocID(pos))); err != nil {
			return pfirestore.WrapError("orders.lines.delete", err)
		}
	}
	return nil
}

// FindByID loads the order and its lines.
func (r *OrderRepository) FindByID(ctx context.Context, orderID string) (domain.Order, error) {
	if r == nil || r.base == nil {
		return domain.Order{}, errors.New("order repository not initialised")
	}
	if strings.TrimSpace(orderID) == "" {
		return domain.Order{}, errors.New("order id is required")
	}
	doc, err := r.base.Get(ctx, orderID)
	if err != nil {
		return domain.Order{}, err
	}
	return r.hydrate(ctx, doc)
}

// FindByExternalID loads the order assembled for the given storefront order.
func (r *OrderRepository) FindByExternalID(ctx context.Context, externalID string) (domain.Order, error) {
	if r == nil || r.base == nil {
		return domain.Order{}, errors.New("order repository not initialised")
	}
	externalID = strings.TrimSpace(externalID)
	if externalID == "" {
		return domain.Order{}, errors.New("external id is required")
	}
	doc, err := r.base.First(ctx, func(q firestore.Query) firestore.Query {
		return q.Where("externalId", "==", externalID)
	})
	if err != nil {
		return domain.Order{}, err
	}
	return r.hydrate(ctx, doc)
}

func (r *OrderRepository) hydrate(ctx context.Context, doc pfirestore.Document[orderDocument]) (domain.Order, error) {
	order := toDomainOrder(doc.Data)
	order.ID = doc.ID
	if order.CreatedAt.IsZero() {
		order.CreatedAt = doc.CreateTime
	}

	ref, err := r.base.DocumentRef(ctx, doc.ID)
	if err != nil {
		return domain.Order{}, err
	}
	lines, err := pfirestore.DecodeAll[orderLineDocument](ctx,
		ref.Collection(orderLinesSubpath).OrderBy("position", firestore.Asc), nil, "orders.lines.query")
	if err != nil {
		return domain.Order{}, err
	}
	order.Lines = make([]domain.OrderLine, 0, len(lines))
	for _, line := range lines {
		order.Lines = append(order.Lines, toDomainLine(line.Data))
	}
	sort.SliceStable(order.Lines, func(i, j int) bool { return order.Lines[i].Position < order.Lines[j].Position })
	return order, nil
}

func lineDocID(position int) string {
	return fmt.Sprintf("%04d", position)
}

type orderDocument struct {
	ExternalID      string            `firestore:"externalId"`
	OrderNumber     string            `firestore:"orderNumber,omitempty"`
	CustomerEmail   string            `firestore:"customerEmail,omitempty"`
	UserID          string            `firestore:"userId,omitempty"`
	Status          string            `firestore:"status"`
	EventID         string            `firestore:"eventId,omitempty"`
	AttendeeID      string            `firestore:"attendeeId,omitempty"`
	LineCount       int               `firestore:"lineCount"`
	SizingID        string            `firestore:"sizingId,omitempty"`
	MeasurementID   string            `firestore:"measurementId,omitempty"`
	DiscountCodes   []string          `firestore:"discountCodes,omitempty"`
	ShippingAddress *addressDocument  `firestore:"shippingAddress,omitempty"`
	NoteAttributes  map[string]string `firestore:"noteAttributes,omitempty"`
	PlacedAt        time.Time         `firestore:"placedAt"`
	CreatedAt       time.Time         `firestore:"createdAt"`
	UpdatedAt       time.Time         `firestore:"updatedAt"`
}

type addressDocument struct {
	Name       string `firestore:"name,omitempty"`
	Line1      string `firestore:"line1"`
	Line2      string `firestore:"line2,omitempty"`
	City       string `firestore:"city"`
	State      string `firestore:"state,omitempty"`
	PostalCode string `firestore:"postalCode"`
	Country    string `firestore:"country"`
	Phone      string `firestore:"phone,omitempty"`
}

type orderLineDocument struct {
	Position     int    `firestore:"position"`
	CatalogSKU   string `firestore:"catalogSku"`
	Name         string `firestore:"name,omitempty"`
	ResolvedSKU  string `firestore:"resolvedSku,omitempty"`
	ProductID    string `firestore:"productId,omitempty"`
	ProductName  string `firestore:"productName,omitempty"`
	ProductPrice int64  `firestore:"productPrice,omitempty"`
	Price        int64  `firestore:"price"`
	Quantity     int    `firestore:"quantity"`
	Synthesized  bool   `firestore:"synthesized"`
}

func fromDomainOrder(order domain.Order) orderDocument {
	doc := orderDocument{
		ExternalID:     strings.TrimSpace(order.ExternalID),
		OrderNumber:    strings.TrimSpace(order.OrderNumber),
		CustomerEmail:  textutil.NormalizeEmail(order.CustomerEmail),
		UserID:         order.UserID,
		Status:         string(order.Status),
		EventID:        order.EventID,
		AttendeeID:     order.AttendeeID,
		LineCount:      len(order.Lines),
		SizingID:       order.Metadata.SizingID,
		MeasurementID:  order.Metadata.MeasurementID,
		DiscountCodes:  cloneStrings(order.DiscountCodes),
		NoteAttributes: textutil.NormalizeAttributes(order.NoteAttributes),
		PlacedAt:       order.PlacedAt.UTC(),
		CreatedAt:      order.CreatedAt.UTC(),
		UpdatedAt:      order.UpdatedAt.UTC(),
	}
	if addr := order.ShippingAddress; addr != nil {
		doc.ShippingAddress = &addressDocument{
			Name:       addr.Name,
			Line1:      addr.Line1,
			Line2:      addr.Line2,
			City:       addr.City,
			State:      addr.State,
			PostalCode: addr.PostalCode,
			Country:    addr.Country,
			Phone:      addr.Phone,
		}
	}
	return doc
}

func toDomainOrder(doc orderDocument) domain.Order {
	order := domain.Order{
		ExternalID:    doc.ExternalID,
		OrderNumber:   doc.OrderNumber,
		CustomerEmail: doc.CustomerEmail,
		UserID:        doc.UserID,
		Status:        domain.OrderStatus(doc.Status),
		EventID:       doc.EventID,
		AttendeeID:    doc.AttendeeID,
		Metadata: domain.OrderMetadata{
			SizingID:      doc.SizingID,
			MeasurementID: doc.MeasurementID,
		},
		DiscountCodes:  cloneStrings(doc.DiscountCodes),
		NoteAttributes: textutil.NormalizeAttributes(doc.NoteAttributes),
		PlacedAt:       doc.PlacedAt,
		CreatedAt:      doc.CreatedAt,
		UpdatedAt:      doc.UpdatedAt,
	}
	if addr := doc.ShippingAddress; addr != nil {
		order.ShippingAddress = &domain.Address{
			Name:       addr.Name,
			Line1:      addr.Line1,
			Line2:      addr.Line2,
			City:       addr.City,
			State:      addr.State,
			PostalCode: addr.PostalCode,
			Country:    addr.Country,
			Phone:      addr.Phone,
		}
	}
	return order
}

func fromDomainLine(line domain.OrderLine) orderLineDocument {
	doc := orderLineDocument{
		Position:    line.Position,
		CatalogSKU:  line.CatalogSKU,
		Name:        line.Name,
		ResolvedSKU: line.ResolvedSKU,
		Price:       line.Price,
		Quantity:    line.Quantity,
		Synthesized: line.Synthesized,
	}
	if line.Product != nil {
		doc.ProductID = line.Product.ID
		doc.ProductName = line.Product.Name
		doc.ProductPrice = line.Product.Price
	}
	return doc
}

func toDomainLine(doc orderLineDocument) domain.OrderLine {
	line := domain.OrderLine{
		Position:    doc.Position,
		CatalogSKU:  doc.CatalogSKU,
		Name:        doc.Name,
		ResolvedSKU: doc.ResolvedSKU,
		Price:       doc.Price,
		Quantity:    doc.Quantity,
		Synthesized: doc.Synthesized,
	}
	if doc.ProductID != "" {
		line.Product = &domain.Product{
			ID:    doc.ProductID,
			SKU:   doc.ResolvedSKU,
			Name:  doc.ProductName,
			Price: doc.ProductPrice,
		}
	}
	return line
}

func cloneStrings(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	out := make([]string, len(values))
	copy(out, values)
	return out
}
