package repositories

import (
	"context"
	"time"

	domain "github.com/suitline/fulfillment/internal/domain"
)

// Registry exposes constructors for all repository implementations used by the service layer.
type Registry interface {
	Orders() OrderRepository
	Products() ProductRepository
	Users() UserRepository
	Sizings() SizingRepository
	Measurements() MeasurementRepository
	Events() EventRepository
	Attendees() AttendeeRepository
	Looks() LookRepository
	Discounts() DiscountRepository
	UnitOfWork
}

// RepositoryError wraps low-level persistence failures with categorisation used by services.
type RepositoryError interface {
	error
	IsNotFound() bool
	IsConflict() bool
	IsUnavailable() bool
}

// UnitOfWork allows grouping repository operations in a transactional boundary when supported.
// Writes issued with the context passed to fn are committed atomically.
type UnitOfWork interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// OrderRepository persists assembled orders together with their line items.
type OrderRepository interface {
	// Save writes the order and replaces its line items. previousLineCount lets implementations
	// remove lines left over from an earlier assembly of the same order.
	Save(ctx context.Context, order domain.Order, previousLineCount int) error
	FindByID(ctx context.Context, orderID string) (domain.Order, error)
	// FindByExternalID returns a RepositoryError with IsNotFound when no order was assembled
	// for the storefront order yet.
	FindByExternalID(ctx context.Context, externalID string) (domain.Order, error)
}

// ProductRepository stores warehouse products keyed by resolved SKU.
type ProductRepository interface {
	GetProductBySKU(ctx context.Context, sku string) (domain.Product, error)
	CreateProduct(ctx context.Context, product domain.Product) (domain.Product, error)
}

// UserRepository looks up customers by contact details.
type UserRepository interface {
	FindByEmail(ctx context.Context, email string) (domain.User, error)
}

// SizingRepository reads append-only sizing snapshots.
type SizingRepository interface {
	LatestForUser(ctx context.Context, userID string) (domain.SizingRecord, error)
}

// MeasurementRepository reads append-only measurement snapshots.
type MeasurementRepository interface {
	LatestForUser(ctx context.Context, userID string) (domain.MeasurementRecord, error)
	LatestForEmail(ctx context.Context, email string) (domain.MeasurementRecord, error)
}

// EventRepository persists events.
type EventRepository interface {
	FindByID(ctx context.Context, eventID string) (domain.Event, error)
}

// AttendeeRepository persists event attendees.
type AttendeeRepository interface {
	FindByID(ctx context.Context, attendeeID string) (domain.Attendee, error)
	ListByEvent(ctx context.Context, eventID string) ([]domain.Attendee, error)
	FindByEventAndEmail(ctx context.Context, eventID, email string) (domain.Attendee, error)
	MarkPaid(ctx context.Context, attendeeID string, paidAt time.Time) error
}

// LookRepository reads priced looks.
type LookRepository interface {
	FindByID(ctx context.Context, lookID string) (domain.Look, error)
}

// DiscountFilter narrows discount listings. Empty fields are ignored.
type DiscountFilter struct {
	EventID     string
	AttendeeIDs []string
	ProductSKU  string
	Type        domain.DiscountType
	Issued      *bool
	Used        *bool
}

// DiscountRepository persists discount intents and issued discounts.
type DiscountRepository interface {
	Insert(ctx context.Context, discount domain.Discount) error
	Update(ctx context.Context, discount domain.Discount) error
	Delete(ctx context.Context, discountID string) error
	List(ctx context.Context, filter DiscountFilter) ([]domain.Discount, error)
	FindByCodes(ctx context.Context, codes []string) ([]domain.Discount, error)
}
