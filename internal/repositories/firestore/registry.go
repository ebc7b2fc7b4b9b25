package firestore

import (
	"errors"
	"fmt"

	pfirestore "github.com/suitline/fulfillment/internal/platform/firestore"
	"github.com/suitline/fulfillment/internal/repositories"
)

// Registry wires every Firestore repository to a single provider and unit of work.
type Registry struct {
	*pfirestore.UnitOfWork

	orders       *OrderRepository
	products     *ProductRepository
	users        *UserRepository
	sizings      *SizingRepository
	measurements *MeasurementRepository
	events       *EventRepository
	attendees    *AttendeeRepository
	looks        *LookRepository
	discounts    *DiscountRepository
}

var _ repositories.Registry = (*Registry)(nil)

// NewRegistry constructs all repositories backed by the provider.
func NewRegistry(provider *pfirestore.Provider, txOpts ...pfirestore.TxOption) (*Registry, error) {
	if provider == nil {
		return nil, errors.New("repository registry requires firestore provider")
	}

	reg := &Registry{UnitOfWork: pfirestore.NewUnitOfWork(provider, txOpts...)}
	var err error
	if reg.orders, err = NewOrderRepository(provider); err != nil {
		return nil, fmt.Errorf("orders: %w", err)
	}
	if reg.products, err = NewProductRepository(provider); err != nil {
		return nil, fmt.Errorf("products: %w", err)
	}
	if reg.users, err = NewUserRepository(provider); err != nil {
		return nil, fmt.Errorf("users: %w", err)
	}
	if reg.sizings, err = NewSizingRepository(provider); err != nil {
		return nil, fmt.Errorf("sizings: %w", err)
	}
	if reg.measurements, err = NewMeasurementRepository(provider); err != nil {
		return nil, fmt.Errorf("measurements: %w", err)
	}
	if reg.events, err = NewEventRepository(provider); err != nil {
		return nil, fmt.Errorf("events: %w", err)
	}
	if reg.attendees, err = NewAttendeeRepository(provider); err != nil {
		return nil, fmt.Errorf("attendees: %w", err)
	}
	if reg.looks, err = NewLookRepository(provider); err != nil {
		return nil, fmt.Errorf("looks: %w", err)
	}
	if reg.discounts, err = NewDiscountRepository(provider); err != nil {
		return nil, fmt.Errorf("discounts: %w", err)
	}
	return reg, nil
}

func (r *Registry) Orders() repositories.OrderRepository             { return r.orders }
func (r *Registry) Products() repositories.ProductRepository         { return r.products }
func (r *Registry) Users() repositories.UserRepository               { return r.users }
func (r *Registry) Sizings() repositories.SizingRepository           { return r.sizings }
func (r *Registry) Measurements() repositories.MeasurementRepository { return r.measurements }
func (r *Registry) Events() repositories.EventRepository             { return r.events }
func (r *Registry) Attendees() repositories.AttendeeRepository       { return r.attendees }
func (r *Registry) Looks() repositories.LookRepository               { return r.looks }
func (r *Registry) Discounts() repositories.DiscountRepository       { return r.discounts }
