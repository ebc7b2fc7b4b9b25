package services

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	domain "github.com/suitline/fulfillment/internal/domain"
	"github.com/suitline/fulfillment/internal/repositories"
)

type repoError struct {
	msg         string
	notFound    bool
	conflict    bool
	unavailable bool
}

func (e *repoError) Error() string {
	if e.msg != "" {
		return e.msg
	}
	return "repository error"
}

func (e *repoError) IsNotFound() bool    { return e.notFound }
func (e *repoError) IsConflict() bool    { return e.conflict }
func (e *repoError) IsUnavailable() bool { return e.unavailable }

func notFoundError(what string) error {
	return &repoError{msg: what + " not found", notFound: true}
}

type memoryEvents struct {
	events map[string]domain.Event
}

func (m *memoryEvents) FindByID(_ context.Context, eventID string) (domain.Event, error) {
	event, ok := m.events[eventID]
	if !ok {
		return domain.Event{}, notFoundError("event")
	}
	return event, nil
}

type memoryAttendees struct {
	mu        sync.Mutex
	attendees []domain.Attendee
	findErr   error
	markErr   error
}

func (m *memoryAttendees) FindByID(_ context.Context, attendeeID string) (domain.Attendee, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, attendee := range m.attendees {
		if attendee.ID == attendeeID {
			return attendee, nil
		}
	}
	return domain.Attendee{}, notFoundError("attendee")
}

func (m *memoryAttendees) ListByEvent(_ context.Context, eventID string) ([]domain.Attendee, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Attendee
	for _, attendee := range m.attendees {
		if attendee.EventID == eventID {
			out = append(out, attendee)
		}
	}
	return out, nil
}

func (m *memoryAttendees) FindByEventAndEmail(_ context.Context, eventID, email string) (domain.Attendee, error) {
	if m.findErr != nil {
		return domain.Attendee{}, m.findErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, attendee := range m.attendees {
		if attendee.EventID == eventID && strings.EqualFold(attendee.Email, email) {
			return attendee, nil
		}
	}
	return domain.Attendee{}, notFoundError("attendee")
}

func (m *memoryAttendees) MarkPaid(_ context.Context, attendeeID string, paidAt time.Time) error {
	if m.markErr != nil {
		return m.markErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.attendees {
		if m.attendees[i].ID == attendeeID {
			m.attendees[i].Paid = true
			m.attendees[i].PaidAt = &paidAt
			return nil
		}
	}
	return notFoundError("attendee")
}

func (m *memoryAttendees) get(attendeeID string) domain.Attendee {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, attendee := range m.attendees {
		if attendee.ID == attendeeID {
			return attendee
		}
	}
	return domain.Attendee{}
}

type memoryLooks struct {
	looks map[string]domain.Look
}

func (m *memoryLooks) FindByID(_ context.Context, lookID string) (domain.Look, error) {
	look, ok := m.looks[lookID]
	if !ok {
		return domain.Look{}, notFoundError("look")
	}
	return look, nil
}

type memoryDiscounts struct {
	mu        sync.Mutex
	discounts []domain.Discount
	updateErr func(domain.Discount) error
	insertErr error
}

func (m *memoryDiscounts) Insert(_ context.Context, discount domain.Discount) error {
	if m.insertErr != nil {
		return m.insertErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.discounts = append(m.discounts, discount)
	return nil
}

func (m *memoryDiscounts) Update(_ context.Context, discount domain.Discount) error {
	if m.updateErr != nil {
		if err := m.updateErr(discount); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.discounts {
		if m.discounts[i].ID == discount.ID {
			m.discounts[i] = discount
			return nil
		}
	}
	return notFoundError("discount")
}

func (m *memoryDiscounts) Delete(_ context.Context, discountID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	idx := slices.IndexFunc(m.discounts, func(d domain.Discount) bool { return d.ID == discountID })
	if idx < 0 {
		return notFoundError("discount")
	}
	m.discounts = slices.Delete(m.discounts, idx, idx+1)
	return nil
}

func (m *memoryDiscounts) List(_ context.Context, filter repositories.DiscountFilter) ([]domain.Discount, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Discount
	for _, discount := range m.discounts {
		if filter.EventID != "" && discount.EventID != filter.EventID {
			continue
		}
		if len(filter.AttendeeIDs) > 0 && !slices.Contains(filter.AttendeeIDs, discount.AttendeeID) {
			continue
		}
		if filter.ProductSKU != "" && discount.ProductSKU != filter.ProductSKU {
			continue
		}
		if filter.Type != "" && discount.Type != filter.Type {
			continue
		}
		if filter.Issued != nil && discount.Issued() != *filter.Issued {
			continue
		}
		if filter.Used != nil && discount.Used != *filter.Used {
			continue
		}
		out = append(out, discount)
	}
	return out, nil
}

func (m *memoryDiscounts) FindByCodes(_ context.Context, codes []string) ([]domain.Discount, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Discount
	for _, discount := range m.discounts {
		if discount.Code != "" && slices.Contains(codes, discount.Code) {
			out = append(out, discount)
		}
	}
	return out, nil
}

func (m *memoryDiscounts) all() []domain.Discount {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.discounts)
}

type stubUnitOfWork struct {
	runFn func(ctx context.Context, fn func(context.Context) error) error
	calls int
}

func (s *stubUnitOfWork) RunInTx(ctx context.Context, fn func(context.Context) error) error {
	s.calls++
	if s.runFn != nil {
		return s.runFn(ctx, fn)
	}
	return fn(ctx)
}

func sequenceIDs(prefix string) func() string {
	var mu sync.Mutex
	n := 0
	return func() string {
		mu.Lock()
		defer mu.Unlock()
		n++
		return fmt.Sprintf("%s%07d", prefix, n)
	}
}
