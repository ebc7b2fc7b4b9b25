package firestore

import (
	"context"
	"errors"
	"strings"
	"time"

	"cloud.google.com/go/firestore"

	domain "github.com/suitline/fulfillment/internal/domain"
	pfirestore "github.com/suitline/fulfillment/internal/platform/firestore"
	"github.com/suitline/fulfillment/internal/platform/textutil"
	"github.com/suitline/fulfillment/internal/repositories"
)

const (
	eventsCollection    = "events"
	attendeesCollection = "attendees"
	looksCollection     = "looks"
)

// EventRepository reads events.
type EventRepository struct {
	base *pfirestore.BaseRepository[eventDocument]
}

var _ repositories.EventRepository = (*EventRepository)(nil)

// NewEventRepository constructs a Firestore-backed event repository.
func NewEventRepository(provider *pfirestore.Provider) (*EventRepository, error) {
	if provider == nil {
		return nil, errors.New("event repository requires firestore provider")
	}
	return &EventRepository{
		base: pfirestore.NewBaseRepository[eventDocument](provider, eventsCollection, nil, nil),
	}, nil
}

// FindByID loads the event.
func (r *EventRepository) FindByID(ctx context.Context, eventID string) (domain.Event, error) {
	if r == nil || r.base == nil {
		return domain.Event{}, errors.New("event repository not initialised")
	}
	if strings.TrimSpace(eventID) == "" {
		return domain.Event{}, errors.New("event id is required")
	}
	doc, err := r.base.Get(ctx, eventID)
	if err != nil {
		return domain.Event{}, err
	}
	event := domain.Event{
		ID:        doc.ID,
		Name:      doc.Data.Name,
		Date:      doc.Data.Date,
		CreatedAt: doc.Data.CreatedAt,
		UpdatedAt: doc.Data.UpdatedAt,
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = doc.CreateTime
	}
	if event.UpdatedAt.IsZero() {
		event.UpdatedAt = doc.UpdateTime
	}
	return event, nil
}

type eventDocument struct {
	Name      string     `firestore:"name"`
	Date      *time.Time `firestore:"date,omitempty"`
	CreatedAt time.Time  `firestore:"createdAt"`
	UpdatedAt time.Time  `firestore:"updatedAt"`
}

// AttendeeRepository persists event attendees.
type AttendeeRepository struct {
	base *pfirestore.BaseRepository[attendeeDocument]
}

var _ repositories.AttendeeRepository = (*AttendeeRepository)(nil)

// NewAttendeeRepository constructs a Firestore-backed attendee repository.
func NewAttendeeRepository(provider *pfirestore.Provider) (*AttendeeRepository, error) {
	if provider == nil {
		return nil, errors.New("attendee repository requires firestore provider")
	}
	return &AttendeeRepository{
		base: pfirestore.NewBaseRepository[attendeeDocument](provider, attendeesCollection, nil, nil),
	}, nil
}

// FindByID loads a single attendee.
func (r *AttendeeRepository) FindByID(ctx context.Context, attendeeID string) (domain.Attendee, error) {
	if r == nil || r.base == nil {
		return domain.Attendee{}, errors.New("attendee repository not initialised")
	}
	if strings.TrimSpace(attendeeID) == "" {
		return domain.Attendee{}, errors.New("attendee id is required")
	}
	doc, err := r.base.Get(ctx, attendeeID)
	if err != nil {
		return domain.Attendee{}, err
	}
	return toDomainAttendee(doc), nil
}

// ListByEvent returns every attendee of the event.
func (r *AttendeeRepository) ListByEvent(ctx context.Context, eventID string) ([]domain.Attendee, error) {
	if r == nil || r.base == nil {
		return nil, errors.New("attendee repository not initialised")
	}
	eventID = strings.TrimSpace(eventID)
	if eventID == "" {
		return nil, errors.New("event id is required")
	}
	docs, err := r.base.Query(ctx, func(q firestore.Query) firestore.Query {
		return q.Where("eventId", "==", eventID)
	})
	if err != nil {
		return nil, err
	}
	attendees := make([]domain.Attendee, 0, len(docs))
	for _, doc := range docs {
		attendees = append(attendees, toDomainAttendee(doc))
	}
	return attendees, nil
}

// FindByEventAndEmail matches the attendee registered for the event under the email.
func (r *AttendeeRepository) FindByEventAndEmail(ctx context.Context, eventID, email string) (domain.Attendee, error) {
	if r == nil || r.base == nil {
		return domain.Attendee{}, errors.New("attendee repository not initialised")
	}
	eventID = strings.TrimSpace(eventID)
	email = textutil.NormalizeEmail(email)
	if eventID == "" || email == "" {
		return domain.Attendee{}, errors.New("event id and email are required")
	}
	doc, err := r.base.First(ctx, func(q firestore.Query) firestore.Query {
		return q.Where("eventId", "==", eventID).Where("email", "==", email)
	})
	if err != nil {
		return domain.Attendee{}, err
	}
	return toDomainAttendee(doc), nil
}

// MarkPaid flags the attendee as paid.
func (r *AttendeeRepository) MarkPaid(ctx context.Context, attendeeID string, paidAt time.Time) error {
	if r == nil || r.base == nil {
		return errors.New("attendee repository not initialised")
	}
	return r.base.Update(ctx, attendeeID, []firestore.Update{
		{Path: "paid", Value: true},
		{Path: "paidAt", Value: paidAt.UTC()},
	})
}

type attendeeDocument struct {
	EventID string     `firestore:"eventId"`
	UserID  string     `firestore:"userId,omitempty"`
	Email   string     `firestore:"email"`
	Styled  bool       `firestore:"styled"`
	Invited bool       `firestore:"invited"`
	LookID  string     `firestore:"lookId,omitempty"`
	Paid    bool       `firestore:"paid"`
	PaidAt  *time.Time `firestore:"paidAt,omitempty"`
}

func toDomainAttendee(doc pfirestore.Document[attendeeDocument]) domain.Attendee {
	return domain.Attendee{
		ID:      doc.ID,
		EventID: doc.Data.EventID,
		UserID:  doc.Data.UserID,
		Email:   doc.Data.Email,
		Styled:  doc.Data.Styled,
		Invited: doc.Data.Invited,
		LookID:  doc.Data.LookID,
		Paid:    doc.Data.Paid,
		PaidAt:  doc.Data.PaidAt,
	}
}

// LookRepository reads priced looks.
type LookRepository struct {
	base *pfirestore.BaseRepository[lookDocument]
}

var _ repositories.LookRepository = (*LookRepository)(nil)

// NewLookRepository constructs a Firestore-backed look repository.
func NewLookRepository(provider *pfirestore.Provider) (*LookRepository, error) {
	if provider == nil {
		return nil, errors.New("look repository requires firestore provider")
	}
	return &LookRepository{
		base: pfirestore.NewBaseRepository[lookDocument](provider, looksCollection, nil, nil),
	}, nil
}

// FindByID loads the look.
func (r *LookRepository) FindByID(ctx context.Context, lookID string) (domain.Look, error) {
	if r == nil || r.base == nil {
		return domain.Look{}, errors.New("look repository not initialised")
	}
	if strings.TrimSpace(lookID) == "" {
		return domain.Look{}, errors.New("look id is required")
	}
	doc, err := r.base.Get(ctx, lookID)
	if err != nil {
		return domain.Look{}, err
	}
	return domain.Look{
		ID:       doc.ID,
		Name:     doc.Data.Name,
		Price:    doc.Data.Price,
		BundleID: doc.Data.BundleID,
	}, nil
}

type lookDocument struct {
	Name     string `firestore:"name"`
	Price    int64  `firestore:"price"`
	BundleID string `firestore:"bundleId,omitempty"`
}
