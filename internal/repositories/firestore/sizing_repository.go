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
	sizingsCollection      = "sizings"
	measurementsCollection = "measurements"
)

// SizingRepository reads append-only sizing snapshots, newest first.
type SizingRepository struct {
	base *pfirestore.BaseRepository[sizingDocument]
}

var _ repositories.SizingRepository = (*SizingRepository)(nil)

// NewSizingRepository constructs a Firestore-backed sizing repository.
func NewSizingRepository(provider *pfirestore.Provider) (*SizingRepository, error) {
	if provider == nil {
		return nil, errors.New("sizing repository requires firestore provider")
	}
	return &SizingRepository{
		base: pfirestore.NewBaseRepository[sizingDocument](provider, sizingsCollection, nil, nil),
	}, nil
}

// LatestForUser returns the most recently created sizing for the user.
func (r *SizingRepository) LatestForUser(ctx context.Context, userID string) (domain.SizingRecord, error) {
	if r == nil || r.base == nil {
		return domain.SizingRecord{}, errors.New("sizing repository not initialised")
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return domain.SizingRecord{}, errors.New("user id is required")
	}

	doc, err := r.base.First(ctx, func(q firestore.Query) firestore.Query {
		return q.Where("userId", "==", userID).OrderBy("createdAt", firestore.Desc)
	})
	if err != nil {
		return domain.SizingRecord{}, err
	}
	return domain.SizingRecord{
		ID:           doc.ID,
		UserID:       doc.Data.UserID,
		JacketSize:   doc.Data.JacketSize,
		JacketLength: doc.Data.JacketLength,
		VestSize:     doc.Data.VestSize,
		VestLength:   doc.Data.VestLength,
		PantSize:     doc.Data.PantSize,
		PantLength:   doc.Data.PantLength,
		ShirtNeck:    doc.Data.ShirtNeck,
		ShirtSleeve:  doc.Data.ShirtSleeve,
		CreatedAt:    doc.Data.CreatedAt,
	}, nil
}

type sizingDocument struct {
	UserID       string    `firestore:"userId"`
	JacketSize   string    `firestore:"jacketSize"`
	JacketLength string    `firestore:"jacketLength"`
	VestSize     string    `firestore:"vestSize"`
	VestLength   string    `firestore:"vestLength"`
	PantSize     string    `firestore:"pantSize"`
	PantLength   string    `firestore:"pantLength"`
	ShirtNeck    string    `firestore:"shirtNeck"`
	ShirtSleeve  string    `firestore:"shirtSleeve"`
	CreatedAt    time.Time `firestore:"createdAt"`
}

// MeasurementRepository reads append-only measurement snapshots, newest first.
type MeasurementRepository struct {
	base *pfirestore.BaseRepository[measurementDocument]
}

var _ repositories.MeasurementRepository = (*MeasurementRepository)(nil)

// NewMeasurementRepository constructs a Firestore-backed measurement repository.
func NewMeasurementRepository(provider *pfirestore.Provider) (*MeasurementRepository, error) {
	if provider == nil {
		return nil, errors.New("measurement repository requires firestore provider")
	}
	return &MeasurementRepository{
		base: pfirestore.NewBaseRepository[measurementDocument](provider, measurementsCollection, nil, nil),
	}, nil
}

// LatestForUser returns the newest measurement recorded for the user.
func (r *MeasurementRepository) LatestForUser(ctx context.Context, userID string) (domain.MeasurementRecord, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return domain.MeasurementRecord{}, errors.New("user id is required")
	}
	return r.latest(ctx, "userId", userID)
}

// LatestForEmail returns the newest measurement recorded against the email, used for guests.
func (r *MeasurementRepository) LatestForEmail(ctx context.Context, email string) (domain.MeasurementRecord, error) {
	email = textutil.NormalizeEmail(email)
	if email == "" {
		return domain.MeasurementRecord{}, errors.New("email is required")
	}
	return r.latest(ctx, "email", email)
}

func (r *MeasurementRepository) latest(ctx context.Context, field, value string) (domain.MeasurementRecord, error) {
	if r == nil || r.base == nil {
		return domain.MeasurementRecord{}, errors.New("measurement repository not initialised")
	}
	doc, err := r.base.First(ctx, func(q firestore.Query) firestore.Query {
		return q.Where(field, "==", value).OrderBy("createdAt", firestore.Desc)
	})
	if err != nil {
		return domain.MeasurementRecord{}, err
	}
	return domain.MeasurementRecord{
		ID:        doc.ID,
		UserID:    doc.Data.UserID,
		Email:     doc.Data.Email,
		ShoeSize:  doc.Data.ShoeSize,
		CreatedAt: doc.Data.CreatedAt,
	}, nil
}

type measurementDocument struct {
	UserID    string    `firestore:"userId,omitempty"`
	Email     string    `firestore:"email,omitempty"`
	ShoeSize  string    `firestore:"shoeSize"`
	CreatedAt time.Time `firestore:"createdAt"`
}
