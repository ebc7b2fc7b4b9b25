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

const userCollection = "users"

// UserRepository reads customer records.
type UserRepository struct {
	base *pfirestore.BaseRepository[userDocument]
}

var _ repositories.UserRepository = (*UserRepository)(nil)

// NewUserRepository constructs a Firestore-backed user repository.
func NewUserRepository(provider *pfirestore.Provider) (*UserRepository, error) {
	if provider == nil {
		return nil, errors.New("user repository requires firestore provider")
	}
	return &UserRepository{
		base: pfirestore.NewBaseRepository[userDocument](provider, userCollection, nil, nil),
	}, nil
}

// FindByEmail matches the customer by lower-cased email.
func (r *UserRepository) FindByEmail(ctx context.Context, email string) (domain.User, error) {
	if r == nil || r.base == nil {
		return domain.User{}, errors.New("user repository not initialised")
	}
	email = textutil.NormalizeEmail(email)
	if email == "" {
		return domain.User{}, errors.New("email is required")
	}

	doc, err := r.base.First(ctx, func(q firestore.Query) firestore.Query {
		return q.Where("email", "==", email)
	})
	if err != nil {
		return domain.User{}, err
	}

	user := domain.User{
		ID:        doc.ID,
		Email:     doc.Data.Email,
		FirstName: strings.TrimSpace(doc.Data.FirstName),
		LastName:  strings.TrimSpace(doc.Data.LastName),
		CreatedAt: doc.Data.CreatedAt,
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = doc.CreateTime
	}
	return user, nil
}

type userDocument struct {
	Email     string    `firestore:"email"`
	FirstName string    `firestore:"firstName"`
	LastName  string    `firestore:"lastName"`
	CreatedAt time.Time `firestore:"createdAt"`
}

