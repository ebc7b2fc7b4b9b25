package firestore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Document represents a strongly typed Firestore document with metadata timestamps.
type Document[T any] struct {
	ID         string
	Data       T
	CreateTime time.Time
	UpdateTime time.Time
}

// Encoder serialises the strongly typed entity prior to persistence.
type Encoder[T any] func(ctx context.Context, value T) (any, error)

// Decoder hydrates the strongly typed entity from a snapshot.
type Decoder[T any] func(ctx context.Context, snap *firestore.DocumentSnapshot) (T, error)

// QueryBuilder customises Firestore queries before execution.
type QueryBuilder func(query firestore.Query) firestore.Query

// BaseRepository provides typed helpers wrapping Firestore collection access. Writes join the
// transaction attached to the context when present; reads always go to the client.
type BaseRepository[T any] struct {
	provider   *Provider
	collection string
	encode     Encoder[T]
	decode     Decoder[T]
}

// NewBaseRepository constructs a BaseRepository bound to a collection.
func NewBaseRepository[T any](provider *Provider, collection string, encode Encoder[T], decode Decoder[T]) *BaseRepository[T] {
	if encode == nil {
		encode = IdentityEncoder[T]()
	}
	if decode == nil {
		decode = StructDecoder[T]()
	}
	return &BaseRepository[T]{
		provider:   provider,
		collection: strings.TrimSpace(collection),
		encode:     encode,
		decode:     decode,
	}
}

// Set upserts the given value under the provided document ID.
func (r *BaseRepository[T]) Set(ctx context.Context, id string, value T) error {
	doc, err := r.documentRef(ctx, id)
	if err != nil {
		return err
	}
	payload, err := r.encode(ctx, value)
	if err != nil {
		return fmt.Errorf("firestore: encode document %s: %w", id, err)
	}
	return WrapError(r.op("set"), SetDocument(ctx, doc, payload))
}

// Create writes the value and fails with a conflict when the document already exists.
func (r *BaseRepository[T]) Create(ctx context.Context, id string, value T) error {
	doc, err := r.documentRef(ctx, id)
	if err != nil {
		return err
	}
	payload, err := r.encode(ctx, value)
	if err != nil {
		return fmt.Errorf("firestore: encode document %s: %w", id, err)
	}
	if tx, ok := TxFromContext(ctx); ok {
		return WrapError(r.op("create"), tx.Create(doc, payload))
	}
	_, err = doc.Create(ctx, payload)
	return WrapError(r.op("create"), err)
}

// Update applies partial updates to an existing document.
func (r *BaseRepository[T]) Update(ctx context.Context, id string, updates []firestore.Update) error {
	doc, err := r.documentRef(ctx, id)
	if err != nil {
		return err
	}
	if tx, ok := TxFromContext(ctx); ok {
		return WrapError(r.op("update"), tx.Update(doc, updates))
	}
	_, err = doc.Update(ctx, updates)
	return WrapError(r.op("update"), err)
}

// Delete removes the document. Missing documents report not found.
func (r *BaseRepository[T]) Delete(ctx context.Context, id string) error {
	doc, err := r.documentRef(ctx, id)
	if err != nil {
		return err
	}
	if tx, ok := TxFromContext(ctx); ok {
		return WrapError(r.op("delete"), tx.Delete(doc, firestore.Exists))
	}
	_, err = doc.Delete(ctx, firestore.Exists)
	return WrapError(r.op("delete"), err)
}

// Get fetches the document by ID and decodes it into the strongly typed entity.
func (r *BaseRepository[T]) Get(ctx context.Context, id string) (Document[T], error) {
	doc, err := r.documentRef(ctx, id)
	if err != nil {
		return Document[T]{}, err
	}

	snapshot, err := doc.Get(ctx)
	if err != nil {
		return Document[T]{}, WrapError(r.op("get"), err)
	}

	return r.decodeDocument(ctx, snapshot)
}

// Query executes a collection query and returns the decoded documents.
func (r *BaseRepository[T]) Query(ctx context.Context, build QueryBuilder) ([]Document[T], error) {
	coll, err := r.collectionRef(ctx)
	if err != nil {
		return nil, err
	}

	query := coll.Query
	if build != nil {
		query = build(query)
	}
	return DecodeAll(ctx, query, r.decode, r.op("query"))
}

// First returns the first document matched by the query or a not found error.
func (r *BaseRepository[T]) First(ctx context.Context, build QueryBuilder) (Document[T], error) {
	docs, err := r.Query(ctx, func(q firestore.Query) firestore.Query {
		if build != nil {
			q = build(q)
		}
		return q.Limit(1)
	})
	if err != nil {
		return Document[T]{}, err
	}
	if len(docs) == 0 {
		return Document[T]{}, NotFound(r.op("first"), "no matching document")
	}
	return docs[0], nil
}

// DocumentRef exposes the underlying document reference, e.g. for subcollections.
func (r *BaseRepository[T]) DocumentRef(ctx context.Context, id string) (*firestore.DocumentRef, error) {
	return r.documentRef(ctx, id)
}

// SetDocument writes data to ref, joining the transaction attached to ctx when present.
func SetDocument(ctx context.Context, ref *firestore.DocumentRef, data any) error {
	if tx, ok := TxFromContext(ctx); ok {
		return tx.Set(ref, data)
	}
	_, err := ref.Set(ctx, data)
	return err
}

// DeleteDocument removes ref, joining the transaction attached to ctx when present.
func DeleteDocument(ctx context.Context, ref *firestore.DocumentRef) error {
	if tx, ok := TxFromContext(ctx); ok {
		return tx.Delete(ref)
	}
	_, err := ref.Delete(ctx)
	return err
}

// DecodeAll drains the query iterator and decodes each snapshot.
func DecodeAll[T any](ctx context.Context, query firestore.Query, decode Decoder[T], op string) ([]Document[T], error) {
	if decode == nil {
		decode = StructDecoder[T]()
	}
	iter := query.Documents(ctx)
	defer iter.Stop()

	var docs []Document[T]
	for {
		snapshot, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, WrapError(op, err)
		}
		entity, err := decode(ctx, snapshot)
		if err != nil {
			return nil, fmt.Errorf("firestore: decode document %s: %w", snapshot.Ref.ID, err)
		}
		docs = append(docs, Document[T]{
			ID:         snapshot.Ref.ID,
			Data:       entity,
			CreateTime: snapshot.CreateTime,
			UpdateTime: snapshot.UpdateTime,
		})
	}
	return docs, nil
}

// NotFound builds a not found repository error for lookups that return no document.
func NotFound(op, msg string) error {
	return newError(op, status.Error(codes.NotFound, msg))
}

func (r *BaseRepository[T]) decodeDocument(ctx context.Context, snapshot *firestore.DocumentSnapshot) (Document[T], error) {
	entity, err := r.decode(ctx, snapshot)
	if err != nil {
		return Document[T]{}, err
	}
	return Document[T]{
		ID:         snapshot.Ref.ID,
		Data:       entity,
		CreateTime: snapshot.CreateTime,
		UpdateTime: snapshot.UpdateTime,
	}, nil
}

func (r *BaseRepository[T]) collectionRef(ctx context.Context) (*firestore.CollectionRef, error) {
	if r == nil || r.provider == nil {
		return nil, WrapError(r.op("collection"), errors.New("firestore: provider is nil"))
	}
	if r.collection == "" {
		return nil, WrapError(r.op("collection"), errors.New("firestore: collection name is required"))
	}
	client, err := r.provider.Client(ctx)
	if err != nil {
		return nil, err
	}
	return client.Collection(r.collection), nil
}

func (r *BaseRepository[T]) documentRef(ctx context.Context, id string) (*firestore.DocumentRef, error) {
	if strings.TrimSpace(id) == "" {
		return nil, WrapError(r.op("document"), errors.New("firestore: document id is required"))
	}
	coll, err := r.collectionRef(ctx)
	if err != nil {
		return nil, err
	}
	return coll.Doc(id), nil
}

func (r *BaseRepository[T]) op(action string) string {
	name := "firestore"
	if r != nil && r.collection != "" {
		name = r.collection
	}
	return fmt.Sprintf("%s.%s", name, strings.ToLower(action))
}

// IdentityEncoder returns an encoder that writes the value unchanged.
func IdentityEncoder[T any]() Encoder[T] {
	return func(_ context.Context, value T) (any, error) {
		return value, nil
	}
}

// StructDecoder populates the target struct using Firestore's native decoding.
func StructDecoder[T any]() Decoder[T] {
	return func(_ context.Context, snap *firestore.DocumentSnapshot) (T, error) {
		var target T
		if err := snap.DataTo(&target); err != nil {
			return target, err
		}
		return target, nil
	}
}
