package mongodb

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/nguyentranbao-ct/crm-console/internal/models"
)

// document is implemented by every persisted model. GetUpdates returns the
// $set payload used by UpdateOne, without _id and write-once fields.
type document interface {
	CollectionName() string
	GetUpdates() any
	GetObjectID() models.ObjectID
}

// baseRepo holds the generic CRUD shared by the typed repositories.
// Lookups that match nothing return models.ErrNotFound.
type baseRepo[D document] struct {
	coll *mongo.Collection
}

func newBaseRepo[D document](db *mongo.Database) baseRepo[D] {
	var zero D
	return baseRepo[D]{coll: db.Collection(zero.CollectionName())}
}

func (r *baseRepo[D]) errorf(op string, err error) error {
	if errors.Is(err, mongo.ErrNoDocuments) {
		return models.ErrNotFound
	}
	return fmt.Errorf("%s %s: %w", r.coll.Name(), op, err)
}

func hexID(id any) (string, error) {
	oid, ok := id.(primitive.ObjectID)
	if !ok {
		return "", fmt.Errorf("unexpected inserted id %T", id)
	}
	return oid.Hex(), nil
}

func (r *baseRepo[D]) Insert(ctx context.Context, doc D, opts ...*options.InsertOneOptions) (string, error) {
	res, err := r.coll.InsertOne(ctx, doc, opts...)
	if err != nil {
		return "", r.errorf("insert", err)
	}
	return hexID(res.InsertedID)
}

func (r *baseRepo[D]) InsertMany(ctx context.Context, docs []D, opts ...*options.InsertManyOptions) ([]string, error) {
	if len(docs) == 0 {
		return nil, nil
	}
	raw := make([]any, len(docs))
	for i := range docs {
		raw[i] = docs[i]
	}
	res, err := r.coll.InsertMany(ctx, raw, opts...)
	if err != nil {
		return nil, r.errorf("insert many", err)
	}
	ids := make([]string, 0, len(res.InsertedIDs))
	for _, id := range res.InsertedIDs {
		hex, err := hexID(id)
		if err != nil {
			return nil, err
		}
		ids = append(ids, hex)
	}
	return ids, nil
}

func (r *baseRepo[D]) Find(ctx context.Context, filter bson.M, opts ...*options.FindOptions) ([]D, error) {
	cur, err := r.coll.Find(ctx, filter, opts...)
	if err != nil {
		return nil, r.errorf("find", err)
	}
	docs := make([]D, 0)
	if err := cur.All(ctx, &docs); err != nil {
		return nil, r.errorf("decode", err)
	}
	return docs, nil
}

func (r *baseRepo[D]) FindByID(ctx context.Context, id string) (*D, error) {
	if !models.ObjectID(id).IsPersisted() {
		return nil, models.ErrNotFound
	}
	return r.FindOne(ctx, byID(models.ObjectID(id)))
}

func (r *baseRepo[D]) FindOne(ctx context.Context, filter bson.M, opts ...*options.FindOneOptions) (*D, error) {
	var doc D
	if err := r.coll.FindOne(ctx, filter, opts...).Decode(&doc); err != nil {
		return nil, r.errorf("find one", err)
	}
	return &doc, nil
}

// UpdateOne applies doc.GetUpdates and returns the updated document.
func (r *baseRepo[D]) UpdateOne(ctx context.Context, filter bson.M, doc D, opts ...*options.FindOneAndUpdateOptions) (*D, error) {
	opts = append(opts, options.FindOneAndUpdate().SetReturnDocument(options.After))
	var updated D
	err := r.coll.FindOneAndUpdate(ctx, filter, bson.M{"$set": doc.GetUpdates()}, opts...).Decode(&updated)
	if err != nil {
		return nil, r.errorf("update", err)
	}
	return &updated, nil
}

// UpdateFields sets fields on exactly one document.
func (r *baseRepo[D]) UpdateFields(ctx context.Context, filter bson.M, set bson.M) error {
	res, err := r.coll.UpdateOne(ctx, filter, bson.M{"$set": set})
	if err != nil {
		return r.errorf("update fields", err)
	}
	if res.MatchedCount == 0 {
		return models.ErrNotFound
	}
	return nil
}

func (r *baseRepo[D]) UpdateMany(ctx context.Context, filter bson.M, update any, opts ...*options.UpdateOptions) error {
	if _, err := r.coll.UpdateMany(ctx, filter, update, opts...); err != nil {
		return r.errorf("update many", err)
	}
	return nil
}

func (r *baseRepo[D]) DeleteOne(ctx context.Context, filter bson.M) error {
	res, err := r.coll.DeleteOne(ctx, filter)
	if err != nil {
		return r.errorf("delete", err)
	}
	if res.DeletedCount == 0 {
		return models.ErrNotFound
	}
	return nil
}

func (r *baseRepo[D]) DeleteMany(ctx context.Context, filter bson.M) (int64, error) {
	res, err := r.coll.DeleteMany(ctx, filter)
	if err != nil {
		return 0, r.errorf("delete many", err)
	}
	return res.DeletedCount, nil
}

func (r *baseRepo[D]) Count(ctx context.Context, filter bson.M, opts ...*options.CountOptions) (int64, error) {
	n, err := r.coll.CountDocuments(ctx, filter, opts...)
	if err != nil {
		return 0, r.errorf("count", err)
	}
	return n, nil
}

func byID(id models.ObjectID) bson.M {
	return bson.M{"_id": id}
}

// pointers adapts Find results to the pointer slices callers keep around.
func pointers[D any](items []D) []*D {
	out := make([]*D, len(items))
	for i := range items {
		out[i] = &items[i]
	}
	return out
}
