package mongodb

import (
	"context"
	"fmt"
	"time"

	"github.com/nguyentranbao-ct/crm-console/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type ContactRepository interface {
	List(ctx context.Context) ([]*models.Contact, error)
	GetByID(ctx context.Context, id models.ObjectID) (*models.Contact, error)
	Create(ctx context.Context, contact *models.Contact) (*models.Contact, error)
	Update(ctx context.Context, contact *models.Contact) (*models.Contact, error)
	Delete(ctx context.Context, id models.ObjectID) error
}

type contactRepo struct {
	baseRepo[models.Contact]
}

func NewContactRepository(db *DB) ContactRepository {
	return &contactRepo{
		baseRepo: newBaseRepo[models.Contact](db.Database),
	}
}

// List returns the newest contacts first.
func (r *contactRepo) List(ctx context.Context) ([]*models.Contact, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	contacts, err := r.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list contacts: %w", err)
	}
	return pointers(contacts), nil
}

func (r *contactRepo) GetByID(ctx context.Context, id models.ObjectID) (*models.Contact, error) {
	return r.FindByID(ctx, id.String())
}

func (r *contactRepo) Create(ctx context.Context, contact *models.Contact) (*models.Contact, error) {
	now := time.Now()
	doc := *contact.Clone()
	doc.ID = ""
	if doc.Tags == nil {
		doc.Tags = []string{}
	}
	doc.CreatedAt = now
	doc.UpdatedAt = now

	id, err := r.Insert(ctx, doc)
	if err != nil {
		return nil, fmt.Errorf("failed to create contact: %w", err)
	}
	doc.ID = models.ObjectID(id)
	return &doc, nil
}

func (r *contactRepo) Update(ctx context.Context, contact *models.Contact) (*models.Contact, error) {
	updated, err := r.UpdateOne(ctx, byID(contact.ID), *contact)
	if err != nil {
		return nil, fmt.Errorf("failed to update contact: %w", err)
	}
	return updated, nil
}

func (r *contactRepo) Delete(ctx context.Context, id models.ObjectID) error {
	if err := r.DeleteOne(ctx, byID(id)); err != nil {
		return fmt.Errorf("failed to delete contact: %w", err)
	}
	return nil
}
