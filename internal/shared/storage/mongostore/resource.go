package mongostore

import (
	"context"
	"time"

	"library-admin/internal/shared/model"
	"library-admin/internal/shared/storage"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
)

// ============================================================================
// ResourceStore
// ============================================================================

// resourceField resource_id 在文档中即 _id
func resourceField(f string) string {
	if f == "resource_id" {
		return "_id"
	}
	return f
}

func (s *Store) CreateResource(ctx context.Context, r *model.Resource) error {
	now := time.Now().UTC()
	if r.CreatedAt.IsZero() {
		r.CreatedAt = now
	}
	r.UpdatedAt = now
	if r.Status == "" {
		r.Status = model.ResourceStatusAvailable
	}
	if _, err := s.col(ColResources).InsertOne(ctx, r); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return &storage.DuplicateError{Field: "resource_id"}
		}
		return wrapError(err)
	}
	return nil
}

func (s *Store) GetResource(ctx context.Context, resourceID string) (*model.Resource, error) {
	return findOne[model.Resource](ctx, s.col(ColResources), bson.D{{Key: "_id", Value: resourceID}})
}

// UpdateResource 不修改 status
func (s *Store) UpdateResource(ctx context.Context, r *model.Resource) error {
	r.UpdatedAt = time.Now().UTC()
	return updateFields(ctx, s.col(ColResources), r.ResourceID, bson.D{
		{Key: "title", Value: r.Title},
		{Key: "resource_type", Value: r.ResourceType},
		{Key: "author", Value: r.Author},
		{Key: "publication_year", Value: r.PublicationYear},
		{Key: "updated_at", Value: r.UpdatedAt},
	})
}

func (s *Store) ListResources(ctx context.Context, q model.ListQuery) ([]*model.Resource, error) {
	filter := catalogFilter(q, model.ResourceExactFields, model.ResourceContainsFields, model.ResourceSearchFields, resourceField)
	opts := listOptions(q, model.ResourceOrderingFields, resourceField)
	return findMany[model.Resource](ctx, s.col(ColResources), filter, opts)
}
