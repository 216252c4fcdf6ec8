package mongostore

import (
	"context"

	"library-admin/internal/shared/model"
	"library-admin/internal/shared/storage"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// ============================================================================
// ReportStore
// ============================================================================

func (s *Store) CreateReport(ctx context.Context, r *model.Report) error {
	if _, err := s.col(ColReports).InsertOne(ctx, r); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return &storage.DuplicateError{Field: "id"}
		}
		return wrapError(err)
	}
	return nil
}

func (s *Store) GetReport(ctx context.Context, id string) (*model.Report, error) {
	return findOne[model.Report](ctx, s.col(ColReports), bson.D{{Key: "_id", Value: id}})
}

func (s *Store) ListReports(ctx context.Context) ([]*model.Report, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "generated_at", Value: -1}, {Key: "_id", Value: -1}}).
		SetProjection(bson.D{{Key: "content", Value: 0}})
	return findMany[model.Report](ctx, s.col(ColReports), bson.D{}, opts)
}
