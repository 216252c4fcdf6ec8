package mongostore

import (
	"context"
	"time"

	"library-admin/internal/shared/model"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// ============================================================================
// StudentStore
// ============================================================================

func (s *Store) CreateStudent(ctx context.Context, st *model.Student) error {
	now := time.Now().UTC()
	if st.CreatedAt.IsZero() {
		st.CreatedAt = now
	}
	st.UpdatedAt = now
	if _, err := s.col(ColStudents).InsertOne(ctx, st); err != nil {
		return duplicateField(err, "student_id", "email")
	}
	return nil
}

func (s *Store) GetStudent(ctx context.Context, id string) (*model.Student, error) {
	return findOne[model.Student](ctx, s.col(ColStudents), bson.D{{Key: "_id", Value: id}})
}

func (s *Store) GetStudentByStudentID(ctx context.Context, studentID string) (*model.Student, error) {
	return findOne[model.Student](ctx, s.col(ColStudents), bson.D{{Key: "student_id", Value: studentID}})
}

func (s *Store) UpdateStudent(ctx context.Context, st *model.Student) error {
	st.UpdatedAt = time.Now().UTC()
	err := updateFields(ctx, s.col(ColStudents), st.ID, bson.D{
		{Key: "student_id", Value: st.StudentID},
		{Key: "first_name", Value: st.FirstName},
		{Key: "last_name", Value: st.LastName},
		{Key: "phone", Value: st.Phone},
		{Key: "email", Value: st.Email},
		{Key: "updated_at", Value: st.UpdatedAt},
	})
	if err != nil {
		return duplicateField(err, "student_id", "email")
	}
	return nil
}

func (s *Store) ListStudents(ctx context.Context, q model.ListQuery) ([]*model.Student, error) {
	filter := catalogFilter(q, model.StudentExactFields, model.StudentContainsFields, model.StudentSearchFields, sameField)
	opts := listOptions(q, model.StudentOrderingFields, sameField)
	return findMany[model.Student](ctx, s.col(ColStudents), filter, opts)
}
