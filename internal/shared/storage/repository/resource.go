package repository

import (
	"context"
	"database/sql"

	"library-admin/internal/shared/model"
	"library-admin/internal/shared/storage/dbutil"
)

const resourceColumns = `resource_id, title, resource_type, author, publication_year, status, created_at, updated_at`

func scanResource(row interface{ Scan(...interface{}) error }) (*model.Resource, error) {
	r := &model.Resource{}
	err := row.Scan(&r.ResourceID, &r.Title, &r.ResourceType, &r.Author,
		&r.PublicationYear, &r.Status, &r.CreatedAt, &r.UpdatedAt)
	return r, err
}

// CreateResource 创建资源，resource_id 重复返回 DuplicateError
func (s *Store) CreateResource(ctx context.Context, r *model.Resource) error {
	_, err := s.db.ExecContext(ctx, s.rebind(
		`INSERT INTO resources (`+resourceColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`),
		r.ResourceID, r.Title, r.ResourceType, r.Author, r.PublicationYear, r.Status, r.CreatedAt, r.UpdatedAt,
	)
	if err != nil {
		return s.duplicate(err, "resource_id")
	}
	return nil
}

// GetResource 按 resource_id 查询
func (s *Store) GetResource(ctx context.Context, resourceID string) (*model.Resource, error) {
	r, err := scanResource(s.db.QueryRowContext(ctx, s.rebind(
		`SELECT `+resourceColumns+` FROM resources WHERE resource_id = $1`), resourceID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return r, err
}

// UpdateResource 更新资源描述字段（不含 status）
func (s *Store) UpdateResource(ctx context.Context, r *model.Resource) error {
	res, err := s.db.ExecContext(ctx, s.rebind(
		`UPDATE resources SET title = $1, resource_type = $2, author = $3, publication_year = $4, updated_at = $5
		 WHERE resource_id = $6`),
		r.Title, r.ResourceType, r.Author, r.PublicationYear, r.UpdatedAt, r.ResourceID,
	)
	if err != nil {
		return err
	}
	return requireOneRow(res)
}

// ListResources 按过滤条件列出资源
func (s *Store) ListResources(ctx context.Context, q model.ListQuery) ([]*model.Resource, error) {
	var w dbutil.Where
	applyCatalogFilters(&w, q, model.ResourceExactFields, model.ResourceContainsFields, model.ResourceSearchFields)

	field, desc := q.OrderingField()
	if !model.Allowed(model.ResourceOrderingFields, field) {
		field = ""
	}
	query := `SELECT ` + resourceColumns + ` FROM resources` + w.Clause() +
		orderBy(field, desc, "created_at, resource_id") + w.Paginate(q.Limit, q.Offset)

	rows, err := s.db.QueryContext(ctx, s.rebind(query), w.Args()...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	resources := []*model.Resource{}
	for rows.Next() {
		r, err := scanResource(rows)
		if err != nil {
			return nil, err
		}
		resources = append(resources, r)
	}
	return resources, rows.Err()
}
