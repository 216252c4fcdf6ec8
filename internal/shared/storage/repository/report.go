package repository

import (
	"context"
	"database/sql"

	"library-admin/internal/shared/model"
)

const reportColumns = `id, report_type, generated_at, start_date, end_date, file, row_count, created_by`

func scanReport(row interface{ Scan(...interface{}) error }, withContent bool) (*model.Report, error) {
	r := &model.Report{}
	dest := []interface{}{&r.ID, &r.ReportType, &r.GeneratedAt, &r.StartDate, &r.EndDate,
		&r.File, &r.RowCount, &r.CreatedBy}
	if withContent {
		dest = append(dest, &r.Content)
	}
	err := row.Scan(dest...)
	return r, err
}

// CreateReport 写入报表元数据
func (s *Store) CreateReport(ctx context.Context, r *model.Report) error {
	_, err := s.db.ExecContext(ctx, s.rebind(
		`INSERT INTO reports (`+reportColumns+`, content)
		 VALUES ($1, $2, $3, $4::date, $5::date, $6, $7, $8, $9)`),
		r.ID, r.ReportType, r.GeneratedAt, r.StartDate.String(), r.EndDate.String(), r.File, r.RowCount, r.CreatedBy, r.Content,
	)
	if err != nil {
		return s.duplicate(err, "id")
	}
	return nil
}

// GetReport 查询报表，含内嵌的 CSV
func (s *Store) GetReport(ctx context.Context, id string) (*model.Report, error) {
	r, err := scanReport(s.db.QueryRowContext(ctx, s.rebind(
		`SELECT `+reportColumns+`, content FROM reports WHERE id = $1`), id), true)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return r, err
}

// ListReports 按生成时间倒序列出报表
func (s *Store) ListReports(ctx context.Context) ([]*model.Report, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+reportColumns+` FROM reports ORDER BY generated_at DESC, id DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	reports := []*model.Report{}
	for rows.Next() {
		r, err := scanReport(rows, false)
		if err != nil {
			return nil, err
		}
		reports = append(reports, r)
	}
	return reports, rows.Err()
}
