package repository

import (
	"context"
	"database/sql"

	"library-admin/internal/shared/model"
	"library-admin/internal/shared/storage"
	"library-admin/internal/shared/storage/dbutil"
)

const studentColumns = `id, student_id, first_name, last_name, phone, email, created_at, updated_at`

func scanStudent(row interface{ Scan(...interface{}) error }) (*model.Student, error) {
	st := &model.Student{}
	err := row.Scan(&st.ID, &st.StudentID, &st.FirstName, &st.LastName,
		&st.Phone, &st.Email, &st.CreatedAt, &st.UpdatedAt)
	return st, err
}

// CreateStudent 创建学生，student_id / email 重复返回 DuplicateError
func (s *Store) CreateStudent(ctx context.Context, st *model.Student) error {
	_, err := s.db.ExecContext(ctx, s.rebind(
		`INSERT INTO students (`+studentColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`),
		st.ID, st.StudentID, st.FirstName, st.LastName, st.Phone, st.Email, st.CreatedAt, st.UpdatedAt,
	)
	if err != nil {
		return s.duplicate(err, "student_id", "email")
	}
	return nil
}

// GetStudent 按生成 ID 查询
func (s *Store) GetStudent(ctx context.Context, id string) (*model.Student, error) {
	st, err := scanStudent(s.db.QueryRowContext(ctx, s.rebind(
		`SELECT `+studentColumns+` FROM students WHERE id = $1`), id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return st, err
}

// GetStudentByStudentID 按学号查询
func (s *Store) GetStudentByStudentID(ctx context.Context, studentID string) (*model.Student, error) {
	st, err := scanStudent(s.db.QueryRowContext(ctx, s.rebind(
		`SELECT `+studentColumns+` FROM students WHERE student_id = $1`), studentID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return st, err
}

// UpdateStudent 更新学生基础信息
func (s *Store) UpdateStudent(ctx context.Context, st *model.Student) error {
	res, err := s.db.ExecContext(ctx, s.rebind(
		`UPDATE students SET student_id = $1, first_name = $2, last_name = $3, phone = $4, email = $5, updated_at = $6
		 WHERE id = $7`),
		st.StudentID, st.FirstName, st.LastName, st.Phone, st.Email, st.UpdatedAt, st.ID,
	)
	if err != nil {
		return s.duplicate(err, "student_id", "email")
	}
	return requireOneRow(res)
}

// ListStudents 按过滤条件列出学生
func (s *Store) ListStudents(ctx context.Context, q model.ListQuery) ([]*model.Student, error) {
	var w dbutil.Where
	applyCatalogFilters(&w, q, model.StudentExactFields, model.StudentContainsFields, model.StudentSearchFields)
	if q.Name != "" {
		p := dbutil.ContainsPattern(q.Name)
		w.Add(`(LOWER(first_name) LIKE $? ESCAPE '\' OR LOWER(last_name) LIKE $? ESCAPE '\')`, p, p)
	}

	field, desc := q.OrderingField()
	if !model.Allowed(model.StudentOrderingFields, field) {
		field = ""
	}
	query := `SELECT ` + studentColumns + ` FROM students` + w.Clause() +
		orderBy(field, desc, "created_at, id") + w.Paginate(q.Limit, q.Offset)

	rows, err := s.db.QueryContext(ctx, s.rebind(query), w.Args()...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	students := []*model.Student{}
	for rows.Next() {
		st, err := scanStudent(rows)
		if err != nil {
			return nil, err
		}
		students = append(students, st)
	}
	return students, rows.Err()
}

// applyCatalogFilters 追加精确、子串与全文搜索条件
// 字段名只来自白名单，不直接拼接用户输入
func applyCatalogFilters(w *dbutil.Where, q model.ListQuery, exact, contains, search []string) {
	for _, f := range exact {
		if v, ok := q.Exact[f]; ok {
			w.Add(f+` = $?`, v)
		}
	}
	for _, f := range contains {
		if v, ok := q.Contains[f]; ok {
			w.Add(`LOWER(`+f+`) LIKE $? ESCAPE '\'`, dbutil.ContainsPattern(v))
		}
	}
	if q.Search != "" {
		p := dbutil.ContainsPattern(q.Search)
		cond := "("
		args := make([]interface{}, 0, len(search))
		for i, f := range search {
			if i > 0 {
				cond += " OR "
			}
			cond += `LOWER(` + f + `) LIKE $? ESCAPE '\'`
			args = append(args, p)
		}
		w.Add(cond+")", args...)
	}
}

// requireOneRow UPDATE 未命中任何行时返回 ErrNotFound
func requireOneRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return storage.ErrNotFound
	}
	return nil
}
