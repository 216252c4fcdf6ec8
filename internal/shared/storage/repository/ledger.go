package repository

import (
	"context"
	"database/sql"
	"strings"

	"library-admin/internal/shared/model"
	"library-admin/internal/shared/storage"
	"library-admin/internal/shared/storage/dbutil"
)

// borrowSelect 借阅连同学生、资源一次查出
const borrowSelect = `SELECT b.id, b.student_ref, b.resource_id, b.borrow_date, b.due_date, b.status,
	st.id, st.student_id, st.first_name, st.last_name, st.phone, st.email, st.created_at, st.updated_at,
	r.resource_id, r.title, r.resource_type, r.author, r.publication_year, r.status, r.created_at, r.updated_at
	FROM borrows b
	JOIN students st ON st.id = b.student_ref
	JOIN resources r ON r.resource_id = b.resource_id`

// returnSelect 归还连同借阅、学生、资源一次查出
const returnSelect = `SELECT rt.id, rt.borrow_id, rt.return_date, rt.condition_notes,
	b.id, b.student_ref, b.resource_id, b.borrow_date, b.due_date, b.status,
	st.id, st.student_id, st.first_name, st.last_name, st.phone, st.email, st.created_at, st.updated_at,
	r.resource_id, r.title, r.resource_type, r.author, r.publication_year, r.status, r.created_at, r.updated_at
	FROM returns rt
	JOIN borrows b ON b.id = rt.borrow_id
	JOIN students st ON st.id = b.student_ref
	JOIN resources r ON r.resource_id = b.resource_id`

func borrowDest(b *model.Borrow) []interface{} {
	b.Student = &model.Student{}
	b.Resource = &model.Resource{}
	st, r := b.Student, b.Resource
	return []interface{}{
		&b.ID, &b.StudentRef, &b.ResourceID, &b.BorrowDate, &b.DueDate, &b.Status,
		&st.ID, &st.StudentID, &st.FirstName, &st.LastName, &st.Phone, &st.Email, &st.CreatedAt, &st.UpdatedAt,
		&r.ResourceID, &r.Title, &r.ResourceType, &r.Author, &r.PublicationYear, &r.Status, &r.CreatedAt, &r.UpdatedAt,
	}
}

func scanBorrow(row interface{ Scan(...interface{}) error }) (*model.Borrow, error) {
	b := &model.Borrow{}
	err := row.Scan(borrowDest(b)...)
	return b, err
}

func scanReturn(row interface{ Scan(...interface{}) error }) (*model.Return, error) {
	rt := &model.Return{Borrow: &model.Borrow{}}
	dest := append([]interface{}{&rt.ID, &rt.BorrowID, &rt.ReturnDate, &rt.ConditionNotes}, borrowDest(rt.Borrow)...)
	err := row.Scan(dest...)
	return rt, err
}

// ============================================================================
// 写操作（事务）
// ============================================================================

// CreateBorrow 校验并写入借阅，同时将资源置为 BORROWED
func (s *Store) CreateBorrow(ctx context.Context, b *model.Borrow) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := s.checkActiveLoans(ctx, tx, b.ID, b.StudentRef, b.ResourceID); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, s.rebind(
		`INSERT INTO borrows (id, student_ref, resource_id, borrow_date, due_date, status)
		 VALUES ($1, $2, $3, $4::date, $5::date, $6)`),
		b.ID, b.StudentRef, b.ResourceID, b.BorrowDate.String(), b.DueDate.String(), model.BorrowStatusActive,
	); err != nil {
		return s.ledgerConflict(err)
	}

	if err := s.setResourceStatus(ctx, tx, b.ResourceID, model.ResourceStatusBorrowed); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return s.ledgerConflict(err)
	}
	b.Status = model.BorrowStatusActive
	return nil
}

// ExtendBorrow 修改 ACTIVE 借阅的应还日期
func (s *Store) ExtendBorrow(ctx context.Context, id string, due model.Date) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var studentRef, resourceID string
	var status model.BorrowStatus
	err = tx.QueryRowContext(ctx, s.rebind(
		`SELECT student_ref, resource_id, status FROM borrows WHERE id = $1`), id,
	).Scan(&studentRef, &resourceID, &status)
	if err == sql.ErrNoRows {
		return storage.ErrNotFound
	}
	if err != nil {
		return err
	}
	if status != model.BorrowStatusActive {
		return storage.ErrBorrowNotActive
	}

	// 排除自身，重复保存同一条 ACTIVE 借阅不算冲突
	if err := s.checkActiveLoans(ctx, tx, id, studentRef, resourceID); err != nil {
		return err
	}

	res, err := tx.ExecContext(ctx, s.rebind(
		`UPDATE borrows SET due_date = $1::date WHERE id = $2 AND status = $3`),
		due.String(), id, model.BorrowStatusActive)
	if err != nil {
		return err
	}
	if err := requireOneRow(res); err != nil {
		return storage.ErrBorrowNotActive
	}
	return tx.Commit()
}

// CreateReturn 写入归还，借阅置为 RETURNED，资源置为 AVAILABLE
func (s *Store) CreateReturn(ctx context.Context, rt *model.Return) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var resourceID string
	var status model.BorrowStatus
	err = tx.QueryRowContext(ctx, s.rebind(
		`SELECT resource_id, status FROM borrows WHERE id = $1`), rt.BorrowID,
	).Scan(&resourceID, &status)
	if err == sql.ErrNoRows {
		return storage.ErrNotFound
	}
	if err != nil {
		return err
	}
	if status != model.BorrowStatusActive {
		return storage.ErrBorrowNotActive
	}

	if _, err := tx.ExecContext(ctx, s.rebind(
		`INSERT INTO returns (id, borrow_id, return_date, condition_notes)
		 VALUES ($1, $2, $3::date, $4)`),
		rt.ID, rt.BorrowID, rt.ReturnDate.String(), rt.ConditionNotes,
	); err != nil {
		return s.ledgerConflict(err)
	}

	// 条件更新：并发归还时只有一个事务能命中
	res, err := tx.ExecContext(ctx, s.rebind(
		`UPDATE borrows SET status = $1 WHERE id = $2 AND status = $3`),
		model.BorrowStatusReturned, rt.BorrowID, model.BorrowStatusActive)
	if err != nil {
		return err
	}
	if err := requireOneRow(res); err != nil {
		return storage.ErrBorrowNotActive
	}

	if err := s.setResourceStatus(ctx, tx, resourceID, model.ResourceStatusAvailable); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return s.ledgerConflict(err)
	}
	return nil
}

// checkActiveLoans 资源、学生各自最多一条 ACTIVE 借阅（excludeID 除外）
func (s *Store) checkActiveLoans(ctx context.Context, tx *sql.Tx, excludeID, studentRef, resourceID string) error {
	var n int
	if err := tx.QueryRowContext(ctx, s.rebind(
		`SELECT COUNT(1) FROM borrows WHERE resource_id = $1 AND status = $2 AND id <> $3`),
		resourceID, model.BorrowStatusActive, excludeID,
	).Scan(&n); err != nil {
		return err
	}
	if n > 0 {
		return storage.ErrResourceBorrowed
	}

	if err := tx.QueryRowContext(ctx, s.rebind(
		`SELECT COUNT(1) FROM borrows WHERE student_ref = $1 AND status = $2 AND id <> $3`),
		studentRef, model.BorrowStatusActive, excludeID,
	).Scan(&n); err != nil {
		return err
	}
	if n > 0 {
		return storage.ErrStudentHasActiveLoan
	}
	return nil
}

func (s *Store) setResourceStatus(ctx context.Context, tx *sql.Tx, resourceID string, status model.ResourceStatus) error {
	res, err := tx.ExecContext(ctx, s.rebind(
		`UPDATE resources SET status = $1, updated_at = `+s.now()+` WHERE resource_id = $2`),
		status, resourceID)
	if err != nil {
		return err
	}
	return requireOneRow(res)
}

// ledgerConflict 将部分唯一索引冲突映射为借还领域错误
func (s *Store) ledgerConflict(err error) error {
	constraint, ok := s.dialect.UniqueViolation(err)
	if !ok {
		return err
	}
	switch {
	case strings.Contains(constraint, "borrow_id"):
		return storage.ErrBorrowNotActive
	case strings.Contains(constraint, "resource"):
		return storage.ErrResourceBorrowed
	case strings.Contains(constraint, "student"):
		return storage.ErrStudentHasActiveLoan
	default:
		return storage.ErrDuplicate
	}
}

// ============================================================================
// 读操作
// ============================================================================

// GetBorrow 查询借阅（含学生、资源）
func (s *Store) GetBorrow(ctx context.Context, id string) (*model.Borrow, error) {
	b, err := scanBorrow(s.db.QueryRowContext(ctx, s.rebind(borrowSelect+` WHERE b.id = $1`), id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return b, err
}

// ListBorrows 按过滤条件列出借阅
func (s *Store) ListBorrows(ctx context.Context, f model.BorrowFilter) ([]*model.Borrow, error) {
	var w dbutil.Where
	if f.StudentRef != "" {
		w.Add(`b.student_ref = $?`, f.StudentRef)
	}
	if f.ResourceID != "" {
		w.Add(`b.resource_id = $?`, f.ResourceID)
	}
	if f.Status != "" {
		w.Add(`b.status = $?`, f.Status)
	}
	if !f.DueBefore.IsZero() {
		w.Add(`b.due_date < $?::date`, f.DueBefore.String())
	}
	if !f.BorrowFrom.IsZero() {
		w.Add(`b.borrow_date >= $?::date`, f.BorrowFrom.String())
	}
	if !f.BorrowTo.IsZero() {
		w.Add(`b.borrow_date <= $?::date`, f.BorrowTo.String())
	}
	if !f.DueFrom.IsZero() {
		w.Add(`b.due_date >= $?::date`, f.DueFrom.String())
	}
	if !f.DueTo.IsZero() {
		w.Add(`b.due_date <= $?::date`, f.DueTo.String())
	}

	query := borrowSelect + w.Clause() + ` ORDER BY b.borrow_date DESC, b.id DESC` + w.Paginate(f.Limit, f.Offset)
	rows, err := s.db.QueryContext(ctx, s.rebind(query), w.Args()...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	borrows := []*model.Borrow{}
	for rows.Next() {
		b, err := scanBorrow(rows)
		if err != nil {
			return nil, err
		}
		borrows = append(borrows, b)
	}
	return borrows, rows.Err()
}

// GetReturn 查询归还（含借阅）
func (s *Store) GetReturn(ctx context.Context, id string) (*model.Return, error) {
	rt, err := scanReturn(s.db.QueryRowContext(ctx, s.rebind(returnSelect+` WHERE rt.id = $1`), id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return rt, err
}

// ListReturns 按过滤条件列出归还
func (s *Store) ListReturns(ctx context.Context, f model.ReturnFilter) ([]*model.Return, error) {
	var w dbutil.Where
	if f.BorrowID != "" {
		w.Add(`rt.borrow_id = $?`, f.BorrowID)
	}
	if !f.ReturnFrom.IsZero() {
		w.Add(`rt.return_date >= $?::date`, f.ReturnFrom.String())
	}
	if !f.ReturnTo.IsZero() {
		w.Add(`rt.return_date <= $?::date`, f.ReturnTo.String())
	}

	query := returnSelect + w.Clause() + ` ORDER BY rt.return_date DESC, rt.id DESC` + w.Paginate(f.Limit, f.Offset)
	rows, err := s.db.QueryContext(ctx, s.rebind(query), w.Args()...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	returns := []*model.Return{}
	for rows.Next() {
		rt, err := scanReturn(rows)
		if err != nil {
			return nil, err
		}
		returns = append(returns, rt)
	}
	return returns, rows.Err()
}
