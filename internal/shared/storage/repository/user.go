package repository

import (
	"context"
	"database/sql"

	"library-admin/internal/shared/model"
)

const userColumns = `id, username, email, first_name, last_name, password_hash, role, is_elevated, created_at`

func scanUser(row interface{ Scan(...interface{}) error }) (*model.User, error) {
	u := &model.User{}
	err := row.Scan(&u.ID, &u.Username, &u.Email, &u.FirstName, &u.LastName,
		&u.PasswordHash, &u.Role, &u.IsElevated, &u.CreatedAt)
	return u, err
}

// CreateUser 创建用户，用户名重复返回 DuplicateError{Field: "username"}
func (s *Store) CreateUser(ctx context.Context, user *model.User) error {
	_, err := s.db.ExecContext(ctx, s.rebind(
		`INSERT INTO users (`+userColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`),
		user.ID, user.Username, user.Email, user.FirstName, user.LastName,
		user.PasswordHash, user.Role, user.IsElevated, user.CreatedAt,
	)
	if err != nil {
		return s.duplicate(err, "username")
	}
	return nil
}

// GetUserByUsername 通过用户名查找用户
func (s *Store) GetUserByUsername(ctx context.Context, username string) (*model.User, error) {
	u, err := scanUser(s.db.QueryRowContext(ctx, s.rebind(
		`SELECT `+userColumns+` FROM users WHERE username = $1`), username))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return u, err
}

// GetUserByID 通过 ID 查找用户
func (s *Store) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	u, err := scanUser(s.db.QueryRowContext(ctx, s.rebind(
		`SELECT `+userColumns+` FROM users WHERE id = $1`), id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return u, err
}

// UpdateUserPassword 更新用户密码
func (s *Store) UpdateUserPassword(ctx context.Context, id, passwordHash string) error {
	res, err := s.db.ExecContext(ctx, s.rebind(
		`UPDATE users SET password_hash = $1 WHERE id = $2`), passwordHash, id)
	if err != nil {
		return err
	}
	return requireOneRow(res)
}

// ListUsers 列出所有用户
func (s *Store) ListUsers(ctx context.Context) ([]*model.User, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+userColumns+` FROM users ORDER BY created_at, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := []*model.User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}
