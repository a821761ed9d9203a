package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"lyrahub/internal/domain"

	"github.com/mattn/go-sqlite3"
)

func (d *Database) CreateUser(ctx context.Context, user *domain.User) error {
	now := time.Now().UTC()
	user.Email = strings.ToLower(strings.TrimSpace(user.Email))
	user.Name = strings.TrimSpace(user.Name)
	user.CreatedAt = now
	user.UpdatedAt = now

	query := `insert into users (id, email, name, password_hash, created_at, updated_at)
	values (?, ?, ?, ?, ?, ?)`

	_, err := d.db.ExecContext(ctx, query,
		user.ID, user.Email, user.Name, user.PasswordHash, user.CreatedAt, user.UpdatedAt)
	if err != nil {
		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique {
			return fmt.Errorf("create user (email = %s): %w", user.Email, domain.ErrConflict)
		}

		return fmt.Errorf("create user: %w", err)
	}

	return nil
}

func (d *Database) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	query := `select id, email, name, password_hash, created_at, updated_at
	from users
	where email = ?`

	return d.getUser(ctx, query, strings.ToLower(strings.TrimSpace(email)))
}

func (d *Database) GetUserByID(ctx context.Context, userID string) (*domain.User, error) {
	query := `select id, email, name, password_hash, created_at, updated_at
	from users
	where id = ?`

	return d.getUser(ctx, query, userID)
}

func (d *Database) UpdateUserName(ctx context.Context, userID string, name string) (*domain.User, error) {
	query := "update users set name = ?, updated_at = ? where id = ?"

	res, err := d.db.ExecContext(ctx, query, strings.TrimSpace(name), time.Now().UTC(), userID)
	if err != nil {
		return nil, fmt.Errorf("update user name: %w", err)
	}

	if err = requireAffected(res); err != nil {
		return nil, fmt.Errorf("update user name (id = %s): %w", userID, err)
	}

	return d.GetUserByID(ctx, userID)
}

func (d *Database) getUser(ctx context.Context, query string, arg string) (*domain.User, error) {
	var u domain.User

	err := d.db.QueryRowContext(ctx, query, arg).
		Scan(&u.ID, &u.Email, &u.Name, &u.PasswordHash, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}

		return nil, fmt.Errorf("scan row: %w", err)
	}

	return &u, nil
}

func requireAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}

	if n == 0 {
		return domain.ErrNotFound
	}

	return nil
}
