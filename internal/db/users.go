package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"ftnmarket/internal/models"
)

const userColumns = `id, signup_time, last_active_time, user_name, password,
	admin_level, user_level, profile_url, profile_name`

func scanUser(row pgx.Row) (*models.User, error) {
	var u models.User
	err := row.Scan(&u.ID, &u.SignupTime, &u.LastActiveTime, &u.Name, &u.EncryptedPassword,
		&u.AdminLevel, &u.UserLevel, &u.ProfileURL, &u.ProfileName)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// InsertUser inserts a new user row.
func (db *DB) InsertUser(ctx context.Context, u *models.User) error {
	_, err := db.Pool.Exec(ctx,
		`INSERT INTO users (`+userColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		u.ID, u.SignupTime, u.LastActiveTime, u.Name, u.EncryptedPassword,
		u.AdminLevel, u.UserLevel, u.ProfileURL, u.ProfileName)
	if err != nil {
		return fmt.Errorf("failed to insert user: %w", err)
	}
	return nil
}

// GetUser retrieves one user by ID, or (nil, nil) when absent.
func (db *DB) GetUser(ctx context.Context, id uuid.UUID) (*models.User, error) {
	u, err := scanUser(db.Pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return u, nil
}

// FindUserByName retrieves one user by name, or (nil, nil) when absent.
func (db *DB) FindUserByName(ctx context.Context, name string) (*models.User, error) {
	u, err := scanUser(db.Pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE user_name = $1`, name))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	return u, nil
}

// CountUsersByName counts accounts holding the given name.
func (db *DB) CountUsersByName(ctx context.Context, name string) (int64, error) {
	var n int64
	err := db.Pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM users WHERE user_name = $1`, name).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count users: %w", err)
	}
	return n, nil
}

// CountUsersByProfileURL counts accounts bound to the given profile URL.
func (db *DB) CountUsersByProfileURL(ctx context.Context, url string) (int64, error) {
	var n int64
	err := db.Pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM users WHERE profile_url = $1`, url).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count users: %w", err)
	}
	return n, nil
}

// UpdateUser rewrites exactly the given fields of one user row.
func (db *DB) UpdateUser(ctx context.Context, id uuid.UUID, set map[string]any) error {
	if len(set) == 0 {
		return nil
	}
	sql, args := updateSQL("users", set)
	if _, err := db.Pool.Exec(ctx, sql, append(args, id)...); err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}
	return nil
}

// DeleteUser removes a user row.
func (db *DB) DeleteUser(ctx context.Context, id uuid.UUID) error {
	if _, err := db.Pool.Exec(ctx, `DELETE FROM users WHERE id = $1`, id); err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	return nil
}
