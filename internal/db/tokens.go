package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"ftnmarket/internal/models"
)

const tokenColumns = `id, create_time, expire_time, user_id, token`

func scanToken(row pgx.Row) (*models.Token, error) {
	var t models.Token
	err := row.Scan(&t.ID, &t.CreateTime, &t.ExpireTime, &t.UserID, &t.Value)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// InsertToken inserts a new session row.
func (db *DB) InsertToken(ctx context.Context, t *models.Token) error {
	_, err := db.Pool.Exec(ctx,
		`INSERT INTO tokens (`+tokenColumns+`) VALUES ($1, $2, $3, $4, $5)`,
		t.ID, t.CreateTime, t.ExpireTime, t.UserID, t.Value)
	if err != nil {
		return fmt.Errorf("failed to insert token: %w", err)
	}
	return nil
}

// FindTokenByValue retrieves one session by its credential value, or
// (nil, nil) when absent.
func (db *DB) FindTokenByValue(ctx context.Context, value string) (*models.Token, error) {
	t, err := scanToken(db.Pool.QueryRow(ctx,
		`SELECT `+tokenColumns+` FROM tokens WHERE token = $1`, value))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find token: %w", err)
	}
	return t, nil
}

// ListUserTokens lists every session of one account.
func (db *DB) ListUserTokens(ctx context.Context, userID uuid.UUID) ([]models.Token, error) {
	rows, err := db.Pool.Query(ctx,
		`SELECT `+tokenColumns+` FROM tokens WHERE user_id = $1 ORDER BY create_time ASC`,
		userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query tokens: %w", err)
	}
	defer rows.Close()

	var tokens []models.Token
	for rows.Next() {
		t, err := scanToken(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan token: %w", err)
		}
		tokens = append(tokens, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return tokens, nil
}

// UpdateToken rewrites exactly the given fields of one session row.
func (db *DB) UpdateToken(ctx context.Context, id uuid.UUID, set map[string]any) error {
	if len(set) == 0 {
		return nil
	}
	sql, args := updateSQL("tokens", set)
	if _, err := db.Pool.Exec(ctx, sql, append(args, id)...); err != nil {
		return fmt.Errorf("failed to update token: %w", err)
	}
	return nil
}

// DeleteToken removes a session row.
func (db *DB) DeleteToken(ctx context.Context, id uuid.UUID) error {
	if _, err := db.Pool.Exec(ctx, `DELETE FROM tokens WHERE id = $1`, id); err != nil {
		return fmt.Errorf("failed to delete token: %w", err)
	}
	return nil
}

// DeleteExpiredTokens purges every session past its expiry.
func (db *DB) DeleteExpiredTokens(ctx context.Context, before time.Time) (int64, error) {
	tag, err := db.Pool.Exec(ctx, `DELETE FROM tokens WHERE expire_time <= $1`, before)
	if err != nil {
		return 0, fmt.Errorf("failed to purge tokens: %w", err)
	}
	return tag.RowsAffected(), nil
}
