package auth

import (
	"context"
	"time"

	"github.com/google/uuid"

	"ftnmarket/internal/models"
)

// Store is the storage contract the account and session aggregates run
// against. Lookups return (nil, nil) when no row matches; partial updates
// receive a column-name keyed map holding only the fields to rewrite.
type Store interface {
	InsertUser(ctx context.Context, u *models.User) error
	GetUser(ctx context.Context, id uuid.UUID) (*models.User, error)
	FindUserByName(ctx context.Context, name string) (*models.User, error)
	CountUsersByName(ctx context.Context, name string) (int64, error)
	CountUsersByProfileURL(ctx context.Context, url string) (int64, error)
	UpdateUser(ctx context.Context, id uuid.UUID, set map[string]any) error
	DeleteUser(ctx context.Context, id uuid.UUID) error

	InsertToken(ctx context.Context, t *models.Token) error
	FindTokenByValue(ctx context.Context, value string) (*models.Token, error)
	ListUserTokens(ctx context.Context, userID uuid.UUID) ([]models.Token, error)
	UpdateToken(ctx context.Context, id uuid.UUID, set map[string]any) error
	DeleteToken(ctx context.Context, id uuid.UUID) error

	// DeleteExpiredTokens purges rows whose expiry has passed, emulating a
	// storage-level TTL. Verification never relies on it having run.
	DeleteExpiredTokens(ctx context.Context, before time.Time) (int64, error)
}
