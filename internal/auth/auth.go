// Package auth implements the account and session aggregates: signup and
// login, password and name changes, the optional external profile binding,
// and server-side session tokens with sliding expiry.
package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"ftnmarket/internal/models"
)

// DefaultTokenTTL is the sliding session lifetime used when none is
// configured.
const DefaultTokenTTL = 24 * time.Hour

// Service loads and creates user and token aggregates.
type Service struct {
	store    Store
	log      *zap.Logger
	tokenTTL time.Duration
	resolver ProfileResolver
}

// NewService creates an auth service. resolver may be nil when profile
// binding is not used.
func NewService(store Store, log *zap.Logger, tokenTTL time.Duration, resolver ProfileResolver) *Service {
	if tokenTTL <= 0 {
		tokenTTL = DefaultTokenTTL
	}
	return &Service{store: store, log: log, tokenTTL: tokenTTL, resolver: resolver}
}

// Signup validates and registers a new account. Permission levels range
// 0-5; regular signups use (0, 1).
func (s *Service) Signup(ctx context.Context, name, password, passwordAgain string, adminLevel, userLevel int) (*User, error) {
	if password != passwordAgain {
		return nil, ErrPasswordMismatch
	}
	if adminLevel < 0 || adminLevel > 5 || userLevel < 0 || userLevel > 5 {
		return nil, fmt.Errorf("permission levels must be in [0, 5]")
	}
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrUsernameIllegal)
	}
	if password == "" {
		return nil, fmt.Errorf("%w: password is required", ErrPasswordIllegal)
	}
	if isIllegalUserName(name) {
		return nil, ErrUsernameIllegal
	}
	if isIllegalPassword(password) {
		return nil, ErrPasswordIllegal
	}
	if isWeakPassword(password) {
		return nil, ErrWeakPassword
	}

	taken, err := s.store.CountUsersByName(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("check username: %w", err)
	}
	if taken > 0 {
		return nil, ErrDuplicateUsername
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	now := nowSecond()
	row := models.User{
		ID:                uuid.New(),
		SignupTime:        now,
		LastActiveTime:    now,
		Name:              name,
		EncryptedPassword: string(hashed),
		AdminLevel:        adminLevel,
		UserLevel:         userLevel,
	}
	if err := s.store.InsertUser(ctx, &row); err != nil {
		return nil, fmt.Errorf("insert user: %w", err)
	}
	return s.wrapUser(row), nil
}

// Login verifies credentials. Unknown names and wrong passwords are
// indistinguishable to the caller.
func (s *Service) Login(ctx context.Context, name, password string) (*User, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrUsernameIllegal)
	}
	if password == "" {
		return nil, fmt.Errorf("%w: password is required", ErrPasswordIllegal)
	}
	row, err := s.store.FindUserByName(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("find user: %w", err)
	}
	if row == nil {
		return nil, ErrUsernameOrPasswordWrong
	}
	if bcrypt.CompareHashAndPassword([]byte(row.EncryptedPassword), []byte(password)) != nil {
		return nil, ErrUsernameOrPasswordWrong
	}
	return s.wrapUser(*row), nil
}

// User loads a user aggregate by ID.
func (s *Service) User(ctx context.Context, id uuid.UUID) (*User, error) {
	row, err := s.store.GetUser(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}
	if row == nil {
		return nil, ErrUserNotFound
	}
	return s.wrapUser(*row), nil
}

// VerifyToken resolves a session token value to its owner. A missing,
// unknown or expired token fails with ErrTokenNotFound. On success the
// token's expiry slides forward by the TTL and the owner's last-active
// time refreshes; both are single-field writes whose failures are logged,
// not surfaced.
func (s *Service) VerifyToken(ctx context.Context, value string) (uuid.UUID, error) {
	tok, err := s.token(ctx, value)
	if err != nil {
		return uuid.Nil, err
	}
	if err := tok.Refresh(ctx); err != nil {
		s.log.Warn("token refresh failed", zap.Error(err))
	}
	if user, err := s.User(ctx, tok.row.UserID); err == nil {
		if err := user.UpdateLastActive(ctx); err != nil {
			s.log.Warn("last-active refresh failed", zap.Error(err))
		}
	}
	return tok.row.UserID, nil
}

// Logout deletes the session behind the token value. Unknown values are
// a no-op.
func (s *Service) Logout(ctx context.Context, value string) error {
	tok, err := s.token(ctx, value)
	if err != nil {
		return nil
	}
	return tok.Expire(ctx)
}

// PurgeExpiredTokens physically removes sessions past their expiry.
func (s *Service) PurgeExpiredTokens(ctx context.Context) (int64, error) {
	return s.store.DeleteExpiredTokens(ctx, time.Now())
}

// token loads a live token aggregate by value. An expired row is removed
// on sight so reads self-heal.
func (s *Service) token(ctx context.Context, value string) (*Token, error) {
	if value == "" {
		return nil, ErrTokenNotFound
	}
	row, err := s.store.FindTokenByValue(ctx, value)
	if err != nil {
		return nil, fmt.Errorf("find token: %w", err)
	}
	if row == nil {
		return nil, ErrTokenNotFound
	}
	tok := s.wrapToken(*row)
	if tok.Expired() {
		if err := tok.Expire(ctx); err != nil {
			s.log.Warn("expired token cleanup failed", zap.Error(err))
		}
		return nil, ErrTokenNotFound
	}
	return tok, nil
}

func (s *Service) wrapUser(row models.User) *User {
	return &User{svc: s, row: row, dirty: userSchema.NewTracker()}
}

func (s *Service) wrapToken(row models.Token) *Token {
	return &Token{svc: s, row: row, dirty: tokenSchema.NewTracker()}
}

func nowSecond() time.Time {
	return time.Now().Truncate(time.Second)
}
