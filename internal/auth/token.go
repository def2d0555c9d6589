package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/google/uuid"

	"ftnmarket/internal/models"
	"ftnmarket/internal/record"
)

// Storage field names of the token aggregate. The value itself never
// changes after issue.
const (
	colCreateTime = "create_time"
	colExpireTime = "expire_time"
	colUserID     = "user_id"
	colToken      = "token"
)

var tokenSchema = record.NewSchema("token",
	colCreateTime, colExpireTime, colUserID, colToken,
)

// Token is a loaded session aggregate.
type Token struct {
	svc   *Service
	row   models.Token
	dirty *record.Tracker
}

// newTokenRow builds a fresh session row. The value hashes the owner ID,
// the issue instant and 16 random bytes, so it is unguessable and unique
// even across same-nanosecond issues.
func newTokenRow(userID uuid.UUID, ttl time.Duration) (models.Token, error) {
	var buf [8 + 16 + 16]byte
	binary.BigEndian.PutUint64(buf[:8], uint64(time.Now().UnixNano()))
	copy(buf[8:24], userID[:])
	if _, err := rand.Read(buf[24:]); err != nil {
		return models.Token{}, fmt.Errorf("generate token: %w", err)
	}
	sum := sha256.Sum256(buf[:])

	now := nowSecond()
	return models.Token{
		ID:         uuid.New(),
		CreateTime: now,
		ExpireTime: now.Add(ttl),
		UserID:     userID,
		Value:      hex.EncodeToString(sum[:]),
	}, nil
}

// Value returns the opaque credential handed to the client.
func (t *Token) Value() string { return t.row.Value }

// Data returns a copy of the token's current state.
func (t *Token) Data() models.Token { return t.row }

// Equal is identity equality by ID.
func (t *Token) Equal(other *Token) bool {
	return other != nil && t.row.ID == other.row.ID
}

// Expired reports whether the expiry has passed.
func (t *Token) Expired() bool {
	return !t.row.ExpireTime.After(time.Now())
}

// Refresh slides the expiry forward to now plus the TTL and flushes only
// that field.
func (t *Token) Refresh(ctx context.Context) error {
	t.row.ExpireTime = nowSecond().Add(t.svc.tokenTTL)
	if err := t.dirty.Mark(colExpireTime); err != nil {
		return err
	}
	return t.SaveOnly(ctx, colExpireTime)
}

// Expire deletes the session row. Expired sessions are gone, not flagged.
func (t *Token) Expire(ctx context.Context) error {
	if err := t.svc.store.DeleteToken(ctx, t.row.ID); err != nil {
		return fmt.Errorf("delete token: %w", err)
	}
	return nil
}

// Save flushes every dirty field as one partial update.
func (t *Token) Save(ctx context.Context) error {
	set, err := t.values(t.dirty.Dirty())
	if err != nil {
		return err
	}
	if len(set) == 0 {
		return nil
	}
	if err := t.svc.store.UpdateToken(ctx, t.row.ID, set); err != nil {
		return fmt.Errorf("save token: %w", err)
	}
	t.dirty.Clear()
	return nil
}

// SaveOnly flushes exactly the given dirty fields.
func (t *Token) SaveOnly(ctx context.Context, fields ...string) error {
	taken, err := t.dirty.TakeOnly(fields...)
	if err != nil {
		return err
	}
	set, err := t.values(taken)
	if err != nil {
		return err
	}
	if err := t.svc.store.UpdateToken(ctx, t.row.ID, set); err != nil {
		return fmt.Errorf("save token: %w", err)
	}
	return nil
}

func (t *Token) values(fields []string) (map[string]any, error) {
	set := make(map[string]any, len(fields))
	for _, f := range fields {
		v, err := t.value(f)
		if err != nil {
			return nil, err
		}
		set[f] = v
	}
	return set, nil
}

func (t *Token) value(field string) (any, error) {
	switch field {
	case colCreateTime:
		return t.row.CreateTime, nil
	case colExpireTime:
		return t.row.ExpireTime, nil
	case colUserID:
		return t.row.UserID, nil
	case colToken:
		return t.row.Value, nil
	}
	return nil, fmt.Errorf("token.%s: %w", field, record.ErrSchemaViolation)
}
