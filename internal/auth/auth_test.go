package auth_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"ftnmarket/internal/auth"
	"ftnmarket/internal/storetest"
)

func newTestService(t *testing.T, ttl time.Duration) (*auth.Service, *storetest.Store) {
	t.Helper()
	store := storetest.New()
	return auth.NewService(store, zap.NewNop(), ttl, nil), store
}

func signup(t *testing.T, svc *auth.Service, name string) *auth.User {
	t.Helper()
	user, err := svc.Signup(context.Background(), name, "passw0rd1", "passw0rd1", 0, 1)
	require.NoError(t, err)
	return user
}

func TestSignup(t *testing.T) {
	svc, _ := newTestService(t, 0)
	ctx := context.Background()

	user, err := svc.Signup(ctx, "alice", "passw0rd1", "passw0rd1", 0, 1)
	require.NoError(t, err)

	data := user.Data()
	assert.Equal(t, "alice", data.Name)
	// Stored hashed, never plaintext.
	assert.NotEqual(t, "passw0rd1", data.EncryptedPassword)
	assert.NotEmpty(t, data.EncryptedPassword)
	assert.Equal(t, data.SignupTime, data.LastActiveTime)
}

func TestSignup_Validation(t *testing.T) {
	svc, _ := newTestService(t, 0)
	ctx := context.Background()

	cases := []struct {
		name     string
		username string
		pass     string
		again    string
		want     error
	}{
		{"mismatch", "bob", "passw0rd1", "passw0rd2", auth.ErrPasswordMismatch},
		{"empty name", "", "passw0rd1", "passw0rd1", auth.ErrUsernameIllegal},
		{"illegal name", "bad name!", "passw0rd1", "passw0rd1", auth.ErrUsernameIllegal},
		{"empty password", "bob", "", "", auth.ErrPasswordIllegal},
		{"password with space", "bob", "pass w0rd1", "pass w0rd1", auth.ErrPasswordIllegal},
		{"short password", "bob", "pw1", "pw1", auth.ErrWeakPassword},
		{"letters only", "bob", "passwordx", "passwordx", auth.ErrWeakPassword},
		{"digits only", "bob", "12345678", "12345678", auth.ErrWeakPassword},
		{"symbols", "bob", "passw0rd!", "passw0rd!", auth.ErrWeakPassword},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Signup(ctx, tc.username, tc.pass, tc.again, 0, 1)
			assert.ErrorIs(t, err, tc.want)
		})
	}
}

func TestSignup_DuplicateName(t *testing.T) {
	svc, _ := newTestService(t, 0)
	signup(t, svc, "carol")

	_, err := svc.Signup(context.Background(), "carol", "passw0rd1", "passw0rd1", 0, 1)
	assert.ErrorIs(t, err, auth.ErrDuplicateUsername)
}

func TestLogin(t *testing.T) {
	svc, _ := newTestService(t, 0)
	ctx := context.Background()
	created := signup(t, svc, "dave")

	user, err := svc.Login(ctx, "dave", "passw0rd1")
	require.NoError(t, err)
	assert.True(t, user.Equal(created))

	// Wrong password and unknown name are indistinguishable.
	_, err = svc.Login(ctx, "dave", "wrongpass1")
	assert.ErrorIs(t, err, auth.ErrUsernameOrPasswordWrong)
	_, err = svc.Login(ctx, "nobody", "passw0rd1")
	assert.ErrorIs(t, err, auth.ErrUsernameOrPasswordWrong)
}

func TestTokenLifecycle(t *testing.T) {
	svc, store := newTestService(t, time.Hour)
	ctx := context.Background()
	user := signup(t, svc, "erin")

	token, err := user.IssueToken(ctx)
	require.NoError(t, err)
	assert.Len(t, token.Value(), 64)
	assert.Equal(t, 1, store.TokenCount())

	userID, err := svc.VerifyToken(ctx, token.Value())
	require.NoError(t, err)
	assert.Equal(t, user.ID(), userID)

	_, err = svc.VerifyToken(ctx, "no-such-token")
	assert.ErrorIs(t, err, auth.ErrTokenNotFound)
	_, err = svc.VerifyToken(ctx, "")
	assert.ErrorIs(t, err, auth.ErrTokenNotFound)

	require.NoError(t, svc.Logout(ctx, token.Value()))
	assert.Equal(t, 0, store.TokenCount())
	_, err = svc.VerifyToken(ctx, token.Value())
	assert.ErrorIs(t, err, auth.ErrTokenNotFound)
}

func TestTokenUniqueness(t *testing.T) {
	svc, _ := newTestService(t, time.Hour)
	ctx := context.Background()
	user := signup(t, svc, "frank")

	a, err := user.IssueToken(ctx)
	require.NoError(t, err)
	b, err := user.IssueToken(ctx)
	require.NoError(t, err)
	assert.NotEqual(t, a.Value(), b.Value())
}

func TestVerifyToken_SlidesExpiry(t *testing.T) {
	svc, store := newTestService(t, time.Hour)
	ctx := context.Background()
	user := signup(t, svc, "grace")

	token, err := user.IssueToken(ctx)
	require.NoError(t, err)
	before := token.Data().ExpireTime

	// Expiries are stored at second precision; move past the boundary.
	time.Sleep(1100 * time.Millisecond)
	_, err = svc.VerifyToken(ctx, token.Value())
	require.NoError(t, err)

	row, err := store.FindTokenByValue(ctx, token.Value())
	require.NoError(t, err)
	require.NotNil(t, row)
	assert.True(t, row.ExpireTime.After(before), "expiry did not slide forward")
}

func TestVerifyToken_ExpiredTokenSelfHeals(t *testing.T) {
	svc, store := newTestService(t, time.Hour)
	ctx := context.Background()
	user := signup(t, svc, "heidi")

	token, err := user.IssueToken(ctx)
	require.NoError(t, err)
	backdate(t, store, token, time.Now().Add(-time.Minute))

	_, err = svc.VerifyToken(ctx, token.Value())
	assert.ErrorIs(t, err, auth.ErrTokenNotFound)
	// The dead row was removed on sight.
	assert.Equal(t, 0, store.TokenCount())
}

// backdate rewrites a token's stored expiry, simulating the passage of time.
func backdate(t *testing.T, store *storetest.Store, token *auth.Token, expire time.Time) {
	t.Helper()
	err := store.UpdateToken(context.Background(), token.Data().ID, map[string]any{"expire_time": expire})
	require.NoError(t, err)
}

func TestChangePassword(t *testing.T) {
	svc, store := newTestService(t, time.Hour)
	ctx := context.Background()
	user := signup(t, svc, "ivan")

	_, err := user.IssueToken(ctx)
	require.NoError(t, err)
	_, err = user.IssueToken(ctx)
	require.NoError(t, err)

	err = user.ChangePassword(ctx, "wrongpass1", "newpassw0rd", "newpassw0rd")
	assert.ErrorIs(t, err, auth.ErrUsernameOrPasswordWrong)

	require.NoError(t, user.ChangePassword(ctx, "passw0rd1", "newpassw0rd", "newpassw0rd"))

	// Every session died with the old password.
	assert.Equal(t, 0, store.TokenCount())
	_, err = svc.Login(ctx, "ivan", "passw0rd1")
	assert.ErrorIs(t, err, auth.ErrUsernameOrPasswordWrong)
	_, err = svc.Login(ctx, "ivan", "newpassw0rd")
	assert.NoError(t, err)
}

func TestChangeName(t *testing.T) {
	svc, _ := newTestService(t, 0)
	ctx := context.Background()
	user := signup(t, svc, "judy")
	signup(t, svc, "taken")

	assert.ErrorIs(t, user.ChangeName(ctx, "judy"), auth.ErrNameNotChanged)
	assert.ErrorIs(t, user.ChangeName(ctx, "taken"), auth.ErrDuplicateUsername)
	assert.ErrorIs(t, user.ChangeName(ctx, "bad name!"), auth.ErrUsernameIllegal)

	require.NoError(t, user.ChangeName(ctx, "judith"))
	reloaded, err := svc.User(ctx, user.ID())
	require.NoError(t, err)
	assert.Equal(t, "judith", reloaded.Data().Name)
}

func TestPurgeExpiredTokens(t *testing.T) {
	svc, store := newTestService(t, time.Hour)
	ctx := context.Background()
	user := signup(t, svc, "kate")

	_, err := user.IssueToken(ctx)
	require.NoError(t, err)
	stale, err := user.IssueToken(ctx)
	require.NoError(t, err)
	backdate(t, store, stale, time.Now().Add(-time.Minute))
	require.Equal(t, 2, store.TokenCount())

	purged, err := svc.PurgeExpiredTokens(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), purged)
	assert.Equal(t, 1, store.TokenCount())
}

func TestUserNotFound(t *testing.T) {
	svc, _ := newTestService(t, 0)
	_, err := svc.User(context.Background(), uuid.New())
	assert.ErrorIs(t, err, auth.ErrUserNotFound)
}
