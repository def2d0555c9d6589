package auth_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"ftnmarket/internal/auth"
	"ftnmarket/internal/storetest"
)

type fakeResolver struct {
	name string
	err  error
}

func (r *fakeResolver) DisplayName(context.Context, string) (string, error) {
	return r.name, r.err
}

func newProfileService(t *testing.T, resolver auth.ProfileResolver) (*auth.Service, *storetest.Store) {
	t.Helper()
	store := storetest.New()
	return auth.NewService(store, zap.NewNop(), 0, resolver), store
}

func TestBindProfile(t *testing.T) {
	svc, _ := newProfileService(t, &fakeResolver{name: "Alice Writes"})
	ctx := context.Background()
	user := signup(t, svc, "alice")

	require.NoError(t, user.BindProfile(ctx, "https://www.jianshu.com/u/abc123"))

	reloaded, err := svc.User(ctx, user.ID())
	require.NoError(t, err)
	data := reloaded.Data()
	require.NotNil(t, data.ProfileURL)
	assert.Equal(t, "https://www.jianshu.com/u/abc123", *data.ProfileURL)
	require.NotNil(t, data.ProfileName)
	assert.Equal(t, "Alice Writes", *data.ProfileName)
}

func TestBindProfile_URLValidation(t *testing.T) {
	svc, _ := newProfileService(t, &fakeResolver{name: "x"})
	ctx := context.Background()
	user := signup(t, svc, "bob")

	for _, url := range []string{
		"",
		"https://example.com/u/abc",
		"http://www.jianshu.com/u/abc",
		"https://www.jianshu.com/u/",
	} {
		assert.ErrorIs(t, user.BindProfile(ctx, url), auth.ErrProfileURLIllegal, "url %q", url)
	}
}

func TestBindProfile_AtMostOnce(t *testing.T) {
	svc, _ := newProfileService(t, &fakeResolver{name: "x"})
	ctx := context.Background()
	user := signup(t, svc, "carol")

	require.NoError(t, user.BindProfile(ctx, "https://www.jianshu.com/u/carol1"))
	err := user.BindProfile(ctx, "https://www.jianshu.com/u/carol2")
	assert.ErrorIs(t, err, auth.ErrAlreadyBound)
}

func TestBindProfile_URLUniqueAcrossUsers(t *testing.T) {
	svc, _ := newProfileService(t, &fakeResolver{name: "x"})
	ctx := context.Background()
	first := signup(t, svc, "dave")
	second := signup(t, svc, "erin")

	require.NoError(t, first.BindProfile(ctx, "https://www.jianshu.com/u/shared"))
	err := second.BindProfile(ctx, "https://www.jianshu.com/u/shared")
	assert.ErrorIs(t, err, auth.ErrDuplicateBinding)
}
