package auth

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"ftnmarket/internal/models"
	"ftnmarket/internal/record"
)

// Storage field names of the user aggregate.
const (
	colSignupTime     = "signup_time"
	colLastActiveTime = "last_active_time"
	colUserName       = "user_name"
	colPassword       = "password"
	colAdminLevel     = "admin_level"
	colUserLevel      = "user_level"
	colProfileURL     = "profile_url"
	colProfileName    = "profile_name"
)

var userSchema = record.NewSchema("user",
	colSignupTime, colLastActiveTime, colUserName, colPassword,
	colAdminLevel, colUserLevel, colProfileURL, colProfileName,
)

// profileURLPrefix is the only accepted shape of an external profile link.
const profileURLPrefix = "https://www.jianshu.com/u/"

// User is a loaded account aggregate.
type User struct {
	svc   *Service
	row   models.User
	dirty *record.Tracker
}

// ID returns the user's immutable identity.
func (u *User) ID() uuid.UUID { return u.row.ID }

// Data returns a copy of the user's current state.
func (u *User) Data() models.User { return u.row }

// Equal is identity equality by ID.
func (u *User) Equal(other *User) bool {
	return other != nil && u.row.ID == other.row.ID
}

// ChangeName renames the account after the same validation signup runs.
// Renaming to the current name fails with ErrNameNotChanged.
func (u *User) ChangeName(ctx context.Context, name string) error {
	if name == "" {
		return fmt.Errorf("%w: name is required", ErrUsernameIllegal)
	}
	if name == u.row.Name {
		return ErrNameNotChanged
	}
	if isIllegalUserName(name) {
		return ErrUsernameIllegal
	}
	taken, err := u.svc.store.CountUsersByName(ctx, name)
	if err != nil {
		return fmt.Errorf("check username: %w", err)
	}
	if taken > 0 {
		return ErrDuplicateUsername
	}
	u.row.Name = name
	if err := u.dirty.Mark(colUserName); err != nil {
		return err
	}
	return u.Save(ctx)
}

// ChangePassword verifies the old password, validates and stores the new
// one, then expires every live session of the account so stolen tokens die
// with the old password.
func (u *User) ChangePassword(ctx context.Context, oldPassword, newPassword, newPasswordAgain string) error {
	if newPassword != newPasswordAgain {
		return ErrPasswordMismatch
	}
	if newPassword == "" {
		return fmt.Errorf("%w: password is required", ErrPasswordIllegal)
	}
	if isIllegalPassword(newPassword) {
		return ErrPasswordIllegal
	}
	if isWeakPassword(newPassword) {
		return ErrWeakPassword
	}
	if bcrypt.CompareHashAndPassword([]byte(u.row.EncryptedPassword), []byte(oldPassword)) != nil {
		return ErrUsernameOrPasswordWrong
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	u.row.EncryptedPassword = string(hashed)
	if err := u.dirty.Mark(colPassword); err != nil {
		return err
	}
	if err := u.Save(ctx); err != nil {
		return err
	}
	return u.ExpireAllTokens(ctx)
}

// BindProfile links the account to an external profile page, at most once
// per account and at most one account per URL. The display name is fetched
// from the page at bind time.
func (u *User) BindProfile(ctx context.Context, url string) error {
	url = strings.TrimSpace(url)
	if !strings.HasPrefix(url, profileURLPrefix) || len(url) == len(profileURLPrefix) {
		return ErrProfileURLIllegal
	}
	if u.row.ProfileURL != nil {
		return ErrAlreadyBound
	}
	bound, err := u.svc.store.CountUsersByProfileURL(ctx, url)
	if err != nil {
		return fmt.Errorf("check profile binding: %w", err)
	}
	if bound > 0 {
		return ErrDuplicateBinding
	}
	if u.svc.resolver == nil {
		return fmt.Errorf("profile binding is not configured")
	}
	name, err := u.svc.resolver.DisplayName(ctx, url)
	if err != nil {
		return fmt.Errorf("resolve profile name: %w", err)
	}

	u.row.ProfileURL = &url
	u.row.ProfileName = &name
	if err := u.dirty.Mark(colProfileURL, colProfileName); err != nil {
		return err
	}
	return u.Save(ctx)
}

// IssueToken creates a new session for the account.
func (u *User) IssueToken(ctx context.Context) (*Token, error) {
	row, err := newTokenRow(u.row.ID, u.svc.tokenTTL)
	if err != nil {
		return nil, err
	}
	if err := u.svc.store.InsertToken(ctx, &row); err != nil {
		return nil, fmt.Errorf("insert token: %w", err)
	}
	return u.svc.wrapToken(row), nil
}

// ExpireAllTokens deletes every live session of the account.
func (u *User) ExpireAllTokens(ctx context.Context) error {
	tokens, err := u.svc.store.ListUserTokens(ctx, u.row.ID)
	if err != nil {
		return fmt.Errorf("list tokens: %w", err)
	}
	for _, row := range tokens {
		if err := u.svc.store.DeleteToken(ctx, row.ID); err != nil {
			return fmt.Errorf("delete token: %w", err)
		}
	}
	return nil
}

// UpdateLastActive stamps the activity time and flushes only that field,
// leaving any other pending change dirty.
func (u *User) UpdateLastActive(ctx context.Context) error {
	u.row.LastActiveTime = nowSecond()
	if err := u.dirty.Mark(colLastActiveTime); err != nil {
		return err
	}
	return u.SaveOnly(ctx, colLastActiveTime)
}

// Save flushes every dirty field as one partial update.
func (u *User) Save(ctx context.Context) error {
	set, err := u.values(u.dirty.Dirty())
	if err != nil {
		return err
	}
	if len(set) == 0 {
		return nil
	}
	if err := u.svc.store.UpdateUser(ctx, u.row.ID, set); err != nil {
		return fmt.Errorf("save user: %w", err)
	}
	u.dirty.Clear()
	return nil
}

// SaveOnly flushes exactly the given dirty fields.
func (u *User) SaveOnly(ctx context.Context, fields ...string) error {
	taken, err := u.dirty.TakeOnly(fields...)
	if err != nil {
		return err
	}
	set, err := u.values(taken)
	if err != nil {
		return err
	}
	if err := u.svc.store.UpdateUser(ctx, u.row.ID, set); err != nil {
		return fmt.Errorf("save user: %w", err)
	}
	return nil
}

// SaveAll rewrites every schema field regardless of dirty state.
func (u *User) SaveAll(ctx context.Context) error {
	set, err := u.values(userSchema.Fields())
	if err != nil {
		return err
	}
	if err := u.svc.store.UpdateUser(ctx, u.row.ID, set); err != nil {
		return fmt.Errorf("save user: %w", err)
	}
	u.dirty.Clear()
	return nil
}

// Remove deletes the account row and its sessions.
func (u *User) Remove(ctx context.Context) error {
	if err := u.ExpireAllTokens(ctx); err != nil {
		return err
	}
	return u.svc.store.DeleteUser(ctx, u.row.ID)
}

func (u *User) values(fields []string) (map[string]any, error) {
	set := make(map[string]any, len(fields))
	for _, f := range fields {
		v, err := u.value(f)
		if err != nil {
			return nil, err
		}
		set[f] = v
	}
	return set, nil
}

func (u *User) value(field string) (any, error) {
	switch field {
	case colSignupTime:
		return u.row.SignupTime, nil
	case colLastActiveTime:
		return u.row.LastActiveTime, nil
	case colUserName:
		return u.row.Name, nil
	case colPassword:
		return u.row.EncryptedPassword, nil
	case colAdminLevel:
		return u.row.AdminLevel, nil
	case colUserLevel:
		return u.row.UserLevel, nil
	case colProfileURL:
		return u.row.ProfileURL, nil
	case colProfileName:
		return u.row.ProfileName, nil
	}
	return nil, fmt.Errorf("user.%s: %w", field, record.ErrSchemaViolation)
}
