package auth

import "errors"

var (
	ErrUsernameIllegal         = errors.New("username missing or contains illegal characters")
	ErrPasswordIllegal         = errors.New("password missing or contains illegal characters")
	ErrPasswordMismatch        = errors.New("passwords do not match")
	ErrWeakPassword            = errors.New("password too weak")
	ErrDuplicateUsername       = errors.New("username already taken")
	ErrUsernameOrPasswordWrong = errors.New("username or password wrong")
	ErrNameNotChanged          = errors.New("new name equals the old name")
	ErrUserNotFound            = errors.New("user not found")
	ErrTokenNotFound           = errors.New("token not found or expired")
	ErrProfileURLIllegal       = errors.New("profile url missing or malformed")
	ErrAlreadyBound            = errors.New("user already has a profile binding")
	ErrDuplicateBinding        = errors.New("profile url already bound by another user")
)
