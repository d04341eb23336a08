package auth

import "errors"

var (
	ErrNotFound     = errors.New("auth: not found")
	ErrConflict     = errors.New("auth: already exists")
	ErrInvalidInput = errors.New("auth: invalid input")

	ErrUnauthorized       = errors.New("auth: unauthorized")
	ErrForbidden          = errors.New("auth: forbidden")
	ErrTokenExpired       = errors.New("auth: token expired")
	ErrInvalidToken       = errors.New("auth: invalid token")
	ErrInvalidCredentials = errors.New("auth: invalid credentials")

	ErrUserNotFound       = errors.New("auth: user not found")
	ErrUserInactive       = errors.New("auth: user is inactive")
	ErrTenantNotFound     = errors.New("auth: tenant not found")
	ErrTenantSuspended    = errors.New("auth: tenant is suspended")
	ErrTenantAccessDenied = errors.New("auth: tenant access denied")
	ErrStoreNotFound      = errors.New("auth: store not found")
	ErrStoreAccessDenied  = errors.New("auth: store access denied")

	ErrInsufficientPermissions = errors.New("auth: insufficient permissions")
)
