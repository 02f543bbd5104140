package domain

import "errors"

// Authentication failures. All of them surface as 401.
var (
	ErrUnauthorized        = errors.New("unauthorized")
	ErrNoToken             = errors.New("No token provided")
	ErrInvalidToken        = errors.New("Invalid token")
	ErrInvalidCredentials  = errors.New("invalid credentials")
	ErrUserNotFound        = errors.New("user not found")
	ErrMissingRefreshToken = errors.New("No refresh token provided")
	ErrNotAuthenticated    = errors.New("User not authenticated")
	ErrNoTenantRoles       = errors.New("User has no tenant roles")
)

var ErrForbidden = errors.New("access forbidden")

var ErrTenantRequired = errors.New("Tenant ID is required")

// Role grant management.
var (
	ErrInvalidGrant  = errors.New("invalid role grant")
	ErrGrantExists   = errors.New("role grant already exists")
	ErrGrantNotFound = errors.New("role grant not found")
	ErrRoleNotFound  = errors.New("role not found")
)

var unauthorizedErrors = []error{
	ErrUnauthorized,
	ErrNoToken,
	ErrInvalidToken,
	ErrInvalidCredentials,
	ErrUserNotFound,
	ErrMissingRefreshToken,
	ErrNotAuthenticated,
	ErrNoTenantRoles,
}

// IsUnauthorized reports whether err belongs to the 401 family.
func IsUnauthorized(err error) bool {
	_, ok := UnauthorizedCause(err)
	return ok
}

// UnauthorizedCause returns the 401 sentinel wrapped by err, if any.
func UnauthorizedCause(err error) (error, bool) {
	for _, target := range unauthorizedErrors {
		if errors.Is(err, target) {
			return target, true
		}
	}
	return nil, false
}
