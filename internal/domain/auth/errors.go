package auth

import "errors"

var (
	// ErrInvalidCredentials indicates a failed login.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrAdminLocalOnly indicates the admin account may not log in through
	// the regular user path.
	ErrAdminLocalOnly = errors.New("admin access is local only")
	// ErrInvalidInput indicates a missing user ID.
	ErrInvalidInput = errors.New("invalid auth input")
)
