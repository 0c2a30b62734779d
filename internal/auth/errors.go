package auth

import "errors"

var (
	// ErrEmailAlreadyExists indicates the email is already registered or awaiting activation.
	ErrEmailAlreadyExists = errors.New("email already exists")
	// ErrInvalidCredentials is returned when authentication fails.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrActivationPending is returned on login before the activation link was followed.
	ErrActivationPending = errors.New("activation pending")
	// ErrInactiveUser is returned for accounts that exist but are disabled.
	ErrInactiveUser = errors.New("inactive user")
	// ErrInvalidActivationToken covers malformed, expired and already used activation tokens.
	ErrInvalidActivationToken = errors.New("invalid activation token")
	// ErrUserNotFound signals that the user could not be located.
	ErrUserNotFound = errors.New("user not found")
	// ErrUnauthorized represents a missing, unknown or expired session.
	ErrUnauthorized = errors.New("unauthorized")
)
