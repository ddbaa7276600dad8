package users

import "errors"

var (
	// ErrUsernameTaken is returned by Register for a username already in use.
	ErrUsernameTaken = errors.New("username already taken")

	// ErrInvalidCredentials is returned by Authenticate for an unknown
	// username or a wrong password. The two cases are indistinguishable.
	ErrInvalidCredentials = errors.New("invalid username or password")

	// ErrInvalidInput is returned when registration fields fail validation.
	ErrInvalidInput = errors.New("invalid input")

	// ErrNotFound is returned for unknown users.
	ErrNotFound = errors.New("user not found")
)
