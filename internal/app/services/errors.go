package services

import "errors"

var (
	// ErrInvalidCredentials indicates a failed username/password check.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrUsernameTaken indicates a signup against an existing username.
	ErrUsernameTaken = errors.New("username taken")
	// ErrAccountNotFound indicates the requested account does not exist.
	ErrAccountNotFound = errors.New("account not found")
	// ErrKeyNotFound indicates the requested API key does not exist for the caller.
	ErrKeyNotFound = errors.New("api key not found")
)

// ValidationError carries a caller-facing message for a rejected request field.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func validationErr(message string) error {
	return &ValidationError{Message: message}
}
