package domain

// ApiError is the machine-readable error body written on request failures.
// The shape is part of the public API contract and must stay stable.
type ApiError struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// Fixed status labels used across endpoint error responses.
const (
	StatusUnauthorized = "UNAUTHORIZED"
	StatusBadRequest   = "BAD_REQUEST"
	StatusNotFound     = "NOT_FOUND"
	StatusConflict     = "CONFLICT"
)

// ErrInvalidExpiredToken is the single error surfaced by the authentication
// gate: any token that fails validation maps to this response.
var ErrInvalidExpiredToken = ApiError{
	Status:  StatusUnauthorized,
	Message: "Invalid or expired token.",
}
