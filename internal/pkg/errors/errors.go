package errors

import "errors"

// Shared application errors. Services wrap these with fmt.Errorf("%w: detail")
// so handlers can map them to HTTP statuses with errors.Is.
var (
	// ErrNotFound is returned when a record or resource does not exist.
	ErrNotFound = errors.New("record not found")

	// ErrUnauthorized covers bad credentials, unverified accounts and invalid tokens.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrForbidden is returned when the caller lacks permission for an action.
	ErrForbidden = errors.New("forbidden")

	// ErrValidation is returned for invalid input data.
	ErrValidation = errors.New("validation failed")

	// ErrExpiredToken is returned when a verification or reset token has expired.
	ErrExpiredToken = errors.New("token is expired")

	// ErrConflict is returned for state conflicts such as duplicate email/username.
	ErrConflict = errors.New("resource state conflict")

	// ErrRateLimited is returned when an account is temporarily locked out.
	ErrRateLimited = errors.New("rate limited")
)
