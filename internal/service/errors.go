package service

import "errors"

// Flow specific errors used by handlers for stable error_type mapping.
var (
	ErrFeatureDisabled         = errors.New("feature_disabled")
	ErrEmailTaken              = errors.New("email_taken")
	ErrUsernameTaken           = errors.New("username_taken")
	ErrEmailNotVerified        = errors.New("email_not_verified")
	ErrInvalidCredentials      = errors.New("invalid_credentials")
	ErrUnsafeContent           = errors.New("unsafe_content")
	ErrInvalidVerificationCode = errors.New("invalid_verification_code")
	ErrVerificationExpired     = errors.New("verification_expired")
	ErrVerificationLocked      = errors.New("verification_locked")
	ErrNoActiveCode            = errors.New("no_active_verification_code")
	ErrResetTokenInvalid       = errors.New("reset_token_invalid")
	ErrResetTokenExpired       = errors.New("reset_token_expired")
)
