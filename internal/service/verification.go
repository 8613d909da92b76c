package service

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"time"

	"github.com/yourusername/account-api/internal/domain/entity"
	"github.com/yourusername/account-api/internal/domain/repository"
)

const (
	verificationCodeTTL  = 10 * time.Minute
	verificationMaxTries = 5
	verificationLockFor  = 30 * time.Minute
)

// VerificationErrorKind classifies a failed code check.
type VerificationErrorKind string

const (
	VerificationKindLocked  VerificationErrorKind = "locked"
	VerificationKindInvalid VerificationErrorKind = "invalid"
	VerificationKindExpired VerificationErrorKind = "expired"
	VerificationKindNoCode  VerificationErrorKind = "no_code"
)

// VerificationError carries the outcome of a failed code check so handlers
// can report remaining attempts or the lockout duration.
type VerificationError struct {
	Kind VerificationErrorKind
	// AttemptsLeft is set for invalid codes that did not trigger a lock.
	AttemptsLeft int
	// RetryAfterMinutes is set when the account is locked, rounded up.
	RetryAfterMinutes int
}

func (e *VerificationError) Error() string {
	switch e.Kind {
	case VerificationKindLocked:
		return fmt.Sprintf("verification locked, try again in %d minutes", e.RetryAfterMinutes)
	case VerificationKindInvalid:
		return fmt.Sprintf("invalid verification code, %d attempts left", e.AttemptsLeft)
	case VerificationKindExpired:
		return "verification code expired"
	default:
		return "no active verification code"
	}
}

func (e *VerificationError) Unwrap() error {
	switch e.Kind {
	case VerificationKindLocked:
		return ErrVerificationLocked
	case VerificationKindInvalid:
		return ErrInvalidVerificationCode
	case VerificationKindExpired:
		return ErrVerificationExpired
	default:
		return ErrNoActiveCode
	}
}

// VerificationService issues and checks one-time text verification codes.
// Code state lives on the user row; repeated mismatches lock the account
// for a fixed window.
type VerificationService struct {
	userRepo repository.UserRepository
	now      func() time.Time
}

func NewVerificationService(userRepo repository.UserRepository) (*VerificationService, error) {
	if userRepo == nil {
		return nil, fmt.Errorf("user repository is required")
	}
	return &VerificationService{
		userRepo: userRepo,
		now:      time.Now,
	}, nil
}

// IssueCode generates a fresh 6-digit code, stores it with its expiry and
// resets the attempt counter. Returns the plaintext code for delivery.
func (s *VerificationService) IssueCode(ctx context.Context, user *entity.User) (string, error) {
	code, err := generateVerificationCode()
	if err != nil {
		return "", fmt.Errorf("failed to generate verification code: %w", err)
	}

	expiresAt := s.now().Add(verificationCodeTTL)
	updates := map[string]interface{}{
		"verification_code":            code,
		"verification_code_expires_at": &expiresAt,
		"verification_attempts":        0,
	}
	if err := s.userRepo.UpdateFields(user.ID, updates); err != nil {
		return "", fmt.Errorf("failed to store verification code: %w", err)
	}

	user.VerificationCode = &code
	user.VerificationCodeExpiresAt = &expiresAt
	user.VerificationAttempts = 0
	return code, nil
}

// ValidateCode checks a submitted code against the user's pending state.
// The lock is checked before anything else; a mismatch counts an attempt
// even when the stored code has already expired, and the attempt that
// exhausts the allowance starts the lock window.
func (s *VerificationService) ValidateCode(ctx context.Context, user *entity.User, code string) error {
	now := s.now()

	if user.IsVerificationLocked(now) {
		return &VerificationError{
			Kind:              VerificationKindLocked,
			RetryAfterMinutes: minutesUntil(now, *user.VerificationLockedUntil),
		}
	}

	if user.VerificationCode == nil {
		return &VerificationError{Kind: VerificationKindNoCode}
	}

	if *user.VerificationCode != code {
		attempts := user.VerificationAttempts + 1
		if attempts >= verificationMaxTries {
			lockedUntil := now.Add(verificationLockFor)
			updates := map[string]interface{}{
				"verification_attempts":     0,
				"verification_locked_until": &lockedUntil,
			}
			if err := s.userRepo.UpdateFields(user.ID, updates); err != nil {
				return fmt.Errorf("failed to lock verification: %w", err)
			}
			user.VerificationAttempts = 0
			user.VerificationLockedUntil = &lockedUntil
			return &VerificationError{
				Kind:              VerificationKindLocked,
				RetryAfterMinutes: minutesUntil(now, lockedUntil),
			}
		}

		if err := s.userRepo.UpdateFields(user.ID, map[string]interface{}{
			"verification_attempts": attempts,
		}); err != nil {
			return fmt.Errorf("failed to record verification attempt: %w", err)
		}
		user.VerificationAttempts = attempts
		return &VerificationError{
			Kind:         VerificationKindInvalid,
			AttemptsLeft: verificationMaxTries - attempts,
		}
	}

	if user.IsVerificationCodeExpired(now) {
		return &VerificationError{Kind: VerificationKindExpired}
	}

	updates := map[string]interface{}{
		"text_verified":                true,
		"verification_code":            nil,
		"verification_code_expires_at": nil,
		"verification_attempts":        0,
		"verification_locked_until":    nil,
	}
	if err := s.userRepo.UpdateFields(user.ID, updates); err != nil {
		return fmt.Errorf("failed to mark user verified: %w", err)
	}
	user.TextVerified = true
	user.VerificationCode = nil
	user.VerificationCodeExpiresAt = nil
	user.VerificationAttempts = 0
	user.VerificationLockedUntil = nil
	return nil
}

// minutesUntil rounds the remaining lock window up to whole minutes so the
// response never understates the wait.
func minutesUntil(now, until time.Time) int {
	remaining := until.Sub(now)
	if remaining <= 0 {
		return 0
	}
	minutes := int((remaining + time.Minute - 1) / time.Minute)
	return minutes
}

// generateVerificationCode returns a uniform 6-digit code in [100000, 999999].
func generateVerificationCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(900000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%d", n.Int64()+100000), nil
}
