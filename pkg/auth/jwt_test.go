package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/yourusername/account-api/internal/pkg/errors"
)

func newTestJWTService(t *testing.T, accessExpiry, actionExpiry time.Duration) *JWTService {
	t.Helper()
	svc, err := NewJWTService("test-secret-key", accessExpiry, actionExpiry)
	require.NoError(t, err)
	return svc
}

func TestNewJWTService_RequiresSecret(t *testing.T) {
	_, err := NewJWTService("", time.Hour, time.Hour)
	assert.Error(t, err)
}

func TestJWTService_AccessToken_RoundTrip(t *testing.T) {
	// Arrange
	svc := newTestJWTService(t, time.Hour, time.Hour)

	// Act
	token, err := svc.GenerateAccessToken(42, "user@example.com")
	require.NoError(t, err)

	claims, err := svc.ParseAccessToken(token)

	// Assert
	require.NoError(t, err)
	assert.Equal(t, uint(42), claims.UserID)
	assert.Equal(t, "user@example.com", claims.Email)
}

func TestJWTService_ParseAccessToken_Expired(t *testing.T) {
	// Arrange
	svc := newTestJWTService(t, time.Hour, time.Hour)
	svc.accessExpiry = -time.Minute

	token, err := svc.GenerateAccessToken(42, "user@example.com")
	require.NoError(t, err)

	// Act
	_, err = svc.ParseAccessToken(token)

	// Assert
	assert.ErrorIs(t, err, apperrors.ErrExpiredToken)
}

func TestJWTService_ParseAccessToken_WrongSecret(t *testing.T) {
	// Arrange
	svc := newTestJWTService(t, time.Hour, time.Hour)
	other, err := NewJWTService("another-secret", time.Hour, time.Hour)
	require.NoError(t, err)

	token, err := other.GenerateAccessToken(42, "user@example.com")
	require.NoError(t, err)

	// Act
	_, err = svc.ParseAccessToken(token)

	// Assert
	assert.ErrorIs(t, err, apperrors.ErrUnauthorized)
}

func TestJWTService_ParseAccessToken_Garbage(t *testing.T) {
	svc := newTestJWTService(t, time.Hour, time.Hour)

	_, err := svc.ParseAccessToken("not.a.token")

	assert.ErrorIs(t, err, apperrors.ErrUnauthorized)
}

func TestJWTService_ActionToken_RoundTrip(t *testing.T) {
	// Arrange
	svc := newTestJWTService(t, time.Hour, time.Hour)

	// Act
	token, err := svc.GenerateActionToken("user@example.com", PurposeEmailVerify)
	require.NoError(t, err)

	claims, err := svc.ParseActionToken(token, PurposeEmailVerify)

	// Assert
	require.NoError(t, err)
	assert.Equal(t, "user@example.com", claims.Email)
	assert.Equal(t, PurposeEmailVerify, claims.Purpose)
}

func TestJWTService_ParseActionToken_PurposeMismatch(t *testing.T) {
	// Arrange
	svc := newTestJWTService(t, time.Hour, time.Hour)
	token, err := svc.GenerateActionToken("user@example.com", PurposeEmailVerify)
	require.NoError(t, err)

	// Act: a verification token must not reset a password
	_, err = svc.ParseActionToken(token, PurposePasswordReset)

	// Assert
	assert.ErrorIs(t, err, apperrors.ErrValidation)
}

func TestJWTService_ParseActionToken_Expired(t *testing.T) {
	// Arrange
	svc := newTestJWTService(t, time.Hour, time.Hour)
	svc.actionExpiry = -time.Minute

	token, err := svc.GenerateActionToken("user@example.com", PurposePasswordReset)
	require.NoError(t, err)

	// Act
	_, err = svc.ParseActionToken(token, PurposePasswordReset)

	// Assert
	assert.ErrorIs(t, err, apperrors.ErrExpiredToken)
}

func TestJWTService_GenerateActionToken_UnknownPurpose(t *testing.T) {
	svc := newTestJWTService(t, time.Hour, time.Hour)

	_, err := svc.GenerateActionToken("user@example.com", "launch_missiles")

	assert.Error(t, err)
}

func TestJWTService_AccessTokenNotAcceptedAsActionToken(t *testing.T) {
	// Arrange
	svc := newTestJWTService(t, time.Hour, time.Hour)
	token, err := svc.GenerateAccessToken(42, "user@example.com")
	require.NoError(t, err)

	// Act: access tokens carry no purpose claim
	_, err = svc.ParseActionToken(token, PurposeEmailVerify)

	// Assert
	assert.ErrorIs(t, err, apperrors.ErrValidation)
}
