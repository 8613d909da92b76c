package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v4"

	apperrors "github.com/yourusername/account-api/internal/pkg/errors"
)

// Purposes for action tokens. An action token signed for one purpose is
// never accepted for another.
const (
	PurposeEmailVerify   = "email_verify"
	PurposePasswordReset = "password_reset"
)

// AccessClaims identify an authenticated caller.
type AccessClaims struct {
	UserID uint   `json:"user_id"`
	Email  string `json:"email"`
	jwt.RegisteredClaims
}

// ActionClaims carry a single-use token bound to an email and a purpose.
type ActionClaims struct {
	Email   string `json:"email"`
	Purpose string `json:"purpose"`
	jwt.RegisteredClaims
}

// JWTService issues and verifies signed tokens. The payloads are opaque to
// the rest of the system beyond issue/verify.
type JWTService struct {
	secret       []byte
	accessExpiry time.Duration
	actionExpiry time.Duration
}

func NewJWTService(secret string, accessExpiry, actionExpiry time.Duration) (*JWTService, error) {
	if secret == "" {
		return nil, fmt.Errorf("jwt secret is required")
	}
	if accessExpiry <= 0 {
		accessExpiry = 7 * 24 * time.Hour
	}
	if actionExpiry <= 0 {
		actionExpiry = time.Hour
	}
	return &JWTService{
		secret:       []byte(secret),
		accessExpiry: accessExpiry,
		actionExpiry: actionExpiry,
	}, nil
}

// GenerateAccessToken signs a bearer token for an authenticated user.
func (s *JWTService) GenerateAccessToken(userID uint, email string) (string, error) {
	now := time.Now()
	claims := AccessClaims{
		UserID: userID,
		Email:  email,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.accessExpiry)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign access token: %w", err)
	}
	return signed, nil
}

// ParseAccessToken verifies a bearer token and returns its claims.
func (s *JWTService) ParseAccessToken(tokenString string) (*AccessClaims, error) {
	claims := &AccessClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, s.keyFunc,
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, fmt.Errorf("%w: access token expired", apperrors.ErrExpiredToken)
		}
		return nil, fmt.Errorf("%w: invalid access token", apperrors.ErrUnauthorized)
	}
	if !token.Valid || claims.UserID == 0 {
		return nil, fmt.Errorf("%w: invalid access token", apperrors.ErrUnauthorized)
	}
	return claims, nil
}

// GenerateActionToken signs a purpose-scoped token for email verification
// or password reset.
func (s *JWTService) GenerateActionToken(email, purpose string) (string, error) {
	if purpose != PurposeEmailVerify && purpose != PurposePasswordReset {
		return "", fmt.Errorf("unknown action token purpose %q", purpose)
	}
	now := time.Now()
	claims := ActionClaims{
		Email:   email,
		Purpose: purpose,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.actionExpiry)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign action token: %w", err)
	}
	return signed, nil
}

// ParseActionToken verifies an action token and checks its purpose.
func (s *JWTService) ParseActionToken(tokenString, purpose string) (*ActionClaims, error) {
	claims := &ActionClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, s.keyFunc,
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, fmt.Errorf("%w: action token expired", apperrors.ErrExpiredToken)
		}
		return nil, fmt.Errorf("%w: invalid token", apperrors.ErrValidation)
	}
	if !token.Valid || claims.Purpose != purpose {
		return nil, fmt.Errorf("%w: invalid token", apperrors.ErrValidation)
	}
	return claims, nil
}

func (s *JWTService) keyFunc(token *jwt.Token) (interface{}, error) {
	return s.secret, nil
}
