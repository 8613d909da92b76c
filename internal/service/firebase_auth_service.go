package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	apperrors "github.com/yourusername/account-api/internal/pkg/errors"
)

const identityToolkitBaseURL = "https://identitytoolkit.googleapis.com/v1"

// FirebaseSession is the credential material returned by the Identity
// Toolkit for a signed-in user.
type FirebaseSession struct {
	LocalID      string `json:"local_id"`
	Email        string `json:"email"`
	IDToken      string `json:"id_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    string `json:"expires_in"`
}

// FirebaseAuthService delegates the alternate auth surface to the Google
// Identity Toolkit REST API. Accounts created here live in Firebase, not in
// the local credential store.
type FirebaseAuthService struct {
	apiKey     string
	httpClient *http.Client
}

func NewFirebaseAuthService(apiKey string) (*FirebaseAuthService, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("firebase api key is required")
	}
	return &FirebaseAuthService{
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}, nil
}

func (s *FirebaseAuthService) SignUp(ctx context.Context, email, password string) (*FirebaseSession, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return nil, fmt.Errorf("%w: email and password are required", apperrors.ErrValidation)
	}

	var resp struct {
		LocalID      string `json:"localId"`
		Email        string `json:"email"`
		IDToken      string `json:"idToken"`
		RefreshToken string `json:"refreshToken"`
		ExpiresIn    string `json:"expiresIn"`
	}
	err := s.call(ctx, "accounts:signUp", map[string]interface{}{
		"email":             email,
		"password":          password,
		"returnSecureToken": true,
	}, &resp)
	if err != nil {
		return nil, err
	}

	return &FirebaseSession{
		LocalID:      resp.LocalID,
		Email:        resp.Email,
		IDToken:      resp.IDToken,
		RefreshToken: resp.RefreshToken,
		ExpiresIn:    resp.ExpiresIn,
	}, nil
}

func (s *FirebaseAuthService) SignIn(ctx context.Context, email, password string) (*FirebaseSession, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return nil, fmt.Errorf("%w: email and password are required", apperrors.ErrValidation)
	}

	var resp struct {
		LocalID      string `json:"localId"`
		Email        string `json:"email"`
		IDToken      string `json:"idToken"`
		RefreshToken string `json:"refreshToken"`
		ExpiresIn    string `json:"expiresIn"`
	}
	err := s.call(ctx, "accounts:signInWithPassword", map[string]interface{}{
		"email":             email,
		"password":          password,
		"returnSecureToken": true,
	}, &resp)
	if err != nil {
		return nil, err
	}

	return &FirebaseSession{
		LocalID:      resp.LocalID,
		Email:        resp.Email,
		IDToken:      resp.IDToken,
		RefreshToken: resp.RefreshToken,
		ExpiresIn:    resp.ExpiresIn,
	}, nil
}

// SignInWithGoogle exchanges a Google ID token for a Firebase session.
func (s *FirebaseAuthService) SignInWithGoogle(ctx context.Context, googleIDToken, requestURI string) (*FirebaseSession, error) {
	googleIDToken = strings.TrimSpace(googleIDToken)
	if googleIDToken == "" {
		return nil, fmt.Errorf("%w: google id token is required", apperrors.ErrValidation)
	}
	if requestURI == "" {
		requestURI = "http://localhost"
	}

	postBody := url.Values{}
	postBody.Set("id_token", googleIDToken)
	postBody.Set("providerId", "google.com")

	var resp struct {
		LocalID      string `json:"localId"`
		Email        string `json:"email"`
		IDToken      string `json:"idToken"`
		RefreshToken string `json:"refreshToken"`
		ExpiresIn    string `json:"expiresIn"`
	}
	err := s.call(ctx, "accounts:signInWithIdp", map[string]interface{}{
		"postBody":            postBody.Encode(),
		"requestUri":          requestURI,
		"returnSecureToken":   true,
		"returnIdpCredential": true,
	}, &resp)
	if err != nil {
		return nil, err
	}

	return &FirebaseSession{
		LocalID:      resp.LocalID,
		Email:        resp.Email,
		IDToken:      resp.IDToken,
		RefreshToken: resp.RefreshToken,
		ExpiresIn:    resp.ExpiresIn,
	}, nil
}

// SendPasswordReset asks Firebase to email a reset link to the account.
func (s *FirebaseAuthService) SendPasswordReset(ctx context.Context, email string) error {
	email = normalizeEmail(email)
	if email == "" {
		return fmt.Errorf("%w: email is required", apperrors.ErrValidation)
	}

	var resp struct {
		Email string `json:"email"`
	}
	return s.call(ctx, "accounts:sendOobCode", map[string]interface{}{
		"requestType": "PASSWORD_RESET",
		"email":       email,
	}, &resp)
}

// DeleteAccount removes the Firebase account owning the given ID token.
func (s *FirebaseAuthService) DeleteAccount(ctx context.Context, idToken string) error {
	idToken = strings.TrimSpace(idToken)
	if idToken == "" {
		return fmt.Errorf("%w: id token is required", apperrors.ErrValidation)
	}

	var resp struct{}
	return s.call(ctx, "accounts:delete", map[string]interface{}{
		"idToken": idToken,
	}, &resp)
}

func (s *FirebaseAuthService) call(ctx context.Context, endpoint string, payload map[string]interface{}, out interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal firebase request: %w", err)
	}

	reqURL := fmt.Sprintf("%s/%s?key=%s", identityToolkitBaseURL, endpoint, url.QueryEscape(s.apiKey))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create firebase request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("firebase request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return mapFirebaseError(resp)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to parse firebase response: %w", err)
	}
	return nil
}

// mapFirebaseError converts Identity Toolkit error codes to the local
// taxonomy so handlers never see raw collaborator errors.
func mapFirebaseError(resp *http.Response) error {
	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

	var payload struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	message := ""
	if err := json.Unmarshal(respBody, &payload); err == nil {
		message = payload.Error.Message
	}

	switch {
	case strings.HasPrefix(message, "EMAIL_EXISTS"):
		return fmt.Errorf("%w: email already registered", ErrEmailTaken)
	case strings.HasPrefix(message, "EMAIL_NOT_FOUND"),
		strings.HasPrefix(message, "INVALID_PASSWORD"),
		strings.HasPrefix(message, "INVALID_LOGIN_CREDENTIALS"),
		strings.HasPrefix(message, "USER_DISABLED"),
		strings.HasPrefix(message, "INVALID_ID_TOKEN"):
		return fmt.Errorf("%w: firebase rejected the credentials", apperrors.ErrUnauthorized)
	case strings.HasPrefix(message, "WEAK_PASSWORD"),
		strings.HasPrefix(message, "INVALID_EMAIL"),
		strings.HasPrefix(message, "MISSING_PASSWORD"):
		return fmt.Errorf("%w: %s", apperrors.ErrValidation, strings.ToLower(message))
	case strings.HasPrefix(message, "TOO_MANY_ATTEMPTS_TRY_LATER"):
		return fmt.Errorf("%w: too many attempts, try again later", apperrors.ErrRateLimited)
	default:
		return fmt.Errorf("firebase status=%d message=%s", resp.StatusCode, message)
	}
}
