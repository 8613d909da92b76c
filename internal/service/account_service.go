package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/url"
	"strings"
	"time"

	"github.com/yourusername/account-api/internal/domain/entity"
	"github.com/yourusername/account-api/internal/domain/repository"
	apperrors "github.com/yourusername/account-api/internal/pkg/errors"
	"github.com/yourusername/account-api/pkg/auth"
)

const passwordResetTTL = time.Hour

// RegisterInput carries the registration form fields plus an optional
// profile image payload.
type RegisterInput struct {
	Email            string
	Username         string
	Password         string
	FirstName        string
	Surname          string
	Image            []byte
	ImageContentType string
}

// UpdateAccountInput carries the mutable profile fields. Nil pointers mean
// "leave unchanged".
type UpdateAccountInput struct {
	Username         *string
	FirstName        *string
	Surname          *string
	Image            []byte
	ImageContentType string
}

// LoginResult is a successful authentication outcome.
type LoginResult struct {
	User      *entity.User
	Token     string
	TokenType string
}

// AccountService orchestrates account operations across the credential
// store and the external collaborators (mail, moderation, assets, tokens).
type AccountService struct {
	userRepo      repository.UserRepository
	jwtService    *auth.JWTService
	emailService  EmailService
	moderation    ModerationService
	assets        AssetService
	verification  *VerificationService
	publicBaseURL string
}

func NewAccountService(
	userRepo repository.UserRepository,
	jwtService *auth.JWTService,
	emailService EmailService,
	moderation ModerationService,
	assets AssetService,
	verification *VerificationService,
	publicBaseURL string,
) (*AccountService, error) {
	if userRepo == nil {
		return nil, fmt.Errorf("user repository is required")
	}
	if jwtService == nil {
		return nil, fmt.Errorf("jwt service is required")
	}
	if emailService == nil {
		return nil, fmt.Errorf("email service is required")
	}
	if moderation == nil {
		return nil, fmt.Errorf("moderation service is required")
	}
	if assets == nil {
		return nil, fmt.Errorf("asset service is required")
	}
	if verification == nil {
		return nil, fmt.Errorf("verification service is required")
	}
	return &AccountService{
		userRepo:      userRepo,
		jwtService:    jwtService,
		emailService:  emailService,
		moderation:    moderation,
		assets:        assets,
		verification:  verification,
		publicBaseURL: strings.TrimSuffix(publicBaseURL, "/"),
	}, nil
}

// Register creates an account. No mutation happens until the uniqueness and
// moderation checks pass; an uploaded image that fails moderation is
// destroyed before the request is rejected.
func (s *AccountService) Register(ctx context.Context, input RegisterInput) (*entity.User, error) {
	email := normalizeEmail(input.Email)
	username := strings.TrimSpace(input.Username)
	if email == "" || username == "" || input.Password == "" {
		return nil, fmt.Errorf("%w: email, username and password are required", apperrors.ErrValidation)
	}

	if _, err := s.userRepo.GetByEmail(email); err == nil {
		return nil, fmt.Errorf("%w: email already registered", ErrEmailTaken)
	} else if !errors.Is(err, apperrors.ErrNotFound) {
		return nil, err
	}
	if _, err := s.userRepo.GetByUsername(username); err == nil {
		return nil, fmt.Errorf("%w: username already taken", ErrUsernameTaken)
	} else if !errors.Is(err, apperrors.ErrNotFound) {
		return nil, err
	}

	profileText := strings.TrimSpace(strings.Join([]string{username, input.FirstName, input.Surname}, " "))
	if err := s.moderation.CheckText(ctx, profileText); err != nil {
		return nil, err
	}

	var imageURL, imageKey string
	if len(input.Image) > 0 {
		asset, err := s.assets.Upload(ctx, input.Image, input.ImageContentType)
		if err != nil {
			return nil, fmt.Errorf("failed to store profile image: %w", err)
		}
		if err := s.moderation.CheckImageURL(ctx, asset.URL); err != nil {
			if destroyErr := s.assets.Destroy(ctx, asset.Key); destroyErr != nil {
				log.Printf("[AccountService] failed to destroy rejected image key=%s: %v", asset.Key, destroyErr)
			}
			return nil, err
		}
		imageURL = asset.URL
		imageKey = asset.Key
	}

	user := &entity.User{
		Email:           email,
		Username:        username,
		Password:        input.Password,
		FirstName:       strings.TrimSpace(input.FirstName),
		Surname:         strings.TrimSpace(input.Surname),
		ProfileImageURL: imageURL,
		ProfileImageKey: imageKey,
	}
	if err := s.userRepo.Create(user); err != nil {
		return nil, fmt.Errorf("failed to create account: %w", err)
	}

	token, err := s.jwtService.GenerateActionToken(email, auth.PurposeEmailVerify)
	if err != nil {
		return nil, fmt.Errorf("failed to sign verification token: %w", err)
	}
	if err := s.userRepo.UpdateFields(user.ID, map[string]interface{}{
		"email_verification_token": token,
	}); err != nil {
		return nil, fmt.Errorf("failed to store verification token: %w", err)
	}
	user.EmailVerificationToken = &token

	link := fmt.Sprintf("%s/api/verify?token=%s", s.publicBaseURL, url.QueryEscape(token))
	idempotencyKey := fmt.Sprintf("email-verify-link:%d", user.ID)
	if err := s.emailService.SendVerificationLink(ctx, email, link, idempotencyKey); err != nil {
		// The account exists; the link can be re-requested later.
		log.Printf("[AccountService] failed to send verification link to=%s: %v", email, err)
	}

	return user, nil
}

// VerifyEmail consumes a verification link token.
func (s *AccountService) VerifyEmail(ctx context.Context, token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return fmt.Errorf("%w: token is required", apperrors.ErrValidation)
	}

	if _, err := s.jwtService.ParseActionToken(token, auth.PurposeEmailVerify); err != nil {
		return err
	}

	user, err := s.userRepo.GetByEmailVerificationToken(token)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return fmt.Errorf("%w: unknown verification token", apperrors.ErrValidation)
		}
		return err
	}

	if err := s.userRepo.UpdateFields(user.ID, map[string]interface{}{
		"email_verified":           true,
		"email_verification_token": nil,
	}); err != nil {
		return fmt.Errorf("failed to mark email verified: %w", err)
	}
	return nil
}

// Login authenticates by email and password. Unknown account, unverified
// email and wrong password are indistinguishable to the caller.
func (s *AccountService) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return nil, fmt.Errorf("%w: email and password are required", apperrors.ErrValidation)
	}

	user, err := s.userRepo.GetByEmail(email)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, invalidCredentials()
		}
		return nil, err
	}
	if !user.EmailVerified {
		return nil, invalidCredentials()
	}
	if !user.CheckPassword(password) {
		return nil, invalidCredentials()
	}

	token, err := s.jwtService.GenerateAccessToken(user.ID, user.Email)
	if err != nil {
		return nil, fmt.Errorf("failed to sign access token: %w", err)
	}

	return &LoginResult{User: user, Token: token, TokenType: "Bearer"}, nil
}

// SendTextVerificationCode issues a fresh one-time code and mails it.
func (s *AccountService) SendTextVerificationCode(ctx context.Context, email string) error {
	user, err := s.userRepo.GetByEmail(normalizeEmail(email))
	if err != nil {
		return err
	}

	code, err := s.verification.IssueCode(ctx, user)
	if err != nil {
		return err
	}

	idempotencyKey := fmt.Sprintf("text-verify:%d:%s", user.ID, code)
	if err := s.emailService.SendVerificationCode(ctx, user.Email, code, idempotencyKey); err != nil {
		return fmt.Errorf("failed to send verification code: %w", err)
	}
	return nil
}

// VerifyTextCode runs the submitted code through the lockout state machine.
func (s *AccountService) VerifyTextCode(ctx context.Context, email, code string) error {
	user, err := s.userRepo.GetByEmail(normalizeEmail(email))
	if err != nil {
		return err
	}
	return s.verification.ValidateCode(ctx, user, strings.TrimSpace(code))
}

// RequestPasswordReset stores a reset token on the account and mails the link.
func (s *AccountService) RequestPasswordReset(ctx context.Context, email string) error {
	email = normalizeEmail(email)
	user, err := s.userRepo.GetByEmail(email)
	if err != nil {
		return err
	}

	token, err := s.jwtService.GenerateActionToken(email, auth.PurposePasswordReset)
	if err != nil {
		return fmt.Errorf("failed to sign reset token: %w", err)
	}

	expiresAt := time.Now().Add(passwordResetTTL)
	if err := s.userRepo.UpdateFields(user.ID, map[string]interface{}{
		"password_reset_token":      token,
		"password_reset_expires_at": &expiresAt,
	}); err != nil {
		return fmt.Errorf("failed to store reset token: %w", err)
	}

	link := fmt.Sprintf("%s/reset-password?token=%s", s.publicBaseURL, url.QueryEscape(token))
	idempotencyKey := fmt.Sprintf("password-reset:%d:%d", user.ID, expiresAt.Unix())
	if err := s.emailService.SendPasswordReset(ctx, user.Email, link, idempotencyKey); err != nil {
		return fmt.Errorf("failed to send reset email: %w", err)
	}
	return nil
}

// ResetPassword consumes a reset token and sets the new password. The token
// is single use: it is cleared on success.
func (s *AccountService) ResetPassword(ctx context.Context, token, newPassword string) error {
	token = strings.TrimSpace(token)
	if token == "" || newPassword == "" {
		return fmt.Errorf("%w: token and new password are required", apperrors.ErrValidation)
	}

	user, err := s.userRepo.GetByPasswordResetToken(token)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return fmt.Errorf("%w: unknown reset token", ErrResetTokenInvalid)
		}
		return err
	}

	if user.PasswordResetExpiresAt == nil || time.Now().After(*user.PasswordResetExpiresAt) {
		return fmt.Errorf("%w: reset token expired", ErrResetTokenExpired)
	}

	if err := s.userRepo.UpdatePassword(user.ID, newPassword); err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}
	if err := s.userRepo.UpdateFields(user.ID, map[string]interface{}{
		"password_reset_token":      nil,
		"password_reset_expires_at": nil,
	}); err != nil {
		return fmt.Errorf("failed to clear reset token: %w", err)
	}
	return nil
}

// UpdateAccount applies profile changes. Changed text and a replacement
// image go through moderation before anything is persisted; the previous
// hosted image is destroyed best-effort once replaced.
func (s *AccountService) UpdateAccount(ctx context.Context, userID uint, input UpdateAccountInput) (*entity.User, error) {
	user, err := s.userRepo.GetByID(userID)
	if err != nil {
		return nil, err
	}

	updates := map[string]interface{}{}

	if input.Username != nil {
		username := strings.TrimSpace(*input.Username)
		if username == "" {
			return nil, fmt.Errorf("%w: username cannot be empty", apperrors.ErrValidation)
		}
		if username != user.Username {
			if existing, err := s.userRepo.GetByUsername(username); err == nil && existing.ID != userID {
				return nil, fmt.Errorf("%w: username already taken", ErrUsernameTaken)
			} else if err != nil && !errors.Is(err, apperrors.ErrNotFound) {
				return nil, err
			}
			updates["username"] = username
		}
	}
	if input.FirstName != nil {
		updates["first_name"] = strings.TrimSpace(*input.FirstName)
	}
	if input.Surname != nil {
		updates["surname"] = strings.TrimSpace(*input.Surname)
	}

	var changedText []string
	for _, key := range []string{"username", "first_name", "surname"} {
		if v, ok := updates[key]; ok {
			if text, _ := v.(string); text != "" {
				changedText = append(changedText, text)
			}
		}
	}
	if len(changedText) > 0 {
		if err := s.moderation.CheckText(ctx, strings.Join(changedText, " ")); err != nil {
			return nil, err
		}
	}

	if len(input.Image) > 0 {
		asset, err := s.assets.Upload(ctx, input.Image, input.ImageContentType)
		if err != nil {
			return nil, fmt.Errorf("failed to store profile image: %w", err)
		}
		if err := s.moderation.CheckImageURL(ctx, asset.URL); err != nil {
			if destroyErr := s.assets.Destroy(ctx, asset.Key); destroyErr != nil {
				log.Printf("[AccountService] failed to destroy rejected image key=%s: %v", asset.Key, destroyErr)
			}
			return nil, err
		}
		if user.ProfileImageKey != "" {
			if err := s.assets.Destroy(ctx, user.ProfileImageKey); err != nil {
				log.Printf("[AccountService] failed to destroy previous image key=%s: %v", user.ProfileImageKey, err)
			}
		}
		updates["profile_image_url"] = asset.URL
		updates["profile_image_key"] = asset.Key
	}

	if len(updates) == 0 {
		return user, nil
	}

	if err := s.userRepo.UpdateFields(userID, updates); err != nil {
		return nil, fmt.Errorf("failed to update account: %w", err)
	}
	return s.userRepo.GetByID(userID)
}

// DeleteAccount removes the row and best-effort destroys the hosted image.
func (s *AccountService) DeleteAccount(ctx context.Context, userID uint) error {
	user, err := s.userRepo.GetByID(userID)
	if err != nil {
		return err
	}

	if user.ProfileImageKey != "" {
		if err := s.assets.Destroy(ctx, user.ProfileImageKey); err != nil {
			log.Printf("[AccountService] failed to destroy image key=%s on delete: %v", user.ProfileImageKey, err)
		}
	}

	return s.userRepo.Delete(userID)
}

func invalidCredentials() error {
	return fmt.Errorf("%w: invalid email or password", apperrors.ErrUnauthorized)
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
