package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/yourusername/account-api/internal/domain/entity"
	apperrors "github.com/yourusername/account-api/internal/pkg/errors"
	"github.com/yourusername/account-api/pkg/auth"
)

type accountServiceMocks struct {
	userRepo   *MockUserRepository
	email      *MockEmailService
	moderation *MockModerationService
	assets     *MockAssetService
}

func newTestAccountService(t *testing.T) (*AccountService, *accountServiceMocks) {
	t.Helper()

	mocks := &accountServiceMocks{
		userRepo:   new(MockUserRepository),
		email:      new(MockEmailService),
		moderation: new(MockModerationService),
		assets:     new(MockAssetService),
	}

	jwtService, err := auth.NewJWTService("test-secret-key", time.Hour, time.Hour)
	require.NoError(t, err)

	verification, err := NewVerificationService(mocks.userRepo)
	require.NoError(t, err)

	svc, err := NewAccountService(
		mocks.userRepo,
		jwtService,
		mocks.email,
		mocks.moderation,
		mocks.assets,
		verification,
		"https://api.example.com",
	)
	require.NoError(t, err)
	return svc, mocks
}

func hashPassword(t *testing.T, password string) string {
	t.Helper()
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	require.NoError(t, err)
	return string(hashed)
}

func TestAccountService_Register_Success(t *testing.T) {
	// Arrange
	svc, mocks := newTestAccountService(t)

	mocks.userRepo.On("GetByEmail", "new@example.com").Return(nil, apperrors.ErrNotFound)
	mocks.userRepo.On("GetByUsername", "newuser").Return(nil, apperrors.ErrNotFound)
	mocks.moderation.On("CheckText", mock.Anything, "newuser Jane Doe").Return(nil)
	mocks.userRepo.On("Create", mock.AnythingOfType("*entity.User")).
		Run(func(args mock.Arguments) {
			args.Get(0).(*entity.User).ID = 42
		}).
		Return(nil)
	mocks.userRepo.On("UpdateFields", uint(42), mock.AnythingOfType("map[string]interface {}")).Return(nil)
	mocks.email.On("SendVerificationLink", mock.Anything, "new@example.com", mock.AnythingOfType("string"), "email-verify-link:42").Return(nil)

	// Act
	user, err := svc.Register(context.Background(), RegisterInput{
		Email:     "New@Example.com",
		Username:  "newuser",
		Password:  "password123",
		FirstName: "Jane",
		Surname:   "Doe",
	})

	// Assert
	require.NoError(t, err)
	assert.Equal(t, uint(42), user.ID)
	assert.Equal(t, "new@example.com", user.Email)
	require.NotNil(t, user.EmailVerificationToken)
	mocks.userRepo.AssertExpectations(t)
	mocks.moderation.AssertExpectations(t)
	mocks.email.AssertExpectations(t)
}

func TestAccountService_Register_EmailTaken(t *testing.T) {
	// Arrange
	svc, mocks := newTestAccountService(t)
	mocks.userRepo.On("GetByEmail", "taken@example.com").Return(&entity.User{ID: 1}, nil)

	// Act
	_, err := svc.Register(context.Background(), RegisterInput{
		Email:    "taken@example.com",
		Username: "newuser",
		Password: "password123",
	})

	// Assert
	assert.ErrorIs(t, err, ErrEmailTaken)
	mocks.userRepo.AssertNotCalled(t, "Create", mock.Anything)
}

func TestAccountService_Register_UsernameTaken(t *testing.T) {
	// Arrange
	svc, mocks := newTestAccountService(t)
	mocks.userRepo.On("GetByEmail", "new@example.com").Return(nil, apperrors.ErrNotFound)
	mocks.userRepo.On("GetByUsername", "taken").Return(&entity.User{ID: 2}, nil)

	// Act
	_, err := svc.Register(context.Background(), RegisterInput{
		Email:    "new@example.com",
		Username: "taken",
		Password: "password123",
	})

	// Assert
	assert.ErrorIs(t, err, ErrUsernameTaken)
	mocks.userRepo.AssertNotCalled(t, "Create", mock.Anything)
}

func TestAccountService_Register_UnsafeText(t *testing.T) {
	// Arrange
	svc, mocks := newTestAccountService(t)
	mocks.userRepo.On("GetByEmail", "new@example.com").Return(nil, apperrors.ErrNotFound)
	mocks.userRepo.On("GetByUsername", "badword").Return(nil, apperrors.ErrNotFound)
	mocks.moderation.On("CheckText", mock.Anything, mock.AnythingOfType("string")).Return(ErrUnsafeContent)

	// Act
	_, err := svc.Register(context.Background(), RegisterInput{
		Email:    "new@example.com",
		Username: "badword",
		Password: "password123",
	})

	// Assert
	assert.ErrorIs(t, err, ErrUnsafeContent)
	mocks.userRepo.AssertNotCalled(t, "Create", mock.Anything)
	mocks.assets.AssertNotCalled(t, "Upload", mock.Anything, mock.Anything, mock.Anything)
}

func TestAccountService_Register_UnsafeImage_DestroysAsset(t *testing.T) {
	// Arrange
	svc, mocks := newTestAccountService(t)
	mocks.userRepo.On("GetByEmail", "new@example.com").Return(nil, apperrors.ErrNotFound)
	mocks.userRepo.On("GetByUsername", "newuser").Return(nil, apperrors.ErrNotFound)
	mocks.moderation.On("CheckText", mock.Anything, mock.AnythingOfType("string")).Return(nil)

	asset := &UploadedAsset{Key: "profile-images/2024/03/01/abc", URL: "https://cdn.example.com/abc"}
	mocks.assets.On("Upload", mock.Anything, []byte("image-bytes"), "image/png").Return(asset, nil)
	mocks.moderation.On("CheckImageURL", mock.Anything, asset.URL).Return(ErrUnsafeContent)
	mocks.assets.On("Destroy", mock.Anything, asset.Key).Return(nil)

	// Act
	_, err := svc.Register(context.Background(), RegisterInput{
		Email:            "new@example.com",
		Username:         "newuser",
		Password:         "password123",
		Image:            []byte("image-bytes"),
		ImageContentType: "image/png",
	})

	// Assert
	assert.ErrorIs(t, err, ErrUnsafeContent)
	mocks.assets.AssertExpectations(t)
	mocks.userRepo.AssertNotCalled(t, "Create", mock.Anything)
}

func TestAccountService_Login_Success(t *testing.T) {
	// Arrange
	svc, mocks := newTestAccountService(t)
	user := &entity.User{
		ID:            5,
		Email:         "user@example.com",
		Password:      hashPassword(t, "password123"),
		EmailVerified: true,
	}
	mocks.userRepo.On("GetByEmail", "user@example.com").Return(user, nil)

	// Act
	result, err := svc.Login(context.Background(), "User@Example.com", "password123")

	// Assert
	require.NoError(t, err)
	assert.Equal(t, user, result.User)
	assert.NotEmpty(t, result.Token)
	assert.Equal(t, "Bearer", result.TokenType)
	mocks.userRepo.AssertExpectations(t)
}

func TestAccountService_Login_UnknownEmail(t *testing.T) {
	// Arrange
	svc, mocks := newTestAccountService(t)
	mocks.userRepo.On("GetByEmail", "ghost@example.com").Return(nil, apperrors.ErrNotFound)

	// Act
	_, err := svc.Login(context.Background(), "ghost@example.com", "password123")

	// Assert
	assert.ErrorIs(t, err, apperrors.ErrUnauthorized)
}

func TestAccountService_Login_UnverifiedEmail(t *testing.T) {
	// Arrange
	svc, mocks := newTestAccountService(t)
	user := &entity.User{
		ID:            5,
		Email:         "user@example.com",
		Password:      hashPassword(t, "password123"),
		EmailVerified: false,
	}
	mocks.userRepo.On("GetByEmail", "user@example.com").Return(user, nil)

	// Act
	_, err := svc.Login(context.Background(), "user@example.com", "password123")

	// Assert: indistinguishable from a bad password
	assert.ErrorIs(t, err, apperrors.ErrUnauthorized)
}

func TestAccountService_Login_WrongPassword(t *testing.T) {
	// Arrange
	svc, mocks := newTestAccountService(t)
	user := &entity.User{
		ID:            5,
		Email:         "user@example.com",
		Password:      hashPassword(t, "password123"),
		EmailVerified: true,
	}
	mocks.userRepo.On("GetByEmail", "user@example.com").Return(user, nil)

	// Act
	_, err := svc.Login(context.Background(), "user@example.com", "wrongpass")

	// Assert
	assert.ErrorIs(t, err, apperrors.ErrUnauthorized)
}

func TestAccountService_SendTextVerificationCode_Success(t *testing.T) {
	// Arrange
	svc, mocks := newTestAccountService(t)
	user := &entity.User{ID: 5, Email: "user@example.com"}
	mocks.userRepo.On("GetByEmail", "user@example.com").Return(user, nil)
	mocks.userRepo.On("UpdateFields", uint(5), mock.AnythingOfType("map[string]interface {}")).Return(nil)
	mocks.email.On("SendVerificationCode", mock.Anything, "user@example.com", mock.AnythingOfType("string"), mock.AnythingOfType("string")).Return(nil)

	// Act
	err := svc.SendTextVerificationCode(context.Background(), "user@example.com")

	// Assert
	require.NoError(t, err)
	require.NotNil(t, user.VerificationCode)
	assert.Len(t, *user.VerificationCode, 6)
	mocks.email.AssertExpectations(t)
}

func TestAccountService_SendTextVerificationCode_UnknownEmail(t *testing.T) {
	// Arrange
	svc, mocks := newTestAccountService(t)
	mocks.userRepo.On("GetByEmail", "ghost@example.com").Return(nil, apperrors.ErrNotFound)

	// Act
	err := svc.SendTextVerificationCode(context.Background(), "ghost@example.com")

	// Assert
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	mocks.email.AssertNotCalled(t, "SendVerificationCode", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestAccountService_VerifyTextCode_PassesThroughStateMachine(t *testing.T) {
	// Arrange
	svc, mocks := newTestAccountService(t)
	code := "482913"
	expiresAt := time.Now().Add(5 * time.Minute)
	user := &entity.User{
		ID:                        5,
		Email:                     "user@example.com",
		VerificationCode:          &code,
		VerificationCodeExpiresAt: &expiresAt,
	}
	mocks.userRepo.On("GetByEmail", "user@example.com").Return(user, nil)
	mocks.userRepo.On("UpdateFields", uint(5), mock.AnythingOfType("map[string]interface {}")).Return(nil)

	// Act
	err := svc.VerifyTextCode(context.Background(), "user@example.com", " 482913 ")

	// Assert: submitted code is trimmed before comparison
	require.NoError(t, err)
	assert.True(t, user.TextVerified)
}

func TestAccountService_VerifyEmail_UnknownToken(t *testing.T) {
	// Arrange
	svc, mocks := newTestAccountService(t)
	token, err := svc.jwtService.GenerateActionToken("user@example.com", auth.PurposeEmailVerify)
	require.NoError(t, err)
	mocks.userRepo.On("GetByEmailVerificationToken", token).Return(nil, apperrors.ErrNotFound)

	// Act
	err = svc.VerifyEmail(context.Background(), token)

	// Assert
	assert.ErrorIs(t, err, apperrors.ErrValidation)
}

func TestAccountService_VerifyEmail_Success(t *testing.T) {
	// Arrange
	svc, mocks := newTestAccountService(t)
	token, err := svc.jwtService.GenerateActionToken("user@example.com", auth.PurposeEmailVerify)
	require.NoError(t, err)

	user := &entity.User{ID: 5, Email: "user@example.com"}
	mocks.userRepo.On("GetByEmailVerificationToken", token).Return(user, nil)

	var stored map[string]interface{}
	mocks.userRepo.On("UpdateFields", uint(5), mock.AnythingOfType("map[string]interface {}")).
		Run(func(args mock.Arguments) {
			stored = args.Get(1).(map[string]interface{})
		}).
		Return(nil)

	// Act
	err = svc.VerifyEmail(context.Background(), token)

	// Assert
	require.NoError(t, err)
	assert.Equal(t, true, stored["email_verified"])
	assert.Nil(t, stored["email_verification_token"])
	mocks.userRepo.AssertExpectations(t)
}

func TestAccountService_ResetPassword_Success(t *testing.T) {
	// Arrange
	svc, mocks := newTestAccountService(t)
	expiresAt := time.Now().Add(30 * time.Minute)
	token := "reset-token"
	user := &entity.User{
		ID:                     5,
		PasswordResetToken:     &token,
		PasswordResetExpiresAt: &expiresAt,
	}
	mocks.userRepo.On("GetByPasswordResetToken", token).Return(user, nil)
	mocks.userRepo.On("UpdatePassword", uint(5), "newpassword").Return(nil)
	mocks.userRepo.On("UpdateFields", uint(5), mock.AnythingOfType("map[string]interface {}")).Return(nil)

	// Act
	err := svc.ResetPassword(context.Background(), token, "newpassword")

	// Assert
	require.NoError(t, err)
	mocks.userRepo.AssertExpectations(t)
}

func TestAccountService_ResetPassword_ExpiredToken(t *testing.T) {
	// Arrange
	svc, mocks := newTestAccountService(t)
	expiresAt := time.Now().Add(-time.Minute)
	token := "reset-token"
	user := &entity.User{
		ID:                     5,
		PasswordResetToken:     &token,
		PasswordResetExpiresAt: &expiresAt,
	}
	mocks.userRepo.On("GetByPasswordResetToken", token).Return(user, nil)

	// Act
	err := svc.ResetPassword(context.Background(), token, "newpassword")

	// Assert
	assert.ErrorIs(t, err, ErrResetTokenExpired)
	mocks.userRepo.AssertNotCalled(t, "UpdatePassword", mock.Anything, mock.Anything)
}

func TestAccountService_ResetPassword_UnknownToken(t *testing.T) {
	// Arrange
	svc, mocks := newTestAccountService(t)
	mocks.userRepo.On("GetByPasswordResetToken", "bogus").Return(nil, apperrors.ErrNotFound)

	// Act
	err := svc.ResetPassword(context.Background(), "bogus", "newpassword")

	// Assert
	assert.ErrorIs(t, err, ErrResetTokenInvalid)
}

func TestAccountService_UpdateAccount_UsernameTaken(t *testing.T) {
	// Arrange
	svc, mocks := newTestAccountService(t)
	user := &entity.User{ID: 5, Username: "olduser"}
	mocks.userRepo.On("GetByID", uint(5)).Return(user, nil)
	mocks.userRepo.On("GetByUsername", "taken").Return(&entity.User{ID: 9, Username: "taken"}, nil)

	newUsername := "taken"

	// Act
	_, err := svc.UpdateAccount(context.Background(), 5, UpdateAccountInput{Username: &newUsername})

	// Assert
	assert.ErrorIs(t, err, ErrUsernameTaken)
	mocks.userRepo.AssertNotCalled(t, "UpdateFields", mock.Anything, mock.Anything)
}

func TestAccountService_UpdateAccount_ReplacesImage(t *testing.T) {
	// Arrange
	svc, mocks := newTestAccountService(t)
	user := &entity.User{ID: 5, Username: "user", ProfileImageKey: "profile-images/old"}
	mocks.userRepo.On("GetByID", uint(5)).Return(user, nil)

	asset := &UploadedAsset{Key: "profile-images/new", URL: "https://cdn.example.com/new"}
	mocks.assets.On("Upload", mock.Anything, []byte("new-image"), "image/jpeg").Return(asset, nil)
	mocks.moderation.On("CheckImageURL", mock.Anything, asset.URL).Return(nil)
	mocks.assets.On("Destroy", mock.Anything, "profile-images/old").Return(nil)

	var stored map[string]interface{}
	mocks.userRepo.On("UpdateFields", uint(5), mock.AnythingOfType("map[string]interface {}")).
		Run(func(args mock.Arguments) {
			stored = args.Get(1).(map[string]interface{})
		}).
		Return(nil)

	// Act
	_, err := svc.UpdateAccount(context.Background(), 5, UpdateAccountInput{
		Image:            []byte("new-image"),
		ImageContentType: "image/jpeg",
	})

	// Assert
	require.NoError(t, err)
	assert.Equal(t, asset.URL, stored["profile_image_url"])
	assert.Equal(t, asset.Key, stored["profile_image_key"])
	mocks.assets.AssertExpectations(t)
}

func TestAccountService_UpdateAccount_NoChanges(t *testing.T) {
	// Arrange
	svc, mocks := newTestAccountService(t)
	user := &entity.User{ID: 5, Username: "user"}
	mocks.userRepo.On("GetByID", uint(5)).Return(user, nil)

	// Act
	result, err := svc.UpdateAccount(context.Background(), 5, UpdateAccountInput{})

	// Assert
	require.NoError(t, err)
	assert.Equal(t, user, result)
	mocks.userRepo.AssertNotCalled(t, "UpdateFields", mock.Anything, mock.Anything)
}

func TestAccountService_DeleteAccount_DestroysHostedImage(t *testing.T) {
	// Arrange
	svc, mocks := newTestAccountService(t)
	user := &entity.User{ID: 5, ProfileImageKey: "profile-images/abc"}
	mocks.userRepo.On("GetByID", uint(5)).Return(user, nil)
	mocks.assets.On("Destroy", mock.Anything, "profile-images/abc").Return(nil)
	mocks.userRepo.On("Delete", uint(5)).Return(nil)

	// Act
	err := svc.DeleteAccount(context.Background(), 5)

	// Assert
	require.NoError(t, err)
	mocks.assets.AssertExpectations(t)
	mocks.userRepo.AssertExpectations(t)
}

func TestAccountService_DeleteAccount_DeletesDespiteAssetFailure(t *testing.T) {
	// Arrange
	svc, mocks := newTestAccountService(t)
	user := &entity.User{ID: 5, ProfileImageKey: "profile-images/abc"}
	mocks.userRepo.On("GetByID", uint(5)).Return(user, nil)
	mocks.assets.On("Destroy", mock.Anything, "profile-images/abc").Return(errors.New("s3 unavailable"))
	mocks.userRepo.On("Delete", uint(5)).Return(nil)

	// Act
	err := svc.DeleteAccount(context.Background(), 5)

	// Assert
	require.NoError(t, err)
	mocks.userRepo.AssertExpectations(t)
}
