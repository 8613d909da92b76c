package service

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/yourusername/account-api/internal/domain/entity"
)

// MockUserRepository implements repository.UserRepository.
type MockUserRepository struct {
	mock.Mock
}

func (m *MockUserRepository) Create(user *entity.User) error {
	args := m.Called(user)
	return args.Error(0)
}

func (m *MockUserRepository) GetByID(id uint) (*entity.User, error) {
	args := m.Called(id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.User), args.Error(1)
}

func (m *MockUserRepository) GetByEmail(email string) (*entity.User, error) {
	args := m.Called(email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.User), args.Error(1)
}

func (m *MockUserRepository) GetByUsername(username string) (*entity.User, error) {
	args := m.Called(username)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.User), args.Error(1)
}

func (m *MockUserRepository) GetByEmailVerificationToken(token string) (*entity.User, error) {
	args := m.Called(token)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.User), args.Error(1)
}

func (m *MockUserRepository) GetByPasswordResetToken(token string) (*entity.User, error) {
	args := m.Called(token)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.User), args.Error(1)
}

func (m *MockUserRepository) Update(user *entity.User) error {
	args := m.Called(user)
	return args.Error(0)
}

func (m *MockUserRepository) UpdateFields(userID uint, updates map[string]interface{}) error {
	args := m.Called(userID, updates)
	return args.Error(0)
}

func (m *MockUserRepository) UpdatePassword(userID uint, newPassword string) error {
	args := m.Called(userID, newPassword)
	return args.Error(0)
}

func (m *MockUserRepository) Delete(userID uint) error {
	args := m.Called(userID)
	return args.Error(0)
}

// MockEmailService implements EmailService.
type MockEmailService struct {
	mock.Mock
}

func (m *MockEmailService) SendVerificationLink(ctx context.Context, toEmail, link, idempotencyKey string) error {
	args := m.Called(ctx, toEmail, link, idempotencyKey)
	return args.Error(0)
}

func (m *MockEmailService) SendVerificationCode(ctx context.Context, toEmail, code, idempotencyKey string) error {
	args := m.Called(ctx, toEmail, code, idempotencyKey)
	return args.Error(0)
}

func (m *MockEmailService) SendPasswordReset(ctx context.Context, toEmail, link, idempotencyKey string) error {
	args := m.Called(ctx, toEmail, link, idempotencyKey)
	return args.Error(0)
}

// MockModerationService implements ModerationService.
type MockModerationService struct {
	mock.Mock
}

func (m *MockModerationService) CheckText(ctx context.Context, content string) error {
	args := m.Called(ctx, content)
	return args.Error(0)
}

func (m *MockModerationService) CheckImageURL(ctx context.Context, imageURL string) error {
	args := m.Called(ctx, imageURL)
	return args.Error(0)
}

// MockAssetService implements AssetService.
type MockAssetService struct {
	mock.Mock
}

func (m *MockAssetService) Upload(ctx context.Context, data []byte, contentType string) (*UploadedAsset, error) {
	args := m.Called(ctx, data, contentType)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*UploadedAsset), args.Error(1)
}

func (m *MockAssetService) Destroy(ctx context.Context, key string) error {
	args := m.Called(ctx, key)
	return args.Error(0)
}
