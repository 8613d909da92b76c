package repository

import (
	"github.com/yourusername/account-api/internal/domain/entity"
)

// UserRepository defines persistence operations for accounts.
type UserRepository interface {
	Create(user *entity.User) error
	GetByID(id uint) (*entity.User, error)
	GetByEmail(email string) (*entity.User, error)
	GetByUsername(username string) (*entity.User, error)
	GetByEmailVerificationToken(token string) (*entity.User, error)
	GetByPasswordResetToken(token string) (*entity.User, error)
	Update(user *entity.User) error
	// UpdateFields updates the given columns only, never the password.
	UpdateFields(userID uint, updates map[string]interface{}) error
	// UpdatePassword hashes and stores a new password, bypassing the
	// BeforeSave hook to avoid double hashing.
	UpdatePassword(userID uint, newPassword string) error
	Delete(userID uint) error
}
