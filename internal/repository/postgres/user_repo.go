package postgres

import (
	"errors"
	"log"
	"time"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/yourusername/account-api/internal/domain/entity"
	apperrors "github.com/yourusername/account-api/internal/pkg/errors"
)

// UserRepo implements repository.UserRepository on top of GORM/Postgres.
type UserRepo struct {
	db *gorm.DB
}

func NewUserRepo(db *gorm.DB) *UserRepo {
	return &UserRepo{db: db}
}

func (r *UserRepo) Create(user *entity.User) error {
	return r.db.Create(user).Error
}

func (r *UserRepo) GetByID(id uint) (*entity.User, error) {
	var user entity.User
	err := r.db.First(&user, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, err
	}
	return &user, nil
}

func (r *UserRepo) GetByEmail(email string) (*entity.User, error) {
	return r.getByField("email = ?", email)
}

func (r *UserRepo) GetByUsername(username string) (*entity.User, error) {
	return r.getByField("username = ?", username)
}

func (r *UserRepo) GetByEmailVerificationToken(token string) (*entity.User, error) {
	return r.getByField("email_verification_token = ?", token)
}

func (r *UserRepo) GetByPasswordResetToken(token string) (*entity.User, error) {
	return r.getByField("password_reset_token = ?", token)
}

func (r *UserRepo) getByField(query string, value string) (*entity.User, error) {
	var user entity.User
	err := r.db.Where(query, value).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, err
	}
	return &user, nil
}

func (r *UserRepo) Update(user *entity.User) error {
	return r.db.Save(user).Error
}

// UpdateFields updates the given columns only. The password column is
// stripped so it can never bypass UpdatePassword.
func (r *UserRepo) UpdateFields(userID uint, updates map[string]interface{}) error {
	delete(updates, "password")
	updates["updated_at"] = time.Now()
	return r.db.Model(&entity.User{}).Where("id = ?", userID).Updates(updates).Error
}

// UpdatePassword hashes the password here and writes it with raw SQL to
// bypass the BeforeSave hook and prevent double hashing.
func (r *UserRepo) UpdatePassword(userID uint, newPassword string) error {
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		log.Printf("[UserRepo.UpdatePassword] failed to hash password: %v", err)
		return err
	}

	result := r.db.Exec(
		"UPDATE users SET password = ?, updated_at = ? WHERE id = ?",
		string(hashedPassword),
		time.Now(),
		userID,
	)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

func (r *UserRepo) Delete(userID uint) error {
	result := r.db.Delete(&entity.User{}, userID)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}
