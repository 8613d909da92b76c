package entity

import (
	"log"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// User is the single persistent account record. All verification state
// (email token, text code, attempts, lockout) lives on this row.
type User struct {
	ID        uint   `gorm:"primaryKey" json:"id"`
	Email     string `gorm:"size:100;not null;uniqueIndex" json:"email"`
	Username  string `gorm:"size:50;not null;uniqueIndex" json:"username"`
	Password  string `gorm:"size:100;not null" json:"-"`
	FirstName string `gorm:"size:100;not null;default:''" json:"first_name"`
	Surname   string `gorm:"size:100;not null;default:''" json:"surname"`

	ProfileImageURL string `gorm:"size:255;not null;default:''" json:"profile_image_url,omitempty"`
	// ProfileImageKey is the object key in the asset store, kept so the
	// hosted image can be destroyed on replace/delete.
	ProfileImageKey string `gorm:"size:255;not null;default:''" json:"-"`

	EmailVerified          bool    `gorm:"not null;default:false" json:"email_verified"`
	EmailVerificationToken *string `gorm:"size:512" json:"-"`

	TextVerified              bool       `gorm:"not null;default:false" json:"text_verified"`
	VerificationCode          *string    `gorm:"size:6" json:"-"`
	VerificationCodeExpiresAt *time.Time `json:"-"`
	VerificationAttempts      int        `gorm:"not null;default:0" json:"-"`
	VerificationLockedUntil   *time.Time `json:"-"`

	PasswordResetToken     *string    `gorm:"size:512" json:"-"`
	PasswordResetExpiresAt *time.Time `json:"-"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (User) TableName() string {
	return "users"
}

// IsVerificationLocked reports whether code validation is blocked at the given time.
func (u *User) IsVerificationLocked(now time.Time) bool {
	return u.VerificationLockedUntil != nil && u.VerificationLockedUntil.After(now)
}

// IsVerificationCodeExpired reports whether the outstanding code is past its expiry.
// An absent code counts as expired.
func (u *User) IsVerificationCodeExpired(now time.Time) bool {
	return u.VerificationCodeExpiresAt == nil || now.After(*u.VerificationCodeExpiresAt)
}

// BeforeSave hashes the password unless it already is a bcrypt hash.
func (u *User) BeforeSave(tx *gorm.DB) error {
	if len(u.Password) > 0 && !strings.HasPrefix(u.Password, "$2a$") &&
		!strings.HasPrefix(u.Password, "$2b$") && !strings.HasPrefix(u.Password, "$2y$") {
		hashedPassword, err := bcrypt.GenerateFromPassword([]byte(u.Password), bcrypt.DefaultCost)
		if err != nil {
			log.Printf("[User.BeforeSave] failed to hash password for email=%s: %v", u.Email, err)
			return err
		}
		u.Password = string(hashedPassword)
	}
	return nil
}

// CheckPassword compares a plaintext password against the stored hash.
func (u *User) CheckPassword(password string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(u.Password), []byte(password))
	return err == nil
}
