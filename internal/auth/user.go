package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"
)

var (
	ErrUserExists   = errors.New("user with this email or username already exists")
	ErrUserNotFound = errors.New("user not found")
)

type User struct {
	ID           uint64    `gorm:"primaryKey" json:"id"`
	Username     string    `gorm:"uniqueIndex;not null" json:"username"`
	Email        string    `gorm:"uniqueIndex;not null" json:"email"`
	PasswordHash string    `gorm:"not null" json:"-"`
	CreatedAt    time.Time `gorm:"not null;default:now()" json:"createdAt"`
}

// Users is the user repository used by the auth handlers.
type Users interface {
	Create(ctx context.Context, u *User) error
	FindByEmail(ctx context.Context, email string) (*User, error)
	FindByID(ctx context.Context, id uint64) (*User, error)
}

type GormUsers struct {
	DB *gorm.DB
}

func (r *GormUsers) Create(ctx context.Context, u *User) error {
	var n int64
	if err := r.DB.WithContext(ctx).Model(&User{}).
		Where("email = ? OR username = ?", u.Email, u.Username).
		Count(&n).Error; err != nil {
		return err
	}
	if n > 0 {
		return ErrUserExists
	}
	if err := r.DB.WithContext(ctx).Create(u).Error; err != nil {
		// lost a race against a concurrent registration
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrUserExists
		}
		return err
	}
	return nil
}

func (r *GormUsers) FindByEmail(ctx context.Context, email string) (*User, error) {
	var u User
	if err := r.DB.WithContext(ctx).Where("email = ?", NormalizeEmail(email)).First(&u).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &u, nil
}

func (r *GormUsers) FindByID(ctx context.Context, id uint64) (*User, error) {
	var u User
	if err := r.DB.WithContext(ctx).First(&u, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &u, nil
}

func NormalizeEmail(email string) string {
	return strings.TrimSpace(strings.ToLower(email))
}
