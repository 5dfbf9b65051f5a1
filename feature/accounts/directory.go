package accounts

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
)

// ErrUserNotFound is returned for unknown or deactivated users.
var ErrUserNotFound = errors.New("user not found")

// Directory answers identity and profile questions about users.
type Directory struct {
	db *gorm.DB
}

// NewDirectory creates a directory on db.
func NewDirectory(db *gorm.DB) *Directory {
	return &Directory{db: db}
}

// AutoMigrate creates the users and ledger tables.
func (d *Directory) AutoMigrate() error {
	return d.db.AutoMigrate(&User{}, &CreditLedgerEntry{})
}

// Create registers a user.
func (d *Directory) Create(ctx context.Context, user *User) error {
	if err := d.db.WithContext(ctx).Create(user).Error; err != nil {
		return fmt.Errorf("failed to create user %s: %w", user.ID, err)
	}
	return nil
}

// Exists reports whether an active user with the id exists.
func (d *Directory) Exists(ctx context.Context, userID string) (bool, error) {
	var count int64
	err := d.db.WithContext(ctx).Model(&User{}).Where("id = ? AND active = ?", userID, true).Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to look up user: %w", err)
	}
	return count > 0, nil
}

// GetCategory returns the category the user registered with.
func (d *Directory) GetCategory(ctx context.Context, userID string) (string, error) {
	user, err := d.find(ctx, userID)
	if err != nil {
		return "", err
	}
	return user.Category, nil
}

// GetPublicProfile returns the fields a partner may see.
func (d *Directory) GetPublicProfile(ctx context.Context, userID string) (map[string]any, error) {
	user, err := d.find(ctx, userID)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"id":          user.ID,
		"displayName": user.DisplayName,
		"bio":         user.Bio,
		"category":    user.Category,
		"photo":       user.PhotoKey,
	}, nil
}

func (d *Directory) find(ctx context.Context, userID string) (*User, error) {
	var user User
	err := d.db.WithContext(ctx).Where("id = ? AND active = ?", userID, true).Take(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	return &user, nil
}
