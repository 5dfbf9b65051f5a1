package rooms

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ErrRoomNotFound is returned when closing an unknown room.
var ErrRoomNotFound = errors.New("room not found")

// Room is a private room opened for a pair of users.
type Room struct {
	ID        string     `gorm:"primaryKey;size:64" json:"id"`
	UserA     string     `gorm:"size:64;not null;index" json:"user_a"`
	UserB     string     `gorm:"size:64;not null;index" json:"user_b"`
	Open      bool       `gorm:"not null;default:true" json:"open"`
	CreatedAt time.Time  `json:"created_at"`
	ClosedAt  *time.Time `json:"closed_at,omitempty"`
}

// TableName overrides the table name.
func (Room) TableName() string {
	return "rooms"
}

// Store creates and looks up rooms.
type Store struct {
	db *gorm.DB
}

// NewStore creates a room store on db.
func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// AutoMigrate creates the rooms table.
func (s *Store) AutoMigrate() error {
	return s.db.AutoMigrate(&Room{})
}

// CreateRoom opens a room for two users and returns its id.
func (s *Store) CreateRoom(ctx context.Context, userA, userB string) (string, error) {
	if userA == "" || userB == "" || userA == userB {
		return "", fmt.Errorf("invalid room members %q and %q", userA, userB)
	}
	room := &Room{ID: uuid.NewString(), UserA: userA, UserB: userB, Open: true}
	if err := s.db.WithContext(ctx).Create(room).Error; err != nil {
		return "", fmt.Errorf("failed to create room: %w", err)
	}
	return room.ID, nil
}

// DeleteRoom removes a room. Deleting an unknown room is not an error.
func (s *Store) DeleteRoom(ctx context.Context, roomID string) error {
	if err := s.db.WithContext(ctx).Where("id = ?", roomID).Delete(&Room{}).Error; err != nil {
		return fmt.Errorf("failed to delete room %s: %w", roomID, err)
	}
	return nil
}

// Close marks a room closed.
func (s *Store) Close(ctx context.Context, roomID string) error {
	now := time.Now()
	res := s.db.WithContext(ctx).Model(&Room{}).
		Where("id = ? AND open = ?", roomID, true).
		Updates(map[string]any{"open": false, "closed_at": now})
	if res.Error != nil {
		return fmt.Errorf("failed to close room %s: %w", roomID, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrRoomNotFound
	}
	return nil
}

// FindOpenRoomFor returns the most recent open room of the user.
func (s *Store) FindOpenRoomFor(ctx context.Context, userID string) (string, bool, error) {
	var room Room
	err := s.db.WithContext(ctx).
		Where("open = ? AND (user_a = ? OR user_b = ?)", true, userID, userID).
		Order("created_at DESC").
		Take(&room).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to find room: %w", err)
	}
	return room.ID, true, nil
}
