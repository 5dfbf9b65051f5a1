package models

import "time"

// WaitingEntry is a user's open matchmaking request.
// ActiveUserID equals UserID while the entry is active and is NULL afterwards, so the
// unique index allows any number of inactive rows but only one active row per user.
type WaitingEntry struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	UserID       string    `gorm:"size:64;not null;index" json:"user_id"`
	Category     Category  `gorm:"size:8;not null;index:idx_waiting_category_active" json:"category"`
	EnqueuedAt   time.Time `gorm:"not null" json:"enqueued_at"`
	Active       bool      `gorm:"not null;index:idx_waiting_category_active" json:"active"`
	ActiveUserID *string   `gorm:"size:64;uniqueIndex:idx_waiting_active_user" json:"-"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// TableName overrides the table name.
func (WaitingEntry) TableName() string {
	return "waiting_entries"
}

// Score returns the queue cache score of the entry.
func (w WaitingEntry) Score() int64 {
	return w.EnqueuedAt.UnixMilli()
}

// Pairing is a persisted successful pairing.
type Pairing struct {
	ID            uint      `gorm:"primaryKey" json:"-"`
	UserA         string    `gorm:"size:64;not null;index" json:"user_a"`
	UserB         string    `gorm:"size:64;not null;index" json:"user_b"`
	CategoryA     Category  `gorm:"size:8;not null" json:"category_a"`
	CategoryB     Category  `gorm:"size:8;not null" json:"category_b"`
	RoomID        string    `gorm:"size:64;not null" json:"room_id"`
	CreditCharged int64     `gorm:"not null" json:"credit_charged"`
	ChargedUser   string    `gorm:"size:64" json:"charged_user,omitempty"`
	Source        string    `gorm:"size:16" json:"source"`
	Timestamp     time.Time `gorm:"not null" json:"timestamp"`
}

// TableName overrides the table name.
func (Pairing) TableName() string {
	return "pairings"
}
