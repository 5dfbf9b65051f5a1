package accounts

import "time"

// User is a registered user and their credit balance.
type User struct {
	ID          string    `gorm:"primaryKey;size:64" json:"id"`
	Category    string    `gorm:"size:8;not null" json:"category"`
	DisplayName string    `gorm:"size:128" json:"display_name"`
	Bio         string    `gorm:"type:text" json:"bio"`
	PhotoKey    string    `gorm:"size:255" json:"photo_key"`
	Credits     int64     `gorm:"not null;default:0" json:"credits"`
	Active      bool      `gorm:"not null;default:true" json:"active"`
	CreatedAt   time.Time `json:"created_at"`
}

// TableName overrides the table name.
func (User) TableName() string {
	return "users"
}

// CreditLedgerEntry is one balance movement. Amount is negative for charges.
type CreditLedgerEntry struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    string    `gorm:"size:64;not null;index:idx_ledger_user_reason" json:"user_id"`
	Amount    int64     `gorm:"not null" json:"amount"`
	Balance   int64     `gorm:"not null" json:"balance"`
	Reason    string    `gorm:"size:128;index:idx_ledger_user_reason" json:"reason"`
	CreatedAt time.Time `json:"created_at"`
}

// TableName overrides the table name.
func (CreditLedgerEntry) TableName() string {
	return "credit_ledger"
}
