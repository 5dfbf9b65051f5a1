package accounts

import (
	"context"
	"errors"
	"fmt"

	"matchmaker/feature/matching/engine"

	"gorm.io/gorm"
)

// Ledger owns credit balances. Every movement is written to credit_ledger in the same
// transaction as the balance update.
type Ledger struct {
	db *gorm.DB
}

// NewLedger creates a ledger on db.
func NewLedger(db *gorm.DB) *Ledger {
	return &Ledger{db: db}
}

// GetBalance returns the user's current balance.
func (l *Ledger) GetBalance(ctx context.Context, userID string) (int64, error) {
	var user User
	err := l.db.WithContext(ctx).Select("credits").Where("id = ?", userID).Take(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, ErrUserNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read balance: %w", err)
	}
	return user.Credits, nil
}

// Charge takes amount from the user's balance. A charge never overdraws: an insufficient
// balance yields Success false. Charging twice with the same non-empty reason charges once.
func (l *Ledger) Charge(ctx context.Context, userID string, amount int64, reason string) (engine.ChargeResult, error) {
	if amount <= 0 {
		return engine.ChargeResult{}, fmt.Errorf("invalid charge amount %d", amount)
	}

	var result engine.ChargeResult
	err := l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if reason != "" {
			var prior CreditLedgerEntry
			err := tx.Where("user_id = ? AND reason = ?", userID, reason).Take(&prior).Error
			if err == nil {
				result = engine.ChargeResult{Success: true, NewBalance: prior.Balance}
				return nil
			}
			if !errors.Is(err, gorm.ErrRecordNotFound) {
				return err
			}
		}

		res := tx.Model(&User{}).
			Where("id = ? AND credits >= ?", userID, amount).
			UpdateColumn("credits", gorm.Expr("credits - ?", amount))
		if res.Error != nil {
			return res.Error
		}

		var user User
		if err := tx.Select("credits").Where("id = ?", userID).Take(&user).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrUserNotFound
			}
			return err
		}
		if res.RowsAffected == 0 {
			result = engine.ChargeResult{Success: false, NewBalance: user.Credits}
			return nil
		}

		entry := &CreditLedgerEntry{UserID: userID, Amount: -amount, Balance: user.Credits, Reason: reason}
		if err := tx.Create(entry).Error; err != nil {
			return err
		}
		result = engine.ChargeResult{Success: true, NewBalance: user.Credits}
		return nil
	})
	if err != nil {
		return engine.ChargeResult{}, fmt.Errorf("failed to charge %s: %w", userID, err)
	}
	return result, nil
}

// Grant adds amount to the user's balance.
func (l *Ledger) Grant(ctx context.Context, userID string, amount int64, reason string) (int64, error) {
	if amount <= 0 {
		return 0, fmt.Errorf("invalid grant amount %d", amount)
	}

	var balance int64
	err := l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&User{}).Where("id = ?", userID).UpdateColumn("credits", gorm.Expr("credits + ?", amount))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrUserNotFound
		}

		var user User
		if err := tx.Select("credits").Where("id = ?", userID).Take(&user).Error; err != nil {
			return err
		}
		balance = user.Credits
		return tx.Create(&CreditLedgerEntry{UserID: userID, Amount: amount, Balance: balance, Reason: reason}).Error
	})
	if err != nil {
		return 0, fmt.Errorf("failed to grant %s: %w", userID, err)
	}
	return balance, nil
}

// History returns the user's ledger entries, newest first.
func (l *Ledger) History(ctx context.Context, userID string) ([]CreditLedgerEntry, error) {
	var entries []CreditLedgerEntry
	err := l.db.WithContext(ctx).Where("user_id = ?", userID).Order("id DESC").Find(&entries).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list ledger: %w", err)
	}
	return entries, nil
}
