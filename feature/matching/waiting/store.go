package waiting

import (
	"context"
	"errors"
	"fmt"
	"time"

	"matchmaker/feature/matching/models"

	"gorm.io/gorm"
)

var (
	// ErrAlreadyWaiting is returned when the user already has an active entry.
	ErrAlreadyWaiting = errors.New("user already has an active waiting entry")
	// ErrNotWaiting is returned when the user has no active entry.
	ErrNotWaiting = errors.New("user has no active waiting entry")
)

// Store is the durable record of who is waiting. It is authoritative for
// "is this user currently matchmaking".
type Store struct {
	db  *gorm.DB
	now func() time.Time
}

// NewStore creates a store on db. db must be opened with TranslateError so unique
// violations surface as gorm.ErrDuplicatedKey.
func NewStore(db *gorm.DB) *Store {
	return &Store{db: db, now: time.Now}
}

// AutoMigrate creates the waiting and pairing tables.
func (s *Store) AutoMigrate() error {
	return s.db.AutoMigrate(&models.WaitingEntry{}, &models.Pairing{})
}

// UpsertActive creates an active entry enqueued now.
func (s *Store) UpsertActive(ctx context.Context, userID string, category models.Category) (*models.WaitingEntry, error) {
	return s.UpsertActiveAt(ctx, userID, category, s.now())
}

// UpsertActiveAt creates an active entry with an explicit enqueue time, used to restore
// a user to their original position.
func (s *Store) UpsertActiveAt(ctx context.Context, userID string, category models.Category, at time.Time) (*models.WaitingEntry, error) {
	// Millisecond precision matches the queue cache score and MySQL datetime(3).
	at = at.UTC().Truncate(time.Millisecond)
	active := userID
	entry := &models.WaitingEntry{
		UserID:       userID,
		Category:     category,
		EnqueuedAt:   at,
		Active:       true,
		ActiveUserID: &active,
	}

	if err := s.db.WithContext(ctx).Create(entry).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrAlreadyWaiting
		}
		return nil, fmt.Errorf("failed to create waiting entry: %w", err)
	}
	return entry, nil
}

// Deactivate marks the user's active entry inactive and returns it.
// Concurrent callers race on a conditional update; only one of them succeeds.
func (s *Store) Deactivate(ctx context.Context, userID string) (*models.WaitingEntry, error) {
	entry, err := s.FindActive(ctx, userID)
	if err != nil {
		return nil, err
	}
	if entry == nil {
		return nil, ErrNotWaiting
	}

	res := s.db.WithContext(ctx).
		Model(&models.WaitingEntry{}).
		Where("id = ? AND active = ?", entry.ID, true).
		Updates(map[string]any{
			"active":         false,
			"active_user_id": nil,
			"updated_at":     s.now(),
		})
	if res.Error != nil {
		return nil, fmt.Errorf("failed to deactivate waiting entry: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, ErrNotWaiting
	}

	entry.Active = false
	entry.ActiveUserID = nil
	return entry, nil
}

// ListActive returns the active entries of category ordered by enqueue time.
func (s *Store) ListActive(ctx context.Context, category models.Category) ([]models.WaitingEntry, error) {
	var entries []models.WaitingEntry
	err := s.db.WithContext(ctx).
		Where("category = ? AND active = ?", category, true).
		Order("enqueued_at ASC, id ASC").
		Find(&entries).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list active entries: %w", err)
	}
	return entries, nil
}

// FindActive returns the user's active entry, or nil when there is none.
func (s *Store) FindActive(ctx context.Context, userID string) (*models.WaitingEntry, error) {
	var entries []models.WaitingEntry
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND active = ?", userID, true).
		Limit(1).
		Find(&entries).Error
	if err != nil {
		return nil, fmt.Errorf("failed to find active entry: %w", err)
	}
	if len(entries) == 0 {
		return nil, nil
	}
	return &entries[0], nil
}

// FindLatest returns the user's most recent entry, active or not, or nil when the user
// never waited.
func (s *Store) FindLatest(ctx context.Context, userID string) (*models.WaitingEntry, error) {
	var entries []models.WaitingEntry
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("id DESC").
		Limit(1).
		Find(&entries).Error
	if err != nil {
		return nil, fmt.Errorf("failed to find latest entry: %w", err)
	}
	if len(entries) == 0 {
		return nil, nil
	}
	return &entries[0], nil
}

// RecordPairing persists a successful pairing.
func (s *Store) RecordPairing(ctx context.Context, pairing *models.Pairing) error {
	if pairing.UserA == pairing.UserB {
		return fmt.Errorf("pairing requires two distinct users, got %s twice", pairing.UserA)
	}
	if err := s.db.WithContext(ctx).Create(pairing).Error; err != nil {
		return fmt.Errorf("failed to record pairing: %w", err)
	}
	return nil
}

// ListPairings returns all pairings in creation order.
func (s *Store) ListPairings(ctx context.Context) ([]models.Pairing, error) {
	var pairings []models.Pairing
	if err := s.db.WithContext(ctx).Order("id ASC").Find(&pairings).Error; err != nil {
		return nil, fmt.Errorf("failed to list pairings: %w", err)
	}
	return pairings, nil
}
