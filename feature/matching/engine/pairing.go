package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"matchmaker/core/saga"
	"matchmaker/feature/matching/events"
	"matchmaker/feature/matching/models"
	"matchmaker/feature/matching/waiting"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	sourceImmediate = "immediate"
	sourceBatch     = "batch"
)

// candidate is a claimed user: removed from the queue cache, about to be paired.
type candidate struct {
	UserID   string
	Category models.Category
	Score    int64
}

// pair runs the pairing saga for two claimed users. a is the user that was waiting
// (category "1" in batch pairing), b the requester. On failure both users are back in
// their queues with their original scores and the failure kind is returned.
func (e *Engine) pair(ctx context.Context, a, b *candidate, source string) (string, Kind) {
	var (
		roomID  string
		charged int64
	)
	bearer := e.policy.costBearer(a, b)
	log := e.logger.With(zap.String("user_a", a.UserID), zap.String("user_b", b.UserID), zap.String("source", source))

	s := saga.New(uuid.NewString(), log).
		AddStep("deactivate_waiting", func(ctx context.Context) error {
			e.deactivate(ctx, a)
			e.deactivate(ctx, b)
			return nil
		}, func(ctx context.Context) error {
			return errors.Join(e.restore(ctx, a), e.restore(ctx, b))
		}).
		AddStep("verify_credit", func(ctx context.Context) error {
			if bearer == nil {
				return nil
			}
			balance, err := e.credits.GetBalance(ctx, bearer.UserID)
			if err != nil {
				return &kindError{kind: InternalError, err: err}
			}
			if balance < e.policy.Cost {
				return &kindError{kind: InsufficientCredit, err: fmt.Errorf("balance %d below cost %d", balance, e.policy.Cost)}
			}
			return nil
		}, nil).
		AddStep("create_room", func(ctx context.Context) error {
			id, err := e.rooms.CreateRoom(ctx, a.UserID, b.UserID)
			if err != nil {
				return &kindError{kind: RoomCreationFailed, err: err}
			}
			roomID = id
			return nil
		}, func(ctx context.Context) error {
			return e.rooms.DeleteRoom(ctx, roomID)
		}).
		AddStep("charge_credit", func(ctx context.Context) error {
			if bearer == nil {
				return nil
			}
			res, err := e.credits.Charge(ctx, bearer.UserID, e.policy.Cost, "pairing:"+roomID)
			if err != nil {
				return &kindError{kind: CreditDeductionFailed, err: err}
			}
			if !res.Success {
				return &kindError{kind: CreditDeductionFailed, err: fmt.Errorf("charge declined")}
			}
			charged = e.policy.Cost
			return nil
		}, nil)

	if err := s.Execute(ctx); err != nil {
		kind := InternalError
		var ke *kindError
		if errors.As(err, &ke) {
			kind = ke.kind
		}
		e.metrics.SagaFailed(saga.FailedStep(err))
		log.Warn("Pairing failed, users restored", zap.String("kind", string(kind)), zap.Error(err))
		return "", kind
	}

	e.complete(ctx, a, b, bearer, roomID, charged, source)
	return roomID, ""
}

// complete records the pairing and announces it. Failures here are logged only: the
// room exists and the credit was charged.
func (e *Engine) complete(ctx context.Context, a, b, bearer *candidate, roomID string, charged int64, source string) {
	now := e.now().UTC()
	pairing := &models.Pairing{
		UserA:         a.UserID,
		UserB:         b.UserID,
		CategoryA:     a.Category,
		CategoryB:     b.Category,
		RoomID:        roomID,
		CreditCharged: charged,
		Source:        source,
		Timestamp:     now,
	}
	if bearer != nil {
		pairing.ChargedUser = bearer.UserID
	}

	if err := e.store.RecordPairing(ctx, pairing); err != nil {
		e.logger.Error("Failed to record pairing", zap.String("room_id", roomID), zap.Error(err))
	}

	e.publish(ctx, events.Paired, a.UserID, events.PairedPayload{
		UserA:         a.UserID,
		UserB:         b.UserID,
		RoomID:        roomID,
		CreditCharged: charged,
		Timestamp:     now,
	})
	e.metrics.PairCreated(source)

	e.logger.Info("Users paired",
		zap.String("user_a", a.UserID),
		zap.String("user_b", b.UserID),
		zap.String("room_id", roomID),
		zap.Int64("credit_charged", charged),
		zap.String("source", source),
	)
}

// deactivate closes the store entry of a claimed user. The cache claim already prevents
// double pairing, so a failure is only logged.
func (e *Engine) deactivate(ctx context.Context, c *candidate) {
	if _, err := e.store.Deactivate(ctx, c.UserID); err != nil && !errors.Is(err, waiting.ErrNotWaiting) {
		e.logger.Warn("Failed to deactivate waiting entry", zap.String("user_id", c.UserID), zap.Error(err))
	}
}

// restore puts a claimed user back into both stores at their original position.
func (e *Engine) restore(ctx context.Context, c *candidate) error {
	var errs []error
	_, err := e.store.UpsertActiveAt(ctx, c.UserID, c.Category, time.UnixMilli(c.Score))
	if err != nil && !errors.Is(err, waiting.ErrAlreadyWaiting) {
		errs = append(errs, fmt.Errorf("restore %s in store: %w", c.UserID, err))
	}
	if err := e.cache.Enqueue(ctx, c.Category, c.UserID, c.Score); err != nil {
		errs = append(errs, fmt.Errorf("restore %s in cache: %w", c.UserID, err))
	}
	return errors.Join(errs...)
}
