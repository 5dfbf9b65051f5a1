package engine

import (
	"context"
	"errors"
	"time"

	"matchmaker/core/metrics"
	"matchmaker/feature/matching/events"
	"matchmaker/feature/matching/models"
	"matchmaker/feature/matching/queue"
	"matchmaker/feature/matching/waiting"

	"go.uber.org/zap"
)

// maxClaimAttempts bounds how many stale members one request drops before it waits.
const maxClaimAttempts = 8

// Deps bundles the collaborators of an Engine.
type Deps struct {
	Store    WaitingStore
	Cache    queue.Cache
	Bus      events.Bus
	Profiles Profiles
	Credits  Credits
	Rooms    Rooms
	Policy   Policy
	Metrics  metrics.Recorder
	Logger   *zap.Logger
}

// Engine pairs users of opposite categories. It holds no lock across I/O; the queue
// cache claim is the only mutual exclusion between concurrent pairings.
type Engine struct {
	store    WaitingStore
	cache    queue.Cache
	bus      events.Bus
	profiles Profiles
	credits  Credits
	rooms    Rooms
	policy   Policy
	metrics  metrics.Recorder
	logger   *zap.Logger
	now      func() time.Time
}

// New creates an engine.
func New(deps Deps) *Engine {
	m := deps.Metrics
	if m == nil {
		m = metrics.NewNop()
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		store:    deps.Store,
		cache:    deps.Cache,
		bus:      deps.Bus,
		profiles: deps.Profiles,
		credits:  deps.Credits,
		rooms:    deps.Rooms,
		policy:   deps.Policy,
		metrics:  m,
		logger:   logger,
		now:      time.Now,
	}
}

// Policy returns the charging policy in use.
func (e *Engine) Policy() Policy {
	return e.policy
}

// RequestMatch enqueues userID in category, pairing immediately when a user of the
// opposite category is waiting.
func (e *Engine) RequestMatch(ctx context.Context, userID, rawCategory string, extra map[string]any) Result {
	res := e.requestMatch(ctx, userID, rawCategory, extra)
	e.metrics.RequestOutcome("request_match", string(res.Error))
	return res
}

func (e *Engine) requestMatch(ctx context.Context, userID, rawCategory string, extra map[string]any) Result {
	log := e.logger.With(zap.String("user_id", userID), zap.String("category", rawCategory))

	category, ok := models.ParseCategory(rawCategory)
	if !ok {
		return failure(InvalidCategory)
	}

	exists, err := e.profiles.Exists(ctx, userID)
	if err != nil {
		log.Error("Failed to check user", zap.Error(err))
		return failure(InternalError)
	}
	if !exists {
		return failure(UserNotFound)
	}

	registered, err := e.profiles.GetCategory(ctx, userID)
	if err != nil {
		log.Error("Failed to read user category", zap.Error(err))
		return failure(InternalError)
	}
	if registered != "" && registered != category.String() {
		return failure(InvalidCategory)
	}

	active, err := e.store.FindActive(ctx, userID)
	if err != nil {
		log.Error("Failed to read waiting entry", zap.Error(err))
		return failure(InternalError)
	}
	if active != nil {
		return failure(AlreadyWaiting)
	}

	if e.policy.RequireUpfrontCheck && e.policy.Charges(category) {
		balance, err := e.credits.GetBalance(ctx, userID)
		if err != nil {
			log.Error("Failed to read balance", zap.Error(err))
			return failure(InternalError)
		}
		if balance < e.policy.Cost {
			return failure(InsufficientCredit)
		}
	}

	// The store entry is written before the claim attempt. Its unique index turns a
	// concurrent duplicate request of the same user into AlreadyWaiting.
	entry, err := e.store.UpsertActive(ctx, userID, category)
	if errors.Is(err, waiting.ErrAlreadyWaiting) {
		return failure(AlreadyWaiting)
	}
	if err != nil {
		log.Error("Failed to write waiting entry", zap.Error(err))
		return failure(InternalError)
	}
	requester := &candidate{UserID: userID, Category: category, Score: entry.Score()}

	peer, err := e.claimOldest(ctx, category.Opposite(), userID)
	if err != nil {
		log.Error("Failed to claim peer", zap.Error(err))
		// The requester keeps waiting; the entry is already in the store.
	}

	if peer != nil {
		roomID, kind := e.pair(ctx, peer, requester, sourceImmediate)
		if kind != "" {
			// Both users were restored; the requester is now waiting like any other user.
			e.publish(ctx, events.Requested, userID, events.RequestedPayload{
				UserID:     userID,
				Category:   category,
				EnqueuedAt: entry.EnqueuedAt,
				Extra:      extra,
			})
			return failure(kind)
		}
		return Result{Success: true, Status: StatusPaired, RoomID: roomID, PartnerID: peer.UserID}
	}

	e.enqueue(ctx, requester)
	e.publish(ctx, events.Requested, userID, events.RequestedPayload{
		UserID:     userID,
		Category:   category,
		EnqueuedAt: entry.EnqueuedAt,
		Extra:      extra,
	})
	log.Info("User is waiting")

	return Result{Success: true, Status: StatusWaiting}
}

// claimOldest claims the oldest member of category that the store still reports as
// waiting there. Members without an active entry are left over from a cancel or pairing
// whose cache removal failed; they are dropped. The requester itself is never returned.
func (e *Engine) claimOldest(ctx context.Context, category models.Category, requester string) (*candidate, error) {
	for attempt := 0; attempt < maxClaimAttempts; attempt++ {
		n, err := e.cache.Length(ctx, category)
		if err != nil || n == 0 {
			return nil, err
		}

		member, ok, err := e.cache.DequeueOldest(ctx, category)
		if err != nil || !ok {
			return nil, err
		}

		if member.UserID == requester {
			e.pushBack(ctx, category, member)
			return nil, nil
		}

		entry, err := e.store.FindActive(ctx, member.UserID)
		if err != nil {
			e.pushBack(ctx, category, member)
			return nil, err
		}
		if entry == nil || entry.Category != category {
			e.logger.Info("Dropped stale queue member",
				zap.String("user_id", member.UserID),
				zap.String("category", category.String()),
			)
			continue
		}

		return &candidate{UserID: member.UserID, Category: category, Score: member.Score}, nil
	}
	return nil, nil
}

func (e *Engine) pushBack(ctx context.Context, category models.Category, member queue.Member) {
	if err := e.cache.Enqueue(ctx, category, member.UserID, member.Score); err != nil {
		e.logger.Warn("Failed to push back claimed member", zap.String("user_id", member.UserID), zap.Error(err))
	}
}

// CancelMatch withdraws the user's waiting entry. Cancelling twice is safe: the second
// call reports NotWaiting without side effects.
func (e *Engine) CancelMatch(ctx context.Context, userID string) Result {
	res := e.cancelMatch(ctx, userID)
	e.metrics.RequestOutcome("cancel_match", string(res.Error))
	return res
}

func (e *Engine) cancelMatch(ctx context.Context, userID string) Result {
	log := e.logger.With(zap.String("user_id", userID))

	entry, err := e.store.Deactivate(ctx, userID)
	if errors.Is(err, waiting.ErrNotWaiting) {
		return failure(NotWaiting)
	}
	if err != nil {
		log.Error("Failed to deactivate waiting entry", zap.Error(err))
		return failure(InternalError)
	}

	if _, err := e.cache.Remove(ctx, entry.Category, userID); err != nil {
		// The reconciler drops cache members whose store entry was closed after they were queued.
		log.Warn("Failed to remove cancelled user from queue", zap.Error(err))
	}

	e.publish(ctx, events.Cancelled, userID, events.CancelledPayload{UserID: userID, Category: entry.Category})
	log.Info("Match request cancelled")

	return Result{Success: true}
}

// GetStatus reports whether the user is waiting, or the open room they were paired into.
func (e *Engine) GetStatus(ctx context.Context, userID string) StatusResult {
	entry, err := e.store.FindActive(ctx, userID)
	if err != nil {
		e.logger.Error("Failed to read waiting entry", zap.String("user_id", userID), zap.Error(err))
		return StatusResult{Error: InternalError}
	}
	if entry != nil {
		return StatusResult{Waiting: true, Category: entry.Category.String()}
	}

	roomID, ok, err := e.rooms.FindOpenRoomFor(ctx, userID)
	if err != nil {
		e.logger.Error("Failed to find open room", zap.String("user_id", userID), zap.Error(err))
		return StatusResult{Error: InternalError}
	}
	if !ok {
		return StatusResult{}
	}
	return StatusResult{MatchedRoomID: &roomID}
}

// RefreshQueueMetrics records the cache length of both categories.
func (e *Engine) RefreshQueueMetrics(ctx context.Context) {
	for _, c := range models.Categories {
		n, err := e.cache.Length(ctx, c)
		if err != nil {
			e.logger.Debug("Failed to read queue length", zap.String("category", c.String()), zap.Error(err))
			continue
		}
		e.metrics.QueueLength(c.String(), n)
	}
}

func (e *Engine) enqueue(ctx context.Context, c *candidate) {
	if err := e.cache.Enqueue(ctx, c.Category, c.UserID, c.Score); err != nil {
		// The store entry exists; the reconciler adds the missing cache member.
		e.logger.Warn("Failed to enqueue user in cache",
			zap.String("user_id", c.UserID),
			zap.String("category", c.Category.String()),
			zap.Error(err),
		)
	}
}

func (e *Engine) publish(ctx context.Context, name events.Name, key string, payload any) {
	evt, err := events.New(name, key, payload)
	if err == nil {
		err = e.bus.Publish(ctx, evt)
	}
	if err != nil {
		e.logger.Warn("Failed to publish event", zap.String("event", string(name)), zap.Error(err))
	}
}
