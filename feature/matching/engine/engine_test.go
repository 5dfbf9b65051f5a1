package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"matchmaker/feature/matching/events"
	"matchmaker/feature/matching/models"
	"matchmaker/feature/matching/queue"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestEngine_RequestMatch_WaitsThenPairs(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.user("a", models.CategoryOne, 100)
	h.user("b", models.CategoryTwo, 0)

	res := h.engine.RequestMatch(ctx, "a", "1", nil)
	assert.Equal(t, Result{Success: true, Status: StatusWaiting}, res)
	assert.Equal(t, []string{"a"}, h.queued(t, models.CategoryOne))

	status := h.engine.GetStatus(ctx, "a")
	assert.True(t, status.Waiting)
	assert.Equal(t, "1", status.Category)

	res = h.engine.RequestMatch(ctx, "b", "2", nil)
	require.True(t, res.Success, res.Error)
	assert.Equal(t, StatusPaired, res.Status)
	assert.Equal(t, "a", res.PartnerID)
	assert.NotEmpty(t, res.RoomID)

	assert.Equal(t, int64(90), h.credits.balance("a"))
	assert.Equal(t, int64(0), h.credits.balance("b"))
	assert.Equal(t, []string{"a|pairing:" + res.RoomID}, h.credits.charges)
	assert.Empty(t, h.queued(t, models.CategoryOne))
	assert.Empty(t, h.queued(t, models.CategoryTwo))

	for _, id := range []string{"a", "b"} {
		status := h.engine.GetStatus(ctx, id)
		assert.False(t, status.Waiting)
		require.NotNil(t, status.MatchedRoomID)
		assert.Equal(t, res.RoomID, *status.MatchedRoomID)
	}

	pairings, err := h.store.ListPairings(ctx)
	require.NoError(t, err)
	require.Len(t, pairings, 1)
	assert.Equal(t, "a", pairings[0].UserA)
	assert.Equal(t, "b", pairings[0].UserB)
	assert.Equal(t, "a", pairings[0].ChargedUser)
	assert.Equal(t, int64(10), pairings[0].CreditCharged)
	assert.Equal(t, sourceImmediate, pairings[0].Source)

	assert.Eventually(t, func() bool { return len(h.events.byName(events.Paired)) == 1 }, time.Second, 10*time.Millisecond)
	var payload events.PairedPayload
	require.NoError(t, h.events.byName(events.Paired)[0].Decode(&payload))
	assert.Equal(t, "a", payload.UserA)
	assert.Equal(t, "b", payload.UserB)
	assert.Equal(t, res.RoomID, payload.RoomID)
	assert.Equal(t, int64(10), payload.CreditCharged)
}

func TestEngine_RequestMatch_UnchargedSideWaitsFirst(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.user("b", models.CategoryTwo, 0)
	h.user("a", models.CategoryOne, 10)

	assert.Equal(t, StatusWaiting, h.engine.RequestMatch(ctx, "b", "2", nil).Status)

	res := h.engine.RequestMatch(ctx, "a", "1", nil)
	require.True(t, res.Success)
	assert.Equal(t, "b", res.PartnerID)
	assert.Equal(t, int64(0), h.credits.balance("a"))
}

func TestEngine_RequestMatch_Validation(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.user("a", models.CategoryOne, 100)
	h.user("poor", models.CategoryOne, 5)
	h.user("b", models.CategoryTwo, 0)

	assert.Equal(t, failure(InvalidCategory), h.engine.RequestMatch(ctx, "a", "3", nil))
	assert.Equal(t, failure(InvalidCategory), h.engine.RequestMatch(ctx, "a", "2", nil))
	assert.Equal(t, failure(UserNotFound), h.engine.RequestMatch(ctx, "ghost", "1", nil))
	assert.Equal(t, failure(InsufficientCredit), h.engine.RequestMatch(ctx, "poor", "1", nil))

	assert.True(t, h.engine.RequestMatch(ctx, "a", "1", nil).Success)
	assert.Equal(t, failure(AlreadyWaiting), h.engine.RequestMatch(ctx, "a", "1", nil))

	// Rejected requests leave no trace.
	assert.Equal(t, []string{"a"}, h.queued(t, models.CategoryOne))
	assert.False(t, h.engine.GetStatus(ctx, "poor").Waiting)
	assert.Eventually(t, func() bool { return len(h.events.byName(events.Requested)) == 1 }, time.Second, 10*time.Millisecond)
}

func TestEngine_RequestMatch_NoUpfrontCheck(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.engine.policy.RequireUpfrontCheck = false
	h.user("poor", models.CategoryOne, 5)

	assert.Equal(t, StatusWaiting, h.engine.RequestMatch(ctx, "poor", "1", nil).Status)
}

func TestEngine_RequestMatch_ProfileError(t *testing.T) {
	h := newHarness(t)
	profiles := new(mockProfiles)
	profiles.On("Exists", mock.Anything, "a").Return(false, errors.New("db down"))
	h.engine.profiles = profiles

	assert.Equal(t, failure(InternalError), h.engine.RequestMatch(context.Background(), "a", "1", nil))
	profiles.AssertExpectations(t)
}

func TestEngine_RequestMatch_InsufficientCreditAtPairing(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.user("a", models.CategoryOne, 10)
	h.user("b", models.CategoryTwo, 0)

	require.True(t, h.engine.RequestMatch(ctx, "a", "1", nil).Success)
	scoreBefore := h.cacheScore(t, models.CategoryOne, "a")

	// Balance spent elsewhere after enqueueing.
	h.credits.balances["a"] = 3

	res := h.engine.RequestMatch(ctx, "b", "2", nil)
	assert.Equal(t, failure(InsufficientCredit), res)

	assert.Zero(t, h.rooms.count())
	assert.Equal(t, []string{"a"}, h.queued(t, models.CategoryOne))
	assert.Equal(t, []string{"b"}, h.queued(t, models.CategoryTwo))
	assert.Equal(t, scoreBefore, h.cacheScore(t, models.CategoryOne, "a"))
	assert.True(t, h.engine.GetStatus(ctx, "a").Waiting)
	assert.True(t, h.engine.GetStatus(ctx, "b").Waiting)
}

func TestEngine_PairingRollsBackOnChargeFailure(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.user("a", models.CategoryOne, 100)
	h.user("b", models.CategoryTwo, 0)
	h.credits.failCharge = true

	require.True(t, h.engine.RequestMatch(ctx, "a", "1", nil).Success)
	res := h.engine.RequestMatch(ctx, "b", "2", nil)
	assert.Equal(t, failure(CreditDeductionFailed), res)

	assert.Zero(t, h.rooms.count())
	assert.Len(t, h.rooms.deleted, 1)
	assert.Equal(t, int64(100), h.credits.balance("a"))
	assert.Equal(t, []string{"a"}, h.queued(t, models.CategoryOne))
	assert.Equal(t, []string{"b"}, h.queued(t, models.CategoryTwo))

	for _, id := range []string{"a", "b"} {
		status := h.engine.GetStatus(ctx, id)
		assert.True(t, status.Waiting, id)
		assert.Nil(t, status.MatchedRoomID)
	}

	pairings, err := h.store.ListPairings(ctx)
	require.NoError(t, err)
	assert.Empty(t, pairings)
	assert.Empty(t, h.events.byName(events.Paired))

	// Once the ledger recovers the batch pairs them in their original order.
	h.credits.failCharge = false
	batch := h.engine.RunBatchPairing(ctx)
	assert.Equal(t, 1, batch.PairsCreated)
	assert.Equal(t, int64(90), h.credits.balance("a"))
}

func TestEngine_RunBatchPairing(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	base := time.Now().Add(-time.Minute)

	for i, id := range []string{"a1", "a2", "a3"} {
		h.user(id, models.CategoryOne, 100)
		h.seed(t, id, models.CategoryOne, base.Add(time.Duration(i)*time.Second))
	}
	for i, id := range []string{"b1", "b2"} {
		h.user(id, models.CategoryTwo, 0)
		h.seed(t, id, models.CategoryTwo, base.Add(time.Duration(i)*time.Second))
	}

	core, logs := observer.New(zap.InfoLevel)
	h.engine.logger = zap.New(core)

	res := h.engine.RunBatchPairing(ctx)
	assert.Equal(t, BatchResult{PairsCreated: 2}, res)
	finished := logs.FilterMessage("Batch pairing finished").All()
	require.Len(t, finished, 1)
	assert.Equal(t, int64(2), finished[0].ContextMap()["pairs_created"])
	assert.Equal(t, []string{"a3"}, h.queued(t, models.CategoryOne))
	assert.Empty(t, h.queued(t, models.CategoryTwo))

	pairings, err := h.store.ListPairings(ctx)
	require.NoError(t, err)
	require.Len(t, pairings, 2)
	got := map[string]string{}
	for _, p := range pairings {
		got[p.UserA] = p.UserB
		assert.Equal(t, sourceBatch, p.Source)
	}
	assert.Equal(t, map[string]string{"a1": "b1", "a2": "b2"}, got)

	assert.Equal(t, BatchResult{}, h.engine.RunBatchPairing(ctx))
	assert.Equal(t, 1, logs.FilterMessage("Batch pairing finished").Len())
}

func TestEngine_RunBatchPairing_RoomCreationFailed(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.user("a", models.CategoryOne, 100)
	h.user("b", models.CategoryTwo, 0)
	h.seed(t, "a", models.CategoryOne, time.Now().Add(-time.Second))
	h.seed(t, "b", models.CategoryTwo, time.Now())
	h.rooms.failCreate = true

	res := h.engine.RunBatchPairing(ctx)
	assert.Equal(t, BatchResult{Failures: 1}, res)
	assert.Equal(t, int64(100), h.credits.balance("a"))
	assert.Equal(t, []string{"a"}, h.queued(t, models.CategoryOne))
	assert.Equal(t, []string{"b"}, h.queued(t, models.CategoryTwo))
	assert.True(t, h.engine.GetStatus(ctx, "a").Waiting)
	assert.True(t, h.engine.GetStatus(ctx, "b").Waiting)
}

func TestEngine_RunBatchPairing_SkipsUnclaimable(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.user("a", models.CategoryOne, 100)
	h.user("b", models.CategoryTwo, 0)
	h.seed(t, "a", models.CategoryOne, time.Now().Add(-time.Second))
	h.seed(t, "b", models.CategoryTwo, time.Now())

	// b is being paired elsewhere: present in the store, already claimed from the cache.
	_, err := h.cache.Remove(ctx, models.CategoryTwo, "b")
	require.NoError(t, err)

	res := h.engine.RunBatchPairing(ctx)
	assert.Equal(t, BatchResult{Skipped: 1}, res)
	assert.Equal(t, []string{"a"}, h.queued(t, models.CategoryOne))
	assert.Zero(t, h.rooms.count())
}

func TestEngine_CancelMatch(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.user("a", models.CategoryOne, 100)

	require.True(t, h.engine.RequestMatch(ctx, "a", "1", nil).Success)

	assert.Equal(t, Result{Success: true}, h.engine.CancelMatch(ctx, "a"))
	assert.Empty(t, h.queued(t, models.CategoryOne))
	assert.False(t, h.engine.GetStatus(ctx, "a").Waiting)

	assert.Equal(t, failure(NotWaiting), h.engine.CancelMatch(ctx, "a"))
	assert.Eventually(t, func() bool { return len(h.events.byName(events.Cancelled)) == 1 }, time.Second, 10*time.Millisecond)

	// A new request after cancelling starts over.
	assert.Equal(t, StatusWaiting, h.engine.RequestMatch(ctx, "a", "1", nil).Status)
}

func TestEngine_RequestMatch_SkipsCancelledMemberLeftInQueue(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.user("a", models.CategoryOne, 10)
	h.user("b", models.CategoryTwo, 0)

	require.Equal(t, StatusWaiting, h.engine.RequestMatch(ctx, "a", "1", nil).Status)

	h.flaky.removeFailures.Store(1)
	assert.Equal(t, Result{Success: true}, h.engine.CancelMatch(ctx, "a"))
	assert.False(t, h.engine.GetStatus(ctx, "a").Waiting)
	assert.Equal(t, []string{"a"}, h.queued(t, models.CategoryOne))

	res := h.engine.RequestMatch(ctx, "b", "2", nil)
	assert.Equal(t, Result{Success: true, Status: StatusWaiting}, res)
	assert.Equal(t, int64(10), h.credits.balance("a"))
	assert.Empty(t, h.credits.charges)
	assert.Zero(t, h.rooms.count())
	assert.Empty(t, h.queued(t, models.CategoryOne))
	assert.Equal(t, []string{"b"}, h.queued(t, models.CategoryTwo))
}

func TestEngine_RequestMatch_PairsPastStaleMembers(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.user("gone", models.CategoryOne, 100)
	h.user("a", models.CategoryOne, 100)
	h.user("b", models.CategoryTwo, 0)

	// A member that never had a store entry sits ahead of a live one.
	require.NoError(t, h.cache.Enqueue(ctx, models.CategoryOne, "gone", 1))
	require.Equal(t, StatusWaiting, h.engine.RequestMatch(ctx, "a", "1", nil).Status)

	res := h.engine.RequestMatch(ctx, "b", "2", nil)
	require.True(t, res.Success, res.Error)
	assert.Equal(t, StatusPaired, res.Status)
	assert.Equal(t, "a", res.PartnerID)
	assert.Equal(t, int64(100), h.credits.balance("gone"))
	assert.Empty(t, h.queued(t, models.CategoryOne))
}

func TestEngine_RequestMatch_ConcurrentSameUser(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.user("a", models.CategoryOne, 100)

	const n = 10
	results := make([]Result, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = h.engine.RequestMatch(ctx, "a", "1", nil)
		}(i)
	}
	wg.Wait()

	waitingCount := 0
	for _, res := range results {
		if res.Success {
			assert.Equal(t, StatusWaiting, res.Status)
			waitingCount++
			continue
		}
		assert.Equal(t, AlreadyWaiting, res.Error)
	}
	assert.Equal(t, 1, waitingCount)
	assert.Equal(t, []string{"a"}, h.queued(t, models.CategoryOne))

	active, err := h.store.ListActive(ctx, models.CategoryOne)
	require.NoError(t, err)
	assert.Len(t, active, 1)
}

func TestEngine_GetStatus_Idle(t *testing.T) {
	h := newHarness(t)
	assert.Equal(t, StatusResult{}, h.engine.GetStatus(context.Background(), "nobody"))
}

func TestEngine_ConcurrentRequestsAndBatchNeverDoublePair(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	const n = 12
	var users []string
	for i := 0; i < n; i++ {
		one, two := fmt.Sprintf("one-%02d", i), fmt.Sprintf("two-%02d", i)
		h.user(one, models.CategoryOne, 1000)
		h.user(two, models.CategoryTwo, 0)
		users = append(users, one, two)
	}

	var wg sync.WaitGroup
	for _, id := range users {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			category := h.profiles.categories[id]
			res := h.engine.RequestMatch(ctx, id, category, nil)
			assert.True(t, res.Success, "%s: %s", id, res.Error)
		}(id)
	}
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			h.engine.RunBatchPairing(ctx)
		}()
	}
	wg.Wait()

	h.engine.RunBatchPairing(ctx)

	pairings, err := h.store.ListPairings(ctx)
	require.NoError(t, err)
	seen := map[string]int{}
	for _, p := range pairings {
		seen[p.UserA]++
		seen[p.UserB]++
		assert.NotEqual(t, p.CategoryA, p.CategoryB)
	}
	for id, count := range seen {
		assert.Equal(t, 1, count, "user %s paired %d times", id, count)
	}
	assert.Len(t, pairings, n)
	assert.Equal(t, n, h.rooms.count())

	var charged int64
	for i := 0; i < n; i++ {
		charged += 1000 - h.credits.balance(fmt.Sprintf("one-%02d", i))
	}
	assert.Equal(t, int64(n*10), charged)
}

func TestPolicy(t *testing.T) {
	p := Policy{ChargedCategory: models.CategoryOne, Cost: 10}
	assert.True(t, p.Charges(models.CategoryOne))
	assert.False(t, p.Charges(models.CategoryTwo))

	a := &candidate{UserID: "a", Category: models.CategoryOne}
	b := &candidate{UserID: "b", Category: models.CategoryTwo}
	assert.Same(t, a, p.costBearer(a, b))
	assert.Same(t, a, p.costBearer(b, a))

	free := Policy{ChargedCategory: models.CategoryOne}
	assert.Nil(t, free.costBearer(a, b))
}

func (h *harness) seed(t *testing.T, userID string, category models.Category, at time.Time) {
	t.Helper()
	entry, err := h.store.UpsertActiveAt(context.Background(), userID, category, at)
	require.NoError(t, err)
	require.NoError(t, h.cache.Enqueue(context.Background(), category, userID, entry.Score()))
}

func (h *harness) cacheScore(t *testing.T, category models.Category, userID string) int64 {
	t.Helper()
	members, err := h.cache.Members(context.Background(), category)
	require.NoError(t, err)
	for _, m := range members {
		if m.UserID == userID {
			return m.Score
		}
	}
	t.Fatalf("%s not queued", userID)
	return 0
}

var _ queue.Cache = (*queue.MemoryCache)(nil)
