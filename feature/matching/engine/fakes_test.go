package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"matchmaker/core/database"
	"matchmaker/feature/matching/events"
	"matchmaker/feature/matching/models"
	"matchmaker/feature/matching/queue"
	"matchmaker/feature/matching/waiting"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeProfiles struct {
	categories map[string]string
}

func (f *fakeProfiles) Exists(_ context.Context, userID string) (bool, error) {
	_, ok := f.categories[userID]
	return ok, nil
}

func (f *fakeProfiles) GetCategory(_ context.Context, userID string) (string, error) {
	return f.categories[userID], nil
}

func (f *fakeProfiles) GetPublicProfile(_ context.Context, userID string) (map[string]any, error) {
	return map[string]any{"id": userID}, nil
}

type fakeCredits struct {
	mu         sync.Mutex
	balances   map[string]int64
	failCharge bool
	charges    []string
}

func (f *fakeCredits) GetBalance(_ context.Context, userID string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.balances[userID], nil
}

func (f *fakeCredits) Charge(_ context.Context, userID string, amount int64, reason string) (ChargeResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failCharge {
		return ChargeResult{}, errors.New("ledger unavailable")
	}
	if f.balances[userID] < amount {
		return ChargeResult{Success: false, NewBalance: f.balances[userID]}, nil
	}
	f.balances[userID] -= amount
	f.charges = append(f.charges, userID+"|"+reason)
	return ChargeResult{Success: true, NewBalance: f.balances[userID]}, nil
}

func (f *fakeCredits) balance(userID string) int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.balances[userID]
}

type fakeRoom struct {
	a, b string
}

type fakeRooms struct {
	mu         sync.Mutex
	seq        int
	rooms      map[string]fakeRoom
	deleted    []string
	failCreate bool
}

func newFakeRooms() *fakeRooms {
	return &fakeRooms{rooms: make(map[string]fakeRoom)}
}

func (f *fakeRooms) CreateRoom(_ context.Context, a, b string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failCreate {
		return "", errors.New("rooms down")
	}
	f.seq++
	id := fmt.Sprintf("R%d", f.seq)
	f.rooms[id] = fakeRoom{a: a, b: b}
	return id, nil
}

func (f *fakeRooms) DeleteRoom(_ context.Context, roomID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.rooms, roomID)
	f.deleted = append(f.deleted, roomID)
	return nil
}

func (f *fakeRooms) FindOpenRoomFor(_ context.Context, userID string) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for id, r := range f.rooms {
		if r.a == userID || r.b == userID {
			return id, true, nil
		}
	}
	return "", false, nil
}

func (f *fakeRooms) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.rooms)
}

type mockProfiles struct {
	mock.Mock
}

func (m *mockProfiles) Exists(ctx context.Context, userID string) (bool, error) {
	args := m.Called(ctx, userID)
	return args.Bool(0), args.Error(1)
}

func (m *mockProfiles) GetCategory(ctx context.Context, userID string) (string, error) {
	args := m.Called(ctx, userID)
	return args.String(0), args.Error(1)
}

func (m *mockProfiles) GetPublicProfile(ctx context.Context, userID string) (map[string]any, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(map[string]any), args.Error(1)
}

type recorder struct {
	mu     sync.Mutex
	events []events.Event
}

func (r *recorder) handle(_ context.Context, evt events.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, evt)
}

func (r *recorder) byName(name events.Name) []events.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []events.Event
	for _, e := range r.events {
		if e.Name == name {
			out = append(out, e)
		}
	}
	return out
}

// flakyCache fails the next removeFailures calls to Remove.
type flakyCache struct {
	*queue.MemoryCache
	removeFailures atomic.Int32
}

func (c *flakyCache) Remove(ctx context.Context, category models.Category, userID string) (bool, error) {
	if c.removeFailures.Add(-1) >= 0 {
		return false, errors.New("redis: connection reset")
	}
	c.removeFailures.Store(0)
	return c.MemoryCache.Remove(ctx, category, userID)
}

type harness struct {
	engine   *Engine
	store    *waiting.Store
	cache    *queue.MemoryCache
	flaky    *flakyCache
	profiles *fakeProfiles
	credits  *fakeCredits
	rooms    *fakeRooms
	events   *recorder
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	db, err := database.Connect(database.Config{Driver: database.DriverSQLite, Name: ":memory:"})
	require.NoError(t, err)
	store := waiting.NewStore(db)
	require.NoError(t, store.AutoMigrate())

	bus := events.NewMemoryBus(zap.NewNop())
	t.Cleanup(func() { _ = bus.Close() })
	rec := &recorder{}
	require.NoError(t, bus.Subscribe(context.Background(), rec.handle))

	cache := queue.NewMemoryCache()
	h := &harness{
		store:    store,
		cache:    cache,
		flaky:    &flakyCache{MemoryCache: cache},
		profiles: &fakeProfiles{categories: map[string]string{}},
		credits:  &fakeCredits{balances: map[string]int64{}},
		rooms:    newFakeRooms(),
		events:   rec,
	}
	h.engine = New(Deps{
		Store:    store,
		Cache:    h.flaky,
		Bus:      bus,
		Profiles: h.profiles,
		Credits:  h.credits,
		Rooms:    h.rooms,
		Policy:   Policy{ChargedCategory: models.CategoryOne, Cost: 10, RequireUpfrontCheck: true},
	})
	return h
}

func (h *harness) user(id string, category models.Category, balance int64) {
	h.profiles.categories[id] = category.String()
	h.credits.balances[id] = balance
}

func (h *harness) queued(t *testing.T, category models.Category) []string {
	t.Helper()
	members, err := h.cache.Members(context.Background(), category)
	require.NoError(t, err)
	out := make([]string, 0, len(members))
	for _, m := range members {
		out = append(out, m.UserID)
	}
	return out
}
