package registry

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryRegistry is a single-process Registry.
type MemoryRegistry struct {
	mu    sync.Mutex
	ttl   time.Duration
	now   func() time.Time
	conns map[string]*Mapping
	users map[string]map[string]struct{}
	hooks []ExpireFunc
}

// NewMemoryRegistry creates a registry whose bindings live for ttl.
func NewMemoryRegistry(ttl time.Duration) *MemoryRegistry {
	return &MemoryRegistry{
		ttl:   ttl,
		now:   time.Now,
		conns: make(map[string]*Mapping),
		users: make(map[string]map[string]struct{}),
	}
}

// WithClock replaces the registry clock.
func (r *MemoryRegistry) WithClock(now func() time.Time) *MemoryRegistry {
	r.now = now
	return r
}

func (r *MemoryRegistry) Bind(_ context.Context, connID, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	m, ok := r.conns[connID]
	if ok && m.UserID != userID {
		r.detach(m)
		ok = false
	}
	if !ok {
		m = &Mapping{ConnectionID: connID, UserID: userID, EstablishedAt: now}
		r.conns[connID] = m
		if r.users[userID] == nil {
			r.users[userID] = make(map[string]struct{})
		}
		r.users[userID][connID] = struct{}{}
	}
	m.ExpiresAt = now.Add(r.ttl)
	return nil
}

func (r *MemoryRegistry) Unbind(_ context.Context, connID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	m, ok := r.conns[connID]
	if !ok {
		return ErrUnknownConnection
	}
	r.detach(m)
	return nil
}

// detach removes m; callers hold r.mu.
func (r *MemoryRegistry) detach(m *Mapping) {
	delete(r.conns, m.ConnectionID)
	if set := r.users[m.UserID]; set != nil {
		delete(set, m.ConnectionID)
		if len(set) == 0 {
			delete(r.users, m.UserID)
		}
	}
}

func (r *MemoryRegistry) SocketsFor(_ context.Context, userID string) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	var out []string
	for connID := range r.users[userID] {
		if r.conns[connID].ExpiresAt.After(now) {
			out = append(out, connID)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (r *MemoryRegistry) AnySocketFor(ctx context.Context, userID string) (string, bool, error) {
	return anySocket(r.SocketsFor(ctx, userID))
}

func (r *MemoryRegistry) Sweep(_ context.Context) ([]string, error) {
	r.mu.Lock()
	now := r.now()
	var expired []Mapping
	for _, m := range r.conns {
		if !m.ExpiresAt.After(now) {
			expired = append(expired, *m)
			r.detach(m)
		}
	}
	hooks := append([]ExpireFunc(nil), r.hooks...)
	r.mu.Unlock()

	ids := make([]string, 0, len(expired))
	for _, m := range expired {
		ids = append(ids, m.ConnectionID)
		for _, fn := range hooks {
			fn(m.ConnectionID, m.UserID)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func (r *MemoryRegistry) OnExpire(fn ExpireFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.hooks = append(r.hooks, fn)
}

// Len returns the number of bound connections, expired or not.
func (r *MemoryRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.conns)
}
