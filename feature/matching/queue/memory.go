package queue

import (
	"context"
	"sync"

	"matchmaker/feature/matching/models"

	"github.com/tidwall/btree"
)

// MemoryCache is a single-process Cache ordered by (score, user id).
type MemoryCache struct {
	mu     sync.Mutex
	queues map[models.Category]*memoryQueue
}

type memoryQueue struct {
	tree   *btree.BTreeG[Member]
	scores map[string]int64
}

func lessMember(a, b Member) bool {
	if a.Score != b.Score {
		return a.Score < b.Score
	}
	return a.UserID < b.UserID
}

// NewMemoryCache creates an empty cache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{queues: make(map[models.Category]*memoryQueue)}
}

// queue returns the queue of category; callers hold c.mu.
func (c *MemoryCache) queue(category models.Category) *memoryQueue {
	q, ok := c.queues[category]
	if !ok {
		q = &memoryQueue{
			tree:   btree.NewBTreeG[Member](lessMember),
			scores: make(map[string]int64),
		}
		c.queues[category] = q
	}
	return q
}

func (q *memoryQueue) add(m Member) {
	if _, exists := q.scores[m.UserID]; exists {
		return
	}
	q.scores[m.UserID] = m.Score
	q.tree.Set(m)
}

func (c *MemoryCache) Enqueue(ctx context.Context, category models.Category, userID string, score int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.queue(category).add(Member{UserID: userID, Score: score})
	return nil
}

func (c *MemoryCache) EnqueueMany(ctx context.Context, category models.Category, members []Member) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	q := c.queue(category)
	for _, m := range members {
		q.add(m)
	}
	return nil
}

func (c *MemoryCache) DequeueOldest(ctx context.Context, category models.Category) (Member, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	q := c.queue(category)
	m, ok := q.tree.PopMin()
	if !ok {
		return Member{}, false, nil
	}
	delete(q.scores, m.UserID)
	return m, true, nil
}

func (c *MemoryCache) Remove(ctx context.Context, category models.Category, userID string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	q := c.queue(category)
	score, ok := q.scores[userID]
	if !ok {
		return false, nil
	}
	delete(q.scores, userID)
	q.tree.Delete(Member{UserID: userID, Score: score})
	return true, nil
}

func (c *MemoryCache) Length(ctx context.Context, category models.Category) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return int64(c.queue(category).tree.Len()), nil
}

func (c *MemoryCache) Members(ctx context.Context, category models.Category) ([]Member, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	q := c.queue(category)
	members := make([]Member, 0, q.tree.Len())
	q.tree.Scan(func(m Member) bool {
		members = append(members, m)
		return true
	})
	return members, nil
}
