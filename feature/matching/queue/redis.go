package queue

import (
	"context"
	"fmt"

	"matchmaker/feature/matching/models"

	"github.com/redis/go-redis/v9"
)

// RedisCache keeps one sorted set per category.
type RedisCache struct {
	client redis.UniversalClient
	prefix string
}

// NewRedisCache creates a cache whose keys are namespaced by prefix.
func NewRedisCache(client redis.UniversalClient, prefix string) *RedisCache {
	return &RedisCache{client: client, prefix: prefix}
}

func (c *RedisCache) key(category models.Category) string {
	return fmt.Sprintf("%s:queue:%s", c.prefix, category)
}

func (c *RedisCache) Enqueue(ctx context.Context, category models.Category, userID string, score int64) error {
	if err := c.client.ZAddNX(ctx, c.key(category), redis.Z{Score: float64(score), Member: userID}).Err(); err != nil {
		return fmt.Errorf("enqueue %s in %s: %w", userID, category, err)
	}
	return nil
}

func (c *RedisCache) EnqueueMany(ctx context.Context, category models.Category, members []Member) error {
	if len(members) == 0 {
		return nil
	}
	zs := make([]redis.Z, 0, len(members))
	for _, m := range members {
		zs = append(zs, redis.Z{Score: float64(m.Score), Member: m.UserID})
	}
	if err := c.client.ZAddNX(ctx, c.key(category), zs...).Err(); err != nil {
		return fmt.Errorf("enqueue %d members in %s: %w", len(members), category, err)
	}
	return nil
}

// DequeueOldest uses ZPOPMIN, which is atomic on the server.
func (c *RedisCache) DequeueOldest(ctx context.Context, category models.Category) (Member, bool, error) {
	res, err := c.client.ZPopMin(ctx, c.key(category), 1).Result()
	if err != nil {
		return Member{}, false, fmt.Errorf("dequeue oldest in %s: %w", category, err)
	}
	if len(res) == 0 {
		return Member{}, false, nil
	}
	return toMember(res[0]), true, nil
}

// Remove uses ZREM; only one concurrent caller observes a removed count of 1.
func (c *RedisCache) Remove(ctx context.Context, category models.Category, userID string) (bool, error) {
	n, err := c.client.ZRem(ctx, c.key(category), userID).Result()
	if err != nil {
		return false, fmt.Errorf("remove %s from %s: %w", userID, category, err)
	}
	return n == 1, nil
}

func (c *RedisCache) Length(ctx context.Context, category models.Category) (int64, error) {
	n, err := c.client.ZCard(ctx, c.key(category)).Result()
	if err != nil {
		return 0, fmt.Errorf("length of %s: %w", category, err)
	}
	return n, nil
}

func (c *RedisCache) Members(ctx context.Context, category models.Category) ([]Member, error) {
	res, err := c.client.ZRangeWithScores(ctx, c.key(category), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("members of %s: %w", category, err)
	}
	members := make([]Member, 0, len(res))
	for _, z := range res {
		members = append(members, toMember(z))
	}
	return members, nil
}

func toMember(z redis.Z) Member {
	id, _ := z.Member.(string)
	return Member{UserID: id, Score: int64(z.Score)}
}
