package storage

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"sekonomy/internal/core/domain"
)

const (
	idempotencyKeyPrefix = "idem:"
	idempotencyKeyTTL    = 24 * time.Hour
	damageRankKey        = "rank:damage"
)

type RedisAdapter struct {
	client *redis.Client
}

func NewRedisAdapter(client *redis.Client) *RedisAdapter {
	return &RedisAdapter{client: client}
}

func (r *RedisAdapter) SetIdempotency(ctx context.Context, key string) (bool, error) {
	ok, err := r.client.SetNX(ctx, idempotencyKeyPrefix+key, 1, idempotencyKeyTTL).Result()
	if err != nil {
		return false, err
	}
	return ok, nil
}

func (r *RedisAdapter) AddDamageScore(ctx context.Context, accountID string, damage float64) error {
	return r.client.ZIncrBy(ctx, damageRankKey, damage, accountID).Err()
}

func (r *RedisAdapter) TopDamage(ctx context.Context, limit int) ([]domain.RankEntry, error) {
	scores, err := r.client.ZRevRangeWithScores(ctx, damageRankKey, 0, int64(limit)-1).Result()
	if err != nil {
		return nil, err
	}

	entries := make([]domain.RankEntry, 0, len(scores))
	for i, z := range scores {
		id, _ := z.Member.(string)
		entries = append(entries, domain.RankEntry{
			Rank:        i + 1,
			AccountID:   id,
			TotalDamage: z.Score,
		})
	}
	return entries, nil
}
