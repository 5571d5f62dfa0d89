package port

import (
	"context"

	"sekonomy/internal/core/domain"
)

type CacheRepository interface {
	// SetIdempotency sets a key for idempotency check, returns false if already exists
	SetIdempotency(ctx context.Context, key string) (bool, error)

	// AddDamageScore accumulates damage onto the leaderboard sorted set
	AddDamageScore(ctx context.Context, accountID string, damage float64) error

	// TopDamage returns the highest-damage accounts, best first
	TopDamage(ctx context.Context, limit int) ([]domain.RankEntry, error)
}
