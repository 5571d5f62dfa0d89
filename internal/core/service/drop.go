package service

import (
	"context"
	"fmt"
	"math/rand/v2"

	"go.uber.org/zap"

	"sekonomy/internal/core/domain"
	"sekonomy/internal/port"
)

// DamageEvent is one gameplay report: an account dealt some damage.
type DamageEvent struct {
	AccountID string  `json:"account_id"`
	Damage    float64 `json:"damage"`
}

// DropResult is the item minted by a successful drop roll.
type DropResult struct {
	ItemID string `json:"item_id"`
	Rarity int    `json:"rarity"`
}

// DropTier scales and restricts drops for one server context.
type DropTier struct {
	ChanceMultiplier float64
	// MaxRarity restricts candidates to items at or below this rarity;
	// negative means no cutoff.
	MaxRarity int
}

// DropParams are the tunables of the two-stage drop roll.
type DropParams struct {
	// DamageDivisor scales damage into the gate probability.
	DamageDivisor float64
	// MaxChance caps the gate probability.
	MaxChance float64
	// CoinRate converts damage into the coin credit.
	CoinRate float64
	// Tiers are the recognized server tiers; unknown tiers fall back to
	// multiplier 1 with no rarity cutoff.
	Tiers map[string]DropTier
}

// DropService turns damage events into coin credits, stat accumulation and
// probabilistic item drops. The roll is Bernoulli-then-categorical: first a
// gate draw against min(damage/divisor, maxChance), then one weighted
// selection from the sampler.
type DropService struct {
	ledger  port.LedgerRepository
	cache   port.CacheRepository
	sampler *Sampler
	params  DropParams
	logger  *zap.Logger

	uniform func() float64
}

func NewDropService(ledger port.LedgerRepository, cache port.CacheRepository, sampler *Sampler, params DropParams, logger *zap.Logger) *DropService {
	return &DropService{
		ledger:  ledger,
		cache:   cache,
		sampler: sampler,
		params:  params,
		logger:  logger,
		uniform: rand.Float64,
	}
}

// RecordDamage applies one damage event: accumulate the stat, credit coins,
// roll for a drop and credit it, all in one ledger transaction. The
// returned result is nil when the gate roll produced no item.
func (s *DropService) RecordDamage(ctx context.Context, accountID string, damage float64, tier string) (*DropResult, error) {
	if accountID == "" || damage < 0 {
		return nil, domain.ErrValidation
	}

	drop, err := s.roll(damage, tier)
	if err != nil {
		return nil, err
	}

	coins := damage * s.params.CoinRate
	var deltas map[string]float64
	if drop != nil {
		deltas = map[string]float64{drop.ItemID: 1}
	}
	if err := s.ledger.RecordDamage(ctx, accountID, damage, coins, deltas); err != nil {
		return nil, err
	}

	// Leaderboard updates are best-effort; losing one never fails the event.
	if err := s.cache.AddDamageScore(ctx, accountID, damage); err != nil {
		s.logger.Warn("leaderboard update failed", zap.String("account", accountID), zap.Error(err))
	}

	s.logger.Info("damage recorded",
		zap.String("account", accountID),
		zap.Float64("damage", damage),
		zap.Float64("coins", coins),
		zap.Any("drop", drop),
	)
	return drop, nil
}

// RecordBatch processes a batch of damage events, skipping malformed
// entries individually instead of failing the whole batch. It returns the
// drops produced, indexed like the input (nil for no drop or a skipped
// event), and the number of events applied. requestID, when supplied,
// deduplicates replayed batches.
func (s *DropService) RecordBatch(ctx context.Context, requestID string, events []DamageEvent, tier string) ([]*DropResult, int, error) {
	if len(events) == 0 {
		return nil, 0, domain.ErrValidation
	}

	if requestID != "" {
		ok, err := s.cache.SetIdempotency(ctx, "damage:"+requestID)
		if err != nil {
			return nil, 0, fmt.Errorf("idempotency check failed: %w", err)
		}
		if !ok {
			return nil, 0, domain.ErrDuplicateRequest
		}
	}

	drops := make([]*DropResult, len(events))
	applied := 0
	for i, ev := range events {
		drop, err := s.RecordDamage(ctx, ev.AccountID, ev.Damage, tier)
		if err != nil {
			if err == domain.ErrValidation {
				s.logger.Warn("skipping malformed damage event",
					zap.String("account", ev.AccountID),
					zap.Float64("damage", ev.Damage),
				)
				continue
			}
			return drops, applied, err
		}
		drops[i] = drop
		applied++
	}
	return drops, applied, nil
}

// roll runs the two-stage draw. A nil result with nil error means the gate
// did not fire, which is distinct from an empty sampler table (an error).
func (s *DropService) roll(damage float64, tier string) (*DropResult, error) {
	mult, maxRarity := 1.0, -1
	if t, ok := s.params.Tiers[tier]; ok {
		mult, maxRarity = t.ChanceMultiplier, t.MaxRarity
	}

	chance := damage / s.params.DamageDivisor * mult
	if chance > s.params.MaxChance {
		chance = s.params.MaxChance
	}
	if s.uniform() > chance {
		return nil, nil
	}

	item, rarity, err := s.sampler.PullMaxRarity(maxRarity)
	if err != nil {
		return nil, err
	}
	return &DropResult{ItemID: item, Rarity: rarity}, nil
}
