package service

import (
	"context"

	"go.uber.org/zap"

	"sekonomy/internal/core/domain"
	"sekonomy/internal/port"
)

// GachaService sells sampler pulls for a flat coin cost. The debit and the
// inventory credits commit as one transaction: an unaffordable pull draws
// nothing, a failed credit refunds the debit via rollback.
type GachaService struct {
	ledger  port.LedgerRepository
	sampler *Sampler
	cost    float64
	logger  *zap.Logger
}

func NewGachaService(ledger port.LedgerRepository, sampler *Sampler, cost float64, logger *zap.Logger) *GachaService {
	return &GachaService{ledger: ledger, sampler: sampler, cost: cost, logger: logger}
}

// Pull performs one paid draw.
func (s *GachaService) Pull(ctx context.Context, accountID string) (*DropResult, error) {
	results, err := s.PullMany(ctx, accountID, 1)
	if err != nil {
		return nil, err
	}
	return results[0], nil
}

// PullMany debits cost*count once, then performs count independent draws,
// each credited individually. A failed debit performs zero draws.
func (s *GachaService) PullMany(ctx context.Context, accountID string, count int) ([]*DropResult, error) {
	if accountID == "" || count <= 0 {
		return nil, domain.ErrValidation
	}

	// Draws are pure in-memory selections; they only become visible once
	// the debit+credit transaction commits, so an insufficient balance
	// still means zero observable draws.
	results := make([]*DropResult, count)
	items := make([]string, count)
	for i := range results {
		item, rarity, err := s.sampler.Pull()
		if err != nil {
			return nil, err
		}
		results[i] = &DropResult{ItemID: item, Rarity: rarity}
		items[i] = item
	}

	if err := s.ledger.GachaPull(ctx, accountID, s.cost*float64(count), items); err != nil {
		return nil, err
	}

	s.logger.Info("gacha pull",
		zap.String("account", accountID),
		zap.Int("count", count),
		zap.Float64("cost", s.cost*float64(count)),
	)
	return results, nil
}
