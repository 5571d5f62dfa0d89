package service

import (
	"context"

	"go.uber.org/zap"

	"sekonomy/internal/core/domain"
	"sekonomy/internal/port"
)

// AccountService covers the non-trading account surface: inventory views,
// single-item deposits/withdrawals used by the in-game bridge, profile data
// and the damage leaderboard.
type AccountService struct {
	ledger port.LedgerRepository
	cache  port.CacheRepository
	logger *zap.Logger
}

func NewAccountService(ledger port.LedgerRepository, cache port.CacheRepository, logger *zap.Logger) *AccountService {
	return &AccountService{ledger: ledger, cache: cache, logger: logger}
}

// GetInventory returns the account's items with catalog metadata, omitting
// zero quantities. A brand-new account gets its empty rows created here;
// both creations are idempotent.
func (s *AccountService) GetInventory(ctx context.Context, accountID string) ([]domain.InventoryItem, error) {
	if accountID == "" {
		return nil, domain.ErrValidation
	}
	if err := s.ledger.EnsureAccount(ctx, accountID); err != nil {
		return nil, err
	}
	if err := s.ledger.EnsureInventoryRow(ctx, accountID); err != nil {
		return nil, err
	}
	return s.ledger.Inventory(ctx, accountID)
}

// Deposit adds quantity units of one item (the in-game "upload").
func (s *AccountService) Deposit(ctx context.Context, accountID, itemID string, quantity float64) error {
	return s.adjust(ctx, accountID, itemID, quantity, +1)
}

// Withdraw removes quantity units of one item (the in-game "download").
// Fails with the usual insufficient-inventory error when the account does
// not hold enough.
func (s *AccountService) Withdraw(ctx context.Context, accountID, itemID string, quantity float64) error {
	return s.adjust(ctx, accountID, itemID, quantity, -1)
}

func (s *AccountService) adjust(ctx context.Context, accountID, itemID string, quantity, sign float64) error {
	if accountID == "" || itemID == "" || quantity <= 0 {
		return domain.ErrValidation
	}
	if err := s.ledger.AdjustInventory(ctx, accountID, map[string]float64{itemID: sign * quantity}); err != nil {
		return err
	}
	s.logger.Info("inventory adjusted",
		zap.String("account", accountID),
		zap.String("item", itemID),
		zap.Float64("delta", sign*quantity),
	)
	return nil
}

// Profile returns the account record.
func (s *AccountService) Profile(ctx context.Context, accountID string) (*domain.Account, error) {
	if accountID == "" {
		return nil, domain.ErrValidation
	}
	return s.ledger.GetAccount(ctx, accountID)
}

// UpdateNickname sets the display nickname, lazily creating the account and
// its inventory row on first touch.
func (s *AccountService) UpdateNickname(ctx context.Context, accountID, nickname string) error {
	if accountID == "" || nickname == "" {
		return domain.ErrValidation
	}
	if err := s.ledger.SetNickname(ctx, accountID, nickname); err != nil {
		return err
	}
	s.logger.Info("nickname updated", zap.String("account", accountID))
	return nil
}

// Ranking returns the total-damage leaderboard, best first.
func (s *AccountService) Ranking(ctx context.Context, limit int) ([]domain.RankEntry, error) {
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	return s.cache.TopDamage(ctx, limit)
}
