package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"sekonomy/internal/core/domain"
	"sekonomy/internal/port"
)

// purchaseAttempts bounds whole-operation retries on lock contention.
// Business failures are terminal and never retried.
const purchaseAttempts = 3

// ExchangeService runs the marketplace listing lifecycle. All economic
// effects happen inside single repository transactions; this layer adds
// input validation, idempotency, deadlock retries and logging.
type ExchangeService struct {
	repo    port.ExchangeRepository
	cache   port.CacheRepository
	feeRate float64
	logger  *zap.Logger
}

func NewExchangeService(repo port.ExchangeRepository, cache port.CacheRepository, feeRate float64, logger *zap.Logger) *ExchangeService {
	return &ExchangeService{repo: repo, cache: cache, feeRate: feeRate, logger: logger}
}

// CreateListing escrows quantity from the seller and publishes the listing.
func (s *ExchangeService) CreateListing(ctx context.Context, sellerID, itemID string, pricePerUnit float64, quantity int64) (int64, error) {
	if sellerID == "" || itemID == "" || pricePerUnit <= 0 || quantity <= 0 {
		return 0, domain.ErrValidation
	}

	var id int64
	err := s.withRetry(ctx, func() error {
		var err error
		id, err = s.repo.CreateListing(ctx, sellerID, itemID, pricePerUnit, quantity)
		return err
	})
	if err != nil {
		return 0, err
	}

	s.logger.Info("listing created",
		zap.Int64("listing", id),
		zap.String("seller", sellerID),
		zap.String("item", itemID),
		zap.Float64("price", pricePerUnit),
		zap.Int64("quantity", quantity),
	)
	return id, nil
}

// Purchase buys quantity units off a listing. requestID, when supplied,
// deduplicates client retries: a replayed request fails with
// ErrDuplicateRequest instead of double-applying.
func (s *ExchangeService) Purchase(ctx context.Context, requestID, buyerID string, listingID, quantity int64) (*domain.Trade, error) {
	if buyerID == "" || listingID <= 0 || quantity <= 0 {
		return nil, domain.ErrValidation
	}

	if requestID != "" {
		key := fmt.Sprintf("purchase:%s", requestID)
		ok, err := s.cache.SetIdempotency(ctx, key)
		if err != nil {
			return nil, fmt.Errorf("idempotency check failed: %w", err)
		}
		if !ok {
			return nil, domain.ErrDuplicateRequest
		}
	}

	tradeID := uuid.NewString()
	var trade *domain.Trade
	err := s.withRetry(ctx, func() error {
		var err error
		trade, err = s.repo.Purchase(ctx, buyerID, listingID, quantity, s.feeRate, tradeID)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("purchase completed",
		zap.String("trade", trade.ID),
		zap.Int64("listing", listingID),
		zap.String("buyer", buyerID),
		zap.String("seller", trade.SellerID),
		zap.Int64("quantity", quantity),
		zap.Float64("total", trade.PricePerUnit*float64(quantity)),
	)
	return trade, nil
}

// Cancel returns quantity units from escrow to the seller.
func (s *ExchangeService) Cancel(ctx context.Context, sellerID string, listingID, quantity int64) error {
	if sellerID == "" || listingID <= 0 || quantity <= 0 {
		return domain.ErrValidation
	}

	err := s.withRetry(ctx, func() error {
		return s.repo.Cancel(ctx, sellerID, listingID, quantity)
	})
	if err != nil {
		return err
	}

	s.logger.Info("listing cancelled",
		zap.Int64("listing", listingID),
		zap.String("seller", sellerID),
		zap.Int64("quantity", quantity),
	)
	return nil
}

// List returns listings matching the filter, with the limit clamped to a
// sane page size.
func (s *ExchangeService) List(ctx context.Context, filter domain.ListingFilter) ([]domain.Listing, error) {
	if filter.Limit <= 0 {
		filter.Limit = 50
	}
	if filter.Limit > 200 {
		filter.Limit = 200
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}
	return s.repo.ListListings(ctx, filter)
}

// withRetry reruns op on transient lock-contention failures. Every
// operation re-validates state under fresh locks, so a whole-operation
// retry cannot double-apply.
func (s *ExchangeService) withRetry(ctx context.Context, op func() error) error {
	var err error
	for attempt := 1; attempt <= purchaseAttempts; attempt++ {
		err = op()
		if !errors.Is(err, domain.ErrConcurrency) {
			return err
		}
		s.logger.Warn("lock contention, retrying", zap.Int("attempt", attempt), zap.Error(err))
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(attempt) * 20 * time.Millisecond):
		}
	}
	return err
}
