package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"sekonomy/internal/core/domain"
)

// Marketplace transactions lock rows in a fixed, data-driven order:
// the listing first, then the buyer account, then the seller account.
// Every concurrent purchase walks the same order, so no two transactions
// can hold each other's locks in a cycle.

func (m *MySQLAdapter) CreateListing(ctx context.Context, sellerID, itemID string, pricePerUnit float64, quantity int64) (int64, error) {
	var id int64
	err := m.withTx(ctx, func(tx *sql.Tx) error {
		// Escrow: the listed quantity leaves the seller's usable inventory
		// in the same transaction that publishes the listing.
		if err := adjustInventoryTx(ctx, tx, sellerID, map[string]float64{itemID: -float64(quantity)}); err != nil {
			return err
		}

		result, err := tx.ExecContext(ctx, `
			INSERT INTO market_listings (seller_id, item_id, price_per_unit, quantity, created_at)
			VALUES (?, ?, ?, ?, NOW())`,
			sellerID, itemID, pricePerUnit, quantity)
		if err != nil {
			return fmt.Errorf("insert listing: %w", err)
		}
		id, err = result.LastInsertId()
		if err != nil {
			return fmt.Errorf("listing id: %w", err)
		}
		return nil
	})
	return id, err
}

func (m *MySQLAdapter) Purchase(ctx context.Context, buyerID string, listingID int64, quantity int64, feeRate float64, tradeID string) (*domain.Trade, error) {
	var trade *domain.Trade
	err := m.withTx(ctx, func(tx *sql.Tx) error {
		listing, err := lockListingTx(ctx, tx, listingID)
		if err != nil {
			return err
		}
		if listing.SellerID == buyerID {
			return domain.ErrInvalidOperation
		}
		if quantity > listing.Quantity {
			return domain.ErrInsufficientQuantity
		}

		total := listing.PricePerUnit * float64(quantity)

		var balance float64
		err = tx.QueryRowContext(ctx,
			`SELECT sek_coin FROM accounts WHERE steam_id = ? FOR UPDATE`,
			buyerID).Scan(&balance)
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("lock buyer account: %w", err)
		}
		if balance < total {
			return domain.ErrInsufficientFunds
		}

		if _, err := tx.ExecContext(ctx,
			`UPDATE accounts SET sek_coin = sek_coin - ? WHERE steam_id = ?`,
			total, buyerID); err != nil {
			return fmt.Errorf("debit buyer: %w", err)
		}

		// The seller receives the total minus the marketplace fee; the fee
		// is retained by the system, not credited anywhere.
		sellerCut := total * (1 - feeRate)
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO accounts (steam_id, sek_coin) VALUES (?, ?)
			ON DUPLICATE KEY UPDATE sek_coin = sek_coin + VALUES(sek_coin)`,
			listing.SellerID, sellerCut); err != nil {
			return fmt.Errorf("credit seller: %w", err)
		}

		if err := adjustInventoryTx(ctx, tx, buyerID, map[string]float64{listing.ItemID: float64(quantity)}); err != nil {
			return err
		}

		if err := shrinkListingTx(ctx, tx, listing, quantity); err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx, `
			INSERT INTO trade_log (id, seller_id, buyer_id, item_id, price_per_unit, quantity, created_at)
			VALUES (?, ?, ?, ?, ?, ?, NOW())`,
			tradeID, listing.SellerID, buyerID, listing.ItemID, listing.PricePerUnit, quantity); err != nil {
			return fmt.Errorf("append trade log: %w", err)
		}

		trade = &domain.Trade{
			ID:           tradeID,
			SellerID:     listing.SellerID,
			BuyerID:      buyerID,
			ItemID:       listing.ItemID,
			PricePerUnit: listing.PricePerUnit,
			Quantity:     quantity,
			CreatedAt:    time.Now().UTC(),
		}
		return nil
	})
	return trade, err
}

func (m *MySQLAdapter) Cancel(ctx context.Context, sellerID string, listingID int64, quantity int64) error {
	return m.withTx(ctx, func(tx *sql.Tx) error {
		listing, err := lockListingTx(ctx, tx, listingID)
		if err != nil {
			return err
		}
		if listing.SellerID != sellerID {
			return domain.ErrForbidden
		}
		if quantity > listing.Quantity {
			return domain.ErrInvalidQuantity
		}

		if err := adjustInventoryTx(ctx, tx, sellerID, map[string]float64{listing.ItemID: float64(quantity)}); err != nil {
			return err
		}
		return shrinkListingTx(ctx, tx, listing, quantity)
	})
}

func lockListingTx(ctx context.Context, tx *sql.Tx, listingID int64) (*domain.Listing, error) {
	var l domain.Listing
	err := tx.QueryRowContext(ctx, `
		SELECT id, seller_id, item_id, price_per_unit, quantity, created_at
		FROM market_listings WHERE id = ? FOR UPDATE`, listingID,
	).Scan(&l.ID, &l.SellerID, &l.ItemID, &l.PricePerUnit, &l.Quantity, &l.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("lock listing: %w", err)
	}
	return &l, nil
}

// shrinkListingTx decrements the escrowed quantity, deleting the row when
// it reaches exactly zero.
func shrinkListingTx(ctx context.Context, tx *sql.Tx, listing *domain.Listing, quantity int64) error {
	if listing.Quantity == quantity {
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM market_listings WHERE id = ?`, listing.ID); err != nil {
			return fmt.Errorf("delete listing: %w", err)
		}
		return nil
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE market_listings SET quantity = quantity - ? WHERE id = ?`,
		quantity, listing.ID); err != nil {
		return fmt.Errorf("shrink listing: %w", err)
	}
	return nil
}

func (m *MySQLAdapter) GetListing(ctx context.Context, listingID int64) (*domain.Listing, error) {
	var l domain.Listing
	err := m.db.QueryRowContext(ctx, `
		SELECT id, seller_id, item_id, price_per_unit, quantity, created_at
		FROM market_listings WHERE id = ?`, listingID,
	).Scan(&l.ID, &l.SellerID, &l.ItemID, &l.PricePerUnit, &l.Quantity, &l.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query listing: %w", translateErr(err))
	}
	return &l, nil
}

func (m *MySQLAdapter) ListListings(ctx context.Context, filter domain.ListingFilter) ([]domain.Listing, error) {
	query := `
		SELECT id, seller_id, item_id, price_per_unit, quantity, created_at
		FROM market_listings WHERE 1=1`
	args := []any{}

	if filter.SellerID != "" {
		query += ` AND seller_id = ?`
		args = append(args, filter.SellerID)
	}
	if filter.ExcludeSeller != "" {
		query += ` AND seller_id != ?`
		args = append(args, filter.ExcludeSeller)
	}
	if filter.ItemID != "" {
		query += ` AND item_id = ?`
		args = append(args, filter.ItemID)
	}
	query += ` ORDER BY id LIMIT ? OFFSET ?`
	args = append(args, filter.Limit, filter.Offset)

	rows, err := m.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query listings: %w", translateErr(err))
	}
	defer rows.Close()

	listings := []domain.Listing{}
	for rows.Next() {
		var l domain.Listing
		if err := rows.Scan(&l.ID, &l.SellerID, &l.ItemID, &l.PricePerUnit, &l.Quantity, &l.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan listing: %w", err)
		}
		listings = append(listings, l)
	}
	return listings, rows.Err()
}
