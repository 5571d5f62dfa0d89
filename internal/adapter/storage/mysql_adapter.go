package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/go-sql-driver/mysql"

	"sekonomy/internal/core/domain"
)

// MySQL server error numbers treated as transient contention.
const (
	mysqlErrLockWaitTimeout = 1205
	mysqlErrDeadlock        = 1213
)

// MySQLAdapter implements the ledger, exchange and catalog repositories
// over one database handle. All multi-step mutations run inside a single
// transaction with rollback on any early return; reads that feed a write
// decision take FOR UPDATE row locks held through the write.
type MySQLAdapter struct {
	db *sql.DB
}

func NewMySQLAdapter(db *sql.DB) *MySQLAdapter {
	return &MySQLAdapter{db: db}
}

// withTx runs fn inside one transaction. Deadlock and lock-wait-timeout
// aborts surface as domain.ErrConcurrency so callers can retry the whole
// operation.
func (m *MySQLAdapter) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return translateErr(err)
	}
	if err := tx.Commit(); err != nil {
		return translateErr(fmt.Errorf("commit: %w", err))
	}
	return nil
}

func translateErr(err error) error {
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		if myErr.Number == mysqlErrDeadlock || myErr.Number == mysqlErrLockWaitTimeout {
			return fmt.Errorf("%w: %v", domain.ErrConcurrency, err)
		}
	}
	return err
}

func (m *MySQLAdapter) EnsureAccount(ctx context.Context, accountID string) error {
	_, err := m.db.ExecContext(ctx,
		`INSERT IGNORE INTO accounts (steam_id) VALUES (?)`, accountID)
	if err != nil {
		return fmt.Errorf("ensure account: %w", translateErr(err))
	}
	return nil
}

func (m *MySQLAdapter) EnsureInventoryRow(ctx context.Context, accountID string) error {
	_, err := m.db.ExecContext(ctx,
		`INSERT IGNORE INTO inventories (steam_id) VALUES (?)`, accountID)
	if err != nil {
		return fmt.Errorf("ensure inventory row: %w", translateErr(err))
	}
	return nil
}

func (m *MySQLAdapter) GetAccount(ctx context.Context, accountID string) (*domain.Account, error) {
	var acc domain.Account
	var nickname sql.NullString
	err := m.db.QueryRowContext(ctx, `
		SELECT steam_id, nickname, sek_coin, total_damage, created_at, updated_at
		FROM accounts WHERE steam_id = ?`, accountID,
	).Scan(&acc.ID, &nickname, &acc.Balance, &acc.TotalDamage, &acc.CreatedAt, &acc.UpdatedAt)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query account: %w", translateErr(err))
	}
	acc.Nickname = nickname.String
	return &acc, nil
}

func (m *MySQLAdapter) SetNickname(ctx context.Context, accountID, nickname string) error {
	return m.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO accounts (steam_id, nickname) VALUES (?, ?)
			ON DUPLICATE KEY UPDATE nickname = VALUES(nickname)`,
			accountID, nickname)
		if err != nil {
			return fmt.Errorf("upsert nickname: %w", err)
		}
		_, err = tx.ExecContext(ctx,
			`INSERT IGNORE INTO inventories (steam_id) VALUES (?)`, accountID)
		if err != nil {
			return fmt.Errorf("ensure inventory row: %w", err)
		}
		return nil
	})
}

func (m *MySQLAdapter) DebitBalance(ctx context.Context, accountID string, amount float64) error {
	if amount < 0 {
		return domain.ErrValidation
	}
	result, err := m.db.ExecContext(ctx, `
		UPDATE accounts
		SET sek_coin = sek_coin - ?
		WHERE steam_id = ? AND sek_coin >= ?`,
		amount, accountID, amount)
	if err != nil {
		return fmt.Errorf("debit balance: %w", translateErr(err))
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		// Distinguish a missing account from an unaffordable debit.
		var one int
		err := m.db.QueryRowContext(ctx,
			`SELECT 1 FROM accounts WHERE steam_id = ?`, accountID).Scan(&one)
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("check account: %w", translateErr(err))
		}
		return domain.ErrInsufficientFunds
	}
	return nil
}

func (m *MySQLAdapter) CreditBalance(ctx context.Context, accountID string, amount float64) error {
	if amount < 0 {
		return domain.ErrValidation
	}
	_, err := m.db.ExecContext(ctx, `
		INSERT INTO accounts (steam_id, sek_coin) VALUES (?, ?)
		ON DUPLICATE KEY UPDATE sek_coin = sek_coin + VALUES(sek_coin)`,
		accountID, amount)
	if err != nil {
		return fmt.Errorf("credit balance: %w", translateErr(err))
	}
	return nil
}

func (m *MySQLAdapter) AdjustInventory(ctx context.Context, accountID string, deltas map[string]float64) error {
	if len(deltas) == 0 {
		return domain.ErrValidation
	}
	return m.withTx(ctx, func(tx *sql.Tx) error {
		return adjustInventoryTx(ctx, tx, accountID, deltas)
	})
}

// adjustInventoryTx applies one batch of signed deltas under row locks. It
// is shared by every flow that touches inventory (direct adjustments,
// drops, gacha credits, crafting, marketplace escrow) so the
// no-negative-quantity invariant has exactly one enforcement point.
func adjustInventoryTx(ctx context.Context, tx *sql.Tx, accountID string, deltas map[string]float64) error {
	items := make([]string, 0, len(deltas))
	for id := range deltas {
		items = append(items, id)
	}
	// Deterministic order keeps lock acquisition consistent across
	// concurrent batches on the same account.
	sort.Strings(items)

	if err := checkCatalogTx(ctx, tx, items); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT IGNORE INTO inventories (steam_id) VALUES (?)`, accountID); err != nil {
		return fmt.Errorf("ensure inventory row: %w", err)
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(items)), ",")
	args := make([]any, 0, len(items)+1)
	args = append(args, accountID)
	for _, id := range items {
		args = append(args, id)
	}

	rows, err := tx.QueryContext(ctx, `
		SELECT item_id, quantity FROM inventory_items
		WHERE steam_id = ? AND item_id IN (`+placeholders+`)
		FOR UPDATE`, args...)
	if err != nil {
		return fmt.Errorf("lock inventory rows: %w", err)
	}
	current := make(map[string]float64, len(items))
	for rows.Next() {
		var id string
		var qty float64
		if err := rows.Scan(&id, &qty); err != nil {
			rows.Close()
			return fmt.Errorf("scan inventory row: %w", err)
		}
		current[id] = qty
	}
	if err := rows.Close(); err != nil {
		return fmt.Errorf("read inventory rows: %w", err)
	}

	next := make(map[string]float64, len(items))
	for _, id := range items {
		have := current[id]
		if have < 0 {
			return fmt.Errorf("%w: stored quantity of %s is negative", domain.ErrInvariant, id)
		}
		after := have + deltas[id]
		if after < 0 {
			return &domain.InsufficientInventoryError{Item: id}
		}
		next[id] = after
	}

	for _, id := range items {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO inventory_items (steam_id, item_id, quantity)
			VALUES (?, ?, ?)
			ON DUPLICATE KEY UPDATE quantity = VALUES(quantity)`,
			accountID, id, next[id]); err != nil {
			return fmt.Errorf("write inventory item %s: %w", id, err)
		}
	}
	return nil
}

// checkCatalogTx rejects item ids the catalog does not know. Item ids are
// always bound as parameters, never spliced into SQL.
func checkCatalogTx(ctx context.Context, tx *sql.Tx, items []string) error {
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(items)), ",")
	args := make([]any, len(items))
	for i, id := range items {
		args[i] = id
	}
	rows, err := tx.QueryContext(ctx,
		`SELECT item_id FROM items_info WHERE item_id IN (`+placeholders+`)`, args...)
	if err != nil {
		return fmt.Errorf("check catalog: %w", err)
	}
	defer rows.Close()

	known := make(map[string]bool, len(items))
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return fmt.Errorf("scan catalog row: %w", err)
		}
		known[id] = true
	}
	for _, id := range items {
		if !known[id] {
			return fmt.Errorf("unknown item %s: %w", id, domain.ErrNotFound)
		}
	}
	return rows.Err()
}

func (m *MySQLAdapter) Inventory(ctx context.Context, accountID string) ([]domain.InventoryItem, error) {
	rows, err := m.db.QueryContext(ctx, `
		SELECT ii.item_id, inf.display_name, inf.category, inf.rarity, ii.quantity
		FROM inventory_items ii
		JOIN items_info inf ON inf.item_id = ii.item_id
		WHERE ii.steam_id = ? AND ii.quantity > 0
		ORDER BY ii.item_id`, accountID)
	if err != nil {
		return nil, fmt.Errorf("query inventory: %w", translateErr(err))
	}
	defer rows.Close()

	items := []domain.InventoryItem{}
	for rows.Next() {
		var it domain.InventoryItem
		if err := rows.Scan(&it.ItemID, &it.DisplayName, &it.Category, &it.Rarity, &it.Quantity); err != nil {
			return nil, fmt.Errorf("scan inventory item: %w", err)
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

func (m *MySQLAdapter) RecordDamage(ctx context.Context, accountID string, damage, coins float64, drop map[string]float64) error {
	return m.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO accounts (steam_id, total_damage, sek_coin)
			VALUES (?, ?, ?)
			ON DUPLICATE KEY UPDATE
				total_damage = total_damage + VALUES(total_damage),
				sek_coin = sek_coin + VALUES(sek_coin)`,
			accountID, damage, coins)
		if err != nil {
			return fmt.Errorf("record damage: %w", err)
		}
		if len(drop) > 0 {
			return adjustInventoryTx(ctx, tx, accountID, drop)
		}
		return nil
	})
}

func (m *MySQLAdapter) GachaPull(ctx context.Context, accountID string, cost float64, items []string) error {
	return m.withTx(ctx, func(tx *sql.Tx) error {
		var balance float64
		err := tx.QueryRowContext(ctx,
			`SELECT sek_coin FROM accounts WHERE steam_id = ? FOR UPDATE`,
			accountID).Scan(&balance)
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("lock account: %w", err)
		}
		if balance < cost {
			return domain.ErrInsufficientFunds
		}

		if _, err := tx.ExecContext(ctx,
			`UPDATE accounts SET sek_coin = sek_coin - ? WHERE steam_id = ?`,
			cost, accountID); err != nil {
			return fmt.Errorf("debit gacha cost: %w", err)
		}

		deltas := make(map[string]float64, len(items))
		for _, id := range items {
			deltas[id] += 1
		}
		return adjustInventoryTx(ctx, tx, accountID, deltas)
	})
}
