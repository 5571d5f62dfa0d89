package port

import (
	"context"

	"sekonomy/internal/core/domain"
)

// LedgerRepository is the only surface that mutates account balances and
// inventories. Every method is atomic with respect to concurrent calls on
// the same account: implementations take row locks (or an equivalent
// serialization boundary) across the read-validate-write sequence, and roll
// back in full on any failure.
type LedgerRepository interface {
	// EnsureAccount creates a zero-valued account row if absent. Idempotent.
	EnsureAccount(ctx context.Context, accountID string) error

	// EnsureInventoryRow creates the account's inventory row if absent. Idempotent.
	EnsureInventoryRow(ctx context.Context, accountID string) error

	// GetAccount returns domain.ErrNotFound for unknown accounts.
	GetAccount(ctx context.Context, accountID string) (*domain.Account, error)

	// SetNickname updates the nickname, creating the account and its
	// inventory row when missing.
	SetNickname(ctx context.Context, accountID, nickname string) error

	// DebitBalance fails with domain.ErrInsufficientFunds when the balance
	// is below amount; nothing is written in that case.
	DebitBalance(ctx context.Context, accountID string, amount float64) error

	// CreditBalance adds amount (>= 0) to the balance.
	CreditBalance(ctx context.Context, accountID string, amount float64) error

	// AdjustInventory applies a batch of signed quantity deltas in one
	// atomic step. If any resulting quantity would be negative the whole
	// batch fails with *domain.InsufficientInventoryError naming the first
	// short item, and no field changes. Item ids are validated against the
	// catalog; unknown ids fail with domain.ErrNotFound.
	AdjustInventory(ctx context.Context, accountID string, deltas map[string]float64) error

	// Inventory returns the account's owned items joined with catalog
	// metadata, omitting zero quantities.
	Inventory(ctx context.Context, accountID string) ([]domain.InventoryItem, error)

	// RecordDamage accumulates a damage event: total damage and coin credit
	// on the account plus an optional item drop, all in one transaction.
	RecordDamage(ctx context.Context, accountID string, damage, coins float64, drop map[string]float64) error

	// GachaPull debits cost and credits one unit of every item in items, as
	// a single all-or-nothing transaction. A failed debit credits nothing.
	GachaPull(ctx context.Context, accountID string, cost float64, items []string) error
}

// ExchangeRepository owns marketplace listings and the append-only trade
// log. Multi-row operations lock in a fixed order (listing, then buyer
// account, then seller account) so concurrent purchases cannot deadlock.
type ExchangeRepository interface {
	// CreateListing reserves quantity from the seller's inventory and
	// inserts the listing in one transaction, returning the generated id.
	CreateListing(ctx context.Context, sellerID, itemID string, pricePerUnit float64, quantity int64) (int64, error)

	// Purchase executes the whole trade atomically: debit buyer, credit
	// seller at (1-feeRate), credit buyer inventory, decrement or delete
	// the listing, append a trade log row with the supplied id.
	Purchase(ctx context.Context, buyerID string, listingID int64, quantity int64, feeRate float64, tradeID string) (*domain.Trade, error)

	// Cancel returns quantity from escrow to the seller's inventory,
	// decrementing or deleting the listing. Only the original seller may
	// cancel (domain.ErrForbidden otherwise).
	Cancel(ctx context.Context, sellerID string, listingID int64, quantity int64) error

	GetListing(ctx context.Context, listingID int64) (*domain.Listing, error)
	ListListings(ctx context.Context, filter domain.ListingFilter) ([]domain.Listing, error)
}

// CatalogRepository reads the item catalog and crafting recipes. Both are
// reference data: the core never writes them.
type CatalogRepository interface {
	ListEntries(ctx context.Context) ([]domain.CatalogEntry, error)

	// GetRecipe returns domain.ErrNoSuchRecipe when no recipe targets the item.
	GetRecipe(ctx context.Context, targetItemID string) (*domain.Recipe, error)

	ListRecipes(ctx context.Context) ([]domain.Recipe, error)
}
