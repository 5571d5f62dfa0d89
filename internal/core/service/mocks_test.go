package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"sekonomy/internal/core/domain"
)

// fakeStore is an in-memory stand-in for the MySQL and Redis adapters. It
// implements the same atomicity contract: every operation either applies in
// full under the store mutex or leaves the maps untouched.
type fakeStore struct {
	mu sync.Mutex

	accounts    map[string]*domain.Account
	inventories map[string]map[string]float64
	invRows     map[string]bool
	catalog     map[string]domain.CatalogEntry
	recipes     map[string]domain.Recipe
	listings    map[int64]*domain.Listing
	nextListing int64
	trades      []domain.Trade
	idem        map[string]bool
	scores      map[string]float64

	// invRowCreations counts actual (non-idempotent-skip) row creations.
	invRowCreations int

	// purchaseFailures injects that many transient failures before
	// Purchase succeeds, for retry tests.
	purchaseFailures int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		accounts:    make(map[string]*domain.Account),
		inventories: make(map[string]map[string]float64),
		invRows:     make(map[string]bool),
		catalog:     make(map[string]domain.CatalogEntry),
		recipes:     make(map[string]domain.Recipe),
		listings:    make(map[int64]*domain.Listing),
		idem:        make(map[string]bool),
		scores:      make(map[string]float64),
	}
}

// --- test seeding helpers ---

func (f *fakeStore) addItem(id string, rarity int) {
	f.catalog[id] = domain.CatalogEntry{ItemID: id, DisplayName: id, Rarity: rarity}
}

func (f *fakeStore) addRecipe(target string, ingredients ...domain.Ingredient) {
	f.recipes[target] = domain.Recipe{TargetItemID: target, Ingredients: ingredients}
}

func (f *fakeStore) setBalance(accountID string, balance float64) {
	f.account(accountID).Balance = balance
}

func (f *fakeStore) setQuantity(accountID, itemID string, qty float64) {
	f.account(accountID)
	if f.inventories[accountID] == nil {
		f.inventories[accountID] = make(map[string]float64)
	}
	f.inventories[accountID][itemID] = qty
}

func (f *fakeStore) quantity(accountID, itemID string) float64 {
	return f.inventories[accountID][itemID]
}

func (f *fakeStore) balance(accountID string) float64 {
	if acc, ok := f.accounts[accountID]; ok {
		return acc.Balance
	}
	return 0
}

func (f *fakeStore) account(accountID string) *domain.Account {
	acc, ok := f.accounts[accountID]
	if !ok {
		acc = &domain.Account{ID: accountID, CreatedAt: time.Now(), UpdatedAt: time.Now()}
		f.accounts[accountID] = acc
	}
	return acc
}

// --- port.LedgerRepository ---

func (f *fakeStore) EnsureAccount(ctx context.Context, accountID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.account(accountID)
	return nil
}

func (f *fakeStore) EnsureInventoryRow(ctx context.Context, accountID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.invRows[accountID] {
		f.invRows[accountID] = true
		f.invRowCreations++
	}
	return nil
}

func (f *fakeStore) GetAccount(ctx context.Context, accountID string) (*domain.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	acc, ok := f.accounts[accountID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *acc
	return &cp, nil
}

func (f *fakeStore) SetNickname(ctx context.Context, accountID, nickname string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.account(accountID).Nickname = nickname
	if !f.invRows[accountID] {
		f.invRows[accountID] = true
		f.invRowCreations++
	}
	return nil
}

func (f *fakeStore) DebitBalance(ctx context.Context, accountID string, amount float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.debitLocked(accountID, amount)
}

func (f *fakeStore) debitLocked(accountID string, amount float64) error {
	acc, ok := f.accounts[accountID]
	if !ok {
		return domain.ErrNotFound
	}
	if acc.Balance < amount {
		return domain.ErrInsufficientFunds
	}
	acc.Balance -= amount
	return nil
}

func (f *fakeStore) CreditBalance(ctx context.Context, accountID string, amount float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.account(accountID).Balance += amount
	return nil
}

func (f *fakeStore) AdjustInventory(ctx context.Context, accountID string, deltas map[string]float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.adjustLocked(accountID, deltas)
}

func (f *fakeStore) adjustLocked(accountID string, deltas map[string]float64) error {
	items := make([]string, 0, len(deltas))
	for id := range deltas {
		items = append(items, id)
	}
	sort.Strings(items)

	next := make(map[string]float64, len(items))
	for _, id := range items {
		if _, ok := f.catalog[id]; !ok {
			return fmt.Errorf("unknown item %s: %w", id, domain.ErrNotFound)
		}
		after := f.inventories[accountID][id] + deltas[id]
		if after < 0 {
			return &domain.InsufficientInventoryError{Item: id}
		}
		next[id] = after
	}

	if f.inventories[accountID] == nil {
		f.inventories[accountID] = make(map[string]float64)
	}
	for id, qty := range next {
		f.inventories[accountID][id] = qty
	}
	return nil
}

func (f *fakeStore) Inventory(ctx context.Context, accountID string) ([]domain.InventoryItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	ids := make([]string, 0, len(f.inventories[accountID]))
	for id := range f.inventories[accountID] {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	items := []domain.InventoryItem{}
	for _, id := range ids {
		qty := f.inventories[accountID][id]
		if qty <= 0 {
			continue
		}
		entry := f.catalog[id]
		items = append(items, domain.InventoryItem{
			ItemID:      id,
			DisplayName: entry.DisplayName,
			Category:    entry.Category,
			Rarity:      entry.Rarity,
			Quantity:    qty,
		})
	}
	return items, nil
}

func (f *fakeStore) RecordDamage(ctx context.Context, accountID string, damage, coins float64, drop map[string]float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if len(drop) > 0 {
		if err := f.adjustLocked(accountID, drop); err != nil {
			return err
		}
	}
	acc := f.account(accountID)
	acc.TotalDamage += damage
	acc.Balance += coins
	return nil
}

func (f *fakeStore) GachaPull(ctx context.Context, accountID string, cost float64, items []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	acc, ok := f.accounts[accountID]
	if !ok {
		return domain.ErrNotFound
	}
	if acc.Balance < cost {
		return domain.ErrInsufficientFunds
	}

	deltas := make(map[string]float64, len(items))
	for _, id := range items {
		deltas[id] += 1
	}
	if err := f.adjustLocked(accountID, deltas); err != nil {
		return err
	}
	acc.Balance -= cost
	return nil
}

// --- port.ExchangeRepository ---

func (f *fakeStore) CreateListing(ctx context.Context, sellerID, itemID string, pricePerUnit float64, quantity int64) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.adjustLocked(sellerID, map[string]float64{itemID: -float64(quantity)}); err != nil {
		return 0, err
	}
	f.nextListing++
	f.listings[f.nextListing] = &domain.Listing{
		ID:           f.nextListing,
		SellerID:     sellerID,
		ItemID:       itemID,
		PricePerUnit: pricePerUnit,
		Quantity:     quantity,
		CreatedAt:    time.Now(),
	}
	return f.nextListing, nil
}

func (f *fakeStore) Purchase(ctx context.Context, buyerID string, listingID int64, quantity int64, feeRate float64, tradeID string) (*domain.Trade, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.purchaseFailures > 0 {
		f.purchaseFailures--
		return nil, domain.ErrConcurrency
	}

	listing, ok := f.listings[listingID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	if listing.SellerID == buyerID {
		return nil, domain.ErrInvalidOperation
	}
	if quantity > listing.Quantity {
		return nil, domain.ErrInsufficientQuantity
	}

	total := listing.PricePerUnit * float64(quantity)
	buyer, ok := f.accounts[buyerID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	if buyer.Balance < total {
		return nil, domain.ErrInsufficientFunds
	}
	// All validations passed; the inventory credit can only fail on an
	// unknown item, which the listing creation already ruled out.
	if err := f.adjustLocked(buyerID, map[string]float64{listing.ItemID: float64(quantity)}); err != nil {
		return nil, err
	}
	buyer.Balance -= total
	f.account(listing.SellerID).Balance += total * (1 - feeRate)

	if listing.Quantity == quantity {
		delete(f.listings, listingID)
	} else {
		listing.Quantity -= quantity
	}

	trade := domain.Trade{
		ID:           tradeID,
		SellerID:     listing.SellerID,
		BuyerID:      buyerID,
		ItemID:       listing.ItemID,
		PricePerUnit: listing.PricePerUnit,
		Quantity:     quantity,
		CreatedAt:    time.Now(),
	}
	f.trades = append(f.trades, trade)
	return &trade, nil
}

func (f *fakeStore) Cancel(ctx context.Context, sellerID string, listingID int64, quantity int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	listing, ok := f.listings[listingID]
	if !ok {
		return domain.ErrNotFound
	}
	if listing.SellerID != sellerID {
		return domain.ErrForbidden
	}
	if quantity > listing.Quantity {
		return domain.ErrInvalidQuantity
	}

	if err := f.adjustLocked(sellerID, map[string]float64{listing.ItemID: float64(quantity)}); err != nil {
		return err
	}
	if listing.Quantity == quantity {
		delete(f.listings, listingID)
	} else {
		listing.Quantity -= quantity
	}
	return nil
}

func (f *fakeStore) GetListing(ctx context.Context, listingID int64) (*domain.Listing, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	listing, ok := f.listings[listingID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *listing
	return &cp, nil
}

func (f *fakeStore) ListListings(ctx context.Context, filter domain.ListingFilter) ([]domain.Listing, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	ids := make([]int64, 0, len(f.listings))
	for id := range f.listings {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	out := []domain.Listing{}
	skipped := 0
	for _, id := range ids {
		l := f.listings[id]
		if filter.SellerID != "" && l.SellerID != filter.SellerID {
			continue
		}
		if filter.ExcludeSeller != "" && l.SellerID == filter.ExcludeSeller {
			continue
		}
		if filter.ItemID != "" && l.ItemID != filter.ItemID {
			continue
		}
		if skipped < filter.Offset {
			skipped++
			continue
		}
		if len(out) >= filter.Limit {
			break
		}
		out = append(out, *l)
	}
	return out, nil
}

// --- port.CatalogRepository ---

func (f *fakeStore) ListEntries(ctx context.Context) ([]domain.CatalogEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	ids := make([]string, 0, len(f.catalog))
	for id := range f.catalog {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	entries := make([]domain.CatalogEntry, 0, len(ids))
	for _, id := range ids {
		entries = append(entries, f.catalog[id])
	}
	return entries, nil
}

func (f *fakeStore) GetRecipe(ctx context.Context, targetItemID string) (*domain.Recipe, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	recipe, ok := f.recipes[targetItemID]
	if !ok {
		return nil, domain.ErrNoSuchRecipe
	}
	cp := recipe
	return &cp, nil
}

func (f *fakeStore) ListRecipes(ctx context.Context) ([]domain.Recipe, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	targets := make([]string, 0, len(f.recipes))
	for t := range f.recipes {
		targets = append(targets, t)
	}
	sort.Strings(targets)

	out := make([]domain.Recipe, 0, len(targets))
	for _, t := range targets {
		out = append(out, f.recipes[t])
	}
	return out, nil
}

// --- port.CacheRepository ---

func (f *fakeStore) SetIdempotency(ctx context.Context, key string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.idem[key] {
		return false, nil
	}
	f.idem[key] = true
	return true, nil
}

func (f *fakeStore) AddDamageScore(ctx context.Context, accountID string, damage float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.scores[accountID] += damage
	return nil
}

func (f *fakeStore) TopDamage(ctx context.Context, limit int) ([]domain.RankEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	ids := make([]string, 0, len(f.scores))
	for id := range f.scores {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		if f.scores[ids[i]] != f.scores[ids[j]] {
			return f.scores[ids[i]] > f.scores[ids[j]]
		}
		return ids[i] < ids[j]
	})
	if len(ids) > limit {
		ids = ids[:limit]
	}

	out := make([]domain.RankEntry, 0, len(ids))
	for i, id := range ids {
		out = append(out, domain.RankEntry{Rank: i + 1, AccountID: id, TotalDamage: f.scores[id]})
	}
	return out, nil
}
