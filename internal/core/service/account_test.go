package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"sekonomy/internal/core/domain"
)

func newAccountFixture() (*fakeStore, *AccountService) {
	fs := newFakeStore()
	fs.addItem("ore_iron", 0)
	fs.addItem("ore_gold", 1)
	return fs, NewAccountService(fs, fs, zap.NewNop())
}

func TestGetInventoryLazyCreation(t *testing.T) {
	fs, svc := newAccountFixture()

	items, err := svc.GetInventory(context.Background(), "p1")
	require.NoError(t, err)
	assert.Empty(t, items)
	assert.Equal(t, 1, fs.invRowCreations)

	// Repeat visits are idempotent: no second row creation.
	_, err = svc.GetInventory(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, 1, fs.invRowCreations)
}

func TestGetInventoryOmitsZeroQuantities(t *testing.T) {
	fs, svc := newAccountFixture()
	fs.setQuantity("p1", "ore_iron", 3)
	fs.setQuantity("p1", "ore_gold", 0)

	items, err := svc.GetInventory(context.Background(), "p1")
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "ore_iron", items[0].ItemID)
	assert.InDelta(t, 3.0, items[0].Quantity, 1e-9)
}

func TestDepositAndWithdraw(t *testing.T) {
	fs, svc := newAccountFixture()

	require.NoError(t, svc.Deposit(context.Background(), "p1", "ore_iron", 5))
	assert.InDelta(t, 5.0, fs.quantity("p1", "ore_iron"), 1e-9)

	require.NoError(t, svc.Withdraw(context.Background(), "p1", "ore_iron", 2))
	assert.InDelta(t, 3.0, fs.quantity("p1", "ore_iron"), 1e-9)

	err := svc.Withdraw(context.Background(), "p1", "ore_iron", 4)
	assert.ErrorIs(t, err, domain.ErrInsufficientInventory)
	assert.InDelta(t, 3.0, fs.quantity("p1", "ore_iron"), 1e-9)
}

func TestDepositUnknownItem(t *testing.T) {
	_, svc := newAccountFixture()

	err := svc.Deposit(context.Background(), "p1", "ore_mythril", 1)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestAdjustValidation(t *testing.T) {
	_, svc := newAccountFixture()

	assert.ErrorIs(t, svc.Deposit(context.Background(), "", "ore_iron", 1), domain.ErrValidation)
	assert.ErrorIs(t, svc.Deposit(context.Background(), "p1", "", 1), domain.ErrValidation)
	assert.ErrorIs(t, svc.Deposit(context.Background(), "p1", "ore_iron", 0), domain.ErrValidation)
	assert.ErrorIs(t, svc.Withdraw(context.Background(), "p1", "ore_iron", -2), domain.ErrValidation)
}

func TestProfile(t *testing.T) {
	fs, svc := newAccountFixture()

	_, err := svc.Profile(context.Background(), "ghost")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	fs.setBalance("p1", 42)
	require.NoError(t, svc.UpdateNickname(context.Background(), "p1", "Sekkanim"))

	acc, err := svc.Profile(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, "Sekkanim", acc.Nickname)
	assert.InDelta(t, 42.0, acc.Balance, 1e-9)
}

func TestUpdateNicknameCreatesAccount(t *testing.T) {
	fs, svc := newAccountFixture()

	require.NoError(t, svc.UpdateNickname(context.Background(), "fresh", "Newbie"))
	assert.Equal(t, 1, fs.invRowCreations)

	acc, err := svc.Profile(context.Background(), "fresh")
	require.NoError(t, err)
	assert.Equal(t, "Newbie", acc.Nickname)
}

func TestRanking(t *testing.T) {
	fs, svc := newAccountFixture()
	fs.scores["a"] = 300
	fs.scores["b"] = 500
	fs.scores["c"] = 100

	entries, err := svc.Ranking(context.Background(), 2)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "b", entries[0].AccountID)
	assert.Equal(t, 1, entries[0].Rank)
	assert.Equal(t, "a", entries[1].AccountID)
	assert.Equal(t, 2, entries[1].Rank)

	// Non-positive limits fall back to the default page size.
	entries, err = svc.Ranking(context.Background(), 0)
	require.NoError(t, err)
	assert.Len(t, entries, 3)
}
