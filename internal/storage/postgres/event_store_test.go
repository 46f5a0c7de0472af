package postgres

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wallet-pnl-lab/internal/domain"
	"wallet-pnl-lab/internal/storage"
)

func testEvent(id string, ts int64) *domain.TransactionEvent {
	return &domain.TransactionEvent{
		EventID:     id,
		Wallet:      "0xwallet",
		Account:     "acct1",
		TxHash:      "0xhash-" + id,
		BlockNumber: ts / 1000,
		LogIndex:    0,
		Timestamp:   ts,
		Kind:        domain.OpKindTrade,
		Value:       42.5,
	}
}

func TestEventStore_InsertAndGetByScope(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewEventStore(pool)

	event := testEvent("ev1", 1700000000)
	require.NoError(t, store.Insert(ctx, event))

	events, err := store.GetByScope(ctx, domain.Scope{Wallet: "0xwallet"})
	require.NoError(t, err)

	require.Len(t, events, 1)
	assert.Equal(t, event.EventID, events[0].EventID)
	assert.Equal(t, event.TxHash, events[0].TxHash)
	assert.Equal(t, event.BlockNumber, events[0].BlockNumber)
	assert.Equal(t, event.Timestamp, events[0].Timestamp)
	assert.Equal(t, domain.OpKindTrade, events[0].Kind)
	assert.InDelta(t, event.Value, events[0].Value, 0.0001)
}

func TestEventStore_InsertDuplicate(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewEventStore(pool)

	event := testEvent("ev1", 1700000000)
	require.NoError(t, store.Insert(ctx, event))

	err := store.Insert(ctx, event)
	assert.True(t, errors.Is(err, storage.ErrDuplicateKey), "expected ErrDuplicateKey, got %v", err)
}

func TestEventStore_InsertBulkRollsBackOnDuplicate(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewEventStore(pool)

	require.NoError(t, store.Insert(ctx, testEvent("ev1", 1700000000)))

	err := store.InsertBulk(ctx, []*domain.TransactionEvent{
		testEvent("ev2", 1700000100),
		testEvent("ev1", 1700000000),
	})
	assert.True(t, errors.Is(err, storage.ErrDuplicateKey))

	events, err := store.GetByScope(ctx, domain.Scope{Wallet: "0xwallet"})
	require.NoError(t, err)
	assert.Len(t, events, 1, "batch must roll back entirely")
}

func TestEventStore_ScopeNarrowing(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewEventStore(pool)

	ev1 := testEvent("ev1", 1700000000)
	ev2 := testEvent("ev2", 1700000100)
	ev2.Account = "acct2"
	require.NoError(t, store.InsertBulk(ctx, []*domain.TransactionEvent{ev1, ev2}))

	whole, err := store.GetByScope(ctx, domain.Scope{Wallet: "0xwallet"})
	require.NoError(t, err)
	assert.Len(t, whole, 2)

	narrowed, err := store.GetByScope(ctx, domain.Scope{Wallet: "0xwallet", Account: "acct2"})
	require.NoError(t, err)
	require.Len(t, narrowed, 1)
	assert.Equal(t, "ev2", narrowed[0].EventID)
}

func TestEventStore_GetSinceOrdering(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewEventStore(pool)

	require.NoError(t, store.InsertBulk(ctx, []*domain.TransactionEvent{
		testEvent("ev3", 1700000200),
		testEvent("ev1", 1700000000),
		testEvent("ev2", 1700000100),
	}))

	events, err := store.GetSince(ctx, domain.Scope{Wallet: "0xwallet"}, 1700000100)
	require.NoError(t, err)

	require.Len(t, events, 2)
	assert.Equal(t, "ev2", events[0].EventID)
	assert.Equal(t, "ev3", events[1].EventID)
}

func TestEventStore_AccountsAndLastBlock(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewEventStore(pool)

	last, err := store.LastBlock(ctx, "0xwallet")
	require.NoError(t, err)
	assert.Zero(t, last)

	ev1 := testEvent("ev1", 1700000000)
	ev1.Account = "b"
	ev2 := testEvent("ev2", 1700000100)
	ev2.Account = "a"
	ev3 := testEvent("ev3", 1700000200)
	ev3.Account = ""
	require.NoError(t, store.InsertBulk(ctx, []*domain.TransactionEvent{ev1, ev2, ev3}))

	accounts, err := store.Accounts(ctx, "0xwallet")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, accounts)

	last, err = store.LastBlock(ctx, "0xwallet")
	require.NoError(t, err)
	assert.Equal(t, uint64(1700000), last)
}
