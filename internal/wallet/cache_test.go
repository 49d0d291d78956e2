package wallet

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scholaris-erp/scholaris-erp/internal/money"
)

func newTestCache(t *testing.T) *RedisSummaryCache {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisSummaryCache(client, time.Minute)
}

func TestSummaryCacheRoundTrip(t *testing.T) {
	cache := newTestCache(t)
	ctx := context.Background()

	_, ok, err := cache.Get(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	summary := BalanceSummary{
		StaffTotal:   money.MustParse("400"),
		MainCashbox:  money.MustParse("350"),
		ExpenseTotal: money.MustParse("250"),
		GrandTotal:   money.MustParse("1000"),
	}
	require.NoError(t, cache.Set(ctx, summary))

	got, ok, err := cache.Get(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "1000.00", got.GrandTotal.String())
	assert.Equal(t, "350.00", got.MainCashbox.String())
}

func TestSummaryCacheInvalidateBumpsVersion(t *testing.T) {
	cache := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, BalanceSummary{GrandTotal: money.MustParse("10")}))
	require.NoError(t, cache.Invalidate(ctx))

	_, ok, err := cache.Get(ctx)
	require.NoError(t, err)
	assert.False(t, ok, "a bumped version must miss the stale entry")
}

func TestServiceSummaryUsesCache(t *testing.T) {
	store := newFakeStore()
	store.addWallet(SystemOwner(), "Main Cashbox", TypeMainCashbox, "500.00")
	cache := newTestCache(t)
	dir := &fakeDirectory{}
	svc := NewService(store, dir, cache, nil)
	ctx := context.Background()

	first, err := svc.Summary(ctx)
	require.NoError(t, err)
	assert.Equal(t, "500.00", first.GrandTotal.String())

	// Mutate the store behind the cache's back; the cached value wins until
	// a mutation invalidates it.
	store.addWallet(SystemOwner(), "Operations", TypeExpense, "100.00")
	second, err := svc.Summary(ctx)
	require.NoError(t, err)
	assert.Equal(t, "500.00", second.GrandTotal.String())

	require.NoError(t, cache.Invalidate(ctx))
	third, err := svc.Summary(ctx)
	require.NoError(t, err)
	assert.Equal(t, "600.00", third.GrandTotal.String())
}
