package cache

import (
	"context"
	"testing"
	"time"

	"github.com/KotFed0t/equal_weight_fund/config"
	"github.com/KotFed0t/equal_weight_fund/internal/model"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T) (*RedisCache, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	cfg := &config.Config{}
	cfg.Cache.QuotesExpiration = time.Minute

	return NewRedisCache(client, cfg), mr
}

func TestQuotesRoundTrip(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()

	quotes := []model.Quote{
		{Ticker: "AAPL", Price: decimal.RequireFromString("150.25"), MarketCap: decimal.RequireFromString("2500000000000")},
		{Ticker: "MSFT", Price: decimal.RequireFromString("300"), MarketCap: decimal.RequireFromString("2300000000000")},
	}
	require.NoError(t, c.SetQuotes(ctx, quotes))

	assert.Equal(t, time.Minute, mr.TTL("quote:AAPL"))

	got, err := c.GetQuotes(ctx, []string{"AAPL", "GOOGL", "MSFT"})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.True(t, got["AAPL"].Price.Equal(quotes[0].Price))
	assert.True(t, got["MSFT"].MarketCap.Equal(quotes[1].MarketCap))
	_, ok := got["GOOGL"]
	assert.False(t, ok)
}

func TestQuotesExpire(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, c.SetQuotes(ctx, []model.Quote{{Ticker: "AAPL", Price: decimal.NewFromInt(1), MarketCap: decimal.NewFromInt(1)}}))
	mr.FastForward(2 * time.Minute)

	got, err := c.GetQuotes(ctx, []string{"AAPL"})
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestGetQuotesIgnoresCorruptEntries(t *testing.T) {
	c, mr := newTestCache(t)
	require.NoError(t, mr.Set("quote:AAPL", "{not json"))

	got, err := c.GetQuotes(context.Background(), []string{"AAPL"})
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestGetQuotesUnavailable(t *testing.T) {
	c, mr := newTestCache(t)
	mr.Close()

	_, err := c.GetQuotes(context.Background(), []string{"AAPL"})
	assert.Error(t, err)
}
