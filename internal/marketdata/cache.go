package marketdata

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// CachedClient fronts a Client with a short-TTL Redis cache so bursts of
// lookups for the same symbol hit the provider once. Cache failures fall
// through to the provider.
type CachedClient struct {
	provider *Client
	rdb      *redis.Client
	ttl      time.Duration
	log      zerolog.Logger
}

// NewCachedClient creates a Redis-backed quote cache over the provider
func NewCachedClient(provider *Client, rdb *redis.Client, ttl time.Duration, log zerolog.Logger) *CachedClient {
	return &CachedClient{
		provider: provider,
		rdb:      rdb,
		ttl:      ttl,
		log:      log.With().Str("component", "quote-cache").Logger(),
	}
}

// GetStockInfo returns the cached quote for a symbol, or fetches and caches it
func (c *CachedClient) GetStockInfo(ctx context.Context, symbol string) (*Quote, error) {
	key := quoteKey(symbol)

	if cached, err := c.rdb.Get(ctx, key).Result(); err == nil {
		var quote Quote
		if err := json.Unmarshal([]byte(cached), &quote); err == nil {
			return &quote, nil
		}
		c.log.Warn().Str("symbol", symbol).Msg("Discarding unreadable cached quote")
	} else if err != redis.Nil {
		c.log.Warn().Err(err).Str("symbol", symbol).Msg("Quote cache read failed")
	}

	quote, err := c.provider.GetStockInfo(ctx, symbol)
	if err != nil {
		return nil, err
	}

	// Placeholder quotes are not cached; the next lookup should retry.
	if quote.CurrentPrice > 0 {
		data, err := json.Marshal(quote)
		if err == nil {
			if err := c.rdb.Set(ctx, key, data, c.ttl).Err(); err != nil {
				c.log.Warn().Err(err).Str("symbol", symbol).Msg("Quote cache write failed")
			}
		}
	}

	return quote, nil
}

// GetDailyHistory passes through to the provider
func (c *CachedClient) GetDailyHistory(ctx context.Context, symbol, period string) ([]DailyClose, error) {
	return c.provider.GetDailyHistory(ctx, symbol, period)
}

func quoteKey(symbol string) string {
	return fmt.Sprintf("quote:%s", symbol)
}
