package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// CacheStore handles short-lived caching in Redis.
type CacheStore struct {
	client *redis.Client
}

// NewCacheStore creates a new CacheStore.
func NewCacheStore(client *redis.Client) *CacheStore {
	return &CacheStore{client: client}
}

// RateQuoteTTL bounds how long an unlocked indicative quote may be reused.
// Locked rates live on the order row, never here.
const RateQuoteTTL = 30 * time.Second

const rateQuotePrefix = "cache:rate:"

// CachedQuote is a cached indicative exchange rate for a corridor.
type CachedQuote struct {
	Rate     float64 `json:"rate"`
	Source   string  `json:"source"`
	QuotedAt int64   `json:"quoted_at"`
}

// GetRateQuote retrieves a cached quote for a corridor.
// Returns nil on cache miss.
func (s *CacheStore) GetRateQuote(ctx context.Context, source, dest string) (*CachedQuote, error) {
	key := fmt.Sprintf("%s%s:%s", rateQuotePrefix, source, dest)

	data, err := s.client.Get(ctx, key).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, err
	}

	var quote CachedQuote
	if err := json.Unmarshal(data, &quote); err != nil {
		return nil, err
	}

	return &quote, nil
}

// SetRateQuote caches an indicative quote for a corridor.
func (s *CacheStore) SetRateQuote(ctx context.Context, source, dest string, quote *CachedQuote) error {
	key := fmt.Sprintf("%s%s:%s", rateQuotePrefix, source, dest)

	data, err := json.Marshal(quote)
	if err != nil {
		return err
	}

	return s.client.Set(ctx, key, data, RateQuoteTTL).Err()
}
