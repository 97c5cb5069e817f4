package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/RicardoMLopes/wsh/internal/domain"
)

// AggregateCache read-through snapshots of active aggregates, keyed <prefix><reference>:<waybill>:<partNumber>.
// The database stays authoritative: commits evict entries and Lookup refills them until ttl expires.
type AggregateCache struct {
	kv     KV
	prefix string
	ttl    time.Duration
}

func NewAggregateCache(kv KV, prefix string, ttl time.Duration) *AggregateCache {
	return &AggregateCache{kv: kv, prefix: prefix, ttl: ttl}
}

func (c *AggregateCache) Key(k domain.AggregateKey) string {
	return c.prefix + k.Reference + ":" + k.Waybill + ":" + k.PartNumber
}

// Get returns ErrMiss when nothing is cached
func (c *AggregateCache) Get(ctx context.Context, k domain.AggregateKey) (*domain.Aggregate, error) {
	raw, err := c.kv.Get(ctx, c.Key(k))
	if err != nil {
		return nil, err
	}
	var agg domain.Aggregate
	if err := json.Unmarshal([]byte(raw), &agg); err != nil {
		return nil, fmt.Errorf("failed to decode cached aggregate: %w", err)
	}
	return &agg, nil
}

func (c *AggregateCache) Put(ctx context.Context, agg *domain.Aggregate) error {
	b, err := json.Marshal(agg)
	if err != nil {
		return fmt.Errorf("failed to encode aggregate: %w", err)
	}
	return c.kv.Set(ctx, c.Key(agg.Key), string(b), c.ttl)
}

func (c *AggregateCache) Invalidate(ctx context.Context, keys ...domain.AggregateKey) error {
	names := make([]string, 0, len(keys))
	for _, k := range keys {
		names = append(names, c.Key(k))
	}
	return c.kv.Delete(ctx, names...)
}
