// Package blockhash polls the chain head hash at a fixed 1s cadence so
// submissions always carry a fresh-enough freshness nonce. Grounded on
// original_source/bot/src/blockhash_cache.rs, restructured into the
// teacher's poll-loop-with-zap-logging idiom
// (terorie-pythian/schedule/schedule.go).
package blockhash

import (
	"context"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/Kriptikz/evorebot/internal/chainmodel"
	"github.com/Kriptikz/evorebot/internal/evoreclient"
)

const pollInterval = 1 * time.Second

// Cache caches the most recently fetched blockhash.
type Cache struct {
	Log *zap.Logger

	client *evoreclient.Client
	hash   atomic.Pointer[chainmodel.Hash]
}

// New creates a Cache backed by a processed-commitment RPC client.
func New(client *evoreclient.Client) *Cache {
	c := &Cache{Log: zap.NewNop(), client: client}
	var zero chainmodel.Hash
	c.hash.Store(&zero)
	return c
}

// Get returns the most recently fetched hash, or the zero hash before
// first success.
func (c *Cache) Get() chainmodel.Hash {
	return *c.hash.Load()
}

// Run polls the chain for a fresh blockhash every second until ctx is
// canceled. Errors are logged and silently retried; the last-known hash
// remains valid between successes.
func (c *Cache) Run(ctx context.Context) {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			rctx, cancel := context.WithTimeout(ctx, pollInterval)
			hash, err := c.client.GetLatestBlockhash(rctx)
			cancel()
			if err != nil {
				c.Log.Debug("Blockhash fetch failed, keeping stale value", zap.Error(err))
				continue
			}
			c.hash.Store(&hash)
		}
	}
}
