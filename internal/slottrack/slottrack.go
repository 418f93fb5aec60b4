// Package slottrack maintains a live current-slot feed: a primary
// websocket subscription with a 1s RPC poll as a liveness fallback. The
// exposed slot is monotone non-decreasing even if the websocket stalls.
// Grounded on spec.md §4.3 and structured after
// terorie-pythian/schedule/slots.go's reconnect-with-backoff idiom.
package slottrack

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gagliardetto/solana-go/rpc/ws"
	"go.uber.org/zap"

	"github.com/Kriptikz/evorebot/internal/evoreclient"
	"github.com/Kriptikz/evorebot/internal/metrics"
)

const (
	rpcPollInterval  = 1 * time.Second
	wsStaleThreshold = 5 * time.Second
	reconnectDelay   = 1 * time.Second
)

// Tracker exposes the chain's current slot from two independently
// updated sources, always returning max(wsSlot, rpcSlot).
type Tracker struct {
	Log *zap.Logger

	wsURL  string
	client *evoreclient.Client

	wsSlot  atomic.Uint64
	rpcSlot atomic.Uint64

	lastWSUpdate  atomic.Int64 // unix nanos
	lastRPCUpdate atomic.Int64

	rpcConnected atomic.Bool
}

// New creates a Tracker.
func New(wsURL string, client *evoreclient.Client) *Tracker {
	return &Tracker{Log: zap.NewNop(), wsURL: wsURL, client: client}
}

// Current returns the current best-known slot; never errors.
func (t *Tracker) Current() uint64 {
	ws := t.wsSlot.Load()
	rpc := t.rpcSlot.Load()
	if ws > rpc {
		return ws
	}
	return rpc
}

// IsWSConnected reports whether the websocket has delivered an update in
// the last wsStaleThreshold.
func (t *Tracker) IsWSConnected() bool {
	last := t.lastWSUpdate.Load()
	if last == 0 {
		return false
	}
	return time.Since(time.Unix(0, last)) <= wsStaleThreshold
}

// IsRPCConnected reports whether the RPC fallback poll is succeeding.
func (t *Tracker) IsRPCConnected() bool {
	return t.rpcConnected.Load()
}

// Run starts both the websocket subscriber and the RPC fallback poller.
// Blocks until ctx is canceled.
func (t *Tracker) Run(ctx context.Context) {
	go t.runRPCPoll(ctx)
	t.runWSWithBackoff(ctx)
}

func (t *Tracker) runRPCPoll(ctx context.Context) {
	ticker := time.NewTicker(rpcPollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			rctx, cancel := context.WithTimeout(ctx, rpcPollInterval)
			slot, err := t.client.GetSlot(rctx)
			cancel()
			if err != nil {
				t.rpcConnected.Store(false)
				t.Log.Debug("Slot RPC poll failed", zap.Error(err))
				continue
			}
			t.rpcConnected.Store(true)
			t.setIfGreater(&t.rpcSlot, slot)
			t.lastRPCUpdate.Store(time.Now().UnixNano())
		}
	}
}

func (t *Tracker) runWSWithBackoff(ctx context.Context) {
	bo := backoff.WithContext(backoff.NewConstantBackOff(reconnectDelay), ctx)
	_ = backoff.Retry(func() error {
		err := t.runWSConn(ctx)
		if ctx.Err() != nil {
			return backoff.Permanent(ctx.Err())
		}
		if err != nil {
			t.Log.Warn("Slot websocket failed, reconnecting", zap.Error(err))
		}
		return err
	}, bo)
}

func (t *Tracker) runWSConn(ctx context.Context) error {
	client, err := ws.Connect(ctx, t.wsURL)
	if err != nil {
		return err
	}
	defer client.Close()

	go func() {
		<-ctx.Done()
		client.Close()
	}()

	sub, err := client.SlotSubscribe()
	if err != nil {
		return err
	}
	defer sub.Unsubscribe()

	for {
		result, err := sub.Recv(ctx)
		if err != nil {
			return err
		}
		t.setIfGreater(&t.wsSlot, result.Slot)
		t.lastWSUpdate.Store(time.Now().UnixNano())
	}
}

func (t *Tracker) setIfGreater(target *atomic.Uint64, value uint64) {
	for {
		cur := target.Load()
		if value <= cur {
			return
		}
		if target.CompareAndSwap(cur, value) {
			metrics.SlotUpdates.Inc()
			return
		}
	}
}
