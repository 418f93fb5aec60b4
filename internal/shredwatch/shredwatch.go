// Package shredwatch watches for "first shred received" slot pings,
// which arrive measurably earlier than a confirmed slot subscription.
// BotRunner takes the newer of this slot and SlotTracker's confirmed
// slot for its deploy-window check, so a closing round is noticed a few
// hundred milliseconds before SlotTracker's confirmed view catches up.
// Grounded on terorie-pythian/schedule/slots.go's SlotMonitor.
package shredwatch

import (
	"context"
	"errors"
	"net"
	"sync/atomic"
	"time"

	eventbus "github.com/asaskevich/EventBus"
	"github.com/cenkalti/backoff/v4"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc/ws"
	"go.uber.org/zap"

	"github.com/Kriptikz/evorebot/internal/metrics"
)

const busKey = "first_shred"

// Watcher streams FirstShredReceived slot pings over a websocket and
// republishes the fastest-known slot to any subscribed callback.
type Watcher struct {
	Log          *zap.Logger
	WebSocketURL string

	updates  chan *ws.SlotsUpdatesResult
	lastSlot uint64
	bus      eventbus.Bus
}

// New creates a Watcher. Call Run to start streaming.
func New(wsURL string) *Watcher {
	return &Watcher{
		Log:          zap.NewNop(),
		WebSocketURL: wsURL,
		updates:      make(chan *ws.SlotsUpdatesResult, 1),
		bus:          eventbus.New(),
	}
}

// Run streams updates until ctx is canceled, reconnecting on failure.
func (w *Watcher) Run(ctx context.Context) error {
	defer close(w.updates)
	const retryInterval = 3 * time.Second
	return backoff.Retry(func() error {
		err := w.runConn(ctx)
		switch {
		case errors.Is(err, context.Canceled):
			return backoff.Permanent(err)
		default:
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil
			}
			w.Log.Warn("Shred watcher stream failed, restarting", zap.Error(err))
			return err
		}
	}, backoff.WithContext(backoff.NewConstantBackOff(retryInterval), ctx))
}

func (w *Watcher) runConn(ctx context.Context) error {
	client, err := ws.Connect(ctx, w.WebSocketURL)
	if err != nil {
		return err
	}
	defer client.Close()

	go func() {
		defer client.Close()
		<-ctx.Done()
	}()

	sub, err := client.SlotsUpdatesSubscribe()
	if err != nil {
		return err
	}

	for {
		err := w.readNextUpdate(ctx, sub)
		if errors.Is(err, context.Canceled) {
			return nil
		} else if err != nil {
			return err
		}
	}
}

func (w *Watcher) readNextUpdate(ctx context.Context, sub *ws.SlotsUpdatesSubscription) error {
	const readTimeout = 20 * time.Second
	ctx, cancel := context.WithTimeout(ctx, readTimeout)
	defer cancel()
	go func() {
		<-ctx.Done()
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			w.Log.Warn("Read deadline exceeded, terminating shred watcher connection",
				zap.Duration("timeout", readTimeout))
			sub.Unsubscribe()
		}
	}()

	update, err := sub.Recv()
	if err != nil {
		return err
	} else if update == nil {
		return net.ErrClosed
	} else if update.Timestamp == nil {
		ts := solana.UnixTimeSeconds(time.Now().Unix())
		update.Timestamp = &ts
	}

	if update.Type != ws.SlotsUpdatesFirstShredReceived {
		return nil
	}
	atomic.StoreUint64(&w.lastSlot, update.Slot)

	w.bus.Publish(busKey, update.Slot)
	metrics.SlotUpdates.Inc()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case w.updates <- update:
		w.Log.Debug("First shred received", zap.Uint64("slot", update.Slot))
	default:
		w.Log.Warn("Dropping shred update, no reader", zap.Uint64("slot", update.Slot))
	}

	return nil
}

// Subscribe registers a callback invoked with each fast slot observed.
// The returned cancel func removes it.
func (w *Watcher) Subscribe(callback func(uint64)) context.CancelFunc {
	_ = w.bus.Subscribe(busKey, callback)
	return func() {
		_ = w.bus.Unsubscribe(busKey, callback)
	}
}

// Updates exposes the raw update stream for callers that want more than
// just the slot number.
func (w *Watcher) Updates() <-chan *ws.SlotsUpdatesResult {
	return w.updates
}

// Slot returns the fastest-known slot observed so far, 0 if none yet.
func (w *Watcher) Slot() uint64 {
	return atomic.LoadUint64(&w.lastSlot)
}
