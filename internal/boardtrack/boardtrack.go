// Package boardtrack subscribes to the single well-known Board account
// and exposes its latching check_new_round() semantics. Grounded on
// original_source/bot/src/board_tracker.rs, reconnect loop structured
// after terorie-pythian/schedule/slots.go.
package boardtrack

import (
	"context"
	"sync"
	"time"

	eventbus "github.com/asaskevich/EventBus"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/gagliardetto/solana-go/rpc/ws"
	"go.uber.org/zap"

	"github.com/Kriptikz/evorebot/internal/chainmodel"
)

const (
	reconnectDelay = 1 * time.Second
	busKey         = "board.new_round"
)

// Tracker tracks Board account state via websocket subscription.
type Tracker struct {
	Log *zap.Logger

	wsURL      string
	boardAddr  solana.PublicKey

	mu    sync.RWMutex
	board *chainmodel.Board

	lastRoundID uint64
	latchMu     sync.Mutex

	publishedRoundID uint64
	publishMu        sync.Mutex

	connected bool
	connMu    sync.RWMutex

	bus eventbus.Bus
}

// New creates a Tracker for the given well-known board address.
func New(wsURL string, boardAddr solana.PublicKey) *Tracker {
	return &Tracker{
		Log:       zap.NewNop(),
		wsURL:     wsURL,
		boardAddr: boardAddr,
		bus:       eventbus.New(),
	}
}

// Get returns the current board state, and whether one has been received.
func (t *Tracker) Get() (chainmodel.Board, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.board == nil {
		return chainmodel.Board{}, false
	}
	return *t.board, true
}

// RoundID returns the current round id, 0 before first push.
func (t *Tracker) RoundID() uint64 {
	b, ok := t.Get()
	if !ok {
		return 0
	}
	return b.RoundID
}

// EndSlot returns the current end slot, MaxUint64 before first push.
func (t *Tracker) EndSlot() uint64 {
	b, ok := t.Get()
	if !ok {
		return ^uint64(0)
	}
	return b.EndSlot
}

// StartSlot returns the current start slot, 0 before first push.
func (t *Tracker) StartSlot() uint64 {
	b, ok := t.Get()
	if !ok {
		return 0
	}
	return b.StartSlot
}

// CheckNewRound returns the round id exactly once per observed transition
// to a strictly greater, nonzero round id; otherwise ok is false.
func (t *Tracker) CheckNewRound() (roundID uint64, ok bool) {
	current := t.RoundID()
	t.latchMu.Lock()
	defer t.latchMu.Unlock()
	if current > t.lastRoundID && current > 0 {
		t.lastRoundID = current
		return current, true
	}
	return 0, false
}

// checkNewRoundForPublish latches independently of CheckNewRound, so
// runConn's internal bus-publish doesn't consume the one-shot signal
// BotRunner's own CheckNewRound poll depends on.
func (t *Tracker) checkNewRoundForPublish(current uint64) (roundID uint64, ok bool) {
	t.publishMu.Lock()
	defer t.publishMu.Unlock()
	if current > t.publishedRoundID && current > 0 {
		t.publishedRoundID = current
		return current, true
	}
	return 0, false
}

// Subscribe registers a callback invoked whenever a new round is first
// observed, for internal fan-out to multiple listeners beyond the
// single BotRunner poll loop (grounded on SlotMonitor.Subscribe in
// terorie-pythian/schedule/slots.go).
func (t *Tracker) Subscribe(callback func(uint64)) (cancel func()) {
	_ = t.bus.Subscribe(busKey, callback)
	return func() {
		_ = t.bus.Unsubscribe(busKey, callback)
	}
}

// IsConnected reports whether the websocket subscription is currently up.
func (t *Tracker) IsConnected() bool {
	t.connMu.RLock()
	defer t.connMu.RUnlock()
	return t.connected
}

func (t *Tracker) setConnected(v bool) {
	t.connMu.Lock()
	t.connected = v
	t.connMu.Unlock()
}

// Run subscribes to the Board account and updates the cached value on
// every push. Reconnects after 1s on subscription error. Blocks until ctx
// is canceled.
func (t *Tracker) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		if err := t.runConn(ctx); err != nil && ctx.Err() == nil {
			t.Log.Warn("BoardTracker subscription error, reconnecting", zap.Error(err))
		}
		t.setConnected(false)
		select {
		case <-ctx.Done():
			return
		case <-time.After(reconnectDelay):
		}
	}
}

func (t *Tracker) runConn(ctx context.Context) error {
	client, err := ws.Connect(ctx, t.wsURL)
	if err != nil {
		return err
	}
	defer client.Close()

	go func() {
		<-ctx.Done()
		client.Close()
	}()

	sub, err := client.AccountSubscribeWithOpts(t.boardAddr, rpc.CommitmentConfirmed, solana.EncodingBase64)
	if err != nil {
		return err
	}
	defer sub.Unsubscribe()

	t.setConnected(true)

	for {
		result, err := sub.Recv(ctx)
		if err != nil {
			return err
		}
		data := result.Value.Account.Data.GetBinary()
		board, err := chainmodel.DecodeBoard(data)
		if err != nil {
			t.Log.Warn("BoardTracker: failed to decode Board", zap.Error(err))
			continue
		}
		t.mu.Lock()
		t.board = &board
		t.mu.Unlock()

		if roundID, ok := t.checkNewRoundForPublish(board.RoundID); ok {
			t.bus.Publish(busKey, roundID)
		}
	}
}
