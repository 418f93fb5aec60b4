// Package roundtrack subscribes to the per-round Round account, tearing
// down and resubscribing whenever BoardTracker observes a new round id.
// Grounded on original_source/bot/src/round_tracker.rs.
package roundtrack

import (
	"context"
	"sync"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/gagliardetto/solana-go/rpc/ws"
	"go.uber.org/zap"

	"github.com/Kriptikz/evorebot/internal/chainmodel"
)

const reconnectDelay = 1 * time.Second

// Tracker tracks the Round account for whichever round id is currently
// active, and supports switching to a new round's account mid-flight.
type Tracker struct {
	Log *zap.Logger

	wsURL     string
	programID solana.PublicKey

	mu    sync.RWMutex
	round *chainmodel.Round

	connected bool
	connMu    sync.RWMutex

	stopCh chan struct{}
	doneCh chan struct{}
	runMu  sync.Mutex

	currentID uint64
}

// New creates a Tracker bound to a program id, idle until SwitchRound.
func New(wsURL string, programID solana.PublicKey) *Tracker {
	return &Tracker{Log: zap.NewNop(), wsURL: wsURL, programID: programID}
}

// Get returns the currently tracked round, and whether one has been received.
func (t *Tracker) Get() (chainmodel.Round, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.round == nil {
		return chainmodel.Round{}, false
	}
	return *t.round, true
}

// Deployed returns the per-square deployed amounts for the current round.
func (t *Tracker) Deployed() [chainmodel.Squares]uint64 {
	r, _ := t.Get()
	return r.Deployed
}

// TotalDeployed returns the total amount staked across all squares.
func (t *Tracker) TotalDeployed() uint64 {
	r, _ := t.Get()
	return r.TotalDeployed
}

// Motherlode returns the current round's jackpot pool.
func (t *Tracker) Motherlode() uint64 {
	r, _ := t.Get()
	return r.Motherlode
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

// SwitchRound tears down any existing subscription and starts a fresh one
// for the given round id, under the given parent context. It returns true
// if a switch actually occurred (the id differs from the currently
// tracked one).
func (t *Tracker) SwitchRound(ctx context.Context, roundID uint64) bool {
	t.runMu.Lock()
	defer t.runMu.Unlock()

	if t.stopCh != nil && t.currentID == roundID {
		return false
	}

	if t.stopCh != nil {
		close(t.stopCh)
		<-t.doneCh
		t.stopCh = nil
		t.doneCh = nil
	}

	t.mu.Lock()
	t.round = nil
	t.mu.Unlock()
	t.currentID = roundID

	addr, _, err := chainmodel.RoundPDA(t.programID, roundID)
	if err != nil {
		t.Log.Error("RoundTracker: failed to derive round PDA", zap.Error(err))
		return true
	}

	stop := make(chan struct{})
	done := make(chan struct{})
	t.stopCh = stop
	t.doneCh = done

	go t.run(ctx, addr, stop, done)
	return true
}

func (t *Tracker) run(ctx context.Context, addr solana.PublicKey, stop, done chan struct{}) {
	defer close(done)
	for {
		select {
		case <-ctx.Done():
			return
		case <-stop:
			return
		default:
		}
		if err := t.runConn(ctx, addr, stop); err != nil && ctx.Err() == nil {
			t.Log.Warn("RoundTracker subscription error, reconnecting", zap.Error(err))
		}
		t.setConnected(false)
		select {
		case <-ctx.Done():
			return
		case <-stop:
			return
		case <-time.After(reconnectDelay):
		}
	}
}

func (t *Tracker) runConn(ctx context.Context, addr solana.PublicKey, stop chan struct{}) error {
	client, err := ws.Connect(ctx, t.wsURL)
	if err != nil {
		return err
	}
	defer client.Close()

	go func() {
		select {
		case <-ctx.Done():
		case <-stop:
		}
		client.Close()
	}()

	sub, err := client.AccountSubscribeWithOpts(addr, rpc.CommitmentConfirmed, solana.EncodingBase64)
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
		round, err := chainmodel.DecodeRound(data)
		if err != nil {
			t.Log.Warn("RoundTracker: failed to decode Round", zap.Error(err))
			continue
		}
		t.mu.Lock()
		t.round = &round
		t.mu.Unlock()
	}
}
