// Package minertrack batch-polls each active bot's Miner account and
// fans the results out to the dashboard. Batched over a single RPC round
// trip (evoreclient.Client.GetMiners) rather than one subscription per
// bot, since the corpus of managed miners can be large. Grounded on
// original_source/bot/src/miner_tracker.rs.
package minertrack

import (
	"context"
	"sync"
	"time"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"

	"github.com/Kriptikz/evorebot/internal/chainmodel"
	"github.com/Kriptikz/evorebot/internal/evoreclient"
	"github.com/Kriptikz/evorebot/internal/tui"
)

const pollInterval = 1 * time.Second

// Bot pairs a tracked authority with the index its updates are tagged with.
type Bot struct {
	Index     int
	Authority solana.PublicKey
}

// Tracker batch-polls a fixed set of bots' Miner accounts.
type Tracker struct {
	Log *zap.Logger

	client *evoreclient.Client
	bots   []Bot
	tuiCh  tui.Chan

	mu    sync.RWMutex
	state map[int]chainmodel.Miner
}

// New creates a Tracker for the given bots.
func New(client *evoreclient.Client, bots []Bot, tuiCh tui.Chan) *Tracker {
	return &Tracker{
		Log:    zap.NewNop(),
		client: client,
		bots:   bots,
		tuiCh:  tuiCh,
		state:  make(map[int]chainmodel.Miner, len(bots)),
	}
}

// Get returns the last polled Miner state for a bot index.
func (t *Tracker) Get(botIndex int) (chainmodel.Miner, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	m, ok := t.state[botIndex]
	return m, ok
}

// Run polls all tracked bots' Miner accounts every second until ctx is
// canceled.
func (t *Tracker) Run(ctx context.Context) {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.pollOnce(ctx)
		}
	}
}

func (t *Tracker) pollOnce(ctx context.Context) {
	if len(t.bots) == 0 {
		return
	}
	authorities := make([]solana.PublicKey, len(t.bots))
	for i, b := range t.bots {
		authorities[i] = b.Authority
	}

	rctx, cancel := evoreclient.WithDefaultTimeout(ctx)
	miners, err := t.client.GetMiners(rctx, authorities)
	cancel()
	if err != nil {
		t.Log.Warn("MinerTracker: batch poll failed", zap.Error(err))
		return
	}

	for i, m := range miners {
		if m == nil {
			continue
		}
		botIndex := t.bots[i].Index
		t.mu.Lock()
		t.state[botIndex] = *m
		t.mu.Unlock()

		tui.Emit(t.tuiCh, tui.Update{
			Kind: tui.KindMinerDataUpdate,
			MinerDataUpdate: &tui.MinerDataUpdate{
				BotIndex: botIndex,
				Deployed: m.Deployed,
				RoundID:  m.RoundID,
			},
		})
	}
}
