package minertrack

import (
	"context"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/Kriptikz/evorebot/internal/chainmodel"
	"github.com/Kriptikz/evorebot/internal/evoreclient"
	"github.com/Kriptikz/evorebot/internal/tui"
)

const treasuryPollInterval = 2 * time.Second

// TreasuryTracker polls the single well-known Treasury account on a
// slower cadence than per-bot miner polling, since it is shared network
// state rather than per-bot state. Restores a feature present in
// original_source/bot/src/treasury_tracker.rs that the distilled spec
// omitted.
type TreasuryTracker struct {
	Log *zap.Logger

	client *evoreclient.Client
	tuiCh  tui.Chan

	data atomic.Pointer[chainmodel.Treasury]
}

// NewTreasuryTracker creates a TreasuryTracker.
func NewTreasuryTracker(client *evoreclient.Client, tuiCh tui.Chan) *TreasuryTracker {
	return &TreasuryTracker{Log: zap.NewNop(), client: client, tuiCh: tuiCh}
}

// Get returns the last-polled Treasury state.
func (t *TreasuryTracker) Get() (chainmodel.Treasury, bool) {
	p := t.data.Load()
	if p == nil {
		return chainmodel.Treasury{}, false
	}
	return *p, true
}

// Run polls the Treasury account every 2s until ctx is canceled.
func (t *TreasuryTracker) Run(ctx context.Context) {
	ticker := time.NewTicker(treasuryPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			rctx, cancel := evoreclient.WithDefaultTimeout(ctx)
			data, err := t.client.GetTreasury(rctx)
			cancel()
			if err != nil {
				t.Log.Debug("TreasuryTracker: poll failed", zap.Error(err))
				continue
			}
			t.data.Store(&data)
			tui.Emit(t.tuiCh, tui.Update{
				Kind:           tui.KindTreasuryUpdate,
				TreasuryUpdate: &tui.TreasuryUpdate{Data: data},
			})
		}
	}
}
