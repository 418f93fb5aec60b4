// Package coordinator owns the shared service bundle and spawns one
// BotRunner per configured bot. Grounded on
// original_source/bot/src/coordinator.rs and on the errgroup-supervised
// service startup idiom used across the example pack for multi-service
// processes.
package coordinator

import (
	"context"
	"sync"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Kriptikz/evorebot/internal/blockhash"
	"github.com/Kriptikz/evorebot/internal/boardtrack"
	"github.com/Kriptikz/evorebot/internal/botrunner"
	"github.com/Kriptikz/evorebot/internal/evoreclient"
	"github.com/Kriptikz/evorebot/internal/fastsend"
	"github.com/Kriptikz/evorebot/internal/keypair"
	"github.com/Kriptikz/evorebot/internal/minertrack"
	"github.com/Kriptikz/evorebot/internal/roundtrack"
	"github.com/Kriptikz/evorebot/internal/rpsmeter"
	"github.com/Kriptikz/evorebot/internal/shredwatch"
	"github.com/Kriptikz/evorebot/internal/shutdown"
	"github.com/Kriptikz/evorebot/internal/slottrack"
	"github.com/Kriptikz/evorebot/internal/tui"
	"github.com/Kriptikz/evorebot/internal/txpipe"
)

// SharedServices is the bundle of long-lived trackers and singletons
// every BotRunner reads from.
type SharedServices struct {
	Log *zap.Logger

	RPS       *rpsmeter.Tracker
	Client    *evoreclient.Client
	Blockhash *blockhash.Cache
	Slot      *slottrack.Tracker
	Shred     *shredwatch.Watcher // optional; nil if no shred-tier endpoint is configured
	Board     *boardtrack.Tracker
	Round     *roundtrack.Tracker
	Miners    *minertrack.Tracker
	Treasury  *minertrack.TreasuryTracker
	Sender    *fastsend.Sender
	Pipeline  *txpipe.Pipeline
	Shutdown  shutdown.Signal
	TuiCh     tui.Chan
}

// Coordinator owns SharedServices and the set of spawned bots.
type Coordinator struct {
	Log *zap.Logger

	services  SharedServices
	programID solana.PublicKey

	mu   sync.Mutex
	bots map[int]*botrunner.Runner
}

// New creates a Coordinator over an already-constructed service bundle.
func New(programID solana.PublicKey, services SharedServices) *Coordinator {
	return &Coordinator{
		Log:       zap.NewNop(),
		services:  services,
		programID: programID,
		bots:      make(map[int]*botrunner.Runner),
	}
}

// StartServices brings up every shared tracker and the tx pipeline,
// returning once ctx is canceled or any service's goroutine returns an
// error.
func (c *Coordinator) StartServices(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error { c.services.Blockhash.Run(gctx); return nil })
	g.Go(func() error { c.services.Slot.Run(gctx); return nil })
	if c.services.Shred != nil {
		g.Go(func() error { return c.services.Shred.Run(gctx) })
	}
	g.Go(func() error { c.services.Board.Run(gctx); return nil })
	g.Go(func() error { c.services.Miners.Run(gctx); return nil })
	g.Go(func() error { c.services.Treasury.Run(gctx); return nil })
	g.Go(func() error { c.services.Sender.Run(gctx); return nil })
	g.Go(func() error { c.services.Pipeline.Run(gctx); return nil })

	return g.Wait()
}

// SpawnBot installs a bot's runtime config and starts its cooperative
// loop in a new goroutine.
func (c *Coordinator) SpawnBot(ctx context.Context, index int, signer solana.PrivateKey, manager solana.PublicKey, cfg botrunner.Config) {
	runner := botrunner.New(index, c.programID, signer, manager, cfg)
	runner.Log = c.Log
	runner.Board = c.services.Board
	runner.Round = c.services.Round
	runner.Slot = c.services.Slot
	if c.services.Shred != nil {
		// Assigning a nil *shredwatch.Watcher straight to the
		// botrunner.ShredSource interface would produce a non-nil
		// interface wrapping a nil pointer; only assign when non-nil so
		// Runner.effectiveSlot's r.Shred == nil check stays meaningful.
		runner.Shred = c.services.Shred
	}
	runner.Blockhash = c.services.Blockhash
	runner.Pipeline = c.services.Pipeline
	runner.Shutdown = c.services.Shutdown
	runner.TuiCh = c.services.TuiCh

	c.mu.Lock()
	c.bots[index] = runner
	c.mu.Unlock()

	c.Log.Info("spawning bot",
		zap.Int("index", index),
		zap.String("name", cfg.Name),
		zap.String("signer", keypair.ShortDisplay(signer.PublicKey())))

	go runner.Run(ctx)
}

// UpdateBotConfig atomically applies a runtime-tunable config update to
// an already-spawned bot. In-flight submissions are unaffected.
func (c *Coordinator) UpdateBotConfig(index int, cfg botrunner.Config) bool {
	c.mu.Lock()
	runner, ok := c.bots[index]
	c.mu.Unlock()
	if !ok {
		return false
	}
	runner.UpdateConfig(cfg)
	return true
}

// IsRPCConnected reports the shared slot tracker's RPC-fallback liveness.
func (c *Coordinator) IsRPCConnected() bool {
	return c.services.Slot.IsRPCConnected()
}

// IsSlotWSConnected reports the slot tracker's websocket liveness.
func (c *Coordinator) IsSlotWSConnected() bool {
	return c.services.Slot.IsWSConnected()
}

// IsBoardWSConnected reports the board tracker's websocket liveness.
func (c *Coordinator) IsBoardWSConnected() bool {
	return c.services.Board.IsConnected()
}

// IsRoundWSConnected reports the round tracker's websocket liveness.
func (c *Coordinator) IsRoundWSConnected() bool {
	return c.services.Round.IsConnected()
}

// RPSRate returns the shared request-rate tracker's instantaneous rate.
func (c *Coordinator) RPSRate() uint32 {
	return c.services.RPS.Rate()
}

// RPSTotal returns the shared request-rate tracker's lifetime total.
func (c *Coordinator) RPSTotal() uint64 {
	return c.services.RPS.Total()
}
