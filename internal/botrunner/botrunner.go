// Package botrunner drives one bot's cooperative loop through the round
// lifecycle: sample trackers, decide whether to deploy, submit through
// the tx pipeline, and settle via checkpoint. Grounded on spec.md §4.11
// and the bot main loop in original_source/bot/src/coordinator.rs.
package botrunner

import (
	"context"
	"encoding/binary"
	"sync/atomic"
	"time"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"

	"github.com/Kriptikz/evorebot/internal/botstate"
	"github.com/Kriptikz/evorebot/internal/chainmodel"
	"github.com/Kriptikz/evorebot/internal/evcalc"
	"github.com/Kriptikz/evorebot/internal/shutdown"
	"github.com/Kriptikz/evorebot/internal/tui"
	"github.com/Kriptikz/evorebot/internal/txpipe"
)

// BoardSource is the subset of *boardtrack.Tracker BotRunner consumes.
type BoardSource interface {
	Get() (chainmodel.Board, bool)
	CheckNewRound() (roundID uint64, ok bool)
}

// RoundSource is the subset of *roundtrack.Tracker BotRunner consumes.
type RoundSource interface {
	Deployed() [chainmodel.Squares]uint64
	SwitchRound(ctx context.Context, roundID uint64) bool
}

// SlotSource is the subset of *slottrack.Tracker BotRunner consumes.
type SlotSource interface {
	Current() uint64
}

// ShredSource is the subset of *shredwatch.Watcher BotRunner consumes.
type ShredSource interface {
	Slot() uint64
}

// BlockhashSource is the subset of *blockhash.Cache BotRunner consumes.
type BlockhashSource interface {
	Get() chainmodel.Hash
}

// PipelineSink is the subset of *txpipe.Pipeline BotRunner consumes.
type PipelineSink interface {
	Submit(req txpipe.TxRequest)
}

// Strategy selects how a bot turns an EvAllocator result into a stake.
type Strategy int

const (
	StrategyEV Strategy = iota
	StrategyPercentage
	StrategyManual
)

// StrategyParams is a tagged union keyed by the owning Config's Strategy.
type StrategyParams struct {
	Percent      float64 // StrategyPercentage: fraction of bankroll to commit to the top +EV square
	ManualSquare int     // StrategyManual: fixed square index
	ManualAmount uint64  // StrategyManual: fixed stake amount
}

// Config is a bot's runtime-tunable configuration. Swapped as a whole
// unit via atomic.Pointer so BotRunner never observes a torn read while
// Coordinator applies an update.
type Config struct {
	Name            string
	AuthID          uint64
	Strategy        Strategy
	Params          StrategyParams
	SlotsLeft       uint64 // deploy window: slots_remaining <= SlotsLeft triggers deploy
	Bankroll        uint64
	Attempts        int
	PriorityFee     uint64
	JitoTip         uint64
	PausedOnStartup bool
}

const defaultClaimTimeout = 30 * time.Second
const pauseSleepInterval = 250 * time.Millisecond
const idleSleepInterval = 100 * time.Millisecond

// Runner drives a single bot through the round lifecycle.
type Runner struct {
	Log *zap.Logger

	Index     int
	ProgramID solana.PublicKey
	Signer    solana.PrivateKey
	Manager   solana.PublicKey

	Board     BoardSource
	Round     RoundSource
	Slot      SlotSource
	Shred     ShredSource // optional; nil disables the early-warning path
	Blockhash BlockhashSource
	Pipeline  PipelineSink
	Shutdown  shutdown.Signal
	TuiCh     tui.Chan

	cfg   atomic.Pointer[Config]
	State *botstate.State
}

// New creates a Runner in phase Idle (or Paused, if Config says so).
func New(index int, programID solana.PublicKey, signer solana.PrivateKey, manager solana.PublicKey, cfg Config) *Runner {
	r := &Runner{
		Log:       zap.NewNop(),
		Index:     index,
		ProgramID: programID,
		Signer:    signer,
		Manager:   manager,
		State:     botstate.New(),
	}
	r.cfg.Store(&cfg)
	if cfg.PausedOnStartup {
		r.State.Pause()
	}
	return r
}

// UpdateConfig atomically swaps the runtime-tunable config. In-flight
// submissions are unaffected.
func (r *Runner) UpdateConfig(cfg Config) {
	r.cfg.Store(&cfg)
}

func (r *Runner) config() Config {
	return *r.cfg.Load()
}

// Run executes the cooperative main loop until ctx is canceled or the
// shutdown signal is raised.
func (r *Runner) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil || r.Shutdown.IsShutdown() {
			return
		}
		r.step(ctx)
		time.Sleep(idleSleepInterval)
	}
}

func (r *Runner) step(ctx context.Context) {
	if r.State.IsPaused {
		time.Sleep(pauseSleepInterval)
		return
	}

	board, haveBoard := r.Board.Get()
	slot := r.effectiveSlot()

	if roundID, ok := r.Board.CheckNewRound(); ok {
		r.Round.SwitchRound(ctx, roundID)
		if r.State.NeedsCheckpoint() {
			r.checkpoint(ctx, roundID)
		}
		r.State.ResetForRound(roundID)
		r.setPhase(botstate.PhaseWaiting)
	}

	if !haveBoard || board.IsIdle() {
		return
	}
	if r.State.AlreadyDeployed(board.RoundID) {
		r.setPhase(botstate.PhaseDeployed)
		return
	}
	if board.IsExpired(slot) {
		// The round's deploy window closed before BoardTracker rolled
		// over to the next round id; wait for CheckNewRound rather than
		// racing a deploy attempt into a round that can no longer accept it.
		r.setPhase(botstate.PhaseWaiting)
		return
	}

	var slotsRemaining uint64
	if board.EndSlot > slot {
		slotsRemaining = board.EndSlot - slot
	}

	cfg := r.config()
	if slotsRemaining > cfg.SlotsLeft {
		r.setPhase(botstate.PhaseWaiting)
		return
	}

	r.deploy(ctx, board, cfg)
}

// effectiveSlot returns the newer of SlotTracker's confirmed slot and
// the shred watcher's first-shred estimate, so a deploy window closing
// at board.EndSlot is noticed as early as possible.
func (r *Runner) effectiveSlot() uint64 {
	slot := r.Slot.Current()
	if r.Shred == nil {
		return slot
	}
	if fast := r.Shred.Slot(); fast > slot {
		return fast
	}
	return slot
}

func (r *Runner) deploy(ctx context.Context, board chainmodel.Board, cfg Config) {
	ev := evcalc.Allocate(r.Round.Deployed())
	square, amount := pickAllocation(cfg, ev)
	if amount == 0 {
		r.State.RoundsSkipped++
		return
	}

	r.setPhase(botstate.PhaseDeploying)

	attempts := cfg.Attempts
	if attempts <= 0 {
		attempts = 4
	}

	sinks := make([]chan txpipe.TxResult, attempts)
	for i := 0; i < attempts; i++ {
		tx, err := r.buildDeployTx(board.RoundID, square, amount, cfg)
		if err != nil {
			r.Log.Warn("botrunner: failed to build deploy tx", zap.Error(err))
			continue
		}
		reply := make(chan txpipe.TxResult, 1)
		sinks[i] = reply
		r.Pipeline.Submit(txpipe.TxRequest{Transaction: tx, Label: "deploy", Reply: reply})
	}

	if _, ok := r.awaitFirstConfirmation(ctx, sinks); !ok {
		r.handleMissedDeploy(board.RoundID)
		return
	}

	r.State.RecordDeployment(board.RoundID, amount)
	r.setPhase(botstate.PhaseDeployed)
	tui.Emit(r.TuiCh, tui.Update{
		Kind:       tui.KindDeployment,
		Deployment: &tui.Deployment{BotIndex: r.Index, RoundID: board.RoundID, Amount: amount},
	})
}

func (r *Runner) awaitFirstConfirmation(ctx context.Context, sinks []chan txpipe.TxResult) (txpipe.TxResult, bool) {
	cases := make(chan txpipe.TxResult, len(sinks))
	for _, sink := range sinks {
		if sink == nil {
			continue
		}
		go func(ch chan txpipe.TxResult) {
			select {
			case res := <-ch:
				if res.Confirmed {
					select {
					case cases <- res:
					default:
					}
				}
			case <-ctx.Done():
			}
		}(sink)
	}

	select {
	case res := <-cases:
		return res, true
	case <-ctx.Done():
		return txpipe.TxResult{}, false
	case <-time.After(defaultClaimTimeout):
		return txpipe.TxResult{}, false
	}
}

// handleMissedDeploy implements spec.md §4.10's missed-round semantics:
// if the round is still open, the deploy attempt simply failed this
// cycle and the next step() retries it. If the round has since closed
// without a confirmation, it counts as a miss and the phase reflects
// whether a prior deployment still needs a checkpoint.
func (r *Runner) handleMissedDeploy(roundID uint64) {
	slot := r.effectiveSlot()
	board, haveBoard := r.Board.Get()
	if haveBoard && board.RoundID == roundID && !board.IsExpired(slot) {
		r.setPhase(botstate.PhaseWaiting)
		return
	}

	r.State.RecordMissed()
	if r.State.NeedsCheckpoint() {
		r.setPhase(botstate.PhaseCheckpointing)
	} else {
		r.setPhase(botstate.PhaseIdle)
	}
}

func (r *Runner) checkpoint(ctx context.Context, newRoundID uint64) {
	r.setPhase(botstate.PhaseCheckpointing)
	r.State.StorePreCheckpoint(r.State.CurrentClaimableSol, r.State.CurrentOre)

	r.setPhase(botstate.PhaseClaiming)
	// Claiming is best-effort and sends no claim transaction: the phase
	// lasts until defaultClaimTimeout elapses or ctx is canceled, and the
	// bot then moves on to the next round.
	claimCtx, cancel := context.WithTimeout(ctx, defaultClaimTimeout)
	defer cancel()
	<-claimCtx.Done()

	r.State.ProcessCheckpoint(newRoundID-1, r.State.CurrentClaimableSol, r.State.CurrentOre)
	tui.Emit(r.TuiCh, tui.Update{
		Kind: tui.KindCheckpointResult,
		CheckpointResult: &tui.CheckpointResult{
			BotIndex: r.Index,
			RoundID:  newRoundID - 1,
			SolDelta: r.State.SolPnl(),
			OreDelta: r.State.OrePnl(),
		},
	})
}

func (r *Runner) setPhase(phase botstate.Phase) {
	if r.State.Phase == phase {
		return
	}
	r.State.SetPhase(phase)
	tui.Emit(r.TuiCh, tui.Update{
		Kind:        tui.KindPhaseChange,
		PhaseChange: &tui.PhaseChange{BotIndex: r.Index, PhaseName: phase.String()},
	})
}

// pickAllocation turns an EvAllocator result into a concrete (square,
// amount) pair according to the bot's configured strategy.
func pickAllocation(cfg Config, ev evcalc.BoardEV) (square int, amount uint64) {
	switch cfg.Strategy {
	case StrategyManual:
		return cfg.Params.ManualSquare, cfg.Params.ManualAmount
	case StrategyPercentage:
		best := bestPositiveSquare(ev)
		if best < 0 {
			return 0, 0
		}
		amount := uint64(float64(cfg.Bankroll) * cfg.Params.Percent)
		return best, amount
	default: // StrategyEV
		best := bestPositiveSquare(ev)
		if best < 0 {
			return 0, 0
		}
		stake := ev.Squares[best].OptimalStake
		if stake > cfg.Bankroll {
			stake = cfg.Bankroll
		}
		return best, stake
	}
}

func bestPositiveSquare(ev evcalc.BoardEV) int {
	best := -1
	var bestProfit int64
	for i, sq := range ev.Squares {
		if !sq.IsPositive {
			continue
		}
		if best == -1 || sq.ExpectedProfit > bestProfit {
			best = i
			bestProfit = sq.ExpectedProfit
		}
	}
	return best
}

func (r *Runner) buildDeployTx(roundID uint64, square int, amount uint64, cfg Config) (*solana.Transaction, error) {
	minerAddr, _, err := chainmodel.MinerPDA(r.ProgramID, r.Signer.PublicKey())
	if err != nil {
		return nil, err
	}
	boardAddr, _, err := chainmodel.BoardPDA(r.ProgramID)
	if err != nil {
		return nil, err
	}
	roundAddr, _, err := chainmodel.RoundPDA(r.ProgramID, roundID)
	if err != nil {
		return nil, err
	}

	data := make([]byte, 1+8+1+8+8+8)
	data[0] = 1 // deploy instruction discriminator
	binary.LittleEndian.PutUint64(data[1:9], roundID)
	data[9] = byte(square)
	binary.LittleEndian.PutUint64(data[10:18], amount)
	binary.LittleEndian.PutUint64(data[18:26], cfg.PriorityFee)
	binary.LittleEndian.PutUint64(data[26:34], cfg.JitoTip)

	instr := solana.NewInstruction(r.ProgramID, solana.AccountMetaSlice{
		solana.NewAccountMeta(r.Signer.PublicKey(), true, true),
		solana.NewAccountMeta(minerAddr, true, false),
		solana.NewAccountMeta(boardAddr, false, false),
		solana.NewAccountMeta(roundAddr, true, false),
	}, data)

	blockhash := r.Blockhash.Get()
	tx, err := solana.NewTransaction([]solana.Instruction{instr}, blockhash, solana.TransactionPayer(r.Signer.PublicKey()))
	if err != nil {
		return nil, err
	}
	_, err = tx.Sign(func(key solana.PublicKey) *solana.PrivateKey {
		if key.Equals(r.Signer.PublicKey()) {
			return &r.Signer
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return tx, nil
}
