package botrunner

import (
	"context"
	"crypto/ed25519"
	"sync"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Kriptikz/evorebot/internal/chainmodel"
	"github.com/Kriptikz/evorebot/internal/txpipe"
)

// fakeBoard is a BoardSource test double: Get returns whatever board is
// currently set, CheckNewRound fires the configured round id exactly once.
type fakeBoard struct {
	mu         sync.Mutex
	board      chainmodel.Board
	have       bool
	newRoundID uint64
	newRoundOK bool
}

func (f *fakeBoard) Get() (chainmodel.Board, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.board, f.have
}

func (f *fakeBoard) setBoard(b chainmodel.Board) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.board = b
	f.have = true
}

func (f *fakeBoard) triggerNewRound(id uint64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.newRoundID = id
	f.newRoundOK = true
}

func (f *fakeBoard) CheckNewRound() (uint64, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.newRoundOK {
		return 0, false
	}
	f.newRoundOK = false
	return f.newRoundID, true
}

// fakeRound is a RoundSource test double recording every SwitchRound call.
type fakeRound struct {
	mu          sync.Mutex
	deployed    [chainmodel.Squares]uint64
	switchCalls []uint64
}

func (f *fakeRound) Deployed() [chainmodel.Squares]uint64 { return f.deployed }

func (f *fakeRound) SwitchRound(_ context.Context, roundID uint64) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.switchCalls = append(f.switchCalls, roundID)
	return true
}

type fakeSlot struct{ slot uint64 }

func (f *fakeSlot) Current() uint64 { return f.slot }

type fakeBlockhash struct{}

func (fakeBlockhash) Get() chainmodel.Hash { return chainmodel.Hash{} }

// fakePipeline is a PipelineSink test double that replies to every
// submission on its own goroutine, either confirming or never resolving
// (left pending until the caller's context is canceled), modeling the
// real Pipeline's "Reply is always eventually written, or the caller
// gives up via ctx" contract.
type fakePipeline struct {
	mu        sync.Mutex
	submitted []txpipe.TxRequest
	confirm   bool
}

func (f *fakePipeline) Submit(req txpipe.TxRequest) {
	f.mu.Lock()
	f.submitted = append(f.submitted, req)
	f.mu.Unlock()
	if f.confirm {
		go func() { req.Reply <- txpipe.TxResult{Confirmed: true} }()
	}
	// When not confirming, deliberately leave Reply unwritten: the real
	// Pipeline only resolves it on confirmation or eviction timeout, and
	// awaitFirstConfirmation is expected to give up via ctx instead.
}

func newTestRunner(t *testing.T) (*Runner, *fakeBoard, *fakeRound, *fakeSlot, *fakePipeline) {
	t.Helper()
	_, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	signer := solana.PrivateKey(priv)

	_, programRaw, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	programID := solana.PublicKeyFromBytes(programRaw)

	board := &fakeBoard{}
	round := &fakeRound{}
	slot := &fakeSlot{}
	pipeline := &fakePipeline{}

	r := New(0, programID, signer, solana.PublicKey{}, Config{
		Strategy:  StrategyManual,
		Params:    StrategyParams{ManualSquare: 1, ManualAmount: 1_000},
		SlotsLeft: 10,
		Bankroll:  10_000,
		Attempts:  1,
	})
	r.Board = board
	r.Round = round
	r.Slot = slot
	r.Blockhash = fakeBlockhash{}
	r.Pipeline = pipeline

	return r, board, round, slot, pipeline
}

// E1: happy path. A round is open and within the deploy window; the
// pipeline confirms the submission and the bot ends up Deployed.
func TestRunnerHappyPathDeploy(t *testing.T) {
	r, board, _, slot, pipeline := newTestRunner(t)
	pipeline.confirm = true

	board.setBoard(chainmodel.Board{RoundID: 7, StartSlot: 100, EndSlot: 200})
	slot.slot = 195 // 5 slots remaining, <= cfg.SlotsLeft(10)

	r.step(context.Background())

	assert.Equal(t, "Deployed", r.State.Phase.String())
	require.NotNil(t, r.State.LastDeployedRound)
	assert.Equal(t, uint64(7), *r.State.LastDeployedRound)
	assert.Equal(t, uint64(1_000), r.State.DeployedAmount)
	assert.Equal(t, uint64(1), r.State.RoundsParticipated)
	require.Len(t, pipeline.submitted, 1)
}

// E3: a deploy is attempted but no confirmation ever lands before the
// round's window closes. Expected: rounds_missed += 1, and phase reflects
// whether a prior deployment is still awaiting checkpoint.
func TestRunnerMissedDeployWithoutPriorDeploymentGoesIdle(t *testing.T) {
	r, board, _, slot, pipeline := newTestRunner(t)
	pipeline.confirm = false

	// The round has already closed by the time confirmation is checked.
	board.setBoard(chainmodel.Board{RoundID: 7, StartSlot: 100, EndSlot: 150})
	slot.slot = 160

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	r.deploy(ctx, chainmodel.Board{RoundID: 7, StartSlot: 100, EndSlot: 150}, r.config())

	assert.Equal(t, uint64(1), r.State.RoundsMissed)
	assert.Nil(t, r.State.LastDeployedRound)
	assert.Equal(t, "Idle", r.State.Phase.String())
}

func TestRunnerMissedDeployWithPriorDeploymentGoesCheckpointing(t *testing.T) {
	r, board, _, slot, pipeline := newTestRunner(t)
	pipeline.confirm = false
	r.State.RecordDeployment(6, 500)

	board.setBoard(chainmodel.Board{RoundID: 7, StartSlot: 100, EndSlot: 150})
	slot.slot = 160

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	r.deploy(ctx, chainmodel.Board{RoundID: 7, StartSlot: 100, EndSlot: 150}, r.config())

	assert.Equal(t, uint64(1), r.State.RoundsMissed)
	assert.Equal(t, "Checkpointing", r.State.Phase.String())
}

// A deploy attempt that fails to confirm while its round is still open
// (and not yet expired) is not a miss: the bot just retries next step.
func TestRunnerMissedDeployStillOpenRetriesWithoutCountingAsMissed(t *testing.T) {
	r, board, _, _, pipeline := newTestRunner(t)
	pipeline.confirm = false

	board.setBoard(chainmodel.Board{RoundID: 7, StartSlot: 100, EndSlot: 100_000})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	r.deploy(ctx, chainmodel.Board{RoundID: 7, StartSlot: 100, EndSlot: 100_000}, r.config())

	assert.Equal(t, uint64(0), r.State.RoundsMissed)
	assert.Equal(t, "Waiting", r.State.Phase.String())
}

// E4: round rollover. BoardTracker's latch fires a new round id; the bot
// must switch RoundTracker's subscription, checkpoint a prior deployment
// if one is pending, and reset per-round scratch state.
func TestRunnerRoundRolloverSwitchesAndCheckpoints(t *testing.T) {
	r, board, round, _, _ := newTestRunner(t)
	r.State.RecordDeployment(1, 500) // round 1 deployed, needs checkpoint

	// Board itself reports idle (no open round yet) so step() returns
	// right after handling the rollover, keeping this test focused on
	// the switch/checkpoint/reset behavior alone.
	board.setBoard(chainmodel.Board{RoundID: 2, EndSlot: ^uint64(0)})
	board.triggerNewRound(2)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	r.step(ctx)

	require.Len(t, round.switchCalls, 1)
	assert.Equal(t, uint64(2), round.switchCalls[0])
	require.NotNil(t, r.State.LastCheckpointedRound)
	assert.Equal(t, uint64(1), *r.State.LastCheckpointedRound)
	assert.Equal(t, uint64(2), r.State.CurrentRoundID)
	assert.Equal(t, "Waiting", r.State.Phase.String())
}

// CheckNewRound is a one-shot latch: a second step() with no further
// rollover must not re-switch or re-checkpoint.
func TestRunnerRoundRolloverLatchFiresOnce(t *testing.T) {
	r, board, round, _, _ := newTestRunner(t)
	board.setBoard(chainmodel.Board{RoundID: 2, EndSlot: ^uint64(0)})
	board.triggerNewRound(2)

	r.step(context.Background())
	r.step(context.Background())

	assert.Len(t, round.switchCalls, 1)
}
