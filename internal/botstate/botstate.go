// Package botstate tracks one bot's lifecycle through the round phases.
// Ported directly from original_source/bot/src/bot_state.rs.
package botstate

import "github.com/gagliardetto/solana-go"

// Phase is a bot's position in the round lifecycle.
type Phase int

const (
	PhaseIdle Phase = iota
	PhasePaused
	PhaseLoading
	PhaseWaiting
	PhaseDeploying
	PhaseDeployed
	PhaseCheckpointing
	PhaseClaiming
)

// String renders the phase for logging and TUI display.
func (p Phase) String() string {
	switch p {
	case PhasePaused:
		return "Paused"
	case PhaseLoading:
		return "Loading"
	case PhaseIdle:
		return "Idle"
	case PhaseWaiting:
		return "Waiting"
	case PhaseDeploying:
		return "Deploying"
	case PhaseDeployed:
		return "Deployed"
	case PhaseCheckpointing:
		return "Checkpointing"
	case PhaseClaiming:
		return "Claiming"
	default:
		return "Unknown"
	}
}

// State is the runtime state for a bot during operation.
type State struct {
	Phase Phase

	IsPaused    bool
	NeedsReload bool

	CurrentRoundID      uint64
	LastDeployedRound   *uint64
	LastCheckpointedRound *uint64

	PendingSignatures []solana.Signature
	DeployedAmount    uint64

	RoundsParticipated uint64
	RoundsWon          uint64
	RoundsSkipped      uint64
	RoundsMissed       uint64

	StartingClaimableSol uint64
	CurrentClaimableSol  uint64
	StartingOre          uint64
	CurrentOre           uint64

	PreCheckpointSol uint64
	PreCheckpointOre uint64
}

// New creates a fresh State in phase Idle.
func New() *State {
	return &State{Phase: PhaseIdle}
}

// AlreadyDeployed reports whether the bot has already deployed to roundID.
func (s *State) AlreadyDeployed(roundID uint64) bool {
	return s.LastDeployedRound != nil && *s.LastDeployedRound == roundID
}

// NeedsCheckpoint reports whether a settled deployment is awaiting checkpoint.
func (s *State) NeedsCheckpoint() bool {
	if s.LastDeployedRound == nil {
		return false
	}
	if s.LastCheckpointedRound == nil {
		return true
	}
	return *s.LastDeployedRound > *s.LastCheckpointedRound
}

// RecordDeployment records a successful deployment for a round.
func (s *State) RecordDeployment(roundID uint64, amount uint64) {
	id := roundID
	s.LastDeployedRound = &id
	s.DeployedAmount = amount
	s.RoundsParticipated++
	s.PendingSignatures = nil
}

// RecordMissed records a round the bot failed to get a confirmed
// deployment into before its window closed, per spec.md §4.10.
func (s *State) RecordMissed() {
	s.RoundsMissed++
}

// StorePreCheckpoint snapshots pre-checkpoint reward values for delta calc.
func (s *State) StorePreCheckpoint(rewardsSol, rewardsOre uint64) {
	s.PreCheckpointSol = rewardsSol
	s.PreCheckpointOre = rewardsOre
}

// ProcessCheckpoint applies a checkpoint result and updates session stats.
func (s *State) ProcessCheckpoint(roundID uint64, rewardsSol, rewardsOre uint64) {
	id := roundID
	s.LastCheckpointedRound = &id

	solDelta := saturatingSub(rewardsSol, s.PreCheckpointSol)
	oreDelta := saturatingSub(rewardsOre, s.PreCheckpointOre)

	if solDelta > 0 || oreDelta > 0 {
		s.RoundsWon++
	}

	s.CurrentClaimableSol = rewardsSol
	s.CurrentOre = rewardsOre
}

func saturatingSub(a, b uint64) uint64 {
	if a < b {
		return 0
	}
	return a - b
}

// InitStartingValues seeds the P&L baseline on the first stats update.
func (s *State) InitStartingValues(claimableSol, ore uint64) {
	if s.StartingClaimableSol == 0 && s.StartingOre == 0 {
		s.StartingClaimableSol = claimableSol
		s.CurrentClaimableSol = claimableSol
		s.StartingOre = ore
		s.CurrentOre = ore
	}
}

// SolPnl returns signed SOL profit-and-loss since session start.
func (s *State) SolPnl() int64 {
	return int64(s.CurrentClaimableSol) - int64(s.StartingClaimableSol)
}

// OrePnl returns signed ORE profit-and-loss since session start.
func (s *State) OrePnl() int64 {
	return int64(s.CurrentOre) - int64(s.StartingOre)
}

// SetPhase transitions to a new phase.
func (s *State) SetPhase(phase Phase) {
	s.Phase = phase
}

// ResetForRound clears per-round scratch state when entering a new round.
func (s *State) ResetForRound(roundID uint64) {
	s.CurrentRoundID = roundID
	s.DeployedAmount = 0
	s.PendingSignatures = nil
}

// Pause transitions to Paused.
func (s *State) Pause() {
	s.IsPaused = true
	s.Phase = PhasePaused
}

// Unpause resumes to Loading and marks a reload as needed.
func (s *State) Unpause() {
	s.IsPaused = false
	s.NeedsReload = true
	s.Phase = PhaseLoading
}

// TogglePause flips the pause state.
func (s *State) TogglePause() {
	if s.IsPaused {
		s.Unpause()
	} else {
		s.Pause()
	}
}

// TakeNeedsReload reports and clears the reload flag.
func (s *State) TakeNeedsReload() bool {
	needs := s.NeedsReload
	s.NeedsReload = false
	return needs
}
