// Package tui defines the outbound event contract to the terminal
// dashboard. The dashboard is a passive consumer: producers never block
// on it and its absence never stalls the core engine.
package tui

import "github.com/Kriptikz/evorebot/internal/chainmodel"

// Update is the tagged union of every message the core emits toward the
// dashboard. Exactly one of the typed fields is meaningful per Kind.
type Update struct {
	Kind Kind

	PhaseChange      *PhaseChange
	Deployment       *Deployment
	CheckpointResult *CheckpointResult
	MinerDataUpdate  *MinerDataUpdate
	TreasuryUpdate   *TreasuryUpdate
	Connectivity     *Connectivity
	Rps              *Rps
}

// Kind discriminates the Update payload.
type Kind int

const (
	KindPhaseChange Kind = iota
	KindDeployment
	KindCheckpointResult
	KindMinerDataUpdate
	KindTreasuryUpdate
	KindConnectivity
	KindRps
)

// PhaseChange announces a bot's phase transition.
type PhaseChange struct {
	BotIndex  int
	PhaseName string
}

// Deployment announces a confirmed deployment.
type Deployment struct {
	BotIndex int
	RoundID  uint64
	Amount   uint64
}

// CheckpointResult announces the outcome of a settlement checkpoint.
type CheckpointResult struct {
	BotIndex  int
	RoundID   uint64
	SolDelta  int64
	OreDelta  int64
}

// MinerDataUpdate mirrors one bot's on-chain position as polled by the
// miner tracker.
type MinerDataUpdate struct {
	BotIndex int
	Deployed [chainmodel.Squares]uint64
	RoundID  uint64
}

// TreasuryUpdate mirrors the network-wide treasury account.
type TreasuryUpdate struct {
	Data chainmodel.Treasury
}

// Connectivity carries a websocket/RPC connectivity indicator change.
type Connectivity struct {
	Name      string
	Connected bool
}

// Rps carries a request-rate reading.
type Rps struct {
	Name  string
	Rate  uint32
	Total uint64
}

// Chan is an outbound, single-consumer event stream. Producers send with
// a non-blocking best-effort semantics: Emit never blocks the caller.
type Chan chan Update

// New creates a sufficiently buffered channel that producers can treat as
// effectively unbounded for the dashboard's consumption rate.
func New() Chan {
	return make(Chan, 4096)
}

// Emit sends an update without blocking the producer; it drops the update
// if the channel is full rather than stall core logic on a slow or absent
// dashboard.
func Emit(ch Chan, u Update) {
	if ch == nil {
		return
	}
	select {
	case ch <- u:
	default:
	}
}
