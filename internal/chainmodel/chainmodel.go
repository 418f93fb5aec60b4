// Package chainmodel holds the wire-level account layouts for the game
// program: Board, Round, Miner, Manager, Treasury. Account data arrives
// base64-encoded from the RPC/websocket layer with an 8-byte discriminator
// prefix, matching the "steel" account convention the program is built on.
package chainmodel

import (
	"encoding/binary"
	"fmt"

	"github.com/gagliardetto/solana-go"
)

const discriminatorLen = 8

const (
	discriminatorBoard    uint64 = 1
	discriminatorRound    uint64 = 2
	discriminatorMiner    uint64 = 3
	discriminatorManager  uint64 = 4
	discriminatorTreasury uint64 = 5
)

// Hash is the chain's content hash used as a submission freshness nonce.
type Hash = solana.Hash

// Squares is the fixed number of outcomes each round.
const Squares = 25

// Board is the single authoritative record of the current round's window.
type Board struct {
	RoundID   uint64
	StartSlot uint64
	EndSlot   uint64
}

// IsIdle reports whether no round is currently open.
func (b Board) IsIdle() bool {
	return b.EndSlot == ^uint64(0)
}

// IsExpired reports whether an open round's deploy window has already
// closed as of slot, distinct from IsIdle (which only catches the
// explicit sentinel end slot, not an open round the tracker simply
// hasn't rolled over yet).
func (b Board) IsExpired(slot uint64) bool {
	return !b.IsIdle() && slot >= b.EndSlot
}

// Round holds the live per-square stake state for one round.
type Round struct {
	ID             uint64
	Deployed       [Squares]uint64
	TotalDeployed  uint64
	Motherlode     uint64
}

// Miner is a single bot's on-chain position.
type Miner struct {
	Authority   solana.PublicKey
	Deployed    [Squares]uint64
	RoundID     uint64
	RewardsSol  uint64
	RewardsOre  uint64
}

// Manager is the managing account that owns per-bot managed-miner PDAs.
type Manager struct {
	Authority solana.PublicKey
}

// Treasury holds network-wide reward-pool statistics.
type Treasury struct {
	Balance        uint64
	Motherlode     uint64
	TotalStaked    uint64
	TotalUnclaimed uint64
	TotalRefined   uint64
}

func checkDiscriminator(data []byte, want uint64) error {
	if len(data) < discriminatorLen {
		return fmt.Errorf("chainmodel: account data too short (%d bytes)", len(data))
	}
	got := binary.LittleEndian.Uint64(data[:discriminatorLen])
	if got != want {
		return fmt.Errorf("chainmodel: discriminator mismatch: got %d want %d", got, want)
	}
	return nil
}

// DecodeBoard parses a Board account's raw bytes.
func DecodeBoard(data []byte) (Board, error) {
	if err := checkDiscriminator(data, discriminatorBoard); err != nil {
		return Board{}, err
	}
	body := data[discriminatorLen:]
	if len(body) < 24 {
		return Board{}, fmt.Errorf("chainmodel: Board body too short")
	}
	return Board{
		RoundID:   binary.LittleEndian.Uint64(body[0:8]),
		StartSlot: binary.LittleEndian.Uint64(body[8:16]),
		EndSlot:   binary.LittleEndian.Uint64(body[16:24]),
	}, nil
}

// DecodeRound parses a Round account's raw bytes.
func DecodeRound(data []byte) (Round, error) {
	if err := checkDiscriminator(data, discriminatorRound); err != nil {
		return Round{}, err
	}
	body := data[discriminatorLen:]
	want := 8 + Squares*8 + 8 + 8
	if len(body) < want {
		return Round{}, fmt.Errorf("chainmodel: Round body too short")
	}
	var r Round
	r.ID = binary.LittleEndian.Uint64(body[0:8])
	off := 8
	for i := 0; i < Squares; i++ {
		r.Deployed[i] = binary.LittleEndian.Uint64(body[off : off+8])
		off += 8
	}
	r.TotalDeployed = binary.LittleEndian.Uint64(body[off : off+8])
	off += 8
	r.Motherlode = binary.LittleEndian.Uint64(body[off : off+8])
	return r, nil
}

// DecodeMiner parses a Miner account's raw bytes.
func DecodeMiner(data []byte) (Miner, error) {
	if err := checkDiscriminator(data, discriminatorMiner); err != nil {
		return Miner{}, err
	}
	body := data[discriminatorLen:]
	want := 32 + Squares*8 + 8 + 8 + 8
	if len(body) < want {
		return Miner{}, fmt.Errorf("chainmodel: Miner body too short")
	}
	var m Miner
	copy(m.Authority[:], body[0:32])
	off := 32
	for i := 0; i < Squares; i++ {
		m.Deployed[i] = binary.LittleEndian.Uint64(body[off : off+8])
		off += 8
	}
	m.RoundID = binary.LittleEndian.Uint64(body[off : off+8])
	off += 8
	m.RewardsSol = binary.LittleEndian.Uint64(body[off : off+8])
	off += 8
	m.RewardsOre = binary.LittleEndian.Uint64(body[off : off+8])
	return m, nil
}

// DecodeManager parses a Manager account's raw bytes.
func DecodeManager(data []byte) (Manager, error) {
	if err := checkDiscriminator(data, discriminatorManager); err != nil {
		return Manager{}, err
	}
	body := data[discriminatorLen:]
	if len(body) < 32 {
		return Manager{}, fmt.Errorf("chainmodel: Manager body too short")
	}
	var m Manager
	copy(m.Authority[:], body[0:32])
	return m, nil
}

// DecodeTreasury parses a Treasury account's raw bytes.
func DecodeTreasury(data []byte) (Treasury, error) {
	if err := checkDiscriminator(data, discriminatorTreasury); err != nil {
		return Treasury{}, err
	}
	body := data[discriminatorLen:]
	if len(body) < 40 {
		return Treasury{}, fmt.Errorf("chainmodel: Treasury body too short")
	}
	return Treasury{
		Balance:        binary.LittleEndian.Uint64(body[0:8]),
		Motherlode:     binary.LittleEndian.Uint64(body[8:16]),
		TotalStaked:    binary.LittleEndian.Uint64(body[16:24]),
		TotalUnclaimed: binary.LittleEndian.Uint64(body[24:32]),
		TotalRefined:   binary.LittleEndian.Uint64(body[32:40]),
	}, nil
}

// BoardPDA derives the single well-known Board account address.
func BoardPDA(programID solana.PublicKey) (solana.PublicKey, uint8, error) {
	return solana.FindProgramAddress([][]byte{[]byte("board")}, programID)
}

// RoundPDA derives the Round account address for a given round id.
func RoundPDA(programID solana.PublicKey, roundID uint64) (solana.PublicKey, uint8, error) {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], roundID)
	return solana.FindProgramAddress([][]byte{[]byte("round"), buf[:]}, programID)
}

// MinerPDA derives the Miner account address for an authority.
func MinerPDA(programID solana.PublicKey, authority solana.PublicKey) (solana.PublicKey, uint8, error) {
	return solana.FindProgramAddress([][]byte{[]byte("miner"), authority[:]}, programID)
}

// ManagedMinerAuthPDA derives the managed-miner authority PDA for a manager + auth id.
func ManagedMinerAuthPDA(programID solana.PublicKey, manager solana.PublicKey, authID uint64) (solana.PublicKey, uint8, error) {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], authID)
	return solana.FindProgramAddress([][]byte{[]byte("managed_miner"), manager[:], buf[:]}, programID)
}

// TreasuryPDA derives the single well-known Treasury account address.
func TreasuryPDA(programID solana.PublicKey) (solana.PublicKey, uint8, error) {
	return solana.FindProgramAddress([][]byte{[]byte("treasury")}, programID)
}
