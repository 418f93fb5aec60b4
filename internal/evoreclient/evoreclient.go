// Package evoreclient wraps the chain RPC client with the account
// decode layer and shared request-rate instrumentation. It is the only
// package that talks directly to solana-go's rpc package.
package evoreclient

import (
	"context"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"

	"github.com/Kriptikz/evorebot/internal/chainmodel"
	"github.com/Kriptikz/evorebot/internal/rpsmeter"
)

// Client is a thin, RPS-instrumented wrapper over the chain RPC client.
type Client struct {
	rpc        *rpc.Client
	rps        *rpsmeter.Tracker
	programID  solana.PublicKey
	commitment rpc.CommitmentType
}

// New creates a Client at the default "confirmed" commitment.
func New(rpcURL string, programID solana.PublicKey, rps *rpsmeter.Tracker) *Client {
	return &Client{
		rpc:        rpc.New(rpcURL),
		rps:        rps,
		programID:  programID,
		commitment: rpc.CommitmentConfirmed,
	}
}

// NewProcessed creates a Client at "processed" commitment, used for the
// blockhash cache which wants the freshest possible value.
func NewProcessed(rpcURL string, programID solana.PublicKey, rps *rpsmeter.Tracker) *Client {
	return &Client{
		rpc:        rpc.New(rpcURL),
		rps:        rps,
		programID:  programID,
		commitment: rpc.CommitmentProcessed,
	}
}

func (c *Client) record() {
	if c.rps != nil {
		c.rps.Record()
	}
}

// GetLatestBlockhash fetches the chain's latest blockhash.
func (c *Client) GetLatestBlockhash(ctx context.Context) (chainmodel.Hash, error) {
	c.record()
	out, err := c.rpc.GetLatestBlockhash(ctx, c.commitment)
	if err != nil {
		return chainmodel.Hash{}, err
	}
	if out == nil || out.Value == nil {
		return chainmodel.Hash{}, fmt.Errorf("evoreclient: empty GetLatestBlockhash response")
	}
	return out.Value.Blockhash, nil
}

// GetSlot fetches the current slot.
func (c *Client) GetSlot(ctx context.Context) (uint64, error) {
	c.record()
	return c.rpc.GetSlot(ctx, c.commitment)
}

func (c *Client) getAccountData(ctx context.Context, addr solana.PublicKey) ([]byte, error) {
	c.record()
	out, err := c.rpc.GetAccountInfoWithOpts(ctx, addr, &rpc.GetAccountInfoOpts{
		Encoding:   solana.EncodingBase64,
		Commitment: c.commitment,
	})
	if err != nil {
		return nil, err
	}
	if out == nil || out.Value == nil {
		return nil, rpc.ErrNotFound
	}
	return out.Value.Data.GetBinary(), nil
}

// GetBoard fetches and decodes the Board account.
func (c *Client) GetBoard(ctx context.Context) (chainmodel.Board, error) {
	addr, _, err := chainmodel.BoardPDA(c.programID)
	if err != nil {
		return chainmodel.Board{}, err
	}
	data, err := c.getAccountData(ctx, addr)
	if err != nil {
		return chainmodel.Board{}, err
	}
	return chainmodel.DecodeBoard(data)
}

// GetRound fetches and decodes the Round account for a round id.
func (c *Client) GetRound(ctx context.Context, roundID uint64) (chainmodel.Round, error) {
	addr, _, err := chainmodel.RoundPDA(c.programID, roundID)
	if err != nil {
		return chainmodel.Round{}, err
	}
	data, err := c.getAccountData(ctx, addr)
	if err != nil {
		return chainmodel.Round{}, err
	}
	return chainmodel.DecodeRound(data)
}

// GetTreasury fetches and decodes the Treasury account.
func (c *Client) GetTreasury(ctx context.Context) (chainmodel.Treasury, error) {
	addr, _, err := chainmodel.TreasuryPDA(c.programID)
	if err != nil {
		return chainmodel.Treasury{}, err
	}
	data, err := c.getAccountData(ctx, addr)
	if err != nil {
		return chainmodel.Treasury{}, err
	}
	return chainmodel.DecodeTreasury(data)
}

// GetManager fetches and decodes a Manager account, returning (zero, false)
// if the account does not exist.
func (c *Client) GetManager(ctx context.Context, addr solana.PublicKey) (chainmodel.Manager, bool, error) {
	data, err := c.getAccountData(ctx, addr)
	if err == rpc.ErrNotFound {
		return chainmodel.Manager{}, false, nil
	}
	if err != nil {
		return chainmodel.Manager{}, false, err
	}
	m, err := chainmodel.DecodeManager(data)
	return m, err == nil, err
}

// GetMiners batch-fetches miner accounts for a set of authorities in one
// round trip. The result slice has one entry per authority, nil where the
// account does not exist or failed to decode.
func (c *Client) GetMiners(ctx context.Context, authorities []solana.PublicKey) ([]*chainmodel.Miner, error) {
	if len(authorities) == 0 {
		return nil, nil
	}
	addrs := make([]solana.PublicKey, len(authorities))
	for i, auth := range authorities {
		addr, _, err := chainmodel.MinerPDA(c.programID, auth)
		if err != nil {
			return nil, err
		}
		addrs[i] = addr
	}

	c.record()
	out, err := c.rpc.GetMultipleAccountsWithOpts(ctx, addrs, &rpc.GetMultipleAccountsOpts{
		Encoding:   solana.EncodingBase64,
		Commitment: c.commitment,
	})
	if err != nil {
		return nil, err
	}

	result := make([]*chainmodel.Miner, len(addrs))
	for i, acc := range out.Value {
		if acc == nil {
			continue
		}
		m, err := chainmodel.DecodeMiner(acc.Data.GetBinary())
		if err != nil {
			continue
		}
		result[i] = &m
	}
	return result, nil
}

// SendTransactionNoWait submits a signed transaction skipping preflight
// and chain-side retries; the caller handles resubmission.
func (c *Client) SendTransactionNoWait(ctx context.Context, tx *solana.Transaction) (solana.Signature, error) {
	c.record()
	maxRetries := uint(0)
	return c.rpc.SendTransactionWithOpts(ctx, tx, rpc.TransactionOpts{
		SkipPreflight: true,
		MaxRetries:    &maxRetries,
	})
}

// SignatureStatus is a narrowed view of a confirmed/failed transaction.
type SignatureStatus struct {
	Err  interface{}
	Slot uint64
}

// GetSignatureStatusesBatch batch-queries status for up to 256 signatures.
// The result slice has one entry per signature, nil where the status is
// not yet available.
func (c *Client) GetSignatureStatusesBatch(ctx context.Context, sigs []solana.Signature) ([]*SignatureStatus, error) {
	if len(sigs) == 0 {
		return nil, nil
	}
	c.record()
	out, err := c.rpc.GetSignatureStatuses(ctx, false, sigs...)
	if err != nil {
		return nil, err
	}
	result := make([]*SignatureStatus, len(sigs))
	for i, v := range out.Value {
		if v == nil {
			continue
		}
		result[i] = &SignatureStatus{Err: v.Err, Slot: v.Slot}
	}
	return result, nil
}

// DefaultTimeout bounds any single blocking RPC call made through this
// client when no deadline has already been set by the caller.
const DefaultTimeout = 30 * time.Second

// WithDefaultTimeout wraps ctx with DefaultTimeout if it has no deadline.
func WithDefaultTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, DefaultTimeout)
}
