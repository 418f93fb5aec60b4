// Package txpipe decouples submission from confirmation: a submitter
// task pushes transactions out through FastSender, a confirmer task
// polls signature status in batches and evicts entries that time out.
// Grounded on original_source/bot/src/tx_pipeline.rs, with the
// insert-timestamp eviction the Rust source's own comments note it
// lacks (see SPEC_FULL.md §9 decision).
package txpipe

import (
	"context"
	"sync"
	"time"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"

	"github.com/Kriptikz/evorebot/internal/evoreclient"
	"github.com/Kriptikz/evorebot/internal/fastsend"
	"github.com/Kriptikz/evorebot/internal/metrics"
)

const (
	confirmTick    = 500 * time.Millisecond
	confirmTimeout = 30 * time.Second
	maxBatchStatus = 256
)

// TxRequest is one submission carried through the pipeline.
type TxRequest struct {
	Transaction *solana.Transaction
	Label       string
	Reply       chan TxResult
}

// TxResult is the single reply every TxRequest is guaranteed to receive.
type TxResult struct {
	Signature  solana.Signature
	Confirmed  bool
	Error      string
	SlotLanded *uint64
}

type pendingEntry struct {
	reply     chan TxResult
	insertedAt time.Time
}

// Pipeline wires a FastSender submitter to a polling confirmer.
type Pipeline struct {
	Log *zap.Logger

	sender *fastsend.Sender
	client *evoreclient.Client

	requests chan TxRequest

	mu      sync.Mutex
	pending map[solana.Signature]pendingEntry
}

// New creates a Pipeline. Call Run to start its background tasks.
func New(sender *fastsend.Sender, client *evoreclient.Client) *Pipeline {
	return &Pipeline{
		Log:      zap.NewNop(),
		sender:   sender,
		client:   client,
		requests: make(chan TxRequest, 4096),
		pending:  make(map[solana.Signature]pendingEntry),
	}
}

// Submit enqueues a transaction for sending and confirmation tracking.
// The caller must read exactly one TxResult off req.Reply.
func (p *Pipeline) Submit(req TxRequest) {
	p.requests <- req
}

// Run starts the submitter and confirmer loops until ctx is canceled.
func (p *Pipeline) Run(ctx context.Context) {
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		p.runSubmitter(ctx)
	}()
	go func() {
		defer wg.Done()
		p.runConfirmer(ctx)
	}()
	wg.Wait()
}

func (p *Pipeline) runSubmitter(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case req := <-p.requests:
			sig, err := p.sender.SendTransaction(req.Transaction)
			if err != nil {
				reply(req.Reply, TxResult{Confirmed: false, Error: err.Error()})
				continue
			}
			p.mu.Lock()
			p.pending[sig] = pendingEntry{reply: req.Reply, insertedAt: time.Now()}
			p.mu.Unlock()
		}
	}
}

func (p *Pipeline) runConfirmer(ctx context.Context) {
	ticker := time.NewTicker(confirmTick)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.confirmOnce(ctx)
		}
	}
}

func (p *Pipeline) confirmOnce(ctx context.Context) {
	p.mu.Lock()
	sigs := make([]solana.Signature, 0, len(p.pending))
	for sig := range p.pending {
		sigs = append(sigs, sig)
		if len(sigs) == maxBatchStatus {
			break
		}
	}
	p.mu.Unlock()

	if len(sigs) == 0 {
		p.evictTimeouts()
		return
	}

	rctx, cancel := evoreclient.WithDefaultTimeout(ctx)
	statuses, err := p.client.GetSignatureStatusesBatch(rctx, sigs)
	cancel()
	if err != nil {
		p.Log.Debug("TxPipeline: batch status query failed", zap.Error(err))
		p.evictTimeouts()
		return
	}

	for i, status := range statuses {
		if status == nil {
			continue
		}
		sig := sigs[i]
		p.mu.Lock()
		entry, ok := p.pending[sig]
		if ok {
			delete(p.pending, sig)
		}
		p.mu.Unlock()
		if !ok {
			continue
		}

		if status.Err != nil {
			reply(entry.reply, TxResult{Signature: sig, Confirmed: false, Error: formatChainError(status.Err)})
			continue
		}
		slot := status.Slot
		reply(entry.reply, TxResult{Signature: sig, Confirmed: true, SlotLanded: &slot})
	}

	p.evictTimeouts()
}

func (p *Pipeline) evictTimeouts() {
	now := time.Now()
	p.mu.Lock()
	var evicted []pendingEntry
	var evictedSigs []solana.Signature
	for sig, entry := range p.pending {
		if now.Sub(entry.insertedAt) > confirmTimeout {
			evicted = append(evicted, entry)
			evictedSigs = append(evictedSigs, sig)
		}
	}
	for _, sig := range evictedSigs {
		delete(p.pending, sig)
	}
	p.mu.Unlock()

	for i, entry := range evicted {
		metrics.ConfirmationsTimedOut.Inc()
		reply(entry.reply, TxResult{Signature: evictedSigs[i], Confirmed: false, Error: "confirmation timeout"})
	}
}

func reply(ch chan TxResult, result TxResult) {
	if ch == nil {
		return
	}
	select {
	case ch <- result:
	default:
	}
}

func formatChainError(err interface{}) string {
	if s, ok := err.(string); ok {
		return s
	}
	if e, ok := err.(error); ok {
		return e.Error()
	}
	return "transaction failed"
}
