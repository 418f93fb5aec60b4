// Package fastsend submits transactions to a pool of geographically
// distributed endpoints via round-robin fan-out, trading bandwidth for
// landing probability. Grounded on spec.md §4.8's own description (the
// original Rust sender.rs was elided to a stub in original_source) and
// on the fire-and-forget, multi-attempt submission philosophy of
// Jonaed13-potential-pancake's ExecutorFast.
package fastsend

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"

	"github.com/Kriptikz/evorebot/internal/evoreclient"
	"github.com/Kriptikz/evorebot/internal/metrics"
	"github.com/Kriptikz/evorebot/internal/rpsmeter"
)

const (
	defaultCycle     = 100 * time.Millisecond
	defaultPing      = 5 * time.Second
	defaultMaxSends  = 4
	defaultBatchSize = 16
)

// Endpoint is one submission target and its latest observed ping latency.
type Endpoint struct {
	Name string
	URL  string

	latencyMu sync.RWMutex
	latency   time.Duration
	reachable bool
}

// Latency returns the most recently measured round-trip latency.
func (e *Endpoint) Latency() (time.Duration, bool) {
	e.latencyMu.RLock()
	defer e.latencyMu.RUnlock()
	return e.latency, e.reachable
}

func (e *Endpoint) setLatency(d time.Duration, ok bool) {
	e.latencyMu.Lock()
	e.latency = d
	e.reachable = ok
	e.latencyMu.Unlock()
}

type workItem struct {
	raw       []byte
	signature solana.Signature
	sendCount int
	maxSends  int
}

// Sender maintains the endpoint pool and the round-robin retry queue.
type Sender struct {
	Log *zap.Logger

	Cycle     time.Duration
	Ping      time.Duration
	MaxSends  int
	BatchSize int

	endpoints []*Endpoint
	cursor    uint64

	submit     func(ctx context.Context, endpoint *Endpoint, raw []byte) error
	rps        *rpsmeter.Tracker
	httpClient *http.Client

	mu    sync.Mutex
	queue []workItem
}

// New creates a Sender over a fixed pool of endpoints. Each endpoint is
// POSTed the same raw sendTransaction JSON-RPC payload directly over
// HTTP; if an endpoint has no URL configured, submission falls back to
// the shared chain RPC client instead.
func New(endpoints []*Endpoint, client *evoreclient.Client, rps *rpsmeter.Tracker) *Sender {
	httpClient := &http.Client{Timeout: defaultCycle * 5}
	s := &Sender{
		Log:       zap.NewNop(),
		Cycle:     defaultCycle,
		Ping:      defaultPing,
		MaxSends:  defaultMaxSends,
		BatchSize: defaultBatchSize,
		endpoints: endpoints,
		rps:       rps,
		httpClient: httpClient,
	}
	s.submit = func(ctx context.Context, endpoint *Endpoint, raw []byte) error {
		if endpoint.URL == "" {
			tx, err := solana.TransactionFromBytes(raw)
			if err != nil {
				return err
			}
			_, err = client.SendTransactionNoWait(ctx, tx)
			return err
		}
		return postSendTransaction(ctx, httpClient, endpoint.URL, raw)
	}
	return s
}

type rpcRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      int           `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params"`
}

func postSendTransaction(ctx context.Context, httpClient *http.Client, url string, raw []byte) error {
	body, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		ID:      1,
		Method:  "sendTransaction",
		Params: []interface{}{
			base64.StdEncoding.EncodeToString(raw),
			map[string]interface{}{"encoding": "base64", "skipPreflight": true},
		},
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("fastsend: endpoint %s returned status %d", url, resp.StatusCode)
	}
	return nil
}

// SendTransaction serializes tx once, enqueues it for round-robin
// fan-out, and returns its signature immediately without waiting for
// any network round trip.
func (s *Sender) SendTransaction(tx *solana.Transaction) (solana.Signature, error) {
	raw, err := tx.MarshalBinary()
	if err != nil {
		return solana.Signature{}, err
	}
	sig := tx.Signatures[0]

	s.mu.Lock()
	s.queue = append(s.queue, workItem{raw: raw, signature: sig, maxSends: s.MaxSends})
	s.mu.Unlock()

	return sig, nil
}

func (s *Sender) nextEndpoint() *Endpoint {
	if len(s.endpoints) == 0 {
		return nil
	}
	idx := s.cursor % uint64(len(s.endpoints))
	s.cursor++
	return s.endpoints[idx]
}

// Run drives the fan-out worker and the latency pinger until ctx is
// canceled.
func (s *Sender) Run(ctx context.Context) {
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		s.runWorker(ctx)
	}()
	go func() {
		defer wg.Done()
		s.runPinger(ctx)
	}()
	wg.Wait()
}

func (s *Sender) runWorker(ctx context.Context) {
	ticker := time.NewTicker(s.Cycle)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.cycle(ctx)
		}
	}
}

func (s *Sender) cycle(ctx context.Context) {
	s.mu.Lock()
	n := s.BatchSize
	if n > len(s.queue) {
		n = len(s.queue)
	}
	batch := append([]workItem(nil), s.queue[:n]...)
	s.queue = s.queue[n:]
	s.mu.Unlock()

	if len(batch) == 0 {
		return
	}

	requeue := make([]workItem, 0, len(batch))
	for _, item := range batch {
		endpoint := s.nextEndpoint()
		if endpoint != nil {
			if s.rps != nil {
				s.rps.Record()
			}
			metrics.SendsDispatched.WithLabelValues(endpoint.Name).Inc()
			sctx, cancel := context.WithTimeout(ctx, s.Cycle)
			if err := s.submit(sctx, endpoint, item.raw); err != nil {
				s.Log.Debug("FastSender: submission failed", zap.String("endpoint", endpoint.Name), zap.Error(err))
			}
			cancel()
		}

		item.sendCount++
		if item.sendCount < item.maxSends {
			requeue = append(requeue, item)
		} else {
			metrics.SendsDropped.Inc()
		}
	}

	if len(requeue) > 0 {
		s.mu.Lock()
		s.queue = append(s.queue, requeue...)
		s.mu.Unlock()
	}
}

func (s *Sender) runPinger(ctx context.Context) {
	ticker := time.NewTicker(s.Ping)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, endpoint := range s.endpoints {
				start := time.Now()
				pctx, cancel := context.WithTimeout(ctx, s.Ping)
				err := s.ping(pctx, endpoint)
				cancel()
				endpoint.setLatency(time.Since(start), err == nil)
			}
		}
	}
}

// ping measures round-trip latency to endpoint via a lightweight
// getHealth RPC call. An endpoint with no URL configured (submissions
// routed through the shared chain client) is always reported reachable.
func (s *Sender) ping(ctx context.Context, endpoint *Endpoint) error {
	if endpoint.URL == "" {
		return nil
	}
	body, err := json.Marshal(rpcRequest{JSONRPC: "2.0", ID: 1, Method: "getHealth"})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint.URL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("fastsend: endpoint %s unhealthy, status %d", endpoint.URL, resp.StatusCode)
	}
	return nil
}

// QueueLen reports the current depth of the retry queue, for diagnostics.
func (s *Sender) QueueLen() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}
