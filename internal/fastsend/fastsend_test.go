package fastsend

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"
)

func newTestSender(t *testing.T, sentTo *[]string, mu *sync.Mutex) *Sender {
	t.Helper()
	s := &Sender{
		Cycle:     time.Millisecond,
		Ping:      time.Hour,
		MaxSends:  4,
		BatchSize: 16,
		endpoints: []*Endpoint{{Name: "east"}, {Name: "west"}},
	}
	s.Log = zap.NewNop()
	s.submit = func(ctx context.Context, endpoint *Endpoint, raw []byte) error {
		mu.Lock()
		*sentTo = append(*sentTo, endpoint.Name)
		mu.Unlock()
		return nil
	}
	return s
}

func TestRoundRobinFanOutRespectsMaxSends(t *testing.T) {
	var sentTo []string
	var mu sync.Mutex
	s := newTestSender(t, &sentTo, &mu)

	s.mu.Lock()
	s.queue = append(s.queue, workItem{raw: []byte("tx"), maxSends: 4})
	s.mu.Unlock()

	ctx := context.Background()
	for i := 0; i < 4; i++ {
		s.cycle(ctx)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(sentTo) != 4 {
		t.Fatalf("expected exactly 4 sends, got %d", len(sentTo))
	}
	eastCount, westCount := 0, 0
	for _, name := range sentTo {
		if name == "east" {
			eastCount++
		} else {
			westCount++
		}
	}
	if eastCount != 2 || westCount != 2 {
		t.Fatalf("expected 2 east + 2 west, got %d east + %d west", eastCount, westCount)
	}
	if s.QueueLen() != 0 {
		t.Fatalf("expected queue drained after max_sends reached, got %d remaining", s.QueueLen())
	}
}

func TestSendTransactionReturnsSignatureImmediately(t *testing.T) {
	var sentTo []string
	var mu sync.Mutex
	s := newTestSender(t, &sentTo, &mu)

	var tx solana.Transaction
	tx.Signatures = []solana.Signature{{1, 2, 3}}

	sig, err := s.SendTransaction(&tx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sig != tx.Signatures[0] {
		t.Fatalf("expected returned signature to match tx signature")
	}
	if s.QueueLen() != 1 {
		t.Fatalf("expected one queued work item, got %d", s.QueueLen())
	}
}
