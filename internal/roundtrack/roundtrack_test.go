package roundtrack

import (
	"context"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
)

func TestSwitchRoundDetectsChange(t *testing.T) {
	tr := New("ws://127.0.0.1:1", solana.PublicKey{})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if !tr.SwitchRound(ctx, 5) {
		t.Fatalf("expected first switch to round 5 to report a change")
	}
	if tr.SwitchRound(ctx, 5) {
		t.Fatalf("expected switching to the same round id to be a no-op")
	}
	if !tr.SwitchRound(ctx, 6) {
		t.Fatalf("expected switch to round 6 to report a change")
	}

	time.Sleep(10 * time.Millisecond)
}

func TestEmptyStateDefaults(t *testing.T) {
	tr := New("ws://127.0.0.1:1", solana.PublicKey{})
	if _, ok := tr.Get(); ok {
		t.Fatalf("expected no round before first push")
	}
	if tr.TotalDeployed() != 0 {
		t.Fatalf("expected zero total deployed before first push")
	}
	if tr.Motherlode() != 0 {
		t.Fatalf("expected zero motherlode before first push")
	}
	if tr.IsConnected() {
		t.Fatalf("expected not connected before subscription established")
	}
}
