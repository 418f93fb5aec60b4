package minertrack

import "testing"

func TestGetBeforeFirstPoll(t *testing.T) {
	tr := New(nil, []Bot{{Index: 0}}, nil)
	if _, ok := tr.Get(0); ok {
		t.Fatalf("expected no miner data before first poll")
	}
}

func TestPollOnceSkipsWhenNoBots(t *testing.T) {
	tr := New(nil, nil, nil)
	tr.pollOnce(nil)
}

func TestTreasuryGetBeforeFirstPoll(t *testing.T) {
	tt := NewTreasuryTracker(nil, nil)
	if _, ok := tt.Get(); ok {
		t.Fatalf("expected no treasury data before first poll")
	}
}
