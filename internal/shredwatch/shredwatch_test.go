package shredwatch

import "testing"

func TestSlotZeroBeforeAnyUpdate(t *testing.T) {
	w := New("wss://example.invalid")
	if got := w.Slot(); got != 0 {
		t.Fatalf("expected 0 before first update, got %d", got)
	}
}

func TestSubscribeAndUnsubscribe(t *testing.T) {
	w := New("wss://example.invalid")
	received := make(chan uint64, 1)
	cancel := w.Subscribe(func(slot uint64) { received <- slot })
	w.bus.Publish(busKey, uint64(42))

	select {
	case slot := <-received:
		if slot != 42 {
			t.Fatalf("expected slot 42, got %d", slot)
		}
	default:
		t.Fatal("expected callback to fire synchronously via EventBus")
	}

	cancel()
}
