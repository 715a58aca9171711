//go:build linux

package port

import (
	"testing"
	"time"
)

func TestEventfdPairDeliversRaise(t *testing.T) {
	a, b, err := EventfdPair()
	if err != nil {
		t.Fatalf("eventfd pair: %v", err)
	}
	defer a.Close()
	defer b.Close()

	got := make(chan struct{}, 8)
	b.Subscribe(func() { got <- struct{}{} })

	if err := a.Raise(); err != nil {
		t.Fatalf("raise: %v", err)
	}
	select {
	case <-got:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for eventfd handler")
	}
}

func TestEventfdCloseStopsWatcher(t *testing.T) {
	a, b, err := EventfdPair()
	if err != nil {
		t.Fatalf("eventfd pair: %v", err)
	}
	defer a.Close()

	b.Subscribe(func() {})
	if err := b.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := b.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
}
