package eventlog

import (
	"errors"
	"testing"
	"time"
)

func TestStoreProducesSequentialIds(t *testing.T) {
	l := New(0, 0)
	id1 := l.Store("S", "a")
	id2 := l.Store("S", "b")
	if id1 != "S:1" || id2 != "S:2" {
		t.Fatalf("got ids %q, %q", id1, id2)
	}
}

func TestReplayAfterDeliversInOrder(t *testing.T) {
	l := New(0, 0)
	for i := 0; i < 7; i++ {
		l.Store("S", i)
	}

	var got []any
	streamID, err := l.ReplayAfter("S:4", func(ev Event) error {
		got = append(got, ev.Payload)
		return nil
	})
	if err != nil {
		t.Fatalf("ReplayAfter: %v", err)
	}
	if streamID != "S" {
		t.Errorf("streamID = %q, want S", streamID)
	}
	want := []any{4, 5, 6}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("event %d = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestReplayAfterEmptyIdReturnsEmpty(t *testing.T) {
	l := New(0, 0)
	l.Store("S", "a")
	streamID, err := l.ReplayAfter("", func(Event) error { return nil })
	if err != nil || streamID != "" {
		t.Fatalf("got (%q, %v), want (\"\", nil)", streamID, err)
	}
}

func TestReplayAfterUnknownIdReturnsEmpty(t *testing.T) {
	l := New(0, 0)
	l.Store("S", "a")
	streamID, err := l.ReplayAfter("S:999", func(Event) error { return nil })
	if err != nil || streamID != "" {
		t.Fatalf("got (%q, %v), want (\"\", nil)", streamID, err)
	}
}

func TestPruneByTTLEvictsOldEvents(t *testing.T) {
	l := New(10*time.Millisecond, 0)
	id := l.Store("S", "old")
	time.Sleep(20 * time.Millisecond)
	l.Store("S", "new") // triggers prune, should evict "old"

	streamID, err := l.ReplayAfter(id, func(Event) error { return nil })
	if err != nil {
		t.Fatalf("ReplayAfter: %v", err)
	}
	if streamID != "" {
		t.Errorf("expected evicted id to yield empty replay, got stream %q", streamID)
	}
}

func TestPruneByCapTrimsHead(t *testing.T) {
	l := New(0, 3)
	for i := 0; i < 5; i++ {
		l.Store("S", i)
	}

	var got []any
	_, err := l.ReplayAfter("S:0", func(ev Event) error {
		got = append(got, ev.Payload)
		return nil
	})
	// "S:0" never existed (seq starts at 1); this exercises the
	// unknown-id path distinctly from the cap test below.
	if err != nil {
		t.Fatalf("ReplayAfter: %v", err)
	}

	streamID, err := l.ReplayAfter("S:2", func(ev Event) error {
		got = append(got, ev.Payload)
		return nil
	})
	if err != nil {
		t.Fatalf("ReplayAfter: %v", err)
	}
	if streamID != "" {
		t.Errorf("expected S:2 to have been trimmed by the cap, got replay from %q", streamID)
	}
}

func TestReplayAfterStopsOnSendError(t *testing.T) {
	l := New(0, 0)
	for i := 0; i < 3; i++ {
		l.Store("S", i)
	}
	boom := errors.New("boom")
	calls := 0
	_, err := l.ReplayAfter("S:1", func(ev Event) error {
		calls++
		return boom
	})
	if calls != 1 {
		t.Fatalf("send called %d times, want 1 (replay stops at the first error)", calls)
	}
	if !errors.Is(err, boom) {
		t.Fatalf("ReplayAfter error = %v, want %v", err, boom)
	}
}
