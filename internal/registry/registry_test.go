package registry

import (
	"testing"

	"github.com/local/assistantbridge/internal/store"
)

func TestSetOnlineOffline(t *testing.T) {
	r := New()
	if r.IsOnline(store.AssistantClaude) {
		t.Fatal("expected claude offline initially")
	}

	r.SetOnline(store.AssistantClaude, "s1")
	if !r.IsOnline(store.AssistantClaude) {
		t.Fatal("expected claude online after SetOnline")
	}
	if sid, ok := r.GetSessionID(store.AssistantClaude); !ok || sid != "s1" {
		t.Fatalf("GetSessionID = (%q, %v), want (s1, true)", sid, ok)
	}

	r.SetOffline(store.AssistantClaude)
	if r.IsOnline(store.AssistantClaude) {
		t.Fatal("expected claude offline after SetOffline")
	}
}

func TestSetOnlineReplacesSession(t *testing.T) {
	r := New()
	r.SetOnline(store.AssistantCodex, "s1")
	r.SetOnline(store.AssistantCodex, "s2")
	sid, ok := r.GetSessionID(store.AssistantCodex)
	if !ok || sid != "s2" {
		t.Fatalf("GetSessionID = (%q, %v), want (s2, true)", sid, ok)
	}
}

func TestOnlineListIsSorted(t *testing.T) {
	r := New()
	r.SetOnline(store.AssistantCodex, "s1")
	r.SetOnline(store.AssistantClaude, "s2")

	got := r.OnlineList()
	want := []store.AssistantId{store.AssistantClaude, store.AssistantCodex}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("OnlineList()[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestClear(t *testing.T) {
	r := New()
	r.SetOnline(store.AssistantClaude, "s1")
	r.SetOnline(store.AssistantCodex, "s2")
	r.Clear()
	if len(r.OnlineList()) != 0 {
		t.Fatal("expected empty registry after Clear")
	}
}
