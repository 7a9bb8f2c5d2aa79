package dispatcher

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/local/assistantbridge/internal/peerexec"
	"github.com/local/assistantbridge/internal/registry"
	"github.com/local/assistantbridge/internal/store"
)

func newTestDispatcher(t *testing.T) (*Dispatcher, store.Store, *registry.ClientRegistry) {
	t.Helper()
	st, err := store.Open(context.Background(), ":memory:")
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	reg := registry.New()
	peerExecCfg := peerexec.Config{Path: "/nonexistent/codex-binary-for-tests"}
	return New(st, reg, nil, peerExecCfg, nil), st, reg
}

func TestSendMessageRejectsSelfAddress(t *testing.T) {
	d, _, _ := newTestDispatcher(t)
	_, err := d.SendMessage(context.Background(), SendMessageRequest{
		Sender: store.AssistantClaude, Target: store.AssistantClaude, Content: "hi",
	})
	if err == nil {
		t.Fatal("expected self-addressed message to be rejected")
	}
}

func TestSendMessageOnlineTargetDelivers(t *testing.T) {
	d, _, reg := newTestDispatcher(t)
	reg.SetOnline(store.AssistantCodex, "session-1")

	result, err := d.SendMessage(context.Background(), SendMessageRequest{
		Sender: store.AssistantClaude, Target: store.AssistantCodex, Content: "hi", WaitForResponse: false,
	})
	if err != nil {
		t.Fatalf("SendMessage: %v", err)
	}
	if result.Status != store.MessageDelivered {
		t.Errorf("status = %s, want delivered", result.Status)
	}
}

func TestSendMessageOfflineClaudeEnqueues(t *testing.T) {
	d, st, _ := newTestDispatcher(t)

	result, err := d.SendMessage(context.Background(), SendMessageRequest{
		Sender: store.AssistantCodex, Target: store.AssistantClaude, Content: "hi",
	})
	if err != nil {
		t.Fatalf("SendMessage: %v", err)
	}
	if result.Status != store.MessagePending {
		t.Errorf("status = %s, want pending (enqueued)", result.Status)
	}

	entries, err := st.DequeueMessages(context.Background(), store.AssistantClaude, 10)
	if err != nil {
		t.Fatalf("DequeueMessages: %v", err)
	}
	if len(entries) != 1 || entries[0].MessageID != result.MessageID {
		t.Errorf("expected the new message to be queued, got %+v", entries)
	}
}

func TestSendMessageOfflineCodexTiersToExecAndRecordsFailure(t *testing.T) {
	d, _, _ := newTestDispatcher(t)

	result, err := d.SendMessage(context.Background(), SendMessageRequest{
		Sender: store.AssistantClaude, Target: store.AssistantCodex, Content: "why is this failing",
	})
	if err != nil {
		t.Fatalf("SendMessage: %v", err)
	}
	if result.Response != nil {
		t.Errorf("expected no response from an unreachable codex binary, got %+v", result.Response)
	}
	if result.InvocationError == "" {
		t.Error("expected an invocation error to be recorded")
	}
}

func TestWaitForResponseFindsExistingResponse(t *testing.T) {
	d, st, _ := newTestDispatcher(t)
	ctx := context.Background()

	conv := &store.Conversation{CreatedBy: store.AssistantClaude}
	if err := st.CreateConversation(ctx, conv); err != nil {
		t.Fatalf("CreateConversation: %v", err)
	}
	original := &store.Message{ID: "orig", ConversationID: conv.ID, Sender: store.AssistantClaude, Target: store.AssistantCodex, Content: "q", MessageType: store.MessageTypeMessage, Priority: store.PriorityNormal}
	if err := st.CreateMessage(ctx, original); err != nil {
		t.Fatalf("CreateMessage: %v", err)
	}
	reply := &store.Message{ID: "reply", ConversationID: conv.ID, Sender: store.AssistantCodex, Target: store.AssistantClaude, Content: "a", MessageType: store.MessageTypeMessage, Priority: store.PriorityNormal, ResponseToID: &original.ID}
	if err := st.CreateMessage(ctx, reply); err != nil {
		t.Fatalf("CreateMessage: %v", err)
	}

	resp, ok := d.WaitForResponse(ctx, original.ID, 1000)
	if !ok || resp.ID != "reply" {
		t.Errorf("WaitForResponse = %+v, %v", resp, ok)
	}
}

func TestWaitForResponseTimesOut(t *testing.T) {
	d, _, _ := newTestDispatcher(t)
	start := time.Now()
	_, ok := d.WaitForResponse(context.Background(), "no-such-message", 200)
	if ok {
		t.Error("expected no response to be found")
	}
	if time.Since(start) < 200*time.Millisecond {
		t.Error("expected WaitForResponse to honor the timeout")
	}
}

func TestBuildPromptUsesMostRecentMessages(t *testing.T) {
	d, st, _ := newTestDispatcher(t)
	ctx := context.Background()

	conv := &store.Conversation{CreatedBy: store.AssistantClaude}
	if err := st.CreateConversation(ctx, conv); err != nil {
		t.Fatalf("CreateConversation: %v", err)
	}

	sender, target := store.AssistantClaude, store.AssistantCodex
	for i := 0; i < 25; i++ {
		msg := &store.Message{
			ConversationID: conv.ID,
			Sender:         sender,
			Target:         target,
			Content:        "turn-" + string(rune('a'+i)),
			MessageType:    store.MessageTypeMessage,
			Priority:       store.PriorityNormal,
		}
		if err := st.CreateMessage(ctx, msg); err != nil {
			t.Fatalf("CreateMessage %d: %v", i, err)
		}
		sender, target = target, sender
	}

	prompt, err := d.buildPrompt(ctx, conv.ID, "new content")
	if err != nil {
		t.Fatalf("buildPrompt: %v", err)
	}

	if strings.Contains(prompt, "turn-a") || strings.Contains(prompt, "turn-d") {
		t.Errorf("prompt should drop the oldest turns, got:\n%s", prompt)
	}
	if !strings.Contains(prompt, "turn-"+string(rune('a'+24))) {
		t.Errorf("prompt should include the most recent turn, got:\n%s", prompt)
	}
	if !strings.Contains(prompt, "New message:\nnew content") {
		t.Errorf("prompt missing appended new content, got:\n%s", prompt)
	}
}
