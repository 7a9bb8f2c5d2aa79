// Package dispatcher implements the Dispatcher (C8): the routing decision
// procedure behind send_message, tiered codex invocation, and the
// adaptive-backoff response poll, per spec.md §4.9.
package dispatcher

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/local/assistantbridge/internal/peer"
	"github.com/local/assistantbridge/internal/peerexec"
	"github.com/local/assistantbridge/internal/persona"
	"github.com/local/assistantbridge/internal/registry"
	"github.com/local/assistantbridge/internal/store"
)

// contextMessageLimit is how many prior messages are rendered into the
// prompt built for a tiered codex invocation.
const contextMessageLimit = 20

// SendMessageRequest is the input to SendMessage, gathering send_message's
// own parameters plus delegate_research/request_review's forced overrides.
type SendMessageRequest struct {
	Sender          store.AssistantId
	Target          store.AssistantId
	ConversationID  string
	Content         string
	MessageType     store.MessageType
	Priority        store.MessagePriority
	WaitForResponse bool
	TimeoutMs       int
	Agent           string
	UseOutputSchema bool
}

// SendMessageResult is the outcome of routing a message.
type SendMessageResult struct {
	MessageID       string              `json:"message_id"`
	ConversationID  string              `json:"conversation_id"`
	Status          store.MessageStatus `json:"status"`
	Response        *store.Message      `json:"response,omitempty"`
	InvocationError string              `json:"invocation_error,omitempty"`
	InvokedViaMCP   bool                `json:"invokedViaMcp,omitempty"`
}

// Dispatcher holds the shared collaborators the routing decision needs.
type Dispatcher struct {
	store      store.Store
	registry   *registry.ClientRegistry
	peer       *peer.Client
	peerExecCfg peerexec.Config
	logger     *slog.Logger
}

// New constructs a Dispatcher. peerClient may be nil if CODEX_MCP_ENABLED is
// false, in which case routing falls straight through to Tier B.
func New(st store.Store, reg *registry.ClientRegistry, peerClient *peer.Client, peerExecCfg peerexec.Config, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		store:       st,
		registry:    reg,
		peer:        peerClient,
		peerExecCfg: peerExecCfg,
		logger:      logger.With("component", "dispatcher"),
	}
}

// SendMessage implements spec.md §4.9 steps 1-5.
func (d *Dispatcher) SendMessage(ctx context.Context, req SendMessageRequest) (*SendMessageResult, error) {
	if req.Sender == req.Target {
		return nil, fmt.Errorf("cannot send a message to oneself")
	}

	conversationID, err := d.resolveConversation(ctx, req)
	if err != nil {
		return nil, err
	}

	messageType := req.MessageType
	if messageType == "" {
		messageType = store.MessageTypeMessage
	}
	priority := req.Priority
	if priority == "" {
		priority = store.PriorityNormal
	}

	msg := &store.Message{
		ID:             uuid.NewString(),
		ConversationID: conversationID,
		Sender:         req.Sender,
		Target:         req.Target,
		Content:        req.Content,
		MessageType:    messageType,
		Priority:       priority,
		Status:         store.MessagePending,
	}
	if err := d.store.CreateMessage(ctx, msg); err != nil {
		return nil, fmt.Errorf("create message: %w", err)
	}

	result := &SendMessageResult{MessageID: msg.ID, ConversationID: conversationID, Status: store.MessagePending}

	switch {
	case d.registry.IsOnline(req.Target):
		if err := d.store.UpdateMessageStatus(ctx, msg.ID, store.MessageDelivered); err != nil {
			return nil, fmt.Errorf("mark delivered: %w", err)
		}
		result.Status = store.MessageDelivered

	case req.Target == store.AssistantCodex:
		if err := d.invokeCodexTiered(ctx, req, msg, result); err != nil {
			return nil, err
		}

	default:
		maxAttempts := 5
		if err := d.store.EnqueueMessage(ctx, msg.ID, req.Target, priority.Int(), maxAttempts); err != nil {
			return nil, fmt.Errorf("enqueue message: %w", err)
		}
	}

	if req.WaitForResponse && result.Response == nil {
		timeoutMs := req.TimeoutMs
		if timeoutMs <= 0 {
			timeoutMs = 60000
		}
		if resp, ok := d.WaitForResponse(ctx, msg.ID, timeoutMs); ok {
			result.Response = resp
		}
	}

	return result, nil
}

func (d *Dispatcher) resolveConversation(ctx context.Context, req SendMessageRequest) (string, error) {
	if req.ConversationID != "" {
		conv, err := d.store.GetConversation(ctx, req.ConversationID)
		if err != nil {
			return "", fmt.Errorf("conversation not found: %w", err)
		}
		return conv.ID, nil
	}

	conv := &store.Conversation{
		ID:        uuid.NewString(),
		CreatedBy: req.Sender,
		Status:    store.ConversationActive,
	}
	if err := d.store.CreateConversation(ctx, conv); err != nil {
		return "", fmt.Errorf("create conversation: %w", err)
	}
	return conv.ID, nil
}

// invokeCodexTiered implements spec.md §4.9 step 4: persona selection,
// context-window prompt construction, Tier A (persistent peer) then Tier B
// (one-shot exec) on a null Tier A response.
func (d *Dispatcher) invokeCodexTiered(ctx context.Context, req SendMessageRequest, msg *store.Message, result *SendMessageResult) error {
	p := selectPersona(req.Agent, req.Content)

	prompt, err := d.buildPrompt(ctx, msg.ConversationID, req.Content)
	if err != nil {
		return err
	}

	var response *string
	if d.peer != nil {
		response, err = d.peer.SendMessage(ctx, prompt, msg.ID, p)
		if err != nil {
			return fmt.Errorf("tier A invocation: %w", err)
		}
		if response != nil {
			result.InvokedViaMCP = true
		}
	}

	if response == nil {
		timeout := time.Duration(300000) * time.Millisecond
		if req.TimeoutMs > 0 {
			timeout = time.Duration(req.TimeoutMs) * time.Millisecond
		}
		execResult, err := peerexec.Exec(ctx, d.peerExecCfg, d.store, store.AssistantCodex, msg.ID, prompt, req.MessageType, timeout, req.UseOutputSchema)
		if err != nil {
			return fmt.Errorf("tier B invocation: %w", err)
		}
		if execResult.Response != nil {
			response = execResult.Response
		} else {
			result.InvocationError = execResult.InvocationError
		}
	}

	if response == nil {
		return nil
	}

	responseType := responseMessageTypeFor(msg.MessageType)
	replyMsg := &store.Message{
		ID:             uuid.NewString(),
		ConversationID: msg.ConversationID,
		Sender:         msg.Target,
		Target:         msg.Sender,
		Content:        *response,
		MessageType:    responseType,
		Priority:       store.PriorityNormal,
		Status:         store.MessagePending,
		ResponseToID:   &msg.ID,
	}
	if err := d.store.CreateMessage(ctx, replyMsg); err != nil {
		return fmt.Errorf("create response message: %w", err)
	}
	if err := d.store.UpdateMessageStatus(ctx, msg.ID, store.MessageResponded); err != nil {
		return fmt.Errorf("mark responded: %w", err)
	}

	result.Status = store.MessageResponded
	result.Response = replyMsg
	return nil
}

func responseMessageTypeFor(requestType store.MessageType) store.MessageType {
	switch requestType {
	case store.MessageTypeResearchRequest:
		return store.MessageTypeResearchResponse
	case store.MessageTypeReviewRequest:
		return store.MessageTypeReviewResponse
	default:
		return store.MessageTypeMessage
	}
}

func selectPersona(agent, content string) persona.Persona {
	if agent != "" {
		if p, ok := persona.ByName(agent); ok {
			return p
		}
	}
	return persona.Select(content)
}

// buildPrompt renders the last contextMessageLimit messages of the
// conversation as "[sender]: content" blocks, then appends the new content.
func (d *Dispatcher) buildPrompt(ctx context.Context, conversationID, content string) (string, error) {
	total, err := d.store.CountMessages(ctx, conversationID)
	if err != nil {
		return "", fmt.Errorf("count conversation history: %w", err)
	}
	offset := total - contextMessageLimit
	if offset < 0 {
		offset = 0
	}
	history, err := d.store.ListMessages(ctx, conversationID, contextMessageLimit, offset)
	if err != nil {
		return "", fmt.Errorf("load conversation history: %w", err)
	}
	if len(history) == 0 {
		return content, nil
	}

	var b strings.Builder
	for i, m := range history {
		if i > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "[%s]: %s", m.Sender, m.Content)
	}
	b.WriteString("\n\nNew message:\n")
	b.WriteString(content)
	return b.String(), nil
}

// WaitForResponse polls store.GetResponseToMessage with an adaptive backoff
// (start 100ms, times 1.5, cap 1000ms) until timeoutMs elapses.
func (d *Dispatcher) WaitForResponse(ctx context.Context, messageID string, timeoutMs int) (*store.Message, bool) {
	deadline := time.Now().Add(time.Duration(timeoutMs) * time.Millisecond)
	delay := 100 * time.Millisecond
	const maxDelay = 1000 * time.Millisecond

	for {
		resp, err := d.store.GetResponseToMessage(ctx, messageID)
		if err == nil && resp != nil {
			return resp, true
		}
		if time.Now().After(deadline) {
			return nil, false
		}

		select {
		case <-ctx.Done():
			return nil, false
		case <-time.After(delay):
		}

		delay = time.Duration(float64(delay) * 1.5)
		if delay > maxDelay {
			delay = maxDelay
		}
	}
}
