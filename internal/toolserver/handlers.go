package toolserver

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/local/assistantbridge/internal/dispatcher"
	"github.com/local/assistantbridge/internal/kgsync"
	"github.com/local/assistantbridge/internal/store"
)

// registerTools populates s.tools with every tool from spec.md §4.6's
// table. Order here matches the table's order.
func (s *Server) registerTools() {
	s.register("who_am_i", "Identify the calling assistant.", whoAmISchema, handleWhoAmI)
	s.register("create_conversation", "Create a new conversation owned by the caller.", createConversationSchema, handleCreateConversation)
	s.register("list_conversations", "List conversations, most recently updated first.", listConversationsSchema, handleListConversations)
	s.register("get_conversation", "Fetch a single conversation by id.", getConversationSchema, handleGetConversation)
	s.register("close_conversation", "Mark a conversation completed, optionally syncing its summary.", closeConversationSchema, handleCloseConversation)
	s.register("send_message", "Send a message to the other assistant, optionally waiting for a reply.", sendMessageSchema, handleSendMessage)
	s.register("get_response", "Poll for the response to a previously sent message.", getResponseSchema, handleGetResponse)
	s.register("get_history", "List a conversation's messages in chronological order.", getHistorySchema, handleGetHistory)
	s.register("mark_message_read", "Mark a message addressed to the caller as read.", markMessageReadSchema, handleMarkMessageRead)
	s.register("share_context", "Share an opaque piece of context with the other assistant.", shareContextSchema, handleShareContext)
	s.register("get_shared_context", "Fetch a single shared-context row by id.", getSharedContextSchema, handleGetSharedContext)
	s.register("list_shared_context", "List shared-context rows, optionally scoped to a conversation.", listSharedContextSchema, handleListSharedContext)
	s.register("delegate_research", "Delegate a research question to the other assistant.", delegateResearchSchema, handleDelegateResearch)
	s.register("request_review", "Request a review from the other assistant.", requestReviewSchema, handleRequestReview)
}

func (s *Server) register(name, description, schema string, handler handlerFunc) {
	s.tools[name] = toolDef{description: description, schema: schema, handler: handler}
}

// --- who_am_i ---

type whoAmIResult struct {
	ClientID    string `json:"client_id"`
	Description string `json:"description"`
}

func clientDescription(id store.AssistantId) string {
	switch id {
	case store.AssistantClaude:
		return "Claude Code CLI"
	case store.AssistantCodex:
		return "Codex CLI"
	default:
		return "unidentified client"
	}
}

func handleWhoAmI(ctx context.Context, s *Server, rawArgs json.RawMessage) (any, error) {
	return whoAmIResult{ClientID: string(s.identity), Description: clientDescription(s.identity)}, nil
}

// --- create_conversation ---

type createConversationParams struct {
	Title   string `json:"title"`
	Project string `json:"project"`
}

func handleCreateConversation(ctx context.Context, s *Server, rawArgs json.RawMessage) (any, error) {
	if err := s.requireIdentity(); err != nil {
		return nil, err
	}
	p, err := decodeArgs[createConversationParams](rawArgs)
	if err != nil {
		return nil, err
	}

	conv := &store.Conversation{
		ID:        uuid.NewString(),
		CreatedBy: s.identity,
		Status:    store.ConversationActive,
	}
	if p.Title != "" {
		conv.Title = &p.Title
	}
	if p.Project != "" {
		conv.Project = &p.Project
	}
	if err := s.store.CreateConversation(ctx, conv); err != nil {
		return nil, err
	}
	return conv, nil
}

// --- list_conversations ---

type listConversationsParams struct {
	Status string `json:"status"`
	Limit  int    `json:"limit"`
	Offset int    `json:"offset"`
}

func handleListConversations(ctx context.Context, s *Server, rawArgs json.RawMessage) (any, error) {
	p, err := decodeArgs[listConversationsParams](rawArgs)
	if err != nil {
		return nil, err
	}
	status := p.Status
	if status == "" {
		status = "active"
	}
	limit := p.Limit
	if limit <= 0 {
		limit = 20
	}

	convs, err := s.store.ListConversations(ctx, status, limit, p.Offset)
	if err != nil {
		return nil, err
	}
	return map[string]any{"conversations": convs}, nil
}

// --- get_conversation ---

type getConversationParams struct {
	ConversationID string `json:"conversation_id"`
}

func handleGetConversation(ctx context.Context, s *Server, rawArgs json.RawMessage) (any, error) {
	p, err := decodeArgs[getConversationParams](rawArgs)
	if err != nil {
		return nil, err
	}
	conv, err := s.store.GetConversation(ctx, p.ConversationID)
	if err != nil {
		return nil, fmt.Errorf("conversation not found: %w", err)
	}
	return conv, nil
}

// --- close_conversation ---

type closeConversationParams struct {
	ConversationID string `json:"conversation_id"`
	Summary        string `json:"summary"`
	Sync           *bool  `json:"sync"`
}

func handleCloseConversation(ctx context.Context, s *Server, rawArgs json.RawMessage) (any, error) {
	p, err := decodeArgs[closeConversationParams](rawArgs)
	if err != nil {
		return nil, err
	}
	conv, err := s.store.GetConversation(ctx, p.ConversationID)
	if err != nil {
		return nil, fmt.Errorf("conversation not found: %w", err)
	}

	var summary *string
	if p.Summary != "" {
		summary = &p.Summary
	}
	if err := s.store.UpdateConversationStatus(ctx, conv.ID, store.ConversationCompleted, summary); err != nil {
		return nil, err
	}

	sync := p.Sync == nil || *p.Sync
	if sync && summary != nil && s.kg != nil {
		s.kg.SyncMemoryItem(context.WithoutCancel(ctx), kgsync.MemoryItem{
			Content: *summary,
			Source:  "conversation:" + conv.ID,
		})
	}

	updated, err := s.store.GetConversation(ctx, conv.ID)
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// --- send_message ---

type sendMessageParams struct {
	ConversationID  string `json:"conversation_id"`
	Target          string `json:"target"`
	Content         string `json:"content"`
	Priority        string `json:"priority"`
	WaitForResponse *bool  `json:"wait_for_response"`
	TimeoutMs       int    `json:"timeout_ms"`
	Agent           string `json:"agent"`
}

func handleSendMessage(ctx context.Context, s *Server, rawArgs json.RawMessage) (any, error) {
	if err := s.requireIdentity(); err != nil {
		return nil, err
	}
	p, err := decodeArgs[sendMessageParams](rawArgs)
	if err != nil {
		return nil, err
	}
	return s.dispatchSend(ctx, p, store.MessageTypeMessage)
}

// dispatchSend backs send_message: a Dispatcher.SendMessage call with a
// forced message type. delegate_research and request_review go through
// dispatchSendWithSchema instead.
func (s *Server) dispatchSend(ctx context.Context, p sendMessageParams, messageType store.MessageType) (*dispatcher.SendMessageResult, error) {
	target := store.AssistantId(p.Target)
	if !target.Valid() {
		return nil, fmt.Errorf("invalid target %q", p.Target)
	}
	if target == s.identity {
		return nil, fmt.Errorf("cannot send a message to oneself")
	}

	priority := store.MessagePriority(p.Priority)
	if priority == "" {
		priority = store.PriorityNormal
	}

	wait := p.WaitForResponse == nil || *p.WaitForResponse
	timeoutMs := p.TimeoutMs
	if timeoutMs <= 0 {
		timeoutMs = 60000
	}

	req := dispatcher.SendMessageRequest{
		Sender:          s.identity,
		Target:          target,
		ConversationID:  p.ConversationID,
		Content:         p.Content,
		MessageType:     messageType,
		Priority:        priority,
		WaitForResponse: wait,
		TimeoutMs:       timeoutMs,
		Agent:           p.Agent,
	}
	return s.dispatcher.SendMessage(ctx, req)
}

// --- get_response ---

type getResponseParams struct {
	MessageID string `json:"message_id"`
	TimeoutMs int    `json:"timeout_ms"`
}

type getResponseResult struct {
	Response *store.Message `json:"response"`
	Timeout  bool           `json:"timeout,omitempty"`
}

func handleGetResponse(ctx context.Context, s *Server, rawArgs json.RawMessage) (any, error) {
	p, err := decodeArgs[getResponseParams](rawArgs)
	if err != nil {
		return nil, err
	}
	timeoutMs := p.TimeoutMs
	if timeoutMs <= 0 {
		timeoutMs = 30000
	}
	resp, ok := s.dispatcher.WaitForResponse(ctx, p.MessageID, timeoutMs)
	if !ok {
		return getResponseResult{Timeout: true}, nil
	}
	return getResponseResult{Response: resp}, nil
}

// --- get_history ---

type getHistoryParams struct {
	ConversationID string `json:"conversation_id"`
	Limit          int    `json:"limit"`
	Offset         int    `json:"offset"`
}

func handleGetHistory(ctx context.Context, s *Server, rawArgs json.RawMessage) (any, error) {
	p, err := decodeArgs[getHistoryParams](rawArgs)
	if err != nil {
		return nil, err
	}
	limit := p.Limit
	if limit <= 0 {
		limit = 50
	}
	messages, err := s.store.ListMessages(ctx, p.ConversationID, limit, p.Offset)
	if err != nil {
		return nil, err
	}
	return map[string]any{"messages": messages}, nil
}

// --- mark_message_read ---

type markMessageReadParams struct {
	MessageID string `json:"message_id"`
}

func handleMarkMessageRead(ctx context.Context, s *Server, rawArgs json.RawMessage) (any, error) {
	if err := s.requireIdentity(); err != nil {
		return nil, err
	}
	p, err := decodeArgs[markMessageReadParams](rawArgs)
	if err != nil {
		return nil, err
	}

	msg, err := s.store.GetMessage(ctx, p.MessageID)
	if err != nil {
		return nil, fmt.Errorf("message not found: %w", err)
	}
	if msg.Target != s.identity {
		return nil, fmt.Errorf("%w: only %s may mark this message read", store.ErrForbiddenTransition, msg.Target)
	}
	if msg.Status == store.MessagePending || msg.Status == store.MessageDelivered {
		if err := s.store.UpdateMessageStatus(ctx, msg.ID, store.MessageRead); err != nil {
			return nil, err
		}
	}

	updated, err := s.store.GetMessage(ctx, msg.ID)
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// --- share_context / get_shared_context / list_shared_context ---

type shareContextParams struct {
	ConversationID string `json:"conversation_id"`
	ContextType    string `json:"context_type"`
	Content        string `json:"content"`
	Description    string `json:"description"`
}

func handleShareContext(ctx context.Context, s *Server, rawArgs json.RawMessage) (any, error) {
	if err := s.requireIdentity(); err != nil {
		return nil, err
	}
	p, err := decodeArgs[shareContextParams](rawArgs)
	if err != nil {
		return nil, err
	}
	ctype := store.SharedContextType(p.ContextType)
	if !ctype.Valid() {
		return nil, fmt.Errorf("invalid context_type %q", p.ContextType)
	}

	sc := &store.SharedContext{
		ID:          uuid.NewString(),
		ContextType: ctype,
		Content:     p.Content,
		SharedBy:    s.identity,
	}
	if p.ConversationID != "" {
		sc.ConversationID = &p.ConversationID
	}
	if p.Description != "" {
		sc.Description = &p.Description
	}
	if err := s.store.CreateSharedContext(ctx, sc); err != nil {
		return nil, err
	}
	return sc, nil
}

type getSharedContextParams struct {
	ContextID string `json:"context_id"`
}

func handleGetSharedContext(ctx context.Context, s *Server, rawArgs json.RawMessage) (any, error) {
	p, err := decodeArgs[getSharedContextParams](rawArgs)
	if err != nil {
		return nil, err
	}
	sc, err := s.store.GetSharedContext(ctx, p.ContextID)
	if err != nil {
		return nil, fmt.Errorf("shared context not found: %w", err)
	}
	return sc, nil
}

type listSharedContextParams struct {
	ConversationID string `json:"conversation_id"`
	Limit          int    `json:"limit"`
	Offset         int    `json:"offset"`
}

func handleListSharedContext(ctx context.Context, s *Server, rawArgs json.RawMessage) (any, error) {
	p, err := decodeArgs[listSharedContextParams](rawArgs)
	if err != nil {
		return nil, err
	}
	limit := p.Limit
	if limit <= 0 {
		limit = 20
	}
	var conversationID *string
	if p.ConversationID != "" {
		conversationID = &p.ConversationID
	}
	items, err := s.store.ListSharedContext(ctx, conversationID, limit, p.Offset)
	if err != nil {
		return nil, err
	}
	return map[string]any{"items": items}, nil
}

// --- delegate_research ---

type delegateResearchParams struct {
	Target         string `json:"target"`
	Topic          string `json:"topic"`
	Context        string `json:"context"`
	Depth          string `json:"depth"`
	ConversationID string `json:"conversation_id"`
	Sync           *bool  `json:"sync"`
}

var researchTimeoutMsByDepth = map[string]int{
	"shallow": 120000,
	"medium":  300000,
	"deep":    600000,
}

// researchDepthTail renders the depth-specific instruction appended to the
// research prompt built below.
func researchDepthTail(depth string) string {
	switch depth {
	case "shallow":
		return "Keep this shallow: a quick scan is enough, a few minutes of investigation at most."
	case "deep":
		return "Go deep: trace the relevant code paths fully and verify your conclusions against the evidence before answering."
	default:
		return "Investigate at a medium depth: enough to be confident, without an exhaustive trace."
	}
}

func handleDelegateResearch(ctx context.Context, s *Server, rawArgs json.RawMessage) (any, error) {
	if err := s.requireIdentity(); err != nil {
		return nil, err
	}
	p, err := decodeArgs[delegateResearchParams](rawArgs)
	if err != nil {
		return nil, err
	}
	depth := p.Depth
	if depth == "" {
		depth = "medium"
	}
	timeoutMs, ok := researchTimeoutMsByDepth[depth]
	if !ok {
		return nil, fmt.Errorf("invalid depth %q", depth)
	}

	var b strings.Builder
	b.WriteString("Research request: ")
	b.WriteString(p.Topic)
	if p.Context != "" {
		b.WriteString("\n\nContext:\n")
		b.WriteString(p.Context)
	}
	b.WriteString("\n\n")
	b.WriteString(researchDepthTail(depth))

	wait := true
	sendParams := sendMessageParams{
		ConversationID:  p.ConversationID,
		Target:          p.Target,
		Content:         b.String(),
		WaitForResponse: &wait,
		TimeoutMs:       timeoutMs,
	}
	result, err := s.dispatchSendWithSchema(ctx, sendParams, store.MessageTypeResearchRequest)
	if err != nil {
		return nil, err
	}

	sync := p.Sync == nil || *p.Sync
	if sync && result.Response != nil && s.kg != nil {
		s.kg.SyncMemoryItem(context.WithoutCancel(ctx), kgsync.MemoryItem{
			Content: result.Response.Content,
			Source:  "research:" + result.MessageID,
		})
	}
	return result, nil
}

// --- request_review ---

type requestReviewParams struct {
	Target         string `json:"target"`
	Content        string `json:"content"`
	ReviewType     string `json:"review_type"`
	Context        string `json:"context"`
	ConversationID string `json:"conversation_id"`
	Sync           *bool  `json:"sync"`
}

var reviewFocusTail = map[string]string{
	"code":         "Focus on correctness, edge cases, and code quality.",
	"architecture": "Focus on structure, boundaries, and long-term maintainability.",
	"security":     "Focus on security: injection, auth, secrets, and trust boundaries.",
	"performance":  "Focus on performance: hot paths, allocations, and algorithmic complexity.",
	"general":      "Give a general assessment covering whatever stands out.",
}

func handleRequestReview(ctx context.Context, s *Server, rawArgs json.RawMessage) (any, error) {
	if err := s.requireIdentity(); err != nil {
		return nil, err
	}
	p, err := decodeArgs[requestReviewParams](rawArgs)
	if err != nil {
		return nil, err
	}
	tail, ok := reviewFocusTail[p.ReviewType]
	if !ok {
		return nil, fmt.Errorf("invalid review_type %q", p.ReviewType)
	}

	var b strings.Builder
	b.WriteString("Review request (")
	b.WriteString(p.ReviewType)
	b.WriteString("):\n\n")
	b.WriteString(p.Content)
	if p.Context != "" {
		b.WriteString("\n\nContext:\n")
		b.WriteString(p.Context)
	}
	b.WriteString("\n\n")
	b.WriteString(tail)

	wait := true
	sendParams := sendMessageParams{
		ConversationID:  p.ConversationID,
		Target:          p.Target,
		Content:         b.String(),
		WaitForResponse: &wait,
		TimeoutMs:       120000,
	}
	result, err := s.dispatchSendWithSchema(ctx, sendParams, store.MessageTypeReviewRequest)
	if err != nil {
		return nil, err
	}

	sync := p.Sync == nil || *p.Sync
	if sync && result.Response != nil && s.kg != nil {
		s.kg.SyncMemoryItem(context.WithoutCancel(ctx), kgsync.MemoryItem{
			Content: result.Response.Content,
			Source:  "review:" + result.MessageID,
		})
	}
	return result, nil
}

// dispatchSendWithSchema is dispatchSend plus forcing structured output on
// the tiered codex invocation, per delegate_research/request_review's
// "forces structured output" clause.
func (s *Server) dispatchSendWithSchema(ctx context.Context, p sendMessageParams, messageType store.MessageType) (*dispatcher.SendMessageResult, error) {
	target := store.AssistantId(p.Target)
	if !target.Valid() {
		return nil, fmt.Errorf("invalid target %q", p.Target)
	}
	if target == s.identity {
		return nil, fmt.Errorf("cannot send a message to oneself")
	}

	req := dispatcher.SendMessageRequest{
		Sender:          s.identity,
		Target:          target,
		ConversationID:  p.ConversationID,
		Content:         p.Content,
		MessageType:     messageType,
		Priority:        store.PriorityNormal,
		WaitForResponse: true,
		TimeoutMs:       p.TimeoutMs,
		UseOutputSchema: true,
	}
	return s.dispatcher.SendMessage(ctx, req)
}
