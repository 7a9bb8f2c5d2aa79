package store

import "time"

// AssistantId identifies one of the two assistants this bridge brokers
// between. The set is closed; Valid is the only gate that matters anywhere
// in the system.
type AssistantId string

const (
	AssistantClaude AssistantId = "claude"
	AssistantCodex  AssistantId = "codex"
)

// Valid reports whether id is one of the two recognised assistants.
func (id AssistantId) Valid() bool {
	switch id {
	case AssistantClaude, AssistantCodex:
		return true
	default:
		return false
	}
}

// ClientStatus is the stale, store-mirrored hint of an assistant's
// reachability. ClientRegistry is the authoritative answer.
type ClientStatus string

const (
	ClientOnline  ClientStatus = "online"
	ClientOffline ClientStatus = "offline"
	ClientBusy    ClientStatus = "busy"
)

func (s ClientStatus) Valid() bool {
	switch s {
	case ClientOnline, ClientOffline, ClientBusy:
		return true
	default:
		return false
	}
}

// Client is a pre-seeded row, one per AssistantId.
type Client struct {
	ID          AssistantId  `json:"id"`
	DisplayName string       `json:"display_name"`
	Status      ClientStatus `json:"status"`
	SessionID   *string      `json:"session_id,omitempty"`
	LastSeenAt  *time.Time   `json:"last_seen_at,omitempty"`
	CreatedAt   time.Time    `json:"created_at"`
}

// ConversationStatus is the lifecycle state of a Conversation.
type ConversationStatus string

const (
	ConversationActive    ConversationStatus = "active"
	ConversationPending   ConversationStatus = "pending"
	ConversationCompleted ConversationStatus = "completed"
	ConversationArchived  ConversationStatus = "archived"
)

func (s ConversationStatus) Valid() bool {
	switch s {
	case ConversationActive, ConversationPending, ConversationCompleted, ConversationArchived:
		return true
	default:
		return false
	}
}

// Conversation is a correlation bucket for messages between the two
// assistants.
type Conversation struct {
	ID        string             `json:"id"`
	Title     *string            `json:"title,omitempty"`
	Project   *string            `json:"project,omitempty"`
	Status    ConversationStatus `json:"status"`
	CreatedBy AssistantId        `json:"created_by"`
	CreatedAt time.Time          `json:"created_at"`
	UpdatedAt time.Time          `json:"updated_at"`
	Summary   *string            `json:"summary,omitempty"`
	Metadata  *string            `json:"metadata,omitempty"`
	ClosedAt  *time.Time         `json:"closed_at,omitempty"`
}

// MessageType classifies a Message's purpose.
type MessageType string

const (
	MessageTypeMessage          MessageType = "message"
	MessageTypeResearchRequest  MessageType = "research_request"
	MessageTypeResearchResponse MessageType = "research_response"
	MessageTypeReviewRequest    MessageType = "review_request"
	MessageTypeReviewResponse   MessageType = "review_response"
	MessageTypeContextShare     MessageType = "context_share"
	MessageTypeSystem           MessageType = "system"
)

func (t MessageType) Valid() bool {
	switch t {
	case MessageTypeMessage, MessageTypeResearchRequest, MessageTypeResearchResponse,
		MessageTypeReviewRequest, MessageTypeReviewResponse, MessageTypeContextShare, MessageTypeSystem:
		return true
	default:
		return false
	}
}

// MessagePriority is the urgency label attached to a Message.
type MessagePriority string

const (
	PriorityNormal MessagePriority = "normal"
	PriorityHigh   MessagePriority = "high"
	PriorityUrgent MessagePriority = "urgent"
)

func (p MessagePriority) Valid() bool {
	switch p {
	case PriorityNormal, PriorityHigh, PriorityUrgent:
		return true
	default:
		return false
	}
}

// Int maps a priority label to the integer ordering QueueEntry sorts by.
func (p MessagePriority) Int() int {
	switch p {
	case PriorityUrgent:
		return 2
	case PriorityHigh:
		return 1
	default:
		return 0
	}
}

// MessageStatus is the delivery lifecycle of a Message.
type MessageStatus string

const (
	MessagePending   MessageStatus = "pending"
	MessageDelivered MessageStatus = "delivered"
	MessageRead      MessageStatus = "read"
	MessageResponded MessageStatus = "responded"
)

func (s MessageStatus) Valid() bool {
	switch s {
	case MessagePending, MessageDelivered, MessageRead, MessageResponded:
		return true
	default:
		return false
	}
}

// Message is one directed communication from Sender to Target inside a
// Conversation.
type Message struct {
	ID             string          `json:"id"`
	ConversationID string          `json:"conversation_id"`
	Sender         AssistantId     `json:"sender"`
	Target         AssistantId     `json:"target"`
	Content        string          `json:"content"`
	MessageType    MessageType     `json:"message_type"`
	Priority       MessagePriority `json:"priority"`
	Status         MessageStatus   `json:"status"`
	ResponseToID   *string         `json:"response_to_id,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
	DeliveredAt    *time.Time      `json:"delivered_at,omitempty"`
	ReadAt         *time.Time      `json:"read_at,omitempty"`
	Metadata       *string         `json:"metadata,omitempty"`
}

// QueueEntry is a pending delivery attempt for an offline target.
type QueueEntry struct {
	ID          int64       `json:"id"`
	MessageID   string      `json:"message_id"`
	Target      AssistantId `json:"target"`
	Priority    int         `json:"priority"`
	Attempts    int         `json:"attempts"`
	MaxAttempts int         `json:"max_attempts"`
	NextAttempt time.Time   `json:"next_attempt"`
	CreatedAt   time.Time   `json:"created_at"`
}

// InvocationType distinguishes the two ways a subprocess peer is driven.
type InvocationType string

const (
	InvocationSubprocessExec InvocationType = "subprocess_exec"
	InvocationPeerMCP        InvocationType = "peer_mcp"
)

func (t InvocationType) Valid() bool {
	switch t {
	case InvocationSubprocessExec, InvocationPeerMCP:
		return true
	default:
		return false
	}
}

// InvocationStatus is the lifecycle of an Invocation audit row.
type InvocationStatus string

const (
	InvocationPending   InvocationStatus = "pending"
	InvocationRunning   InvocationStatus = "running"
	InvocationCompleted InvocationStatus = "completed"
	InvocationFailed    InvocationStatus = "failed"
	InvocationTimeout   InvocationStatus = "timeout"
)

func (s InvocationStatus) Valid() bool {
	switch s {
	case InvocationPending, InvocationRunning, InvocationCompleted, InvocationFailed, InvocationTimeout:
		return true
	default:
		return false
	}
}

// Invocation is an audit record for a single subprocess peer call.
type Invocation struct {
	ID             string           `json:"id"`
	Target         AssistantId      `json:"target"`
	MessageID      string           `json:"message_id"`
	InvocationType InvocationType   `json:"invocation_type"`
	Status         InvocationStatus `json:"status"`
	Command        *string          `json:"command,omitempty"`
	Stdout         *string          `json:"stdout,omitempty"`
	Stderr         *string          `json:"stderr,omitempty"`
	ExitCode       *int             `json:"exit_code,omitempty"`
	CreatedAt      time.Time        `json:"created_at"`
	StartedAt      *time.Time       `json:"started_at,omitempty"`
	FinishedAt     *time.Time       `json:"finished_at,omitempty"`
}

// SharedContextType classifies the opaque payload a SharedContext row
// carries.
type SharedContextType string

const (
	ContextFile       SharedContextType = "file"
	ContextSnippet    SharedContextType = "snippet"
	ContextEntity     SharedContextType = "entity"
	ContextMemoryItem SharedContextType = "memory_item"
	ContextURL        SharedContextType = "url"
)

func (t SharedContextType) Valid() bool {
	switch t {
	case ContextFile, ContextSnippet, ContextEntity, ContextMemoryItem, ContextURL:
		return true
	default:
		return false
	}
}

// SharedContext is an opaque payload shared between assistants, optionally
// scoped to a conversation.
type SharedContext struct {
	ID             string             `json:"id"`
	ConversationID *string            `json:"conversation_id,omitempty"`
	ContextType    SharedContextType  `json:"context_type"`
	Content        string             `json:"content"`
	Description    *string            `json:"description,omitempty"`
	SharedBy       AssistantId        `json:"shared_by"`
	CreatedAt      time.Time          `json:"created_at"`
}
