// Package store implements the durable persistence layer (C1): clients,
// conversations, messages, queue entries, invocations, and shared context,
// all backed by a single WAL-mode SQLite database.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

const timeLayout = "2006-01-02T15:04:05.000Z"

// Store is the interface the dispatcher and queue processor depend on, so
// tests can substitute an in-memory SQLite handle without a mocking
// library.
type Store interface {
	GetClient(ctx context.Context, id AssistantId) (*Client, error)
	UpdateClientStatus(ctx context.Context, id AssistantId, status ClientStatus, sessionID *string) error

	CreateConversation(ctx context.Context, c *Conversation) error
	GetConversation(ctx context.Context, id string) (*Conversation, error)
	ListConversations(ctx context.Context, status string, limit, offset int) ([]*Conversation, error)
	UpdateConversationStatus(ctx context.Context, id string, status ConversationStatus, summary *string) error
	TouchConversation(ctx context.Context, id string) error

	CreateMessage(ctx context.Context, m *Message) error
	GetMessage(ctx context.Context, id string) (*Message, error)
	ListMessages(ctx context.Context, conversationID string, limit, offset int) ([]*Message, error)
	CountMessages(ctx context.Context, conversationID string) (int, error)
	UpdateMessageStatus(ctx context.Context, id string, status MessageStatus) error
	GetResponseToMessage(ctx context.Context, id string) (*Message, error)

	EnqueueMessage(ctx context.Context, messageID string, target AssistantId, priority int, maxAttempts int) error
	DequeueMessages(ctx context.Context, target AssistantId, limit int) ([]*QueueEntry, error)
	IncrementAttempts(ctx context.Context, id int64, delaySeconds int) error
	RemoveFromQueue(ctx context.Context, messageID string) error
	ClearExhausted(ctx context.Context) (int64, error)

	CreateInvocation(ctx context.Context, inv *Invocation) error
	StartInvocation(ctx context.Context, id string) error
	FinishInvocation(ctx context.Context, id string, status InvocationStatus, stdout, stderr *string, exitCode *int) error

	CreateSharedContext(ctx context.Context, sc *SharedContext) error
	GetSharedContext(ctx context.Context, id string) (*SharedContext, error)
	ListSharedContext(ctx context.Context, conversationID *string, limit, offset int) ([]*SharedContext, error)

	Close() error
}

// SQLiteStore is the concrete Store implementation.
type SQLiteStore struct {
	db *sql.DB
}

// Open creates the containing directory (0700) if needed, opens a WAL-mode
// SQLite database with foreign keys on and a 5s busy timeout, applies file
// permissions (0600), and runs pending migrations.
func Open(ctx context.Context, path string) (*SQLiteStore, error) {
	dir := filepath.Dir(path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
		if err := os.Chmod(dir, 0o700); err != nil {
			return nil, fmt.Errorf("chmod db dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if path == ":memory:" {
		// A single in-memory database only survives on one connection;
		// keep the pool from handing out a second, empty one.
		db.SetMaxOpenConns(1)
	}

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("apply %s: %w", pragma, err)
		}
	}

	if path != ":memory:" {
		if err := os.Chmod(path, 0o600); err != nil && !os.IsNotExist(err) {
			db.Close()
			return nil, fmt.Errorf("chmod db file: %w", err)
		}
	}

	migrator, err := NewMigrator(db)
	if err != nil {
		db.Close()
		return nil, err
	}
	if err := migrator.Up(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	if path != ":memory:" {
		if err := os.Chmod(path, 0o600); err != nil {
			db.Close()
			return nil, fmt.Errorf("chmod db file: %w", err)
		}
	}

	return &SQLiteStore{db: db}, nil
}

// MigrationStatus reports every known migration id and whether it has been
// applied, for the CLI's "migrate status" command. Open already applies
// every pending migration, so this always returns all-applied on a handle
// opened through Open; it remains useful for auditing a database touched by
// an older binary.
func (s *SQLiteStore) MigrationStatus(ctx context.Context) (map[string]bool, error) {
	migrator, err := NewMigrator(s.db)
	if err != nil {
		return nil, err
	}
	return migrator.Status(ctx)
}

// Close closes the underlying database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(timeLayout, s)
}

func nullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return formatTime(*t)
}

func scanNullableTime(s sql.NullString) (*time.Time, error) {
	if !s.Valid {
		return nil, nil
	}
	t, err := parseTime(s.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func nullableString(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

func fromNullString(s sql.NullString) *string {
	if !s.Valid {
		return nil
	}
	v := s.String
	return &v
}

// --- Clients ---

func (s *SQLiteStore) GetClient(ctx context.Context, id AssistantId) (*Client, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, display_name, status, session_id, last_seen_at, created_at
		FROM clients WHERE id = ?`, string(id))

	var c Client
	var idStr, statusStr, createdAt string
	var sessionID, lastSeenAt sql.NullString
	if err := row.Scan(&idStr, &c.DisplayName, &statusStr, &sessionID, &lastSeenAt, &createdAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get client: %w", err)
	}
	c.ID = AssistantId(idStr)
	c.Status = ClientStatus(statusStr)
	c.SessionID = fromNullString(sessionID)
	lst, err := scanNullableTime(lastSeenAt)
	if err != nil {
		return nil, fmt.Errorf("parse last_seen_at: %w", err)
	}
	c.LastSeenAt = lst
	ca, err := parseTime(createdAt)
	if err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	c.CreatedAt = ca
	return &c, nil
}

func (s *SQLiteStore) UpdateClientStatus(ctx context.Context, id AssistantId, status ClientStatus, sessionID *string) error {
	now := formatTime(time.Now())
	_, err := s.db.ExecContext(ctx, `
		UPDATE clients SET status = ?, session_id = ?, last_seen_at = ? WHERE id = ?`,
		string(status), nullableString(sessionID), now, string(id))
	if err != nil {
		return fmt.Errorf("update client status: %w", err)
	}
	return nil
}

// --- Conversations ---

func (s *SQLiteStore) CreateConversation(ctx context.Context, c *Conversation) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.Status == "" {
		c.Status = ConversationActive
	}
	now := time.Now()
	c.CreatedAt = now
	c.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO conversations (id, title, project, status, created_by, created_at, updated_at, summary, metadata, closed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, nullableString(c.Title), nullableString(c.Project), string(c.Status), string(c.CreatedBy),
		formatTime(c.CreatedAt), formatTime(c.UpdatedAt), nullableString(c.Summary), nullableString(c.Metadata), nullableTime(c.ClosedAt))
	if err != nil {
		return fmt.Errorf("create conversation: %w", err)
	}
	return nil
}

func (s *SQLiteStore) scanConversation(row interface {
	Scan(dest ...any) error
}) (*Conversation, error) {
	var c Conversation
	var createdBy, status, createdAt, updatedAt string
	var title, project, summary, metadata, closedAt sql.NullString
	if err := row.Scan(&c.ID, &title, &project, &status, &createdBy, &createdAt, &updatedAt, &summary, &metadata, &closedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan conversation: %w", err)
	}
	c.Title = fromNullString(title)
	c.Project = fromNullString(project)
	c.Status = ConversationStatus(status)
	c.CreatedBy = AssistantId(createdBy)
	c.Summary = fromNullString(summary)
	c.Metadata = fromNullString(metadata)

	ca, err := parseTime(createdAt)
	if err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	c.CreatedAt = ca
	ua, err := parseTime(updatedAt)
	if err != nil {
		return nil, fmt.Errorf("parse updated_at: %w", err)
	}
	c.UpdatedAt = ua
	cl, err := scanNullableTime(closedAt)
	if err != nil {
		return nil, fmt.Errorf("parse closed_at: %w", err)
	}
	c.ClosedAt = cl
	return &c, nil
}

func (s *SQLiteStore) GetConversation(ctx context.Context, id string) (*Conversation, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, title, project, status, created_by, created_at, updated_at, summary, metadata, closed_at
		FROM conversations WHERE id = ?`, id)
	return s.scanConversation(row)
}

func (s *SQLiteStore) ListConversations(ctx context.Context, status string, limit, offset int) ([]*Conversation, error) {
	var rows *sql.Rows
	var err error
	if status == "" || status == "all" {
		rows, err = s.db.QueryContext(ctx, `
			SELECT id, title, project, status, created_by, created_at, updated_at, summary, metadata, closed_at
			FROM conversations ORDER BY updated_at DESC LIMIT ? OFFSET ?`, limit, offset)
	} else {
		rows, err = s.db.QueryContext(ctx, `
			SELECT id, title, project, status, created_by, created_at, updated_at, summary, metadata, closed_at
			FROM conversations WHERE status = ? ORDER BY updated_at DESC LIMIT ? OFFSET ?`, status, limit, offset)
	}
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	defer rows.Close()

	var out []*Conversation
	for rows.Next() {
		c, err := s.scanConversation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) UpdateConversationStatus(ctx context.Context, id string, status ConversationStatus, summary *string) error {
	now := time.Now()
	var closedAt any
	if status == ConversationCompleted || status == ConversationArchived {
		closedAt = formatTime(now)
	}
	_, err := s.db.ExecContext(ctx, `
		UPDATE conversations SET status = ?, summary = COALESCE(?, summary), closed_at = ?, updated_at = ? WHERE id = ?`,
		string(status), nullableString(summary), closedAt, formatTime(now), id)
	if err != nil {
		return fmt.Errorf("update conversation status: %w", err)
	}
	return nil
}

func (s *SQLiteStore) TouchConversation(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE conversations SET updated_at = ? WHERE id = ?`, formatTime(time.Now()), id)
	if err != nil {
		return fmt.Errorf("touch conversation: %w", err)
	}
	return nil
}

// --- Messages ---

func (s *SQLiteStore) CreateMessage(ctx context.Context, m *Message) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if m.Status == "" {
		m.Status = MessagePending
	}
	if m.MessageType == "" {
		m.MessageType = MessageTypeMessage
	}
	if m.Priority == "" {
		m.Priority = PriorityNormal
	}
	m.CreatedAt = time.Now()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create message: %w", err)
	}
	defer tx.Rollback()

	var convStatus string
	if err := tx.QueryRowContext(ctx, `SELECT status FROM conversations WHERE id = ?`, m.ConversationID).Scan(&convStatus); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("create message: %w", ErrNotFound)
		}
		return fmt.Errorf("load conversation status: %w", err)
	}
	if ConversationStatus(convStatus) == ConversationArchived {
		return ErrConversationClosed
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO messages (id, conversation_id, sender, target, content, message_type, priority, status,
			response_to_id, created_at, delivered_at, read_at, metadata)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		m.ID, m.ConversationID, string(m.Sender), string(m.Target), m.Content, string(m.MessageType),
		string(m.Priority), string(m.Status), nullableString(m.ResponseToID), formatTime(m.CreatedAt),
		nullableTime(m.DeliveredAt), nullableTime(m.ReadAt), nullableString(m.Metadata))
	if err != nil {
		return fmt.Errorf("create message: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `UPDATE conversations SET updated_at = ? WHERE id = ?`,
		formatTime(m.CreatedAt), m.ConversationID); err != nil {
		return fmt.Errorf("touch conversation: %w", err)
	}

	return tx.Commit()
}

func (s *SQLiteStore) scanMessage(row interface {
	Scan(dest ...any) error
}) (*Message, error) {
	var m Message
	var sender, target, msgType, priority, status, createdAt string
	var responseToID, deliveredAt, readAt, metadata sql.NullString
	if err := row.Scan(&m.ID, &m.ConversationID, &sender, &target, &m.Content, &msgType, &priority, &status,
		&responseToID, &createdAt, &deliveredAt, &readAt, &metadata); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan message: %w", err)
	}
	m.Sender = AssistantId(sender)
	m.Target = AssistantId(target)
	m.MessageType = MessageType(msgType)
	m.Priority = MessagePriority(priority)
	m.Status = MessageStatus(status)
	m.ResponseToID = fromNullString(responseToID)
	m.Metadata = fromNullString(metadata)

	ca, err := parseTime(createdAt)
	if err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	m.CreatedAt = ca
	da, err := scanNullableTime(deliveredAt)
	if err != nil {
		return nil, fmt.Errorf("parse delivered_at: %w", err)
	}
	m.DeliveredAt = da
	ra, err := scanNullableTime(readAt)
	if err != nil {
		return nil, fmt.Errorf("parse read_at: %w", err)
	}
	m.ReadAt = ra
	return &m, nil
}

const messageColumns = `id, conversation_id, sender, target, content, message_type, priority, status,
			response_to_id, created_at, delivered_at, read_at, metadata`

func (s *SQLiteStore) GetMessage(ctx context.Context, id string) (*Message, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+messageColumns+` FROM messages WHERE id = ?`, id)
	return s.scanMessage(row)
}

func (s *SQLiteStore) ListMessages(ctx context.Context, conversationID string, limit, offset int) ([]*Message, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+messageColumns+`
		FROM messages WHERE conversation_id = ? ORDER BY created_at ASC LIMIT ? OFFSET ?`,
		conversationID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	var out []*Message
	for rows.Next() {
		m, err := s.scanMessage(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// CountMessages returns the total number of messages in a conversation, for
// callers that need to page backward from the most recent row via
// ListMessages' offset (e.g. building a tail-end conversation window).
func (s *SQLiteStore) CountMessages(ctx context.Context, conversationID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM messages WHERE conversation_id = ?`, conversationID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count messages: %w", err)
	}
	return n, nil
}

// UpdateMessageStatus transitions a message's status, stamping delivered_at
// or read_at when entering those states for the first time.
func (s *SQLiteStore) UpdateMessageStatus(ctx context.Context, id string, status MessageStatus) error {
	now := formatTime(time.Now())
	switch status {
	case MessageDelivered:
		_, err := s.db.ExecContext(ctx, `
			UPDATE messages SET status = ?, delivered_at = COALESCE(delivered_at, ?) WHERE id = ?`,
			string(status), now, id)
		if err != nil {
			return fmt.Errorf("update message status: %w", err)
		}
	case MessageRead:
		_, err := s.db.ExecContext(ctx, `
			UPDATE messages SET status = ?, read_at = COALESCE(read_at, ?) WHERE id = ?`,
			string(status), now, id)
		if err != nil {
			return fmt.Errorf("update message status: %w", err)
		}
	default:
		_, err := s.db.ExecContext(ctx, `UPDATE messages SET status = ? WHERE id = ?`, string(status), id)
		if err != nil {
			return fmt.Errorf("update message status: %w", err)
		}
	}
	return nil
}

// GetResponseToMessage returns the earliest message whose response_to_id
// equals id, resolving the "earliest response wins" open question.
func (s *SQLiteStore) GetResponseToMessage(ctx context.Context, id string) (*Message, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+messageColumns+`
		FROM messages WHERE response_to_id = ? ORDER BY created_at ASC, id ASC LIMIT 1`, id)
	m, err := s.scanMessage(row)
	if err != nil {
		if err == ErrNotFound {
			return nil, nil
		}
		return nil, err
	}
	return m, nil
}

// --- Queue ---

func (s *SQLiteStore) EnqueueMessage(ctx context.Context, messageID string, target AssistantId, priority int, maxAttempts int) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin enqueue: %w", err)
	}
	defer tx.Rollback()

	var status string
	if err := tx.QueryRowContext(ctx, `SELECT status FROM messages WHERE id = ?`, messageID).Scan(&status); err != nil {
		if err == sql.ErrNoRows {
			return ErrNotFound
		}
		return fmt.Errorf("enqueue lookup message: %w", err)
	}
	if status != string(MessagePending) {
		return fmt.Errorf("enqueue message %s: %w", messageID, ErrForbiddenTransition)
	}

	var existing int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM queue_entries WHERE message_id = ?`, messageID).Scan(&existing); err != nil {
		return fmt.Errorf("enqueue check existing: %w", err)
	}
	if existing > 0 {
		return ErrAlreadyQueued
	}

	now := time.Now()
	_, err = tx.ExecContext(ctx, `
		INSERT INTO queue_entries (message_id, target, priority, attempts, max_attempts, next_attempt, created_at)
		VALUES (?, ?, ?, 0, ?, ?, ?)`,
		messageID, string(target), priority, maxAttempts, formatTime(now), formatTime(now))
	if err != nil {
		return fmt.Errorf("enqueue insert: %w", err)
	}

	return tx.Commit()
}

func (s *SQLiteStore) DequeueMessages(ctx context.Context, target AssistantId, limit int) ([]*QueueEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, message_id, target, priority, attempts, max_attempts, next_attempt, created_at
		FROM queue_entries
		WHERE target = ? AND next_attempt <= ? AND attempts < max_attempts
		ORDER BY priority DESC, next_attempt ASC
		LIMIT ?`, string(target), formatTime(time.Now()), limit)
	if err != nil {
		return nil, fmt.Errorf("dequeue messages: %w", err)
	}
	defer rows.Close()

	var out []*QueueEntry
	for rows.Next() {
		var q QueueEntry
		var targetStr, nextAttempt, createdAt string
		if err := rows.Scan(&q.ID, &q.MessageID, &targetStr, &q.Priority, &q.Attempts, &q.MaxAttempts, &nextAttempt, &createdAt); err != nil {
			return nil, fmt.Errorf("scan queue entry: %w", err)
		}
		q.Target = AssistantId(targetStr)
		na, err := parseTime(nextAttempt)
		if err != nil {
			return nil, fmt.Errorf("parse next_attempt: %w", err)
		}
		q.NextAttempt = na
		ca, err := parseTime(createdAt)
		if err != nil {
			return nil, fmt.Errorf("parse created_at: %w", err)
		}
		q.CreatedAt = ca
		out = append(out, &q)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) IncrementAttempts(ctx context.Context, id int64, delaySeconds int) error {
	next := time.Now().Add(time.Duration(delaySeconds) * time.Second)
	_, err := s.db.ExecContext(ctx, `
		UPDATE queue_entries SET attempts = attempts + 1, next_attempt = ? WHERE id = ?`,
		formatTime(next), id)
	if err != nil {
		return fmt.Errorf("increment attempts: %w", err)
	}
	return nil
}

func (s *SQLiteStore) RemoveFromQueue(ctx context.Context, messageID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM queue_entries WHERE message_id = ?`, messageID)
	if err != nil {
		return fmt.Errorf("remove from queue: %w", err)
	}
	return nil
}

func (s *SQLiteStore) ClearExhausted(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM queue_entries WHERE attempts >= max_attempts`)
	if err != nil {
		return 0, fmt.Errorf("clear exhausted: %w", err)
	}
	return res.RowsAffected()
}

// --- Invocations ---

func (s *SQLiteStore) CreateInvocation(ctx context.Context, inv *Invocation) error {
	if inv.ID == "" {
		inv.ID = uuid.NewString()
	}
	if inv.Status == "" {
		inv.Status = InvocationPending
	}
	inv.CreatedAt = time.Now()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO invocations (id, target, message_id, invocation_type, status, command, stdout, stderr, exit_code, created_at, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		inv.ID, string(inv.Target), inv.MessageID, string(inv.InvocationType), string(inv.Status),
		nullableString(inv.Command), nullableString(inv.Stdout), nullableString(inv.Stderr), exitCodeArg(inv.ExitCode),
		formatTime(inv.CreatedAt), nullableTime(inv.StartedAt), nullableTime(inv.FinishedAt))
	if err != nil {
		return fmt.Errorf("create invocation: %w", err)
	}
	return nil
}

func exitCodeArg(code *int) any {
	if code == nil {
		return nil
	}
	return *code
}

func (s *SQLiteStore) StartInvocation(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE invocations SET status = ?, started_at = ? WHERE id = ?`,
		string(InvocationRunning), formatTime(time.Now()), id)
	if err != nil {
		return fmt.Errorf("start invocation: %w", err)
	}
	return nil
}

func (s *SQLiteStore) FinishInvocation(ctx context.Context, id string, status InvocationStatus, stdout, stderr *string, exitCode *int) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE invocations SET status = ?, stdout = ?, stderr = ?, exit_code = ?, finished_at = ? WHERE id = ?`,
		string(status), nullableString(stdout), nullableString(stderr), exitCodeArg(exitCode), formatTime(time.Now()), id)
	if err != nil {
		return fmt.Errorf("finish invocation: %w", err)
	}
	return nil
}

// --- Shared context ---

func (s *SQLiteStore) CreateSharedContext(ctx context.Context, sc *SharedContext) error {
	if sc.ID == "" {
		sc.ID = uuid.NewString()
	}
	sc.CreatedAt = time.Now()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO shared_context (id, conversation_id, context_type, content, description, shared_by, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		sc.ID, nullableString(sc.ConversationID), string(sc.ContextType), sc.Content,
		nullableString(sc.Description), string(sc.SharedBy), formatTime(sc.CreatedAt))
	if err != nil {
		return fmt.Errorf("create shared context: %w", err)
	}
	return nil
}

func (s *SQLiteStore) scanSharedContext(row interface {
	Scan(dest ...any) error
}) (*SharedContext, error) {
	var sc SharedContext
	var contextType, sharedBy, createdAt string
	var conversationID, description sql.NullString
	if err := row.Scan(&sc.ID, &conversationID, &contextType, &sc.Content, &description, &sharedBy, &createdAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan shared context: %w", err)
	}
	sc.ConversationID = fromNullString(conversationID)
	sc.ContextType = SharedContextType(contextType)
	sc.Description = fromNullString(description)
	sc.SharedBy = AssistantId(sharedBy)
	ca, err := parseTime(createdAt)
	if err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	sc.CreatedAt = ca
	return &sc, nil
}

const sharedContextColumns = `id, conversation_id, context_type, content, description, shared_by, created_at`

func (s *SQLiteStore) GetSharedContext(ctx context.Context, id string) (*SharedContext, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+sharedContextColumns+` FROM shared_context WHERE id = ?`, id)
	return s.scanSharedContext(row)
}

func (s *SQLiteStore) ListSharedContext(ctx context.Context, conversationID *string, limit, offset int) ([]*SharedContext, error) {
	var rows *sql.Rows
	var err error
	if conversationID != nil {
		rows, err = s.db.QueryContext(ctx, `SELECT `+sharedContextColumns+`
			FROM shared_context WHERE conversation_id = ? ORDER BY created_at DESC LIMIT ? OFFSET ?`,
			*conversationID, limit, offset)
	} else {
		rows, err = s.db.QueryContext(ctx, `SELECT `+sharedContextColumns+`
			FROM shared_context ORDER BY created_at DESC LIMIT ? OFFSET ?`, limit, offset)
	}
	if err != nil {
		return nil, fmt.Errorf("list shared context: %w", err)
	}
	defer rows.Close()

	var out []*SharedContext
	for rows.Next() {
		sc, err := s.scanSharedContext(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sc)
	}
	return out, rows.Err()
}

var _ Store = (*SQLiteStore)(nil)
