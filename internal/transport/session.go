package transport

import (
	"sync"

	"github.com/local/assistantbridge/internal/eventlog"
	"github.com/local/assistantbridge/internal/store"
	"github.com/local/assistantbridge/internal/toolserver"
)

// session is one initialized tool-call channel, owned exclusively by its
// own Transport/EventLog pair per spec.md §3's ownership rule. streamID is
// fixed to the session id: design note #3 records that the source never
// opens more than one EventLog stream per session.
type session struct {
	id       string
	identity store.AssistantId
	tools    *toolserver.Server
	events   *eventlog.Log

	mu        sync.Mutex
	subs      map[int]chan eventlog.Event
	nextSubID int
}

func newSession(id string, identity store.AssistantId, tools *toolserver.Server) *session {
	return &session{
		id:       id,
		identity: identity,
		tools:    tools,
		events:   eventlog.New(eventlog.DefaultTTL, eventlog.DefaultMaxEvents),
		subs:     make(map[int]chan eventlog.Event),
	}
}

// store appends payload to this session's single stream and fans it out to
// any live GET subscribers, then returns the assigned event id.
func (s *session) store(payload any) string {
	eventID := s.events.Store(s.id, payload)
	ev := eventlog.Event{ID: eventID, Payload: payload}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ch := range s.subs {
		select {
		case ch <- ev:
		default:
			// Best-effort fan-out: a slow/gone subscriber never blocks the
			// request path. It can still catch up via replay_after.
		}
	}
	return eventID
}

// subscribe registers a live GET stream to receive events as they're
// stored, returning an unsubscribe func to call on stream teardown.
func (s *session) subscribe() (<-chan eventlog.Event, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextSubID
	s.nextSubID++
	ch := make(chan eventlog.Event, 16)
	s.subs[id] = ch

	return ch, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.subs, id)
	}
}
