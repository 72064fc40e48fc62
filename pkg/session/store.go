// Package session holds per-conversation state for the honeypot: message
// history, the scam verdict reached so far, accumulated intelligence, and
// audit notes. State lives in process memory and is lost on restart.
package session

import (
	"strings"
	"sync"
	"time"

	"github.com/TryMightyAI/decoy/pkg/protocol"
)

// Session is a point-in-time copy of one conversation's state. Mutating a
// returned Session does not affect the store.
type Session struct {
	ID           string
	Messages     []protocol.Message
	MessageCount int

	// Classification state. ScamDetected latches true; Confidence and
	// ScamType only move on higher-confidence verdicts (the orchestrator
	// enforces the ratchet).
	ScamDetected bool
	Confidence   float64
	ScamType     string

	Intelligence protocol.Intelligence
	AgentNotes   []string
	CallbackSent bool

	CreatedAt    time.Time
	LastActivity time.Time
}

// Engaged reports whether the conversation has reached the message count
// where the decoy counts as actively engaging the caller.
func (s *Session) Engaged(threshold int) bool {
	return s.MessageCount >= threshold
}

// NotesSummary flattens the audit notes for the callback payload.
func (s *Session) NotesSummary() string {
	if len(s.AgentNotes) == 0 {
		return "No specific notes recorded."
	}
	return strings.Join(s.AgentNotes, " | ")
}

// entry wraps a session with its locks. turnMu serializes whole
// conversation turns (held across classify/extract/generate); opMu guards
// individual field mutations so snapshot reads stay consistent while a turn
// lock is held.
type entry struct {
	turnMu sync.Mutex
	opMu   sync.Mutex
	data   Session
}

// Store is an in-memory session registry, safe for concurrent use.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*entry
	now      func() time.Time
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		sessions: make(map[string]*entry),
		now:      time.Now,
	}
}

// get returns the entry for id, creating it on first use.
func (st *Store) get(id string) *entry {
	st.mu.RLock()
	e, ok := st.sessions[id]
	st.mu.RUnlock()
	if ok {
		return e
	}

	st.mu.Lock()
	defer st.mu.Unlock()
	if e, ok = st.sessions[id]; ok {
		return e
	}
	now := st.now()
	e = &entry{data: Session{
		ID:           id,
		ScamType:     "unknown",
		CreatedAt:    now,
		LastActivity: now,
	}}
	st.sessions[id] = e
	return e
}

// Acquire takes the turn lock for id, creating the session if needed, and
// returns the release func. Turns on different sessions never block each
// other.
func (st *Store) Acquire(id string) func() {
	e := st.get(id)
	e.turnMu.Lock()
	return e.turnMu.Unlock
}

// Get returns a snapshot of the session, creating it on first use.
func (st *Store) Get(id string) Session {
	e := st.get(id)
	e.opMu.Lock()
	defer e.opMu.Unlock()
	return snapshot(&e.data)
}

// Snapshot returns a copy of an existing session without creating one.
func (st *Store) Snapshot(id string) (Session, bool) {
	st.mu.RLock()
	e, ok := st.sessions[id]
	st.mu.RUnlock()
	if !ok {
		return Session{}, false
	}
	e.opMu.Lock()
	defer e.opMu.Unlock()
	return snapshot(&e.data), true
}

// AppendMessage records a message and returns the updated count. The count
// is always recomputed from the slice so it cannot drift.
func (st *Store) AppendMessage(id string, msg protocol.Message) int {
	e := st.get(id)
	e.opMu.Lock()
	defer e.opMu.Unlock()
	e.data.Messages = append(e.data.Messages, msg)
	e.data.MessageCount = len(e.data.Messages)
	e.data.LastActivity = st.now()
	return e.data.MessageCount
}

// MergeIntelligence unions newly extracted intelligence into the session.
func (st *Store) MergeIntelligence(id string, intel protocol.Intelligence) protocol.Intelligence {
	e := st.get(id)
	e.opMu.Lock()
	defer e.opMu.Unlock()
	e.data.Intelligence = e.data.Intelligence.Merge(intel)
	e.data.LastActivity = st.now()
	return e.data.Intelligence
}

// UpdateClassification overwrites the session verdict. Ratcheting is the
// caller's policy, not the store's.
func (st *Store) UpdateClassification(id string, scamDetected bool, confidence float64, scamType string) {
	e := st.get(id)
	e.opMu.Lock()
	defer e.opMu.Unlock()
	e.data.ScamDetected = scamDetected
	e.data.Confidence = confidence
	e.data.ScamType = scamType
	e.data.LastActivity = st.now()
}

// AppendNote adds an audit note to the session.
func (st *Store) AppendNote(id, note string) {
	e := st.get(id)
	e.opMu.Lock()
	defer e.opMu.Unlock()
	e.data.AgentNotes = append(e.data.AgentNotes, note)
}

// MarkCallbackSent records that the final report was delivered.
func (st *Store) MarkCallbackSent(id string) {
	e := st.get(id)
	e.opMu.Lock()
	defer e.opMu.Unlock()
	e.data.CallbackSent = true
}

// Remove deletes the session and reports whether it existed.
func (st *Store) Remove(id string) bool {
	st.mu.Lock()
	defer st.mu.Unlock()
	_, ok := st.sessions[id]
	delete(st.sessions, id)
	return ok
}

// Len returns the number of live sessions.
func (st *Store) Len() int {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return len(st.sessions)
}

func snapshot(s *Session) Session {
	out := *s
	out.Messages = append([]protocol.Message(nil), s.Messages...)
	out.AgentNotes = append([]string(nil), s.AgentNotes...)
	out.Intelligence = protocol.Intelligence{}.Merge(s.Intelligence)
	return out
}
