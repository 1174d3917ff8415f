package websocket

import (
	"sync"
	"time"

	"github.com/raihanakbr/realtime-stream-client/internal/transcript"
)

// State is the connection lifecycle state of a Manager
type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateOpen
	StateClosing
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosing:
		return "closing"
	}
	return "unknown"
}

// Transcript represents a transcript message sent back to a client
type Transcript struct {
	Kind      string    `json:"kind"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// SessionContext maintains receiver-side state for one client stream
type SessionContext struct {
	ID            string       `json:"id"`
	StartTime     time.Time    `json:"start_time"`
	EndTime       *time.Time   `json:"end_time,omitempty"`
	Frames        int          `json:"frames"`
	Samples       int          `json:"samples"`
	SampleRate    int          `json:"sample_rate"`
	AudioDuration float64      `json:"audio_duration"`
	Transcripts   []Transcript `json:"transcripts"`
	Status        string       `json:"status"` // "active", "completed", "error"
	ErrorMessage  string       `json:"error_message,omitempty"`
	Mutex         sync.RWMutex `json:"-"`
}

// Session statuses
const (
	StatusActive    = "active"
	StatusCompleted = "completed"
	StatusError     = "error"
)

func (s *SessionContext) addTranscript(e transcript.Event) {
	s.Mutex.Lock()
	defer s.Mutex.Unlock()
	s.Transcripts = append(s.Transcripts, Transcript{
		Kind:      e.Kind.String(),
		Text:      e.Text,
		Timestamp: time.Now(),
	})
}

// SessionStore keeps sessions by connection id
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*SessionContext
}

// NewSessionStore creates an empty store
func NewSessionStore() *SessionStore {
	return &SessionStore{sessions: make(map[string]*SessionContext)}
}

// GetOrCreate retrieves an existing session or creates a new one. A finished
// session is reactivated and keeps its transcripts.
func (st *SessionStore) GetOrCreate(id string) (*SessionContext, bool) {
	st.mu.Lock()
	defer st.mu.Unlock()

	if session, exists := st.sessions[id]; exists {
		session.Mutex.Lock()
		if session.Status == StatusCompleted || session.Status == StatusError {
			session.Status = StatusActive
			session.EndTime = nil
			session.ErrorMessage = ""
		}
		session.Mutex.Unlock()
		return session, true
	}

	session := &SessionContext{
		ID:          id,
		StartTime:   time.Now(),
		Status:      StatusActive,
		Transcripts: make([]Transcript, 0),
	}
	st.sessions[id] = session
	return session, false
}

// Get returns the session for id
func (st *SessionStore) Get(id string) (*SessionContext, bool) {
	st.mu.RLock()
	defer st.mu.RUnlock()
	session, ok := st.sessions[id]
	return session, ok
}
