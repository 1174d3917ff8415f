package websocket

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/oklog/ulid/v2"

	"github.com/raihanakbr/realtime-stream-client/internal/protocol"
	"github.com/raihanakbr/realtime-stream-client/internal/transcript"
)

var upgrader = websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}

// Receiver is a reference server for the streaming protocol. It decodes
// every binary frame, keeps per-connection session statistics, and replies
// with the events produced by its Transcriber.
type Receiver struct {
	store          *SessionStore
	newTranscriber TranscriberFactory
	logger         *slog.Logger
}

// NewReceiver creates a receiver. A nil factory selects the EchoTranscriber.
func NewReceiver(store *SessionStore, factory TranscriberFactory, logger *slog.Logger) *Receiver {
	if store == nil {
		store = NewSessionStore()
	}
	if factory == nil {
		factory = func() Transcriber { return NewEchoTranscriber(DefaultSentenceEvery) }
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Receiver{store: store, newTranscriber: factory, logger: logger}
}

// Store returns the receiver's session store
func (rc *Receiver) Store() *SessionStore {
	return rc.store
}

// ClientConnection is one streaming client attached to the receiver
type ClientConnection struct {
	ID          string
	ClientWS    *websocket.Conn
	Mutex       sync.Mutex
	SessionCtx  *SessionContext
	transcriber Transcriber
	logger      *slog.Logger
}

// reply writes one transcript event to the client
func (c *ClientConnection) reply(e transcript.Event) error {
	data, err := transcript.MarshalEvent(e)
	if err != nil {
		return err
	}
	c.Mutex.Lock()
	defer c.Mutex.Unlock()
	c.ClientWS.SetWriteDeadline(time.Now().Add(DefaultWriteTimeout))
	return c.ClientWS.WriteMessage(websocket.TextMessage, data)
}

// HandleAudioData decodes one wire message, updates the session and sends
// any resulting transcript events back.
func (c *ClientConnection) HandleAudioData(data []byte) error {
	frame, err := protocol.DecodeFrame(data)
	if err != nil {
		return err
	}

	session := c.SessionCtx
	session.Mutex.Lock()
	session.Frames++
	session.Samples += len(frame.Samples)
	session.SampleRate = frame.SampleRate
	session.AudioDuration += frame.Duration().Seconds()
	session.Mutex.Unlock()

	for _, e := range c.transcriber.Feed(frame) {
		if e.Kind == transcript.KindFullSentence {
			session.addTranscript(e)
			c.logger.Info("Full sentence", "text", e.Text)
		}
		if err := c.reply(e); err != nil {
			return err
		}
	}
	return nil
}

// finish marks the session ended
func (c *ClientConnection) finish(err error) {
	session := c.SessionCtx
	now := time.Now()
	session.Mutex.Lock()
	session.EndTime = &now
	if err != nil && !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
		session.Status = StatusError
		session.ErrorMessage = err.Error()
	} else {
		session.Status = StatusCompleted
	}
	session.Mutex.Unlock()
	c.ClientWS.Close()
}

// HandleWebSocketConnection handles a new WebSocket connection from a client
func (rc *Receiver) HandleWebSocketConnection(w http.ResponseWriter, r *http.Request) {
	clientWS, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		rc.logger.Error("Failed to upgrade connection", "error", err)
		return
	}

	connectionID := r.URL.Query().Get(ConnectionIDParam)
	if connectionID == "" {
		connectionID = ulid.Make().String()
	}

	session, resumed := rc.store.GetOrCreate(connectionID)
	client := &ClientConnection{
		ID:          connectionID,
		ClientWS:    clientWS,
		SessionCtx:  session,
		transcriber: rc.newTranscriber(),
		logger:      rc.logger.With("connection_id", connectionID),
	}
	client.logger.Info("New client connected", "resumed", resumed)

	go func() {
		var readErr error
		defer func() {
			client.finish(readErr)
			client.logger.Info("Client disconnected")
		}()

		for {
			messageType, data, err := clientWS.ReadMessage()
			if err != nil {
				readErr = err
				client.logger.Debug("Error reading from client", "error", err)
				return
			}

			switch messageType {
			case websocket.BinaryMessage:
				if err := client.HandleAudioData(data); err != nil {
					client.logger.Warn("Error handling audio data", "error", err)
				}
			default:
				client.logger.Warn("Received unknown message type", "type", messageType)
			}
		}
	}()
}

// sessionFor resolves the connection_id query parameter to a session
func (rc *Receiver) sessionFor(w http.ResponseWriter, r *http.Request) (*SessionContext, bool) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return nil, false
	}

	connectionID := r.URL.Query().Get(ConnectionIDParam)
	if connectionID == "" {
		http.Error(w, "connection_id parameter is required", http.StatusBadRequest)
		return nil, false
	}

	session, exists := rc.store.Get(connectionID)
	if !exists {
		http.Error(w, "Session not found", http.StatusNotFound)
		return nil, false
	}
	return session, true
}

// SessionView is the JSON shape of a session, without its lock
type SessionView struct {
	ID            string       `json:"id"`
	StartTime     time.Time    `json:"start_time"`
	EndTime       *time.Time   `json:"end_time,omitempty"`
	Frames        int          `json:"frames"`
	Samples       int          `json:"samples"`
	SampleRate    int          `json:"sample_rate"`
	AudioDuration float64      `json:"audio_duration"`
	Status        string       `json:"status"`
	ErrorMessage  string       `json:"error_message,omitempty"`
	Transcripts   []Transcript `json:"transcripts"`
}

// View snapshots the session
func (s *SessionContext) View() SessionView {
	s.Mutex.RLock()
	defer s.Mutex.RUnlock()

	transcriptsCopy := make([]Transcript, len(s.Transcripts))
	copy(transcriptsCopy, s.Transcripts)
	return SessionView{
		ID:            s.ID,
		StartTime:     s.StartTime,
		EndTime:       s.EndTime,
		Frames:        s.Frames,
		Samples:       s.Samples,
		SampleRate:    s.SampleRate,
		AudioDuration: s.AudioDuration,
		Status:        s.Status,
		ErrorMessage:  s.ErrorMessage,
		Transcripts:   transcriptsCopy,
	}
}

// GetSessionHandler retrieves session information and transcripts
func (rc *Receiver) GetSessionHandler(w http.ResponseWriter, r *http.Request) {
	session, ok := rc.sessionFor(w, r)
	if !ok {
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(session.View())
}

// GetTranscriptsHandler retrieves only the transcripts for a session
func (rc *Receiver) GetTranscriptsHandler(w http.ResponseWriter, r *http.Request) {
	session, ok := rc.sessionFor(w, r)
	if !ok {
		return
	}

	view := session.View()
	response := map[string]interface{}{
		"connection_id": view.ID,
		"transcripts":   view.Transcripts,
		"count":         len(view.Transcripts),
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}

// Routes registers the receiver endpoints on mux. The websocket endpoint is
// served at the root, where clients connect by default, and at /ws.
func (rc *Receiver) Routes(mux *http.ServeMux) {
	mux.HandleFunc("/{$}", rc.HandleWebSocketConnection)
	mux.HandleFunc("/ws", rc.HandleWebSocketConnection)
	mux.HandleFunc("/api/session", rc.GetSessionHandler)
	mux.HandleFunc("/api/transcripts", rc.GetTranscriptsHandler)
}
