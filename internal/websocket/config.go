package websocket

import "time"

// Configuration constants
const (
	DefaultServerURL        = "ws://localhost:8989"
	DefaultReconnectDelay   = 2000 * time.Millisecond
	DefaultWriteTimeout     = 5 * time.Second
	DefaultHandshakeTimeout = 10 * time.Second

	// ConnectionIDParam is the query parameter carrying the client's stream id.
	// The receiver uses it to resume the same session after a reconnect.
	ConnectionIDParam = "connection_id"

	// Receiver defaults
	ServerPort           = ":8989"
	DefaultSentenceEvery = 8
	closeGracePeriod     = time.Second
)
