package ws

import "time"

// WebSocket connection limits and constraints
const (
	MaxConnectionsPerRoom = 50

	// Rate limiting
	MaxMessagesPerSecond = 10
	RateLimitWindow      = time.Second

	// Timeouts
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10

	maxMessageSize       = 8192
	clientSendBufferSize = 256
)
