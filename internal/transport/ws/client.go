package ws

import (
	"sync"
	"time"
)

// Client represents a single WebSocket connection with its own send queue
type Client struct {
	roomID string
	userID string
	send   chan []byte

	// closed once; send itself is never closed so Send cannot panic
	done      chan struct{}
	closeOnce sync.Once

	// Rate limiting
	messageCount int
	lastReset    time.Time
}

func NewClient(roomID, userID string) *Client {
	return &Client{
		roomID:    roomID,
		userID:    userID,
		send:      make(chan []byte, clientSendBufferSize),
		done:      make(chan struct{}),
		lastReset: time.Now(),
	}
}

func (c *Client) RoomID() string { return c.roomID }
func (c *Client) UserID() string { return c.userID }

// Send queues a message for the write pump. A full buffer drops the message.
func (c *Client) Send(data []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

// Close tells the write pump to send a close frame and stop.
func (c *Client) Close() {
	c.closeOnce.Do(func() { close(c.done) })
}

// allow counts an inbound message against the rate limit. Only the read pump
// calls it.
func (c *Client) allow(now time.Time) bool {
	if now.Sub(c.lastReset) > RateLimitWindow {
		c.messageCount = 0
		c.lastReset = now
	}
	c.messageCount++
	return c.messageCount <= MaxMessagesPerSecond
}
