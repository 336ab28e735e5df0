package relay

import (
	"context"
	"fmt"
	"log"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/juju/clock"
	"github.com/juju/retry"
)

const (
	redialAttempts = 5
	redialDelay    = time.Second
	redialMaxDelay = 30 * time.Second
)

// Conn is the client side of the relay channel for one room. It satisfies
// the session layer's Relay interface: broadcasts go out as UPDATE frames,
// incoming traffic arrives on Updates, and a drop-and-redial cycle is
// surfaced on Reconnected so the session can re-fetch canonical content
// instead of trusting anything cached across the outage.
type Conn struct {
	wsURL string

	mu     sync.Mutex
	ws     *websocket.Conn
	closed bool

	updates     chan []byte
	reconnected chan struct{}
	done        chan struct{}
}

// Dial connects to the relay and joins a room
func Dial(ctx context.Context, baseURL, roomID string) (*Conn, error) {
	wsURL := fmt.Sprintf("%s/ws?room=%s", baseURL, url.QueryEscape(roomID))

	ws, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return nil, fmt.Errorf("dial relay: %w", err)
	}

	c := &Conn{
		wsURL:       wsURL,
		ws:          ws,
		updates:     make(chan []byte, 64),
		reconnected: make(chan struct{}, 1),
		done:        make(chan struct{}),
	}
	go c.readLoop()
	return c, nil
}

// Broadcast sends an UPDATE frame with the delta
func (c *Conn) Broadcast(delta []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return fmt.Errorf("relay connection closed")
	}

	// The server derives the room from the join; the frame repeats it so
	// mismatches are rejected
	frame, err := EncodeUpdate(Update{RoomID: c.roomID(), Payload: delta})
	if err != nil {
		return err
	}

	c.ws.SetWriteDeadline(time.Now().Add(writeWait))
	return c.ws.WriteMessage(websocket.BinaryMessage, frame)
}

func (c *Conn) roomID() string {
	u, err := url.Parse(c.wsURL)
	if err != nil {
		return ""
	}
	return u.Query().Get("room")
}

func (c *Conn) Updates() <-chan []byte       { return c.updates }
func (c *Conn) Reconnected() <-chan struct{} { return c.reconnected }

func (c *Conn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	close(c.done)
	return c.ws.Close()
}

func (c *Conn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *Conn) readLoop() {
	for {
		c.mu.Lock()
		ws := c.ws
		c.mu.Unlock()

		_, frame, err := ws.ReadMessage()
		if err != nil {
			if c.isClosed() {
				return
			}
			if err := c.redial(); err != nil {
				log.Printf("Relay redial failed, giving up: %v", err)
				c.Close()
				return
			}
			// Non-blocking: one pending signal is enough, the session
			// re-fetches once per recovery
			select {
			case c.reconnected <- struct{}{}:
			default:
			}
			continue
		}

		c.handleFrame(frame)
	}
}

func (c *Conn) handleFrame(frame []byte) {
	t, err := ParseType(frame)
	if err != nil {
		log.Printf("Dropping invalid relay frame: %v", err)
		return
	}

	switch t {
	case MessageInit:
		msg, err := DecodeInit(frame)
		if err != nil {
			log.Printf("Dropping bad INIT frame: %v", err)
			return
		}
		for _, update := range msg.Updates {
			c.deliver(update)
		}

	case MessageUpdate:
		msg, err := DecodeUpdate(frame)
		if err != nil {
			log.Printf("Dropping bad UPDATE frame: %v", err)
			return
		}
		c.deliver(msg.Payload)
	}
}

func (c *Conn) deliver(payload []byte) {
	select {
	case c.updates <- payload:
	case <-c.done:
	}
}

func (c *Conn) redial() error {
	return retry.Call(retry.CallArgs{
		Func: func() error {
			ws, _, err := websocket.DefaultDialer.Dial(c.wsURL, nil)
			if err != nil {
				return err
			}
			c.mu.Lock()
			c.ws = ws
			c.mu.Unlock()
			return nil
		},
		IsFatalError: func(err error) bool {
			// A deliberate Close during redial stops the retries
			return c.isClosed()
		},
		Attempts:    redialAttempts,
		Delay:       redialDelay,
		MaxDelay:    redialMaxDelay,
		BackoffFunc: retry.DoubleDelay,
		Clock:       clock.WallClock,
	})
}
