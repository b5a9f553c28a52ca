package client

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"plan-chat/domain/chat"
	"plan-chat/errors"

	"github.com/gorilla/websocket"
)

const writeWait = 10 * time.Second

// Relay is what a Session needs from the room relay.
type Relay interface {
	JoinRoom(room chat.PlanID) error
	SendMessage(msg chat.Message) error
	// Subscribe registers fn for receive-message events of room and returns its cancel func.
	Subscribe(room chat.PlanID, fn func(chat.Message)) func()
}

type subscription struct {
	room chat.PlanID
	fn   func(chat.Message)
}

// RelayConn is a client websocket connection to the relay.
// Writes are serialized; Run owns the reads.
type RelayConn struct {
	conn    *websocket.Conn
	log     *slog.Logger
	writeMu sync.Mutex

	mu     sync.RWMutex
	nextID int
	subs   map[int]subscription
}

// DialRelay opens the websocket at relayURL (e.g. ws://localhost:8080/relay).
func DialRelay(ctx context.Context, relayURL, token string, log *slog.Logger) (*RelayConn, error) {
	header := http.Header{}
	header.Set("Authorization", "Bearer "+token)

	conn, response, err := websocket.DefaultDialer.DialContext(ctx, relayURL, header)
	if err != nil {
		if response != nil {
			return nil, fmt.Errorf("%w: relay dial answered %d: %v", errors.ErrTransport, response.StatusCode, err)
		}
		return nil, fmt.Errorf("%w: relay dial: %v", errors.ErrTransport, err)
	}
	return &RelayConn{conn: conn, log: log, subs: make(map[int]subscription)}, nil
}

func (c *RelayConn) JoinRoom(room chat.PlanID) error {
	return c.write(chat.NewJoinRoom(room))
}

func (c *RelayConn) SendMessage(msg chat.Message) error {
	envelope, err := chat.NewSendMessage(msg)
	if err != nil {
		return err
	}
	return c.write(envelope)
}

func (c *RelayConn) Subscribe(room chat.PlanID, fn func(chat.Message)) func() {
	c.mu.Lock()
	id := c.nextID
	c.nextID++
	c.subs[id] = subscription{room: room, fn: fn}
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		delete(c.subs, id)
		c.mu.Unlock()
	}
}

// Run reads frames until the connection drops or ctx is done.
// There is no resync: a dropped connection simply ends the live feed.
func (c *RelayConn) Run(ctx context.Context) error {
	stop := context.AfterFunc(ctx, func() { _ = c.conn.Close() })
	defer stop()

	for {
		var envelope chat.Envelope
		if err := c.conn.ReadJSON(&envelope); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("%w: relay read: %v", errors.ErrTransport, err)
		}

		switch envelope.Event {
		case chat.EventReceiveMessage:
			msg, err := envelope.Message()
			if err != nil {
				c.log.Warn("Dropping malformed relay message", "room", envelope.Room, "error", err)
				continue
			}
			c.dispatch(envelope.Room, msg)
		case chat.EventError:
			c.log.Warn("Relay rejected a frame", "room", envelope.Room, "error", envelope.Error)
		default:
			c.log.Debug("Ignoring relay frame", "event", envelope.Event)
		}
	}
}

func (c *RelayConn) dispatch(room chat.PlanID, msg chat.Message) {
	c.mu.RLock()
	handlers := make([]func(chat.Message), 0, len(c.subs))
	for _, sub := range c.subs {
		if sub.room == room {
			handlers = append(handlers, sub.fn)
		}
	}
	c.mu.RUnlock()

	for _, fn := range handlers {
		fn(msg)
	}
}

func (c *RelayConn) write(envelope chat.Envelope) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := c.conn.WriteJSON(envelope); err != nil {
		return fmt.Errorf("%w: relay write: %v", errors.ErrTransport, err)
	}
	return nil
}

// Close sends a close frame then drops the connection.
func (c *RelayConn) Close() error {
	c.writeMu.Lock()
	_ = c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	c.writeMu.Unlock()
	return c.conn.Close()
}
