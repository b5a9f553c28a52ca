package sink

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"plan-chat/contract"
	"plan-chat/domain/chat"
	"plan-chat/errors"

	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10

	// DefaultMaxFrameSize bounds an inbound relay frame.
	DefaultMaxFrameSize = 1 << 20
)

// FrameHandler receives every text frame read from the peer.
// Returning an error closes the connection.
type FrameHandler func(ctx context.Context, frame []byte) error

// WebsocketSink owns one relay connection. Consume is called by the relay loop
// and never blocks: frames are queued and written by the write pump.
type WebsocketSink struct {
	ConnID       contract.ConnID
	conn         *websocket.Conn
	send         chan chat.Envelope
	closed       chan struct{}
	closeOnce    sync.Once
	maxFrameSize int64
	log          *slog.Logger
}

func NewWebsocketSink(connID contract.ConnID, conn *websocket.Conn, bufferSize int, maxFrameSize int64, log *slog.Logger) *WebsocketSink {
	if maxFrameSize <= 0 {
		maxFrameSize = DefaultMaxFrameSize
	}
	return &WebsocketSink{
		ConnID:       connID,
		conn:         conn,
		send:         make(chan chat.Envelope, bufferSize),
		closed:       make(chan struct{}),
		maxFrameSize: maxFrameSize,
		log:          log.With("conn_id", connID),
	}
}

func (s *WebsocketSink) Consume(ctx context.Context, e chat.Envelope) error {
	select {
	case <-s.closed:
		return errors.ErrSinkClosed
	default:
	}
	select {
	case s.send <- e:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		s.log.Warn("Connection buffer full, frame dropped", "event", e.Event, "room", e.Room)
		return errors.ErrSlowConsumer
	}
}

// Serve runs the read and write pumps until the peer leaves or ctx is done.
func (s *WebsocketSink) Serve(ctx context.Context, handle FrameHandler) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		s.writePump(ctx)
	}()

	s.readPump(ctx, handle)
	s.close()
	cancel()
	<-writerDone
}

func (s *WebsocketSink) close() {
	s.closeOnce.Do(func() { close(s.closed) })
}

func (s *WebsocketSink) readPump(ctx context.Context, handle FrameHandler) {
	s.conn.SetReadLimit(s.maxFrameSize)
	_ = s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		messageType, frame, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.log.Debug("Connection read failed", "error", err)
			}
			return
		}
		if messageType != websocket.TextMessage {
			continue
		}
		if err := handle(ctx, frame); err != nil {
			s.log.Debug("Frame handler stopped the connection", "error", err)
			return
		}
	}
}

func (s *WebsocketSink) writePump(ctx context.Context) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = s.conn.Close()
	}()

	for {
		select {
		case e := <-s.send:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteJSON(e); err != nil {
				s.log.Debug("Connection write failed", "error", err)
				return
			}
		case <-ticker.C:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-ctx.Done():
			_ = s.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(writeWait))
			return
		}
	}
}
