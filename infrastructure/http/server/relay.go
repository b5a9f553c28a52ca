package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"plan-chat/auth"
	"plan-chat/contract"
	"plan-chat/sink"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const disconnectTimeout = 5 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// RelayHandler upgrades an authenticated request and attaches the connection to the relay.
type RelayHandler struct {
	relay        IRelay
	bufferSize   int
	maxFrameSize int64
	log          *slog.Logger
}

func (h *RelayHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Debug("Upgrade error", "error", err)
		return
	}

	connID := contract.ConnID(uuid.NewString())
	ws := sink.NewWebsocketSink(connID, conn, h.bufferSize, h.maxFrameSize, h.log)
	if err := h.relay.Connect(r.Context(), connID, ws); err != nil {
		h.log.Warn("Relay refused the connection", "conn_id", connID, "error", err)
		_ = conn.Close()
		return
	}
	h.log.Debug("Relay connection opened", "conn_id", connID, "user_id", userID)

	ws.Serve(r.Context(), func(ctx context.Context, frame []byte) error {
		return h.relay.Handle(ctx, connID, userID, frame)
	})

	ctx, cancel := context.WithTimeout(context.Background(), disconnectTimeout)
	defer cancel()
	if err := h.relay.Disconnect(ctx, connID); err != nil {
		h.log.Debug("Relay disconnect failed", "conn_id", connID, "error", err)
	}
	h.log.Debug("Relay connection closed", "conn_id", connID, "user_id", userID)
}
