package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"plan-chat/auth"
	"plan-chat/contract"
	"plan-chat/observability"
	"plan-chat/runtime"
	"plan-chat/services"

	"github.com/gorilla/mux"
)

// IRelay is what the websocket handler needs from the room relay.
type IRelay interface {
	Connect(ctx context.Context, connID contract.ConnID, sink contract.EventSink) error
	Handle(ctx context.Context, connID contract.ConnID, userID string, frame []byte) error
	Disconnect(ctx context.Context, connID contract.ConnID) error
	Stats(ctx context.Context) (runtime.RelayStats, error)
}

type Dependencies struct {
	Chat    services.IChatService
	Relay   IRelay
	Issuer  *auth.TokenIssuer
	Sampler *observability.ProcessSampler
	// MediaRoot is served under /media/ when set.
	MediaRoot            string
	MaxBodyBytes         int64
	ConnectionBufferSize int
	MaxFrameSize         int64
	Log                  *slog.Logger
}

func NewRouter(deps Dependencies) *mux.Router {
	messages := &MessageHandler{chat: deps.Chat, maxBodyBytes: deps.MaxBodyBytes, log: deps.Log}
	relay := &RelayHandler{
		relay:        deps.Relay,
		bufferSize:   deps.ConnectionBufferSize,
		maxFrameSize: deps.MaxFrameSize,
		log:          deps.Log,
	}
	status := &StatusHandler{relay: deps.Relay, sampler: deps.Sampler}

	r := mux.NewRouter()
	r.Use(loggingMiddleware(deps.Log))

	r.Handle("/messages", deps.Issuer.Middleware(http.HandlerFunc(messages.Post))).Methods(http.MethodPost)
	r.HandleFunc("/messages", messages.List).Methods(http.MethodGet)
	r.HandleFunc("/messages/search", messages.Search).Methods(http.MethodGet)
	r.Handle("/relay", deps.Issuer.Middleware(relay)).Methods(http.MethodGet)
	r.HandleFunc("/health", HandleHealth).Methods(http.MethodGet)
	r.HandleFunc("/stats", status.Stats).Methods(http.MethodGet)

	if deps.MediaRoot != "" {
		r.PathPrefix("/media/").
			Handler(http.StripPrefix("/media/", http.FileServer(http.Dir(deps.MediaRoot)))).
			Methods(http.MethodGet)
	}
	return r
}

// loggingMiddleware leaves the ResponseWriter untouched so websocket upgrades can hijack it.
func loggingMiddleware(log *slog.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			next.ServeHTTP(w, r)
			log.Debug("HTTP request", "method", r.Method, "path", r.URL.Path, "duration", time.Since(start))
		})
	}
}
