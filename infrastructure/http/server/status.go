package server

import (
	"net/http"
	"time"

	"plan-chat/observability"
	"plan-chat/runtime"
)

type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

func HandleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:    "UP",
		Timestamp: time.Now().UTC(),
	})
}

type StatsResponse struct {
	Relay   runtime.RelayStats          `json:"relay"`
	Process *observability.ProcessStats `json:"process,omitempty"`
}

type StatusHandler struct {
	relay   IRelay
	sampler *observability.ProcessSampler
}

func (h *StatusHandler) Stats(w http.ResponseWriter, r *http.Request) {
	relayStats, err := h.relay.Stats(r.Context())
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	response := StatsResponse{Relay: relayStats}
	if h.sampler != nil {
		latest := h.sampler.GetLatest()
		response.Process = &latest
	}
	writeJSON(w, http.StatusOK, response)
}
