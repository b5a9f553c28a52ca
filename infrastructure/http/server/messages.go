package server

import (
	"encoding/json"
	stderrors "errors"
	"log/slog"
	"net/http"
	"strconv"

	"plan-chat/auth"
	"plan-chat/domain/chat"
	"plan-chat/errors"
	"plan-chat/services"
)

const (
	msgSendFailed  = "Failed to send message"
	msgFetchFailed = "Failed to fetch messages"
	msgMissingPlan = "Plan ID is required"

	msgBodyTooLarge = "Request body is too large"
)

type postMessageRequest struct {
	Text         string `json:"text"`
	PlanID       string `json:"planId"`
	AuthorID     string `json:"authorId,omitempty"`
	ImagePayload string `json:"imagePayload,omitempty"`
}

type messageResponse struct {
	Success bool         `json:"success"`
	Message chat.Message `json:"message"`
}

type messagesResponse struct {
	Success  bool           `json:"success"`
	Messages []chat.Message `json:"messages"`
}

type errorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

type MessageHandler struct {
	chat         services.IChatService
	maxBodyBytes int64
	log          *slog.Logger
}

// Post persists a message. The author is the token subject; a body authorId is ignored.
func (h *MessageHandler) Post(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, errors.ErrMissingToken.Error())
		return
	}
	if h.maxBodyBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxBodyBytes)
	}

	var body postMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		var tooLarge *http.MaxBytesError
		if stderrors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, msgBodyTooLarge)
			return
		}
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if body.AuthorID != "" && body.AuthorID != userID {
		h.log.Debug("Body authorId ignored", "author_id", body.AuthorID, "user_id", userID)
	}

	stored, err := h.chat.PostMessage(r.Context(), chat.PostMessageCommand{
		PlanID:       chat.PlanID(body.PlanID),
		AuthorID:     userID,
		Text:         body.Text,
		ImagePayload: body.ImagePayload,
	})
	if err != nil {
		status := errors.HTTPStatus(err)
		if status == http.StatusInternalServerError {
			writeError(w, status, msgSendFailed)
			return
		}
		writeError(w, status, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Success: true, Message: stored})
}

func (h *MessageHandler) List(w http.ResponseWriter, r *http.Request) {
	planID := r.URL.Query().Get("planId")
	messages, err := h.chat.GetMessages(r.Context(), chat.GetMessagesCommand{PlanID: chat.PlanID(planID)})
	if err != nil {
		switch {
		case stderrors.Is(err, errors.ErrMissingPlanID):
			writeError(w, http.StatusBadRequest, msgMissingPlan)
		default:
			writeError(w, http.StatusInternalServerError, msgFetchFailed)
		}
		return
	}
	writeJSON(w, http.StatusOK, messagesResponse{Success: true, Messages: messages})
}

func (h *MessageHandler) Search(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	limit := 0
	if raw := query.Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "limit must be a number")
			return
		}
		limit = parsed
	}

	messages, err := h.chat.SearchMessages(r.Context(), chat.SearchMessagesCommand{
		PlanID: chat.PlanID(query.Get("planId")),
		Terms:  query.Get("q"),
		Limit:  limit,
	})
	if err != nil {
		switch {
		case stderrors.Is(err, errors.ErrMissingPlanID):
			writeError(w, http.StatusBadRequest, msgMissingPlan)
		case stderrors.Is(err, errors.ErrValidation):
			writeError(w, http.StatusBadRequest, err.Error())
		case stderrors.Is(err, errors.ErrSearchDisabled):
			writeError(w, http.StatusServiceUnavailable, err.Error())
		default:
			writeError(w, http.StatusInternalServerError, msgFetchFailed)
		}
		return
	}
	writeJSON(w, http.StatusOK, messagesResponse{Success: true, Messages: messages})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Success: false, Error: message})
}
