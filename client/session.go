package client

import (
	"context"
	"log/slog"
	"sync"

	"plan-chat/domain/chat"
	"plan-chat/errors"
)

// Session is the chat of one plan for one user: it keeps the View in sync with
// the gateway history and the relay feed, and submits the Composer content.
type Session struct {
	planID   chat.PlanID
	gateway  Gateway
	relay    Relay
	view     *View
	composer *Composer
	log      *slog.Logger

	mu          sync.Mutex
	unsubscribe func()
}

func NewSession(planID chat.PlanID, gateway Gateway, relay Relay, view *View, log *slog.Logger) *Session {
	return &Session{
		planID:   planID,
		gateway:  gateway,
		relay:    relay,
		view:     view,
		composer: &Composer{},
		log:      log.With("plan_id", planID),
	}
}

func (s *Session) View() *View { return s.view }

func (s *Session) Composer() *Composer { return s.composer }

// Mount joins the plan room, loads the history and appends live messages.
// The subscription starts before the history fetch; View dedupes the overlap.
func (s *Session) Mount(ctx context.Context) error {
	if err := s.relay.JoinRoom(s.planID); err != nil {
		return err
	}

	unsubscribe := s.relay.Subscribe(s.planID, func(msg chat.Message) {
		s.view.Append(msg)
	})
	s.mu.Lock()
	s.unsubscribe = unsubscribe
	s.mu.Unlock()

	history, err := s.gateway.ListMessages(ctx, s.planID)
	if err != nil {
		s.log.Error("Failed to fetch messages", "error", err)
		s.Unmount()
		return err
	}
	s.view.SetHistory(history)
	s.log.Debug("Session mounted", "history", len(history))
	return nil
}

// Unmount stops the live feed. The room itself is never left.
func (s *Session) Unmount() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.unsubscribe != nil {
		s.unsubscribe()
		s.unsubscribe = nil
	}
}

// Submit persists the composer content then re-emits the stored record on the relay.
// On failure the composer keeps its content so the user can retry.
func (s *Session) Submit(ctx context.Context) (chat.Message, error) {
	if s.composer.IsEmpty() {
		return chat.Message{}, errors.ErrEmptyMessage
	}

	imagePayload, err := s.composer.ImagePayload()
	if err != nil {
		s.log.Error("Failed to read attachment", "error", err)
		return chat.Message{}, err
	}

	msg, err := s.gateway.CreateMessage(ctx, CreateMessageRequest{
		PlanID:       s.planID,
		Text:         s.composer.Text(),
		ImagePayload: imagePayload,
	})
	if err != nil {
		s.log.Error("Failed to send message", "error", err)
		return chat.Message{}, err
	}

	s.view.Append(msg)
	if err := s.relay.SendMessage(msg); err != nil {
		// Already persisted: the others will see it on their next history load
		s.log.Warn("Failed to relay message", "message_id", msg.ID, "error", err)
	}
	s.composer.Clear()
	return msg, nil
}
