package chat

import (
	"encoding/json"
	"fmt"

	"plan-chat/errors"
)

// EventType tags a relay frame.
type EventType string

const (
	EventJoinRoom       EventType = "join-room"
	EventSendMessage    EventType = "send-message"
	EventReceiveMessage EventType = "receive-message"
	EventError          EventType = "error"
)

// Envelope is the frame exchanged on the relay connection.
// Payload is kept raw so that a relayed message reaches the room members byte for byte.
type Envelope struct {
	Event   EventType       `json:"event" validate:"required,oneof=join-room send-message receive-message error"`
	Room    PlanID          `json:"room,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// ParseEnvelope decodes and validates an inbound frame.
// Join frames carry the room either in Room or, as a bare JSON string, in Payload.
// Send frames without Room fall back to the payload plan id.
func ParseEnvelope(data []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Envelope{}, fmt.Errorf("%w: malformed frame: %v", errors.ErrValidation, err)
	}
	if err := validate.Struct(env); err != nil {
		return Envelope{}, fmt.Errorf("%w: %v", errors.ErrValidation, err)
	}

	switch env.Event {
	case EventJoinRoom:
		if env.Room == "" && len(env.Payload) > 0 {
			var room string
			if err := json.Unmarshal(env.Payload, &room); err == nil {
				env.Room = PlanID(room)
			}
		}
		if env.Room == "" {
			return Envelope{}, errors.ErrMissingPlanID
		}
	case EventSendMessage:
		msg, err := env.Message()
		if err != nil {
			return Envelope{}, err
		}
		if env.Room == "" {
			env.Room = msg.PlanID
		}
		if env.Room == "" {
			return Envelope{}, errors.ErrMissingPlanID
		}
		if msg.PlanID != "" && msg.PlanID != env.Room {
			return Envelope{}, errors.ErrInvalidRoom
		}
	default:
		return Envelope{}, fmt.Errorf("%w: clients cannot emit %q", errors.ErrValidation, env.Event)
	}
	return env, nil
}

// CheckAuthor rejects a send frame whose payload claims another author than userID.
// A payload without authorId is accepted.
func (e Envelope) CheckAuthor(userID string) error {
	if e.Event != EventSendMessage {
		return nil
	}
	msg, err := e.Message()
	if err != nil {
		return err
	}
	if msg.AuthorID != "" && msg.AuthorID != userID {
		return errors.ErrSpoofedAuthor
	}
	return nil
}

// Message decodes the typed body of a send/receive frame.
func (e Envelope) Message() (Message, error) {
	if len(e.Payload) == 0 {
		return Message{}, fmt.Errorf("%w: payload is required", errors.ErrValidation)
	}
	var msg Message
	if err := json.Unmarshal(e.Payload, &msg); err != nil {
		return Message{}, fmt.Errorf("%w: payload is not a message: %v", errors.ErrValidation, err)
	}
	return msg, nil
}

func NewJoinRoom(room PlanID) Envelope {
	return Envelope{Event: EventJoinRoom, Room: room}
}

func NewSendMessage(msg Message) (Envelope, error) {
	payload, err := json.Marshal(msg)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{Event: EventSendMessage, Room: msg.PlanID, Payload: payload}, nil
}

// NewReceiveMessage wraps an already validated payload without re-encoding it.
func NewReceiveMessage(room PlanID, payload json.RawMessage) Envelope {
	return Envelope{Event: EventReceiveMessage, Room: room, Payload: payload}
}

func NewErrorEvent(room PlanID, err error) Envelope {
	return Envelope{Event: EventError, Room: room, Error: err.Error()}
}
