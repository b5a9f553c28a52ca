package chat

import (
	"encoding/json"
	"testing"

	"plan-chat/errors"

	"github.com/stretchr/testify/require"
)

func TestParseEnvelope(t *testing.T) {
	tests := []struct {
		name    string
		frame   string
		room    PlanID
		wantErr error
	}{
		{"Join with room field", `{"event":"join-room","room":"plan-42"}`, "plan-42", nil},
		{"Join with bare payload", `{"event":"join-room","payload":"plan-42"}`, "plan-42", nil},
		{"Join without room", `{"event":"join-room"}`, "", errors.ErrMissingPlanID},
		{"Send with room", `{"event":"send-message","room":"plan-42","payload":{"planId":"plan-42","text":"hi"}}`, "plan-42", nil},
		{"Send falls back to payload plan id", `{"event":"send-message","payload":{"planId":"plan-7","text":"hi"}}`, "plan-7", nil},
		{"Send without any room", `{"event":"send-message","payload":{"text":"hi"}}`, "", errors.ErrMissingPlanID},
		{"Send to another room", `{"event":"send-message","room":"plan-42","payload":{"planId":"plan-7"}}`, "", errors.ErrInvalidRoom},
		{"Send without payload", `{"event":"send-message","room":"plan-42"}`, "", errors.ErrValidation},
		{"Send with scalar payload", `{"event":"send-message","room":"plan-42","payload":12}`, "", errors.ErrValidation},
		{"Client cannot emit receive", `{"event":"receive-message","room":"plan-42","payload":{}}`, "", errors.ErrValidation},
		{"Unknown event", `{"event":"leave-room","room":"plan-42"}`, "", errors.ErrValidation},
		{"Malformed JSON", `{"event":`, "", errors.ErrValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := require.New(t)
			env, err := ParseEnvelope([]byte(tt.frame))
			if tt.wantErr != nil {
				req.ErrorIs(err, tt.wantErr)
				return
			}
			req.NoError(err)
			req.Equal(tt.room, env.Room)
		})
	}
}

func TestEnvelope_CheckAuthor(t *testing.T) {
	tests := []struct {
		name    string
		frame   string
		userID  string
		wantErr error
	}{
		{"Own message", `{"event":"send-message","payload":{"planId":"p","authorId":"alice","text":"hi"}}`, "alice", nil},
		{"No author claimed", `{"event":"send-message","payload":{"planId":"p","text":"hi"}}`, "alice", nil},
		{"Join is not checked", `{"event":"join-room","room":"p"}`, "alice", nil},
		{"Someone else's name", `{"event":"send-message","payload":{"planId":"p","authorId":"bob","text":"hi"}}`, "alice", errors.ErrSpoofedAuthor},
		{"Anonymous connection", `{"event":"send-message","payload":{"planId":"p","authorId":"bob","text":"hi"}}`, "", errors.ErrSpoofedAuthor},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := require.New(t)
			env, err := ParseEnvelope([]byte(tt.frame))
			req.NoError(err)
			err = env.CheckAuthor(tt.userID)
			if tt.wantErr != nil {
				req.ErrorIs(err, tt.wantErr)
				req.ErrorIs(err, errors.ErrValidation)
				return
			}
			req.NoError(err)
		})
	}
}

func TestReceiveMessage_KeepsPayloadVerbatim(t *testing.T) {
	req := require.New(t)
	payload := `{"planId":"plan-42","text":"hi","extra":{"nested":true}}`

	// Given a send frame carrying fields unknown to Message
	env, err := ParseEnvelope([]byte(`{"event":"send-message","room":"plan-42","payload":` + payload + `}`))
	req.NoError(err)

	// When it is turned into a receive frame
	out, err := json.Marshal(NewReceiveMessage(env.Room, env.Payload))
	req.NoError(err)

	// Then the payload bytes are untouched
	var decoded struct {
		Event   EventType       `json:"event"`
		Payload json.RawMessage `json:"payload"`
	}
	req.NoError(json.Unmarshal(out, &decoded))
	req.Equal(EventReceiveMessage, decoded.Event)
	req.JSONEq(payload, string(decoded.Payload))
}

func TestNewSendMessage_RoundTrip(t *testing.T) {
	req := require.New(t)
	msg := Message{ID: "1", PlanID: "p1", AuthorID: "u1", Text: "hello"}

	env, err := NewSendMessage(msg)
	req.NoError(err)
	req.Equal(PlanID("p1"), env.Room)

	decoded, err := env.Message()
	req.NoError(err)
	req.Equal(msg.Text, decoded.Text)
	req.Nil(decoded.ImageURL)
}
