package client

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"plan-chat/domain/chat"
	"plan-chat/errors"

	"github.com/stretchr/testify/require"
)

// 1x1 transparent PNG
var pixelPNG = []byte{
	0x89, 0x50, 0x4e, 0x47, 0x0d, 0x0a, 0x1a, 0x0a, 0x00, 0x00, 0x00, 0x0d, 0x49, 0x48, 0x44, 0x52,
	0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00, 0x01, 0x08, 0x04, 0x00, 0x00, 0x00, 0xb5, 0x1c, 0x0c,
	0x02, 0x00, 0x00, 0x00, 0x0b, 0x49, 0x44, 0x41, 0x54, 0x78, 0xda, 0x63, 0x64, 0x60, 0x00, 0x00,
	0x00, 0x06, 0x00, 0x02, 0x30, 0x81, 0xd0, 0x2f, 0x00, 0x00, 0x00, 0x00, 0x49, 0x45, 0x4e, 0x44,
	0xae, 0x42, 0x60, 0x82,
}

type fakeGateway struct {
	mu        sync.Mutex
	history   []chat.Message
	created   []CreateMessageRequest
	createErr error
	listErr   error
}

func (f *fakeGateway) CreateMessage(_ context.Context, request CreateMessageRequest) (chat.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.created = append(f.created, request)
	if f.createErr != nil {
		return chat.Message{}, f.createErr
	}
	return chat.Message{
		ID:        fmt.Sprintf("m%d", len(f.created)),
		PlanID:    request.PlanID,
		AuthorID:  "alice",
		Text:      request.Text,
		CreatedAt: time.Now().UTC(),
	}, nil
}

func (f *fakeGateway) ListMessages(_ context.Context, _ chat.PlanID) ([]chat.Message, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.history, nil
}

type fakeRelay struct {
	mu     sync.Mutex
	joined []chat.PlanID
	sent   []chat.Message
	subs   map[chat.PlanID]func(chat.Message)
}

func (f *fakeRelay) JoinRoom(room chat.PlanID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.joined = append(f.joined, room)
	return nil
}

func (f *fakeRelay) SendMessage(msg chat.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, msg)
	return nil
}

func (f *fakeRelay) Subscribe(room chat.PlanID, fn func(chat.Message)) func() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.subs == nil {
		f.subs = make(map[chat.PlanID]func(chat.Message))
	}
	f.subs[room] = fn
	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		delete(f.subs, room)
	}
}

func (f *fakeRelay) deliver(room chat.PlanID, msg chat.Message) {
	f.mu.Lock()
	fn := f.subs[room]
	f.mu.Unlock()
	if fn != nil {
		fn(msg)
	}
}

func newTestSession(gateway *fakeGateway, relay *fakeRelay) *Session {
	return NewSession("plan-1", gateway, relay, NewView("alice", 0, 0), slog.Default())
}

func TestSession_Mount_Loads_History_And_Follows_Relay(t *testing.T) {
	req := require.New(t)
	now := time.Now().UTC()
	gateway := &fakeGateway{history: []chat.Message{message("m1", "bob", "earlier", now)}}
	relay := &fakeRelay{}
	session := newTestSession(gateway, relay)

	// When the session mounts
	req.NoError(session.Mount(context.Background()))

	// Then the room is joined and the history displayed
	req.Equal([]chat.PlanID{"plan-1"}, relay.joined)
	req.Len(session.View().Messages(), 1)

	// And live messages are appended
	relay.deliver("plan-1", message("m2", "bob", "live", now))
	req.Len(session.View().Messages(), 2)

	// Until the session unmounts
	session.Unmount()
	relay.deliver("plan-1", message("m3", "bob", "late", now))
	req.Len(session.View().Messages(), 2)
}

func TestSession_Mount_History_Failure_Drops_Subscription(t *testing.T) {
	req := require.New(t)
	gateway := &fakeGateway{listErr: errors.ErrTransport}
	relay := &fakeRelay{}
	session := newTestSession(gateway, relay)

	// When the history cannot be fetched
	err := session.Mount(context.Background())

	// Then the mount fails and no live feed is left behind
	req.ErrorIs(err, errors.ErrTransport)
	req.Empty(relay.subs)
	relay.deliver("plan-1", message("m1", "bob", "live", time.Now()))
	req.Empty(session.View().Messages())
}

func TestSession_Submit_Empty_Sends_Nothing(t *testing.T) {
	req := require.New(t)
	gateway := &fakeGateway{}
	relay := &fakeRelay{}
	session := newTestSession(gateway, relay)

	session.Composer().SetText("   ")
	_, err := session.Submit(context.Background())

	req.ErrorIs(err, errors.ErrEmptyMessage)
	req.Empty(gateway.created)
	req.Empty(relay.sent)
}

func TestSession_Submit_Persists_Then_Relays(t *testing.T) {
	req := require.New(t)
	gateway := &fakeGateway{}
	relay := &fakeRelay{}
	session := newTestSession(gateway, relay)

	session.Composer().SetText("hello")
	msg, err := session.Submit(context.Background())
	req.NoError(err)

	// Then the stored record is shown, relayed and the composer cleared
	req.Equal("m1", msg.ID)
	req.Len(gateway.created, 1)
	req.Equal([]chat.Message{msg}, relay.sent)
	req.Equal([]chat.Message{msg}, session.View().Messages())
	req.True(session.Composer().IsEmpty())
}

func TestSession_Submit_Failure_Keeps_Composer(t *testing.T) {
	req := require.New(t)
	gateway := &fakeGateway{createErr: errors.ErrTransport}
	relay := &fakeRelay{}
	session := newTestSession(gateway, relay)

	session.Composer().SetText("hello")
	_, err := session.Submit(context.Background())

	req.ErrorIs(err, errors.ErrTransport)
	req.Equal("hello", session.Composer().Text())
	req.Empty(relay.sent)
	req.Empty(session.View().Messages())
}

func TestSession_Submit_Encodes_Image(t *testing.T) {
	req := require.New(t)
	gateway := &fakeGateway{}
	session := newTestSession(gateway, &fakeRelay{})

	path := filepath.Join(t.TempDir(), "pixel.png")
	req.NoError(os.WriteFile(path, pixelPNG, 0o600))
	session.Composer().AttachImage(path)

	_, err := session.Submit(context.Background())
	req.NoError(err)
	req.Len(gateway.created, 1)
	req.Contains(gateway.created[0].ImagePayload, "data:image/png;base64,")
	req.Empty(gateway.created[0].Text)
}

func TestSession_Submit_Unreadable_Image(t *testing.T) {
	req := require.New(t)
	gateway := &fakeGateway{}
	session := newTestSession(gateway, &fakeRelay{})

	session.Composer().AttachImage(filepath.Join(t.TempDir(), "missing.png"))
	_, err := session.Submit(context.Background())

	req.Error(err)
	req.Empty(gateway.created)
	req.False(session.Composer().IsEmpty())
}
