package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"plan-chat/auth"
	"plan-chat/domain/chat"
	"plan-chat/infrastructure/media"
	"plan-chat/infrastructure/storage"
	"plan-chat/runtime"
	"plan-chat/services"

	"github.com/dgraph-io/badger/v4"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

const (
	testSecret   = "a-test-secret-of-enough-length"
	pixelDataURL = "data:image/png;base64,iVBORw0KGgoAAAANSUhEUgAAAAEAAAABCAQAAAC1HAwCAAAAC0lEQVR42mNkYAAAAAYAAjCB0C8AAAAASUVORK5CYII="
)

type testGateway struct {
	server *httptest.Server
	issuer *auth.TokenIssuer
}

func newTestGateway(t *testing.T) testGateway {
	t.Helper()
	log := slog.Default()

	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).
		WithLoggingLevel(badger.ERROR).
		WithValueLogFileSize(16 << 20))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	mediaRoot := t.TempDir()
	issuer, err := auth.NewTokenIssuer(testSecret, "plan-chat")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	relay := runtime.NewRelay(runtime.NewRegistry(), 16, false, log)
	relayDone := make(chan struct{})
	go func() {
		_ = relay.Run(ctx)
		close(relayDone)
	}()

	server := httptest.NewUnstartedServer(nil)
	uploader, err := media.NewDiskUploader(mediaRoot, "http://"+server.Listener.Addr().String()+"/media", log)
	require.NoError(t, err)
	chatService := services.NewChatService(storage.NewBadgerMessageRepository(db, log), uploader, nil, nil, services.Limits{}, log)

	server.Config.Handler = NewRouter(Dependencies{
		Chat:                 chatService,
		Relay:                relay,
		Issuer:               issuer,
		MediaRoot:            mediaRoot,
		MaxBodyBytes:         1 << 20,
		ConnectionBufferSize: 8,
		Log:                  log,
	})
	server.Start()

	t.Cleanup(func() {
		server.CloseClientConnections()
		server.Close()
		cancel()
		<-relayDone
	})
	return testGateway{server: server, issuer: issuer}
}

func (g testGateway) token(t *testing.T, userID string) string {
	token, err := g.issuer.GenerateToken(userID, time.Hour)
	require.NoError(t, err)
	return token
}

func (g testGateway) post(t *testing.T, token string, body any) (*http.Response, map[string]any) {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	request, err := http.NewRequest(http.MethodPost, g.server.URL+"/messages", bytes.NewReader(raw))
	require.NoError(t, err)
	if token != "" {
		request.Header.Set("Authorization", "Bearer "+token)
	}
	response, err := http.DefaultClient.Do(request)
	require.NoError(t, err)
	return response, decode(t, response)
}

func (g testGateway) get(t *testing.T, path string) (*http.Response, map[string]any) {
	t.Helper()
	response, err := http.Get(g.server.URL + path)
	require.NoError(t, err)
	return response, decode(t, response)
}

func decode(t *testing.T, response *http.Response) map[string]any {
	t.Helper()
	defer response.Body.Close()
	var body map[string]any
	require.NoError(t, json.NewDecoder(response.Body).Decode(&body))
	return body
}

func TestGateway_Post_Then_List(t *testing.T) {
	req := require.New(t)
	gw := newTestGateway(t)
	token := gw.token(t, "u1")

	// Given two messages posted to plan-42 and one to plan-7
	response, body := gw.post(t, token, map[string]any{"planId": "plan-42", "text": "hi", "authorId": "spoofed"})
	req.Equal(http.StatusOK, response.StatusCode)
	req.Equal(true, body["success"])
	first := body["message"].(map[string]any)
	req.NotEmpty(first["id"])
	req.Equal("u1", first["authorId"])
	req.Nil(first["imageUrl"])

	response, _ = gw.post(t, token, map[string]any{"planId": "plan-7", "text": "elsewhere"})
	req.Equal(http.StatusOK, response.StatusCode)

	response, body = gw.post(t, token, map[string]any{"planId": "plan-42", "imagePayload": pixelDataURL})
	req.Equal(http.StatusOK, response.StatusCode)
	imageURL := body["message"].(map[string]any)["imageUrl"].(string)

	// When plan-42 history is fetched
	response, body = gw.get(t, "/messages?planId=plan-42")

	// Then it holds its two messages oldest first
	req.Equal(http.StatusOK, response.StatusCode)
	messages := body["messages"].([]any)
	req.Len(messages, 2)
	req.Equal("hi", messages[0].(map[string]any)["text"])
	req.Equal(imageURL, messages[1].(map[string]any)["imageUrl"])

	// And the uploaded image is served back
	image, err := http.Get(imageURL)
	req.NoError(err)
	defer image.Body.Close()
	req.Equal(http.StatusOK, image.StatusCode)
	content, err := io.ReadAll(image.Body)
	req.NoError(err)
	req.Equal("\x89PNG", string(content[:4]))
}

func TestGateway_List_Empty_Plan(t *testing.T) {
	req := require.New(t)
	gw := newTestGateway(t)

	response, body := gw.get(t, "/messages?planId=nobody-here")

	req.Equal(http.StatusOK, response.StatusCode)
	req.Equal([]any{}, body["messages"])
}

func TestGateway_Errors(t *testing.T) {
	gw := newTestGateway(t)
	token := gw.token(t, "u1")

	t.Run("missing planId on list", func(t *testing.T) {
		req := require.New(t)
		response, body := gw.get(t, "/messages")
		req.Equal(http.StatusBadRequest, response.StatusCode)
		req.Equal(map[string]any{"success": false, "error": "Plan ID is required"}, body)
	})

	t.Run("missing token on post", func(t *testing.T) {
		req := require.New(t)
		response, body := gw.post(t, "", map[string]any{"planId": "plan-42", "text": "hi"})
		req.Equal(http.StatusUnauthorized, response.StatusCode)
		req.Equal(false, body["success"])
	})

	t.Run("empty message", func(t *testing.T) {
		req := require.New(t)
		response, body := gw.post(t, token, map[string]any{"planId": "plan-42", "text": "  "})
		req.Equal(http.StatusBadRequest, response.StatusCode)
		req.Equal(false, body["success"])
	})

	t.Run("not an image", func(t *testing.T) {
		req := require.New(t)
		response, _ := gw.post(t, token, map[string]any{"planId": "plan-42", "imagePayload": "data:image/png;base64,aGVsbG8="})
		req.Equal(http.StatusBadRequest, response.StatusCode)
	})

	t.Run("search without an index", func(t *testing.T) {
		req := require.New(t)
		response, body := gw.get(t, "/messages/search?planId=plan-42&q=hello")
		req.Equal(http.StatusServiceUnavailable, response.StatusCode)
		req.Equal(false, body["success"])
		req.Contains(body["error"], "search is disabled")
	})

	t.Run("nothing was stored", func(t *testing.T) {
		req := require.New(t)
		_, body := gw.get(t, "/messages?planId=plan-42")
		req.Empty(body["messages"])
	})
}

func TestMessageHandler_Post_Oversized_Body(t *testing.T) {
	req := require.New(t)
	handler := &MessageHandler{maxBodyBytes: 64, log: slog.Default()}

	// Given an authenticated request larger than the body limit
	body := `{"planId":"plan-42","text":"` + strings.Repeat("a", 256) + `"}`
	request := httptest.NewRequest(http.MethodPost, "/messages", strings.NewReader(body))
	request = request.WithContext(auth.WithUserID(request.Context(), "u1"))
	recorder := httptest.NewRecorder()

	// When it is posted
	handler.Post(recorder, request)

	// Then it is refused as too large, in the usual error shape, before reaching the service
	req.Equal(http.StatusRequestEntityTooLarge, recorder.Code)
	req.JSONEq(`{"success":false,"error":"Request body is too large"}`, recorder.Body.String())
}

func TestGateway_Health(t *testing.T) {
	req := require.New(t)
	gw := newTestGateway(t)

	response, body := gw.get(t, "/health")
	req.Equal(http.StatusOK, response.StatusCode)
	req.Equal("UP", body["status"])

	response, body = gw.get(t, "/stats")
	req.Equal(http.StatusOK, response.StatusCode)
	req.Contains(body, "relay")
}

func dialRelay(t *testing.T, gw testGateway, userID string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(gw.server.URL, "http") + "/relay?token=" + gw.token(t, userID)
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readEnvelope(t *testing.T, conn *websocket.Conn) chat.Envelope {
	t.Helper()
	var envelope chat.Envelope
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	require.NoError(t, conn.ReadJSON(&envelope))
	return envelope
}

func TestGateway_Relay_Fanout(t *testing.T) {
	req := require.New(t)
	gw := newTestGateway(t)
	alice := dialRelay(t, gw, "alice")
	bob := dialRelay(t, gw, "bob")
	carol := dialRelay(t, gw, "carol")

	// Given alice and bob in plan-42, carol in plan-7
	req.NoError(alice.WriteJSON(chat.NewJoinRoom("plan-42")))
	req.NoError(bob.WriteJSON(chat.NewJoinRoom("plan-42")))
	req.NoError(carol.WriteJSON(chat.NewJoinRoom("plan-7")))

	// Frames of one connection are applied in order, so bob's join lands before his sync frame
	req.NoError(bob.WriteMessage(websocket.TextMessage, []byte(`{"event":"bogus"}`)))
	req.Equal(chat.EventError, readEnvelope(t, bob).Event)
	req.NoError(alice.WriteMessage(websocket.TextMessage, []byte(`{"event":"bogus"}`)))
	req.Equal(chat.EventError, readEnvelope(t, alice).Event)
	req.NoError(carol.WriteMessage(websocket.TextMessage, []byte(`{"event":"bogus"}`)))
	req.Equal(chat.EventError, readEnvelope(t, carol).Event)

	// When alice relays a persisted message
	payload := `{"id":"m1","planId":"plan-42","authorId":"alice","text":"hi","imageUrl":null,"createdAt":"2024-05-01T18:30:00Z"}`
	req.NoError(alice.WriteMessage(websocket.TextMessage, []byte(`{"event":"send-message","room":"plan-42","payload":`+payload+`}`)))

	// Then bob receives it verbatim
	got := readEnvelope(t, bob)
	req.Equal(chat.EventReceiveMessage, got.Event)
	req.JSONEq(payload, string(got.Payload))

	// And carol hears nothing
	req.NoError(carol.SetReadDeadline(time.Now().Add(200 * time.Millisecond)))
	_, _, err := carol.ReadMessage()
	req.Error(err)
}

func TestGateway_Relay_Rejects_Spoofed_Author(t *testing.T) {
	req := require.New(t)
	gw := newTestGateway(t)
	mallory := dialRelay(t, gw, "mallory")
	bob := dialRelay(t, gw, "bob")

	// Given mallory and bob in plan-42
	req.NoError(mallory.WriteJSON(chat.NewJoinRoom("plan-42")))
	req.NoError(bob.WriteJSON(chat.NewJoinRoom("plan-42")))
	req.NoError(bob.WriteMessage(websocket.TextMessage, []byte(`{"event":"bogus"}`)))
	req.Equal(chat.EventError, readEnvelope(t, bob).Event)

	// When mallory relays a message signed as bob
	payload := `{"id":"m1","planId":"plan-42","authorId":"bob","text":"I quit","imageUrl":null,"createdAt":"2024-05-01T18:30:00Z"}`
	req.NoError(mallory.WriteMessage(websocket.TextMessage, []byte(`{"event":"send-message","room":"plan-42","payload":`+payload+`}`)))

	// Then mallory is told off and bob receives nothing
	got := readEnvelope(t, mallory)
	req.Equal(chat.EventError, got.Event)
	req.Contains(got.Error, "authorId")

	req.NoError(bob.SetReadDeadline(time.Now().Add(200 * time.Millisecond)))
	_, _, err := bob.ReadMessage()
	req.Error(err)
}

func TestGateway_Relay_Requires_Token(t *testing.T) {
	req := require.New(t)
	gw := newTestGateway(t)

	url := "ws" + strings.TrimPrefix(gw.server.URL, "http") + "/relay"
	_, response, err := websocket.DefaultDialer.Dial(url, nil)
	req.ErrorIs(err, websocket.ErrBadHandshake)
	req.Equal(http.StatusUnauthorized, response.StatusCode)
}
