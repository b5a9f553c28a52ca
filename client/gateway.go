// Package client is the Go side of the plan chat: a gateway HTTP client, a relay
// websocket connection and the session state a terminal or UI renders.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"plan-chat/domain/chat"
	"plan-chat/errors"
)

const defaultHTTPTimeout = 30 * time.Second

// Gateway is what a Session needs from the message store gateway.
type Gateway interface {
	CreateMessage(ctx context.Context, request CreateMessageRequest) (chat.Message, error)
	ListMessages(ctx context.Context, planID chat.PlanID) ([]chat.Message, error)
}

type CreateMessageRequest struct {
	PlanID       chat.PlanID `json:"planId"`
	Text         string      `json:"text"`
	ImagePayload string      `json:"imagePayload,omitempty"`
}

type gatewayResponse struct {
	Success  bool           `json:"success"`
	Error    string         `json:"error"`
	Message  chat.Message   `json:"message"`
	Messages []chat.Message `json:"messages"`
}

type GatewayClient struct {
	baseURL string
	token   string
	http    *http.Client
	log     *slog.Logger
}

// NewGatewayClient targets baseURL (e.g. http://localhost:8080). A nil httpClient gets a default one.
func NewGatewayClient(baseURL, token string, httpClient *http.Client, log *slog.Logger) *GatewayClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultHTTPTimeout}
	}
	return &GatewayClient{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		token:   token,
		http:    httpClient,
		log:     log,
	}
}

func (g *GatewayClient) CreateMessage(ctx context.Context, request CreateMessageRequest) (chat.Message, error) {
	body, err := json.Marshal(request)
	if err != nil {
		return chat.Message{}, err
	}
	httpRequest, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/messages", bytes.NewReader(body))
	if err != nil {
		return chat.Message{}, err
	}
	httpRequest.Header.Set("Content-Type", "application/json")
	httpRequest.Header.Set("Authorization", "Bearer "+g.token)

	response, err := g.do(httpRequest)
	if err != nil {
		return chat.Message{}, err
	}
	g.log.Debug("Message created", "plan_id", response.Message.PlanID, "message_id", response.Message.ID)
	return response.Message, nil
}

func (g *GatewayClient) ListMessages(ctx context.Context, planID chat.PlanID) ([]chat.Message, error) {
	query := url.Values{"planId": {planID.String()}}
	return g.getMessages(ctx, "/messages?"+query.Encode())
}

func (g *GatewayClient) SearchMessages(ctx context.Context, planID chat.PlanID, terms string, limit int) ([]chat.Message, error) {
	query := url.Values{"planId": {planID.String()}, "q": {terms}}
	if limit > 0 {
		query.Set("limit", strconv.Itoa(limit))
	}
	return g.getMessages(ctx, "/messages/search?"+query.Encode())
}

func (g *GatewayClient) getMessages(ctx context.Context, path string) ([]chat.Message, error) {
	httpRequest, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+path, nil)
	if err != nil {
		return nil, err
	}
	response, err := g.do(httpRequest)
	if err != nil {
		return nil, err
	}
	if response.Messages == nil {
		return []chat.Message{}, nil
	}
	return response.Messages, nil
}

// do sends the request and unwraps the {success, error} envelope into sentinel errors.
func (g *GatewayClient) do(request *http.Request) (gatewayResponse, error) {
	response, err := g.http.Do(request)
	if err != nil {
		return gatewayResponse{}, fmt.Errorf("%w: %v", errors.ErrTransport, err)
	}
	defer response.Body.Close()

	raw, err := io.ReadAll(response.Body)
	if err != nil {
		return gatewayResponse{}, fmt.Errorf("%w: %v", errors.ErrTransport, err)
	}
	var body gatewayResponse
	if err := json.Unmarshal(raw, &body); err != nil {
		return gatewayResponse{}, fmt.Errorf("%w: unexpected gateway answer (%d): %v", errors.ErrTransport, response.StatusCode, err)
	}

	if response.StatusCode == http.StatusOK && body.Success {
		return body, nil
	}
	switch response.StatusCode {
	case http.StatusBadRequest:
		return gatewayResponse{}, fmt.Errorf("%w: %s", errors.ErrValidation, body.Error)
	case http.StatusUnauthorized:
		return gatewayResponse{}, fmt.Errorf("%w: %s", errors.ErrUnauthenticated, body.Error)
	case http.StatusServiceUnavailable:
		return gatewayResponse{}, errors.ErrSearchDisabled
	default:
		return gatewayResponse{}, fmt.Errorf("%w: gateway answered %d: %s", errors.ErrTransport, response.StatusCode, body.Error)
	}
}
