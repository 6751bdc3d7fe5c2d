// Package broadcast is the client side of the injection endpoint: backend
// services use it to push events into rooms without holding a live socket.
package broadcast

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/sony/gobreaker"
	"github.com/Xhand98/skillswap-realtime/internal/domain/model"
)

// Fatal responses from the injection endpoint. Never retried automatically.
var (
	ErrUnauthorized = errors.New("broadcast: invalid auth token")
	ErrBadRequest   = errors.New("broadcast: missing required parameters")
)

// Result is the decoded success response.
type Result struct {
	Success   bool               `json:"success"`
	Message   string             `json:"message"`
	RoomName  string             `json:"roomName"`
	EventName string             `json:"eventName"`
	Stats     model.GatewayStats `json:"stats"`
}

type injectRequest struct {
	RoomName  string `json:"roomName"`
	EventName string `json:"eventName"`
	Data      any    `json:"data"`
	AuthToken string `json:"authToken"`
}

// Client posts broadcasts to the gateway's injection endpoint. A circuit
// breaker sheds calls while the gateway is down so the calling backend's
// request path is not held hostage by realtime delivery, which is an
// enhancement layer, not the source of truth.
type Client struct {
	baseURL   string
	authToken string
	logger    *slog.Logger
	http      *http.Client
	breaker   *gobreaker.CircuitBreaker
}

func NewClient(baseURL, authToken string, logger *slog.Logger) *Client {
	return &Client{
		baseURL:   baseURL,
		authToken: authToken,
		logger:    logger,
		http:      &http.Client{Timeout: 5 * time.Second},
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:    "socket-broadcast",
			Timeout: 30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 5
			},
			// Contract violations are the caller's bug, not gateway
			// unavailability; they must not open the circuit.
			IsSuccessful: func(err error) bool {
				return err == nil || errors.Is(err, ErrUnauthorized) || errors.Is(err, ErrBadRequest)
			},
		}),
	}
}

// Broadcast injects one event into a room. Auth and validation failures are
// returned as sentinel errors and do not count against the breaker.
func (c *Client) Broadcast(ctx context.Context, roomName, eventName string, data any) (*Result, error) {
	out, err := c.breaker.Execute(func() (any, error) {
		return c.post(ctx, roomName, eventName, data)
	})
	if err != nil {
		return nil, err
	}
	return out.(*Result), nil
}

func (c *Client) post(ctx context.Context, roomName, eventName string, data any) (*Result, error) {
	body, err := json.Marshal(injectRequest{
		RoomName:  roomName,
		EventName: eventName,
		Data:      data,
		AuthToken: c.authToken,
	})
	if err != nil {
		return nil, fmt.Errorf("broadcast: marshal: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/socket-broadcast", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("broadcast: request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("broadcast: post: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusUnauthorized:
		return nil, ErrUnauthorized
	case http.StatusBadRequest:
		return nil, ErrBadRequest
	default:
		return nil, fmt.Errorf("broadcast: gateway returned %d", resp.StatusCode)
	}

	var res Result
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		return nil, fmt.Errorf("broadcast: decode: %w", err)
	}
	return &res, nil
}

// BroadcastNewMessage notifies a conversation room about a stored message.
func (c *Client) BroadcastNewMessage(ctx context.Context, conversationID int64, messageData any) {
	c.fireAndForget(ctx, model.ConversationRoom(conversationID), model.EventNewMessage, messageData)
}

// BroadcastNewComment notifies a post room about a stored comment.
func (c *Client) BroadcastNewComment(ctx context.Context, postID int64, commentData any) {
	c.fireAndForget(ctx, model.PostRoom(postID), model.EventNewComment, commentData)
}

// BroadcastTypingStart relays a typing indicator on behalf of a user.
func (c *Client) BroadcastTypingStart(ctx context.Context, conversationID, userID int64) {
	c.fireAndForget(ctx, model.ConversationRoom(conversationID), model.EventUserTypingStart, model.TypingPayload{
		UserID:         userID,
		ConversationID: conversationID,
	})
}

// BroadcastTypingStop relays the end of typing on behalf of a user.
func (c *Client) BroadcastTypingStop(ctx context.Context, conversationID, userID int64) {
	c.fireAndForget(ctx, model.ConversationRoom(conversationID), model.EventUserTypingStop, model.TypingPayload{
		UserID:         userID,
		ConversationID: conversationID,
	})
}

// fireAndForget logs failures instead of returning them; realtime delivery
// must never break the caller's primary flow.
func (c *Client) fireAndForget(ctx context.Context, roomName, eventName string, data any) {
	if _, err := c.Broadcast(ctx, roomName, eventName, data); err != nil {
		c.logger.Warn("realtime broadcast skipped",
			"room", roomName,
			"event", eventName,
			"err", err,
		)
	}
}
