// Package avatar manages Tavus video avatar conversations for the
// avatar-fronted assistant variant.
package avatar

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/spokenlabs/concierge/internal/log"
)

const defaultBaseURL = "https://tavusapi.com"

// ErrMissingAPIKey is returned when a client is built without credentials.
var ErrMissingAPIKey = errors.New("avatar: Tavus API key required")

// Conversation is a live avatar room. The URL is where the video session is
// joined; the ID is what the session is ended with.
type Conversation struct {
	ConversationID  string `json:"conversation_id"`
	ConversationURL string `json:"conversation_url"`
	Status          string `json:"status"`
}

type createRequest struct {
	ReplicaID        string `json:"replica_id"`
	ConversationName string `json:"conversation_name,omitempty"`
}

type apiError struct {
	Message string `json:"message"`
}

// Client talks to the Tavus conversations API.
type Client struct {
	http      *resty.Client
	replicaID string
}

// New creates a Tavus client for the given replica.
func New(apiKey, replicaID string) (*Client, error) {
	if apiKey == "" {
		return nil, ErrMissingAPIKey
	}
	if replicaID == "" {
		return nil, errors.New("avatar: replica ID required")
	}

	http := resty.New().
		SetBaseURL(defaultBaseURL).
		SetTimeout(15 * time.Second).
		SetHeader("x-api-key", apiKey)

	return &Client{http: http, replicaID: replicaID}, nil
}

// SetBaseURL points the client at a different API host. Used by tests.
func (c *Client) SetBaseURL(url string) {
	c.http.SetBaseURL(url)
}

// CreateConversation opens a new avatar room for the configured replica.
func (c *Client) CreateConversation(ctx context.Context, name string) (*Conversation, error) {
	var (
		conv   Conversation
		apiErr apiError
	)

	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(createRequest{ReplicaID: c.replicaID, ConversationName: name}).
		SetResult(&conv).
		SetError(&apiErr).
		Post("/v2/conversations")
	if err != nil {
		return nil, fmt.Errorf("avatar: create conversation failed: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("avatar: create conversation failed: %s (status %d)", apiErr.Message, resp.StatusCode())
	}

	log.Info("avatar conversation created", "id", conv.ConversationID, "url", conv.ConversationURL)
	return &conv, nil
}

// EndConversation tears down a room. Called on shutdown so replica minutes
// are not left running.
func (c *Client) EndConversation(ctx context.Context, conversationID string) error {
	if conversationID == "" {
		return errors.New("avatar: conversation ID required")
	}

	var apiErr apiError
	resp, err := c.http.R().
		SetContext(ctx).
		SetError(&apiErr).
		Post("/v2/conversations/" + conversationID + "/end")
	if err != nil {
		return fmt.Errorf("avatar: end conversation failed: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("avatar: end conversation failed: %s (status %d)", apiErr.Message, resp.StatusCode())
	}

	log.Info("avatar conversation ended", "id", conversationID)
	return nil
}
