// Package client submits hardware keys to an activation server.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"keyactivate/pkg/protocol"
)

// StatusError is returned when the server answers with a non-200 status.
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("activation failed: HTTP %d", e.StatusCode)
	}
	return fmt.Sprintf("activation failed: HTTP %d: %s", e.StatusCode, e.Message)
}

// Client talks to one activation server.
type Client struct {
	BaseURL string
	HTTP    *http.Client
}

// New creates a Client for baseURL with a 15 second request timeout.
func New(baseURL string) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTP:    &http.Client{Timeout: 15 * time.Second},
	}
}

// Activate posts key and returns the server's reply.
func (c *Client) Activate(ctx context.Context, key string) (*protocol.ActivateResponse, error) {
	body, err := json.Marshal(protocol.ActivateRequest{Key: protocol.Key(key)})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/activate", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var out protocol.ActivateResponse
	decodeErr := json.NewDecoder(resp.Body).Decode(&out)
	if resp.StatusCode != http.StatusOK {
		return nil, &StatusError{StatusCode: resp.StatusCode, Message: out.Message}
	}
	if decodeErr != nil {
		return nil, fmt.Errorf("decode activation response: %w", decodeErr)
	}
	return &out, nil
}
