package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"horses/communication/server"
	"horses/game"
	"horses/meta"
)

// Client talks to a game server's JSON API.
type Client struct {
	serverURL string
	http      *http.Client
}

// APIError carries a non-2xx answer from the server.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("server answered %d: %s", e.Status, e.Message)
}

func NewClient(serverURL string) *Client {
	return &Client{
		serverURL: strings.TrimRight(serverURL, "/"),
		http:      &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *Client) State(ctx context.Context) (server.StatusResponse, error) {
	var status server.StatusResponse
	err := c.do(ctx, http.MethodGet, "/api/state", nil, &status)
	return status, err
}

func (c *Client) Move(ctx context.Context, from, to game.Position) (server.StatusResponse, error) {
	var status server.StatusResponse
	err := c.do(ctx, http.MethodPost, "/api/move", server.MoveRequest{From: from, To: to}, &status)
	return status, err
}

func (c *Client) Reset(ctx context.Context, difficulty meta.Difficulty) (server.StatusResponse, error) {
	var status server.StatusResponse
	err := c.do(ctx, http.MethodPost, "/api/reset", server.ResetRequest{Difficulty: difficulty}, &status)
	return status, err
}

func (c *Client) Destinations(ctx context.Context, from game.Position) ([]game.Position, error) {
	q := url.Values{}
	q.Set("row", strconv.Itoa(from.Row))
	q.Set("col", strconv.Itoa(from.Col))
	var destinations []game.Position
	err := c.do(ctx, http.MethodGet, "/api/moves?"+q.Encode(), nil, &destinations)
	return destinations, err
}

// AwaitReply polls until the engine is no longer thinking.
func (c *Client) AwaitReply(ctx context.Context, interval time.Duration) (server.StatusResponse, error) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		status, err := c.State(ctx)
		if err != nil || !status.Thinking {
			return status, err
		}
		select {
		case <-ctx.Done():
			return status, ctx.Err()
		case <-ticker.C:
		}
	}
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.serverURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		var apiErr struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&apiErr)
		return &APIError{Status: resp.StatusCode, Message: apiErr.Error}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", path, err)
	}
	return nil
}
