package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"horses/experiments/metrics"
	"horses/game"
	"horses/meta"

	"github.com/rs/zerolog/log"
)

// SearchRequest asks a search server for a move. Requests with the same
// Session share one repetition history on the server.
type SearchRequest struct {
	Session   string          `json:"session"`
	Level     meta.Difficulty `json:"level"`
	Heuristic string          `json:"heuristic"`
	State     game.GameState  `json:"state"`
}

type SearchResponse struct {
	Move   game.Move            `json:"move"`
	OK     bool                 `json:"ok"`
	Metric metrics.SearchMetric `json:"metric"`
}

var _ Agent = (*RemoteAgent)(nil)

// RemoteAgent searches through a server's /api/search endpoint.
type RemoteAgent struct {
	URL       string
	Session   string
	Level     meta.Difficulty
	Heuristic string
	Timeout   time.Duration

	client  *http.Client
	lastErr error
}

func NewRemoteAgent(url, session string, level meta.Difficulty, heuristic string) *RemoteAgent {
	return &RemoteAgent{
		URL:       strings.TrimRight(url, "/"),
		Session:   session,
		Level:     level,
		Heuristic: heuristic,
		client:    &http.Client{Timeout: 5 * time.Minute},
	}
}

// Err returns the error of the last failed request, if any.
func (a *RemoteAgent) Err() error {
	return a.lastErr
}

// Search asks the server for a move. If the request fails the first legal move
// is played instead and the error is kept for Err.
func (a *RemoteAgent) Search(state *game.GameState) (game.Move, bool, metrics.SearchMetric) {
	resp, err := a.requestMove(state)
	if err != nil {
		a.lastErr = err
		log.Error().Err(err).Msg("remote search failed, falling back to first legal move")
		fallback := state.LegalMoves()
		if len(fallback) == 0 {
			return game.Move{}, false, metrics.SearchMetric{}
		}
		return fallback[0], true, metrics.SearchMetric{}
	}
	a.lastErr = nil
	return resp.Move, resp.OK, resp.Metric
}

func (a *RemoteAgent) requestMove(state *game.GameState) (SearchResponse, error) {
	payload := SearchRequest{
		Session:   a.Session,
		Level:     a.Level,
		Heuristic: a.Heuristic,
		State:     *state,
	}
	bodyBytes, err := json.Marshal(payload)
	if err != nil {
		return SearchResponse{}, err
	}

	ctx := context.Background()
	if a.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.Timeout)
		defer cancel()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.URL+"/api/search", bytes.NewReader(bodyBytes))
	if err != nil {
		return SearchResponse{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return SearchResponse{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		out, _ := io.ReadAll(resp.Body)
		return SearchResponse{}, fmt.Errorf("search server returned status %d: %s", resp.StatusCode, bytes.TrimSpace(out))
	}

	var sr SearchResponse
	if err := json.NewDecoder(resp.Body).Decode(&sr); err != nil {
		return SearchResponse{}, fmt.Errorf("failed to decode search response: %w", err)
	}
	return sr, nil
}
