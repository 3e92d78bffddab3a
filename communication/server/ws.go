package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"horses/experiments"
	"horses/meta"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

const (
	wsIdlePingInterval = 30 * time.Second
	wsSendBuffer       = 64
)

// Message is the envelope of every websocket frame.
type Message struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// TournamentResult is the payload of the final "results" message.
type TournamentResult struct {
	Results experiments.Results `json:"results"`
	Table   string              `json:"table"`
}

var upgrader = websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}

func mustMarshal(v any) json.RawMessage {
	data, _ := json.Marshal(v)
	return data
}

func encode(kind string, v any) []byte {
	data, _ := json.Marshal(Message{Type: kind, Payload: mustMarshal(v)})
	return data
}

// serveGame streams session updates to one client until it disconnects.
func (s *Server) serveGame(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	updates, unsubscribe := s.session.Subscribe()
	defer unsubscribe()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	send := make(chan []byte, wsSendBuffer)
	send <- encode("status", s.status())

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return writeWithHeartbeat(ctx, conn, send)
	})
	g.Go(func() error {
		defer cancel()
		readUntilClosed(conn)
		return nil
	})
	g.Go(func() error {
		defer close(send)
		for {
			select {
			case <-ctx.Done():
				return nil
			case u, ok := <-updates:
				if !ok {
					return nil
				}
				if !enqueue(ctx, send, encode("update", u)) {
					return nil
				}
			}
		}
	})
	if err := g.Wait(); err != nil {
		log.Debug().Err(err).Msg("game stream closed")
	}
}

// serveTournament runs one tournament per connection and streams its progress,
// then the results. Closing the connection cancels the tournament.
func (s *Server) serveTournament(w http.ResponseWriter, r *http.Request) {
	cfg, err := s.tournamentConfig(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	if !s.tournamentRunning.CompareAndSwap(false, true) {
		writeJSON(w, http.StatusConflict, errorResponse{Error: "a tournament is already running"})
		return
	}
	defer s.tournamentRunning.Store(false)

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	send := make(chan []byte, wsSendBuffer)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return writeWithHeartbeat(ctx, conn, send)
	})
	g.Go(func() error {
		defer cancel()
		readUntilClosed(conn)
		return nil
	})
	g.Go(func() error {
		defer close(send)
		results, err := experiments.RunTournament(ctx, cfg, func(p experiments.Progress) {
			enqueue(ctx, send, encode("progress", p))
		})
		if err != nil {
			enqueue(ctx, send, encode("error", errorResponse{Error: err.Error()}))
			return err
		}
		enqueue(ctx, send, encode("results", TournamentResult{
			Results: results,
			Table:   experiments.FormatResultsTable(results, cfg.Levels),
		}))
		return nil
	})
	if err := g.Wait(); err != nil {
		log.Info().Err(err).Msg("tournament stream ended")
	}
}

// tournamentConfig narrows the base config with the levels, matches and seed
// query parameters.
func (s *Server) tournamentConfig(r *http.Request) (experiments.Config, error) {
	cfg := s.tournament
	cfg.Levels = append([]meta.Difficulty(nil), s.tournament.Levels...)
	cfg.OutputDir = ""

	q := r.URL.Query()
	if raw := q.Get("levels"); raw != "" {
		cfg.Levels = nil
		for _, name := range strings.Split(raw, ",") {
			cfg.Levels = append(cfg.Levels, meta.Difficulty(name))
		}
	}
	if raw := q.Get("matches"); raw != "" {
		matches, err := strconv.Atoi(raw)
		if err != nil {
			return cfg, err
		}
		cfg.MatchesPerPairing = matches
	}
	if raw := q.Get("seed"); raw != "" {
		seed, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			return cfg, err
		}
		cfg.Seed = seed
	}
	return cfg, cfg.Validate()
}

func enqueue(ctx context.Context, send chan<- []byte, msg []byte) bool {
	select {
	case send <- msg:
		return true
	case <-ctx.Done():
		return false
	}
}

// readUntilClosed drains client frames; it returns once the connection is gone.
func readUntilClosed(conn *websocket.Conn) {
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

// writeWithHeartbeat writes queued frames, pinging idle clients. When send is
// closed it sends a close frame and closes the connection.
func writeWithHeartbeat(ctx context.Context, conn *websocket.Conn, send <-chan []byte) error {
	defer conn.Close()
	ticker := time.NewTicker(wsIdlePingInterval)
	defer ticker.Stop()
	lastWrite := time.Now()
	pingPayload := encode("ping", nil)

	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-send:
			if !ok {
				closing := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "done")
				_ = conn.WriteControl(websocket.CloseMessage, closing, time.Now().Add(time.Second))
				return nil
			}
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return err
			}
			lastWrite = time.Now()
		case <-ticker.C:
			if time.Since(lastWrite) < wsIdlePingInterval {
				continue
			}
			if err := conn.WriteMessage(websocket.TextMessage, pingPayload); err != nil {
				return err
			}
			lastWrite = time.Now()
		}
	}
}
