package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"horses/experiments"
	"horses/game"
	"horses/gamemaster"
	"horses/meta"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"
)

// Server exposes one live session and tournament runs over HTTP and websockets.
type Server struct {
	session           *gamemaster.Session
	tournament        experiments.Config
	tournamentRunning atomic.Bool
	searches          *searchPool
	router            chi.Router
}

// StatusResponse is the view of the live session returned by every game endpoint.
type StatusResponse struct {
	State      game.GameState  `json:"state"`
	Hash       game.StateHash  `json:"hash"`
	Human      game.Player     `json:"human"`
	Difficulty meta.Difficulty `json:"difficulty"`
	Thinking   bool            `json:"thinking"`
	GameOver   bool            `json:"gameOver"`
	Winner     game.Player     `json:"winner"`
}

type MoveRequest struct {
	From game.Position `json:"from"`
	To   game.Position `json:"to"`
}

type ResetRequest struct {
	Difficulty meta.Difficulty `json:"difficulty,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// NewServer wires the routes. tournament is the base config for /ws/tournament;
// query parameters may narrow it.
func NewServer(session *gamemaster.Session, tournament experiments.Config) *Server {
	s := &Server{
		session:    session,
		tournament: tournament,
		searches:   newSearchPool(),
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/api/ping", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
	})
	r.Get("/api/state", s.handleState)
	r.Get("/api/moves", s.handleMoves)
	r.Post("/api/move", s.handleMove)
	r.Post("/api/reset", s.handleReset)
	r.Post("/api/search", s.handleSearch)
	r.Get("/ws/game", s.serveGame)
	r.Get("/ws/tournament", s.serveTournament)

	s.router = r
	return s
}

func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) status() StatusResponse {
	state := s.session.State()
	resp := StatusResponse{
		State:      state,
		Hash:       state.Hash(),
		Human:      s.session.Human(),
		Difficulty: s.session.Difficulty(),
		Thinking:   s.session.Thinking(),
		GameOver:   s.session.GameOver(),
	}
	if resp.GameOver {
		resp.Winner = state.Winner()
	}
	return resp
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.status())
}

func (s *Server) handleMoves(w http.ResponseWriter, r *http.Request) {
	row, errRow := strconv.Atoi(r.URL.Query().Get("row"))
	col, errCol := strconv.Atoi(r.URL.Query().Get("col"))
	if errRow != nil || errCol != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "row and col must be integers"})
		return
	}
	destinations := s.session.Destinations(game.Position{Row: row, Col: col})
	if destinations == nil {
		destinations = []game.Position{}
	}
	writeJSON(w, http.StatusOK, destinations)
}

func (s *Server) handleMove(w http.ResponseWriter, r *http.Request) {
	var payload MoveRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid payload"})
		return
	}
	if err := s.session.Play(payload.From, payload.To); err != nil {
		writeJSON(w, statusFor(err), errorResponse{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, s.status())
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	var payload ResetRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid payload"})
			return
		}
	}
	difficulty := payload.Difficulty
	if difficulty != "" {
		parsed, err := meta.ParseDifficulty(string(difficulty))
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
			return
		}
		difficulty = parsed
	}
	if err := s.session.Reset(difficulty); err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, s.status())
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, gamemaster.ErrIllegalMove):
		return http.StatusBadRequest
	case errors.Is(err, gamemaster.ErrNotYourTurn),
		errors.Is(err, gamemaster.ErrEngineThinking),
		errors.Is(err, gamemaster.ErrGameOver):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		log.Debug().
			Str("request_id", middleware.GetReqID(r.Context())).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("elapsed", time.Since(start)).
			Msg("request")
	})
}
