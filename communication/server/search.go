package server

import (
	"encoding/json"
	"net/http"
	"sync"

	"horses/engine"
	"horses/game"
	"horses/meta"
	"horses/searcher"
)

const maxSearchSessions = 64

// searchPool keeps one search session per remote caller so the repetition
// guard sees the caller's whole game. The pool lock only guards the map; each
// session serialises its own searches.
type searchPool struct {
	mu       sync.Mutex
	sessions map[string]*searchSession
}

type searchSession struct {
	mu sync.Mutex
	m  *searcher.Minimax
}

func newSearchPool() *searchPool {
	return &searchPool{sessions: make(map[string]*searchSession)}
}

// session returns the session stored under key, creating it on first use. An
// empty key gets a fresh session that is not kept.
func (p *searchPool) session(key string, depth int, evaluate game.Evaluate) (*searchSession, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if ss, ok := p.sessions[key]; ok && key != "" {
		return ss, nil
	}
	m, err := searcher.NewMinimax(depth, searcher.WithEvaluationFn(evaluate), searcher.WithMetrics())
	if err != nil {
		return nil, err
	}
	ss := &searchSession{m: m}
	if key != "" {
		if len(p.sessions) >= maxSearchSessions {
			clear(p.sessions)
		}
		p.sessions[key] = ss
	}
	return ss, nil
}

func (p *searchPool) search(req engine.SearchRequest) (engine.SearchResponse, int, error) {
	level, err := meta.ParseDifficulty(string(req.Level))
	if err != nil {
		return engine.SearchResponse{}, http.StatusBadRequest, err
	}
	evaluate, err := game.HeuristicByName(req.Heuristic)
	if err != nil {
		return engine.SearchResponse{}, http.StatusBadRequest, err
	}

	key := ""
	if req.Session != "" {
		key = req.Session + "|" + string(level) + "|" + req.Heuristic
	}
	depth, _ := level.Depth()
	ss, err := p.session(key, depth, evaluate)
	if err != nil {
		return engine.SearchResponse{}, http.StatusInternalServerError, err
	}

	ss.mu.Lock()
	defer ss.mu.Unlock()
	move, found, metric := ss.m.Search(&req.State)
	return engine.SearchResponse{Move: move, OK: found, Metric: metric}, http.StatusOK, nil
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var payload engine.SearchRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid payload"})
		return
	}
	resp, status, err := s.searches.search(payload)
	if err != nil {
		writeJSON(w, status, errorResponse{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, resp)
}
