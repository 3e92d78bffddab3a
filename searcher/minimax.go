package searcher

import (
	"errors"
	"fmt"
	"math"

	"horses/experiments/metrics"
	"horses/game"

	"github.com/rs/zerolog/log"
)

var ErrInvalidDepth = errors.New("search depth must be positive")

var _ Searcher = (*Minimax)(nil)

// Minimax is a fixed-depth alpha-beta search session. Values are always taken
// from the perspective of the side to move at the root.
//
// A session remembers how often it picked each root move and refuses to pick
// the same (from, to) pair more than the repetition cap allows, so one value
// should be used per logical player. It is not safe for concurrent use.
type Minimax struct {
	depth           int
	evaluate        game.Evaluate
	repetitionCap   int
	pointsWeight    float64
	multiplierBonus float64
	usage           map[game.Move]int
	metrics         metrics.Collector
}

func NewMinimax(depth int, options ...Option) (*Minimax, error) {
	if depth <= 0 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidDepth, depth)
	}
	m := &Minimax{ // Default values
		depth:           depth,
		evaluate:        game.EvaluateAggressive,
		repetitionCap:   DefaultRepetitionCap,
		pointsWeight:    ImmediatePointsWeight,
		multiplierBonus: ImmediateMultiplier,
		usage:           make(map[game.Move]int),
		metrics:         metrics.NewDummyCollector(),
	}
	for _, option := range options {
		option(m)
	}
	return m, nil
}

func (m *Minimax) Depth() int {
	return m.depth
}

// Usage reports how often move has been chosen since the last reset.
func (m *Minimax) Usage(move game.Move) int {
	return m.usage[move]
}

// Reset forgets the repetition history.
func (m *Minimax) Reset() {
	clear(m.usage)
}

func (m *Minimax) FindBestMove(state *game.GameState) (game.Move, bool) {
	move, ok, _ := m.Search(state)
	return move, ok
}

// Search picks a move for the side to move in state and reports search
// statistics. state itself is never modified.
//
// Candidates are compared by their searched value plus an immediate-gain bonus
// for the reward and multiplier on the destination. Ties keep the earliest
// candidate in leap-table order.
func (m *Minimax) Search(state *game.GameState) (game.Move, bool, metrics.SearchMetric) {
	m.metrics.Start(m.depth)

	root := state.Clone()
	side := root.CurrentPlayer
	moves := root.LegalMoves()
	if len(moves) == 0 {
		log.Debug().Str("side", side.String()).Msg("no legal moves")
		return game.Move{}, false, m.metrics.Complete()
	}

	candidates := m.filterRepeated(moves)
	m.metrics.SetCandidates(len(candidates), len(moves)-len(candidates))

	best := candidates[0]
	bestScore := math.Inf(-1)
	for _, move := range candidates {
		child, ok := root.Play(move)
		if !ok {
			continue
		}
		score := m.minimax(child, m.depth-1, side, math.Inf(-1), math.Inf(1)) + m.immediateBonus(root, move)

		log.Debug().Str("move", move.String()).Float64("score", score).Msg("evaluated candidate")

		if score > bestScore {
			bestScore = score
			best = move
		}
	}

	m.usage[best]++
	log.Debug().Str("side", side.String()).Str("move", best.String()).Float64("score", bestScore).Msg("selected move")
	return best, true, m.metrics.Complete()
}

// filterRepeated drops moves chosen repetitionCap times already. If nothing is
// left the cap is waived for this turn and the history cleared.
func (m *Minimax) filterRepeated(moves []game.Move) []game.Move {
	allowed := make([]game.Move, 0, len(moves))
	for _, move := range moves {
		if m.usage[move] < m.repetitionCap {
			allowed = append(allowed, move)
		}
	}
	if len(allowed) == 0 {
		m.Reset()
		m.metrics.SetRepetitionReset(true)
		return moves
	}
	return allowed
}

func (m *Minimax) immediateBonus(state *game.GameState, move game.Move) float64 {
	cell := state.Cell(move.To)
	bonus := float64(cell.Points) * m.pointsWeight
	if cell.Multiplier {
		bonus += m.multiplierBonus
	}
	return bonus
}

// minimax returns the value of state for side. A node whose mover is stuck is
// worth -Inf to side if side is stuck, +Inf otherwise.
func (m *Minimax) minimax(state *game.GameState, depth int, side game.Player, alpha, beta float64) float64 {
	m.metrics.AddNode()
	if depth == 0 || !state.HasPointsRemaining() {
		m.metrics.AddLeaf()
		return m.evaluate(state, side)
	}

	maximizing := state.CurrentPlayer == side
	moves := state.LegalMoves()
	if len(moves) == 0 {
		if maximizing {
			return math.Inf(-1)
		}
		return math.Inf(1)
	}

	if maximizing {
		value := math.Inf(-1)
		for _, move := range moves {
			child, ok := state.Play(move)
			if !ok {
				continue
			}
			value = max(value, m.minimax(child, depth-1, side, alpha, beta))
			alpha = max(alpha, value)
			if alpha >= beta {
				m.metrics.AddCutoff()
				break
			}
		}
		return value
	}

	value := math.Inf(1)
	for _, move := range moves {
		child, ok := state.Play(move)
		if !ok {
			continue
		}
		value = min(value, m.minimax(child, depth-1, side, alpha, beta))
		beta = min(beta, value)
		if alpha >= beta {
			m.metrics.AddCutoff()
			break
		}
	}
	return value
}
