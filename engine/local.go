package engine

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"horses/experiments/metrics"
	"horses/game"

	"github.com/rs/zerolog/log"
)

type Option func(e *Engine)

// Engine drives one match between two agents on a single live state.
type Engine struct {
	State    *game.GameState
	Agents   map[game.Player]Agent
	maxMoves int
	yield    func()
	onMove   func(state *game.GameState, move game.Move)
}

// WithMaxMoves overrides the safety cap on moves per match.
func WithMaxMoves(maxMoves int) Option {
	return func(e *Engine) {
		if maxMoves > 0 {
			e.maxMoves = maxMoves
		}
	}
}

// WithYield replaces the pause taken after every move. The default hands the
// processor to other goroutines.
func WithYield(yield func()) Option {
	return func(e *Engine) {
		if yield != nil {
			e.yield = yield
		}
	}
}

// WithOnMove registers a callback invoked after each applied move with the live state.
func WithOnMove(onMove func(state *game.GameState, move game.Move)) Option {
	return func(e *Engine) {
		e.onMove = onMove
	}
}

func LocalEngine(state *game.GameState, white, black Agent, options ...Option) (*Engine, error) {
	if state == nil {
		return nil, fmt.Errorf("engine needs a game state")
	}
	if white == nil || black == nil {
		return nil, fmt.Errorf("engine needs an agent for each side")
	}

	e := &Engine{
		State:    state,
		Agents:   map[game.Player]Agent{game.White: white, game.Black: black},
		maxMoves: MaxMoves,
		yield:    runtime.Gosched,
		onMove:   func(*game.GameState, game.Move) {},
	}
	for _, option := range options {
		option(e)
	}
	return e, nil
}

// Run executes the game loop. Agents receive the live state and must only
// explore copies of it.
func (e *Engine) Run(ctx context.Context) (metrics.GameMetric, []metrics.MoveMetric, error) {
	gameMetric := metrics.GameMetric{
		StartingPlayer: e.State.CurrentPlayer.String(),
		StartTime:      time.Now(),
	}
	var moveMetrics []metrics.MoveMetric

	log.Debug().Msgf("%s is starting", e.State.CurrentPlayer)

	step := 0
	for e.State.HasPointsRemaining() {
		if step >= e.maxMoves {
			gameMetric.Capped = true
			log.Warn().Msgf("stopped after %d moves with rewards left", step)
			break
		}
		if err := ctx.Err(); err != nil {
			return gameMetric, moveMetrics, fmt.Errorf("match interrupted after %d moves: %w", step, err)
		}

		mover := e.State.CurrentPlayer
		agent, ok := e.Agents[mover]
		if !ok {
			return gameMetric, moveMetrics, fmt.Errorf("no agent for side %s", mover)
		}

		move, ok, searchMetric := agent.Search(e.State)
		if !ok {
			gameMetric.Stalled = true
			log.Info().Msgf("%s has no legal move, ending match", mover)
			break
		}

		before := e.State.Score(mover)
		if !e.State.MakeMove(move.From, move.To) {
			fallback := e.State.LegalMoves()
			if len(fallback) == 0 {
				gameMetric.Stalled = true
				break
			}
			log.Warn().Msgf("%s returned illegal move %s, playing %s", mover, move, fallback[0])
			move = fallback[0]
			e.State.MakeMove(move.From, move.To)
		}
		step++

		moveMetrics = append(moveMetrics, metrics.MoveMetric{
			Step:         step,
			Player:       mover.String(),
			Move:         move.String(),
			Gain:         e.State.Score(mover) - before,
			SearchMetric: searchMetric,
		})

		e.onMove(e.State, move)
		e.yield()
	}

	gameMetric.EndTime = time.Now()
	gameMetric.Duration = gameMetric.EndTime.Sub(gameMetric.StartTime)
	gameMetric.TotalMoves = step
	gameMetric.WhiteScore = e.State.WhiteScore
	gameMetric.BlackScore = e.State.BlackScore
	if winner := e.State.Winner(); winner != game.None {
		gameMetric.Winner = winner.String()
	}

	return gameMetric, moveMetrics, nil
}
