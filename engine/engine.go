package engine

import (
	"context"

	"horses/experiments/metrics"
	"horses/game"
	"horses/meta"
)

const MaxMoves = meta.MAX_MOVES

type Runner interface {
	// Run plays a game until no rewards remain, the side to move is stuck or the move cap is hit
	Run(ctx context.Context) (gameMetric metrics.GameMetric, moveMetrics []metrics.MoveMetric, err error)
}

// Agent chooses moves for whichever side is to move in the given state.
type Agent interface {
	Search(state *game.GameState) (move game.Move, ok bool, metric metrics.SearchMetric)
}
