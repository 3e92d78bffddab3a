package searcher

import (
	"horses/game"
	"horses/meta"
)

// Immediate-gain bias added to root candidates on top of their searched value.
// It deliberately pulls the choice towards captures available right now.
const (
	ImmediatePointsWeight = 100.0
	ImmediateMultiplier   = 20.0
)

const DefaultRepetitionCap = meta.REPETITION_CAP

// Searcher picks a move for the side to move. ok is false when that side has no
// legal move.
type Searcher interface {
	FindBestMove(state *game.GameState) (move game.Move, ok bool)
}
