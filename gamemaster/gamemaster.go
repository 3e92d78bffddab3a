package gamemaster

import (
	"errors"
	"time"

	"horses/game"
	"horses/meta"
)

var (
	ErrGameOver       = errors.New("game is over - no moves allowed")
	ErrNotYourTurn    = errors.New("not your turn")
	ErrIllegalMove    = errors.New("illegal move")
	ErrEngineThinking = errors.New("engine is still thinking")
)

// ReplyDelay separates a human move from the engine's answer.
const ReplyDelay = meta.REPLY_DELAY

// Update is published after every applied move and after a reset. Move is the
// zero value for a reset.
type Update struct {
	Move     game.Move      `json:"move"`
	Side     game.Player    `json:"side"`
	State    game.GameState `json:"state"`
	Hash     game.StateHash `json:"hash"`
	GameOver bool           `json:"gameOver"`
	Winner   game.Player    `json:"winner"`
	Reset    bool           `json:"reset,omitempty"`
}

type Option func(s *Session)

// WithHumanSide sets the side the human plays. The engine plays the other one.
func WithHumanSide(side game.Player) Option {
	return func(s *Session) {
		if side == game.White || side == game.Black {
			s.human = side
		}
	}
}

func WithReplyDelay(delay time.Duration) Option {
	return func(s *Session) {
		if delay >= 0 {
			s.replyDelay = delay
		}
	}
}

// WithSeed makes the sequence of generated boards reproducible.
func WithSeed(seed uint64) Option {
	return func(s *Session) {
		s.seed = seed
		s.seeded = true
	}
}

// WithLayout replaces the first generated board. Later resets draw random boards.
func WithLayout(layout game.Layout) Option {
	return func(s *Session) {
		l := layout
		s.layout = &l
	}
}

func WithEvaluationFn(evaluate game.Evaluate) Option {
	return func(s *Session) {
		if evaluate != nil {
			s.evaluate = evaluate
		}
	}
}
