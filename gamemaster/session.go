package gamemaster

import (
	"context"
	"fmt"
	"sync"
	"time"

	"horses/game"
	"horses/meta"
	"horses/searcher"

	"github.com/rs/zerolog/log"
	"golang.org/x/exp/rand"
)

const updateBuffer = 16

// Session is a live game between a human and the engine. White always moves
// first. All methods are safe for concurrent use; moves are applied one at a
// time.
type Session struct {
	mu          sync.Mutex
	state       *game.GameState
	human       game.Player
	difficulty  meta.Difficulty
	evaluate    game.Evaluate
	engine      searcher.Searcher
	thinking    bool
	stalled     bool
	replyDelay  time.Duration
	cancelReply context.CancelFunc
	replies     sync.WaitGroup

	rng    *rand.Rand
	seed   uint64
	seeded bool
	layout *game.Layout

	subscribers map[chan Update]struct{}

	ctx    context.Context
	cancel context.CancelFunc
}

func NewSession(difficulty meta.Difficulty, options ...Option) (*Session, error) {
	s := &Session{ // Default values
		human:       game.White,
		evaluate:    game.EvaluateAggressive,
		replyDelay:  ReplyDelay,
		subscribers: make(map[chan Update]struct{}),
	}
	for _, option := range options {
		option(s)
	}
	if !s.seeded {
		s.seed = uint64(time.Now().UnixNano())
	}
	s.rng = rand.New(rand.NewSource(s.seed))
	s.ctx, s.cancel = context.WithCancel(context.Background())

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.reset(difficulty); err != nil {
		s.cancel()
		return nil, err
	}
	return s, nil
}

// State returns a copy of the live state.
func (s *Session) State() game.GameState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.state
}

func (s *Session) Human() game.Player {
	return s.human
}

func (s *Session) Difficulty() meta.Difficulty {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.difficulty
}

func (s *Session) Thinking() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.thinking
}

// GameOver reports whether all rewards are gone or the engine had no move.
func (s *Session) GameOver() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gameOver()
}

func (s *Session) gameOver() bool {
	return s.stalled || s.state.IsGameOver()
}

// Destinations lists where the horse on from may move, empty if from holds no
// horse of the side to move.
func (s *Session) Destinations(from game.Position) []game.Position {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !from.IsValid() {
		return nil
	}
	horse := s.state.Horse(s.state.CurrentPlayer)
	if horse.Position != from {
		return nil
	}
	return s.state.MovesFrom(from)
}

// Play applies a human move and schedules the engine reply after the reply
// delay.
func (s *Session) Play(from, to game.Position) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.gameOver() {
		return ErrGameOver
	}
	if s.thinking {
		return ErrEngineThinking
	}
	if s.state.CurrentPlayer != s.human {
		return ErrNotYourTurn
	}
	if from.IsValid() && s.state.Horse(s.human.Opponent()).Position == from {
		return fmt.Errorf("%w: %s holds the %s horse", ErrNotYourTurn, from, s.human.Opponent())
	}
	if err := s.state.CheckMove(from, to); err != nil {
		return fmt.Errorf("%w: %w", ErrIllegalMove, err)
	}
	if !s.state.MakeMove(from, to) {
		return fmt.Errorf("%w: %s->%s", ErrIllegalMove, from, to)
	}

	log.Debug().Msgf("human played %s->%s", from, to)
	s.publish(game.Move{From: from, To: to}, s.human, false)
	s.scheduleReply()
	return nil
}

// Reset starts a fresh random board and a fresh search session. An empty
// difficulty keeps the current one.
func (s *Session) Reset(difficulty meta.Difficulty) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if difficulty == "" {
		difficulty = s.difficulty
	}
	return s.reset(difficulty)
}

func (s *Session) reset(difficulty meta.Difficulty) error {
	depth, err := difficulty.Depth()
	if err != nil {
		return err
	}
	engine, err := searcher.NewMinimax(depth, searcher.WithEvaluationFn(s.evaluate))
	if err != nil {
		return err
	}

	var state *game.GameState
	if s.layout != nil {
		layout := *s.layout
		layout.Starting = game.White
		state, err = game.NewCustomState(layout)
		s.layout = nil
	} else {
		state, err = game.NewGameState(s.rng, game.White)
	}
	if err != nil {
		return fmt.Errorf("failed to create board: %w", err)
	}

	if s.cancelReply != nil {
		s.cancelReply()
		s.cancelReply = nil
	}
	s.state = state
	s.engine = engine
	s.difficulty = difficulty
	s.thinking = false
	s.stalled = false

	log.Info().Msgf("new %s game, human plays %s", difficulty, s.human)
	s.publish(game.Move{}, game.None, true)
	if s.state.CurrentPlayer != s.human {
		s.scheduleReply()
	}
	return nil
}

// scheduleReply must be called with mu held.
func (s *Session) scheduleReply() {
	if s.gameOver() {
		return
	}
	ctx, cancel := context.WithCancel(s.ctx)
	s.cancelReply = cancel
	s.thinking = true
	s.replies.Add(1)
	go s.reply(ctx, s.engine, s.state.Clone())
}

func (s *Session) reply(ctx context.Context, engine searcher.Searcher, snapshot *game.GameState) {
	defer s.replies.Done()

	timer := time.NewTimer(s.replyDelay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return
	case <-timer.C:
	}

	move, ok := engine.FindBestMove(snapshot)

	s.mu.Lock()
	defer s.mu.Unlock()
	if ctx.Err() != nil || engine != s.engine {
		return
	}
	s.thinking = false
	side := s.state.CurrentPlayer
	if !ok {
		s.stalled = true
		log.Info().Msgf("engine has no legal move as %s", side)
		s.publish(game.Move{}, side, false)
		return
	}
	if !s.state.MakeMove(move.From, move.To) {
		log.Error().Msgf("engine chose illegal move %s", move)
		s.stalled = true
		s.publish(game.Move{}, side, false)
		return
	}
	log.Debug().Msgf("engine played %s", move)
	s.publish(move, side, false)
}

// Subscribe returns a stream of updates and a function that ends the
// subscription. Updates are dropped for subscribers that fall behind.
func (s *Session) Subscribe() (<-chan Update, func()) {
	ch := make(chan Update, updateBuffer)
	s.mu.Lock()
	s.subscribers[ch] = struct{}{}
	s.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subscribers, ch)
			s.mu.Unlock()
			close(ch)
		})
	}
}

// publish must be called with mu held.
func (s *Session) publish(move game.Move, side game.Player, reset bool) {
	u := Update{
		Move:     move,
		Side:     side,
		State:    *s.state,
		Hash:     s.state.Hash(),
		GameOver: s.gameOver(),
		Reset:    reset,
	}
	if u.GameOver {
		u.Winner = s.state.Winner()
	}
	for ch := range s.subscribers {
		select {
		case ch <- u:
		default:
			log.Warn().Msg("dropping update for slow subscriber")
		}
	}
}

// Wait blocks until no engine reply is pending.
func (s *Session) Wait() {
	s.replies.Wait()
}

// Close cancels a pending engine reply and waits for it to return.
func (s *Session) Close() {
	s.cancel()
	s.replies.Wait()
}
