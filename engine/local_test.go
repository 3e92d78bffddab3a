package engine

import (
	"context"
	"testing"

	"horses/experiments/metrics"
	"horses/game"
	"horses/searcher"

	"github.com/stretchr/testify/require"
)

type stubAgent struct {
	move  game.Move
	ok    bool
	calls int
}

func (s *stubAgent) Search(state *game.GameState) (game.Move, bool, metrics.SearchMetric) {
	s.calls++
	return s.move, s.ok, metrics.SearchMetric{}
}

func newAgent(t *testing.T, depth int, evaluate game.Evaluate) *searcher.Minimax {
	t.Helper()
	m, err := searcher.NewMinimax(depth, searcher.WithEvaluationFn(evaluate), searcher.WithMetrics())
	require.NoError(t, err)
	return m
}

func TestLocalEngineRun(t *testing.T) {
	t.Run("plays until the rewards are gone", func(t *testing.T) {
		state, err := game.NewSeededGameState(1, game.White)
		require.NoError(t, err)
		yields := 0
		e, err := LocalEngine(state,
			newAgent(t, 2, game.EvaluateAggressive),
			newAgent(t, 2, game.EvaluateDefensive),
			WithYield(func() { yields++ }))
		require.NoError(t, err)

		gameMetric, moveMetrics, err := e.Run(context.Background())

		require.NoError(t, err)
		require.Equal(t, "white", gameMetric.StartingPlayer)
		require.Equal(t, len(moveMetrics), gameMetric.TotalMoves)
		require.Equal(t, gameMetric.TotalMoves, yields, "Engine should yield after every move")
		require.LessOrEqual(t, gameMetric.TotalMoves, MaxMoves)
		if !gameMetric.Capped && !gameMetric.Stalled {
			require.False(t, e.State.HasPointsRemaining())
			require.GreaterOrEqual(t, gameMetric.WhiteScore+gameMetric.BlackScore, game.TotalPoints)
		}
		gained := 0
		for i, mm := range moveMetrics {
			require.Equal(t, i+1, mm.Step)
			gained += mm.Gain
		}
		require.Equal(t, gameMetric.WhiteScore+gameMetric.BlackScore, gained)
		switch e.State.Winner() {
		case game.None:
			require.Empty(t, gameMetric.Winner)
		default:
			require.Equal(t, e.State.Winner().String(), gameMetric.Winner)
		}
	})

	t.Run("alternates agents by side to move", func(t *testing.T) {
		state, err := game.NewSeededGameState(2, game.Black)
		require.NoError(t, err)
		var movers []game.Player
		e, err := LocalEngine(state,
			newAgent(t, 1, game.EvaluateAggressive),
			newAgent(t, 1, game.EvaluateAggressive),
			WithMaxMoves(6),
			WithOnMove(func(s *game.GameState, _ game.Move) { movers = append(movers, s.CurrentPlayer.Opponent()) }))
		require.NoError(t, err)

		_, moveMetrics, err := e.Run(context.Background())

		require.NoError(t, err)
		for i, mover := range movers {
			if i%2 == 0 {
				require.Equal(t, game.Black, mover)
			} else {
				require.Equal(t, game.White, mover)
			}
			require.Equal(t, mover.String(), moveMetrics[i].Player)
		}
	})

	t.Run("stops at the move cap", func(t *testing.T) {
		state, err := game.NewSeededGameState(3, game.White)
		require.NoError(t, err)
		e, err := LocalEngine(state, newAgent(t, 1, game.EvaluateDefensive), newAgent(t, 1, game.EvaluateDefensive), WithMaxMoves(1))
		require.NoError(t, err)

		gameMetric, _, err := e.Run(context.Background())

		require.NoError(t, err)
		require.Equal(t, 1, gameMetric.TotalMoves)
		require.True(t, gameMetric.Capped || !e.State.HasPointsRemaining())
	})

	t.Run("ends when the side to move has no move", func(t *testing.T) {
		state, err := game.NewSeededGameState(4, game.White)
		require.NoError(t, err)
		stuck := &stubAgent{ok: false}
		e, err := LocalEngine(state, stuck, stuck)
		require.NoError(t, err)

		gameMetric, moveMetrics, err := e.Run(context.Background())

		require.NoError(t, err)
		require.True(t, gameMetric.Stalled)
		require.Empty(t, moveMetrics)
		require.Equal(t, 1, stuck.calls)
	})

	t.Run("replaces an illegal agent move with the first legal one", func(t *testing.T) {
		state, err := game.NewSeededGameState(5, game.White)
		require.NoError(t, err)
		want := state.LegalMoves()[0]
		bogus := &stubAgent{ok: true, move: game.Move{From: game.Position{Row: 0, Col: 0}, To: game.Position{Row: 0, Col: 0}}}
		e, err := LocalEngine(state, bogus, bogus, WithMaxMoves(1))
		require.NoError(t, err)

		_, moveMetrics, err := e.Run(context.Background())

		require.NoError(t, err)
		require.Len(t, moveMetrics, 1)
		require.Equal(t, want.String(), moveMetrics[0].Move)
		require.Equal(t, want.To, e.State.WhiteHorse.Position)
	})

	t.Run("honours cancellation between moves", func(t *testing.T) {
		state, err := game.NewSeededGameState(6, game.White)
		require.NoError(t, err)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		e, err := LocalEngine(state, newAgent(t, 1, game.EvaluateAggressive), newAgent(t, 1, game.EvaluateAggressive))
		require.NoError(t, err)

		_, _, err = e.Run(ctx)

		require.ErrorIs(t, err, context.Canceled)
	})

	t.Run("requires both agents", func(t *testing.T) {
		state, err := game.NewSeededGameState(7, game.White)
		require.NoError(t, err)
		_, err = LocalEngine(state, newAgent(t, 1, game.EvaluateAggressive), nil)
		require.Error(t, err)
	})
}
