package searcher

import (
	"math"
	"testing"

	"horses/game"

	"github.com/stretchr/testify/require"
	"golang.org/x/exp/rand"
)

/**
Tests fixed-depth alpha-beta search:
- construction: non-positive depth is rejected
- selection: greedy captures, tie-break by enumeration order, both sides
- pruning: same choice and values as an unpruned minimax on random boards
- repetition guard: capped moves are excluded, waived when nothing is left
- isolation: the searched state is never modified
*/

func newState(t *testing.T, layout game.Layout) *game.GameState {
	t.Helper()
	gs, err := game.NewCustomState(layout)
	require.NoError(t, err)
	return gs
}

// fullMinimax is the unpruned reference search.
func fullMinimax(m *Minimax, state *game.GameState, depth int, side game.Player) float64 {
	if depth == 0 || !state.HasPointsRemaining() {
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
	value := math.Inf(1)
	if maximizing {
		value = math.Inf(-1)
	}
	for _, move := range moves {
		child, _ := state.Play(move)
		v := fullMinimax(m, child, depth-1, side)
		if maximizing {
			value = max(value, v)
		} else {
			value = min(value, v)
		}
	}
	return value
}

func fullBestMove(m *Minimax, state *game.GameState) (game.Move, float64) {
	moves := state.LegalMoves()
	best := moves[0]
	bestScore := math.Inf(-1)
	for _, move := range moves {
		child, _ := state.Play(move)
		score := fullMinimax(m, child, m.depth-1, state.CurrentPlayer) + m.immediateBonus(state, move)
		if score > bestScore {
			best, bestScore = move, score
		}
	}
	return best, bestScore
}

func TestNewMinimax(t *testing.T) {
	t.Run("rejects non-positive depth", func(t *testing.T) {
		for _, depth := range []int{0, -2} {
			m, err := NewMinimax(depth)
			require.ErrorIs(t, err, ErrInvalidDepth)
			require.Nil(t, m)
		}
	})

	t.Run("applies options", func(t *testing.T) {
		m, err := NewMinimax(4, WithEvaluationFn(game.EvaluateDefensive), WithRepetitionCap(5), WithImmediateBonus(1, 2))
		require.NoError(t, err)
		require.Equal(t, 4, m.Depth())
		require.Equal(t, 5, m.repetitionCap)
		require.Equal(t, 1.0, m.pointsWeight)
		require.Equal(t, 2.0, m.multiplierBonus)
	})
}

func TestFindBestMove(t *testing.T) {
	t.Run("captures an adjacent reward", func(t *testing.T) {
		for _, depth := range []int{1, 2, 4} {
			gs := newState(t, game.Layout{
				White:    game.Position{Row: 2, Col: 2},
				Black:    game.Position{Row: 7, Col: 7},
				Points:   map[game.Position]int{{Row: 0, Col: 1}: 7, {Row: 6, Col: 0}: 3},
				Starting: game.White,
			})
			m, err := NewMinimax(depth)
			require.NoError(t, err)

			move, ok := m.FindBestMove(gs)

			require.True(t, ok)
			require.Equal(t, game.Move{From: game.Position{Row: 2, Col: 2}, To: game.Position{Row: 0, Col: 1}}, move,
				"Depth %d should take the reward", depth)
		}
	})

	t.Run("searches for black when black is to move", func(t *testing.T) {
		gs := newState(t, game.Layout{
			White:    game.Position{Row: 0, Col: 0},
			Black:    game.Position{Row: 5, Col: 5},
			Points:   map[game.Position]int{{Row: 3, Col: 4}: 9, {Row: 0, Col: 7}: 1},
			Starting: game.Black,
		})
		m, err := NewMinimax(2, WithEvaluationFn(game.EvaluateDefensive))
		require.NoError(t, err)

		move, ok := m.FindBestMove(gs)

		require.True(t, ok)
		require.Equal(t, game.Position{Row: 3, Col: 4}, move.To)
	})

	t.Run("leaves the searched state untouched", func(t *testing.T) {
		gs, err := game.NewSeededGameState(11, game.White)
		require.NoError(t, err)
		before := *gs
		m, err := NewMinimax(3)
		require.NoError(t, err)

		_, ok := m.FindBestMove(gs)

		require.True(t, ok)
		require.Equal(t, before, *gs)
	})

	t.Run("reports no move without a side to move", func(t *testing.T) {
		gs := newState(t, game.Layout{
			White:    game.Position{Row: 0, Col: 0},
			Black:    game.Position{Row: 7, Col: 7},
			Starting: game.White,
		})
		gs.CurrentPlayer = game.None
		m, err := NewMinimax(2)
		require.NoError(t, err)

		_, ok := m.FindBestMove(gs)

		require.False(t, ok)
	})

	t.Run("equal evaluations keep the first move in leap order", func(t *testing.T) {
		flat := func(*game.GameState, game.Player) float64 { return 0 }
		gs := newState(t, game.Layout{
			White:    game.Position{Row: 4, Col: 4},
			Black:    game.Position{Row: 0, Col: 7},
			Points:   map[game.Position]int{{Row: 7, Col: 0}: 1},
			Starting: game.White,
		})
		m, err := NewMinimax(2, WithEvaluationFn(flat))
		require.NoError(t, err)

		move, ok := m.FindBestMove(gs)

		require.True(t, ok)
		require.Equal(t, gs.LegalMoves()[0], move)
	})

	t.Run("separate sessions agree on the same state", func(t *testing.T) {
		gs, err := game.NewSeededGameState(21, game.White)
		require.NoError(t, err)
		m1, err := NewMinimax(3)
		require.NoError(t, err)
		m2, err := NewMinimax(3)
		require.NoError(t, err)

		move1, _ := m1.FindBestMove(gs)
		move2, _ := m2.FindBestMove(gs)

		require.Equal(t, move1, move2)
	})
}

func TestAlphaBetaMatchesFullMinimax(t *testing.T) {
	heuristics := []struct {
		name     string
		evaluate game.Evaluate
	}{
		{"aggressive", game.EvaluateAggressive},
		{"defensive", game.EvaluateDefensive},
	}

	for _, h := range heuristics {
		evaluate := h.evaluate
		t.Run(h.name, func(t *testing.T) {
			r := rand.New(rand.NewSource(2024))
			for board := 0; board < 12; board++ {
				gs, err := game.NewGameState(r, game.Player(1+board%2))
				require.NoError(t, err)
				for depth := 1; depth <= 4; depth++ {
					m, err := NewMinimax(depth, WithEvaluationFn(evaluate), WithMetrics())
					require.NoError(t, err)

					wantMove, wantScore := fullBestMove(m, gs)
					gotMove, ok, metric := m.Search(gs)

					require.True(t, ok)
					require.Equal(t, wantMove, gotMove, "board %d depth %d", board, depth)
					if depth > 1 {
						require.Greater(t, metric.Nodes, 0)
					}

					child, _ := gs.Play(gotMove)
					gotScore := m.minimax(child, depth-1, gs.CurrentPlayer, math.Inf(-1), math.Inf(1)) + m.immediateBonus(gs, gotMove)
					require.Equal(t, wantScore, gotScore, "board %d depth %d", board, depth)
				}
			}
		})
	}
}

func TestRepetitionGuard(t *testing.T) {
	t.Run("a move picked up to the cap is excluded next time", func(t *testing.T) {
		gs, err := game.NewSeededGameState(5, game.White)
		require.NoError(t, err)
		require.Greater(t, len(gs.LegalMoves()), 1)
		m, err := NewMinimax(2)
		require.NoError(t, err)

		first, _ := m.FindBestMove(gs)
		second, _ := m.FindBestMove(gs)
		third, _ := m.FindBestMove(gs)

		require.Equal(t, first, second, "Search should be deterministic while under the cap")
		require.Equal(t, 2, m.Usage(first))
		require.NotEqual(t, first, third, "Capped move should not be chosen again")
		require.Equal(t, 1, m.Usage(third))
	})

	t.Run("cap is waived and history cleared when every move is capped", func(t *testing.T) {
		gs := newState(t, game.Layout{
			White:    game.Position{Row: 0, Col: 0},
			Black:    game.Position{Row: 1, Col: 2},
			Points:   map[game.Position]int{{Row: 7, Col: 7}: 4},
			Starting: game.White,
		})
		only := game.Move{From: game.Position{Row: 0, Col: 0}, To: game.Position{Row: 2, Col: 1}}
		require.Equal(t, []game.Move{only}, gs.LegalMoves())
		m, err := NewMinimax(2, WithMetrics())
		require.NoError(t, err)

		for i := 0; i < 2; i++ {
			move, ok, metric := m.Search(gs)
			require.True(t, ok)
			require.Equal(t, only, move)
			require.False(t, metric.RepetitionReset)
		}
		move, ok, metric := m.Search(gs)

		require.True(t, ok)
		require.Equal(t, only, move)
		require.True(t, metric.RepetitionReset, "Guard should reset when no candidate is left")
		require.Equal(t, 1, m.Usage(only), "History should restart from the chosen move")
	})

	t.Run("sessions keep separate histories", func(t *testing.T) {
		gs, err := game.NewSeededGameState(8, game.White)
		require.NoError(t, err)
		m1, err := NewMinimax(1)
		require.NoError(t, err)
		m2, err := NewMinimax(1)
		require.NoError(t, err)

		move, _ := m1.FindBestMove(gs)
		m1.FindBestMove(gs)

		require.Equal(t, 2, m1.Usage(move))
		require.Equal(t, 0, m2.Usage(move))
	})
}
