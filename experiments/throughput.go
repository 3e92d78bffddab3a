package experiments

import (
	"context"
	"fmt"
	"time"

	"horses/game"
	"horses/meta"
	"horses/searcher"

	"github.com/rs/zerolog/log"
	"golang.org/x/exp/rand"
	"golang.org/x/sync/errgroup"
)

// Throughput summarises root searches of one level over a set of random boards.
type Throughput struct {
	Level       meta.Difficulty `json:"level"`
	Depth       int             `json:"depth"`
	Searches    int             `json:"searches"`
	Nodes       int             `json:"nodes"`
	Leaves      int             `json:"leaves"`
	Cutoffs     int             `json:"cutoffs"`
	Duration    time.Duration   `json:"duration"`
	NodesPerSec float64         `json:"nodesPerSec"`
}

// MeasureThroughput runs one search per board for each level, levels in
// parallel. Every level sees the same boards, drawn from seed.
func MeasureThroughput(ctx context.Context, levels []meta.Difficulty, boards int, seed uint64, evaluate game.Evaluate) ([]Throughput, error) {
	if boards < 1 {
		return nil, fmt.Errorf("%w: boards must be at least 1, got %d", ErrInvalidConfig, boards)
	}
	r := rand.New(rand.NewSource(seed))
	states := make([]*game.GameState, boards)
	for i := range states {
		state, err := game.NewGameState(r, game.Player(1+i%2))
		if err != nil {
			return nil, err
		}
		states[i] = state
	}

	out := make([]Throughput, len(levels))
	g, ctx := errgroup.WithContext(ctx)
	for i, level := range levels {
		i, level := i, level
		g.Go(func() error {
			depth, err := level.Depth()
			if err != nil {
				return err
			}
			result := Throughput{Level: level, Depth: depth}
			for _, state := range states {
				if err := ctx.Err(); err != nil {
					return err
				}
				m, err := searcher.NewMinimax(depth, searcher.WithEvaluationFn(evaluate), searcher.WithMetrics())
				if err != nil {
					return err
				}
				_, ok, metric := m.Search(state)
				if !ok {
					continue
				}
				result.Searches++
				result.Nodes += metric.Nodes
				result.Leaves += metric.Leaves
				result.Cutoffs += metric.Cutoffs
				result.Duration += metric.Duration
			}
			if result.Duration > 0 {
				result.NodesPerSec = float64(result.Nodes) / result.Duration.Seconds()
			}
			out[i] = result
			log.Info().Msgf("%s: %d searches, %d nodes in %s", level, result.Searches, result.Nodes, result.Duration)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
