package experiments

import (
	"context"
	"fmt"
	"runtime"
	"strings"

	"horses/engine"
	"horses/experiments/metrics"
	"horses/game"
	"horses/meta"
	"horses/searcher"

	"github.com/rs/zerolog/log"
	"golang.org/x/exp/rand"
)

type Phase string

const (
	PhaseRunning   Phase = "RUNNING"
	PhaseCompleted Phase = "COMPLETED"
)

// Progress is emitted at the start of every pairing, after every move and once
// when the tournament completes.
type Progress struct {
	Phase             Phase  `json:"phase"`
	TotalPairings     int    `json:"totalPairings"`
	CompletedPairings int    `json:"completedPairings"`
	TotalMatches      int    `json:"totalMatches"`
	CompletedMatches  int    `json:"completedMatches"`
	CurrentMatchup    string `json:"currentMatchup,omitempty"`
	FirstScore        int    `json:"firstScore"`
	SecondScore       int    `json:"secondScore"`
}

// PairingResult tallies the matches of one ordered pair of levels.
type PairingResult struct {
	First      meta.Difficulty `json:"first"`
	Second     meta.Difficulty `json:"second"`
	FirstWins  int             `json:"firstWins"`
	SecondWins int             `json:"secondWins"`
	Draws      int             `json:"draws"`
}

// Results maps PairingKey(first, second) to its tally.
type Results map[string]PairingResult

func PairingKey(first, second meta.Difficulty) string {
	return fmt.Sprintf("(%s,%s)", first, second)
}

type TournamentOption func(t *Tournament)

// WithProgress registers the progress callback. It runs on the tournament goroutine.
func WithProgress(onProgress func(Progress)) TournamentOption {
	return func(t *Tournament) {
		if onProgress != nil {
			t.onProgress = onProgress
		}
	}
}

// WithTournamentYield replaces the pause taken between moves and matches.
func WithTournamentYield(yield func()) TournamentOption {
	return func(t *Tournament) {
		if yield != nil {
			t.yield = yield
		}
	}
}

// Tournament plays every ordered pair of levels against each other. The first
// heuristic always has white and moves first.
type Tournament struct {
	cfg         Config
	first       game.Evaluate
	second      game.Evaluate
	onProgress  func(Progress)
	yield       func()
	agents      []metrics.AgentConfig
	gameRecords []metrics.GameRecord
	moveRecords []metrics.MoveRecord
}

func NewTournament(cfg Config, options ...TournamentOption) (*Tournament, error) {
	cfg.Levels = append([]meta.Difficulty(nil), cfg.Levels...)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	first, _ := game.HeuristicByName(cfg.FirstHeuristic)
	second, _ := game.HeuristicByName(cfg.SecondHeuristic)

	t := &Tournament{
		cfg:        cfg,
		first:      first,
		second:     second,
		onProgress: func(Progress) {},
		yield:      runtime.Gosched,
	}
	for _, option := range options {
		option(t)
	}

	for i, level := range cfg.Levels {
		depth, _ := level.Depth()
		t.agents = append(t.agents,
			metrics.AgentConfig{ID: i + 1, Level: string(level), Depth: depth, Heuristic: cfg.FirstHeuristic},
			metrics.AgentConfig{ID: len(cfg.Levels) + i + 1, Level: string(level), Depth: depth, Heuristic: cfg.SecondHeuristic},
		)
	}
	return t, nil
}

// RunTournament plays cfg and, when cfg.OutputDir is set, records the outcome there.
func RunTournament(ctx context.Context, cfg Config, onProgress func(Progress)) (Results, error) {
	t, err := NewTournament(cfg, WithProgress(onProgress))
	if err != nil {
		return nil, err
	}
	results, err := t.Run(ctx)
	if err != nil {
		return results, err
	}
	if cfg.OutputDir != "" {
		if _, err := t.Record(results); err != nil {
			return results, err
		}
	}
	return results, nil
}

// Run plays all pairings in level order. On cancellation it returns the
// pairings finished so far together with the context error.
func (t *Tournament) Run(ctx context.Context) (Results, error) {
	levels := t.cfg.Levels
	results := make(Results, len(levels)*len(levels))
	progress := Progress{
		Phase:         PhaseRunning,
		TotalPairings: len(levels) * len(levels),
		TotalMatches:  len(levels) * len(levels) * t.cfg.MatchesPerPairing,
	}
	seeds := rand.New(rand.NewSource(t.cfg.Seed))

	log.Info().Msgf("starting %s tournament with %d pairings...", t.cfg.Name, progress.TotalPairings)

	for fi, first := range levels {
		for si, second := range levels {
			progress.CurrentMatchup = fmt.Sprintf("%s vs %s", first, second)
			progress.FirstScore, progress.SecondScore = 0, 0
			t.onProgress(progress)

			log.Info().Msgf("starting pairing %d of %d: %s", progress.CompletedPairings+1, progress.TotalPairings, progress.CurrentMatchup)

			result := PairingResult{First: first, Second: second}
			for i := 0; i < t.cfg.MatchesPerPairing; i++ {
				seed := seeds.Uint64()
				gameMetric, moveMetrics, err := t.playMatch(ctx, first, second, seed, &progress)
				if err != nil {
					return results, fmt.Errorf("pairing %s: %w", PairingKey(first, second), err)
				}

				switch gameMetric.Winner {
				case game.White.String():
					result.FirstWins++
				case game.Black.String():
					result.SecondWins++
				default:
					result.Draws++
				}
				progress.CompletedMatches++
				t.record(fi, si, first, second, seed, gameMetric, moveMetrics)

				log.Info().Msgf("completed match %d of %s with white=%d black=%d",
					i+1, progress.CurrentMatchup, gameMetric.WhiteScore, gameMetric.BlackScore)
				t.yield()
			}

			results[PairingKey(first, second)] = result
			progress.CompletedPairings++
			log.Info().Msgf("completed pairing %s: %d-%d-%d", PairingKey(first, second), result.FirstWins, result.SecondWins, result.Draws)
		}
	}

	progress.Phase = PhaseCompleted
	progress.CurrentMatchup = ""
	t.onProgress(progress)

	log.Info().Msgf("completed %s tournament", t.cfg.Name)
	return results, nil
}

func (t *Tournament) playMatch(ctx context.Context, first, second meta.Difficulty, seed uint64, progress *Progress) (metrics.GameMetric, []metrics.MoveMetric, error) {
	state, err := game.NewSeededGameState(seed, game.White)
	if err != nil {
		return metrics.GameMetric{}, nil, err
	}
	white, err := t.newMinimax(first, t.first)
	if err != nil {
		return metrics.GameMetric{}, nil, err
	}
	var black engine.Agent
	if t.cfg.RemoteURL != "" {
		session := fmt.Sprintf("%s-%d", t.cfg.Name, len(t.gameRecords)+1)
		black = engine.NewRemoteAgent(t.cfg.RemoteURL, session, second, t.cfg.SecondHeuristic)
	} else {
		black, err = t.newMinimax(second, t.second)
		if err != nil {
			return metrics.GameMetric{}, nil, err
		}
	}

	e, err := engine.LocalEngine(state, white, black,
		engine.WithMaxMoves(t.cfg.MaxMoves),
		engine.WithYield(t.yield),
		engine.WithOnMove(func(s *game.GameState, _ game.Move) {
			progress.FirstScore = s.WhiteScore
			progress.SecondScore = s.BlackScore
			t.onProgress(*progress)
		}),
	)
	if err != nil {
		return metrics.GameMetric{}, nil, err
	}
	return e.Run(ctx)
}

func (t *Tournament) newMinimax(level meta.Difficulty, evaluate game.Evaluate) (*searcher.Minimax, error) {
	depth, err := level.Depth()
	if err != nil {
		return nil, err
	}
	return searcher.NewMinimax(depth,
		searcher.WithEvaluationFn(evaluate),
		searcher.WithRepetitionCap(t.cfg.RepetitionCap),
		searcher.WithMetrics(),
	)
}

func (t *Tournament) record(fi, si int, first, second meta.Difficulty, seed uint64, gameMetric metrics.GameMetric, moveMetrics []metrics.MoveMetric) {
	id := len(t.gameRecords) + 1
	t.gameRecords = append(t.gameRecords, metrics.GameRecord{
		ID:         id,
		Agent1:     t.agents[2*fi].ID,
		Agent2:     t.agents[2*si+1].ID,
		Seed:       seed,
		Pairing:    PairingKey(first, second),
		GameMetric: gameMetric,
	})
	for _, mm := range moveMetrics {
		t.moveRecords = append(t.moveRecords, metrics.MoveRecord{
			Game:       id,
			MoveMetric: mm,
		})
	}
}

// GameRecords returns the matches played so far in order.
func (t *Tournament) GameRecords() []metrics.GameRecord {
	return t.gameRecords
}

// Record writes configs, game and move records and the result table under the
// configured output directory and returns the run directory.
func (t *Tournament) Record(results Results) (string, error) {
	writer, err := metrics.NewWriter(t.cfg.OutputDir, t.cfg.Name)
	if err != nil {
		return "", fmt.Errorf("failed to create tournament writer: %w", err)
	}

	if err := writer.WriteAgentConfigs(t.agents); err != nil {
		return "", fmt.Errorf("failed to store agent configs: %w", err)
	}
	log.Info().Msg("stored agent configs")

	if err := writer.WriteGameRecords(t.gameRecords); err != nil {
		return "", fmt.Errorf("failed to write game records: %w", err)
	}
	log.Info().Msg("stored game records")

	if err := writer.WriteMoveRecords(t.moveRecords); err != nil {
		return "", fmt.Errorf("failed to write move records: %w", err)
	}
	log.Info().Msg("stored move records")

	if err := writer.WriteJSON("results.json", results); err != nil {
		return "", err
	}
	if err := writer.WriteFile("results.md", []byte(FormatResultsTable(results, t.cfg.Levels))); err != nil {
		return "", err
	}
	log.Info().Msgf("stored results in %s", writer.Dir())
	return writer.Dir(), nil
}

// FormatResultsTable renders results as a markdown matrix with the first
// player's level on rows and the second's on columns. Each cell reads
// [first wins, second wins, draws]; missing pairings show "-".
func FormatResultsTable(results Results, levels []meta.Difficulty) string {
	var b strings.Builder
	b.WriteString("| first \\ second |")
	for _, level := range levels {
		fmt.Fprintf(&b, " %s |", level)
	}
	b.WriteString("\n|---|")
	for range levels {
		b.WriteString("---|")
	}
	b.WriteString("\n")

	for _, first := range levels {
		fmt.Fprintf(&b, "| %s |", first)
		for _, second := range levels {
			result, ok := results[PairingKey(first, second)]
			if !ok {
				b.WriteString(" - |")
				continue
			}
			fmt.Fprintf(&b, " [%d %d %d] |", result.FirstWins, result.SecondWins, result.Draws)
		}
		b.WriteString("\n")
	}
	return b.String()
}
