package searcher

import (
	"horses/experiments/metrics"
	"horses/game"
)

type Option func(m *Minimax)

func WithEvaluationFn(evaluate game.Evaluate) Option {
	return func(m *Minimax) {
		if evaluate != nil {
			m.evaluate = evaluate
		}
	}
}

// WithRepetitionCap sets how often one (from, to) pair may be chosen before it
// is excluded from the root candidates.
func WithRepetitionCap(limit int) Option {
	return func(m *Minimax) {
		if limit > 0 {
			m.repetitionCap = limit
		}
	}
}

func WithImmediateBonus(pointsWeight, multiplier float64) Option {
	return func(m *Minimax) {
		m.pointsWeight = pointsWeight
		m.multiplierBonus = multiplier
	}
}

func WithMetrics() Option {
	return func(m *Minimax) {
		m.metrics = metrics.NewCollector()
	}
}
