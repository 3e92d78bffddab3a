package metrics

import (
	"sync/atomic"
	"time"
)

type SearchMetric struct {
	Depth           int
	Duration        time.Duration
	Nodes           int
	Leaves          int
	Cutoffs         int
	Candidates      int
	Excluded        int // root moves skipped by the repetition guard
	RepetitionReset bool
}

type MoveMetric struct {
	Step   int
	Player string
	Move   string
	Gain   int // points credited by the move
	SearchMetric
}

type GameMetric struct {
	StartingPlayer string
	Winner         string // "" on a draw
	WhiteScore     int
	BlackScore     int
	StartTime      time.Time
	EndTime        time.Time
	Duration       time.Duration
	TotalMoves     int
	Stalled        bool // side to move had no legal move
	Capped         bool // stopped by the move cap
}

type Collector interface {
	Start(depth int)
	AddNode()
	AddLeaf()
	AddCutoff()
	SetCandidates(candidates, excluded int)
	SetRepetitionReset(value bool)
	Complete() SearchMetric
}

type collector struct {
	depth           int
	startTime       time.Time
	nodes           atomic.Int64
	leaves          atomic.Int64
	cutoffs         atomic.Int64
	candidates      atomic.Int32
	excluded        atomic.Int32
	repetitionReset atomic.Bool
}

func NewCollector() Collector {
	return &collector{}
}

// Start resets the counters for a new search.
func (m *collector) Start(depth int) {
	m.depth = depth
	m.startTime = time.Now()
	m.nodes.Store(0)
	m.leaves.Store(0)
	m.cutoffs.Store(0)
	m.candidates.Store(0)
	m.excluded.Store(0)
	m.repetitionReset.Store(false)
}

func (m *collector) AddNode() {
	m.nodes.Add(1)
}

func (m *collector) AddLeaf() {
	m.leaves.Add(1)
}

func (m *collector) AddCutoff() {
	m.cutoffs.Add(1)
}

func (m *collector) SetCandidates(candidates, excluded int) {
	m.candidates.Store(int32(candidates))
	m.excluded.Store(int32(excluded))
}

func (m *collector) SetRepetitionReset(value bool) {
	m.repetitionReset.Store(value)
}

func (m *collector) Complete() SearchMetric {
	return SearchMetric{
		Depth:           m.depth,
		Duration:        time.Since(m.startTime),
		Nodes:           int(m.nodes.Load()),
		Leaves:          int(m.leaves.Load()),
		Cutoffs:         int(m.cutoffs.Load()),
		Candidates:      int(m.candidates.Load()),
		Excluded:        int(m.excluded.Load()),
		RepetitionReset: m.repetitionReset.Load(),
	}
}

type dummyCollector struct{}

func NewDummyCollector() Collector {
	return &dummyCollector{}
}

func (m *dummyCollector) Start(depth int)                        {}
func (m *dummyCollector) AddNode()                               {}
func (m *dummyCollector) AddLeaf()                               {}
func (m *dummyCollector) AddCutoff()                             {}
func (m *dummyCollector) SetCandidates(candidates, excluded int) {}
func (m *dummyCollector) SetRepetitionReset(value bool)          {}
func (m *dummyCollector) Complete() SearchMetric                 { return SearchMetric{} }
