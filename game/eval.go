package game

import (
	"fmt"
	"sort"
	"strings"
)

// Aggressive weights
const (
	aggressiveScoreWeight = 10.0
	contestWeight         = 20.0
	nearbyRadius          = 4
	highValuePoints       = 5
	nearbyHighValueWeight = 2.0
	multiplierRadius      = 3
	multiplierOpportunity = 30.0
	aggressiveMobility    = 2.0
	endgameFloor          = 0.1
)

// Defensive weights
const (
	defensiveScoreWeight = 8.0
	mobilityWeight       = 5.0
	centerWeight         = 3.0
	maxCenterScore       = 7.0
	blockWeight          = 2.0
	threatRadius         = 2
	threatPenalty        = 20.0
	bonusHeld            = 15.0
)

// EvaluateAggressive chases points: it rewards being near remaining rewards,
// beating the opponent to them, lining up a multiplier before a big reward and
// keeping mobility. The positional part fades as the board empties so the score
// difference dominates the endgame.
func EvaluateAggressive(gs *GameState, side Player) float64 {
	opponent := side.Opponent()
	own := gs.Horse(side)
	other := gs.Horse(opponent)

	base := float64(gs.Score(side)-gs.Score(opponent)) * aggressiveScoreWeight
	remaining := gs.TotalRemainingPoints()
	if remaining == 0 {
		return base + endgameFloor*aggressiveMobility*float64(gs.Mobility(side))
	}

	positional := 0.0
	bestNearby := 0
	highest := 0
	nearMultiplier := false
	for row := range gs.Board {
		for col := range gs.Board[row] {
			cell := gs.Board[row][col]
			pos := Position{Row: row, Col: col}

			if cell.Points > 0 {
				points := cell.Points
				distance := ManhattanDistance(own.Position, pos)
				opponentDistance := ManhattanDistance(other.Position, pos)

				positional += float64(points) / float64(distance+1)

				importance := float64(points) / float64(remaining)
				if distance < opponentDistance {
					positional += contestWeight * importance
				} else if distance > opponentDistance {
					positional -= contestWeight * importance
				}

				if points > bestNearby && distance < nearbyRadius {
					bestNearby = points
				}
				highest = max(highest, points)
			}

			if cell.Multiplier && !own.HasMultiplier && ManhattanDistance(own.Position, pos) < multiplierRadius {
				nearMultiplier = true
			}
		}
	}

	if bestNearby > highValuePoints {
		positional += float64(bestNearby) * nearbyHighValueWeight
	}
	if nearMultiplier && highest > highValuePoints {
		positional += multiplierOpportunity
	}
	positional += float64(gs.Mobility(side)) * aggressiveMobility

	return base + positional*float64(remaining)/TotalPoints
}

// EvaluateDefensive plays for territory: mobility over the opponent, the
// centre, rewards it reaches first, denying the opponent nearby multipliers and
// holding the bonus itself.
func EvaluateDefensive(gs *GameState, side Player) float64 {
	opponent := side.Opponent()
	own := gs.Horse(side)
	other := gs.Horse(opponent)

	base := float64(gs.Score(side)-gs.Score(opponent)) * defensiveScoreWeight

	positional := float64(gs.Mobility(side)-gs.Mobility(opponent)) * mobilityWeight
	positional += (maxCenterScore - CenterDistance(own.Position)) * centerWeight

	for row := range gs.Board {
		for col := range gs.Board[row] {
			cell := gs.Board[row][col]
			pos := Position{Row: row, Col: col}

			if cell.Points > 0 {
				distance := ManhattanDistance(own.Position, pos)
				opponentDistance := ManhattanDistance(other.Position, pos)
				if distance < opponentDistance {
					positional += float64(cell.Points)
				}
				if cell.Points > highValuePoints && distance <= opponentDistance {
					positional += float64(cell.Points) * blockWeight
				}
			}

			if cell.Multiplier && !other.HasMultiplier && ManhattanDistance(other.Position, pos) <= threatRadius {
				positional -= threatPenalty
			}
		}
	}

	if own.HasMultiplier {
		positional += bonusHeld
	}
	if other.HasMultiplier {
		positional -= bonusHeld
	}

	return base + positional
}

var heuristics = map[string]Evaluate{
	"aggressive": EvaluateAggressive,
	"defensive":  EvaluateDefensive,
}

// HeuristicByName resolves "aggressive" or "defensive" in any case.
func HeuristicByName(name string) (Evaluate, error) {
	evaluate, ok := heuristics[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return nil, fmt.Errorf("unknown heuristic %q (known: %v)", name, HeuristicNames())
	}
	return evaluate, nil
}

func HeuristicNames() []string {
	names := make([]string, 0, len(heuristics))
	for name := range heuristics {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// TotalRemainingPoints sums the rewards still on the board.
func (gs *GameState) TotalRemainingPoints() int {
	total := 0
	for row := range gs.Board {
		for col := range gs.Board[row] {
			total += gs.Board[row][col].Points
		}
	}
	return total
}

// HighestPoint finds the most valuable reward left. ok is false on an empty board.
func (gs *GameState) HighestPoint() (pos Position, points int, ok bool) {
	for row := range gs.Board {
		for col := range gs.Board[row] {
			if p := gs.Board[row][col].Points; p > points {
				pos = Position{Row: row, Col: col}
				points = p
			}
		}
	}
	return pos, points, points > 0
}

// PositionValue rates a square for a hypothetical piece: closeness to rewards
// and multipliers plus a small centre preference.
func PositionValue(pos Position, gs *GameState) float64 {
	const (
		pointsWeight     = 1.5
		multiplierValue  = 5.0
		multiplierWeight = 1.0
		centerPreference = 0.5
	)
	score := 0.0
	for row := range gs.Board {
		for col := range gs.Board[row] {
			cell := gs.Board[row][col]
			distance := float64(max(ManhattanDistance(pos, Position{Row: row, Col: col}), 1))
			if cell.Points > 0 {
				score += float64(cell.Points) / distance * pointsWeight
			}
			if cell.Multiplier {
				score += multiplierValue / distance * multiplierWeight
			}
		}
	}
	score += 1 / (CenterDistance(pos) + 1) * centerPreference
	return score
}

// SortByProximity orders moves by the Manhattan distance of their destination
// to target, keeping leap-table order among equals.
func SortByProximity(moves []Move, target Position) []Move {
	sorted := make([]Move, len(moves))
	copy(sorted, moves)
	sort.SliceStable(sorted, func(i, j int) bool {
		return ManhattanDistance(sorted[i].To, target) < ManhattanDistance(sorted[j].To, target)
	})
	return sorted
}
