package game

import (
	"fmt"

	"golang.org/x/exp/rand"
)

const (
	BoardSize             = 8
	TotalPointCells       = 10
	TotalMultiplierCells  = 4
	MinPoints             = 1
	MaxPoints             = 10
	TotalPoints           = 55 // 1+2+...+10
	MaxKnightDestinations = 8
)

// knightOffsets is the fixed leap table. Its order is the enumeration order of
// every move list, which search relies on for tie-breaking.
var knightOffsets = [MaxKnightDestinations][2]int{
	{-2, -1}, {-2, 1},
	{-1, -2}, {-1, 2},
	{1, -2}, {1, 2},
	{2, -1}, {2, 1},
}

// Position is a board square, 0 <= Row, Col < BoardSize.
type Position struct {
	Row int `json:"row"`
	Col int `json:"col"`
}

func (p Position) String() string {
	return fmt.Sprintf("(%d,%d)", p.Row, p.Col)
}

// IsValid reports whether p lies on the board.
func (p Position) IsValid() bool {
	return p.Row >= 0 && p.Row < BoardSize && p.Col >= 0 && p.Col < BoardSize
}

// IsKnightMove reports whether to is on the board and one knight leap away from from.
func IsKnightMove(from, to Position) bool {
	if !to.IsValid() {
		return false
	}
	rowDiff := abs(to.Row - from.Row)
	colDiff := abs(to.Col - from.Col)
	return (rowDiff == 2 && colDiff == 1) || (rowDiff == 1 && colDiff == 2)
}

// KnightTargets returns the on-board leap targets of from in leap-table order.
// Occupancy is not considered.
func KnightTargets(from Position) []Position {
	targets := make([]Position, 0, MaxKnightDestinations)
	for _, offset := range knightOffsets {
		to := Position{Row: from.Row + offset[0], Col: from.Col + offset[1]}
		if to.IsValid() {
			targets = append(targets, to)
		}
	}
	return targets
}

func ManhattanDistance(a, b Position) int {
	return abs(a.Row-b.Row) + abs(a.Col-b.Col)
}

// CenterDistance is the Chebyshev distance from p to the geometric centre of
// the board, which sits between the four middle squares.
func CenterDistance(p Position) float64 {
	center := float64(BoardSize)/2 - 0.5
	return max(absf(float64(p.Row)-center), absf(float64(p.Col)-center))
}

// RandomPosition draws a uniformly distributed square.
func RandomPosition(r *rand.Rand) Position {
	return Position{Row: r.Intn(BoardSize), Col: r.Intn(BoardSize)}
}

// UniqueRandomPositions draws count pairwise distinct squares.
func UniqueRandomPositions(r *rand.Rand, count int) ([]Position, error) {
	if count < 0 || count > BoardSize*BoardSize {
		return nil, fmt.Errorf("cannot draw %d unique positions from a %dx%d board", count, BoardSize, BoardSize)
	}
	positions := make([]Position, 0, count)
	used := make(map[Position]bool, count)
	for len(positions) < count {
		pos := RandomPosition(r)
		if used[pos] {
			continue
		}
		used[pos] = true
		positions = append(positions, pos)
	}
	return positions, nil
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}

func absf(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}
