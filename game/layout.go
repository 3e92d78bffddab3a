package game

import (
	"errors"
	"fmt"

	"golang.org/x/exp/rand"
)

var (
	ErrOutOfBounds = errors.New("position out of bounds")
	ErrOverlap     = errors.New("positions overlap")
	ErrPoints      = errors.New("points out of range")
	ErrNoSide      = errors.New("starting side must be white or black")
)

// NewGameState builds a random layout: point cells valued 1..10, multiplier
// cells and both starting squares, all drawn from distinct squares.
func NewGameState(r *rand.Rand, starting Player) (*GameState, error) {
	if starting != White && starting != Black {
		return nil, ErrNoSide
	}
	positions, err := UniqueRandomPositions(r, TotalPointCells+TotalMultiplierCells+2)
	if err != nil {
		return nil, err
	}

	gs := &GameState{CurrentPlayer: starting}
	for i := 0; i < TotalPointCells; i++ {
		pos := positions[i]
		gs.Board[pos.Row][pos.Col].Points = i + 1
	}
	for i := 0; i < TotalMultiplierCells; i++ {
		pos := positions[TotalPointCells+i]
		gs.Board[pos.Row][pos.Col].Multiplier = true
	}

	whitePos := positions[len(positions)-2]
	blackPos := positions[len(positions)-1]
	gs.WhiteHorse = Horse{Position: whitePos}
	gs.BlackHorse = Horse{Position: blackPos}
	gs.Board[whitePos.Row][whitePos.Col].Occupant = White
	gs.Board[blackPos.Row][blackPos.Col].Occupant = Black

	return gs, nil
}

// NewSeededGameState is NewGameState with its own generator, so equal seeds
// give equal boards.
func NewSeededGameState(seed uint64, starting Player) (*GameState, error) {
	return NewGameState(rand.New(rand.NewSource(seed)), starting)
}

// Layout describes a hand-made board.
type Layout struct {
	White       Position
	Black       Position
	Points      map[Position]int
	Multipliers []Position
	Starting    Player
}

// NewCustomState builds a state from a Layout, enforcing the same invariants as
// the random generator: every square holds at most one of a horse, a point
// reward or a multiplier.
func NewCustomState(layout Layout) (*GameState, error) {
	if layout.Starting != White && layout.Starting != Black {
		return nil, ErrNoSide
	}

	used := make(map[Position]bool)
	claim := func(pos Position) error {
		if !pos.IsValid() {
			return fmt.Errorf("%w: %s", ErrOutOfBounds, pos)
		}
		if used[pos] {
			return fmt.Errorf("%w: %s", ErrOverlap, pos)
		}
		used[pos] = true
		return nil
	}

	gs := &GameState{CurrentPlayer: layout.Starting}
	for _, pos := range []Position{layout.White, layout.Black} {
		if err := claim(pos); err != nil {
			return nil, err
		}
	}
	gs.WhiteHorse = Horse{Position: layout.White}
	gs.BlackHorse = Horse{Position: layout.Black}
	gs.Board[layout.White.Row][layout.White.Col].Occupant = White
	gs.Board[layout.Black.Row][layout.Black.Col].Occupant = Black

	for pos, points := range layout.Points {
		if points < MinPoints || points > MaxPoints {
			return nil, fmt.Errorf("%w: %d at %s", ErrPoints, points, pos)
		}
		if err := claim(pos); err != nil {
			return nil, err
		}
		gs.Board[pos.Row][pos.Col].Points = points
	}
	for _, pos := range layout.Multipliers {
		if err := claim(pos); err != nil {
			return nil, err
		}
		gs.Board[pos.Row][pos.Col].Multiplier = true
	}

	return gs, nil
}
