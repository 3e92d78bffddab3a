package game

import (
	"encoding/binary"
	"errors"
	"fmt"
	"hash/fnv"
	"strings"
)

// Player identifies a side. None marks an empty cell.
type Player int

const (
	None Player = iota
	White
	Black
)

func (p Player) String() string {
	switch p {
	case White:
		return "white"
	case Black:
		return "black"
	default:
		return "none"
	}
}

// Opponent returns the other side. None has no opponent.
func (p Player) Opponent() Player {
	switch p {
	case White:
		return Black
	case Black:
		return White
	default:
		return None
	}
}

func (p Player) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

func (p *Player) UnmarshalText(text []byte) error {
	parsed, err := ParsePlayer(string(text))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// ParsePlayer accepts "white" or "black" in any case; "" and "none" map to None.
func ParsePlayer(s string) (Player, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "white":
		return White, nil
	case "black":
		return Black, nil
	case "", "none":
		return None, nil
	default:
		return None, fmt.Errorf("unknown player %q", s)
	}
}

// Cell holds the optional attributes of a square. Points == 0 means no reward.
// Points and Multiplier are never both set; the layout generator guarantees it.
type Cell struct {
	Points     int    `json:"points,omitempty"`
	Multiplier bool   `json:"multiplier,omitempty"`
	Occupant   Player `json:"occupant,omitempty"`
}

type Horse struct {
	Position      Position `json:"position"`
	HasMultiplier bool     `json:"hasMultiplier"`
}

type Move struct {
	From Position `json:"from"`
	To   Position `json:"to"`
}

func (m Move) String() string {
	return fmt.Sprintf("%s->%s", m.From, m.To)
}

// GameState is the whole game aggregate. It holds no pointers or slices, so a
// value copy is a deep copy.
type GameState struct {
	Board         [BoardSize][BoardSize]Cell `json:"board"`
	WhiteHorse    Horse                      `json:"whiteHorse"`
	BlackHorse    Horse                      `json:"blackHorse"`
	WhiteScore    int                        `json:"whiteScore"`
	BlackScore    int                        `json:"blackScore"`
	CurrentPlayer Player                     `json:"currentPlayer"`
}

// Clone returns a fully independent copy of gs.
func (gs *GameState) Clone() *GameState {
	c := *gs
	return &c
}

func (gs *GameState) Cell(p Position) Cell {
	return gs.Board[p.Row][p.Col]
}

// Horse returns a copy of side's piece.
func (gs *GameState) Horse(side Player) Horse {
	if side == Black {
		return gs.BlackHorse
	}
	return gs.WhiteHorse
}

func (gs *GameState) horse(side Player) *Horse {
	switch side {
	case White:
		return &gs.WhiteHorse
	case Black:
		return &gs.BlackHorse
	default:
		return nil
	}
}

func (gs *GameState) Score(side Player) int {
	switch side {
	case White:
		return gs.WhiteScore
	case Black:
		return gs.BlackScore
	default:
		return 0
	}
}

func (gs *GameState) addScore(side Player, points int) {
	if side == White {
		gs.WhiteScore += points
	} else {
		gs.BlackScore += points
	}
}

// IsLegalMove checks destination bounds, occupancy and knight geometry. It does
// not check that a piece of the side to move stands on from; MakeMove does.
func (gs *GameState) IsLegalMove(from, to Position) bool {
	if !to.IsValid() || !from.IsValid() {
		return false
	}
	if gs.Board[to.Row][to.Col].Occupant != None {
		return false
	}
	return IsKnightMove(from, to)
}

var (
	ErrOccupied      = errors.New("destination occupied")
	ErrNotKnightMove = errors.New("not a knight move")
	ErrNotYourHorse  = errors.New("no horse of the side to move on source square")
)

// CheckMove explains why MakeMove would reject from -> to, or returns nil.
func (gs *GameState) CheckMove(from, to Position) error {
	if !from.IsValid() || !to.IsValid() {
		return fmt.Errorf("%w: %s -> %s", ErrOutOfBounds, from, to)
	}
	if horse := gs.horse(gs.CurrentPlayer); horse == nil || horse.Position != from {
		return fmt.Errorf("%w: %s", ErrNotYourHorse, from)
	}
	if gs.Board[to.Row][to.Col].Occupant != None {
		return fmt.Errorf("%w: %s", ErrOccupied, to)
	}
	if !IsKnightMove(from, to) {
		return fmt.Errorf("%w: %s -> %s", ErrNotKnightMove, from, to)
	}
	return nil
}

// MakeMove moves the side to move from from to to. It returns false and leaves
// the state untouched when the move is illegal or from is not the mover's square.
//
// Points on the destination are scored first, doubled by a held bonus which is
// then spent. Only afterwards is a multiplier on the destination picked up, so
// it never applies to the points of the same move.
func (gs *GameState) MakeMove(from, to Position) bool {
	if !gs.IsLegalMove(from, to) {
		return false
	}
	mover := gs.CurrentPlayer
	horse := gs.horse(mover)
	if horse == nil || horse.Position != from {
		return false
	}

	gs.Board[from.Row][from.Col].Occupant = None
	dest := &gs.Board[to.Row][to.Col]
	dest.Occupant = mover
	horse.Position = to

	if dest.Points > 0 {
		factor := 1
		if horse.HasMultiplier {
			factor = 2
		}
		gs.addScore(mover, dest.Points*factor)
		dest.Points = 0
		horse.HasMultiplier = false
	}

	if dest.Multiplier && !horse.HasMultiplier {
		horse.HasMultiplier = true
		dest.Multiplier = false
	}

	gs.CurrentPlayer = mover.Opponent()
	return true
}

// MovesFrom lists the unoccupied knight destinations of from in leap-table order.
func (gs *GameState) MovesFrom(from Position) []Position {
	targets := KnightTargets(from)
	free := targets[:0]
	for _, to := range targets {
		if gs.Board[to.Row][to.Col].Occupant == None {
			free = append(free, to)
		}
	}
	return free
}

// LegalMoves lists the moves available to the side to move.
func (gs *GameState) LegalMoves() []Move {
	horse := gs.horse(gs.CurrentPlayer)
	if horse == nil {
		return nil
	}
	destinations := gs.MovesFrom(horse.Position)
	moves := make([]Move, len(destinations))
	for i, to := range destinations {
		moves[i] = Move{From: horse.Position, To: to}
	}
	return moves
}

// Mobility counts side's legal destinations regardless of whose turn it is.
func (gs *GameState) Mobility(side Player) int {
	horse := gs.horse(side)
	if horse == nil {
		return 0
	}
	return len(gs.MovesFrom(horse.Position))
}

// Play returns a copy of gs with move applied. ok is false if the move was
// rejected, in which case the returned state equals gs.
func (gs *GameState) Play(move Move) (next *GameState, ok bool) {
	next = gs.Clone()
	ok = next.MakeMove(move.From, move.To)
	return next, ok
}

func (gs *GameState) HasPointsRemaining() bool {
	for row := range gs.Board {
		for col := range gs.Board[row] {
			if gs.Board[row][col].Points > 0 {
				return true
			}
		}
	}
	return false
}

// IsGameOver is the canonical termination test. It is evaluated by drivers,
// never inside MakeMove.
func (gs *GameState) IsGameOver() bool {
	return !gs.HasPointsRemaining()
}

// Winner returns the side with the higher score, or None on a tie. It does not
// consider whether the game is over.
func (gs *GameState) Winner() Player {
	switch {
	case gs.WhiteScore > gs.BlackScore:
		return White
	case gs.BlackScore > gs.WhiteScore:
		return Black
	default:
		return None
	}
}

func (gs *GameState) Hash() StateHash {
	hasher := fnv.New64a()

	binary.Write(hasher, binary.LittleEndian, int64(gs.CurrentPlayer))
	binary.Write(hasher, binary.LittleEndian, int64(gs.WhiteScore))
	binary.Write(hasher, binary.LittleEndian, int64(gs.BlackScore))

	for _, horse := range []Horse{gs.WhiteHorse, gs.BlackHorse} {
		binary.Write(hasher, binary.LittleEndian, int64(horse.Position.Row))
		binary.Write(hasher, binary.LittleEndian, int64(horse.Position.Col))
		binary.Write(hasher, binary.LittleEndian, horse.HasMultiplier)
	}

	for row := range gs.Board {
		for col := range gs.Board[row] {
			cell := gs.Board[row][col]
			binary.Write(hasher, binary.LittleEndian, int64(cell.Points))
			binary.Write(hasher, binary.LittleEndian, cell.Multiplier)
			binary.Write(hasher, binary.LittleEndian, int64(cell.Occupant))
		}
	}

	return StateHash(hasher.Sum64())
}
