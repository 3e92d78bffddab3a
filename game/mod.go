package game

type StateHash uint64

// Evaluate scores a state from side's perspective: larger values are more
// favourable to side. Implementations must be pure and run in O(board cells).
type Evaluate func(gs *GameState, side Player) float64
