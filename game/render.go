package game

import (
	"fmt"
	"io"
	"strings"

	"github.com/muesli/termenv"
)

// Render prints the board, scores and turn. Colours follow the capabilities of w.
func Render(w io.Writer, gs *GameState) error {
	out := termenv.NewOutput(w)
	var b strings.Builder

	b.WriteString("   ")
	for col := 0; col < BoardSize; col++ {
		fmt.Fprintf(&b, "%-3d", col)
	}
	b.WriteString("\n")

	for row := range gs.Board {
		fmt.Fprintf(&b, "%d  ", row)
		for col := range gs.Board[row] {
			b.WriteString(renderCell(out, gs.Board[row][col]))
		}
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "white %d%s | black %d%s | to move: %s\n",
		gs.WhiteScore, bonusMark(gs.WhiteHorse), gs.BlackScore, bonusMark(gs.BlackHorse), gs.CurrentPlayer)

	_, err := io.WriteString(w, b.String())
	return err
}

func renderCell(out *termenv.Output, cell Cell) string {
	switch {
	case cell.Occupant == White:
		return out.String("♘  ").Bold().Foreground(out.Color("15")).String()
	case cell.Occupant == Black:
		return out.String("♞  ").Bold().Foreground(out.Color("9")).String()
	case cell.Points > 0:
		return out.String(fmt.Sprintf("%-3d", cell.Points)).Foreground(out.Color("11")).String()
	case cell.Multiplier:
		return out.String("x2 ").Foreground(out.Color("14")).String()
	default:
		return out.String("·  ").Faint().String()
	}
}

func bonusMark(h Horse) string {
	if h.HasMultiplier {
		return " (x2)"
	}
	return ""
}
