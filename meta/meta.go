// meta/meta.go
package meta

import (
	"fmt"
	"strings"
	"time"
)

// Difficulty names a search depth tier.
type Difficulty string

const (
	Beginner Difficulty = "BEGINNER"
	Amateur  Difficulty = "AMATEUR"
	Expert   Difficulty = "EXPERT"
)

// Difficulties lists the tiers in increasing strength.
var Difficulties = []Difficulty{Beginner, Amateur, Expert}

var depths = map[Difficulty]int{
	Beginner: 2,
	Amateur:  4,
	Expert:   6,
}

// Depth returns the ply depth of a tier.
func (d Difficulty) Depth() (int, error) {
	depth, ok := depths[d]
	if !ok {
		return 0, fmt.Errorf("unknown difficulty %q", string(d))
	}
	return depth, nil
}

// ParseDifficulty accepts a tier name in any case.
func ParseDifficulty(s string) (Difficulty, error) {
	d := Difficulty(strings.ToUpper(strings.TrimSpace(s)))
	if _, err := d.Depth(); err != nil {
		return "", err
	}
	return d, nil
}

// MAX_MOVES caps a single match so it always terminates.
const MAX_MOVES = 300

// REPETITION_CAP is how often a search session may pick the same move.
const REPETITION_CAP = 2

// REPLY_DELAY separates a human move from the engine's answer in live play.
const REPLY_DELAY = 500 * time.Millisecond
