// Package gesture maps a pointer position over a target row to a candidate
// structural operation. Reparenting lives in its own zone (middle band,
// right half) so it is a deliberate gesture distinct from reordering.
// The result is only a candidate and must still go through hierarchy.Validate.
package gesture

import (
	"math"

	"github.com/agentic-research/arbor/internal/hierarchy"
)

// Zone boundaries as fractions of the row box.
const (
	BeforeBand = 0.25 // ny below this -> Before
	AfterBand  = 0.75 // ny above this -> After
	ChildSplit = 0.5  // in the middle band, nx above this -> Child
)

// Gesture is a drop reported by the UI. X and Y are relative to the target
// row's top-left corner; Width and Height are the row's box.
type Gesture struct {
	DraggedID string  `json:"dragged_id"`
	TargetID  string  `json:"target_id"`
	X         float64 `json:"x"`
	Y         float64 `json:"y"`
	Width     float64 `json:"width"`
	Height    float64 `json:"height"`
}

// Interpret returns Before, After, Child or NoOp.
func Interpret(g Gesture) hierarchy.Op {
	if g.DraggedID == g.TargetID {
		return hierarchy.NoOp
	}
	if !(g.Width > 0) || !(g.Height > 0) || math.IsNaN(g.X) || math.IsNaN(g.Y) {
		return hierarchy.NoOp
	}

	ny := g.Y / g.Height
	switch {
	case ny < BeforeBand:
		return hierarchy.Before
	case ny > AfterBand:
		return hierarchy.After
	}
	if g.X/g.Width > ChildSplit {
		return hierarchy.Child
	}
	// middle-left is ambiguous; default to a same-level reorder
	return hierarchy.Before
}
