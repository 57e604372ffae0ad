// Package order allocates sibling order keys for insertion points.
//
// Keys are float64 values compared among siblings sharing a parent. The
// scheme is gap insertion with a fixed step: no renormalization is ever
// performed, so repeated inserts at the same spot halve the gap each time
// and eventually run out of float precision (ErrOrderExhausted).
package order

import (
	"errors"
	"fmt"
)

// DefaultStep is the offset used when there is no neighbour to bisect.
const DefaultStep = 0.5

var ErrOrderExhausted = errors.New("order key precision exhausted")

// Side selects where the new key goes relative to the target.
type Side int

const (
	Before Side = iota
	After
)

func (s Side) String() string {
	if s == Before {
		return "before"
	}
	return "after"
}

// Allocator computes order keys. The zero value uses DefaultStep.
type Allocator struct {
	Step float64
}

func (a Allocator) step() float64 {
	if a.Step <= 0 {
		return DefaultStep
	}
	return a.Step
}

// Beside returns a key next to target on the given side. neighbour is the
// order of the adjacent sibling on that side, if any (the moved node itself
// must already be excluded by the caller). With a neighbour strictly beyond
// target the key is the midpoint, so untouched siblings keep their relative
// order. Without one, or when the neighbour shares target's key, it is
// target -/+ Step. ErrOrderExhausted is only returned for a strict interval
// too narrow to split.
func (a Allocator) Beside(target float64, side Side, neighbour *float64) (float64, error) {
	if !beyond(target, side, neighbour) {
		if side == Before {
			return target - a.step(), nil
		}
		return target + a.step(), nil
	}
	return between(target, *neighbour)
}

// beyond reports whether neighbour lies strictly on side of target.
func beyond(target float64, side Side, neighbour *float64) bool {
	if neighbour == nil {
		return false
	}
	if side == Before {
		return *neighbour < target
	}
	return *neighbour > target
}

// Child returns a key for a node appended under a parent. lastChild is the
// order of the parent's current last child, if any. parent + Step is only
// used when the parent has no children; otherwise the key follows the last
// child so the new node sorts after its siblings.
func (a Allocator) Child(parent float64, lastChild *float64) float64 {
	if lastChild == nil {
		return parent + a.step()
	}
	return *lastChild + a.step()
}

// Append returns a key after the largest of existing, or 0 when empty.
func (a Allocator) Append(existing []float64) float64 {
	if len(existing) == 0 {
		return 0
	}
	last := existing[0]
	for _, o := range existing[1:] {
		if o > last {
			last = o
		}
	}
	return last + a.step()
}

// between returns the midpoint of two keys, failing when it collapses onto
// either bound.
func between(x, y float64) (float64, error) {
	lo, hi := x, y
	if lo > hi {
		lo, hi = hi, lo
	}
	mid := lo + (hi-lo)/2
	if mid <= lo || mid >= hi {
		return 0, fmt.Errorf("between %v and %v: %w", lo, hi, ErrOrderExhausted)
	}
	return mid, nil
}
