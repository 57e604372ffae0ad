// Package hierarchy decides whether a proposed structural change keeps the
// forest a forest. All legality rules live in one table evaluated in order;
// the first rule that matches blocks the move.
package hierarchy

import (
	"fmt"

	"github.com/agentic-research/arbor/api"
	"github.com/agentic-research/arbor/internal/graph"
)

// Op is a structural operation on the dragged node.
type Op int

const (
	NoOp Op = iota
	Before
	After
	Child
	Root
)

func (o Op) String() string {
	switch o {
	case Before:
		return "before"
	case After:
		return "after"
	case Child:
		return "child"
	case Root:
		return "root"
	default:
		return "noop"
	}
}

// ParseOp maps a name produced by Op.String back to an Op.
func ParseOp(s string) (Op, error) {
	for _, o := range []Op{NoOp, Before, After, Child, Root} {
		if o.String() == s {
			return o, nil
		}
	}
	return NoOp, fmt.Errorf("unknown operation %q", s)
}

// SameLevel reports whether the op places dragged beside target.
func (o Op) SameLevel() bool { return o == Before || o == After }

// Reason explains why a move was blocked.
type Reason string

const (
	CycleDetected   Reason = api.ReasonCycleDetected
	InvalidDemotion Reason = api.ReasonInvalidDemotion
	SelfTarget      Reason = api.ReasonNoOp
)

// BlockedError is returned when a rule rejects a move. No state has been
// touched when it is returned.
type BlockedError struct {
	Op      Op
	Dragged string
	Target  string
	Reason  Reason
	Rule    string
}

func (e *BlockedError) Error() string {
	return fmt.Sprintf("%s %s onto %s blocked by %s: %s", e.Op, e.Dragged, e.Target, e.Rule, e.Reason)
}

// View is the read access the validator needs. *graph.Forest satisfies it.
type View interface {
	Get(id string) (graph.Node, error)
	IsDescendant(a, b string) bool
}

type move struct {
	view            View
	op              Op
	dragged, target graph.Node
}

// targetBelowDragged reports whether target sits inside dragged's subtree.
func (m *move) targetBelowDragged() bool {
	return m.view.IsDescendant(m.target.ID, m.dragged.ID)
}

type rule struct {
	name    string
	ops     []Op
	reason  Reason
	matches func(m *move) bool
}

func (r rule) appliesTo(op Op) bool {
	for _, o := range r.ops {
		if o == op {
			return true
		}
	}
	return false
}

// rules is evaluated top to bottom; the first match wins.
var rules = []rule{
	{
		name:   "self",
		ops:    []Op{Before, After, Child},
		reason: SelfTarget,
		matches: func(m *move) bool {
			return m.dragged.ID == m.target.ID
		},
	},
	{
		// Checked in both directions against the pre-move snapshot.
		name:   "cycle",
		ops:    []Op{Child},
		reason: CycleDetected,
		matches: func(m *move) bool {
			return m.targetBelowDragged() || m.view.IsDescendant(m.dragged.ID, m.target.ID)
		},
	},
	{
		// A root may not be pushed into a non-root slot. The inverse,
		// promoting a non-root beside a root, is allowed.
		name:   "demotion",
		ops:    []Op{Before, After},
		reason: InvalidDemotion,
		matches: func(m *move) bool {
			return m.dragged.Level == 0 && m.target.Level > 0
		},
	},
	{
		name:   "descendant-conflict",
		ops:    []Op{Before, After},
		reason: InvalidDemotion,
		matches: func(m *move) bool {
			return m.dragged.Level == 0 && m.targetBelowDragged()
		},
	},
	{
		// Becoming a sibling of your own descendant would make dragged its
		// own ancestor.
		name:   "nesting",
		ops:    []Op{Before, After},
		reason: CycleDetected,
		matches: func(m *move) bool {
			return m.targetBelowDragged()
		},
	},
}

// Validate returns nil when op may be applied, a *BlockedError when a rule
// rejects it, or an error wrapping graph.ErrNotFound when an id does not
// resolve. For Root the target is ignored.
func Validate(v View, draggedID, targetID string, op Op) error {
	dragged, err := v.Get(draggedID)
	if err != nil {
		return fmt.Errorf("dragged %s: %w", draggedID, err)
	}
	switch op {
	case Root:
		return nil
	case NoOp:
		return &BlockedError{Op: op, Dragged: draggedID, Target: targetID, Reason: SelfTarget, Rule: "noop"}
	}

	target, err := v.Get(targetID)
	if err != nil {
		return fmt.Errorf("target %s: %w", targetID, err)
	}

	m := &move{view: v, op: op, dragged: dragged, target: target}
	for _, r := range rules {
		if !r.appliesTo(op) {
			continue
		}
		if r.matches(m) {
			return &BlockedError{Op: op, Dragged: draggedID, Target: targetID, Reason: r.reason, Rule: r.name}
		}
	}
	return nil
}
