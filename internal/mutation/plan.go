package mutation

import (
	"github.com/agentic-research/arbor/api"
	"github.com/agentic-research/arbor/internal/graph"
	"github.com/agentic-research/arbor/internal/hierarchy"
	"github.com/agentic-research/arbor/internal/order"
)

// placement is where the dragged node ends up.
type placement struct {
	parentID string
	level    int
	order    float64
}

// plan computes the diff for an already validated move. The dragged node's
// change comes first, followed by descendant level fixes.
func (e *Engine) plan(op hierarchy.Op, draggedID, targetID string) ([]api.Change, error) {
	dragged, err := e.forest.Get(draggedID)
	if err != nil {
		return nil, err
	}

	var p placement
	switch op {
	case hierarchy.Child:
		p, err = e.placeAsChild(draggedID, targetID)
	case hierarchy.Before, hierarchy.After:
		p, err = e.placeBeside(draggedID, targetID, op)
	case hierarchy.Root:
		p = e.placeAtRoot(draggedID)
	}
	if err != nil {
		return nil, err
	}

	var changes []api.Change
	if f := diffFields(dragged, p); !f.Empty() {
		changes = append(changes, api.Change{ID: draggedID, Fields: f})
	}
	return append(changes, e.cascade(op, draggedID, p.level)...), nil
}

func (e *Engine) placeAsChild(draggedID, parentID string) (placement, error) {
	parent, err := e.forest.Get(parentID)
	if err != nil {
		return placement{}, err
	}
	var last *float64
	if kids := without(e.forest.Children(parentID), draggedID); len(kids) > 0 {
		o := kids[len(kids)-1].Order
		last = &o
	}
	return placement{
		parentID: parent.ID,
		level:    parent.Level + 1,
		order:    e.opts.Allocator.Child(parent.Order, last),
	}, nil
}

func (e *Engine) placeBeside(draggedID, targetID string, op hierarchy.Op) (placement, error) {
	target, err := e.forest.Get(targetID)
	if err != nil {
		return placement{}, err
	}

	side := order.Before
	if op == hierarchy.After {
		side = order.After
	}
	siblings := without(e.forest.Children(target.ParentID), draggedID)
	var neighbour *float64
	for i := range siblings {
		if siblings[i].ID != targetID {
			continue
		}
		dir := -1
		if side == order.After {
			dir = 1
		}
		// siblings sharing the target's key cannot be split; bisect
		// against the first distinct key instead
		for j := i + dir; j >= 0 && j < len(siblings); j += dir {
			if siblings[j].Order != target.Order {
				o := siblings[j].Order
				neighbour = &o
				break
			}
		}
		break
	}
	key, err := e.opts.Allocator.Beside(target.Order, side, neighbour)
	if err != nil {
		return placement{}, err
	}

	p := placement{parentID: target.ParentID, level: target.Level, order: key}
	if target.IsRoot() {
		// promotion path: beside a root is always a root
		p.parentID, p.level = "", 0
	}
	return p, nil
}

func (e *Engine) placeAtRoot(draggedID string) placement {
	roots := without(e.forest.Roots(), draggedID)
	keys := make([]float64, len(roots))
	for i := range roots {
		keys[i] = roots[i].Order
	}
	return placement{order: e.opts.Allocator.Append(keys)}
}

// cascade returns level fixes for nodes below the moved one, given its new
// level.
func (e *Engine) cascade(op hierarchy.Op, draggedID string, level int) []api.Change {
	if e.opts.Cascade == CascadeShallow && op != hierarchy.Child {
		return nil
	}
	var changes []api.Change
	for _, d := range e.forest.Descendants(draggedID) {
		if e.opts.Cascade == CascadeShallow && d.Depth > 1 {
			// Breadth-first: every remaining node is deeper.
			break
		}
		n, err := e.forest.Get(d.ID)
		if err != nil {
			continue
		}
		want := level + d.Depth
		if n.Level != want {
			changes = append(changes, api.Change{ID: d.ID, Fields: api.Fields{Level: &want}})
		}
	}
	return changes
}

func diffFields(n graph.Node, p placement) api.Fields {
	var f api.Fields
	if n.ParentID != p.parentID {
		parent := p.parentID
		f.ParentID = &parent
	}
	if n.Level != p.level {
		level := p.level
		f.Level = &level
	}
	if n.Order != p.order {
		key := p.order
		f.Order = &key
	}
	return f
}

func without(nodes []graph.Node, id string) []graph.Node {
	out := nodes[:0]
	for _, n := range nodes {
		if n.ID != id {
			out = append(out, n)
		}
	}
	return out
}
