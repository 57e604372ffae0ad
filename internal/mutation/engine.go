// Package mutation applies validated structural moves to a forest.
//
// Every operation follows the same contract: validate, compute the field
// diff, apply it to the in-memory forest (optimistic), persist it through
// the Gateway, then either keep it or restore the previous field values.
package mutation

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/agentic-research/arbor/api"
	"github.com/agentic-research/arbor/internal/gesture"
	"github.com/agentic-research/arbor/internal/graph"
	"github.com/agentic-research/arbor/internal/hierarchy"
	"github.com/agentic-research/arbor/internal/order"
)

// DefaultTimeout bounds a single gateway call.
const DefaultTimeout = 5 * time.Second

// Gateway persists a diff. It receives only changed fields, one Change per
// touched node, in a single call per move.
type Gateway interface {
	UpdateNodes(ctx context.Context, changes []api.Change) error
}

// GatewayFunc adapts a plain function to Gateway.
type GatewayFunc func(ctx context.Context, changes []api.Change) error

func (f GatewayFunc) UpdateNodes(ctx context.Context, changes []api.Change) error {
	return f(ctx, changes)
}

// SnapshotProvider gives read access to the full current forest.
type SnapshotProvider interface {
	LoadForest(ctx context.Context) ([]api.NodeRecord, error)
}

// Observer is told about diffs as they move through the pipeline.
// OnApply fires after the optimistic apply, before persistence.
type Observer interface {
	OnApply(ctx context.Context, d Diff)
	OnCommit(ctx context.Context, d Diff)
	OnRollback(ctx context.Context, d Diff, cause error)
}

// Diff is the complete set of changes produced by one move.
type Diff struct {
	Op        hierarchy.Op
	DraggedID string
	TargetID  string
	Changes   []api.Change
}

// IDs returns the touched node ids in diff order.
func (d Diff) IDs() []string {
	ids := make([]string, len(d.Changes))
	for i, c := range d.Changes {
		ids[i] = c.ID
	}
	return ids
}

// Cascade selects how far level updates propagate below a moved node.
type Cascade int

const (
	// CascadeFull recomputes the level of every descendant.
	CascadeFull Cascade = iota
	// CascadeShallow only touches direct children, and only for Child
	// moves. Deeper levels are left stale.
	CascadeShallow
)

// ParseCascade accepts "full" or "shallow"; empty means full.
func ParseCascade(s string) (Cascade, error) {
	switch s {
	case "", "full":
		return CascadeFull, nil
	case "shallow":
		return CascadeShallow, nil
	}
	return CascadeFull, fmt.Errorf("unknown cascade mode %q", s)
}

type Options struct {
	Allocator order.Allocator
	Cascade   Cascade
	// Timeout bounds each gateway call. Zero uses DefaultTimeout; negative
	// disables the bound.
	Timeout   time.Duration
	Observers []Observer
}

// Result describes a committed move. A move whose diff is empty (the node
// is already where it would go) commits with no changes and no gateway call.
type Result struct {
	Op         hierarchy.Op
	ChangedIDs []string
	Changes    []api.Change
}

// Engine owns a forest and is the only thing allowed to mutate it.
type Engine struct {
	forest *graph.Forest
	gw     Gateway
	opts   Options

	// queue sequences moves: a second move waits until the previous one
	// has committed or rolled back.
	queue sync.Mutex
}

func New(forest *graph.Forest, gw Gateway, opts Options) *Engine {
	if opts.Timeout == 0 {
		opts.Timeout = DefaultTimeout
	}
	return &Engine{forest: forest, gw: gw, opts: opts}
}

// Open loads the forest from a snapshot provider and wraps it in an Engine.
func Open(ctx context.Context, p SnapshotProvider, gw Gateway, opts Options) (*Engine, error) {
	records, err := p.LoadForest(ctx)
	if err != nil {
		return nil, fmt.Errorf("load forest: %w", err)
	}
	forest, err := graph.Load(records)
	if err != nil {
		return nil, err
	}
	return New(forest, gw, opts), nil
}

// Reload re-reads the forest from p and swaps it in once no move is in
// flight. Use it after the store was changed by something other than this
// engine.
func (e *Engine) Reload(ctx context.Context, p SnapshotProvider) error {
	records, err := p.LoadForest(ctx)
	if err != nil {
		return fmt.Errorf("load forest: %w", err)
	}
	fresh, err := graph.Load(records)
	if err != nil {
		return err
	}

	e.queue.Lock()
	defer e.queue.Unlock()
	e.forest.Swap(fresh)
	log.Printf("mutation: reloaded %d nodes", e.forest.Len())
	return nil
}

// Forest exposes read access for observers and checks.
func (e *Engine) Forest() *graph.Forest { return e.forest }

// Snapshot returns the current (possibly optimistic) forest.
func (e *Engine) Snapshot() []api.NodeRecord { return e.forest.Snapshot() }

// ApplyAsChild makes dragged the last child of parent.
func (e *Engine) ApplyAsChild(ctx context.Context, draggedID, parentID string) (*Result, error) {
	return e.run(ctx, hierarchy.Child, draggedID, parentID)
}

// ApplySameLevel places dragged directly before or after target, under
// target's parent. Moving beside a root promotes dragged to a root.
func (e *Engine) ApplySameLevel(ctx context.Context, draggedID, targetID string, side order.Side) (*Result, error) {
	op := hierarchy.Before
	if side == order.After {
		op = hierarchy.After
	}
	return e.run(ctx, op, draggedID, targetID)
}

// MoveToRoot detaches dragged and appends it after all existing roots.
func (e *Engine) MoveToRoot(ctx context.Context, draggedID string) (*Result, error) {
	return e.run(ctx, hierarchy.Root, draggedID, "")
}

// Move runs an explicit operation. Root ignores targetID.
func (e *Engine) Move(ctx context.Context, op hierarchy.Op, draggedID, targetID string) (*Result, error) {
	if op == hierarchy.Root {
		targetID = ""
	}
	return e.run(ctx, op, draggedID, targetID)
}

// Apply interprets a drop gesture and runs the resulting move.
func (e *Engine) Apply(ctx context.Context, g gesture.Gesture) (*Result, error) {
	return e.run(ctx, gesture.Interpret(g), g.DraggedID, g.TargetID)
}

func (e *Engine) run(ctx context.Context, op hierarchy.Op, draggedID, targetID string) (*Result, error) {
	e.queue.Lock()
	defer e.queue.Unlock()

	if err := hierarchy.Validate(e.forest, draggedID, targetID, op); err != nil {
		return nil, err
	}

	changes, err := e.plan(op, draggedID, targetID)
	if err != nil {
		return nil, err
	}
	diff := Diff{Op: op, DraggedID: draggedID, TargetID: targetID, Changes: changes}
	if len(changes) == 0 {
		return &Result{Op: op}, nil
	}

	undo, err := e.applyAll(changes)
	if err != nil {
		return nil, err
	}
	for _, o := range e.opts.Observers {
		o.OnApply(ctx, diff)
	}

	if err := e.persist(ctx, changes); err != nil {
		e.revert(undo)
		pe := classify(err)
		log.Printf("mutation: %s %s rolled back: %v", op, draggedID, err)
		for _, o := range e.opts.Observers {
			o.OnRollback(ctx, diff, pe)
		}
		return nil, pe
	}

	for _, o := range e.opts.Observers {
		o.OnCommit(ctx, diff)
	}
	return &Result{Op: op, ChangedIDs: diff.IDs(), Changes: changes}, nil
}

func (e *Engine) persist(ctx context.Context, changes []api.Change) error {
	if e.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.opts.Timeout)
		defer cancel()
	}
	return e.gw.UpdateNodes(ctx, changes)
}

// applyAll writes changes in order and returns the inverse changes.
// On a failed write it restores whatever was already written.
func (e *Engine) applyAll(changes []api.Change) ([]api.Change, error) {
	undo := make([]api.Change, 0, len(changes))
	for _, c := range changes {
		prev, err := e.forest.Apply(c)
		if err != nil {
			e.revert(undo)
			return nil, err
		}
		undo = append(undo, api.Change{ID: c.ID, Fields: prev})
	}
	return undo, nil
}

func (e *Engine) revert(undo []api.Change) {
	for i := len(undo) - 1; i >= 0; i-- {
		if _, err := e.forest.Apply(undo[i]); err != nil {
			log.Printf("mutation: revert %s: %v", undo[i].ID, err)
		}
	}
}
