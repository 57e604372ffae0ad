package graph

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/RoaringBitmap/roaring"
	"github.com/agentic-research/arbor/api"
)

var ErrNotFound = errors.New("node not found")

// Node is one item in the hierarchy.
// ParentID is a weak reference: it is only ever used as a lookup key into
// the Forest, never as ownership. An empty ParentID marks a root.
type Node struct {
	ID       string
	ParentID string
	Level    int
	Order    float64
	Payload  json.RawMessage
}

// IsRoot reports whether the node has no parent.
func (n *Node) IsRoot() bool { return n.ParentID == "" }

// Record converts the node to its boundary shape.
func (n *Node) Record() api.NodeRecord {
	return api.NodeRecord{
		ID:       n.ID,
		ParentID: n.ParentID,
		Level:    n.Level,
		Order:    n.Order,
		Payload:  n.Payload,
	}
}

// -----------------------------------------------------------------------------
// Forest: id-indexed node arena
// -----------------------------------------------------------------------------

// Forest is the complete set of nodes for one hierarchy instance.
// Children are derived on demand by filtering on ParentID; no child lists
// are stored, so reparenting never leaves dangling pointers.
type Forest struct {
	mu    sync.RWMutex
	nodes map[string]*Node

	// Dense internal IDs so traversals can track visited nodes in a
	// roaring bitmap instead of a string-keyed map.
	nodeIntID   map[string]uint32
	intToNodeID []string
}

func NewForest() *Forest {
	return &Forest{
		nodes:     make(map[string]*Node),
		nodeIntID: make(map[string]uint32),
	}
}

// Load builds a forest from snapshot records. Duplicate IDs are rejected;
// structural problems (cycles, stale levels) are left for Check to report.
func Load(records []api.NodeRecord) (*Forest, error) {
	f := NewForest()
	for _, r := range records {
		if r.ID == "" {
			return nil, errors.New("record with empty id")
		}
		if _, dup := f.nodes[r.ID]; dup {
			return nil, fmt.Errorf("duplicate node id %q", r.ID)
		}
		f.addLocked(&Node{
			ID:       r.ID,
			ParentID: r.ParentID,
			Level:    r.Level,
			Order:    r.Order,
			Payload:  r.Payload,
		})
	}
	return f, nil
}

// Add inserts or replaces a node.
func (f *Forest) Add(n *Node) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.addLocked(n)
}

// addLocked must be called with f.mu held (or before the forest is shared).
func (f *Forest) addLocked(n *Node) {
	f.nodes[n.ID] = n
	if _, ok := f.nodeIntID[n.ID]; !ok {
		f.nodeIntID[n.ID] = uint32(len(f.intToNodeID))
		f.intToNodeID = append(f.intToNodeID, n.ID)
	}
}

// Len returns the number of nodes.
func (f *Forest) Len() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.nodes)
}

// Get returns a copy of the node so callers cannot mutate the forest
// behind the engine's back.
func (f *Forest) Get(id string) (Node, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	n, ok := f.nodes[id]
	if !ok {
		return Node{}, ErrNotFound
	}
	return *n, nil
}

// Children returns copies of the children of parentID sorted by (Order, ID).
// An empty parentID lists the roots.
func (f *Forest) Children(parentID string) []Node {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.childrenLocked(parentID)
}

func (f *Forest) childrenLocked(parentID string) []Node {
	var out []Node
	for _, n := range f.nodes {
		if n.ParentID == parentID {
			out = append(out, *n)
		}
	}
	sortSiblings(out)
	return out
}

// Roots returns the root nodes in sibling order.
func (f *Forest) Roots() []Node {
	return f.Children("")
}

func sortSiblings(nodes []Node) {
	sort.Slice(nodes, func(i, j int) bool {
		if nodes[i].Order != nodes[j].Order {
			return nodes[i].Order < nodes[j].Order
		}
		return nodes[i].ID < nodes[j].ID
	})
}

// IsDescendant reports whether a is reachable from b by following child
// links one or more times. It walks a's ancestor chain with a visited set,
// so it terminates even if the forest already contains a cycle.
// IsDescendant(a, a) is false.
func (f *Forest) IsDescendant(a, b string) bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.isDescendantLocked(a, b)
}

func (f *Forest) isDescendantLocked(a, b string) bool {
	if a == b {
		return false
	}
	n, ok := f.nodes[a]
	if !ok {
		return false
	}
	visited := roaring.New()
	visited.Add(f.nodeIntID[a])
	for n.ParentID != "" {
		if n.ParentID == b {
			return true
		}
		parent, ok := f.nodes[n.ParentID]
		if !ok {
			return false
		}
		intID := f.nodeIntID[parent.ID]
		if visited.Contains(intID) {
			return false
		}
		visited.Add(intID)
		n = parent
	}
	return false
}

// Descendants returns every node below id in breadth-first order, paired
// with its depth relative to id (children are 1). Each node is visited at
// most once.
func (f *Forest) Descendants(id string) []Descendant {
	f.mu.RLock()
	defer f.mu.RUnlock()

	children := f.childIndexLocked()
	visited := roaring.New()
	if intID, ok := f.nodeIntID[id]; ok {
		visited.Add(intID)
	}

	var out []Descendant
	frontier := []string{id}
	for depth := 1; len(frontier) > 0; depth++ {
		var next []string
		for _, pid := range frontier {
			for _, cid := range children[pid] {
				intID := f.nodeIntID[cid]
				if visited.Contains(intID) {
					continue
				}
				visited.Add(intID)
				out = append(out, Descendant{ID: cid, Depth: depth})
				next = append(next, cid)
			}
		}
		frontier = next
	}
	return out
}

// Descendant is a node below some ancestor, Depth hops away from it.
type Descendant struct {
	ID    string
	Depth int
}

// childIndexLocked builds parent -> child ids, each list in sibling order.
func (f *Forest) childIndexLocked() map[string][]string {
	byParent := make(map[string][]Node)
	for _, n := range f.nodes {
		if n.ParentID != "" {
			byParent[n.ParentID] = append(byParent[n.ParentID], *n)
		}
	}
	index := make(map[string][]string, len(byParent))
	for pid, kids := range byParent {
		sortSiblings(kids)
		ids := make([]string, len(kids))
		for i := range kids {
			ids[i] = kids[i].ID
		}
		index[pid] = ids
	}
	return index
}

// Apply writes a partial update to a node and returns the fields it
// replaced, so the caller can revert with a second Apply.
func (f *Forest) Apply(c api.Change) (api.Fields, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	n, ok := f.nodes[c.ID]
	if !ok {
		return api.Fields{}, fmt.Errorf("apply %s: %w", c.ID, ErrNotFound)
	}
	var prev api.Fields
	if c.Fields.ParentID != nil {
		p := n.ParentID
		prev.ParentID = &p
		n.ParentID = *c.Fields.ParentID
	}
	if c.Fields.Level != nil {
		l := n.Level
		prev.Level = &l
		n.Level = *c.Fields.Level
	}
	if c.Fields.Order != nil {
		o := n.Order
		prev.Order = &o
		n.Order = *c.Fields.Order
	}
	return prev, nil
}

// Snapshot returns every node as a record, roots first, then by level,
// parent and sibling order. The result is detached from the forest.
func (f *Forest) Snapshot() []api.NodeRecord {
	f.mu.RLock()
	defer f.mu.RUnlock()

	nodes := make([]Node, 0, len(f.nodes))
	for _, n := range f.nodes {
		nodes = append(nodes, *n)
	}
	sort.Slice(nodes, func(i, j int) bool {
		a, b := nodes[i], nodes[j]
		if a.Level != b.Level {
			return a.Level < b.Level
		}
		if a.ParentID != b.ParentID {
			return a.ParentID < b.ParentID
		}
		if a.Order != b.Order {
			return a.Order < b.Order
		}
		return a.ID < b.ID
	})
	out := make([]api.NodeRecord, len(nodes))
	for i := range nodes {
		out[i] = nodes[i].Record()
	}
	return out
}
