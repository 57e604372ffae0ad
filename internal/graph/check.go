package graph

import (
	"fmt"
	"sort"
	"strings"

	"github.com/RoaringBitmap/roaring"
)

// InvariantError lists the nodes that break the forest's structural rules.
type InvariantError struct {
	Cycles     []string // nodes whose ancestor chain never reaches a root
	Orphans    []string // nodes whose parent is missing
	DepthDrift []string // nodes whose level disagrees with their parent's
}

func (e *InvariantError) Error() string {
	var parts []string
	if len(e.Cycles) > 0 {
		parts = append(parts, fmt.Sprintf("cycle through %s", strings.Join(e.Cycles, ",")))
	}
	if len(e.Orphans) > 0 {
		parts = append(parts, fmt.Sprintf("missing parent for %s", strings.Join(e.Orphans, ",")))
	}
	if len(e.DepthDrift) > 0 {
		parts = append(parts, fmt.Sprintf("stale level on %s", strings.Join(e.DepthDrift, ",")))
	}
	return "forest invariants violated: " + strings.Join(parts, "; ")
}

// Check verifies acyclicity and depth consistency for every node.
// It returns nil or an *InvariantError. Orphans are reported on their own
// and excluded from the depth check.
func (f *Forest) Check() error {
	f.mu.RLock()
	defer f.mu.RUnlock()

	var ie InvariantError
	for id, n := range f.nodes {
		switch f.rootReachLocked(id) {
		case reachCycle:
			ie.Cycles = append(ie.Cycles, id)
			continue
		case reachOrphan:
			ie.Orphans = append(ie.Orphans, id)
			continue
		}
		want := 0
		if n.ParentID != "" {
			want = f.nodes[n.ParentID].Level + 1
		}
		if n.Level != want {
			ie.DepthDrift = append(ie.DepthDrift, id)
		}
	}
	if len(ie.Cycles) == 0 && len(ie.Orphans) == 0 && len(ie.DepthDrift) == 0 {
		return nil
	}
	sort.Strings(ie.Cycles)
	sort.Strings(ie.Orphans)
	sort.Strings(ie.DepthDrift)
	return &ie
}

type reach int

const (
	reachRoot reach = iota
	reachCycle
	reachOrphan
)

// rootReachLocked follows parent links from id until it hits a root,
// revisits a node, or dangles.
func (f *Forest) rootReachLocked(id string) reach {
	visited := roaring.New()
	n := f.nodes[id]
	for {
		intID := f.nodeIntID[n.ID]
		if visited.Contains(intID) {
			return reachCycle
		}
		visited.Add(intID)
		if n.ParentID == "" {
			return reachRoot
		}
		parent, ok := f.nodes[n.ParentID]
		if !ok {
			return reachOrphan
		}
		n = parent
	}
}
