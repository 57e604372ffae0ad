package graph

// Swap replaces f's contents with next's in one step, so holders of f see
// either the old forest or the new one and never a mix. next must not be
// used afterwards.
func (f *Forest) Swap(next *Forest) {
	if f == next {
		return
	}
	next.mu.Lock()
	nodes, ids, rev := next.nodes, next.nodeIntID, next.intToNodeID
	next.nodes, next.nodeIntID, next.intToNodeID = nil, nil, nil
	next.mu.Unlock()

	f.mu.Lock()
	defer f.mu.Unlock()
	f.nodes = nodes
	f.nodeIntID = ids
	f.intToNodeID = rev
}
