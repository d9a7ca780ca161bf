package colony

// RouteToNucleus returns a shortest path start → … → nucleus.
func (c *Colony) RouteToNucleus(start NodeID) ([]NodeID, bool) {
	if !c.valid(start) {
		return nil, false
	}
	if start == c.nucleus {
		return []NodeID{start}, true
	}

	found, prev, ok := c.search(start, func(id NodeID, _ *Node) bool {
		return id == c.nucleus
	})
	if !ok {
		return nil, false
	}
	path, _ := walkBack(prev, found, start) // found → start
	reverse(path)
	return path, true
}

// RouteFromNearestOfType finds the closest live node of type t and returns
// the path from it to start. start itself qualifies.
func (c *Colony) RouteFromNearestOfType(start NodeID, t NodeType) ([]NodeID, bool) {
	if !c.valid(start) {
		return nil, false
	}

	found, prev, ok := c.search(start, func(_ NodeID, n *Node) bool {
		return n.kind == t && n.Alive()
	})
	if !ok {
		return nil, false
	}
	return walkBack(prev, found, start)
}

// search runs a breadth-first search from start and stops at the first
// dequeued node accepted by match. Each node is visited at most once.
func (c *Colony) search(start NodeID, match func(NodeID, *Node) bool) (NodeID, []NodeID, bool) {
	prev := make([]NodeID, len(c.nodes))
	visited := make([]bool, len(c.nodes))
	for i := range prev {
		prev[i] = -1
	}

	queue := make([]NodeID, 0, len(c.nodes))
	queue = append(queue, start)
	visited[start] = true

	head := 0
	for head < len(queue) {
		cur := queue[head]
		head++

		if match(cur, c.nodes[cur]) {
			return cur, prev, true
		}
		for _, nb := range c.nodes[cur].neighbors {
			if !visited[nb] {
				visited[nb] = true
				prev[nb] = cur
				queue = append(queue, nb)
			}
		}
	}
	return -1, prev, false
}

// searchTree explores the whole component of root and returns predecessors.
func (c *Colony) searchTree(root NodeID) []NodeID {
	_, prev, _ := c.search(root, func(NodeID, *Node) bool { return false })
	return prev
}

// walkBack follows predecessors from `from` until `to`, returning from → to.
// It fails if `from` was not reached by the search that produced prev.
func walkBack(prev []NodeID, from, to NodeID) ([]NodeID, bool) {
	path := []NodeID{from}
	for cur := from; cur != to; {
		cur = prev[cur]
		if cur < 0 {
			return nil, false
		}
		path = append(path, cur)
	}
	return path, true
}

func reverse(ids []NodeID) {
	for i, j := 0, len(ids)-1; i < j; i, j = i+1, j-1 {
		ids[i], ids[j] = ids[j], ids[i]
	}
}
