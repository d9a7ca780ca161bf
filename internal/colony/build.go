package colony

import "errors"

// Construction outcomes. None of these are faults: the caller branches on
// them the same way it would on an empty lookup.
var (
	ErrInsufficientNutrients = errors.New("insufficient nutrients")
	ErrNoParent              = errors.New("no node to link to")
	ErrCellOccupied          = errors.New("cell already occupied")
	ErrNotBuildable          = errors.New("node type cannot be built")
)

// CanAfford reports whether the pool currently covers the cost of t.
func (c *Colony) CanAfford(t NodeType) bool {
	return t.Valid() && c.nutrients >= t.Cost()
}

// Build places a new node at (x, y) and links it to the nearest existing node.
// On failure the colony is left untouched.
func (c *Colony) Build(x, y int, t NodeType) (NodeID, error) {
	if !t.Valid() || t == Nucleus {
		return -1, ErrNotBuildable
	}
	if c.nutrients < t.Cost() {
		return -1, ErrInsufficientNutrients
	}
	if _, taken := c.NodeAt(x, y); taken {
		return -1, ErrCellOccupied
	}
	parent, ok := c.FindNearest(x, y)
	if !ok {
		return -1, ErrNoParent
	}

	rate := t.BaseRate()
	if c.yield != nil && rate > 0 {
		rate *= c.yield.Yield(x, y)
	}

	c.nutrients -= t.Cost()
	id := c.register(Point{X: x, Y: y}, t, rate)
	c.link(parent, id)

	if t == Storage {
		c.recomputeCapacity()
	}
	return id, nil
}
