package colony

import "math"

// Colony is the aggregate root. It owns every node in an index arena;
// adjacency, the nucleus reference and the infected list are all NodeIDs.
// A Colony is not safe for concurrent use: callers serialize construction
// against cycle advancement.
type Colony struct {
	params Params

	nodes   []*Node
	byPos   map[Point]NodeID
	nucleus NodeID

	nutrients float64
	defense   float64
	capacity  float64
	gameOver  bool

	infected []NodeID

	sink  FlowSink
	yield YieldField
}

// YieldField scales the production rate of producers built on a given cell.
type YieldField interface {
	Yield(x, y int) float64
}

// Option configures optional collaborators of a Colony.
type Option func(*Colony)

// WithFlowSink registers the receiver of resource-flow hints.
func WithFlowSink(s FlowSink) Option {
	return func(c *Colony) { c.sink = s }
}

// WithYield makes new producers take their rate from a substrate field.
func WithYield(f YieldField) Option {
	return func(c *Colony) { c.yield = f }
}

// New creates a colony holding only its nucleus.
func New(p Params, opts ...Option) (*Colony, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	c := &Colony{
		params:    p,
		byPos:     make(map[Point]NodeID),
		nutrients: p.StartingNutrients,
		defense:   p.StartingDefense,
	}
	for _, opt := range opts {
		opt(c)
	}

	c.nucleus = c.register(Point{X: p.NucleusX, Y: p.NucleusY}, Nucleus, Nucleus.BaseRate())
	c.recomputeCapacity()
	return c, nil
}

// SetFlowSink replaces the flow sink; nil disables flow reporting.
func (c *Colony) SetFlowSink(s FlowSink) { c.sink = s }

func (c *Colony) Params() Params { return c.params }
func (c *Colony) Nutrients() float64 { return c.nutrients }
func (c *Colony) NutrientCapacity() float64 { return c.capacity }
func (c *Colony) Defense() float64 { return c.defense }
func (c *Colony) DefenseCapacity() float64 { return c.params.DefenseCapacity }
func (c *Colony) Nucleus() NodeID { return c.nucleus }
func (c *Colony) IsGameOver() bool { return c.gameOver }
func (c *Colony) Len() int { return len(c.nodes) }

// Node returns the node with the given id, or nil.
func (c *Colony) Node(id NodeID) *Node {
	if !c.valid(id) {
		return nil
	}
	return c.nodes[id]
}

// NucleusNode returns the nucleus.
func (c *Colony) NucleusNode() *Node { return c.nodes[c.nucleus] }

// Infected returns the tracked infected nodes in insertion order.
func (c *Colony) Infected() []NodeID {
	out := make([]NodeID, len(c.infected))
	copy(out, c.infected)
	return out
}

// NodeAt looks up the node occupying a grid cell.
func (c *Colony) NodeAt(x, y int) (NodeID, bool) {
	id, ok := c.byPos[Point{X: x, Y: y}]
	return id, ok
}

// FindNearest returns the node closest to (x, y) by Euclidean distance.
// Ties go to the earliest-registered node.
func (c *Colony) FindNearest(x, y int) (NodeID, bool) {
	best := NodeID(-1)
	bestDist := math.MaxFloat64
	for i, n := range c.nodes {
		dx := float64(x - n.pos.X)
		dy := float64(y - n.pos.Y)
		if d := math.Hypot(dx, dy); d < bestDist {
			bestDist = d
			best = NodeID(i)
		}
	}
	return best, best >= 0
}

// Linked reports whether two nodes share a hypha.
func (c *Colony) Linked(a, b NodeID) bool {
	if !c.valid(a) || !c.valid(b) {
		return false
	}
	return c.nodes[a].hasNeighbor(b)
}

func (c *Colony) valid(id NodeID) bool {
	return id >= 0 && int(id) < len(c.nodes)
}

func (c *Colony) register(p Point, t NodeType, rate float64) NodeID {
	id := NodeID(len(c.nodes))
	c.nodes = append(c.nodes, &Node{
		pos:    p,
		kind:   t,
		health: t.BaseHealth(),
		rate:   rate,
	})
	c.byPos[p] = id
	return id
}

// link creates the mutual adjacency once; repeated calls are no-ops.
func (c *Colony) link(a, b NodeID) {
	if a == b || c.nodes[a].hasNeighbor(b) {
		return
	}
	c.nodes[a].neighbors = append(c.nodes[a].neighbors, b)
	c.nodes[b].neighbors = append(c.nodes[b].neighbors, a)
}

// recomputeCapacity sums capacity over the nucleus and every storage node.
func (c *Colony) recomputeCapacity() {
	total := 0.0
	for _, n := range c.nodes {
		if n.kind == Nucleus || n.kind == Storage {
			total += n.kind.Capacity()
		}
	}
	c.capacity = total
}
