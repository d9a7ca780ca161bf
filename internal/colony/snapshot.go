package colony

// NodeView is a read-only copy of one node for presentation layers.
type NodeView struct {
	ID        NodeID  `json:"id"`
	X         int     `json:"x"`
	Y         int     `json:"y"`
	Type      string  `json:"type"`
	State     string  `json:"state"`
	Health    float64 `json:"health"`
	Infection float64 `json:"infection"`
	Terminal  bool    `json:"terminal"`
	Rate      float64 `json:"rate"`
	Neighbors []Point `json:"neighbors"`
}

// Snapshot is a point-in-time copy of the colony.
type Snapshot struct {
	Nutrients        float64    `json:"nutrients"`
	NutrientCapacity float64    `json:"nutrient_capacity"`
	NutrientsFull    bool       `json:"nutrients_full"` // at or above 95% of capacity
	Defense          float64    `json:"defense"`
	DefenseCapacity  float64    `json:"defense_capacity"`
	NucleusHealthPct float64    `json:"nucleus_health_pct"`
	GameOver         bool       `json:"game_over"`
	Infected         int        `json:"infected"`
	Terminal         int        `json:"terminal"`
	Nodes            []NodeView `json:"nodes"`
}

// View copies a single node.
func (c *Colony) View(id NodeID) (NodeView, bool) {
	n := c.Node(id)
	if n == nil {
		return NodeView{}, false
	}
	nbs := make([]Point, len(n.neighbors))
	for i, nb := range n.neighbors {
		nbs[i] = c.nodes[nb].pos
	}
	return NodeView{
		ID:        id,
		X:         n.pos.X,
		Y:         n.pos.Y,
		Type:      n.kind.String(),
		State:     n.State().String(),
		Health:    n.health,
		Infection: n.infection,
		Terminal:  n.terminal,
		Rate:      n.rate,
		Neighbors: nbs,
	}, true
}

// Snapshot copies the whole colony.
func (c *Colony) Snapshot() Snapshot {
	s := Snapshot{
		Nutrients:        c.nutrients,
		NutrientCapacity: c.capacity,
		NutrientsFull:    c.capacity > 0 && c.nutrients >= c.capacity*0.95,
		Defense:          c.defense,
		DefenseCapacity:  c.params.DefenseCapacity,
		NucleusHealthPct: c.nodes[c.nucleus].health / Nucleus.BaseHealth() * 100,
		GameOver:         c.gameOver,
		Infected:         len(c.infected),
		Nodes:            make([]NodeView, 0, len(c.nodes)),
	}
	for i, n := range c.nodes {
		if n.terminal {
			s.Terminal++
		}
		v, _ := c.View(NodeID(i))
		s.Nodes = append(s.Nodes, v)
	}
	return s
}
