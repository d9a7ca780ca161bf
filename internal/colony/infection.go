package colony

// Rand is the random source the infection engine draws from.
// *math/rand/v2.Rand satisfies it.
type Rand interface {
	Float64() float64
	IntN(n int) int
}

// InfectionReport lists what changed during one infection cycle.
type InfectionReport struct {
	Elapsed       uint64   `json:"elapsed"`
	Transformed   []NodeID `json:"transformed,omitempty"`
	NewlyInfected []NodeID `json:"newly_infected,omitempty"`
	Contained     []NodeID `json:"contained,omitempty"` // dropped from tracking at infection 0
	Containments  int      `json:"containments"`
	DefenseSpent  float64  `json:"defense_spent"`
	Defeat        bool     `json:"defeat"`
}

// AdvanceInfection runs one cycle of damage, containment, transformation and
// propagation over the infected set. It is a no-op once the colony is lost.
func (c *Colony) AdvanceInfection(rng Rand, k Combat) InfectionReport {
	rep := InfectionReport{Elapsed: k.Elapsed}
	if c.gameOver {
		return rep
	}

	var pending []NodeID
	queued := make(map[NodeID]bool)

	for _, id := range c.infected {
		n := c.nodes[id]

		if !n.terminal {
			n.health = floorZero(n.health - k.Damage)
		}

		if !n.terminal && c.defense >= k.ContainmentCost {
			c.defense -= k.ContainmentCost
			n.infection = floorZero(n.infection - c.params.ContainmentStep)
			rep.Containments++
			rep.DefenseSpent += k.ContainmentCost
			c.reportDefenseFlow(id)
		}

		if n.health <= 0 && !n.terminal {
			c.transform(id)
			rep.Transformed = append(rep.Transformed, id)
		}

		// Terminal nodes spread every cycle; infected ones only by chance.
		if n.terminal || rng.Float64() < k.Spread {
			for _, nb := range n.neighbors {
				m := c.nodes[nb]
				if m.infection == 0 && !m.terminal && !queued[nb] {
					queued[nb] = true
					pending = append(pending, nb)
				}
			}
		}
	}

	for _, id := range pending {
		n := c.nodes[id]
		if n.tracked {
			continue
		}
		n.infection = c.params.InitialInfection
		c.track(id)
		rep.NewlyInfected = append(rep.NewlyInfected, id)
	}

	kept := c.infected[:0]
	for _, id := range c.infected {
		n := c.nodes[id]
		if n.infection <= 0 && !n.terminal {
			n.tracked = false
			rep.Contained = append(rep.Contained, id)
			continue
		}
		kept = append(kept, id)
	}
	c.infected = kept

	if c.nodes[c.nucleus].terminal {
		c.gameOver = true
	}
	rep.Defeat = c.gameOver
	return rep
}

// MaybeSeedInfection starts an outbreak on a random non-nucleus node when
// nothing is currently infected. It reports false, without consuming the
// attempt, while the colony has no candidates.
func (c *Colony) MaybeSeedInfection(rng Rand) (NodeID, bool) {
	if c.gameOver || len(c.infected) > 0 {
		return -1, false
	}

	candidates := make([]NodeID, 0, len(c.nodes))
	for i, n := range c.nodes {
		if NodeID(i) != c.nucleus && !n.terminal {
			candidates = append(candidates, NodeID(i))
		}
	}
	if len(candidates) == 0 {
		return -1, false
	}

	id := candidates[rng.IntN(len(candidates))]
	c.nodes[id].infection = c.params.InitialInfection
	c.track(id)
	return id, true
}

func (c *Colony) track(id NodeID) {
	c.nodes[id].tracked = true
	c.infected = append(c.infected, id)
}

// transform moves a node into the absorbing terminal state.
func (c *Colony) transform(id NodeID) {
	n := c.nodes[id]
	n.terminal = true
	n.health = 0
	n.infection = 1
	n.rate = 0
	if id == c.nucleus {
		c.gameOver = true
	}
}

// reportDefenseFlow tells the sink where the defense spent on target came
// from: the nearest live defense node, or the nucleus when none is reachable.
func (c *Colony) reportDefenseFlow(target NodeID) {
	if c.sink == nil {
		return
	}
	path, ok := c.RouteFromNearestOfType(target, Defense)
	if !ok {
		if path, ok = c.RouteToNucleus(target); !ok {
			return
		}
		reverse(path)
	}
	c.sink.ReportFlow(Flow{Origin: path[0], Path: path, Kind: ResourceDefense})
}
