package colony

// EconomyReport summarizes one economy cycle.
type EconomyReport struct {
	Extracted float64 `json:"extracted"`
	Defense   float64 `json:"defense"`
	Overflow  float64 `json:"overflow"` // nutrients discarded by the capacity clamp
}

// AdvanceEconomy pools this cycle's production and clamps both resources.
// Nothing happens once the colony has been lost.
func (c *Colony) AdvanceEconomy() EconomyReport {
	var rep EconomyReport
	if c.gameOver {
		return rep
	}

	var producers []NodeID
	for i, n := range c.nodes {
		kind, rate := n.Output()
		switch kind {
		case ResourceNutrient:
			rep.Extracted += rate
			if rate > 0 {
				producers = append(producers, NodeID(i))
			}
		case ResourceDefense:
			rep.Defense += rate
		}
	}

	raw := c.nutrients + rep.Extracted
	c.nutrients = min(raw, c.capacity)
	if raw > c.capacity {
		rep.Overflow = raw - c.capacity
	}
	c.defense = clamp(c.defense+rep.Defense, 0, c.params.DefenseCapacity)

	c.reportNutrientFlows(producers)
	return rep
}

// reportNutrientFlows sends every producing extractor's path to the nucleus
// to the sink, using a single search from the nucleus for all of them.
func (c *Colony) reportNutrientFlows(producers []NodeID) {
	if c.sink == nil || len(producers) == 0 {
		return
	}
	prev := c.searchTree(c.nucleus)
	for _, id := range producers {
		path, ok := walkBack(prev, id, c.nucleus)
		if !ok {
			continue
		}
		c.sink.ReportFlow(Flow{Origin: id, Path: path, Kind: ResourceNutrient})
	}
}
