package steward

import (
	"github.com/talgya/fungal-nexus/internal/colony"
	"github.com/talgya/fungal-nexus/internal/grid"
)

// Threat levels, most severe first.
const (
	ThreatCritical = "CRITICAL"
	ThreatWarning  = "WARNING"
	ThreatWatch    = "WATCH"
	ThreatHealthy  = "HEALTHY"
)

// Health holds derived signals computed from an Observation.
// Runs before any decision; deterministic and free.
type Health struct {
	Extractors int
	Storages   int
	Defenses   int // live defense nodes only
	Infected   int
	Terminal   int

	NutrientFill     float64 // nutrients / capacity
	DefenseFill      float64
	NucleusHealthPct float64
	Threat           string
}

// Triage counts the colony and grades the outbreak.
func Triage(obs *Observation) *Health {
	snap := obs.Colony
	h := &Health{
		Infected:         snap.Infected,
		Terminal:         snap.Terminal,
		NucleusHealthPct: snap.NucleusHealthPct,
	}
	if snap.NutrientCapacity > 0 {
		h.NutrientFill = snap.Nutrients / snap.NutrientCapacity
	}
	if snap.DefenseCapacity > 0 {
		h.DefenseFill = snap.Defense / snap.DefenseCapacity
	}

	byPoint := make(map[colony.Point]colony.NodeView, len(snap.Nodes))
	var nucleus colony.NodeView
	for _, n := range snap.Nodes {
		byPoint[colony.Point{X: n.X, Y: n.Y}] = n
		if n.Type == "nucleus" {
			nucleus = n
		}
		if n.Terminal {
			continue
		}
		switch n.Type {
		case "extractor":
			h.Extractors++
		case "storage":
			h.Storages++
		case "defense":
			h.Defenses++
		}
	}

	// A terminal neighbor damages the nucleus on the next spread.
	terminalAtCore := false
	for _, p := range nucleus.Neighbors {
		if byPoint[p].Terminal {
			terminalAtCore = true
			break
		}
	}

	switch {
	case snap.GameOver, h.NucleusHealthPct < 100, terminalAtCore:
		h.Threat = ThreatCritical
	case h.Terminal > 0, h.Infected > 0 && h.Defenses == 0:
		h.Threat = ThreatWarning
	case h.Infected > 0:
		h.Threat = ThreatWatch
	default:
		h.Threat = ThreatHealthy
	}
	return h
}

// hazardCells returns the cells holding infected or terminal nodes.
func hazardCells(snap colony.Snapshot, g grid.Grid) []grid.Cell {
	var out []grid.Cell
	for _, n := range snap.Nodes {
		if n.Terminal || n.Infection > 0 {
			out = append(out, g.Cell(n.X, n.Y))
		}
	}
	return out
}
