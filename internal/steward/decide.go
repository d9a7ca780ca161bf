package steward

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/talgya/fungal-nexus/internal/colony"
	"github.com/talgya/fungal-nexus/internal/grid"
)

// Actions a Decision can carry.
const (
	ActionNone  = "none"
	ActionBuild = "build"
)

// hazardPenalty pushes non-defense builds away from infected cells.
const hazardPenalty = 100

// Decision is the steward's plan for one cycle.
type Decision struct {
	Action    string      `json:"action"`
	Rationale string      `json:"rationale"`
	Build     *BuildOrder `json:"build"`
}

// BuildOrder is the payload for POST /api/v1/build.
type BuildOrder struct {
	X    int    `json:"x"`
	Y    int    `json:"y"`
	Type string `json:"type"`
}

// Advisor answers a colony report with a JSON decision. *llm.Client
// satisfies it.
type Advisor interface {
	AdviseBuild(report string) (string, error)
}

// Plan picks the next build with fixed heuristics: answer outbreaks with
// defense, relieve a full pool with storage, otherwise grow extraction.
func Plan(obs *Observation, h *Health, g grid.Grid) *Decision {
	if obs.Colony.GameOver {
		return &Decision{Action: ActionNone, Rationale: "the nucleus has fallen"}
	}

	want, why := wantType(obs, h)
	if !obs.Status.Status.Affordable[want.String()] {
		return &Decision{
			Action:    ActionNone,
			Rationale: fmt.Sprintf("saving for a %s (%d nutrients): %s", want, int(want.Cost()), why),
		}
	}

	order, ok := placement(obs.Colony, g, want)
	if !ok {
		return &Decision{Action: ActionNone, Rationale: "no free cell next to the colony"}
	}
	return &Decision{Action: ActionBuild, Rationale: why, Build: order}
}

func wantType(obs *Observation, h *Health) (colony.NodeType, string) {
	switch {
	case h.Infected > 0 && h.Defenses < 1+h.Infected/3:
		return colony.Defense, fmt.Sprintf("%d infected nodes against %d defenses", h.Infected, h.Defenses)
	case obs.Colony.NutrientsFull:
		return colony.Storage, "nutrient pool at capacity"
	case h.Extractors < 2:
		return colony.Extractor, "too little extraction"
	case h.Defenses == 0:
		return colony.Defense, "no defense before the first outbreak"
	case h.Storages == 0 && h.NutrientFill > 0.8:
		return colony.Storage, "pool nearly full"
	default:
		return colony.Extractor, "grow extraction"
	}
}

// Candidates returns the best placement for every affordable buildable type.
func Candidates(obs *Observation, g grid.Grid) []BuildOrder {
	var out []BuildOrder
	for _, t := range colony.BuildableTypes() {
		if !obs.Status.Status.Affordable[t.String()] {
			continue
		}
		if order, ok := placement(obs.Colony, g, t); ok {
			out = append(out, *order)
		}
	}
	return out
}

type scoredCell struct {
	cell  grid.Cell
	score int
}

// placement chooses a free cell orthogonally adjacent to a live node.
// Defense goes as close to the outbreak as possible; everything else stays
// near the nucleus and away from infection.
func placement(snap colony.Snapshot, g grid.Grid, t colony.NodeType) (*BuildOrder, bool) {
	occupied := make(map[grid.Cell]bool, len(snap.Nodes))
	for _, n := range snap.Nodes {
		occupied[g.Cell(n.X, n.Y)] = true
	}
	hazards := hazardCells(snap, g)
	nucleus := g.Cell(g.Center())

	seen := make(map[grid.Cell]bool)
	var scored []scoredCell
	for _, n := range snap.Nodes {
		if n.Terminal {
			continue
		}
		for _, c := range g.Cell(n.X, n.Y).Neighbors() {
			if seen[c] || occupied[c] || !g.CellInBounds(c) {
				continue
			}
			seen[c] = true
			scored = append(scored, scoredCell{cell: c, score: score(c, t, nucleus, hazards)})
		}
	}
	if len(scored) == 0 {
		return nil, false
	}

	slices.SortFunc(scored, func(a, b scoredCell) int {
		if a.score != b.score {
			return a.score - b.score
		}
		if a.cell.Row != b.cell.Row {
			return a.cell.Row - b.cell.Row
		}
		return a.cell.Col - b.cell.Col
	})

	x, y := g.FromCell(scored[0].cell)
	return &BuildOrder{X: x, Y: y, Type: t.String()}, true
}

func score(c grid.Cell, t colony.NodeType, nucleus grid.Cell, hazards []grid.Cell) int {
	nearestHazard := -1
	for _, h := range hazards {
		if d := grid.Distance(c, h); nearestHazard < 0 || d < nearestHazard {
			nearestHazard = d
		}
	}

	if t == colony.Defense && nearestHazard >= 0 {
		return nearestHazard
	}
	s := grid.Distance(c, nucleus)
	if nearestHazard >= 0 && nearestHazard <= 1 {
		s += hazardPenalty
	}
	return s
}

// Decide asks the advisor to choose among the heuristic candidates. Without
// an advisor, or when its answer is unusable, it falls back to Plan.
func Decide(advisor Advisor, obs *Observation, h *Health, g grid.Grid, mem *CycleMemory) *Decision {
	plan := Plan(obs, h, g)
	if advisor == nil || obs.Colony.GameOver {
		return plan
	}

	candidates := Candidates(obs, g)
	if len(candidates) == 0 {
		return plan
	}

	resp, err := advisor.AdviseBuild(formatObservation(obs, h, candidates, plan, mem))
	if err != nil {
		slog.Warn("advisor call failed, using heuristic plan", "error", err)
		return plan
	}

	d, err := parseDecision(resp, candidates)
	if err != nil {
		slog.Warn("advisor answer rejected, using heuristic plan", "error", err)
		return plan
	}
	return d
}

func parseDecision(resp string, candidates []BuildOrder) (*Decision, error) {
	// Strip markdown fences if the model wraps them anyway.
	resp = strings.TrimSpace(resp)
	resp = strings.TrimPrefix(resp, "```json")
	resp = strings.TrimPrefix(resp, "```")
	resp = strings.TrimSuffix(resp, "```")
	resp = strings.TrimSpace(resp)

	var d Decision
	if err := json.Unmarshal([]byte(resp), &d); err != nil {
		return nil, fmt.Errorf("parse decision (raw: %s): %w", resp, err)
	}

	switch d.Action {
	case ActionNone:
		d.Build = nil
		return &d, nil
	case ActionBuild:
		if d.Build == nil {
			return nil, fmt.Errorf("action %q requires a build", d.Action)
		}
		d.Build.Type = strings.ToLower(d.Build.Type)
		if !slices.Contains(candidates, *d.Build) {
			return nil, fmt.Errorf("build %+v is not a candidate", *d.Build)
		}
		return &d, nil
	default:
		return nil, fmt.Errorf("unknown action %q", d.Action)
	}
}

func formatObservation(obs *Observation, h *Health, candidates []BuildOrder, plan *Decision, mem *CycleMemory) string {
	var b strings.Builder
	s := obs.Status.Status

	fmt.Fprintf(&b, "## Colony (%s)\n", s.Clock)
	fmt.Fprintf(&b, "Nutrients: %.0f/%.0f | Defense: %.0f/%.0f | Nucleus: %.0f%%\n",
		s.Nutrients, s.NutrientCapacity, s.Defense, s.DefenseCapacity, s.NucleusHealthPct)
	fmt.Fprintf(&b, "Extractors: %d | Storage: %d | Defense: %d\n", h.Extractors, h.Storages, h.Defenses)
	fmt.Fprintf(&b, "Infected: %d | Transformed: %d | Threat: %s\n\n", h.Infected, h.Terminal, h.Threat)

	b.WriteString("## Candidates\n")
	for _, c := range candidates {
		fmt.Fprintf(&b, "- %s at (%d, %d)\n", c.Type, c.X, c.Y)
	}
	fmt.Fprintf(&b, "\nHeuristic suggestion: %s (%s)\n", plan.Action, plan.Rationale)

	if mem != nil {
		if recent := mem.Format(); recent != "" {
			b.WriteString("\n")
			b.WriteString(recent)
		}
	}
	return b.String()
}
