// Simulation ties the colony to the outside world: it owns the random
// source, queues build requests, runs each cycle and records what happened.
package engine

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/talgya/fungal-nexus/internal/colony"
	"github.com/talgya/fungal-nexus/internal/grid"
)

// Request outcomes rejected before anything is queued.
var (
	ErrOutOfBounds = errors.New("position outside the board")
	ErrQueueFull   = errors.New("build queue full")
	ErrGameOver    = errors.New("colony has fallen")
)

// Event categories.
const (
	CategoryBuild       = "build"
	CategoryBuildFailed = "build_failed"
	CategoryInfection   = "infection"
	CategoryTransform   = "transform"
	CategoryDefeat      = "defeat"
	CategoryFlow        = "flow" // streamed only, never stored
)

// Event is a notable occurrence in the colony.
type Event struct {
	Cycle       uint64         `json:"cycle"`
	Description string         `json:"description"`
	Category    string         `json:"category"`
	Meta        map[string]any `json:"meta,omitempty"`
}

// Stats tracks run totals.
type Stats struct {
	Builds          int     `json:"builds"`
	FailedBuilds    int     `json:"failed_builds"`
	Outbreaks       int     `json:"outbreaks"`
	Infections      int     `json:"infections"`
	Transformations int     `json:"transformations"`
	Containments    int     `json:"containments"`
	DefenseSpent    float64 `json:"defense_spent"`
	Extracted       float64 `json:"extracted"`
	Overflow        float64 `json:"overflow"`
	SurvivedCycles  uint64  `json:"survived_cycles"`
}

// Status is the headline state shown by every presentation layer.
type Status struct {
	Cycle            uint64  `json:"cycle"`
	Clock            string  `json:"clock"`
	Nutrients        float64 `json:"nutrients"`
	NutrientCapacity float64 `json:"nutrient_capacity"`
	NutrientsFull    bool    `json:"nutrients_full"`
	Defense          float64 `json:"defense"`
	DefenseCapacity  float64 `json:"defense_capacity"`
	NucleusHealthPct float64 `json:"nucleus_health_pct"`
	Nodes            int     `json:"nodes"`
	Infected         int     `json:"infected"`
	Terminal         int     `json:"terminal"`
	QueuedBuilds     int     `json:"queued_builds"`
	GameOver         bool    `json:"game_over"`
	Stats            Stats   `json:"stats"`

	// Buildable types the pool covers, read with the numbers above.
	Affordable map[string]bool `json:"affordable"`
}

// BuildRequest is a construction order waiting for the next cycle.
type BuildRequest struct {
	ID   string          `json:"id"`
	X    int             `json:"x"`
	Y    int             `json:"y"`
	Type colony.NodeType `json:"-"`
	Kind string          `json:"type"`
}

// Config sizes the Simulation's buffers.
type Config struct {
	MaxEvents  int // recent events kept in memory
	MaxPending int // events held for the journal
	MaxQueue   int // build requests accepted per cycle
}

// DefaultConfig returns the buffer sizes used by cmd/nexus.
func DefaultConfig() Config {
	return Config{MaxEvents: 500, MaxPending: 4096, MaxQueue: 64}
}

// Simulation serializes every access to the colony behind one mutex.
type Simulation struct {
	mu     sync.Mutex
	cfg    Config
	colony *colony.Colony
	rng    colony.Rand
	grid   grid.Grid

	queue     []BuildRequest
	events    []Event
	pending   []Event
	stats     Stats
	lastCycle uint64

	subMu   sync.Mutex
	subs    map[int]chan Event
	nextSub int
}

// NewSimulation wraps a colony. The colony's flow sink is taken over so
// flows reach stream subscribers.
func NewSimulation(c *colony.Colony, rng colony.Rand, g grid.Grid, cfg Config) *Simulation {
	s := &Simulation{
		cfg:    cfg,
		colony: c,
		rng:    rng,
		grid:   g,
		subs:   make(map[int]chan Event),
	}
	c.SetFlowSink(colony.FlowSinkFunc(s.reportFlow))
	return s
}

// Grid returns the board the simulation places nodes on.
func (s *Simulation) Grid() grid.Grid { return s.grid }

// CurrentCycle returns the most recently processed cycle.
func (s *Simulation) CurrentCycle() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastCycle
}

// IsGameOver reports whether the nucleus has fallen.
func (s *Simulation) IsGameOver() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.colony.IsGameOver()
}

// RequestBuild snaps (x, y) to the grid and queues a build for the next
// cycle. Affordability is checked when the request is applied.
func (s *Simulation) RequestBuild(x, y int, t colony.NodeType) (BuildRequest, error) {
	if !t.Valid() || t == colony.Nucleus {
		return BuildRequest{}, colony.ErrNotBuildable
	}
	if !s.grid.CellInBounds(s.grid.Cell(x, y)) {
		return BuildRequest{}, ErrOutOfBounds
	}
	sx, sy := s.grid.Snap(x, y)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.colony.IsGameOver() {
		return BuildRequest{}, ErrGameOver
	}
	if len(s.queue) >= s.cfg.MaxQueue {
		return BuildRequest{}, ErrQueueFull
	}

	req := BuildRequest{ID: uuid.NewString(), X: sx, Y: sy, Type: t, Kind: t.String()}
	s.queue = append(s.queue, req)
	return req, nil
}

// Build snaps (x, y) and builds immediately.
func (s *Simulation) Build(x, y int, t colony.NodeType) (colony.NodeID, error) {
	if !s.grid.CellInBounds(s.grid.Cell(x, y)) {
		return -1, ErrOutOfBounds
	}
	sx, sy := s.grid.Snap(x, y)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.colony.IsGameOver() {
		return -1, ErrGameOver
	}
	return s.applyBuild(BuildRequest{ID: uuid.NewString(), X: sx, Y: sy, Type: t, Kind: t.String()})
}

// CanAfford reports whether the pool covers the cost of t right now.
func (s *Simulation) CanAfford(t colony.NodeType) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.colony.CanAfford(t)
}

// Step runs one cycle: queued builds, economy, outbreak seeding after the
// grace period, then infection.
func (s *Simulation) Step(cycle uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.lastCycle = cycle
	if s.colony.IsGameOver() {
		s.queue = s.queue[:0]
		return
	}

	for _, req := range s.queue {
		s.applyBuild(req)
	}
	s.queue = s.queue[:0]

	eco := s.colony.AdvanceEconomy()
	s.stats.Extracted += eco.Extracted
	s.stats.Overflow += eco.Overflow

	var elapsed uint64 // cycles completed before this one
	if cycle > 0 {
		elapsed = cycle - 1
	}
	p := s.colony.Params()
	if elapsed >= p.GraceCycles {
		if id, ok := s.colony.MaybeSeedInfection(s.rng); ok {
			s.stats.Outbreaks++
			s.stats.Infections++
			n := s.colony.Node(id)
			s.emit(Event{
				Cycle:       cycle,
				Description: fmt.Sprintf("An outbreak takes hold in the %s at (%d, %d)", n.Type(), n.X(), n.Y()),
				Category:    CategoryInfection,
				Meta:        map[string]any{"x": n.X(), "y": n.Y(), "type": n.Type().String(), "seed": true},
			})
			slog.Info("outbreak", "cycle", cycle, "type", n.Type().String(), "x", n.X(), "y", n.Y())
		}
	}

	rep := s.colony.AdvanceInfection(s.rng, p.Combat(elapsed))
	s.stats.Containments += rep.Containments
	s.stats.DefenseSpent += rep.DefenseSpent

	for _, id := range rep.NewlyInfected {
		s.stats.Infections++
		n := s.colony.Node(id)
		s.emit(Event{
			Cycle:       cycle,
			Description: fmt.Sprintf("Infection spreads to the %s at (%d, %d)", n.Type(), n.X(), n.Y()),
			Category:    CategoryInfection,
			Meta:        map[string]any{"x": n.X(), "y": n.Y(), "type": n.Type().String()},
		})
	}
	for _, id := range rep.Transformed {
		s.stats.Transformations++
		n := s.colony.Node(id)
		s.emit(Event{
			Cycle:       cycle,
			Description: fmt.Sprintf("The %s at (%d, %d) is lost to the bacteria", n.Type(), n.X(), n.Y()),
			Category:    CategoryTransform,
			Meta:        map[string]any{"x": n.X(), "y": n.Y(), "type": n.Type().String()},
		})
	}

	s.stats.SurvivedCycles = cycle
	if rep.Defeat {
		s.emit(Event{
			Cycle:       cycle,
			Description: fmt.Sprintf("The nucleus has fallen after %s", Clock(cycle)),
			Category:    CategoryDefeat,
			Meta:        map[string]any{"clock": Clock(cycle)},
		})
		slog.Warn("nucleus transformed, game over", "cycle", cycle, "clock", Clock(cycle))
	}
}

// applyBuild runs one build against the colony. Callers hold mu.
func (s *Simulation) applyBuild(req BuildRequest) (colony.NodeID, error) {
	id, err := s.colony.Build(req.X, req.Y, req.Type)
	if err != nil {
		s.stats.FailedBuilds++
		s.emit(Event{
			Cycle:       s.lastCycle,
			Description: fmt.Sprintf("Could not grow a %s at (%d, %d): %v", req.Kind, req.X, req.Y, err),
			Category:    CategoryBuildFailed,
			Meta:        map[string]any{"request_id": req.ID, "x": req.X, "y": req.Y, "type": req.Kind, "reason": err.Error()},
		})
		return -1, fmt.Errorf("build %s at (%d, %d): %w", req.Kind, req.X, req.Y, err)
	}

	s.stats.Builds++
	s.emit(Event{
		Cycle:       s.lastCycle,
		Description: fmt.Sprintf("A new %s grows at (%d, %d)", req.Kind, req.X, req.Y),
		Category:    CategoryBuild,
		Meta:        map[string]any{"request_id": req.ID, "x": req.X, "y": req.Y, "type": req.Kind},
	})
	return id, nil
}

// emit stores an event and streams it. Callers hold mu.
func (s *Simulation) emit(e Event) {
	s.events = append(s.events, e)
	if over := len(s.events) - s.cfg.MaxEvents; over > 0 {
		s.events = append(s.events[:0], s.events[over:]...)
	}
	s.pending = append(s.pending, e)
	if over := len(s.pending) - s.cfg.MaxPending; over > 0 {
		s.pending = append(s.pending[:0], s.pending[over:]...)
	}
	s.publish(e)
}

// reportFlow turns a colony flow into a streamed event. It runs inside
// Step, with mu held.
func (s *Simulation) reportFlow(f colony.Flow) {
	path := make([]colony.Point, 0, len(f.Path))
	for _, id := range f.Path {
		path = append(path, s.colony.Node(id).Pos())
	}
	s.publish(Event{
		Cycle:       s.lastCycle,
		Description: fmt.Sprintf("%s flow over %d hyphae", f.Kind, len(path)-1),
		Category:    CategoryFlow,
		Meta:        map[string]any{"kind": f.Kind.String(), "path": path},
	})
}

// Snapshot copies the whole colony.
func (s *Simulation) Snapshot() colony.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.colony.Snapshot()
}

// Status returns the headline numbers.
func (s *Simulation) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := s.colony.Snapshot()
	affordable := make(map[string]bool)
	for _, t := range colony.BuildableTypes() {
		affordable[t.String()] = s.colony.CanAfford(t)
	}
	return Status{
		Cycle:            s.lastCycle,
		Clock:            Clock(s.lastCycle),
		Nutrients:        snap.Nutrients,
		NutrientCapacity: snap.NutrientCapacity,
		NutrientsFull:    snap.NutrientsFull,
		Defense:          snap.Defense,
		DefenseCapacity:  snap.DefenseCapacity,
		NucleusHealthPct: snap.NucleusHealthPct,
		Nodes:            len(snap.Nodes),
		Infected:         snap.Infected,
		Terminal:         snap.Terminal,
		QueuedBuilds:     len(s.queue),
		GameOver:         snap.GameOver,
		Stats:            s.stats,
		Affordable:       affordable,
	}
}

// Infected returns a view of every tracked infected node.
func (s *Simulation) Infected() []colony.NodeView {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := s.colony.Infected()
	out := make([]colony.NodeView, 0, len(ids))
	for _, id := range ids {
		v, _ := s.colony.View(id)
		out = append(out, v)
	}
	return out
}

// NodeAt returns the node on the cell containing (x, y).
func (s *Simulation) NodeAt(x, y int) (colony.NodeView, bool) {
	sx, sy := s.grid.Snap(x, y)

	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.colony.NodeAt(sx, sy)
	if !ok {
		return colony.NodeView{}, false
	}
	return s.colony.View(id)
}

// Route returns the positions on the shortest path from the node at (x, y)
// to the nucleus.
func (s *Simulation) Route(x, y int) ([]colony.Point, bool) {
	sx, sy := s.grid.Snap(x, y)

	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.colony.NodeAt(sx, sy)
	if !ok {
		return nil, false
	}
	ids, ok := s.colony.RouteToNucleus(id)
	if !ok {
		return nil, false
	}
	path := make([]colony.Point, len(ids))
	for i, nid := range ids {
		path[i] = s.colony.Node(nid).Pos()
	}
	return path, true
}

// Events returns up to limit of the most recent events, oldest first.
func (s *Simulation) Events(limit int) []Event {
	s.mu.Lock()
	defer s.mu.Unlock()

	start := 0
	if limit > 0 && len(s.events) > limit {
		start = len(s.events) - limit
	}
	out := make([]Event, len(s.events)-start)
	copy(out, s.events[start:])
	return out
}

// DrainJournal hands over every event recorded since the last call.
func (s *Simulation) DrainJournal() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.pending
	s.pending = nil
	return out
}

// Subscribe registers a live event stream. Slow subscribers miss events
// rather than stall the simulation.
func (s *Simulation) Subscribe(buffer int) (int, <-chan Event) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	id := s.nextSub
	s.nextSub++
	ch := make(chan Event, buffer)
	s.subs[id] = ch
	return id, ch
}

// Unsubscribe closes and removes a stream.
func (s *Simulation) Unsubscribe(id int) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	if ch, ok := s.subs[id]; ok {
		close(ch)
		delete(s.subs, id)
	}
}

func (s *Simulation) publish(e Event) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	for _, ch := range s.subs {
		select {
		case ch <- e:
		default:
		}
	}
}
