package colony

import (
	"math"
	"math/rand/v2"
	"testing"
)

// fixedRand returns the same draw every time.
type fixedRand struct {
	f float64
	n int
}

func (r fixedRand) Float64() float64 { return r.f }

func (r fixedRand) IntN(n int) int {
	if r.n >= n {
		return n - 1
	}
	return r.n
}

// never spreads by chance and seeds the first candidate.
var calm = fixedRand{f: 0.999, n: 0}

func newTestColony(t *testing.T, mutate ...func(*Params)) *Colony {
	t.Helper()
	p := DefaultParams()
	for _, m := range mutate {
		m(&p)
	}
	c, err := New(p)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c
}

func mustBuild(t *testing.T, c *Colony, x, y int, typ NodeType) NodeID {
	t.Helper()
	id, err := c.Build(x, y, typ)
	if err != nil {
		t.Fatalf("Build(%d, %d, %s): %v", x, y, typ, err)
	}
	return id
}

func TestNewColony(t *testing.T) {
	c := newTestColony(t)

	if c.Len() != 1 {
		t.Fatalf("node count = %d, want 1", c.Len())
	}
	n := c.NucleusNode()
	if n.Type() != Nucleus {
		t.Errorf("nucleus type = %s", n.Type())
	}
	if n.Health() != Nucleus.BaseHealth() {
		t.Errorf("nucleus health = %v, want %v", n.Health(), Nucleus.BaseHealth())
	}
	if got := c.Nutrients(); got != 450 {
		t.Errorf("nutrients = %v, want 450", got)
	}
	if got := c.NutrientCapacity(); got != 100 {
		t.Errorf("capacity = %v, want 100", got)
	}
	if c.Defense() != 0 || c.IsGameOver() {
		t.Errorf("defense = %v, gameOver = %v", c.Defense(), c.IsGameOver())
	}
	if id, ok := c.NodeAt(405, 315); !ok || id != c.Nucleus() {
		t.Errorf("NodeAt(nucleus) = %d, %v", id, ok)
	}
}

func TestNewRejectsInvalidParams(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Params)
	}{
		{"negative nutrients", func(p *Params) { p.StartingNutrients = -1 }},
		{"spread above one", func(p *Params) { p.SpreadProbability = 1.5 }},
		{"zero initial infection", func(p *Params) { p.InitialInfection = 0 }},
		{"defense above capacity", func(p *Params) { p.StartingDefense = p.DefenseCapacity + 1 }},
		{"NaN damage", func(p *Params) { p.DamagePerCycle = math.NaN() }},
		{"NaN spread", func(p *Params) { p.SpreadProbability = math.NaN() }},
		{"infinite containment cost", func(p *Params) { p.ContainmentCost = math.Inf(1) }},
		{"NaN containment step", func(p *Params) { p.ContainmentStep = math.NaN() }},
		{"infinite defense capacity", func(p *Params) { p.DefenseCapacity = math.Inf(1) }},
		{"NaN starting nutrients", func(p *Params) { p.StartingNutrients = math.NaN() }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := DefaultParams()
			tt.mutate(&p)
			if _, err := New(p); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestFindNearest(t *testing.T) {
	c := newTestColony(t)
	e := mustBuild(t, c, 465, 315, Extractor)

	tests := []struct {
		x, y int
		want NodeID
	}{
		{405, 315, c.Nucleus()},
		{460, 320, e},
		{435, 315, c.Nucleus()}, // equidistant: earliest registered wins
		{900, 900, e},
	}
	for _, tt := range tests {
		got, ok := c.FindNearest(tt.x, tt.y)
		if !ok || got != tt.want {
			t.Errorf("FindNearest(%d, %d) = %d, %v; want %d", tt.x, tt.y, got, ok, tt.want)
		}
	}
}

func TestNeighborsAreSymmetric(t *testing.T) {
	c := newTestColony(t, func(p *Params) { p.StartingNutrients = 2000 })
	coords := [][2]int{{435, 315}, {465, 315}, {405, 345}, {375, 285}, {465, 345}}
	for i, xy := range coords {
		mustBuild(t, c, xy[0], xy[1], BuildableTypes()[i%3])
	}
	assertSymmetric(t, c)
}

func assertSymmetric(t *testing.T, c *Colony) {
	t.Helper()
	for i := 0; i < c.Len(); i++ {
		a := NodeID(i)
		seen := map[NodeID]bool{}
		for _, b := range c.Node(a).Neighbors() {
			if seen[b] {
				t.Errorf("node %d lists neighbor %d twice", a, b)
			}
			seen[b] = true
			if !c.Linked(b, a) {
				t.Errorf("node %d -> %d is not mutual", a, b)
			}
		}
	}
}

func assertInvariants(t *testing.T, c *Colony) {
	t.Helper()
	for i := 0; i < c.Len(); i++ {
		n := c.Node(NodeID(i))
		if n.InfectionLevel() < 0 || n.InfectionLevel() > 1 {
			t.Fatalf("node %d infection %v out of range", i, n.InfectionLevel())
		}
		if n.Health() < 0 {
			t.Fatalf("node %d health %v < 0", i, n.Health())
		}
		if n.Terminal() && (n.Health() != 0 || n.InfectionLevel() != 1 || n.ProductionRate() != 0) {
			t.Fatalf("terminal node %d: health=%v infection=%v rate=%v",
				i, n.Health(), n.InfectionLevel(), n.ProductionRate())
		}
	}
	if c.Defense() > c.DefenseCapacity() {
		t.Fatalf("defense %v above capacity %v", c.Defense(), c.DefenseCapacity())
	}
	if c.NucleusNode().Terminal() != c.IsGameOver() {
		t.Fatalf("nucleus terminal = %v, gameOver = %v", c.NucleusNode().Terminal(), c.IsGameOver())
	}
}

// TestRandomizedRunKeepsInvariants drives a colony with random builds and
// full cycles and checks every invariant after each step.
func TestRandomizedRunKeepsInvariants(t *testing.T) {
	for seed := uint64(1); seed <= 5; seed++ {
		rng := rand.New(rand.NewPCG(seed, seed*7919))
		c := newTestColony(t, func(p *Params) {
			p.StartingDefense = 20
			p.SpreadProbability = 0.2
			p.GraceCycles = 5
		})

		for cycle := uint64(1); cycle <= 300 && !c.IsGameOver(); cycle++ {
			x := 405 + (rng.IntN(15)-7)*30
			y := 315 + (rng.IntN(15)-7)*30
			c.Build(x, y, BuildableTypes()[rng.IntN(3)])

			c.AdvanceEconomy()
			if c.Nutrients() > c.NutrientCapacity() {
				t.Fatalf("seed %d cycle %d: nutrients %v above capacity %v",
					seed, cycle, c.Nutrients(), c.NutrientCapacity())
			}
			if cycle >= c.Params().GraceCycles {
				c.MaybeSeedInfection(rng)
			}
			c.AdvanceInfection(rng, c.Params().Combat(cycle))

			assertInvariants(t, c)
		}
		assertSymmetric(t, c)
	}
}
