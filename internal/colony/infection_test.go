package colony

import (
	"math"
	"reflect"
	"testing"
)

// always spreads by chance.
var contagious = fixedRand{f: 0, n: 0}

func TestExtractorTransformsWithoutDefeat(t *testing.T) {
	c := newTestColony(t)
	e := mustBuild(t, c, 435, 315, Extractor)

	seeded, ok := c.MaybeSeedInfection(calm)
	if !ok || seeded != e {
		t.Fatalf("seed = %d, %v; want %d", seeded, ok, e)
	}
	if got := c.Node(e).InfectionLevel(); got != 0.1 {
		t.Fatalf("seeded infection = %v, want 0.1", got)
	}

	k := Combat{Spread: 0.004, Damage: 6, ContainmentCost: 2}
	cycles := int(math.Ceil(Extractor.BaseHealth() / k.Damage))
	for i := 1; i < cycles; i++ {
		c.AdvanceInfection(calm, k)
		if c.Node(e).Terminal() {
			t.Fatalf("extractor terminal early at cycle %d", i)
		}
	}
	if got := c.Node(e).Health(); got != 6 {
		t.Fatalf("health before last cycle = %v, want 6", got)
	}

	rep := c.AdvanceInfection(calm, k)
	n := c.Node(e)
	if !n.Terminal() || n.Health() != 0 || n.InfectionLevel() != 1 || n.ProductionRate() != 0 {
		t.Fatalf("extractor after %d cycles: terminal=%v health=%v infection=%v rate=%v",
			cycles, n.Terminal(), n.Health(), n.InfectionLevel(), n.ProductionRate())
	}
	if len(rep.Transformed) != 1 || rep.Transformed[0] != e {
		t.Errorf("transformed = %v, want [%d]", rep.Transformed, e)
	}
	if c.IsGameOver() || rep.Defeat {
		t.Error("extractor transformation must not end the game")
	}

	// A terminal node spreads unconditionally in the cycle it transforms.
	if got := c.NucleusNode().InfectionLevel(); got != 0.1 {
		t.Errorf("nucleus infection = %v, want 0.1", got)
	}
	if got := c.Infected(); len(got) != 2 {
		t.Errorf("infected = %v, want extractor and nucleus", got)
	}
}

func TestNucleusTransformationEndsGame(t *testing.T) {
	c := newTestColony(t)
	mustBuild(t, c, 435, 315, Extractor)
	mustBuild(t, c, 375, 315, Defense)
	c.MaybeSeedInfection(calm)

	k := Combat{Spread: 0.004, Damage: 200, ContainmentCost: 2}

	rep := c.AdvanceInfection(calm, k)
	if rep.Defeat || c.IsGameOver() {
		t.Fatal("game over after the extractor fell")
	}

	rep = c.AdvanceInfection(calm, k)
	if !c.NucleusNode().Terminal() {
		t.Fatal("nucleus should be terminal")
	}
	if !rep.Defeat || !c.IsGameOver() {
		t.Fatal("game over must be set in the cycle the nucleus transforms")
	}

	before := c.Snapshot()
	infected := c.Infected()
	for i := 0; i < 3; i++ {
		if rep := c.AdvanceInfection(contagious, k); !reflect.DeepEqual(rep, InfectionReport{}) {
			t.Errorf("report after defeat = %+v", rep)
		}
		if _, ok := c.MaybeSeedInfection(contagious); ok {
			t.Error("seeded after defeat")
		}
	}
	if after := c.Snapshot(); !reflect.DeepEqual(before, after) {
		t.Errorf("state changed after defeat:\nbefore %+v\nafter  %+v", before, after)
	}
	if !reflect.DeepEqual(infected, c.Infected()) {
		t.Error("infected list changed after defeat")
	}
}

func TestContainmentClearsInfection(t *testing.T) {
	var flows []Flow
	c := newTestColony(t, func(p *Params) { p.StartingDefense = 10 })
	c.SetFlowSink(FlowSinkFunc(func(f Flow) { flows = append(flows, f) }))
	e := mustBuild(t, c, 435, 315, Extractor)
	c.MaybeSeedInfection(calm)

	rep := c.AdvanceInfection(calm, c.Params().Combat(1))

	if rep.Containments != 1 || rep.DefenseSpent != 2 {
		t.Errorf("containments = %d, spent = %v", rep.Containments, rep.DefenseSpent)
	}
	if got := c.Defense(); got != 8 {
		t.Errorf("defense = %v, want 8", got)
	}
	if got := c.Node(e).InfectionLevel(); got != 0 {
		t.Errorf("infection = %v, want 0", got)
	}
	if len(c.Infected()) != 0 || len(rep.Contained) != 1 {
		t.Errorf("infected = %v, contained = %v", c.Infected(), rep.Contained)
	}
	if got := c.Node(e).Health(); got != 144 {
		t.Errorf("health = %v, want 144 (damage still applies)", got)
	}

	// No defense node exists, so the flow starts at the nucleus.
	if len(flows) != 1 {
		t.Fatalf("flows = %d, want 1", len(flows))
	}
	f := flows[0]
	if f.Kind != ResourceDefense || f.Origin != c.Nucleus() || !reflect.DeepEqual(f.Path, []NodeID{c.Nucleus(), e}) {
		t.Errorf("flow = %+v", f)
	}
}

func TestContainmentFlowStartsAtNearestDefense(t *testing.T) {
	var flows []Flow
	c := newTestColony(t, func(p *Params) {
		p.StartingDefense = 10
		p.StartingNutrients = 1000
	})
	c.SetFlowSink(FlowSinkFunc(func(f Flow) { flows = append(flows, f) }))
	e := mustBuild(t, c, 435, 315, Extractor)
	d := mustBuild(t, c, 375, 315, Defense)
	c.MaybeSeedInfection(calm) // first candidate is the extractor

	c.AdvanceInfection(calm, c.Params().Combat(1))

	if len(flows) != 1 {
		t.Fatalf("flows = %d, want 1", len(flows))
	}
	want := []NodeID{d, c.Nucleus(), e}
	if flows[0].Origin != d || !reflect.DeepEqual(flows[0].Path, want) {
		t.Errorf("flow = %+v, want origin %d path %v", flows[0], d, want)
	}
}

func TestContainmentNeverGoesNegative(t *testing.T) {
	c := newTestColony(t, func(p *Params) {
		p.StartingDefense = 10
		p.ContainmentStep = 0.5
	})
	e := mustBuild(t, c, 435, 315, Extractor)
	c.MaybeSeedInfection(calm)

	c.AdvanceInfection(calm, c.Params().Combat(1))
	if got := c.Node(e).InfectionLevel(); got != 0 {
		t.Errorf("infection = %v, want 0", got)
	}
}

func TestPropagationProbability(t *testing.T) {
	tests := []struct {
		name      string
		rng       fixedRand
		wantCount int
	}{
		{"draw below spread infects neighbors", contagious, 2},
		{"draw above spread stays put", calm, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestColony(t)
			mustBuild(t, c, 435, 315, Extractor)
			c.MaybeSeedInfection(tt.rng)

			rep := c.AdvanceInfection(tt.rng, Combat{Spread: 0.5, Damage: 1, ContainmentCost: 2})
			if got := len(c.Infected()); got != tt.wantCount {
				t.Errorf("infected = %d, want %d", got, tt.wantCount)
			}
			if got := len(rep.NewlyInfected); got != tt.wantCount-1 {
				t.Errorf("newly infected = %d, want %d", got, tt.wantCount-1)
			}
		})
	}
}

func TestPropagationSkipsTrackedNeighbors(t *testing.T) {
	c := newTestColony(t, func(p *Params) { p.StartingNutrients = 1000 })
	mustBuild(t, c, 435, 315, Extractor)
	mustBuild(t, c, 375, 315, Extractor)
	c.MaybeSeedInfection(contagious)

	k := Combat{Spread: 1, Damage: 1, ContainmentCost: 2}
	c.AdvanceInfection(contagious, k) // extractor -> nucleus
	c.AdvanceInfection(contagious, k) // nucleus -> second extractor

	infected := c.Infected()
	if len(infected) != 3 {
		t.Fatalf("infected = %v, want all three nodes", infected)
	}
	seen := map[NodeID]bool{}
	for _, id := range infected {
		if seen[id] {
			t.Errorf("node %d tracked twice", id)
		}
		seen[id] = true
		if got := c.Node(id).InfectionLevel(); got != 0.1 {
			t.Errorf("node %d infection = %v, want 0.1", id, got)
		}
	}
}

func TestSeeding(t *testing.T) {
	c := newTestColony(t)
	if id, ok := c.MaybeSeedInfection(calm); ok {
		t.Fatalf("seeded nucleus-only colony at %d", id)
	}

	mustBuild(t, c, 435, 315, Extractor)
	e2 := mustBuild(t, c, 375, 315, Extractor)
	id, ok := c.MaybeSeedInfection(fixedRand{n: 1})
	if !ok || id != e2 {
		t.Fatalf("seed = %d, %v; want %d", id, ok, e2)
	}
	if _, ok := c.MaybeSeedInfection(calm); ok {
		t.Error("seeded while an infection is active")
	}
	if c.NucleusNode().InfectionLevel() != 0 {
		t.Error("nucleus must never be the seed")
	}
}
