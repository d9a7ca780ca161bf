package colony

import "testing"

func TestEconomyClampsStartingGrant(t *testing.T) {
	c := newTestColony(t)

	rep := c.AdvanceEconomy()
	if got := c.Nutrients(); got != 100 {
		t.Fatalf("nutrients = %v, want 100", got)
	}
	if rep.Overflow != 350 {
		t.Errorf("overflow = %v, want 350", rep.Overflow)
	}

	c.AdvanceEconomy()
	if got := c.Nutrients(); got != 100 {
		t.Errorf("nutrients after second cycle = %v, want 100", got)
	}
}

func TestEconomyAccumulatesExtraction(t *testing.T) {
	c := newTestColony(t, func(p *Params) { p.StartingNutrients = 150 })
	mustBuild(t, c, 435, 315, Extractor)
	mustBuild(t, c, 375, 315, Extractor)

	for i, want := range []float64{10, 20, 30} {
		rep := c.AdvanceEconomy()
		if rep.Extracted != 10 {
			t.Errorf("cycle %d extracted = %v, want 10", i, rep.Extracted)
		}
		if got := c.Nutrients(); got != want {
			t.Errorf("cycle %d nutrients = %v, want %v", i, got, want)
		}
	}
}

func TestEconomyClampsDefense(t *testing.T) {
	c := newTestColony(t, func(p *Params) { p.DefenseCapacity = 12 })
	mustBuild(t, c, 435, 315, Defense)

	for i, want := range []float64{5, 10, 12, 12} {
		c.AdvanceEconomy()
		if got := c.Defense(); got != want {
			t.Errorf("cycle %d defense = %v, want %v", i, got, want)
		}
	}
}

func TestTerminalNodesDoNotProduce(t *testing.T) {
	c := newTestColony(t, func(p *Params) { p.StartingNutrients = 75 })
	e := mustBuild(t, c, 435, 315, Extractor)

	if _, ok := c.MaybeSeedInfection(calm); !ok {
		t.Fatal("seeding failed")
	}
	c.AdvanceInfection(calm, Combat{Damage: 1000, ContainmentCost: 2})
	if !c.Node(e).Terminal() {
		t.Fatal("extractor should be terminal")
	}

	if kind, rate := c.Node(e).Output(); kind != ResourceNutrient || rate != 0 {
		t.Errorf("Output() = %s, %v; want nutrient, 0", kind, rate)
	}
	rep := c.AdvanceEconomy()
	if rep.Extracted != 0 || c.Nutrients() != 0 {
		t.Errorf("extracted = %v, nutrients = %v; want 0, 0", rep.Extracted, c.Nutrients())
	}
}

func TestEconomyReportsNutrientFlows(t *testing.T) {
	var flows []Flow
	c, err := New(DefaultParams(), WithFlowSink(FlowSinkFunc(func(f Flow) { flows = append(flows, f) })))
	if err != nil {
		t.Fatal(err)
	}
	e1 := mustBuild(t, c, 435, 315, Extractor)
	e2 := mustBuild(t, c, 465, 315, Extractor)
	mustBuild(t, c, 375, 315, Storage)

	c.AdvanceEconomy()

	if len(flows) != 2 {
		t.Fatalf("flows = %d, want 2", len(flows))
	}
	want := map[NodeID][]NodeID{
		e1: {e1, c.Nucleus()},
		e2: {e2, e1, c.Nucleus()},
	}
	for _, f := range flows {
		if f.Kind != ResourceNutrient {
			t.Errorf("flow kind = %s", f.Kind)
		}
		exp := want[f.Origin]
		if len(f.Path) != len(exp) {
			t.Fatalf("flow from %d path = %v, want %v", f.Origin, f.Path, exp)
		}
		for i := range exp {
			if f.Path[i] != exp[i] {
				t.Errorf("flow from %d path = %v, want %v", f.Origin, f.Path, exp)
				break
			}
		}
	}
}

func TestEconomyIsNoOpAfterDefeat(t *testing.T) {
	c := newTestColony(t)
	mustBuild(t, c, 435, 315, Extractor)
	c.gameOver = true

	before := c.Nutrients()
	if rep := c.AdvanceEconomy(); rep != (EconomyReport{}) {
		t.Errorf("report = %+v, want zero", rep)
	}
	if c.Nutrients() != before {
		t.Errorf("nutrients changed after defeat: %v -> %v", before, c.Nutrients())
	}
}
