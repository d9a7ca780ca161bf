package colony

import (
	"errors"
	"fmt"
	"math"
)

// Params is the flat set of tuning constants injected at construction.
type Params struct {
	NucleusX int `json:"nucleus_x"`
	NucleusY int `json:"nucleus_y"`

	StartingNutrients float64 `json:"starting_nutrients"`
	StartingDefense   float64 `json:"starting_defense"`
	DefenseCapacity   float64 `json:"defense_capacity"`

	SpreadProbability float64 `json:"spread_probability"` // per infected node per cycle
	DamagePerCycle    float64 `json:"damage_per_cycle"`
	ContainmentCost   float64 `json:"containment_cost"` // defense spent per containment
	ContainmentStep   float64 `json:"containment_step"` // infection removed per containment
	InitialInfection  float64 `json:"initial_infection"`

	GraceCycles uint64 `json:"grace_cycles"` // cycles before the first infection is seeded
}

// DefaultParams returns the balance the game ships with.
func DefaultParams() Params {
	return Params{
		NucleusX:          405,
		NucleusY:          315,
		StartingNutrients: 450,
		StartingDefense:   0,
		DefenseCapacity:   200,
		SpreadProbability: 0.004,
		DamagePerCycle:    6,
		ContainmentCost:   2,
		ContainmentStep:   0.1,
		InitialInfection:  0.1,
		GraceCycles:       45,
	}
}

// Validate rejects parameter sets that would break the colony invariants.
func (p Params) Validate() error {
	var errs []error
	for _, f := range []struct {
		name string
		v    float64
	}{
		{"starting nutrients", p.StartingNutrients},
		{"starting defense", p.StartingDefense},
		{"defense capacity", p.DefenseCapacity},
		{"spread probability", p.SpreadProbability},
		{"damage per cycle", p.DamagePerCycle},
		{"containment cost", p.ContainmentCost},
		{"containment step", p.ContainmentStep},
		{"initial infection", p.InitialInfection},
	} {
		if math.IsNaN(f.v) || math.IsInf(f.v, 0) {
			errs = append(errs, fmt.Errorf("%s %v is not finite", f.name, f.v))
		}
	}
	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	if p.StartingNutrients < 0 {
		errs = append(errs, fmt.Errorf("starting nutrients %v < 0", p.StartingNutrients))
	}
	if p.StartingDefense < 0 || p.StartingDefense > p.DefenseCapacity {
		errs = append(errs, fmt.Errorf("starting defense %v outside [0, %v]", p.StartingDefense, p.DefenseCapacity))
	}
	if p.SpreadProbability < 0 || p.SpreadProbability > 1 {
		errs = append(errs, fmt.Errorf("spread probability %v outside [0, 1]", p.SpreadProbability))
	}
	if p.DamagePerCycle < 0 {
		errs = append(errs, fmt.Errorf("damage per cycle %v < 0", p.DamagePerCycle))
	}
	if p.ContainmentCost < 0 {
		errs = append(errs, fmt.Errorf("containment cost %v < 0", p.ContainmentCost))
	}
	if p.ContainmentStep < 0 || p.ContainmentStep > 1 {
		errs = append(errs, fmt.Errorf("containment step %v outside [0, 1]", p.ContainmentStep))
	}
	if p.InitialInfection <= 0 || p.InitialInfection > 1 {
		errs = append(errs, fmt.Errorf("initial infection %v outside (0, 1]", p.InitialInfection))
	}
	return errors.Join(errs...)
}

// Combat carries the per-cycle arguments of AdvanceInfection.
type Combat struct {
	Spread          float64
	Damage          float64
	ContainmentCost float64
	Elapsed         uint64 // cycles since the run started
}

// Combat returns the configured combat arguments for the given cycle.
func (p Params) Combat(elapsed uint64) Combat {
	return Combat{
		Spread:          p.SpreadProbability,
		Damage:          p.DamagePerCycle,
		ContainmentCost: p.ContainmentCost,
		Elapsed:         elapsed,
	}
}
