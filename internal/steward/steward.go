package steward

import (
	"log/slog"

	"github.com/talgya/fungal-nexus/internal/grid"
)

// Steward ties one observe, decide and act pass together.
type Steward struct {
	Observer *Observer
	Actor    *Actor
	Advisor  Advisor // optional
	Memory   *CycleMemory
	Grid     grid.Grid
}

// New creates a steward for the API at baseURL.
func New(baseURL string, advisor Advisor, mem *CycleMemory) *Steward {
	if mem == nil {
		mem = LoadMemory("")
	}
	return &Steward{
		Observer: NewObserver(baseURL),
		Actor:    NewActor(baseURL),
		Advisor:  advisor,
		Memory:   mem,
		Grid:     grid.New(),
	}
}

// RunCycle executes one observe -> decide -> act cycle and records it.
// gameOver reports whether the colony has already fallen.
func (s *Steward) RunCycle() (rec CycleRecord, gameOver bool) {
	obs, err := s.Observer.Observe()
	if err != nil {
		slog.Error("observation failed", "error", err)
		return CycleRecord{Action: ActionNone, Error: err.Error()}, false
	}

	h := Triage(obs)
	st := obs.Status.Status
	rec = CycleRecord{
		Cycle:     st.Cycle,
		Nutrients: st.Nutrients,
		Threat:    h.Threat,
	}
	slog.Debug("observation complete",
		"cycle", st.Cycle,
		"nutrients", int(st.Nutrients),
		"defense", int(st.Defense),
		"infected", h.Infected,
		"threat", h.Threat,
	)

	d := Decide(s.Advisor, obs, h, s.Grid, s.Memory)
	rec.Action = d.Action
	rec.Rationale = d.Rationale

	if d.Action == ActionBuild && d.Build != nil {
		rec.Type, rec.X, rec.Y = d.Build.Type, d.Build.X, d.Build.Y
		queued, err := s.Actor.Act(d.Build)
		if err != nil {
			slog.Warn("build failed", "type", d.Build.Type, "x", d.Build.X, "y", d.Build.Y, "error", err)
			rec.Error = err.Error()
		} else {
			slog.Info("build queued",
				"id", queued.ID,
				"type", queued.Kind,
				"x", queued.X,
				"y", queued.Y,
				"rationale", d.Rationale,
			)
		}
	} else {
		slog.Debug("no build this cycle", "rationale", d.Rationale)
	}

	s.Memory.Record(rec)
	s.Memory.Save()
	return rec, obs.Colony.GameOver
}
