// Package engine provides the cycle-based simulation loop and the
// Simulation wrapper that serializes every access to the colony.
package engine

import (
	"fmt"
	"log/slog"
	"math"
	"sync/atomic"
	"time"
)

// CyclesPerReport is how often OnReport fires: once per simulated minute.
const CyclesPerReport = 60

// Engine drives the simulation forward one cycle per Interval.
type Engine struct {
	Interval time.Duration // Base cycle interval (default 1 second)

	// Callbacks, populated during setup.
	OnCycle  func(cycle uint64) // Every cycle
	OnReport func(cycle uint64) // Every CyclesPerReport cycles
	Done     func() bool        // Checked after every cycle; true stops the loop

	cycle   atomic.Uint64 // monotonic, never resets
	speed   atomic.Uint64 // float64 bits; 1.0 = real time, 0 = paused
	running atomic.Bool
}

// NewEngine creates an engine with default settings.
func NewEngine() *Engine {
	e := &Engine{Interval: time.Second}
	e.SetSpeed(1)
	return e
}

// Cycle returns the most recently started cycle.
func (e *Engine) Cycle() uint64 { return e.cycle.Load() }

// SetCycle sets the counter before Run.
func (e *Engine) SetCycle(c uint64) { e.cycle.Store(c) }

// Speed returns the current speed multiplier.
func (e *Engine) Speed() float64 { return math.Float64frombits(e.speed.Load()) }

// SetSpeed changes the speed multiplier. Negative values pause.
func (e *Engine) SetSpeed(s float64) {
	if s < 0 || math.IsNaN(s) {
		s = 0
	}
	e.speed.Store(math.Float64bits(s))
}

// Running reports whether Run is looping.
func (e *Engine) Running() bool { return e.running.Load() }

// Run starts the simulation loop. Blocks until Stop is called or Done
// reports true.
func (e *Engine) Run() {
	e.running.Store(true)
	slog.Info("simulation engine started", "cycle", e.Cycle(), "speed", e.Speed())

	for e.running.Load() {
		speed := e.Speed()
		if speed <= 0 {
			// Paused: sleep briefly and check again.
			time.Sleep(100 * time.Millisecond)
			continue
		}

		start := time.Now()

		e.Step()
		if e.Done != nil && e.Done() {
			e.running.Store(false)
			break
		}

		// Sleep for the remainder of the interval, adjusted for speed.
		elapsed := time.Since(start)
		target := time.Duration(float64(e.Interval) / speed)
		if elapsed < target {
			time.Sleep(target - elapsed)
		}
	}

	slog.Info("simulation engine stopped", "cycle", e.Cycle())
}

// Stop halts the loop after the current cycle.
func (e *Engine) Stop() {
	e.running.Store(false)
}

// Step advances the simulation by exactly one cycle.
func (e *Engine) Step() {
	cycle := e.cycle.Add(1)

	if e.OnCycle != nil {
		e.OnCycle(cycle)
	}

	if cycle%CyclesPerReport == 0 && e.OnReport != nil {
		e.OnReport(cycle)
	}
}

// Clock renders the elapsed time of a run as MM:SS, one second per cycle.
func Clock(cycle uint64) string {
	return fmt.Sprintf("%02d:%02d", cycle/60, cycle%60)
}
