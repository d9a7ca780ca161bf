// Package substrate generates the nutrient richness of the soil under the
// board using layered simplex noise. Extractors built on rich cells pull
// nutrients faster than the base rate; poor cells pull slower.
package substrate

import (
	"math"

	opensimplex "github.com/ojrac/opensimplex-go"

	"github.com/talgya/fungal-nexus/internal/grid"
)

// Yield bounds. A flat field returns 1 everywhere.
const (
	MinYield = 0.6
	MaxYield = 1.4
)

// Config holds substrate generation parameters.
type Config struct {
	Seed        int64
	Octaves     int
	Frequency   float64 // base frequency, in cells
	Persistence float64
	Moisture    float64 // weight of the moisture layer, 0 disables it
}

// DefaultConfig returns a gently varying field.
func DefaultConfig(seed int64) Config {
	return Config{
		Seed:        seed,
		Octaves:     4,
		Frequency:   0.12,
		Persistence: 0.5,
		Moisture:    0.3,
	}
}

// Field is a precomputed yield multiplier per grid cell.
type Field struct {
	g     grid.Grid
	cells map[grid.Cell]float64
	flat  bool
}

// Flat returns a field that never changes a production rate.
func Flat() *Field {
	return &Field{flat: true}
}

// Generate samples the noise layers once per cell of g.
func Generate(g grid.Grid, cfg Config) *Field {
	richNoise := opensimplex.NewNormalized(cfg.Seed)
	wetNoise := opensimplex.NewNormalized(cfg.Seed + 1)

	f := &Field{g: g, cells: make(map[grid.Cell]float64, g.CellCount())}
	for col := 0; col < g.Cols(); col++ {
		for row := 0; row < g.Rows(); row++ {
			x, y := float64(col), float64(row)

			rich := octaveNoise(richNoise, x, y, cfg.Octaves, cfg.Frequency, cfg.Persistence)
			if cfg.Moisture > 0 {
				wet := octaveNoise(wetNoise, x, y, 2, cfg.Frequency/2, cfg.Persistence)
				rich = rich*(1-cfg.Moisture) + wet*cfg.Moisture
			}

			f.cells[grid.Cell{Col: col, Row: row}] = MinYield + rich*(MaxYield-MinYield)
		}
	}
	return f
}

// Yield returns the multiplier at a pixel position. Off-board positions
// fall back to 1.
func (f *Field) Yield(x, y int) float64 {
	if f.flat {
		return 1
	}
	v, ok := f.cells[f.g.Cell(x, y)]
	if !ok {
		return 1
	}
	return clampYield(v)
}

// Stats summarizes a field.
type Stats struct {
	Min  float64 `json:"min"`
	Max  float64 `json:"max"`
	Mean float64 `json:"mean"`
}

// Stats returns the range and mean of the field.
func (f *Field) Stats() Stats {
	if f.flat || len(f.cells) == 0 {
		return Stats{Min: 1, Max: 1, Mean: 1}
	}
	s := Stats{Min: math.MaxFloat64, Max: -math.MaxFloat64}
	for _, v := range f.cells {
		s.Min = min(s.Min, v)
		s.Max = max(s.Max, v)
		s.Mean += v
	}
	s.Mean /= float64(len(f.cells))
	return s
}

func octaveNoise(noise opensimplex.Noise, x, y float64, octaves int, frequency, persistence float64) float64 {
	total := 0.0
	amplitude := 1.0
	maxVal := 0.0

	for i := 0; i < octaves; i++ {
		total += noise.Eval2(x*frequency, y*frequency) * amplitude
		maxVal += amplitude
		amplitude *= persistence
		frequency *= 2
	}
	if maxVal == 0 {
		return 0.5
	}
	return total / maxVal
}

func clampYield(v float64) float64 {
	return math.Max(MinYield, math.Min(MaxYield, v))
}
