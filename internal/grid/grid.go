// Package grid provides the invisible placement grid nodes are snapped to.
// Positions are pixel coordinates of cell centres; cells use (col, row).
package grid

import "fmt"

// Default board, in pixels.
const (
	Size   = 30
	Width  = 800
	Height = 600
)

// Cell is a grid cell in column/row coordinates.
type Cell struct {
	Col int `json:"col"`
	Row int `json:"row"`
}

// CellDirections are the four orthogonal neighbor offsets.
var CellDirections = [4]Cell{
	{Col: 1, Row: 0},
	{Col: 0, Row: -1},
	{Col: -1, Row: 0},
	{Col: 0, Row: 1},
}

// Neighbors returns the four orthogonally adjacent cells.
func (c Cell) Neighbors() [4]Cell {
	var result [4]Cell
	for i, dir := range CellDirections {
		result[i] = Cell{Col: c.Col + dir.Col, Row: c.Row + dir.Row}
	}
	return result
}

// Distance returns the Chebyshev distance between two cells.
func Distance(a, b Cell) int {
	dc := a.Col - b.Col
	dr := a.Row - b.Row
	if dc < 0 {
		dc = -dc
	}
	if dr < 0 {
		dr = -dr
	}
	return max(dc, dr)
}

// Grid is a rectangular board divided into square cells.
type Grid struct {
	Size   int `json:"size"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// New returns the default 800x600 board with 30px cells.
func New() Grid {
	return Grid{Size: Size, Width: Width, Height: Height}
}

// Snap maps a pixel position to the centre of the cell containing it.
func (g Grid) Snap(px, py int) (x, y int) {
	return g.FromCell(g.Cell(px, py))
}

// Cell returns the cell containing a pixel position.
func (g Grid) Cell(px, py int) Cell {
	return Cell{Col: floorDiv(px, g.Size), Row: floorDiv(py, g.Size)}
}

// FromCell returns the pixel centre of a cell.
func (g Grid) FromCell(c Cell) (x, y int) {
	return c.Col*g.Size + g.Size/2, c.Row*g.Size + g.Size/2
}

// InBounds reports whether a pixel position lies on the board.
func (g Grid) InBounds(px, py int) bool {
	return px >= 0 && py >= 0 && px < g.Width && py < g.Height
}

// CellInBounds reports whether every pixel of the cell lies on the board.
func (g Grid) CellInBounds(c Cell) bool {
	return c.Col >= 0 && c.Row >= 0 && c.Col < g.Cols() && c.Row < g.Rows()
}

// Center returns the snapped centre of the board, where the nucleus grows.
func (g Grid) Center() (x, y int) {
	return g.Snap(g.Width/2, g.Height/2)
}

// Cols returns the number of whole columns.
func (g Grid) Cols() int { return g.Width / g.Size }

// Rows returns the number of whole rows.
func (g Grid) Rows() int { return g.Height / g.Size }

// CellCount returns the number of whole cells on the board.
func (g Grid) CellCount() int {
	return g.Cols() * g.Rows()
}

func (g Grid) String() string {
	return fmt.Sprintf("Grid(%dx%d, cell=%d)", g.Width, g.Height, g.Size)
}

func floorDiv(a, b int) int {
	q := a / b
	if a%b != 0 && (a < 0) != (b < 0) {
		q--
	}
	return q
}
