// Package tui renders the colony in a terminal and lets a player grow it.
package tui

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/gdamore/tcell/v2"

	"github.com/talgya/fungal-nexus/internal/colony"
	"github.com/talgya/fungal-nexus/internal/engine"
	"github.com/talgya/fungal-nexus/internal/grid"
)

const (
	cellWidth   = 2 // terminal columns per grid cell
	redrawEvery = 100 * time.Millisecond
	messageTTL  = 3 * time.Second
)

var (
	styleEmpty    = tcell.StyleDefault.Foreground(tcell.ColorDarkSlateGray)
	styleHealthy  = tcell.StyleDefault.Foreground(tcell.ColorGreen)
	styleNucleus  = tcell.StyleDefault.Foreground(tcell.ColorFuchsia).Bold(true)
	styleInfected = tcell.StyleDefault.Foreground(tcell.ColorYellow)
	styleTerminal = tcell.StyleDefault.Foreground(tcell.ColorRed).Bold(true)
	styleRoute    = tcell.StyleDefault.Foreground(tcell.ColorAqua)
	styleGhostOK  = tcell.StyleDefault.Foreground(tcell.ColorGreen).Reverse(true)
	styleGhostBad = tcell.StyleDefault.Foreground(tcell.ColorRed).Reverse(true)
	styleStatus   = tcell.StyleDefault.Foreground(tcell.ColorWhite)
	styleFull     = tcell.StyleDefault.Foreground(tcell.ColorOrange).Bold(true)
	styleBanner   = tcell.StyleDefault.Foreground(tcell.ColorWhite).Background(tcell.ColorMaroon).Bold(true)
)

var glyphs = map[string]rune{
	"nucleus":   '@',
	"extractor": 'E',
	"storage":   'S',
	"defense":   'D',
}

// View draws the board, the cursor and the status bar.
type View struct {
	screen tcell.Screen
	sim    *engine.Simulation
	g      grid.Grid

	cursor   grid.Cell
	selected colony.NodeType

	message    string
	messageErr bool
	messageAt  time.Time
}

// New creates a view over an initialized screen. The cursor starts on the
// nucleus cell.
func New(screen tcell.Screen, sim *engine.Simulation) *View {
	g := sim.Grid()
	cx, cy := g.Center()
	return &View{
		screen:   screen,
		sim:      sim,
		g:        g,
		cursor:   g.Cell(cx, cy),
		selected: colony.Extractor,
	}
}

// Cursor returns the highlighted cell.
func (v *View) Cursor() grid.Cell { return v.cursor }

// Selected returns the type the next build will use.
func (v *View) Selected() colony.NodeType { return v.selected }

// Run redraws until ctx is cancelled or the player quits.
func (v *View) Run(ctx context.Context) {
	events := make(chan tcell.Event, 64)
	quit := make(chan struct{})
	go func() {
		for {
			ev := v.screen.PollEvent()
			if ev == nil {
				return
			}
			select {
			case events <- ev:
			case <-quit:
				return
			}
		}
	}()
	defer close(quit)

	ticker := time.NewTicker(redrawEvery)
	defer ticker.Stop()

	v.Draw()
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-events:
			if !v.HandleEvent(ev) {
				return
			}
			v.Draw()
		case <-ticker.C:
			v.Draw()
		}
	}
}

// HandleEvent applies one input event. It returns false when the player quits.
func (v *View) HandleEvent(ev tcell.Event) bool {
	switch ev := ev.(type) {
	case *tcell.EventKey:
		switch ev.Key() {
		case tcell.KeyEscape, tcell.KeyCtrlC:
			return false
		case tcell.KeyUp:
			v.move(0, -1)
		case tcell.KeyDown:
			v.move(0, 1)
		case tcell.KeyLeft:
			v.move(-1, 0)
		case tcell.KeyRight:
			v.move(1, 0)
		case tcell.KeyEnter:
			v.build()
		case tcell.KeyRune:
			switch ev.Rune() {
			case 'q':
				return false
			case 'k':
				v.move(0, -1)
			case 'j':
				v.move(0, 1)
			case 'h':
				v.move(-1, 0)
			case 'l':
				v.move(1, 0)
			case '1':
				v.selected = colony.Extractor
			case '2':
				v.selected = colony.Storage
			case '3':
				v.selected = colony.Defense
			case ' ':
				v.build()
			}
		}
	case *tcell.EventResize:
		v.screen.Sync()
	}
	return true
}

func (v *View) move(dc, dr int) {
	next := grid.Cell{Col: v.cursor.Col + dc, Row: v.cursor.Row + dr}
	if v.g.CellInBounds(next) {
		v.cursor = next
	}
}

func (v *View) build() {
	x, y := v.g.FromCell(v.cursor)
	_, err := v.sim.Build(x, y, v.selected)
	switch {
	case err == nil:
		v.say(fmt.Sprintf("%s grown at (%d, %d)", v.selected, x, y), false)
	case errors.Is(err, colony.ErrInsufficientNutrients):
		v.say(fmt.Sprintf("not enough nutrients for a %s (%d)", v.selected, int(v.selected.Cost())), true)
	case errors.Is(err, colony.ErrCellOccupied):
		v.say("that cell is already occupied", true)
	case errors.Is(err, engine.ErrGameOver):
		v.say("the colony has fallen", true)
	default:
		v.say(err.Error(), true)
	}
}

func (v *View) say(msg string, isErr bool) {
	v.message = msg
	v.messageErr = isErr
	v.messageAt = time.Now()
}

// Draw renders one frame.
func (v *View) Draw() {
	v.screen.Clear()

	snap := v.sim.Snapshot()
	st := v.sim.Status()

	occupied := make(map[grid.Cell]colony.NodeView, len(snap.Nodes))
	for _, n := range snap.Nodes {
		occupied[v.g.Cell(n.X, n.Y)] = n
	}

	// Highlight the supply line of the node under the cursor.
	onRoute := make(map[grid.Cell]bool)
	if n, ok := occupied[v.cursor]; ok {
		if path, ok := v.sim.Route(n.X, n.Y); ok {
			for _, p := range path {
				onRoute[v.g.Cell(p.X, p.Y)] = true
			}
		}
	}

	for row := 0; row < v.g.Rows(); row++ {
		for col := 0; col < v.g.Cols(); col++ {
			c := grid.Cell{Col: col, Row: row}
			r, style := '·', styleEmpty
			if n, ok := occupied[c]; ok {
				r, style = glyphs[n.Type], nodeStyle(n)
				if onRoute[c] && n.State == "healthy" && n.Type != "nucleus" {
					style = styleRoute
				}
			}
			if c == v.cursor && !snap.GameOver {
				if _, taken := occupied[c]; !taken {
					r = glyphs[v.selected.String()]
					style = styleGhostBad
					if v.sim.CanAfford(v.selected) {
						style = styleGhostOK
					}
				} else {
					style = style.Reverse(true)
				}
			}
			v.screen.SetContent(col*cellWidth, row, r, nil, style)
		}
	}

	v.drawStatus(v.g.Rows()+1, st)

	if snap.GameOver {
		v.drawBanner(st)
	}

	v.screen.Show()
}

func nodeStyle(n colony.NodeView) tcell.Style {
	switch {
	case n.Terminal:
		return styleTerminal
	case n.Infection > 0:
		return styleInfected
	case n.Type == "nucleus":
		return styleNucleus
	default:
		return styleHealthy
	}
}

// drawStatus fills the rows under the board: headline numbers, build keys
// with colony counts, key help and the last build message. Each row stays
// within 80 columns.
func (v *View) drawStatus(y int, st engine.Status) {
	x := drawText(v.screen, 0, y, styleStatus, fmt.Sprintf("Time %s  Nutrients %s/%s",
		st.Clock, humanize.Comma(int64(st.Nutrients)), humanize.Comma(int64(st.NutrientCapacity))))
	if st.NutrientsFull {
		x = drawText(v.screen, x+1, y, styleFull, "FULL")
	}
	x = drawText(v.screen, x+2, y, styleStatus, fmt.Sprintf("Defense %d/%d", int(st.Defense), int(st.DefenseCapacity)))

	nucleus := fmt.Sprintf("Nucleus %d%%", int(st.NucleusHealthPct))
	nucleusStyle := styleStatus
	if st.GameOver {
		nucleus, nucleusStyle = "Nucleus: BACTERIA", styleTerminal
	} else if st.NucleusHealthPct < 100 {
		nucleusStyle = styleInfected
	}
	drawText(v.screen, x+2, y, nucleusStyle, nucleus)

	x = 0
	for i, t := range colony.BuildableTypes() {
		label := fmt.Sprintf("[%d] %s %d", i+1, t, int(t.Cost()))
		style := styleStatus
		if t == v.selected {
			style = style.Reverse(true)
		}
		x = drawText(v.screen, x, y+1, style, label) + 2
	}
	drawText(v.screen, x, y+1, styleStatus, fmt.Sprintf("Nodes %d  Infected %d", st.Nodes, st.Infected))

	drawText(v.screen, 0, y+2, styleEmpty, "arrows/hjkl move  1/2/3 select  space build  q quit")

	if v.message != "" && time.Since(v.messageAt) < messageTTL {
		style := styleHealthy
		if v.messageErr {
			style = styleTerminal
		}
		drawText(v.screen, 0, y+3, style, v.message)
	}
}

func (v *View) drawBanner(st engine.Status) {
	lines := []string{
		"  THE NUCLEUS HAS FALLEN  ",
		fmt.Sprintf("  survived %s  ", st.Clock),
	}
	top := v.g.Rows()/2 - 1
	for i, line := range lines {
		left := (v.g.Cols()*cellWidth - len(line)) / 2
		drawText(v.screen, max(left, 0), top+i, styleBanner, line)
	}
}

// drawText writes s from (x, y), clipped at the screen edge, and returns the
// column after the last rune.
func drawText(screen tcell.Screen, x, y int, style tcell.Style, s string) int {
	w, _ := screen.Size()
	for _, r := range s {
		if x >= w {
			break
		}
		screen.SetContent(x, y, r, nil, style)
		x++
	}
	return x
}
