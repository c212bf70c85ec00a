package render

import (
	"fmt"

	"github.com/gdamore/tcell/v2"

	"pointerheat/internal/service"
	"pointerheat/internal/topology"
)

// Viewer shows a visualization in a terminal
type Viewer struct {
	screen    tcell.Screen
	vis       *service.Visualization
	smoothing float64
	smooth    bool
}

// NewViewer creates a viewer on an initialized screen
func NewViewer(screen tcell.Screen, v *service.Visualization, smoothing float64) *Viewer {
	return &Viewer{
		screen:    screen,
		vis:       v,
		smoothing: smoothing,
		smooth:    smoothing > 0,
	}
}

// Draw renders the density into all rows but the last, which holds the status line
func (vw *Viewer) Draw() {
	vw.screen.Clear()
	cols, rows := vw.screen.Size()
	rows--
	if cols < 1 || rows < 1 {
		vw.screen.Show()
		return
	}

	sigma := 0.0
	if vw.smooth {
		sigma = vw.smoothing
	}
	values := normalize(resample(vw.vis.Grid.Smooth(sigma), cols, rows))

	bg := RGBA(Background)
	empty := tcell.StyleDefault.Background(tcell.NewRGBColor(int32(bg.R), int32(bg.G), int32(bg.B)))
	for x := 0; x < cols; x++ {
		for y := 0; y < rows; y++ {
			style := empty
			if t := values[x][y]; t > 0 {
				c := RGBA(Colormap(t))
				style = tcell.StyleDefault.Background(tcell.NewRGBColor(int32(c.R), int32(c.G), int32(c.B)))
			}
			vw.screen.SetContent(x, y, ' ', nil, style)
		}
	}

	if len(vw.vis.Regions) > 1 {
		for _, r := range vw.vis.Regions {
			vw.outline(r, cols, rows)
		}
	}

	mode := "raw"
	if vw.smooth {
		mode = fmt.Sprintf("sigma %.1f", vw.smoothing)
	}
	status := fmt.Sprintf(" %s | %s | q quit, s smoothing", StatsLine(vw.vis), mode)
	statusStyle := tcell.StyleDefault.Reverse(true)
	for x := 0; x < cols; x++ {
		ch := ' '
		if x < len(status) {
			ch = rune(status[x])
		}
		vw.screen.SetContent(x, rows, ch, nil, statusStyle)
	}

	vw.screen.Show()
}

// outline marks the edges of a region with dotted borders over the existing background
func (vw *Viewer) outline(r topology.Region, cols, rows int) {
	b := vw.vis.Bounds
	x0 := (r.X - b.MinX) * cols / b.Width()
	x1 := (r.Right()-b.MinX)*cols/b.Width() - 1
	y0 := (r.Y - b.MinY) * rows / b.Height()
	y1 := (r.Bottom()-b.MinY)*rows/b.Height() - 1

	mark := func(x, y int, ch rune) {
		if x < 0 || y < 0 || x >= cols || y >= rows {
			return
		}
		_, _, style, _ := vw.screen.GetContent(x, y)
		vw.screen.SetContent(x, y, ch, nil, style.Foreground(tcell.ColorWhite))
	}
	for x := x0; x <= x1; x++ {
		mark(x, y0, '┄')
		mark(x, y1, '┄')
	}
	for y := y0; y <= y1; y++ {
		mark(x0, y, '┆')
		mark(x1, y, '┆')
	}
}

// Run draws and handles keys until q or Esc
func (vw *Viewer) Run() {
	vw.Draw()
	for {
		switch ev := vw.screen.PollEvent().(type) {
		case nil:
			return
		case *tcell.EventResize:
			vw.screen.Sync()
			vw.Draw()
		case *tcell.EventKey:
			if !vw.HandleKey(ev) {
				return
			}
		}
	}
}

// HandleKey applies a key press and reports whether the viewer should keep running
func (vw *Viewer) HandleKey(ev *tcell.EventKey) bool {
	switch ev.Key() {
	case tcell.KeyEscape, tcell.KeyCtrlC:
		return false
	case tcell.KeyRune:
		switch ev.Rune() {
		case 'q':
			return false
		case 's':
			if vw.smoothing > 0 {
				vw.smooth = !vw.smooth
				vw.Draw()
			}
		}
	}
	return true
}

// resample sums values (indexed [x][y]) into a cols x rows grid.
// Each output cell covers at least one input cell.
func resample(values [][]float64, cols, rows int) [][]float64 {
	rx := len(values)
	ry := 0
	if rx > 0 {
		ry = len(values[0])
	}

	out := make([][]float64, cols)
	for x := range out {
		out[x] = make([]float64, rows)
		if rx == 0 || ry == 0 {
			continue
		}
		i0, i1 := span(x, cols, rx)
		for y := range out[x] {
			j0, j1 := span(y, rows, ry)
			sum := 0.0
			for i := i0; i < i1; i++ {
				for j := j0; j < j1; j++ {
					sum += values[i][j]
				}
			}
			out[x][y] = sum
		}
	}
	return out
}

// span returns the input index range covered by output index k
func span(k, outN, inN int) (int, int) {
	lo := k * inN / outN
	hi := (k + 1) * inN / outN
	if hi <= lo {
		hi = lo + 1
	}
	return lo, hi
}
