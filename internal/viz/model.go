package viz

import (
	"fmt"
	"math"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/guptarohit/asciigraph"
)

const (
	width           = 60
	height          = 20
	historyCapacity = 600
	margin          = 0.1
)

type status int

const (
	statusWaiting status = iota
	statusRunning
	statusDone
	statusFailed
)

type bounds struct {
	minX, maxX, minY, maxY float64
	set                    bool
}

func (b *bounds) include(x, y float64) {
	if !b.set {
		*b = bounds{minX: x, maxX: x, minY: y, maxY: y, set: true}
		return
	}
	b.minX, b.maxX = math.Min(b.minX, x), math.Max(b.maxX, x)
	b.minY, b.maxY = math.Min(b.minY, y), math.Max(b.maxY, y)
}

// Model is the Bubble Tea model behind the live view. The view grows its
// world window to hold everything it has seen, so the picture never jumps
// back.
type Model struct {
	title  string
	stop   float64
	canvas *Canvas
	theme  Theme
	styles styles

	frame    FrameMsg
	frames   int
	window   bounds
	energy   []float64
	trail    []float64
	status   status
	frozen   bool
	showHelp bool
	err      error
	done     *DoneMsg
}

func NewModel(title string, stop float64, theme Theme) Model {
	return Model{
		title:  title,
		stop:   stop,
		canvas: NewCanvas(width, height),
		theme:  theme,
		styles: newStyles(theme),
		energy: make([]float64, 0, historyCapacity),
		trail:  make([]float64, 0, historyCapacity),
	}
}

func (m Model) Init() tea.Cmd { return nil }

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case " ":
			m.frozen = !m.frozen
		case "t":
			m.theme = nextTheme(m.theme)
			m.styles = newStyles(m.theme)
		case "?":
			m.showHelp = !m.showHelp
		}
	case FrameMsg:
		m.frames++
		if m.status == statusWaiting {
			m.status = statusRunning
		}
		m.energy = push(m.energy, msg.Kinetic+msg.Potential)
		if len(msg.Bodies) > 1 {
			m.trail = push(m.trail, msg.Bodies[1].Pos.X)
		}
		for _, b := range msg.Bodies {
			m.window.include(b.Pos.X, b.Pos.Y)
		}
		if !m.frozen {
			m.frame = msg
		}
	case DoneMsg:
		m.done = &msg
		m.status = statusDone
		if msg.Err != nil {
			m.status, m.err = statusFailed, msg.Err
		}
	}
	return m, nil
}

func push(h []float64, v float64) []float64 {
	h = append(h, v)
	if len(h) > historyCapacity {
		h = h[1:]
	}
	return h
}

// project maps world x, y to canvas dots with y pointing up.
func (m Model) project(x, y float64) (int, int) {
	cw, ch := m.canvas.Dots()
	w := m.window
	spanX, spanY := w.maxX-w.minX, w.maxY-w.minY
	span := math.Max(math.Max(spanX, spanY), 1) * (1 + 2*margin)
	scale := math.Min(float64(cw), float64(ch)) / span
	cx, cy := (w.minX+w.maxX)/2, (w.minY+w.maxY)/2
	px := float64(cw)/2 + (x-cx)*scale
	py := float64(ch)/2 - (y-cy)*scale
	return int(math.Round(px)), int(math.Round(py))
}

func (m Model) draw() {
	m.canvas.Clear()
	for _, l := range m.frame.Links {
		x0, y0 := m.project(l.A.X, l.A.Y)
		x1, y1 := m.project(l.B.X, l.B.Y)
		switch l.Kind {
		case SpringLink:
			m.canvas.Zigzag(x0, y0, x1, y1, 10, 3)
		case DamperLink:
			m.canvas.DrawLine(x0, y0+2, x1, y1+2)
		}
	}
	for _, b := range m.frame.Bodies {
		x, y := m.project(b.Pos.X, b.Pos.Y)
		if b.Ground {
			m.canvas.DrawLine(x, y-8, x, y+8)
			continue
		}
		m.canvas.FillBox(x, y, 3)
	}
}

func (m Model) statusLine() string {
	switch {
	case m.status == statusFailed:
		return m.styles.failed.Render("FAILED")
	case m.status == statusDone:
		return m.styles.running.Render("DONE")
	case m.frozen:
		return m.styles.paused.Render("FROZEN")
	case m.status == statusWaiting:
		return m.styles.paused.Render("WAITING")
	default:
		return m.styles.running.Render("RUNNING")
	}
}

func (m Model) View() string {
	m.draw()
	st := m.styles

	var s strings.Builder
	s.WriteString(st.header.Render(strings.ToUpper(m.title)) + "\n")
	s.WriteString(m.statusLine() + "\n\n")
	if m.stop > 0 {
		s.WriteString(st.progressBar(m.frame.Time/m.stop, 30) + "\n\n")
	}
	row := func(label, value string) {
		s.WriteString(st.label.Render(label) + st.value.Render(value) + "\n")
	}
	row("Time", fmt.Sprintf("%.2fs", m.frame.Time))
	row("Kinetic", fmt.Sprintf("%.4f", m.frame.Kinetic))
	row("Potential", fmt.Sprintf("%.4f", m.frame.Potential))
	row("Total", fmt.Sprintf("%.4f", m.frame.Kinetic+m.frame.Potential))
	row("Frames", fmt.Sprintf("%d", m.frames))
	if len(m.trail) > 0 {
		row("x", sparkline(m.trail, 28))
	}
	if len(m.energy) > 1 {
		chart := asciigraph.Plot(m.energy, asciigraph.Height(4), asciigraph.Width(30), asciigraph.Caption("Energy"))
		s.WriteString(st.graph.Render(chart) + "\n")
	}
	if m.done != nil && m.done.Result != nil {
		row("Steps", fmt.Sprintf("%d (%d rejected)", m.done.Result.StepsAccepted, m.done.Result.StepsRejected))
	}
	if m.err != nil {
		s.WriteString(st.failed.Render(m.err.Error()) + "\n")
	}
	s.WriteString(st.help.Render("SP:Freeze T:Theme ?:Help Q:Quit"))

	main := lipgloss.JoinHorizontal(lipgloss.Top, st.canvas.Render(m.canvas.String()), st.panel.Render(s.String()))
	if m.showHelp {
		return helpText + "\n" + main
	}
	return main
}

const helpText = `
  Space  freeze or unfreeze the picture (the run continues)
  T      cycle color themes
  ?      toggle this help
  Q      quit
`
