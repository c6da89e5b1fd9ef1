package analysis

import (
	"math"
	"strings"
)

type Point struct{ X, Y float64 }

// PhasePortrait pairs a coordinate with its speed over time.
type PhasePortrait struct {
	Points []Point
}

func NewPhasePortrait(q, u []float64) *PhasePortrait {
	n := min(len(q), len(u))
	p := &PhasePortrait{Points: make([]Point, n)}
	for i := 0; i < n; i++ {
		p.Points[i] = Point{X: q[i], Y: u[i]}
	}
	return p
}

// ASCII plots the portrait on a width x height grid with axes through the
// origin when it is in view.
func (p *PhasePortrait) ASCII(width, height int) string {
	if p == nil || len(p.Points) == 0 || width < 2 || height < 2 {
		return ""
	}

	minX, maxX := p.Points[0].X, p.Points[0].X
	minY, maxY := p.Points[0].Y, p.Points[0].Y
	for _, pt := range p.Points {
		minX, maxX = math.Min(minX, pt.X), math.Max(maxX, pt.X)
		minY, maxY = math.Min(minY, pt.Y), math.Max(maxY, pt.Y)
	}
	pad := func(lo, hi float64) (float64, float64) {
		r := hi - lo
		if r == 0 {
			r = 1
		}
		return lo - 0.1*r, hi + 0.1*r
	}
	minX, maxX = pad(minX, maxX)
	minY, maxY = pad(minY, maxY)
	col := func(x float64) int { return int((x - minX) / (maxX - minX) * float64(width-1)) }
	row := func(y float64) int { return height - 1 - int((y-minY)/(maxY-minY)*float64(height-1)) }

	grid := make([][]rune, height)
	for i := range grid {
		grid[i] = []rune(strings.Repeat(" ", width))
	}
	if minX <= 0 && maxX >= 0 {
		c := col(0)
		for r := range grid {
			grid[r][c] = '│'
		}
	}
	if minY <= 0 && maxY >= 0 {
		r := row(0)
		for c := range grid[r] {
			if grid[r][c] == '│' {
				grid[r][c] = '┼'
			} else {
				grid[r][c] = '─'
			}
		}
	}
	for _, pt := range p.Points {
		grid[row(pt.Y)][col(pt.X)] = '•'
	}

	var sb strings.Builder
	for _, r := range grid {
		sb.WriteString(string(r))
		sb.WriteByte('\n')
	}
	return sb.String()
}
