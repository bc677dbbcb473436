package viz

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/san-kum/chsim/internal/lattice"
)

// Downsample block-averages the field onto a pw x ph pixel grid. Row 0 of
// the result is the top of the picture (y = H-1). The grid is never larger
// than the lattice.
func Downsample(l *lattice.Lattice, pw, ph int) [][]float64 {
	w, h := l.Width(), l.Height()
	pw = max(1, min(pw, w))
	ph = max(1, min(ph, h))

	out := make([][]float64, ph)
	for py := 0; py < ph; py++ {
		y0, y1 := py*h/ph, (py+1)*h/ph
		out[py] = make([]float64, pw)
		for px := 0; px < pw; px++ {
			x0, x1 := px*w/pw, (px+1)*w/pw
			sum := 0.0
			for y := y0; y < y1; y++ {
				for x := x0; x < x1; x++ {
					sum += l.At(x, h-1-y)
				}
			}
			out[py][px] = sum / float64((y1-y0)*(x1-x0))
		}
	}
	return out
}

// HeatMap renders the field in at most cols x rows terminal cells. Each
// cell is an upper half block carrying two pixels, so the picture has
// twice as many pixel rows as text rows.
func HeatMap(l *lattice.Lattice, theme Theme, cols, rows int) string {
	px := Downsample(l, cols, rows*2)

	var b strings.Builder
	for y := 0; y < len(px); y += 2 {
		for x := range px[y] {
			style := lipgloss.NewStyle().Foreground(lipgloss.Color(theme.Shade(px[y][x])))
			if y+1 < len(px) {
				style = style.Background(lipgloss.Color(theme.Shade(px[y+1][x])))
			}
			b.WriteString(style.Render("▀"))
		}
		b.WriteByte('\n')
	}
	return b.String()
}
