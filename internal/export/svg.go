package export

import (
	"fmt"
	"strings"

	"github.com/san-kum/chsim/internal/lattice"
	"github.com/san-kum/chsim/internal/storage"
	"github.com/san-kum/chsim/internal/viz"
)

// LatticeToSVG draws one square of side scale per site, coloured with the
// theme's heat-map gradient. y = H-1 is the top row, as in frame files.
func LatticeToSVG(l *lattice.Lattice, theme viz.Theme, scale float64) string {
	if l == nil {
		return ""
	}
	w, h := l.Width(), l.Height()
	width, height := float64(w)*scale, float64(h)*scale

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<svg xmlns="http://www.w3.org/2000/svg" width="%.0f" height="%.0f" viewBox="0 0 %.0f %.0f" shape-rendering="crispEdges">
`, width, height, width, height))

	for row := 0; row < h; row++ {
		y := h - 1 - row
		for x := 0; x < w; x++ {
			sb.WriteString(fmt.Sprintf(`<rect x="%g" y="%g" width="%g" height="%g" fill="%s"/>
`, float64(x)*scale, float64(row)*scale, scale, scale, theme.Shade(l.At(x, y))))
		}
	}

	sb.WriteString("</svg>")
	return sb.String()
}

// EnergyToSVG plots a free energy series against step number.
func EnergyToSVG(points []storage.EnergyPoint, width, height int, strokeColor string) string {
	if len(points) < 2 {
		return ""
	}

	minX, maxX := float64(points[0].Step), float64(points[0].Step)
	minY, maxY := points[0].Energy, points[0].Energy
	for _, p := range points {
		x := float64(p.Step)
		minX, maxX = min(minX, x), max(maxX, x)
		minY, maxY = min(minY, p.Energy), max(maxY, p.Energy)
	}

	lo, hi := minY, maxY
	rangeX := maxX - minX
	rangeY := maxY - minY
	if rangeX == 0 {
		rangeX = 1
	}
	if rangeY == 0 {
		rangeY = 1
	}
	minX -= rangeX * 0.05
	maxX += rangeX * 0.05
	minY -= rangeY * 0.1
	maxY += rangeY * 0.1
	rangeX = maxX - minX
	rangeY = maxY - minY

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" viewBox="0 0 %d %d">
<rect width="100%%" height="100%%" fill="#0a0a0a"/>
<text x="8" y="16" fill="#888899" font-family="monospace" font-size="12">F = %.6g .. %.6g</text>
<path fill="none" stroke="%s" stroke-width="1.5" d="M`,
		width, height, width, height, lo, hi, strokeColor))

	for i, p := range points {
		x := (float64(p.Step) - minX) / rangeX * float64(width)
		y := float64(height) - (p.Energy-minY)/rangeY*float64(height)

		if i == 0 {
			sb.WriteString(fmt.Sprintf("%.1f,%.1f", x, y))
		} else {
			sb.WriteString(fmt.Sprintf(" L%.1f,%.1f", x, y))
		}
	}

	sb.WriteString(`"/>
</svg>`)
	return sb.String()
}
