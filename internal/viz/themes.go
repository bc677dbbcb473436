package viz

import (
	"math"

	"github.com/charmbracelet/lipgloss"
)

// Theme defines the UI colours and the heat-map gradient. Low, Mid and High
// are the colours of φ = -1, 0 and +1.
type Theme struct {
	Name      string
	Primary   lipgloss.Color
	Secondary lipgloss.Color
	Accent    lipgloss.Color
	Muted     lipgloss.Color
	Low       lipgloss.Color
	Mid       lipgloss.Color
	High      lipgloss.Color
}

var (
	ThemeCyberpunk = Theme{
		Name:      "cyberpunk",
		Primary:   lipgloss.Color("#ff00ff"),
		Secondary: lipgloss.Color("#00ffff"),
		Accent:    lipgloss.Color("#ffff00"),
		Muted:     lipgloss.Color("#666666"),
		Low:       lipgloss.Color("#00ffff"),
		Mid:       lipgloss.Color("#0a0a0a"),
		High:      lipgloss.Color("#ff00ff"),
	}

	ThemeOcean = Theme{
		Name:      "ocean",
		Primary:   lipgloss.Color("#0077be"),
		Secondary: lipgloss.Color("#00a8cc"),
		Accent:    lipgloss.Color("#ffd700"),
		Muted:     lipgloss.Color("#4488aa"),
		Low:       lipgloss.Color("#001a33"),
		Mid:       lipgloss.Color("#0077be"),
		High:      lipgloss.Color("#e0f0ff"),
	}

	ThemeSunset = Theme{
		Name:      "sunset",
		Primary:   lipgloss.Color("#ff6b6b"),
		Secondary: lipgloss.Color("#feca57"),
		Accent:    lipgloss.Color("#ff9ff3"),
		Muted:     lipgloss.Color("#8b6b8c"),
		Low:       lipgloss.Color("#2d1b2e"),
		Mid:       lipgloss.Color("#ff6b6b"),
		High:      lipgloss.Color("#feca57"),
	}

	ThemeMinimal = Theme{
		Name:      "minimal",
		Primary:   lipgloss.Color("#ffffff"),
		Secondary: lipgloss.Color("#cccccc"),
		Accent:    lipgloss.Color("#0088ff"),
		Muted:     lipgloss.Color("#888888"),
		Low:       lipgloss.Color("#000000"),
		Mid:       lipgloss.Color("#808080"),
		High:      lipgloss.Color("#ffffff"),
	}

	CurrentTheme = ThemeCyberpunk

	Themes = []Theme{
		ThemeCyberpunk,
		ThemeOcean,
		ThemeSunset,
		ThemeMinimal,
	}
)

// GetTheme returns a theme by name, falling back to cyberpunk.
func GetTheme(name string) Theme {
	for _, t := range Themes {
		if t.Name == name {
			return t
		}
	}
	return ThemeCyberpunk
}

func SetTheme(name string) {
	CurrentTheme = GetTheme(name)
}

func ThemeNames() []string {
	names := make([]string, len(Themes))
	for i, t := range Themes {
		names[i] = t.Name
	}
	return names
}

// NextTheme returns the theme after t in Themes, wrapping around.
func NextTheme(t Theme) Theme {
	for i, th := range Themes {
		if th.Name == t.Name {
			return Themes[(i+1)%len(Themes)]
		}
	}
	return Themes[0]
}

// Shade maps φ to a hex colour on the Low-Mid-High gradient. Values outside
// [-1, 1] saturate; NaN renders as Accent.
func (t Theme) Shade(phi float64) string {
	if math.IsNaN(phi) {
		return string(t.Accent)
	}
	phi = math.Max(-1, math.Min(1, phi))
	if phi < 0 {
		return lerpHex(string(t.Mid), string(t.Low), -phi)
	}
	return lerpHex(string(t.Mid), string(t.High), phi)
}
