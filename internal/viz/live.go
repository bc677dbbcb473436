package viz

import (
	"fmt"
	"image"
	"image/color"
	"image/gif"
	"math"
	"math/rand"
	"os"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/guptarohit/asciigraph"
	"gonum.org/v1/gonum/stat"

	"github.com/san-kum/chsim/internal/config"
	"github.com/san-kum/chsim/internal/lattice"
	"github.com/san-kum/chsim/internal/sim"
)

const (
	mapCols         = 64
	mapRows         = 24
	historyCapacity = 600
	maxStepsPerTick = 1024
	gifScale        = 2
	gifShades       = 32
)

var (
	mapStyle   = lipgloss.NewStyle().Padding(1, 2)
	statsStyle = lipgloss.NewStyle().Border(lipgloss.NormalBorder(), false, false, false, true).BorderForeground(lipgloss.Color("240")).Padding(1, 2).Width(48)
	graphStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("49")).Padding(1, 0)
	helpStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("240")).MarginTop(1)
	errStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#ff4444"))
)

type TickMsg time.Time

// Model is a live view of one simulation held in memory. Every tick
// advances the field by stepsPerTick sweeps.
type Model struct {
	params  config.Params
	cur     *lattice.Lattice
	dst     *lattice.Lattice
	initial *lattice.Lattice
	stepper *sim.Stepper

	step            int
	stepsPerTick    int
	running         bool
	braille         bool
	showHelp        bool
	theme           Theme
	canvas          *Canvas
	energyHistory   []float64
	varianceHistory []float64
	recording       bool
	frames          []*image.Paletted
	GIFPath         string
	status          string
	err             error
}

// NewModel seeds and initialises the lattice described by p. A zero seed
// picks one from the clock.
func NewModel(p config.Params) (Model, error) {
	if err := p.Validate(); err != nil {
		return Model{}, err
	}
	if p.Seed == 0 {
		p.Seed = time.Now().UnixNano()
	}
	cur, err := p.NewLattice()
	if err != nil {
		return Model{}, err
	}
	cur.Initialise(p.InitialValue, p.Noise, rand.New(rand.NewSource(p.Seed)))

	m := Model{
		params:          p,
		cur:             cur,
		dst:             cur.Clone(),
		initial:         cur.Clone(),
		stepper:         sim.NewStepper(p.Workers),
		stepsPerTick:    1,
		running:         true,
		theme:           CurrentTheme,
		canvas:          NewCanvas(mapCols/2, mapRows),
		energyHistory:   make([]float64, 0, historyCapacity),
		varianceHistory: make([]float64, 0, historyCapacity),
		GIFPath:         "chsim.gif",
	}
	m.record()
	return m, nil
}

func tick() tea.Cmd {
	return tea.Tick(time.Second/30, func(t time.Time) tea.Msg { return TickMsg(t) })
}

func (m Model) Init() tea.Cmd {
	return tick()
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case " ":
			m.running = !m.running
		case "r":
			m.reset()
		case "+", "=":
			m.stepsPerTick = min(m.stepsPerTick*2, maxStepsPerTick)
		case "-", "_":
			m.stepsPerTick = max(m.stepsPerTick/2, 1)
		case "b":
			m.braille = !m.braille
		case "t":
			m.theme = NextTheme(m.theme)
		case "g":
			m.toggleRecording()
		case "?":
			m.showHelp = !m.showHelp
		}
	case TickMsg:
		if m.running {
			m.advance()
		}
		return m, tick()
	}
	return m, nil
}

// Done reports whether the configured step count has been reached. A zero
// step count runs until quit.
func (m *Model) Done() bool {
	return m.params.Steps > 0 && m.step >= m.params.Steps
}

func (m *Model) advance() {
	if m.err != nil {
		return
	}
	for i := 0; i < m.stepsPerTick && !m.Done(); i++ {
		if err := m.stepper.Sweep(m.cur, m.dst, m.params.Dt); err != nil {
			m.err = err
			m.running = false
			return
		}
		m.cur, m.dst = m.dst, m.cur
		m.step++
	}
	m.record()
	if m.recording {
		m.captureFrame()
	}
	if m.Done() {
		m.running = false
	}
}

func (m *Model) record() {
	m.energyHistory = appendCapped(m.energyHistory, m.cur.TotalFreeEnergy())
	_, variance := stat.PopMeanVariance(m.cur.Values(), nil)
	m.varianceHistory = appendCapped(m.varianceHistory, variance)
}

func appendCapped(h []float64, v float64) []float64 {
	h = append(h, v)
	if len(h) > historyCapacity {
		h = h[1:]
	}
	return h
}

// reset restores the initial field.
func (m *Model) reset() {
	if err := m.cur.CopyFrom(m.initial); err != nil {
		m.err = err
		return
	}
	m.step = 0
	m.err = nil
	m.energyHistory = m.energyHistory[:0]
	m.varianceHistory = m.varianceHistory[:0]
	m.record()
	m.running = true
}

func (m Model) View() string {
	var s strings.Builder
	s.WriteString(GradientText("CAHN-HILLIARD", m.theme.Primary, m.theme.Secondary) + "\n")

	status := StatusRunning.Render("RUNNING")
	switch {
	case m.err != nil:
		status = errStyle.Render("ERROR: " + m.err.Error())
	case m.Done():
		status = StatusPaused.Render("DONE")
	case !m.running:
		status = StatusPaused.Render("PAUSED")
	}
	if m.recording {
		status += " " + StatusRecording.Render("● REC")
	}
	s.WriteString(status + "\n\n")

	energy := m.energyHistory[len(m.energyHistory)-1]
	variance := m.varianceHistory[len(m.varianceHistory)-1]
	row := func(label, value string) {
		s.WriteString(MetricLabel.Render(label) + MetricValue.Render(value) + "\n")
	}
	row("Step", fmt.Sprintf("%d", m.step))
	row("Time", fmt.Sprintf("%.2f", float64(m.step)*m.params.Dt))
	row("Energy", fmt.Sprintf("%.6f", energy))
	row("Variance", fmt.Sprintf("%.4f", variance))
	row("dt", fmt.Sprintf("%g (limit %.3g)", m.params.Dt, m.params.StabilityLimit()))
	row("Speed", fmt.Sprintf("%d steps/frame", m.stepsPerTick))
	row("Theme", m.theme.Name)
	if m.params.Steps > 0 {
		s.WriteString("\n" + ProgressBar(float64(m.step)/float64(m.params.Steps), 30) + "\n")
	}

	if len(m.energyHistory) > 1 && !math.IsNaN(energy) && !math.IsInf(energy, 0) {
		chart := asciigraph.Plot(m.energyHistory, asciigraph.Height(6), asciigraph.Width(34), asciigraph.Caption("Free energy"))
		s.WriteString(graphStyle.Render(chart) + "\n")
	}
	s.WriteString(KeyHint.Render("variance ") + Sparkline(m.varianceHistory, 30) + "\n")
	if m.status != "" {
		s.WriteString(KeyHint.Render(m.status) + "\n")
	}
	s.WriteString(helpStyle.Render("SP:Pause R:Reset Q:Quit +/-:Speed\nB:Braille T:Theme G:Record ?:Help"))

	var field string
	if m.braille {
		m.canvas.DrawPhase(m.cur)
		field = lipgloss.NewStyle().Foreground(m.theme.High).Render(m.canvas.String())
	} else {
		field = HeatMap(m.cur, m.theme, mapCols, mapRows)
	}
	mainView := lipgloss.JoinHorizontal(lipgloss.Top, mapStyle.Render(field), statsStyle.Render(s.String()))

	if m.showHelp {
		return `
╔══════════════════════════════════════╗
║           KEYBOARD SHORTCUTS         ║
╠══════════════════════════════════════╣
║  Space    - Pause/Resume             ║
║  R        - Reset to initial field   ║
║  Q        - Quit                     ║
║  + / -    - Double/halve speed       ║
║  B        - Toggle phase view        ║
║  T        - Cycle themes             ║
║  G        - Toggle GIF recording     ║
║  ?        - Toggle this help         ║
╚══════════════════════════════════════╝
` + "\n\n" + mainView
	}
	return mainView
}

func (m *Model) toggleRecording() {
	if !m.recording {
		m.recording = true
		m.frames = make([]*image.Paletted, 0)
		m.captureFrame()
		return
	}
	m.recording = false
	if err := m.saveGIF(); err != nil {
		m.status = "gif: " + err.Error()
	} else {
		m.status = fmt.Sprintf("saved %d frames to %s", len(m.frames), m.GIFPath)
	}
	m.frames = nil
}

func (m *Model) palette() color.Palette {
	p := make(color.Palette, gifShades+1)
	for i := range p {
		phi := 2*float64(i)/gifShades - 1
		r, g, b := parseHex(m.theme.Shade(phi))
		p[i] = color.RGBA{R: uint8(r), G: uint8(g), B: uint8(b), A: 255}
	}
	return p
}

func (m *Model) captureFrame() {
	w, h := m.cur.Width(), m.cur.Height()
	img := image.NewPaletted(image.Rect(0, 0, w*gifScale, h*gifScale), m.palette())
	for py := 0; py < h*gifScale; py++ {
		y := h - 1 - py/gifScale
		for px := 0; px < w*gifScale; px++ {
			phi := math.Max(-1, math.Min(1, m.cur.At(px/gifScale, y)))
			if math.IsNaN(phi) {
				phi = 0
			}
			img.SetColorIndex(px, py, uint8(math.Round((phi+1)/2*gifShades)))
		}
	}
	m.frames = append(m.frames, img)
}

func (m *Model) saveGIF() error {
	if len(m.frames) == 0 {
		return nil
	}
	anim := gif.GIF{LoopCount: 0}
	for _, frame := range m.frames {
		anim.Image = append(anim.Image, frame)
		anim.Delay = append(anim.Delay, 4)
	}
	f, err := os.Create(m.GIFPath)
	if err != nil {
		return err
	}
	if err := gif.EncodeAll(f, &anim); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// Run starts the live view in the alternate screen.
func Run(p config.Params) error {
	m, err := NewModel(p)
	if err != nil {
		return err
	}
	_, err = tea.NewProgram(m, tea.WithAltScreen()).Run()
	return err
}
