package viz

import (
	"fmt"
	"strconv"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/san-kum/chsim/internal/config"
)

var presetInfo = map[string]string{
	"spinodal": "symmetric quench",
	"droplets": "off-critical droplets",
	"quick":    "small fast demo",
	"fine":     "dx=0.5 refined grid",
}

var (
	titleStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#00cccc")).Bold(true)
	subStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("#666688"))
	cursorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#00ffff")).Bold(true)
	selectedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#ffffff")).Bold(true)
	valueStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#ff88ff")).Bold(true)
	idleStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#555566"))
	keyStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("#00aaaa")).Bold(true)
)

const (
	stateMenu = iota
	stateConfig
	stateSim
)

// field is one editable entry of the config screen.
type field struct {
	name string
	get  func(*config.Params) float64
	set  func(*config.Params, float64)
	step float64
}

var fields = []field{
	{"dt", func(p *config.Params) float64 { return p.Dt }, func(p *config.Params, v float64) { p.Dt = v }, 0.05},
	{"dx", func(p *config.Params) float64 { return p.Dx }, func(p *config.Params, v float64) { p.Dx = v }, 0.1},
	{"M", func(p *config.Params) float64 { return p.M }, func(p *config.Params, v float64) { p.M = v }, 0.01},
	{"a", func(p *config.Params) float64 { return p.A }, func(p *config.Params, v float64) { p.A = v }, 0.01},
	{"k", func(p *config.Params) float64 { return p.K }, func(p *config.Params, v float64) { p.K = v }, 0.01},
	{"initial", func(p *config.Params) float64 { return p.InitialValue }, func(p *config.Params, v float64) { p.InitialValue = v }, 0.05},
	{"noise", func(p *config.Params) float64 { return p.Noise }, func(p *config.Params, v float64) { p.Noise = v }, 0.01},
	{"rows", func(p *config.Params) float64 { return float64(p.Rows) }, func(p *config.Params, v float64) { p.Rows = int(v) }, 8},
	{"cols", func(p *config.Params) float64 { return float64(p.Cols) }, func(p *config.Params, v float64) { p.Cols = int(v) }, 8},
	{"steps", func(p *config.Params) float64 { return float64(p.Steps) }, func(p *config.Params, v float64) { p.Steps = int(v) }, 1000},
}

type model struct {
	state, cursor int
	presets       []string
	selected      string
	params        config.Params
	fieldCursor   int
	editing       bool
	editBuf       string
	err           error
	liveModel     Model
}

func NewInteractiveApp() *model {
	return &model{
		state:   stateMenu,
		presets: config.ListPresets(),
		params:  config.DefaultParams(),
	}
}

func (m model) Init() tea.Cmd { return nil }

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)
	default:
		if m.state == stateSim {
			newLive, cmd := m.liveModel.Update(msg)
			m.liveModel = newLive.(Model)
			return m, cmd
		}
	}
	return m, nil
}

func (m model) handleKey(msg tea.KeyMsg) (model, tea.Cmd) {
	if msg.String() == "ctrl+c" {
		return m, tea.Quit
	}
	switch m.state {
	case stateMenu:
		return m.menuKey(msg)
	case stateConfig:
		return m.configKey(msg)
	case stateSim:
		newLive, cmd := m.liveModel.Update(msg)
		m.liveModel = newLive.(Model)
		return m, cmd
	}
	return m, nil
}

func (m model) menuKey(msg tea.KeyMsg) (model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
	case "down", "j":
		if m.cursor < len(m.presets)-1 {
			m.cursor++
		}
	case "enter", " ":
		m.selected = m.presets[m.cursor]
		m.params, _ = config.GetPreset(m.selected)
		m.state, m.fieldCursor, m.err = stateConfig, 0, nil
	}
	return m, nil
}

func (m model) configKey(msg tea.KeyMsg) (model, tea.Cmd) {
	f := fields[m.fieldCursor]
	if m.editing {
		switch msg.String() {
		case "enter":
			if v, err := strconv.ParseFloat(m.editBuf, 64); err == nil {
				f.set(&m.params, v)
			}
			m.editing, m.editBuf = false, ""
		case "esc":
			m.editing, m.editBuf = false, ""
		case "backspace":
			if len(m.editBuf) > 0 {
				m.editBuf = m.editBuf[:len(m.editBuf)-1]
			}
		default:
			if len(msg.String()) == 1 {
				c := msg.String()[0]
				if (c >= '0' && c <= '9') || c == '.' || c == '-' || c == 'e' {
					m.editBuf += string(c)
				}
			}
		}
		return m, nil
	}
	switch msg.String() {
	case "q", "esc":
		m.state = stateMenu
	case "up", "k":
		if m.fieldCursor > 0 {
			m.fieldCursor--
		}
	case "down", "j":
		if m.fieldCursor < len(fields)-1 {
			m.fieldCursor++
		}
	case "enter", " ":
		m.editing, m.editBuf = true, strconv.FormatFloat(f.get(&m.params), 'g', -1, 64)
	case "left", "h":
		f.set(&m.params, f.get(&m.params)-f.step)
	case "right", "l":
		f.set(&m.params, f.get(&m.params)+f.step)
	case "s":
		return m.start()
	}
	return m, nil
}

func (m model) start() (model, tea.Cmd) {
	live, err := NewModel(m.params)
	if err != nil {
		m.err = err
		return m, nil
	}
	m.liveModel = live
	m.state = stateSim
	return m, m.liveModel.Init()
}

func (m model) View() string {
	switch m.state {
	case stateMenu:
		return m.viewMenu()
	case stateConfig:
		return m.viewConfig()
	case stateSim:
		return m.liveModel.View()
	}
	return ""
}

func keys(pairs ...string) string {
	var b strings.Builder
	for i := 0; i+1 < len(pairs); i += 2 {
		b.WriteString(keyStyle.Render(pairs[i]) + idleStyle.Render(" "+pairs[i+1]+"  "))
	}
	return b.String()
}

func (m model) viewMenu() string {
	var b strings.Builder
	b.WriteString("\n\n    " + titleStyle.Render("CHSIM") + "\n    " + subStyle.Render("cahn-hilliard phase separation") + "\n    " + subStyle.Render("──────────────────────────────") + "\n\n")
	for i, name := range m.presets {
		desc := presetInfo[name]
		if i == m.cursor {
			b.WriteString(fmt.Sprintf("    %s %s  %s\n", cursorStyle.Render("▸"), selectedStyle.Render(fmt.Sprintf("%-12s", name)), valueStyle.Render(desc)))
		} else {
			b.WriteString(fmt.Sprintf("      %s  %s\n", idleStyle.Render(fmt.Sprintf("%-12s", name)), idleStyle.Render(desc)))
		}
	}
	b.WriteString("\n    " + keys("j/k", "navigate", "enter", "select", "q", "quit") + "\n")
	return b.String()
}

func (m model) viewConfig() string {
	var b strings.Builder
	b.WriteString("\n\n    " + titleStyle.Render(strings.ToUpper(m.selected)) + "\n    " + subStyle.Render(presetInfo[m.selected]) + "\n    " + subStyle.Render("──────────────────────────────") + "\n\n")
	for i, f := range fields {
		valStr := fmt.Sprintf("%10.4g", f.get(&m.params))
		if m.editing && i == m.fieldCursor {
			valStr = fmt.Sprintf("%10s", m.editBuf+"_")
		}
		if i == m.fieldCursor {
			b.WriteString(fmt.Sprintf("    %s %s %s\n", cursorStyle.Render("▸"), selectedStyle.Render(fmt.Sprintf("%-10s", f.name)), valueStyle.Render(valStr)))
		} else {
			b.WriteString(fmt.Sprintf("      %s %s\n", idleStyle.Render(fmt.Sprintf("%-10s", f.name)), idleStyle.Render(valStr)))
		}
	}
	b.WriteString("\n    " + subStyle.Render(fmt.Sprintf("stability limit dt < %.3g", m.params.StabilityLimit())) + "\n")
	if m.err != nil {
		b.WriteString("    " + errStyle.Render(m.err.Error()) + "\n")
	}
	b.WriteString("\n    " + keys("j/k", "select", "h/l", "adjust", "s", "start", "esc", "back") + "\n")
	return b.String()
}

// RunInteractive opens the preset menu.
func RunInteractive() error {
	_, err := tea.NewProgram(NewInteractiveApp(), tea.WithAltScreen()).Run()
	return err
}
