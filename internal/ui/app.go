package ui

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/TimelordUK/loghew/internal/config"
	"github.com/TimelordUK/loghew/internal/engine"
	"github.com/TimelordUK/loghew/internal/export"
	"github.com/TimelordUK/loghew/internal/render"
	"github.com/TimelordUK/loghew/internal/view"
)

// Mode represents the current UI mode
type Mode int

const (
	ModeNormal Mode = iota
	ModeSearch
	ModeRegexSearch
	ModeFilter
	ModeGoto
	ModeTime
)

// tickMsg drives the engine once per frame
type tickMsg time.Time

// Model is the main application model
type Model struct {
	engine   *engine.Engine
	viewport *view.Viewport
	cfg      *config.Config
	input    textinput.Model

	mode   Mode
	width  int
	height int

	tick time.Duration

	statusStyle lipgloss.Style
	helpStyle   lipgloss.Style

	// Time expression applied once indexing has progressed enough, for the
	// -t flag.
	pendingTime string

	notice string
	err    error
}

// SetInitialTime arranges a time jump once the initial scan completes.
func (m *Model) SetInitialTime(input string) {
	m.pendingTime = input
}

// NewModel creates a new application model around an open engine
func NewModel(eng *engine.Engine, cfg *config.Config) *Model {
	vp := view.NewViewport(80, 24)
	vp.SetProvider(eng)
	vp.SetShowLineNumbers(cfg.Display.ShowLineNumbers)

	if path := eng.Path(); path != "" && render.IsSyntaxHighlightable(path) {
		vp.SetRenderer(render.NewSyntaxRenderer(path))
	} else {
		vp.SetRenderer(render.NewLevelRenderer(cfg))
	}

	ti := textinput.New()
	ti.CharLimit = 256

	return &Model{
		engine:   eng,
		viewport: vp,
		cfg:      cfg,
		input:    ti,
		mode:     ModeNormal,
		tick:     time.Duration(cfg.Display.TickMs) * time.Millisecond,
		statusStyle: lipgloss.NewStyle().
			Background(lipgloss.Color(cfg.Theme.StatusBar)).
			Foreground(lipgloss.Color(cfg.Theme.StatusBarText)),
		helpStyle: lipgloss.NewStyle().Foreground(lipgloss.Color(cfg.Theme.LineNumbers)),
	}
}

func (m *Model) tickCmd() tea.Cmd {
	return tea.Tick(m.tick, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// Init implements tea.Model
func (m *Model) Init() tea.Cmd {
	return m.tickCmd()
}

// Update implements tea.Model
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tickMsg:
		m.engine.Tick()
		scanned := m.engine.ConsumeScanComplete()
		if m.pendingTime != "" && !m.engine.Scanning() && !m.engine.Parsing() {
			m.submit(ModeTime, m.pendingTime)
			m.pendingTime = ""
		}
		if scanned && m.engine.Follow() {
			m.viewport.GotoBottom()
		}
		if m.engine.Follow() && !m.engine.Scanning() {
			m.viewport.GotoBottom()
		}
		return m, m.tickCmd()

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		// Reserve 2 lines for status bar and help
		m.viewport.SetSize(msg.Width, msg.Height-2)
		return m, nil
	}

	return m, nil
}

func (m *Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.mode != ModeNormal {
		return m.handleInputKey(msg)
	}

	m.notice = ""
	m.err = nil

	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit

	case "j", "down":
		m.engine.SetFollow(false)
		m.viewport.ScrollDown(1)
	case "k", "up":
		m.engine.SetFollow(false)
		m.viewport.ScrollUp(1)

	case "d", "ctrl+d", "pgdown", " ":
		m.engine.SetFollow(false)
		m.viewport.PageDown()
	case "u", "ctrl+u", "pgup":
		m.engine.SetFollow(false)
		m.viewport.PageUp()

	case "g", "home":
		m.engine.SetFollow(false)
		m.viewport.GotoTop()
	case "G", "end":
		m.viewport.GotoBottom()

	case "F":
		m.engine.SetFollow(!m.engine.Follow())
		if m.engine.Follow() {
			m.viewport.GotoBottom()
		}

	case "/":
		return m.enterInput(ModeSearch, "Search...")
	case "ctrl+r":
		return m.enterInput(ModeRegexSearch, "Regex search...")
	case "&":
		return m.enterInput(ModeFilter, "Filter (space=AND, !=negate)...")
	case ":":
		return m.enterInput(ModeGoto, "Line number...")
	case "t":
		return m.enterInput(ModeTime, "Time (15:04:05, -5m, +30s)...")

	case "n":
		m.gotoMatch(func() (int, bool) { return m.searchNext() })
	case "N":
		m.gotoMatch(func() (int, bool) { return m.searchPrev() })

	case "c":
		m.engine.ClearFilter()
		m.viewport.GotoTop()

	case "esc":
		m.engine.ClearSearch()
		m.viewport.ClearHighlight()

	case "w":
		path, err := export.WriteView(m.engine, m.engine.Path())
		if err != nil {
			m.err = err
		} else {
			m.notice = "exported to " + path
		}

	case "l":
		m.cfg.Display.ShowLineNumbers = !m.cfg.Display.ShowLineNumbers
		m.viewport.SetShowLineNumbers(m.cfg.Display.ShowLineNumbers)
	}

	return m, nil
}

func (m *Model) enterInput(mode Mode, placeholder string) (tea.Model, tea.Cmd) {
	m.mode = mode
	m.input.SetValue("")
	m.input.Placeholder = placeholder
	m.input.Focus()
	return m, textinput.Blink
}

func (m *Model) handleInputKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "enter":
		value := m.input.Value()
		mode := m.mode
		m.leaveInput()
		m.submit(mode, value)
		return m, nil

	case "esc", "ctrl+c":
		m.leaveInput()
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *Model) leaveInput() {
	m.mode = ModeNormal
	m.input.Blur()
}

func (m *Model) submit(mode Mode, value string) {
	m.notice = ""
	m.err = nil

	switch mode {
	case ModeSearch:
		m.err = m.engine.StartSearch(value, true)
	case ModeRegexSearch:
		m.err = m.engine.StartSearch(value, false)
	case ModeFilter:
		m.err = m.engine.StartFilter(value)
		if m.err == nil {
			m.viewport.GotoTop()
		}
	case ModeGoto:
		var lineNum int
		if _, err := fmt.Sscanf(value, "%d", &lineNum); err == nil && lineNum > 0 {
			m.engine.SetFollow(false)
			m.gotoOriginal(lineNum - 1)
		}
	case ModeTime:
		line, err := m.engine.JumpToTime(value, m.topOriginal())
		if err != nil {
			m.err = err
			return
		}
		m.engine.SetFollow(false)
		m.gotoOriginal(line)
	}
}

func (m *Model) searchNext() (int, bool) {
	s := m.engine.Search()
	if s == nil {
		return 0, false
	}
	if _, ok := s.CurrentLine(); !ok {
		return s.JumpToNearest(m.topOriginal())
	}
	return s.Next()
}

func (m *Model) searchPrev() (int, bool) {
	s := m.engine.Search()
	if s == nil {
		return 0, false
	}
	if _, ok := s.CurrentLine(); !ok {
		return s.JumpToNearest(m.topOriginal())
	}
	return s.Prev()
}

func (m *Model) gotoMatch(next func() (int, bool)) {
	line, ok := next()
	if !ok {
		return
	}
	m.engine.SetFollow(false)
	m.viewport.SetHighlightedLine(line)
	m.gotoOriginal(line)
}

// topOriginal is the original line index at the top of the viewport.
func (m *Model) topOriginal() int {
	return m.engine.ActualLine(m.viewport.CurrentLine())
}

// gotoOriginal scrolls to an original line index, translating through the
// filter when one is active.
func (m *Model) gotoOriginal(orig int) {
	if f := m.engine.Filter(); f != nil {
		matches := f.Matches()
		vis := sort.SearchInts(matches, orig)
		if vis >= len(matches) {
			vis = len(matches) - 1
		}
		if vis < 0 {
			vis = 0
		}
		m.viewport.GotoLine(vis)
		return
	}
	m.viewport.GotoLine(orig)
}

// View implements tea.Model
func (m *Model) View() string {
	var builder strings.Builder

	builder.WriteString(m.viewport.Render())
	builder.WriteString("\n")

	builder.WriteString(m.statusStyle.Width(m.width).Render(m.statusLine()))
	builder.WriteString("\n")

	help := "j/k:scroll  g/G:top/bottom  /:search  &:filter  t:time  n/N:match  F:follow  w:export  q:quit"
	builder.WriteString(m.helpStyle.Render(help))

	return builder.String()
}

func (m *Model) statusLine() string {
	if m.mode != ModeNormal {
		prefix := map[Mode]string{
			ModeSearch:      "/",
			ModeRegexSearch: "r/",
			ModeFilter:      "&",
			ModeGoto:        ":",
			ModeTime:        "t:",
		}[m.mode]
		return prefix + m.input.View()
	}

	name := m.engine.Path()
	if name == "" {
		name = "(stdin)"
	}

	pos := fmt.Sprintf("L%d/%d", m.viewport.CurrentLine()+1, m.engine.VisibleCount())
	percent := fmt.Sprintf("%.0f%%", m.viewport.PercentScrolled())

	counts := m.engine.LevelCounts()
	levels := fmt.Sprintf("E%d W%d I%d", counts.Error, counts.Warn, counts.Info)

	var extras []string
	if m.engine.Follow() {
		extras = append(extras, "FOLLOW")
	}
	if m.engine.Scanning() {
		extras = append(extras, fmt.Sprintf("scanning %.0f%%", m.engine.ScanProgress()*100))
	} else if m.engine.Parsing() {
		extras = append(extras, fmt.Sprintf("parsing %.0f%%", m.engine.ParseProgress()*100))
	}
	if s := m.engine.Search(); s != nil {
		if s.Active() {
			extras = append(extras, fmt.Sprintf("searching %.0f%%", s.Progress()*100))
		} else {
			extras = append(extras, fmt.Sprintf("/%s [%d]", s.Pattern, s.MatchCount()))
		}
	}
	if f := m.engine.Filter(); f != nil {
		if f.Active() {
			extras = append(extras, fmt.Sprintf("filtering %.0f%%", f.Progress()*100))
		} else {
			extras = append(extras, fmt.Sprintf("&%s [%d]", f.Expr, f.MatchCount()))
		}
	}
	if m.err != nil {
		extras = append(extras, "error: "+m.err.Error())
	} else if m.notice != "" {
		extras = append(extras, m.notice)
	}

	status := fmt.Sprintf(" %s  %s  %s  %s", name, pos, percent, levels)
	if len(extras) > 0 {
		status += "  " + strings.Join(extras, "  ")
	}
	return status
}

// Close cleans up resources
func (m *Model) Close() error {
	return m.engine.Close()
}
