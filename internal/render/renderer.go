package render

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/TimelordUK/loghew/internal/config"
	"github.com/TimelordUK/loghew/pkg/logformat"
)

// Renderer applies styling to line content
type Renderer interface {
	Render(text string, level logformat.Level, entryStart bool) string
}

// LevelRenderer colors lines based on detected log level; continuation
// lines are dimmed so multi-line entries read as one record
type LevelRenderer struct {
	styles       map[logformat.Level]lipgloss.Style
	continuation lipgloss.Style
}

// NewLevelRenderer creates a renderer from config
func NewLevelRenderer(cfg *config.Config) *LevelRenderer {
	styles := map[logformat.Level]lipgloss.Style{
		logformat.LevelUnknown: lipgloss.NewStyle(),
		logformat.LevelTrace:   lipgloss.NewStyle().Foreground(lipgloss.Color(cfg.Theme.Levels.Trace)),
		logformat.LevelDebug:   lipgloss.NewStyle().Foreground(lipgloss.Color(cfg.Theme.Levels.Debug)),
		logformat.LevelInfo:    lipgloss.NewStyle().Foreground(lipgloss.Color(cfg.Theme.Levels.Info)),
		logformat.LevelWarn:    lipgloss.NewStyle().Foreground(lipgloss.Color(cfg.Theme.Levels.Warn)),
		logformat.LevelError:   lipgloss.NewStyle().Foreground(lipgloss.Color(cfg.Theme.Levels.Error)),
	}

	return &LevelRenderer{
		styles:       styles,
		continuation: lipgloss.NewStyle().Foreground(lipgloss.Color(cfg.Theme.Continuation)),
	}
}

// Render applies level styling to a line
func (r *LevelRenderer) Render(text string, level logformat.Level, entryStart bool) string {
	if !entryStart {
		return r.continuation.Render(text)
	}
	return r.styles[level].Render(text)
}

// PlainRenderer renders without styling
type PlainRenderer struct{}

// NewPlainRenderer creates a plain renderer
func NewPlainRenderer() *PlainRenderer {
	return &PlainRenderer{}
}

// Render returns the content as-is
func (r *PlainRenderer) Render(text string, level logformat.Level, entryStart bool) string {
	return text
}
