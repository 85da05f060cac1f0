package view

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/TimelordUK/loghew/internal/engine"
	"github.com/TimelordUK/loghew/internal/render"
)

// LineProvider is what the viewport needs from the engine: the visible
// (possibly filtered) lines in order.
type LineProvider interface {
	VisibleCount() int
	VisibleLine(i int) (engine.LineInfo, bool)
}

// Viewport manages the visible portion of content. It knows nothing about
// indexing or filters; it only displays lines from a LineProvider.
type Viewport struct {
	provider LineProvider
	renderer render.Renderer

	width  int
	height int

	scrollOffset int

	lineNumberStyle lipgloss.Style
	highlightStyle  lipgloss.Style

	showLineNumbers bool

	// Highlighted line (original index, -1 for none)
	highlightedLine int
}

// NewViewport creates a new viewport
func NewViewport(width, height int) *Viewport {
	return &Viewport{
		width:           width,
		height:          height,
		showLineNumbers: true,
		lineNumberStyle: lipgloss.NewStyle().Foreground(lipgloss.Color("240")),
		highlightStyle:  lipgloss.NewStyle().Foreground(lipgloss.Color("226")).Bold(true),
		renderer:        render.NewPlainRenderer(),
		highlightedLine: -1,
	}
}

// SetProvider sets the line provider
func (v *Viewport) SetProvider(p LineProvider) {
	v.provider = p
	v.scrollOffset = 0
}

// SetRenderer sets the line renderer
func (v *Viewport) SetRenderer(r render.Renderer) {
	v.renderer = r
}

// SetHighlightedLine sets which original line index to highlight (-1 for none)
func (v *Viewport) SetHighlightedLine(originalIndex int) {
	v.highlightedLine = originalIndex
}

// ClearHighlight removes any line highlight
func (v *Viewport) ClearHighlight() {
	v.highlightedLine = -1
}

// SetShowLineNumbers toggles line numbers
func (v *Viewport) SetShowLineNumbers(show bool) {
	v.showLineNumbers = show
}

// SetSize updates viewport dimensions
func (v *Viewport) SetSize(width, height int) {
	v.width = width
	v.height = height
	v.clampScroll()
}

// ScrollDown scrolls down by n lines
func (v *Viewport) ScrollDown(n int) {
	v.scrollOffset += n
	v.clampScroll()
}

// ScrollUp scrolls up by n lines
func (v *Viewport) ScrollUp(n int) {
	v.scrollOffset -= n
	v.clampScroll()
}

// PageDown scrolls down by one page
func (v *Viewport) PageDown() {
	v.ScrollDown(v.height - 1)
}

// PageUp scrolls up by one page
func (v *Viewport) PageUp() {
	v.ScrollUp(v.height - 1)
}

// GotoTop scrolls to the beginning
func (v *Viewport) GotoTop() {
	v.scrollOffset = 0
}

// GotoBottom scrolls to the end
func (v *Viewport) GotoBottom() {
	if v.provider == nil {
		return
	}
	v.scrollOffset = v.provider.VisibleCount() - v.height
	v.clampScroll()
}

// GotoLine scrolls so the given visible index is at the top
func (v *Viewport) GotoLine(line int) {
	v.scrollOffset = line
	v.clampScroll()
}

// CurrentLine returns the current top visible index
func (v *Viewport) CurrentLine() int {
	return v.scrollOffset
}

func (v *Viewport) clampScroll() {
	if v.provider == nil {
		v.scrollOffset = 0
		return
	}
	maxScroll := v.provider.VisibleCount() - v.height
	if maxScroll < 0 {
		maxScroll = 0
	}
	if v.scrollOffset > maxScroll {
		v.scrollOffset = maxScroll
	}
	if v.scrollOffset < 0 {
		v.scrollOffset = 0
	}
}

// Render returns the viewport content as a string
func (v *Viewport) Render() string {
	if v.provider == nil {
		return ""
	}

	var builder strings.Builder

	visible := v.provider.VisibleCount()
	numWidth := len(fmt.Sprintf("%d", visible))
	if numWidth < 1 {
		numWidth = 1
	}

	rows := 0
	for ; rows < v.height; rows++ {
		info, ok := v.provider.VisibleLine(v.scrollOffset + rows)
		if !ok {
			break
		}
		if rows > 0 {
			builder.WriteString("\n")
		}

		isHighlighted := v.highlightedLine >= 0 && info.Original == v.highlightedLine

		if v.showLineNumbers {
			numStr := fmt.Sprintf("%*d ", numWidth, info.Original+1)
			if isHighlighted {
				builder.WriteString(v.highlightStyle.Render(numStr))
			} else {
				builder.WriteString(v.lineNumberStyle.Render(numStr))
			}
		}

		builder.WriteString(v.renderer.Render(info.Text, info.Level, info.EntryStart))
	}

	// Pad with empty lines if needed
	for i := rows; i < v.height; i++ {
		if i > 0 || rows > 0 {
			builder.WriteString("\n")
		}
		builder.WriteString("~")
	}

	return builder.String()
}

// PercentScrolled returns how far through the content we are
func (v *Viewport) PercentScrolled() float64 {
	if v.provider == nil || v.provider.VisibleCount() == 0 {
		return 0
	}
	total := v.provider.VisibleCount()
	if total <= v.height {
		return 100
	}
	return float64(v.scrollOffset) / float64(total-v.height) * 100
}
