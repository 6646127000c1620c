// Package tui renders a live view of one browsing context in the terminal.
// The terminal window stands in for the browser viewport.
package tui

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"pkt.systems/foldscreen/core"
	"pkt.systems/foldscreen/schema"
)

// Options controls how terminal cells map to CSS pixels.
type Options struct {
	CellWidth  float64
	CellHeight float64
	// FoldStep is the fold and shell size change per key press, in px.
	FoldStep float64
}

func (o Options) withDefaults() Options {
	if o.CellWidth <= 0 {
		o.CellWidth = 8
	}
	if o.CellHeight <= 0 {
		o.CellHeight = 16
	}
	if o.FoldStep <= 0 {
		o.FoldStep = 8
	}
	return o
}

const chromeRows = 3

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.AdaptiveColor{Light: "25", Dark: "75"})
	statusStyle = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "160", Dark: "203"})
	helpStyle   = lipgloss.NewStyle().Faint(true)
	screenStyle = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "28", Dark: "114"})
	foldStyle   = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "240", Dark: "244"})
)

type changeMsg core.Notification

func waitChange(ch <-chan core.Notification) tea.Cmd {
	return func() tea.Msg {
		note, ok := <-ch
		if !ok {
			return nil
		}
		return changeMsg(note)
	}
}

// Model is the bubbletea model of the watch view.
type Model struct {
	emu     *core.Emulator
	updates chan<- schema.UpdateMessage
	notes   <-chan core.Notification
	opts    Options

	width, height int
	state         schema.State
	viewport      schema.Viewport
	segments      []schema.Segment
	changes       int
	lastSeq       uint64
	status        string
}

// New builds the model. Update messages are sent on updates, which should be
// attached to the emulator's bridge; notes is a hub watch channel.
func New(emu *core.Emulator, updates chan<- schema.UpdateMessage, notes <-chan core.Notification, opts Options) Model {
	m := Model{
		emu:     emu,
		updates: updates,
		notes:   notes,
		opts:    opts.withDefaults(),
	}
	m.refresh()
	return m
}

// Run attaches a terminal view to emu until the user quits or ctx is done.
func Run(ctx context.Context, emu *core.Emulator, opts Options) error {
	updates := make(chan schema.UpdateMessage, 8)
	if err := emu.Bridge().Attach(ctx, updates); err != nil {
		return err
	}
	notes, cancel := emu.Hub().Watch(0)
	defer cancel()
	m := New(emu, updates, notes, opts)
	p := tea.NewProgram(&m, tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}

func (m Model) Init() tea.Cmd {
	if m.notes == nil {
		return nil
	}
	return waitChange(m.notes)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch v := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = v.Width, v.Height
		viewport := schema.Viewport{
			Width:  float64(v.Width) * m.opts.CellWidth,
			Height: float64(max(v.Height-chromeRows, 0)) * m.opts.CellHeight,
		}
		if err := m.emu.Resize(viewport); err != nil {
			m.status = err.Error()
		} else {
			m.viewport = viewport
			m.status = "resizing"
		}
		return m, nil
	case changeMsg:
		m.changes++
		m.lastSeq = v.Seq
		m.status = ""
		m.refresh()
		return m, waitChange(m.notes)
	case tea.KeyMsg:
		switch v.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		case "m", "tab":
			mode := string(m.state.SpanningMode.Next())
			m.send(schema.StatePatch{SpanningMode: &mode})
		case "+", "=", "right":
			m.send(schema.StatePatch{FoldSize: m.state.FoldSize + m.opts.FoldStep})
		case "-", "_", "left":
			m.send(schema.StatePatch{FoldSize: math.Max(m.state.FoldSize-m.opts.FoldStep, 0)})
		case "S", "up":
			m.send(schema.StatePatch{BrowserShellSize: m.state.BrowserShellSize + m.opts.FoldStep})
		case "s", "down":
			m.send(schema.StatePatch{BrowserShellSize: math.Max(m.state.BrowserShellSize-m.opts.FoldStep, 0)})
		case "r":
			m.emu.Invalidate()
		}
		return m, nil
	}
	return m, nil
}

func (m *Model) send(patch schema.StatePatch) {
	if m.updates == nil {
		return
	}
	select {
	case m.updates <- schema.UpdateMessage{Action: schema.ActionUpdate, Value: patch}:
		m.status = "update sent"
	default:
		m.status = "update queue full"
	}
}

func (m *Model) refresh() {
	m.state = m.emu.Snapshot()
	m.viewport = m.emu.Viewport()
	m.segments = m.emu.Segments()
}

func (m Model) View() string {
	var b strings.Builder
	header := fmt.Sprintf("%s  %s  fold %gpx  shell %gpx  viewport %gx%g  changes %d",
		m.emu.ID(), m.state.SpanningMode, m.state.FoldSize, m.state.BrowserShellSize,
		m.viewport.Width, m.viewport.Height, m.changes)
	b.WriteString(headerStyle.Render(header))
	b.WriteString("\n")
	b.WriteString(m.renderSegments())
	if m.status != "" {
		b.WriteString(statusStyle.Render(m.status))
	}
	b.WriteString("\n")
	b.WriteString(helpStyle.Render("m: mode  +/-: fold  S/s: shell  r: invalidate  q: quit"))
	return b.String()
}

// renderSegments draws the segments scaled to the terminal grid. Screens are
// outlined; the fold is shaded.
func (m Model) renderSegments() string {
	rows := m.height - chromeRows
	cols := m.width
	if rows <= 0 || cols <= 0 {
		return ""
	}
	grid := make([][]rune, rows)
	for i := range grid {
		grid[i] = []rune(strings.Repeat(" ", cols))
	}
	kinds := make([][]byte, rows)
	for i := range kinds {
		kinds[i] = make([]byte, cols)
	}
	for i, seg := range m.segments {
		top, left, bottom, right := m.cells(seg, rows, cols)
		if bottom < top || right < left {
			continue
		}
		isFold := len(m.segments) == 3 && i == 1
		for r := top; r <= bottom; r++ {
			for c := left; c <= right; c++ {
				switch {
				case isFold:
					grid[r][c] = '░'
					kinds[r][c] = 'f'
				case r == top || r == bottom:
					grid[r][c] = '─'
					kinds[r][c] = 's'
				case c == left || c == right:
					grid[r][c] = '│'
					kinds[r][c] = 's'
				}
			}
		}
	}
	var b strings.Builder
	for r := range grid {
		start := 0
		for c := 1; c <= cols; c++ {
			if c < cols && kinds[r][c] == kinds[r][start] {
				continue
			}
			chunk := string(grid[r][start:c])
			switch kinds[r][start] {
			case 'f':
				chunk = foldStyle.Render(chunk)
			case 's':
				chunk = screenStyle.Render(chunk)
			}
			b.WriteString(chunk)
			start = c
		}
		b.WriteString("\n")
	}
	return b.String()
}

func (m Model) cells(seg schema.Segment, rows, cols int) (top, left, bottom, right int) {
	top = clamp(int(math.Floor(seg.Top/m.opts.CellHeight)), 0, rows-1)
	left = clamp(int(math.Floor(seg.Left/m.opts.CellWidth)), 0, cols-1)
	bottom = clamp(int(math.Ceil(seg.Bottom()/m.opts.CellHeight))-1, -1, rows-1)
	right = clamp(int(math.Ceil(seg.Right()/m.opts.CellWidth))-1, -1, cols-1)
	return top, left, bottom, right
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
