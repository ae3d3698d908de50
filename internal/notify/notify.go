// Package notify implements the transient notification stack shown in the
// corner of the dashboard.
package notify

import (
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/betbot/tradedash/internal/protocol"
)

// DefaultMessage replaces an empty notification text.
const DefaultMessage = "Notification"

// Timing controls the three phases of a notification.
type Timing struct {
	Appear  time.Duration // 出现前的延迟
	Visible time.Duration // 完全可见的时长
	Leave   time.Duration // 淡出动画时长
}

// DefaultTiming returns 100ms / 5s / 500ms.
func DefaultTiming() Timing {
	return Timing{
		Appear:  100 * time.Millisecond,
		Visible: 5 * time.Second,
		Leave:   500 * time.Millisecond,
	}
}

type phase int

const (
	phaseAppearing phase = iota
	phaseVisible
	phaseLeaving
	phaseRemoved
)

// Item is one notification on the stack.
type Item struct {
	ID       int
	Message  string
	Severity protocol.Severity
	phase    phase
}

// Shown reports whether the item is fully visible (not fading in or out).
func (i Item) Shown() bool {
	return i.phase == phaseVisible
}

// tickMsg advances one item to its next phase.
type tickMsg struct {
	id   int
	next phase
}

// Surface owns the notification stack. It is only touched from the
// bubbletea Update loop.
type Surface struct {
	timing Timing
	items  []Item
	nextID int
}

// New creates a Surface. Zero durations fall back to the defaults.
func New(timing Timing) *Surface {
	def := DefaultTiming()
	if timing.Appear <= 0 {
		timing.Appear = def.Appear
	}
	if timing.Visible <= 0 {
		timing.Visible = def.Visible
	}
	if timing.Leave <= 0 {
		timing.Leave = def.Leave
	}
	return &Surface{timing: timing}
}

// Notify pushes a message. Unknown severities become info. The returned
// command drives the item's lifecycle.
func (s *Surface) Notify(message string, severity protocol.Severity) tea.Cmd {
	message = strings.TrimSpace(message)
	if message == "" {
		message = DefaultMessage
	}
	s.nextID++
	item := Item{
		ID:       s.nextID,
		Message:  message,
		Severity: protocol.ParseSeverity(string(severity)),
		phase:    phaseAppearing,
	}
	s.items = append(s.items, item)
	return s.schedule(item.ID, phaseVisible, s.timing.Appear)
}

func (s *Surface) schedule(id int, next phase, after time.Duration) tea.Cmd {
	return tea.Tick(after, func(time.Time) tea.Msg {
		return tickMsg{id: id, next: next}
	})
}

// Update handles the surface's own tick messages and ignores everything else.
func (s *Surface) Update(msg tea.Msg) tea.Cmd {
	tick, ok := msg.(tickMsg)
	if !ok {
		return nil
	}
	idx := s.indexOf(tick.id)
	if idx < 0 {
		return nil
	}

	switch tick.next {
	case phaseVisible:
		s.items[idx].phase = phaseVisible
		return s.schedule(tick.id, phaseLeaving, s.timing.Visible)
	case phaseLeaving:
		s.items[idx].phase = phaseLeaving
		return s.schedule(tick.id, phaseRemoved, s.timing.Leave)
	default:
		s.items = append(s.items[:idx], s.items[idx+1:]...)
		return nil
	}
}

func (s *Surface) indexOf(id int) int {
	for i, it := range s.items {
		if it.ID == id {
			return i
		}
	}
	return -1
}

// Items returns a copy of the live items, oldest first.
func (s *Surface) Items() []Item {
	out := make([]Item, len(s.items))
	copy(out, s.items)
	return out
}

// Len is the number of live items.
func (s *Surface) Len() int {
	return len(s.items)
}

var (
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("46")).Bold(true)
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	infoStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("39")).Bold(true)
	fadedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	boxStyle     = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
)

func styleFor(sev protocol.Severity) (lipgloss.Style, string) {
	switch sev {
	case protocol.SeveritySuccess:
		return successStyle, "✔"
	case protocol.SeverityError:
		return errorStyle, "✖"
	default:
		return infoStyle, "ℹ"
	}
}

// View renders the stack, newest last. Items fading in or out are dimmed.
func (s *Surface) View(width int) string {
	if len(s.items) == 0 {
		return ""
	}
	lines := make([]string, 0, len(s.items))
	for _, it := range s.items {
		style, icon := styleFor(it.Severity)
		text := icon + " " + it.Message
		if it.phase != phaseVisible {
			text = fadedStyle.Render(text)
		} else {
			text = style.Render(text)
		}
		box := boxStyle.BorderForeground(style.GetForeground())
		if width > 4 {
			box = box.MaxWidth(width)
		}
		lines = append(lines, box.Render(text))
	}
	return lipgloss.JoinVertical(lipgloss.Right, lines...)
}
