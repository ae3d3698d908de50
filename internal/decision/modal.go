// Package decision holds the two human-in-the-loop modals: confirming a new
// trade opportunity and acting on a reanalysis verdict.
package decision

import (
	"errors"
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

// Animation delays of the overlay.
const (
	EnterDelay = 10 * time.Millisecond
	ExitDelay  = 250 * time.Millisecond
)

// ErrNothingPending is returned when an action targets a hidden modal.
var ErrNothingPending = errors.New("no pending decision")

// State is the externally visible modal state.
type State int

const (
	Hidden State = iota
	Showing
	Accepted
	Dismissed
)

func (s State) String() string {
	switch s {
	case Showing:
		return "showing"
	case Accepted:
		return "accepted"
	case Dismissed:
		return "dismissed"
	default:
		return "hidden"
	}
}

// phase 仅影响绘制：进入/显示/离开/消失
type phase int

const (
	phaseGone phase = iota
	phaseEntering
	phaseShown
	phaseLeaving
)

// animMsg advances a modal's animation. Stale generations are ignored.
type animMsg struct {
	name string
	gen  int
	next phase
}

// Modal is a single-slot decision holder. A new Show replaces whatever is
// pending. It is only touched from the bubbletea Update loop.
type Modal[T any] struct {
	name    string
	state   State
	outcome State
	pending T
	display T
	phase   phase
	gen     int
}

// NewModal creates a hidden modal. name keys its animation messages.
func NewModal[T any](name string) *Modal[T] {
	return &Modal[T]{name: name}
}

// Show holds v and makes the modal visible.
func (m *Modal[T]) Show(v T) tea.Cmd {
	m.pending = v
	m.display = v
	m.state = Showing
	if m.phase == phaseShown || m.phase == phaseEntering {
		return nil
	}
	m.phase = phaseEntering
	m.gen++
	return m.animate(phaseShown, EnterDelay)
}

// resolve records the outcome and hides the modal.
func (m *Modal[T]) resolve(outcome State) tea.Cmd {
	if m.state != Showing {
		return nil
	}
	m.outcome = outcome
	return m.Hide()
}

// Hide clears the pending value. Calling it on a hidden modal does nothing.
func (m *Modal[T]) Hide() tea.Cmd {
	var zero T
	m.pending = zero
	m.state = Hidden
	if m.phase == phaseGone || m.phase == phaseLeaving {
		return nil
	}
	m.phase = phaseLeaving
	m.gen++
	return m.animate(phaseGone, ExitDelay)
}

func (m *Modal[T]) animate(next phase, after time.Duration) tea.Cmd {
	msg := animMsg{name: m.name, gen: m.gen, next: next}
	return tea.Tick(after, func(time.Time) tea.Msg { return msg })
}

// Update consumes the modal's animation messages.
func (m *Modal[T]) Update(msg tea.Msg) {
	a, ok := msg.(animMsg)
	if !ok || a.name != m.name || a.gen != m.gen {
		return
	}
	m.phase = a.next
	if a.next == phaseGone {
		var zero T
		m.display = zero
	}
}

// State is Hidden or Showing.
func (m *Modal[T]) State() State {
	return m.state
}

// Outcome is how the last shown value was resolved (Accepted or Dismissed).
func (m *Modal[T]) Outcome() State {
	return m.outcome
}

// Pending returns the held value while showing.
func (m *Modal[T]) Pending() (T, bool) {
	return m.pending, m.state == Showing
}

// Display is the value to draw. It outlives Hide until the exit animation
// finishes.
func (m *Modal[T]) Display() T {
	return m.display
}

// Visible reports whether the overlay should be drawn, including while it
// fades out.
func (m *Modal[T]) Visible() bool {
	return m.phase != phaseGone
}

// Settled reports the overlay is fully entered.
func (m *Modal[T]) Settled() bool {
	return m.phase == phaseShown
}
