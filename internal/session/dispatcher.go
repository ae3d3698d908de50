package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/betbot/tradedash/internal/protocol"
)

var (
	// ErrUnknownEvent is returned for events with no registered handler.
	ErrUnknownEvent = errors.New("unknown event")
	errEmptyPayload = errors.New("empty payload")
)

// Handler turns an event payload into a UI message.
type Handler func(data json.RawMessage) (tea.Msg, error)

// Dispatcher routes inbound events by name.
type Dispatcher struct {
	handlers map[string]Handler
}

// NewDispatcher returns a dispatcher with a handler for every inbound event.
func NewDispatcher() *Dispatcher {
	d := &Dispatcher{handlers: make(map[string]Handler)}
	d.Register(protocol.EventDashboardData, decodeInto(func(s protocol.Snapshot) tea.Msg {
		return SnapshotMsg{Snapshot: s}
	}))
	d.Register(protocol.EventScanStatus, decodeInto(func(s protocol.ScanStatus) tea.Msg {
		return ScanStatusMsg{Status: s}
	}))
	d.Register(protocol.EventNewOpportunity, decodeInto(func(op protocol.Opportunity) tea.Msg {
		return OpportunityMsg{Opportunity: op}
	}))
	d.Register(protocol.EventReanalysisResult, decodeInto(func(r protocol.ReanalysisResult) tea.Msg {
		return ReanalysisResultMsg{Result: r}
	}))
	d.Register(protocol.EventToast, decodeInto(func(t protocol.Toast) tea.Msg {
		return ToastMsg{Toast: t}
	}))
	return d
}

func decodeInto[T any](wrap func(T) tea.Msg) Handler {
	return func(data json.RawMessage) (tea.Msg, error) {
		if len(data) == 0 || string(data) == "null" {
			return nil, errEmptyPayload
		}
		var v T
		if err := json.Unmarshal(data, &v); err != nil {
			return nil, err
		}
		return wrap(v), nil
	}
}

// Register sets the handler for event, replacing any previous one.
func (d *Dispatcher) Register(event string, h Handler) {
	d.handlers[event] = h
}

// Dispatch decodes env with its event's handler.
func (d *Dispatcher) Dispatch(env protocol.Envelope) (tea.Msg, error) {
	h, ok := d.handlers[env.Event]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownEvent, env.Event)
	}
	msg, err := h(env.Data)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", env.Event, err)
	}
	return msg, nil
}

// Events lists the registered event names, sorted.
func (d *Dispatcher) Events() []string {
	out := make([]string, 0, len(d.handlers))
	for name := range d.handlers {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
