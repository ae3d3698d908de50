// Package dashboard is the bubbletea program of the trading dashboard. It
// routes channel events to the renderer, the decision modals and the
// notification surface, and turns key presses into commands.
package dashboard

import (
	"errors"
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/sirupsen/logrus"

	"github.com/betbot/tradedash/internal/decision"
	"github.com/betbot/tradedash/internal/gateway"
	"github.com/betbot/tradedash/internal/notify"
	"github.com/betbot/tradedash/internal/protocol"
	"github.com/betbot/tradedash/internal/render"
	"github.com/betbot/tradedash/internal/session"
)

var log = logrus.WithField("module", "dashboard")

// Fixed texts.
const (
	TextConnecting   = "Connecting to server..."
	TextConnected    = "Connected to server. Waiting for data..."
	TextDisconnected = "Connection to server lost."
	TextUnreachable  = "Could not connect to server."
	TextReconnected  = "Reconnected to server."
	TextNotConnected = "Not connected to server. Command was not sent."
	TextStartingScan = "Starting scan..."
	TextStreamClosed = "Event stream closed."
)

// Channel is the persistent session as the model sees it.
type Channel interface {
	session.Sender
	Events() <-chan tea.Msg
}

// Options configures a Model.
type Options struct {
	Title        string
	Channel      Channel
	Gateway      *gateway.Gateway
	Timing       notify.Timing
	Location     *time.Location // nil 表示本地时区
	HistoryLimit int
}

// Model is the dashboard state. Everything here is mutated only inside
// Update.
type Model struct {
	title    string
	channel  Channel
	commands *session.Commands
	gateway  *gateway.Gateway
	loc      *time.Location
	limit    int

	width  int
	height int

	connected  bool
	closed     bool
	gaveUp     bool
	connStatus string

	hasSnapshot bool
	view        render.View
	charts      render.ChartHost
	selected    string
	selIdx      int

	scan       session.ScanToggle
	scanStatus protocol.ScanStatus

	notes       *notify.Surface
	opportunity *decision.OpportunityModal
	reanalysis  *decision.ReanalysisModal
	confirms    []gateway.ConfirmRequestMsg
	form        analysisForm

	lastReanalyze string
}

// New creates a Model.
func New(opts Options) *Model {
	title := opts.Title
	if title == "" {
		title = "Trading Bot Dashboard"
	}
	limit := opts.HistoryLimit
	if limit <= 0 {
		limit = 15
	}
	m := &Model{
		title:       title,
		channel:     opts.Channel,
		gateway:     opts.Gateway,
		loc:         opts.Location,
		limit:       limit,
		connStatus:  TextConnecting,
		notes:       notify.New(opts.Timing),
		opportunity: decision.NewOpportunityModal(),
		reanalysis:  decision.NewReanalysisModal(),
		form:        newAnalysisForm(),
	}
	if opts.Channel != nil {
		m.commands = session.NewCommands(opts.Channel)
	}
	return m
}

// Init starts listening to the channel.
func (m *Model) Init() tea.Cmd {
	return m.waitForEvent()
}

func (m *Model) waitForEvent() tea.Cmd {
	if m.channel == nil || m.closed {
		return nil
	}
	return session.WaitForEvent(m.channel.Events())
}

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	// 动画和通知的 tick 先交给各自组件
	cmds := []tea.Cmd{m.notes.Update(msg)}
	m.opportunity.Update(msg)
	m.reanalysis.Update(msg)

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
	case tea.KeyMsg:
		cmds = append(cmds, m.handleKey(msg))

	case session.ConnectedMsg:
		m.connected = true
		m.connStatus = TextConnected
		if msg.Reconnected {
			cmds = append(cmds, m.notes.Notify(TextReconnected, protocol.SeveritySuccess))
		}
		cmds = append(cmds, m.waitForEvent())
	case session.DisconnectedMsg:
		m.connected = false
		m.connStatus = TextDisconnected
		if !msg.Dropped {
			m.connStatus = TextUnreachable
		}
		m.scan.OnDisconnect()
		if msg.Err != nil {
			log.Warnf("channel down: %v", msg.Err)
		}
		cmds = append(cmds, m.notes.Notify(m.connStatus, protocol.SeverityError), m.waitForEvent())
	case session.ReconnectFailedMsg:
		m.gaveUp = true
		m.connStatus = fmt.Sprintf("Could not reconnect after %d attempts.", msg.Attempts)
		cmds = append(cmds, m.notes.Notify(m.connStatus, protocol.SeverityError), m.waitForEvent())
	case session.ClosedMsg:
		m.closed = true
		m.connected = false
		// 放弃重连的提示比"事件流结束"更有用，保留
		if !m.gaveUp {
			m.connStatus = TextStreamClosed
		}
		m.scan.OnDisconnect()

	case session.SnapshotMsg:
		m.applySnapshot(msg.Snapshot)
		cmds = append(cmds, m.waitForEvent())
	case session.ScanStatusMsg:
		cmds = append(cmds, m.onScanStatus(msg.Status), m.waitForEvent())
	case session.OpportunityMsg:
		cmds = append(cmds, m.opportunity.Show(msg.Opportunity), m.waitForEvent())
	case session.ReanalysisResultMsg:
		cmd, failure := m.reanalysis.OnResult(msg.Result, m.lastReanalyze)
		cmds = append(cmds, cmd)
		if failure != "" {
			cmds = append(cmds, m.notes.Notify(failure, protocol.SeverityError))
		}
		cmds = append(cmds, m.waitForEvent())
	case session.ToastMsg:
		cmds = append(cmds, m.notes.Notify(msg.Toast.Message, msg.Toast.Severity), m.waitForEvent())

	case gateway.ConfirmRequestMsg:
		m.confirms = append(m.confirms, msg)
	case gateway.CloseResultMsg:
		cmds = append(cmds, m.notes.Notify(msg.Message, msg.Severity))
	case gateway.AnalysisResultMsg:
		if m.gateway != nil {
			text, sev := m.gateway.OnAnalysisResult(msg)
			cmds = append(cmds, m.notes.Notify(text, sev))
		}
	}
	return m, tea.Batch(cmds...)
}

// applySnapshot replaces the displayed state. The selection follows the
// symbol; if it is gone the cursor stays at the same row.
func (m *Model) applySnapshot(snap protocol.Snapshot) {
	m.hasSnapshot = true
	m.view = render.Build(snap, m.loc)
	m.charts.Replace(m.view.Chart)

	if idx := m.indexOf(m.selected); idx >= 0 {
		m.selIdx = idx
	} else {
		m.clampSelection()
	}
}

func (m *Model) indexOf(symbol string) int {
	if symbol == "" {
		return -1
	}
	for i, row := range m.view.Positions {
		if row.Symbol == symbol {
			return i
		}
	}
	return -1
}

func (m *Model) clampSelection() {
	n := len(m.view.Positions)
	if n == 0 {
		m.selIdx = 0
		m.selected = ""
		return
	}
	if m.selIdx >= n {
		m.selIdx = n - 1
	}
	if m.selIdx < 0 {
		m.selIdx = 0
	}
	m.selected = m.view.Positions[m.selIdx].Symbol
}

func (m *Model) moveSelection(delta int) {
	if len(m.view.Positions) == 0 {
		return
	}
	m.selIdx += delta
	m.clampSelection()
}

func (m *Model) onScanStatus(s protocol.ScanStatus) tea.Cmd {
	m.scan.OnStatus(s)
	m.scanStatus = s
	if s.Message == "" {
		return nil
	}
	sev := protocol.SeverityInfo
	switch s.State {
	case protocol.ScanCompleted:
		sev = protocol.SeveritySuccess
	case protocol.ScanFailed:
		sev = protocol.SeverityError
	}
	return m.notes.Notify(s.Message, sev)
}

// refused turns a failed emit into an error notification.
func (m *Model) refused(command string, err error) tea.Cmd {
	log.Warnf("%s not sent: %v", command, err)
	if errors.Is(err, session.ErrNotConnected) {
		return m.notes.Notify(TextNotConnected, protocol.SeverityError)
	}
	return m.notes.Notify(fmt.Sprintf("Could not send %s: %v", command, err), protocol.SeverityError)
}

// Connected reports the channel state.
func (m *Model) Connected() bool { return m.connected }

// ScanEnabled reports whether the scan key is active.
func (m *Model) ScanEnabled() bool { return m.scan.Enabled() }

// Selected is the symbol of the selected position row.
func (m *Model) Selected() string { return m.selected }

// Notifications exposes the notification surface.
func (m *Model) Notifications() *notify.Surface { return m.notes }

// Opportunity exposes the opportunity modal.
func (m *Model) Opportunity() *decision.OpportunityModal { return m.opportunity }

// Reanalysis exposes the reanalysis modal.
func (m *Model) Reanalysis() *decision.ReanalysisModal { return m.reanalysis }

// PendingConfirmations is the number of queued yes/no prompts.
func (m *Model) PendingConfirmations() int { return len(m.confirms) }

// Snapshot returns the current view and whether a snapshot has arrived.
func (m *Model) Snapshot() (render.View, bool) { return m.view, m.hasSnapshot }

// Charts exposes the chart host.
func (m *Model) Charts() *render.ChartHost { return &m.charts }

// Shutdown releases the chart.
func (m *Model) Shutdown() {
	m.charts.Dispose()
}
