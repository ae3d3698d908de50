package dashboard

import (
	"errors"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/betbot/tradedash/internal/decision"
	"github.com/betbot/tradedash/internal/gateway"
	"github.com/betbot/tradedash/internal/protocol"
)

// handleKey routes a key press to the topmost layer: confirm prompt,
// opportunity modal, reanalysis modal, analysis form, then the main view.
// Keys that reach a modal while it is still entering are dropped, so typing
// into the form cannot resolve an overlay that just appeared.
func (m *Model) handleKey(msg tea.KeyMsg) tea.Cmd {
	key := msg.String()
	if key == "ctrl+c" {
		return m.quit()
	}

	switch {
	case len(m.confirms) > 0:
		return m.confirmKey(key)
	case m.opportunity.State() == decision.Showing:
		if !m.opportunity.Settled() {
			return nil
		}
		return m.opportunityKey(key)
	case m.reanalysis.State() == decision.Showing:
		if !m.reanalysis.Settled() {
			return nil
		}
		return m.reanalysisKey(key)
	case m.form.open:
		return m.formKey(msg)
	}
	return m.mainKey(key)
}

func (m *Model) quit() tea.Cmd {
	m.Shutdown()
	return tea.Quit
}

// confirmKey resolves the oldest pending yes/no prompt.
func (m *Model) confirmKey(key string) tea.Cmd {
	req := m.confirms[0]
	switch key {
	case "y", "Y":
		m.confirms = m.confirms[1:]
		return req.Yes
	case "n", "N", "esc":
		m.confirms = m.confirms[1:]
	}
	return nil
}

// opportunityKey only accepts with an explicit y.
func (m *Model) opportunityKey(key string) tea.Cmd {
	switch key {
	case "y", "Y":
		cmd, err := m.opportunity.Confirm(m.emitConfirm)
		if err != nil {
			return m.refused("confirm_trade", err)
		}
		return cmd
	case "n", "N", "esc":
		return m.opportunity.Cancel()
	}
	return nil
}

func (m *Model) emitConfirm(op protocol.Opportunity) error {
	if m.commands == nil {
		return errNoChannel
	}
	return m.commands.ConfirmTrade(op)
}

func (m *Model) reanalysisKey(key string) tea.Cmd {
	switch key {
	case "x", "X":
		symbol, hide, ok := m.reanalysis.AcceptClose()
		if !ok {
			return nil
		}
		return tea.Batch(hide, m.closePosition(symbol, true))
	case "enter", "esc", "n", "N":
		return m.reanalysis.Acknowledge()
	}
	return nil
}

func (m *Model) formKey(msg tea.KeyMsg) tea.Cmd {
	switch msg.String() {
	case "esc":
		m.form.Close()
		return nil
	case "tab", "shift+tab", "up", "down":
		return m.form.Next()
	case "enter":
		return m.submitAnalysis()
	}
	return m.form.Update(msg)
}

func (m *Model) mainKey(key string) tea.Cmd {
	switch key {
	case "q":
		return m.quit()
	case "up", "k":
		m.moveSelection(-1)
	case "down", "j":
		m.moveSelection(1)
	case "c":
		return m.closePosition(m.selected, false)
	case "r":
		return m.reanalyzeSelected()
	case "s":
		return m.startScan()
	case "a":
		return m.form.Open()
	case "ctrl+r", "f5":
		if m.commands == nil {
			return nil
		}
		if err := m.commands.RequestSnapshot(); err != nil {
			return m.refused("request_dashboard_data", err)
		}
	}
	return nil
}

var errNoChannel = errors.New("no channel configured")

func (m *Model) closePosition(symbol string, skipConfirmation bool) tea.Cmd {
	if m.gateway == nil || symbol == "" {
		return nil
	}
	cmd, err := m.gateway.ClosePosition(symbol, skipConfirmation)
	if err != nil {
		return m.notes.Notify(err.Error(), protocol.SeverityError)
	}
	return cmd
}

func (m *Model) reanalyzeSelected() tea.Cmd {
	symbol := m.selected
	if symbol == "" || m.commands == nil {
		return nil
	}
	if err := m.commands.ReanalyzePosition(symbol); err != nil {
		return m.refused("reanalyze_position", err)
	}
	m.lastReanalyze = symbol
	return m.notes.Notify(fmt.Sprintf("Reanalyzing '%s'... please wait.", symbol), protocol.SeverityInfo)
}

func (m *Model) startScan() tea.Cmd {
	if m.commands == nil || !m.scan.Begin() {
		return nil
	}
	if err := m.commands.StartScan(); err != nil {
		m.scan.Refused()
		return m.refused("start_scan", err)
	}
	m.scanStatus = protocol.ScanStatus{Message: TextStartingScan, State: protocol.ScanStarting}
	return nil
}

func (m *Model) submitAnalysis() tea.Cmd {
	if m.gateway == nil {
		return nil
	}
	symbol, timeframe := m.form.Values()
	cmd, err := m.gateway.SubmitAnalysis(symbol, timeframe)
	if err != nil {
		if errors.Is(err, gateway.ErrAnalysisBusy) {
			return nil
		}
		return m.notes.Notify(err.Error(), protocol.SeverityError)
	}
	m.form.Close()
	return cmd
}
