package session

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/betbot/tradedash/internal/protocol"
)

// ConnectedMsg is published each time the channel is established.
type ConnectedMsg struct {
	Reconnected bool
}

// DisconnectedMsg is published when the channel is lost, or when the first
// connection attempt fails. Dropped is false in the second case.
type DisconnectedMsg struct {
	Err     error
	Dropped bool
}

// ReconnectFailedMsg is published once the reconnect budget is exhausted.
type ReconnectFailedMsg struct {
	Attempts int
}

// ClosedMsg tells the UI the event stream has ended.
type ClosedMsg struct{}

// SnapshotMsg carries dashboard_data.
type SnapshotMsg struct {
	Snapshot protocol.Snapshot
}

// ScanStatusMsg carries scan_status.
type ScanStatusMsg struct {
	Status protocol.ScanStatus
}

// OpportunityMsg carries new_opportunity.
type OpportunityMsg struct {
	Opportunity protocol.Opportunity
}

// ReanalysisResultMsg carries reanalysis_result.
type ReanalysisResultMsg struct {
	Result protocol.ReanalysisResult
}

// ToastMsg carries toast.
type ToastMsg struct {
	Toast protocol.Toast
}

// WaitForEvent returns a command that delivers the next message from ch.
func WaitForEvent(ch <-chan tea.Msg) tea.Cmd {
	return func() tea.Msg {
		msg, ok := <-ch
		if !ok {
			return ClosedMsg{}
		}
		return msg
	}
}
