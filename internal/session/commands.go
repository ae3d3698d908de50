package session

import (
	"strings"

	"github.com/betbot/tradedash/internal/protocol"
)

// Sender writes one outbound command to the channel.
type Sender interface {
	Send(event string, payload interface{}) error
}

// Commands are the outbound emitters. Every method fails with
// ErrNotConnected while the channel is down; nothing is queued.
type Commands struct {
	sender Sender
}

// NewCommands wraps a Sender.
func NewCommands(sender Sender) *Commands {
	return &Commands{sender: sender}
}

// RequestSnapshot emits request_dashboard_data.
func (c *Commands) RequestSnapshot() error {
	return c.sender.Send(protocol.CmdRequestDashboardData, nil)
}

// StartScan emits start_scan.
func (c *Commands) StartScan() error {
	return c.sender.Send(protocol.CmdStartScan, nil)
}

// ConfirmTrade emits confirm_trade with the opportunity as received.
func (c *Commands) ConfirmTrade(op protocol.Opportunity) error {
	return c.sender.Send(protocol.CmdConfirmTrade, op)
}

// ReanalyzePosition emits reanalyze_position {symbol}.
func (c *Commands) ReanalyzePosition(symbol string) error {
	symbol = strings.TrimSpace(symbol)
	if symbol == "" {
		return protocol.ErrMissingSymbol
	}
	return c.sender.Send(protocol.CmdReanalyzePosition, protocol.SymbolRequest{Symbol: symbol})
}
