// Package protocol defines the events and payloads exchanged between the
// dashboard and the trading bot.
package protocol

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Inbound events (server -> dashboard).
const (
	EventDashboardData    = "dashboard_data"
	EventScanStatus       = "scan_status"
	EventNewOpportunity   = "new_opportunity"
	EventReanalysisResult = "reanalysis_result"
	EventToast            = "toast"
)

// Outbound commands (dashboard -> server).
const (
	CmdRequestDashboardData = "request_dashboard_data"
	CmdStartScan            = "start_scan"
	CmdConfirmTrade         = "confirm_trade"
	CmdReanalyzePosition    = "reanalyze_position"
)

// InboundEvents lists every event the dashboard handles.
var InboundEvents = []string{
	EventDashboardData,
	EventScanStatus,
	EventNewOpportunity,
	EventReanalysisResult,
	EventToast,
}

// OutboundCommands lists every command the dashboard emits.
var OutboundCommands = []string{
	CmdRequestDashboardData,
	CmdStartScan,
	CmdConfirmTrade,
	CmdReanalyzePosition,
}

// Envelope is one text frame on the channel.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// IsHeartbeat reports frames that carry no event: empty frames and the
// PING/PONG text heartbeats.
func IsHeartbeat(frame []byte) bool {
	s := strings.TrimSpace(string(frame))
	return s == "" || s == "PING" || s == "PONG"
}

// Encode builds a frame for event. A nil payload omits data.
func Encode(event string, payload interface{}) ([]byte, error) {
	env := Envelope{Event: event}
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encode %s: %w", event, err)
		}
		env.Data = data
	}
	return json.Marshal(env)
}

// Decode parses a frame. Frames without an event name are rejected.
func Decode(frame []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(frame, &env); err != nil {
		return Envelope{}, fmt.Errorf("decode frame: %w", err)
	}
	if env.Event == "" {
		return Envelope{}, fmt.Errorf("decode frame: missing event")
	}
	return env, nil
}

// SymbolRequest is the body of reanalyze_position and close-position.
type SymbolRequest struct {
	Symbol string `json:"symbol"`
}

// AnalysisRequest is the body of new-analysis.
type AnalysisRequest struct {
	Symbol    string `json:"symbol"`
	Timeframe string `json:"timeframe"`
}
