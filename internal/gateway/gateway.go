// Package gateway performs the dashboard's one-shot HTTP actions: closing a
// position and submitting a manual analysis.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/sirupsen/logrus"

	"github.com/betbot/tradedash/internal/protocol"
)

var log = logrus.WithField("module", "gateway")

// Endpoints.
const (
	PathClosePosition = "/api/close-position"
	PathNewAnalysis   = "/api/new-analysis"
)

// Fixed texts.
const (
	CloseTransportFailure    = "Error closing position."
	AnalysisTransportFailure = "A network error occurred during analysis."
	StatusAnalyzing          = "Analyzing... please wait."
)

// ErrAnalysisBusy is returned when an analysis is already in flight.
var ErrAnalysisBusy = errors.New("analysis already in progress")

// ConfirmRequestMsg asks the UI for a yes/no decision. Yes runs on accept;
// on decline nothing happens.
type ConfirmRequestMsg struct {
	Prompt string
	Yes    tea.Cmd
}

// CloseResultMsg is the outcome of a close-position call.
type CloseResultMsg struct {
	Symbol   string
	Message  string
	Severity protocol.Severity
	Err      error
}

// AnalysisResultMsg is the outcome of a new-analysis call.
type AnalysisResultMsg struct {
	Response protocol.ActionResponse
	Err      error
}

// StatusLine is the analysis status shown under the form.
type StatusLine struct {
	Text     string
	Severity protocol.Severity
}

// Gateway holds the analysis affordance state. It is only touched from the
// bubbletea Update loop; the HTTP calls run inside the returned commands.
type Gateway struct {
	client *Client
	busy   bool
	status StatusLine
}

// New creates a Gateway on client.
func New(client *Client) *Gateway {
	return &Gateway{client: client}
}

// ClosePosition validates symbol and returns the command to run. Unless
// skipConfirmation is set, the command first asks the user via
// ConfirmRequestMsg.
func (g *Gateway) ClosePosition(symbol string, skipConfirmation bool) (tea.Cmd, error) {
	symbol = strings.TrimSpace(symbol)
	if symbol == "" {
		return nil, protocol.ErrMissingSymbol
	}
	closeCmd := g.closeCmd(symbol)
	if skipConfirmation {
		return closeCmd, nil
	}
	prompt := fmt.Sprintf("Are you sure you want to close the %s position?", symbol)
	return func() tea.Msg {
		return ConfirmRequestMsg{Prompt: prompt, Yes: closeCmd}
	}, nil
}

func (g *Gateway) closeCmd(symbol string) tea.Cmd {
	return func() tea.Msg {
		resp, err := g.client.PostAction(context.Background(), PathClosePosition, protocol.SymbolRequest{Symbol: symbol})
		if err != nil {
			log.Warnf("close %s failed: %v", symbol, err)
			return CloseResultMsg{
				Symbol:   symbol,
				Message:  CloseTransportFailure,
				Severity: protocol.SeverityError,
				Err:      err,
			}
		}
		log.Infof("close %s: %s %s", symbol, resp.Status, resp.Message)
		return CloseResultMsg{
			Symbol:   symbol,
			Message:  resp.Message,
			Severity: resp.Status,
		}
	}
}

// Busy reports an in-flight analysis; the submit affordance is disabled.
func (g *Gateway) Busy() bool {
	return g.busy
}

// Status is the current analysis status line.
func (g *Gateway) Status() StatusLine {
	return g.status
}

// SubmitAnalysis validates the inputs, disables the affordance and returns
// the command that posts the request. Invalid input leaves everything as it
// was.
func (g *Gateway) SubmitAnalysis(symbol, timeframe string) (tea.Cmd, error) {
	symbol = strings.TrimSpace(symbol)
	timeframe = strings.TrimSpace(timeframe)
	if g.busy {
		return nil, ErrAnalysisBusy
	}
	if symbol == "" {
		return nil, protocol.ErrMissingSymbol
	}
	if timeframe == "" {
		return nil, protocol.ErrMissingTimeframe
	}

	g.busy = true
	g.status = StatusLine{Text: StatusAnalyzing, Severity: protocol.SeverityInfo}
	req := protocol.AnalysisRequest{Symbol: symbol, Timeframe: timeframe}
	return func() tea.Msg {
		resp, err := g.client.PostAction(context.Background(), PathNewAnalysis, req)
		return AnalysisResultMsg{Response: resp, Err: err}
	}, nil
}

// OnAnalysisResult re-enables the affordance, updates the status line and
// returns the notification to show.
func (g *Gateway) OnAnalysisResult(msg AnalysisResultMsg) (string, protocol.Severity) {
	g.busy = false
	if msg.Err != nil {
		log.Warnf("analysis failed: %v", msg.Err)
		g.status = StatusLine{Text: "❌ " + AnalysisTransportFailure, Severity: protocol.SeverityError}
		return AnalysisTransportFailure, protocol.SeverityError
	}

	sev := protocol.ParseSeverity(string(msg.Response.Status))
	icon := "ℹ️"
	switch sev {
	case protocol.SeveritySuccess:
		icon = "✅"
	case protocol.SeverityError:
		icon = "❌"
	}
	g.status = StatusLine{Text: icon + " " + msg.Response.Message, Severity: sev}
	return msg.Response.Message, sev
}
