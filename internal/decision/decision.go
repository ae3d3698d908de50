package decision

import (
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/betbot/tradedash/internal/protocol"
)

// GenericReanalysisFailure is shown when a failed result carries no message.
const GenericReanalysisFailure = "Reanalysis failed."

// OpportunityModal asks the user to confirm a proposed trade.
type OpportunityModal struct {
	*Modal[protocol.Opportunity]
}

// NewOpportunityModal creates a hidden opportunity modal.
func NewOpportunityModal() *OpportunityModal {
	return &OpportunityModal{Modal: NewModal[protocol.Opportunity]("opportunity")}
}

// Confirm emits the held opportunity and hides the modal. When emit fails the
// modal stays showing so the user can retry, and the error is returned.
func (m *OpportunityModal) Confirm(emit func(protocol.Opportunity) error) (tea.Cmd, error) {
	op, ok := m.Pending()
	if !ok {
		return nil, ErrNothingPending
	}
	if err := emit(op); err != nil {
		return nil, err
	}
	return m.resolve(Accepted), nil
}

// Cancel hides without emitting.
func (m *OpportunityModal) Cancel() tea.Cmd {
	return m.resolve(Dismissed)
}

// ReanalysisModal shows a reanalysis verdict for an open position.
type ReanalysisModal struct {
	*Modal[protocol.Verdict]
}

// NewReanalysisModal creates a hidden reanalysis modal.
func NewReanalysisModal() *ReanalysisModal {
	return &ReanalysisModal{Modal: NewModal[protocol.Verdict]("reanalysis")}
}

// OnResult shows a successful verdict. A verdict without a symbol takes
// fallbackSymbol. For a failed result nothing is shown and the message to
// notify is returned instead.
func (m *ReanalysisModal) OnResult(res protocol.ReanalysisResult, fallbackSymbol string) (tea.Cmd, string) {
	if !res.OK() {
		msg := strings.TrimSpace(res.Message)
		if msg == "" {
			msg = GenericReanalysisFailure
		}
		return nil, msg
	}
	verdict := *res.Data
	if strings.TrimSpace(verdict.Symbol) == "" {
		verdict.Symbol = fallbackSymbol
	}
	return m.Show(verdict), ""
}

// CanClose reports whether the showing verdict offers the close action.
func (m *ReanalysisModal) CanClose() bool {
	v, ok := m.Pending()
	return ok && v.Action().IsClose() && v.Symbol != ""
}

// AcceptClose returns the symbol to close (without a second confirmation)
// and hides the modal. ok is false for hold-like verdicts.
func (m *ReanalysisModal) AcceptClose() (symbol string, cmd tea.Cmd, ok bool) {
	if !m.CanClose() {
		return "", nil, false
	}
	v, _ := m.Pending()
	return v.Symbol, m.resolve(Accepted), true
}

// Acknowledge hides the modal without side effects.
func (m *ReanalysisModal) Acknowledge() tea.Cmd {
	return m.resolve(Dismissed)
}
