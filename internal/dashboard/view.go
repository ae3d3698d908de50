package dashboard

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/betbot/tradedash/internal/protocol"
	"github.com/betbot/tradedash/internal/render"
)

var (
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("39")).
			Padding(0, 1)
	onlineStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("46"))
	offlineStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	modalStyle   = lipgloss.NewStyle().
			Border(lipgloss.DoubleBorder()).
			BorderForeground(lipgloss.Color("226")).
			Padding(0, 2)
	fadingModalStyle = modalStyle.BorderForeground(lipgloss.Color("241"))
	helpStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

// View implements tea.Model.
func (m *Model) View() string {
	width := m.width
	if width < 60 {
		width = 100
	}

	sections := []string{m.renderHeader()}
	if overlay := m.renderOverlay(); overlay != "" {
		sections = append(sections, overlay)
	}

	if !m.hasSnapshot {
		sections = append(sections, render.Muted("  "+m.connStatus))
	} else {
		sections = append(sections,
			render.Panel("Stats", render.StatsBlock(m.view.Stats), width),
			m.renderMiddle(width),
			render.Panel("Trade History", render.HistoryTable(m.view, m.limit), width),
		)
	}
	sections = append(sections, render.Panel("Scan & Analysis", m.renderControls(), width))
	if notes := m.notes.View(width); notes != "" {
		sections = append(sections, lipgloss.PlaceHorizontal(width, lipgloss.Right, notes))
	}
	sections = append(sections, helpStyle.Render(m.helpLine()))
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (m *Model) renderHeader() string {
	status := offlineStyle.Render("● offline")
	if m.connected {
		status = onlineStyle.Render("● online")
	}
	return headerStyle.Render(fmt.Sprintf("%s | %s | %s", m.title, time.Now().Format("15:04:05"), status))
}

// renderMiddle puts positions and the chart side by side on wide terminals.
func (m *Model) renderMiddle(width int) string {
	positions := render.PositionsTable(m.view, m.selIdx)
	if width < 120 {
		return lipgloss.JoinVertical(lipgloss.Left,
			render.Panel("Open Positions", positions, width),
			render.Panel("P&L", m.renderChart(width-8, 8), width),
		)
	}
	half := width / 2
	return lipgloss.JoinHorizontal(lipgloss.Top,
		render.Panel("Open Positions", positions, half),
		render.Panel("P&L", m.renderChart(width-half-14, 10), width-half),
	)
}

func (m *Model) renderChart(w, h int) string {
	chart := m.charts.Current()
	if chart == nil {
		return render.Muted(render.NoChartText)
	}
	return chart.Render(w, h)
}

func (m *Model) renderControls() string {
	var lines []string

	scanKey := "[s] start scan"
	if !m.scan.Enabled() {
		scanKey = render.Muted(scanKey + " (running)")
	}
	scanLine := scanKey
	if m.scanStatus.Message != "" {
		scanLine += "  " + m.scanStatus.Message
	} else if m.connected && !m.hasSnapshot {
		scanLine += "  " + m.connStatus
	}
	lines = append(lines, scanLine)

	analysisKey := "[a] new analysis"
	if m.gateway != nil && m.gateway.Busy() {
		analysisKey = render.Muted(analysisKey + " (busy)")
	}
	lines = append(lines, analysisKey)
	if m.form.open {
		lines = append(lines, m.form.View(), render.Muted("[enter] submit  [tab] next field  [esc] cancel"))
	}
	if m.gateway != nil {
		if st := m.gateway.Status(); st.Text != "" {
			lines = append(lines, render.Paint(st.Text, toneOf(st.Severity)))
		}
	}
	return strings.Join(lines, "\n")
}

func toneOf(sev protocol.Severity) render.Tone {
	switch sev {
	case protocol.SeveritySuccess:
		return render.TonePositive
	case protocol.SeverityError:
		return render.ToneNegative
	default:
		return render.ToneNeutral
	}
}

// renderOverlay draws the topmost pending decision, if any.
func (m *Model) renderOverlay() string {
	if len(m.confirms) > 0 {
		body := m.confirms[0].Prompt + "\n\n" + render.Muted("[y] yes  [n] no")
		return modalStyle.Render(body)
	}
	if m.opportunity.Visible() {
		return m.opportunityBox()
	}
	if m.reanalysis.Visible() {
		return m.reanalysisBox()
	}
	return ""
}

func (m *Model) opportunityBox() string {
	op := m.opportunity.Display()
	recTone := render.ToneNegative
	if op.IsBuy() {
		recTone = render.TonePositive
	}
	lines := []string{
		render.Title("New Trade Opportunity"),
		"",
		"Symbol:         " + op.Symbol,
		"Recommendation: " + render.Paint(op.Recommendation, recTone),
		"Price:          " + op.CurrentPrice.String(),
	}
	if op.Timeframe != "" {
		lines = append(lines, "Timeframe:      "+op.Timeframe)
	}
	lines = append(lines, "Reason:         "+op.Reason, "", render.Muted("[y] confirm trade  [n] cancel"))
	return m.modalFrame(m.opportunity.Settled()).Render(strings.Join(lines, "\n"))
}

func (m *Model) reanalysisBox() string {
	v := m.reanalysis.Display()
	action := v.Action()
	tone := render.TonePositive
	if action.IsClose() {
		tone = render.ToneNegative
	}
	keys := "[enter] ok"
	if m.reanalysis.CanClose() {
		keys = "[x] close position  " + keys
	}
	lines := []string{
		render.Title("Reanalysis: " + v.Symbol),
		"",
		"Recommendation: " + render.Paint(strings.ToUpper(v.Recommendation), tone),
		"Reason:         " + v.Reason,
		"",
		render.Muted(keys),
	}
	return m.modalFrame(m.reanalysis.Settled()).Render(strings.Join(lines, "\n"))
}

func (m *Model) modalFrame(settled bool) lipgloss.Style {
	if settled {
		return modalStyle
	}
	return fadingModalStyle
}

func (m *Model) helpLine() string {
	return "↑/↓ select  [r] reanalyze  [c] close  [s] scan  [a] analysis  [ctrl+r] refresh  [q] quit"
}
