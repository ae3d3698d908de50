package render

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	titleStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39"))
	positiveStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("46"))
	negativeStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	mutedStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	headerStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("250"))
	selectedStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("226"))
	panelStyle    = lipgloss.NewStyle().
			Padding(0, 1).
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("39"))
)

// Paint colours text by tone.
func Paint(text string, tone Tone) string {
	switch tone {
	case TonePositive:
		return positiveStyle.Render(text)
	case ToneNegative:
		return negativeStyle.Render(text)
	default:
		return text
	}
}

// Muted renders secondary text.
func Muted(text string) string {
	return mutedStyle.Render(text)
}

// Title renders a section title.
func Title(text string) string {
	return titleStyle.Render(text)
}

// Panel wraps body in the rounded frame used by every dashboard section.
func Panel(title, body string, width int) string {
	inner := width - 4
	if inner < 10 {
		inner = 10
	}
	content := titleStyle.Render(title) + "\n" + strings.Repeat("─", inner) + "\n" + body
	return panelStyle.Width(width - 2).Render(content)
}

// StatsBlock draws the stats fields on one or two lines.
func StatsBlock(s StatsView) string {
	main := []string{
		fieldText(s.TotalPnl),
		fieldText(s.WinRate),
		fieldText(s.TotalTrades),
	}
	out := strings.Join(main, "   ")
	if len(s.Extras) > 0 {
		extras := make([]string, 0, len(s.Extras))
		for _, f := range s.Extras {
			extras = append(extras, fieldText(f))
		}
		out += "\n" + strings.Join(extras, "   ")
	}
	return out
}

func fieldText(f Field) string {
	return Muted(f.Label+":") + " " + Paint(f.Value, f.Tone)
}

// PositionsTable draws the open positions. The selected row is marked and
// its action keys are shown.
func PositionsTable(v View, selected int) string {
	if len(v.Positions) == 0 {
		return Muted(v.NoPositions)
	}
	lines := []string{
		headerStyle.Render(fmt.Sprintf("  %-14s %-6s %16s  %s", "Symbol", "Side", "Unrealized P&L", "Actions")),
	}
	for i, row := range v.Positions {
		marker := "  "
		symbol := fmt.Sprintf("%-14s", row.Symbol)
		if i == selected {
			marker = selectedStyle.Render("▶ ")
			symbol = selectedStyle.Render(symbol)
		}
		lines = append(lines, marker+symbol+" "+
			Paint(fmt.Sprintf("%-6s", row.Side), row.SideTone)+" "+
			Paint(fmt.Sprintf("%16s", row.Pnl), row.PnlTone)+"  "+
			Muted(actionHint(row.Actions)))
	}
	return strings.Join(lines, "\n")
}

func actionHint(actions []ActionRef) string {
	parts := make([]string, 0, len(actions))
	for _, a := range actions {
		switch a.Action {
		case ActionReanalyze:
			parts = append(parts, "[r]eanalyze")
		case ActionClose:
			parts = append(parts, "[c]lose")
		}
	}
	return strings.Join(parts, " ")
}

// HistoryTable draws closed trades in supplied order. History arrives
// oldest first, so a limit keeps the last rows and folds the older ones
// into a single line. limit <= 0 shows all.
func HistoryTable(v View, limit int) string {
	if len(v.History) == 0 {
		return Muted(v.NoHistory)
	}
	rows := v.History
	hidden := 0
	if limit > 0 && len(rows) > limit {
		hidden = len(rows) - limit
		rows = rows[hidden:]
	}
	lines := []string{
		headerStyle.Render(fmt.Sprintf("%-14s %10s  %-12s %s", "Symbol", "P&L", "Status", "Closed")),
	}
	if hidden > 0 {
		lines = append(lines, Muted(fmt.Sprintf("… %d earlier", hidden)))
	}
	for _, row := range rows {
		lines = append(lines, fmt.Sprintf("%-14s ", row.Symbol)+
			Paint(fmt.Sprintf("%10s", row.Pnl), row.PnlTone)+
			fmt.Sprintf("  %-12s %s", row.Status, row.ClosedAt))
	}
	return strings.Join(lines, "\n")
}
