package dashboard

import (
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
)

// DefaultTimeframe pre-fills the analysis form.
const DefaultTimeframe = "1h"

const (
	fieldSymbol = iota
	fieldTimeframe
)

// analysisForm is the manual analysis input: symbol and timeframe.
type analysisForm struct {
	open   bool
	inputs []textinput.Model
	focus  int
}

func newAnalysisForm() analysisForm {
	symbol := textinput.New()
	symbol.Prompt = "Symbol:    "
	symbol.Placeholder = "BTC/USDT"
	symbol.CharLimit = 32

	timeframe := textinput.New()
	timeframe.Prompt = "Timeframe: "
	timeframe.Placeholder = DefaultTimeframe
	timeframe.CharLimit = 8
	timeframe.SetValue(DefaultTimeframe)

	return analysisForm{inputs: []textinput.Model{symbol, timeframe}}
}

func (f *analysisForm) Open() tea.Cmd {
	f.open = true
	return f.focusOn(fieldSymbol)
}

func (f *analysisForm) Close() {
	f.open = false
	for i := range f.inputs {
		f.inputs[i].Blur()
	}
}

func (f *analysisForm) focusOn(i int) tea.Cmd {
	f.focus = i
	var cmd tea.Cmd
	for j := range f.inputs {
		if j == i {
			cmd = f.inputs[j].Focus()
		} else {
			f.inputs[j].Blur()
		}
	}
	return cmd
}

func (f *analysisForm) Next() tea.Cmd {
	return f.focusOn((f.focus + 1) % len(f.inputs))
}

func (f *analysisForm) Values() (symbol, timeframe string) {
	return strings.TrimSpace(f.inputs[fieldSymbol].Value()),
		strings.TrimSpace(f.inputs[fieldTimeframe].Value())
}

// Update feeds msg to the focused input.
func (f *analysisForm) Update(msg tea.Msg) tea.Cmd {
	var cmd tea.Cmd
	f.inputs[f.focus], cmd = f.inputs[f.focus].Update(msg)
	return cmd
}

func (f *analysisForm) View() string {
	lines := make([]string, 0, len(f.inputs))
	for _, in := range f.inputs {
		lines = append(lines, in.View())
	}
	return strings.Join(lines, "\n")
}
