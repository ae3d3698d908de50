package dashboard

import (
	"context"
	"errors"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"golang.org/x/term"
)

// ErrNotTerminal is returned by Run when stdout is not a terminal.
var ErrNotTerminal = errors.New("stdout is not a terminal")

// Run starts the bubbletea program on the alternate screen and blocks until
// the user quits or ctx is cancelled.
func Run(ctx context.Context, m *Model) error {
	if !term.IsTerminal(int(os.Stdout.Fd())) {
		return ErrNotTerminal
	}
	defer m.Shutdown()

	program := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := program.Run(); err != nil {
		if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
			return nil
		}
		log.Errorf("Dashboard UI 运行错误: %v", err)
		return err
	}
	return nil
}
