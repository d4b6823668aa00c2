package tui

import (
	"context"
	"io"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/kirillkom/plagctl/internal/core/domain"
)

// Run starts a check and renders it until it reaches a terminal state or the
// user quits. The returned snapshot is the last one rendered.
func Run(ctx context.Context, runner Runner, scope domain.ResultType, in io.Reader, out io.Writer) (domain.CheckSnapshot, error) {
	model := NewModel(ctx, runner, scope)
	opts := []tea.ProgramOption{tea.WithContext(ctx), tea.WithOutput(out)}
	if in != nil {
		opts = append(opts, tea.WithInput(in))
	}

	final, err := tea.NewProgram(model, opts...).Run()
	model.watch.close()
	if err != nil {
		return runner.Snapshot(), err
	}
	m, ok := final.(Model)
	if !ok {
		return runner.Snapshot(), nil
	}
	return m.Snapshot(), m.Err()
}
