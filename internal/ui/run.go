package ui

import (
	"context"
	"io"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/amirbrooks/tasker/internal/state"
)

type RunOptions struct {
	Input    io.Reader
	Output   io.Writer
	NoAlt    bool
	ModelOpt []Option
}

// Run shows the interactive list until the user quits. The Manager is
// loaded in the background and flushed on exit.
func Run(ctx context.Context, mgr *state.Manager, ro RunOptions) error {
	opts := append([]Option{WithLoad(mgr.Load)}, ro.ModelOpt...)
	model := New(ctx, mgr, opts...)
	unsubscribe := mgr.Subscribe(model.feed.push)
	defer unsubscribe()

	progOpts := []tea.ProgramOption{tea.WithContext(ctx)}
	if !ro.NoAlt {
		progOpts = append(progOpts, tea.WithAltScreen())
	}
	if ro.Input != nil {
		progOpts = append(progOpts, tea.WithInput(ro.Input))
	}
	if ro.Output != nil {
		progOpts = append(progOpts, tea.WithOutput(ro.Output))
	}
	_, runErr := tea.NewProgram(model, progOpts...).Run()

	// The final save ignores ctx so a cancelled run still persists.
	if err := mgr.Flush(context.Background()); err != nil {
		model.log.Error("final save failed", "err", err)
		if runErr == nil {
			runErr = err
		}
	}
	return runErr
}
