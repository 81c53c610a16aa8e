package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/amirbrooks/tasker/internal/logging"
	"github.com/amirbrooks/tasker/internal/state"
	"github.com/amirbrooks/tasker/internal/store"
	"github.com/amirbrooks/tasker/internal/ui"
)

func cmdTUI(a *app, args []string) int {
	if len(args) > 0 {
		fmt.Fprintln(a.errOut, "Usage: tasker tui")
		return ExitUsage
	}
	level := a.cfg.LogLevel
	if a.gf.LogLevel != "" {
		level = a.gf.LogLevel
	}
	if a.gf.Verbose {
		level = "debug"
	}
	logger, closer, err := logging.Open(a.cfg.LogPath(), level)
	if err != nil {
		fmt.Fprintf(a.errOut, "tui: opening log file: %v\n", err)
		return ExitInternal
	}
	defer closer.Close()

	fs := store.NewFileStore(a.gf.Root)
	fresh := !fs.Exists()
	m := state.New(fs,
		state.WithLogger(logger),
		state.WithHistoryLimit(a.cfg.HistoryLimit),
		state.WithSaveDelay(a.cfg.SaveDelay()),
		state.WithCollation(a.cfg.Language()),
	)
	defer m.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	load := func(ctx context.Context) error {
		if err := m.Load(ctx); err != nil {
			return err
		}
		if fresh {
			m.SetSort(store.SortMode(a.cfg.DefaultSort))
			m.SetTheme(store.Theme(a.cfg.DefaultTheme))
		}
		return nil
	}
	logger.Info("tui started", "root", a.gf.Root)
	err = ui.Run(ctx, m, ui.RunOptions{
		ModelOpt: []ui.Option{
			ui.WithLogger(logger),
			ui.WithLoad(load),
			ui.WithExport(Version, func(data []byte) (string, error) {
				return writeExportFile(a.gf.ExportDir, "tasks", "json", data)
			}),
		},
	})
	if err != nil {
		logger.Error("tui exited", "err", err)
		fmt.Fprintf(a.errOut, "tui: %v\n", err)
		return ExitInternal
	}
	logger.Info("tui exited")
	return ExitOK
}
