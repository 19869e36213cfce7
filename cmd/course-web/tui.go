package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/Leo890728/course-web/internal/app"
	"github.com/Leo890728/course-web/internal/config"
	"github.com/Leo890728/course-web/internal/ctxlog"
	"github.com/Leo890728/course-web/internal/views/debug"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/urfave/cli/v3"
)

const screenFlag = "screen"

func newTUICmd() *cli.Command {
	return &cli.Command{
		Name:  "tui",
		Usage: "start the interactive terminal UI (default)",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  screenFlag,
				Usage: "start screen: /students, /teachers, /courses, /enrollment, /data or /statistics",
				Value: "/",
			},
		},
		Action: runTUI,
	}
}

func runTUI(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	// The terminal belongs to the UI, so records go to the log file and to
	// the debug overlay.
	out, closeLog, err := openLog(cfg.Log)
	if err != nil {
		return err
	}
	defer closeLog()

	overlay := debug.NewLogHandler(slog.LevelInfo)
	logger := slog.New(ctxlog.Tee(fileHandler(out, cfg.Log.JSON), overlay))
	slog.SetDefault(logger)
	ctx = ctxlog.New(ctx, logger)

	m := app.New(newClient(cfg, logger), app.Options{
		PageSize:     cfg.UI.PageSize,
		PopularLimit: cfg.PopularLimit(),
		StartPath:    cmd.String(screenFlag),
	})
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
	overlay.SetProgram(p)

	ctxlog.Info(ctx, "tui started", "backend", cfg.API.BaseURL)
	final, err := p.Run()
	if fm, ok := final.(app.Model); ok {
		fm.Close()
	}
	if err != nil {
		return fmt.Errorf("tui: %w", err)
	}
	return nil
}

// openLog opens the configured log file for appending. An empty path
// discards file logging.
func openLog(cfg config.LogConfig) (io.Writer, func(), error) {
	if cfg.File == "" {
		return io.Discard, func() {}, nil
	}
	f, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("open log file: %w", err)
	}
	return f, func() { _ = f.Close() }, nil
}

func fileHandler(w io.Writer, json bool) slog.Handler {
	if json {
		return ctxlog.NewJSON(w).Handler()
	}
	return ctxlog.NewText(w).Handler()
}
