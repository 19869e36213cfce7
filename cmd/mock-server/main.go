// Command mock-server runs the in-memory school backend used for demos and
// local development of course-web.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Leo890728/course-web/internal/client"
	"github.com/Leo890728/course-web/internal/config"
	"github.com/Leo890728/course-web/internal/ctxlog"
	"github.com/Leo890728/course-web/internal/mockserver"
	"github.com/urfave/cli/v3"
)

func newRootCmd() *cli.Command {
	return &cli.Command{
		Name:      "mock-server",
		Usage:     "serve an in-memory school backend",
		Writer:    os.Stdout,
		ErrWriter: os.Stderr,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Aliases: []string{"c"}, Usage: "YAML config file", Value: "course-web.yaml"},
			&cli.StringFlag{Name: "host", Usage: "listen host, overrides mock.host"},
			&cli.IntFlag{Name: "port", Aliases: []string{"p"}, Usage: "listen port, overrides mock.port"},
			&cli.DurationFlag{Name: "tick", Usage: "delay between generated records on the init stream"},
			&cli.DurationFlag{Name: "heartbeat", Usage: "heartbeat interval on the init stream"},
			&cli.StringFlag{Name: "token", Usage: "require this bearer token", Sources: cli.EnvVars("COURSE_WEB_TOKEN")},
			&cli.BoolFlag{Name: "empty", Usage: "start without sample data"},
			&cli.IntFlag{Name: "seed", Usage: "random seed for generated enrollments, 0 picks one from the clock"},
			&cli.StringFlag{Name: "log-level", Usage: "DEBUG, INFO, WARN or ERROR, defaults to INFO"},
			&cli.BoolFlag{Name: "log-json", Usage: "log as JSON"},
		},
		Action: run,
	}
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := newRootCmd().Run(ctx, os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cmd *cli.Command) error {
	cfg, err := config.Load(cmd.String("config"))
	if err != nil {
		return err
	}
	m := cfg.Mock
	if cmd.IsSet("host") {
		m.Host = cmd.String("host")
	}
	if cmd.IsSet("port") {
		m.Port = cmd.Int("port")
	}
	if cmd.IsSet("tick") {
		m.Tick = cmd.Duration("tick")
	}
	if cmd.IsSet("heartbeat") {
		m.Heartbeat = cmd.Duration("heartbeat")
	}
	if cmd.Bool("empty") {
		m.Seed = false
	}

	switch {
	case cmd.IsSet("log-level"):
		ctxlog.LevelVar.Set(ctxlog.ParseLevel(cmd.String("log-level")))
	case os.Getenv(ctxlog.EnvLogLevel) == "":
		ctxlog.LevelVar.Set(slog.LevelInfo)
	}
	logger := ctxlog.NewText(os.Stderr)
	if cmd.Bool("log-json") {
		logger = ctxlog.NewJSON(os.Stderr)
	}
	ctx = ctxlog.New(ctx, logger)

	seed := uint64(cmd.Int("seed"))
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	store := mockserver.NewStore(seed)
	if m.Seed {
		opts := client.InitOptions{
			StudentCount: mockserver.DefaultStudentCount,
			TeacherCount: mockserver.DefaultTeacherCount,
			CourseCount:  mockserver.DefaultCourseCount,
		}
		if err := store.Generate(ctx, opts, 0, nil); err != nil {
			return fmt.Errorf("seed data: %w", err)
		}
		ctxlog.Info(ctx, "seeded sample data", "students", opts.StudentCount,
			"teachers", opts.TeacherCount, "courses", opts.CourseCount)
	}

	srv := mockserver.NewServer(store, mockserver.Options{
		AuthToken: cmd.String("token"),
		Heartbeat: m.Heartbeat,
		Tick:      m.Tick,
		Logger:    logger,
	})

	ctxlog.Info(ctx, "mock backend listening", "host", m.Host, "port", m.Port)
	err = mockserver.ListenAndServe(ctx, m.Host, m.Port, srv.Handler())
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	ctxlog.Info(ctx, "shut down")
	return nil
}
