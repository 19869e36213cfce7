// Package main is the course-web command: a terminal client for the school
// administration backend.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/Leo890728/course-web/internal/client"
	"github.com/Leo890728/course-web/internal/config"
	"github.com/Leo890728/course-web/internal/ctxlog"
	"github.com/urfave/cli/v3"
)

const (
	configFlag   = "config"
	urlFlag      = "url"
	tokenFlag    = "token"
	logLevelFlag = "log-level"
)

func newRootCmd() *cli.Command {
	return &cli.Command{
		Name:                  "course-web",
		Usage:                 "manage students, teachers, courses and enrollments from the terminal",
		Writer:                os.Stdout,
		ErrWriter:             os.Stderr,
		EnableShellCompletion: true,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    configFlag,
				Aliases: []string{"c"},
				Usage:   "YAML config file",
				Value:   "course-web.yaml",
			},
			&cli.StringFlag{
				Name:  urlFlag,
				Usage: "API base URL, overrides api.base_url",
			},
			&cli.StringFlag{
				Name:    tokenFlag,
				Usage:   "bearer token, overrides api.token",
				Sources: cli.EnvVars("COURSE_WEB_TOKEN"),
			},
			&cli.StringFlag{
				Name:  logLevelFlag,
				Usage: "DEBUG, INFO, WARN or ERROR",
			},
		},
		Commands: []*cli.Command{
			newTUICmd(),
			newInitDataCmd(),
			newDataInfoCmd(),
			newClearDataCmd(),
			newTestSSECmd(),
		},
		Action: runTUI,
	}
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	ctx = ctxlog.New(ctx, ctxlog.DefaultLogger)

	if err := newRootCmd().Run(ctx, os.Args); err != nil {
		ctxlog.Logger(ctx).Error("command failed", "error", err)
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// loadConfig reads the config file and applies flag overrides.
func loadConfig(cmd *cli.Command) (*config.Config, error) {
	cfg, err := config.Load(cmd.String(configFlag))
	if err != nil {
		return nil, err
	}
	if cmd.IsSet(urlFlag) {
		cfg.API.BaseURL = cmd.String(urlFlag)
	}
	if cmd.IsSet(tokenFlag) {
		cfg.API.Token = cmd.String(tokenFlag)
	}
	if cmd.IsSet(logLevelFlag) {
		cfg.Log.Level = cmd.String(logLevelFlag)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	// An explicit flag wins over the environment, which wins over the file.
	if cmd.IsSet(logLevelFlag) || os.Getenv(ctxlog.EnvLogLevel) == "" {
		ctxlog.LevelVar.Set(ctxlog.ParseLevel(cfg.Log.Level))
	}
	return cfg, nil
}

func newClient(cfg *config.Config, logger *slog.Logger) *client.Client {
	return client.New(cfg.API.BaseURL, client.Options{
		Token:      cfg.API.Token,
		Timeout:    cfg.API.Timeout,
		RetryDelay: cfg.Stream.Retry,
		Logger:     logger,
	})
}
