package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/Leo890728/course-web/internal/client"
	"github.com/Leo890728/course-web/internal/ctxlog"
	"github.com/urfave/cli/v3"
)

var errNotConfirmed = errors.New("refusing to clear data without --yes")

func newInitDataCmd() *cli.Command {
	return &cli.Command{
		Name:  "init-data",
		Usage: "generate sample data, streaming progress unless --sync is given",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "students", Usage: "students to generate", Value: 50},
			&cli.IntFlag{Name: "teachers", Usage: "teachers to generate", Value: 5},
			&cli.IntFlag{Name: "courses", Usage: "courses to generate", Value: 10},
			&cli.BoolFlag{Name: "sync", Usage: "use the blocking endpoint instead of the progress stream"},
		},
		Action: runInitData,
	}
}

func newDataInfoCmd() *cli.Command {
	return &cli.Command{
		Name:   "data-info",
		Usage:  "print record counts",
		Action: runDataInfo,
	}
}

func newClearDataCmd() *cli.Command {
	return &cli.Command{
		Name:  "clear-data",
		Usage: "delete every student, teacher, course and enrollment",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "yes", Aliases: []string{"y"}, Usage: "confirm the deletion"},
		},
		Action: runClearData,
	}
}

func newTestSSECmd() *cli.Command {
	return &cli.Command{
		Name:   "test-sse",
		Usage:  "check that the backend can serve a progress stream",
		Action: runTestSSE,
	}
}

func runInitData(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	api := newClient(cfg, ctxlog.Logger(ctx))
	out := cmd.Root().Writer
	opts := client.InitOptions{
		StudentCount: cmd.Int("students"),
		TeacherCount: cmd.Int("teachers"),
		CourseCount:  cmd.Int("courses"),
	}

	if cmd.Bool("sync") {
		res, err := api.InitializeData(ctx, opts)
		if err != nil {
			return err
		}
		if !res.Success {
			return errors.New(res.Message)
		}
		fmt.Fprintln(out, res.Message)
		printInfo(out, res.Info)
		return nil
	}

	s := api.InitializeDataWithProgress(ctx, opts)
	defer s.Close()

	var failure error
	client.Drain(ctx, s, client.Handlers{
		OnProgress: func(p client.Progress) {
			fmt.Fprintf(out, "[%3.0f%%] %d/%d %s\n", p.Percent()*100, p.Processed, p.Total, p.Message)
		},
		OnComplete: func(r client.Result) {
			fmt.Fprintln(out, r.Message)
		},
		OnError: func(r client.Result) {
			failure = errors.New(r.Message)
		},
	})
	if failure != nil {
		return fmt.Errorf("init data: %w", failure)
	}
	return ctx.Err()
}

func runDataInfo(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	info, err := newClient(cfg, ctxlog.Logger(ctx)).GetDataInfo(ctx)
	if err != nil {
		return err
	}
	printInfo(cmd.Root().Writer, *info)
	return nil
}

func runClearData(ctx context.Context, cmd *cli.Command) error {
	if !cmd.Bool("yes") {
		return errNotConfirmed
	}
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := newClient(cfg, ctxlog.Logger(ctx)).ClearAllData(ctx); err != nil {
		return err
	}
	fmt.Fprintln(cmd.Root().Writer, "all data cleared")
	return nil
}

func runTestSSE(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := newClient(cfg, ctxlog.Logger(ctx)).TestSSE(ctx); err != nil {
		return fmt.Errorf("sse check: %w", err)
	}
	fmt.Fprintln(cmd.Root().Writer, "sse ok")
	return nil
}

func printInfo(w io.Writer, info client.DataInfo) {
	fmt.Fprintf(w, "students:    %d\n", info.Students)
	fmt.Fprintf(w, "teachers:    %d\n", info.Teachers)
	fmt.Fprintf(w, "courses:     %d\n", info.Courses)
	fmt.Fprintf(w, "enrollments: %d\n", info.Enrollments)
}
