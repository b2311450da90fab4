package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/HeftyCoder/ryvencore/flowfile"
	"github.com/HeftyCoder/ryvencore/internal/cli"
	"github.com/HeftyCoder/ryvencore/internal/ctxlog"
	"github.com/HeftyCoder/ryvencore/nodes/std"
	"github.com/HeftyCoder/ryvencore/player"
	"github.com/HeftyCoder/ryvencore/session"
)

// main is the entrypoint for the ryvenflow runner.
func main() {
	// Use a minimal logger until the full one is configured.
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})))

	if err := run(os.Stdout, os.Args[1:]); err != nil {
		if exitErr, ok := err.(*cli.ExitError); ok {
			fmt.Fprintln(os.Stderr, exitErr.Message)
			os.Exit(exitErr.Code)
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// run encapsulates the runner logic for easier testing and error handling.
func run(outW io.Writer, args []string) error {
	config, shouldExit, err := cli.Parse(args, outW)
	if err != nil {
		return err
	}
	if shouldExit {
		return nil
	}

	logger := cli.NewLogger(config.LogLevel, config.LogFormat, outW)
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	ctx = ctxlog.WithLogger(ctx, logger)

	s := session.New(logger)
	std.Register(s)

	names, err := flowfile.Apply(s, config.FlowPath)
	if err != nil {
		return err
	}
	if len(names) == 0 {
		return fmt.Errorf("no flows defined in %s", config.FlowPath)
	}
	if config.FlowName != "" {
		names = []string{config.FlowName}
	}

	for _, name := range names {
		logger.Info("playing flow.", "flow", name)
		if resp := s.Play(ctx, name); resp != player.ResponseSuccess {
			return fmt.Errorf("flow %q: play request failed: %s", name, resp)
		}
		if ctx.Err() != nil {
			logger.Info("interrupted.", "flow", name)
			return nil
		}
	}
	return nil
}
