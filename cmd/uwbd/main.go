// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/uwbbridge/chip"
	"github.com/bureau-foundation/uwbbridge/lib/capture"
	"github.com/bureau-foundation/uwbbridge/lib/clock"
	"github.com/bureau-foundation/uwbbridge/lib/config"
	"github.com/bureau-foundation/uwbbridge/lib/process"
	"github.com/bureau-foundation/uwbbridge/lib/service"
	"github.com/bureau-foundation/uwbbridge/lib/tty"
	"github.com/bureau-foundation/uwbbridge/lib/version"
)

func main() {
	if err := run(); err != nil {
		process.Fatal(err)
	}
}

func run() error {
	flags := pflag.NewFlagSet("uwbd", pflag.ContinueOnError)
	configPath := flags.StringP("config", "c", "", "path to the bridge config file (default $"+config.EnvironmentVariable+")")
	verbose := flags.BoolP("verbose", "v", false, "log every UCI frame (debug level)")
	showVersion := flags.Bool("version", false, "print version information and exit")
	if err := flags.Parse(os.Args[1:]); err != nil {
		if err == pflag.ErrHelp {
			return nil
		}
		return err
	}

	if *showVersion {
		fmt.Printf("uwbd %s\n", version.Full())
		return nil
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		return err
	}

	level, err := cfg.Log.SlogLevel()
	if err != nil {
		return err
	}
	if *verbose {
		level = slog.LevelDebug
	}
	logger, err := process.NewLogger(os.Stderr, cfg.Log.Format, level)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return serve(ctx, cfg, logger)
}

func loadConfig(path string) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if path != "" {
		cfg, err = config.LoadFile(path)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// serve opens every configured device, runs the socket server, and
// blocks until ctx is cancelled or a chip's reader loop stops.
func serve(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	var closers []io.Closer
	defer func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i].Close()
		}
	}()

	var recorder *capture.Writer
	if cfg.Capture.Path != "" {
		compression, err := capture.ParseCompressionTag(cfg.Capture.Compression)
		if err != nil {
			return err
		}
		file, err := os.OpenFile(cfg.Capture.Path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
		if err != nil {
			return fmt.Errorf("opening capture file: %w", err)
		}
		closers = append(closers, file)
		recorder, err = capture.NewWriter(file, capture.WriterConfig{
			Compression:   compression,
			FlushInterval: cfg.Capture.FlushInterval,
			MaxRecords:    cfg.Capture.MaxRecords,
			Logger:        logger,
		})
		if err != nil {
			return err
		}
		closers = append(closers, recorder)
		logger.Info("capturing uci traffic", "path", cfg.Capture.Path, "compression", compression)
	}

	chips := make([]*chip.Chip, 0, len(cfg.Chips))
	for _, chipConfig := range cfg.Chips {
		port, err := tty.Open(tty.Config{
			Path:     chipConfig.Path,
			Mode:     tty.Mode(chipConfig.Mode),
			BaudRate: chipConfig.BaudRate,
		})
		if err != nil {
			return fmt.Errorf("chip %q: %w", chipConfig.Name, err)
		}
		closers = append(closers, port)

		var tap chip.Tap
		if recorder != nil {
			tap = recorder.Tap(chipConfig.Name)
		}
		controller, err := chip.New(chip.Config{
			Name:      chipConfig.Name,
			Transport: port,
			Logger:    logger,
			Tap:       tap,
		})
		if err != nil {
			return err
		}
		chips = append(chips, controller)
		logger.Info("chip attached",
			"chip", chipConfig.Name,
			"path", chipConfig.Path,
			"mode", chipConfig.Mode,
		)
	}

	bridge := newDaemon(chips, daemonConfig{
		Stream: cfg.Stream,
		Clock:  clock.Real(),
		Logger: logger,
	})
	return bridge.run(ctx, cfg.SocketPath)
}

// run serves the socket until ctx is cancelled or a chip dies. A chip
// death is returned as an error.
func (d *daemon) run(ctx context.Context, socketPath string) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	server := service.NewSocketServer(socketPath, d.logger)
	d.register(server)

	serveDone := make(chan error, 1)
	go func() {
		serveDone <- server.Serve(ctx)
	}()

	d.logger.Info("uwb bridge running",
		"socket", socketPath,
		"chips", d.names,
		"version", version.Info(),
	)

	var exitErr error
	select {
	case <-ctx.Done():
		d.logger.Info("shutting down")
	case err := <-serveDone:
		return err
	case dead := <-d.chipDeaths(ctx):
		exitErr = fmt.Errorf("chip %q stopped: %w", dead.Name(), dead.Err())
		d.logger.Error("chip reader stopped, shutting down", "chip", dead.Name(), "error", dead.Err())
	}

	cancel()
	if err := <-serveDone; err != nil {
		d.logger.Error("socket server error", "error", err)
	}
	return exitErr
}

// chipDeaths delivers the first chip whose reader loop stops.
func (d *daemon) chipDeaths(ctx context.Context) <-chan *chip.Chip {
	deaths := make(chan *chip.Chip, len(d.names))
	for _, name := range d.names {
		controller := d.chips[name]
		go func() {
			select {
			case <-controller.Done():
				deaths <- controller
			case <-ctx.Done():
			}
		}()
	}
	return deaths
}
