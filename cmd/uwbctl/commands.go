// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/uwbbridge/lib/capture"
	"github.com/bureau-foundation/uwbbridge/lib/config"
	"github.com/bureau-foundation/uwbbridge/lib/ipc"
	"github.com/bureau-foundation/uwbbridge/lib/process"
	"github.com/bureau-foundation/uwbbridge/lib/uwbclient"
	"github.com/bureau-foundation/uwbbridge/lib/version"
)

// socketEnvironmentVariable overrides the default daemon socket.
const socketEnvironmentVariable = "UWB_BRIDGE_SOCKET"

// callTimeout bounds each single request.
const callTimeout = 30 * time.Second

// app holds what every command shares: output streams and the options
// bound by the common flags.
type app struct {
	ctx    context.Context
	stdout io.Writer
	stderr io.Writer

	socket     string
	outputJSON bool
}

func (a *app) root() *command {
	var showVersion bool
	root := &command{
		Name:    "uwbctl",
		Summary: "Inspect and drive UWB chips served by uwbd",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("uwbctl", pflag.ContinueOnError)
			flagSet.BoolVar(&showVersion, "version", false, "print version information and exit")
			return flagSet
		},
		Subcommands: []*command{
			a.chipsCommand(),
			a.infoCommand(),
			a.statusCommand(),
			a.listenCommand(),
			a.sendCommand(),
			a.closeCommand(),
			a.coreInitCommand(),
			a.sessionInitCommand(),
			a.captureCommand(),
		},
	}
	root.Run = func(args []string) error {
		if showVersion {
			fmt.Fprintf(a.stdout, "uwbctl %s\n", version.Info())
			return nil
		}
		root.PrintHelp(a.stderr)
		return fmt.Errorf("subcommand required")
	}
	return root
}

// flags returns a flag set carrying the common options.
func (a *app) flags(name string, withJSON bool) *pflag.FlagSet {
	flagSet := pflag.NewFlagSet(name, pflag.ContinueOnError)
	flagSet.StringVarP(&a.socket, "socket", "s", "",
		"daemon socket (default $"+socketEnvironmentVariable+" or "+config.DefaultSocketPath()+")")
	if withJSON {
		flagSet.BoolVar(&a.outputJSON, "json", false, "output as JSON")
	}
	return flagSet
}

func (a *app) client() *uwbclient.Client {
	socket := a.socket
	if socket == "" {
		socket = os.Getenv(socketEnvironmentVariable)
	}
	if socket == "" {
		socket = config.DefaultSocketPath()
	}
	return uwbclient.New(socket)
}

func (a *app) callContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(a.ctx, callTimeout)
}

func (a *app) chipsCommand() *command {
	return &command{
		Name:    "chips",
		Summary: "List the chips the daemon serves",
		Usage:   "uwbctl chips [flags]",
		Flags:   func() *pflag.FlagSet { return a.flags("chips", true) },
		Run: func(args []string) error {
			if err := requireArgs(args, 0, "uwbctl chips"); err != nil {
				return err
			}
			ctx, cancel := a.callContext()
			defer cancel()
			chips, err := a.client().Chips(ctx)
			if err != nil {
				return err
			}
			if a.outputJSON {
				if chips == nil {
					chips = []string{}
				}
				return writeJSON(a.stdout, chips)
			}
			for _, name := range chips {
				fmt.Fprintln(a.stdout, name)
			}
			return nil
		},
	}
}

func (a *app) infoCommand() *command {
	return &command{
		Name:    "info",
		Summary: "Show a chip's name and supported UCI version",
		Usage:   "uwbctl info CHIP [flags]",
		Flags:   func() *pflag.FlagSet { return a.flags("info", true) },
		Run: func(args []string) error {
			if err := requireArgs(args, 1, "uwbctl info CHIP"); err != nil {
				return err
			}
			ctx, cancel := a.callContext()
			defer cancel()
			client := a.client()
			name, err := client.Name(ctx, args[0])
			if err != nil {
				return err
			}
			uciVersion, err := client.SupportedUCIVersion(ctx, args[0])
			if err != nil {
				return err
			}
			if a.outputJSON {
				return writeJSON(a.stdout, map[string]any{"name": name, "uci_version": uciVersion})
			}
			fmt.Fprintf(a.stdout, "name:        %s\nuci version: %d\n", name, uciVersion)
			return nil
		},
	}
}

func (a *app) statusCommand() *command {
	return &command{
		Name:    "status",
		Summary: "Show daemon version and per-chip traffic counters",
		Usage:   "uwbctl status [CHIP] [flags]",
		Flags:   func() *pflag.FlagSet { return a.flags("status", true) },
		Run: func(args []string) error {
			if len(args) > 1 {
				return requireArgs(args, 1, "uwbctl status [CHIP]")
			}
			chipName := ""
			if len(args) == 1 {
				chipName = args[0]
			}
			ctx, cancel := a.callContext()
			defer cancel()
			status, err := a.client().Status(ctx, chipName)
			if err != nil {
				return err
			}
			if a.outputJSON {
				return writeJSON(a.stdout, status)
			}
			return printStatus(a.stdout, status)
		},
	}
}

func (a *app) listenCommand() *command {
	var (
		coreInit   bool
		scriptPath string
		count      int
	)
	return &command{
		Name:    "listen",
		Summary: "Open a chip and print its frames and events until it is released",
		Usage:   "uwbctl listen CHIP [--core-init] [--script FILE] [--count N] [flags]",
		Flags: func() *pflag.FlagSet {
			flagSet := a.flags("listen", true)
			flagSet.BoolVar(&coreInit, "core-init", false, "request post-init completion after opening")
			flagSet.StringVar(&scriptPath, "script", "", "JSONC script of frames to send after opening")
			flagSet.IntVarP(&count, "count", "n", 0, "exit after this many UCI frames (0 means no limit)")
			return flagSet
		},
		Run: func(args []string) error {
			if err := requireArgs(args, 1, "uwbctl listen CHIP"); err != nil {
				return err
			}
			if count < 0 {
				return fmt.Errorf("--count must not be negative")
			}
			var steps []scriptStep
			if scriptPath != "" {
				var err error
				if steps, err = loadScript(scriptPath); err != nil {
					return err
				}
			}
			return a.listen(args[0], coreInit, steps, count)
		},
	}
}

// listen holds the chip open, printing notifications until the daemon
// ends the stream, count frames have arrived, or the context ends.
// Closing the session on exit releases the chip. If the stream ends
// short of count frames, listen exits with code 2.
func (a *app) listen(chipName string, coreInit bool, steps []scriptStep, count int) error {
	client := a.client()

	openCtx, cancel := a.callContext()
	session, err := client.Open(openCtx, chipName)
	cancel()
	if err != nil {
		return err
	}
	defer session.Close()

	ctx, stop := context.WithCancel(a.ctx)
	defer stop()
	go func() {
		<-ctx.Done()
		session.Close()
	}()

	if coreInit {
		callCtx, cancel := a.callContext()
		err := client.CoreInit(callCtx, chipName)
		cancel()
		if err != nil {
			return err
		}
	}

	scriptDone := make(chan error, 1)
	if len(steps) > 0 {
		go func() {
			if err := a.runScript(ctx, client, chipName, steps); err != nil {
				scriptDone <- err
				session.Close()
			}
		}()
	}

	frames := 0
	for {
		notification, err := session.Next()
		if err != nil {
			select {
			case scriptErr := <-scriptDone:
				if scriptErr != nil {
					return scriptErr
				}
			default:
			}
			if a.ctx.Err() != nil {
				return nil
			}
			if errors.Is(err, io.EOF) {
				if count > 0 {
					fmt.Fprintf(a.stderr, "%s released after %d of %d frames\n", chipName, frames, count)
					return &process.ExitError{Code: 2}
				}
				return nil
			}
			return fmt.Errorf("reading from %s: %w", chipName, err)
		}
		if err := printNotification(a.stdout, notification, a.outputJSON); err != nil {
			return err
		}
		if notification.Type == ipc.NotificationUCI {
			frames++
			if count > 0 && frames >= count {
				return nil
			}
		}
	}
}

// runScript sends each step's frame in order and stops at the first
// failure.
func (a *app) runScript(ctx context.Context, client *uwbclient.Client, chipName string, steps []scriptStep) error {
	for _, step := range steps {
		if step.frame == nil {
			select {
			case <-time.After(step.sleep):
			case <-ctx.Done():
				return nil
			}
			continue
		}
		callCtx, cancel := context.WithTimeout(ctx, callTimeout)
		_, err := client.SendUCIMessage(callCtx, chipName, step.frame)
		cancel()
		if err != nil {
			return fmt.Errorf("script: %w", err)
		}
	}
	return nil
}

func (a *app) sendCommand() *command {
	return &command{
		Name:    "send",
		Summary: "Send one UCI packet to an open chip",
		Usage:   "uwbctl send CHIP HEX [flags]",
		Flags:   func() *pflag.FlagSet { return a.flags("send", false) },
		Run: func(args []string) error {
			if err := requireArgs(args, 2, "uwbctl send CHIP HEX"); err != nil {
				return err
			}
			frame, err := parseFrame(args[1])
			if err != nil {
				return err
			}
			ctx, cancel := a.callContext()
			defer cancel()
			written, err := a.client().SendUCIMessage(ctx, args[0], frame)
			if err != nil {
				return err
			}
			fmt.Fprintf(a.stdout, "wrote %d bytes\n", written)
			return nil
		},
	}
}

// chipAction builds a command that makes one chip call and prints
// nothing on success.
func (a *app) chipAction(name, summary string, call func(context.Context, *uwbclient.Client, string) error) *command {
	return &command{
		Name:    name,
		Summary: summary,
		Usage:   "uwbctl " + name + " CHIP [flags]",
		Flags:   func() *pflag.FlagSet { return a.flags(name, false) },
		Run: func(args []string) error {
			if err := requireArgs(args, 1, "uwbctl "+name+" CHIP"); err != nil {
				return err
			}
			ctx, cancel := a.callContext()
			defer cancel()
			return call(ctx, a.client(), args[0])
		},
	}
}

func (a *app) closeCommand() *command {
	return a.chipAction("close", "Reset a chip and release its session",
		func(ctx context.Context, client *uwbclient.Client, chipName string) error {
			return client.Close(ctx, chipName)
		})
}

func (a *app) coreInitCommand() *command {
	return a.chipAction("core-init", "Report post-init completion to a chip's session",
		func(ctx context.Context, client *uwbclient.Client, chipName string) error {
			return client.CoreInit(ctx, chipName)
		})
}

func (a *app) sessionInitCommand() *command {
	return &command{
		Name:    "session-init",
		Summary: "Send a session initialization notice",
		Usage:   "uwbctl session-init CHIP SESSION_ID [flags]",
		Flags:   func() *pflag.FlagSet { return a.flags("session-init", false) },
		Run: func(args []string) error {
			if err := requireArgs(args, 2, "uwbctl session-init CHIP SESSION_ID"); err != nil {
				return err
			}
			sessionID, err := strconv.ParseInt(args[1], 0, 32)
			if err != nil {
				return fmt.Errorf("session id %q: %w", args[1], err)
			}
			ctx, cancel := a.callContext()
			defer cancel()
			return a.client().SessionInit(ctx, args[0], int32(sessionID))
		},
	}
}

func (a *app) captureCommand() *command {
	var chipFilter string
	return &command{
		Name:    "capture",
		Summary: "Decode a capture file written by uwbd",
		Usage:   "uwbctl capture FILE [--chip NAME] [--json]",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("capture", pflag.ContinueOnError)
			flagSet.BoolVar(&a.outputJSON, "json", false, "output one JSON object per record")
			flagSet.StringVar(&chipFilter, "chip", "", "only show records for this chip")
			return flagSet
		},
		Run: func(args []string) error {
			if err := requireArgs(args, 1, "uwbctl capture FILE"); err != nil {
				return err
			}
			return a.printCapture(args[0], chipFilter)
		},
	}
}

// printCapture prints every record of the file at path. Records before
// a corrupt chunk are printed, then the corruption is reported.
func (a *app) printCapture(path, chipFilter string) error {
	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer file.Close()

	reader, err := capture.NewReader(file)
	if err != nil {
		return err
	}
	for {
		chunk, err := reader.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		for _, record := range chunk.Records {
			if chipFilter != "" && record.Chip != chipFilter {
				continue
			}
			if err := printRecord(a.stdout, record, a.outputJSON); err != nil {
				return err
			}
		}
	}
}
