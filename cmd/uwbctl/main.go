// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/bureau-foundation/uwbbridge/lib/process"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	process.Exit(err)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	app := &app{
		ctx:    ctx,
		stdout: stdout,
		stderr: stderr,
	}
	return app.root().Execute(args, stderr)
}
