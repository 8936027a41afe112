// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package process provides entrypoint helpers for the bridge binaries:
// reporting a fatal error before the structured logger exists, mapping
// returned errors to exit codes, and building the process logger from
// configuration.
//
// These are the only places outside cmd/uwbctl's output code that
// write to stderr directly.
package process
