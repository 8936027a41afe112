// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package config loads the bridge daemon's configuration.
//
// Configuration comes from exactly one YAML file, named by the --config
// flag or the UWB_BRIDGE_CONFIG environment variable. There is no
// search path and no per-field environment override. Path fields may
// use ${VAR} and ${VAR:-default}, expanded from the environment when
// the file is loaded.
//
// A minimal file:
//
//	socket_path: ${XDG_RUNTIME_DIR:-/run}/uwb-bridge.sock
//	chips:
//	  - name: default
//	    path: /dev/hvc2
//
// Values not set in the file keep their defaults from [Default].
package config
