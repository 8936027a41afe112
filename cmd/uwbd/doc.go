// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Uwbd bridges UWB chips on serial devices to clients on a Unix socket.
//
// Each configured chip gets a controller (package chip) reading UCI
// frames from its device. Clients use the CBOR socket protocol
// (package lib/service) to open a chip, send UCI packets to it, and
// receive its frames and HAL events as a stream of notifications:
//
//	client --"send-uci-message"--> uwbd --> device
//	client <--"open" stream------- uwbd <-- device
//
// The "open" connection is the client's lifetime as far as the chip is
// concerned. When it drops, the chip is released and can be opened by
// the next client.
//
// The daemon exits with an error if any chip's device stops producing
// frames (read error or end of file): a chip that cannot be read from
// cannot be recovered without reopening its device.
//
// Configuration is a YAML file (package lib/config), named by --config
// or UWB_BRIDGE_CONFIG. When capture is configured, every frame in
// either direction is also recorded to a capture file (package
// lib/capture) readable with "uwbctl capture".
package main
