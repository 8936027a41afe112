// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Uwbctl is the operator CLI for uwbd.
//
// It lists and inspects chips, opens a chip and prints what it sends,
// sends UCI packets, and decodes capture files:
//
//	uwbctl chips
//	uwbctl listen uwb0 --core-init --script init.jsonc
//	uwbctl send uwb0 "20 02 00 00"
//	uwbctl capture /var/log/uwb.uwbcap
//
// The daemon socket comes from --socket, then UWB_BRIDGE_SOCKET, then
// the daemon's default path.
package main
