// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package tty

import "go.bug.st/serial"

func openUART(path string, baudRate int) (Port, error) {
	return serial.Open(path, &serial.Mode{
		BaudRate: baudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	})
}
