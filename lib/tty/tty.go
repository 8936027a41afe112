// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package tty opens the byte stream a UWB chip is attached to.
//
// Two modes are supported. [ModeRaw] opens a character device and puts
// its line discipline into raw mode, leaving the baud rate alone; this
// is what an emulator's virtual console needs. [ModeUART] opens a real
// serial port at a fixed baud rate with 8N1 framing.
package tty

import (
	"errors"
	"fmt"
	"io"
)

// Mode selects how a device is opened.
type Mode string

const (
	ModeRaw  Mode = "raw"
	ModeUART Mode = "uart"
)

// DefaultBaudRate is used in ModeUART when Config.BaudRate is zero.
const DefaultBaudRate = 115200

// ErrUnsupported is returned by Open for ModeRaw on platforms without
// a termios implementation here.
var ErrUnsupported = errors.New("tty: raw mode is not supported on this platform")

// Config describes one device.
type Config struct {
	// Path is the device node, for example /dev/hvc2 or /dev/ttyACM0.
	Path string

	// Mode defaults to ModeRaw.
	Mode Mode

	// BaudRate applies to ModeUART only.
	BaudRate int
}

// Port is an open device. Reads block until at least one byte is
// available.
type Port = io.ReadWriteCloser

// Open opens the device described by config.
func Open(config Config) (Port, error) {
	if config.Path == "" {
		return nil, errors.New("tty: path is required")
	}
	switch config.Mode {
	case "", ModeRaw:
		port, err := openRaw(config.Path)
		if err != nil {
			return nil, fmt.Errorf("tty: opening %s in raw mode: %w", config.Path, err)
		}
		return port, nil
	case ModeUART:
		baudRate := config.BaudRate
		if baudRate == 0 {
			baudRate = DefaultBaudRate
		}
		port, err := openUART(config.Path, baudRate)
		if err != nil {
			return nil, fmt.Errorf("tty: opening %s at %d baud: %w", config.Path, baudRate, err)
		}
		return port, nil
	default:
		return nil, fmt.Errorf("tty: unknown mode %q (want %q or %q)", config.Mode, ModeRaw, ModeUART)
	}
}
