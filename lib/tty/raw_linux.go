// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package tty

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

func openRaw(path string) (Port, error) {
	fd, err := unix.Open(path, unix.O_RDWR|unix.O_NOCTTY|unix.O_CLOEXEC, 0)
	if err != nil {
		return nil, err
	}
	termios, err := unix.IoctlGetTermios(fd, unix.TCGETS)
	if err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("reading termios: %w", err)
	}
	makeRaw(termios)
	if err := unix.IoctlSetTermios(fd, unix.TCSETS, termios); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("applying raw termios: %w", err)
	}
	return os.NewFile(uintptr(fd), path), nil
}

// makeRaw applies the same changes as cfmakeraw(3): no input or output
// processing, no echo, no signals, 8-bit characters, and reads that
// return as soon as one byte is available.
func makeRaw(termios *unix.Termios) {
	termios.Iflag &^= unix.IGNBRK | unix.BRKINT | unix.PARMRK | unix.ISTRIP |
		unix.INLCR | unix.IGNCR | unix.ICRNL | unix.IXON
	termios.Oflag &^= unix.OPOST
	termios.Lflag &^= unix.ECHO | unix.ECHONL | unix.ICANON | unix.ISIG | unix.IEXTEN
	termios.Cflag &^= unix.CSIZE | unix.PARENB
	termios.Cflag |= unix.CS8
	termios.Cc[unix.VMIN] = 1
	termios.Cc[unix.VTIME] = 0
}
