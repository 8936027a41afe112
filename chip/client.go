// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package chip

import "fmt"

// Event is a HAL lifecycle event reported to the bound client.
// Values match the UwbEvent enumeration of the Android UWB HAL.
type Event int32

const (
	EventOpenComplete     Event = 0
	EventCloseComplete    Event = 1
	EventPostInitComplete Event = 2
	EventError            Event = 3
)

func (e Event) String() string {
	switch e {
	case EventOpenComplete:
		return "open_complete"
	case EventCloseComplete:
		return "close_complete"
	case EventPostInitComplete:
		return "post_init_complete"
	case EventError:
		return "error"
	default:
		return fmt.Sprintf("event(%d)", int32(e))
	}
}

// Status accompanies an Event. Values match UwbStatus.
type Status int32

const (
	StatusOK             Status = 0
	StatusFailed         Status = 1
	StatusCommandTimeout Status = 2
	StatusRefused        Status = 3
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusFailed:
		return "failed"
	case StatusCommandTimeout:
		return "command_timeout"
	case StatusRefused:
		return "refused"
	default:
		return fmt.Sprintf("status(%d)", int32(s))
	}
}

// Callback receives inbound UCI frames and lifecycle events. An error
// from either method means the remote endpoint is gone.
//
// Both methods are called with the chip's lock held. They must not call
// back into the Chip.
type Callback interface {
	// OnUCIMessage delivers one complete UCI frame (header and
	// payload). The slice is not retained by the chip after the call.
	OnUCIMessage(frame []byte) error

	// OnHALEvent reports a lifecycle transition.
	OnHALEvent(event Event, status Status) error
}

// DeathWatcher arms a one-shot notification that fires when the
// process behind a callback terminates.
type DeathWatcher interface {
	// LinkToDeath registers recipient. The recipient is invoked at
	// most once, possibly from a goroutine the chip does not control.
	// The returned unlink function disarms the registration; it must
	// be safe to call more than once and must not block.
	LinkToDeath(recipient func()) (unlink func(), err error)
}

// Client is what Open binds: a callback whose owner can be watched.
type Client interface {
	Callback
	DeathWatcher
}

// Direction distinguishes frames read from the transport from frames
// written to it.
type Direction uint8

const (
	DirectionInbound  Direction = 1
	DirectionOutbound Direction = 2
)

func (d Direction) String() string {
	switch d {
	case DirectionInbound:
		return "in"
	case DirectionOutbound:
		return "out"
	default:
		return fmt.Sprintf("direction(%d)", uint8(d))
	}
}

// Tap observes every frame crossing the transport. It is called on the
// reader loop for inbound frames and on the calling goroutine for
// outbound writes, and must not block.
type Tap func(direction Direction, frame []byte)
