// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package chip

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync/atomic"

	"github.com/bureau-foundation/uwbbridge/lib/uci"
)

// supportedUCIVersion is the Android UCI extension version this bridge
// speaks. It is fixed; the chip is never asked.
const supportedUCIVersion int32 = 1

// Config holds the parameters for New.
type Config struct {
	// Name identifies the chip to clients ("uwb0"). Required.
	Name string

	// Transport is the byte stream to the chip. The reader loop owns
	// its read half from the moment New returns; controller operations
	// own the write half under the chip lock. Required.
	Transport io.ReadWriter

	// Logger receives lifecycle and traffic records. Nil means
	// slog.Default().
	Logger *slog.Logger

	// Tap, if set, observes every frame read from or written to the
	// transport.
	Tap Tap
}

// Chip is the controller for one UWB chip. All methods are safe for
// concurrent use.
type Chip struct {
	name   string
	logger *slog.Logger
	tap    Tap

	// lock is a one-slot semaphore guarding state and generation.
	// Waiters in acquire give up when their context is done.
	lock  chan struct{}
	state session

	// opened mirrors state.current() != nil for Stats, which does not
	// take the lock.
	opened atomic.Bool

	// generation is bumped by every successful link in Open. Guarded
	// by lock.
	generation uint64

	counters counters

	done      chan struct{}
	readerErr error
}

// New creates a chip in the CLOSED state and starts its reader loop.
// The loop runs until the transport fails; see Done.
func New(config Config) (*Chip, error) {
	if config.Name == "" {
		return nil, errors.New("chip: name is required")
	}
	if config.Transport == nil {
		return nil, fmt.Errorf("chip %q: transport is required", config.Name)
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	c := &Chip{
		name:   config.Name,
		logger: logger.With("chip", config.Name),
		tap:    config.Tap,
		lock:   make(chan struct{}, 1),
		state:  session{transport: config.Transport},
		done:   make(chan struct{}),
	}
	go c.readLoop(config.Transport)
	return c, nil
}

// Name returns the chip's configured name.
func (c *Chip) Name() string {
	return c.name
}

// SupportedUCIVersion returns the Android UCI version the bridge
// supports. Always 1.
func (c *Chip) SupportedUCIVersion() int32 {
	return supportedUCIVersion
}

// acquire takes the chip lock, or returns ctx.Err() if ctx is done
// first. Every successful acquire must be paired with release.
func (c *Chip) acquire(ctx context.Context) error {
	select {
	case c.lock <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Chip) release() {
	<-c.lock
}

// Open binds client to the chip. The chip must be CLOSED.
//
// Open arms a death watch on the client, reports EventOpenComplete to
// it, and then records the binding. If the watch cannot be armed or the
// event cannot be delivered, the watch is disarmed, nothing is bound,
// and ErrRemoteGone is returned.
func (c *Chip) Open(ctx context.Context, client Client) error {
	if client == nil {
		return fmt.Errorf("chip %q: open: nil client", c.name)
	}
	if err := c.acquire(ctx); err != nil {
		return err
	}
	defer c.release()

	if c.state.current() != nil {
		return fmt.Errorf("%w: chip %q is already open", ErrIllegalState, c.name)
	}

	c.generation++
	generation := c.generation
	unlink, err := client.LinkToDeath(func() {
		go c.handleDeath(generation)
	})
	if err != nil {
		return fmt.Errorf("%w: linking death watch: %v", ErrRemoteGone, err)
	}

	if err := client.OnHALEvent(EventOpenComplete, StatusOK); err != nil {
		unlink()
		return fmt.Errorf("%w: delivering %s: %v", ErrRemoteGone, EventOpenComplete, err)
	}

	if err := c.state.bind(&binding{client: client, unlink: unlink, generation: generation}); err != nil {
		// Unreachable while the lock is held.
		unlink()
		return fmt.Errorf("%w: %v", ErrIllegalState, err)
	}
	c.opened.Store(true)
	c.counters.opens.Add(1)
	c.logger.Info("chip opened", "generation", generation)
	return nil
}

// Close resets the chip and releases the bound client. The chip must
// be OPENED.
//
// The device reset command is written first. If that write fails the
// chip stays OPENED and ErrTransport is returned, so Close can be
// retried. Otherwise EventCloseComplete is reported to the client while
// it is still bound, and then the binding and its death watch are
// released. A client that cannot receive the event does not stop the
// close: the chip still ends CLOSED, and ErrRemoteGone is returned.
func (c *Chip) Close(ctx context.Context) error {
	if err := c.acquire(ctx); err != nil {
		return err
	}
	defer c.release()

	current := c.state.current()
	if current == nil {
		return fmt.Errorf("%w: chip %q is not open", ErrIllegalState, c.name)
	}

	if _, err := c.write(uci.DeviceResetCommand()); err != nil {
		return fmt.Errorf("%w: writing device reset: %v", ErrTransport, err)
	}

	eventErr := current.client.OnHALEvent(EventCloseComplete, StatusOK)

	c.clearBinding()
	c.logger.Info("chip closed", "generation", current.generation)

	if eventErr != nil {
		return fmt.Errorf("%w: delivering %s: %v", ErrRemoteGone, EventCloseComplete, eventErr)
	}
	return nil
}

// CoreInit reports EventPostInitComplete to the bound client. The chip
// must be OPENED. A client that cannot receive the event is treated as
// dead: the binding is released and ErrRemoteGone is returned.
func (c *Chip) CoreInit(ctx context.Context) error {
	if err := c.acquire(ctx); err != nil {
		return err
	}
	defer c.release()

	current := c.state.current()
	if current == nil {
		return fmt.Errorf("%w: chip %q is not open", ErrIllegalState, c.name)
	}
	if err := current.client.OnHALEvent(EventPostInitComplete, StatusOK); err != nil {
		c.clearBinding()
		c.counters.clientDeaths.Add(1)
		c.logger.Warn("client unreachable during core init, releasing binding",
			"generation", current.generation, "error", err)
		return fmt.Errorf("%w: delivering %s: %v", ErrRemoteGone, EventPostInitComplete, err)
	}
	return nil
}

// SessionInit accepts a session initialization notice. It is advisory,
// valid in any state, and changes nothing.
func (c *Chip) SessionInit(ctx context.Context, sessionID int32) error {
	if err := c.acquire(ctx); err != nil {
		return err
	}
	defer c.release()

	c.logger.Debug("session init", "session_id", sessionID)
	return nil
}

// SendMessage writes data to the transport verbatim and returns the
// number of bytes written. The chip must be OPENED. The chip's response
// is not returned here: it arrives at the bound client through the
// reader loop.
func (c *Chip) SendMessage(ctx context.Context, data []byte) (int, error) {
	if err := c.acquire(ctx); err != nil {
		return 0, err
	}
	defer c.release()

	if c.state.current() == nil {
		return 0, fmt.Errorf("%w: chip %q is not open", ErrIllegalState, c.name)
	}
	written, err := c.write(data)
	if err != nil {
		return written, fmt.Errorf("%w: %v", ErrTransport, err)
	}
	return written, nil
}

// write sends one outbound frame. Caller holds the lock.
func (c *Chip) write(data []byte) (int, error) {
	c.logger.Debug(" --> ", "frame", uci.Describe(data))
	if c.tap != nil {
		c.tap(DirectionOutbound, data)
	}
	written, err := c.state.writer().Write(data)
	if written > 0 {
		c.counters.messagesOut.Add(1)
		c.counters.bytesOut.Add(uint64(written))
	}
	return written, err
}

// clearBinding unbinds and disarms the death watch. Caller holds the
// lock.
func (c *Chip) clearBinding() {
	if previous := c.state.unbind(); previous != nil {
		previous.unlink()
	}
	c.opened.Store(false)
}

// handleDeath runs when the client bound by Open(generation) dies. It
// is always started on its own goroutine, so the blocking acquire never
// runs on the notifier's stack.
func (c *Chip) handleDeath(generation uint64) {
	if err := c.acquire(context.Background()); err != nil {
		return
	}
	defer c.release()

	current := c.state.current()
	if current == nil || current.generation != generation {
		c.logger.Debug("ignoring stale client death", "generation", generation)
		return
	}
	c.clearBinding()
	c.counters.clientDeaths.Add(1)
	c.logger.Info("client died, chip closed", "generation", generation)
}

// Done is closed when the reader loop exits.
func (c *Chip) Done() <-chan struct{} {
	return c.done
}

// Err returns the reason the reader loop exited, wrapping ErrTransport.
// It returns nil while the loop is running.
func (c *Chip) Err() error {
	select {
	case <-c.done:
		return c.readerErr
	default:
		return nil
	}
}

// Stats returns a snapshot of the chip's counters. It does not take the
// chip lock, so it never waits behind a stalled write.
func (c *Chip) Stats() Stats {
	stats := Stats{
		Open:             c.opened.Load(),
		FramesIn:         c.counters.framesIn.Load(),
		FramesDelivered:  c.counters.framesDelivered.Load(),
		FramesDropped:    c.counters.framesDropped.Load(),
		DeliveryFailures: c.counters.deliveryFailures.Load(),
		MessagesOut:      c.counters.messagesOut.Load(),
		BytesOut:         c.counters.bytesOut.Load(),
		Opens:            c.counters.opens.Load(),
		ClientDeaths:     c.counters.clientDeaths.Load(),
		ReaderRunning:    true,
	}
	if err := c.Err(); err != nil {
		stats.ReaderRunning = false
		stats.ReaderError = err.Error()
	}
	return stats
}
