// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package chip

import (
	"context"
	"fmt"
	"io"

	"github.com/bureau-foundation/uwbbridge/lib/uci"
)

// readLoop reads UCI frames from the transport until it fails and hands
// each one to whichever client is bound at that moment.
func (c *Chip) readLoop(transport io.Reader) {
	defer close(c.done)

	for {
		frame, err := uci.ReadFrame(transport)
		if err != nil {
			c.readerErr = fmt.Errorf("%w: chip %q: %w", ErrTransport, c.name, err)
			c.logger.Error("reader loop stopped", "error", err)
			return
		}
		c.counters.framesIn.Add(1)
		c.logger.Debug(" <-- ", "frame", uci.Describe(frame))
		if c.tap != nil {
			c.tap(DirectionInbound, frame)
		}
		c.dispatch(frame)
	}
}

// dispatch delivers one frame under the chip lock. A client that fails
// to take the frame is logged and left bound; its death watch decides
// whether it is gone.
func (c *Chip) dispatch(frame []byte) {
	// The reader loop has no caller to cancel it, so it waits as long
	// as it takes.
	if err := c.acquire(context.Background()); err != nil {
		return
	}
	defer c.release()

	current := c.state.current()
	if current == nil {
		c.counters.framesDropped.Add(1)
		return
	}
	if err := current.client.OnUCIMessage(frame); err != nil {
		c.counters.deliveryFailures.Add(1)
		c.logger.Warn("delivering uci frame failed",
			"generation", current.generation,
			"frame", uci.Describe(frame),
			"error", err)
		return
	}
	c.counters.framesDelivered.Add(1)
}
