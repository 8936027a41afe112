// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/bureau-foundation/uwbbridge/chip"
	"github.com/bureau-foundation/uwbbridge/lib/clock"
	"github.com/bureau-foundation/uwbbridge/lib/codec"
	"github.com/bureau-foundation/uwbbridge/lib/config"
	"github.com/bureau-foundation/uwbbridge/lib/ipc"
	"github.com/bureau-foundation/uwbbridge/lib/service"
	"github.com/bureau-foundation/uwbbridge/lib/version"
)

// lockTimeout bounds how long a request waits for a chip that is busy
// with another operation, typically a write to a stalled device.
const lockTimeout = 20 * time.Second

type daemonConfig struct {
	Stream config.StreamConfig
	Clock  clock.Clock
	Logger *slog.Logger
}

// daemon serves the socket API over a fixed set of chips.
type daemon struct {
	chips  map[string]*chip.Chip
	names  []string
	stream config.StreamConfig
	clock  clock.Clock
	logger *slog.Logger
}

func newDaemon(chips []*chip.Chip, config daemonConfig) *daemon {
	d := &daemon{
		chips:  make(map[string]*chip.Chip, len(chips)),
		stream: config.Stream,
		clock:  config.Clock,
		logger: config.Logger,
	}
	if d.clock == nil {
		d.clock = clock.Real()
	}
	if d.logger == nil {
		d.logger = slog.Default()
	}
	for _, controller := range chips {
		d.chips[controller.Name()] = controller
		d.names = append(d.names, controller.Name())
	}
	return d
}

func (d *daemon) register(server *service.SocketServer) {
	server.Handle(ipc.ActionGetChips, d.handleGetChips)
	server.Handle(ipc.ActionGetName, d.handleGetName)
	server.Handle(ipc.ActionGetSupportedUCIVersion, d.handleGetSupportedUCIVersion)
	server.Handle(ipc.ActionClose, d.handleClose)
	server.Handle(ipc.ActionCoreInit, d.handleCoreInit)
	server.Handle(ipc.ActionSessionInit, d.handleSessionInit)
	server.Handle(ipc.ActionSendUCIMessage, d.handleSendUCIMessage)
	server.Handle(ipc.ActionStatus, d.handleStatus)
	server.HandleStream(ipc.ActionOpen, d.handleOpen)
}

// lookup resolves a chip name. Errors are already wrapped for the wire.
func (d *daemon) lookup(name string) (*chip.Chip, error) {
	if name == "" {
		return nil, ipc.WrapError(fmt.Errorf("%w: missing required field: chip", ipc.ErrInvalidRequest))
	}
	controller, ok := d.chips[name]
	if !ok {
		return nil, ipc.WrapError(fmt.Errorf("%w: %q", ipc.ErrUnknownChip, name))
	}
	return controller, nil
}

// decodeChip decodes a ChipRequest and resolves its chip.
func (d *daemon) decodeChip(raw []byte) (*chip.Chip, error) {
	var request ipc.ChipRequest
	if err := decode(raw, &request); err != nil {
		return nil, err
	}
	return d.lookup(request.Chip)
}

func decode(raw []byte, request any) error {
	if err := codec.Unmarshal(raw, request); err != nil {
		return ipc.WrapError(fmt.Errorf("%w: %v", ipc.ErrInvalidRequest, err))
	}
	return nil
}

func (d *daemon) handleGetChips(_ context.Context, _ []byte) (any, error) {
	return ipc.ChipsResponse{Chips: d.names}, nil
}

func (d *daemon) handleGetName(_ context.Context, raw []byte) (any, error) {
	controller, err := d.decodeChip(raw)
	if err != nil {
		return nil, err
	}
	return ipc.NameResponse{Name: controller.Name()}, nil
}

func (d *daemon) handleGetSupportedUCIVersion(_ context.Context, raw []byte) (any, error) {
	controller, err := d.decodeChip(raw)
	if err != nil {
		return nil, err
	}
	return ipc.VersionResponse{Version: controller.SupportedUCIVersion()}, nil
}

func (d *daemon) handleClose(ctx context.Context, raw []byte) (any, error) {
	controller, err := d.decodeChip(raw)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, lockTimeout)
	defer cancel()
	return nil, ipc.WrapError(controller.Close(ctx))
}

func (d *daemon) handleCoreInit(ctx context.Context, raw []byte) (any, error) {
	controller, err := d.decodeChip(raw)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, lockTimeout)
	defer cancel()
	return nil, ipc.WrapError(controller.CoreInit(ctx))
}

func (d *daemon) handleSessionInit(ctx context.Context, raw []byte) (any, error) {
	var request ipc.SessionInitRequest
	if err := decode(raw, &request); err != nil {
		return nil, err
	}
	controller, err := d.lookup(request.Chip)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, lockTimeout)
	defer cancel()
	return nil, ipc.WrapError(controller.SessionInit(ctx, request.SessionID))
}

func (d *daemon) handleSendUCIMessage(ctx context.Context, raw []byte) (any, error) {
	var request ipc.SendUCIMessageRequest
	if err := decode(raw, &request); err != nil {
		return nil, err
	}
	controller, err := d.lookup(request.Chip)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, lockTimeout)
	defer cancel()
	written, err := controller.SendMessage(ctx, request.Data)
	if err != nil {
		return nil, ipc.WrapError(err)
	}
	return ipc.SendUCIMessageResponse{Written: written}, nil
}

func (d *daemon) handleStatus(_ context.Context, raw []byte) (any, error) {
	var request ipc.StatusRequest
	if err := decode(raw, &request); err != nil {
		return nil, err
	}
	names := d.names
	if request.Chip != "" {
		if _, err := d.lookup(request.Chip); err != nil {
			return nil, err
		}
		names = []string{request.Chip}
	}
	response := ipc.StatusResponse{Version: version.Short()}
	for _, name := range names {
		response.Chips = append(response.Chips, ipc.ChipStatus{
			Name:  name,
			Stats: d.chips[name].Stats(),
		})
	}
	return response, nil
}
