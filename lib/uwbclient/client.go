// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package uwbclient

import (
	"context"
	"fmt"
	"time"

	"github.com/bureau-foundation/uwbbridge/lib/ipc"
	"github.com/bureau-foundation/uwbbridge/lib/service"
)

// Client talks to one bridge daemon.
type Client struct {
	service *service.ServiceClient
}

// New returns a client for the daemon listening at socketPath. No
// connection is made until the first call.
func New(socketPath string) *Client {
	return &Client{service: service.NewServiceClient(socketPath)}
}

// SocketPath returns the daemon socket path.
func (c *Client) SocketPath() string {
	return c.service.SocketPath()
}

func (c *Client) call(ctx context.Context, action string, fields map[string]any, result any) error {
	return ipc.FromServiceError(c.service.Call(ctx, action, fields, result))
}

// Chips lists the chip names the daemon serves.
func (c *Client) Chips(ctx context.Context) ([]string, error) {
	var response ipc.ChipsResponse
	if err := c.call(ctx, ipc.ActionGetChips, nil, &response); err != nil {
		return nil, err
	}
	return response.Chips, nil
}

// Name returns the chip's name as the daemon reports it.
func (c *Client) Name(ctx context.Context, chipName string) (string, error) {
	var response ipc.NameResponse
	if err := c.call(ctx, ipc.ActionGetName, chipFields(chipName), &response); err != nil {
		return "", err
	}
	return response.Name, nil
}

// SupportedUCIVersion returns the Android UCI version the chip speaks.
func (c *Client) SupportedUCIVersion(ctx context.Context, chipName string) (int32, error) {
	var response ipc.VersionResponse
	if err := c.call(ctx, ipc.ActionGetSupportedUCIVersion, chipFields(chipName), &response); err != nil {
		return 0, err
	}
	return response.Version, nil
}

// Close resets the chip and releases whichever session holds it.
func (c *Client) Close(ctx context.Context, chipName string) error {
	return c.call(ctx, ipc.ActionClose, chipFields(chipName), nil)
}

// CoreInit asks the daemon to report post-init completion to the
// chip's session.
func (c *Client) CoreInit(ctx context.Context, chipName string) error {
	return c.call(ctx, ipc.ActionCoreInit, chipFields(chipName), nil)
}

// SessionInit sends a session initialization notice.
func (c *Client) SessionInit(ctx context.Context, chipName string, sessionID int32) error {
	return c.call(ctx, ipc.ActionSessionInit, map[string]any{
		"chip":       chipName,
		"session_id": sessionID,
	}, nil)
}

// SendUCIMessage writes data to the chip verbatim and returns the
// number of bytes written. The chip's response arrives on the session.
func (c *Client) SendUCIMessage(ctx context.Context, chipName string, data []byte) (int, error) {
	var response ipc.SendUCIMessageResponse
	err := c.call(ctx, ipc.ActionSendUCIMessage, map[string]any{
		"chip": chipName,
		"data": data,
	}, &response)
	if err != nil {
		return 0, err
	}
	return response.Written, nil
}

// Status returns daemon and chip statistics. An empty chipName selects
// every chip.
func (c *Client) Status(ctx context.Context, chipName string) (*ipc.StatusResponse, error) {
	var fields map[string]any
	if chipName != "" {
		fields = chipFields(chipName)
	}
	var response ipc.StatusResponse
	if err := c.call(ctx, ipc.ActionStatus, fields, &response); err != nil {
		return nil, err
	}
	return &response, nil
}

func chipFields(chipName string) map[string]any {
	return map[string]any{"chip": chipName}
}

// Open binds a new session to the chip. It returns once the daemon
// reports the outcome of the open; any notifications that preceded the
// outcome (the open-complete event) are the first values Next returns.
func (c *Client) Open(ctx context.Context, chipName string) (*Session, error) {
	stream, err := c.service.OpenStream(ctx, ipc.ActionOpen, chipFields(chipName))
	if err != nil {
		return nil, err
	}
	session := &Session{chip: chipName, stream: stream}

	if deadline, ok := ctx.Deadline(); ok {
		stream.SetReadDeadline(deadline)
	}
	for {
		var notification ipc.Notification
		if err := stream.Recv(&notification); err != nil {
			stream.Close()
			return nil, fmt.Errorf("opening chip %q: reading result: %w", chipName, err)
		}
		if notification.Type != ipc.NotificationResult {
			session.pending = append(session.pending, notification)
			continue
		}
		if notification.Code != "" || notification.Error != "" {
			stream.Close()
			return nil, fmt.Errorf("opening chip %q: %w", chipName,
				ipc.DecodeError(notification.Code, notification.Error))
		}
		break
	}
	stream.SetReadDeadline(time.Time{})
	return session, nil
}
