// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package ipc

import "github.com/bureau-foundation/uwbbridge/chip"

// Actions.
const (
	ActionGetChips               = "get-chips"
	ActionGetName                = "get-name"
	ActionGetSupportedUCIVersion = "get-supported-uci-version"
	ActionOpen                   = "open"
	ActionClose                  = "close"
	ActionCoreInit               = "core-init"
	ActionSessionInit            = "session-init"
	ActionSendUCIMessage         = "send-uci-message"
	ActionStatus                 = "status"
)

// ChipRequest is the request body of every action that names only a
// chip: get-name, get-supported-uci-version, open, close, core-init.
type ChipRequest struct {
	Chip string `cbor:"chip"`
}

type SessionInitRequest struct {
	Chip      string `cbor:"chip"`
	SessionID int32  `cbor:"session_id"`
}

type SendUCIMessageRequest struct {
	Chip string `cbor:"chip"`
	Data []byte `cbor:"data"`
}

// StatusRequest selects one chip, or all of them when Chip is empty.
type StatusRequest struct {
	Chip string `cbor:"chip,omitempty"`
}

type ChipsResponse struct {
	Chips []string `json:"chips"`
}

type NameResponse struct {
	Name string `json:"name"`
}

type VersionResponse struct {
	Version int32 `json:"version"`
}

type SendUCIMessageResponse struct {
	Written int `json:"written"`
}

type ChipStatus struct {
	Name  string     `json:"name"`
	Stats chip.Stats `json:"stats"`
}

type StatusResponse struct {
	Version string       `json:"version"`
	Chips   []ChipStatus `json:"chips"`
}

// NotificationType discriminates stream values.
type NotificationType string

const (
	// NotificationUCI carries one inbound UCI frame in Frame.
	NotificationUCI NotificationType = "uci"
	// NotificationEvent carries a HAL event in Event and Status.
	NotificationEvent NotificationType = "event"
	// NotificationHeartbeat keeps an idle stream observably alive.
	NotificationHeartbeat NotificationType = "heartbeat"
	// NotificationResult reports the outcome of the open itself. Code
	// and Error are set when the open failed.
	NotificationResult NotificationType = "result"
)

// Notification is one value on an open stream. Event and Status are
// meaningful only for NotificationEvent; zero values are left off the
// wire and decode back to EventOpenComplete and StatusOK.
type Notification struct {
	Type   NotificationType `json:"type"`
	Frame  []byte           `json:"frame,omitempty"`
	Event  chip.Event       `json:"event,omitempty"`
	Status chip.Status      `json:"status,omitempty"`
	Code   string           `json:"code,omitempty"`
	Error  string           `json:"error,omitempty"`
}
