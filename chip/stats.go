// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package chip

import "sync/atomic"

// Stats is a point-in-time snapshot of a chip's traffic counters.
type Stats struct {
	Open             bool   `json:"open"`
	FramesIn         uint64 `json:"frames_in"`
	FramesDelivered  uint64 `json:"frames_delivered"`
	FramesDropped    uint64 `json:"frames_dropped"`
	DeliveryFailures uint64 `json:"delivery_failures"`
	MessagesOut      uint64 `json:"messages_out"`
	BytesOut         uint64 `json:"bytes_out"`
	Opens            uint64 `json:"opens"`
	ClientDeaths     uint64 `json:"client_deaths"`
	ReaderRunning    bool   `json:"reader_running"`
	ReaderError      string `json:"reader_error,omitempty"`
}

type counters struct {
	framesIn         atomic.Uint64
	framesDelivered  atomic.Uint64
	framesDropped    atomic.Uint64
	deliveryFailures atomic.Uint64
	messagesOut      atomic.Uint64
	bytesOut         atomic.Uint64
	opens            atomic.Uint64
	clientDeaths     atomic.Uint64
}
