// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package ipc

import (
	"testing"

	"github.com/bureau-foundation/uwbbridge/chip"
	"github.com/bureau-foundation/uwbbridge/lib/codec"
)

func TestNotificationOmitsUnusedEventFields(t *testing.T) {
	for _, notification := range []Notification{
		{Type: NotificationHeartbeat},
		{Type: NotificationResult},
		{Type: NotificationUCI, Frame: []byte{0x60, 0x01, 0x00, 0x01, 0x01}},
	} {
		data, err := codec.Marshal(notification)
		if err != nil {
			t.Fatalf("Marshal(%s): %v", notification.Type, err)
		}
		var fields map[string]any
		if err := codec.Unmarshal(data, &fields); err != nil {
			t.Fatalf("Unmarshal(%s): %v", notification.Type, err)
		}
		for _, key := range []string{"event", "status"} {
			if _, present := fields[key]; present {
				t.Errorf("%s notification carries %q: %v", notification.Type, key, fields)
			}
		}
	}
}

func TestNotificationEventSurvivesOmission(t *testing.T) {
	for _, want := range []Notification{
		{Type: NotificationEvent, Event: chip.EventOpenComplete, Status: chip.StatusOK},
		{Type: NotificationEvent, Event: chip.EventCloseComplete, Status: chip.StatusOK},
	} {
		data, err := codec.Marshal(want)
		if err != nil {
			t.Fatalf("Marshal: %v", err)
		}
		var got Notification
		if err := codec.Unmarshal(data, &got); err != nil {
			t.Fatalf("Unmarshal: %v", err)
		}
		if got.Type != want.Type || got.Event != want.Event || got.Status != want.Status {
			t.Errorf("decoded %+v, want %+v", got, want)
		}
	}
}
