// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/bureau-foundation/uwbbridge/lib/capture"
	"github.com/bureau-foundation/uwbbridge/lib/ipc"
	"github.com/bureau-foundation/uwbbridge/lib/uci"
)

func writeJSON(w io.Writer, value any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(value)
}

// notificationLine is the --json form of a listen notification.
type notificationLine struct {
	Type   ipc.NotificationType `json:"type"`
	Frame  string               `json:"frame,omitempty"`
	Event  string               `json:"event,omitempty"`
	Status string               `json:"status,omitempty"`
}

func printNotification(w io.Writer, notification ipc.Notification, asJSON bool) error {
	if asJSON {
		line := notificationLine{Type: notification.Type}
		switch notification.Type {
		case ipc.NotificationUCI:
			line.Frame = hex.EncodeToString(notification.Frame)
		case ipc.NotificationEvent:
			line.Event = notification.Event.String()
			line.Status = notification.Status.String()
		}
		return json.NewEncoder(w).Encode(line)
	}

	var err error
	switch notification.Type {
	case ipc.NotificationUCI:
		_, err = fmt.Fprintf(w, "uci   %s\n", uci.Describe(notification.Frame))
	case ipc.NotificationEvent:
		_, err = fmt.Fprintf(w, "event %s %s\n", notification.Event, notification.Status)
	default:
		_, err = fmt.Fprintf(w, "%s\n", notification.Type)
	}
	return err
}

func printStatus(w io.Writer, status *ipc.StatusResponse) error {
	fmt.Fprintf(w, "bridge %s\n\n", status.Version)
	tw := tabwriter.NewWriter(w, 2, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "CHIP\tOPEN\tIN\tDELIVERED\tDROPPED\tFAILED\tOUT\tBYTES OUT\tOPENS\tDEATHS\tREADER")
	for _, chip := range status.Chips {
		stats := chip.Stats
		reader := "running"
		if !stats.ReaderRunning {
			reader = "stopped: " + stats.ReaderError
		}
		fmt.Fprintf(tw, "%s\t%t\t%d\t%d\t%d\t%d\t%d\t%d\t%d\t%d\t%s\n",
			chip.Name, stats.Open, stats.FramesIn, stats.FramesDelivered, stats.FramesDropped,
			stats.DeliveryFailures, stats.MessagesOut, stats.BytesOut, stats.Opens,
			stats.ClientDeaths, reader)
	}
	return tw.Flush()
}

// captureLine is the --json form of a capture record.
type captureLine struct {
	Time      time.Time `json:"time"`
	Chip      string    `json:"chip"`
	Direction string    `json:"direction"`
	Frame     string    `json:"frame"`
}

func printRecord(w io.Writer, record capture.Record, asJSON bool) error {
	timestamp := time.Unix(0, record.TimeNS).UTC()
	if asJSON {
		return json.NewEncoder(w).Encode(captureLine{
			Time:      timestamp,
			Chip:      record.Chip,
			Direction: record.Direction.String(),
			Frame:     hex.EncodeToString(record.Frame),
		})
	}
	_, err := fmt.Fprintf(w, "%s %s %-3s %s\n",
		timestamp.Format(time.RFC3339Nano), record.Chip, record.Direction, uci.Describe(record.Frame))
	return err
}
