// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/bureau-foundation/uwbbridge/lib/uci"
)

func TestParseFrame(t *testing.T) {
	want := []byte{0x20, 0x02, 0x00, 0x00}
	for _, input := range []string{"20 02 00 00", "20020000", "0x20020000", "20:02:00:00", " 20-02-00-00 "} {
		got, err := parseFrame(input)
		if err != nil {
			t.Errorf("parseFrame(%q): %v", input, err)
			continue
		}
		if !bytes.Equal(got, want) {
			t.Errorf("parseFrame(%q) = % x, want % x", input, got, want)
		}
	}
}

func TestParseFrameRejects(t *testing.T) {
	for _, input := range []string{"", "zz", "2"} {
		if _, err := parseFrame(input); err == nil {
			t.Errorf("parseFrame(%q): expected error", input)
		}
	}

	malformed := []string{
		"20 02 00",
		// Header declares one payload byte, none present.
		"20 02 00 01",
		// Message type 4 is reserved.
		"80 00 00 00",
	}
	for _, input := range malformed {
		if _, err := parseFrame(input); !errors.Is(err, uci.ErrMalformedHeader) {
			t.Errorf("parseFrame(%q) = %v, want ErrMalformedHeader", input, err)
		}
	}
}

func TestParseScript(t *testing.T) {
	steps, err := parseScript([]byte(`{
		// Ask for device info, then give the chip time to answer.
		"steps": [
			{"send": "20 02 00 00"},
			{"sleep": "100ms"},
			{"send": "21 00 00 00"}, // trailing comma allowed
		],
	}`))
	if err != nil {
		t.Fatalf("parseScript: %v", err)
	}
	if len(steps) != 3 {
		t.Fatalf("got %d steps, want 3", len(steps))
	}
	if !bytes.Equal(steps[0].frame, []byte{0x20, 0x02, 0x00, 0x00}) {
		t.Errorf("step 0 frame = % x", steps[0].frame)
	}
	if steps[1].frame != nil || steps[1].sleep != 100*time.Millisecond {
		t.Errorf("step 1 = %+v, want 100ms sleep", steps[1])
	}
}

func TestParseScriptValidatesEveryStep(t *testing.T) {
	tests := []struct {
		name   string
		script string
		want   string
	}{
		{"no steps", `{"steps": []}`, "no steps"},
		{"bad frame late", `{"steps": [{"send": "20 02 00 00"}, {"send": "20 02"}]}`, "steps[1]"},
		{"both", `{"steps": [{"send": "20 02 00 00", "sleep": "1s"}]}`, "not both"},
		{"empty step", `{"steps": [{}]}`, "empty step"},
		{"bad duration", `{"steps": [{"sleep": "soon"}]}`, "steps[0]"},
		{"negative", `{"steps": [{"sleep": "-1s"}]}`, "negative"},
		{"unknown field", `{"steps": [{"transmit": "20 02 00 00"}]}`, "unknown field"},
		{"not json", `steps:`, "parsing script"},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			_, err := parseScript([]byte(test.script))
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), test.want) {
				t.Errorf("error %q does not mention %q", err, test.want)
			}
		})
	}
}

func TestLoadScript(t *testing.T) {
	path := filepath.Join(t.TempDir(), "init.jsonc")
	if err := os.WriteFile(path, []byte(`{"steps": [{"send": "20 00 00 01 00"}]}`), 0o644); err != nil {
		t.Fatal(err)
	}
	steps, err := loadScript(path)
	if err != nil {
		t.Fatalf("loadScript: %v", err)
	}
	if !bytes.Equal(steps[0].frame, uci.DeviceResetCommand()) {
		t.Errorf("frame = % x", steps[0].frame)
	}

	if _, err := loadScript(filepath.Join(t.TempDir(), "missing.jsonc")); err == nil {
		t.Error("expected error for missing script")
	}
}
