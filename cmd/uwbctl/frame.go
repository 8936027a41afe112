// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/tidwall/jsonc"

	"github.com/bureau-foundation/uwbbridge/lib/uci"
)

// parseFrame decodes a hex UCI packet and checks that it is exactly one
// well-formed frame. Bytes may be separated by spaces, colons, or
// dashes, and an optional 0x prefix is accepted.
func parseFrame(text string) ([]byte, error) {
	cleaned := strings.TrimPrefix(strings.TrimSpace(text), "0x")
	cleaned = strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\t', ':', '-':
			return -1
		}
		return r
	}, cleaned)
	if cleaned == "" {
		return nil, fmt.Errorf("empty frame")
	}
	frame, err := hex.DecodeString(cleaned)
	if err != nil {
		return nil, fmt.Errorf("frame %q is not hex: %w", text, err)
	}
	if _, err := uci.ParseFrame(frame); err != nil {
		return nil, fmt.Errorf("frame %q: %w", text, err)
	}
	return frame, nil
}

// scriptFile is the JSONC form of a send script:
//
//	{
//	  // Device info, then wait for the response.
//	  "steps": [
//	    {"send": "20 02 00 00"},
//	    {"sleep": "100ms"},
//	  ],
//	}
type scriptFile struct {
	Steps []scriptFileStep `json:"steps"`
}

type scriptFileStep struct {
	Send  string `json:"send,omitempty"`
	Sleep string `json:"sleep,omitempty"`
}

// scriptStep is one validated step: a frame to send or a pause.
type scriptStep struct {
	frame []byte
	sleep time.Duration
}

func loadScript(path string) ([]scriptStep, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading script: %w", err)
	}
	steps, err := parseScript(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return steps, nil
}

// parseScript validates every step before returning, so a bad frame
// late in a script is reported before anything is sent.
func parseScript(data []byte) ([]scriptStep, error) {
	var file scriptFile
	decoder := json.NewDecoder(bytes.NewReader(jsonc.ToJSON(data)))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&file); err != nil {
		return nil, fmt.Errorf("parsing script: %w", err)
	}
	if len(file.Steps) == 0 {
		return nil, fmt.Errorf("script has no steps")
	}

	steps := make([]scriptStep, 0, len(file.Steps))
	for i, raw := range file.Steps {
		switch {
		case raw.Send != "" && raw.Sleep != "":
			return nil, fmt.Errorf("steps[%d]: set send or sleep, not both", i)
		case raw.Send != "":
			frame, err := parseFrame(raw.Send)
			if err != nil {
				return nil, fmt.Errorf("steps[%d]: %w", i, err)
			}
			steps = append(steps, scriptStep{frame: frame})
		case raw.Sleep != "":
			duration, err := time.ParseDuration(raw.Sleep)
			if err != nil {
				return nil, fmt.Errorf("steps[%d]: %w", i, err)
			}
			if duration < 0 {
				return nil, fmt.Errorf("steps[%d]: negative sleep %s", i, raw.Sleep)
			}
			steps = append(steps, scriptStep{sleep: duration})
		default:
			return nil, fmt.Errorf("steps[%d]: empty step", i)
		}
	}
	return steps, nil
}
