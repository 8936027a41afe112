// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/bureau-foundation/uwbbridge/lib/capture"
	"github.com/bureau-foundation/uwbbridge/lib/tty"
)

// EnvironmentVariable names the config file when --config is absent.
const EnvironmentVariable = "UWB_BRIDGE_CONFIG"

// Config is the daemon configuration.
type Config struct {
	// SocketPath is where the daemon serves its protocol.
	SocketPath string `yaml:"socket_path"`

	// Chips lists the devices to bridge. At least one is required.
	Chips []ChipConfig `yaml:"chips"`

	Stream  StreamConfig  `yaml:"stream"`
	Capture CaptureConfig `yaml:"capture"`
	Log     LogConfig     `yaml:"log"`
}

// ChipConfig describes one chip and the device it is attached to.
type ChipConfig struct {
	// Name is what clients use to address the chip.
	Name string `yaml:"name"`

	// Path is the device node.
	Path string `yaml:"path"`

	// Mode is "raw" (default) or "uart".
	Mode string `yaml:"mode"`

	// BaudRate applies to uart mode. Zero means 115200.
	BaudRate int `yaml:"baud_rate"`
}

// StreamConfig tunes open-session notification streams.
type StreamConfig struct {
	// HeartbeatInterval is the period of heartbeat notifications on
	// an otherwise idle stream.
	HeartbeatInterval time.Duration `yaml:"heartbeat_interval"`

	// WriteTimeout bounds writing one notification to a client. A
	// client that cannot keep up is treated as gone.
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// CaptureConfig enables traffic capture. Capture is off when Path is
// empty.
type CaptureConfig struct {
	Path          string        `yaml:"path"`
	Compression   string        `yaml:"compression"`
	FlushInterval time.Duration `yaml:"flush_interval"`
	MaxRecords    int           `yaml:"max_records"`
}

// LogConfig selects the log level and handler.
type LogConfig struct {
	// Level is debug, info, warn, or error.
	Level string `yaml:"level"`

	// Format is auto, text, or json. Auto picks text when stderr is a
	// terminal.
	Format string `yaml:"format"`
}

const defaultSocketPath = "${XDG_RUNTIME_DIR:-/run}/uwb-bridge.sock"

// DefaultSocketPath returns the default socket_path, expanded. Clients
// use it when no socket is given.
func DefaultSocketPath() string {
	return expandVars(defaultSocketPath)
}

// Default returns the configuration used for anything the file does
// not set. It has no chips.
func Default() *Config {
	return &Config{
		SocketPath: defaultSocketPath,
		Stream: StreamConfig{
			HeartbeatInterval: 30 * time.Second,
			WriteTimeout:      5 * time.Second,
		},
		Capture: CaptureConfig{
			Compression:   "zstd",
			FlushInterval: 5 * time.Second,
			MaxRecords:    capture.DefaultMaxRecords,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "auto",
		},
	}
}

// Load loads the file named by UWB_BRIDGE_CONFIG.
func Load() (*Config, error) {
	path := os.Getenv(EnvironmentVariable)
	if path == "" {
		return nil, fmt.Errorf("%s environment variable not set; "+
			"set it to the path of your bridge config file, or use --config", EnvironmentVariable)
	}
	return LoadFile(path)
}

// LoadFile loads the file at path over Default and expands variables
// in path fields. It does not validate; call Validate.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	config, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return config, nil
}

// Parse decodes YAML over Default and expands variables in path fields.
func Parse(data []byte) (*Config, error) {
	config := Default()
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(config); err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	config.expandVariables()
	return config, nil
}

func (c *Config) expandVariables() {
	c.SocketPath = expandVars(c.SocketPath)
	c.Capture.Path = expandVars(c.Capture.Path)
	for i := range c.Chips {
		c.Chips[i].Path = expandVars(c.Chips[i].Path)
	}
}

var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

// expandVars expands ${VAR} and ${VAR:-default} from the environment.
// An unset or empty variable without a default expands to "".
func expandVars(s string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		if value := os.Getenv(parts[1]); value != "" {
			return value
		}
		return parts[2]
	})
}

// Validate reports every problem in the configuration at once.
func (c *Config) Validate() error {
	var errs []error

	if c.SocketPath == "" {
		errs = append(errs, errors.New("socket_path is required"))
	}

	if len(c.Chips) == 0 {
		errs = append(errs, errors.New("chips: at least one chip is required"))
	}
	names := make(map[string]bool)
	for i, chip := range c.Chips {
		if chip.Name == "" {
			errs = append(errs, fmt.Errorf("chips[%d].name is required", i))
		} else if names[chip.Name] {
			errs = append(errs, fmt.Errorf("chips[%d].name %q is a duplicate", i, chip.Name))
		}
		names[chip.Name] = true
		if chip.Path == "" {
			errs = append(errs, fmt.Errorf("chips[%d].path is required", i))
		}
		switch tty.Mode(chip.Mode) {
		case "", tty.ModeRaw, tty.ModeUART:
		default:
			errs = append(errs, fmt.Errorf("chips[%d].mode must be %q or %q, got %q", i, tty.ModeRaw, tty.ModeUART, chip.Mode))
		}
		if chip.BaudRate < 0 {
			errs = append(errs, fmt.Errorf("chips[%d].baud_rate must not be negative", i))
		}
	}

	if c.Stream.HeartbeatInterval <= 0 {
		errs = append(errs, errors.New("stream.heartbeat_interval must be positive"))
	}
	if c.Stream.WriteTimeout <= 0 {
		errs = append(errs, errors.New("stream.write_timeout must be positive"))
	}

	if c.Capture.Path != "" {
		if _, err := capture.ParseCompressionTag(c.Capture.Compression); err != nil {
			errs = append(errs, fmt.Errorf("capture.compression: %w", err))
		}
		if c.Capture.FlushInterval < 0 {
			errs = append(errs, errors.New("capture.flush_interval must not be negative"))
		}
		if c.Capture.MaxRecords < 0 {
			errs = append(errs, errors.New("capture.max_records must not be negative"))
		}
		if c.Capture.MaxRecords > capture.MaxRecordsLimit {
			errs = append(errs, fmt.Errorf("capture.max_records must be at most %d", capture.MaxRecordsLimit))
		}
	}

	if _, err := c.Log.SlogLevel(); err != nil {
		errs = append(errs, err)
	}
	switch c.Log.Format {
	case "auto", "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log.format must be auto, text, or json, got %q", c.Log.Format))
	}

	return errors.Join(errs...)
}

// SlogLevel parses Level.
func (l LogConfig) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(l.Level)); err != nil {
		return 0, fmt.Errorf("log.level: %w", err)
	}
	return level, nil
}
