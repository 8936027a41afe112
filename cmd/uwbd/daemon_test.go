// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/bureau-foundation/uwbbridge/chip"
	"github.com/bureau-foundation/uwbbridge/lib/clock"
	"github.com/bureau-foundation/uwbbridge/lib/config"
	"github.com/bureau-foundation/uwbbridge/lib/ipc"
	"github.com/bureau-foundation/uwbbridge/lib/service"
	"github.com/bureau-foundation/uwbbridge/lib/testutil"
	"github.com/bureau-foundation/uwbbridge/lib/uci"
	"github.com/bureau-foundation/uwbbridge/lib/uwbclient"
)

const heartbeatInterval = 10 * time.Second

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelError,
	}))
}

type testBridge struct {
	transport  *testutil.PipeTransport
	chip       *chip.Chip
	daemon     *daemon
	clock      *clock.FakeClock
	socketPath string
	client     *uwbclient.Client
}

// startBridge serves one chip named "uwb0" over an in-memory transport
// until the test ends.
func startBridge(t *testing.T) *testBridge {
	t.Helper()

	transport := testutil.NewPipeTransport()
	controller, err := chip.New(chip.Config{
		Name:      "uwb0",
		Transport: transport,
		Logger:    testLogger(),
	})
	if err != nil {
		t.Fatalf("chip.New: %v", err)
	}
	fakeClock := clock.Fake(time.Date(2026, 10, 17, 12, 0, 0, 0, time.UTC))
	bridge := newDaemon([]*chip.Chip{controller}, daemonConfig{
		Stream: config.StreamConfig{
			HeartbeatInterval: heartbeatInterval,
			WriteTimeout:      5 * time.Second,
		},
		Clock:  fakeClock,
		Logger: testLogger(),
	})

	socketPath := filepath.Join(testutil.SocketDir(t), "uwb.sock")
	server := service.NewSocketServer(socketPath, testLogger())
	bridge.register(server)

	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := server.Serve(ctx); err != nil {
			t.Errorf("Serve: %v", err)
		}
	}()
	t.Cleanup(func() {
		cancel()
		wg.Wait()
		transport.Close()
	})
	testutil.RequireClosed(t, server.Ready(), 5*time.Second, "server ready")

	return &testBridge{
		transport:  transport,
		chip:       controller,
		daemon:     bridge,
		clock:      fakeClock,
		socketPath: socketPath,
		client:     uwbclient.New(socketPath),
	}
}

func testContext(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func (b *testBridge) open(t *testing.T) *uwbclient.Session {
	t.Helper()
	session, err := b.client.Open(testContext(t), "uwb0")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	session.IdleTimeout = 5 * time.Second
	t.Cleanup(func() { session.Close() })
	return session
}

func next(t *testing.T, session *uwbclient.Session) ipc.Notification {
	t.Helper()
	notification, err := session.Next()
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	return notification
}

func requireEvent(t *testing.T, session *uwbclient.Session, want chip.Event) {
	t.Helper()
	notification := next(t, session)
	if notification.Type != ipc.NotificationEvent || notification.Event != want || notification.Status != chip.StatusOK {
		t.Fatalf("got %+v, want event %s with status OK", notification, want)
	}
}

// waitClosed polls status until the chip reports closed.
func (b *testBridge) waitClosed(t *testing.T) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if !b.chip.Stats().Open {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("chip still open after 5s")
}

func TestGetChipsNameAndVersion(t *testing.T) {
	bridge := startBridge(t)
	ctx := testContext(t)

	chips, err := bridge.client.Chips(ctx)
	if err != nil {
		t.Fatalf("Chips: %v", err)
	}
	if len(chips) != 1 || chips[0] != "uwb0" {
		t.Errorf("Chips = %v, want [uwb0]", chips)
	}

	name, err := bridge.client.Name(ctx, "uwb0")
	if err != nil || name != "uwb0" {
		t.Errorf("Name = %q, %v", name, err)
	}

	version, err := bridge.client.SupportedUCIVersion(ctx, "uwb0")
	if err != nil || version != 1 {
		t.Errorf("SupportedUCIVersion = %d, %v", version, err)
	}
}

func TestUnknownChip(t *testing.T) {
	bridge := startBridge(t)
	ctx := testContext(t)

	if _, err := bridge.client.Name(ctx, "uwb9"); !errors.Is(err, ipc.ErrUnknownChip) {
		t.Errorf("Name(uwb9) error = %v, want ErrUnknownChip", err)
	}
	if _, err := bridge.client.Open(ctx, "uwb9"); !errors.Is(err, ipc.ErrUnknownChip) {
		t.Errorf("Open(uwb9) error = %v, want ErrUnknownChip", err)
	}
	if _, err := bridge.client.Status(ctx, "uwb9"); !errors.Is(err, ipc.ErrUnknownChip) {
		t.Errorf("Status(uwb9) error = %v, want ErrUnknownChip", err)
	}
}

func TestOpenDeliversOpenCompleteThenFrames(t *testing.T) {
	bridge := startBridge(t)
	session := bridge.open(t)

	requireEvent(t, session, chip.EventOpenComplete)

	frame := []byte{0x60, 0x01, 0x00, 0x01, 0x01}
	if err := bridge.transport.Inject(frame); err != nil {
		t.Fatal(err)
	}
	notification := next(t, session)
	if notification.Type != ipc.NotificationUCI || !bytes.Equal(notification.Frame, frame) {
		t.Fatalf("got %+v, want uci frame % x", notification, frame)
	}
}

func TestOpenTwiceIsIllegal(t *testing.T) {
	bridge := startBridge(t)
	first := bridge.open(t)
	requireEvent(t, first, chip.EventOpenComplete)

	_, err := bridge.client.Open(testContext(t), "uwb0")
	if !errors.Is(err, chip.ErrIllegalState) {
		t.Fatalf("second Open error = %v, want ErrIllegalState", err)
	}

	// The first session is untouched.
	frame := []byte{0x60, 0x01, 0x00, 0x01, 0x02}
	bridge.transport.Inject(frame)
	if notification := next(t, first); !bytes.Equal(notification.Frame, frame) {
		t.Fatalf("first session got %+v", notification)
	}
}

func TestSendUCIMessage(t *testing.T) {
	bridge := startBridge(t)
	ctx := testContext(t)

	command := []byte{0x20, 0x02, 0x00, 0x00}
	if _, err := bridge.client.SendUCIMessage(ctx, "uwb0", command); !errors.Is(err, chip.ErrIllegalState) {
		t.Fatalf("send while closed error = %v, want ErrIllegalState", err)
	}

	bridge.open(t)
	written, err := bridge.client.SendUCIMessage(ctx, "uwb0", command)
	if err != nil {
		t.Fatalf("SendUCIMessage: %v", err)
	}
	if written != len(command) {
		t.Errorf("written = %d, want %d", written, len(command))
	}
	got := testutil.RequireReceive(t, bridge.transport.Written(), 5*time.Second, "outbound write")
	if !bytes.Equal(got, command) {
		t.Errorf("device received % x, want % x", got, command)
	}
}

func TestSendTransportFailure(t *testing.T) {
	bridge := startBridge(t)
	bridge.open(t)

	bridge.transport.FailWrites(errors.New("device unplugged"))
	_, err := bridge.client.SendUCIMessage(testContext(t), "uwb0", []byte{0x20, 0x02, 0x00, 0x00})
	if !errors.Is(err, chip.ErrTransport) {
		t.Fatalf("error = %v, want ErrTransport", err)
	}
}

func TestCloseResetsAndEndsStream(t *testing.T) {
	bridge := startBridge(t)
	session := bridge.open(t)
	requireEvent(t, session, chip.EventOpenComplete)

	if err := bridge.client.Close(testContext(t), "uwb0"); err != nil {
		t.Fatalf("Close: %v", err)
	}
	reset := testutil.RequireReceive(t, bridge.transport.Written(), 5*time.Second, "device reset")
	if !bytes.Equal(reset, uci.DeviceResetCommand()) {
		t.Errorf("close wrote % x, want device reset", reset)
	}

	requireEvent(t, session, chip.EventCloseComplete)
	if _, err := session.Next(); !errors.Is(err, io.EOF) {
		t.Fatalf("Next after close = %v, want io.EOF", err)
	}

	if err := bridge.client.Close(testContext(t), "uwb0"); !errors.Is(err, chip.ErrIllegalState) {
		t.Errorf("second Close error = %v, want ErrIllegalState", err)
	}
}

func TestCoreInit(t *testing.T) {
	bridge := startBridge(t)
	ctx := testContext(t)

	if err := bridge.client.CoreInit(ctx, "uwb0"); !errors.Is(err, chip.ErrIllegalState) {
		t.Fatalf("CoreInit while closed = %v, want ErrIllegalState", err)
	}

	session := bridge.open(t)
	requireEvent(t, session, chip.EventOpenComplete)
	if err := bridge.client.CoreInit(ctx, "uwb0"); err != nil {
		t.Fatalf("CoreInit: %v", err)
	}
	requireEvent(t, session, chip.EventPostInitComplete)
}

func TestSessionInitInAnyState(t *testing.T) {
	bridge := startBridge(t)
	ctx := testContext(t)

	if err := bridge.client.SessionInit(ctx, "uwb0", 7); err != nil {
		t.Fatalf("SessionInit while closed: %v", err)
	}
	bridge.open(t)
	if err := bridge.client.SessionInit(ctx, "uwb0", -1); err != nil {
		t.Fatalf("SessionInit while open: %v", err)
	}
	if len(bridge.transport.Writes()) != 0 {
		t.Errorf("session init wrote to the device: %x", bridge.transport.Writes())
	}
}

func TestClientDisconnectReleasesChip(t *testing.T) {
	bridge := startBridge(t)
	session := bridge.open(t)
	requireEvent(t, session, chip.EventOpenComplete)

	session.Close()
	bridge.waitClosed(t)

	// The death path does not reset the device.
	if len(bridge.transport.Writes()) != 0 {
		t.Errorf("client death wrote to the device: %x", bridge.transport.Writes())
	}

	second := bridge.open(t)
	requireEvent(t, second, chip.EventOpenComplete)

	status, err := bridge.client.Status(testContext(t), "uwb0")
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	stats := status.Chips[0].Stats
	if stats.Opens != 2 || stats.ClientDeaths != 1 || !stats.Open {
		t.Errorf("stats = %+v, want 2 opens, 1 death, open", stats)
	}
}

func TestHeartbeat(t *testing.T) {
	bridge := startBridge(t)

	stream, err := service.NewServiceClient(bridge.socketPath).OpenStream(testContext(t), ipc.ActionOpen,
		map[string]any{"chip": "uwb0"})
	if err != nil {
		t.Fatalf("OpenStream: %v", err)
	}
	defer stream.Close()
	stream.SetReadDeadline(time.Now().Add(5 * time.Second))

	want := []ipc.NotificationType{ipc.NotificationEvent, ipc.NotificationResult}
	for _, wantType := range want {
		var notification ipc.Notification
		if err := stream.Recv(&notification); err != nil {
			t.Fatalf("Recv: %v", err)
		}
		if notification.Type != wantType {
			t.Fatalf("got %+v, want %s", notification, wantType)
		}
	}

	bridge.clock.WaitForTimers(1)
	bridge.clock.Advance(heartbeatInterval)

	var notification ipc.Notification
	if err := stream.Recv(&notification); err != nil {
		t.Fatalf("Recv: %v", err)
	}
	if notification.Type != ipc.NotificationHeartbeat {
		t.Fatalf("got %+v, want heartbeat", notification)
	}
}

func TestStatusReportsTraffic(t *testing.T) {
	bridge := startBridge(t)
	session := bridge.open(t)
	requireEvent(t, session, chip.EventOpenComplete)

	bridge.transport.Inject([]byte{0x60, 0x01, 0x00, 0x01, 0x01})
	next(t, session)
	if _, err := bridge.client.SendUCIMessage(testContext(t), "uwb0", []byte{0x20, 0x02, 0x00, 0x00}); err != nil {
		t.Fatal(err)
	}

	status, err := bridge.client.Status(testContext(t), "")
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if status.Version == "" {
		t.Error("status has no version")
	}
	if len(status.Chips) != 1 || status.Chips[0].Name != "uwb0" {
		t.Fatalf("chips = %+v", status.Chips)
	}
	stats := status.Chips[0].Stats
	if stats.FramesIn != 1 || stats.FramesDelivered != 1 || stats.MessagesOut != 1 || stats.BytesOut != 4 {
		t.Errorf("stats = %+v", stats)
	}
	if !stats.ReaderRunning {
		t.Error("reader reported stopped")
	}
}

func TestRunExitsWhenChipDies(t *testing.T) {
	transport := testutil.NewPipeTransport()
	controller, err := chip.New(chip.Config{Name: "uwb0", Transport: transport, Logger: testLogger()})
	if err != nil {
		t.Fatal(err)
	}
	bridge := newDaemon([]*chip.Chip{controller}, daemonConfig{
		Stream: config.Default().Stream,
		Logger: testLogger(),
	})

	done := make(chan error, 1)
	go func() {
		done <- bridge.run(testContext(t), filepath.Join(testutil.SocketDir(t), "uwb.sock"))
	}()

	transport.FailReads(errors.New("device unplugged"))
	err = testutil.RequireReceive(t, done, 5*time.Second, "run to return")
	if !errors.Is(err, chip.ErrTransport) {
		t.Fatalf("run error = %v, want ErrTransport", err)
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	transport := testutil.NewPipeTransport()
	t.Cleanup(func() { transport.Close() })
	controller, err := chip.New(chip.Config{Name: "uwb0", Transport: transport, Logger: testLogger()})
	if err != nil {
		t.Fatal(err)
	}
	bridge := newDaemon([]*chip.Chip{controller}, daemonConfig{
		Stream: config.Default().Stream,
		Logger: testLogger(),
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- bridge.run(ctx, filepath.Join(testutil.SocketDir(t), "uwb.sock"))
	}()
	cancel()
	if err := testutil.RequireReceive(t, done, 5*time.Second, "run to return"); err != nil {
		t.Fatalf("run error = %v, want nil", err)
	}
}
