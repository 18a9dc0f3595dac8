package ipc_test

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"scanmatch/internal/daemon"
	"scanmatch/internal/ipc"
	"scanmatch/internal/logging"
	"scanmatch/internal/matcher"
	"scanmatch/internal/testsupport"
)

func dropPrint(t *testing.T, deviceDir, name string) {
	t.Helper()
	img := image.NewGray(image.Rect(0, 0, 20, 20))
	for y := 0; y < 20; y++ {
		for x := 0; x < 20; x++ {
			img.SetGray(x, y, color.Gray{Y: uint8(x*11 + y*7)})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	path := filepath.Join(deviceDir, "incoming", name)
	if err := os.WriteFile(path+".part", buf.Bytes(), 0o644); err != nil {
		t.Fatalf("write print: %v", err)
	}
	if err := os.Rename(path+".part", path); err != nil {
		t.Fatalf("rename print: %v", err)
	}
}

func waitStatus(t *testing.T, client *ipc.Client, what string, pred func(*ipc.StatusResponse) bool) *ipc.StatusResponse {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for {
		status, err := client.Status()
		if err != nil {
			t.Fatalf("Status RPC failed: %v", err)
		}
		if pred(status) {
			return status
		}
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s; last status %+v", what, status)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func runAction(t *testing.T, client *ipc.Client, deviceDir, action string, images int) *ipc.StatusResponse {
	t.Helper()
	startResp, err := client.Start(action)
	if err != nil {
		t.Fatalf("Start(%s) RPC failed: %v", action, err)
	}
	if startResp.ActionID == "" {
		t.Fatalf("expected action id, got %+v", startResp)
	}
	for i := 0; i < images; i++ {
		waitStatus(t, client, "capturing", func(s *ipc.StatusResponse) bool {
			return s.State == "capturing" && s.ImagesCaptured == i
		})
		dropPrint(t, deviceDir, fmt.Sprintf("%s-%d.png", action, i))
	}
	return waitStatus(t, client, "action result", func(s *ipc.StatusResponse) bool {
		return s.LastAction != nil && s.LastAction.ActionID == startResp.ActionID && s.LastAction.Finished
	})
}

func TestIPCServerClient(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}
	deviceDir := filepath.Join(cfg.Scanner.SpoolDir, "reader")
	if err := os.MkdirAll(filepath.Join(deviceDir, "incoming"), 0o755); err != nil {
		t.Fatalf("mkdir device: %v", err)
	}
	descriptor := "product = \"Watson Mini\"\ncapture_types = [\"flat_single_finger\", \"rolled_single_finger\"]\n"
	if err := os.WriteFile(filepath.Join(deviceDir, "device.toml"), []byte(descriptor), 0o644); err != nil {
		t.Fatalf("write descriptor: %v", err)
	}
	store := testsupport.MustOpenStore(t, cfg)
	logger := logging.NewNop()
	svc := matcher.NewService(matcher.NewDigestEngine(), logger)
	d, err := daemon.New(cfg, store, svc, logger, logging.NewStreamHub(128))
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	t.Cleanup(func() {
		d.Close()
	})

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	srv, err := ipc.NewServer(ctx, cfg.Paths.Socket, d, logger)
	if err != nil {
		if strings.Contains(err.Error(), "operation not permitted") {
			t.Skipf("skipping IPC server test: %v", err)
		}
		t.Fatalf("ipc.NewServer: %v", err)
	}
	srv.Serve()
	t.Cleanup(func() {
		srv.Close()
	})

	client, err := ipc.Dial(cfg.Paths.Socket)
	if err != nil {
		t.Fatalf("ipc.Dial: %v", err)
	}
	t.Cleanup(func() {
		client.Close()
	})

	status, err := client.Status()
	if err != nil {
		t.Fatalf("Status RPC failed: %v", err)
	}
	if status.Running {
		t.Fatal("expected daemon to be idle before Start")
	}
	if _, err := client.Refresh(); err == nil || !strings.Contains(err.Error(), daemon.ErrNotRunning.Error()) {
		t.Fatalf("expected not running error, got %v", err)
	}

	if err := d.Start(ctx); err != nil {
		t.Fatalf("daemon Start: %v", err)
	}
	waitStatus(t, client, "scanner attached", func(s *ipc.StatusResponse) bool {
		return s.Running && s.State == "scanner_attached" && s.Capabilities.Open
	})

	if _, err := client.Open(); err != nil {
		t.Fatalf("Open RPC failed: %v", err)
	}
	status = waitStatus(t, client, "initialized", func(s *ipc.StatusResponse) bool { return s.State == "initialized" })
	if !status.DeviceOpen || len(status.CaptureTypes) != 2 {
		t.Fatalf("expected open device with capture types, got %+v", status)
	}
	if _, err := client.SetCaptureType("flat_four_fingers"); err == nil {
		t.Fatal("expected unsupported capture type to be rejected")
	}

	runAction(t, client, deviceDir, "capture", 1)
	exportResp, err := client.Export(ipc.ExportRequest{Format: "png", Name: "probe"})
	if err != nil {
		t.Fatalf("Export RPC failed: %v", err)
	}
	if _, err := os.Stat(exportResp.Path); err != nil {
		t.Fatalf("expected exported file: %v", err)
	}

	runAction(t, client, deviceDir, "single-enroll", 3)
	waitStatus(t, client, "pending enrollment", func(s *ipc.StatusResponse) bool { return s.PendingEnrollment })
	enrollResp, err := client.Enroll(ipc.EnrollRequest{Name: "alice", Description: "left index"})
	if err != nil {
		t.Fatalf("Enroll RPC failed: %v", err)
	}
	if enrollResp.Record.Name != "alice" || enrollResp.Record.TemplateBytes == 0 {
		t.Fatalf("unexpected record %+v", enrollResp.Record)
	}
	if _, err := client.Enroll(ipc.EnrollRequest{Name: "bob"}); err == nil || !strings.Contains(err.Error(), "no enrollment template pending") {
		t.Fatalf("expected pending error, got %v", err)
	}

	listResp, err := client.Records("")
	if err != nil {
		t.Fatalf("Records RPC failed: %v", err)
	}
	if len(listResp.Records) != 1 || listResp.DatabaseBytes <= 0 {
		t.Fatalf("unexpected records response %+v", listResp)
	}
	if _, err := client.Records("nobody"); err == nil || !strings.Contains(err.Error(), "not enrolled") {
		t.Fatalf("expected not enrolled error, got %v", err)
	}

	levelResp, err := client.MatchingLevel(0)
	if err != nil || levelResp.Level != 4 {
		t.Fatalf("MatchingLevel = %+v, %v", levelResp, err)
	}
	if levelResp, err = client.MatchingLevel(7); err != nil || levelResp.Level != 7 {
		t.Fatalf("MatchingLevel(7) = %+v, %v", levelResp, err)
	}

	msgResp, err := client.Messages(ipc.MessagesRequest{})
	if err != nil {
		t.Fatalf("Messages RPC failed: %v", err)
	}
	if len(msgResp.Events) == 0 || msgResp.Next == 0 {
		t.Fatalf("expected message events, got %+v", msgResp)
	}
	waitResp, err := client.Messages(ipc.MessagesRequest{Since: msgResp.Next, WaitMillis: 20})
	if err != nil {
		t.Fatalf("Messages wait RPC failed: %v", err)
	}
	if len(waitResp.Events) != 0 {
		t.Fatalf("expected no new events, got %+v", waitResp.Events)
	}

	if _, err := client.RemoveRecord("alice"); err != nil {
		t.Fatalf("RemoveRecord RPC failed: %v", err)
	}
	clearResp, err := client.ClearRecords()
	if err != nil {
		t.Fatalf("ClearRecords RPC failed: %v", err)
	}
	if clearResp.Removed != 0 {
		t.Fatalf("expected nothing left to clear, got %d", clearResp.Removed)
	}

	if _, err := client.CloseDevice(); err != nil {
		t.Fatalf("Close RPC failed: %v", err)
	}
	waitStatus(t, client, "device closed", func(s *ipc.StatusResponse) bool { return !s.DeviceOpen && s.State == "scanner_attached" })
}
