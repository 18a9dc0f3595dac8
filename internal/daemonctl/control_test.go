package daemonctl_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"scanmatch/internal/daemonctl"
	"scanmatch/internal/logging"
	"scanmatch/internal/matcher"
	"scanmatch/internal/testsupport"
)

func TestReadPID(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "scanmatchd.pid")

	if pid, err := daemonctl.ReadPID(path); err != nil || pid != 0 {
		t.Fatalf("ReadPID(missing) = %d, %v", pid, err)
	}
	if err := os.WriteFile(path, []byte("4242\n"), 0o644); err != nil {
		t.Fatalf("write pid: %v", err)
	}
	if pid, err := daemonctl.ReadPID(path); err != nil || pid != 4242 {
		t.Fatalf("ReadPID = %d, %v", pid, err)
	}
	if err := os.WriteFile(path, []byte("garbage"), 0o644); err != nil {
		t.Fatalf("write pid: %v", err)
	}
	if _, err := daemonctl.ReadPID(path); err == nil {
		t.Fatal("expected error for malformed pid file")
	}
}

func TestForceKillRefusesCurrentProcess(t *testing.T) {
	dir := t.TempDir()
	if _, err := daemonctl.ForceKillProcess(filepath.Join(dir, "missing.pid"), "", os.Getpid()); err == nil {
		t.Fatal("expected refusal to kill the current process")
	}
	if _, err := daemonctl.ForceKillProcess(filepath.Join(dir, "missing.pid"), "", 0); err == nil {
		t.Fatal("expected error without a pid")
	}
}

func TestOfflineDaemon(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}

	alive, pid, err := daemonctl.ProcessInfo(cfg.Paths.Socket)
	if err != nil || alive || pid != 0 {
		t.Fatalf("ProcessInfo = %v, %d, %v", alive, pid, err)
	}
	if _, err := daemonctl.StopAndTerminate(cfg.Paths.Socket, cfg, time.Second); !errors.Is(err, daemonctl.ErrDaemonNotRunning) {
		t.Fatalf("expected ErrDaemonNotRunning, got %v", err)
	}
	if err := daemonctl.WaitForShutdown(cfg.Paths.Socket, time.Second); err != nil {
		t.Fatalf("WaitForShutdown: %v", err)
	}
}

func TestBuildStatusSnapshotOffline(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}
	store := testsupport.MustOpenStore(t, cfg)
	svc := matcher.NewService(matcher.NewDigestEngine(), logging.NewNop())
	tpl, err := svc.ExtractTemplate(context.Background(), testsupport.RawImage(t, 16, 16, 1))
	if err != nil {
		t.Fatalf("ExtractTemplate: %v", err)
	}
	testsupport.MustEnroll(t, store, "alice", tpl)

	snapshot, err := daemonctl.BuildStatusSnapshot(context.Background(), cfg.Paths.Socket, cfg)
	if err != nil {
		t.Fatalf("BuildStatusSnapshot: %v", err)
	}
	if snapshot.Reachable || snapshot.Status.Running {
		t.Fatalf("expected offline snapshot, got %+v", snapshot.Status)
	}
	if snapshot.Status.Enrolled != 1 || snapshot.Status.DatabaseBytes <= 0 {
		t.Fatalf("expected offline record counts, got %+v", snapshot.Status)
	}
	if len(snapshot.Checks) == 0 {
		t.Fatal("expected preflight checks")
	}
}
