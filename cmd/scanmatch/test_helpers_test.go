package main

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pelletier/go-toml/v2"

	"scanmatch/internal/config"
	"scanmatch/internal/daemon"
	"scanmatch/internal/ipc"
	"scanmatch/internal/logging"
	"scanmatch/internal/matcher"
	"scanmatch/internal/records"
	"scanmatch/internal/testsupport"
)

type cliTestEnv struct {
	cfg        *config.Config
	store      *records.Store
	daemon     *daemon.Daemon
	server     *ipc.Server
	socketPath string
	configPath string
	deviceDir  string
}

// newOfflineEnv writes a config file without starting a daemon.
func newOfflineEnv(t *testing.T) *cliTestEnv {
	t.Helper()

	cfg := testsupport.NewConfig(t)
	base := testsupport.BaseDir(cfg)
	t.Setenv("HOME", filepath.Join(base, "home"))
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}
	deviceDir := filepath.Join(cfg.Scanner.SpoolDir, "reader")
	if err := os.MkdirAll(filepath.Join(deviceDir, "incoming"), 0o755); err != nil {
		t.Fatalf("mkdir device: %v", err)
	}
	configPath := filepath.Join(base, "config.toml")
	writeTestConfig(t, configPath, cfg)

	return &cliTestEnv{
		cfg:        cfg,
		socketPath: cfg.Paths.Socket,
		configPath: configPath,
		deviceDir:  deviceDir,
	}
}

// setupCLITestEnv starts a daemon and IPC server behind the config file.
func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()

	env := newOfflineEnv(t)
	env.store = testsupport.MustOpenStore(t, env.cfg)
	logger := logging.NewNop()
	svc := matcher.NewService(matcher.NewDigestEngine(), logger)
	d, err := daemon.New(env.cfg, env.store, svc, logger, logging.NewStreamHub(128))
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	srv, err := ipc.NewServer(ctx, env.socketPath, d, logger)
	if err != nil {
		cancel()
		if strings.Contains(err.Error(), "operation not permitted") {
			t.Skipf("skipping CLI test: %v", err)
		}
		t.Fatalf("ipc.NewServer: %v", err)
	}
	srv.Serve()
	if err := d.Start(ctx); err != nil {
		t.Fatalf("daemon Start: %v", err)
	}
	env.daemon = d
	env.server = srv

	t.Cleanup(func() {
		cancel()
		srv.Close()
		d.Close()
	})
	return env
}

func runCLI(t *testing.T, args []string, socket, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	flags := []string{"--socket", socket}
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func (e *cliTestEnv) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	out, _, err := runCLI(t, args, e.socketPath, e.configPath)
	return out, err
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	data, err := toml.Marshal(cfg)
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func dropPrint(t *testing.T, deviceDir, name string) {
	t.Helper()
	img := image.NewGray(image.Rect(0, 0, 24, 24))
	for y := 0; y < 24; y++ {
		for x := 0; x < 24; x++ {
			img.SetGray(x, y, color.Gray{Y: uint8(x*9 + y*5)})
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

func waitFor(t *testing.T, duration time.Duration, fn func() bool) {
	t.Helper()
	deadline := time.Now().Add(duration)
	for time.Now().Before(deadline) {
		if fn() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("condition not met within %s", duration)
}

func (e *cliTestEnv) waitState(t *testing.T, state string) {
	t.Helper()
	waitFor(t, 5*time.Second, func() bool {
		return e.daemon.Status(context.Background()).Session.State.String() == state
	})
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}
