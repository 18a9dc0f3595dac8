package spool

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"scanmatch/internal/logging"
	"scanmatch/internal/scanner"
)

const defaultPollInterval = 200 * time.Millisecond

// Manager exposes every subdirectory of root as a scanner, in name order.
type Manager struct {
	root   string
	poll   time.Duration
	logger *slog.Logger

	mu        sync.Mutex
	running   bool
	lastCount int
	cancel    context.CancelFunc
	wg        sync.WaitGroup
}

// NewManager returns a manager over root. Directory scans for new images and
// device count changes happen every poll.
func NewManager(root string, poll time.Duration, logger *slog.Logger) *Manager {
	if poll <= 0 {
		poll = defaultPollInterval
	}
	return &Manager{
		root:   root,
		poll:   poll,
		logger: logging.NewComponentLogger(logger, "spool-scanner"),
	}
}

// Root returns the spool directory.
func (m *Manager) Root() string {
	return m.root
}

func (m *Manager) deviceDirs() ([]string, error) {
	entries, err := os.ReadDir(m.root)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan spool dir: %w", err)
	}
	dirs := make([]string, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		dirs = append(dirs, filepath.Join(m.root, entry.Name()))
	}
	return dirs, nil
}

func (m *Manager) deviceDir(index int) (string, error) {
	dirs, err := m.deviceDirs()
	if err != nil {
		return "", err
	}
	if index < 0 || index >= len(dirs) {
		return "", fmt.Errorf("%w: %d of %d", scanner.ErrNoDevice, index, len(dirs))
	}
	return dirs[index], nil
}

func (m *Manager) DeviceCount() (int, error) {
	dirs, err := m.deviceDirs()
	if err != nil {
		return 0, err
	}
	return len(dirs), nil
}

func (m *Manager) Describe(index int) (scanner.Description, error) {
	dir, err := m.deviceDir(index)
	if err != nil {
		return scanner.Description{}, err
	}
	desc, err := loadDescriptor(dir)
	if err != nil {
		return scanner.Description{}, err
	}
	return desc.description(dir), nil
}

func (m *Manager) OpenAsync(index int, l scanner.Listener) error {
	if l == nil {
		l = scanner.NopListener{}
	}
	dir, err := m.deviceDir(index)
	if err != nil {
		return err
	}

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		dev, err := m.open(index, dir, l)
		if err != nil {
			m.logger.Warn("spool device open failed",
				logging.Error(err),
				logging.Int(logging.FieldDeviceIndex, index),
				logging.String(logging.FieldEventType, "spool_open_failed"),
				logging.String(logging.FieldErrorHint, "check device.toml and directory permissions"),
				logging.String(logging.FieldImpact, "device stays closed"),
			)
			l.OpenComplete(index, nil, err)
			return
		}
		l.OpenComplete(index, dev, nil)
	}()
	return nil
}

func (m *Manager) open(index int, dir string, l scanner.Listener) (*Device, error) {
	l.OpenProgress(index, 0)
	desc, err := loadDescriptor(dir)
	if err != nil {
		return nil, err
	}
	l.OpenProgress(index, 25)
	for _, sub := range []string{incomingDir, consumedDir} {
		if err := os.MkdirAll(filepath.Join(dir, sub), 0o755); err != nil {
			return nil, fmt.Errorf("prepare %s: %w", sub, err)
		}
	}
	l.OpenProgress(index, 50)
	if desc.OpenDelayMs > 0 {
		time.Sleep(time.Duration(desc.OpenDelayMs) * time.Millisecond)
	}
	l.OpenProgress(index, 100)

	m.logger.Info("spool device opened",
		logging.Int(logging.FieldDeviceIndex, index),
		logging.String("product", desc.Product),
		logging.String("serial", desc.Serial),
		logging.String(logging.FieldEventType, "spool_device_opened"),
	)
	return newDevice(index, dir, desc, l, m.poll, m.logger), nil
}

// Start watches the spool directory and reports device count changes to l.
func (m *Manager) Start(ctx context.Context, l scanner.Listener) error {
	if l == nil {
		return errors.New("spool manager needs a listener")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running {
		return errors.New("spool manager already running")
	}
	count, err := m.DeviceCount()
	if err != nil {
		return err
	}
	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.running = true
	m.lastCount = count

	m.wg.Add(1)
	go m.watch(runCtx, l)
	return nil
}

// Stop ends the watch loop and waits for pending opens.
func (m *Manager) Stop() {
	m.mu.Lock()
	cancel := m.cancel
	m.cancel = nil
	m.running = false
	m.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	m.wg.Wait()
}

func (m *Manager) watch(ctx context.Context, l scanner.Listener) {
	defer m.wg.Done()

	ticker := time.NewTicker(m.poll)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		count, err := m.DeviceCount()
		if err != nil {
			m.logger.Debug("spool scan failed", logging.Error(err))
			continue
		}
		m.mu.Lock()
		changed := count != m.lastCount
		m.lastCount = count
		m.mu.Unlock()
		if changed {
			m.logger.Info("spool device count changed",
				logging.Int("count", count),
				logging.String(logging.FieldEventType, "spool_device_count_changed"),
			)
			l.DeviceCountChanged(count)
		}
	}
}
