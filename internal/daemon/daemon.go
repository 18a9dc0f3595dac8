package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"

	"github.com/gofrs/flock"

	"scanmatch/internal/config"
	"scanmatch/internal/export"
	"scanmatch/internal/logging"
	"scanmatch/internal/matcher"
	"scanmatch/internal/preflight"
	"scanmatch/internal/records"
	"scanmatch/internal/scanner"
	"scanmatch/internal/scanner/hotplug"
	"scanmatch/internal/scanner/spool"
	"scanmatch/internal/services"
	"scanmatch/internal/session"
)

var (
	// ErrNotRunning reports a session request while the daemon is stopped.
	ErrNotRunning = errors.New("daemon not running")
	// ErrNoPendingEnrollment reports Enroll or Update with no enrollment template waiting.
	ErrNoPendingEnrollment = errors.New("no enrollment template pending; run an enroll action first")
)

// deviceManager is a scanner manager that also watches for device changes.
type deviceManager interface {
	scanner.Manager
	Start(ctx context.Context, l scanner.Listener) error
	Stop()
}

// Daemon coordinates the capture session, the scanner backend and the record
// store, and enforces single-instance execution.
type Daemon struct {
	cfg       *config.Config
	logger    *slog.Logger
	store     *records.Store
	matcher   *matcher.Service
	manager   deviceManager
	hotplug   *hotplug.Monitor
	exporter  *export.Exporter
	hub       *logging.StreamHub
	presenter *presenter

	lockPath string
	lock     *flock.Flock

	mu         sync.RWMutex
	controller *session.Controller

	running atomic.Bool
	ctx     context.Context
	cancel  context.CancelFunc
}

// ActionSummary describes the last completed action.
type ActionSummary struct {
	ActionID  string
	Kind      string
	Finished  bool
	Images    int
	Templates int
	Quality   int
}

// Status represents daemon runtime information.
type Status struct {
	Running       bool
	PID           int
	Session       session.Snapshot
	View          View
	LastAction    *ActionSummary
	MatchingLevel int
	Engine        string
	Enrolled      int
	DatabaseBytes int64
	DatabasePath  string
	LockFilePath  string
	ExportDir     string
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, store *records.Store, svc *matcher.Service, logger *slog.Logger, hub *logging.StreamHub) (*Daemon, error) {
	if cfg == nil || store == nil || svc == nil {
		return nil, errors.New("daemon requires config, record store, and matcher")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	if hub == nil {
		hub = logging.NewStreamHub(cfg.Session.MessageHistory)
	}
	if cfg.Matcher.MatchingLevel > 0 {
		if err := svc.SetMatchingLevel(context.Background(), cfg.Matcher.MatchingLevel); err != nil {
			return nil, fmt.Errorf("set matching level: %w", err)
		}
	}
	manager, err := newDeviceManager(cfg, logger)
	if err != nil {
		return nil, err
	}
	exporter, err := export.New(cfg.Paths.ExportDir, svc, logger)
	if err != nil {
		return nil, err
	}

	d := &Daemon{
		cfg:       cfg,
		logger:    logging.NewComponentLogger(logger, "daemon"),
		store:     store,
		matcher:   svc,
		manager:   manager,
		exporter:  exporter,
		hub:       hub,
		presenter: newPresenter(logger, hub),
		lockPath:  cfg.LockPath(),
		lock:      flock.New(cfg.LockPath()),
	}
	d.hotplug = hotplug.New(cfg, logger, d.handleHotplug)
	return d, nil
}

func newDeviceManager(cfg *config.Config, logger *slog.Logger) (deviceManager, error) {
	switch cfg.Scanner.Backend {
	case config.BackendSpool, "":
		return spool.NewManager(cfg.Scanner.SpoolDir, cfg.ScannerPollInterval(), logger), nil
	default:
		return nil, fmt.Errorf("unsupported scanner backend %q", cfg.Scanner.Backend)
	}
}

// Start acquires the daemon lock, then launches the session controller, the
// scanner watch and the hotplug monitor.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another scanmatch daemon instance is already running")
	}

	opts, err := session.OptionsFromConfig(d.cfg)
	if err != nil {
		_ = d.lock.Unlock()
		return err
	}
	controller, err := session.New(session.Deps{
		Manager:   d.manager,
		Matcher:   d.matcher,
		Records:   d.store,
		Presenter: d.presenter,
		Logger:    d.logger,
	}, opts)
	if err != nil {
		_ = d.lock.Unlock()
		return fmt.Errorf("create session: %w", err)
	}

	d.ctx, d.cancel = context.WithCancel(ctx)
	d.reportPreflight(d.ctx)
	controller.Start(d.ctx)
	if err := d.manager.Start(d.ctx, controller.Listener()); err != nil {
		controller.Stop()
		d.cancel()
		d.ctx = nil
		d.cancel = nil
		_ = d.lock.Unlock()
		return fmt.Errorf("start scanner backend: %w", err)
	}

	d.mu.Lock()
	d.controller = controller
	d.mu.Unlock()

	if err := d.hotplug.Start(d.ctx); err != nil {
		logging.WarnWithContext(d.logger, "hotplug monitor unavailable", "hotplug_start_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "run refresh after plugging in a scanner"),
			logging.String(logging.FieldImpact, "device changes are not detected automatically"),
		)
	}

	d.running.Store(true)
	d.logger.Info("scanmatch daemon started",
		logging.String("lock", d.lockPath),
		logging.String(logging.FieldEventType, "daemon_started"),
	)
	return nil
}

// Stop halts the session and releases the daemon lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	d.hotplug.Stop()
	d.manager.Stop()

	d.mu.Lock()
	controller := d.controller
	d.controller = nil
	d.mu.Unlock()
	if controller != nil {
		controller.Stop()
	}

	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.ctx = nil
	d.running.Store(false)
	d.logger.Info("scanmatch daemon stopped", logging.String(logging.FieldEventType, "daemon_stopped"))
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	if d.store != nil {
		return d.store.Close()
	}
	return nil
}

// Status reports daemon, session and store state.
func (d *Daemon) Status(ctx context.Context) Status {
	status := Status{
		Running:      d.running.Load(),
		PID:          os.Getpid(),
		View:         d.presenter.snapshot(),
		DatabasePath: d.cfg.DatabasePath(),
		LockFilePath: d.lockPath,
		ExportDir:    d.exporter.Dir(),
	}
	if c := d.current(); c != nil {
		status.Session = c.Snapshot()
		if res, ok := c.LastResult(); ok {
			status.LastAction = &ActionSummary{
				ActionID:  res.ActionID,
				Kind:      res.Kind.String(),
				Finished:  res.Finished,
				Images:    len(res.Images),
				Templates: len(res.Templates),
				Quality:   res.Quality,
			}
		}
	}
	if level, err := d.matcher.MatchingLevel(ctx); err == nil {
		status.MatchingLevel = level
	}
	if version, err := d.matcher.SDKVersion(ctx); err == nil {
		status.Engine = version.String()
	}
	if n, err := d.store.Count(ctx); err == nil {
		status.Enrolled = n
	}
	if size, err := d.store.Size(ctx); err == nil {
		status.DatabaseBytes = size
	}
	return status
}

func (d *Daemon) current() *session.Controller {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.controller
}

func (d *Daemon) session() (*session.Controller, error) {
	if c := d.current(); c != nil {
		return c, nil
	}
	return nil, ErrNotRunning
}

// Refresh rescans for devices.
func (d *Daemon) Refresh(ctx context.Context) error {
	c, err := d.session()
	if err != nil {
		return err
	}
	return c.RequestRefresh(ctx)
}

// Open opens the configured scanner.
func (d *Daemon) Open(ctx context.Context) error {
	c, err := d.session()
	if err != nil {
		return err
	}
	return c.RequestOpen(ctx)
}

// CloseDevice closes the open scanner.
func (d *Daemon) CloseDevice(ctx context.Context) error {
	c, err := d.session()
	if err != nil {
		return err
	}
	return c.RequestClose(ctx)
}

// StartAction begins the named action and returns its action ID.
func (d *Daemon) StartAction(ctx context.Context, name string) (string, error) {
	kind, err := session.ParseActionKind(name)
	if err != nil {
		return "", err
	}
	c, err := d.session()
	if err != nil {
		return "", err
	}
	return c.StartAction(ctx, kind)
}

// StopCapture cancels the running capture.
func (d *Daemon) StopCapture(ctx context.Context) error {
	c, err := d.session()
	if err != nil {
		return err
	}
	return c.RequestStop(ctx)
}

// SetCaptureType selects the capture type for the next action.
func (d *Daemon) SetCaptureType(ctx context.Context, name string) error {
	t, err := scanner.ParseCaptureType(name)
	if err != nil {
		return err
	}
	c, err := d.session()
	if err != nil {
		return err
	}
	return c.SetCaptureType(ctx, t)
}

// Enroll stores the pending enrollment template under name. With update set
// it replaces an existing user instead.
func (d *Daemon) Enroll(ctx context.Context, name, description string, update bool) (*records.Entry, error) {
	tpl := d.presenter.pendingTemplate()
	if tpl == nil {
		return nil, ErrNoPendingEnrollment
	}
	var (
		entry *records.Entry
		err   error
	)
	op := "enroll"
	if update {
		op = "update"
		entry, err = d.store.Update(ctx, name, description, tpl)
	} else {
		entry, err = d.store.Enroll(ctx, name, description, tpl)
	}
	if err != nil {
		return nil, recordError(op, err)
	}
	d.presenter.takePending(tpl)
	verb := "enrolled"
	if update {
		verb = "updated"
	}
	d.presenter.Notify(fmt.Sprintf("User %s %s", entry.Name, verb))
	d.logger.Info("enrollment stored",
		logging.String("user", entry.Name),
		logging.Bool("update", update),
		logging.String(logging.FieldEventType, "enrollment_stored"),
	)
	return entry, nil
}

// Export writes an artifact of the last action and returns its path.
// Template formats prefer the pending enrollment template, then the
// templates of the last action, and otherwise extract one from its image.
func (d *Daemon) Export(ctx context.Context, formatName, base string) (string, error) {
	format, err := export.ParseFormat(formatName)
	if err != nil {
		return "", err
	}
	var result session.ActionResult
	if c := d.current(); c != nil {
		result, _ = c.LastResult()
	}
	if format.IsTemplate() {
		if tpl := d.presenter.pendingTemplate(); tpl != nil {
			return d.exporter.Template(ctx, format, base, tpl)
		}
		if len(result.Templates) > 0 && result.Templates[0] != nil {
			return d.exporter.Template(ctx, format, base, result.Templates[0])
		}
	}
	img := result.LastImage()
	if img == nil {
		return "", export.ErrNothingToExport
	}
	return d.exporter.Image(ctx, format, base, img)
}

// Records lists enrolled users.
func (d *Daemon) Records(ctx context.Context) ([]*records.Entry, error) {
	return d.store.List(ctx)
}

// Record returns one enrolled user, or nil.
func (d *Daemon) Record(ctx context.Context, name string) (*records.Entry, error) {
	return d.store.Find(ctx, name)
}

// RemoveRecord deletes one enrolled user.
func (d *Daemon) RemoveRecord(ctx context.Context, name string) error {
	if err := d.store.Remove(ctx, name); err != nil {
		return recordError("remove", err)
	}
	return nil
}

// ClearRecords removes every enrolled user.
func (d *Daemon) ClearRecords(ctx context.Context) (int64, error) {
	removed, err := d.store.Clear(ctx)
	if err != nil {
		return 0, err
	}
	d.logger.Info("record store cleared",
		logging.Int64("removed_count", removed),
		logging.String(logging.FieldEventType, "records_cleared"),
	)
	return removed, nil
}

// SetMatchingLevel changes the matcher threshold.
func (d *Daemon) SetMatchingLevel(ctx context.Context, level int) error {
	return d.matcher.SetMatchingLevel(ctx, level)
}

// MatchingLevel returns the matcher threshold.
func (d *Daemon) MatchingLevel(ctx context.Context) (int, error) {
	return d.matcher.MatchingLevel(ctx)
}

// Messages returns message log events after since. With wait set it blocks
// until a new event arrives or ctx ends.
func (d *Daemon) Messages(ctx context.Context, since uint64, limit int, wait bool) ([]logging.LogEvent, uint64, error) {
	return d.hub.Fetch(ctx, since, limit, wait)
}

func (d *Daemon) handleHotplug(evt hotplug.Event) {
	c := d.current()
	if c == nil {
		return
	}
	count, err := d.manager.DeviceCount()
	if err != nil {
		logging.WarnWithContext(d.logger, "device count after hotplug failed", "hotplug_count_failed",
			logging.Error(err),
			logging.String("action", evt.Action),
			logging.String(logging.FieldImpact, "device list may be stale until refresh"),
		)
		return
	}
	c.Listener().DeviceCountChanged(count)
}

func (d *Daemon) reportPreflight(ctx context.Context) {
	for _, result := range preflight.Failed(preflight.RunAll(ctx, d.cfg)) {
		logging.WarnWithContext(d.logger, "preflight check failed", "preflight_failed",
			logging.String("check", result.Name),
			logging.String("detail", result.Detail),
			logging.String(logging.FieldErrorHint, "create the directory or fix its permissions"),
			logging.String(logging.FieldImpact, "related operations may fail"),
		)
	}
}

// recordError tags store failures with a services marker so RPC replies can
// be classified.
func recordError(op string, err error) error {
	marker := services.ErrTransient
	switch {
	case errors.Is(err, records.ErrAlreadyEnrolled):
		marker = services.ErrConflict
	case errors.Is(err, records.ErrNotEnrolled):
		marker = services.ErrNotFound
	case errors.Is(err, records.ErrInvalidName):
		marker = services.ErrValidation
	}
	return services.Wrap(marker, "records", op, "", err)
}
