package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"scanmatch/internal/config"
	"scanmatch/internal/logging"
	"scanmatch/internal/matcher"
	"scanmatch/internal/records"
	"scanmatch/internal/scanner"
)

var (
	// ErrStopped reports a request made after Stop.
	ErrStopped = errors.New("session controller stopped")
	// ErrNotAllowed reports a request the current state does not allow.
	ErrNotAllowed = errors.New("operation not allowed in current state")
)

// Matcher is the template service the finishers call.
type Matcher interface {
	records.TemplateMatcher
	ExtractTemplate(ctx context.Context, img *matcher.Image) (*matcher.Template, error)
	SingleEnrollment(ctx context.Context, images [3]*matcher.Image) (*matcher.Template, error)
	MultiEnrollment(ctx context.Context, images [6]*matcher.Image) ([2]*matcher.Template, error)
}

// RecordMatcher finds the best enrolled entry for a probe template.
type RecordMatcher interface {
	Match(ctx context.Context, probe *matcher.Template, m records.TemplateMatcher) (*records.Entry, error)
}

// Options tune the controller.
type Options struct {
	DeviceIndex      int
	CaptureType      scanner.CaptureType
	StopPollInterval time.Duration
	// StopPollLimit bounds the stop-capture poll. Zero polls until the
	// device reports the capture inactive.
	StopPollLimit int
	// OpenTimeout aborts an open still pending after this long. Zero waits.
	OpenTimeout time.Duration
}

const defaultStopPollInterval = 250 * time.Millisecond

// OptionsFromConfig reads controller options from the scanner and session
// sections.
func OptionsFromConfig(cfg *config.Config) (Options, error) {
	if cfg == nil {
		return Options{}, errors.New("session options: nil config")
	}
	captureType, err := scanner.ParseCaptureType(cfg.Scanner.CaptureType)
	if err != nil {
		return Options{}, fmt.Errorf("session options: %w", err)
	}
	return Options{
		DeviceIndex:      cfg.Scanner.DeviceIndex,
		CaptureType:      captureType,
		StopPollInterval: cfg.StopPollInterval(),
		StopPollLimit:    cfg.Session.StopPollLimit,
		OpenTimeout:      cfg.OpenTimeout(),
	}, nil
}

// Deps are the collaborators a controller drives.
type Deps struct {
	Manager   scanner.Manager
	Matcher   Matcher
	Records   RecordMatcher
	Presenter Presenter
	Logger    *slog.Logger
}

// Snapshot is a copy of the observable session state.
type Snapshot struct {
	State          State
	Capabilities   Capabilities
	Action         ActionKind
	ActionID       string
	ImagesCaptured int
	ImagesRequired int
	CaptureType    scanner.CaptureType
	CaptureTypes   []scanner.CaptureType
	DeviceOpen     bool
	Sequence       uint64
}

// Controller runs the capture session state machine. Every state mutation
// happens on one loop goroutine fed by an unbounded mailbox.
type Controller struct {
	manager   scanner.Manager
	matcher   Matcher
	records   RecordMatcher
	presenter Presenter
	logger    *slog.Logger
	opts      Options

	mbox      *mailbox
	workers   sync.WaitGroup
	loopDone  chan struct{}
	ctx       context.Context
	cancel    context.CancelFunc
	startOnce sync.Once
	stopOnce  sync.Once

	// Loop-owned.
	state          State
	action         ActionKind
	actionID       string
	imagesCaptured int
	captured       []*matcher.Image
	device         scanner.Device
	captureType    scanner.CaptureType
	available      []scanner.CaptureType
	stopPolls      int
	openGen        uint64

	timerMu sync.Mutex
	timers  map[*time.Timer]struct{}
	halted  bool

	snapMu  sync.RWMutex
	snap    Snapshot
	changed chan struct{}

	results artifacts
}

// New builds a controller in NoScannerAttached. Call Start to run it.
func New(deps Deps, opts Options) (*Controller, error) {
	if deps.Manager == nil {
		return nil, errors.New("session: scanner manager required")
	}
	if deps.Matcher == nil {
		return nil, errors.New("session: matcher required")
	}
	if deps.Records == nil {
		return nil, errors.New("session: record store required")
	}
	if deps.Presenter == nil {
		deps.Presenter = NopPresenter{}
	}
	if opts.StopPollInterval <= 0 {
		opts.StopPollInterval = defaultStopPollInterval
	}
	if opts.StopPollLimit < 0 {
		opts.StopPollLimit = 0
	}
	if opts.CaptureType == scanner.CaptureNone {
		opts.CaptureType = scanner.CaptureFlatSingleFinger
	}

	c := &Controller{
		manager:     deps.Manager,
		matcher:     deps.Matcher,
		records:     deps.Records,
		presenter:   deps.Presenter,
		logger:      logging.NewComponentLogger(deps.Logger, "session"),
		opts:        opts,
		mbox:        newMailbox(),
		loopDone:    make(chan struct{}),
		state:       StateNoScannerAttached,
		action:      ActionNone,
		captureType: opts.CaptureType,
		timers:      make(map[*time.Timer]struct{}),
		changed:     make(chan struct{}),
	}
	c.publish()
	return c, nil
}

// Start launches the loop and requests an initial refresh.
func (c *Controller) Start(ctx context.Context) {
	c.startOnce.Do(func() {
		c.ctx, c.cancel = context.WithCancel(ctx)
		go c.loop()
		c.post(transition{to: StateRefresh, reason: "startup"})
	})
}

// Stop halts the loop, cancels pending timers, waits for finishers and
// closes the device handle if one is open.
func (c *Controller) Stop() {
	c.stopOnce.Do(func() {
		c.timerMu.Lock()
		c.halted = true
		for t := range c.timers {
			t.Stop()
		}
		c.timers = nil
		c.timerMu.Unlock()

		c.mbox.close()
		if c.cancel != nil {
			c.cancel()
			<-c.loopDone
		}
		c.workers.Wait()

		if c.device != nil {
			if err := c.device.Close(); err != nil {
				c.logger.Warn("device close failed during shutdown",
					logging.Error(err),
					logging.String(logging.FieldEventType, "device_close_failed"),
					logging.String(logging.FieldErrorHint, "the scanner may need to be replugged"),
					logging.String(logging.FieldImpact, "device handle released"),
				)
			}
			c.device = nil
		}
		c.captured = nil
		c.results.clear()
		c.logger.Info("session controller stopped", logging.String(logging.FieldEventType, "session_stopped"))
	})
}

// Listener returns the scanner listener that feeds this controller. Pass it
// to scanner managers that report device count changes.
func (c *Controller) Listener() scanner.Listener {
	return &deviceListener{c: c}
}

// Snapshot returns the state published after the last processed message.
func (c *Controller) Snapshot() Snapshot {
	c.snapMu.RLock()
	defer c.snapMu.RUnlock()
	return c.snap
}

// WaitFor blocks until pred accepts a published snapshot or ctx ends.
func (c *Controller) WaitFor(ctx context.Context, pred func(Snapshot) bool) (Snapshot, error) {
	for {
		c.snapMu.RLock()
		snap, changed := c.snap, c.changed
		c.snapMu.RUnlock()
		if pred(snap) {
			return snap, nil
		}
		select {
		case <-changed:
		case <-ctx.Done():
			return snap, ctx.Err()
		}
	}
}

// LastResult returns what the most recent action produced.
func (c *Controller) LastResult() (ActionResult, bool) {
	return c.results.snapshot()
}

// Sync waits until every message posted before the call has been handled.
func (c *Controller) Sync(ctx context.Context) error {
	return c.request(ctx, func() error { return nil })
}

type transition struct {
	to        State
	action    ActionKind
	newAction bool
	device    scanner.Device
	image     *matcher.Image
	desc      string
	count     int
	reason    string
}

type message struct {
	transition *transition
	run        func()
}

func (c *Controller) post(t transition) {
	if !c.mbox.put(message{transition: &t}) {
		c.logger.Debug("transition dropped after stop", logging.String("target", t.to.String()))
	}
}

func (c *Controller) postFunc(fn func()) bool {
	return c.mbox.put(message{run: fn})
}

// after posts t once d has elapsed. Timers die with Stop.
func (c *Controller) after(d time.Duration, t transition) {
	c.schedule(d, message{transition: &t})
}

// afterFunc runs fn on the loop once d has elapsed.
func (c *Controller) afterFunc(d time.Duration, fn func()) {
	c.schedule(d, message{run: fn})
}

func (c *Controller) schedule(d time.Duration, msg message) {
	c.timerMu.Lock()
	defer c.timerMu.Unlock()
	if c.halted {
		return
	}
	var timer *time.Timer
	timer = time.AfterFunc(d, func() {
		c.timerMu.Lock()
		if c.timers != nil {
			delete(c.timers, timer)
		}
		halted := c.halted
		c.timerMu.Unlock()
		if !halted {
			c.mbox.put(msg)
		}
	})
	c.timers[timer] = struct{}{}
}

// request runs fn on the loop and returns its error. The snapshot is
// published before the reply.
func (c *Controller) request(ctx context.Context, fn func() error) error {
	if ctx == nil {
		ctx = context.Background()
	}
	reply := make(chan error, 1)
	if !c.postFunc(func() {
		err := fn()
		c.publish()
		reply <- err
	}) {
		return ErrStopped
	}
	select {
	case err := <-reply:
		return err
	case <-c.loopDone:
		select {
		case err := <-reply:
			return err
		default:
			return ErrStopped
		}
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Controller) loop() {
	defer close(c.loopDone)
	c.logger.Info("session controller started",
		logging.String(logging.FieldEventType, "session_started"),
		logging.Int(logging.FieldDeviceIndex, c.opts.DeviceIndex),
		logging.String("capture_type", c.captureType.String()),
	)
	for {
		msg, ok := c.mbox.take(c.ctx)
		if !ok {
			return
		}
		switch {
		case msg.transition != nil:
			c.apply(*msg.transition)
		case msg.run != nil:
			msg.run()
		}
		c.publish()
	}
}

func (c *Controller) publish() {
	snap := Snapshot{
		State:          c.state,
		Capabilities:   CapabilitiesFor(c.state),
		Action:         c.action,
		ActionID:       c.actionID,
		ImagesCaptured: c.imagesCaptured,
		ImagesRequired: c.action.ImagesRequired(),
		CaptureType:    c.captureType,
		CaptureTypes:   append([]scanner.CaptureType(nil), c.available...),
		DeviceOpen:     c.device != nil,
	}
	c.snapMu.Lock()
	snap.Sequence = c.snap.Sequence + 1
	c.snap = snap
	close(c.changed)
	c.changed = make(chan struct{})
	c.snapMu.Unlock()
}

// spawn runs fn on a tracked worker goroutine.
func (c *Controller) spawn(fn func(ctx context.Context)) {
	c.workers.Add(1)
	go func() {
		defer c.workers.Done()
		fn(c.ctx)
	}()
}
