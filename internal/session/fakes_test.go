package session

import (
	"context"
	"errors"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"scanmatch/internal/logging"
	"scanmatch/internal/matcher"
	"scanmatch/internal/records"
	"scanmatch/internal/scanner"
	"scanmatch/internal/testsupport"
)

type fakeDevice struct {
	mu            sync.Mutex
	listener      scanner.Listener
	types         []scanner.CaptureType
	active        bool
	begins        int
	cancels       int
	closes        int
	cancelsToStop int // 0 stops on the first cancel, negative never stops
	result        *matcher.Image
	resultErr     error
	quality       int
	activeErr     error
}

func newFakeDevice() *fakeDevice {
	return &fakeDevice{
		types:   []scanner.CaptureType{scanner.CaptureFlatSingleFinger, scanner.CaptureRolledSingleFinger},
		quality: 2,
	}
}

func (d *fakeDevice) BeginCapture(scanner.CaptureType, scanner.Resolution, scanner.CaptureOption) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.begins++
	d.active = true
	return nil
}

func (d *fakeDevice) CancelCapture() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.cancels++
	if d.cancelsToStop >= 0 && d.cancels >= d.cancelsToStop {
		d.active = false
	}
	return nil
}

func (d *fakeDevice) IsCaptureActive() (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.activeErr != nil {
		return false, d.activeErr
	}
	return d.active, nil
}

func (d *fakeDevice) ResultImage() (*matcher.Image, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.result, d.resultErr
}

func (d *fakeDevice) CaptureAvailable(t scanner.CaptureType, _ scanner.Resolution) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return slices.Contains(d.types, t), nil
}

func (d *fakeDevice) SetProperty(scanner.Property, string) error { return nil }

func (d *fakeDevice) Quality(*matcher.Image) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.quality, nil
}

func (d *fakeDevice) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closes++
	return nil
}

// deliver completes the running capture with img.
func (d *fakeDevice) deliver(img *matcher.Image) {
	d.mu.Lock()
	d.result = img
	d.active = false
	l := d.listener
	d.mu.Unlock()
	l.PlatenStateChanged(d, scanner.PlatenHasFingers)
	l.ResultAvailable(d, img, scanner.CaptureFlatSingleFinger)
}

func (d *fakeDevice) currentListener() scanner.Listener {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.listener
}

func (d *fakeDevice) counts() (begins, cancels, closes int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.begins, d.cancels, d.closes
}

type fakeManager struct {
	mu      sync.Mutex
	count   int
	dev     *fakeDevice
	openErr error
	hold    bool
	pending []func()
	opens   int
	counts  int
}

func (m *fakeManager) DeviceCount() (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counts++
	return m.count, nil
}

func (m *fakeManager) countCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.counts
}

func (m *fakeManager) Describe(index int) (scanner.Description, error) {
	return scanner.Description{Product: "Fake scanner", Serial: "0001"}, nil
}

func (m *fakeManager) OpenAsync(index int, l scanner.Listener) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.opens++
	dev := m.dev
	dev.mu.Lock()
	dev.listener = l
	dev.mu.Unlock()

	complete := func() {
		l.OpenProgress(index, 50)
		if m.openErr != nil {
			l.OpenComplete(index, nil, m.openErr)
			return
		}
		l.OpenComplete(index, dev, nil)
	}
	if m.hold {
		m.pending = append(m.pending, complete)
		return nil
	}
	go complete()
	return nil
}

func (m *fakeManager) release() {
	m.mu.Lock()
	pending := m.pending
	m.pending = nil
	m.mu.Unlock()
	for _, fn := range pending {
		fn()
	}
}

func (m *fakeManager) setCount(n int) {
	m.mu.Lock()
	m.count = n
	m.mu.Unlock()
}

type recordingPresenter struct {
	mu          sync.Mutex
	states      []State
	notices     []string
	alerts      []string
	actions     []string
	matches     []*records.Entry
	matchCalls  int
	enrollments []*matcher.Template
}

func (p *recordingPresenter) StateChanged(s State, _ Capabilities) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.states = append(p.states, s)
}

func (p *recordingPresenter) Status(string) {}
func (p *recordingPresenter) DeviceInfo(string, int) {}
func (p *recordingPresenter) CaptureTypes([]scanner.CaptureType) {}
func (p *recordingPresenter) Preview(*matcher.Image) {}
func (p *recordingPresenter) FingerQualities([]scanner.FingerQuality) {}

func (p *recordingPresenter) ActionState(text string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.actions = append(p.actions, text)
}

func (p *recordingPresenter) Notify(msg string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.notices = append(p.notices, msg)
}

func (p *recordingPresenter) Alert(title, msg string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.alerts = append(p.alerts, title+": "+msg)
}

func (p *recordingPresenter) ShowMatch(entry *records.Entry) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.matchCalls++
	p.matches = append(p.matches, entry)
}

func (p *recordingPresenter) EnrollmentReady(tpl *matcher.Template) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.enrollments = append(p.enrollments, tpl)
}

func (p *recordingPresenter) noticed(substr string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, n := range p.notices {
		if strings.Contains(n, substr) {
			return true
		}
	}
	return false
}

// entered counts how often the session entered s.
func (p *recordingPresenter) entered(s State) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, got := range p.states {
		if got == s {
			n++
		}
	}
	return n
}

func (p *recordingPresenter) stateList() []State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]State(nil), p.states...)
}

func (p *recordingPresenter) alertList() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.alerts...)
}

func (p *recordingPresenter) actionList() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.actions...)
}

type harness struct {
	c       *Controller
	mgr     *fakeManager
	dev     *fakeDevice
	p       *recordingPresenter
	store   *records.Store
	matcher *matcher.Service
}

func newHarness(t *testing.T, opts Options) *harness {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	h := &harness{
		dev:     newFakeDevice(),
		p:       &recordingPresenter{},
		store:   testsupport.MustOpenStore(t, cfg),
		matcher: matcher.NewService(matcher.NewDigestEngine(), logging.NewNop()),
	}
	h.mgr = &fakeManager{count: 1, dev: h.dev}
	if opts.StopPollInterval == 0 {
		opts.StopPollInterval = 2 * time.Millisecond
	}
	c, err := New(Deps{
		Manager:   h.mgr,
		Matcher:   h.matcher,
		Records:   h.store,
		Presenter: h.p,
		Logger:    logging.NewNop(),
	}, opts)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	h.c = c
	c.Start(context.Background())
	t.Cleanup(c.Stop)
	return h
}

func (h *harness) waitFor(t *testing.T, what string, pred func(Snapshot) bool) Snapshot {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	snap, err := h.c.WaitFor(ctx, pred)
	if err != nil {
		t.Fatalf("waiting for %s: %v (last state %s)", what, err, snap.State)
	}
	return snap
}

func (h *harness) waitState(t *testing.T, s State) Snapshot {
	t.Helper()
	return h.waitFor(t, s.String(), func(snap Snapshot) bool { return snap.State == s })
}

// open drives the session from startup to an open device.
func (h *harness) open(t *testing.T) {
	t.Helper()
	h.waitState(t, StateScannerAttached)
	if err := h.c.RequestOpen(context.Background()); err != nil {
		t.Fatalf("RequestOpen: %v", err)
	}
	h.waitFor(t, "open device", func(s Snapshot) bool { return s.State == StateInitialized && s.DeviceOpen })
}

func (h *harness) start(t *testing.T, kind ActionKind) {
	t.Helper()
	if err := h.c.RequestStart(context.Background(), kind); err != nil {
		t.Fatalf("RequestStart(%s): %v", kind, err)
	}
}

// capture waits for capture slot i and fills it with img.
func (h *harness) capture(t *testing.T, i int, img *matcher.Image) {
	t.Helper()
	h.waitFor(t, "capture slot", func(s Snapshot) bool {
		return s.State == StateCapturing && s.ImagesCaptured == i
	})
	h.dev.deliver(img)
}

// waitResult waits for a finished result from an action other than skip.
func (h *harness) waitResult(t *testing.T, skip string) ActionResult {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if res, ok := h.c.LastResult(); ok && res.Finished && res.ActionID != skip {
			return res
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatal("action result never finished")
	return ActionResult{}
}

// hold parks the loop until the returned func is called, so that messages
// posted in the meantime queue up behind each other.
func (h *harness) hold(t *testing.T) func() {
	t.Helper()
	held := make(chan struct{})
	resume := make(chan struct{})
	if !h.c.postFunc(func() {
		close(held)
		<-resume
	}) {
		t.Fatal("controller stopped")
	}
	<-held
	return func() { close(resume) }
}

var errBroken = errors.New("usb transfer failed")
