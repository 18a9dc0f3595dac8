package spool

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"scanmatch/internal/logging"
	"scanmatch/internal/matcher"
	"scanmatch/internal/scanner"
)

const (
	incomingDir = "incoming"
	consumedDir = "consumed"
)

// Device is an open spool scanner. While a capture is active, the first image
// file in incoming/ becomes the result and is moved to consumed/.
type Device struct {
	index    int
	dir      string
	desc     descriptor
	listener scanner.Listener
	poll     time.Duration
	logger   *slog.Logger

	mu          sync.Mutex
	closed      bool
	active      bool
	captureType scanner.CaptureType
	cancel      chan struct{}
	done        chan struct{}
	result      *matcher.Image
	props       map[scanner.Property]string
}

func newDevice(index int, dir string, desc descriptor, l scanner.Listener, poll time.Duration, logger *slog.Logger) *Device {
	if l == nil {
		l = scanner.NopListener{}
	}
	return &Device{
		index:    index,
		dir:      dir,
		desc:     desc,
		listener: l,
		poll:     poll,
		logger:   logger.With(logging.Int(logging.FieldDeviceIndex, index)),
		props:    make(map[scanner.Property]string),
	}
}

// Description identifies the device.
func (d *Device) Description() scanner.Description {
	return d.desc.description(d.dir)
}

func (d *Device) BeginCapture(t scanner.CaptureType, res scanner.Resolution, opts scanner.CaptureOption) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return scanner.ErrNotOpen
	}
	if d.active {
		return scanner.ErrCaptureActive
	}
	if res != scanner.Resolution500 {
		return fmt.Errorf("%w: resolution %d", scanner.ErrNotSupported, res)
	}
	if !d.desc.supports(t) {
		return fmt.Errorf("%w: capture type %s", scanner.ErrNotSupported, t)
	}
	if !d.present() {
		return scanner.ErrCommunicationBreak
	}

	d.active = true
	d.captureType = t
	d.cancel = make(chan struct{})
	d.done = make(chan struct{})
	go d.captureLoop(t, opts, d.cancel, d.done)

	d.logger.Debug("capture started",
		logging.String("capture_type", t.String()),
		logging.Bool("auto_capture", opts.Has(scanner.OptionAutoCapture)),
	)
	return nil
}

func (d *Device) CancelCapture() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return scanner.ErrNotOpen
	}
	if d.active && d.cancel != nil {
		close(d.cancel)
		d.cancel = nil
	}
	return nil
}

func (d *Device) IsCaptureActive() (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return false, scanner.ErrNotOpen
	}
	if !d.present() {
		return false, scanner.ErrCommunicationBreak
	}
	return d.active, nil
}

func (d *Device) ResultImage() (*matcher.Image, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil, scanner.ErrNotOpen
	}
	if d.result == nil {
		return nil, scanner.ErrNoImage
	}
	return d.result.Clone(), nil
}

func (d *Device) CaptureAvailable(t scanner.CaptureType, res scanner.Resolution) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return false, scanner.ErrNotOpen
	}
	return res == scanner.Resolution500 && d.desc.supports(t), nil
}

func (d *Device) SetProperty(p scanner.Property, value string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return scanner.ErrNotOpen
	}
	switch p {
	case scanner.PropertyPowerSave:
		v := strings.ToUpper(strings.TrimSpace(value))
		if v != "TRUE" && v != "FALSE" {
			return fmt.Errorf("%w: %s=%q", scanner.ErrNotSupported, p, value)
		}
		d.props[p] = v
		return nil
	default:
		return fmt.Errorf("%w: property %s", scanner.ErrNotSupported, p)
	}
}

// Property returns a value previously set with SetProperty.
func (d *Device) Property(p scanner.Property) (string, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	v, ok := d.props[p]
	return v, ok
}

func (d *Device) Quality(img *matcher.Image) (int, error) {
	d.mu.Lock()
	closed := d.closed
	d.mu.Unlock()
	if closed {
		return 0, scanner.ErrNotOpen
	}
	if img == nil || len(img.Data) == 0 {
		return 0, scanner.ErrNoImage
	}
	if d.desc.Quality > 0 {
		return d.desc.Quality, nil
	}
	return nfiqScore(img), nil
}

func (d *Device) Close() error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return scanner.ErrNotOpen
	}
	d.closed = true
	if d.cancel != nil {
		close(d.cancel)
		d.cancel = nil
	}
	done := d.done
	d.mu.Unlock()

	if done != nil {
		<-done
	}
	d.logger.Debug("device closed")
	return nil
}

func (d *Device) present() bool {
	info, err := os.Stat(d.dir)
	return err == nil && info.IsDir()
}

func (d *Device) captureLoop(t scanner.CaptureType, opts scanner.CaptureOption, cancel <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	defer d.finishCapture(done, nil)

	d.listener.PlatenStateChanged(d, scanner.PlatenClear)

	ticker := time.NewTicker(d.poll)
	defer ticker.Stop()

	for {
		select {
		case <-cancel:
			return
		case <-ticker.C:
		}

		if !d.present() {
			d.logger.Warn("spool device directory disappeared during capture",
				logging.String("dir", d.dir),
				logging.String(logging.FieldEventType, "spool_device_removed"),
				logging.String(logging.FieldErrorHint, "recreate the device directory and refresh"),
				logging.String(logging.FieldImpact, "capture aborted"),
			)
			d.finishCapture(done, nil)
			d.listener.CommunicationBroken(d)
			return
		}

		path, err := d.nextIncoming()
		if err != nil {
			d.listener.Warning(d, err)
			continue
		}
		if path == "" {
			continue
		}

		img, err := d.consume(path, t)
		if err != nil {
			d.logger.Warn("spool image rejected",
				logging.Error(err),
				logging.String("file", filepath.Base(path)),
				logging.String(logging.FieldEventType, "spool_image_rejected"),
				logging.String(logging.FieldErrorHint, "drop an 8-bit PNG or binary PGM file"),
				logging.String(logging.FieldImpact, "file skipped; capture continues"),
			)
			d.listener.Warning(d, err)
			continue
		}

		score, _ := d.Quality(img)
		d.listener.FingerCountChanged(d, scanner.FingerCountOK)
		d.listener.FingerQualityChanged(d, fingerQualities(score, t.Fingers()))
		d.listener.PreviewAvailable(d, img.Clone())

		select {
		case <-cancel:
			return
		default:
		}
		if !opts.Has(scanner.OptionAutoCapture) {
			d.logger.Debug("auto capture disabled; completing on first frame")
		}
		d.finishCapture(done, img)
		d.listener.ResultAvailable(d, img.Clone(), t)
		return
	}
}

// finishCapture marks the capture owning done inactive and stores img as the
// result when it is non-nil. A capture that has since been replaced leaves
// the device state alone.
func (d *Device) finishCapture(done chan<- struct{}, img *matcher.Image) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.done != done {
		return
	}
	d.active = false
	d.cancel = nil
	if img != nil {
		d.result = img
	}
}

func (d *Device) nextIncoming() (string, error) {
	dir := filepath.Join(d.dir, incomingDir)
	entries, err := os.ReadDir(dir)
	if errors.Is(err, os.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("scan incoming: %w", err)
	}
	for _, entry := range entries {
		if entry.IsDir() || strings.HasPrefix(entry.Name(), ".") || !isImageFile(entry.Name()) {
			continue
		}
		return filepath.Join(dir, entry.Name()), nil
	}
	return "", nil
}

// consume decodes path and moves it to consumed/ whether or not decoding
// succeeded, so a bad file is not retried forever.
func (d *Device) consume(path string, t scanner.CaptureType) (*matcher.Image, error) {
	width, height, pixels, decodeErr := decodeFile(path)

	target := filepath.Join(d.dir, consumedDir, filepath.Base(path))
	if _, err := os.Stat(target); err == nil {
		target = filepath.Join(d.dir, consumedDir, fmt.Sprintf("%d-%s", time.Now().UnixNano(), filepath.Base(path)))
	}
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return nil, fmt.Errorf("ensure consumed dir: %w", err)
	}
	if err := os.Rename(path, target); err != nil {
		return nil, fmt.Errorf("move consumed image: %w", err)
	}
	if decodeErr != nil {
		return nil, decodeErr
	}
	return d.buildImage(width, height, pixels, t), nil
}
