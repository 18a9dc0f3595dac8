package session

import (
	"fmt"

	"scanmatch/internal/logging"
	"scanmatch/internal/matcher"
	"scanmatch/internal/scanner"
)

// deviceListener turns backend callbacks into loop messages. gen ties open
// completions to the OpenAsync call that produced them.
type deviceListener struct {
	c   *Controller
	gen uint64
}

var _ scanner.Listener = (*deviceListener)(nil)

func (l *deviceListener) DeviceCountChanged(count int) {
	c := l.c
	c.postFunc(func() {
		if count == 1 {
			c.presenter.Notify("There is now 1 accessible device")
		} else {
			c.presenter.Notify(fmt.Sprintf("There are now %d accessible devices", count))
		}
		c.logger.Info("device count changed",
			logging.Int("count", count),
			logging.String(logging.FieldEventType, "device_count_changed"),
		)
		c.apply(transition{to: StateRefresh, reason: "device count changed"})
	})
}

func (l *deviceListener) OpenProgress(index, percent int) {
	c := l.c
	c.postFunc(func() {
		if c.state == StateInitializing && c.openGen == l.gen {
			c.presenter.Status(fmt.Sprintf("init %d%%", percent))
		}
	})
}

func (l *deviceListener) OpenComplete(index int, dev scanner.Device, err error) {
	c, gen := l.c, l.gen
	if !c.postFunc(func() { c.openCompleted(gen, index, dev, err) }) && dev != nil {
		_ = dev.Close()
	}
}

func (l *deviceListener) CommunicationBroken(dev scanner.Device) {
	c := l.c
	c.postFunc(func() {
		if !l.current(dev) {
			return
		}
		c.presenter.Notify("Communication break with device")
		logging.WarnWithContext(c.logger, "communication with scanner broken", "communication_break",
			logging.String(logging.FieldState, c.state.String()),
			logging.String(logging.FieldErrorHint, "reconnect the scanner"),
			logging.String(logging.FieldImpact, "device will be closed"),
		)
		c.apply(transition{to: StateCommunicationBreak, reason: "communication broken"})
	})
}

func (l *deviceListener) FingerCountChanged(dev scanner.Device, state scanner.FingerCountState) {
	c := l.c
	c.postFunc(func() {
		if l.current(dev) && c.state == StateCapturing {
			c.presenter.Status(state.String())
		}
	})
}

func (l *deviceListener) FingerQualityChanged(dev scanner.Device, qualities []scanner.FingerQuality) {
	c := l.c
	qs := append([]scanner.FingerQuality(nil), qualities...)
	c.postFunc(func() {
		if l.current(dev) {
			c.presenter.FingerQualities(qs)
		}
	})
}

func (l *deviceListener) PlatenStateChanged(dev scanner.Device, state scanner.PlatenState) {
	c := l.c
	c.postFunc(func() {
		if !l.current(dev) || c.state != StateCapturing {
			return
		}
		switch state {
		case scanner.PlatenHasFingers:
			c.presenter.ActionState("please remove fingers from platen")
		default:
			c.presenter.ActionState(fmt.Sprintf("capturing image %d of %d",
				c.imagesCaptured+1, c.action.ImagesRequired()))
		}
	})
}

func (l *deviceListener) PreviewAvailable(dev scanner.Device, img *matcher.Image) {
	c := l.c
	c.postFunc(func() {
		if l.current(dev) {
			c.presenter.Preview(img)
		}
	})
}

func (l *deviceListener) ResultAvailable(dev scanner.Device, img *matcher.Image, t scanner.CaptureType) {
	c := l.c
	c.postFunc(func() {
		if !l.current(dev) {
			c.logger.Debug("result from stale device ignored")
			return
		}
		c.presenter.Notify("Image result available")
		if img != nil {
			c.presenter.Preview(img)
		}
		c.apply(transition{to: StateImageCaptured, image: img, reason: "result " + t.String()})
	})
}

func (l *deviceListener) Warning(dev scanner.Device, err error) {
	if err == nil {
		return
	}
	c := l.c
	c.postFunc(func() {
		c.presenter.Notify(fmt.Sprintf("Warning: %v", err))
		c.logger.Info("scanner warning", logging.Error(err))
	})
}

// current reports whether dev is the open device. Events from a device that
// was already closed are dropped. Runs on the loop.
func (l *deviceListener) current(dev scanner.Device) bool {
	return dev != nil && dev == l.c.device
}
