package session

import (
	"fmt"
	"slices"

	"github.com/google/uuid"

	"scanmatch/internal/logging"
	"scanmatch/internal/matcher"
	"scanmatch/internal/scanner"
)

// apply validates t against the predecessor table and enters the target
// state. Invalid transitions are logged and dropped.
func (c *Controller) apply(t transition) {
	from := c.state

	if t.to == StateRefresh && !c.refreshAllowed(from) {
		return
	}
	if !CanTransition(from, t.to) {
		logging.WarnWithContext(c.logger, "invalid state transition dropped", "invalid_transition",
			logging.String("from", from.String()),
			logging.String("to", t.to.String()),
			logging.String("reason", t.reason),
			logging.String(logging.FieldErrorHint, "an event arrived for a state the session already left"),
			logging.String(logging.FieldImpact, "event ignored"),
		)
		return
	}

	c.state = t.to
	c.logger.Debug("state transition",
		logging.String("from", from.String()),
		logging.String(logging.FieldState, t.to.String()),
		logging.String("reason", t.reason),
	)
	c.presenter.StateChanged(t.to, CapabilitiesFor(t.to))
	c.presenter.Status(t.to.StatusText())

	switch t.to {
	case StateNoScannerAttached:
		c.presenter.DeviceInfo("no device attached", 0)
	case StateScannerAttached:
		c.presenter.DeviceInfo(t.desc, t.count)
	case StateRefresh:
		c.enterRefresh()
	case StateInitializing:
		c.enterInitializing()
	case StateInitialized:
		c.enterInitialized(t.device)
	case StateClosing:
		c.enterClosing()
	case StateStartingCapture:
		c.enterStartingCapture(t)
	case StateCapturing:
		c.presenter.Notify("Now capturing...put a finger on the sensor")
	case StateStoppingCapture:
		c.enterStoppingCapture(from)
	case StateImageCaptured:
		c.enterImageCaptured(t)
	case StateCommunicationBreak:
		c.post(transition{to: StateClosing, reason: "communication break"})
	}
}

// refreshAllowed handles the Refresh requests that the predecessor table
// does not cover. It returns false when the request was consumed here.
func (c *Controller) refreshAllowed(from State) bool {
	switch from {
	case StateRefresh:
		// Several events can ask for a refresh at once; the running one
		// settles on the right state.
		return false
	case StateInitialized:
		if c.device != nil {
			if _, err := c.device.IsCaptureActive(); err != nil {
				c.logger.Info("open device failed probe; closing",
					logging.Error(err),
					logging.String(logging.FieldEventType, "device_probe_failed"),
				)
				c.post(transition{to: StateClosing, reason: "device probe failed"})
			}
		}
		return false
	case StateInitializing, StateStartingCapture, StateCapturing, StateStoppingCapture,
		StateImageCaptured, StateCommunicationBreak:
		c.logger.Debug("refresh ignored while busy", logging.String(logging.FieldState, from.String()))
		return false
	}
	return true
}

func (c *Controller) enterRefresh() {
	c.presenter.ActionState("")
	c.presenter.CaptureTypes(nil)
	c.available = nil

	count, err := c.manager.DeviceCount()
	if err != nil {
		c.logger.Warn("device count failed",
			logging.Error(err),
			logging.String(logging.FieldEventType, "device_count_failed"),
			logging.String(logging.FieldErrorHint, "check the scanner backend configuration"),
			logging.String(logging.FieldImpact, "no scanner offered"),
		)
		c.post(transition{to: StateNoScannerAttached, reason: "device count failed"})
		return
	}
	if count <= 0 {
		c.post(transition{to: StateNoScannerAttached, reason: "no devices"})
		return
	}
	desc, err := c.manager.Describe(c.opts.DeviceIndex)
	if err != nil {
		c.logger.Warn("device description failed",
			logging.Error(err),
			logging.Int(logging.FieldDeviceIndex, c.opts.DeviceIndex),
			logging.String(logging.FieldEventType, "device_describe_failed"),
			logging.String(logging.FieldErrorHint, "check scanner.device_index against the attached devices"),
			logging.String(logging.FieldImpact, "no scanner offered"),
		)
		c.post(transition{to: StateNoScannerAttached, reason: "describe failed"})
		return
	}
	c.post(transition{to: StateScannerAttached, desc: desc.String(), count: count, reason: "device found"})
}

func (c *Controller) enterInitializing() {
	c.results.clear()
	c.openGen++
	gen := c.openGen

	if err := c.manager.OpenAsync(c.opts.DeviceIndex, &deviceListener{c: c, gen: gen}); err != nil {
		c.presenter.Notify(fmt.Sprintf("Could not initialize device: %v", err))
		c.logger.Warn("device open failed",
			logging.Error(err),
			logging.Int(logging.FieldDeviceIndex, c.opts.DeviceIndex),
			logging.String(logging.FieldEventType, "device_open_failed"),
			logging.String(logging.FieldErrorHint, "check the scanner connection and permissions"),
			logging.String(logging.FieldImpact, "scanner stays closed"),
		)
		c.post(transition{to: StateClosing, reason: "open failed"})
		return
	}
	if c.opts.OpenTimeout > 0 {
		timeout := c.opts.OpenTimeout
		c.afterFunc(timeout, func() {
			if c.state != StateInitializing || c.openGen != gen {
				return
			}
			c.presenter.Notify(fmt.Sprintf("Device %d did not initialize within %s", c.opts.DeviceIndex, timeout))
			c.logger.Warn("device open timed out",
				logging.Duration("timeout", timeout),
				logging.String(logging.FieldEventType, "device_open_timeout"),
				logging.String(logging.FieldErrorHint, "raise session.open_timeout_seconds or check the scanner"),
				logging.String(logging.FieldImpact, "open abandoned"),
			)
			c.apply(transition{to: StateClosing, reason: "open timeout"})
		})
	}
}

// openCompleted handles the asynchronous end of OpenAsync on the loop.
func (c *Controller) openCompleted(gen uint64, index int, dev scanner.Device, err error) {
	if gen != c.openGen || c.state != StateInitializing {
		if dev != nil {
			c.logger.Info("closing device whose open completed late",
				logging.Int(logging.FieldDeviceIndex, index),
				logging.String(logging.FieldEventType, "late_open_closed"),
			)
			if closeErr := dev.Close(); closeErr != nil {
				c.logger.Debug("late device close failed", logging.Error(closeErr))
			}
		}
		return
	}
	if err != nil || dev == nil {
		msg := "(unknown)"
		if err != nil {
			msg = err.Error()
		}
		c.presenter.Notify(fmt.Sprintf("Device %d could not be initialized with error %s", index, msg))
		c.post(transition{to: StateClosing, reason: "open failed"})
		return
	}
	c.presenter.Notify(fmt.Sprintf("Device %d is now initialized", index))
	// Entered directly so a queued open timeout cannot close the session
	// before the handle is stored.
	c.apply(transition{to: StateInitialized, device: dev, reason: "open complete"})
}

func (c *Controller) enterInitialized(dev scanner.Device) {
	c.stopPolls = 0
	c.resetAction()
	if dev == nil {
		return
	}

	if err := dev.SetProperty(scanner.PropertyPowerSave, "TRUE"); err != nil {
		c.logger.Info("could not enable power save mode", logging.Error(err))
	}

	var types []scanner.CaptureType
	for _, t := range scanner.CaptureTypes() {
		ok, err := dev.CaptureAvailable(t, scanner.Resolution500)
		if err != nil {
			c.logger.Info("could not check capture availability",
				logging.String("capture_type", t.String()),
				logging.Error(err),
			)
			continue
		}
		if ok {
			types = append(types, t)
		}
	}
	c.available = types
	if len(types) > 0 && !slices.Contains(types, c.captureType) {
		c.logger.Info("configured capture type unavailable; using first offered",
			logging.String("configured", c.captureType.String()),
			logging.String("selected", types[0].String()),
		)
		c.captureType = types[0]
	}
	c.presenter.CaptureTypes(types)
	c.device = dev
}

func (c *Controller) enterClosing() {
	c.resetAction()
	if c.device != nil {
		if err := c.device.Close(); err != nil {
			c.logger.Info("could not close device", logging.Error(err))
		}
		c.device = nil
	}
	c.available = nil
	c.post(transition{to: StateRefresh, reason: "closed"})
}

func (c *Controller) enterStartingCapture(t transition) {
	if t.newAction {
		c.action = t.action
		c.imagesCaptured = 0
		c.captured = make([]*matcher.Image, t.action.ImagesRequired())
		c.actionID = uuid.NewString()
		c.logger.Info("action started",
			logging.String(logging.FieldAction, c.action.String()),
			logging.String(logging.FieldActionID, c.actionID),
			logging.String("capture_type", c.captureType.String()),
			logging.String(logging.FieldEventType, "action_started"),
		)
	}
	required := c.action.ImagesRequired()
	c.presenter.ActionState(fmt.Sprintf("capturing image %d of %d", c.imagesCaptured+1, required))

	if c.device == nil {
		c.presenter.Notify("Could not begin capturing: no open device")
		c.post(transition{to: StateInitialized, reason: "no device"})
		return
	}
	err := c.device.BeginCapture(c.captureType, scanner.Resolution500, scanner.OptionAutoCapture|scanner.OptionAutoContrast)
	if err != nil {
		c.presenter.Notify(fmt.Sprintf("Could not begin capturing with error %v", err))
		c.logger.Warn("begin capture failed",
			logging.Error(err),
			logging.String(logging.FieldActionID, c.actionID),
			logging.String(logging.FieldEventType, "begin_capture_failed"),
			logging.String(logging.FieldErrorHint, "check the capture type is supported by the scanner"),
			logging.String(logging.FieldImpact, "action abandoned"),
		)
		c.post(transition{to: StateInitialized, reason: "begin capture failed"})
		return
	}
	// Entered directly so a result callback cannot overtake it.
	c.apply(transition{to: StateCapturing, reason: "capture begun"})
}

func (c *Controller) enterStoppingCapture(from State) {
	if from != StateStoppingCapture {
		c.stopPolls = 0
	}
	c.presenter.ActionState("capture stopped")

	done := false
	switch {
	case c.device == nil:
		done = true
	default:
		active, err := c.device.IsCaptureActive()
		switch {
		case err != nil:
			c.presenter.Notify(fmt.Sprintf("Could not query capture active state %v", err))
			done = true
		case !active:
			c.presenter.Notify("Capture stopped")
			done = true
		default:
			if err := c.device.CancelCapture(); err != nil {
				c.presenter.Notify(fmt.Sprintf("Could not cancel capturing with error %v", err))
				done = true
			}
		}
	}
	if done {
		c.stopPolls = 0
		c.post(transition{to: StateInitialized, reason: "capture stopped"})
		return
	}

	c.stopPolls++
	if c.opts.StopPollLimit > 0 && c.stopPolls >= c.opts.StopPollLimit {
		logging.WarnWithContext(c.logger, "capture did not stop; giving up", "stop_poll_limit",
			logging.Int("polls", c.stopPolls),
			logging.String(logging.FieldErrorHint, "the scanner may need to be replugged"),
			logging.String(logging.FieldImpact, "session returned to initialized with capture possibly active"),
		)
		c.presenter.Notify("Capture did not stop")
		c.stopPolls = 0
		c.post(transition{to: StateInitialized, reason: "stop poll limit"})
		return
	}
	c.after(c.opts.StopPollInterval, transition{to: StateStoppingCapture, reason: "stop poll"})
}

func (c *Controller) enterImageCaptured(t transition) {
	required := c.action.ImagesRequired()
	if c.imagesCaptured >= required || len(c.captured) != required {
		logging.WarnWithContext(c.logger, "capture result without pending slot", "capture_overflow",
			logging.Int("captured", c.imagesCaptured),
			logging.Int("required", required),
			logging.String(logging.FieldImpact, "result discarded"),
		)
		c.post(transition{to: StateInitialized, reason: "capture overflow"})
		return
	}

	var img *matcher.Image
	if c.device != nil {
		var err error
		img, err = c.device.ResultImage()
		if err != nil {
			img = nil
			c.presenter.Notify(fmt.Sprintf("Error fetching result image %v", err))
		}
	}
	c.captured[c.imagesCaptured] = img
	c.imagesCaptured++

	if c.imagesCaptured < required {
		c.presenter.ActionState(fmt.Sprintf("captured image %d of %d", c.imagesCaptured, required))
		c.post(transition{to: StateStartingCapture, reason: "next image"})
		return
	}

	c.presenter.ActionState("performed " + c.action.Description())
	images := append([]*matcher.Image(nil), c.captured...)
	c.dispatchFinisher(c.action, c.actionID, images, t.image)
	c.resetAction()
	c.post(transition{to: StateInitialized, reason: "action complete"})
}

// resetAction clears the progress of the current action and drops its
// images. Finishers keep their own copy.
func (c *Controller) resetAction() {
	c.action = ActionNone
	c.actionID = ""
	c.imagesCaptured = 0
	c.captured = nil
}
