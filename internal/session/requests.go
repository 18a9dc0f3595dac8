package session

import (
	"context"
	"fmt"
	"slices"

	"scanmatch/internal/logging"
	"scanmatch/internal/scanner"
)

// RequestRefresh re-enumerates scanners.
func (c *Controller) RequestRefresh(ctx context.Context) error {
	return c.userRequest(ctx, "refresh", func(caps Capabilities) bool { return caps.Refresh }, func() error {
		c.apply(transition{to: StateRefresh, reason: "user refresh"})
		return nil
	})
}

// RequestOpen opens the configured scanner.
func (c *Controller) RequestOpen(ctx context.Context) error {
	return c.userRequest(ctx, "open", func(caps Capabilities) bool { return caps.Open }, func() error {
		c.apply(transition{to: StateInitializing, reason: "user open"})
		return nil
	})
}

// RequestClose closes the open scanner.
func (c *Controller) RequestClose(ctx context.Context) error {
	return c.userRequest(ctx, "close", func(caps Capabilities) bool { return caps.Close }, func() error {
		c.apply(transition{to: StateClosing, reason: "user close"})
		return nil
	})
}

// RequestStart begins a new action of the given kind.
func (c *Controller) RequestStart(ctx context.Context, kind ActionKind) error {
	_, err := c.StartAction(ctx, kind)
	return err
}

// StartAction begins a new action of the given kind and returns its action
// ID.
func (c *Controller) StartAction(ctx context.Context, kind ActionKind) (string, error) {
	if !kind.valid() {
		return "", fmt.Errorf("start: %w: %s", ErrNotAllowed, kind)
	}
	var actionID string
	err := c.userRequest(ctx, "start", func(caps Capabilities) bool { return caps.Start && caps.Action }, func() error {
		c.apply(transition{to: StateStartingCapture, action: kind, newAction: true, reason: "user start"})
		actionID = c.actionID
		return nil
	})
	return actionID, err
}

// RequestStop cancels the capture in progress.
func (c *Controller) RequestStop(ctx context.Context) error {
	return c.userRequest(ctx, "stop", func(caps Capabilities) bool { return caps.Stop }, func() error {
		c.apply(transition{to: StateStoppingCapture, reason: "user stop"})
		return nil
	})
}

// SetCaptureType selects the capture type for later actions. The open
// device must offer it.
func (c *Controller) SetCaptureType(ctx context.Context, t scanner.CaptureType) error {
	return c.userRequest(ctx, "capture type", func(caps Capabilities) bool { return caps.CaptureType }, func() error {
		if !slices.Contains(c.available, t) {
			return fmt.Errorf("capture type %s: %w", t, scanner.ErrNotSupported)
		}
		c.captureType = t
		c.logger.Info("capture type selected", logging.String("capture_type", t.String()))
		return nil
	})
}

// userRequest runs fn on the loop when allowed accepts the current state's
// capabilities.
func (c *Controller) userRequest(ctx context.Context, op string, allowed func(Capabilities) bool, fn func() error) error {
	return c.request(ctx, func() error {
		if !allowed(CapabilitiesFor(c.state)) {
			c.logger.Info("request not allowed",
				logging.String("request", op),
				logging.String(logging.FieldState, c.state.String()),
				logging.String(logging.FieldEventType, "request_rejected"),
			)
			return fmt.Errorf("%s in state %s: %w", op, c.state, ErrNotAllowed)
		}
		return fn()
	})
}
