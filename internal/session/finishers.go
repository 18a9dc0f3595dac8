package session

import (
	"context"
	"fmt"
	"log/slog"

	"scanmatch/internal/logging"
	"scanmatch/internal/matcher"
	"scanmatch/internal/services"
)

// dispatchFinisher records the action's images and runs its finisher on a
// worker. Finishers report to the presenter and the artifact holder only.
func (c *Controller) dispatchFinisher(kind ActionKind, actionID string, images []*matcher.Image, delivered *matcher.Image) {
	c.results.begin(actionID, kind, images)
	dev := c.device
	logger := c.logger.With(
		logging.String(logging.FieldActionID, actionID),
		logging.String(logging.FieldAction, kind.String()),
	)

	c.spawn(func(ctx context.Context) {
		ctx = services.WithActionID(ctx, actionID)
		switch kind {
		case ActionCapture:
			img := images[0]
			if img == nil {
				img = delivered
			}
			c.finishCapture(ctx, logger, actionID, dev, img)
		case ActionMatch:
			c.finishMatch(ctx, logger, actionID, images[0])
		case ActionSingleEnroll:
			c.finishSingleEnroll(ctx, logger, actionID, [3]*matcher.Image(images))
		case ActionMultiEnroll:
			c.finishMultiEnroll(ctx, logger, actionID, [6]*matcher.Image(images))
		}
	})
}

type qualityDevice interface {
	Quality(img *matcher.Image) (int, error)
}

func (c *Controller) finishCapture(_ context.Context, logger *slog.Logger, actionID string, dev qualityDevice, img *matcher.Image) {
	if dev == nil || img == nil {
		c.presenter.Notify("Error calculating NFIQ score: no image")
		c.results.finish(actionID, nil)
		return
	}
	score, err := dev.Quality(img)
	if err != nil {
		c.presenter.Notify(fmt.Sprintf("Error calculating NFIQ score %v", err))
		logger.Info("nfiq score failed", logging.Error(err))
		c.results.finish(actionID, nil)
		return
	}
	c.presenter.Notify(fmt.Sprintf("NFIQ score for print is %d", score))
	c.results.finish(actionID, func(r *ActionResult) { r.Quality = score })
	logger.Info("capture finished", logging.Int("nfiq", score), logging.String(logging.FieldEventType, "action_finished"))
}

func (c *Controller) finishMatch(ctx context.Context, logger *slog.Logger, actionID string, img *matcher.Image) {
	tpl, err := c.matcher.ExtractTemplate(ctx, img)
	if err != nil {
		c.failAction(logger, actionID, "Could not match", "Error generating template", err)
		return
	}
	entry, err := c.records.Match(ctx, tpl, c.matcher)
	if err != nil {
		c.failAction(logger, actionID, "Could not match", "Error matching template", err)
		return
	}
	c.presenter.ShowMatch(entry)
	c.results.finish(actionID, func(r *ActionResult) {
		r.Templates = []*matcher.Template{tpl}
		r.Match = entry
	})
	matched := ""
	if entry != nil {
		matched = entry.Name
	}
	logger.Info("match finished",
		logging.Bool("matched", entry != nil),
		logging.String("user", matched),
		logging.String(logging.FieldEventType, "action_finished"),
	)
}

func (c *Controller) finishSingleEnroll(ctx context.Context, logger *slog.Logger, actionID string, images [3]*matcher.Image) {
	tpl, err := c.matcher.SingleEnrollment(ctx, images)
	if err != nil {
		c.failAction(logger, actionID, "Could not enroll user", "Error generating template.  Please retry.", err)
		return
	}
	c.presenter.EnrollmentReady(tpl)
	c.results.finish(actionID, func(r *ActionResult) { r.Templates = []*matcher.Template{tpl} })
	logger.Info("single enrollment finished", logging.String(logging.FieldEventType, "action_finished"))
}

func (c *Controller) finishMultiEnroll(ctx context.Context, logger *slog.Logger, actionID string, images [6]*matcher.Image) {
	templates, err := c.matcher.MultiEnrollment(ctx, images)
	if err != nil {
		c.failAction(logger, actionID, "Could not enroll user", "Error generating template.  Please retry.", err)
		return
	}
	c.presenter.EnrollmentReady(templates[0])
	c.results.finish(actionID, func(r *ActionResult) { r.Templates = templates[:] })
	logger.Info("multi enrollment finished", logging.String(logging.FieldEventType, "action_finished"))
}

func (c *Controller) failAction(logger *slog.Logger, actionID, title, msg string, err error) {
	c.presenter.Alert(title, msg)
	c.results.finish(actionID, nil)
	logging.WarnWithContext(logger, title, "action_failed",
		logging.Error(err),
		logging.String("error_kind", services.Kind(err)),
		logging.String(logging.FieldErrorHint, "retry the action"),
		logging.String(logging.FieldImpact, "no result produced"),
	)
}
