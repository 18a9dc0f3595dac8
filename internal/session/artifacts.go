package session

import (
	"sync"
	"time"

	"scanmatch/internal/matcher"
	"scanmatch/internal/records"
)

// ActionResult is a copy of what the last completed action produced.
type ActionResult struct {
	ActionID    string
	Kind        ActionKind
	Images      []*matcher.Image
	Templates   []*matcher.Template
	Quality     int
	Match       *records.Entry
	CompletedAt time.Time
	Finished    bool
}

// LastImage returns the most recent non-nil capture.
func (r ActionResult) LastImage() *matcher.Image {
	for i := len(r.Images) - 1; i >= 0; i-- {
		if r.Images[i] != nil {
			return r.Images[i]
		}
	}
	return nil
}

// artifacts holds finisher output apart from the loop-owned session state.
type artifacts struct {
	mu     sync.Mutex
	result ActionResult
	valid  bool
}

func (a *artifacts) begin(actionID string, kind ActionKind, images []*matcher.Image) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.result = ActionResult{
		ActionID: actionID,
		Kind:     kind,
		Images:   append([]*matcher.Image(nil), images...),
	}
	a.valid = true
}

// finish records finisher output for actionID. Output for an older action
// is discarded.
func (a *artifacts) finish(actionID string, update func(*ActionResult)) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.valid || a.result.ActionID != actionID {
		return
	}
	if update != nil {
		update(&a.result)
	}
	a.result.Finished = true
	a.result.CompletedAt = time.Now()
}

func (a *artifacts) clear() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.result = ActionResult{}
	a.valid = false
}

func (a *artifacts) snapshot() (ActionResult, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.valid {
		return ActionResult{}, false
	}
	out := a.result
	out.Images = append([]*matcher.Image(nil), a.result.Images...)
	out.Templates = append([]*matcher.Template(nil), a.result.Templates...)
	return out, true
}
