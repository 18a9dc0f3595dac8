package daemon

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"scanmatch/internal/logging"
	"scanmatch/internal/matcher"
	"scanmatch/internal/records"
	"scanmatch/internal/scanner"
	"scanmatch/internal/session"
)

// MatchView describes the outcome of the last match action.
type MatchView struct {
	Matched     bool      `json:"matched"`
	Name        string    `json:"name,omitempty"`
	Description string    `json:"description,omitempty"`
	Score       int       `json:"score,omitempty"`
	At          time.Time `json:"at"`
}

// View is what the session presenter has been told most recently.
type View struct {
	State        string               `json:"state"`
	Capabilities session.Capabilities `json:"capabilities"`
	Status       string               `json:"status"`
	ActionText   string               `json:"action_text"`
	Device       string               `json:"device"`
	DeviceCount  int                  `json:"device_count"`
	CaptureTypes []string             `json:"capture_types"`
	Qualities    []string             `json:"qualities"`
	Preview      string               `json:"preview,omitempty"`
	LastMatch    *MatchView           `json:"last_match,omitempty"`
	Pending      bool                 `json:"pending_enrollment"`
}

// presenter keeps the latest session output for status queries and forwards
// user-facing messages into the stream hub.
type presenter struct {
	hub    *logging.StreamHub
	alerts *slog.Logger

	mu      sync.Mutex
	view    View
	pending *matcher.Template
}

func newPresenter(logger *slog.Logger, hub *logging.StreamHub) *presenter {
	return &presenter{
		hub:    hub,
		alerts: logging.WithStream(logging.NewComponentLogger(logger, "session-alert"), hub, slog.LevelWarn),
		view:   View{State: session.StateNoScannerAttached.String()},
	}
}

func (p *presenter) StateChanged(state session.State, caps session.Capabilities) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.view.State = state.String()
	p.view.Capabilities = caps
}

func (p *presenter) Status(text string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.view.Status = text
}

func (p *presenter) ActionState(text string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.view.ActionText = text
}

func (p *presenter) DeviceInfo(description string, count int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.view.Device = description
	p.view.DeviceCount = count
}

func (p *presenter) CaptureTypes(types []scanner.CaptureType) {
	names := make([]string, 0, len(types))
	for _, t := range types {
		names = append(names, t.String())
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.view.CaptureTypes = names
}

func (p *presenter) Notify(message string) {
	p.mu.Lock()
	state := p.view.State
	p.mu.Unlock()
	p.hub.Publish(logging.LogEvent{
		Level:     "INFO",
		Message:   message,
		Component: "session",
		State:     state,
	})
}

func (p *presenter) Alert(title, message string) {
	logging.WarnWithContext(p.alerts, title+": "+message, "session_alert",
		logging.Alert(title),
		logging.String(logging.FieldErrorHint, "retry the action"),
		logging.String(logging.FieldImpact, "action produced no result"),
	)
}

func (p *presenter) Preview(img *matcher.Image) {
	if img == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.view.Preview = fmt.Sprintf("%dx%d", img.Width, img.Height)
}

func (p *presenter) FingerQualities(qualities []scanner.FingerQuality) {
	names := make([]string, 0, len(qualities))
	for _, q := range qualities {
		names = append(names, q.String())
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.view.Qualities = names
}

func (p *presenter) ShowMatch(entry *records.Entry) {
	view := &MatchView{At: time.Now().UTC()}
	if entry != nil {
		view.Matched = true
		view.Name = entry.Name
		view.Description = entry.Description
		view.Score = entry.Score
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.view.LastMatch = view
}

func (p *presenter) EnrollmentReady(tpl *matcher.Template) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pending = tpl
	p.view.Pending = tpl != nil
}

func (p *presenter) snapshot() View {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := p.view
	out.CaptureTypes = append([]string(nil), p.view.CaptureTypes...)
	out.Qualities = append([]string(nil), p.view.Qualities...)
	if p.view.LastMatch != nil {
		m := *p.view.LastMatch
		out.LastMatch = &m
	}
	return out
}

func (p *presenter) pendingTemplate() *matcher.Template {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.pending
}

// takePending clears the pending template if it is still tpl.
func (p *presenter) takePending(tpl *matcher.Template) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.pending == tpl {
		p.pending = nil
		p.view.Pending = false
	}
}
