package session

import (
	"scanmatch/internal/matcher"
	"scanmatch/internal/records"
	"scanmatch/internal/scanner"
)

// Presenter receives everything the controller wants shown to the user.
// Calls come from the loop goroutine and from finisher workers, so
// implementations must be safe for concurrent use and must not block.
type Presenter interface {
	StateChanged(state State, caps Capabilities)
	Status(text string)
	ActionState(text string)
	DeviceInfo(description string, count int)
	CaptureTypes(types []scanner.CaptureType)
	Notify(message string)
	Alert(title, message string)
	Preview(img *matcher.Image)
	FingerQualities(qualities []scanner.FingerQuality)
	// ShowMatch reports a match result; entry is nil when nobody matched.
	ShowMatch(entry *records.Entry)
	// EnrollmentReady hands over a template awaiting enroll, update or export.
	EnrollmentReady(tpl *matcher.Template)
}

// NopPresenter discards everything. Embed it to implement a subset.
type NopPresenter struct{}

func (NopPresenter) StateChanged(State, Capabilities) {}
func (NopPresenter) Status(string) {}
func (NopPresenter) ActionState(string) {}
func (NopPresenter) DeviceInfo(string, int) {}
func (NopPresenter) CaptureTypes([]scanner.CaptureType) {}
func (NopPresenter) Notify(string) {}
func (NopPresenter) Alert(string, string) {}
func (NopPresenter) Preview(*matcher.Image) {}
func (NopPresenter) FingerQualities([]scanner.FingerQuality) {}
func (NopPresenter) ShowMatch(*records.Entry) {}
func (NopPresenter) EnrollmentReady(*matcher.Template) {}
