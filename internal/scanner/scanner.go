package scanner

import "scanmatch/internal/matcher"

// Manager enumerates scanners and opens them.
type Manager interface {
	DeviceCount() (int, error)
	Describe(index int) (Description, error)
	// OpenAsync starts opening the device at index. Progress and completion
	// are reported to l, which also receives the device's capture events.
	OpenAsync(index int, l Listener) error
}

// Device is an open scanner handle. Calls are blocking and safe to make from
// one goroutine at a time.
type Device interface {
	BeginCapture(t CaptureType, res Resolution, opts CaptureOption) error
	CancelCapture() error
	IsCaptureActive() (bool, error)
	ResultImage() (*matcher.Image, error)
	CaptureAvailable(t CaptureType, res Resolution) (bool, error)
	SetProperty(p Property, value string) error
	// Quality returns an NFIQ score, 1 (best) to 5 (worst).
	Quality(img *matcher.Image) (int, error)
	Close() error
}

// Listener receives manager and device events. Implementations must not
// block; callbacks arrive on backend goroutines.
type Listener interface {
	DeviceCountChanged(count int)
	OpenProgress(index, percent int)
	OpenComplete(index int, dev Device, err error)
	CommunicationBroken(dev Device)
	FingerCountChanged(dev Device, state FingerCountState)
	FingerQualityChanged(dev Device, qualities []FingerQuality)
	PlatenStateChanged(dev Device, state PlatenState)
	PreviewAvailable(dev Device, img *matcher.Image)
	ResultAvailable(dev Device, img *matcher.Image, t CaptureType)
	Warning(dev Device, err error)
}

// NopListener ignores every event. Embed it to implement a subset.
type NopListener struct{}

func (NopListener) DeviceCountChanged(int) {}
func (NopListener) OpenProgress(int, int) {}
func (NopListener) OpenComplete(int, Device, error) {}
func (NopListener) CommunicationBroken(Device) {}
func (NopListener) FingerCountChanged(Device, FingerCountState) {}
func (NopListener) FingerQualityChanged(Device, []FingerQuality) {}
func (NopListener) PlatenStateChanged(Device, PlatenState) {}
func (NopListener) PreviewAvailable(Device, *matcher.Image) {}
func (NopListener) ResultAvailable(Device, *matcher.Image, CaptureType) {}
func (NopListener) Warning(Device, error) {}
