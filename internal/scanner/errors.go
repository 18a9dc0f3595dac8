package scanner

import "errors"

var (
	// ErrNotOpen reports a call on a closed device handle.
	ErrNotOpen = errors.New("scanner device not open")
	// ErrCaptureActive reports BeginCapture while a capture is running.
	ErrCaptureActive = errors.New("capture already active")
	// ErrCommunicationBreak reports that the device went away mid-operation.
	ErrCommunicationBreak = errors.New("scanner communication break")
	// ErrNoDevice reports an index with no attached scanner.
	ErrNoDevice = errors.New("no scanner at index")
	// ErrNotSupported reports an unsupported capture type, resolution or property.
	ErrNotSupported = errors.New("not supported by scanner")
	// ErrNoImage reports a result request before any capture completed.
	ErrNoImage = errors.New("no result image available")
)
