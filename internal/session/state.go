package session

import "fmt"

// State is a capture session lifecycle state.
type State int

const (
	StateNoScannerAttached State = iota
	StateScannerAttached
	StateRefresh
	StateInitializing
	StateInitialized
	StateClosing
	StateStartingCapture
	StateCapturing
	StateStoppingCapture
	StateImageCaptured
	StateCommunicationBreak
)

var stateNames = [...]string{
	StateNoScannerAttached:  "no_scanner_attached",
	StateScannerAttached:    "scanner_attached",
	StateRefresh:            "refresh",
	StateInitializing:       "initializing",
	StateInitialized:        "initialized",
	StateClosing:            "closing",
	StateStartingCapture:    "starting_capture",
	StateCapturing:          "capturing",
	StateStoppingCapture:    "stopping_capture",
	StateImageCaptured:      "image_captured",
	StateCommunicationBreak: "communication_break",
}

var stateStatus = [...]string{
	StateNoScannerAttached:  "no scanners",
	StateScannerAttached:    "uninitialized",
	StateRefresh:            "refreshing",
	StateInitializing:       "initializing",
	StateInitialized:        "initialized",
	StateClosing:            "closing",
	StateStartingCapture:    "starting",
	StateCapturing:          "capturing",
	StateStoppingCapture:    "stopping",
	StateImageCaptured:      "captured",
	StateCommunicationBreak: "comm break",
}

// States lists every state in declaration order.
func States() []State {
	out := make([]State, len(stateNames))
	for i := range stateNames {
		out[i] = State(i)
	}
	return out
}

func (s State) valid() bool {
	return s >= 0 && int(s) < len(stateNames)
}

func (s State) String() string {
	if s.valid() {
		return stateNames[s]
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// StatusText is the short status line shown for the state.
func (s State) StatusText() string {
	if s.valid() {
		return stateStatus[s]
	}
	return s.String()
}

// ParseState maps a state name back to a State.
func ParseState(name string) (State, bool) {
	for i, n := range stateNames {
		if n == name {
			return State(i), true
		}
	}
	return 0, false
}

// predecessors lists, for each state, the states it may be entered from.
var predecessors = map[State][]State{
	StateNoScannerAttached:  {StateRefresh},
	StateScannerAttached:    {StateRefresh},
	StateRefresh:            {StateNoScannerAttached, StateScannerAttached, StateClosing},
	StateInitializing:       {StateScannerAttached},
	StateInitialized:        {StateInitializing, StateStartingCapture, StateStoppingCapture, StateImageCaptured},
	StateClosing:            {StateInitializing, StateInitialized, StateCommunicationBreak},
	StateStartingCapture:    {StateInitialized, StateImageCaptured},
	StateCapturing:          {StateStartingCapture},
	StateStoppingCapture:    {StateCapturing, StateStoppingCapture},
	StateImageCaptured:      {StateCapturing},
	StateCommunicationBreak: {StateCapturing, StateStoppingCapture, StateInitialized},
}

// CanTransition reports whether to may be entered from from.
func CanTransition(from, to State) bool {
	for _, p := range predecessors[to] {
		if p == from {
			return true
		}
	}
	return false
}
