package session

// Capabilities lists the user operations a state allows.
type Capabilities struct {
	Stop        bool `json:"stop"`
	Start       bool `json:"start"`
	Refresh     bool `json:"refresh"`
	CaptureType bool `json:"capture_type"`
	Open        bool `json:"open"`
	Close       bool `json:"close"`
	Action      bool `json:"action"`
	ViewDB      bool `json:"view_db"`
}

var capabilityTable = map[State]Capabilities{
	StateNoScannerAttached: {Refresh: true, ViewDB: true},
	StateScannerAttached:   {Refresh: true, Open: true, ViewDB: true},
	StateInitialized:       {Start: true, CaptureType: true, Close: true, Action: true, ViewDB: true},
	StateCapturing:         {Stop: true},
}

// CapabilitiesFor returns the operations allowed in s. States missing from
// the table allow nothing.
func CapabilitiesFor(s State) Capabilities {
	return capabilityTable[s]
}
