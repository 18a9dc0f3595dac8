package ipc

import (
	"time"

	"scanmatch/internal/logging"
)

// StatusRequest fetches daemon status.
type StatusRequest struct{}

// MatchResult describes the outcome of the last match action.
type MatchResult struct {
	Matched     bool      `json:"matched"`
	Name        string    `json:"name,omitempty"`
	Description string    `json:"description,omitempty"`
	Score       int       `json:"score,omitempty"`
	At          time.Time `json:"at"`
}

// ActionSummary describes the last completed action.
type ActionSummary struct {
	ActionID  string `json:"action_id"`
	Kind      string `json:"kind"`
	Finished  bool   `json:"finished"`
	Images    int    `json:"images"`
	Templates int    `json:"templates"`
	Quality   int    `json:"quality,omitempty"`
}

// Capabilities lists the session operations the current state allows.
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

// StatusResponse represents combined daemon and session status.
type StatusResponse struct {
	Running           bool           `json:"running"`
	PID               int            `json:"pid"`
	State             string         `json:"state"`
	Capabilities      Capabilities   `json:"capabilities"`
	StatusText        string         `json:"status_text"`
	ActionText        string         `json:"action_text"`
	Device            string         `json:"device"`
	DeviceCount       int            `json:"device_count"`
	DeviceOpen        bool           `json:"device_open"`
	CaptureType       string         `json:"capture_type"`
	CaptureTypes      []string       `json:"capture_types"`
	Qualities         []string       `json:"qualities"`
	Preview           string         `json:"preview"`
	Action            string         `json:"action"`
	ActionID          string         `json:"action_id"`
	ImagesCaptured    int            `json:"images_captured"`
	ImagesRequired    int            `json:"images_required"`
	PendingEnrollment bool           `json:"pending_enrollment"`
	LastMatch         *MatchResult   `json:"last_match"`
	LastAction        *ActionSummary `json:"last_action"`
	MatchingLevel     int            `json:"matching_level"`
	Engine            string         `json:"engine"`
	Enrolled          int            `json:"enrolled"`
	DatabaseBytes     int64          `json:"database_bytes"`
	DatabasePath      string         `json:"database_path"`
	LockPath          string         `json:"lock_path"`
	ExportDir         string         `json:"export_dir"`
}

// SessionRequest drives a session transition with no arguments
// (refresh, open, close, stop).
type SessionRequest struct{}

// SessionResponse reports the session state after the request.
type SessionResponse struct {
	State string `json:"state"`
}

// StartRequest starts a capture action.
type StartRequest struct {
	Action string `json:"action"`
}

// StartResponse identifies the started action.
type StartResponse struct {
	ActionID string `json:"action_id"`
	State    string `json:"state"`
}

// CaptureTypeRequest selects the capture type.
type CaptureTypeRequest struct {
	Type string `json:"type"`
}

// Record is an enrolled user on the wire.
type Record struct {
	ID              int64     `json:"id"`
	Name            string    `json:"name"`
	Description     string    `json:"description"`
	CreatedAt       time.Time `json:"created_at"`
	ModifiedAt      time.Time `json:"modified_at"`
	Finger          int       `json:"finger"`
	Width           int       `json:"width"`
	Height          int       `json:"height"`
	TemplateBytes   int       `json:"template_bytes"`
	TemplateVersion int       `json:"template_version"`
}

// EnrollRequest stores the pending enrollment template.
type EnrollRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Update      bool   `json:"update"`
}

// EnrollResponse returns the stored record.
type EnrollResponse struct {
	Record Record `json:"record"`
}

// ExportRequest writes an artifact of the last action.
type ExportRequest struct {
	Format string `json:"format"`
	Name   string `json:"name"`
}

// ExportResponse reports where the export was written.
type ExportResponse struct {
	Path string `json:"path"`
}

// RecordsRequest lists enrolled users. A non-empty Name fetches one.
type RecordsRequest struct {
	Name string `json:"name"`
}

// RecordsResponse contains enrolled users and database size.
type RecordsResponse struct {
	Records       []Record `json:"records"`
	DatabaseBytes int64    `json:"database_bytes"`
}

// RemoveRecordRequest removes one user.
type RemoveRecordRequest struct {
	Name string `json:"name"`
}

// RemoveRecordResponse confirms removal.
type RemoveRecordResponse struct {
	Removed bool `json:"removed"`
}

// ClearRecordsRequest removes every user.
type ClearRecordsRequest struct{}

// ClearRecordsResponse reports number of removed users.
type ClearRecordsResponse struct {
	Removed int64 `json:"removed"`
}

// MatchingLevelRequest sets the matching level. Zero only reads it.
type MatchingLevelRequest struct {
	Level int `json:"level"`
}

// MatchingLevelResponse reports the matching level in effect.
type MatchingLevelResponse struct {
	Level int `json:"level"`
}

// MessagesRequest fetches message log events after Since.
type MessagesRequest struct {
	Since      uint64 `json:"since"`
	Limit      int    `json:"limit"`
	WaitMillis int    `json:"wait_millis"`
}

// MessagesResponse returns events and the sequence to resume from.
type MessagesResponse struct {
	Events []logging.LogEvent `json:"events"`
	Next   uint64             `json:"next"`
}
