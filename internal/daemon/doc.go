// Package daemon coordinates the long-running scanmatch process.
//
// It wires configuration, the enrollment record store, the matcher service,
// the scanner backend and the USB hotplug monitor into one capture session
// with flock-based locking to prevent multiple instances. The daemon keeps
// the latest presenter output for status queries, holds the enrollment
// template awaiting a name, and exports artifacts of the last action.
//
// Keep orchestration logic here: the capture state machine lives in
// internal/session and device access in internal/scanner.
package daemon
