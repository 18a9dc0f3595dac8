// Package ipc exposes the daemon over JSON-RPC Unix sockets and ships the
// matching client used by the CLI.
//
// It owns socket lifecycle management, request/response DTOs, and conversions
// between daemon and record models and their wire representations. Session
// errors travel as RPC error strings, so clients match on the sentinel text
// (for example records.ErrAlreadyEnrolled) rather than with errors.Is.
package ipc
