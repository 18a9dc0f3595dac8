// Package main hosts the scanmatch CLI entrypoint and command graph.
//
// The Cobra command tree translates terminal invocations into IPC calls
// against the daemon: session transitions (refresh, open, close, start,
// stop), enrollment and export of the last action, and the message log.
// Record maintenance falls back to the enrollment database when the daemon
// is offline. Configuration resolution and socket discovery live in
// commandContext so subcommands only deal with presentation.
package main
