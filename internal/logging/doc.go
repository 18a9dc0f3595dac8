// Package logging assembles structured slog loggers and formatting helpers used
// across scanmatch.
//
// It owns the configurable console/JSON handlers, centralizes level and output
// plumbing, and exposes context-aware helpers so session code can tag log lines
// with capture action IDs and request correlation IDs. StreamHub keeps the
// recent user-facing messages the daemon serves to `scanmatch messages`. The
// package also provides a no-op logger for tests and wiring code that cannot
// fail.
package logging
