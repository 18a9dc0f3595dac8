// Package preflight provides readiness checks for the filesystem paths and
// matcher engine that scanmatch depends on.
package preflight
