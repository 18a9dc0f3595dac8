// Package fprintd lists fingerprint readers registered with the system
// fprintd service over D-Bus. It is diagnostic only; captures go through the
// scanner backends.
package fprintd
