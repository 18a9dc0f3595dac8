// Package scanner defines the fingerprint scanner contract used by the
// capture session: a Manager that enumerates and opens devices, the Device
// handle, and the Listener that receives asynchronous events.
//
// Backends live in subpackages. spool implements the contract over a
// directory tree, hotplug watches USB uevents, and fprintd lists readers
// registered with the system fprintd service.
package scanner
