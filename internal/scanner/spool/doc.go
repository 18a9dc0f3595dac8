// Package spool implements a directory-backed fingerprint scanner.
//
// Each subdirectory of the spool root is one device, ordered by name. An
// optional device.toml sets the product name, serial number, device type and
// offered capture types. During a capture the device polls its incoming/
// directory; the first PNG or binary PGM file found becomes the result image
// and is moved to consumed/. Removing the device directory while a capture
// is running reports a communication break.
package spool
