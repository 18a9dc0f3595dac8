// Package matcher wraps a fingerprint template engine behind a serialized,
// context-aware service.
//
// Engines speak in result codes. Service validates arguments up front
// (ErrInvalidArgument), admits one engine call at a time and converts codes
// into *Error values from the closed Code set, so callers can branch with
// errors.Is(err, matcher.ErrExtractionFailed). Unknown codes collapse to
// CommandFailed and are logged.
//
// Image and Template carry acquisition metadata and encode to the IBSM
// container formats used for storage and export. DigestEngine is the
// bundled engine; it recognises only identical captures.
package matcher
