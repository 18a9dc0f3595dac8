package matcher

import (
	"errors"
	"fmt"
)

// Code is a result code reported by a matcher engine. Zero means success.
type Code int32

const (
	InvalidParamValue       Code = -1
	MemAlloc                Code = -2
	NotSupported            Code = -3
	FileOpen                Code = -4
	FileRead                Code = -5
	ResourceLocked          Code = -6
	MissingResource         Code = -7
	InvalidAccessPointer    Code = -8
	ThreadCreate            Code = -9
	CommandFailed           Code = -10
	FileSave                Code = -11
	OpenMatcherFailed       Code = -600
	CloseMatcherFailed      Code = -601
	NoMatcherInstance       Code = -602
	InvalidHandle           Code = -603
	ExtractionFailed        Code = -604
	EnrollmentFailed        Code = -605
	MatchingFailed          Code = -606
	CompressionFailed       Code = -607
	DecompressionFailed     Code = -608
	ConvertFailed           Code = -609
	ThereIsNoData           Code = -610
	NotSupportedFunction    Code = -611
	NotSupportedImageFormat Code = -612
	NotSupportedDeviceType  Code = -613
	IncorrectISOFile        Code = -700
)

var codeNames = map[Code]string{
	InvalidParamValue:       "invalid parameter value",
	MemAlloc:                "memory allocation failed",
	NotSupported:            "not supported",
	FileOpen:                "file open failed",
	FileRead:                "file read failed",
	ResourceLocked:          "resource locked",
	MissingResource:         "missing resource",
	InvalidAccessPointer:    "invalid access pointer",
	ThreadCreate:            "thread creation failed",
	CommandFailed:           "command failed",
	FileSave:                "file save failed",
	OpenMatcherFailed:       "open matcher failed",
	CloseMatcherFailed:      "close matcher failed",
	NoMatcherInstance:       "no matcher instance",
	InvalidHandle:           "invalid handle",
	ExtractionFailed:        "extraction failed",
	EnrollmentFailed:        "enrollment failed",
	MatchingFailed:          "matching failed",
	CompressionFailed:       "compression failed",
	DecompressionFailed:     "decompression failed",
	ConvertFailed:           "convert failed",
	ThereIsNoData:           "there is no data",
	NotSupportedFunction:    "function not supported",
	NotSupportedImageFormat: "image format not supported",
	NotSupportedDeviceType:  "device type not supported",
	IncorrectISOFile:        "incorrect ISO file",
}

// Known reports whether c belongs to the closed set of matcher codes.
func (c Code) Known() bool {
	_, ok := codeNames[c]
	return ok
}

func (c Code) String() string {
	if name, ok := codeNames[c]; ok {
		return name
	}
	return fmt.Sprintf("code %d", int32(c))
}

// Error is an operational failure reported by the matcher engine.
type Error struct {
	Code Code
}

func (e *Error) Error() string {
	return fmt.Sprintf("matcher: %s (%d)", e.Code, int32(e.Code))
}

// Is matches any *Error carrying the same code, so callers can write
// errors.Is(err, matcher.ErrExtractionFailed).
func (e *Error) Is(target error) bool {
	var other *Error
	if !errors.As(target, &other) {
		return false
	}
	return other.Code == e.Code
}

// ErrorKind classifies the failure for status output.
func (e *Error) ErrorKind() string {
	switch e.Code {
	case InvalidParamValue:
		return "validation"
	case NotSupported, NotSupportedFunction, NotSupportedImageFormat, NotSupportedDeviceType:
		return "not_supported"
	default:
		return "native"
	}
}

// FromCode maps an engine result to an error. Zero yields nil and a code
// outside the known set collapses to CommandFailed.
func FromCode(code Code) error {
	if code == 0 {
		return nil
	}
	if !code.Known() {
		code = CommandFailed
	}
	return &Error{Code: code}
}

// ErrInvalidArgument reports a missing or malformed argument detected before
// the engine is called. It signals programmer misuse and is never retried.
var ErrInvalidArgument = errors.New("matcher: invalid argument")

var (
	ErrCommandFailed           = &Error{Code: CommandFailed}
	ErrNoMatcherInstance       = &Error{Code: NoMatcherInstance}
	ErrExtractionFailed        = &Error{Code: ExtractionFailed}
	ErrEnrollmentFailed        = &Error{Code: EnrollmentFailed}
	ErrMatchingFailed          = &Error{Code: MatchingFailed}
	ErrNotSupportedFunction    = &Error{Code: NotSupportedFunction}
	ErrNotSupportedImageFormat = &Error{Code: NotSupportedImageFormat}
	ErrInvalidParamValue       = &Error{Code: InvalidParamValue}
)

func invalidArgument(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidArgument, fmt.Sprintf(format, args...))
}
