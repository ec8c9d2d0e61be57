package sourcemap

import (
	"errors"
	"fmt"
)

// Code identifies the class of a source map fault.
type Code string

// Error codes.
const (
	// CodeInvalidEncoding is a malformed VLQ run (bad character, truncated value, overflow).
	CodeInvalidEncoding Code = "INVALID_ENCODING"
	// CodeMalformedMapping is a structurally invalid segment or map.
	CodeMalformedMapping Code = "MALFORMED_MAPPING"
	// CodeMissingSource is an original position or name given without a source.
	CodeMissingSource Code = "MISSING_SOURCE"
	// CodeIndexOutOfRange is a reference to a nonexistent source, name or position.
	CodeIndexOutOfRange Code = "INDEX_OUT_OF_RANGE"
)

// Sentinels for errors.Is. Any *Error with the same code matches.
var (
	ErrInvalidEncoding  = &Error{Code: CodeInvalidEncoding, Offset: -1}
	ErrMalformedMapping = &Error{Code: CodeMalformedMapping, Offset: -1}
	ErrMissingSource    = &Error{Code: CodeMissingSource, Offset: -1}
	ErrIndexOutOfRange  = &Error{Code: CodeIndexOutOfRange, Offset: -1}
)

// Error is a source map fault.
type Error struct {
	Code    Code   // Machine-readable error code
	Message string // Human-readable message
	Offset  int    // Byte offset into the mappings string, -1 if not applicable
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = string(e.Code)
	}
	if e.Offset >= 0 {
		return fmt.Sprintf("%s at offset %d", msg, e.Offset)
	}
	return msg
}

// Is reports whether target is an *Error with the same code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

// NewError returns an *Error without a mappings offset.
func NewError(code Code, format string, args ...any) *Error {
	return newError(code, -1, format, args...)
}

func newError(code Code, offset int, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Offset:  offset,
	}
}

// CodeOf extracts the error code from err, or "" if err is not an *Error.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// OffsetOf returns the mappings offset recorded in err, or -1.
func OffsetOf(err error) int {
	var e *Error
	if errors.As(err, &e) {
		return e.Offset
	}
	return -1
}
