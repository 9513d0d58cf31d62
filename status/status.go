// Package status carries the result taxonomy shared by every layer of the
// engine. A nil error means Ok; any other outcome is a *Status with one of a
// closed set of codes. NotFound is the only code that is part of the normal
// read API; the rest are genuine failures.
package status

import (
	"errors"
	"fmt"
)

// Code identifies the kind of a non-ok Status.
type Code int32

const (
	CodeOk Code = iota
	CodeNotFound
	CodeCorruption
	CodeNotSupported
	CodeInvalidArgument
	CodeIOError
	// CodeUnknown round-trips codes this version does not recognize.
	CodeUnknown
)

func (c Code) String() string {
	switch c {
	case CodeOk:
		return "OK"
	case CodeNotFound:
		return "NotFound"
	case CodeCorruption:
		return "Corruption"
	case CodeNotSupported:
		return "NotSupported"
	case CodeInvalidArgument:
		return "InvalidArgument"
	case CodeIOError:
		return "IOError"
	}
	return "Unknown"
}

// Status is an error with a code and a human message.
type Status struct {
	code Code
	msg  string
}

func (s *Status) Error() string {
	return fmt.Sprintf("%s: %s", s.code, s.msg)
}

// Code reports the kind of this status.
func (s *Status) Code() Code { return s.code }

// Is makes errors.Is match any status with the same code.
func (s *Status) Is(target error) bool {
	var other *Status
	if errors.As(target, &other) {
		return s.code == other.code
	}
	return false
}

func newStatus(code Code, msg string) *Status {
	return &Status{code: code, msg: msg}
}

// NotFound reports a missing key; part of the normal read API.
func NotFound(msg string) *Status { return newStatus(CodeNotFound, msg) }

// Corruption reports invalid or damaged stored data.
func Corruption(msg string) *Status { return newStatus(CodeCorruption, msg) }

// NotSupported reports an operation or format this version does not handle.
func NotSupported(msg string) *Status { return newStatus(CodeNotSupported, msg) }

// InvalidArgument reports a caller error.
func InvalidArgument(msg string) *Status { return newStatus(CodeInvalidArgument, msg) }

// IOError reports a filesystem failure. err may be nil.
func IOError(msg string, err error) *Status {
	if err != nil {
		msg = fmt.Sprintf("%s: %v", msg, err)
	}
	return newStatus(CodeIOError, msg)
}

// FromCode reconstructs a status from a serialized code, mapping codes this
// version does not recognize to Unknown.
func FromCode(code Code, msg string) *Status {
	switch code {
	case CodeNotFound, CodeCorruption, CodeNotSupported, CodeInvalidArgument, CodeIOError:
		return newStatus(code, msg)
	}
	return newStatus(CodeUnknown, msg)
}

// Render formats err the way the engine reports results: "OK" for nil,
// "<Kind>: <message>" otherwise.
func Render(err error) string {
	if err == nil {
		return "OK"
	}
	return err.Error()
}

func is(err error, code Code) bool {
	var s *Status
	return errors.As(err, &s) && s.code == code
}

// IsNotFound reports whether err is a NotFound status.
func IsNotFound(err error) bool { return is(err, CodeNotFound) }

// IsCorruption reports whether err is a Corruption status.
func IsCorruption(err error) bool { return is(err, CodeCorruption) }

// IsNotSupported reports whether err is a NotSupported status.
func IsNotSupported(err error) bool { return is(err, CodeNotSupported) }

// IsInvalidArgument reports whether err is an InvalidArgument status.
func IsInvalidArgument(err error) bool { return is(err, CodeInvalidArgument) }

// IsIOError reports whether err is an IOError status.
func IsIOError(err error) bool { return is(err, CodeIOError) }
