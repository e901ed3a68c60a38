package amqp

import (
	"fmt"

	"github.com/pkg/errors"
)

// ReplyCode is an AMQP 0-9-1 reply code (spec.md §6). Soft codes close a
// single channel; hard codes close the whole connection (spec.md §7).
type ReplyCode uint16

// Reply codes from spec.md §6.
const (
	ReplyContentTooLarge  ReplyCode = 311
	ReplyNoConsumers      ReplyCode = 313
	ReplyAccessRefused    ReplyCode = 403
	ReplyNotFound         ReplyCode = 404
	ReplyResourceLocked   ReplyCode = 405
	ReplyPreconditionFail ReplyCode = 406

	ReplyConnectionForced ReplyCode = 320
	ReplyInvalidPath      ReplyCode = 402
	ReplyFrameError       ReplyCode = 501
	ReplySyntaxError      ReplyCode = 502
	ReplyCommandInvalid   ReplyCode = 503
	ReplyChannelError     ReplyCode = 504
	ReplyUnexpectedFrame  ReplyCode = 505
	ReplyResourceError    ReplyCode = 506
	ReplyNotAllowed       ReplyCode = 530
	ReplyNotImplemented   ReplyCode = 540
	ReplyInternalError    ReplyCode = 541

	// replyTransportLost is a synthetic local code (not on the wire) for
	// the "connection aborted" condition of spec.md §7.
	replyTransportLost ReplyCode = 0
)

// hardCodes is the set of reply codes that close the whole connection
// (spec.md §7).
var hardCodes = map[ReplyCode]bool{
	ReplyConnectionForced: true,
	ReplyInvalidPath:      true,
	ReplyFrameError:       true,
	ReplySyntaxError:      true,
	ReplyCommandInvalid:   true,
	ReplyChannelError:     true,
	ReplyUnexpectedFrame:  true,
	ReplyResourceError:    true,
	ReplyNotAllowed:       true,
	ReplyNotImplemented:   true,
	ReplyInternalError:    true,
}

// IsHard reports whether code closes the entire connection rather than
// just the channel it arrived on.
func (c ReplyCode) IsHard() bool { return hardCodes[c] }

// Error is the error type surfaced for both soft (channel-scoped) and
// hard (connection-scoped) AMQP exceptions, mirroring the shape of
// Azure-go-amqp's Error/ErrCond but retargeted at 0-9-1 reply codes.
type Error struct {
	Code     ReplyCode
	Text     string
	ClassID  uint16
	MethodID uint16
}

func (e *Error) Error() string {
	if e.ClassID == 0 && e.MethodID == 0 {
		return fmt.Sprintf("amqp: %d %s", e.Code, e.Text)
	}
	return fmt.Sprintf("amqp: %d %s (class=%d method=%d)", e.Code, e.Text, e.ClassID, e.MethodID)
}

// ConnectionError is surfaced to every pending operation on every channel
// when the connection closes, mirroring Azure-go-amqp's ConnectionError.
type ConnectionError struct {
	Reason *Error
}

func (e *ConnectionError) Error() string {
	if e.Reason == nil {
		return "amqp: connection closed"
	}
	return "amqp: connection closed: " + e.Reason.Error()
}

func (e *ConnectionError) Unwrap() error { return e.Reason }

// ChannelError is surfaced to a pending operation when its channel
// closes (either gracefully or due to a soft protocol error).
type ChannelError struct {
	Reason *Error
}

func (e *ChannelError) Error() string {
	if e.Reason == nil {
		return "amqp: channel closed"
	}
	return "amqp: channel closed: " + e.Reason.Error()
}

func (e *ChannelError) Unwrap() error { return e.Reason }

// ErrTransportLost is returned to every pending operation when the host
// signals connection loss (spec.md §7's "generic connection aborted
// error tagged with code 0").
var ErrTransportLost = &Error{Code: replyTransportLost, Text: "connection aborted"}

// newErr and newErrf construct a validation error using pkg/errors,
// matching the rest of the corpus's error-construction idiom
// (Azure-go-amqp's go.mod depends on pkg/errors; the rest of the example
// pack layers causes onto sentinel errors the same way). pkg/errors.Wrap
// and Wrapf both return nil when given a nil cause, so these sites never
// go through Wrap/Wrapf — there is no cause to annotate, only a fresh
// failure to report.
func newErr(msg string) error {
	return errors.New(msg)
}

func newErrf(format string, args ...interface{}) error {
	return errors.Errorf(format, args...)
}
