// Package errors wraps pkg/errors and adds the error codes the import
// pipeline and the HTTP layer classify failures by.
package errors

import (
	"github.com/pkg/errors"
)

// Code is an error code which can be used to check against a given error. For
// example, see the Is() method.
type Code string

const (
	ErrUncoded Code = "Uncoded"

	// ErrUpstreamUnavailable means the catalog source could not be reached or
	// answered with a non-success status.
	ErrUpstreamUnavailable Code = "UpstreamUnavailable"

	// ErrMalformedRecord means a single line could not be turned into a record.
	ErrMalformedRecord Code = "MalformedRecord"

	// ErrStoreUnavailable means a ledger or catalog operation failed.
	ErrStoreUnavailable Code = "StoreUnavailable"

	// ErrCorruptSource means a file body could not be decompressed at all.
	ErrCorruptSource Code = "CorruptSource"

	ErrNotFound        Code = "NotFound"
	ErrInvalidArgument Code = "InvalidArgument"
)

// New returns a coded error carrying a stack trace.
func New(code Code, message string) error {
	return errors.WithStack(codedError{
		Code:    code,
		Message: message,
	})
}

// Newf is New with a format string.
func Newf(code Code, format string, args ...interface{}) error {
	return New(code, errors.Errorf(format, args...).Error())
}

// WithCode classifies err under code. The original error stays reachable
// through Unwrap, so Is(err, target) and errors.Is checks on the cause both
// keep working.
func WithCode(err error, code Code, message string) error {
	if err == nil {
		return nil
	}
	return errors.WithStack(codedError{
		Code:    code,
		Message: message,
		cause:   err,
	})
}

func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

func Cause(err error) error {
	return errors.Cause(err)
}

func Errorf(format string, args ...interface{}) error {
	return errors.Errorf(format, args...)
}

// Is is a fork of the Is() method from `pkg/errors` which takes as its target
// an error Code instead of an error.
func Is(err error, target Code) bool {
	match := codedError{
		Code: target,
	}
	return errors.Is(err, match)
}

// IsErr reports whether any error in err's chain matches target.
func IsErr(err, target error) bool {
	return errors.Is(err, target)
}

// CodeOf returns the code of the outermost coded error in err's chain, or
// ErrUncoded when there is none.
func CodeOf(err error) Code {
	var ce codedError
	if errors.As(err, &ce) {
		return ce.Code
	}
	return ErrUncoded
}

func Unwrap(err error) error {
	return errors.Unwrap(err)
}

func WithMessage(err error, message string) error {
	return errors.WithMessage(err, message)
}

func WithMessagef(err error, format string, args ...interface{}) error {
	return errors.WithMessagef(err, format, args...)
}

func Wrap(err error, message string) error {
	return errors.Wrap(err, message)
}

func Wrapf(err error, fmt string, args ...interface{}) error {
	return errors.Wrapf(err, fmt, args...)
}

// codedError is the fundamental type used by this package to provide coded
// errors.
type codedError struct {
	Code    Code
	Message string
	cause   error
}

func (ce codedError) Error() string {
	if ce.cause != nil {
		return ce.Message + ": " + ce.cause.Error()
	}
	return ce.Message
}

func (ce codedError) Unwrap() error {
	return ce.cause
}

func (ce codedError) Is(err error) bool {
	if e, ok := err.(codedError); ok && ce.Code == e.Code {
		return true
	}
	return false
}
