// Package errors wraps go-errors and pkg/errors so every error created in the
// node carries a stack trace while still working with errors.Is/As.
package errors

import (
	"fmt"

	goerrors "github.com/go-errors/errors"
	pkgerrors "github.com/pkg/errors"
)

// New returns an error with the supplied message and the caller's stack.
func New(msg string) error {
	return goerrors.Wrap(msg, 1)
}

// Errorf formats according to a format specifier. %w is honoured.
func Errorf(format string, args ...interface{}) error {
	return goerrors.Wrap(fmt.Errorf(format, args...), 1)
}

// Wrap annotates err with msg. It returns nil if err is nil.
func Wrap(err error, msg string) error {
	return pkgerrors.Wrap(err, msg)
}

// Wrapf annotates err with a formatted message. It returns nil if err is nil.
func Wrapf(err error, format string, args ...interface{}) error {
	return pkgerrors.Wrapf(err, format, args...)
}

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool {
	return pkgerrors.Is(err, target)
}

// As finds the first error in err's chain that matches target.
func As(err error, target interface{}) bool {
	return pkgerrors.As(err, target)
}

// Unwrap returns the result of calling the Unwrap method on err.
func Unwrap(err error) error {
	return pkgerrors.Unwrap(err)
}

// Cause returns the underlying cause of the error, if possible.
func Cause(err error) error {
	return pkgerrors.Cause(err)
}

// ErrorStack returns the error message followed by the stack trace captured
// where the error was created. Errors without a captured stack get one from here.
func ErrorStack(err error) string {
	if err == nil {
		return ""
	}
	var ge *goerrors.Error
	if As(err, &ge) {
		return err.Error() + "\n" + string(ge.Stack())
	}
	return goerrors.Wrap(err, 1).ErrorStack()
}

// Recover catches a panic in the calling goroutine and hands it to onPanic as an error.
// It must be called directly via defer.
func Recover(onPanic func(err error)) {
	if r := recover(); r != nil {
		onPanic(goerrors.Wrap(r, 2))
	}
}
