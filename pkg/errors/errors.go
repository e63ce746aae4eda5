package errors

import (
	"errors"
	"fmt"
)

var (
	ErrConfiguration    = errors.New("configuration error")
	ErrIO               = errors.New("i/o failure")
	ErrCorruptIndex     = errors.New("corrupt index")
	ErrNotReady         = errors.New("query engine not ready")
	ErrMalformedPosting = errors.New("malformed posting list")
)

// Process exit statuses returned by ExitCode.
const (
	ExitOK          = 0
	ExitFailure     = 1
	ExitMisconfig   = 2
	ExitCorruptData = 3
)

type AppError struct {
	Err      error
	Message  string
	ExitCode int
}

func (e *AppError) Error() string {
	return fmt.Sprintf("%s: %s", e.Err.Error(), e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func New(sentinel error, exitCode int, message string) *AppError {
	return &AppError{
		Err:      sentinel,
		Message:  message,
		ExitCode: exitCode,
	}
}

func Newf(sentinel error, exitCode int, format string, args ...any) *AppError {
	return &AppError{
		Err:      sentinel,
		Message:  fmt.Sprintf(format, args...),
		ExitCode: exitCode,
	}
}

// Config is shorthand for a configuration failure detected before any work
// has started.
func Config(format string, args ...any) *AppError {
	return Newf(ErrConfiguration, ExitMisconfig, format, args...)
}

// IO wraps a filesystem failure on one of the index artifacts.
func IO(op string, path string, err error) error {
	return fmt.Errorf("%w: %s %s: %w", ErrIO, op, path, err)
}

func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.ExitCode
	}

	switch {
	case errors.Is(err, ErrConfiguration):
		return ExitMisconfig
	case errors.Is(err, ErrCorruptIndex), errors.Is(err, ErrMalformedPosting):
		return ExitCorruptData
	default:
		return ExitFailure
	}

}

// Is and As re-export the standard helpers so callers importing this package
// under an alias do not also need the standard errors package.
func Is(err, target error) bool { return errors.Is(err, target) }

func As(err error, target any) bool { return errors.As(err, target) }
