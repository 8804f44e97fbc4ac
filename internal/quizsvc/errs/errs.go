package errs

import (
	"errors"
	"fmt"
)

// The four failure classes callers are expected to branch on. A store
// outage must never read as "answer was wrong" or "did not win", so every
// store error is wrapped with one of these sentinels.
var (
	ErrValidation     = errors.New("validation error")
	ErrConflict       = errors.New("conflict")
	ErrTransientStore = errors.New("transient store error")
	ErrFatalConfig    = errors.New("fatal config error")
)

func Validationf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: "+format, append([]interface{}{ErrValidation}, args...)...)
}

func Conflictf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: "+format, append([]interface{}{ErrConflict}, args...)...)
}

func Transientf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: "+format, append([]interface{}{ErrTransientStore}, args...)...)
}

func FatalConfigf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: "+format, append([]interface{}{ErrFatalConfig}, args...)...)
}

func IsValidation(err error) bool { return errors.Is(err, ErrValidation) }
func IsConflict(err error) bool   { return errors.Is(err, ErrConflict) }

// IsRetryable reports whether the caller should retry the whole
// read-decide-write cycle. Conflicts are retryable as a cycle, transient
// store failures as the same operation.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrTransientStore) || errors.Is(err, ErrConflict)
}
