// Package rheemerrors defines the error kinds a Rheem job can fail with.
//
// Kinds are markers over github.com/cockroachdb/errors rather than a
// competing error type: callers construct with errors.Mark and test with
// errors.Is, so the kinds compose with wrapping, stack traces and Sentry
// reporting the way the rest of the errors package does.
package rheemerrors

import "github.com/cockroachdb/errors"

// Sentinel markers for the error kinds from the job's perspective. Each is
// a distinct error value used only with errors.Mark/errors.Is; it is never
// returned directly.
var (
	// ConfigurationError: missing required key, unparsable expression,
	// unknown platform.
	ConfigurationError = errors.New("rheem: configuration error")

	// PlanSanityError: plan fails invariants after transformations.
	PlanSanityError = errors.New("rheem: plan sanity error")

	// NoViablePlan: enumeration produced zero implementations.
	NoViablePlan = errors.New("rheem: no viable plan")

	// BackendExecutionError: a backend raised during evaluate.
	BackendExecutionError = errors.New("rheem: backend execution error")

	// LogIOError: execution log open/append/read failure.
	LogIOError = errors.New("rheem: execution log I/O error")
)

// Mark wraps err and marks it with kind so that errors.Is(result, kind)
// holds. A nil err yields nil.
func Mark(kind error, err error) error {
	if err == nil {
		return nil
	}
	return errors.Mark(err, kind)
}

// Newf builds a new error marked with kind.
func Newf(kind error, format string, args ...interface{}) error {
	return errors.Mark(errors.Newf(format, args...), kind)
}

// Is reports whether err is (or wraps) an error marked with kind.
func Is(err error, kind error) bool {
	return errors.Is(err, kind)
}
