package manager

import "errors"

// modelNotFoundError reports an unknown (or not yet ready) model name.
type modelNotFoundError struct{ name string }

func (e modelNotFoundError) Error() string { return "model not found: " + e.name }

// ErrModelNotFound returns an error when a requested model is not in the registry.
func ErrModelNotFound(name string) error { return modelNotFoundError{name: name} }

// IsModelNotFound reports whether the error indicates a missing model (404).
func IsModelNotFound(err error) bool {
	var e modelNotFoundError
	return errors.As(err, &e)
}

// alreadyExistsError is returned when registering a name that is ready or
// still registering.
type alreadyExistsError struct{ name string }

func (e alreadyExistsError) Error() string { return "model already registered: " + e.name }

// ErrAlreadyExists reports a duplicate registration of name.
func ErrAlreadyExists(name string) error { return alreadyExistsError{name: name} }

// IsAlreadyExists reports whether err is a duplicate registration (409).
func IsAlreadyExists(err error) bool {
	var e alreadyExistsError
	return errors.As(err, &e)
}

// drainingError rejects new work for a model that is being unloaded.
type drainingError struct{ name string }

func (e drainingError) Error() string { return "model is draining: " + e.name }

// ErrDraining reports that name no longer accepts new work.
func ErrDraining(name string) error { return drainingError{name: name} }

// IsDraining reports whether err indicates a draining model (409).
func IsDraining(err error) bool {
	var e drainingError
	return errors.As(err, &e)
}

// tooBusyError signals the model is at capacity, either immediately or after
// the bounded wait elapsed (429).
type tooBusyError struct{ name string }

func (e tooBusyError) Error() string { return "model is at capacity, retry later: " + e.name }

// ErrTooBusy reports that name has no free slot.
func ErrTooBusy(name string) error { return tooBusyError{name: name} }

// IsTooBusy reports whether err indicates backpressure (return 429).
func IsTooBusy(err error) bool {
	var e tooBusyError
	return errors.As(err, &e)
}

// backendUnreachableError is returned by Register when the probe fails.
type backendUnreachableError struct {
	name string
	err  error
}

func (e backendUnreachableError) Error() string {
	return "backend unreachable for " + e.name + ": " + e.err.Error()
}

func (e backendUnreachableError) Unwrap() error { return e.err }

// ErrBackendUnreachable wraps a failed probe of name's backend.
func ErrBackendUnreachable(name string, err error) error {
	return backendUnreachableError{name: name, err: err}
}

// IsBackendUnreachable reports whether registration failed its probe (502).
func IsBackendUnreachable(err error) bool {
	var e backendUnreachableError
	return errors.As(err, &e)
}

// backendFailureError is a backend failure surfaced to a non-streamed caller.
type backendFailureError struct{ msg string }

func (e backendFailureError) Error() string { return "backend error: " + e.msg }

// ErrBackendFailure reports a backend failure described by msg.
func ErrBackendFailure(msg string) error { return backendFailureError{msg: msg} }

// IsBackendFailure reports whether a generation failed on the backend side (502).
func IsBackendFailure(err error) bool {
	var e backendFailureError
	return errors.As(err, &e)
}

// safetyError is a prompt rejected by the denylist.
type safetyError struct{ term string }

func (e safetyError) Error() string { return "prompt rejected by safety denylist: " + e.term }

// ErrSafetyDenied reports a prompt that matched term.
func ErrSafetyDenied(term string) error { return safetyError{term: term} }

// IsSafetyDenied reports whether err is a safety rejection (403) and returns
// the matched term.
func IsSafetyDenied(err error) (string, bool) {
	var e safetyError
	if errors.As(err, &e) {
		return e.term, true
	}
	return "", false
}

// invalidError marks a malformed model spec or request (400).
type invalidError struct{ msg string }

func (e invalidError) Error() string { return e.msg }

// ErrInvalid constructs an invalidError.
func ErrInvalid(msg string) error { return invalidError{msg: msg} }

// IsInvalid reports whether err is a validation failure.
func IsInvalid(err error) bool {
	var e invalidError
	return errors.As(err, &e)
}
