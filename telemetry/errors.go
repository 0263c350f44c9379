package telemetry

import (
	"errors"
	"fmt"

	"github.com/spance/devpulse/telemetry/definitions"
)

var (
	ErrHubClosed           = errors.New("stream hub is closed")
	ErrUnknownStream       = errors.New("unknown stream kind")
	ErrUnsupportedPlatform = definitions.ErrUnsupportedPlatform
)

// ProbeError is the only error kind a probe returns. Source names the probe.
type ProbeError struct {
	Source  ProbeName
	Message string
	Err     error
}

func (e *ProbeError) Error() string {
	return fmt.Sprintf("%s probe: %s", e.Source, e.Message)
}

func (e *ProbeError) Unwrap() error {
	return e.Err
}

func newProbeError(source ProbeName, err error, format string, args ...any) *ProbeError {
	return &ProbeError{Source: source, Message: fmt.Sprintf(format, args...), Err: err}
}

// asProbeError returns err as a *ProbeError, wrapping it under source when it
// is not one already.
func asProbeError(source ProbeName, err error) *ProbeError {
	var probeErr *ProbeError
	if errors.As(err, &probeErr) {
		return probeErr
	}
	return &ProbeError{Source: source, Message: err.Error(), Err: err}
}

// AggregateError is returned by a refresh cycle that produced no snapshot.
// Probe is the first required probe that failed.
type AggregateError struct {
	Probe *ProbeError
}

func (e *AggregateError) Error() string {
	return "refresh failed: " + e.Probe.Error()
}

func (e *AggregateError) Unwrap() error {
	return e.Probe
}

type LocationReason string

const (
	LocationServiceDisabled         LocationReason = "service_disabled"
	LocationPermissionDenied        LocationReason = "permission_denied"
	LocationPermissionDeniedForever LocationReason = "permission_denied_forever"
	LocationTimeout                 LocationReason = "timeout"
	LocationOther                   LocationReason = "other"
)

// LocationUnavailable explains why the location probe produced no fix. It is
// carried as the Err of the location ProbeError.
type LocationUnavailable struct {
	Reason LocationReason
	Err    error
}

func (e *LocationUnavailable) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("location unavailable (%s): %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("location unavailable (%s)", e.Reason)
}

func (e *LocationUnavailable) Unwrap() error {
	return e.Err
}
