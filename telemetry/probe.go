package telemetry

import (
	"context"
	"fmt"
	"runtime/debug"

	"github.com/rs/zerolog/log"
)

type ProbeName string

const (
	ProbeIdentity    ProbeName = "identity"
	ProbeBattery     ProbeName = "battery"
	ProbeNetwork     ProbeName = "network"
	ProbeSystem      ProbeName = "system"
	ProbeStorage     ProbeName = "storage"
	ProbeLocation    ProbeName = "location"
	ProbePermissions ProbeName = "permissions"
)

// Probe reads one slice of device state. A failed probe returns a
// *ProbeError and never panics out of Probe.
type Probe[T any] interface {
	Name() ProbeName
	Probe(ctx context.Context) (T, error)
}

type probeFunc[T any] struct {
	name ProbeName
	fn   func(ctx context.Context) (T, error)
}

// NewProbe adapts fn into a Probe. Errors from fn are wrapped into a
// *ProbeError under name, and panics are recovered into one.
func NewProbe[T any](name ProbeName, fn func(ctx context.Context) (T, error)) Probe[T] {
	return &probeFunc[T]{name: name, fn: fn}
}

func (p *probeFunc[T]) Name() ProbeName {
	return p.name
}

func (p *probeFunc[T]) Probe(ctx context.Context) (result T, err error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Str("probe", string(p.name)).Bytes("stack", debug.Stack()).Msgf("probe panicked: %v", r)
			var zero T
			result = zero
			err = &ProbeError{Source: p.name, Message: fmt.Sprintf("panic: %v", r)}
		}
	}()

	result, err = p.fn(ctx)
	if err != nil {
		var zero T
		return zero, asProbeError(p.name, err)
	}
	return result, nil
}
