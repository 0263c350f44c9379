package telemetry

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/spance/devpulse/telemetry/definitions"
)

// Clock abstracts time so tests can pin CapturedAt.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// Aggregator turns one refresh request into one Snapshot. Location is best
// effort; the other six probes are all-or-nothing.
type Aggregator struct {
	probes Probes
	clock  Clock
	cycle  atomic.Uint64
}

func NewAggregator(probes Probes, clock Clock) *Aggregator {
	if clock == nil {
		clock = systemClock{}
	}
	return &Aggregator{probes: probes, clock: clock}
}

// Refresh runs one aggregation cycle. On failure the error is an
// *AggregateError and no snapshot is returned.
func (a *Aggregator) Refresh(ctx context.Context) (*definitions.Snapshot, error) {
	cycle := a.cycle.Add(1)
	start := time.Now()
	logger := log.With().Uint64("cycle", cycle).Logger()

	location, err := a.probes.Location.Probe(ctx)
	if err != nil {
		logger.Warn().Err(err).Msg("location unavailable, continuing without it")
		location = nil
	}

	var snapshot definitions.Snapshot
	g, gctx := errgroup.WithContext(ctx)
	collect(g, gctx, a.probes.Identity, &snapshot.Device)
	collect(g, gctx, a.probes.Battery, &snapshot.Battery)
	collect(g, gctx, a.probes.Network, &snapshot.Network)
	collect(g, gctx, a.probes.System, &snapshot.System)
	collect(g, gctx, a.probes.Storage, &snapshot.Storage)
	collect(g, gctx, a.probes.Permissions, &snapshot.Permissions)

	if err := g.Wait(); err != nil {
		aggErr := &AggregateError{Probe: asProbeError("", err)}
		logger.Error().Err(aggErr).Str("probe", string(aggErr.Probe.Source)).Msg("refresh failed")
		return nil, aggErr
	}

	snapshot.ID = uuid.NewString()
	snapshot.Cycle = cycle
	snapshot.Location = location
	snapshot.CapturedAt = a.clock.Now()

	logger.Debug().
		Str("snapshot", snapshot.ID).
		Bool("location", snapshot.HasLocation()).
		Dur("took", time.Since(start)).
		Msg("refresh completed")
	return &snapshot, nil
}

// Cycle returns the id of the most recently started cycle.
func (a *Aggregator) Cycle() uint64 {
	return a.cycle.Load()
}

// IsStale reports whether a newer cycle has started since cycle.
func (a *Aggregator) IsStale(cycle uint64) bool {
	return cycle < a.cycle.Load()
}

// collect runs probe in g and stores its result in dst. A nil result
// without an error counts as a failure.
func collect[T any](g *errgroup.Group, ctx context.Context, probe Probe[*T], dst **T) {
	g.Go(func() error {
		v, err := probe.Probe(ctx)
		if err != nil {
			return asProbeError(probe.Name(), err)
		}
		if v == nil {
			return &ProbeError{Source: probe.Name(), Message: "probe returned no result"}
		}
		*dst = v
		return nil
	})
}
