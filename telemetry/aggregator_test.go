package telemetry

import (
	"context"
	"errors"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spance/devpulse/telemetry/definitions"
)

var capturedAt = time.Date(2026, 10, 18, 9, 30, 0, 0, time.UTC)

func newTestAggregator(p *fakePlatform) *Aggregator {
	cfg := definitions.SessionConfig{LocationTimeout: 50 * time.Millisecond}
	return NewAggregator(NewProbes(p, cfg), fixedClock{now: capturedAt})
}

func TestRefreshPopulatesEverySection(t *testing.T) {
	agg := newTestAggregator(newFakePlatform())

	snapshot, err := agg.Refresh(context.Background())
	require.NoError(t, err)
	require.NoError(t, snapshot.Validate())

	assert.NotEmpty(t, snapshot.ID)
	assert.Equal(t, uint64(1), snapshot.Cycle)
	assert.Equal(t, capturedAt, snapshot.CapturedAt)
	require.True(t, snapshot.HasLocation())
	assert.InDelta(t, 48.8566, snapshot.Location.Latitude, 1e-9)
}

func TestRefreshBatteryAndRAMUsage(t *testing.T) {
	agg := newTestAggregator(newFakePlatform())

	snapshot, err := agg.Refresh(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 85, snapshot.Battery.Level)
	assert.Equal(t, definitions.BatteryDischarging, snapshot.Battery.State)
	assert.InDelta(t, 50.0, snapshot.System.RAMUsagePercentage(), 1e-9)
}

func TestRefreshWithoutLocationService(t *testing.T) {
	p := newFakePlatform()
	p.locationEnabled = false
	agg := newTestAggregator(p)

	snapshot, err := agg.Refresh(context.Background())
	require.NoError(t, err)

	assert.Nil(t, snapshot.Location)
	assert.NotNil(t, snapshot.Device)
	assert.NotNil(t, snapshot.Battery)
	assert.NotNil(t, snapshot.Network)
	assert.NotNil(t, snapshot.System)
	assert.NotNil(t, snapshot.Storage)
	assert.NotNil(t, snapshot.Permissions)
}

func TestRefreshLocationTimeoutStillSucceeds(t *testing.T) {
	p := newFakePlatform()
	p.positionBlocks = true
	agg := newTestAggregator(p)

	snapshot, err := agg.Refresh(context.Background())
	require.NoError(t, err)
	assert.False(t, snapshot.HasLocation())
}

func TestRefreshFailsWhenNetworkFails(t *testing.T) {
	p := newFakePlatform()
	p.networkErr = errors.New("connectivity service died")
	agg := newTestAggregator(p)

	snapshot, err := agg.Refresh(context.Background())
	assert.Nil(t, snapshot)

	var aggErr *AggregateError
	require.ErrorAs(t, err, &aggErr)
	assert.Equal(t, ProbeNetwork, aggErr.Probe.Source)
	assert.ErrorIs(t, err, p.networkErr)
}

func TestRefreshFailsOnAnyRequiredProbe(t *testing.T) {
	cases := map[ProbeName]func(p *fakePlatform){
		ProbeBattery:  func(p *fakePlatform) { p.batteryErr = errors.New("no battery service") },
		ProbeStorage:  func(p *fakePlatform) { p.storageErr = definitions.ErrProviderUnavailable },
		ProbeNetwork:  func(p *fakePlatform) { p.networkErr = errors.New("no connectivity service") },
		ProbeIdentity: func(p *fakePlatform) { p.family = "windows" },
	}
	for name, breakIt := range cases {
		t.Run(string(name), func(t *testing.T) {
			p := newFakePlatform()
			breakIt(p)

			snapshot, err := newTestAggregator(p).Refresh(context.Background())
			assert.Nil(t, snapshot)

			var aggErr *AggregateError
			require.ErrorAs(t, err, &aggErr)
			assert.Equal(t, name, aggErr.Probe.Source)
		})
	}
}

func TestRefreshRecoversProbePanic(t *testing.T) {
	p := newFakePlatform()
	probes := NewProbes(p, definitions.SessionConfig{})
	probes.System = NewProbe(ProbeSystem, func(ctx context.Context) (*definitions.SystemResources, error) {
		panic("boom")
	})
	agg := NewAggregator(probes, nil)

	snapshot, err := agg.Refresh(context.Background())
	assert.Nil(t, snapshot)

	var aggErr *AggregateError
	require.ErrorAs(t, err, &aggErr)
	assert.Equal(t, ProbeSystem, aggErr.Probe.Source)
	assert.Contains(t, aggErr.Error(), "boom")
}

func TestRefreshRejectsNilResult(t *testing.T) {
	probes := NewProbes(newFakePlatform(), definitions.SessionConfig{})
	probes.Storage = NewProbe(ProbeStorage, func(ctx context.Context) (*definitions.StorageStatus, error) {
		return nil, nil
	})

	_, err := NewAggregator(probes, nil).Refresh(context.Background())

	var aggErr *AggregateError
	require.ErrorAs(t, err, &aggErr)
	assert.Equal(t, ProbeStorage, aggErr.Probe.Source)
}

func TestCyclesAndStaleness(t *testing.T) {
	agg := newTestAggregator(newFakePlatform())
	ctx := context.Background()

	first, err := agg.Refresh(ctx)
	require.NoError(t, err)
	assert.False(t, agg.IsStale(first.Cycle))

	second, err := agg.Refresh(ctx)
	require.NoError(t, err)
	assert.Equal(t, first.Cycle+1, second.Cycle)
	assert.NotEqual(t, first.ID, second.ID)
	assert.True(t, agg.IsStale(first.Cycle))
	assert.False(t, agg.IsStale(second.Cycle))
	assert.Equal(t, second.Cycle, agg.Cycle())
}

func TestFailedCycleStillAdvancesCounter(t *testing.T) {
	p := newFakePlatform()
	p.batteryErr = errors.New("battery gone")
	agg := newTestAggregator(p)

	_, err := agg.Refresh(context.Background())
	require.Error(t, err)
	assert.Equal(t, uint64(1), agg.Cycle())
}

// rendezvous holds each wrapped read until all of them have started, and
// fails them if that does not happen within a second.
type rendezvous struct {
	arrived sync.WaitGroup
	release chan struct{}
}

func newRendezvous(n int) *rendezvous {
	r := &rendezvous{release: make(chan struct{})}
	r.arrived.Add(n)
	go func() {
		r.arrived.Wait()
		close(r.release)
	}()
	return r
}

func meet[T any](r *rendezvous, inner Probe[T]) Probe[T] {
	return NewProbe(inner.Name(), func(ctx context.Context) (T, error) {
		r.arrived.Done()
		select {
		case <-r.release:
			return inner.Probe(ctx)
		case <-time.After(time.Second):
			var zero T
			return zero, errors.New("required reads did not run concurrently")
		}
	})
}

func TestRefreshRunsRequiredReadsConcurrently(t *testing.T) {
	set := NewProbes(newFakePlatform(), definitions.SessionConfig{LocationTimeout: 50 * time.Millisecond})
	r := newRendezvous(6)
	set.Identity = meet(r, set.Identity)
	set.Battery = meet(r, set.Battery)
	set.Network = meet(r, set.Network)
	set.System = meet(r, set.System)
	set.Storage = meet(r, set.Storage)
	set.Permissions = meet(r, set.Permissions)

	snapshot, err := NewAggregator(set, nil).Refresh(context.Background())
	require.NoError(t, err)
	require.NoError(t, snapshot.Validate())
}

func TestRefreshResolvesLocationFirst(t *testing.T) {
	p := newFakePlatform()

	_, err := newTestAggregator(p).Refresh(context.Background())
	require.NoError(t, err)

	calls := p.callOrder()
	require.NotEmpty(t, calls)
	assert.Equal(t, "position", calls[0])
	for _, required := range []string{"identity", "battery", "network", "system", "storage", "permissions"} {
		assert.True(t, slices.Contains(calls[1:], required), required)
	}
}
