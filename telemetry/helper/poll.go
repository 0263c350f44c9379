package helper

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/spance/devpulse/telemetry/definitions"
)

// ErrNoSample is returned by a PollFunc when nothing new has arrived since
// the previous read.
var ErrNoSample = errors.New("no new sample")

// PollFunc reads the current value of a stream.
type PollFunc func(ctx context.Context) (definitions.StreamEvent, error)

// ChangedFunc decides whether next differs enough from prev to be emitted.
type ChangedFunc func(prev, next definitions.StreamEvent) bool

// PollStream turns a polled read into a definitions.PlatformStream. The first
// successful read is always emitted; later reads only when changed says so,
// or always when changed is nil.
type PollStream struct {
	kind     definitions.StreamKind
	interval time.Duration
	poll     PollFunc
	changed  ChangedFunc

	events    chan definitions.StreamEvent
	cancel    context.CancelFunc
	done      chan struct{}
	closeOnce sync.Once
}

func NewPollStream(ctx context.Context, kind definitions.StreamKind, interval time.Duration, poll PollFunc, changed ChangedFunc) *PollStream {
	ctx, cancel := context.WithCancel(ctx)
	s := &PollStream{
		kind:     kind,
		interval: interval,
		poll:     poll,
		changed:  changed,
		events:   make(chan definitions.StreamEvent),
		cancel:   cancel,
		done:     make(chan struct{}),
	}
	go s.run(ctx)
	return s
}

func (s *PollStream) run(ctx context.Context) {
	defer close(s.done)
	defer close(s.events)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	var (
		prev    definitions.StreamEvent
		hasPrev bool
	)
	for {
		event, err := s.poll(ctx)
		switch {
		case errors.Is(err, ErrNoSample):
		case err != nil:
			if ctx.Err() != nil {
				return
			}
			log.Debug().Err(err).Str("stream", string(s.kind)).Msg("stream poll failed")
		case !hasPrev || s.changed == nil || s.changed(prev, event):
			select {
			case s.events <- event:
			case <-ctx.Done():
				return
			}
			prev, hasPrev = event, true
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (s *PollStream) Events() <-chan definitions.StreamEvent {
	return s.events
}

// Close stops polling and waits for the loop to exit.
func (s *PollStream) Close() error {
	s.closeOnce.Do(s.cancel)
	<-s.done
	return nil
}

// BatteryStateChanged emits on battery state transitions only.
func BatteryStateChanged(prev, next definitions.StreamEvent) bool {
	return !equalPtr(prev.BatteryState, next.BatteryState)
}

// ConnectivityChanged emits on connection type transitions only.
func ConnectivityChanged(prev, next definitions.StreamEvent) bool {
	return !equalPtr(prev.Connectivity, next.Connectivity)
}

func equalPtr[T comparable](a, b *T) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
