package telemetry

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/spance/devpulse/telemetry/definitions"
)

type StreamState int

const (
	StreamUninitialized StreamState = iota
	StreamActive
	StreamClosed
)

func (s StreamState) String() string {
	switch s {
	case StreamUninitialized:
		return "uninitialized"
	case StreamActive:
		return "active"
	case StreamClosed:
		return "closed"
	default:
		return fmt.Sprintf("StreamState(%d)", int(s))
	}
}

// Hub owns at most one platform stream per kind and broadcasts its events to
// every current subscriber. It runs independently of the aggregator.
type Hub struct {
	provider StreamProvider
	kinds    []definitions.StreamKind

	mu        sync.Mutex
	state     StreamState
	cancel    context.CancelFunc
	streams   map[definitions.StreamKind]definitions.PlatformStream
	subs      map[definitions.StreamKind]map[*Subscription]struct{}
	published map[definitions.StreamKind]uint64
	wg        sync.WaitGroup
}

// NewHub creates a hub for kinds, or for every stream kind when none are given.
func NewHub(provider StreamProvider, kinds ...definitions.StreamKind) *Hub {
	if len(kinds) == 0 {
		kinds = definitions.AllStreamKinds()
	}
	h := &Hub{
		provider:  provider,
		kinds:     kinds,
		streams:   make(map[definitions.StreamKind]definitions.PlatformStream),
		subs:      make(map[definitions.StreamKind]map[*Subscription]struct{}),
		published: make(map[definitions.StreamKind]uint64),
	}
	for _, kind := range kinds {
		h.subs[kind] = make(map[*Subscription]struct{})
	}
	return h
}

// Start opens the platform streams. It is a no-op on an active hub and
// returns ErrHubClosed once the hub has been closed. A kind whose stream
// cannot be opened is logged and stays silent.
func (h *Hub) Start(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	switch h.state {
	case StreamActive:
		return nil
	case StreamClosed:
		return ErrHubClosed
	}

	ctx, cancel := context.WithCancel(ctx)
	h.cancel = cancel

	for _, kind := range h.kinds {
		stream, err := h.provider.OpenStream(ctx, kind)
		if err != nil {
			log.Warn().Err(err).Str("stream", string(kind)).Msg("stream unavailable")
			continue
		}
		h.streams[kind] = stream
		h.wg.Add(1)
		go h.pump(ctx, kind, stream)
	}

	h.state = StreamActive
	log.Debug().Int("streams", len(h.streams)).Msg("stream hub started")
	return nil
}

func (h *Hub) pump(ctx context.Context, kind definitions.StreamKind, stream definitions.PlatformStream) {
	defer h.wg.Done()
	events := stream.Events()
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-events:
			if !ok {
				return
			}
			h.broadcast(kind, event)
		}
	}
}

func (h *Hub) broadcast(kind definitions.StreamKind, event definitions.StreamEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.state != StreamActive {
		return
	}
	h.published[kind]++
	for sub := range h.subs[kind] {
		sub.deliver(event)
	}
}

// Subscribe attaches a new listener to kind. It receives only events
// published after this call.
func (h *Hub) Subscribe(kind definitions.StreamKind) (*Subscription, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.state == StreamClosed {
		return nil, ErrHubClosed
	}
	if !slices.Contains(h.kinds, kind) {
		return nil, fmt.Errorf("%w: %s", ErrUnknownStream, kind)
	}

	sub := &Subscription{
		hub:    h,
		kind:   kind,
		events: make(chan definitions.StreamEvent, 1),
	}
	h.subs[kind][sub] = struct{}{}
	return sub, nil
}

func (h *Hub) unsubscribe(sub *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.subs[sub.kind][sub]; !ok {
		return
	}
	delete(h.subs[sub.kind], sub)
	close(sub.events)
}

// Close stops every platform stream and ends every subscription. Calling it
// again, or on a hub that was never started, is safe.
func (h *Hub) Close() error {
	h.mu.Lock()
	if h.state == StreamClosed {
		h.mu.Unlock()
		return nil
	}
	h.state = StreamClosed
	if h.cancel != nil {
		h.cancel()
	}
	streams := h.streams
	h.streams = make(map[definitions.StreamKind]definitions.PlatformStream)
	for kind, subs := range h.subs {
		for sub := range subs {
			close(sub.events)
		}
		h.subs[kind] = make(map[*Subscription]struct{})
	}
	h.mu.Unlock()

	var errs []error
	for kind, stream := range streams {
		if err := stream.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s stream: %w", kind, err))
		}
	}
	h.wg.Wait()

	log.Debug().Msg("stream hub closed")
	return errors.Join(errs...)
}

func (h *Hub) State() StreamState {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state
}

// Kinds returns the stream kinds this hub serves.
func (h *Hub) Kinds() []definitions.StreamKind {
	return slices.Clone(h.kinds)
}

// Published returns how many events of kind have been broadcast.
func (h *Hub) Published(kind definitions.StreamKind) uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.published[kind]
}

// Subscribers returns the number of open subscriptions on kind.
func (h *Hub) Subscribers(kind definitions.StreamKind) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs[kind])
}

// Subscription is a caller-owned handle on one stream. Events is closed when
// the subscription or the hub is closed.
type Subscription struct {
	hub    *Hub
	kind   definitions.StreamKind
	events chan definitions.StreamEvent
	once   sync.Once
}

func (s *Subscription) Kind() definitions.StreamKind {
	return s.kind
}

func (s *Subscription) Events() <-chan definitions.StreamEvent {
	return s.events
}

// Close detaches the subscription. It is idempotent.
func (s *Subscription) Close() {
	s.once.Do(func() {
		s.hub.unsubscribe(s)
	})
}

// deliver never blocks: an undelivered older event is replaced by the newer
// one. Called with the hub lock held.
func (s *Subscription) deliver(event definitions.StreamEvent) {
	select {
	case s.events <- event:
		return
	default:
	}
	select {
	case <-s.events:
	default:
	}
	select {
	case s.events <- event:
	default:
	}
}
