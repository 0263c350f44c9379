package telemetry

import (
	"context"
	"errors"
	"io"
	"sync"

	"github.com/spance/devpulse/telemetry/definitions"
)

// Session is built once per dashboard session and owns the platform backend,
// the aggregator and the stream hub.
type Session struct {
	Platform   Platform
	Aggregator *Aggregator
	Hub        *Hub
	Config     definitions.SessionConfig

	closeOnce sync.Once
	closeErr  error
}

// NewSession wires an aggregator and a hub on top of platform.
func NewSession(platform Platform, cfg definitions.SessionConfig, clock Clock) *Session {
	cfg = cfg.WithDefaults()
	return &Session{
		Platform:   platform,
		Aggregator: NewAggregator(NewProbes(platform, cfg), clock),
		Hub:        NewHub(platform),
		Config:     cfg,
	}
}

// OpenSession creates the platform backend named by cfg.DeviceType.
func OpenSession(cfg definitions.SessionConfig) (*Session, error) {
	platform, err := CreatePlatform(cfg)
	if err != nil {
		return nil, err
	}
	return NewSession(platform, cfg, nil), nil
}

func (s *Session) Refresh(ctx context.Context) (*definitions.Snapshot, error) {
	return s.Aggregator.Refresh(ctx)
}

// StartStreams opens the live streams. Safe to call more than once.
func (s *Session) StartStreams(ctx context.Context) error {
	return s.Hub.Start(ctx)
}

func (s *Session) Subscribe(kind definitions.StreamKind) (*Subscription, error) {
	return s.Hub.Subscribe(kind)
}

// Close tears down the hub and releases the platform backend once.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		s.closeErr = s.Hub.Close()
		if closer, ok := s.Platform.(io.Closer); ok {
			s.closeErr = errors.Join(s.closeErr, closer.Close())
		}
	})
	return s.closeErr
}
