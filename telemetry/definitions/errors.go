package definitions

import "errors"

var (
	// ErrUnsupported is returned by a provider for a value the platform has no API for.
	ErrUnsupported = errors.New("not supported on this platform")
	// ErrProviderUnavailable is returned when the provider behind a probe cannot be reached at all.
	ErrProviderUnavailable = errors.New("provider unavailable")
	// ErrUnsupportedPlatform is returned when a backend runs on an OS family it
	// cannot describe. Retrying does not help.
	ErrUnsupportedPlatform = errors.New("unsupported platform")
)
