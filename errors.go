package drift

import (
	"github.com/evenfall/drift/internal/cache"
	"github.com/evenfall/drift/internal/engine"
	"github.com/evenfall/drift/internal/playback"
	"github.com/evenfall/drift/internal/session"
)

// Error kinds surfaced by the facade. Match with errors.Is / errors.As.
var (
	ErrEmptyPlaylist   = playback.ErrEmptyPlaylist
	ErrNoNextTrack     = playback.ErrNoNextTrack
	ErrNoPreviousTrack = playback.ErrNoPreviousTrack
	ErrRateLimited     = playback.ErrRateLimited
)

// InvalidStateError reports a guard violation in the facade state
// machine.
type InvalidStateError = playback.InvalidStateError

// InvalidConfigurationError reports a rejected configuration.
type InvalidConfigurationError = playback.InvalidConfigurationError

// FileLoadError wraps a decoder failure for one URI.
type FileLoadError = cache.LoadError

// FileLoadTimeoutError reports a load that exceeded its deadline.
type FileLoadTimeoutError = cache.TimeoutError

// SessionConfigurationError reports an incompatible or failed session
// setup.
type SessionConfigurationError = session.ConfigurationError

// EngineStartError wraps graph prepare/start failures.
type EngineStartError = engine.StartError
