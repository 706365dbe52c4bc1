package drift

import (
	"time"

	"github.com/evenfall/drift/internal/fade"
	"github.com/evenfall/drift/internal/overlay"
	"github.com/evenfall/drift/internal/playback"
	"github.com/evenfall/drift/internal/playlist"
	"github.com/evenfall/drift/internal/session"
)

// Track identifies one playable item. URI is required; metadata and
// format fields are filled on load.
type Track struct {
	URI      string
	Title    string
	Artist   string
	Album    string
	Duration time.Duration
}

// State is the main layer's lifecycle state.
type State int

const (
	StateIdle State = iota
	StatePreparing
	StatePlaying
	StatePaused
	StateFadingOut
	StateFinished
	StateFailed
)

// String returns the state name.
func (s State) String() string {
	return playback.State(s).String()
}

// FadeCurve shapes volume ramps.
type FadeCurve int

const (
	CurveLinear FadeCurve = iota
	CurveEasePower
	CurveEaseIn
	CurveEaseOut
	CurveEqualPower
)

func (c FadeCurve) internal() fade.Curve {
	switch c {
	case CurveEasePower:
		return fade.EasePower
	case CurveEaseIn:
		return fade.EaseIn
	case CurveEaseOut:
		return fade.EaseOut
	case CurveEqualPower:
		return fade.EqualPower
	default:
		return fade.Linear
	}
}

// RepeatMode defines playlist boundary behavior.
type RepeatMode int

const (
	RepeatOff RepeatMode = iota
	RepeatSingleTrack
	RepeatPlaylist
)

func (m RepeatMode) internal() playlist.RepeatMode {
	switch m {
	case RepeatSingleTrack:
		return playlist.RepeatSingleTrack
	case RepeatPlaylist:
		return playlist.RepeatPlaylist
	default:
		return playlist.RepeatOff
	}
}

// LoopMode defines how many overlay iterations run.
type LoopMode int

const (
	LoopOnce LoopMode = iota
	LoopCount
	LoopInfinite
)

func (m LoopMode) internal() overlay.LoopMode {
	switch m {
	case LoopCount:
		return overlay.LoopCount
	case LoopInfinite:
		return overlay.LoopInfinite
	default:
		return overlay.LoopOnce
	}
}

// SessionMode selects who owns the platform audio session.
type SessionMode int

const (
	// SessionManaged: the engine configures and activates the session.
	SessionManaged SessionMode = iota
	// SessionExternal: the embedder owns the session; the engine only
	// validates.
	SessionExternal
)

func (m SessionMode) internal() session.Mode {
	if m == SessionExternal {
		return session.ModeExternal
	}
	return session.ModeManaged
}

// SessionOptions mirrors the platform category option set used in
// managed mode.
type SessionOptions struct {
	MixWithOthers      bool
	DuckOthers         bool
	AllowBluetoothA2DP bool
	DefaultToSpeaker   bool
}

// OverlayConfig tunes the looping layer.
type OverlayConfig struct {
	LoopMode  LoopMode
	LoopCount int
	LoopDelay time.Duration
	Volume    float64
	FadeIn    time.Duration
	FadeOut   time.Duration
	FadeCurve FadeCurve
	// Normalized is not passed to the overlay scheduler and has no
	// effect; overlay buffers are loudness-normalized exactly when
	// Config.Normalize is set, like main buffers.
	Normalized bool
}

func (c OverlayConfig) internal() overlay.Config {
	return overlay.Config{
		LoopMode:  c.LoopMode.internal(),
		LoopCount: c.LoopCount,
		LoopDelay: c.LoopDelay,
		Volume:    c.Volume,
		FadeIn:    c.FadeIn,
		FadeOut:   c.FadeOut,
		Curve:     c.FadeCurve.internal(),
	}
}

// SoundEffect identifies a one-shot effect with its intrinsic volume.
type SoundEffect struct {
	URI    string
	Volume float64
}

// Config is the engine configuration.
type Config struct {
	CrossfadeDuration time.Duration // [1s, 30s], default 5s
	FadeCurve         FadeCurve
	RepeatMode        RepeatMode
	RepeatCount       int // not read; overlay iterations come from Overlay.LoopCount
	Volume            float64
	SessionMode       SessionMode
	SessionOptions    SessionOptions
	Overlay           OverlayConfig

	// Normalize runs EBU R128 loudness normalization on every decoded
	// buffer.
	Normalize       bool
	TargetLUFS      float64 // default -16
	CeilingDBTP     float64 // default -1
	CacheEntries    int     // decoded-buffer cache bound, default 16
	FileLoadTimeout time.Duration
	EffectCacheSize int // default 10
}

// DefaultConfig returns the documented defaults.
func DefaultConfig() Config {
	return Config{
		CrossfadeDuration: 5 * time.Second,
		FadeCurve:         CurveEqualPower,
		RepeatMode:        RepeatOff,
		Volume:            1,
		SessionMode:       SessionManaged,
		Overlay: OverlayConfig{
			LoopMode: LoopInfinite,
			Volume:   1,
		},
		TargetLUFS:      -16,
		CeilingDBTP:     -1,
		CacheEntries:    16,
		FileLoadTimeout: 30 * time.Second,
		EffectCacheSize: 10,
	}
}

// CrossfadeProgress describes where a transition is.
type CrossfadeProgress struct {
	Phase    string
	Fraction float64
	Duration time.Duration
	Elapsed  time.Duration
}

// EventKind discriminates the engine event stream.
type EventKind int

const (
	EventFileLoadStarted EventKind = iota
	EventFileLoadFinished
	EventFileLoadFailed
	EventCrossfadePhase
	EventSessionWarning
)

// Event is one entry of the engine event stream.
type Event struct {
	Kind      EventKind
	URI       string
	Crossfade CrossfadeProgress
	Warning   string
	Err       error
}

// StateChange is emitted on facade state transitions.
type StateChange struct {
	Previous State
	Current  State
	Err      error
}

// PositionChange ticks every half second while playing.
type PositionChange struct {
	Position time.Duration
	Duration time.Duration
}

// SessionValidation reports an external session check.
type SessionValidation struct {
	Valid            bool
	CurrentCategory  string
	ExpectedCategory string
	Warnings         []string
}

// CategoryDelegate is notified when the engine detects a session
// category it did not set.
type CategoryDelegate func(SessionValidation)
