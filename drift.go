// Package drift is an embeddable audio playback engine for long-form
// atmospheric content: a gapless main stream with seamless crossfades,
// a looping overlay layer and a one-shot sound-effects layer, with EBU
// R128 loudness normalization and audio-session lifecycle handling.
package drift

import (
	"time"

	"github.com/evenfall/drift/internal/audio"
	"github.com/evenfall/drift/internal/cache"
	"github.com/evenfall/drift/internal/crossfade"
	"github.com/evenfall/drift/internal/decode"
	"github.com/evenfall/drift/internal/dsp"
	"github.com/evenfall/drift/internal/engine"
	"github.com/evenfall/drift/internal/host"
	"github.com/evenfall/drift/internal/host/beephost"
	"github.com/evenfall/drift/internal/overlay"
	"github.com/evenfall/drift/internal/playback"
	"github.com/evenfall/drift/internal/playlist"
	"github.com/evenfall/drift/internal/session"
	"github.com/evenfall/drift/internal/sfx"
)

// Player is the public facade. All methods are safe for concurrent use;
// operations are serialized internally.
type Player struct {
	co  *playback.Coordinator
	eng *engine.Engine
	cfg Config
}

// New creates a player over the default speaker-backed audio stack.
func New(cfg Config) (*Player, error) {
	graph := beephost.NewGraph()
	sess := beephost.NewSession()
	return newWithHost(graph, sess, cfg)
}

// newWithHost wires the component graph over an arbitrary host; tests
// inject mocks here.
func newWithHost(graph host.Graph, hostSess host.Session, cfg Config) (*Player, error) {
	applyConfigDefaults(&cfg)
	if err := validateConfig(cfg); err != nil {
		return nil, err
	}

	normOpts := dsp.DefaultNormalizeOptions()
	normOpts.TargetLUFS = cfg.TargetLUFS
	normOpts.CeilingDBTP = cfg.CeilingDBTP

	loader := func(uri string) (*audio.Buffer, audio.Track, error) {
		return decode.File(uri)
	}
	bufCache := cache.New(loader, cache.Options{
		MaxEntries:       cfg.CacheEntries,
		LoadTimeout:      cfg.FileLoadTimeout,
		Normalize:        cfg.Normalize,
		NormalizeOptions: normOpts,
	})
	effectCache := cache.New(loader, cache.Options{
		MaxEntries:  cfg.EffectCacheSize,
		LoadTimeout: cfg.FileLoadTimeout,
	})

	eng := engine.New(graph, bufCache)
	sessCo := session.New(hostSess)
	ovl := overlay.New(graph.Player(host.NodeOverlay), graph.Mixer(host.NodeOverlay), bufCache)
	ovl.SetConfig(cfg.Overlay.internal())
	sfxPlayer := sfx.New(graph.Player(host.NodeSFX), graph.Mixer(host.NodeSFX), effectCache)

	co := playback.New(playback.Deps{
		Engine:   eng,
		Orch:     crossfade.New(eng),
		Session:  sessCo,
		Overlay:  ovl,
		SFX:      sfxPlayer,
		Playlist: playlist.New(nil),
		Cache:    bufCache,
	}, playback.Config{
		CrossfadeDuration: cfg.CrossfadeDuration,
		Curve:             cfg.FadeCurve.internal(),
		RepeatMode:        cfg.RepeatMode.internal(),
		Volume:            cfg.Volume,
		Session: session.Config{
			Mode: cfg.SessionMode.internal(),
			Options: host.CategoryOptions{
				MixWithOthers:      cfg.SessionOptions.MixWithOthers,
				DuckOthers:         cfg.SessionOptions.DuckOthers,
				AllowBluetoothA2DP: cfg.SessionOptions.AllowBluetoothA2DP,
				DefaultToSpeaker:   cfg.SessionOptions.DefaultToSpeaker,
			},
		},
	})

	return &Player{co: co, eng: eng, cfg: cfg}, nil
}

func applyConfigDefaults(cfg *Config) {
	def := DefaultConfig()
	if cfg.CrossfadeDuration == 0 {
		cfg.CrossfadeDuration = def.CrossfadeDuration
	}
	if cfg.TargetLUFS == 0 {
		cfg.TargetLUFS = def.TargetLUFS
	}
	if cfg.CeilingDBTP == 0 {
		cfg.CeilingDBTP = def.CeilingDBTP
	}
	if cfg.CacheEntries == 0 {
		cfg.CacheEntries = def.CacheEntries
	}
	if cfg.FileLoadTimeout == 0 {
		cfg.FileLoadTimeout = def.FileLoadTimeout
	}
	if cfg.EffectCacheSize == 0 {
		cfg.EffectCacheSize = def.EffectCacheSize
	}
	if cfg.Volume == 0 {
		cfg.Volume = def.Volume
	}
	if cfg.Overlay.Volume == 0 {
		cfg.Overlay.Volume = 1
	}
}

func validateConfig(cfg Config) error {
	if cfg.CrossfadeDuration < time.Second || cfg.CrossfadeDuration > 30*time.Second {
		return &InvalidConfigurationError{Reason: "crossfadeDuration must be within [1s, 30s]"}
	}
	if cfg.Volume < 0 || cfg.Volume > 1 {
		return &InvalidConfigurationError{Reason: "volume must be within [0, 1]"}
	}
	if cfg.Overlay.LoopDelay < 0 {
		return &InvalidConfigurationError{Reason: "overlay loopDelay must be >= 0"}
	}
	if cfg.Overlay.Volume < 0 || cfg.Overlay.Volume > 1 {
		return &InvalidConfigurationError{Reason: "overlay volume must be within [0, 1]"}
	}
	if cfg.Overlay.LoopMode == LoopCount && cfg.Overlay.LoopCount <= 0 {
		return &InvalidConfigurationError{Reason: "overlay loop count must be > 0"}
	}
	return nil
}

// Close releases the player. The audio session, once activated, stays
// active for the process lifetime.
func (p *Player) Close() {
	p.co.Close()
	p.eng.Close()
}

// --- playback surface ---

// StartPlaying begins playback of the loaded playlist.
func (p *Player) StartPlaying(fadeIn time.Duration) error {
	return p.co.StartPlaying(fadeIn)
}

// Pause suspends playback, capturing an in-flight crossfade losslessly.
func (p *Player) Pause() error { return p.co.Pause() }

// Resume continues from pause.
func (p *Player) Resume() error { return p.co.Resume() }

// Stop halts playback; always succeeds and lands on StateFinished.
func (p *Player) Stop(fadeOut time.Duration) error { return p.co.Stop(fadeOut) }

// Finish fades out gracefully (default 3 s) and stops.
func (p *Player) Finish(fadeOut time.Duration) error { return p.co.Finish(fadeOut) }

// SkipForward jumps ahead within the current track (default 15 s).
func (p *Player) SkipForward(interval time.Duration) error {
	return p.co.Skip(true, interval)
}

// SkipBackward jumps back within the current track.
func (p *Player) SkipBackward(interval time.Duration) error {
	return p.co.Skip(false, interval)
}

// SeekTo clamps and seeks, ramping volume around the jump while
// playing.
func (p *Player) SeekTo(position time.Duration) error { return p.co.SeekTo(position) }

// SetVolume sets the global volume, clamped to [0,1].
func (p *Player) SetVolume(v float64) { p.co.SetVolume(v) }

// Volume returns the target volume.
func (p *Player) Volume() float64 { return p.co.Volume() }

// SetRepeatMode changes playlist boundary behavior.
func (p *Player) SetRepeatMode(m RepeatMode) { p.co.SetRepeatMode(m.internal()) }

// UpdateConfiguration stops playback and applies a new configuration.
func (p *Player) UpdateConfiguration(cfg Config) error {
	applyConfigDefaults(&cfg)
	if err := validateConfig(cfg); err != nil {
		return err
	}
	err := p.co.UpdateConfiguration(playback.Config{
		CrossfadeDuration: cfg.CrossfadeDuration,
		Curve:             cfg.FadeCurve.internal(),
		RepeatMode:        cfg.RepeatMode.internal(),
		Volume:            cfg.Volume,
		Session: session.Config{
			Mode: cfg.SessionMode.internal(),
		},
	})
	if err != nil {
		return err
	}
	p.cfg = cfg
	return nil
}

// LoadPlaylist replaces the playlist while stopped.
func (p *Player) LoadPlaylist(tracks []Track) error {
	return p.co.LoadPlaylist(toInternalTracks(tracks))
}

// ReplacePlaylist swaps the playlist, crossfading to its first track
// when playing.
func (p *Player) ReplacePlaylist(tracks []Track) error {
	return p.co.ReplacePlaylist(toInternalTracks(tracks))
}

// SkipToNext advances to the next track: metadata returns immediately,
// the audio transition runs asynchronously.
func (p *Player) SkipToNext() (Track, error) {
	t, err := p.co.SkipToNext()
	return fromInternalTrack(t), err
}

// SkipToPrevious retreats to the previous track.
func (p *Player) SkipToPrevious() (Track, error) {
	t, err := p.co.SkipToPrevious()
	return fromInternalTrack(t), err
}

// PeekNextTrack returns the upcoming track without moving the cursor.
func (p *Player) PeekNextTrack() (Track, bool) {
	t, ok := p.co.PeekNextTrack()
	return fromInternalTrack(t), ok
}

// PeekPreviousTrack returns the preceding track without moving the
// cursor.
func (p *Player) PeekPreviousTrack() (Track, bool) {
	t, ok := p.co.PeekPreviousTrack()
	return fromInternalTrack(t), ok
}

// State returns the facade state.
func (p *Player) State() State { return State(p.co.State()) }

// CurrentTrack returns the mirror track.
func (p *Player) CurrentTrack() (Track, bool) {
	t, ok := p.co.CurrentTrack()
	return fromInternalTrack(t), ok
}

// Position returns the playback position of the active track.
func (p *Player) Position() time.Duration { return p.co.Position() }

// Duration returns the active track's duration.
func (p *Player) Duration() time.Duration { return p.co.Duration() }

// SetCategoryDelegate installs the external-category-change callback.
func (p *Player) SetCategoryDelegate(d CategoryDelegate) {
	if d == nil {
		p.co.SetCategoryDelegate(nil)
		return
	}
	p.co.SetCategoryDelegate(func(v session.Validation) {
		d(SessionValidation{
			Valid:            v.Result == session.ValidationValid,
			CurrentCategory:  string(v.Current),
			ExpectedCategory: string(v.Expected),
			Warnings:         v.Warnings,
		})
	})
}

// --- overlay surface ---

// PlayOverlay starts the looping overlay layer with the given file.
func (p *Player) PlayOverlay(uri string) error { return p.co.PlayOverlay(uri) }

// SetOverlayConfiguration replaces the overlay configuration.
func (p *Player) SetOverlayConfiguration(cfg OverlayConfig) {
	p.co.SetOverlayConfiguration(cfg.internal())
}

// SetOverlayVolume adjusts only the overlay volume.
func (p *Player) SetOverlayVolume(v float64) { p.co.SetOverlayVolume(v) }

// SetOverlayLoopMode adjusts only the loop mode.
func (p *Player) SetOverlayLoopMode(m LoopMode, count int) {
	p.co.SetOverlayLoopMode(m.internal(), count)
}

// SetOverlayLoopDelay adjusts only the inter-iteration delay.
func (p *Player) SetOverlayLoopDelay(d time.Duration) { p.co.SetOverlayLoopDelay(d) }

// StopOverlay stops the overlay with its configured fade-out.
func (p *Player) StopOverlay() { p.co.StopOverlay() }

// PauseOverlay suspends the overlay.
func (p *Player) PauseOverlay() { p.co.PauseOverlay() }

// ResumeOverlay continues a paused overlay.
func (p *Player) ResumeOverlay() { p.co.ResumeOverlay() }

// ReplaceOverlayFile fades out, swaps the file and re-enters the loop.
func (p *Player) ReplaceOverlayFile(uri string) error {
	return p.co.ReplaceOverlayFile(uri)
}

// --- sound effect surface ---

// PlaySoundEffect fires a one-shot effect, replacing the current one.
func (p *Player) PlaySoundEffect(effect SoundEffect, fadeIn time.Duration) error {
	return p.co.PlaySoundEffect(sfx.Effect{URI: effect.URI, Volume: effect.Volume}, fadeIn)
}

// StopSoundEffect stops the playing effect.
func (p *Player) StopSoundEffect(fadeOut time.Duration) { p.co.StopSoundEffect(fadeOut) }

// SetSoundEffectVolume sets the SFX master volume.
func (p *Player) SetSoundEffectVolume(v float64) { p.co.SetSoundEffectVolume(v) }

// PreloadSoundEffects warms the effect cache.
func (p *Player) PreloadSoundEffects(uris ...string) { p.co.PreloadSoundEffects(uris...) }

// UnloadSoundEffects evicts effects, stopping the active one if named.
func (p *Player) UnloadSoundEffects(uris ...string) { p.co.UnloadSoundEffects(uris...) }

// --- group operations ---

// PauseAll pauses main, overlay and SFX in one step.
func (p *Player) PauseAll() error { return p.co.PauseAll() }

// ResumeAll resumes main, overlay and SFX in one step.
func (p *Player) ResumeAll() error { return p.co.ResumeAll() }

// StopAll stops every layer.
func (p *Player) StopAll(fadeOut time.Duration) error { return p.co.StopAll(fadeOut) }

// --- subscription ---

// Subscription delivers state, track, position and engine events. The
// state/track channels are primed with the current values.
type Subscription struct {
	StateChanged    <-chan StateChange
	TrackChanged    <-chan Track
	PositionChanged <-chan PositionChange
	Events          <-chan Event
	Done            <-chan struct{}
}

// Subscribe attaches a new subscriber.
func (p *Player) Subscribe() *Subscription {
	inner := p.co.Subscribe()

	stateCh := make(chan StateChange, 16)
	trackCh := make(chan Track, 16)
	posCh := make(chan PositionChange, 16)
	eventCh := make(chan Event, 16)

	go func() {
		for {
			select {
			case <-inner.Done:
				close(stateCh)
				close(trackCh)
				close(posCh)
				close(eventCh)
				return
			case sc := <-inner.StateChanged:
				send(stateCh, StateChange{Previous: State(sc.Previous), Current: State(sc.Current), Err: sc.Err})
			case tc := <-inner.TrackChanged:
				if tc.Current != nil {
					send(trackCh, fromInternalTrack(*tc.Current))
				}
			case pc := <-inner.PositionChanged:
				send(posCh, PositionChange{Position: pc.Position, Duration: pc.Duration})
			case ev := <-inner.Events:
				send(eventCh, Event{
					Kind: EventKind(ev.Kind),
					URI:  ev.URI,
					Crossfade: CrossfadeProgress{
						Phase:    ev.Progress.Phase.String(),
						Fraction: ev.Progress.Fraction,
						Duration: ev.Progress.Duration,
						Elapsed:  ev.Progress.Elapsed,
					},
					Warning: ev.Warning,
					Err:     ev.Err,
				})
			}
		}
	}()

	return &Subscription{
		StateChanged:    stateCh,
		TrackChanged:    trackCh,
		PositionChanged: posCh,
		Events:          eventCh,
		Done:            inner.Done,
	}
}

func send[T any](ch chan T, v T) {
	select {
	case ch <- v:
	default:
	}
}

func toInternalTracks(tracks []Track) []audio.Track {
	out := make([]audio.Track, len(tracks))
	for i, t := range tracks {
		out[i] = audio.Track{
			URI:    t.URI,
			Title:  t.Title,
			Artist: t.Artist,
			Album:  t.Album,
		}
	}
	return out
}

func fromInternalTrack(t audio.Track) Track {
	return Track{
		URI:      t.URI,
		Title:    t.Title,
		Artist:   t.Artist,
		Album:    t.Album,
		Duration: t.Duration,
	}
}
