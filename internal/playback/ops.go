package playback

import (
	"context"
	"time"

	"github.com/evenfall/drift/internal/audio"
	"github.com/evenfall/drift/internal/crossfade"
	"github.com/evenfall/drift/internal/errmsg"
	"github.com/evenfall/drift/internal/logger"
	"github.com/evenfall/drift/internal/opqueue"
	"github.com/evenfall/drift/internal/overlay"
	"github.com/evenfall/drift/internal/playlist"
	"github.com/evenfall/drift/internal/sfx"
)

// StartPlaying configures the session, prepares the engine, loads the
// playlist's current track and begins playback with an optional
// fade-in.
func (c *Coordinator) StartPlaying(fadeIn time.Duration) error {
	return c.queue.Run(opqueue.PriorityNormal, "startPlaying", func(ctx context.Context) error {
		if c.pl.Empty() {
			return ErrEmptyPlaylist
		}
		state := c.State()
		if !state.CanStart() {
			return &InvalidStateError{Current: state, Attempted: "startPlaying"}
		}

		c.setState(StatePreparing, nil)
		if err := c.sess.Configure(c.Configuration().Session, false); err != nil {
			c.setState(StateIdle, nil)
			return err
		}
		if err := c.eng.Setup(); err != nil {
			c.setState(StateIdle, nil)
			return err
		}
		if err := c.eng.Start(); err != nil {
			c.setState(StateIdle, nil)
			return err
		}

		track, ok := c.pl.Current()
		if !ok {
			c.setState(StateIdle, nil)
			return ErrEmptyPlaylist
		}
		loaded, err := c.loadActive(ctx, track)
		if err != nil {
			c.setState(StateIdle, nil)
			return err
		}

		cfg := c.Configuration()
		c.eng.SetVolume(cfg.Volume)
		if err := c.eng.ScheduleActive(fadeIn, cfg.Curve); err != nil {
			c.setState(StateIdle, nil)
			return err
		}

		c.setTrack(&loaded)
		c.setState(StatePlaying, nil)
		c.startTicker()
		c.preloadNext()
		return nil
	})
}

// Pause suspends the main layer, capturing a paused-crossfade snapshot
// when a transition is mid-fade. Idempotent in terminal states.
func (c *Coordinator) Pause() error {
	return c.queue.Run(opqueue.PriorityUserInteractive, "pause", func(ctx context.Context) error {
		state := c.State()
		if state.IsTerminal() || state == StatePaused || state == StateIdle {
			return nil
		}
		if c.orch.PauseCurrent() {
			// Snapshot captured; both players are paused.
			c.setState(StatePaused, nil)
			return nil
		}
		_ = c.orch.PerformSimpleFadeOut(ctx, pauseFadeDuration)
		c.eng.Pause()
		c.setState(StatePaused, nil)
		return nil
	})
}

// Resume continues from pause: a paused crossfade resumes from its
// snapshot, otherwise the active player reschedules from the captured
// offset. Idempotent in terminal states.
func (c *Coordinator) Resume() error {
	return c.queue.Run(opqueue.PriorityNormal, "resume", func(ctx context.Context) error {
		state := c.State()
		if state.IsTerminal() || state == StatePlaying || state == StateIdle {
			return nil
		}
		if c.orch.HasPausedCrossfade() {
			c.setState(StatePlaying, nil)
			c.runTransitionWait("resumeCrossfade", func() {
				res, _ := c.orch.ResumeCrossfade(context.Background())
				c.afterTransition(res)
			})
			return nil
		}
		if err := c.eng.Play(); err != nil {
			return err
		}
		_ = c.orch.PerformSimpleFadeIn(ctx, pauseFadeDuration)
		c.setState(StatePlaying, nil)
		return nil
	})
}

// Stop halts the main layer unconditionally: any transition is rolled
// back, the volume ramps down over fadeOut, the engine stops and the
// state lands on Finished.
func (c *Coordinator) Stop(fadeOut time.Duration) error {
	return c.queue.Run(opqueue.PriorityUserInteractive, "stop", func(ctx context.Context) error {
		if c.orch.Active() {
			c.orch.RollbackCurrent(replaceRampDuration)
		}
		if c.State() == StatePlaying && fadeOut > 0 {
			c.setState(StateFadingOut, nil)
			_ = c.orch.PerformSimpleFadeOut(ctx, fadeOut)
		}
		c.eng.Stop()
		c.stopTicker()
		c.setTrack(nil)
		c.setState(StateFinished, nil)
		return nil
	})
}

// Finish fades the main layer out gracefully and stops. Requires
// Playing or Paused.
func (c *Coordinator) Finish(fadeOut time.Duration) error {
	if fadeOut <= 0 {
		fadeOut = finishFadeDuration
	}
	state := c.State()
	if state != StatePlaying && state != StatePaused {
		return &InvalidStateError{Current: state, Attempted: "finish"}
	}
	return c.Stop(fadeOut)
}

// SeekTo clamps and seeks, wrapping the jump in a fade-out/fade-in when
// playing. An active crossfade is rolled back first; the outgoing
// track stays current.
func (c *Coordinator) SeekTo(target time.Duration) error {
	return c.queue.Run(opqueue.PriorityHigh, "seek", func(ctx context.Context) error {
		state := c.State()
		if !state.IsActive() {
			return &InvalidStateError{Current: state, Attempted: "seek"}
		}
		if c.orch.Active() {
			c.orch.RollbackCurrent(replaceRampDuration)
		}
		if state == StatePlaying {
			if err := c.orch.PerformFadeSeekFade(ctx, target, seekFadeDuration, seekFadeDuration); err != nil {
				return err
			}
		} else {
			if err := c.eng.Seek(target); err != nil {
				return err
			}
		}
		c.publishPosition(c.eng.Position(), c.eng.Duration())
		return nil
	})
}

// Skip jumps forward or backward within the current track using the
// fade-seek-fade ramp. Rate limited like track skips.
func (c *Coordinator) Skip(forward bool, interval time.Duration) error {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	if err := c.takeSkipSlot(); err != nil {
		return err
	}
	defer c.releaseSkipSlot()

	return c.queue.Run(opqueue.PriorityHigh, "skip", func(ctx context.Context) error {
		state := c.State()
		if !state.IsActive() {
			return &InvalidStateError{Current: state, Attempted: "skip"}
		}
		pos := c.eng.Position()
		target := pos + interval
		if !forward {
			target = pos - interval
		}
		if target < 0 {
			target = 0
		}
		if err := c.orch.PerformFadeSeekFade(ctx, target, skipFadeDuration, skipFadeDuration); err != nil {
			return err
		}
		c.publishPosition(c.eng.Position(), c.eng.Duration())
		return nil
	})
}

// SetVolume writes the global volume.
func (c *Coordinator) SetVolume(v float64) {
	c.eng.SetVolume(v)
	c.mu.Lock()
	c.cfg.Volume = c.eng.TargetVolume()
	c.mu.Unlock()
}

// SetRepeatMode changes the boundary behavior.
func (c *Coordinator) SetRepeatMode(m playlist.RepeatMode) {
	c.pl.SetRepeatMode(m)
	c.mu.Lock()
	c.cfg.RepeatMode = m
	c.mu.Unlock()
}

// RepeatMode returns the playlist repeat mode.
func (c *Coordinator) RepeatMode() playlist.RepeatMode {
	return c.pl.RepeatMode()
}

// UpdateConfiguration stops playback and swaps the configuration.
func (c *Coordinator) UpdateConfiguration(cfg Config) error {
	if err := validate(cfg); err != nil {
		return err
	}
	if err := c.Stop(0); err != nil {
		return err
	}
	c.mu.Lock()
	c.cfg = cfg
	c.mu.Unlock()
	c.pl.SetRepeatMode(cfg.RepeatMode)
	c.eng.SetVolume(cfg.Volume)
	return nil
}

func validate(cfg Config) error {
	if cfg.CrossfadeDuration < time.Second || cfg.CrossfadeDuration > 30*time.Second {
		return &InvalidConfigurationError{Reason: "crossfadeDuration must be within [1s, 30s]"}
	}
	if cfg.Volume < 0 || cfg.Volume > 1 {
		return &InvalidConfigurationError{Reason: "volume must be within [0, 1]"}
	}
	return nil
}

// LoadPlaylist replaces the sequence while stopped or idle.
func (c *Coordinator) LoadPlaylist(tracks []audio.Track) error {
	state := c.State()
	if state.IsActive() {
		return &InvalidStateError{Current: state, Attempted: "loadPlaylist"}
	}
	c.pl.Replace(tracks)
	return nil
}

// ReplacePlaylist swaps the sequence; when playing, the audio
// transitions to the new first track with a crossfade (superseding any
// in-flight transition per the replacement policy).
func (c *Coordinator) ReplacePlaylist(tracks []audio.Track) error {
	if len(tracks) == 0 {
		return ErrEmptyPlaylist
	}
	if c.State() != StatePlaying {
		c.pl.Replace(tracks)
		return nil
	}
	return c.queue.Run(opqueue.PriorityHigh, "replacePlaylist", func(ctx context.Context) error {
		c.pl.Replace(tracks)
		next, _ := c.pl.Current()
		c.runTransitionWait("replacePlaylist", func() {
			c.transitionTo(next, crossfade.ManualChange)
		})
		return nil
	})
}

// PeekNextTrack returns the track a skip would land on.
func (c *Coordinator) PeekNextTrack() (audio.Track, bool) {
	return c.pl.PeekNext()
}

// PeekPreviousTrack returns the track a back-skip would land on.
func (c *Coordinator) PeekPreviousTrack() (audio.Track, bool) {
	return c.pl.PeekPrevious()
}

// SkipToNext advances to the next track. The peeked metadata returns
// synchronously; the audio transition runs asynchronously.
func (c *Coordinator) SkipToNext() (audio.Track, error) {
	return c.skipTo(true)
}

// SkipToPrevious retreats to the previous track.
func (c *Coordinator) SkipToPrevious() (audio.Track, error) {
	return c.skipTo(false)
}

func (c *Coordinator) skipTo(forward bool) (audio.Track, error) {
	if err := c.takeSkipSlot(); err != nil {
		return audio.Track{}, err
	}

	var peeked audio.Track
	var ok bool
	if forward {
		peeked, ok = c.pl.PeekNext()
	} else {
		peeked, ok = c.pl.PeekPrevious()
	}
	if !ok {
		c.releaseSkipSlot()
		if forward {
			return audio.Track{}, ErrNoNextTrack
		}
		return audio.Track{}, ErrNoPreviousTrack
	}

	state := c.State()
	if !state.IsActive() {
		// Not playing: just move the cursor.
		if forward {
			c.pl.AdvanceNext()
		} else {
			c.pl.AdvancePrevious()
		}
		c.releaseSkipSlot()
		return peeked, nil
	}

	err := c.queue.Run(opqueue.PriorityHigh, "skipTrack", func(ctx context.Context) error {
		var target audio.Track
		var ok bool
		if forward {
			target, ok = c.pl.AdvanceNext()
		} else {
			target, ok = c.pl.AdvancePrevious()
		}
		if !ok {
			return ErrNoNextTrack
		}
		// The audio transition runs asynchronously; an overlapping
		// manual change is resolved by the replacement policy.
		c.runTransitionWait("skipTrack", func() {
			c.transitionTo(target, crossfade.ManualChange)
		})
		return nil
	})
	c.releaseSkipSlot()
	if err != nil {
		return audio.Track{}, err
	}
	return peeked, nil
}

func (c *Coordinator) takeSkipSlot() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.skipBusy {
		return ErrRateLimited
	}
	if !c.lastSkip.IsZero() && time.Since(c.lastSkip) < skipMinInterval {
		return ErrRateLimited
	}
	c.skipBusy = true
	c.lastSkip = time.Now()
	return nil
}

func (c *Coordinator) releaseSkipSlot() {
	c.mu.Lock()
	c.skipBusy = false
	c.mu.Unlock()
}

// --- overlay surface ---

// PlayOverlay starts the looping overlay layer.
func (c *Coordinator) PlayOverlay(uri string) error {
	err := c.ovl.Play(context.Background(), uri)
	if err != nil {
		logger.Error(errmsg.FormatWith(errmsg.OpOverlayPlay, uri, err))
	}
	return err
}

// SetOverlayConfiguration replaces the overlay loop configuration.
func (c *Coordinator) SetOverlayConfiguration(cfg overlay.Config) {
	c.ovl.SetConfig(cfg)
}

// SetOverlayVolume adjusts only the overlay volume.
func (c *Coordinator) SetOverlayVolume(v float64) {
	c.ovl.SetVolume(v)
}

// SetOverlayLoopMode adjusts only the loop mode.
func (c *Coordinator) SetOverlayLoopMode(m overlay.LoopMode, count int) {
	cfg := c.ovl.Config()
	cfg.LoopMode = m
	cfg.LoopCount = count
	c.ovl.SetConfig(cfg)
}

// SetOverlayLoopDelay adjusts only the inter-iteration delay.
func (c *Coordinator) SetOverlayLoopDelay(d time.Duration) {
	cfg := c.ovl.Config()
	cfg.LoopDelay = d
	c.ovl.SetConfig(cfg)
}

// StopOverlay stops the overlay with its configured fade-out.
func (c *Coordinator) StopOverlay() {
	c.ovl.Stop(c.ovl.Config().FadeOut)
}

// PauseOverlay suspends the overlay.
func (c *Coordinator) PauseOverlay() { c.ovl.Pause() }

// ResumeOverlay continues the overlay.
func (c *Coordinator) ResumeOverlay() { c.ovl.Resume() }

// OverlayState returns the overlay lifecycle state.
func (c *Coordinator) OverlayState() overlay.State { return c.ovl.State() }

// ReplaceOverlayFile swaps the overlay file with a fade.
func (c *Coordinator) ReplaceOverlayFile(uri string) error {
	return c.ovl.ReplaceFile(context.Background(), uri)
}

// --- sound effect surface ---

// PlaySoundEffect fires a one-shot effect.
func (c *Coordinator) PlaySoundEffect(effect sfx.Effect, fadeIn time.Duration) error {
	err := c.sfxP.Play(context.Background(), effect, fadeIn)
	if err != nil {
		logger.Error(errmsg.FormatWith(errmsg.OpEffectPlay, effect.URI, err))
	}
	return err
}

// StopSoundEffect stops the playing effect.
func (c *Coordinator) StopSoundEffect(fadeOut time.Duration) {
	c.sfxP.Stop(fadeOut)
}

// SetSoundEffectVolume sets the SFX master volume.
func (c *Coordinator) SetSoundEffectVolume(v float64) {
	c.sfxP.SetMasterVolume(v)
}

// PreloadSoundEffects warms the effect cache.
func (c *Coordinator) PreloadSoundEffects(uris ...string) {
	c.sfxP.Preload(uris...)
}

// UnloadSoundEffects evicts effects.
func (c *Coordinator) UnloadSoundEffects(uris ...string) {
	c.sfxP.Unload(uris...)
}

// --- group operations ---

// PauseAll pauses main, overlay and SFX in one step.
func (c *Coordinator) PauseAll() error {
	err := c.Pause()
	c.ovl.Pause()
	c.sfxP.Pause()
	return err
}

// ResumeAll resumes main, overlay and SFX in one step.
func (c *Coordinator) ResumeAll() error {
	err := c.Resume()
	c.ovl.Resume()
	c.sfxP.Resume()
	return err
}

// StopAll stops everything.
func (c *Coordinator) StopAll(fadeOut time.Duration) error {
	err := c.Stop(fadeOut)
	c.ovl.Stop(fadeOut)
	c.sfxP.Stop(fadeOut)
	return err
}

// --- shared helpers ---

// loadActive loads a track into the active slot, publishing file-load
// lifecycle events.
func (c *Coordinator) loadActive(ctx context.Context, track audio.Track) (audio.Track, error) {
	c.publishEvent(Event{Kind: EventFileLoadStarted, URI: track.URI})
	loaded, err := c.eng.LoadIntoSlot(ctx, c.eng.ActiveSlot(), track)
	if err != nil {
		c.publishEvent(Event{Kind: EventFileLoadFailed, URI: track.URI, Err: err})
		return track, err
	}
	c.publishEvent(Event{Kind: EventFileLoadFinished, URI: track.URI})
	c.pl.UpdateCurrent(loaded)
	return loaded, nil
}

// preloadNext warms the cache for the upcoming track.
func (c *Coordinator) preloadNext() {
	if next, ok := c.pl.PeekNext(); ok {
		c.cache.Preload(next.URI)
	}
}
