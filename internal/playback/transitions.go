package playback

import (
	"context"
	"time"

	"github.com/evenfall/drift/internal/audio"
	"github.com/evenfall/drift/internal/crossfade"
	"github.com/evenfall/drift/internal/errmsg"
	"github.com/evenfall/drift/internal/logger"
	"github.com/evenfall/drift/internal/opqueue"
	"github.com/evenfall/drift/internal/playlist"
	"github.com/evenfall/drift/internal/session"
	"go.uber.org/zap"
)

// loopDurationFactor caps an automatic-loop crossfade at a fraction of
// the track, so short tracks never spend their whole length fading.
const loopDurationFactor = 0.4

// runTransition spawns the transition goroutine tracked for Close. The
// busy flag keeps the ticker from arming a second transition while one
// goroutine is still between "decided" and "crossfading".
func (c *Coordinator) runTransition(name string, fn func()) {
	if !c.transitionBusy.CompareAndSwap(false, true) {
		logger.Debug("transition already armed, skipping", zap.String("op", name))
		return
	}
	c.transient.Add(1)
	go func() {
		defer c.transient.Done()
		defer c.transitionBusy.Store(false)
		fn()
	}()
}

// runTransitionWait is the manual-change variant: instead of skipping
// when a transition goroutine is already armed, it waits for the slot
// and then supersedes whatever crossfade is in flight via the
// replacement policy.
func (c *Coordinator) runTransitionWait(name string, fn func()) {
	c.transient.Add(1)
	go func() {
		defer c.transient.Done()
		for !c.transitionBusy.CompareAndSwap(false, true) {
			select {
			case <-c.done:
				return
			case <-time.After(10 * time.Millisecond):
			}
		}
		defer c.transitionBusy.Store(false)
		logger.Debug("transition slot acquired", zap.String("op", name))
		fn()
	}()
}

// transitionTo crossfades from the current track to target, applying
// the replacement policy when a transition is already in flight.
func (c *Coordinator) transitionTo(target audio.Track, kind crossfade.Kind) {
	if !c.supersedeActiveTransition() {
		return
	}

	ctx := context.Background()
	c.publishEvent(Event{Kind: EventFileLoadStarted, URI: target.URI})
	loaded, err := c.eng.LoadIntoSlot(ctx, c.eng.ActiveSlot().Other(), target)
	if err != nil {
		c.publishEvent(Event{Kind: EventFileLoadFailed, URI: target.URI, Err: err})
		logger.Error(errmsg.FormatWith(errmsg.OpCrossfade, target.URI, err))
		return
	}
	c.publishEvent(Event{Kind: EventFileLoadFinished, URI: target.URI})
	c.pl.UpdateCurrent(loaded)

	cfg := c.Configuration()
	duration := cfg.CrossfadeDuration
	if kind == crossfade.AutomaticLoop {
		duration = adaptedDuration(duration, c.eng.Duration())
	}

	res, err := c.orch.StartCrossfade(ctx, duration, cfg.Curve, kind)
	if err != nil {
		logger.Error(errmsg.Format(errmsg.OpCrossfade, err))
		return
	}
	c.afterTransition(res)
}

// supersedeActiveTransition applies the replacement policy to an
// in-flight crossfade. Reports whether the new transition may proceed.
func (c *Coordinator) supersedeActiveTransition() bool {
	if !c.orch.Active() {
		return true
	}
	if fraction, fading := c.orch.CurrentFraction(); fading {
		switch {
		case fraction < 0.2:
			// Barely started: unwind and crossfade from the unchanged
			// active track.
			c.orch.RollbackCurrent(replaceRampDuration)
		case fraction > 0.9:
			// Nearly done: let it land, then transition from the new
			// active.
			c.waitTransitionIdle(completionWait)
		default:
			// Mid-flight: the incoming track wins, then we transition
			// from it.
			c.orch.FastForward(replaceRampDuration)
			c.afterTransition(crossfade.Completed)
		}
		return true
	}
	if c.orch.HasPausedCrossfade() {
		c.orch.RollbackCurrent(replaceRampDuration)
	}
	return true
}

func (c *Coordinator) waitTransitionIdle(timeout time.Duration) {
	deadline := time.After(timeout)
	for c.orch.Active() {
		select {
		case <-deadline:
			return
		case <-time.After(10 * time.Millisecond):
		}
	}
}

// afterTransition refreshes the mirror after a transition ends.
func (c *Coordinator) afterTransition(res crossfade.Result) {
	switch res {
	case crossfade.Completed:
		if track, ok := c.eng.ActiveTrack(); ok {
			c.setTrack(&track)
		}
		c.preloadNext()
	case crossfade.Paused:
		c.setState(StatePaused, nil)
	case crossfade.Cancelled:
		// Mirror unchanged; the outgoing track stays current.
	}
}

// adaptedDuration caps a loop crossfade at loopDurationFactor of the
// track length.
func adaptedDuration(configured, trackDur time.Duration) time.Duration {
	if trackDur <= 0 {
		return configured
	}
	max := time.Duration(float64(trackDur) * loopDurationFactor)
	if configured > max {
		return max
	}
	return configured
}

// --- position ticker + gapless trigger ---

func (c *Coordinator) onTick() {
	if c.State() != StatePlaying {
		return
	}
	pos := c.eng.Position()
	dur := c.eng.Duration()
	c.publishPosition(pos, dur)

	if dur <= 0 || c.orch.Active() || c.transitionBusy.Load() {
		return
	}
	remaining := dur - pos

	cfg := c.Configuration()
	switch c.pl.RepeatMode() {
	case playlist.RepeatSingleTrack:
		adapted := adaptedDuration(cfg.CrossfadeDuration, dur)
		if remaining <= adapted {
			track, ok := c.pl.Current()
			if !ok {
				return
			}
			c.runTransition("loopCurrentTrack", func() {
				c.transitionTo(track, crossfade.AutomaticLoop)
			})
		}
	default:
		if remaining > cfg.CrossfadeDuration {
			return
		}
		if _, ok := c.pl.PeekNext(); !ok {
			// Repeat off at the end: play out; natural end finishes.
			return
		}
		c.runTransition("advanceTrack", func() {
			if t, ok := c.pl.AdvanceNext(); ok {
				c.transitionTo(t, crossfade.AutomaticLoop)
			}
		})
	}
}

// --- natural-end fallback ---

// naturalEndLoop consumes the engine's filtered completion stream. It
// only acts when the gapless trigger did not already start a
// transition: the track genuinely played to silence.
func (c *Coordinator) naturalEndLoop() {
	for {
		select {
		case <-c.done:
			return
		case slot := <-c.eng.NaturalEnd():
			logger.Debug("natural end", zap.String("slot", slot.String()))
			c.handleNaturalEnd()
		}
	}
}

func (c *Coordinator) handleNaturalEnd() {
	if c.State() != StatePlaying || c.orch.Active() || c.transitionBusy.Load() {
		return
	}
	err := c.queue.Run(opqueue.PriorityNormal, "naturalEnd", func(ctx context.Context) error {
		switch c.pl.RepeatMode() {
		case playlist.RepeatSingleTrack:
			// The loop crossfade missed (track shorter than a tick):
			// hard restart from 0.
			return c.restartActive(ctx)
		default:
			next, ok := c.pl.AdvanceNext()
			if !ok {
				c.eng.Stop()
				c.stopTicker()
				c.setTrack(nil)
				c.setState(StateFinished, nil)
				return nil
			}
			loaded, err := c.loadActive(ctx, next)
			if err != nil {
				c.eng.Stop()
				c.stopTicker()
				c.setState(StateFailed, err)
				return err
			}
			cfg := c.Configuration()
			if err := c.eng.ScheduleActive(0, cfg.Curve); err != nil {
				return err
			}
			c.setTrack(&loaded)
			c.preloadNext()
			return nil
		}
	})
	if err != nil {
		logger.Error(errmsg.Format(errmsg.OpPlaylistAdvance, err))
	}
}

func (c *Coordinator) restartActive(ctx context.Context) error {
	cfg := c.Configuration()
	return c.eng.ScheduleActive(0, cfg.Curve)
}

// --- session signals ---

func (c *Coordinator) sessionSignalLoop() {
	for {
		select {
		case <-c.done:
			return
		case sig := <-c.sess.Signals():
			c.handleSessionSignal(sig)
		}
	}
}

func (c *Coordinator) handleSessionSignal(sig session.Signal) {
	logger.Info("session signal", zap.String("kind", sig.Kind.String()))
	switch sig.Kind {
	case session.SignalPause:
		c.transient.Add(1)
		go func() {
			defer c.transient.Done()
			if err := c.PauseAll(); err != nil {
				logger.Error(errmsg.Format(errmsg.OpPlaybackPause, err))
			}
		}()
	case session.SignalResume:
		c.transient.Add(1)
		go func() {
			defer c.transient.Done()
			if err := c.ResumeAll(); err != nil {
				logger.Error(errmsg.Format(errmsg.OpPlaybackResume, err))
			}
		}()
	case session.SignalRecover:
		c.transient.Add(1)
		go func() {
			defer c.transient.Done()
			c.recoverFromReset()
		}()
	case session.SignalCategoryChanged:
		c.publishEvent(Event{
			Kind:    EventSessionWarning,
			Warning: sig.Validation.Describe(),
		})
		c.mu.RLock()
		d := c.delegate
		c.mu.RUnlock()
		if d != nil {
			d(sig.Validation)
		}
	case session.SignalRouteChanged:
		logger.Debug("route changed", zap.String("reason", sig.RouteReason.String()))
	}
}

// recoverFromReset rebuilds the audio stack after a media-services
// reset: reconfigure with force, re-prepare, restart, and restore the
// last position when the player was playing.
func (c *Coordinator) recoverFromReset() {
	err := c.queue.Run(opqueue.PriorityUserInteractive, "recover", func(ctx context.Context) error {
		state := c.State()
		if !state.IsActive() {
			return nil
		}
		wasPlaying := state == StatePlaying
		pos := c.eng.Position()
		track, hasTrack := c.eng.ActiveTrack()

		if c.orch.Active() {
			c.orch.RollbackCurrent(0)
		}
		c.eng.MarkNotRunning()

		if err := c.sess.Configure(c.Configuration().Session, true); err != nil {
			return err
		}
		if err := c.eng.Setup(); err != nil {
			return err
		}
		if err := c.eng.Start(); err != nil {
			return err
		}
		if !hasTrack {
			return nil
		}
		if _, err := c.eng.LoadIntoSlot(ctx, c.eng.ActiveSlot(), track); err != nil {
			return err
		}
		cfg := c.Configuration()
		if err := c.eng.ScheduleActive(0, cfg.Curve); err != nil {
			return err
		}
		if err := c.eng.Seek(pos); err != nil {
			return err
		}
		if wasPlaying {
			c.setState(StatePlaying, nil)
		} else {
			c.eng.Pause()
			c.setState(StatePaused, nil)
		}
		logger.Info("recovered from media services reset",
			zap.Duration("position", pos),
			zap.Bool("resumed", wasPlaying))
		return nil
	})
	if err != nil {
		logger.Error(errmsg.Format(errmsg.OpSessionRecover, err))
		c.eng.Stop()
		c.stopTicker()
		c.setState(StateFailed, err)
	}
}
