package engine

import (
	"context"
	"time"

	"github.com/evenfall/drift/internal/fade"
	"github.com/evenfall/drift/internal/logger"
	"go.uber.org/zap"
)

// stopInactiveFade is the short safety ramp applied before stopping the
// inactive player; stopping a rendering player mid-sample clicks.
const stopInactiveFade = 20 * time.Millisecond

// BeginCrossfade marks a crossfade in progress. Returns false when one
// is already active.
func (e *Engine) BeginCrossfade() bool {
	if !e.crossfading.CompareAndSwap(false, true) {
		return false
	}
	e.crossfadeCancelled.Store(false)
	return true
}

// EndCrossfade clears the in-progress mark.
func (e *Engine) EndCrossfade() {
	e.crossfading.Store(false)
}

// Crossfading reports whether a crossfade is in progress.
func (e *Engine) Crossfading() bool {
	return e.crossfading.Load()
}

// ClearCrossfadeCancel re-arms a suspended crossfade window so a
// resume fade can run after a pause-during-fade.
func (e *Engine) ClearCrossfadeCancel() {
	e.crossfadeCancelled.Store(false)
}

// CancelCrossfade asks the in-flight crossfade loop to exit without
// writing its final volumes, so rollback or fast-forward can take over.
func (e *Engine) CancelCrossfade() {
	e.crossfadeCancelled.Store(true)
}

// PrepareInactive schedules the inactive slot's already-loaded file at
// volume 0 without starting playback.
func (e *Engine) PrepareInactive() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.running {
		return ErrNotRunning
	}
	inactive := e.active.Other()
	s := e.slots[inactive]
	if !s.loaded {
		return ErrNoTrackLoaded
	}
	s.mixer.SetVolume(0)
	s.offsetFrames = 0
	s.generation++
	e.scheduleLocked(inactive, 0)
	return nil
}

// SyncedStartTime computes the output sample time at which the inactive
// player should begin so both players share one timeline.
func (e *Engine) SyncedStartTime() int64 {
	return e.graph.LastRenderTime() + syncLeadSamples
}

// ExecuteCrossfade starts the inactive player at the synced anchor and
// ramps the two mixers in opposite directions over the duration:
// active follows curve.Inverse, inactive follows curve.Apply, both
// scaled by the target volume. Progress is emitted after every substep.
// On success the active mixer ends at 0 and the inactive at target; the
// caller is expected to SwitchActive next.
func (e *Engine) ExecuteCrossfade(ctx context.Context, duration time.Duration, curve fade.Curve, progress func(p float64)) error {
	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()
		return ErrNotRunning
	}
	activeSlot := e.active
	inactiveSlot := e.active.Other()
	active := e.slots[activeSlot]
	inactive := e.slots[inactiveSlot]
	target := e.targetVolume
	e.mu.Unlock()

	inactive.player.PlayAt(e.SyncedStartTime())

	steps := int(duration.Seconds() * float64(fadeStepsPerSecond(duration)))
	if steps < 1 {
		steps = 1
	}
	stepDur := duration / time.Duration(steps)

	for i := 1; i <= steps; i++ {
		select {
		case <-ctx.Done():
			return ErrCancelled
		case <-time.After(stepDur):
		}
		if e.crossfadeCancelled.Load() {
			return ErrCancelled
		}
		if i == steps {
			break
		}
		p := float64(i) / float64(steps)
		active.mixer.SetVolume(curve.Inverse(p) * target)
		inactive.mixer.SetVolume(curve.Apply(p) * target)
		if progress != nil {
			progress(p)
		}
	}

	if e.crossfadeCancelled.Load() {
		return ErrCancelled
	}
	active.mixer.SetVolume(0)
	inactive.mixer.SetVolume(target)
	if progress != nil {
		progress(1)
	}
	return nil
}

// FadeFromVolumes resumes an interrupted crossfade: both mixers ramp
// linearly from the captured volumes to (0, target) over the remaining
// duration, with progress emitted along the way.
func (e *Engine) FadeFromVolumes(ctx context.Context, activeFrom, inactiveFrom float64, remaining time.Duration, progress func(p float64)) error {
	e.mu.Lock()
	active := e.slots[e.active]
	inactive := e.slots[e.active.Other()]
	target := e.targetVolume
	e.mu.Unlock()

	steps := int(remaining.Seconds() * float64(fadeStepsPerSecond(remaining)))
	if steps < 1 {
		steps = 1
	}
	stepDur := remaining / time.Duration(steps)

	for i := 1; i <= steps; i++ {
		select {
		case <-ctx.Done():
			return ErrCancelled
		case <-time.After(stepDur):
		}
		if e.crossfadeCancelled.Load() {
			return ErrCancelled
		}
		if i == steps {
			break
		}
		p := float64(i) / float64(steps)
		active.mixer.SetVolume(activeFrom + (0-activeFrom)*p)
		inactive.mixer.SetVolume(inactiveFrom + (target-inactiveFrom)*p)
		if progress != nil {
			progress(p)
		}
	}
	if e.crossfadeCancelled.Load() {
		return ErrCancelled
	}
	active.mixer.SetVolume(0)
	inactive.mixer.SetVolume(target)
	if progress != nil {
		progress(1)
	}
	return nil
}

// SwitchActive flips the active slot.
func (e *Engine) SwitchActive() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.active = e.active.Other()
	logger.Debug("active slot switched", zap.String("active", e.active.String()))
}

// Rollback cancels the in-flight crossfade and restores the outgoing
// state: the active mixer ramps back to the target volume while the
// inactive ramps to 0, then the inactive player stops. Returns the
// active mixer volume observed before the rollback started.
func (e *Engine) Rollback(duration time.Duration) float64 {
	e.CancelCrossfade()

	e.mu.Lock()
	active := e.slots[e.active]
	inactive := e.slots[e.active.Other()]
	target := e.targetVolume
	e.mu.Unlock()

	preVolume := active.mixer.Volume()
	_ = e.fadePair(context.Background(),
		active.mixer, preVolume, target,
		inactive.mixer, inactive.mixer.Volume(), 0,
		duration)

	e.mu.Lock()
	inactive.generation++
	inactive.player.Stop()
	inactive.offsetFrames = 0
	e.mu.Unlock()
	return preVolume
}

// FastForward cancels the in-flight crossfade and completes it
// immediately: active ramps to 0, inactive to target, then the slots
// switch.
func (e *Engine) FastForward(duration time.Duration) {
	e.CancelCrossfade()

	e.mu.Lock()
	active := e.slots[e.active]
	inactive := e.slots[e.active.Other()]
	target := e.targetVolume
	e.mu.Unlock()

	_ = e.fadePair(context.Background(),
		active.mixer, active.mixer.Volume(), 0,
		inactive.mixer, inactive.mixer.Volume(), target,
		duration)
	e.SwitchActive()
}

// StopInactive silences and stops the now-inactive player after a
// completed crossfade: a short linear safety fade, then stop + reset
// with volume and offset cleared.
func (e *Engine) StopInactive() {
	e.mu.Lock()
	inactive := e.slots[e.active.Other()]
	e.mu.Unlock()

	_ = e.Fade(context.Background(), inactive.mixer, inactive.mixer.Volume(), 0, stopInactiveFade, fade.Linear)

	e.mu.Lock()
	inactive.generation++
	inactive.player.Stop()
	inactive.player.Reset()
	inactive.mixer.SetVolume(0)
	inactive.offsetFrames = 0
	e.mu.Unlock()
}
