// Package crossfade drives the engine through a cross-slot transition:
// preparing, fading, switching, cleanup — with pause/resume via an
// explicit snapshot, and rollback/fast-forward of in-flight fades.
package crossfade

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/evenfall/drift/internal/engine"
	"github.com/evenfall/drift/internal/fade"
	"github.com/evenfall/drift/internal/logger"
	"go.uber.org/zap"
)

// Kind tells why a transition is running.
type Kind int

const (
	AutomaticLoop Kind = iota
	ManualChange
)

// String returns the kind name.
func (k Kind) String() string {
	if k == ManualChange {
		return "manual"
	}
	return "automatic"
}

// Result is the outcome of a transition.
type Result int

const (
	Completed Result = iota
	Paused
	Cancelled
)

// String returns the result name.
func (r Result) String() string {
	switch r {
	case Paused:
		return "paused"
	case Cancelled:
		return "cancelled"
	default:
		return "completed"
	}
}

// Phase is where a transition currently is.
type Phase int

const (
	PhaseIdle Phase = iota
	PhasePreparing
	PhaseFading
	PhaseSwitching
	PhaseCleanup
)

// String returns the phase name.
func (p Phase) String() string {
	switch p {
	case PhasePreparing:
		return "preparing"
	case PhaseFading:
		return "fading"
	case PhaseSwitching:
		return "switching"
	case PhaseCleanup:
		return "cleanup"
	default:
		return "idle"
	}
}

// Progress is republished to the facade on every phase change and fade
// substep.
type Progress struct {
	Phase    Phase
	Fraction float64
	Duration time.Duration
	Elapsed  time.Duration
}

// Snapshot captures a crossfade paused mid-fade, so resume can continue
// losslessly and replacement policy can reason about progress.
type Snapshot struct {
	ActiveVolume     float64
	InactiveVolume   float64
	ActivePosition   time.Duration
	InactivePosition time.Duration
	ActiveSlot       engine.Slot
	Remaining        time.Duration
	Curve            fade.Curve
	Kind             Kind
}

// ErrTransitionActive is returned when a crossfade is already running.
var ErrTransitionActive = errors.New("crossfade: transition already in progress")

// ErrNotPlaying is returned when the active slot is not rendering at
// transition start.
var ErrNotPlaying = errors.New("crossfade: active player is not playing")

// cleanupSettle lets the graph drain after the inactive player stops.
const cleanupSettle = 50 * time.Millisecond

// Orchestrator serializes transitions over one engine.
type Orchestrator struct {
	mu       sync.Mutex
	eng      *engine.Engine
	snapshot *Snapshot
	progress func(Progress)

	fading       bool
	pausedMid    bool
	cancelledMid bool
	curKind      Kind
	curCurve     fade.Curve
	curDuration  time.Duration
	fadeStarted  time.Time
	lastFraction float64
}

// New creates an orchestrator over the engine.
func New(eng *engine.Engine) *Orchestrator {
	return &Orchestrator{eng: eng}
}

// SetProgressFunc installs the republish hook. Must be set before the
// first transition.
func (o *Orchestrator) SetProgressFunc(fn func(Progress)) {
	o.mu.Lock()
	o.progress = fn
	o.mu.Unlock()
}

func (o *Orchestrator) emit(p Progress) {
	o.mu.Lock()
	fn := o.progress
	o.mu.Unlock()
	if fn != nil {
		fn(p)
	}
}

// StartCrossfade runs a full transition to the track already loaded in
// the inactive slot. Blocks until the transition completes, pauses or
// is cancelled; the facade runs it on its transition goroutine.
func (o *Orchestrator) StartCrossfade(ctx context.Context, duration time.Duration, curve fade.Curve, kind Kind) (Result, error) {
	if !o.eng.BeginCrossfade() {
		return Cancelled, ErrTransitionActive
	}

	// Preparing: the active slot must be rendering and the inactive
	// slot armed at volume 0.
	o.emit(Progress{Phase: PhasePreparing, Duration: duration})
	if !o.eng.IsPlaying() {
		o.eng.EndCrossfade()
		o.emit(Progress{Phase: PhaseIdle})
		return Cancelled, ErrNotPlaying
	}
	if err := o.eng.PrepareInactive(); err != nil {
		o.eng.EndCrossfade()
		o.emit(Progress{Phase: PhaseIdle})
		return Cancelled, err
	}

	o.mu.Lock()
	o.fading = true
	o.pausedMid = false
	o.cancelledMid = false
	o.curKind = kind
	o.curCurve = curve
	o.curDuration = duration
	o.fadeStarted = time.Now()
	o.lastFraction = 0
	o.mu.Unlock()

	err := o.eng.ExecuteCrossfade(ctx, duration, curve, func(p float64) {
		o.mu.Lock()
		o.lastFraction = p
		elapsed := time.Since(o.fadeStarted)
		o.mu.Unlock()
		o.emit(Progress{Phase: PhaseFading, Fraction: p, Duration: duration, Elapsed: elapsed})
	})

	o.mu.Lock()
	o.fading = false
	paused := o.pausedMid
	cancelled := o.cancelledMid
	o.mu.Unlock()

	if err != nil {
		switch {
		case paused:
			// Snapshot already captured by PauseCurrent; the crossfade
			// window stays open until resume or stop.
			logger.Debug("crossfade paused mid-fade")
			return Paused, nil
		case cancelled:
			o.eng.EndCrossfade()
			o.emit(Progress{Phase: PhaseIdle})
			return Cancelled, nil
		default:
			// Transition failure: restore the outgoing player.
			o.eng.Rollback(200 * time.Millisecond)
			o.eng.EndCrossfade()
			o.emit(Progress{Phase: PhaseIdle})
			return Cancelled, err
		}
	}

	return o.finish(duration)
}

// finish runs Switching and Cleanup after a successful fade.
func (o *Orchestrator) finish(duration time.Duration) (Result, error) {
	o.emit(Progress{Phase: PhaseSwitching, Fraction: 1, Duration: duration, Elapsed: duration})
	o.eng.SwitchActive()

	o.emit(Progress{Phase: PhaseCleanup, Fraction: 1, Duration: duration, Elapsed: duration})
	o.eng.StopInactive()
	time.Sleep(cleanupSettle)

	o.eng.EndCrossfade()
	o.emit(Progress{Phase: PhaseIdle})
	return Completed, nil
}

// PauseCurrent pauses an in-flight crossfade: captures the snapshot,
// cancels the fade loop and pauses both players. Returns false when no
// crossfade is fading.
func (o *Orchestrator) PauseCurrent() bool {
	o.mu.Lock()
	if !o.fading {
		o.mu.Unlock()
		return false
	}
	active := o.eng.ActiveSlot()
	elapsed := time.Since(o.fadeStarted)
	remaining := o.curDuration - elapsed
	if remaining < 0 {
		remaining = 0
	}
	o.snapshot = &Snapshot{
		ActiveVolume:     o.eng.SlotMixerVolume(active),
		InactiveVolume:   o.eng.SlotMixerVolume(active.Other()),
		ActivePosition:   o.eng.SlotPosition(active),
		InactivePosition: o.eng.SlotPosition(active.Other()),
		ActiveSlot:       active,
		Remaining:        remaining,
		Curve:            o.curCurve,
		Kind:             o.curKind,
	}
	o.pausedMid = true
	o.mu.Unlock()

	o.eng.CancelCrossfade()
	o.eng.PauseBoth()
	logger.Debug("crossfade snapshot captured",
		zap.Float64("active_volume", o.snapshot.ActiveVolume),
		zap.Duration("remaining", o.snapshot.Remaining))
	return true
}

// HasPausedCrossfade reports whether a snapshot is waiting for resume.
func (o *Orchestrator) HasPausedCrossfade() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.snapshot != nil
}

// PausedSnapshot returns a copy of the snapshot, if any.
func (o *Orchestrator) PausedSnapshot() (Snapshot, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.snapshot == nil {
		return Snapshot{}, false
	}
	return *o.snapshot, true
}

// ResumeCrossfade continues a paused crossfade from its snapshot:
// resumes both players and fades linearly from the captured volumes to
// (0, target) over the remaining duration, then switches and cleans
// up. Returns false when there is no snapshot.
func (o *Orchestrator) ResumeCrossfade(ctx context.Context) (Result, bool) {
	o.mu.Lock()
	snap := o.snapshot
	if snap == nil {
		o.mu.Unlock()
		return Cancelled, false
	}
	o.snapshot = nil
	o.fading = true
	o.pausedMid = false
	o.cancelledMid = false
	o.curDuration = snap.Remaining
	o.curCurve = snap.Curve
	o.curKind = snap.Kind
	o.fadeStarted = time.Now()
	o.mu.Unlock()

	o.eng.ClearCrossfadeCancel()
	o.eng.ResumeBoth()

	err := o.eng.FadeFromVolumes(ctx, snap.ActiveVolume, snap.InactiveVolume, snap.Remaining, func(p float64) {
		o.mu.Lock()
		o.lastFraction = p
		elapsed := time.Since(o.fadeStarted)
		o.mu.Unlock()
		o.emit(Progress{Phase: PhaseFading, Fraction: p, Duration: snap.Remaining, Elapsed: elapsed})
	})

	o.mu.Lock()
	o.fading = false
	paused := o.pausedMid
	cancelled := o.cancelledMid
	o.mu.Unlock()

	if err != nil {
		switch {
		case paused:
			return Paused, true
		case cancelled:
			o.eng.EndCrossfade()
			o.emit(Progress{Phase: PhaseIdle})
			return Cancelled, true
		default:
			o.eng.Rollback(200 * time.Millisecond)
			o.eng.EndCrossfade()
			o.emit(Progress{Phase: PhaseIdle})
			return Cancelled, true
		}
	}

	res, _ := o.finish(snap.Remaining)
	return res, true
}

// RollbackCurrent cancels the transition and restores the outgoing
// track: in-flight fades unwind over the duration, a paused snapshot is
// discarded. Returns the pre-rollback active volume.
func (o *Orchestrator) RollbackCurrent(duration time.Duration) float64 {
	o.mu.Lock()
	wasFading := o.fading
	if wasFading {
		o.cancelledMid = true
	}
	o.snapshot = nil
	o.mu.Unlock()

	pre := o.eng.Rollback(duration)
	if !wasFading {
		// Paused or idle: the fade loop is not there to close the
		// window, so close it here.
		o.eng.EndCrossfade()
		o.emit(Progress{Phase: PhaseIdle})
	}
	return pre
}

// FastForward cancels the transition by completing it immediately: the
// incoming track wins. The snapshot, if any, is discarded.
func (o *Orchestrator) FastForward(duration time.Duration) {
	o.mu.Lock()
	wasFading := o.fading
	if wasFading {
		o.cancelledMid = true
	}
	o.snapshot = nil
	o.mu.Unlock()

	o.eng.FastForward(duration)
	o.eng.StopInactive()
	if !wasFading {
		o.eng.EndCrossfade()
		o.emit(Progress{Phase: PhaseIdle})
	}
}

// CurrentFraction reports how far the in-flight fade has come; false
// when idle.
func (o *Orchestrator) CurrentFraction() (float64, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if !o.fading {
		return 0, false
	}
	return o.lastFraction, true
}

// Active reports whether a transition is running or paused mid-fade.
func (o *Orchestrator) Active() bool {
	return o.eng.Crossfading()
}

// PerformFadeSeekFade fades the active mixer out, seeks, and fades back
// in; used for skip forward/backward within a track.
func (o *Orchestrator) PerformFadeSeekFade(ctx context.Context, target time.Duration, fadeOut, fadeIn time.Duration) error {
	mixer := o.eng.ActiveMixer()
	targetVolume := o.eng.TargetVolume()
	if err := o.eng.Fade(ctx, mixer, mixer.Volume(), 0, fadeOut, fade.Linear); err != nil {
		return err
	}
	if err := o.eng.Seek(target); err != nil {
		// Bring the volume back; the position is unchanged.
		_ = o.eng.Fade(ctx, mixer, 0, targetVolume, fadeIn, fade.Linear)
		return err
	}
	return o.eng.Fade(ctx, mixer, 0, targetVolume, fadeIn, fade.Linear)
}

// PerformSimpleFadeOut ramps the active mixer to 0; used by pause and
// stop when no crossfade is in flight.
func (o *Orchestrator) PerformSimpleFadeOut(ctx context.Context, d time.Duration) error {
	mixer := o.eng.ActiveMixer()
	return o.eng.Fade(ctx, mixer, mixer.Volume(), 0, d, fade.Linear)
}

// PerformSimpleFadeIn ramps the active mixer back to the target volume;
// used by resume.
func (o *Orchestrator) PerformSimpleFadeIn(ctx context.Context, d time.Duration) error {
	mixer := o.eng.ActiveMixer()
	return o.eng.Fade(ctx, mixer, mixer.Volume(), o.eng.TargetVolume(), d, fade.Linear)
}
