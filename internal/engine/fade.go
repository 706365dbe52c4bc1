package engine

import (
	"context"
	"errors"
	"time"

	"github.com/evenfall/drift/internal/fade"
	"github.com/evenfall/drift/internal/host"
)

// fadeStepsPerSecond exposes the shared adaptive bucket table.
func fadeStepsPerSecond(d time.Duration) int {
	return fade.StepsPerSecond(d)
}

// Fade ramps a mixer from one volume to another over the duration. The
// exact target is written at the end unless the context is cancelled
// first — a cancelled fade leaves the last stepped value in place so
// rollback or fast-forward can take over from it.
func (e *Engine) Fade(ctx context.Context, mixer host.Mixer, from, to float64, duration time.Duration, curve fade.Curve) error {
	err := fade.Ramp(ctx, mixer.SetVolume, from, to, duration, curve)
	if errors.Is(err, fade.ErrCancelled) {
		return ErrCancelled
	}
	return err
}

// fadePair runs two fades concurrently and waits for both; used by
// rollback and fast-forward which move both mixers at once.
func (e *Engine) fadePair(ctx context.Context, a host.Mixer, aFrom, aTo float64, b host.Mixer, bFrom, bTo float64, duration time.Duration) error {
	errs := make(chan error, 2)
	go func() { errs <- e.Fade(ctx, a, aFrom, aTo, duration, fade.Linear) }()
	go func() { errs <- e.Fade(ctx, b, bFrom, bTo, duration, fade.Linear) }()
	var first error
	for i := 0; i < 2; i++ {
		if err := <-errs; err != nil && first == nil {
			first = err
		}
	}
	return first
}
