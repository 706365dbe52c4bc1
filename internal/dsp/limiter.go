package dsp

import (
	"math"
	"time"

	"github.com/evenfall/drift/internal/audio"
)

// Look-ahead true-peak limiter. The signal is oversampled, the gain
// needed to keep every upcoming peak under the ceiling is computed over
// a forward-look window, smoothed with attack/release coefficients, and
// hard-clamped so the ceiling is guaranteed even while the smoother is
// still converging.

// LimiterOptions tunes the look-ahead limiter.
type LimiterOptions struct {
	CeilingDBTP float64
	Oversample  int
	LookAhead   time.Duration
	Attack      time.Duration
	Release     time.Duration
}

// DefaultLimiterOptions mirrors the engine's normalization defaults.
func DefaultLimiterOptions() LimiterOptions {
	return LimiterOptions{
		CeilingDBTP: -1.0,
		Oversample:  4,
		LookAhead:   time.Millisecond,
		Attack:      500 * time.Microsecond,
		Release:     50 * time.Millisecond,
	}
}

const peakEpsilon = 1e-12

// LimitTruePeak applies the limiter and returns a new buffer whose
// 4x-oversampled peak stays at or under the ceiling. If the oversample
// round-trip reintroduces overshoot, one corrective pass is run.
func LimitTruePeak(buf *audio.Buffer, opts LimiterOptions) (*audio.Buffer, error) {
	out, err := limitOnce(buf, opts)
	if err != nil {
		return nil, err
	}
	ceiling := dbToLinear(opts.CeilingDBTP)
	if MeasureTruePeak(out.Data, opts.Oversample) > ceiling {
		out, err = limitOnce(out, opts)
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

func limitOnce(buf *audio.Buffer, opts LimiterOptions) (*audio.Buffer, error) {
	if buf.Empty() {
		return nil, ErrEmptyBuffer
	}
	factor := opts.Oversample
	if factor < 1 {
		factor = 1
	}
	osRate := buf.SampleRate * factor
	o := newOversampler(factor)

	up := make([][]float64, buf.Channels())
	for ch := range buf.Data {
		up[ch] = o.upsample(buf.Data[ch])
	}
	n := len(up[0])

	// Per-sample peak linked across channels.
	peak := make([]float64, n)
	for i := 0; i < n; i++ {
		p := 0.0
		for ch := range up {
			if a := math.Abs(up[ch][i]); a > p {
				p = a
			}
		}
		peak[i] = p
	}

	window := int(opts.LookAhead.Seconds() * float64(osRate))
	if window < 1 {
		window = 1
	}
	futureMax := slidingForwardMax(peak, window)

	ceiling := dbToLinear(opts.CeilingDBTP)
	attackCoeff := smoothingCoeff(opts.Attack, osRate)
	releaseCoeff := smoothingCoeff(opts.Release, osRate)

	g := 1.0
	for i := 0; i < n; i++ {
		desired := 1.0
		if fp := futureMax[i]; fp > peakEpsilon {
			desired = math.Min(1, ceiling/fp)
		}
		if desired < g {
			g = attackCoeff*g + (1-attackCoeff)*desired
		} else {
			g = releaseCoeff*g + (1-releaseCoeff)*desired
		}
		// The smoother may lag behind a fast drop; the ceiling wins.
		if g > desired {
			g = desired
		}
		for ch := range up {
			up[ch][i] *= g
		}
	}

	out := &audio.Buffer{
		Data:       make([][]float32, buf.Channels()),
		SampleRate: buf.SampleRate,
	}
	for ch := range up {
		out.Data[ch] = o.downsample(up[ch])
	}
	return out, nil
}

// slidingForwardMax computes max(peak[i:i+window]) for every i using a
// monotonic deque over indices.
func slidingForwardMax(peak []float64, window int) []float64 {
	n := len(peak)
	out := make([]float64, n)
	deque := make([]int, 0, window)

	// Prime the deque with the first window.
	for j := 0; j < window && j < n; j++ {
		for len(deque) > 0 && peak[deque[len(deque)-1]] <= peak[j] {
			deque = deque[:len(deque)-1]
		}
		deque = append(deque, j)
	}
	for i := 0; i < n; i++ {
		out[i] = peak[deque[0]]
		// Slide: drop i, admit i+window.
		if deque[0] == i {
			deque = deque[1:]
		}
		if next := i + window; next < n {
			for len(deque) > 0 && peak[deque[len(deque)-1]] <= peak[next] {
				deque = deque[:len(deque)-1]
			}
			deque = append(deque, next)
		}
		if len(deque) == 0 && i+1 < n {
			deque = append(deque, i+1)
		}
	}
	return out
}

// smoothingCoeff converts a time constant to a one-pole coefficient at
// the given rate.
func smoothingCoeff(tc time.Duration, rate int) float64 {
	if tc <= 0 {
		return 0
	}
	return math.Exp(-1 / (tc.Seconds() * float64(rate)))
}
