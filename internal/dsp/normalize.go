package dsp

import (
	"math"
	"time"

	"github.com/evenfall/drift/internal/audio"
	"github.com/evenfall/drift/internal/logger"
	"go.uber.org/zap"
)

// NormalizeOptions configures loudness normalization.
type NormalizeOptions struct {
	TargetLUFS    float64
	CeilingDBTP   float64
	ToleranceLU   float64
	MaxIterations int
	Oversample    int
	LookAhead     time.Duration
	Attack        time.Duration
	Release       time.Duration
}

// DefaultNormalizeOptions matches the engine configuration defaults:
// -16 LUFS integrated, -1 dBTP ceiling, converge within 0.1 LU in at
// most three passes.
func DefaultNormalizeOptions() NormalizeOptions {
	return NormalizeOptions{
		TargetLUFS:    -16.0,
		CeilingDBTP:   -1.0,
		ToleranceLU:   0.1,
		MaxIterations: 3,
		Oversample:    4,
		LookAhead:     time.Millisecond,
		Attack:        500 * time.Microsecond,
		Release:       50 * time.Millisecond,
	}
}

// Normalize returns a new buffer whose integrated loudness approximates
// opts.TargetLUFS while the oversampled true peak stays under
// opts.CeilingDBTP. The input buffer is never modified.
//
// The buffer is resampled to the work rate once; each iteration then
// measures gated loudness, applies the linear make-up gain and runs the
// look-ahead limiter, exiting early once both loudness and peak are
// within tolerance.
func Normalize(in *audio.Buffer, opts NormalizeOptions) (*audio.Buffer, error) {
	if in.Empty() {
		return nil, ErrEmptyBuffer
	}
	for _, ch := range in.Data {
		if len(ch) != in.Frames() {
			return nil, ErrUnsupportedFormat
		}
	}

	buf, err := Resample(in, workRate)
	if err != nil {
		return nil, err
	}
	if buf == in {
		buf = in.Clone()
	}

	iterations := opts.MaxIterations
	if iterations < 1 {
		iterations = 1
	}
	limOpts := LimiterOptions{
		CeilingDBTP: opts.CeilingDBTP,
		Oversample:  opts.Oversample,
		LookAhead:   opts.LookAhead,
		Attack:      opts.Attack,
		Release:     opts.Release,
	}

	for i := 0; i < iterations; i++ {
		measured := MeasureIntegratedLUFS(buf)
		if math.IsInf(measured, -1) {
			// Nothing above the gate; gain would be unbounded.
			logger.Debug("normalize: signal below absolute gate, leaving as-is")
			return buf, nil
		}

		gainDB := opts.TargetLUFS - measured
		applyGain(buf, dbToLinear(gainDB))

		buf, err = LimitTruePeak(buf, limOpts)
		if err != nil {
			return nil, err
		}

		remeasured := MeasureIntegratedLUFS(buf)
		peakDB := MeasureTruePeakDB(buf.Data, opts.Oversample)
		logger.Debug("normalize iteration",
			zap.Int("pass", i+1),
			zap.Float64("lufs", remeasured),
			zap.Float64("true_peak_dbtp", peakDB),
		)
		if math.Abs(remeasured-opts.TargetLUFS) <= opts.ToleranceLU &&
			peakDB <= opts.CeilingDBTP+opts.ToleranceLU {
			break
		}
	}
	return buf, nil
}

func applyGain(buf *audio.Buffer, gain float64) {
	g := float32(gain)
	for _, ch := range buf.Data {
		for i := range ch {
			ch[i] *= g
		}
	}
}
