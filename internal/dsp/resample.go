package dsp

import (
	"fmt"

	"github.com/evenfall/drift/internal/audio"
)

// workRate is the internal sample rate of the loudness pipeline. All
// measurement and limiting happens at this rate.
const workRate = 44100

// Resample converts a buffer to dstRate using cubic interpolation per
// channel. The channel count is preserved. When downsampling, a one-pole
// low-pass tames aliasing before interpolation.
func Resample(src *audio.Buffer, dstRate int) (*audio.Buffer, error) {
	if src.Empty() {
		return nil, ErrEmptyBuffer
	}
	if dstRate <= 0 || src.SampleRate <= 0 {
		return nil, fmt.Errorf("%w: %d -> %d Hz", ErrConverterInit, src.SampleRate, dstRate)
	}
	if src.SampleRate == dstRate {
		return src, nil
	}

	ratio := float64(src.SampleRate) / float64(dstRate)
	srcFrames := src.Frames()
	dstFrames := int(float64(srcFrames) / ratio)
	if dstFrames < 1 {
		dstFrames = 1
	}

	out := audio.NewBuffer(src.Channels(), dstFrames, dstRate)
	for ch := range src.Data {
		in := src.Data[ch]
		if ratio > 1 {
			in = lowpass(in, ratio)
		}
		resampleChannel(in, out.Data[ch], ratio)
	}
	return out, nil
}

// resampleChannel fills dst by cubic interpolation over four source
// frames around each fractional position.
func resampleChannel(src, dst []float32, ratio float64) {
	n := len(src)
	at := func(i int) float32 {
		if i < 0 {
			i = 0
		}
		if i >= n {
			i = n - 1
		}
		return src[i]
	}
	pos := 0.0
	for i := range dst {
		idx := int(pos)
		frac := float32(pos - float64(idx))
		dst[i] = cubicInterpolate(at(idx-1), at(idx), at(idx+1), at(idx+2), frac)
		pos += ratio
	}
}

// cubicInterpolate evaluates a Catmull-Rom segment between y1 and y2 at
// fractional position t.
func cubicInterpolate(y0, y1, y2, y3, t float32) float32 {
	a := -0.5*y0 + 1.5*y1 - 1.5*y2 + 0.5*y3
	b := y0 - 2.5*y1 + 2*y2 - 0.5*y3
	c := -0.5*y0 + 0.5*y2
	d := y1
	return ((a*t+b)*t+c)*t + d
}

// lowpass runs a forward one-pole filter sized to the decimation ratio.
func lowpass(src []float32, ratio float64) []float32 {
	alpha := float32(1 / ratio)
	if alpha > 1 {
		alpha = 1
	}
	out := make([]float32, len(src))
	var state float32
	for i, s := range src {
		state += alpha * (s - state)
		out[i] = state
	}
	return out
}
