package dsp

import "math"

// K-weighting per ITU-R BS.1770: a high-shelf boost followed by an RLB
// high-pass, realized as two cascaded biquads with coefficients derived
// for the buffer's sample rate.

const (
	shelfFreq = 1681.9744509555319
	shelfGain = 3.999843853973347
	shelfQ    = 0.7071752369554196

	highpassFreq = 38.13547087602444
	highpassQ    = 0.5003270373238773
)

type biquad struct {
	b0, b1, b2 float64
	a1, a2     float64
	z1, z2     float64
}

// process runs the filter over one sample (transposed direct form II).
func (f *biquad) process(x float64) float64 {
	y := f.b0*x + f.z1
	f.z1 = f.b1*x - f.a1*y + f.z2
	f.z2 = f.b2*x - f.a2*y
	return y
}

// newShelf builds the BS.1770 high-shelf stage for the given rate.
func newShelf(sampleRate int) *biquad {
	k := math.Tan(math.Pi * shelfFreq / float64(sampleRate))
	vh := math.Pow(10, shelfGain/20)
	vb := math.Pow(vh, 0.4996667741545416)
	a0 := 1 + k/shelfQ + k*k
	return &biquad{
		b0: (vh + vb*k/shelfQ + k*k) / a0,
		b1: 2 * (k*k - vh) / a0,
		b2: (vh - vb*k/shelfQ + k*k) / a0,
		a1: 2 * (k*k - 1) / a0,
		a2: (1 - k/shelfQ + k*k) / a0,
	}
}

// newHighpass builds the RLB high-pass stage for the given rate.
func newHighpass(sampleRate int) *biquad {
	k := math.Tan(math.Pi * highpassFreq / float64(sampleRate))
	a0 := 1 + k/highpassQ + k*k
	return &biquad{
		b0: 1,
		b1: -2,
		b2: 1,
		a1: 2 * (k*k - 1) / a0,
		a2: (1 - k/highpassQ + k*k) / a0,
	}
}

// kWeight filters one channel through shelf + high-pass into a new
// slice and returns it; the input samples are left untouched.
func kWeight(samples []float32, sampleRate int) []float64 {
	shelf := newShelf(sampleRate)
	hp := newHighpass(sampleRate)
	out := make([]float64, len(samples))
	for i, s := range samples {
		out[i] = hp.process(shelf.process(float64(s)))
	}
	return out
}
