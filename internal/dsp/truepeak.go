package dsp

import "math"

// True-peak metering approximates inter-sample peaks by oversampling
// with a polyphase windowed-sinc interpolator and taking the absolute
// maximum of the upsampled signal.

// interpTaps is the per-phase FIR length of the oversampling filter.
const interpTaps = 12

// oversampler interpolates a channel by an integer factor using a
// windowed-sinc polyphase filter bank.
type oversampler struct {
	factor int
	phases [][]float64
}

func newOversampler(factor int) *oversampler {
	if factor < 1 {
		factor = 1
	}
	o := &oversampler{factor: factor}
	o.phases = make([][]float64, factor)
	// Hann-windowed sinc, cut at the original Nyquist.
	half := interpTaps / 2
	total := interpTaps * factor
	for p := 0; p < factor; p++ {
		o.phases[p] = make([]float64, interpTaps)
		for t := 0; t < interpTaps; t++ {
			// Position of this tap in original-sample units.
			x := float64(t-half) + float64(p)/float64(factor)
			win := 0.5 * (1 + math.Cos(2*math.Pi*(float64(t*factor+p)-float64(total)/2)/float64(total)))
			o.phases[p][t] = sinc(x) * win
		}
	}
	return o
}

func sinc(x float64) float64 {
	if x == 0 {
		return 1
	}
	return math.Sin(math.Pi*x) / (math.Pi * x)
}

// upsample returns the signal at factor times the input rate.
func (o *oversampler) upsample(src []float32) []float64 {
	if o.factor == 1 {
		out := make([]float64, len(src))
		for i, s := range src {
			out[i] = float64(s)
		}
		return out
	}
	half := interpTaps / 2
	at := func(i int) float64 {
		if i < 0 || i >= len(src) {
			return 0
		}
		return float64(src[i])
	}
	out := make([]float64, len(src)*o.factor)
	for i := range src {
		for p := 0; p < o.factor; p++ {
			taps := o.phases[p]
			acc := 0.0
			for t := 0; t < interpTaps; t++ {
				acc += at(i+t-half) * taps[t]
			}
			out[i*o.factor+p] = acc
		}
	}
	return out
}

// downsample decimates by the oversampling factor, picking every
// factor-th sample. The limiter's gain curve is band-limited by its
// attack/release smoothing, so plain decimation suffices here.
func (o *oversampler) downsample(src []float64) []float32 {
	if o.factor == 1 {
		out := make([]float32, len(src))
		for i, s := range src {
			out[i] = float32(s)
		}
		return out
	}
	out := make([]float32, len(src)/o.factor)
	for i := range out {
		out[i] = float32(src[i*o.factor])
	}
	return out
}

// MeasureTruePeak returns the linear true peak of the buffer, measured
// on a factor-times oversampled signal across all channels.
func MeasureTruePeak(data [][]float32, factor int) float64 {
	o := newOversampler(factor)
	peak := 0.0
	for _, ch := range data {
		for _, s := range o.upsample(ch) {
			if a := math.Abs(s); a > peak {
				peak = a
			}
		}
	}
	return peak
}

// MeasureTruePeakDB returns the true peak in dBTP.
func MeasureTruePeakDB(data [][]float32, factor int) float64 {
	return linearToDB(MeasureTruePeak(data, factor))
}

func linearToDB(v float64) float64 {
	if v <= 0 {
		return math.Inf(-1)
	}
	return 20 * math.Log10(v)
}

func dbToLinear(db float64) float64 {
	return math.Pow(10, db/20)
}
