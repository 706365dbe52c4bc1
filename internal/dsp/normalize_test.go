package dsp

import (
	"math"
	"testing"

	"github.com/evenfall/drift/internal/audio"
)

func TestNormalize_ReachesTarget(t *testing.T) {
	// A quiet tone has headroom, so the target must be reached within
	// tolerance.
	buf := sineBuffer(997, 0.05, 5, workRate)
	opts := DefaultNormalizeOptions()
	opts.TargetLUFS = -20

	out, err := Normalize(buf, opts)
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	got := MeasureIntegratedLUFS(out)
	if math.Abs(got-opts.TargetLUFS) > 0.5 {
		t.Errorf("LUFS = %v, want %v +- 0.5", got, opts.TargetLUFS)
	}
}

func TestNormalize_CeilingHonored(t *testing.T) {
	// Hot input sine at 0.99 linear, target -16 LUFS, ceiling -1 dBTP:
	// post-normalize true peak must stay within 0.1 dB of the ceiling.
	buf := sineBuffer(997, 0.99, 5, workRate)
	opts := DefaultNormalizeOptions()

	out, err := Normalize(buf, opts)
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	peakDB := MeasureTruePeakDB(out.Data, opts.Oversample)
	if peakDB > opts.CeilingDBTP+0.1 {
		t.Errorf("true peak = %v dBTP, want <= %v + 0.1", peakDB, opts.CeilingDBTP)
	}
}

func TestNormalize_ResamplesToWorkRate(t *testing.T) {
	buf := sineBuffer(997, 0.2, 3, 48000)
	out, err := Normalize(buf, DefaultNormalizeOptions())
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if out.SampleRate != workRate {
		t.Errorf("rate = %d, want %d", out.SampleRate, workRate)
	}
}

func TestNormalize_SilencePassesThrough(t *testing.T) {
	buf := audio.NewBuffer(1, workRate, workRate)
	out, err := Normalize(buf, DefaultNormalizeOptions())
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	for _, s := range out.Data[0][:100] {
		if s != 0 {
			t.Fatal("silence should not be amplified")
		}
	}
}

func TestNormalize_EmptyBuffer(t *testing.T) {
	_, err := Normalize(&audio.Buffer{SampleRate: workRate}, DefaultNormalizeOptions())
	if err != ErrEmptyBuffer {
		t.Errorf("err = %v, want ErrEmptyBuffer", err)
	}
}

func TestNormalize_DoesNotMutateInput(t *testing.T) {
	buf := sineBuffer(997, 0.3, 1, workRate)
	before := make([]float32, 100)
	copy(before, buf.Data[0][:100])

	if _, err := Normalize(buf, DefaultNormalizeOptions()); err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	for i, s := range before {
		if buf.Data[0][i] != s {
			t.Fatal("input buffer was mutated")
		}
	}
}

func TestNormalize_MalformedChannels(t *testing.T) {
	buf := &audio.Buffer{
		Data:       [][]float32{make([]float32, 100), make([]float32, 50)},
		SampleRate: workRate,
	}
	if _, err := Normalize(buf, DefaultNormalizeOptions()); err != ErrUnsupportedFormat {
		t.Errorf("err = %v, want ErrUnsupportedFormat", err)
	}
}
