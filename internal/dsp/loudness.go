package dsp

import (
	"math"

	"github.com/evenfall/drift/internal/audio"
)

const (
	// Gating block geometry per BS.1770-4: 400 ms blocks advanced in
	// 100 ms steps (75% overlap).
	blockDur = 0.400
	stepDur  = 0.100

	// absoluteGateLUFS excludes silence from the integrated average.
	absoluteGateLUFS = -70.0
	// relativeGateLU is subtracted from the ungated mean for the second
	// gating pass.
	relativeGateLU = 10.0

	// energyToLUFSOffset is the -0.691 dB constant of the LKFS formula.
	energyToLUFSOffset = -0.691
)

// SilenceLUFS is reported when no block survives the absolute gate.
var SilenceLUFS = math.Inf(-1)

// channelWeight returns the BS.1770 per-channel weight for channel index
// ch in a layout of n channels: L, R, C at 1.0, LFE muted, surrounds at
// 1.41. Layout order is assumed L R C [LFE] Ls Rs.
func channelWeight(ch, n int) float64 {
	if n <= 3 {
		return 1.0
	}
	switch ch {
	case 0, 1, 2:
		return 1.0
	case 3:
		if n == 5 {
			// L R C Ls Rs: no LFE, index 3 is the left surround.
			return 1.41
		}
		return 0.0
	default:
		return 1.41
	}
}

// MeasureIntegratedLUFS computes gated integrated loudness. The buffer
// is measured at its own rate; callers that need the canonical pipeline
// resample to workRate first. Returns SilenceLUFS when nothing survives
// the absolute gate.
func MeasureIntegratedLUFS(buf *audio.Buffer) float64 {
	if buf.Empty() || buf.SampleRate <= 0 {
		return SilenceLUFS
	}

	weighted := make([][]float64, buf.Channels())
	for ch := range buf.Data {
		weighted[ch] = kWeight(buf.Data[ch], buf.SampleRate)
	}

	blockFrames := int(blockDur * float64(buf.SampleRate))
	stepFrames := int(stepDur * float64(buf.SampleRate))
	frames := buf.Frames()

	// Shorter than one gating window: ungated whole-signal mean.
	if frames < blockFrames {
		e := weightedEnergy(weighted, buf.Channels(), 0, frames)
		return energyToLUFS(e)
	}

	var blocks []float64
	for start := 0; start+blockFrames <= frames; start += stepFrames {
		blocks = append(blocks, weightedEnergy(weighted, buf.Channels(), start, blockFrames))
	}

	// Absolute gate.
	var surviving []float64
	for _, e := range blocks {
		if energyToLUFS(e) > absoluteGateLUFS {
			surviving = append(surviving, e)
		}
	}
	if len(surviving) == 0 {
		return SilenceLUFS
	}

	// Relative gate at (ungated mean - 10 LU).
	mean := 0.0
	for _, e := range surviving {
		mean += e
	}
	mean /= float64(len(surviving))
	threshold := energyToLUFS(mean) - relativeGateLU

	sum, count := 0.0, 0
	for _, e := range surviving {
		if energyToLUFS(e) > threshold {
			sum += e
			count++
		}
	}
	if count == 0 {
		return SilenceLUFS
	}
	return energyToLUFS(sum / float64(count))
}

// weightedEnergy computes the channel-weighted mean square of a span.
func weightedEnergy(weighted [][]float64, channels, start, length int) float64 {
	total := 0.0
	for ch := 0; ch < channels; ch++ {
		w := channelWeight(ch, channels)
		if w == 0 {
			continue
		}
		sum := 0.0
		for _, s := range weighted[ch][start : start+length] {
			sum += s * s
		}
		total += w * sum / float64(length)
	}
	return total
}

func energyToLUFS(e float64) float64 {
	if e <= 0 {
		return SilenceLUFS
	}
	return energyToLUFSOffset + 10*math.Log10(e)
}
