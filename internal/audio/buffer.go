// Package audio holds the PCM buffer and track model shared by the
// decoder, the cache, the DSP kernel and the engine.
package audio

import "time"

// Buffer is a fully decoded PCM signal: float32, non-interleaved, one
// slice per channel. Buffers are produced once per URI and shared
// read-only between the cache, the engine slots and the overlay.
type Buffer struct {
	// Data holds one sample slice per channel. All channels have the
	// same length.
	Data [][]float32
	// SampleRate in Hz.
	SampleRate int
}

// Channels returns the channel count.
func (b *Buffer) Channels() int {
	return len(b.Data)
}

// Frames returns the number of frames (samples per channel).
func (b *Buffer) Frames() int {
	if len(b.Data) == 0 {
		return 0
	}
	return len(b.Data[0])
}

// Duration returns the play time of the buffer.
func (b *Buffer) Duration() time.Duration {
	if b.SampleRate <= 0 {
		return 0
	}
	return time.Duration(float64(b.Frames()) / float64(b.SampleRate) * float64(time.Second))
}

// Empty reports whether the buffer holds no frames.
func (b *Buffer) Empty() bool {
	return b.Frames() == 0
}

// Clone returns a deep copy. The DSP kernel works on clones so shared
// cache entries are never mutated in place.
func (b *Buffer) Clone() *Buffer {
	out := &Buffer{
		Data:       make([][]float32, len(b.Data)),
		SampleRate: b.SampleRate,
	}
	for ch, src := range b.Data {
		out.Data[ch] = make([]float32, len(src))
		copy(out.Data[ch], src)
	}
	return out
}

// NewBuffer allocates a zeroed buffer with the given shape.
func NewBuffer(channels, frames, sampleRate int) *Buffer {
	b := &Buffer{
		Data:       make([][]float32, channels),
		SampleRate: sampleRate,
	}
	for ch := range b.Data {
		b.Data[ch] = make([]float32, frames)
	}
	return b
}
