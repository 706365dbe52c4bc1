package audio

import "time"

// Track identifies one playable item. URI and the user metadata are
// immutable; the format fields are filled in when the file is first
// decoded.
type Track struct {
	URI string

	// Optional metadata supplied by the embedder or read from tags.
	Title  string
	Artist string
	Album  string

	// Filled on load.
	Duration   time.Duration
	SampleRate int
	Channels   int
}

// Loaded reports whether the track carries format information yet.
func (t Track) Loaded() bool {
	return t.Duration > 0 && t.SampleRate > 0
}

// WithFormat returns a copy of the track augmented with the decoded
// buffer's format.
func (t Track) WithFormat(b *Buffer) Track {
	t.Duration = b.Duration()
	t.SampleRate = b.SampleRate
	t.Channels = b.Channels()
	return t
}
