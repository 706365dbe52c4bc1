// Package playlist holds the ordered track sequence and its cursor,
// with pure peeks and repeat-mode-aware advancing.
package playlist

import (
	"sync"

	"github.com/evenfall/drift/internal/audio"
)

// RepeatMode defines what happens at sequence boundaries.
type RepeatMode int

const (
	RepeatOff RepeatMode = iota
	RepeatSingleTrack
	RepeatPlaylist
)

// String returns the mode name.
func (m RepeatMode) String() string {
	switch m {
	case RepeatSingleTrack:
		return "singleTrack"
	case RepeatPlaylist:
		return "playlist"
	default:
		return "off"
	}
}

// Playlist is safe for concurrent use.
type Playlist struct {
	mu     sync.RWMutex
	tracks []audio.Track
	cursor int
	mode   RepeatMode
}

// New creates a playlist over the given tracks with the cursor at 0.
func New(tracks []audio.Track) *Playlist {
	p := &Playlist{}
	p.Replace(tracks)
	return p
}

// Replace swaps the sequence and resets the cursor to 0.
func (p *Playlist) Replace(tracks []audio.Track) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.tracks = make([]audio.Track, len(tracks))
	copy(p.tracks, tracks)
	p.cursor = 0
}

// Len returns the number of tracks.
func (p *Playlist) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.tracks)
}

// Empty reports whether the sequence has no tracks.
func (p *Playlist) Empty() bool {
	return p.Len() == 0
}

// SetRepeatMode changes the boundary behavior.
func (p *Playlist) SetRepeatMode(m RepeatMode) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.mode = m
}

// RepeatMode returns the current mode.
func (p *Playlist) RepeatMode() RepeatMode {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.mode
}

// Current returns the track under the cursor.
func (p *Playlist) Current() (audio.Track, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if len(p.tracks) == 0 {
		return audio.Track{}, false
	}
	return p.tracks[p.cursor], true
}

// CursorIndex returns the cursor position.
func (p *Playlist) CursorIndex() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.cursor
}

// PeekNext returns the track an advance would land on, without moving
// the cursor.
func (p *Playlist) PeekNext() (audio.Track, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	idx, ok := p.nextIndexLocked()
	if !ok {
		return audio.Track{}, false
	}
	return p.tracks[idx], true
}

// PeekPrevious returns the track a retreat would land on, without
// moving the cursor.
func (p *Playlist) PeekPrevious() (audio.Track, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	idx, ok := p.previousIndexLocked()
	if !ok {
		return audio.Track{}, false
	}
	return p.tracks[idx], true
}

// AdvanceNext moves the cursor forward per the repeat mode and returns
// the new current track. At the end with RepeatOff it reports false and
// leaves the cursor in place.
func (p *Playlist) AdvanceNext() (audio.Track, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	idx, ok := p.nextIndexLocked()
	if !ok {
		return audio.Track{}, false
	}
	p.cursor = idx
	return p.tracks[idx], true
}

// AdvancePrevious moves the cursor backward per the repeat mode.
func (p *Playlist) AdvancePrevious() (audio.Track, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	idx, ok := p.previousIndexLocked()
	if !ok {
		return audio.Track{}, false
	}
	p.cursor = idx
	return p.tracks[idx], true
}

// JumpTo moves the cursor to an absolute index.
func (p *Playlist) JumpTo(index int) (audio.Track, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if index < 0 || index >= len(p.tracks) {
		return audio.Track{}, false
	}
	p.cursor = index
	return p.tracks[index], true
}

// UpdateCurrent stores loaded format/metadata back onto the track under
// the cursor.
func (p *Playlist) UpdateCurrent(t audio.Track) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.tracks) == 0 {
		return
	}
	if p.tracks[p.cursor].URI == t.URI {
		p.tracks[p.cursor] = t
	}
}

// Tracks returns a copy of the sequence.
func (p *Playlist) Tracks() []audio.Track {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]audio.Track, len(p.tracks))
	copy(out, p.tracks)
	return out
}

func (p *Playlist) nextIndexLocked() (int, bool) {
	n := len(p.tracks)
	if n == 0 {
		return 0, false
	}
	switch p.mode {
	case RepeatSingleTrack:
		return p.cursor, true
	case RepeatPlaylist:
		return (p.cursor + 1) % n, true
	default:
		if p.cursor+1 >= n {
			return 0, false
		}
		return p.cursor + 1, true
	}
}

func (p *Playlist) previousIndexLocked() (int, bool) {
	n := len(p.tracks)
	if n == 0 {
		return 0, false
	}
	switch p.mode {
	case RepeatSingleTrack:
		return p.cursor, true
	case RepeatPlaylist:
		return (p.cursor - 1 + n) % n, true
	default:
		if p.cursor-1 < 0 {
			return 0, false
		}
		return p.cursor - 1, true
	}
}
