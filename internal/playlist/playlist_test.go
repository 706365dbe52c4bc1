package playlist

import (
	"testing"

	"github.com/evenfall/drift/internal/audio"
)

func tracks(uris ...string) []audio.Track {
	out := make([]audio.Track, len(uris))
	for i, u := range uris {
		out[i] = audio.Track{URI: u}
	}
	return out
}

func TestNew_CursorAtZero(t *testing.T) {
	p := New(tracks("a", "b", "c"))
	cur, ok := p.Current()
	if !ok || cur.URI != "a" {
		t.Errorf("Current() = %v, %v; want a", cur.URI, ok)
	}
	if p.CursorIndex() != 0 {
		t.Errorf("cursor = %d, want 0", p.CursorIndex())
	}
}

func TestEmpty(t *testing.T) {
	p := New(nil)
	if !p.Empty() {
		t.Error("Empty() = false for empty playlist")
	}
	if _, ok := p.Current(); ok {
		t.Error("Current() reported ok on empty playlist")
	}
	if _, ok := p.AdvanceNext(); ok {
		t.Error("AdvanceNext() reported ok on empty playlist")
	}
}

func TestPeek_DoesNotMoveCursor(t *testing.T) {
	p := New(tracks("a", "b", "c"))
	next, ok := p.PeekNext()
	if !ok || next.URI != "b" {
		t.Errorf("PeekNext() = %v, %v; want b", next.URI, ok)
	}
	if p.CursorIndex() != 0 {
		t.Error("peek moved the cursor")
	}
	if _, ok := p.PeekPrevious(); ok {
		t.Error("PeekPrevious at start with RepeatOff should report false")
	}
}

func TestAdvance_RepeatOff(t *testing.T) {
	p := New(tracks("a", "b"))

	got, ok := p.AdvanceNext()
	if !ok || got.URI != "b" {
		t.Fatalf("AdvanceNext() = %v, %v; want b", got.URI, ok)
	}
	if _, ok := p.AdvanceNext(); ok {
		t.Error("AdvanceNext at end with RepeatOff should report false")
	}
	if p.CursorIndex() != 1 {
		t.Error("failed advance moved the cursor")
	}
}

func TestAdvance_RepeatPlaylistWraps(t *testing.T) {
	p := New(tracks("a", "b"))
	p.SetRepeatMode(RepeatPlaylist)

	p.AdvanceNext() // b
	got, ok := p.AdvanceNext()
	if !ok || got.URI != "a" {
		t.Errorf("wrap AdvanceNext() = %v, %v; want a", got.URI, ok)
	}

	got, ok = p.AdvancePrevious()
	if !ok || got.URI != "b" {
		t.Errorf("wrap AdvancePrevious() = %v, %v; want b", got.URI, ok)
	}
}

func TestAdvance_RepeatSingleTrack(t *testing.T) {
	p := New(tracks("a", "b"))
	p.SetRepeatMode(RepeatSingleTrack)

	got, ok := p.AdvanceNext()
	if !ok || got.URI != "a" {
		t.Errorf("AdvanceNext() = %v, %v; want same track a", got.URI, ok)
	}
	got, ok = p.AdvancePrevious()
	if !ok || got.URI != "a" {
		t.Errorf("AdvancePrevious() = %v, %v; want same track a", got.URI, ok)
	}
}

func TestJumpTo(t *testing.T) {
	p := New(tracks("a", "b", "c"))
	got, ok := p.JumpTo(2)
	if !ok || got.URI != "c" {
		t.Errorf("JumpTo(2) = %v, %v; want c", got.URI, ok)
	}
	if _, ok := p.JumpTo(7); ok {
		t.Error("JumpTo out of range should report false")
	}
	if p.CursorIndex() != 2 {
		t.Error("failed jump moved the cursor")
	}
}

func TestReplace_ResetsCursor(t *testing.T) {
	p := New(tracks("a", "b", "c"))
	p.JumpTo(2)
	p.Replace(tracks("x", "y"))
	cur, ok := p.Current()
	if !ok || cur.URI != "x" {
		t.Errorf("Current() after replace = %v, %v; want x", cur.URI, ok)
	}
	if p.Len() != 2 {
		t.Errorf("Len() = %d, want 2", p.Len())
	}
}

func TestUpdateCurrent_MatchesURI(t *testing.T) {
	p := New(tracks("a", "b"))
	p.UpdateCurrent(audio.Track{URI: "a", Title: "Rain"})
	cur, _ := p.Current()
	if cur.Title != "Rain" {
		t.Errorf("title = %q, want Rain", cur.Title)
	}
	// Mismatched URI is ignored.
	p.UpdateCurrent(audio.Track{URI: "zzz", Title: "Nope"})
	cur, _ = p.Current()
	if cur.Title != "Rain" {
		t.Error("mismatched UpdateCurrent overwrote the track")
	}
}
