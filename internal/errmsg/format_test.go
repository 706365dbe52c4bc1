package errmsg

import (
	"errors"
	"testing"
)

func TestFormat(t *testing.T) {
	err := errors.New("device busy")
	got := Format(OpPlaybackStart, err)
	want := "Failed to start playback: device busy"
	if got != want {
		t.Errorf("Format() = %q, want %q", got, want)
	}
}

func TestFormat_NilError(t *testing.T) {
	if got := Format(OpPlaybackStart, nil); got != "" {
		t.Errorf("Format(nil) = %q, want empty", got)
	}
}

func TestFormatWith(t *testing.T) {
	err := errors.New("no such file")
	got := FormatWith(OpFileLoad, "/music/rain.flac", err)
	want := "Failed to load audio file '/music/rain.flac': no such file"
	if got != want {
		t.Errorf("FormatWith() = %q, want %q", got, want)
	}
}

func TestFormatWith_EmptyContext(t *testing.T) {
	err := errors.New("boom")
	if got, want := FormatWith(OpFileLoad, "", err), Format(OpFileLoad, err); got != want {
		t.Errorf("FormatWith(empty) = %q, want %q", got, want)
	}
}
