package playback

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyPlaylist is returned by start when no tracks are loaded.
	ErrEmptyPlaylist = errors.New("playback: playlist is empty")
	// ErrNoNextTrack is returned by skipToNext at the end with repeat
	// off.
	ErrNoNextTrack = errors.New("playback: no next track")
	// ErrNoPreviousTrack is returned by skipToPrevious at the start.
	ErrNoPreviousTrack = errors.New("playback: no previous track")
	// ErrRateLimited is returned when skips arrive faster than the
	// minimum interval or while another skip is in flight.
	ErrRateLimited = errors.New("playback: skip rate limited")
)

// InvalidStateError reports a guard violation in the facade state
// machine.
type InvalidStateError struct {
	Current   State
	Attempted string
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("playback: cannot %s in state %s", e.Attempted, e.Current)
}

// InvalidConfigurationError reports a rejected configuration.
type InvalidConfigurationError struct {
	Reason string
}

func (e *InvalidConfigurationError) Error() string {
	return fmt.Sprintf("playback: invalid configuration: %s", e.Reason)
}
