// Package errmsg provides consistent error formatting for user-facing messages.
package errmsg

import "fmt"

// Op represents an operation that can fail.
type Op string

// Operation constants - grouped by domain.
const (
	// Playback operations
	OpPlaybackStart  Op = "start playback"
	OpPlaybackPause  Op = "pause playback"
	OpPlaybackResume Op = "resume playback"
	OpPlaybackStop   Op = "stop playback"
	OpPlaybackFinish Op = "finish playback"
	OpPlaybackSeek   Op = "seek"
	OpPlaybackSkip   Op = "skip"

	// Transition operations
	OpCrossfade         Op = "crossfade to next track"
	OpCrossfadeResume   Op = "resume paused crossfade"
	OpCrossfadeRollback Op = "roll back crossfade"

	// Playlist operations
	OpPlaylistLoad    Op = "load playlist"
	OpPlaylistReplace Op = "replace playlist"
	OpPlaylistAdvance Op = "advance playlist"

	// File operations
	OpFileLoad    Op = "load audio file"
	OpFilePreload Op = "preload audio file"

	// Overlay operations
	OpOverlayPlay    Op = "play overlay"
	OpOverlayStop    Op = "stop overlay"
	OpOverlayReplace Op = "replace overlay file"

	// Sound effect operations
	OpEffectPlay    Op = "play sound effect"
	OpEffectPreload Op = "preload sound effects"

	// Session operations
	OpSessionConfigure Op = "configure audio session"
	OpSessionActivate  Op = "activate audio session"
	OpSessionRecover   Op = "recover from media services reset"

	// Engine operations
	OpEngineSetup Op = "set up audio engine"
	OpEngineStart Op = "start audio engine"

	// Configuration
	OpConfigure Op = "update configuration"
)

// Format creates a user-friendly error message.
func Format(op Op, err error) string {
	if err == nil {
		return ""
	}
	return fmt.Sprintf("Failed to %s: %v", op, err)
}

// FormatWith creates an error message with additional context.
func FormatWith(op Op, context string, err error) string {
	if err == nil {
		return ""
	}
	if context == "" {
		return Format(op, err)
	}
	return fmt.Sprintf("Failed to %s '%s': %v", op, context, err)
}
