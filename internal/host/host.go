// Package host abstracts the platform audio stack: a node graph with
// player and mixer nodes, and a process-wide audio session. The engine
// talks only to these interfaces; beephost provides the speaker-backed
// implementation and mock.go the test double.
package host

import (
	"time"

	"github.com/evenfall/drift/internal/audio"
)

// NodeID names the player/mixer pairs the graph exposes.
type NodeID int

const (
	NodeSlotA NodeID = iota
	NodeSlotB
	NodeOverlay
	NodeSFX
)

// String returns the node name.
func (n NodeID) String() string {
	switch n {
	case NodeSlotA:
		return "slotA"
	case NodeSlotB:
		return "slotB"
	case NodeOverlay:
		return "overlay"
	case NodeSFX:
		return "sfx"
	default:
		return "unknown"
	}
}

// Player is one player node in the graph.
//
// ScheduleBuffer queues the region of buf starting at offsetFrames; the
// onPlayed callback fires when the scheduled data has fully played out.
// Callbacks arrive on the host's render thread: implementations must
// treat them as fire-and-forget and callers must re-post them onto
// their own goroutine before touching any state.
type Player interface {
	ScheduleBuffer(buf *audio.Buffer, offsetFrames int, onPlayed func())
	// Play starts rendering immediately.
	Play()
	// PlayAt starts rendering at the given output sample time, so two
	// players can be phase-locked to the same timeline.
	PlayAt(sample int64)
	Pause()
	Resume()
	// Stop halts rendering and drops scheduled data. Pending onPlayed
	// callbacks may still fire afterwards; callers filter them with
	// generation tokens.
	Stop()
	// Reset clears decoder/render state after a stop.
	Reset()
	IsPlaying() bool
	// RenderedFrames reports frames rendered since the last schedule,
	// in the graph's output rate.
	RenderedFrames() int64
}

// Mixer is a volume node. Volumes are linear in [0,1].
type Mixer interface {
	Volume() float64
	SetVolume(v float64)
}

// Graph is the node graph: two crossfade slots, an overlay pair and an
// SFX pair, each player feeding its own mixer into the main mixer.
type Graph interface {
	// Setup attaches and connects all nodes. Idempotent.
	Setup() error
	Start() error
	Stop()
	Running() bool
	Player(id NodeID) Player
	Mixer(id NodeID) Mixer
	MainMixer() Mixer
	// SampleRate is the graph's output render rate in Hz.
	SampleRate() int
	// LastRenderTime is the current output sample time, used to anchor
	// phase-locked starts.
	LastRenderTime() int64
}

// Session is the process-wide audio session.
type Session interface {
	SetCategory(c Category, opts CategoryOptions) error
	Category() Category
	CategoryOptions() CategoryOptions
	SetPreferredSampleRate(hz float64) error
	SetPreferredIOBufferDuration(d time.Duration) error
	SetActive(active bool) error
	IsActive() bool
	// Events delivers interruption, route-change and reset
	// notifications. The channel is owned by the host and closed when
	// the session is torn down.
	Events() <-chan Event
}
