// Package engine owns the dual-player node graph: slot A/B players and
// mixers, schedule generations for natural-end detection, fade
// primitives and the crossfade plumbing driven by the orchestrator.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/evenfall/drift/internal/audio"
	"github.com/evenfall/drift/internal/cache"
	"github.com/evenfall/drift/internal/fade"
	"github.com/evenfall/drift/internal/host"
	"github.com/evenfall/drift/internal/logger"
	"go.uber.org/zap"
)

// Slot identifies one of the two crossfade player+mixer pairs.
type Slot int

const (
	SlotA Slot = iota
	SlotB
)

// String returns the slot name.
func (s Slot) String() string {
	if s == SlotB {
		return "B"
	}
	return "A"
}

// Other returns the opposite slot.
func (s Slot) Other() Slot {
	if s == SlotA {
		return SlotB
	}
	return SlotA
}

func (s Slot) nodeID() host.NodeID {
	if s == SlotB {
		return host.NodeSlotB
	}
	return host.NodeSlotA
}

// ErrCancelled is returned by fades and crossfades interrupted by
// rollback, fast-forward or pause.
var ErrCancelled = errors.New("engine: operation cancelled")

// ErrNotRunning is returned when a primitive needs a started engine.
var ErrNotRunning = errors.New("engine: not running")

// ErrNoTrackLoaded is returned when a slot has no buffer to schedule.
var ErrNoTrackLoaded = errors.New("engine: no track loaded in slot")

// StartError wraps graph prepare/start failures.
type StartError struct {
	Reason string
}

func (e *StartError) Error() string {
	return fmt.Sprintf("engine start failed: %s", e.Reason)
}

// syncLeadSamples is how far ahead of lastRenderTime the inactive
// player is anchored for a phase-locked crossfade start.
const syncLeadSamples = 8192

// completion is one host player-completion callback, converted to a
// value at the render-thread boundary.
type completion struct {
	slot Slot
	gen  uint64
}

type slotState struct {
	player host.Player
	mixer  host.Mixer
	track  audio.Track
	buf    *audio.Buffer
	// generation is bumped on every stop/seek/schedule; completion
	// callbacks carrying a stale generation are discarded.
	generation uint64
	// offsetFrames is the scheduled start offset in file-rate frames.
	offsetFrames int
	loaded       bool
}

// Engine methods are mutually exclusive on mu; fade loops release the
// lock while sleeping so control primitives can interleave.
type Engine struct {
	mu    sync.Mutex
	graph host.Graph
	cache *cache.Cache

	slots  [2]*slotState
	active Slot

	targetVolume float64
	running      bool
	paused       bool

	crossfading        atomic.Bool
	crossfadeCancelled atomic.Bool
	fadeInCancel       context.CancelFunc

	completions chan completion
	naturalEnd  chan Slot
	closeOnce   sync.Once
	closed      chan struct{}
}

// New creates an engine over the graph. Buffers come from the cache.
func New(graph host.Graph, c *cache.Cache) *Engine {
	e := &Engine{
		graph:        graph,
		cache:        c,
		targetVolume: 1.0,
		completions:  make(chan completion, 8),
		naturalEnd:   make(chan Slot, 4),
		closed:       make(chan struct{}),
	}
	e.slots[SlotA] = &slotState{player: graph.Player(host.NodeSlotA), mixer: graph.Mixer(host.NodeSlotA)}
	e.slots[SlotB] = &slotState{player: graph.Player(host.NodeSlotB), mixer: graph.Mixer(host.NodeSlotB)}
	go e.filterCompletions()
	return e
}

// Setup attaches and connects the graph and sets initial volumes: both
// slots and the overlay at 0, main at 1.
func (e *Engine) Setup() error {
	if err := e.graph.Setup(); err != nil {
		return &StartError{Reason: err.Error()}
	}
	e.slots[SlotA].mixer.SetVolume(0)
	e.slots[SlotB].mixer.SetVolume(0)
	e.graph.Mixer(host.NodeOverlay).SetVolume(0)
	e.graph.MainMixer().SetVolume(1)
	return nil
}

// Start starts the graph.
func (e *Engine) Start() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.running {
		return nil
	}
	if err := e.graph.Start(); err != nil {
		return &StartError{Reason: err.Error()}
	}
	e.running = true
	return nil
}

// Stop halts the engine: both slot generations are bumped first so any
// in-flight completion callbacks turn stale, then both players stop.
func (e *Engine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.cancelFadeInLocked()
	for _, s := range e.slots {
		s.generation++
		s.player.Stop()
		s.mixer.SetVolume(0)
		s.offsetFrames = 0
	}
	e.graph.Stop()
	e.running = false
	e.paused = false
}

// Close releases the completion filter goroutine.
func (e *Engine) Close() {
	e.closeOnce.Do(func() { close(e.closed) })
}

// Running reports whether the graph is started.
func (e *Engine) Running() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.running
}

// MarkNotRunning clears the running flag without touching the graph;
// media-services-reset recovery uses it before re-preparing.
func (e *Engine) MarkNotRunning() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.running = false
}

// LoadIntoSlot decodes (or fetches) the track's buffer and installs it
// in the slot. Returns the track augmented with duration and format.
func (e *Engine) LoadIntoSlot(ctx context.Context, slot Slot, track audio.Track) (audio.Track, error) {
	buf, loaded, err := e.cache.Get(ctx, track.URI, cache.PriorityPlayback)
	if err != nil {
		return track, err
	}
	if track.Title == "" {
		track.Title = loaded.Title
	}
	if track.Artist == "" {
		track.Artist = loaded.Artist
	}
	if track.Album == "" {
		track.Album = loaded.Album
	}
	track = track.WithFormat(buf)

	e.mu.Lock()
	s := e.slots[slot]
	if s.loaded && s.track.URI != track.URI {
		e.cache.Unpin(s.track.URI)
	}
	if !s.loaded || s.track.URI != track.URI {
		e.cache.Pin(track.URI)
	}
	s.track = track
	s.buf = buf
	s.loaded = true
	s.offsetFrames = 0
	e.mu.Unlock()

	logger.Debug("loaded into slot",
		zap.String("slot", slot.String()),
		zap.String("uri", track.URI),
		zap.Duration("duration", track.Duration))
	return track, nil
}

// ScheduleActive schedules the active slot's full file from frame 0 and
// begins playback. An optional fade-in ramps the active mixer from 0 to
// the target volume.
func (e *Engine) ScheduleActive(fadeIn time.Duration, curve fade.Curve) error {
	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()
		return ErrNotRunning
	}
	s := e.slots[e.active]
	if !s.loaded {
		e.mu.Unlock()
		return ErrNoTrackLoaded
	}
	s.offsetFrames = 0
	s.generation++
	e.scheduleLocked(e.active, 0)
	s.player.Play()
	e.paused = false

	var fadeCtx context.Context
	if fadeIn > 0 {
		e.cancelFadeInLocked()
		fadeCtx, e.fadeInCancel = context.WithCancel(context.Background())
	} else {
		s.mixer.SetVolume(e.targetVolume)
	}
	target := e.targetVolume
	mixer := s.mixer
	e.mu.Unlock()

	if fadeCtx != nil {
		go func() {
			_ = e.Fade(fadeCtx, mixer, 0, target, fadeIn, curve)
			e.fadeInDone()
		}()
	}
	return nil
}

// scheduleLocked schedules the slot's buffer from offsetFrames with a
// completion that carries (slot, generation) into the natural-end
// filter. The callback runs on the render thread, so it only converts
// to a value and hands off.
func (e *Engine) scheduleLocked(slot Slot, offsetFrames int) {
	s := e.slots[slot]
	gen := s.generation
	s.player.ScheduleBuffer(s.buf, offsetFrames, func() {
		select {
		case e.completions <- completion{slot: slot, gen: gen}:
		default:
		}
	})
}

// Seek clamps t to the active track, reschedules from the clamped frame
// and keeps the play/pause state. An in-flight fade-in is cancelled.
func (e *Engine) Seek(t time.Duration) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	s := e.slots[e.active]
	if !s.loaded {
		return ErrNoTrackLoaded
	}
	e.cancelFadeInLocked()

	if t < 0 {
		t = 0
	}
	if t > s.track.Duration {
		t = s.track.Duration
	}
	frame := int(t.Seconds() * float64(s.buf.SampleRate))
	if max := s.buf.Frames() - 1; frame > max {
		frame = max
	}

	wasPlaying := s.player.IsPlaying()
	s.player.Stop()
	s.generation++
	s.offsetFrames = frame
	e.scheduleLocked(e.active, frame)
	if wasPlaying {
		s.player.Play()
	}
	return nil
}

// Pause captures the current position into the active slot's offset and
// pauses the player, so a later Play resumes from the captured frame.
func (e *Engine) Pause() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.cancelFadeInLocked()
	s := e.slots[e.active]
	s.offsetFrames = e.positionFramesLocked(e.active)
	s.player.Pause()
	e.paused = true
}

// PauseBoth captures each slot's position into its offset and pauses
// both players; used when a crossfade is paused mid-flight.
func (e *Engine) PauseBoth() {
	e.mu.Lock()
	defer e.mu.Unlock()
	for slot, s := range e.slots {
		s.offsetFrames = e.positionFramesLocked(Slot(slot))
		s.player.Pause()
	}
	e.paused = true
}

// Play resumes from pause by rescheduling the active slot from its
// captured offset.
func (e *Engine) Play() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.running {
		return ErrNotRunning
	}
	s := e.slots[e.active]
	if !s.loaded {
		return ErrNoTrackLoaded
	}
	if e.paused {
		s.player.Stop()
		s.generation++
		e.scheduleLocked(e.active, s.offsetFrames)
	}
	s.player.Play()
	e.paused = false
	return nil
}

// ResumeBoth resumes both paused players in place (paused-crossfade
// resume path; offsets stay as captured). The rendered counters restart
// so frames already folded into the offsets are not counted twice.
func (e *Engine) ResumeBoth() {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, s := range e.slots {
		s.player.Reset()
		s.player.Resume()
	}
	e.paused = false
}

// SetVolume clamps v to [0,1], records it as the target and writes the
// main mixer immediately. The active mixer follows only when no
// crossfade or fade-in is in flight.
func (e *Engine) SetVolume(v float64) {
	if v < 0 {
		v = 0
	}
	if v > 1 {
		v = 1
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.targetVolume = v
	e.graph.MainMixer().SetVolume(v)
	if !e.crossfading.Load() && e.fadeInCancel == nil {
		e.slots[e.active].mixer.SetVolume(v)
	}
}

// TargetVolume returns the last requested volume.
func (e *Engine) TargetVolume() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.targetVolume
}

// ActiveSlot returns the active slot id.
func (e *Engine) ActiveSlot() Slot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.active
}

// ActiveTrack returns the active slot's track.
func (e *Engine) ActiveTrack() (audio.Track, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	s := e.slots[e.active]
	return s.track, s.loaded
}

// InactiveTrack returns the inactive slot's track.
func (e *Engine) InactiveTrack() (audio.Track, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	s := e.slots[e.active.Other()]
	return s.track, s.loaded
}

// IsPlaying reports whether the active player is rendering.
func (e *Engine) IsPlaying() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.slots[e.active].player.IsPlaying()
}

// Position returns the active slot's playback position: the captured
// offset plus, while playing, the frames rendered since the last
// schedule (converted from the graph's render rate).
func (e *Engine) Position() time.Duration {
	e.mu.Lock()
	defer e.mu.Unlock()
	frames := e.positionFramesLocked(e.active)
	s := e.slots[e.active]
	if !s.loaded || s.buf.SampleRate <= 0 {
		return 0
	}
	return time.Duration(float64(frames) / float64(s.buf.SampleRate) * float64(time.Second))
}

// SlotPosition returns one slot's playback position.
func (e *Engine) SlotPosition(slot Slot) time.Duration {
	e.mu.Lock()
	defer e.mu.Unlock()
	s := e.slots[slot]
	if !s.loaded || s.buf.SampleRate <= 0 {
		return 0
	}
	frames := e.positionFramesLocked(slot)
	return time.Duration(float64(frames) / float64(s.buf.SampleRate) * float64(time.Second))
}

// SlotMixerVolume returns one slot's mixer volume.
func (e *Engine) SlotMixerVolume(slot Slot) float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.slots[slot].mixer.Volume()
}

// ActiveMixer returns the active slot's mixer for fade primitives run
// by the orchestrator.
func (e *Engine) ActiveMixer() host.Mixer {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.slots[e.active].mixer
}

// Duration returns the active track's duration.
func (e *Engine) Duration() time.Duration {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.slots[e.active].track.Duration
}

// positionFramesLocked converts rendered engine-rate samples to
// file-rate frames on top of the scheduled offset.
func (e *Engine) positionFramesLocked(slot Slot) int {
	s := e.slots[slot]
	if !s.loaded {
		return 0
	}
	frames := s.offsetFrames
	if s.player.IsPlaying() {
		engineRate := e.graph.SampleRate()
		if engineRate > 0 {
			rendered := float64(s.player.RenderedFrames()) / float64(engineRate)
			frames += int(rendered * float64(s.buf.SampleRate))
		}
	}
	if max := s.buf.Frames(); frames > max {
		frames = max
	}
	return frames
}

// NaturalEnd yields the slot id for every completion callback that is
// still current: matching generation and still the active slot.
func (e *Engine) NaturalEnd() <-chan Slot { return e.naturalEnd }

func (e *Engine) filterCompletions() {
	for {
		select {
		case <-e.closed:
			return
		case c := <-e.completions:
			e.mu.Lock()
			current := e.slots[c.slot].generation == c.gen && e.active == c.slot
			e.mu.Unlock()
			if !current {
				logger.Debug("stale completion discarded",
					zap.String("slot", c.slot.String()),
					zap.Uint64("gen", c.gen))
				continue
			}
			select {
			case e.naturalEnd <- c.slot:
			default:
			}
		}
	}
}

func (e *Engine) cancelFadeInLocked() {
	if e.fadeInCancel != nil {
		e.fadeInCancel()
		e.fadeInCancel = nil
	}
}

// fadeInDone clears the fade-in cancel handle; the fade task calls it
// on exit so SetVolume stops treating a finished fade as in-flight.
func (e *Engine) fadeInDone() {
	e.mu.Lock()
	e.fadeInCancel = nil
	e.mu.Unlock()
}
