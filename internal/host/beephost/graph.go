// Package beephost implements the host interfaces over gopxl/beep's
// speaker: one output stream, a per-node chain of buffer queue, volume
// and pause control, all mixed into a main volume node.
package beephost

import (
	"math"
	"sync"
	"time"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/effects"
	"github.com/gopxl/beep/v2/speaker"

	"github.com/evenfall/drift/internal/host"
)

// outputRate is the speaker render rate.
const outputRate beep.SampleRate = 44100

// speakerBuffer is the speaker's internal buffer length.
const speakerBuffer = 100 * time.Millisecond

var (
	speakerOnce sync.Once
	speakerErr  error
)

// Graph is the speaker-backed node graph.
type Graph struct {
	mu      sync.Mutex
	players map[host.NodeID]*player
	mixers  map[host.NodeID]*mixer
	main    *mixer
	mainMix *beep.Mixer
	clock   *renderClock
	running bool
	setup   bool
}

// NewGraph creates the four node pairs and the main mixer; Setup wires
// the node chains into the main mixer.
func NewGraph() *Graph {
	g := &Graph{
		players: make(map[host.NodeID]*player),
		mixers:  make(map[host.NodeID]*mixer),
		mainMix: &beep.Mixer{},
		clock:   &renderClock{},
	}
	g.mainMix.KeepAlive(true)
	g.main = newMixer(g.mainMix)
	for _, id := range []host.NodeID{host.NodeSlotA, host.NodeSlotB, host.NodeOverlay, host.NodeSFX} {
		p := newPlayer(g.clock)
		g.players[id] = p
		g.mixers[id] = p.gain
	}
	return g
}

// Setup initializes the speaker and connects every node chain into the
// main mixer. Idempotent.
func (g *Graph) Setup() error {
	speakerOnce.Do(func() {
		speakerErr = speaker.Init(outputRate, outputRate.N(speakerBuffer))
	})
	if speakerErr != nil {
		return speakerErr
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if g.setup {
		return nil
	}
	for _, p := range g.players {
		g.mainMix.Add(p.chain())
	}
	g.setup = true
	return nil
}

// Start attaches the main chain to the speaker.
func (g *Graph) Start() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.running {
		return nil
	}
	speaker.Play(g.clock.wrap(g.main.chain()))
	g.running = true
	return nil
}

// Stop detaches everything from the speaker. Node state survives, so a
// later Start reattaches the same graph.
func (g *Graph) Stop() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.running {
		return
	}
	speaker.Clear()
	g.running = false
}

// Running reports whether the graph feeds the speaker.
func (g *Graph) Running() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.running
}

func (g *Graph) Player(id host.NodeID) host.Player { return g.players[id] }

func (g *Graph) Mixer(id host.NodeID) host.Mixer { return g.mixers[id] }

func (g *Graph) MainMixer() host.Mixer { return g.main }

func (g *Graph) SampleRate() int { return int(outputRate) }

func (g *Graph) LastRenderTime() int64 { return g.clock.samples() }

var _ host.Graph = (*Graph)(nil)

// renderClock counts samples rendered by the output chain.
type renderClock struct {
	mu      sync.Mutex
	counted int64
}

func (c *renderClock) samples() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.counted
}

func (c *renderClock) add(n int) {
	c.mu.Lock()
	c.counted += int64(n)
	c.mu.Unlock()
}

// wrap counts frames flowing through the wrapped streamer.
func (c *renderClock) wrap(s beep.Streamer) beep.Streamer {
	return &countingStreamer{inner: s, count: c.add}
}

type countingStreamer struct {
	inner beep.Streamer
	count func(int)
}

func (s *countingStreamer) Stream(samples [][2]float64) (int, bool) {
	n, ok := s.inner.Stream(samples)
	if n > 0 {
		s.count(n)
	}
	return n, ok
}

func (s *countingStreamer) Err() error { return s.inner.Err() }

// mixer maps a linear [0,1] level onto beep's logarithmic volume node,
// the way the teacher player does.
type mixer struct {
	mu     sync.Mutex
	level  float64
	volume *effects.Volume
}

func newMixer(src beep.Streamer) *mixer {
	return &mixer{
		level: 0,
		volume: &effects.Volume{
			Streamer: src,
			Base:     2,
			Volume:   0,
			Silent:   true,
		},
	}
}

func (m *mixer) chain() beep.Streamer { return m.volume }

func (m *mixer) Volume() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.level
}

func (m *mixer) SetVolume(v float64) {
	if v < 0 {
		v = 0
	}
	if v > 1 {
		v = 1
	}
	m.mu.Lock()
	m.level = v
	m.mu.Unlock()

	speaker.Lock()
	if v <= 0 {
		m.volume.Silent = true
	} else {
		m.volume.Silent = false
		m.volume.Volume = levelToVolume(v)
	}
	speaker.Unlock()
}

// levelToVolume converts a 0.0-1.0 level to beep's Volume value.
// beep uses a logarithmic scale with base 2: Volume 0 means no change,
// -1 half volume, -2 quarter.
func levelToVolume(level float64) float64 {
	if level >= 1 {
		return 0
	}
	return math.Log2(level)
}

var _ host.Mixer = (*mixer)(nil)
