package host

import (
	"sync"
	"time"

	"github.com/evenfall/drift/internal/audio"
)

// Mock host for tests: a graph whose render clock is advanced manually
// and whose completion callbacks are fired by the test.

// MockPlayer is a test double for Player.
type MockPlayer struct {
	mu              sync.Mutex
	playing         bool
	paused          bool
	scheduled       *audio.Buffer
	scheduledOffset int
	onPlayed        func()
	rendered        int64
	playAtCalls     []int64
	scheduleCalls   int
	stopCalls       int
	resetCalls      int
}

// NewMockPlayer creates a mock player.
func NewMockPlayer() *MockPlayer {
	return &MockPlayer{}
}

func (p *MockPlayer) ScheduleBuffer(buf *audio.Buffer, offsetFrames int, onPlayed func()) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.scheduled = buf
	p.scheduledOffset = offsetFrames
	p.onPlayed = onPlayed
	p.scheduleCalls++
	p.rendered = 0
}

func (p *MockPlayer) Play() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.playing = true
	p.paused = false
}

func (p *MockPlayer) PlayAt(sample int64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.playing = true
	p.paused = false
	p.playAtCalls = append(p.playAtCalls, sample)
}

func (p *MockPlayer) Pause() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.playing {
		p.paused = true
		p.playing = false
	}
}

func (p *MockPlayer) Resume() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.paused {
		p.paused = false
		p.playing = true
	}
}

func (p *MockPlayer) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.playing = false
	p.paused = false
	p.scheduled = nil
	p.stopCalls++
}

func (p *MockPlayer) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.resetCalls++
	p.rendered = 0
}

func (p *MockPlayer) IsPlaying() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.playing
}

func (p *MockPlayer) RenderedFrames() int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.rendered
}

// --- test hooks ---

// CompleteScheduled fires the completion callback registered by the
// last ScheduleBuffer, simulating the render thread reaching the end of
// the scheduled data. Runs the callback on a fresh goroutine, as the
// real host would on its render thread.
func (p *MockPlayer) CompleteScheduled() {
	p.mu.Lock()
	cb := p.onPlayed
	p.mu.Unlock()
	if cb != nil {
		go cb()
	}
}

// CompleteScheduledSync fires the callback on the caller's goroutine.
func (p *MockPlayer) CompleteScheduledSync() {
	p.mu.Lock()
	cb := p.onPlayed
	p.mu.Unlock()
	if cb != nil {
		cb()
	}
}

// SetRendered fakes render progress.
func (p *MockPlayer) SetRendered(frames int64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.rendered = frames
}

// Scheduled returns the last scheduled buffer and offset.
func (p *MockPlayer) Scheduled() (*audio.Buffer, int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.scheduled, p.scheduledOffset
}

// ScheduleCalls returns how many times ScheduleBuffer ran.
func (p *MockPlayer) ScheduleCalls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.scheduleCalls
}

// StopCalls returns how many times Stop ran.
func (p *MockPlayer) StopCalls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stopCalls
}

// IsPaused reports the paused flag.
func (p *MockPlayer) IsPaused() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.paused
}

// PlayAtCalls returns the phase-locked start times requested.
func (p *MockPlayer) PlayAtCalls() []int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]int64, len(p.playAtCalls))
	copy(out, p.playAtCalls)
	return out
}

// MockMixer is a test double for Mixer.
type MockMixer struct {
	mu     sync.Mutex
	volume float64
	writes int
}

// NewMockMixer creates a mixer at volume 0.
func NewMockMixer() *MockMixer {
	return &MockMixer{}
}

func (m *MockMixer) Volume() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.volume
}

func (m *MockMixer) SetVolume(v float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.volume = v
	m.writes++
}

// Writes returns how many volume writes occurred.
func (m *MockMixer) Writes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.writes
}

// MockGraph is a test double for Graph.
type MockGraph struct {
	mu         sync.Mutex
	players    map[NodeID]*MockPlayer
	mixers     map[NodeID]*MockMixer
	main       *MockMixer
	running    bool
	setup      bool
	sampleRate int
	renderTime int64
	setupErr   error
	startErr   error
}

// NewMockGraph creates a graph with all four node pairs at 44.1 kHz.
func NewMockGraph() *MockGraph {
	g := &MockGraph{
		players:    make(map[NodeID]*MockPlayer),
		mixers:     make(map[NodeID]*MockMixer),
		main:       NewMockMixer(),
		sampleRate: 44100,
	}
	for _, id := range []NodeID{NodeSlotA, NodeSlotB, NodeOverlay, NodeSFX} {
		g.players[id] = NewMockPlayer()
		g.mixers[id] = NewMockMixer()
	}
	return g
}

func (g *MockGraph) Setup() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.setupErr != nil {
		return g.setupErr
	}
	g.setup = true
	return nil
}

func (g *MockGraph) Start() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.startErr != nil {
		return g.startErr
	}
	g.running = true
	return nil
}

func (g *MockGraph) Stop() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.running = false
}

func (g *MockGraph) Running() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.running
}

func (g *MockGraph) Player(id NodeID) Player { return g.MockPlayer(id) }

func (g *MockGraph) Mixer(id NodeID) Mixer { return g.MockMixer(id) }

func (g *MockGraph) MainMixer() Mixer { return g.main }

func (g *MockGraph) SampleRate() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.sampleRate
}

func (g *MockGraph) LastRenderTime() int64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.renderTime
}

// --- test hooks ---

// MockPlayer returns the typed mock for direct inspection.
func (g *MockGraph) MockPlayer(id NodeID) *MockPlayer {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.players[id]
}

// MockMixer returns the typed mock for direct inspection.
func (g *MockGraph) MockMixer(id NodeID) *MockMixer {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.mixers[id]
}

// MockMainMixer returns the typed main mixer.
func (g *MockGraph) MockMainMixer() *MockMixer { return g.main }

// AdvanceRender moves the render clock forward.
func (g *MockGraph) AdvanceRender(samples int64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.renderTime += samples
}

// FailSetup makes the next Setup return err.
func (g *MockGraph) FailSetup(err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.setupErr = err
}

// FailStart makes Start return err.
func (g *MockGraph) FailStart(err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.startErr = err
}

// WasSetup reports whether Setup ran.
func (g *MockGraph) WasSetup() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.setup
}

// MockSession is a test double for Session.
type MockSession struct {
	mu            sync.Mutex
	category      Category
	options       CategoryOptions
	active        bool
	sampleRate    float64
	ioBuffer      time.Duration
	events        chan Event
	setActiveErr  error
	categoryCalls int
	activeCalls   int
}

// NewMockSession creates an inactive session with no category.
func NewMockSession() *MockSession {
	return &MockSession{events: make(chan Event, 16)}
}

func (s *MockSession) SetCategory(c Category, opts CategoryOptions) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.category = c
	s.options = opts
	s.categoryCalls++
	return nil
}

func (s *MockSession) Category() Category {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.category
}

func (s *MockSession) CategoryOptions() CategoryOptions {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.options
}

func (s *MockSession) SetPreferredSampleRate(hz float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sampleRate = hz
	return nil
}

func (s *MockSession) SetPreferredIOBufferDuration(d time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ioBuffer = d
	return nil
}

func (s *MockSession) SetActive(active bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.setActiveErr != nil {
		return s.setActiveErr
	}
	s.active = active
	s.activeCalls++
	return nil
}

func (s *MockSession) IsActive() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

func (s *MockSession) Events() <-chan Event { return s.events }

// --- test hooks ---

// Emit posts a session event as the platform would.
func (s *MockSession) Emit(e Event) { s.events <- e }

// SetCategoryDirect mutates the category without counting as an engine
// call, simulating an external configurator.
func (s *MockSession) SetCategoryDirect(c Category) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.category = c
}

// SetActiveDirect mutates activation without counting as an engine call.
func (s *MockSession) SetActiveDirect(active bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.active = active
}

// FailActivation makes SetActive return err.
func (s *MockSession) FailActivation(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.setActiveErr = err
}

// CategoryCalls reports how many times SetCategory ran.
func (s *MockSession) CategoryCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.categoryCalls
}

// ActiveCalls reports how many times SetActive ran.
func (s *MockSession) ActiveCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.activeCalls
}

// PreferredSampleRate returns the last requested rate.
func (s *MockSession) PreferredSampleRate() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sampleRate
}

// PreferredIOBufferDuration returns the last requested buffer duration.
func (s *MockSession) PreferredIOBufferDuration() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ioBuffer
}

// Compile-time interface checks.
var (
	_ Player  = (*MockPlayer)(nil)
	_ Mixer   = (*MockMixer)(nil)
	_ Graph   = (*MockGraph)(nil)
	_ Session = (*MockSession)(nil)
)
