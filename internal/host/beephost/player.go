package beephost

import (
	"sync"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/speaker"

	"github.com/evenfall/drift/internal/audio"
)

// player is one node: a queue mixer feeding a gain node feeding a
// pause control. Scheduled buffers play out of the queue; completion
// callbacks fire from the render goroutine.
type player struct {
	mu       sync.Mutex
	queue    *beep.Mixer
	gain     *mixer
	ctrl     *beep.Ctrl
	clock    *renderClock
	lastSeq  beep.Streamer
	rendered int64
	playing  bool
	paused   bool
}

func newPlayer(clock *renderClock) *player {
	queue := &beep.Mixer{}
	queue.KeepAlive(true)
	gain := newMixer(queue)
	ctrl := &beep.Ctrl{Streamer: gain.chain(), Paused: true}
	return &player{
		queue: queue,
		gain:  gain,
		ctrl:  ctrl,
		clock: clock,
	}
}

// chain returns the node's output streamer.
func (p *player) chain() beep.Streamer { return p.ctrl }

// ScheduleBuffer queues the region of buf from offsetFrames, resampled
// to the output rate when needed, with a completion callback at the
// end of the data.
func (p *player) ScheduleBuffer(buf *audio.Buffer, offsetFrames int, onPlayed func()) {
	var carry int64
	var s beep.Streamer = &bufferStreamer{
		buf: buf,
		pos: offsetFrames,
		onFrames: func(n int) {
			// Count in output-rate frames, carrying the remainder so a
			// resampled buffer does not drift.
			total := int64(n)*int64(outputRate) + carry
			carry = total % int64(buf.SampleRate)
			p.mu.Lock()
			p.rendered += total / int64(buf.SampleRate)
			p.mu.Unlock()
		},
	}
	if buf.SampleRate != int(outputRate) {
		s = beep.Resample(4, beep.SampleRate(buf.SampleRate), outputRate, s)
	}
	seq := beep.Seq(s, beep.Callback(func() {
		if onPlayed != nil {
			onPlayed()
		}
	}))

	speaker.Lock()
	p.queue.Clear()
	p.queue.Add(seq)
	speaker.Unlock()

	p.mu.Lock()
	p.lastSeq = seq
	p.rendered = 0
	p.mu.Unlock()
}

func (p *player) Play() {
	speaker.Lock()
	p.ctrl.Paused = false
	speaker.Unlock()
	p.mu.Lock()
	p.playing = true
	p.paused = false
	p.mu.Unlock()
}

// PlayAt prepends silence until the anchor sample so this player joins
// the shared timeline in phase with the other slot.
func (p *player) PlayAt(sample int64) {
	delay := sample - p.clock.samples()
	if delay < 0 {
		delay = 0
	}

	p.mu.Lock()
	seq := p.lastSeq
	p.mu.Unlock()

	speaker.Lock()
	if seq != nil && delay > 0 {
		p.queue.Clear()
		p.queue.Add(beep.Seq(beep.Silence(int(delay)), seq))
	}
	p.ctrl.Paused = false
	speaker.Unlock()

	p.mu.Lock()
	p.playing = true
	p.paused = false
	p.mu.Unlock()
}

func (p *player) Pause() {
	p.mu.Lock()
	if !p.playing {
		p.mu.Unlock()
		return
	}
	p.playing = false
	p.paused = true
	p.mu.Unlock()

	speaker.Lock()
	p.ctrl.Paused = true
	speaker.Unlock()
}

func (p *player) Resume() {
	p.mu.Lock()
	if !p.paused {
		p.mu.Unlock()
		return
	}
	p.paused = false
	p.playing = true
	p.mu.Unlock()

	speaker.Lock()
	p.ctrl.Paused = false
	speaker.Unlock()
}

func (p *player) Stop() {
	speaker.Lock()
	p.queue.Clear()
	p.ctrl.Paused = true
	speaker.Unlock()

	p.mu.Lock()
	p.playing = false
	p.paused = false
	p.mu.Unlock()
}

func (p *player) Reset() {
	p.mu.Lock()
	p.rendered = 0
	p.mu.Unlock()
}

func (p *player) IsPlaying() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.playing
}

func (p *player) RenderedFrames() int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.rendered
}

// bufferStreamer streams a decoded buffer as stereo samples. Mono
// buffers play on both channels.
type bufferStreamer struct {
	buf      *audio.Buffer
	pos      int
	onFrames func(int)
}

func (s *bufferStreamer) Stream(samples [][2]float64) (int, bool) {
	frames := s.buf.Frames()
	if s.pos >= frames {
		return 0, false
	}
	n := 0
	for i := range samples {
		if s.pos >= frames {
			break
		}
		left := float64(s.buf.Data[0][s.pos])
		right := left
		if s.buf.Channels() > 1 {
			right = float64(s.buf.Data[1][s.pos])
		}
		samples[i][0] = left
		samples[i][1] = right
		s.pos++
		n++
	}
	if s.onFrames != nil && n > 0 {
		s.onFrames(n)
	}
	return n, true
}

func (s *bufferStreamer) Err() error { return nil }
