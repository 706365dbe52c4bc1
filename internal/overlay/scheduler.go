// Package overlay runs the looping secondary layer: one player+mixer
// pair cycling a buffer with per-iteration fades and inter-iteration
// delays, independent of the main crossfade slots.
package overlay

import (
	"context"
	"sync"
	"time"

	"github.com/evenfall/drift/internal/audio"
	"github.com/evenfall/drift/internal/cache"
	"github.com/evenfall/drift/internal/fade"
	"github.com/evenfall/drift/internal/host"
	"github.com/evenfall/drift/internal/logger"
	"go.uber.org/zap"
)

// LoopMode selects how many cycle iterations run.
type LoopMode int

const (
	LoopOnce LoopMode = iota
	LoopCount
	LoopInfinite
)

// String returns the mode name.
func (m LoopMode) String() string {
	switch m {
	case LoopCount:
		return "count"
	case LoopInfinite:
		return "infinite"
	default:
		return "once"
	}
}

// State is the overlay lifecycle.
type State int

const (
	StateIdle State = iota
	StatePreparing
	StatePlaying
	StatePaused
	StateStopping
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StatePreparing:
		return "preparing"
	case StatePlaying:
		return "playing"
	case StatePaused:
		return "paused"
	case StateStopping:
		return "stopping"
	default:
		return "idle"
	}
}

// Config tunes the loop cycle.
type Config struct {
	LoopMode  LoopMode
	LoopCount int // used when LoopMode == LoopCount; must be > 0
	LoopDelay time.Duration
	Volume    float64
	FadeIn    time.Duration
	FadeOut   time.Duration
	Curve     fade.Curve
}

// DefaultConfig loops forever at full volume with no fades.
func DefaultConfig() Config {
	return Config{LoopMode: LoopInfinite, Volume: 1}
}

// drainGuard covers the hardware buffer after a completion callback;
// stopping or fading earlier clips the tail.
const drainGuard = 600 * time.Millisecond

// replaceFadeOut is the ramp used when swapping the overlay file.
const replaceFadeOut = time.Second

// Scheduler owns the overlay nodes, handed off once at engine setup
// and never re-shared.
type Scheduler struct {
	mu     sync.Mutex
	player host.Player
	mixer  host.Mixer
	cache  *cache.Cache

	state  State
	cfg    Config
	uri    string
	buf    *audio.Buffer
	cancel context.CancelFunc
	done   chan struct{}
}

// New creates a scheduler over the overlay node pair.
func New(player host.Player, mixer host.Mixer, c *cache.Cache) *Scheduler {
	return &Scheduler{
		player: player,
		mixer:  mixer,
		cache:  c,
		cfg:    DefaultConfig(),
	}
}

// State returns the current lifecycle state.
func (s *Scheduler) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// SetConfig replaces the loop configuration. A running cycle picks up
// volume immediately; loop shape applies from the next iteration.
func (s *Scheduler) SetConfig(cfg Config) {
	s.mu.Lock()
	s.cfg = cfg
	playing := s.state == StatePlaying
	s.mu.Unlock()
	if playing {
		s.mixer.SetVolume(cfg.Volume)
	}
}

// Config returns the current configuration.
func (s *Scheduler) Config() Config {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg
}

// SetVolume adjusts the overlay volume without touching the rest of
// the configuration.
func (s *Scheduler) SetVolume(v float64) {
	if v < 0 {
		v = 0
	}
	if v > 1 {
		v = 1
	}
	s.mu.Lock()
	s.cfg.Volume = v
	playing := s.state == StatePlaying
	s.mu.Unlock()
	if playing {
		s.mixer.SetVolume(v)
	}
}

// Play loads the file and starts the loop cycle. A running cycle is
// stopped first.
func (s *Scheduler) Play(ctx context.Context, uri string) error {
	s.Stop(0)

	s.mu.Lock()
	s.state = StatePreparing
	s.mu.Unlock()

	buf, _, err := s.cache.Get(ctx, uri, cache.PriorityPlayback)
	if err != nil {
		s.mu.Lock()
		s.state = StateIdle
		s.mu.Unlock()
		return err
	}
	s.cache.Pin(uri)

	s.mu.Lock()
	s.uri = uri
	s.buf = buf
	s.state = StatePlaying
	loopCtx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.done = make(chan struct{})
	done := s.done
	s.mu.Unlock()

	go func() {
		defer close(done)
		s.runCycle(loopCtx)
	}()
	return nil
}

// runCycle is the cooperative loop task: fade in, play the buffer to
// completion, drain, fade out, delay, repeat.
func (s *Scheduler) runCycle(ctx context.Context) {
	i := 0
	for {
		s.mu.Lock()
		cfg := s.cfg
		buf := s.buf
		cont := shouldContinue(cfg, i) && s.state == StatePlaying
		s.mu.Unlock()
		if !cont || ctx.Err() != nil {
			return
		}

		if cfg.FadeIn > 0 {
			if err := fade.Ramp(ctx, s.mixer.SetVolume, 0, cfg.Volume, cfg.FadeIn, cfg.Curve); err != nil {
				return
			}
		} else if i == 0 {
			s.mixer.SetVolume(cfg.Volume)
		}

		completed := make(chan struct{}, 1)
		s.player.ScheduleBuffer(buf, 0, func() {
			select {
			case completed <- struct{}{}:
			default:
			}
		})
		s.player.Play()

		select {
		case <-ctx.Done():
			return
		case <-completed:
		}

		// Let the hardware buffer drain before touching the player.
		if !sleepCtx(ctx, drainGuard) {
			return
		}

		if cfg.FadeOut > 0 {
			if err := fade.Ramp(ctx, s.mixer.SetVolume, cfg.Volume, 0, cfg.FadeOut, cfg.Curve); err != nil {
				return
			}
		}

		i++
		s.mu.Lock()
		cfg = s.cfg
		more := shouldContinue(cfg, i)
		s.mu.Unlock()
		if more && cfg.LoopDelay > 0 {
			if !sleepCtx(ctx, cfg.LoopDelay) {
				return
			}
		}
		if !more {
			s.mu.Lock()
			if s.state == StatePlaying {
				s.state = StateIdle
			}
			s.mu.Unlock()
			return
		}
	}
}

// Pause suspends the player node; the loop task stays parked at its
// completion wait.
func (s *Scheduler) Pause() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StatePlaying {
		return
	}
	s.player.Pause()
	s.state = StatePaused
}

// Resume continues a paused overlay.
func (s *Scheduler) Resume() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StatePaused {
		return
	}
	s.player.Resume()
	s.state = StatePlaying
}

// Stop cancels the loop task, optionally fades out from the current
// mixer volume, then stops and resets the player.
func (s *Scheduler) Stop(fadeOut time.Duration) {
	s.mu.Lock()
	if s.state == StateIdle {
		s.mu.Unlock()
		return
	}
	s.state = StateStopping
	cancel := s.cancel
	done := s.done
	uri := s.uri
	s.cancel = nil
	s.done = nil
	s.uri = ""
	s.buf = nil
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}

	if fadeOut > 0 {
		_ = fade.Ramp(context.Background(), s.mixer.SetVolume, s.mixer.Volume(), 0, fadeOut, fade.Linear)
	}
	s.player.Stop()
	s.player.Reset()
	s.mixer.SetVolume(0)
	if uri != "" {
		s.cache.Unpin(uri)
	}

	s.mu.Lock()
	s.state = StateIdle
	s.mu.Unlock()
	logger.Debug("overlay stopped", zap.String("uri", uri))
}

// ReplaceFile fades the running overlay out over one second, loads the
// new file and re-enters the cycle with the current configuration.
func (s *Scheduler) ReplaceFile(ctx context.Context, uri string) error {
	s.mu.Lock()
	wasRunning := s.state == StatePlaying || s.state == StatePaused
	s.mu.Unlock()

	if wasRunning {
		s.Stop(replaceFadeOut)
	}
	return s.Play(ctx, uri)
}

// URI returns the playing file, if any.
func (s *Scheduler) URI() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.uri
}

func shouldContinue(cfg Config, i int) bool {
	switch cfg.LoopMode {
	case LoopInfinite:
		return true
	case LoopCount:
		return i < cfg.LoopCount
	default:
		return i < 1
	}
}

// sleepCtx sleeps unless cancelled; reports false on cancellation.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}
