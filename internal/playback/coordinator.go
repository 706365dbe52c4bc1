package playback

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/evenfall/drift/internal/audio"
	"github.com/evenfall/drift/internal/cache"
	"github.com/evenfall/drift/internal/crossfade"
	"github.com/evenfall/drift/internal/engine"
	"github.com/evenfall/drift/internal/fade"
	"github.com/evenfall/drift/internal/logger"
	"github.com/evenfall/drift/internal/opqueue"
	"github.com/evenfall/drift/internal/overlay"
	"github.com/evenfall/drift/internal/playlist"
	"github.com/evenfall/drift/internal/session"
	"github.com/evenfall/drift/internal/sfx"
	"go.uber.org/zap"
)

// Config is the validated runtime configuration of the main layer.
type Config struct {
	CrossfadeDuration time.Duration
	Curve             fade.Curve
	RepeatMode        playlist.RepeatMode
	Volume            float64
	Session           session.Config
}

// DefaultConfig mirrors the documented defaults.
func DefaultConfig() Config {
	return Config{
		CrossfadeDuration: 5 * time.Second,
		Curve:             fade.EqualPower,
		RepeatMode:        playlist.RepeatOff,
		Volume:            1,
	}
}

const (
	// skipMinInterval rate-limits consecutive skips.
	skipMinInterval = 500 * time.Millisecond
	// skipFadeDuration is each half of the skip fade-seek-fade.
	skipFadeDuration = 300 * time.Millisecond
	// seekFadeDuration is each half of a seek ramp.
	seekFadeDuration = 100 * time.Millisecond
	// pauseFadeDuration softens pause/resume.
	pauseFadeDuration = 100 * time.Millisecond
	// finishFadeDuration is the default graceful-finish ramp.
	finishFadeDuration = 3 * time.Second
	// positionTick is the position subject interval.
	positionTick = 500 * time.Millisecond
	// naturalEndSlack is the fallback window before EOF in which the
	// ticker advances if no transition has started.
	naturalEndSlack = 500 * time.Millisecond
	// completionWait bounds how long an incoming manual change waits on
	// a nearly-finished crossfade.
	completionWait = 1500 * time.Millisecond
	// replaceRampDuration unwinds or completes a superseded crossfade.
	replaceRampDuration = 300 * time.Millisecond
)

// CategoryDelegate is notified when the engine detects an external
// category change it did not make.
type CategoryDelegate func(session.Validation)

// Coordinator is the facade: it serializes user operations, owns the
// mirror state and fans events out to subscribers.
type Coordinator struct {
	mu sync.RWMutex

	eng   *engine.Engine
	orch  *crossfade.Orchestrator
	sess  *session.Coordinator
	ovl   *overlay.Scheduler
	sfxP  *sfx.Player
	pl    *playlist.Playlist
	queue *opqueue.Queue
	cache *cache.Cache

	cfg Config

	cachedState State
	cachedTrack *audio.Track
	lastErr     error

	subs   []*Subscription
	subsMu sync.RWMutex

	events         []Event
	lastSkip       time.Time
	skipBusy       bool
	delegate       CategoryDelegate
	transient      sync.WaitGroup
	transitionBusy atomic.Bool

	tickerStop chan struct{}
	closed     bool
	done       chan struct{}
}

// Deps bundles the component graph the coordinator drives.
type Deps struct {
	Engine   *engine.Engine
	Orch     *crossfade.Orchestrator
	Session  *session.Coordinator
	Overlay  *overlay.Scheduler
	SFX      *sfx.Player
	Playlist *playlist.Playlist
	Cache    *cache.Cache
}

// New wires the coordinator and starts its background loops.
func New(deps Deps, cfg Config) *Coordinator {
	c := &Coordinator{
		eng:         deps.Engine,
		orch:        deps.Orch,
		sess:        deps.Session,
		ovl:         deps.Overlay,
		sfxP:        deps.SFX,
		pl:          deps.Playlist,
		cache:       deps.Cache,
		queue:       opqueue.New(opqueue.DefaultDepth),
		cfg:         cfg,
		cachedState: StateIdle,
		done:        make(chan struct{}),
	}
	c.pl.SetRepeatMode(cfg.RepeatMode)
	c.eng.SetVolume(cfg.Volume)
	c.orch.SetProgressFunc(c.onCrossfadeProgress)

	go c.naturalEndLoop()
	go c.sessionSignalLoop()
	return c
}

// SetCategoryDelegate installs the external-category callback.
func (c *Coordinator) SetCategoryDelegate(d CategoryDelegate) {
	c.mu.Lock()
	c.delegate = d
	c.mu.Unlock()
}

// Close tears the coordinator down. The engine and session outlive it
// only as far as the embedder keeps them.
func (c *Coordinator) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.mu.Unlock()

	close(c.done)
	c.stopTicker()
	c.queue.Close()
	c.transient.Wait()
	c.sess.Close()

	c.subsMu.Lock()
	for _, s := range c.subs {
		s.close()
	}
	c.subs = nil
	c.subsMu.Unlock()
}

// Subscribe returns a subscription primed with the current state and
// track, plus the recent event backlog.
func (c *Coordinator) Subscribe() *Subscription {
	sub := newSubscription()

	c.mu.RLock()
	state := c.cachedState
	track := c.cachedTrack
	lastErr := c.lastErr
	backlog := make([]Event, len(c.events))
	copy(backlog, c.events)
	c.mu.RUnlock()

	sub.sendState(StateChange{Previous: state, Current: state, Err: lastErr})
	if track != nil {
		sub.sendTrack(TrackChange{Current: track})
	}
	for _, e := range backlog {
		sub.sendEvent(e)
	}

	c.subsMu.Lock()
	c.subs = append(c.subs, sub)
	c.subsMu.Unlock()
	return sub
}

// State returns the mirror state.
func (c *Coordinator) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.cachedState
}

// LastError returns the error behind StateFailed, if any.
func (c *Coordinator) LastError() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastErr
}

// CurrentTrack returns the mirror track.
func (c *Coordinator) CurrentTrack() (audio.Track, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.cachedTrack == nil {
		return audio.Track{}, false
	}
	return *c.cachedTrack, true
}

// Position returns the engine position.
func (c *Coordinator) Position() time.Duration {
	return c.eng.Position()
}

// Duration returns the active track duration.
func (c *Coordinator) Duration() time.Duration {
	return c.eng.Duration()
}

// Volume returns the target volume.
func (c *Coordinator) Volume() float64 {
	return c.eng.TargetVolume()
}

// Configuration returns a copy of the active configuration.
func (c *Coordinator) Configuration() Config {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.cfg
}

// --- publishing ---

func (c *Coordinator) setState(next State, err error) {
	c.mu.Lock()
	prev := c.cachedState
	if prev == next && err == nil {
		c.mu.Unlock()
		return
	}
	c.cachedState = next
	c.lastErr = err
	c.mu.Unlock()

	if prev != next {
		logger.Info("state change",
			zap.String("from", prev.String()),
			zap.String("to", next.String()))
	}
	change := StateChange{Previous: prev, Current: next, Err: err}
	c.eachSub(func(s *Subscription) { s.sendState(change) })
}

func (c *Coordinator) setTrack(t *audio.Track) {
	c.mu.Lock()
	prev := c.cachedTrack
	c.cachedTrack = t
	c.mu.Unlock()

	change := TrackChange{Previous: prev, Current: t}
	c.eachSub(func(s *Subscription) { s.sendTrack(change) })
}

func (c *Coordinator) publishPosition(pos, dur time.Duration) {
	change := PositionChange{Position: pos, Duration: dur}
	c.eachSub(func(s *Subscription) { s.sendPosition(change) })
}

func (c *Coordinator) publishEvent(e Event) {
	c.mu.Lock()
	c.events = append(c.events, e)
	if len(c.events) > eventRingSize {
		c.events = c.events[len(c.events)-eventRingSize:]
	}
	c.mu.Unlock()
	c.eachSub(func(s *Subscription) { s.sendEvent(e) })
}

func (c *Coordinator) eachSub(fn func(*Subscription)) {
	c.subsMu.RLock()
	defer c.subsMu.RUnlock()
	for _, s := range c.subs {
		fn(s)
	}
}

func (c *Coordinator) onCrossfadeProgress(p crossfade.Progress) {
	c.publishEvent(Event{Kind: EventCrossfadePhase, Progress: p})
}

// --- position ticker ---

func (c *Coordinator) startTicker() {
	c.mu.Lock()
	if c.tickerStop != nil {
		c.mu.Unlock()
		return
	}
	stop := make(chan struct{})
	c.tickerStop = stop
	c.mu.Unlock()

	go func() {
		t := time.NewTicker(positionTick)
		defer t.Stop()
		for {
			select {
			case <-stop:
				return
			case <-t.C:
				c.onTick()
			}
		}
	}()
}

func (c *Coordinator) stopTicker() {
	c.mu.Lock()
	if c.tickerStop != nil {
		close(c.tickerStop)
		c.tickerStop = nil
	}
	c.mu.Unlock()
}
