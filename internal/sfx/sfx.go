// Package sfx plays one-shot sound effects: at most one at a time,
// backed by a preloaded buffer cache, with a master volume multiplying
// each effect's intrinsic volume.
package sfx

import (
	"context"
	"sync"
	"time"

	"github.com/evenfall/drift/internal/cache"
	"github.com/evenfall/drift/internal/fade"
	"github.com/evenfall/drift/internal/host"
	"github.com/evenfall/drift/internal/logger"
	"go.uber.org/zap"
)

// Effect identifies a sound effect and its intrinsic volume.
type Effect struct {
	URI    string
	Volume float64 // [0,1]; 0 means "use 1"
}

// DefaultCacheSize bounds the effect cache.
const DefaultCacheSize = 10

// Player owns the SFX node pair, handed off once at engine setup.
type Player struct {
	mu     sync.Mutex
	player host.Player
	mixer  host.Mixer
	cache  *cache.Cache

	master     float64
	currentURI string
	playing    bool
	fadeCancel context.CancelFunc
}

// New creates an SFX player over the node pair and its effect cache.
func New(player host.Player, mixer host.Mixer, c *cache.Cache) *Player {
	return &Player{
		player: player,
		mixer:  mixer,
		cache:  c,
		master: 1,
	}
}

// Play starts the effect, stopping whatever was playing first. The
// effective volume is master * effect volume.
func (p *Player) Play(ctx context.Context, effect Effect, fadeIn time.Duration) error {
	p.stop(0)

	buf, _, err := p.cache.Get(ctx, effect.URI, cache.PriorityPlayback)
	if err != nil {
		return err
	}

	intrinsic := effect.Volume
	if intrinsic <= 0 {
		intrinsic = 1
	}
	if intrinsic > 1 {
		intrinsic = 1
	}

	p.mu.Lock()
	p.cache.Pin(effect.URI)
	p.currentURI = effect.URI
	p.playing = true
	target := p.master * intrinsic

	p.player.ScheduleBuffer(buf, 0, func() {})
	if fadeIn > 0 {
		p.mixer.SetVolume(0)
	} else {
		p.mixer.SetVolume(target)
	}
	p.player.Play()

	var fadeCtx context.Context
	if fadeIn > 0 {
		fadeCtx, p.fadeCancel = context.WithCancel(context.Background())
	}
	p.mu.Unlock()

	if fadeCtx != nil {
		go func() {
			_ = fade.Ramp(fadeCtx, p.mixer.SetVolume, 0, target, fadeIn, fade.Linear)
		}()
	}
	logger.Debug("sound effect started", zap.String("uri", effect.URI))
	return nil
}

// Stop fades the current effect out and stops it.
func (p *Player) Stop(fadeOut time.Duration) {
	p.stop(fadeOut)
}

func (p *Player) stop(fadeOut time.Duration) {
	p.mu.Lock()
	if !p.playing {
		p.mu.Unlock()
		return
	}
	if p.fadeCancel != nil {
		p.fadeCancel()
		p.fadeCancel = nil
	}
	uri := p.currentURI
	p.currentURI = ""
	p.playing = false
	p.mu.Unlock()

	if fadeOut > 0 {
		_ = fade.Ramp(context.Background(), p.mixer.SetVolume, p.mixer.Volume(), 0, fadeOut, fade.Linear)
	}
	p.player.Stop()
	p.player.Reset()
	p.mixer.SetVolume(0)
	if uri != "" {
		p.cache.Unpin(uri)
	}
}

// SetMasterVolume rescales the playing effect immediately and all
// future ones.
func (p *Player) SetMasterVolume(v float64) {
	if v < 0 {
		v = 0
	}
	if v > 1 {
		v = 1
	}
	p.mu.Lock()
	old := p.master
	p.master = v
	playing := p.playing && p.fadeCancel == nil
	p.mu.Unlock()

	if playing && old > 0 {
		// Rescale keeping the intrinsic component.
		p.mixer.SetVolume(p.mixer.Volume() / old * v)
	} else if playing {
		p.mixer.SetVolume(v)
	}
}

// MasterVolume returns the master volume.
func (p *Player) MasterVolume() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.master
}

// Preload warms the cache for the given effects.
func (p *Player) Preload(uris ...string) {
	for _, uri := range uris {
		p.cache.Preload(uri)
	}
}

// Unload evicts effects from the cache, stopping playback first when
// the evicted effect is the one playing.
func (p *Player) Unload(uris ...string) {
	for _, uri := range uris {
		p.mu.Lock()
		active := p.playing && p.currentURI == uri
		p.mu.Unlock()
		if active {
			p.stop(0)
		}
		p.cache.Remove(uri)
	}
}

// Playing reports whether an effect is rendering and which.
func (p *Player) Playing() (string, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.currentURI, p.playing
}

// Pause suspends the effect (pauseAll path).
func (p *Player) Pause() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.playing {
		p.player.Pause()
	}
}

// Resume continues a paused effect (resumeAll path).
func (p *Player) Resume() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.playing {
		p.player.Resume()
	}
}
