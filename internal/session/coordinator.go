// Package session manages the process-wide audio session: category and
// activation in managed mode, validation-only in external mode, and the
// translation of host interruption/route-change/reset notifications
// into pause/resume/recover signals for the facade.
package session

import (
	"fmt"
	"sync"
	"time"

	"github.com/evenfall/drift/internal/host"
	"github.com/evenfall/drift/internal/logger"
	"go.uber.org/zap"
)

// Mode selects who owns the session.
type Mode int

const (
	// ModeManaged: the coordinator configures and activates the
	// session; it stays active for the process lifetime.
	ModeManaged Mode = iota
	// ModeExternal: the embedder owns the session; the coordinator
	// only validates and reports.
	ModeExternal
)

// String returns the mode name.
func (m Mode) String() string {
	if m == ModeExternal {
		return "external"
	}
	return "managed"
}

const (
	preferredIOBufferDuration = 20 * time.Millisecond
	preferredSampleRate       = 44100.0
	routeChangeDebounce       = 300 * time.Millisecond
)

// ConfigurationError reports an incompatible or failed session setup.
type ConfigurationError struct {
	Reason   string
	Category host.Category
}

func (e *ConfigurationError) Error() string {
	if e.Category != "" {
		return fmt.Sprintf("session configuration failed: %s (category %q)", e.Reason, e.Category)
	}
	return fmt.Sprintf("session configuration failed: %s", e.Reason)
}

// SignalKind discriminates coordinator output signals.
type SignalKind int

const (
	// SignalPause asks the facade to pause everything.
	SignalPause SignalKind = iota
	// SignalResume asks the facade to resume after an interruption
	// whose end carried the should-resume flag.
	SignalResume
	// SignalRecover asks the facade to run media-services-reset
	// recovery.
	SignalRecover
	// SignalRouteChanged reports a non-fatal route change; new-device and
	// override changes arrive debounced, other reasons immediately.
	SignalRouteChanged
	// SignalCategoryChanged reports an external category mutation; the
	// validation describes the mismatch.
	SignalCategoryChanged
)

// String returns the signal name.
func (k SignalKind) String() string {
	switch k {
	case SignalPause:
		return "pause"
	case SignalResume:
		return "resume"
	case SignalRecover:
		return "recover"
	case SignalRouteChanged:
		return "routeChanged"
	case SignalCategoryChanged:
		return "categoryChanged"
	default:
		return "unknown"
	}
}

// Signal is one coordinator output.
type Signal struct {
	Kind        SignalKind
	RouteReason host.RouteChangeReason
	Validation  Validation
}

// Config holds the session parameters supplied by the embedder.
type Config struct {
	Mode    Mode
	Options host.CategoryOptions
}

// Coordinator is safe for concurrent use; the event loop is the only
// goroutine that reads host events.
type Coordinator struct {
	mu           sync.Mutex
	session      host.Session
	cfg          Config
	configured   bool
	activated    bool
	isActivating bool

	signals  chan Signal
	stop     chan struct{}
	stopped  sync.Once
	debounce *time.Timer
}

// New creates a coordinator around the host session and starts its
// event loop.
func New(s host.Session) *Coordinator {
	c := &Coordinator{
		session: s,
		signals: make(chan Signal, 16),
		stop:    make(chan struct{}),
	}
	go c.run()
	return c
}

// Signals delivers pause/resume/recover/category signals to the facade.
func (c *Coordinator) Signals() <-chan Signal { return c.signals }

// Configure applies (managed) or validates (external) the session.
// force re-applies even if already configured — used by reset recovery.
func (c *Coordinator) Configure(cfg Config, force bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.configured && !force {
		if cfg.Options != c.cfg.Options {
			// First configuration wins; divergent options are worth a
			// warning, not an error.
			logger.Warn("session already configured with different options",
				zap.String("mode", cfg.Mode.String()))
		}
		return nil
	}

	switch cfg.Mode {
	case ModeManaged:
		if err := c.configureManagedLocked(cfg); err != nil {
			return err
		}
	case ModeExternal:
		v := c.validateExternalLocked()
		if v.Result == ValidationCategoryChanged {
			return &ConfigurationError{
				Reason:   "incompatible externally-managed category",
				Category: v.Current,
			}
		}
	}
	c.cfg = cfg
	c.configured = true
	return nil
}

func (c *Coordinator) configureManagedLocked(cfg Config) error {
	if err := c.session.SetPreferredIOBufferDuration(preferredIOBufferDuration); err != nil {
		logger.Warn("preferred IO buffer duration rejected", zap.Error(err))
	}
	if err := c.session.SetPreferredSampleRate(preferredSampleRate); err != nil {
		logger.Warn("preferred sample rate rejected", zap.Error(err))
	}
	if err := c.session.SetCategory(host.CategoryPlayback, cfg.Options); err != nil {
		return &ConfigurationError{Reason: err.Error(), Category: host.CategoryPlayback}
	}
	return c.activateLocked()
}

// activateLocked activates exactly once, with a reentrancy guard.
func (c *Coordinator) activateLocked() error {
	if c.activated || c.isActivating {
		return nil
	}
	c.isActivating = true
	err := c.session.SetActive(true)
	c.isActivating = false
	if err != nil {
		return &ConfigurationError{Reason: fmt.Sprintf("activation: %v", err)}
	}
	c.activated = true
	return nil
}

// Deactivate is deprecated and a no-op: the session stays active for
// the process lifetime once activated.
func (c *Coordinator) Deactivate() {
	logger.Warn("session deactivation requested; ignored (session stays active for process lifetime)")
}

// IsActivated reports whether managed activation succeeded.
func (c *Coordinator) IsActivated() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.activated
}

// Mode returns the configured mode.
func (c *Coordinator) Mode() Mode {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cfg.Mode
}

// Validate re-runs external-mode validation on demand.
func (c *Coordinator) Validate() Validation {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.validateExternalLocked()
}

// Close stops the event loop. The session itself is left untouched.
func (c *Coordinator) Close() {
	c.stopped.Do(func() { close(c.stop) })
}

// run rehomes host callbacks onto this single goroutine so no signal
// handling races another.
func (c *Coordinator) run() {
	for {
		select {
		case <-c.stop:
			return
		case ev, ok := <-c.session.Events():
			if !ok {
				return
			}
			c.handleEvent(ev)
		}
	}
}

func (c *Coordinator) handleEvent(ev host.Event) {
	logger.Debug("session event", zap.String("kind", ev.Kind.String()))
	switch ev.Kind {
	case host.EventInterruptionBegan:
		c.emit(Signal{Kind: SignalPause})
	case host.EventInterruptionEnded:
		// Without the should-resume flag this was a Siri-style pause:
		// the user decides when to come back.
		if ev.ShouldResume {
			c.emit(Signal{Kind: SignalResume})
		}
	case host.EventRouteChange:
		c.handleRouteChange(ev.RouteReason)
	case host.EventMediaServicesReset:
		c.emit(Signal{Kind: SignalRecover})
	}
}

func (c *Coordinator) handleRouteChange(reason host.RouteChangeReason) {
	switch reason {
	case host.RouteReasonOldDeviceUnavailable:
		// Unplugged headphones: pause immediately, before audio leaks
		// out of the speaker.
		c.emit(Signal{Kind: SignalPause, RouteReason: reason})
	case host.RouteReasonNewDeviceAvailable, host.RouteReasonOverride:
		c.mu.Lock()
		if c.debounce != nil {
			c.debounce.Stop()
		}
		c.debounce = time.AfterFunc(routeChangeDebounce, func() {
			c.emit(Signal{Kind: SignalRouteChanged, RouteReason: reason})
		})
		c.mu.Unlock()
	case host.RouteReasonCategoryChange:
		c.mu.Lock()
		v := c.validateExternalLocked()
		c.mu.Unlock()
		if v.Result == ValidationCategoryChanged {
			c.emit(Signal{Kind: SignalPause, RouteReason: reason})
			c.emit(Signal{Kind: SignalCategoryChanged, RouteReason: reason, Validation: v})
		}
	default:
		c.emit(Signal{Kind: SignalRouteChanged, RouteReason: reason})
	}
}

func (c *Coordinator) emit(s Signal) {
	select {
	case c.signals <- s:
	default:
		logger.Warn("session signal dropped", zap.String("kind", s.Kind.String()))
	}
}
