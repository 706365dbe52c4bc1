package beephost

import (
	"sync"
	"time"

	"github.com/evenfall/drift/internal/host"
)

// Session is the desktop stand-in for the platform audio session.
// Desktop audio has no interruption or route-change notifications, so
// the event channel stays silent; category and activation are recorded
// so managed-mode configuration and external-mode validation behave
// consistently.
type Session struct {
	mu         sync.Mutex
	category   host.Category
	options    host.CategoryOptions
	active     bool
	sampleRate float64
	ioBuffer   time.Duration
	events     chan host.Event
}

// NewSession creates an inactive session.
func NewSession() *Session {
	return &Session{events: make(chan host.Event)}
}

func (s *Session) SetCategory(c host.Category, opts host.CategoryOptions) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.category = c
	s.options = opts
	return nil
}

func (s *Session) Category() host.Category {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.category
}

func (s *Session) CategoryOptions() host.CategoryOptions {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.options
}

func (s *Session) SetPreferredSampleRate(hz float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sampleRate = hz
	return nil
}

func (s *Session) SetPreferredIOBufferDuration(d time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ioBuffer = d
	return nil
}

func (s *Session) SetActive(active bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.active = active
	return nil
}

func (s *Session) IsActive() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

func (s *Session) Events() <-chan host.Event { return s.events }

var _ host.Session = (*Session)(nil)
