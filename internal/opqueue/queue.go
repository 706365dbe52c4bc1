// Package opqueue serializes user operations onto one worker goroutine:
// a bounded-depth queue with three priority bands, executing in arrival
// order within a band.
package opqueue

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
	"github.com/evenfall/drift/internal/logger"
	"go.uber.org/zap"
)

// Priority orders pending operations. Higher runs first.
type Priority int

const (
	// PriorityNormal: resume, configuration changes.
	PriorityNormal Priority = iota
	// PriorityHigh: skip / track changes.
	PriorityHigh
	// PriorityUserInteractive: pause and stop; never waits behind a
	// backlog of transitions.
	PriorityUserInteractive
)

// String returns the priority name.
func (p Priority) String() string {
	switch p {
	case PriorityUserInteractive:
		return "userInteractive"
	case PriorityHigh:
		return "high"
	default:
		return "normal"
	}
}

// ErrQueueFull is returned when the pending depth bound is hit.
var ErrQueueFull = errors.New("opqueue: queue full")

// ErrClosed is returned after Close.
var ErrClosed = errors.New("opqueue: closed")

// DefaultDepth bounds pending (not running) operations.
const DefaultDepth = 3

type op struct {
	id   string
	name string
	prio Priority
	fn   func(ctx context.Context) error
	done chan error
}

// Queue runs operations one at a time.
type Queue struct {
	mu      sync.Mutex
	pending [3][]*op
	depth   int
	closed  bool
	wake    chan struct{}
	stop    chan struct{}
	ctx     context.Context
	cancel  context.CancelFunc
	idle    sync.WaitGroup
}

// New creates a queue with the given pending-depth bound (<= 0 means
// DefaultDepth) and starts its worker.
func New(depth int) *Queue {
	if depth <= 0 {
		depth = DefaultDepth
	}
	ctx, cancel := context.WithCancel(context.Background())
	q := &Queue{
		depth:  depth,
		wake:   make(chan struct{}, 1),
		stop:   make(chan struct{}),
		ctx:    ctx,
		cancel: cancel,
	}
	q.idle.Add(1)
	go q.worker()
	return q
}

// Enqueue schedules fn and returns immediately. The returned channel
// yields the operation's error when it finishes.
func (q *Queue) Enqueue(prio Priority, name string, fn func(ctx context.Context) error) (<-chan error, error) {
	o := &op{
		id:   uuid.NewString(),
		name: name,
		prio: prio,
		fn:   fn,
		done: make(chan error, 1),
	}

	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil, ErrClosed
	}
	if q.pendingLenLocked() >= q.depth {
		q.mu.Unlock()
		logger.Warn("operation rejected, queue full",
			zap.String("op", name),
			zap.String("priority", prio.String()))
		return nil, ErrQueueFull
	}
	q.pending[prio] = append(q.pending[prio], o)
	q.mu.Unlock()

	select {
	case q.wake <- struct{}{}:
	default:
	}
	return o.done, nil
}

// Run schedules fn and blocks until it has executed, returning its
// error.
func (q *Queue) Run(prio Priority, name string, fn func(ctx context.Context) error) error {
	done, err := q.Enqueue(prio, name, fn)
	if err != nil {
		return err
	}
	return <-done
}

// PendingLen returns the number of queued (not yet running) operations.
func (q *Queue) PendingLen() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.pendingLenLocked()
}

func (q *Queue) pendingLenLocked() int {
	n := 0
	for _, band := range q.pending {
		n += len(band)
	}
	return n
}

// Close stops the worker after the running operation finishes. Pending
// operations complete with ErrClosed.
func (q *Queue) Close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	var drained []*op
	for i := range q.pending {
		drained = append(drained, q.pending[i]...)
		q.pending[i] = nil
	}
	q.mu.Unlock()

	for _, o := range drained {
		o.done <- ErrClosed
	}
	q.cancel()
	close(q.stop)
	q.idle.Wait()
}

func (q *Queue) worker() {
	defer q.idle.Done()
	for {
		o := q.next()
		if o == nil {
			select {
			case <-q.stop:
				return
			case <-q.wake:
				continue
			}
		}
		logger.Debug("operation start",
			zap.String("op", o.name),
			zap.String("id", o.id),
			zap.String("priority", o.prio.String()))
		err := o.fn(q.ctx)
		if err != nil {
			logger.Debug("operation failed",
				zap.String("op", o.name),
				zap.Error(err))
		}
		o.done <- err
	}
}

// next pops the highest-priority oldest operation.
func (q *Queue) next() *op {
	q.mu.Lock()
	defer q.mu.Unlock()
	for prio := PriorityUserInteractive; prio >= PriorityNormal; prio-- {
		band := q.pending[prio]
		if len(band) > 0 {
			o := band[0]
			q.pending[prio] = band[1:]
			return o
		}
	}
	return nil
}
