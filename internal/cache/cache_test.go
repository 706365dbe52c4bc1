package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/evenfall/drift/internal/audio"
)

func testLoader(calls *atomic.Int64) Loader {
	return func(uri string) (*audio.Buffer, audio.Track, error) {
		calls.Add(1)
		buf := audio.NewBuffer(1, 441, 44100)
		return buf, audio.Track{URI: uri}.WithFormat(buf), nil
	}
}

func TestGet_MissThenHit(t *testing.T) {
	var calls atomic.Int64
	c := New(testLoader(&calls), Options{})

	buf1, track, err := c.Get(context.Background(), "a.wav", PriorityPlayback)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if track.URI != "a.wav" || !track.Loaded() {
		t.Errorf("track = %+v, want loaded a.wav", track)
	}

	buf2, _, err := c.Get(context.Background(), "a.wav", PriorityPlayback)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if buf1 != buf2 {
		t.Error("second Get should return the shared buffer")
	}
	if calls.Load() != 1 {
		t.Errorf("loader ran %d times, want 1", calls.Load())
	}
}

func TestGet_CoalescesConcurrentLoads(t *testing.T) {
	var calls atomic.Int64
	started := make(chan struct{})
	release := make(chan struct{})
	loader := func(uri string) (*audio.Buffer, audio.Track, error) {
		if calls.Add(1) == 1 {
			close(started)
		}
		<-release
		buf := audio.NewBuffer(1, 441, 44100)
		return buf, audio.Track{URI: uri}, nil
	}
	c := New(loader, Options{})

	var wg sync.WaitGroup
	bufs := make([]*audio.Buffer, 4)
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			bufs[i], _, _ = c.Get(context.Background(), "same.wav", PriorityPlayback)
		}(i)
	}
	<-started
	close(release)
	wg.Wait()

	if calls.Load() != 1 {
		t.Errorf("loader ran %d times, want 1 (coalesced)", calls.Load())
	}
	for i := 1; i < 4; i++ {
		if bufs[i] != bufs[0] {
			t.Error("coalesced callers should share one buffer")
		}
	}
}

func TestGet_LoadError(t *testing.T) {
	cause := errors.New("corrupt header")
	loader := func(uri string) (*audio.Buffer, audio.Track, error) {
		return nil, audio.Track{URI: uri}, cause
	}
	c := New(loader, Options{})

	_, _, err := c.Get(context.Background(), "bad.mp3", PriorityPlayback)
	var le *LoadError
	if !errors.As(err, &le) {
		t.Fatalf("err = %v, want *LoadError", err)
	}
	if le.URI != "bad.mp3" || !errors.Is(err, cause) {
		t.Errorf("LoadError = %+v", le)
	}
}

func TestGet_Timeout(t *testing.T) {
	loader := func(uri string) (*audio.Buffer, audio.Track, error) {
		time.Sleep(500 * time.Millisecond)
		return audio.NewBuffer(1, 441, 44100), audio.Track{URI: uri}, nil
	}
	c := New(loader, Options{LoadTimeout: 20 * time.Millisecond})

	_, _, err := c.Get(context.Background(), "slow.flac", PriorityPlayback)
	var te *TimeoutError
	if !errors.As(err, &te) {
		t.Fatalf("err = %v, want *TimeoutError", err)
	}
	if te.URI != "slow.flac" {
		t.Errorf("TimeoutError.URI = %q", te.URI)
	}
}

func TestGet_ContextCancelsWaitOnly(t *testing.T) {
	release := make(chan struct{})
	loader := func(uri string) (*audio.Buffer, audio.Track, error) {
		<-release
		return audio.NewBuffer(1, 441, 44100), audio.Track{URI: uri}, nil
	}
	c := New(loader, Options{})

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()
	_, _, err := c.Get(ctx, "x.wav", PriorityPlayback)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}

	// The shared load keeps going and lands in the cache.
	close(release)
	deadline := time.After(time.Second)
	for !c.Contains("x.wav") {
		select {
		case <-deadline:
			t.Fatal("load did not complete after caller cancellation")
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestLRU_EvictsOldest(t *testing.T) {
	var calls atomic.Int64
	c := New(testLoader(&calls), Options{MaxEntries: 2})

	ctx := context.Background()
	c.Get(ctx, "1", PriorityPlayback)
	c.Get(ctx, "2", PriorityPlayback)
	c.Get(ctx, "1", PriorityPlayback) // refresh 1
	c.Get(ctx, "3", PriorityPlayback) // evicts 2

	if c.Contains("2") {
		t.Error("entry 2 should have been evicted")
	}
	if !c.Contains("1") || !c.Contains("3") {
		t.Error("entries 1 and 3 should be resident")
	}
}

func TestLRU_PinnedEntriesSurvive(t *testing.T) {
	var calls atomic.Int64
	c := New(testLoader(&calls), Options{MaxEntries: 2})

	ctx := context.Background()
	c.Get(ctx, "playing", PriorityPlayback)
	c.Pin("playing")
	c.Get(ctx, "2", PriorityPlayback)
	c.Get(ctx, "3", PriorityPlayback)
	c.Get(ctx, "4", PriorityPlayback)

	if !c.Contains("playing") {
		t.Error("pinned entry was evicted")
	}

	c.Unpin("playing")
	for i := 5; i < 8; i++ {
		c.Get(ctx, fmt.Sprint(i), PriorityPlayback)
	}
	if c.Contains("playing") {
		t.Error("unpinned entry should eventually be evicted")
	}
}

func TestPreload_WarmsCache(t *testing.T) {
	var calls atomic.Int64
	c := New(testLoader(&calls), Options{})

	c.Preload("warm.wav")
	deadline := time.After(time.Second)
	for !c.Contains("warm.wav") {
		select {
		case <-deadline:
			t.Fatal("preload never landed")
		case <-time.After(5 * time.Millisecond):
		}
	}

	c.Get(context.Background(), "warm.wav", PriorityPlayback)
	if calls.Load() != 1 {
		t.Errorf("loader ran %d times, want 1", calls.Load())
	}
}

func TestRemove(t *testing.T) {
	var calls atomic.Int64
	c := New(testLoader(&calls), Options{})
	c.Get(context.Background(), "x", PriorityPlayback)
	c.Remove("x")
	if c.Contains("x") {
		t.Error("entry should be gone after Remove")
	}
}
