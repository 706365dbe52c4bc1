package fade

import (
	"context"
	"sync"
	"testing"
	"time"
)

type recorder struct {
	mu     sync.Mutex
	values []float64
}

func (r *recorder) set(v float64) {
	r.mu.Lock()
	r.values = append(r.values, v)
	r.mu.Unlock()
}

func (r *recorder) last() (float64, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.values) == 0 {
		return 0, false
	}
	return r.values[len(r.values)-1], true
}

func TestStepsPerSecond_Buckets(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want int
	}{
		{200 * time.Millisecond, 100},
		{999 * time.Millisecond, 100},
		{time.Second, 50},
		{4 * time.Second, 50},
		{5 * time.Second, 30},
		{14 * time.Second, 30},
		{15 * time.Second, 20},
		{time.Minute, 20},
	}
	for _, tt := range tests {
		if got := StepsPerSecond(tt.d); got != tt.want {
			t.Errorf("StepsPerSecond(%v) = %d, want %d", tt.d, got, tt.want)
		}
	}
}

func TestRamp_EndsExactlyAtTarget(t *testing.T) {
	var r recorder
	if err := Ramp(context.Background(), r.set, 0.2, 0.91, 100*time.Millisecond, EqualPower); err != nil {
		t.Fatalf("Ramp: %v", err)
	}
	last, ok := r.last()
	if !ok || last != 0.91 {
		t.Errorf("last write = %v, want exactly 0.91", last)
	}
}

func TestRamp_ZeroDurationWritesImmediately(t *testing.T) {
	var r recorder
	if err := Ramp(context.Background(), r.set, 0, 1, 0, Linear); err != nil {
		t.Fatalf("Ramp: %v", err)
	}
	if last, _ := r.last(); last != 1 {
		t.Errorf("last write = %v, want 1", last)
	}
}

func TestRamp_CancelSkipsFinalWrite(t *testing.T) {
	var r recorder
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- Ramp(ctx, r.set, 0, 1, 2*time.Second, Linear) }()
	time.Sleep(150 * time.Millisecond)
	cancel()

	if err := <-done; err != ErrCancelled {
		t.Fatalf("err = %v, want ErrCancelled", err)
	}
	if last, ok := r.last(); ok && last >= 0.99 {
		t.Errorf("cancelled ramp wrote final value %v", last)
	}
}

func TestRamp_Monotone(t *testing.T) {
	var r recorder
	if err := Ramp(context.Background(), r.set, 0, 1, 100*time.Millisecond, EaseOut); err != nil {
		t.Fatalf("Ramp: %v", err)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := 1; i < len(r.values); i++ {
		if r.values[i] < r.values[i-1] {
			t.Fatalf("values not monotone: %v", r.values)
		}
	}
}
