package opqueue

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestRun_ExecutesSerially(t *testing.T) {
	q := New(10)
	defer q.Close()

	var mu sync.Mutex
	var order []int
	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		i := i
		go func() {
			defer wg.Done()
			q.Run(PriorityNormal, "op", func(ctx context.Context) error {
				mu.Lock()
				order = append(order, i)
				mu.Unlock()
				return nil
			})
		}()
		time.Sleep(10 * time.Millisecond) // stabilize arrival order
	}
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	if len(order) != 5 {
		t.Fatalf("executed %d ops, want 5", len(order))
	}
	for i, got := range order {
		if got != i {
			t.Errorf("order = %v, want arrival order", order)
			break
		}
	}
}

func TestEnqueue_PriorityOrdering(t *testing.T) {
	q := New(10)
	defer q.Close()

	block := make(chan struct{})
	// Occupy the worker so the queue builds up.
	q.Enqueue(PriorityNormal, "blocker", func(ctx context.Context) error {
		<-block
		return nil
	})
	time.Sleep(20 * time.Millisecond)

	var mu sync.Mutex
	var order []string
	record := func(name string) func(context.Context) error {
		return func(ctx context.Context) error {
			mu.Lock()
			order = append(order, name)
			mu.Unlock()
			return nil
		}
	}
	d1, _ := q.Enqueue(PriorityNormal, "resume", record("resume"))
	d2, _ := q.Enqueue(PriorityHigh, "skip", record("skip"))
	d3, _ := q.Enqueue(PriorityUserInteractive, "pause", record("pause"))
	close(block)
	<-d1
	<-d2
	<-d3

	mu.Lock()
	defer mu.Unlock()
	want := []string{"pause", "skip", "resume"}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("order = %v, want %v", order, want)
		}
	}
}

func TestEnqueue_BoundedDepth(t *testing.T) {
	q := New(2)
	defer q.Close()

	block := make(chan struct{})
	defer close(block)
	q.Enqueue(PriorityNormal, "blocker", func(ctx context.Context) error {
		<-block
		return nil
	})
	time.Sleep(20 * time.Millisecond) // blocker is running, not pending

	if _, err := q.Enqueue(PriorityNormal, "1", func(ctx context.Context) error { return nil }); err != nil {
		t.Fatalf("enqueue 1: %v", err)
	}
	if _, err := q.Enqueue(PriorityNormal, "2", func(ctx context.Context) error { return nil }); err != nil {
		t.Fatalf("enqueue 2: %v", err)
	}
	_, err := q.Enqueue(PriorityNormal, "3", func(ctx context.Context) error { return nil })
	if !errors.Is(err, ErrQueueFull) {
		t.Errorf("err = %v, want ErrQueueFull", err)
	}
}

func TestRun_ReturnsOperationError(t *testing.T) {
	q := New(3)
	defer q.Close()

	boom := errors.New("boom")
	err := q.Run(PriorityNormal, "failing", func(ctx context.Context) error { return boom })
	if !errors.Is(err, boom) {
		t.Errorf("err = %v, want boom", err)
	}
}

func TestClose_DrainsPendingWithErrClosed(t *testing.T) {
	q := New(5)
	block := make(chan struct{})
	q.Enqueue(PriorityNormal, "blocker", func(ctx context.Context) error {
		<-block
		return nil
	})
	time.Sleep(20 * time.Millisecond)
	done, _ := q.Enqueue(PriorityNormal, "pending", func(ctx context.Context) error { return nil })

	go func() {
		time.Sleep(20 * time.Millisecond)
		close(block)
	}()
	q.Close()

	if err := <-done; !errors.Is(err, ErrClosed) {
		t.Errorf("pending op err = %v, want ErrClosed", err)
	}
	if _, err := q.Enqueue(PriorityNormal, "late", func(ctx context.Context) error { return nil }); !errors.Is(err, ErrClosed) {
		t.Errorf("late enqueue err = %v, want ErrClosed", err)
	}
}
