package worker

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestNewPool_Defaults(t *testing.T) {
	pool := NewPool(context.Background(), 4, 10, nil)
	defer pool.Close()

	if pool.Workers() != 4 {
		t.Errorf("Expected 4 workers, got %d", pool.Workers())
	}
}

func TestNewPool_ZeroWorkers(t *testing.T) {
	pool := NewPool(context.Background(), 0, 10, nil)
	defer pool.Close()

	if pool.Workers() != 1 {
		t.Errorf("Expected 1 worker (default), got %d", pool.Workers())
	}
}

func TestPool_Submit_Success(t *testing.T) {
	pool := NewPool(context.Background(), 2, 10, nil)
	defer pool.Close()

	resultCh := make(chan int, 1)
	err := pool.Submit(Task{
		Name: "test-task",
		Run: func(ctx context.Context) error {
			resultCh <- 42
			return nil
		},
	})
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}

	select {
	case result := <-resultCh:
		if result != 42 {
			t.Errorf("Expected 42, got %d", result)
		}
	case <-time.After(time.Second):
		t.Fatal("Timeout waiting for task execution")
	}
}

func TestPool_Submit_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	pool := NewPool(ctx, 2, 10, nil)
	defer pool.Close()

	cancel()

	err := pool.Submit(Task{
		Name: "test-task",
		Run:  func(ctx context.Context) error { return nil },
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
}

func TestPool_TrySubmit_QueueFull(t *testing.T) {
	pool := NewPool(context.Background(), 1, 1, nil)
	defer pool.Close()

	// Block the worker
	blocker := make(chan struct{})
	started := make(chan struct{})
	_ = pool.Submit(Task{
		Name: "blocking",
		Run: func(ctx context.Context) error {
			close(started)
			<-blocker
			return nil
		},
	})
	<-started

	// Fill the queue
	if !pool.TrySubmit(Task{Name: "fill", Run: func(ctx context.Context) error { return nil }}) {
		t.Fatal("Expected fill task to be accepted")
	}

	// This one should be rejected
	if pool.TrySubmit(Task{Name: "overflow", Run: func(ctx context.Context) error { return nil }}) {
		t.Error("Expected overflow task to be rejected")
	}

	close(blocker)
}

func TestPool_TaskErrorIsContained(t *testing.T) {
	pool := NewPool(context.Background(), 1, 10, nil)
	defer pool.Close()

	done := make(chan struct{})
	_ = pool.Submit(Task{
		Name: "failing",
		Run: func(ctx context.Context) error {
			return errors.New("task failed")
		},
	})
	_ = pool.Submit(Task{
		Name: "after-failure",
		Run: func(ctx context.Context) error {
			close(done)
			return nil
		},
	})

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Worker should survive a failing task")
	}
}

func TestPool_TaskPanicIsContained(t *testing.T) {
	pool := NewPool(context.Background(), 1, 10, nil)
	defer pool.Close()

	done := make(chan struct{})
	_ = pool.Submit(Task{
		Name: "panicking",
		Run: func(ctx context.Context) error {
			panic("task panicked")
		},
	})
	_ = pool.Submit(Task{
		Name: "after-panic",
		Run: func(ctx context.Context) error {
			close(done)
			return nil
		},
	})

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Worker should survive a panicking task")
	}
}

func TestPool_ConcurrentSubmit(t *testing.T) {
	pool := NewPool(context.Background(), 4, 100, nil)
	defer pool.Close()

	var counter int64
	var submitted sync.WaitGroup
	var executed sync.WaitGroup

	for i := 0; i < 100; i++ {
		submitted.Add(1)
		executed.Add(1)
		go func() {
			defer submitted.Done()
			_ = pool.Submit(Task{
				Name: "concurrent",
				Run: func(ctx context.Context) error {
					atomic.AddInt64(&counter, 1)
					executed.Done()
					return nil
				},
			})
		}()
	}

	submitted.Wait()
	executed.Wait()

	if atomic.LoadInt64(&counter) != 100 {
		t.Errorf("Expected 100 executions, got %d", counter)
	}
}

func TestPool_Close(t *testing.T) {
	pool := NewPool(context.Background(), 4, 10, nil)

	executed := make(chan struct{})
	_ = pool.Submit(Task{
		Name: "before-close",
		Run: func(ctx context.Context) error {
			close(executed)
			return nil
		},
	})

	<-executed
	pool.Close()

	if err := pool.Submit(Task{Name: "after-close", Run: func(ctx context.Context) error { return nil }}); err == nil {
		t.Error("Expected error after Close(), got nil")
	}
	if pool.TrySubmit(Task{Name: "after-close", Run: func(ctx context.Context) error { return nil }}) {
		t.Error("Expected TrySubmit to reject after Close()")
	}
}

func TestPool_QueueLen(t *testing.T) {
	pool := NewPool(context.Background(), 1, 10, nil)
	defer pool.Close()

	blocker := make(chan struct{})
	started := make(chan struct{})
	_ = pool.Submit(Task{
		Name: "blocker",
		Run: func(ctx context.Context) error {
			close(started)
			<-blocker
			return nil
		},
	})
	<-started

	for i := 0; i < 5; i++ {
		_ = pool.TrySubmit(Task{
			Name: "queued",
			Run:  func(ctx context.Context) error { return nil },
		})
	}

	if qLen := pool.QueueLen(); qLen != 5 {
		t.Errorf("Expected queue length 5, got %d", qLen)
	}

	close(blocker)
}
