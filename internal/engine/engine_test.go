package engine

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

type fakeService struct {
	name    string
	onStart func()
	onStop  func()
}

func (f *fakeService) Name() string { return f.name }

func (f *fakeService) Tasks(svcCtx ServiceContext, _ CoreContext) []Task {
	if f.onStart != nil {
		f.onStart()
	}
	return []Task{func(ctx context.Context) error {
		<-ctx.Done()
		if f.onStop != nil {
			f.onStop()
		}
		return nil
	}}
}

func TestStartRunsPriorityClassesInOrder(t *testing.T) {
	e := New(nil)

	var mu sync.Mutex
	var order []string
	record := func(name string) {
		mu.Lock()
		defer mu.Unlock()
		order = append(order, name)
	}

	e.Register(&fakeService{name: "a", onStart: func() { record("a") }}, 0, 10)
	e.Register(&fakeService{name: "b", onStart: func() { record("b") }}, 1, 5)
	e.Register(&fakeService{name: "c", onStart: func() { record("c") }}, 1, 5)

	e.Start(context.Background(), nil, CoreContext{})
	defer e.Stop()

	mu.Lock()
	defer mu.Unlock()
	if len(order) != 3 || order[0] != "a" {
		t.Fatalf("expected 'a' first (lowest priority), got %v", order)
	}
	rest := map[string]bool{order[1]: true, order[2]: true}
	if !rest["b"] || !rest["c"] {
		t.Fatalf("expected b and c in the second class, got %v", order)
	}
}

func TestStopCancelsAllTasks(t *testing.T) {
	e := New(nil)
	var stopped int32

	e.Register(&fakeService{name: "a", onStop: func() { atomic.AddInt32(&stopped, 1) }}, 0, 0)
	e.Register(&fakeService{name: "b", onStop: func() { atomic.AddInt32(&stopped, 1) }}, 0, 0)

	e.Start(context.Background(), nil, CoreContext{})
	e.Stop()

	if atomic.LoadInt32(&stopped) != 2 {
		t.Fatalf("expected both services to observe shutdown, got %d", stopped)
	}
}

func TestStopRespectsDeadlinePerClass(t *testing.T) {
	e := New(nil)
	e.SetShutdownDeadline(50 * time.Millisecond)

	hang := &fakeService{name: "hang"}
	// Override Tasks to ignore ctx and never return, to exercise the
	// deadline-exceeded path without hanging the test suite.
	blocking := &blockingService{name: "hang"}
	_ = hang

	e.Register(blocking, 0, 0)
	e.Start(context.Background(), nil, CoreContext{})

	done := make(chan struct{})
	go func() {
		e.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Stop did not return within a reasonable bound after its deadline")
	}
}

type blockingService struct{ name string }

func (b *blockingService) Name() string { return b.name }

func (b *blockingService) Tasks(ServiceContext, CoreContext) []Task {
	return []Task{func(ctx context.Context) error {
		<-make(chan struct{}) // never returns, even after ctx is cancelled
		return nil
	}}
}
