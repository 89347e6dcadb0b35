// Package engine implements the ServiceEngine: a registry of named
// services started and stopped in priority order, with per-class
// concurrency and a shutdown deadline.
//
// Grounded directly on the teacher's internal/engine/engine.go Engine
// struct (ctx/cancel pair, sync.WaitGroup, Start/Stop, per-goroutine
// dispatch loops, graceful-shutdown safety net), generalized from a fixed
// set of hardcoded goroutines to a priority-keyed service registry. The
// priority-class / concurrent-start-then-await shape additionally follows
// cuemby-warren's pkg/scheduler and pkg/reconciler (reference only).
package engine

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/arkin-run/arkin/internal/bus"
	"github.com/arkin-run/arkin/pkg/types"
)

// DefaultShutdownDeadline bounds how long a stop priority class is given
// to finish before the engine logs a warning and proceeds to the next
// class.
const DefaultShutdownDeadline = 30 * time.Second

// ServiceContext is handed to a service's Tasks method: a shutdown token
// plus the bus, on which the service makes its own subscriptions.
type ServiceContext struct {
	Done context.Context
	Bus  *bus.Bus
}

// CoreContext carries engine-wide handles every service may need: the
// current time and a publish endpoint. Kept as a struct of plain function
// fields so internal/clock, internal/bus, etc. can be swapped without
// touching the engine.
type CoreContext struct {
	Now     func() time.Time
	Publish func(ctx context.Context, event types.Event) error
}

// Task is one long-running unit of work a service contributes. It must
// return promptly once ctx (ServiceContext.Done) is cancelled.
type Task func(ctx context.Context) error

// Service is anything the engine can start and stop.
type Service interface {
	Name() string
	// Tasks returns the long-running functions this service runs. The
	// engine starts all of them concurrently and considers the service
	// started once Tasks returns (tasks themselves keep running in the
	// background until Done fires).
	Tasks(svcCtx ServiceContext, coreCtx CoreContext) []Task
}

type registration struct {
	service       Service
	startPriority uint64
	stopPriority  uint64
}

// Engine is the service registry and lifecycle coordinator.
type Engine struct {
	mu   sync.Mutex
	regs []registration

	shutdownDeadline time.Duration
	logger           *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	tasks  []taskHandle
}

type taskHandle struct {
	serviceName string
	err         chan error
}

// New creates an empty Engine.
func New(logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		shutdownDeadline: DefaultShutdownDeadline,
		logger:           logger.With("component", "engine"),
	}
}

// SetShutdownDeadline overrides DefaultShutdownDeadline.
func (e *Engine) SetShutdownDeadline(d time.Duration) { e.shutdownDeadline = d }

// Register adds a service to the registry. Services with equal start
// priority start concurrently, and lower start priorities start first;
// see Stop for how stop priorities are used.
func (e *Engine) Register(s Service, startPriority, stopPriority uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.regs = append(e.regs, registration{service: s, startPriority: startPriority, stopPriority: stopPriority})
}

// Start launches every registered service's tasks, one priority class at
// a time in ascending start-priority order. A class is "started" once
// every task in it has been spawned — tasks are long-running and are not
// awaited here, only at Stop.
func (e *Engine) Start(parent context.Context, b *bus.Bus, core CoreContext) {
	e.ctx, e.cancel = context.WithCancel(parent)

	classes := e.classesByPriority(func(r registration) uint64 { return r.startPriority })
	for _, class := range classes {
		for _, reg := range class {
			reg := reg
			svcCtx := ServiceContext{Done: e.ctx, Bus: b}
			tasks := reg.service.Tasks(svcCtx, core)
			for _, t := range tasks {
				t := t
				handle := taskHandle{serviceName: reg.service.Name(), err: make(chan error, 1)}
				e.tasks = append(e.tasks, handle)
				e.wg.Add(1)
				go func() {
					defer e.wg.Done()
					handle.err <- t(e.ctx)
				}()
			}
		}
		e.logger.Info("started service class", "size", len(class))
	}
}

// Stop cancels every running task at once and waits for all of them to
// return; stop priorities do not order the cancellation. The wait runs
// once per stop-priority class, each pass bounded by the shutdown
// deadline, so tasks that ignore cancellation hold Stop for up to one
// deadline per class.
func (e *Engine) Stop() {
	if e.cancel == nil {
		return
	}
	e.cancel()

	classes := e.classesByPriority(func(r registration) uint64 { return r.stopPriority })
	for _, class := range classes {
		done := make(chan struct{})
		go func() {
			e.wg.Wait()
			close(done)
		}()

		select {
		case <-done:
		case <-time.After(e.shutdownDeadline):
			e.logger.Warn("shutdown deadline exceeded for service class, proceeding", "size", len(class), "deadline", e.shutdownDeadline)
		}
	}
}

// classesByPriority groups registrations by the given priority selector
// and returns the classes ordered ascending by priority value.
func (e *Engine) classesByPriority(priority func(registration) uint64) [][]registration {
	e.mu.Lock()
	defer e.mu.Unlock()

	byPriority := make(map[uint64][]registration)
	for _, r := range e.regs {
		p := priority(r)
		byPriority[p] = append(byPriority[p], r)
	}

	keys := make([]uint64, 0, len(byPriority))
	for p := range byPriority {
		keys = append(keys, p)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })

	classes := make([][]registration, len(keys))
	for i, p := range keys {
		classes[i] = byPriority[p]
	}
	return classes
}
