package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/arkin-run/arkin/internal/bus"
	"github.com/arkin-run/arkin/internal/config"
	"github.com/arkin-run/arkin/internal/engine"
	"github.com/arkin-run/arkin/internal/insights"
	"github.com/arkin-run/arkin/internal/ledger"
	"github.com/arkin-run/arkin/internal/orders"
	"github.com/arkin-run/arkin/internal/persistence"
	"github.com/arkin-run/arkin/internal/risk"
)

// app bundles the infrastructure every subcommand shares: the bus, the
// core data stores, and the engine they're registered against.
type app struct {
	cfg      *config.Config
	logger   *slog.Logger
	bus      *bus.Bus
	insights *insights.State
	ledger   *ledger.Ledger
	execBook *orders.ExecutionOrderBook
	venBook  *orders.VenueOrderBook
	reader   *persistence.Reader
	writer   *persistence.Writer
	engine   *engine.Engine
	now      func() time.Time
}

func newApp(cfg *config.Config, logger *slog.Logger, now func() time.Time) (*app, error) {
	b := bus.New(logger)

	reader, err := persistence.OpenReader(cfg.Persistence.DataDir)
	if err != nil {
		return nil, err
	}
	writer, err := persistence.OpenWriter(cfg.Persistence.DataDir, logger,
		persistence.WithBatchSize(cfg.Persistence.BatchSize),
		persistence.WithMaxRetries(cfg.Persistence.MaxRetries))
	if err != nil {
		return nil, err
	}

	eng := engine.New(logger)
	eng.SetShutdownDeadline(cfg.Engine.ShutdownDeadline)

	a := &app{
		cfg:      cfg,
		logger:   logger,
		bus:      b,
		insights: insights.New(insights.WithRetention(cfg.Insights.RetentionWindow), insights.WithCandleInterval(cfg.Insights.CandleInterval)),
		ledger:   ledger.New(),
		execBook: orders.NewExecutionOrderBook(),
		venBook:  orders.NewVenueOrderBook(),
		reader:   reader,
		writer:   writer,
		engine:   eng,
		now:      now,
	}
	return a, nil
}

func (a *app) coreContext() engine.CoreContext {
	return engine.CoreContext{
		Now:     a.now,
		Publish: a.bus.Publish,
	}
}

// runUntilSignalOrDone starts the engine, blocks until an interrupt is
// received, the supplied done channel closes (e.g. a replay clock
// finishing), or the risk watchdog (if any) emits a kill signal, then
// stops the engine. Returns the process exit code.
func runUntilSignalOrDone(ctx context.Context, a *app, done <-chan struct{}, kill <-chan risk.KillSignal) int {
	a.engine.Start(ctx, a.bus, a.coreContext())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	code := exitOK
	select {
	case sig := <-sigCh:
		a.logger.Info("received shutdown signal", "signal", sig.String())
		code = exitInterrupted
	case ks := <-kill:
		a.logger.Error("risk watchdog triggered shutdown", "reason", ks.Reason, "fatal", ks.Fatal)
		code = exitRuntimeError
	case <-done:
		a.logger.Info("run completed")
	}

	a.engine.Stop()
	if err := a.writer.Close(); err != nil {
		a.logger.Error("final persistence flush failed", "error", err)
		if code == exitOK {
			code = exitRuntimeError
		}
	}
	return code
}
