// Package risk watches the ledger for fatal errors and daily-loss limit
// breaches and drives the engine's emergency shutdown path. Grounded on
// the teacher's internal/risk/manager.go (aggregate-report loop,
// kill-channel, cooldown), repointed from per-market exposure/price-move
// detection to the ConservationViolation/daily-loss dispositions this
// system's error handling design calls for.
package risk

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/arkin-run/arkin/internal/arkerr"
	"github.com/arkin-run/arkin/internal/engine"
)

// Config holds the tunables for the watchdog.
type Config struct {
	MaxDailyLoss      float64
	CooldownAfterKill time.Duration
}

// KillSignal tells the engine to stop trading. Reason is human-readable;
// Fatal distinguishes an unrecoverable error (conservation violation)
// from a recoverable limit breach (daily loss) that only needs a
// cooldown.
type KillSignal struct {
	Reason string
	Fatal  bool
}

// Watchdog aggregates realized-PnL reports and ledger errors, and emits
// KillSignals on the configured limit or on any fatal ledger error.
type Watchdog struct {
	cfg    Config
	logger *slog.Logger

	mu               sync.Mutex
	dailyRealizedPnL float64
	killActive       bool
	killUntil        time.Time

	reportCh chan float64
	errCh    chan error
	killCh   chan KillSignal
}

// NewWatchdog creates a risk watchdog.
func NewWatchdog(cfg Config, logger *slog.Logger) *Watchdog {
	if logger == nil {
		logger = slog.Default()
	}
	return &Watchdog{
		cfg:      cfg,
		logger:   logger.With("component", "risk"),
		reportCh: make(chan float64, 100),
		errCh:    make(chan error, 10),
		killCh:   make(chan KillSignal, 10),
	}
}

// Name satisfies engine.Service.
func (w *Watchdog) Name() string { return "risk_watchdog" }

// Tasks satisfies engine.Service.
func (w *Watchdog) Tasks(svcCtx engine.ServiceContext, coreCtx engine.CoreContext) []engine.Task {
	return []engine.Task{func(ctx context.Context) error { return w.Run(ctx) }}
}

// ReportPnL submits a realized PnL delta for the running daily total
// (non-blocking; drops under backpressure rather than stalling the
// caller).
func (w *Watchdog) ReportPnL(delta float64) {
	select {
	case w.reportCh <- delta:
	default:
		w.logger.Warn("risk report channel full, dropping pnl report")
	}
}

// ReportError submits an error observed elsewhere in the system (e.g. a
// Ledger.Post failure) for risk evaluation.
func (w *Watchdog) ReportError(err error) {
	select {
	case w.errCh <- err:
	default:
		w.logger.Warn("risk error channel full, dropping error report")
	}
}

// KillSignals returns the channel the engine reads shutdown triggers
// from.
func (w *Watchdog) KillSignals() <-chan KillSignal { return w.killCh }

// IsKillActive reports whether the watchdog is currently in a cooldown
// or fatal-killed state.
func (w *Watchdog) IsKillActive() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.killActive {
		return false
	}
	if !w.killUntil.IsZero() && time.Now().After(w.killUntil) {
		w.killActive = false
		return false
	}
	return true
}

// Run starts the monitoring loop. Blocks until ctx is cancelled.
func (w *Watchdog) Run(ctx context.Context) error {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case delta := <-w.reportCh:
			w.processPnL(delta)
		case err := <-w.errCh:
			w.processError(err)
		case <-ticker.C:
			w.clearExpiredCooldown()
		}
	}
}

func (w *Watchdog) processPnL(delta float64) {
	w.mu.Lock()
	w.dailyRealizedPnL += delta
	breach := w.cfg.MaxDailyLoss > 0 && w.dailyRealizedPnL < -w.cfg.MaxDailyLoss
	if breach {
		w.killActive = true
		w.killUntil = time.Now().Add(w.cfg.CooldownAfterKill)
	}
	w.mu.Unlock()

	if breach {
		w.logger.Warn("daily loss limit breached, triggering kill switch", "daily_pnl", w.dailyRealizedPnL)
		w.emit(KillSignal{Reason: "daily loss limit breached", Fatal: false})
	}
}

func (w *Watchdog) processError(err error) {
	if errors.Is(err, arkerr.ErrConservationViolation) {
		w.mu.Lock()
		w.killActive = true
		w.killUntil = time.Time{}
		w.mu.Unlock()

		w.logger.Error("conservation violation, fatal: shutting down", "error", err)
		w.emit(KillSignal{Reason: err.Error(), Fatal: true})
	}
}

func (w *Watchdog) clearExpiredCooldown() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.killActive && !w.killUntil.IsZero() && time.Now().After(w.killUntil) {
		w.killActive = false
		w.logger.Info("kill switch cooldown expired")
	}
}

func (w *Watchdog) emit(sig KillSignal) {
	select {
	case w.killCh <- sig:
	default:
		w.logger.Warn("kill signal channel full, dropping signal", "reason", sig.Reason)
	}
}
