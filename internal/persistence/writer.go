package persistence

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/arkin-run/arkin/pkg/types"
)

// DefaultBatchSize is the number of buffered records flushed to disk at
// once, per the append-only writer contract.
const DefaultBatchSize = 4096

// DefaultMaxRetries is how many times a failed flush is retried, with
// exponential backoff, before it is treated as irrecoverable.
const DefaultMaxRetries = 5

// record is one append-only write, tagged by kind so Flush can fan each
// batch out to its own file.
type record struct {
	kind string
	data any
}

// Writer buffers insert_tick/insert_trade/insert_insight/insert_transfer
// calls and flushes them in batches, atomically appending to one
// JSON-lines file per kind (write-tmp-then-rename, as the teacher's
// store.go does for whole-file writes, adapted here to append mode).
type Writer struct {
	mu         sync.Mutex
	dir        string
	batchSize  int
	maxRetries int
	buf        []record
	logger     *slog.Logger
}

// Option configures a Writer.
type Option func(*Writer)

// WithBatchSize overrides DefaultBatchSize.
func WithBatchSize(n int) Option {
	return func(w *Writer) {
		if n > 0 {
			w.batchSize = n
		}
	}
}

// WithMaxRetries overrides DefaultMaxRetries.
func WithMaxRetries(n int) Option {
	return func(w *Writer) {
		if n > 0 {
			w.maxRetries = n
		}
	}
}

// OpenWriter creates a Writer rooted at dir, creating it if necessary.
func OpenWriter(dir string, logger *slog.Logger, opts ...Option) (*Writer, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create persistence dir: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	w := &Writer{
		dir:        dir,
		batchSize:  DefaultBatchSize,
		maxRetries: DefaultMaxRetries,
		logger:     logger.With("component", "persistence_writer"),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// InsertTick buffers a tick for persistence.
func (w *Writer) InsertTick(tick types.Tick) error { return w.append("tick", tick) }

// InsertTrade buffers an aggregated trade for persistence.
func (w *Writer) InsertTrade(trade types.AggTrade) error { return w.append("trade", trade) }

// InsertInsight buffers an insight for persistence.
func (w *Writer) InsertInsight(insight types.Insight) error { return w.append("insight", insight) }

// InsertTransfer buffers a transfer for persistence.
func (w *Writer) InsertTransfer(transfer types.Transfer) error {
	return w.append("transfer", transfer)
}

func (w *Writer) append(kind string, data any) error {
	w.mu.Lock()
	w.buf = append(w.buf, record{kind: kind, data: data})
	shouldFlush := len(w.buf) >= w.batchSize
	w.mu.Unlock()

	if shouldFlush {
		return w.Flush()
	}
	return nil
}

// Flush writes all buffered records to disk, grouped by kind, retrying
// each group's write with exponential backoff. A group that exhausts
// its retries is irrecoverable: the error is returned to the caller,
// who is expected to treat it as a fatal service error causing engine
// shutdown, per the writer contract.
func (w *Writer) Flush() error {
	w.mu.Lock()
	pending := w.buf
	w.buf = nil
	w.mu.Unlock()

	if len(pending) == 0 {
		return nil
	}

	byKind := make(map[string][]any)
	for _, r := range pending {
		byKind[r.kind] = append(byKind[r.kind], r.data)
	}

	for kind, items := range byKind {
		if err := w.flushKindWithRetry(kind, items); err != nil {
			return err
		}
	}
	return nil
}

func (w *Writer) flushKindWithRetry(kind string, items []any) error {
	backoff := 100 * time.Millisecond
	var lastErr error
	for attempt := 0; attempt <= w.maxRetries; attempt++ {
		if attempt > 0 {
			time.Sleep(backoff)
			backoff *= 2
		}
		if err := w.appendToFile(kind, items); err != nil {
			lastErr = err
			w.logger.Warn("flush failed, retrying", "kind", kind, "attempt", attempt, "error", err)
			continue
		}
		return nil
	}
	return fmt.Errorf("flush %s irrecoverable after %d attempts: %w", kind, w.maxRetries+1, lastErr)
}

// appendToFile appends newline-delimited JSON records to <kind>.jsonl,
// using a write-tmp-then-rename of the concatenated (old+new) content so
// a crash mid-write never leaves a truncated or interleaved file.
func (w *Writer) appendToFile(kind string, items []any) error {
	path := filepath.Join(w.dir, kind+".jsonl")

	existing, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("read existing %s: %w", kind, err)
	}

	var buf []byte
	buf = append(buf, existing...)
	for _, item := range items {
		line, err := json.Marshal(item)
		if err != nil {
			return fmt.Errorf("marshal %s record: %w", kind, err)
		}
		buf = append(buf, line...)
		buf = append(buf, '\n')
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, buf, 0o600); err != nil {
		return fmt.Errorf("write %s: %w", kind, err)
	}
	return os.Rename(tmp, path)
}

// Close flushes any remaining buffered records.
func (w *Writer) Close() error { return w.Flush() }
