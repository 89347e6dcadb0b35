package persistence

import (
	"bufio"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/arkin-run/arkin/pkg/types"
)

func countLines(t *testing.T, path string) int {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	n := 0
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		n++
	}
	return n
}

func TestWriterBuffersUntilBatchSize(t *testing.T) {
	dir := t.TempDir()
	w, err := OpenWriter(dir, nil, WithBatchSize(3))
	if err != nil {
		t.Fatal(err)
	}

	if err := w.InsertTick(types.Tick{EventTime: time.Now()}); err != nil {
		t.Fatal(err)
	}
	if err := w.InsertTick(types.Tick{EventTime: time.Now()}); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(dir, "tick.jsonl")
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatal("expected no flush before batch size reached")
	}

	if err := w.InsertTick(types.Tick{EventTime: time.Now()}); err != nil {
		t.Fatal(err)
	}
	if n := countLines(t, path); n != 3 {
		t.Fatalf("expected 3 lines flushed, got %d", n)
	}
}

func TestWriterFlushAppendsAcrossCalls(t *testing.T) {
	dir := t.TempDir()
	w, err := OpenWriter(dir, nil, WithBatchSize(1000))
	if err != nil {
		t.Fatal(err)
	}

	if err := w.InsertTrade(types.AggTrade{EventTime: time.Now()}); err != nil {
		t.Fatal(err)
	}
	if err := w.Flush(); err != nil {
		t.Fatal(err)
	}
	if err := w.InsertTrade(types.AggTrade{EventTime: time.Now()}); err != nil {
		t.Fatal(err)
	}
	if err := w.Flush(); err != nil {
		t.Fatal(err)
	}

	path := filepath.Join(dir, "trade.jsonl")
	if n := countLines(t, path); n != 2 {
		t.Fatalf("expected 2 appended lines across flushes, got %d", n)
	}
}

func TestCloseFlushesRemainingBuffer(t *testing.T) {
	dir := t.TempDir()
	w, err := OpenWriter(dir, nil, WithBatchSize(1000))
	if err != nil {
		t.Fatal(err)
	}
	if err := w.InsertInsight(types.Insight{EventTime: time.Now(), FeatureID: "x"}); err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	if n := countLines(t, filepath.Join(dir, "insight.jsonl")); n != 1 {
		t.Fatalf("expected buffered record flushed on close, got %d lines", n)
	}
}

func TestFlushWithNoBufferedRecordsIsNoop(t *testing.T) {
	dir := t.TempDir()
	w, err := OpenWriter(dir, nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := w.Flush(); err != nil {
		t.Fatal(err)
	}
}
