package persistence

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/arkin-run/arkin/pkg/types"
)

// ReadTicks loads every persisted tick from dir's tick.jsonl, sorted by
// event time. Returns an empty slice if the file does not exist.
func ReadTicks(dir string) ([]types.Tick, error) {
	var out []types.Tick
	if err := readJSONL(dir, "tick", func(data json.RawMessage) error {
		var t types.Tick
		if err := json.Unmarshal(data, &t); err != nil {
			return err
		}
		out = append(out, t)
		return nil
	}); err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EventTime.Before(out[j].EventTime) })
	return out, nil
}

// ReadTrades loads every persisted aggregated trade from dir's
// trade.jsonl, sorted by event time.
func ReadTrades(dir string) ([]types.AggTrade, error) {
	var out []types.AggTrade
	if err := readJSONL(dir, "trade", func(data json.RawMessage) error {
		var t types.AggTrade
		if err := json.Unmarshal(data, &t); err != nil {
			return err
		}
		out = append(out, t)
		return nil
	}); err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EventTime.Before(out[j].EventTime) })
	return out, nil
}

func readJSONL(dir, kind string, onRecord func(json.RawMessage) error) error {
	path := filepath.Join(dir, kind+".jsonl")
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		if err := onRecord(json.RawMessage(line)); err != nil {
			return fmt.Errorf("decode %s record: %w", kind, err)
		}
	}
	return scanner.Err()
}
