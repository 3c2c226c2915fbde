package chart

import (
	"bufio"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

// HistoryStore is the append-only snapshot log: newline-delimited JSON,
// one snapshot per line. Appends open the file in append mode and issue
// a single newline-terminated write, so two overlapping runs cannot
// interleave partial lines. Nothing is ever rewritten or reordered.
type HistoryStore struct {
	path string
}

func NewHistoryStore(path string) *HistoryStore {
	return &HistoryStore{path: path}
}

// Append writes one snapshot line.
func (s *HistoryStore) Append(snap Snapshot) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o750); err != nil {
		return fmt.Errorf("history: mkdir: %w", err)
	}
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("history: marshal snapshot: %w", err)
	}
	f, err := os.OpenFile(s.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o640)
	if err != nil {
		return fmt.Errorf("history: open: %w", err)
	}
	defer f.Close()
	if _, err := f.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("history: append: %w", err)
	}
	return nil
}

// SnapshotRecord is one history line, read permissively: items stay
// raw maps so the normalizer can reconcile rows written by older
// pipeline revisions with different field names.
type SnapshotRecord struct {
	Date  time.Time        `json:"date"`
	Items []map[string]any `json:"items"`
}

// ReadWindow returns every snapshot whose date falls inside [from, to].
// A missing file is no data, not an error. Malformed lines (a crashed
// writer's trailing line, hand-edited history) are skipped one by one;
// the valid prefix and suffix still load.
func (s *HistoryStore) ReadWindow(from, to time.Time) ([]SnapshotRecord, error) {
	f, err := os.Open(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("history: open: %w", err)
	}
	defer f.Close()

	var out []SnapshotRecord
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024) // snapshot lines hold up to 500 items
	line := 0
	for scanner.Scan() {
		line++
		raw := scanner.Bytes()
		if len(raw) == 0 {
			continue
		}
		var rec SnapshotRecord
		if err := json.Unmarshal(raw, &rec); err != nil {
			IncrHistorySkipped()
			slog.Warn("history: skipping malformed line", slog.Int("line", line), slog.Any("error", err))
			continue
		}
		if rec.Date.IsZero() || rec.Date.Before(from) || rec.Date.After(to) {
			continue
		}
		out = append(out, rec)
	}
	if err := scanner.Err(); err != nil {
		return out, fmt.Errorf("history: scan: %w", err)
	}
	return out, nil
}
