package storage

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"tokenLedger/internal/model"
)

// Journal appends ledger events to a JSONL file.
type Journal struct {
	path string
	mu   sync.Mutex
	seq  uint64
}

// OpenJournal opens path for appending and resumes sequence numbering from
// the last event already in it.
func OpenJournal(path string) (*Journal, error) {
	if path == "" {
		return nil, fmt.Errorf("journal path is required")
	}
	j := &Journal{path: path}
	err := j.scan(func(e model.Event) bool {
		if e.Seq > j.seq {
			j.seq = e.Seq
		}
		return true
	})
	if err != nil {
		return nil, err
	}
	return j, nil
}

// Publish appends events with fresh sequence numbers.
func (j *Journal) Publish(_ context.Context, events []model.Event) error {
	if len(events) == 0 {
		return nil
	}

	dir := filepath.Dir(j.path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create journal dir: %w", err)
		}
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	file, err := os.OpenFile(j.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open journal: %w", err)
	}
	defer file.Close()

	seq := j.seq
	recordedAt := time.Now().UTC().Format(time.RFC3339Nano)
	writer := bufio.NewWriter(file)
	for _, event := range events {
		seq++
		event.Seq = seq
		event.RecordedAt = recordedAt
		line, err := json.Marshal(event)
		if err != nil {
			return fmt.Errorf("marshal event: %w", err)
		}
		if _, err := writer.Write(line); err != nil {
			return fmt.Errorf("write event: %w", err)
		}
		if err := writer.WriteByte('\n'); err != nil {
			return fmt.Errorf("write newline: %w", err)
		}
	}

	if err := writer.Flush(); err != nil {
		return fmt.Errorf("flush journal: %w", err)
	}
	j.seq = seq
	return nil
}

// Events returns the journaled events of mint, oldest first, keeping at most
// limit of the newest when limit > 0.
func (j *Journal) Events(_ context.Context, mint common.Address, limit int) ([]model.Event, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	var out []model.Event
	err := j.scan(func(e model.Event) bool {
		if e.Mint == mint {
			out = append(out, e)
			if limit > 0 && len(out) > limit {
				out = out[1:]
			}
		}
		return true
	})
	return out, err
}

func (j *Journal) scan(fn func(model.Event) bool) error {
	file, err := os.Open(j.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("open journal: %w", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		if len(scanner.Bytes()) == 0 {
			continue
		}
		var e model.Event
		if err := json.Unmarshal(scanner.Bytes(), &e); err != nil {
			return fmt.Errorf("parse journal line %d: %w", line, err)
		}
		if !fn(e) {
			return nil
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read journal: %w", err)
	}
	return nil
}
