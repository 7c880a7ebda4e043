package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/neurify-goto/formsender-runner/internal/types"
)

// JSONLSink appends one JSON line per terminal record to a local file. The
// runner always includes it in the audit fan-out, with or without Mongo,
// so a worker never runs with zero audit trail in local-dev mode.
type JSONLSink struct {
	mu   sync.Mutex
	f    *os.File
}

// NewJSONLSink opens (creating if needed) the file at path for appending.
func NewJSONLSink(path string) (*JSONLSink, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open audit log: %w", err)
	}
	return &JSONLSink{f: f}, nil
}

func (s *JSONLSink) Name() string { return "jsonl" }

func (s *JSONLSink) Record(rec types.TerminalRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	line, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal terminal record: %w", err)
	}
	line = append(line, '\n')
	_, err = s.f.Write(line)
	return err
}

func (s *JSONLSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.f.Close()
}
