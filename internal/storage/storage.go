// Package storage mirrors every terminal write into an audit trail
// outside the backing store, for incident review and reconciliation.
// It is not in the critical path: a worker's mark_done already
// succeeded against claim.Protocol before a record reaches here, so a
// sink failure is logged and swallowed rather than retried.
package storage

import "github.com/neurify-goto/formsender-runner/internal/types"

// AuditSink is the interface every audit backend implements, adapted
// from the teacher's Storage interface.
type AuditSink interface {
	// Record mirrors one terminal write.
	Record(rec types.TerminalRecord) error

	// Close flushes pending writes and releases resources.
	Close() error

	// Name returns the sink identifier, for logging.
	Name() string
}

// MultiSink fans a record out to every configured backend, adapted from
// the teacher's MultiStorage.
type MultiSink struct {
	backends []AuditSink
}

// NewMultiSink creates a sink that fans out to multiple backends.
func NewMultiSink(backends ...AuditSink) *MultiSink {
	return &MultiSink{backends: backends}
}

func (s *MultiSink) Name() string { return "multi" }

func (s *MultiSink) Record(rec types.TerminalRecord) error {
	var firstErr error
	for _, backend := range s.backends {
		if err := backend.Record(rec); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (s *MultiSink) Close() error {
	var firstErr error
	for _, backend := range s.backends {
		if err := backend.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
