package supervisor

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNewClampsToMaxWorkers(t *testing.T) {
	s, err := New(Config{NumWorkers: 99, Logger: testLogger()})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.NumWorkers() != MaxWorkers {
		t.Errorf("expected clamp to %d, got %d", MaxWorkers, s.NumWorkers())
	}
}

func TestNewFixedCompanyClampsToSingleWorker(t *testing.T) {
	fixed := int64(5)
	s, err := New(Config{NumWorkers: 4, FixedCompanyID: &fixed, Logger: testLogger()})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.NumWorkers() != 1 {
		t.Errorf("expected fixed-company mode to clamp to 1 worker regardless of requested count, got %d", s.NumWorkers())
	}
}

func TestNewFixedCompanySingleWorkerOK(t *testing.T) {
	fixed := int64(5)
	s, err := New(Config{NumWorkers: 1, FixedCompanyID: &fixed, Logger: testLogger()})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.NumWorkers() != 1 {
		t.Errorf("expected exactly 1 worker, got %d", s.NumWorkers())
	}
}

func TestSpawnRunsEveryWorkerAndWaitReturnsAfterCompletion(t *testing.T) {
	s, err := New(Config{NumWorkers: 3, Logger: testLogger()})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	seen := make(chan int, 3)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s.Spawn(ctx, func(_ context.Context, workerID int, shouldStop func() bool) error {
		seen <- workerID
		return nil
	})
	s.Wait()

	close(seen)
	count := 0
	for range seen {
		count++
	}
	if count != 3 {
		t.Errorf("expected 3 workers to run, got %d", count)
	}
}

func TestShutdownSignalsStopAndWaitsForChildren(t *testing.T) {
	s, err := New(Config{NumWorkers: 2, Logger: testLogger()})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s.Spawn(ctx, func(_ context.Context, _ int, shouldStop func() bool) error {
		for !shouldStop() {
			time.Sleep(time.Millisecond)
		}
		return nil
	})

	done := make(chan struct{})
	go func() {
		s.Shutdown()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Shutdown did not return in time")
	}
	if s.Err() != nil {
		t.Errorf("expected no child error, got %v", s.Err())
	}
}
