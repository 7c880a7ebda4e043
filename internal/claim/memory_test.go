package claim

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestMemoryProtocolMarkDoneIdempotent(t *testing.T) {
	m := NewMemoryProtocol()
	ctx := context.Background()

	first := MarkDoneInput{TargetDate: "2025-01-15", CampaignID: 7, CompanyID: 42, Success: true, SubmittedAt: time.Now()}
	second := MarkDoneInput{TargetDate: "2025-01-15", CampaignID: 7, CompanyID: 42, Success: false, ErrorCode: "UNKNOWN", SubmittedAt: time.Now()}

	if err := m.MarkDone(ctx, first); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := m.MarkDone(ctx, second); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, ok := m.Terminal("2025-01-15", 7, 42)
	if !ok {
		t.Fatal("expected a terminal to be recorded")
	}
	if !got.Success {
		t.Error("expected the FIRST write to win: success=true")
	}
	if m.TerminalCount() != 1 {
		t.Errorf("expected exactly one terminal, got %d", m.TerminalCount())
	}
}

func TestMemoryProtocolClaimDisjoint(t *testing.T) {
	m := NewMemoryProtocol()
	ctx := context.Background()
	for i := int64(1); i <= 50; i++ {
		m.Seed("2025-01-15", 7, Company{ID: i})
	}

	seen := make(map[int64]int)
	var mu sync.Mutex
	var wg sync.WaitGroup
	for w := 0; w < 5; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				ids, err := m.ClaimNext(ctx, "2025-01-15", 7, "run-1", 1, nil)
				if err != nil {
					t.Error(err)
					return
				}
				if len(ids) == 0 {
					return
				}
				mu.Lock()
				seen[ids[0]]++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if len(seen) != 50 {
		t.Fatalf("expected 50 distinct claimed ids, got %d", len(seen))
	}
	for id, count := range seen {
		if count != 1 {
			t.Errorf("company %d claimed %d times, want exactly 1", id, count)
		}
	}
}

func TestMemoryProtocolFetchCompanyNotFound(t *testing.T) {
	m := NewMemoryProtocol()
	_, err := m.FetchCompany(context.Background(), 999)
	if err != ErrCompanyNotFound {
		t.Errorf("expected ErrCompanyNotFound, got %v", err)
	}
}

func TestMemoryProtocolCountToday(t *testing.T) {
	m := NewMemoryProtocol()
	ctx := context.Background()
	_ = m.MarkDone(ctx, MarkDoneInput{TargetDate: "2025-01-15", CampaignID: 7, CompanyID: 1, Success: true})
	_ = m.MarkDone(ctx, MarkDoneInput{TargetDate: "2025-01-15", CampaignID: 7, CompanyID: 2, Success: false})
	_ = m.MarkDone(ctx, MarkDoneInput{TargetDate: "2025-01-15", CampaignID: 7, CompanyID: 3, Success: true})

	n, err := m.CountToday(ctx, 7, "2025-01-15")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 2 {
		t.Errorf("expected 2 successful terminals, got %d", n)
	}
}
