package counter

import (
	"context"
	"testing"
	"time"

	"github.com/neurify-goto/formsender-runner/internal/claim"
)

func TestCounterCachesWithinTTL(t *testing.T) {
	m := claim.NewMemoryProtocol()
	ctx := context.Background()
	_ = m.MarkDone(ctx, claim.MarkDoneInput{TargetDate: "2025-01-15", CampaignID: 7, CompanyID: 1, Success: true})

	c := New(m, 30)
	var clock int64 = 100
	c.now = func() int64 { return clock }

	n, err := c.Get(ctx, 7, "2025-01-15")
	if err != nil || n != 1 {
		t.Fatalf("expected count 1, got %d err %v", n, err)
	}

	// A new success lands in the store but the cache is still fresh.
	_ = m.MarkDone(ctx, claim.MarkDoneInput{TargetDate: "2025-01-15", CampaignID: 7, CompanyID: 2, Success: true})
	clock += 5
	n, _ = c.Get(ctx, 7, "2025-01-15")
	if n != 1 {
		t.Errorf("expected stale cached count 1 within TTL, got %d", n)
	}

	clock += 30
	n, _ = c.Get(ctx, 7, "2025-01-15")
	if n != 2 {
		t.Errorf("expected refreshed count 2 after TTL expiry, got %d", n)
	}
}

func TestCounterInvalidateOnSuccess(t *testing.T) {
	m := claim.NewMemoryProtocol()
	ctx := context.Background()
	c := New(m, 300)

	n, _ := c.Get(ctx, 7, "2025-01-15")
	if n != 0 {
		t.Fatalf("expected 0, got %d", n)
	}

	_ = m.MarkDone(ctx, claim.MarkDoneInput{TargetDate: "2025-01-15", CampaignID: 7, CompanyID: 1, Success: true, SubmittedAt: time.Now()})
	c.InvalidateOnSuccess(7, "2025-01-15")

	n, _ = c.Get(ctx, 7, "2025-01-15")
	if n != 1 {
		t.Errorf("expected 1 after invalidation, got %d", n)
	}
}
