// Package claim implements §4.3 ClaimProtocol: the four-RPC contract
// against the backing store, plus the retry and circuit-breaking policy
// §4.3 and §7 require of the adapter layer.
package claim

import (
	"context"
	"time"
)

// Company is a read-only projection of the company row (§3 Company record).
type Company struct {
	ID      int64
	FormURL *string // nil means "no form_url"
}

// MarkDoneInput is the terminal envelope written exactly once per
// (TargetDate, CampaignID, CompanyID) triple (§3 Work outcome, §6).
type MarkDoneInput struct {
	TargetDate     string // YYYY-MM-DD, JST calendar date
	CampaignID     int64
	CompanyID      int64
	Success        bool
	ErrorCode      string // empty means absent
	ClassifyDetail map[string]any
	BotProtection  bool
	SubmittedAt    time.Time
}

// Protocol is the stateless adapter exposing the four RPCs of §6.
type Protocol interface {
	// ClaimNext atomically reserves up to limit companies for
	// (targetDate, campaignID) and returns their ids. Same inputs never
	// yield the same id twice across all callers (§8 property 2).
	ClaimNext(ctx context.Context, targetDate string, campaignID int64, runID string, limit int, shardID *int) ([]int64, error)

	// FetchCompany is a simple read, not part of the atomic claim path.
	FetchCompany(ctx context.Context, companyID int64) (Company, error)

	// MarkDone is idempotent: a second call for the same triple is a
	// no-op — first write wins (§3 invariants, §8 property 1).
	MarkDone(ctx context.Context, in MarkDoneInput) error

	// CountToday counts successful terminals for the campaign over the
	// JST day, converting to the store's UTC boundary internally.
	CountToday(ctx context.Context, campaignID int64, targetDate string) (int, error)
}
