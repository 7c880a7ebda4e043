package claim

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresProtocol implements Protocol against a transactional Postgres
// schema, grounded on the four-RPC contract spec.md §6 describes and on
// the Supabase-backed original_source's repository layer. claim_next uses
// an UPDATE ... RETURNING with SKIP LOCKED semantics so no two callers can
// observe the same row as claimable; mark_done uses INSERT ... ON CONFLICT
// DO NOTHING so the terminal write is idempotent by construction rather
// than by an application-level check-then-write race.
type PostgresProtocol struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewPostgresProtocol wraps an existing pool. The pool's lifecycle (and
// its DSN/credential sourcing) is the caller's responsibility — this type
// only issues queries.
func NewPostgresProtocol(pool *pgxpool.Pool, logger *slog.Logger) *PostgresProtocol {
	return &PostgresProtocol{pool: pool, logger: logger.With("component", "claim_protocol")}
}

const claimNextSQL = `
WITH claimed AS (
	UPDATE send_queue
	SET claimed_by = $3, claimed_at = now(), status = 'claimed'
	WHERE id IN (
		SELECT id FROM send_queue
		WHERE target_date = $1 AND campaign_id = $2 AND status = 'pending'
		  AND ($5::int IS NULL OR shard_id = $5)
		ORDER BY id
		LIMIT $4
		FOR UPDATE SKIP LOCKED
	)
	RETURNING company_id
)
SELECT company_id FROM claimed
`

// ClaimNext implements the atomic per-row reservation of §4.3.
func (p *PostgresProtocol) ClaimNext(ctx context.Context, targetDate string, campaignID int64, runID string, limit int, shardID *int) ([]int64, error) {
	rows, err := p.pool.Query(ctx, claimNextSQL, targetDate, campaignID, runID, limit, shardID)
	if err != nil {
		return nil, fmt.Errorf("claim_next query: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("claim_next scan: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

const fetchCompanySQL = `SELECT id, form_url FROM companies WHERE id = $1`

// FetchCompany is a simple read outside the atomic claim path.
func (p *PostgresProtocol) FetchCompany(ctx context.Context, companyID int64) (Company, error) {
	var c Company
	err := p.pool.QueryRow(ctx, fetchCompanySQL, companyID).Scan(&c.ID, &c.FormURL)
	if err == pgx.ErrNoRows {
		return Company{}, ErrCompanyNotFound
	}
	if err != nil {
		return Company{}, fmt.Errorf("fetch_company: %w", err)
	}
	return c, nil
}

const markDoneSQL = `
INSERT INTO send_results
	(target_date, campaign_id, company_id, success, error_code, classify_detail, bot_protection, submitted_at)
VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6, $7, $8)
ON CONFLICT (target_date, campaign_id, company_id) DO NOTHING
`

// MarkDone writes the terminal record; ON CONFLICT DO NOTHING makes the
// "first write wins" invariant (§3, §8 property 1) a database guarantee
// rather than something the worker must coordinate.
func (p *PostgresProtocol) MarkDone(ctx context.Context, in MarkDoneInput) error {
	_, err := p.pool.Exec(ctx, markDoneSQL,
		in.TargetDate, in.CampaignID, in.CompanyID, in.Success, in.ErrorCode,
		in.ClassifyDetail, in.BotProtection, in.SubmittedAt,
	)
	if err != nil {
		return fmt.Errorf("mark_done: %w", err)
	}
	return nil
}

const countTodaySQL = `
SELECT count(*) FROM send_results
WHERE campaign_id = $1 AND success = true
  AND submitted_at >= $2 AND submitted_at < $3
`

// CountToday converts the JST calendar date to its UTC instant boundary
// before querying, per §4.3's "JST→UTC boundary conversion on count_today".
func (p *PostgresProtocol) CountToday(ctx context.Context, campaignID int64, targetDate string) (int, error) {
	startUTC, endUTC, err := jstDayBoundsUTC(targetDate)
	if err != nil {
		return 0, fmt.Errorf("count_today: %w", err)
	}
	var n int
	err = p.pool.QueryRow(ctx, countTodaySQL, campaignID, startUTC, endUTC).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count_today: %w", err)
	}
	return n, nil
}

var jst = time.FixedZone("JST", 9*60*60)

// jstDayBoundsUTC converts a YYYY-MM-DD JST calendar date into the
// [start, end) UTC instant range covering that day.
func jstDayBoundsUTC(targetDate string) (time.Time, time.Time, error) {
	start, err := time.ParseInLocation("2006-01-02", targetDate, jst)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid target_date %q: %w", targetDate, err)
	}
	end := start.Add(24 * time.Hour)
	return start.UTC(), end.UTC(), nil
}
