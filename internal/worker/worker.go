// Package worker implements §4.2 WorkerActor: the single-threaded claim
// loop each worker process runs from startup until a termination
// condition fires. Grounded on the teacher's engine/scheduler.go worker
// goroutine (idle-poll, per-iteration stop check, backoff-on-idle), with
// the crawl-specific frontier/throttle machinery replaced by the claim
// protocol, classifier, and daily counter built out in sibling packages.
package worker

import (
	"context"
	"errors"
	"log/slog"
	"math/rand"
	"time"

	"github.com/neurify-goto/formsender-runner/internal/automation"
	"github.com/neurify-goto/formsender-runner/internal/campaign"
	"github.com/neurify-goto/formsender-runner/internal/claim"
	"github.com/neurify-goto/formsender-runner/internal/classify"
	"github.com/neurify-goto/formsender-runner/internal/counter"
	"github.com/neurify-goto/formsender-runner/internal/hours"
	"github.com/neurify-goto/formsender-runner/internal/observability"
	"github.com/neurify-goto/formsender-runner/internal/storage"
	"github.com/neurify-goto/formsender-runner/internal/types"
)

// Config tunes one worker's loop behavior (§4.2 step 8, §3 runtime knobs).
type Config struct {
	WorkerID     int
	CampaignID   int64
	RunID        string
	TargetDate   string // YYYY-MM-DD, JST calendar date
	ShardID      *int
	MaxProcessed int // 0 means unbounded (test-only cap)
	FixedCompanyID *int64

	BackoffInitial time.Duration
	BackoffMax     time.Duration
	JitterRatio    float64

	BusinessHoursPoll time.Duration
}

// DefaultConfig holds the spec's default timings, which New fills in where
// Config leaves a duration zero or JitterRatio negative (a zero JitterRatio
// is kept and disables jitter).
func DefaultConfig() Config {
	return Config{
		BackoffInitial:    1 * time.Second,
		BackoffMax:        30 * time.Second,
		JitterRatio:       0.2,
		BusinessHoursPoll: 60 * time.Second,
	}
}

func (c *Config) applyDefaults() {
	d := DefaultConfig()
	if c.BackoffInitial <= 0 {
		c.BackoffInitial = d.BackoffInitial
	}
	if c.BackoffMax <= 0 {
		c.BackoffMax = d.BackoffMax
	}
	if c.JitterRatio < 0 {
		c.JitterRatio = d.JitterRatio
	}
	if c.BusinessHoursPoll <= 0 {
		c.BusinessHoursPoll = d.BusinessHoursPoll
	}
}

// Clock abstracts "now in JST" so tests can drive the loop deterministically.
type Clock func() time.Time

func systemClock() time.Time { return time.Now().In(hours.JST) }

// Sleeper abstracts the loop's suspension points so tests never actually
// sleep (§5 suspension points).
type Sleeper func(ctx context.Context, d time.Duration) error

func realSleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Worker runs the loop of §4.2 against one campaign's profile.
type Worker struct {
	cfg       Config
	protocol  claim.Protocol
	profile   *campaign.Profile
	driver    automation.BrowserDriver
	classifier *classify.Classifier
	counter   *counter.Counter
	logger    *slog.Logger
	metrics   *observability.Metrics
	auditSink storage.AuditSink

	clock   Clock
	sleep   Sleeper
	rand    func() float64
	backoff time.Duration

	processed int
}

// New builds a Worker with its own process-local classifier and daily
// counter, both at their package defaults.
func New(cfg Config, protocol claim.Protocol, profile *campaign.Profile, driver automation.BrowserDriver, logger *slog.Logger) *Worker {
	cfg.applyDefaults()
	w := &Worker{
		cfg:        cfg,
		protocol:   protocol,
		profile:    profile,
		driver:     driver,
		classifier: classify.New(0, 0),
		counter:    counter.New(protocol, 0),
		logger:     logger.With("worker_id", cfg.WorkerID, "campaign_id", cfg.CampaignID),
		clock:      systemClock,
		sleep:      realSleep,
		rand:       rand.Float64,
		backoff:    cfg.BackoffInitial,
	}
	return w
}

// SetMetrics attaches a Metrics instance the loop reports counters and
// gauges to. Safe to leave unset; every call site nil-checks it.
func (w *Worker) SetMetrics(m *observability.Metrics) {
	w.metrics = m
	w.classifier.SetMetrics(m)
}

// SetAuditSink attaches an AuditSink every terminal write is mirrored to,
// after mark_done has already succeeded against claim.Protocol. Safe to
// leave unset.
func (w *Worker) SetAuditSink(sink storage.AuditSink) {
	w.auditSink = sink
}

// StopFunc reports whether the supervisor has requested termination; it is
// polled between iterations and before sleeps, never mid-iteration (§5).
type StopFunc func() bool

// Run drives the loop until a termination condition fires (§4.2). The
// returned error is nil for every clean termination, including daily-cap
// reached; it is non-nil only for ctx cancellation propagating out of a
// suspension point.
func (w *Worker) Run(ctx context.Context, shouldStop StopFunc) error {
	for {
		if shouldStop() {
			w.logger.Info("stop requested, exiting between iterations")
			return nil
		}
		if w.cfg.MaxProcessed > 0 && w.processed >= w.cfg.MaxProcessed {
			w.logger.Info("max_processed reached, exiting", "processed", w.processed)
			return nil
		}

		if !hours.IsOpen(w.profile.Policy, w.clock()) {
			if shouldStop() {
				return nil
			}
			if err := w.sleep(ctx, w.cfg.BusinessHoursPoll); err != nil {
				return err
			}
			continue
		}

		if w.profile.Policy.MaxDailySends != nil {
			count, err := w.counter.Get(ctx, w.cfg.CampaignID, w.cfg.TargetDate)
			if err != nil {
				w.logger.Error("daily counter read failed, treating as transient", "error", err)
				if shouldStop() {
					return nil
				}
				if err := w.idleSleep(ctx); err != nil {
					return err
				}
				continue
			}
			if count >= *w.profile.Policy.MaxDailySends {
				w.logger.Info("daily cap reached, exiting cleanly", "count", count, "cap", *w.profile.Policy.MaxDailySends)
				return nil
			}
		}

		companyID, err := w.claimOne(ctx)
		if err != nil {
			return err
		}
		if companyID == nil {
			if shouldStop() {
				return nil
			}
			if err := w.idleSleep(ctx); err != nil {
				return err
			}
			continue
		}

		w.processOne(ctx, *companyID)
		w.processed++
		w.resetBackoff()
	}
}

func (w *Worker) claimOne(ctx context.Context) (*int64, error) {
	if w.cfg.FixedCompanyID != nil {
		// Fixed-company mode bypasses claim_next entirely (§4.1): the
		// single worker drives its loop against the fixed id directly,
		// once, then has nothing further to claim.
		if w.processed > 0 {
			return nil, nil
		}
		id := *w.cfg.FixedCompanyID
		return &id, nil
	}

	if w.metrics != nil {
		w.metrics.ClaimsAttempted.Inc()
	}
	ids, err := w.protocol.ClaimNext(ctx, w.cfg.TargetDate, w.cfg.CampaignID, w.cfg.RunID, 1, w.cfg.ShardID)
	if err != nil {
		if ce, ok := err.(*types.ClaimError); ok && !ce.Retryable {
			w.logger.Error("permanent claim_next failure, system of record unaffected", "error", err)
		} else {
			w.logger.Warn("transient claim_next failure", "error", err)
		}
		return nil, nil
	}
	if len(ids) == 0 {
		if w.metrics != nil {
			w.metrics.ClaimsEmpty.Inc()
		}
		return nil, nil
	}
	return &ids[0], nil
}

// processOne runs steps 4-7 of §4.2 for one claimed company id.
func (w *Worker) processOne(ctx context.Context, companyID int64) {
	logger := w.logger.With("company_id", companyID)

	company, err := w.protocol.FetchCompany(ctx, companyID)
	if err != nil {
		if errors.Is(err, claim.ErrCompanyNotFound) {
			logger.Info("finalizing non-retryable terminal", "error_code", "NOT_FOUND")
			w.finalize(ctx, companyID, false, "NOT_FOUND", nil, false)
			return
		}
		logger.Warn("fetch_company failed, leaving company unclaimed for retry", "error", err)
		return
	}
	if company.FormURL == nil || *company.FormURL == "" {
		logger.Info("finalizing non-retryable terminal", "error_code", "NO_FORM_URL")
		w.finalize(ctx, companyID, false, "NO_FORM_URL", nil, false)
		return
	}

	result, procErr := w.driver.Process(ctx, automation.ProcessInput{
		CompanyID: companyID,
		FormURL:   *company.FormURL,
		Profile:   w.profile,
		WorkerID:  w.cfg.WorkerID,
	})
	if procErr != nil {
		result = automation.ProcessResult{ErrorMessage: procErr.Error(), ErrorTypeHint: "WORKER_ERROR"}
	}

	if result.Success {
		logger.Info("submission succeeded", "success", true)
		w.finalize(ctx, companyID, true, "", nil, false)
		w.counter.InvalidateOnSuccess(w.cfg.CampaignID, w.cfg.TargetDate)
		return
	}

	detail := w.classifier.Classify(classify.Input{
		ErrorMessage:       result.ErrorMessage,
		HTTPStatus:         result.HTTPStatus,
		ErrorTypeHint:      result.ErrorTypeHint,
		PageContentSnippet: result.PageContentSnippet,
	})

	errorCode := detail.Code
	botProtection := result.BotProtection || detail.Category == classify.CategoryBot
	if botProtection && errorCode != "BOT_DETECTED" && errorCode != "WAF_CHALLENGE" {
		errorCode = "BOT_DETECTED"
	}

	classifyDetail := map[string]any{
		"code":             detail.Code,
		"category":         string(detail.Category),
		"retryable":        detail.Retryable,
		"cooldown_seconds": detail.CooldownSeconds,
		"confidence":       detail.Confidence,
	}

	logger.Info("finalizing terminal", "success", false, "error_code", errorCode, "bot_protection", botProtection)
	w.finalize(ctx, companyID, false, errorCode, classifyDetail, botProtection)
}

func (w *Worker) finalize(ctx context.Context, companyID int64, success bool, errorCode string, detail map[string]any, botProtection bool) {
	submittedAt := w.clock()
	err := w.protocol.MarkDone(ctx, claim.MarkDoneInput{
		TargetDate:     w.cfg.TargetDate,
		CampaignID:     w.cfg.CampaignID,
		CompanyID:      companyID,
		Success:        success,
		ErrorCode:      errorCode,
		ClassifyDetail: detail,
		BotProtection:  botProtection,
		SubmittedAt:    submittedAt,
	})
	if err != nil {
		w.logger.Error("mark_done failed", "company_id", companyID, "error", err)
		return
	}
	if w.metrics != nil {
		w.metrics.TerminalsTotal.WithLabelValues(errorCode).Inc()
	}
	if w.auditSink != nil {
		rec := types.TerminalRecord{
			TargetDate:     w.cfg.TargetDate,
			CampaignID:     w.cfg.CampaignID,
			CompanyID:      companyID,
			Success:        success,
			ErrorCode:      errorCode,
			ClassifyDetail: detail,
			BotProtection:  botProtection,
			SubmittedAt:    submittedAt,
			RunID:          w.cfg.RunID,
			WorkerID:       w.cfg.WorkerID,
		}
		if err := w.auditSink.Record(rec); err != nil {
			w.logger.Warn("audit sink record failed", "company_id", companyID, "sink", w.auditSink.Name(), "error", err)
		}
	}
}

// idleSleep applies the backoff-with-jitter policy of §4.2 step 8 and
// doubles the backoff for the next idle iteration.
func (w *Worker) idleSleep(ctx context.Context) error {
	jitter := (w.rand()*2 - 1) * float64(w.backoff) * w.cfg.JitterRatio
	sleepFor := time.Duration(float64(w.backoff) + jitter)
	if sleepFor < 0 {
		sleepFor = 0
	}
	if w.metrics != nil {
		w.metrics.BackoffSleeps.Inc()
		w.metrics.BackoffSeconds.Observe(sleepFor.Seconds())
	}
	if err := w.sleep(ctx, sleepFor); err != nil {
		return err
	}
	w.backoff *= 2
	if w.backoff > w.cfg.BackoffMax {
		w.backoff = w.cfg.BackoffMax
	}
	return nil
}

func (w *Worker) resetBackoff() {
	w.backoff = w.cfg.BackoffInitial
}
