package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/neurify-goto/formsender-runner/internal/automation"
	"github.com/neurify-goto/formsender-runner/internal/campaign"
	"github.com/neurify-goto/formsender-runner/internal/claim"
	"github.com/neurify-goto/formsender-runner/internal/config"
	"github.com/neurify-goto/formsender-runner/internal/hours"
	"github.com/neurify-goto/formsender-runner/internal/observability"
	"github.com/neurify-goto/formsender-runner/internal/storage"
	"github.com/neurify-goto/formsender-runner/internal/supervisor"
	"github.com/neurify-goto/formsender-runner/internal/worker"
)

var (
	cfgFile      string
	verbose      bool
	campaignID   int64
	configFile   string
	numWorkers   int
	headlessFlag string
	targetDate   string
	shardID      int
	maxProcessed int
	companyID    int64
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "formsender-runner",
		Short: "formsender-runner — distributed contact-form submission fleet",
		Long: `formsender-runner drives a fleet of workers that claim companies from a
shared queue, submit a campaign's sender profile through each company's
contact form, classify failures, and write an idempotent terminal record
per company per day.`,
	}

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "runtime config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	rootCmd.AddCommand(runCmd())
	rootCmd.AddCommand(versionCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the worker fleet for one campaign",
		RunE:  runFleet,
	}

	cmd.Flags().Int64Var(&campaignID, "campaign-id", 0, "campaign to drive (required)")
	cmd.Flags().StringVar(&configFile, "config-file", "", "campaign profile path, one '*' wildcard allowed (required)")
	cmd.Flags().IntVar(&numWorkers, "num-workers", supervisor.MaxWorkers, "number of workers, 1..4 (clamped to 1 in fixed-company mode)")
	cmd.Flags().StringVar(&headlessFlag, "headless", "auto", "headless override: on, off, auto")
	cmd.Flags().StringVar(&targetDate, "target-date", "", "YYYY-MM-DD JST, default today")
	cmd.Flags().IntVar(&shardID, "shard-id", -1, "horizontal partition hint, -1 means unset")
	cmd.Flags().IntVar(&maxProcessed, "max-processed", 0, "test cap on companies processed per worker, 0 means unbounded")
	cmd.Flags().Int64Var(&companyID, "company-id", 0, "fixed target override, 0 means unset")

	_ = cmd.MarkFlagRequired("campaign-id")
	_ = cmd.MarkFlagRequired("config-file")

	return cmd
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the runner version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println(config.Version)
		},
	}
}

func setupLogger() *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	return slog.New(handler)
}

func runFleet(cmd *cobra.Command, args []string) error {
	logger := setupLogger()

	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := config.Validate(cfg); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	profile, err := campaign.Load(configFile)
	if err != nil {
		return fmt.Errorf("load campaign profile: %w", err)
	}
	if profile.CampaignID != campaignID {
		return fmt.Errorf("campaign profile id %d does not match --campaign-id %d", profile.CampaignID, campaignID)
	}

	date := targetDate
	if date == "" {
		date = time.Now().In(hours.JST).Format("2006-01-02")
	}

	runID := os.Getenv("FORMSENDER_RUN_ID")
	if runID == "" {
		runID = uuid.NewString()
	}

	var fixedCompanyID *int64
	if companyID != 0 {
		id := companyID
		fixedCompanyID = &id
	}
	var shard *int
	if shardID >= 0 {
		s := shardID
		shard = &s
	}

	metrics := observability.NewMetrics(logger)
	if cfg.Metrics.Enabled {
		if err := metrics.StartServer(cfg.Metrics.Port, cfg.Metrics.Path); err != nil {
			logger.Warn("metrics server failed to start", "error", err)
		}
	}

	protocol, closeProtocol, err := buildProtocol(cfg, logger, metrics)
	if err != nil {
		return fmt.Errorf("build claim protocol: %w", err)
	}
	defer closeProtocol()

	auditSink, closeAudit, err := buildAuditSink(cfg, logger)
	if err != nil {
		return fmt.Errorf("build audit sink: %w", err)
	}
	defer closeAudit()

	sup, err := supervisor.New(supervisor.Config{
		NumWorkers:     numWorkers,
		FixedCompanyID: fixedCompanyID,
		Logger:         logger,
		Metrics:        metrics,
	})
	if err != nil {
		return fmt.Errorf("supervisor config: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received signal, shutting down", "signal", sig)
		sup.Shutdown()
		cancel()
	}()

	headless := automation.HeadlessMode(headlessFlag)

	sup.Spawn(ctx, func(ctx context.Context, workerID int, shouldStop func() bool) error {
		driver, err := automation.NewRodDriver(headless, logger, automation.WithProcessBudget(cfg.Worker.ProcessBudget))
		if err != nil {
			return fmt.Errorf("worker %d: launch browser driver: %w", workerID, err)
		}
		defer driver.Close()

		wcfg := worker.Config{
			WorkerID:       workerID,
			CampaignID:     campaignID,
			RunID:          runID,
			TargetDate:     date,
			ShardID:        shard,
			MaxProcessed:   maxProcessed,
			FixedCompanyID: fixedCompanyID,
			BackoffInitial: cfg.Worker.BackoffInitial,
			BackoffMax:     cfg.Worker.BackoffMax,
			JitterRatio:    cfg.Worker.JitterRatio,
			BusinessHoursPoll: cfg.Worker.BusinessHoursPoll,
		}

		w := worker.New(wcfg, protocol, profile, driver, logger)
		w.SetMetrics(metrics)
		if auditSink != nil {
			w.SetAuditSink(auditSink)
		}
		return w.Run(ctx, shouldStop)
	})

	sup.Wait()

	if err := sup.Err(); err != nil {
		return fmt.Errorf("fleet exited with error: %w", err)
	}
	return nil
}

// buildProtocol wires the Postgres-backed ClaimProtocol behind the retry
// and circuit-breaker policy of §4.3, unless local-dev mode substitutes an
// in-memory protocol with no backing store configured.
func buildProtocol(cfg *config.Config, logger *slog.Logger, metrics *observability.Metrics) (claim.Protocol, func(), error) {
	if cfg.Store.LocalDevMode && cfg.Store.PostgresDSN == "" {
		logger.Warn("local_dev_mode: using in-memory claim protocol, no persistence")
		return claim.NewMemoryProtocol(), func() {}, nil
	}

	pool, err := pgxpool.New(context.Background(), cfg.Store.PostgresDSN)
	if err != nil {
		return nil, func() {}, fmt.Errorf("postgres pool: %w", err)
	}

	retry := claim.RetryConfig{
		InitialInterval: cfg.Claim.RetryInitialInterval,
		MaxInterval:     cfg.Claim.RetryMaxInterval,
		MaxElapsedTime:  cfg.Claim.RetryMaxElapsedTime,
		Multiplier:      cfg.Claim.RetryMultiplier,
	}
	inner := claim.NewPostgresProtocol(pool, logger)
	resilient := claim.NewResilient(inner, retry, logger, metrics)
	return resilient, pool.Close, nil
}

// buildAuditSink fans terminal writes out to every configured backend:
// MongoDB when a URI is set, always a local JSONL fallback so a worker
// never runs with zero audit trail (§9 design note on local-dev mode).
func buildAuditSink(cfg *config.Config, logger *slog.Logger) (storage.AuditSink, func(), error) {
	var backends []storage.AuditSink

	jsonlPath := fmt.Sprintf("formsender-audit-%s.jsonl", cfg.Store.Environment)
	if cfg.Store.Environment == "" {
		jsonlPath = "formsender-audit.jsonl"
	}
	jsonlSink, err := storage.NewJSONLSink(jsonlPath)
	if err != nil {
		return nil, func() {}, fmt.Errorf("jsonl sink: %w", err)
	}
	backends = append(backends, jsonlSink)

	if cfg.Store.MongoURI != "" {
		mongoSink, err := storage.NewMongoAuditSink(cfg.Store.MongoURI, cfg.Store.MongoDB, "terminals", logger)
		if err != nil {
			logger.Warn("mongo audit sink unavailable, continuing with jsonl only", "error", err)
		} else {
			backends = append(backends, mongoSink)
		}
	}

	multi := storage.NewMultiSink(backends...)
	return multi, func() { _ = multi.Close() }, nil
}
