package storage

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/neurify-goto/formsender-runner/internal/types"
)

// MongoAuditSink writes every terminal record into a MongoDB collection,
// repurposed from the teacher's item-storage MongoStorage: same
// connect/ping/insert shape, a document schema for terminal envelopes
// instead of scraped items.
type MongoAuditSink struct {
	client     *mongo.Client
	collection *mongo.Collection
	mu         sync.Mutex
	count      int
	logger     *slog.Logger
}

// NewMongoAuditSink connects to uri and returns a sink writing into
// database.collection.
func NewMongoAuditSink(uri, database, collection string, logger *slog.Logger) (*MongoAuditSink, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("mongodb connect: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("mongodb ping: %w", err)
	}

	return &MongoAuditSink{
		client:     client,
		collection: client.Database(database).Collection(collection),
		logger:     logger.With("component", "mongo_audit_sink"),
	}, nil
}

func (s *MongoAuditSink) Name() string { return "mongodb" }

// Record inserts one terminal envelope document.
func (s *MongoAuditSink) Record(rec types.TerminalRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc := map[string]any{
		"target_date":     rec.TargetDate,
		"campaign_id":     rec.CampaignID,
		"company_id":      rec.CompanyID,
		"success":         rec.Success,
		"error_code":      rec.ErrorCode,
		"classify_detail": rec.ClassifyDetail,
		"bot_protection":  rec.BotProtection,
		"submitted_at":    rec.SubmittedAt,
		"run_id":          rec.RunID,
		"worker_id":       rec.WorkerID,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if _, err := s.collection.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("mongodb insert: %w", err)
	}

	s.count++
	s.logger.Debug("terminal mirrored to mongodb", "total", s.count)
	return nil
}

func (s *MongoAuditSink) Close() error {
	s.logger.Info("mongodb audit sink closing", "total_records", s.count)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}
