package attribution

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"sift/internal/logger"
	"sift/pkg/retry"
)

// RunAudit persists per-run summaries for operators. It is an optional
// collaborator: without a Mongo connection runs simply go unrecorded.
type RunAudit interface {
	RecordRun(ctx context.Context, record RunRecord) error
	ListRuns(ctx context.Context, limit int) ([]RunRecord, error)
}

type NoopAudit struct{}

func (NoopAudit) RecordRun(context.Context, RunRecord) error { return nil }
func (NoopAudit) ListRuns(context.Context, int) ([]RunRecord, error) {
	return []RunRecord{}, nil
}

type MongoRunAudit struct {
	collection *mongo.Collection
	logger     logger.Logger
}

func NewMongoRunAudit(client *mongo.Client, database string, log logger.Logger) *MongoRunAudit {
	return &MongoRunAudit{
		collection: client.Database(database).Collection("attribution_runs"),
		logger:     log,
	}
}

func (a *MongoRunAudit) RecordRun(ctx context.Context, record RunRecord) error {
	policy := retry.DefaultPolicy()
	policy.MaxAttempts = 3

	err := retry.Retry(ctx, policy, func() error {
		_, err := a.collection.InsertOne(ctx, record)
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to insert run record: %w", err)
	}

	return nil
}

func (a *MongoRunAudit) ListRuns(ctx context.Context, limit int) ([]RunRecord, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "started_at", Value: -1}}).
		SetLimit(int64(limit))

	cursor, err := a.collection.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query run records: %w", err)
	}
	defer cursor.Close(ctx)

	records := []RunRecord{}
	if err := cursor.All(ctx, &records); err != nil {
		return nil, fmt.Errorf("failed to decode run records: %w", err)
	}

	return records, nil
}
