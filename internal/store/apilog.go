package store

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/LLMontreal/llmontreal-backend/models"
)

type MongoAPICallLogStore struct {
	col *mongo.Collection
}

func NewMongoAPICallLogStore(db *mongo.Database) *MongoAPICallLogStore {
	return &MongoAPICallLogStore{col: db.Collection("log_api_calls")}
}

func (s *MongoAPICallLogStore) Record(ctx context.Context, entry *models.APICallLog) error {
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now()
	}
	_, err := s.col.InsertOne(ctx, entry)
	return err
}

func (s *MongoAPICallLogStore) RecordJobResult(ctx context.Context, correlationID string, latencyMs int64, statusCode int, errorMessage string) error {
	_, err := s.col.UpdateOne(ctx,
		bson.M{"correlation_id": correlationID},
		bson.M{"$set": bson.M{
			"job_latency_ms":    latencyMs,
			"job_status_code":   statusCode,
			"job_error_message": errorMessage,
		}},
	)
	return err
}
