package store

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/LLMontreal/llmontreal-backend/models"
)

type MongoDocumentStore struct {
	col *mongo.Collection
}

func NewMongoDocumentStore(db *mongo.Database) *MongoDocumentStore {
	return &MongoDocumentStore{col: db.Collection("documents")}
}

func (s *MongoDocumentStore) Insert(ctx context.Context, doc *models.Document) error {
	now := time.Now()
	doc.CreatedAt = now
	doc.UpdatedAt = now
	doc.Version = 1

	_, err := s.col.InsertOne(ctx, doc)
	return err
}

func (s *MongoDocumentStore) FindByID(ctx context.Context, id string) (*models.Document, error) {
	var doc models.Document
	err := s.col.FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

func (s *MongoDocumentStore) List(ctx context.Context, status string, page, size int64) ([]models.Document, int64, error) {
	filter := bson.M{}
	if status != "" {
		filter["status"] = status
	}

	total, err := s.col.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, err
	}

	if page < 1 {
		page = 1
	}
	opts := options.Find().
		SetSort(bson.M{"created_at": -1}).
		SetSkip((page - 1) * size).
		SetLimit(size).
		SetProjection(bson.M{"file_data": 0}) // listing never ships raw payloads

	cursor, err := s.col.Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, err
	}
	defer cursor.Close(ctx)

	docs := make([]models.Document, 0)
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, 0, err
	}

	return docs, total, nil
}

func (s *MongoDocumentStore) SetStatus(ctx context.Context, id, status string) error {
	return s.update(ctx, bson.M{"_id": id}, bson.M{"status": status})
}

func (s *MongoDocumentStore) SetExtractedText(ctx context.Context, id, text string) error {
	return s.update(ctx, bson.M{"_id": id}, bson.M{"extracted_text": text})
}

func (s *MongoDocumentStore) CompleteWithSummary(ctx context.Context, id, summary string) error {
	return s.update(ctx, bson.M{"_id": id}, bson.M{
		"summary": summary,
		"status":  models.StatusCompleted,
	})
}

func (s *MongoDocumentStore) Fail(ctx context.Context, id, errorMessage string) error {
	return s.update(ctx, bson.M{"_id": id}, bson.M{
		"status":        models.StatusFailed,
		"error_message": errorMessage,
	})
}

func (s *MongoDocumentStore) BeginRegeneration(ctx context.Context, id string, version int64) error {
	res, err := s.col.UpdateOne(ctx,
		bson.M{"_id": id, "version": version},
		bson.M{
			"$set": bson.M{
				"summary":       "",
				"error_message": "",
				"status":        models.StatusProcessing,
				"updated_at":    time.Now(),
			},
			"$inc": bson.M{"version": 1},
		},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrVersionConflict
	}
	return nil
}

func (s *MongoDocumentStore) update(ctx context.Context, filter, set bson.M) error {
	set["updated_at"] = time.Now()
	res, err := s.col.UpdateOne(ctx, filter, bson.M{
		"$set": set,
		"$inc": bson.M{"version": 1},
	})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}
