package store

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/LLMontreal/llmontreal-backend/models"
)

type MongoChatSessionStore struct {
	col *mongo.Collection
}

func NewMongoChatSessionStore(db *mongo.Database) *MongoChatSessionStore {
	return &MongoChatSessionStore{col: db.Collection("chat_sessions")}
}

func (s *MongoChatSessionStore) Insert(ctx context.Context, session *models.ChatSession) error {
	now := time.Now()
	session.CreatedAt = now
	session.UpdatedAt = now
	if session.Messages == nil {
		session.Messages = []models.ChatMessage{}
	}

	_, err := s.col.InsertOne(ctx, session)
	return err
}

func (s *MongoChatSessionStore) FindByID(ctx context.Context, id string) (*models.ChatSession, error) {
	return s.findOne(ctx, bson.M{"_id": id})
}

func (s *MongoChatSessionStore) FindByDocumentID(ctx context.Context, documentID string) (*models.ChatSession, error) {
	return s.findOne(ctx, bson.M{"document_id": documentID})
}

func (s *MongoChatSessionStore) findOne(ctx context.Context, filter bson.M) (*models.ChatSession, error) {
	var session models.ChatSession
	err := s.col.FindOne(ctx, filter).Decode(&session)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &session, nil
}

func (s *MongoChatSessionStore) AppendMessage(ctx context.Context, sessionID string, msg models.ChatMessage) error {
	res, err := s.col.UpdateOne(ctx,
		bson.M{"_id": sessionID},
		bson.M{
			"$push": bson.M{"messages": msg},
			"$set":  bson.M{"updated_at": time.Now()},
		},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}
