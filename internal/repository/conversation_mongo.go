package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"biopaper-tutor/internal/domain"
)

const conversationsCollection = "conversations"

// conversationDocument es la forma persistida en Mongo: un documento por
// conversación con los mensajes embebidos.
type conversationDocument struct {
	ID        primitive.ObjectID `bson:"_id,omitempty"`
	UserID    string             `bson:"userId"`
	Title     string             `bson:"title"`
	Messages  []domain.Message   `bson:"messages"`
	CreatedAt time.Time          `bson:"createdAt"`
	UpdatedAt time.Time          `bson:"updatedAt"`
}

func (d conversationDocument) toDomain() domain.Conversation {
	msgs := d.Messages
	if msgs == nil {
		msgs = []domain.Message{}
	}
	return domain.Conversation{
		ID:        d.ID.Hex(),
		UserID:    d.UserID,
		Title:     d.Title,
		Messages:  msgs,
		CreatedAt: d.CreatedAt,
		UpdatedAt: d.UpdatedAt,
	}
}

type MongoConversationRepository struct {
	coll *mongo.Collection
}

func NewMongoConversationRepository(db *mongo.Database) *MongoConversationRepository {
	return &MongoConversationRepository{coll: db.Collection(conversationsCollection)}
}

// EnsureIndexes crea el índice (userId, updatedAt desc) que usa ListByUser.
func (r *MongoConversationRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "userId", Value: 1}, {Key: "updatedAt", Value: -1}},
	})
	return err
}

func parseObjectID(id string) (primitive.ObjectID, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return primitive.NilObjectID, domain.ErrInvalidID
	}
	return oid, nil
}

func (r *MongoConversationRepository) ListByUser(ctx context.Context, userID string, limit int) ([]domain.Conversation, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "updatedAt", Value: -1}}).
		SetLimit(int64(limit))
	cur, err := r.coll.Find(ctx, bson.M{"userId": userID}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var docs []conversationDocument
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}
	convs := make([]domain.Conversation, 0, len(docs))
	for _, doc := range docs {
		convs = append(convs, doc.toDomain())
	}
	return convs, nil
}

func (r *MongoConversationRepository) Create(ctx context.Context, conv domain.Conversation) (domain.Conversation, error) {
	doc := conversationDocument{
		UserID:    conv.UserID,
		Title:     conv.Title,
		Messages:  conv.Messages,
		CreatedAt: conv.CreatedAt,
		UpdatedAt: conv.UpdatedAt,
	}
	if doc.Messages == nil {
		doc.Messages = []domain.Message{}
	}
	res, err := r.coll.InsertOne(ctx, doc)
	if err != nil {
		return domain.Conversation{}, err
	}
	oid, ok := res.InsertedID.(primitive.ObjectID)
	if !ok {
		return domain.Conversation{}, fmt.Errorf("unexpected inserted id type %T", res.InsertedID)
	}
	doc.ID = oid
	return doc.toDomain(), nil
}

func (r *MongoConversationRepository) Get(ctx context.Context, id, userID string) (domain.Conversation, error) {
	oid, err := parseObjectID(id)
	if err != nil {
		return domain.Conversation{}, err
	}
	var doc conversationDocument
	err = r.coll.FindOne(ctx, bson.M{"_id": oid, "userId": userID}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return domain.Conversation{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.Conversation{}, err
	}
	return doc.toDomain(), nil
}

func (r *MongoConversationRepository) Delete(ctx context.Context, id, userID string) error {
	oid, err := parseObjectID(id)
	if err != nil {
		return err
	}
	res, err := r.coll.DeleteOne(ctx, bson.M{"_id": oid, "userId": userID})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// ReplaceMessages no hace upsert: una conversación borrada o ajena no se recrea.
func (r *MongoConversationRepository) ReplaceMessages(ctx context.Context, id, userID string, messages []domain.Message, updatedAt time.Time) error {
	oid, err := parseObjectID(id)
	if err != nil {
		return err
	}
	res, err := r.coll.UpdateOne(ctx,
		bson.M{"_id": oid, "userId": userID},
		bson.M{"$set": bson.M{"messages": messages, "updatedAt": updatedAt}},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return domain.ErrNotFound
	}
	return nil
}
