package storage

import (
	"context"
	"fmt"
	"log/slog"

	"plan-chat/domain/chat"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// DiscussionsCollection is the collection holding chat messages.
const DiscussionsCollection = "Discussions"

type MongoMessageRepository struct {
	collection *mongo.Collection
	log        *slog.Logger
}

// ConnectMongo opens a client and checks the connection before returning it.
func ConnectMongo(ctx context.Context, uri string) (*mongo.Client, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}
	if err = client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("mongo ping: %w", err)
	}
	return client, nil
}

func NewMongoMessageRepository(client *mongo.Client, database string, log *slog.Logger) MongoMessageRepository {
	return MongoMessageRepository{
		collection: client.Database(database).Collection(DiscussionsCollection),
		log:        log,
	}
}

// EnsureIndexes creates the (planId, createdAt) index used by FindByPlan.
func (m MongoMessageRepository) EnsureIndexes(ctx context.Context) error {
	_, err := m.collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "planId", Value: 1}, {Key: "createdAt", Value: 1}},
	})
	return err
}

// Insert lets the server generate the ObjectID and returns it as the message id.
func (m MongoMessageRepository) Insert(ctx context.Context, message chat.Message) (chat.Message, error) {
	doc := fromMessage(message)
	doc.ID = ""
	doc.ObjectID = primitive.NewObjectID()
	result, err := m.collection.InsertOne(ctx, doc)
	if err != nil {
		return chat.Message{}, err
	}
	if oid, ok := result.InsertedID.(primitive.ObjectID); ok {
		doc.ObjectID = oid
	}
	m.log.Debug("Message stored", "plan_id", message.PlanID, "message_id", doc.ObjectID.Hex())
	return doc.toMessage(), nil
}

func (m MongoMessageRepository) FindByPlan(ctx context.Context, planID chat.PlanID) ([]chat.Message, error) {
	cursor, err := m.collection.Find(ctx,
		bson.M{"planId": planID.String()},
		options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}, {Key: "_id", Value: 1}}),
	)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	messages := make([]chat.Message, 0)
	for cursor.Next(ctx) {
		var doc messageDocument
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("decoding message: %w", err)
		}
		messages = append(messages, doc.toMessage())
	}
	if err := cursor.Err(); err != nil {
		return nil, err
	}
	return messages, nil
}
