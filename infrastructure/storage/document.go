package storage

import (
	"time"

	"plan-chat/domain/chat"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// messageDocument is the persisted shape of a message, shared by every store.
// Badger values are BSON encoded with the same tags the Mongo collection uses.
type messageDocument struct {
	ObjectID  primitive.ObjectID `bson:"_id,omitempty"`
	ID        string             `bson:"id,omitempty"`
	PlanID    string             `bson:"planId"`
	AuthorID  string             `bson:"authorId"`
	Text      string             `bson:"text"`
	ImageURL  *string            `bson:"imageUrl"`
	CreatedAt time.Time          `bson:"createdAt"`
}

func fromMessage(message chat.Message) messageDocument {
	return messageDocument{
		ID:        message.ID,
		PlanID:    message.PlanID.String(),
		AuthorID:  message.AuthorID,
		Text:      message.Text,
		ImageURL:  message.ImageURL,
		CreatedAt: message.CreatedAt,
	}
}

func (d messageDocument) toMessage() chat.Message {
	id := d.ID
	if id == "" && !d.ObjectID.IsZero() {
		id = d.ObjectID.Hex()
	}
	return chat.Message{
		ID:        id,
		PlanID:    chat.PlanID(d.PlanID),
		AuthorID:  d.AuthorID,
		Text:      d.Text,
		ImageURL:  d.ImageURL,
		CreatedAt: d.CreatedAt.UTC(),
	}
}

// DecodeMessage reads a BSON encoded value as stored by the badger repository.
func DecodeMessage(value []byte) (chat.Message, error) {
	var doc messageDocument
	if err := bson.Unmarshal(value, &doc); err != nil {
		return chat.Message{}, err
	}
	return doc.toMessage(), nil
}
