package storage

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"

	"plan-chat/domain/chat"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
)

const messagePrefix = "msg:"

type BadgerMessageRepository struct {
	db  *badger.DB
	log *slog.Logger
}

func NewBadgerMessageRepository(db *badger.DB, log *slog.Logger) BadgerMessageRepository {
	return BadgerMessageRepository{db: db, log: log}
}

// planPrefix escapes the opaque plan id so that "a" never prefixes "a:b".
func planPrefix(planID chat.PlanID) string {
	return messagePrefix + url.QueryEscape(planID.String()) + ":"
}

// messageKey is formatted as "msg:{plan}:{timestamp_padded}:{uuid}" to:
//  1. Ensure chronological sorting using 19-digit zero padding (lexicographical order).
//  2. Prevent data loss by using the UUID as a tie-breaker when two messages
//     share the same timestamp.
func messageKey(message chat.Message) []byte {
	return []byte(fmt.Sprintf("%s%019d:%s",
		planPrefix(message.PlanID),
		message.CreatedAt.UnixNano(),
		message.ID,
	))
}

// Insert assigns a UUID to the message and persists it.
func (m BadgerMessageRepository) Insert(_ context.Context, message chat.Message) (chat.Message, error) {
	message.ID = uuid.NewString()
	bytes, err := bson.Marshal(fromMessage(message))
	if err != nil {
		return chat.Message{}, err
	}
	err = m.db.Update(func(txn *badger.Txn) error {
		return txn.Set(messageKey(message), bytes)
	})
	if err != nil {
		return chat.Message{}, err
	}
	m.log.Debug("Message stored", "plan_id", message.PlanID, "message_id", message.ID)
	return message, nil
}

// FindByPlan returns the whole history of a plan with a forward prefix scan.
// Thanks to the padded timestamp in the key, messages come out oldest first.
func (m BadgerMessageRepository) FindByPlan(ctx context.Context, planID chat.PlanID) ([]chat.Message, error) {
	messages := make([]chat.Message, 0)
	err := m.db.View(func(txn *badger.Txn) error {
		prefix := []byte(planPrefix(planID))
		options := badger.DefaultIteratorOptions
		options.Prefix = prefix
		it := txn.NewIterator(options)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			err := it.Item().Value(func(value []byte) error {
				message, err := DecodeMessage(value)
				if err != nil {
					return err
				}
				messages = append(messages, message)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return messages, nil
}
