package storage

import (
	"context"
	"log/slog"
	"sort"

	"plan-chat/domain/chat"

	"github.com/blugelabs/bluge"
	"go.mongodb.org/mongo-driver/bson"
)

const (
	fieldPlanID = "planId"
	fieldText   = "text"
	fieldSource = "_source"

	defaultSearchLimit = 20
)

// BlugeMessageIndex keeps a full-text index of message bodies, one plan at a time.
type BlugeMessageIndex struct {
	writer *bluge.Writer
	log    *slog.Logger
}

func NewBlugeMessageIndex(writer *bluge.Writer, log *slog.Logger) BlugeMessageIndex {
	return BlugeMessageIndex{writer: writer, log: log}
}

// Index stores the message text for matching and the whole document for rendering results.
// Image-only messages are skipped: there is nothing to match.
func (b BlugeMessageIndex) Index(_ context.Context, message chat.Message) error {
	if message.Text == "" {
		return nil
	}
	source, err := bson.Marshal(fromMessage(message))
	if err != nil {
		return err
	}
	doc := bluge.NewDocument(message.ID).
		AddField(bluge.NewKeywordField(fieldPlanID, message.PlanID.String())).
		AddField(bluge.NewTextField(fieldText, message.Text)).
		AddField(bluge.NewStoredOnlyField(fieldSource, source))
	return b.writer.Update(doc.ID(), doc)
}

// Search matches terms inside one plan and returns the hits oldest first.
func (b BlugeMessageIndex) Search(ctx context.Context, planID chat.PlanID, terms string, limit int) ([]chat.Message, error) {
	if limit <= 0 {
		limit = defaultSearchLimit
	}
	reader, err := b.writer.Reader()
	if err != nil {
		return nil, err
	}
	defer func() { _ = reader.Close() }()

	query := bluge.NewBooleanQuery().
		AddMust(bluge.NewTermQuery(planID.String()).SetField(fieldPlanID)).
		AddMust(bluge.NewMatchQuery(terms).SetField(fieldText))

	iterator, err := reader.Search(ctx, bluge.NewTopNSearch(limit, query))
	if err != nil {
		return nil, err
	}

	messages := make([]chat.Message, 0)
	match, err := iterator.Next()
	for err == nil && match != nil {
		var decodeErr error
		err = match.VisitStoredFields(func(field string, value []byte) bool {
			if field != fieldSource {
				return true
			}
			var doc messageDocument
			if decodeErr = bson.Unmarshal(value, &doc); decodeErr == nil {
				messages = append(messages, doc.toMessage())
			}
			return false
		})
		if err == nil && decodeErr != nil {
			b.log.Warn("Skipping unreadable search hit", "plan_id", planID, "error", decodeErr)
		}
		if err != nil {
			break
		}
		match, err = iterator.Next()
	}
	if err != nil {
		return nil, err
	}

	sort.SliceStable(messages, func(i, j int) bool {
		return messages[i].CreatedAt.Before(messages[j].CreatedAt)
	})
	return messages, nil
}
