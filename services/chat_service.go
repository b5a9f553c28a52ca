package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"plan-chat/contract"
	"plan-chat/domain/chat"
	"plan-chat/domain/mimetypes"
	"plan-chat/errors"
	"plan-chat/moderation"
)

const defaultSearchLimit = 20

type IChatService interface {
	PostMessage(ctx context.Context, cmd chat.PostMessageCommand) (chat.Message, error)
	GetMessages(ctx context.Context, cmd chat.GetMessagesCommand) ([]chat.Message, error)
	SearchMessages(ctx context.Context, cmd chat.SearchMessagesCommand) ([]chat.Message, error)
}

// Limits bounds what a single message may carry. Zero values fall back to defaults.
type Limits struct {
	MaxTextLength int
	MaxImageBytes int
}

type ChatService struct {
	repository contract.IMessageRepository
	uploader   contract.IMediaUploader
	index      contract.IMessageIndex
	moderator  *moderation.Moderator
	limits     Limits
	now        func() time.Time
	log        *slog.Logger
}

// NewChatService wires the message store gateway logic.
// index and moderator are optional and may be nil.
func NewChatService(
	repository contract.IMessageRepository,
	uploader contract.IMediaUploader,
	index contract.IMessageIndex,
	moderator *moderation.Moderator,
	limits Limits,
	log *slog.Logger,
) *ChatService {
	if limits.MaxTextLength <= 0 {
		limits.MaxTextLength = chat.DefaultMaxTextLength
	}
	return &ChatService{
		repository: repository,
		uploader:   uploader,
		index:      index,
		moderator:  moderator,
		limits:     limits,
		now:        time.Now,
		log:        log,
	}
}

// WithClock replaces the clock used to stamp createdAt.
func (s *ChatService) WithClock(now func() time.Time) *ChatService {
	s.now = now
	return s
}

// PostMessage validates, uploads the optional image, then persists the message.
// A failed upload aborts before anything is written. A failed insert leaves the
// uploaded image orphaned on the media host.
func (s *ChatService) PostMessage(ctx context.Context, cmd chat.PostMessageCommand) (chat.Message, error) {
	if err := cmd.Validate(s.limits.MaxTextLength); err != nil {
		return chat.Message{}, err
	}

	text := cmd.Text
	if s.moderator != nil && text != "" {
		review := s.moderator.Review(text)
		if len(review.CensoredWords) > 0 {
			s.log.Info("Message censored",
				"plan_id", cmd.PlanID,
				"author_id", cmd.AuthorID,
				"words", len(review.CensoredWords),
				"lang", review.Lang)
		}
		text = review.Content
	}

	var imageURL *string
	if cmd.HasImage() {
		image, err := mimetypes.ParseDataURL(cmd.ImagePayload, s.limits.MaxImageBytes)
		if err != nil {
			return chat.Message{}, err
		}
		link, err := s.uploader.Upload(ctx, cmd.PlanID, image)
		if err != nil {
			s.log.Error("Image upload failed", "plan_id", cmd.PlanID, "error", err)
			return chat.Message{}, fmt.Errorf("%w: %v", errors.ErrUpload, err)
		}
		imageURL = &link
	}

	stored, err := s.repository.Insert(ctx, chat.Message{
		PlanID:    cmd.PlanID,
		AuthorID:  cmd.AuthorID,
		Text:      text,
		ImageURL:  imageURL,
		CreatedAt: s.now().UTC().Truncate(time.Millisecond),
	})
	if err != nil {
		if imageURL != nil {
			s.log.Warn("Uploaded image left orphaned", "plan_id", cmd.PlanID, "url", *imageURL)
		}
		s.log.Error("Message insert failed", "plan_id", cmd.PlanID, "error", err)
		return chat.Message{}, fmt.Errorf("%w: %v", errors.ErrPersistence, err)
	}

	if s.index != nil {
		if err := s.index.Index(ctx, stored); err != nil {
			s.log.Warn("Message not indexed", "message_id", stored.ID, "error", err)
		}
	}

	s.log.Debug("Message stored", "plan_id", stored.PlanID, "message_id", stored.ID, "has_image", imageURL != nil)
	return stored, nil
}

// GetMessages returns the plan history oldest first. An unknown plan yields an empty slice.
func (s *ChatService) GetMessages(ctx context.Context, cmd chat.GetMessagesCommand) ([]chat.Message, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}
	messages, err := s.repository.FindByPlan(ctx, cmd.PlanID)
	if err != nil {
		s.log.Error("Message lookup failed", "plan_id", cmd.PlanID, "error", err)
		return nil, fmt.Errorf("%w: %v", errors.ErrPersistence, err)
	}
	if messages == nil {
		messages = []chat.Message{}
	}
	return messages, nil
}

func (s *ChatService) SearchMessages(ctx context.Context, cmd chat.SearchMessagesCommand) ([]chat.Message, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}
	if s.index == nil {
		return nil, errors.ErrSearchDisabled
	}
	limit := cmd.Limit
	if limit == 0 {
		limit = defaultSearchLimit
	}
	messages, err := s.index.Search(ctx, cmd.PlanID, cmd.Terms, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errors.ErrPersistence, err)
	}
	if messages == nil {
		messages = []chat.Message{}
	}
	return messages, nil
}
