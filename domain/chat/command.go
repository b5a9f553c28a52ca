package chat

import (
	"fmt"
	"strings"

	"plan-chat/errors"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// DefaultMaxTextLength bounds the message body when no limit is configured.
const DefaultMaxTextLength = 2000

type PostMessageCommand struct {
	PlanID       PlanID `validate:"required"`
	AuthorID     string `validate:"required"`
	Text         string
	ImagePayload string
}

// Validate checks the command before any media upload or store write happens.
func (c PostMessageCommand) Validate(maxTextLength int) error {
	if strings.TrimSpace(string(c.PlanID)) == "" {
		return errors.ErrMissingPlanID
	}
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("%w: %v", errors.ErrValidation, err)
	}
	if strings.TrimSpace(c.Text) == "" && c.ImagePayload == "" {
		return errors.ErrEmptyMessage
	}
	if maxTextLength > 0 && len([]rune(c.Text)) > maxTextLength {
		return errors.ErrTextTooLong
	}
	return nil
}

func (c PostMessageCommand) HasImage() bool {
	return c.ImagePayload != ""
}

type GetMessagesCommand struct {
	PlanID PlanID
}

func (c GetMessagesCommand) Validate() error {
	if strings.TrimSpace(string(c.PlanID)) == "" {
		return errors.ErrMissingPlanID
	}
	return nil
}

type SearchMessagesCommand struct {
	PlanID PlanID `validate:"required"`
	Terms  string `validate:"required"`
	Limit  int    `validate:"gte=0,lte=200"`
}

func (c SearchMessagesCommand) Validate() error {
	if strings.TrimSpace(string(c.PlanID)) == "" {
		return errors.ErrMissingPlanID
	}
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("%w: %v", errors.ErrValidation, err)
	}
	return nil
}
