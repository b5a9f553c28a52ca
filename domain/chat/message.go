// Package chat contains the core concepts of the plan chat.
// Messages are immutable once persisted: there is no update or delete path.
package chat

import (
	"strings"
	"time"
)

// PlanID identifies the plan owning a conversation. It doubles as the relay room name.
type PlanID string

func (p PlanID) String() string { return string(p) }

// Message is the only domain entity.
// ImageURL is nil when no image was attached.
type Message struct {
	ID        string    `json:"id"`
	PlanID    PlanID    `json:"planId"`
	AuthorID  string    `json:"authorId"`
	Text      string    `json:"text"`
	ImageURL  *string   `json:"imageUrl"`
	CreatedAt time.Time `json:"createdAt"`
}

// HasContent reports whether the message carries a non-blank text or an image.
func (m Message) HasContent() bool {
	return strings.TrimSpace(m.Text) != "" || (m.ImageURL != nil && *m.ImageURL != "")
}
