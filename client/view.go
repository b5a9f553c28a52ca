package client

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"plan-chat/domain/chat"

	"github.com/gookit/color"
	"github.com/samber/lo"
)

const (
	defaultWindow = 20
	defaultWidth  = 80
)

var (
	ownStyle   = color.New(color.FgCyan, color.OpBold)
	otherStyle = color.New(color.FgDefault)
	metaStyle  = color.New(color.FgGray)
)

// View holds the ordered conversation of one plan as the user sees it.
// History and live messages may race: appends are deduplicated by id.
type View struct {
	mu       sync.RWMutex
	userID   string
	messages []chat.Message
	window   int
	width    int
	onAppend func(chat.Message)
}

func NewView(userID string, window, width int) *View {
	if window <= 0 {
		window = defaultWindow
	}
	if width <= 0 {
		width = defaultWidth
	}
	return &View{userID: userID, window: window, width: width}
}

// OnAppend is called, outside the lock, for every message that made it into the view.
func (v *View) OnAppend(fn func(chat.Message)) {
	v.mu.Lock()
	v.onAppend = fn
	v.mu.Unlock()
}

// SetHistory replaces the state with the fetched history, keeping live messages
// that arrived meanwhile and are not part of it.
func (v *View) SetHistory(history []chat.Message) {
	v.mu.Lock()
	defer v.mu.Unlock()
	merged := append(append([]chat.Message{}, history...), v.messages...)
	seen := make(map[string]struct{}, len(merged))
	v.messages = lo.Filter(merged, func(m chat.Message, _ int) bool {
		if m.ID == "" {
			return true
		}
		if _, ok := seen[m.ID]; ok {
			return false
		}
		seen[m.ID] = struct{}{}
		return true
	})
}

// Append adds msg at the end unless a message with the same id is already shown.
func (v *View) Append(msg chat.Message) bool {
	v.mu.Lock()
	if msg.ID != "" && lo.ContainsBy(v.messages, func(m chat.Message) bool { return m.ID == msg.ID }) {
		v.mu.Unlock()
		return false
	}
	v.messages = append(v.messages, msg)
	onAppend := v.onAppend
	v.mu.Unlock()

	if onAppend != nil {
		onAppend(msg)
	}
	return true
}

func (v *View) Messages() []chat.Message {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return append([]chat.Message{}, v.messages...)
}

func (v *View) IsOwn(msg chat.Message) bool {
	return msg.AuthorID != "" && msg.AuthorID == v.userID
}

// Render writes the latest window of messages, so the newest one is always visible.
func (v *View) Render(w io.Writer) error {
	return v.render(w, v.Messages())
}

// Follow renders the current window then calls fn for every later message.
// The snapshot and the callback swap happen under one lock: a message is either
// rendered or passed to fn, never both and never neither.
func (v *View) Follow(w io.Writer, fn func(chat.Message)) error {
	v.mu.Lock()
	messages := append([]chat.Message{}, v.messages...)
	v.onAppend = fn
	v.mu.Unlock()
	return v.render(w, messages)
}

func (v *View) render(w io.Writer, messages []chat.Message) error {
	if len(messages) > v.window {
		messages = messages[len(messages)-v.window:]
	}
	for _, msg := range messages {
		if _, err := fmt.Fprintln(w, v.RenderLine(msg)); err != nil {
			return err
		}
	}
	return nil
}

// RenderLine formats one message: own messages right-aligned and coloured.
func (v *View) RenderLine(msg chat.Message) string {
	body := msg.Text
	if msg.ImageURL != nil {
		body = strings.TrimSpace(body + " [image] " + *msg.ImageURL)
	}
	meta := msg.CreatedAt.Local().Format(time.TimeOnly)

	if v.IsOwn(msg) {
		line := fmt.Sprintf("%s %s", body, meta)
		if pad := v.width - len([]rune(line)); pad > 0 {
			line = strings.Repeat(" ", pad) + line
		}
		return ownStyle.Sprint(line)
	}
	return metaStyle.Sprint(meta+" "+msg.AuthorID+": ") + otherStyle.Sprint(body)
}
