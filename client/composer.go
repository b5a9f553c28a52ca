package client

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"plan-chat/domain/mimetypes"
)

// Composer is the message being typed, with an optional image attachment.
type Composer struct {
	mu        sync.Mutex
	text      string
	imagePath string
}

func (c *Composer) SetText(text string) {
	c.mu.Lock()
	c.text = text
	c.mu.Unlock()
}

// AttachImage remembers a file to send with the next message. It is read at submit time.
func (c *Composer) AttachImage(path string) {
	c.mu.Lock()
	c.imagePath = path
	c.mu.Unlock()
}

func (c *Composer) Text() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.text
}

func (c *Composer) ImagePath() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.imagePath
}

func (c *Composer) IsEmpty() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return strings.TrimSpace(c.text) == "" && c.imagePath == ""
}

func (c *Composer) Clear() {
	c.mu.Lock()
	c.text, c.imagePath = "", ""
	c.mu.Unlock()
}

// ImagePayload reads the attachment and encodes it as a data URL, empty without attachment.
func (c *Composer) ImagePayload() (string, error) {
	path := c.ImagePath()
	if path == "" {
		return "", nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading attachment: %w", err)
	}
	return mimetypes.EncodeDataURL(data)
}
