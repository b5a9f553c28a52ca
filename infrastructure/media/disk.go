package media

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"plan-chat/domain/chat"
	"plan-chat/domain/mimetypes"

	"github.com/google/uuid"
)

// DiskUploader writes attachments under a local directory served by the gateway.
// It stands in for the media host in development and tests.
type DiskUploader struct {
	root    string
	baseURL string
	log     *slog.Logger
}

func NewDiskUploader(root, baseURL string, log *slog.Logger) (*DiskUploader, error) {
	if err := os.MkdirAll(filepath.Join(root, ChatImagesFolder), 0o755); err != nil {
		return nil, fmt.Errorf("media directory: %w", err)
	}
	return &DiskUploader{root: root, baseURL: strings.TrimSuffix(baseURL, "/"), log: log}, nil
}

func (d *DiskUploader) Root() string { return d.root }

func (d *DiskUploader) Upload(ctx context.Context, planID chat.PlanID, image mimetypes.Image) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	name := uuid.NewString() + image.Extension
	path := filepath.Join(d.root, ChatImagesFolder, name)
	if err := os.WriteFile(path, image.Data, 0o644); err != nil {
		return "", err
	}
	link, err := url.JoinPath(d.baseURL, ChatImagesFolder, name)
	if err != nil {
		return "", err
	}
	d.log.Debug("Image stored on disk", "plan_id", planID, "path", path, "bytes", image.Size())
	return link, nil
}
