package media

import (
	"context"
	"fmt"
	"log/slog"

	"plan-chat/domain/chat"
	"plan-chat/domain/mimetypes"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
)

// ChatImagesFolder groups chat attachments on the media host.
const ChatImagesFolder = "chat-images"

type CloudinaryUploader struct {
	cld    *cloudinary.Cloudinary
	folder string
	log    *slog.Logger
}

func NewCloudinaryUploader(cloudName, apiKey, apiSecret, folder string, log *slog.Logger) (*CloudinaryUploader, error) {
	cld, err := cloudinary.NewFromParams(cloudName, apiKey, apiSecret)
	if err != nil {
		return nil, fmt.Errorf("cloudinary setup: %w", err)
	}
	if folder == "" {
		folder = ChatImagesFolder
	}
	return &CloudinaryUploader{cld: cld, folder: folder, log: log}, nil
}

// Upload sends the image as a data URL, the format the upload API accepts directly.
func (c *CloudinaryUploader) Upload(ctx context.Context, planID chat.PlanID, image mimetypes.Image) (string, error) {
	result, err := c.cld.Upload.Upload(ctx, image.DataURL(), uploader.UploadParams{
		Folder: c.folder,
		Tags:   []string{"plan-" + planID.String()},
	})
	if err != nil {
		return "", err
	}
	if result.Error.Message != "" {
		return "", fmt.Errorf("cloudinary: %s", result.Error.Message)
	}
	c.log.Debug("Image uploaded", "plan_id", planID, "url", result.SecureURL, "bytes", image.Size())
	return result.SecureURL, nil
}
