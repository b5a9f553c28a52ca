package internal

import (
	"fmt"
	"time"
)

const (
	StoreBadger = "badger"
	StoreMongo  = "mongo"

	MediaDisk       = "disk"
	MediaCloudinary = "cloudinary"
)

type Config struct {
	Host     string `env:"HOST,default=0.0.0.0"`
	Port     int    `env:"PORT,default=8080"`
	LogLevel string `env:"LOG_LEVEL,default=INFO"`

	StoreDriver    string `env:"STORE_DRIVER,default=badger"`
	BadgerFilepath string `env:"BADGER_FILEPATH,default=./data/badger"`
	MongoURL       string `env:"MONGODB_URL"`
	MongoDatabase  string `env:"MONGODB_DATABASE,default=plan_chat"`
	BlugeFilepath  string `env:"BLUGE_FILEPATH,default=./data/bluge"`

	DebugPort       int           `env:"DEBUG_PORT,default=8081"`
	GrpcHealthPort  int           `env:"GRPC_HEALTH_PORT,default=0"`
	StatsInterval   time.Duration `env:"STATS_INTERVAL,default=5s"`
	RestartInterval time.Duration `env:"RESTART_INTERVAL,default=200ms"`

	MediaDriver         string `env:"MEDIA_DRIVER,default=disk"`
	MediaDir            string `env:"MEDIA_DIR,default=./data/media"`
	MediaBaseURL        string `env:"MEDIA_BASE_URL,default=http://localhost:8080/media"`
	CloudinaryCloudName string `env:"CLOUDINARY_CLOUD_NAME"`
	CloudinaryAPIKey    string `env:"CLOUDINARY_API_KEY"`
	CloudinaryAPISecret string `env:"CLOUDINARY_API_SECRET"`
	CloudinaryFolder    string `env:"CLOUDINARY_FOLDER,default=chat-images"`

	AuthSecret string `env:"AUTH_SECRET,required=true"`
	AuthIssuer string `env:"AUTH_ISSUER,default=plan-chat"`

	MaxTextLength int `env:"MAX_TEXT_LENGTH,default=2000"`
	MaxImageBytes int `env:"MAX_IMAGE_BYTES,default=5242880"`

	RelayEchoToSender    bool  `env:"RELAY_ECHO_TO_SENDER,default=false"`
	RelayBufferSize      int   `env:"RELAY_BUFFER_SIZE,default=256"`
	ConnectionBufferSize int   `env:"CONNECTION_BUFFER_SIZE,default=32"`
	MaxFrameSize         int64 `env:"MAX_FRAME_SIZE,default=1048576"`

	ModerationEnabled  bool   `env:"MODERATION_ENABLED,default=false"`
	CharReplacement    string `env:"CHARACTER_REPLACEMENT,default=*"`
	ModerationWordsDir string `env:"MODERATION_WORDS_DIR"`
}

// Validate checks the combinations go-env cannot express with tags.
func (c Config) Validate() error {
	switch c.StoreDriver {
	case StoreBadger:
	case StoreMongo:
		if c.MongoURL == "" {
			return fmt.Errorf("MONGODB_URL is required with STORE_DRIVER=%s", StoreMongo)
		}
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q", c.StoreDriver)
	}

	switch c.MediaDriver {
	case MediaDisk:
	case MediaCloudinary:
		if c.CloudinaryCloudName == "" || c.CloudinaryAPIKey == "" || c.CloudinaryAPISecret == "" {
			return fmt.Errorf("CLOUDINARY_* credentials are required with MEDIA_DRIVER=%s", MediaCloudinary)
		}
	default:
		return fmt.Errorf("unknown MEDIA_DRIVER %q", c.MediaDriver)
	}
	return nil
}

// MaxBodyBytes bounds a POST /messages body: base64 grows the image by 4/3, plus the text.
func (c Config) MaxBodyBytes() int64 {
	return int64(c.MaxImageBytes)*4/3 + int64(c.MaxTextLength)*4 + 4096
}

func CharacterRune(str string) (rune, error) {
	r := []rune(str)
	if len(r) != 1 {
		return 0, fmt.Errorf(
			"CHARACTER_REPLACEMENT must be a single character, got %q",
			str,
		)
	}
	return r[0], nil
}
