package main

import (
	"context"
	stderrors "errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"plan-chat/auth"
	"plan-chat/contract"
	"plan-chat/infrastructure/grpc/health"
	"plan-chat/infrastructure/http/server"
	"plan-chat/infrastructure/media"
	"plan-chat/infrastructure/storage"
	"plan-chat/internal"
	"plan-chat/moderation"
	"plan-chat/observability"
	"plan-chat/runtime"
	"plan-chat/runtime/workers"
	"plan-chat/services"

	"github.com/Netflix/go-env"
	"github.com/blugelabs/bluge"
	"github.com/dgraph-io/badger/v4"
	"github.com/joho/godotenv"
	"github.com/mama165/sdk-go/database"
	"github.com/mama165/sdk-go/logs"
)

// Exit codes to provide meaningful status to the operating system or service manager (e.g., systemd).
const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

const (
	shutdownTimeout          = 10 * time.Second
	defaultCapacityThreshold = 0.8
)

func main() {
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Gateway terminated with error: %v\n", err)
	}
	os.Exit(code)
}

// run initializes all components, manages the server lifecycle, and centralizes error reporting.
// Returning instead of exiting lets every deferred close run before the process ends.
func run() (int, error) {
	// 1. Configuration & Logger
	// A missing .env file is fine, the environment alone may carry the configuration.
	_ = godotenv.Load()

	var config internal.Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return exitConfig, fmt.Errorf("config error: %w", err)
	}
	if err := config.Validate(); err != nil {
		return exitConfig, fmt.Errorf("config error: %w", err)
	}

	logger := logs.GetLoggerFromString(config.LogLevel)
	ctx := context.Background()

	// 2. Message store
	var repository contract.IMessageRepository
	switch config.StoreDriver {
	case internal.StoreMongo:
		client, err := storage.ConnectMongo(ctx, config.MongoURL)
		if err != nil {
			return exitRuntime, err
		}
		defer func() {
			logger.Info("Closing MongoDB...")
			_ = client.Disconnect(context.Background())
		}()
		mongoRepository := storage.NewMongoMessageRepository(client, config.MongoDatabase, logger)
		if err := mongoRepository.EnsureIndexes(ctx); err != nil {
			return exitRuntime, fmt.Errorf("mongo indexes: %w", err)
		}
		repository = mongoRepository
	default:
		db, err := badger.Open(buildBadgerOpts(config, logger, ctx))
		if err != nil {
			return exitRuntime, fmt.Errorf("database opening failed: %w", err)
		}
		defer func() {
			logger.Info("Closing BadgerDB...")
			_ = db.Close()
		}()
		if logger.Enabled(ctx, slog.LevelDebug) {
			endpoint := "/inspect"
			url := fmt.Sprintf("http://localhost:%d%s", config.DebugPort, endpoint)
			logger.Info("Debug Badger inspector available", "url", url)
			database.StartDebugServer(db, config.DebugPort, endpoint, MessageMapper)
		}
		repository = storage.NewBadgerMessageRepository(db, logger)
	}

	// 2.bis Optional full-text index
	var index contract.IMessageIndex
	if config.BlugeFilepath != "" {
		blugeWriter, err := bluge.OpenWriter(bluge.DefaultConfig(config.BlugeFilepath))
		if err != nil {
			return exitRuntime, fmt.Errorf("failed to open bluge writer: %w", err)
		}
		defer func() {
			logger.Info("Closing Bluge...")
			_ = blugeWriter.Close()
		}()
		index = storage.NewBlugeMessageIndex(blugeWriter, logger)
	}

	// 3. Media host
	var uploader contract.IMediaUploader
	var mediaRoot string
	switch config.MediaDriver {
	case internal.MediaCloudinary:
		cloudinary, err := media.NewCloudinaryUploader(
			config.CloudinaryCloudName, config.CloudinaryAPIKey, config.CloudinaryAPISecret,
			config.CloudinaryFolder, logger,
		)
		if err != nil {
			return exitConfig, err
		}
		uploader = cloudinary
	default:
		disk, err := media.NewDiskUploader(config.MediaDir, config.MediaBaseURL, logger)
		if err != nil {
			return exitRuntime, err
		}
		uploader = disk
		mediaRoot = disk.Root()
	}

	// 4. Moderation
	moderator, err := buildModerator(config, logger)
	if err != nil {
		return exitConfig, err
	}

	issuer, err := auth.NewTokenIssuer(config.AuthSecret, config.AuthIssuer)
	if err != nil {
		return exitConfig, err
	}

	chatService := services.NewChatService(repository, uploader, index, moderator, services.Limits{
		MaxTextLength: config.MaxTextLength,
		MaxImageBytes: config.MaxImageBytes,
	}, logger)

	// 5. Supervision: relay, process sampler, backlog watch and the optional gRPC health endpoint
	relay := runtime.NewRelay(runtime.NewRegistry(), config.RelayBufferSize, config.RelayEchoToSender, logger)
	sampler, err := observability.NewProcessSampler(logger, config.StatsInterval)
	if err != nil {
		return exitRuntime, fmt.Errorf("process sampler: %w", err)
	}
	sup := workers.NewSupervisor(logger, config.RestartInterval)
	capacity := workers.NewChannelCapacityWorker(logger, []workers.NamedGauge{
		{Name: "relay_commands", Gauge: relay},
	}, config.StatsInterval, defaultCapacityThreshold)
	sup.Add(relay, sampler, capacity)

	var healthServer *health.Server
	if config.GrpcHealthPort > 0 {
		address := net.JoinHostPort(config.Host, strconv.Itoa(config.GrpcHealthPort))
		if healthServer, err = health.NewServer(address, logger); err != nil {
			return exitRuntime, fmt.Errorf("failed to listen on %s: %w", address, err)
		}
		sup.Add(healthServer)
	}

	// 6. Context & Signals
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	supervisorDone := make(chan struct{})
	go func() {
		defer close(supervisorDone)
		sup.Run(ctx)
	}()
	if healthServer != nil {
		healthServer.SetRelayServing(true)
	}

	// 7. HTTP gateway
	router := server.NewRouter(server.Dependencies{
		Chat:                 chatService,
		Relay:                relay,
		Issuer:               issuer,
		Sampler:              sampler,
		MediaRoot:            mediaRoot,
		MaxBodyBytes:         config.MaxBodyBytes(),
		ConnectionBufferSize: config.ConnectionBufferSize,
		MaxFrameSize:         config.MaxFrameSize,
		Log:                  logger,
	})
	address := net.JoinHostPort(config.Host, strconv.Itoa(config.Port))
	httpServer := &http.Server{
		Addr:              address,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errChan := make(chan error, 1)
	go func() {
		logger.Info("Starting HTTP gateway", "address", address, "at", time.Now().UTC())
		if err := httpServer.ListenAndServe(); err != nil && !stderrors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("http server error: %w", err)
		}
	}()

	// 8. Wait for Stop or Error
	code := exitOK
	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("Shutdown signal received")
	case runErr = <-errChan:
		code = exitRuntime
	}

	// 9. Final Cleanup (Graceful Shutdown)
	logger.Info("Shutting down gracefully...")
	if healthServer != nil {
		healthServer.SetRelayServing(false)
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("HTTP shutdown incomplete", "error", err)
	}
	sup.Stop()
	<-supervisorDone
	logger.Info("Program stopped cleanly")

	return code, runErr
}

func buildBadgerOpts(config internal.Config, logger *slog.Logger, ctx context.Context) badger.Options {
	options := badger.DefaultOptions(config.BadgerFilepath)

	if logger.Enabled(ctx, slog.LevelDebug) {
		options = options.WithLoggingLevel(badger.DEBUG).
			WithBypassLockGuard(true)
	} else {
		options = options.WithLoggingLevel(badger.INFO)
	}

	return options
}

// buildModerator returns nil when moderation is disabled.
func buildModerator(config internal.Config, logger *slog.Logger) (*moderation.Moderator, error) {
	if !config.ModerationEnabled {
		return nil, nil
	}
	charReplacement, err := internal.CharacterRune(config.CharReplacement)
	if err != nil {
		return nil, err
	}

	loader := moderation.NewDefaultLoader()
	dir := moderation.DefaultDir
	if config.ModerationWordsDir != "" {
		loader = moderation.NewCensoredLoader(os.DirFS(config.ModerationWordsDir))
		dir = "."
	}
	data, err := loader.LoadAll(dir)
	if err != nil {
		if stderrors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("moderation words directory %q not found", config.ModerationWordsDir)
		}
		return nil, fmt.Errorf("loading censored words: %w", err)
	}
	logger.Info("Censored words loaded", "count", len(data.Words), "languages", data.Languages)

	return moderation.NewModerator(data.Words, charReplacement, logger)
}

// MessageMapper renders a badger value in the debug inspector.
func MessageMapper(key string, val []byte) database.InspectRow {
	row := database.DefaultMapper(key, val)

	message, err := storage.DecodeMessage(val)
	if err != nil {
		row.Detail = "Error: unmarshal failed"
		return row
	}

	row.Type = "TEXT"
	row.Detail = message.Text
	if message.ImageURL != nil {
		row.Type = "IMAGE"
		if message.Text == "" {
			row.Detail = *message.ImageURL
		}
	}
	return row
}
