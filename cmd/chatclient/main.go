package main

import (
	"bufio"
	"context"
	stderrors "errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	"plan-chat/auth"
	"plan-chat/client"
	"plan-chat/domain/chat"
	"plan-chat/domain/search"
	"plan-chat/errors"

	"github.com/gookit/color"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/mama165/sdk-go/logs"
)

// Exit codes for the client application.
const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

// Config defines the client-side environment variables, all prefixed with CHAT_.
type Config struct {
	GatewayURL string `envconfig:"GATEWAY_URL" default:"http://localhost:8080"`
	RelayURL   string `envconfig:"RELAY_URL" default:"ws://localhost:8080/relay"`
	Token      string `envconfig:"TOKEN" required:"true"`
	PlanID     string `envconfig:"PLAN_ID" required:"true"`
	Window     int    `envconfig:"WINDOW" default:"20"`
	Width      int    `envconfig:"WIDTH" default:"80"`
	LogLevel   string `envconfig:"LOG_LEVEL" default:"WARN"`
}

func main() {
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Client error: %v\n", err)
	}
	os.Exit(code)
}

func run() (int, error) {
	// 1. Load configuration from environment variables.
	_ = godotenv.Load()
	var config Config
	if err := envconfig.Process("chat", &config); err != nil {
		return exitConfig, fmt.Errorf("config error: %w", err)
	}
	userID, err := auth.SubjectFromToken(config.Token)
	if err != nil {
		return exitConfig, fmt.Errorf("config error: CHAT_TOKEN: %w", err)
	}
	log := logs.GetLoggerFromString(config.LogLevel)

	// 2. Setup context to handle termination signals (Ctrl+C).
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 3. Connect to the relay and mount the plan session.
	relay, err := client.DialRelay(ctx, config.RelayURL, config.Token, log)
	if err != nil {
		return exitRuntime, err
	}
	defer func() {
		log.Info("Closing connection...")
		_ = relay.Close()
	}()

	relayErr := make(chan error, 1)
	go func() { relayErr <- relay.Run(ctx) }()

	gateway := client.NewGatewayClient(config.GatewayURL, config.Token, nil, log)
	view := client.NewView(userID, config.Window, config.Width)
	session := client.NewSession(chat.PlanID(config.PlanID), gateway, relay, view, log)
	if err := session.Mount(ctx); err != nil {
		return exitRuntime, fmt.Errorf("could not open plan %s: %w", config.PlanID, err)
	}
	defer session.Unmount()

	color.Info.Printf(">>> Plan %s as %s. /image <path>, /search <terms> [--limit n] [--plan id], /quit\n", config.PlanID, userID)
	// Own messages are printed by the submit path, live ones here.
	// Live lines wait for the initial window to be printed.
	var printMu sync.Mutex
	printMu.Lock()
	err = view.Follow(os.Stdout, func(msg chat.Message) {
		if view.IsOwn(msg) {
			return
		}
		printMu.Lock()
		defer printMu.Unlock()
		fmt.Println(view.RenderLine(msg))
	})
	printMu.Unlock()
	if err != nil {
		return exitRuntime, err
	}

	// 4. Read stdin lines until /quit, EOF or a signal.
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return exitOK, nil
		case err := <-relayErr:
			if err != nil {
				return exitRuntime, err
			}
			return exitOK, nil
		case line, ok := <-lines:
			if !ok {
				return exitOK, nil
			}
			if quit := handleLine(ctx, strings.TrimSpace(line), session, gateway, view, config.PlanID); quit {
				return exitOK, nil
			}
		}
	}
}

// handleLine runs one REPL command and reports whether the user asked to quit.
func handleLine(ctx context.Context, line string, session *client.Session, gateway *client.GatewayClient, view *client.View, planID string) bool {
	switch {
	case line == "/quit":
		return true
	case strings.HasPrefix(line, "/image "):
		path := strings.TrimSpace(strings.TrimPrefix(line, "/image "))
		session.Composer().AttachImage(path)
		color.Comment.Printf("attached %s, type a caption or an empty line to send\n", path)
		return false
	case strings.HasPrefix(line, "/search "):
		cmd := search.NewSearchQuery(line).Command(chat.PlanID(planID))
		found, err := gateway.SearchMessages(ctx, cmd.PlanID, cmd.Terms, cmd.Limit)
		if err != nil {
			color.Error.Println(err)
			return false
		}
		color.Comment.Printf("%d result(s) for %q in %s\n", len(found), cmd.Terms, cmd.PlanID)
		for _, msg := range found {
			fmt.Println(view.RenderLine(msg))
		}
		return false
	}

	session.Composer().SetText(line)
	msg, err := session.Submit(ctx)
	switch {
	case stderrors.Is(err, errors.ErrEmptyMessage):
	case err != nil:
		color.Error.Println("Failed to send message:", err)
	default:
		fmt.Println(view.RenderLine(msg))
	}
	return false
}
