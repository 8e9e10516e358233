// Package app wires the chat relay's components together and owns their
// lifecycle. Initialization follows dependency order: audit trail, then
// the in-memory chat state, then the hub, then the HTTP surfaces.
package app

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"chatrelay/internal/api"
	"chatrelay/internal/audit"
	"chatrelay/internal/bot"
	"chatrelay/internal/config"
	"chatrelay/internal/hub"
	"chatrelay/internal/moderation"
	"chatrelay/internal/store"
	"chatrelay/internal/websocket"
)

type Application struct {
	config     *config.Config
	auditLog   *audit.Log
	chatHub    *hub.Hub
	botRelay   *bot.Relay
	httpServer *http.Server

	botCancel context.CancelFunc
}

func NewApplication(cfg *config.Config) (*Application, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	// Audit trail first: a broken database should fail startup, not the
	// first moderation call.
	var auditLog *audit.Log
	var trail api.Recorder
	if cfg.AuditDB != "" {
		var err error
		auditLog, err = audit.Open(cfg.AuditDB)
		if err != nil {
			return nil, fmt.Errorf("failed to open audit trail: %w", err)
		}
		trail = auditLog
	} else {
		log.Println("[app] audit trail disabled")
	}

	messages := store.NewMessageStore(cfg.Chat.HistoryCapacity)
	bans := moderation.NewBanList()
	limiter := moderation.NewRateLimiter(cfg.Moderation.RateLimit, cfg.Moderation.RateWindow)

	chatHub := hub.New(messages, bans, limiter, hub.Options{
		MessageMaxLen: cfg.Chat.MessageMaxLen,
		AnnounceLeave: cfg.Chat.AnnounceLeave,
	})

	apiServer := api.NewServer(chatHub, trail, cfg.Moderation.Secret)
	wsHandler := websocket.NewHandler(chatHub, cfg.HTTP.PublicOrigin)

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", wsHandler.HandleWebSocket)
	mux.Handle("/moderator/", apiServer)
	mux.Handle("/health", apiServer)
	mux.Handle("/", http.FileServer(http.Dir(cfg.StaticDir)))

	httpServer := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      mux,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	var botRelay *bot.Relay
	if cfg.Bot.Token != "" {
		botRelay = bot.New(bot.Config{
			Token:      cfg.Bot.Token,
			Moderator:  cfg.Bot.Moderator,
			GatewayURL: fmt.Sprintf("http://127.0.0.1:%d", cfg.HTTP.Port),
			Secret:     cfg.Moderation.Secret,
			PublicURL:  cfg.HTTP.PublicOrigin,
		})
	}

	return &Application{
		config:     cfg,
		auditLog:   auditLog,
		chatHub:    chatHub,
		botRelay:   botRelay,
		httpServer: httpServer,
	}, nil
}

// Start brings the hub up before the HTTP listener so the first
// connection always finds a running dispatcher, then launches the bot
// relay when one is configured.
func (app *Application) Start(ctx context.Context) error {
	log.Printf("[app] starting chat relay on %s", app.httpServer.Addr)

	if err := app.chatHub.Start(ctx); err != nil {
		return fmt.Errorf("failed to start hub: %w", err)
	}

	serverErrCh := make(chan error, 1)
	go func() {
		if err := app.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrCh <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	select {
	case err := <-serverErrCh:
		app.chatHub.Stop()
		return err
	case <-time.After(100 * time.Millisecond):
	case <-ctx.Done():
		app.chatHub.Stop()
		return ctx.Err()
	}

	if app.botRelay != nil {
		botCtx, cancel := context.WithCancel(context.Background())
		app.botCancel = cancel
		go app.botRelay.Run(botCtx)
	}

	log.Println("[app] chat relay started")
	return nil
}

// Stop shuts components down in reverse order: bot, HTTP listener, hub,
// audit trail.
func (app *Application) Stop(ctx context.Context) error {
	log.Println("[app] shutting down")

	if app.botCancel != nil {
		app.botCancel()
	}

	if err := app.httpServer.Shutdown(ctx); err != nil {
		log.Printf("[app] HTTP shutdown error: %v", err)
	}

	if err := app.chatHub.Stop(); err != nil {
		log.Printf("[app] hub shutdown error: %v", err)
	}

	if app.auditLog != nil {
		if err := app.auditLog.Close(); err != nil {
			log.Printf("[app] audit trail close error: %v", err)
		}
	}

	log.Println("[app] shutdown complete")
	return nil
}

// Addr returns the configured listen address.
func (app *Application) Addr() string {
	return app.httpServer.Addr
}
