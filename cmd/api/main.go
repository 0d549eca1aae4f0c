package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/cybergenix/niva/backend/internal/config"
	"github.com/cybergenix/niva/backend/internal/handler"
	"github.com/cybergenix/niva/backend/internal/model/persona"
	"github.com/cybergenix/niva/backend/internal/service/ai"
	"github.com/cybergenix/niva/backend/internal/service/assistant"
	"github.com/cybergenix/niva/backend/internal/service/history"
	"github.com/cybergenix/niva/backend/internal/service/knowledge"
	"github.com/cybergenix/niva/backend/internal/service/notify"
	"github.com/cybergenix/niva/backend/internal/service/speech"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Printf("warning: failed to load .env file: %v", err)
		log.Println("continuing with system environment variables only")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	// 历史存储不可达时直接退出
	store, err := history.Open(ctx, cfg.History)
	if err != nil {
		log.Fatalf("failed to open history store: %v", err)
	}

	notifier, err := notify.New(cfg.Notify)
	if err != nil {
		log.Fatalf("failed to create notifier: %v", err)
	}

	personaStore := persona.NewMemoryStore(persona.Seed(), cfg.LLM.Persona)

	chatModel, err := cfg.LLM.NewChatModel(ctx)
	if err != nil {
		log.Fatalf("failed to create chat model: %v", err)
	}

	contextMessages, err := ai.LoadContextFile(cfg.LLM.ContextFile)
	if err != nil {
		log.Fatalf("failed to load LLM context: %v", err)
	}

	deps := ai.Dependencies{
		History:  store,
		Personas: personaStore,
		Notifier: notifier,
		Context:  contextMessages,
	}
	if cfg.Knowledge.WikipediaEnabled() {
		deps.Knowledge = knowledge.NewWikipedia(cfg.Knowledge.WikipediaLang)
		log.Printf("knowledge fallback: wikipedia (%s)", cfg.Knowledge.WikipediaLang)
	}

	aiService, err := ai.NewService(ctx, chatModel, deps, ai.OptionsFromConfig(cfg.LLM, cfg.History))
	if err != nil {
		log.Fatalf("failed to initialize AI service: %v", err)
	}
	log.Printf("AI service initialized: provider=%s model=%s persona=%s", cfg.LLM.Provider, cfg.LLM.Model, personaStore.Default().ID)

	speechService, err := speech.NewService(cfg.Speech)
	if err != nil {
		log.Fatalf("failed to initialize speech service: %v", err)
	}

	pipeline := assistant.New(aiService, speechService, notifier, cfg.Speech.FailurePolicy)

	router := handler.NewRouter(handler.Services{
		Assistant:      pipeline,
		History:        store,
		Personas:       personaStore,
		Speech:         speechService,
		SpeechProvider: cfg.Speech.Provider,
		AllowedOrigins: cfg.Server.AllowedOrigins,
	})

	startServer(ctx, cfg.Server, router)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := notifier.Close(shutdownCtx); err != nil {
		log.Printf("notifier close: %v", err)
	}
	if err := store.Close(shutdownCtx); err != nil {
		log.Printf("history close: %v", err)
	}
}

func startServer(ctx context.Context, serverCfg config.ServerConfig, router http.Handler) {
	addr := serverCfg.Addr
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	log.Printf("Niva backend listening on %s", addr)
	if err := runServer(ctx, srv); err != nil {
		log.Printf("server error: %v", err)
	}
}

func runServer(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
