package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/philippgille/chromem-go"
	"google.golang.org/genai"

	"github.com/gpbible/companion/internal/action"
	"github.com/gpbible/companion/internal/companion"
	"github.com/gpbible/companion/internal/config"
	"github.com/gpbible/companion/internal/httpapi"
	"github.com/gpbible/companion/internal/llm"
	"github.com/gpbible/companion/internal/longterm"
	"github.com/gpbible/companion/internal/observability"
	"github.com/gpbible/companion/internal/prefs"
	"github.com/gpbible/companion/internal/session"
	"github.com/gpbible/companion/internal/sessionlog"
)

func main() {
	// Local dev convenience; in deployed environments the variables are set
	// by the platform and no .env file exists.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	metrics := observability.NewMetrics(cfg.MetricsNamespace)

	ctx := context.Background()
	prefStore, err := prefs.NewStore(ctx, cfg.DatabaseURL, cfg.DataDir)
	if err != nil {
		log.Fatalf("preferences store init failed: %v", err)
	}
	defer prefStore.Close()

	sessionStore, err := sessionlog.NewStore(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("session store init failed: %v", err)
	}
	defer sessionStore.Close()

	var embFunc chromem.EmbeddingFunc
	switch cfg.EmbeddingProvider {
	case "gemini":
		client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: cfg.GeminiAPIKey})
		if err != nil {
			log.Fatalf("genai client init failed: %v", err)
		}
		embFunc = longterm.NewGeminiEmbedder(client, cfg.GeminiEmbedModel, cfg.EmbeddingDim)
		log.Printf("embedding provider: gemini (%s)", cfg.GeminiEmbedModel)
	default:
		embFunc = longterm.NewLocalEmbedder(cfg.EmbeddingDim)
		log.Printf("embedding provider: local token hash")
	}

	memoryStore, err := longterm.NewChromemStore(cfg.LongTermPath, embFunc)
	if err != nil {
		log.Fatalf("long-term memory store init failed: %v", err)
	}
	defer memoryStore.Close()

	var generator llm.Generator

	tryArk := func() bool {
		if strings.TrimSpace(cfg.ArkAPIKey) == "" || strings.TrimSpace(cfg.ArkModel) == "" {
			return false
		}
		g, err := llm.NewArkGenerator(ctx, llm.ArkConfig{
			APIKey:  cfg.ArkAPIKey,
			Model:   cfg.ArkModel,
			BaseURL: cfg.ArkBaseURL,
		})
		if err != nil {
			log.Printf("ark generator unavailable: %v", err)
			return false
		}
		generator = g
		log.Printf("llm provider: ark (%s)", cfg.ArkModel)
		return true
	}

	switch cfg.LLMProvider {
	case "ark":
		if !tryArk() {
			log.Fatalf("LLM_PROVIDER=ark but ARK_API_KEY or ARK_MODEL is not set")
		}
	case "mock":
		generator = llm.NewMockGenerator()
		log.Printf("llm provider: mock")
	case "auto":
		if !tryArk() {
			generator = llm.NewMockGenerator()
			log.Printf("llm provider: mock (no ark credentials)")
		}
	}

	sessions := session.NewManager(cfg.SessionInactivityTimeout)
	engine := companion.NewEngine(prefStore, sessionStore, memoryStore, generator, metrics)
	sessions.SetExpireHook(func(s *session.Session) {
		engine.EndSession(context.Background(), s.ID)
		metrics.SessionEvents.WithLabelValues("expired").Inc()
		metrics.ActiveChatSessions.Set(float64(sessions.ActiveCount()))
	})

	svc := action.NewService(prefStore, sessionStore, memoryStore)
	actions := action.NewRouter(svc, metrics)

	api := httpapi.New(cfg, sessions, engine, actions, metrics)
	httpServer := &http.Server{
		Addr:    cfg.BindAddr,
		Handler: api.Router(),
	}

	runCtx, runCancel := context.WithCancel(context.Background())
	defer runCancel()
	sessions.StartJanitor(runCtx, 5*time.Second)

	go func() {
		log.Printf("server listening on %s", cfg.BindAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("listen error: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	log.Printf("shutdown signal received")

	runCancel()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
		_ = httpServer.Close()
	}

	log.Printf("shutdown complete")
}
