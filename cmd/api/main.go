package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"biopaper-tutor/internal/config"
	"biopaper-tutor/internal/db"
	apihttp "biopaper-tutor/internal/http"
	"biopaper-tutor/internal/llm"
	"biopaper-tutor/internal/oauth"
	"biopaper-tutor/internal/observability"
	"biopaper-tutor/internal/pdf"
	"biopaper-tutor/internal/repository"
	"biopaper-tutor/internal/service"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const appTitle = "BioPaper Education Assistant"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := godotenv.Load(); err != nil {
		log.Printf("warning: loading .env: %v", err)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		panic(err)
	}

	logger := newLogger(cfg)
	defer logger.Sync()

	repo, closeStore, err := openConversationStore(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("conversation store", zap.String("backend", cfg.ConversationStore), zap.Error(err))
	}
	defer closeStore()

	states := oauth.NewMemoryStateStore()
	if cfg.RedisAddr != "" {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		defer redisClient.Close()
		ctxPing, cancel := context.WithTimeout(ctx, 2*time.Second)
		if err := redisClient.Ping(ctxPing).Err(); err != nil {
			logger.Warn("redis ping failed, oauth state kept in memory", zap.Error(err))
		} else {
			states = oauth.NewRedisStateStore(redisClient)
		}
		cancel()
	}

	sessions, err := service.NewSessionStore(cfg.SessionSecret, cfg.SessionTTL(), cfg.IsProduction())
	if err != nil {
		logger.Fatal("session store", zap.Error(err))
	}

	provider := oauth.NewProvider(cfg.OAuthBaseURL, cfg.OAuthClientID, cfg.OAuthClientSecret, cfg.OAuthScopes, logger)
	if !provider.Configured() {
		logger.Warn("oauth client credentials not configured; login will fail until OAUTH_CLIENT_ID/OAUTH_CLIENT_SECRET are set")
	}

	var streamer llm.Streamer
	if cfg.LLMMock {
		logger.Warn("LLM_MOCK enabled, replies are canned")
		streamer = &llm.MockClient{Delay: 50 * time.Millisecond}
	} else {
		streamer = llm.NewHTTPClient(llm.Options{
			BaseURL:     cfg.LLMBaseURL,
			APIKey:      cfg.LLMAPIKey,
			Model:       cfg.LLMModel,
			Temperature: cfg.LLMTemperature,
			MaxTokens:   cfg.LLMMaxTokens,
			Referer:     cfg.AppBaseURL,
			Title:       appTitle,
		}, logger)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := observability.NewMetrics(registry)

	conversationSvc := service.NewConversationService(logger, repo)
	relaySvc := service.NewRelayService(logger, streamer, conversationSvc, metrics)

	router := apihttp.NewRouter(logger, apihttp.RouterDeps{
		Sessions:      sessions,
		Auth:          apihttp.NewAuthHandler(logger, provider, sessions, states, cfg.RedirectURI(), cfg.OAuthVerifyState),
		Conversations: apihttp.NewConversationHandler(logger, conversationSvc),
		Chat:          apihttp.NewChatHandler(logger, relaySvc),
		PDF:           apihttp.NewPDFHandler(logger, pdf.NewExtractor(), cfg.PDFMaxBytes),
		OAuth: apihttp.NewOAuthHandler(logger, provider, apihttp.OAuthConfigReport{
			BaseURL:         provider.BaseURL(),
			RedirectURI:     cfg.RedirectURI(),
			ClientID:        cfg.OAuthClientID,
			HasClientID:     cfg.OAuthClientID != "",
			HasClientSecret: cfg.OAuthClientSecret != "",
			HasPreauthKey:   cfg.OAuthPreauthKey != "",
		}),
		Gatherer: registry,
	})

	server := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Warn("server shutdown", zap.Error(err))
		}
	}()

	logger.Info("starting server",
		zap.String("port", cfg.HTTPPort),
		zap.String("conversation_store", cfg.ConversationStore),
		zap.Bool("llm_mock", cfg.LLMMock),
	)

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal("server error", zap.Error(err))
	}
}

func newLogger(cfg *config.Config) *zap.Logger {
	var (
		logger *zap.Logger
		err    error
	)
	if cfg.IsProduction() {
		logger, err = zap.NewProduction()
	} else {
		logger, err = zap.NewDevelopment()
	}
	if err != nil {
		panic(err)
	}
	return logger
}

// openConversationStore elige el backend según CONVERSATION_STORE y devuelve
// la función que libera sus conexiones.
func openConversationStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (repository.ConversationRepository, func(), error) {
	switch cfg.ConversationStore {
	case config.StoreMongo:
		client, err := db.NewMongoClient(ctx, cfg.MongoURI)
		if err != nil {
			return nil, nil, err
		}
		repo := repository.NewMongoConversationRepository(client.Database(cfg.MongoDatabase))
		if err := repo.EnsureIndexes(ctx); err != nil {
			logger.Warn("mongo index creation failed", zap.Error(err))
		}
		return repo, func() { _ = client.Disconnect(context.Background()) }, nil
	case config.StorePostgres:
		pool, err := db.NewPool(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		if err := db.Ping(ctx, pool); err != nil {
			pool.Close()
			return nil, nil, err
		}
		if err := db.EnsureSchema(ctx, pool); err != nil {
			pool.Close()
			return nil, nil, err
		}
		return repository.NewPgConversationRepository(pool), pool.Close, nil
	default:
		logger.Warn("using in-memory conversation store; data is lost on restart")
		return repository.NewMemoryConversationRepository(), func() {}, nil
	}
}
