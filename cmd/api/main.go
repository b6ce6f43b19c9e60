package main

import (
	"context"
	"log"
	"net/http"
	"strings"
	"time"

	"portfolio-chat/internal/config"
	"portfolio-chat/internal/db"
	"portfolio-chat/internal/email"
	apihttp "portfolio-chat/internal/http"
	"portfolio-chat/internal/repository"
	"portfolio-chat/internal/service"
	"portfolio-chat/internal/telemetry"
	"portfolio-chat/internal/webhook"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Los contadores de sesion viven 24h; se limpia con un margen.
const staleRateLimitAge = 25 * time.Hour

func main() {
	ctx := context.Background()

	if err := godotenv.Load(); err != nil {
		log.Printf("warning: loading .env: %v", err)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		panic(err)
	}

	logger, err := telemetry.NewLogger(cfg.LogFile)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	shutdownTelemetry, err := telemetry.Init(ctx, cfg.TelemetryDir)
	if err != nil {
		logger.Warn("telemetry init failed", zap.Error(err))
	} else {
		defer shutdownTelemetry()
	}

	var redisClient *redis.Client
	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		ctxPing, cancel := context.WithTimeout(ctx, 2*time.Second)
		if err := client.Ping(ctxPing).Err(); err != nil {
			logger.Warn("redis ping failed", zap.Error(err))
			_ = client.Close()
		} else {
			redisClient = client
			defer redisClient.Close()
		}
		cancel()
	}

	var pool *pgxpool.Pool
	if strings.EqualFold(cfg.RateLimitStore, "postgres") {
		pool, err = db.NewPool(ctx, cfg)
		if err == nil {
			if err = db.Ping(ctx, pool); err != nil {
				pool.Close()
				pool = nil
			}
		}
		if err != nil {
			logger.Warn("db connect failed", zap.Error(err))
		} else {
			defer pool.Close()
		}
	}

	store := buildRateLimitStore(ctx, cfg, logger, redisClient, pool)
	chatLimiter := service.NewChatRateLimiter(store, logger)

	contactThrottle := buildThrottle(redisClient, "contact:rl:", service.ContactWindow, service.ContactLimitPerWindow, logger)
	sessionThrottle := buildThrottle(redisClient, "session:rl:", cfg.SessionIssueWindow, cfg.SessionIssueLimit, logger)

	emailSender := email.NewDisabledSender("email sender not configured")
	if cfg.SMTPHost != "" {
		sender, err := email.NewSMTPSender(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPass, cfg.SMTPFrom, cfg.SMTPFromName, cfg.ContactTo, cfg.SMTPUseTLS)
		if err != nil {
			logger.Warn("smtp sender init failed", zap.Error(err))
		} else {
			emailSender = sender
		}
	}

	webhookClient := webhook.NewHTTPClient(cfg.WebhookURL, cfg.WebhookTimeout, logger)
	conversations := service.NewConversationRegistry(webhookClient, chatLimiter, logger).
		WithIdleTTL(cfg.ConversationIdleTTL)
	sessions := service.NewSessionService(cfg.SessionSecret, cfg.SessionTTL).
		WithIssueThrottle(sessionThrottle)
	contactSvc := service.NewContactService(logger, emailSender, contactThrottle)

	go func() {
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()
		for range ticker.C {
			conversations.Sweep()
		}
	}()

	chatHandler := apihttp.NewChatHandler(logger, sessions, conversations)
	contactHandler := apihttp.NewContactHandler(logger, contactSvc)
	router := apihttp.NewRouter(logger, sessions, chatHandler, contactHandler)

	server := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	logger.Info("starting server",
		zap.String("port", cfg.HTTPPort),
		zap.String("rate_limit_store", cfg.RateLimitStore),
	)

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatal("server error", zap.Error(err))
	}
}

// buildThrottle usa Redis cuando hay cliente para compartir la ventana entre replicas.
func buildThrottle(redisClient *redis.Client, prefix string, window time.Duration, limit int, logger *zap.Logger) service.Throttle {
	if redisClient != nil {
		return service.NewRedisThrottle(redisClient, prefix, window, limit, logger)
	}
	return service.NewMemoryThrottle(window, limit)
}

// buildRateLimitStore elige el backend de los contadores; si el elegido no esta
// disponible cae a memoria.
func buildRateLimitStore(ctx context.Context, cfg *config.Config, logger *zap.Logger, redisClient *redis.Client, pool *pgxpool.Pool) service.RateLimitStore {
	switch strings.ToLower(strings.TrimSpace(cfg.RateLimitStore)) {
	case "redis":
		if redisClient != nil {
			return service.NewRedisRateLimitStore(redisClient)
		}
		logger.Warn("redis rate limit store unavailable, using memory")
	case "postgres":
		if pool == nil {
			logger.Warn("postgres rate limit store unavailable, using memory")
			break
		}
		if err := db.EnsureSchema(ctx, pool); err != nil {
			logger.Warn("ensure schema failed, using memory", zap.Error(err))
			break
		}
		repo := repository.NewPgRateLimitRepository(pool)
		deleted, err := repo.DeleteExpired(ctx, time.Now().Add(-staleRateLimitAge))
		if err != nil {
			logger.Warn("delete stale rate limits failed", zap.Error(err))
		} else if deleted > 0 {
			logger.Info("stale rate limits removed", zap.Int64("count", deleted))
		}
		return repo
	case "", "memory":
	default:
		logger.Warn("unknown rate limit store, using memory", zap.String("store", cfg.RateLimitStore))
	}
	return service.NewMemoryRateLimitStore()
}
