package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/henry9622/ProgramaTelemedicina/internal/core/port"
	"github.com/henry9622/ProgramaTelemedicina/internal/infra/backup"
	"github.com/henry9622/ProgramaTelemedicina/internal/infra/config"
	"github.com/henry9622/ProgramaTelemedicina/internal/infra/database"
	kafkainfra "github.com/henry9622/ProgramaTelemedicina/internal/infra/kafka"
	"github.com/henry9622/ProgramaTelemedicina/internal/infra/logger"
	redisinfra "github.com/henry9622/ProgramaTelemedicina/internal/infra/redis"
	"github.com/henry9622/ProgramaTelemedicina/internal/infra/security"
	postgresrepo "github.com/henry9622/ProgramaTelemedicina/internal/repository/postgres"
	redisrepo "github.com/henry9622/ProgramaTelemedicina/internal/repository/redis"
	"github.com/henry9622/ProgramaTelemedicina/internal/transport/http/middleware"
	"github.com/henry9622/ProgramaTelemedicina/internal/transport/http/routes"
	"github.com/henry9622/ProgramaTelemedicina/internal/usecase"
)

// devFallbackSecret keeps local development runnable without configured
// secrets. Config validation rejects empty secrets outside development.
const devFallbackSecret = "telemedicina-dev-secret"

type Application struct {
	cfg    *config.AppConfig
	engine *gin.Engine
	logger *zap.Logger
	pool   *pgxpool.Pool
	redis  *redisinfra.Client
	events port.EventPublisher
}

func New(ctx context.Context, cfg *config.AppConfig) (*Application, error) {
	log, err := logger.New(cfg.App.Env)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	pool, err := database.NewPostgresPool(ctx, cfg.Postgres, log)
	if err != nil {
		return nil, fmt.Errorf("init postgres: %w", err)
	}

	hasher, err := security.NewPasswordHasher(security.Argon2Config{
		Memory:      cfg.Argon2.Memory,
		Iterations:  cfg.Argon2.Iterations,
		Parallelism: cfg.Argon2.Parallelism,
		SaltLength:  cfg.Argon2.SaltLength,
		KeyLength:   cfg.Argon2.KeyLength,
	})
	if err != nil {
		return nil, fmt.Errorf("init password hasher: %w", err)
	}

	encryptionKey := cfg.Security.EncryptionKey
	if encryptionKey == "" {
		// Development only: mapped identities do not survive a restart.
		encryptionKey, err = security.GenerateEncryptionKey()
		if err != nil {
			return nil, fmt.Errorf("generate ephemeral key: %w", err)
		}
		log.Warn("no encryption key configured, using an ephemeral one; run cmd/keygen for a durable key")
	}
	cipher, err := security.NewIdentityCipher(encryptionKey)
	if err != nil {
		return nil, fmt.Errorf("init identity cipher: %w", err)
	}

	sessionSecret := cfg.Security.SessionTokenSecret
	if sessionSecret == "" {
		sessionSecret = devFallbackSecret
		log.Warn("no session token secret configured, using the development fallback")
	}
	sessionTokens, err := security.NewSessionTokenManager(sessionSecret, cfg.App.Name, cfg.Security.SessionTokenTTL)
	if err != nil {
		return nil, fmt.Errorf("init session tokens: %w", err)
	}

	roomSecret := cfg.Video.RoomTokenSecret
	if roomSecret == "" {
		roomSecret = devFallbackSecret
	}
	roomTokens, err := security.NewRoomTokenIssuer(roomSecret, cfg.App.Name, cfg.Video.Audience, cfg.Video.RoomTokenTTL)
	if err != nil {
		return nil, fmt.Errorf("init room tokens: %w", err)
	}

	redisClient, err := redisinfra.NewClient(cfg.Redis, log)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("init redis: %w", err)
	}

	backupStore, err := backup.NewStore(cfg.Backups.Directory, log)
	if err != nil {
		pool.Close()
		_ = redisClient.Close()
		return nil, fmt.Errorf("init backup store: %w", err)
	}

	var eventPublisher port.EventPublisher
	if len(cfg.Kafka.Brokers) > 0 {
		producer, err := kafkainfra.NewProducer(cfg.Kafka, log)
		if err != nil {
			log.Warn("failed to init kafka producer, using stub publisher", zap.Error(err))
			eventPublisher = kafkainfra.NewStubPublisher(log)
		} else {
			eventPublisher = kafkainfra.NewEventPublisher(producer, cfg.App, log)
			log.Info("kafka event publisher initialized", zap.Strings("brokers", cfg.Kafka.Brokers))
		}
	} else {
		log.Info("kafka brokers not configured, using stub publisher")
		eventPublisher = kafkainfra.NewStubPublisher(log)
	}

	repos := postgresrepo.NewRepositories(pool)
	store := postgresrepo.NewStore(pool)
	pendingCache := redisrepo.NewPendingCounterCache(redisClient.Client(), cfg.Redis.PendingKeyPrefix, cfg.Redis.PendingCounterTTL)
	loginThrottle := redisrepo.NewLoginThrottle(redisClient.Client(), "")
	rateLimiter := middleware.NewRateLimiter(loginThrottle, log)

	auditService := usecase.NewAuditService(repos.Audit, eventPublisher, log)

	authService, err := usecase.NewAuthService(repos.Users, hasher, auditService, eventPublisher, log,
		cfg.Security.LockoutThreshold, cfg.Security.LockoutDuration)
	if err != nil {
		_ = redisClient.Close()
		return nil, fmt.Errorf("init auth service: %w", err)
	}

	intakeService, err := usecase.NewIntakeService(repos.Identities, cipher,
		security.NewLookupHasher(cfg.Security.LookupSalt), auditService, eventPublisher, log,
		cfg.Security.CIPMaxAttempts)
	if err != nil {
		_ = redisClient.Close()
		return nil, fmt.Errorf("init intake service: %w", err)
	}

	approvalService := usecase.NewApprovalService(repos.Approvals, repos.Users, repos.Places,
		backupStore, store, pendingCache, auditService, eventPublisher, log)
	userService := usecase.NewUserService(repos.Users, hasher, auditService, log)
	placeService := usecase.NewPlaceService(repos.Places, auditService)
	backupService := usecase.NewBackupService(backupStore, auditService)

	engine := routes.Register(routes.Dependencies{
		Config:        cfg,
		Logger:        log,
		SessionTokens: sessionTokens,
		RoomTokens:    roomTokens,
		RateLimiter:   rateLimiter,
		Database:      pool,
		Cache:         redisClient,
		Services: routes.ServiceSet{
			Auth:      authService,
			Users:     userService,
			Intake:    intakeService,
			Approvals: approvalService,
			Audit:     auditService,
			Places:    placeService,
			Backups:   backupService,
		},
	})

	return &Application{
		cfg:    cfg,
		engine: engine,
		logger: log,
		pool:   pool,
		redis:  redisClient,
		events: eventPublisher,
	}, nil
}

func (a *Application) Run(ctx context.Context) error {
	defer func() {
		_ = a.logger.Sync()
	}()
	defer func() {
		if a.pool != nil {
			a.pool.Close()
		}
	}()
	defer func() {
		if a.redis != nil {
			_ = a.redis.Close()
		}
	}()
	defer func() {
		if a.events != nil {
			_ = a.events.Close()
		}
	}()

	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", a.cfg.App.Host, a.cfg.App.Port),
		Handler:           a.engine,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	a.logger.Info("starting telemedicine API",
		zap.String("env", a.cfg.App.Env),
		zap.String("address", srv.Addr),
	)

	serverErrCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrCh <- fmt.Errorf("run server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown server: %w", err)
		}
		return nil
	case err := <-serverErrCh:
		return err
	}
}
