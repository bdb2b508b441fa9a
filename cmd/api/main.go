package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"playchrono/internal/api"
	"playchrono/internal/auth"
	"playchrono/internal/config"
	"playchrono/internal/database"
	"playchrono/internal/domain"
	"playchrono/internal/events"
	"playchrono/internal/google"
	"playchrono/internal/logging"
	"playchrono/internal/metrics"
	"playchrono/internal/notify"
	"playchrono/internal/repository"
	"playchrono/internal/service"
	"playchrono/internal/worker"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	cfg, logger, closer, err := loadConfigAndLogger()
	if err != nil {
		return err
	}
	if closer != nil {
		defer (func() { _ = closer.Close() })()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := initDatabase(ctx, cfg, &logger)
	if err != nil {
		return err
	}
	defer db.Close()

	if !cfg.API.Enabled {
		logger.Warn().Msg("API is disabled in config, but starting API application. Check your config.")
	}

	loc, err := cfg.App.Location()
	if err != nil {
		return err
	}
	clock := service.SystemClock(loc)

	redisClient := initRedis(ctx, cfg, &logger)
	if redisClient != nil {
		defer redisClient.Close()
	}

	var sessions domain.SessionStore = repository.NewMemorySessionStore()
	var cache domain.AvailabilityCache = repository.NopAvailabilityCache{}
	if redisClient != nil {
		sessions = repository.NewFailoverSessionStore(repository.NewRedisSessionStore(redisClient), sessions, &logger)
		cache = repository.NewRedisAvailabilityCache(redisClient, cfg.Booking.CacheTTL)
	}

	bus := events.NewEventBus()
	initAnnouncer(ctx, cfg, bus, &logger)

	var syncWorker domain.SyncWorker
	if sheetsWorker := initSheetsWorker(ctx, cfg, db, redisClient, &logger); sheetsWorker != nil {
		go sheetsWorker.Start(ctx)
		syncWorker = sheetsWorker
	}

	availability := service.NewAvailabilityService(db, db, cache, &logger)
	bookings := service.NewBookingService(db, db, cache, bus, syncWorker, clock, cfg.Booking.MaxAdvanceDays, &logger)
	notices := service.NewNoticeService(db, bus, &logger)
	users := service.NewUserService(db, &logger)
	authSvc := service.NewAuthService(db, sessions, auth.NewTokenIssuer(cfg.Auth.JWTSecret, cfg.Auth.SessionTTL), cfg.Auth, cfg.Booking.Sports, &logger)
	if err := authSvc.EnsureAdmin(ctx); err != nil {
		logger.Error().Err(err).Msg("ensure admin account")
		return err
	}

	httpServer := api.NewHTTPServer(&cfg.API, api.Services{
		Availability: availability,
		Bookings:     bookings,
		Notices:      notices,
		Users:        users,
		Auth:         authSvc,
		Stats:        service.NewStatsService(db, db, clock),
		Feed:         service.NewFeedService(notices, bookings, &logger),
		Health:       db.Ready,
	}, &logger)

	var grpcServer *api.GRPCServer
	if cfg.API.GRPC.Enabled {
		grpcServer, err = api.NewGRPCServer(&cfg.API, availability, &logger)
		if err != nil {
			logger.Error().Err(err).Msg("create grpc server")
			return err
		}
	}

	backupLogger := logger.With().Str("component", "backup").Logger()
	go database.NewBackupService(cfg.Database.Path, cfg.Backup, &backupLogger).Start(ctx)

	startMetrics(ctx, cfg, &logger)

	return startServers(ctx, grpcServer, httpServer, cfg, &logger)
}

func loadConfigAndLogger() (*config.Config, zerolog.Logger, io.Closer, error) {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "configs/config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, zerolog.Logger{}, nil, fmt.Errorf("load config: %w", err)
	}

	baseLogger, closer, err := logging.New(cfg.Logging, cfg.App)
	if err != nil {
		return nil, zerolog.Logger{}, nil, fmt.Errorf("init logger: %w", err)
	}
	logger := baseLogger.With().Str("component", "api-main").Logger()

	return cfg, logger, closer, nil
}

func initDatabase(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) (*database.DB, error) {
	db, err := database.NewDB(cfg.Database.Path, logger)
	if err != nil {
		logger.Error().Err(err).Str("db_path", cfg.Database.Path).Msg("init database")
		return nil, err
	}

	if err := db.SyncGrounds(ctx, cfg.Grounds); err != nil {
		logger.Error().Err(err).Msg("sync grounds")
		_ = db.Close()
		return nil, err
	}
	logger.Info().Int("grounds", len(cfg.Grounds)).Msg("grounds loaded")
	return db, nil
}

func initRedis(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) *redis.Client {
	if cfg.Redis.Address == "" {
		return nil
	}

	redisClient := repository.NewRedisClient(cfg.Redis)

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := repository.Ping(pingCtx, redisClient); err != nil {
		logger.Warn().Err(err).Msg("redis connection failed, continuing without redis")
		_ = redisClient.Close()
		return nil
	}

	logger.Info().Str("addr", cfg.Redis.Address).Msg("redis connected")
	return redisClient
}

func initSheetsWorker(ctx context.Context, cfg *config.Config, db *database.DB, redisClient *redis.Client, logger *zerolog.Logger) *worker.SheetsWorker {
	if cfg.Google.GoogleCredentialsFile == "" || cfg.Google.BookingSpreadSheetID == "" {
		return nil
	}

	sheetsService, err := google.NewSheetsService(ctx, cfg.Google, logger)
	if err != nil {
		logger.Warn().Err(err).Msg("google sheets init failed, continuing without sheets")
		return nil
	}
	if err := sheetsService.EnsureHeader(ctx); err != nil {
		logger.Warn().Err(err).Msg("google sheets header check failed, continuing without sheets")
		return nil
	}
	if err := sheetsService.WarmUpCache(ctx); err != nil {
		logger.Warn().Err(err).Msg("google sheets cache warm-up failed")
	}
	go sheetsService.RefreshCache(ctx, 10*time.Minute)

	logger.Info().Msg("google sheets connected")
	return worker.NewSheetsWorker(db, sheetsService, redisClient, worker.RetryPolicy{}, logger)
}

func initAnnouncer(ctx context.Context, cfg *config.Config, bus *events.EventBus, logger *zerolog.Logger) {
	if cfg.Telegram.BotToken == "" || len(cfg.Telegram.ChatIDs) == 0 {
		return
	}

	bot, err := notify.NewTelegramSender(cfg.Telegram)
	if err != nil {
		logger.Warn().Err(err).Msg("telegram init failed, announcements disabled")
		return
	}
	announcer := notify.NewAnnouncer(bot, cfg.Telegram.ChatIDs, logger)
	announcer.Start(ctx)
	announcer.Subscribe(bus)
	logger.Info().Int("chats", len(cfg.Telegram.ChatIDs)).Msg("telegram announcements enabled")
}

func startMetrics(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) {
	if !cfg.Monitoring.PrometheusEnabled {
		return
	}

	metrics.Register()
	port := cfg.Monitoring.PrometheusPort
	if port == 0 {
		port = 9090
	}
	go startMetricsServer(ctx, port, logger)
}

func startServers(
	ctx context.Context,
	grpcServer *api.GRPCServer,
	httpServer *api.HTTPServer,
	cfg *config.Config,
	logger *zerolog.Logger,
) error {
	if grpcServer != nil {
		go func() {
			if err := grpcServer.Serve(); err != nil {
				logger.Error().Err(err).Msg("grpc server stopped")
			}
		}()
	}

	go func() {
		if !cfg.API.HTTP.Enabled {
			return
		}
		if err := httpServer.Start(); err != nil {
			logger.Error().Err(err).Msg("http server stopped")
		}
	}()

	event := logger.Info().Int("http_port", cfg.API.HTTP.Port)
	if grpcServer != nil {
		event = event.Str("grpc_addr", grpcServer.Addr())
	}
	event.Msg("API server started")

	<-ctx.Done()
	logger.Info().Msg("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if grpcServer != nil {
		grpcServer.Shutdown(shutdownCtx)
	}
	_ = httpServer.Shutdown(shutdownCtx)

	logger.Info().Msg("API server stopped")
	return nil
}

func startMetricsServer(ctx context.Context, port int, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error().Err(err).Msg("metrics server error")
	}
}
