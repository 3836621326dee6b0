package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"lovechat-backend/internal/config"
	"lovechat-backend/internal/handlers"
	"lovechat-backend/internal/middleware"
	"lovechat-backend/internal/repository"
	"lovechat-backend/internal/services"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/cors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

// Execute runs the lovechat command line
func Execute() error {
	return newRootCmd().Execute()
}

func newRootCmd() *cobra.Command {
	var configPath string

	rootCmd := &cobra.Command{
		Use:          "lovechat",
		Short:        "LoverChat pairing and real-time messaging backend",
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "config.yaml", "path to the YAML config file")

	rootCmd.AddCommand(
		&cobra.Command{
			Use:   "serve",
			Short: "Run the HTTP and WebSocket server",
			RunE: func(_ *cobra.Command, _ []string) error {
				cfg, err := loadConfig(configPath)
				if err != nil {
					return err
				}
				return Run(cfg)
			},
		},
		&cobra.Command{
			Use:   "migrate",
			Short: "Apply the database schema",
			RunE: func(cmd *cobra.Command, _ []string) error {
				cfg, err := loadConfig(configPath)
				if err != nil {
					return err
				}
				return migrate(cmd.Context(), cfg)
			},
		},
	)

	return rootCmd
}

func loadConfig(path string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	setupLogger(cfg.Log.Level)
	return cfg, nil
}

func connectDB(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, error) {
	db, err := pgxpool.New(ctx, cfg.Database.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Test database connection
	if err := db.Ping(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	log.Info().Msg("Database connection established")
	return db, nil
}

func migrate(ctx context.Context, cfg *config.Config) error {
	db, err := connectDB(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := repository.Migrate(ctx, db); err != nil {
		return err
	}
	log.Info().Msg("Database schema is up to date")
	return nil
}

// Run starts the server and blocks until SIGINT or SIGTERM
func Run(cfg *config.Config) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Connect to database
	db, err := connectDB(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	// Presence leases, typing flags and the event bus live in Redis
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer rdb.Close()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("failed to ping redis: %w", err)
	}
	log.Info().Str("addr", cfg.Redis.Addr).Msg("Redis connection established")

	// Initialize repositories
	accountRepo := repository.NewAccountRepository(db)
	requestRepo := repository.NewRequestRepository(db)
	channelRepo := repository.NewChannelRepository(db)
	messageRepo := repository.NewMessageRepository(db)
	callRepo := repository.NewCallRepository(db)
	momentRepo := repository.NewMomentRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)
	signalRepo := repository.NewSignalRepository(rdb)

	bus := services.NewRedisBus(rdb)
	rt := cfg.Realtime

	// Initialize services
	apnsClient, err := services.NewAPNsClient(cfg.APNs)
	if err != nil {
		return err
	}
	var pusher services.Pusher
	if apnsClient != nil {
		pusher = apnsClient
	} else {
		log.Warn().Msg("APNs not configured, push notifications disabled")
	}
	notificationService := services.NewNotificationService(notificationRepo, accountRepo, bus, pusher, cfg.APNs.Topic)

	userService := services.NewUserService(accountRepo, cfg.JWT.Secret)
	pairService := services.NewPairService(accountRepo, requestRepo, bus, notificationService, rt.DisconnectPhrase)
	typing := services.NewTypingSignaler(signalRepo, bus, rt.TypingQuiet)
	channelService := services.NewChannelService(channelRepo, signalRepo, bus)
	messageService := services.NewMessageService(messageRepo, bus, typing, rt.MessagePageLimit)
	presenceService := services.NewPresenceService(accountRepo, signalRepo, pairService, bus, rt.PresenceTTL)
	callService := services.NewCallService(callRepo, pairService, bus, notificationService, rt.CallRingTimeout)
	momentService := services.NewMomentService(momentRepo, bus)
	mediaService, err := services.NewMediaService(ctx, cfg.AWS)
	if err != nil {
		log.Warn().Err(err).Msg("Media uploads disabled")
	}
	wsHub := services.NewWSHub()

	// Initialize handlers
	api := &handlers.API{
		Users:         handlers.NewUserHandler(userService),
		Pairs:         handlers.NewPairHandler(pairService),
		Channel:       handlers.NewChannelHandler(pairService, channelService, messageService, presenceService),
		Calls:         handlers.NewCallHandler(pairService, callService),
		Moments:       handlers.NewMomentHandler(pairService, momentService),
		Notifications: handlers.NewNotificationHandler(notificationService),
	}
	if mediaService != nil {
		api.Media = handlers.NewMediaHandler(pairService, mediaService)
	}
	wsHandler := handlers.NewWebSocketHandler(
		wsHub,
		userService,
		pairService,
		presenceService,
		typing,
		messageService,
		channelService,
		callService,
		rt.HeartbeatInterval,
	)

	// Setup router
	r := chi.NewRouter()

	// Middleware
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Authorization", "Content-Type"},
	}).Handler)

	// Routes
	r.Route("/api/v1", func(r chi.Router) {
		api.Mount(r, middleware.AuthMiddleware(userService))
	})

	// WebSocket route
	r.Get("/ws", wsHandler.HandleWebSocket)

	// Background workers
	go func() {
		if err := wsHub.Run(ctx, bus); err != nil {
			log.Error().Err(err).Msg("Event bus listener stopped")
		}
	}()
	go presenceService.Run(ctx, rt.ReapInterval)
	go callService.Run(ctx, rt.ReapInterval)

	// Create HTTP server
	srv := &http.Server{
		Addr:        fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:     r,
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	// Start server in goroutine
	serverErr := make(chan error, 1)
	go func() {
		log.Info().
			Str("host", cfg.Server.Host).
			Int("port", cfg.Server.Port).
			Msg("Starting server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	// Wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-serverErr:
		return fmt.Errorf("server failed: %w", err)
	}

	log.Info().Msg("Shutting down server...")
	cancel()

	// Graceful shutdown with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	typing.Close(shutdownCtx)
	notificationService.Close()

	log.Info().Msg("Server exited")
	return nil
}

// setupLogger configures zerolog logger
func setupLogger(level string) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	switch level {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "info":
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}
