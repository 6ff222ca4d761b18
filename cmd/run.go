package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"surveydraw/api"
	"surveydraw/application"
	"surveydraw/config"
	"surveydraw/database"
	"surveydraw/events"
	"surveydraw/infrastructure"
	"surveydraw/infrastructure/observability"
	"surveydraw/repository"
	"surveydraw/service"

	"github.com/bwmarrin/discordgo"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

// app holds the wired services shared by the server and the operator commands
type app struct {
	cfg       *config.Config
	db        *database.DB
	eventBus  *events.Bus
	ingestion service.ResponseIngestionService
	draws     service.DrawService
	metrics   *observability.MetricsProvider

	natsClient     *infrastructure.NATSClient
	discordSession *discordgo.Session
	redisClient    *redis.Client
}

// ConfigureLogging applies the configured level and formatter
func ConfigureLogging(cfg *config.Config) {
	level, err := log.ParseLevel(cfg.LogLevel)
	if err != nil {
		log.WithField("level", cfg.LogLevel).Warn("Invalid log level, using info")
		level = log.InfoLevel
	}
	log.SetLevel(level)

	if cfg.IsProduction() {
		log.SetFormatter(&log.JSONFormatter{})
	} else {
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	}
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	a := &app{cfg: cfg}

	// Initialize database connection
	log.Info("Connecting to database...")
	db, err := database.NewConnection(ctx, cfg.GetDatabaseURL(), database.PoolOptions{
		StatementTimeout: cfg.StoreTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	a.db = db
	log.Info("Database connection established successfully")

	// Initialize event bus and unit of work factory
	a.eventBus = events.NewBus()
	uowFactory := repository.NewUnitOfWorkFactory(db, a.eventBus)

	// Initialize metrics
	a.metrics = observability.NewMetricsProvider(cfg)
	if err := a.metrics.Initialize(ctx); err != nil {
		a.close()
		return nil, fmt.Errorf("failed to initialize metrics: %w", err)
	}
	a.metrics.Register(a.eventBus)

	// Initialize NATS for event forwarding and the mail outbox
	transports := make(map[service.ContactKind]service.NotificationTransport)
	if cfg.NATSServers != "" {
		log.WithField("servers", cfg.NATSServers).Info("Connecting to NATS...")
		a.natsClient = infrastructure.NewNATSClient(cfg.NATSServers)
		if err := a.natsClient.Connect(ctx); err != nil {
			a.close()
			return nil, fmt.Errorf("failed to connect to NATS: %w", err)
		}

		mapper := infrastructure.NewEventSubjectMapper()
		if err := a.natsClient.EnsureStreams(mapper.GetAllSubjects()); err != nil {
			a.close()
			return nil, fmt.Errorf("failed to ensure NATS streams: %w", err)
		}

		infrastructure.NewNATSEventForwarder(a.natsClient, mapper).Register(a.eventBus)
		transports[service.ContactKindEmail] = infrastructure.NewNATSMailTransport(a.natsClient)
		log.Info("NATS event forwarding and mail outbox enabled")
	} else {
		log.Warn("NATS_SERVERS not set, e-mail notifications will be recorded as failed")
	}

	// Initialize Discord transport
	if cfg.DiscordToken != "" {
		session, err := infrastructure.NewDiscordSession(cfg.DiscordToken)
		if err != nil {
			a.close()
			return nil, err
		}
		a.discordSession = session
		transports[service.ContactKindDiscord] = infrastructure.NewDiscordTransport(session)
		log.Info("Discord notification transport enabled")
	}

	// Initialize services
	hasher, err := service.NewIdentityHasher(cfg.IdentitySecret, cfg.IdentitySecretVersion)
	if err != nil {
		a.close()
		return nil, fmt.Errorf("failed to initialize identity hasher: %w", err)
	}
	tokens := service.NewTokenGenerator()
	dispatcher := service.NewNotificationDispatcher(transports, cfg.NotifyTimeout)

	a.ingestion = service.NewIngestionService(uowFactory, hasher, tokens, a.eventBus, service.IngestionConfig{
		MaxAnswersBytes: cfg.MaxAnswersBytes,
		StoreTimeout:    cfg.StoreTimeout,
	})
	a.draws = service.NewDrawService(uowFactory, tokens, dispatcher, cfg.StoreTimeout)

	return a, nil
}

// close releases every connection the app opened
func (a *app) close() {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if a.metrics != nil {
		if err := a.metrics.Shutdown(shutdownCtx); err != nil {
			log.WithError(err).Error("Error shutting down metrics")
		}
	}
	if a.natsClient != nil {
		if err := a.natsClient.Close(); err != nil {
			log.WithError(err).Error("Error closing NATS connection")
		}
	}
	if a.discordSession != nil {
		if err := a.discordSession.Close(); err != nil {
			log.WithError(err).Error("Error closing Discord session")
		}
	}
	if a.redisClient != nil {
		if err := a.redisClient.Close(); err != nil {
			log.WithError(err).Error("Error closing Redis client")
		}
	}
	if a.db != nil {
		log.Info("Closing database connection...")
		a.db.Close()
	}
}

type redisPinger struct {
	client *redis.Client
}

func (p redisPinger) Ping(ctx context.Context) error {
	return p.client.Ping(ctx).Err()
}

// Run initializes and starts the HTTP server and the draw worker
func Run(ctx context.Context) error {
	cfg := config.Get()
	ConfigureLogging(cfg)
	log.WithField("environment", cfg.Environment).Info("Starting surveydraw...")

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.close()

	healthDeps := map[string]api.Pinger{"postgres": a.db}

	// Initialize the submission rate limiter
	var limiter api.RateLimiter
	if cfg.RedisAddr != "" {
		client, err := infrastructure.NewRedisClient(ctx, cfg.RedisAddr, cfg.RedisPassword)
		if err != nil {
			return err
		}
		a.redisClient = client
		limiter = infrastructure.NewRedisRateLimiter(client, cfg.RateLimitPerMinute, time.Minute)
		healthDeps["redis"] = redisPinger{client: client}
		log.WithField("per_minute", cfg.RateLimitPerMinute).Info("Submission rate limiting enabled")
	}

	// Start the draw worker
	if cfg.DrawWorkerEnabled {
		stopWorker := application.NewDrawWorker(a.draws, cfg.DrawWorkerInterval).Start(ctx)
		defer stopWorker()
	}

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := api.NewRouter(api.RouterConfig{
		Handler:     api.NewHandler(a.ingestion, a.draws, cfg.MaxAnswersBytes),
		Health:      api.NewHealthHandler(healthDeps),
		AdminAPIKey: cfg.AdminAPIKey,
		Limiter:     limiter,
		RateSalt:    cfg.IdentitySecret,
	})

	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.WithField("addr", cfg.HTTPAddr).Info("HTTP server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case <-ctx.Done():
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("HTTP server failed: %w", err)
		}
	}

	log.Info("Shutting down HTTP server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("Error shutting down HTTP server")
	}

	log.Info("Shutdown completed")
	return nil
}

// RunDraw performs the draw of one survey instance from the command line
func RunDraw(ctx context.Context, surveyInstanceID string) error {
	cfg := config.Get()
	ConfigureLogging(cfg)

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.close()

	record, err := a.draws.RunDraw(ctx, surveyInstanceID)
	if err != nil {
		return fmt.Errorf("failed to run draw: %w", err)
	}

	result := record.Result()
	fmt.Printf("Draw %d completed for survey %s\n", result.DrawID, surveyInstanceID)
	fmt.Printf("  Winner token:       %s\n", result.WinnerToken)
	fmt.Printf("  Candidates:         %d\n", result.CandidateCount)
	fmt.Printf("  Seed:               %s\n", result.Seed)
	fmt.Printf("  Notification:       %s\n", record.NotificationStatus)
	return nil
}

// ResendNotification retries the winner notification of a draw from the command line
func ResendNotification(ctx context.Context, drawID int64) error {
	cfg := config.Get()
	ConfigureLogging(cfg)

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.close()

	record, err := a.draws.ResendNotification(ctx, drawID)
	if err != nil {
		return fmt.Errorf("failed to resend notification: %w", err)
	}

	fmt.Printf("Draw %d notification: %s (attempts: %d)\n", record.ID, record.NotificationStatus, record.NotificationAttempts)
	return nil
}
