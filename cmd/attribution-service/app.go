package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"

	_ "github.com/lib/pq" // PostgreSQL driver

	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"sift/internal/attribution"
	"sift/internal/config"
	"sift/internal/constants"
	"sift/internal/entity"
	"sift/internal/logger"
	"sift/internal/matcher"
	"sift/internal/message"
	"sift/internal/resolver"
	"sift/pkg/bootstrap"
	"sift/pkg/health"
	"sift/pkg/logging"
	"sift/pkg/metrics"
	"sift/pkg/middleware"
	"sift/pkg/migrations"
	"sift/pkg/models"
	"sift/pkg/ratelimit"
	"sift/pkg/tracing"
)

const serviceName = "attribution-service"

type App struct {
	config         *config.Config
	logger         logger.Logger
	base           *bootstrap.Base
	dbConnector    *bootstrap.DatabaseConnector
	db             *sql.DB
	redisClient    *redis.Client
	mongoClient    *mongo.Client
	service        *attribution.Service
	hostLimiter    *ratelimit.HostLimiter
	server         *http.Server
	router         *gin.Engine
	tracerProvider *tracing.TracerProvider
}

func NewApp(cfg *config.Config, log logger.Logger) *App {
	return &App{
		config:      cfg,
		logger:      log,
		base:        bootstrap.NewBase(cfg, log),
		dbConnector: bootstrap.NewDatabaseConnector(cfg, log),
	}
}

func (a *App) Initialize(ctx context.Context) error {
	if err := a.initDatabases(ctx); err != nil {
		return fmt.Errorf("failed to initialize databases: %w", err)
	}

	if a.config.Broker.Type != "" {
		if err := a.base.InitBroker(serviceName); err != nil {
			return fmt.Errorf("failed to initialize broker: %w", err)
		}
	}

	a.initPipeline()

	if err := a.initRouter(); err != nil {
		return fmt.Errorf("failed to initialize router: %w", err)
	}

	a.server = &http.Server{
		Addr:    fmt.Sprintf(":%d", a.config.Server.Port),
		Handler: a.router,
	}

	tp, err := tracing.Init(a.config.Tracing, serviceName)
	if err != nil {
		return fmt.Errorf("failed to initialize tracing: %w", err)
	}
	a.tracerProvider = tp

	return nil
}

func (a *App) initDatabases(ctx context.Context) error {
	db, err := a.dbConnector.InitPostgreSQL(ctx)
	if err != nil {
		return err
	}
	a.db = db

	if a.config.Database.RunMigrations {
		if err := migrations.RunPostgres(a.db); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
		a.logger.InfowCtx(ctx, "Database migrations applied")
	}

	redisClient, err := a.dbConnector.InitRedis(ctx)
	if err != nil {
		a.logger.WarnwCtx(ctx, "Redis connection failed, resolving without cache", "error", err)
	} else {
		a.redisClient = redisClient
	}

	mongoClient, err := a.dbConnector.InitMongoDB(ctx)
	if err != nil {
		a.logger.WarnwCtx(ctx, "MongoDB connection failed, runs will not be audited", "error", err)
	} else {
		a.mongoClient = mongoClient
	}

	return nil
}

func (a *App) initPipeline() {
	var cache resolver.Cache = resolver.NoopCache{}
	if a.redisClient != nil {
		ttl := time.Duration(a.config.Resolver.CacheTTLSeconds) * time.Second
		cache = resolver.NewRedisCache(a.redisClient, ttl, a.logger)
	}

	a.hostLimiter = ratelimit.NewHostLimiter(a.config.Resolver.PerHostRPS, a.config.Resolver.PerHostBurst)
	res := resolver.New(a.config.Resolver, cache, a.hostLimiter, a.logger)

	var audit attribution.RunAudit
	if a.mongoClient != nil {
		dbName := a.config.Database.MongoDB.Database
		if dbName == "" {
			dbName = constants.DefaultMongoDBName
		}
		audit = attribution.NewMongoRunAudit(a.mongoClient, dbName, a.logger)
	}

	var events attribution.EventPublisher
	if a.base.Producer != nil {
		topic := a.config.Broker.Kafka.EventsTopic
		if topic == "" {
			topic = constants.DefaultEventsTopic
		}
		events = attribution.NewKafkaPublisher(a.base.Producer, topic, serviceName, a.logger)
	}

	messageRepo := message.NewRepository(a.db)
	entityRepo := entity.NewRepository(a.db, a.logger)
	domains := matcher.NewDomainMatcher(a.config.Heuristic)

	a.service = attribution.NewService(
		messageRepo, entityRepo, res, domains,
		audit, events, a.config.Attribution, a.logger,
	)
}

func (a *App) initRouter() error {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()

	if a.config.Tracing.Enabled {
		router.Use(tracing.GinMiddleware(serviceName))
	}

	router.Use(middleware.RecoveryMiddleware(a.logger))
	router.Use(middleware.LoggerMiddleware(a.logger))
	router.Use(middleware.RequestIDMiddleware())

	handler := attribution.NewHandler(a.service, a.logger)
	handler.RegisterRoutes(router)

	metrics.RegisterAttributionMetrics()
	metrics.RegisterResolverMetrics()
	metrics.RegisterCircuitBreakerMetrics()
	if a.base.Producer != nil || a.base.Consumer != nil {
		metrics.RegisterBrokerMetrics()
	}

	healthRegistry := health.NewCheckerRegistry()
	healthRegistry.Register(health.NewPostgreSQLChecker(a.db))
	if a.redisClient != nil {
		healthRegistry.Register(health.NewRedisChecker(a.redisClient))
	}
	if a.mongoClient != nil {
		healthRegistry.Register(health.NewMongoDBChecker(a.mongoClient))
	}

	router.GET("/health", func(c *gin.Context) {
		h := healthRegistry.Check(c.Request.Context())
		statusCode := http.StatusOK
		if h.Status == health.StatusUnhealthy {
			statusCode = http.StatusServiceUnavailable
		}
		c.JSON(statusCode, h)
	})

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	a.router = router
	return nil
}

func (a *App) Run(ctx context.Context) error {
	errChan := make(chan error, 1)

	go func() {
		a.logger.InfowCtx(ctx, "Server listening", "port", a.config.Server.Port)
		if err := a.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- fmt.Errorf("server error: %w", err)
		}
	}()

	if a.config.Attribution.Interval > 0 {
		go a.runScheduler(ctx)
	}

	if a.base.Consumer != nil {
		go a.consumeCommands(ctx)
	}

	select {
	case <-ctx.Done():
		return a.Shutdown(ctx)
	case err := <-errChan:
		return err
	}
}

// runScheduler drives periodic attribution runs. One run at a time; a slow
// batch simply delays the next tick.
func (a *App) runScheduler(ctx context.Context) {
	ticker := time.NewTicker(a.config.Attribution.Interval)
	defer ticker.Stop()

	a.logger.InfowCtx(ctx, "Scheduler started", "interval", a.config.Attribution.Interval)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := a.service.Run(ctx, attribution.Options{
				UnwrapLinks: a.config.Attribution.UnwrapLinks,
			}); err != nil {
				a.logger.ErrorwCtx(ctx, "Scheduled attribution run failed", "error", err)
			}
		}
	}
}

// consumeCommands handles on-demand unwrap commands from the broker.
func (a *App) consumeCommands(ctx context.Context) {
	topic := a.config.Broker.Kafka.CommandsTopic
	if topic == "" {
		topic = constants.DefaultCommandsTopic
	}

	err := a.base.Consumer.Consume(ctx, topic, func(msgCtx context.Context, event models.EventEnvelope) error {
		if event.Type != models.EventTypeUnwrapMessage {
			a.logger.WarnwCtx(msgCtx, "Ignoring unexpected event type", "type", event.Type)
			return nil
		}

		messageID, _ := event.Payload["message_id"].(string)
		if messageID == "" {
			a.logger.WarnwCtx(msgCtx, "Unwrap command without message_id")
			return nil
		}

		msgCtx = logging.WithMessageID(msgCtx, messageID)
		attribute, _ := event.Payload["attribute"].(bool)

		if attribute {
			_, err := a.service.AttributeOne(msgCtx, messageID, true)
			return err
		}
		_, err := a.service.UnwrapOne(msgCtx, messageID)
		return err
	})
	if err != nil && ctx.Err() == nil {
		a.logger.ErrorwCtx(ctx, "Command consumer stopped", "error", err)
	}
}

func (a *App) Shutdown(ctx context.Context) error {
	a.logger.InfowCtx(ctx, "Shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), constants.ShutdownTimeout)
	defer cancel()

	return a.base.Shutdown(shutdownCtx, func(sctx context.Context) []error {
		var errs []error

		if a.server != nil {
			if err := a.server.Shutdown(sctx); err != nil {
				errs = append(errs, fmt.Errorf("server shutdown error: %w", err))
			}
		}

		if a.tracerProvider != nil {
			if err := a.tracerProvider.Shutdown(sctx); err != nil {
				errs = append(errs, fmt.Errorf("tracer provider shutdown error: %w", err))
			}
		}

		errs = append(errs, a.dbConnector.ShutdownDatabases(sctx, a.redisClient, a.db, a.mongoClient)...)

		return errs
	})
}
