package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"realsync-server/pkg/elasticsearch"
	"realsync-server/pkg/engine"
	http_server "realsync-server/pkg/http"
	"realsync-server/pkg/messaging"
	"realsync-server/pkg/metrics"
	"realsync-server/pkg/rules"
	"realsync-server/pkg/util"
)

var (
	logger    = logrus.New()
	appConfig *util.Configuration

	coordinator   *engine.Coordinator
	stateStore    engine.StateStore
	redisStore    *engine.RedisStateStore
	amqpPublisher *messaging.AMQPPublisher
	esClient      *elasticsearch.Client
	httpServer    *http_server.Server
	alertHub      *http_server.AlertHub

	// Context for graceful shutdown
	rootCtx    context.Context
	rootCancel context.CancelFunc
)

func main() {
	logger.SetFormatter(&logrus.JSONFormatter{
		TimestampFormat: time.RFC3339Nano,
		FieldMap: logrus.FieldMap{
			logrus.FieldKeyTime:  "timestamp",
			logrus.FieldKeyLevel: "level",
			logrus.FieldKeyMsg:   "message",
		},
	})
	logger.SetOutput(os.Stdout)

	rootCtx, rootCancel = context.WithCancel(context.Background())
	defer rootCancel()

	if err := initialize(); err != nil {
		logger.WithError(err).Fatal("Failed to initialize application")
	}

	if appConfig.HTTPEnabled {
		httpServer.Start()
		logger.Info("HTTP server started")
	} else {
		logger.Info("HTTP server is disabled by configuration")
	}

	go alertHub.Run(rootCtx)
	go coordinator.RunCleanup(rootCtx, appConfig.CleanupInterval)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM, syscall.SIGINT)
	sig := <-sigChan
	logger.WithField("signal", sig.String()).Info("Received shutdown signal, cleaning up...")

	rootCancel()
	shutdown()
	logger.Info("Shutdown complete")
}

func initialize() error {
	var err error
	appConfig, err = util.LoadConfig(logger)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	logger.SetLevel(appConfig.LogLevel)

	metrics.StartMetrics(logger, appConfig.HTTPEnableMetrics)

	if err := initializeStateStore(); err != nil {
		return err
	}

	engineConfig := engine.DefaultCoordinatorConfig()
	engineConfig.WindowSpan = appConfig.WindowSpan
	engineConfig.SessionMaxIdle = appConfig.SessionMaxIdle
	engineConfig.Fraud.Cooldown = appConfig.FraudCooldown
	engineConfig.Visual.EmotionCooldown = appConfig.EmotionCooldown

	coordinator = engine.NewCoordinator(logger, rules.NewScorer(nil), stateStore, nil, engineConfig)

	alertHub = http_server.NewAlertHub(logger)
	coordinator.AddSubscriber(alertHub)

	if err := initializeAMQP(); err != nil {
		return err
	}
	if err := initializeElasticsearch(); err != nil {
		return err
	}

	httpConfig := http_server.DefaultConfig()
	httpConfig.Port = appConfig.HTTPPort
	httpConfig.Enabled = appConfig.HTTPEnabled
	httpConfig.EnableMetrics = appConfig.HTTPEnableMetrics
	httpConfig.EnableAPI = appConfig.HTTPEnableAPI
	httpServer = http_server.NewServer(logger, httpConfig)
	httpServer.SetAlertHub(alertHub)

	if appConfig.HTTPEnableAPI {
		apiHandler := http_server.NewAPIHandler(logger, coordinator)
		apiHandler.RegisterHandlers(httpServer)
	}

	registerHealthChecks()

	logger.Info("Application initialized successfully")
	return nil
}

func initializeStateStore() error {
	if !appConfig.RedisEnabled {
		stateStore = engine.NewInMemoryStateStore()
		logger.Info("Using in-memory session state store")
		return nil
	}

	var err error
	redisStore, err = engine.NewRedisStateStore(engine.RedisConfig{
		Address:  appConfig.RedisAddress,
		Password: appConfig.RedisPassword,
		Database: appConfig.RedisDB,
		TTL:      appConfig.RedisTTL,
	}, logger)
	if err != nil {
		return fmt.Errorf("failed to connect to redis: %w", err)
	}
	stateStore = redisStore
	logger.WithField("address", appConfig.RedisAddress).Info("Using Redis session state store")
	return nil
}

func initializeAMQP() error {
	if appConfig.AMQPUrl == "" || appConfig.AMQPQueueName == "" {
		logger.Warn("AMQP not configured, alert queue publishing is disabled")
		return nil
	}

	amqpPublisher = messaging.NewAMQPPublisher(logger, messaging.AMQPConfig{
		URL:       appConfig.AMQPUrl,
		QueueName: appConfig.AMQPQueueName,
	})
	if err := amqpPublisher.Connect(); err != nil {
		// The publisher reconnects on its own; startup continues without it.
		logger.WithError(err).Warn("Initial AMQP connection failed, will retry in background")
	}
	coordinator.AddSubscriber(amqpPublisher)
	logger.Info("AMQP alert publisher initialized")
	return nil
}

func initializeElasticsearch() error {
	if len(appConfig.ESAddresses) == 0 {
		logger.Info("Elasticsearch not configured, alert archiving is disabled")
		return nil
	}

	var err error
	esClient, err = elasticsearch.NewClient(elasticsearch.Config{
		Addresses: appConfig.ESAddresses,
		Username:  appConfig.ESUsername,
		Password:  appConfig.ESPassword,
	})
	if err != nil {
		return fmt.Errorf("failed to create elasticsearch client: %w", err)
	}

	coordinator.SetAlertWriter(engine.NewElasticsearchAlertWriter(esClient, appConfig.ESIndex))
	logger.WithField("index", appConfig.ESIndex).Info("Elasticsearch alert archive initialized")
	return nil
}

func registerHealthChecks() {
	if redisStore != nil {
		httpServer.RegisterHealthCheck("redis", func(ctx context.Context) error {
			return redisStore.Health()
		})
	}
	if esClient != nil {
		httpServer.RegisterHealthCheck("elasticsearch", func(ctx context.Context) error {
			return esClient.Ping(ctx)
		})
	}
	if amqpPublisher != nil {
		httpServer.RegisterHealthCheck("amqp", func(ctx context.Context) error {
			if !amqpPublisher.IsConnected() {
				return fmt.Errorf("not connected to AMQP broker")
			}
			return nil
		})
	}
}

func shutdown() {
	gs := util.NewGracefulShutdown(logger, 15*time.Second)

	if httpServer != nil {
		gs.Register(util.ShutdownResource{
			Name:     "http-server",
			Priority: 10,
			Shutdown: httpServer.Shutdown,
		})
	}
	if amqpPublisher != nil {
		gs.Register(util.ShutdownResource{
			Name:     "amqp-publisher",
			Priority: 20,
			Shutdown: func(ctx context.Context) error {
				amqpPublisher.Disconnect()
				return nil
			},
		})
	}
	if redisStore != nil {
		gs.RegisterCloser("redis-store", redisStore, 30)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := gs.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("Graceful shutdown finished with errors")
	}
}
