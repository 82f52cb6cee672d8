package util

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

// Configuration defines the structure for storing application configuration
type Configuration struct {
	// HTTP server configuration
	HTTPPort          int
	HTTPEnabled       bool
	HTTPEnableMetrics bool
	HTTPEnableAPI     bool

	// Engine configuration
	WindowSpan      time.Duration
	FraudCooldown   time.Duration
	EmotionCooldown time.Duration
	SessionMaxIdle  time.Duration
	CleanupInterval time.Duration

	// Redis state store configuration
	RedisEnabled  bool
	RedisAddress  string
	RedisPassword string
	RedisDB       int
	RedisTTL      time.Duration

	// Elasticsearch alert archive configuration
	ESAddresses []string
	ESUsername  string
	ESPassword  string
	ESIndex     string

	// AMQP configuration
	AMQPUrl       string
	AMQPQueueName string

	// Logging
	LogLevel logrus.Level
}

// LoadConfig loads the application configuration from environment variables
func LoadConfig(logger *logrus.Logger) (*Configuration, error) {
	// A missing .env file is fine; only the shell environment applies then.
	if err := godotenv.Load(); err != nil {
		logger.Debug("No .env file found, using environment variables only")
	}

	config := &Configuration{}
	var err error

	// Load HTTP configuration
	httpPortStr := os.Getenv("HTTP_PORT")
	if httpPortStr != "" {
		config.HTTPPort, err = strconv.Atoi(httpPortStr)
		if err != nil {
			logger.Warn("Invalid HTTP_PORT specified; using default port 8080")
			config.HTTPPort = 8080
		}
	} else {
		config.HTTPPort = 8080 // Default HTTP port
	}

	config.HTTPEnabled = os.Getenv("HTTP_ENABLED") != "false"
	config.HTTPEnableMetrics = os.Getenv("HTTP_ENABLE_METRICS") != "false" // Enabled by default
	config.HTTPEnableAPI = os.Getenv("HTTP_ENABLE_API") != "false"         // Enabled by default

	// Engine timing configuration
	config.WindowSpan = durationFromEnv(logger, "WINDOW_SECONDS", time.Second, 60*time.Second)
	config.FraudCooldown = durationFromEnv(logger, "FRAUD_COOLDOWN_SECONDS", time.Second, 30*time.Second)
	config.EmotionCooldown = durationFromEnv(logger, "EMOTION_COOLDOWN_SECONDS", time.Second, 60*time.Second)
	config.SessionMaxIdle = durationFromEnv(logger, "SESSION_MAX_IDLE_MINUTES", time.Minute, 30*time.Minute)
	config.CleanupInterval = durationFromEnv(logger, "CLEANUP_INTERVAL_SECONDS", time.Second, 60*time.Second)

	// Redis state store
	config.RedisAddress = os.Getenv("REDIS_ADDRESS")
	config.RedisEnabled = config.RedisAddress != ""
	config.RedisPassword = os.Getenv("REDIS_PASSWORD")
	redisDBStr := os.Getenv("REDIS_DB")
	if redisDBStr != "" {
		config.RedisDB, err = strconv.Atoi(redisDBStr)
		if err != nil {
			logger.Warn("Invalid REDIS_DB specified; using database 0")
			config.RedisDB = 0
		}
	}
	config.RedisTTL = durationFromEnv(logger, "REDIS_TTL_HOURS", time.Hour, 4*time.Hour)

	// Elasticsearch alert archive
	esAddresses := os.Getenv("ELASTICSEARCH_ADDRESSES")
	if esAddresses != "" {
		config.ESAddresses = strings.Split(esAddresses, ",")
	}
	config.ESUsername = os.Getenv("ELASTICSEARCH_USERNAME")
	config.ESPassword = os.Getenv("ELASTICSEARCH_PASSWORD")
	config.ESIndex = os.Getenv("ELASTICSEARCH_ALERT_INDEX")
	if config.ESIndex == "" {
		config.ESIndex = "realsync-alerts"
	}

	// Load AMQP configuration
	config.AMQPUrl = os.Getenv("AMQP_URL")
	config.AMQPQueueName = os.Getenv("AMQP_QUEUE_NAME")
	if config.AMQPUrl == "" || config.AMQPQueueName == "" {
		logger.Warn("AMQP_URL or AMQP_QUEUE_NAME not set, alert publishing will be disabled")
	}

	// Set the log level from the environment variable
	logLevelStr := os.Getenv("LOG_LEVEL")
	if logLevelStr == "" {
		logLevelStr = "info" // Default to "info" level
	}
	level, err := logrus.ParseLevel(logLevelStr)
	if err != nil {
		logger.Warnf("Invalid LOG_LEVEL '%s', defaulting to 'info'", logLevelStr)
		config.LogLevel = logrus.InfoLevel
	} else {
		config.LogLevel = level
	}

	return config, nil
}

// durationFromEnv parses an integer environment variable scaled by unit,
// falling back to def on absence or garbage.
func durationFromEnv(logger *logrus.Logger, key string, unit, def time.Duration) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		logger.Warnf("Invalid %s '%s', using default", key, raw)
		return def
	}
	return time.Duration(n) * unit
}
