package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Config captures runtime configuration for the API service.
type Config struct {
	HTTP      HTTPConfig
	Database  DatabaseConfig
	Kafka     KafkaConfig
	Mpesa     MpesaConfig
	Sweeper   SweeperConfig
	Telemetry TelemetryConfig
	Service   ServiceConfig
}

type HTTPConfig struct {
	Port          int
	MetricsPath   string
	ShutdownGrace int
}

type DatabaseConfig struct {
	URL            string
	AutoMigrate    bool
	MigrationsPath string
}

type KafkaConfig struct {
	Brokers []string
}

// MpesaConfig holds the Daraja gateway credentials. The shortcode and
// passkey defaults are Safaricom's published sandbox values; production
// deployments must override all of them.
type MpesaConfig struct {
	ConsumerKey     string
	ConsumerSecret  string
	Shortcode       string
	Passkey         string
	Environment     string
	CallbackBaseURL string
	TimeoutSeconds  int
}

// SweeperConfig controls the background timeout sweeper.
type SweeperConfig struct {
	TimeoutMinutes  int
	IntervalSeconds int
}

type TelemetryConfig struct {
	LogLevel      string
	OTelEndpoint  string
	EnableTracing bool
	EnableMetrics bool
	SampleRate    float64
}

type ServiceConfig struct {
	Name        string
	Version     string
	Environment string
}

const (
	defaultHTTPPort       = 8080
	defaultMetricsPath    = "/metrics"
	defaultShutdownGrace  = 15
	defaultMigrationsPath = "migrations"
	defaultAutoMigrate    = true
	defaultServiceName    = "pos-api"
	defaultServiceVersion = "0.1.0"
	defaultEnvironment    = "development"
	defaultLogLevel       = "info"
	defaultOTelSampleRate = 1.0

	defaultMpesaShortcode      = "174379"
	defaultMpesaPasskey        = "bfb279f9aa9bdbcf158e97dd71a467cd2e0c893059b10f78e6b72ada1ed2c919"
	defaultMpesaEnvironment    = "sandbox"
	defaultMpesaTimeoutSeconds = 30
	defaultSweepTimeoutMinutes = 5
	defaultSweepIntervalSecs   = 60
)

// Load reads configuration from environment variables, applying defaults when needed.
func Load() (*Config, error) {
	httpCfg, err := loadHTTPConfig()
	if err != nil {
		return nil, fmt.Errorf("loading HTTP config: %w", err)
	}

	dbCfg := loadDatabaseConfig()
	kafkaCfg := loadKafkaConfig()
	mpesaCfg, err := loadMpesaConfig()
	if err != nil {
		return nil, fmt.Errorf("loading mpesa config: %w", err)
	}

	sweeperCfg, err := loadSweeperConfig()
	if err != nil {
		return nil, fmt.Errorf("loading sweeper config: %w", err)
	}

	telCfg, err := loadTelemetryConfig()
	if err != nil {
		return nil, fmt.Errorf("loading telemetry config: %w", err)
	}

	serviceCfg := loadServiceConfig()

	return &Config{
		HTTP:      httpCfg,
		Database:  dbCfg,
		Kafka:     kafkaCfg,
		Mpesa:     mpesaCfg,
		Sweeper:   sweeperCfg,
		Telemetry: telCfg,
		Service:   serviceCfg,
	}, nil
}

func loadHTTPConfig() (HTTPConfig, error) {
	port := defaultHTTPPort
	if value, ok := os.LookupEnv("API_HTTP_PORT"); ok {
		parsed, err := strconv.Atoi(value)
		if err != nil {
			return HTTPConfig{}, fmt.Errorf("invalid API_HTTP_PORT: %w", err)
		}
		port = parsed
	}

	shutdownGrace := defaultShutdownGrace
	if value, ok := os.LookupEnv("API_SHUTDOWN_GRACE_SECONDS"); ok {
		parsed, err := strconv.Atoi(value)
		if err != nil {
			return HTTPConfig{}, fmt.Errorf("invalid API_SHUTDOWN_GRACE_SECONDS: %w", err)
		}
		shutdownGrace = parsed
	}

	metricsPath := getEnvOrDefault("API_METRICS_PATH", defaultMetricsPath)

	return HTTPConfig{
		Port:          port,
		MetricsPath:   metricsPath,
		ShutdownGrace: shutdownGrace,
	}, nil
}

func loadDatabaseConfig() DatabaseConfig {
	databaseURL := os.Getenv("DATABASE_URL")
	if databaseURL == "" {
		databaseURL = buildDatabaseURL()
	}

	autoMigrate := defaultAutoMigrate
	if value, ok := os.LookupEnv("AUTO_MIGRATE"); ok {
		autoMigrate = value == "true"
	}

	migrationsPath := getEnvOrDefault("MIGRATIONS_PATH", defaultMigrationsPath)

	return DatabaseConfig{
		URL:            databaseURL,
		AutoMigrate:    autoMigrate,
		MigrationsPath: migrationsPath,
	}
}

func loadKafkaConfig() KafkaConfig {
	var brokers []string
	if value, ok := os.LookupEnv("KAFKA_BROKERS"); ok && value != "" {
		brokers = strings.Split(value, ",")
	}

	return KafkaConfig{
		Brokers: brokers,
	}
}

func loadMpesaConfig() (MpesaConfig, error) {
	timeout := defaultMpesaTimeoutSeconds
	if value, ok := os.LookupEnv("MPESA_TIMEOUT_SECONDS"); ok {
		parsed, err := strconv.Atoi(value)
		if err != nil {
			return MpesaConfig{}, fmt.Errorf("invalid MPESA_TIMEOUT_SECONDS: %w", err)
		}
		timeout = parsed
	}

	return MpesaConfig{
		ConsumerKey:     os.Getenv("MPESA_CONSUMER_KEY"),
		ConsumerSecret:  os.Getenv("MPESA_CONSUMER_SECRET"),
		Shortcode:       getEnvOrDefault("MPESA_SHORTCODE", defaultMpesaShortcode),
		Passkey:         getEnvOrDefault("MPESA_PASSKEY", defaultMpesaPasskey),
		Environment:     getEnvOrDefault("MPESA_ENVIRONMENT", defaultMpesaEnvironment),
		CallbackBaseURL: os.Getenv("MPESA_CALLBACK_BASE_URL"),
		TimeoutSeconds:  timeout,
	}, nil
}

func loadSweeperConfig() (SweeperConfig, error) {
	timeout := defaultSweepTimeoutMinutes
	if value, ok := os.LookupEnv("SWEEP_TIMEOUT_MINUTES"); ok {
		parsed, err := strconv.Atoi(value)
		if err != nil {
			return SweeperConfig{}, fmt.Errorf("invalid SWEEP_TIMEOUT_MINUTES: %w", err)
		}
		timeout = parsed
	}

	interval := defaultSweepIntervalSecs
	if value, ok := os.LookupEnv("SWEEP_INTERVAL_SECONDS"); ok {
		parsed, err := strconv.Atoi(value)
		if err != nil {
			return SweeperConfig{}, fmt.Errorf("invalid SWEEP_INTERVAL_SECONDS: %w", err)
		}
		interval = parsed
	}

	return SweeperConfig{
		TimeoutMinutes:  timeout,
		IntervalSeconds: interval,
	}, nil
}

func loadTelemetryConfig() (TelemetryConfig, error) {
	logLevel := getEnvOrDefault("LOG_LEVEL", defaultLogLevel)
	otelEndpoint := getEnvOrDefault("OTEL_EXPORTER_OTLP_ENDPOINT", "")

	enableTracing := getBoolEnv("OTEL_ENABLE_TRACING", true)
	enableMetrics := getBoolEnv("OTEL_ENABLE_METRICS", true)

	sampleRate := defaultOTelSampleRate
	if value, ok := os.LookupEnv("OTEL_SAMPLE_RATE"); ok {
		parsed, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return TelemetryConfig{}, fmt.Errorf("invalid OTEL_SAMPLE_RATE: %w", err)
		}
		sampleRate = parsed
	}

	return TelemetryConfig{
		LogLevel:      logLevel,
		OTelEndpoint:  otelEndpoint,
		EnableTracing: enableTracing,
		EnableMetrics: enableMetrics,
		SampleRate:    sampleRate,
	}, nil
}

func loadServiceConfig() ServiceConfig {
	return ServiceConfig{
		Name:        getEnvOrDefault("API_SERVICE_NAME", defaultServiceName),
		Version:     getEnvOrDefault("SERVICE_VERSION", defaultServiceVersion),
		Environment: getEnvOrDefault("ENVIRONMENT", defaultEnvironment),
	}
}

func buildDatabaseURL() string {
	host := getEnvOrDefault("DB_HOST", "localhost")
	port := getEnvOrDefault("DB_PORT", "5432")
	user := getEnvOrDefault("DB_USER", "postgres")
	password := getEnvOrDefault("DB_PASSWORD", "postgres")
	dbName := getEnvOrDefault("DB_NAME", "pos")
	sslMode := getEnvOrDefault("DB_SSLMODE", "disable")

	maxConns := getEnvOrDefault("DB_MAX_CONNS", "25")
	minConns := getEnvOrDefault("DB_MIN_CONNS", "5")
	maxLifetime := getEnvOrDefault("DB_MAX_CONN_LIFETIME", "5m")

	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s&pool_max_conns=%s&pool_min_conns=%s&pool_max_conn_lifetime=%s",
		user, password, host, port, dbName, sslMode, maxConns, minConns, maxLifetime,
	)
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value, ok := os.LookupEnv(key); ok {
		return value == "true"
	}
	return defaultValue
}
