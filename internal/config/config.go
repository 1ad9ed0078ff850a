package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config aggregates runtime configuration for the service.
type Config struct {
	App       AppConfig
	Postgres  PostgresConfig
	Redis     RedisConfig
	Logger    LoggerConfig
	Auth      AuthConfig
	Intake    IntakeConfig
	WhatsApp  WhatsAppConfig
	Email     EmailConfig
	Kafka     KafkaConfig
	Telemetry TelemetryConfig
}

// AppConfig controls server level behavior.
type AppConfig struct {
	Name                  string
	Env                   string
	Host                  string
	Port                  string
	Version               string
	RequestTimeoutSeconds int
}

// PostgresConfig holds DB connection values.
type PostgresConfig struct {
	DSN            string
	MaxConns       int32
	MinConns       int32
	RunMigrations  bool
	MigrationsDir  string
	ConnMaxIdleSec int32
	ConnMaxLifeSec int32
}

// RedisConfig holds Redis connection values. An empty Addr disables Redis.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level string
}

// AuthConfig defines admin API authentication parameters.
type AuthConfig struct {
	JWTSecret       string
	TokenTTLMinutes int
}

// IntakeConfig tunes the inbound pipeline.
type IntakeConfig struct {
	AckTimeoutSeconds   int
	AckAsync            bool
	AckWorkers          int
	DedupeTTLMinutes    int
	AvatarBaseURL       string
	DefaultAckTemplate  string
	EventWorkers        int
	EventQueueSize      int
	EventTimeoutSeconds int
}

// WhatsAppConfig points at the messaging provider's REST API.
type WhatsAppConfig struct {
	APIBaseURL         string
	SendTimeoutSeconds int
}

// EmailConfig holds SES settings for outbound acknowledgments.
type EmailConfig struct {
	AWSRegion          string
	AWSAccessKeyID     string
	AWSSecretAccessKey string
	SESEndpoint        string
}

// KafkaConfig configures the intake event stream. No brokers disables it.
type KafkaConfig struct {
	Brokers     []string
	IntakeTopic string
}

// TelemetryConfig controls OpenTelemetry tracing.
type TelemetryConfig struct {
	Enabled      bool
	OTLPEndpoint string
	ServiceName  string
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	maxConns := int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10))
	minConns := int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2))
	runMigrations := getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true)
	connMaxIdle := int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30))
	connMaxLife := int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300))

	appName := getEnv("APP_NAME", "helpdesk-intake")

	cfg := &Config{
		App: AppConfig{
			Name:                  appName,
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "8080"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 15),
		},
		Postgres: PostgresConfig{
			DSN:            os.Getenv("POSTGRES_DSN"),
			MaxConns:       maxConns,
			MinConns:       minConns,
			RunMigrations:  runMigrations,
			MigrationsDir:  getEnv("POSTGRES_MIGRATIONS_DIR", "migrations"),
			ConnMaxIdleSec: connMaxIdle,
			ConnMaxLifeSec: connMaxLife,
		},
		Redis: RedisConfig{
			Addr:     os.Getenv("REDIS_ADDR"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
		},
		Logger: LoggerConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Auth: AuthConfig{
			JWTSecret:       getEnv("AUTH_JWT_SECRET", "dev-secret"),
			TokenTTLMinutes: getEnvAsInt("AUTH_TOKEN_TTL_MINUTES", 60),
		},
		Intake: IntakeConfig{
			AckTimeoutSeconds:   getEnvAsInt("INTAKE_ACK_TIMEOUT_SECONDS", 10),
			AckAsync:            getEnvAsBool("INTAKE_ACK_ASYNC", true),
			AckWorkers:          getEnvAsInt("INTAKE_ACK_WORKERS", 16),
			DedupeTTLMinutes:    getEnvAsInt("INTAKE_DEDUPE_TTL_MINUTES", 24*60),
			AvatarBaseURL:       getEnv("INTAKE_AVATAR_BASE_URL", "https://api.dicebear.com/8.x/initials/svg"),
			DefaultAckTemplate:  os.Getenv("INTAKE_DEFAULT_ACK_TEMPLATE"),
			EventWorkers:        getEnvAsInt("INTAKE_EVENT_WORKERS", 4),
			EventQueueSize:      getEnvAsInt("INTAKE_EVENT_QUEUE_SIZE", 1024),
			EventTimeoutSeconds: getEnvAsInt("INTAKE_EVENT_TIMEOUT_SECONDS", 10),
		},
		WhatsApp: WhatsAppConfig{
			APIBaseURL:         getEnv("WHATSAPP_API_BASE_URL", "https://api.twilio.com"),
			SendTimeoutSeconds: getEnvAsInt("WHATSAPP_SEND_TIMEOUT_SECONDS", 10),
		},
		Email: EmailConfig{
			AWSRegion:          os.Getenv("AWS_REGION"),
			AWSAccessKeyID:     os.Getenv("AWS_ACCESS_KEY_ID"),
			AWSSecretAccessKey: os.Getenv("AWS_SECRET_ACCESS_KEY"),
			SESEndpoint:        os.Getenv("SES_ENDPOINT"),
		},
		Kafka: KafkaConfig{
			Brokers:     getEnvAsList("KAFKA_BROKERS"),
			IntakeTopic: getEnv("KAFKA_INTAKE_TOPIC", "helpdesk.intake.events"),
		},
		Telemetry: TelemetryConfig{
			Enabled:      getEnvAsBool("ENABLE_TELEMETRY", false),
			OTLPEndpoint: os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
			ServiceName:  getEnv("OTEL_SERVICE_NAME", appName),
		},
	}

	return cfg, nil
}

// Addr returns the HTTP bind address.
func (a AppConfig) Addr() string {
	return fmt.Sprintf("%s:%s", a.Host, a.Port)
}

// RequestTimeout returns the configured request timeout duration.
func (a AppConfig) RequestTimeout() time.Duration {
	if a.RequestTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(a.RequestTimeoutSeconds) * time.Second
}

// AckTimeout bounds a single acknowledgment send.
func (i IntakeConfig) AckTimeout() time.Duration {
	return secondsOr(i.AckTimeoutSeconds, 10)
}

// EventTimeout bounds delivery of one event to its subscribers.
func (i IntakeConfig) EventTimeout() time.Duration {
	return secondsOr(i.EventTimeoutSeconds, 10)
}

// DedupeTTL is how long a provider correlation id is remembered.
func (i IntakeConfig) DedupeTTL() time.Duration {
	if i.DedupeTTLMinutes <= 0 {
		return 0
	}
	return time.Duration(i.DedupeTTLMinutes) * time.Minute
}

// SendTimeout bounds an outbound provider HTTP call.
func (w WhatsAppConfig) SendTimeout() time.Duration {
	return secondsOr(w.SendTimeoutSeconds, 10)
}

func secondsOr(seconds, fallback int) time.Duration {
	if seconds <= 0 {
		seconds = fallback
	}
	return time.Duration(seconds) * time.Second
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsBool(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsList(key string) []string {
	val := os.Getenv(key)
	if val == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(val, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
