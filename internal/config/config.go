package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Queue backends.
const (
	QueueSQS    = "sqs"
	QueueKafka  = "kafka"
	QueueMemory = "memory"
)

// Store backends.
const (
	StoreDynamoDB = "dynamodb"
	StorePostgres = "postgres"
	StoreRedis    = "redis"
	StoreMemory   = "memory"
)

// Authorization modes.
const (
	AuthzAllowList = "allowlist"
	AuthzStore     = "store"
	AuthzNone      = "none"
)

// Payload contracts.
const (
	ContractMinimal  = "minimal"
	ContractEnvelope = "envelope"
)

// Config captures all runtime configuration of the cancellation service.
type Config struct {
	App          AppConfig
	Queue        QueueConfig
	Store        StoreConfig
	AWS          AWSConfig
	Auth         AuthConfig
	Cancellation CancellationConfig
}

// AppConfig contains generic application level settings.
type AppConfig struct {
	Env      string
	HTTPPort int
	LogLevel string
}

// QueueConfig selects and configures the queue the cancellations go to.
type QueueConfig struct {
	Backend      string
	SQSQueueURL  string
	KafkaBrokers []string
	KafkaTopic   string
	// KafkaMetadataRefreshSeconds is the producer metadata refresh period.
	KafkaMetadataRefreshSeconds int
}

// StoreConfig selects and configures the status store and access index.
type StoreConfig struct {
	Backend         string
	TableName       string
	PartitionKey    string
	SortKey         string
	AccessTableName string
	AccessIndexName string
	PostgresDSN     string
	RedisAddr       string
}

// AWSConfig holds optional overrides for the AWS SDK clients.
type AWSConfig struct {
	Region      string
	EndpointURL string
}

// AuthConfig controls authentication and authorization.
type AuthConfig struct {
	// Token is the expected bearer token; empty disables authentication.
	Token            string
	AllowedClientIDs []string
	Mode             string
}

// CancellationConfig holds the business rules of the validator.
type CancellationConfig struct {
	Contract        string
	DeadlineMinutes int
}

// Deadline returns the cancellation window as a duration.
func (c CancellationConfig) Deadline() time.Duration {
	return time.Duration(c.DeadlineMinutes) * time.Minute
}

// Load reads environment variables (and a .env file when present), applies
// defaults, validates required values and returns a populated Config.
func Load() (*Config, error) {
	_ = godotenv.Load()

	ldr := &envLoader{}

	cfg := &Config{}
	cfg.App.Env = ldr.getString("APP_ENV", "production", false)
	cfg.App.HTTPPort = ldr.getInt("HTTP_PORT", 8080, false)
	cfg.App.LogLevel = ldr.getString("LOG_LEVEL", "info", false)

	cfg.Queue.Backend = ldr.getOneOf("QUEUE_BACKEND", QueueSQS, QueueSQS, QueueKafka, QueueMemory)
	switch cfg.Queue.Backend {
	case QueueSQS:
		cfg.Queue.SQSQueueURL = ldr.getString("SQS_QUEUE_URL", "", true)
	case QueueKafka:
		cfg.Queue.KafkaBrokers = ldr.getStringSlice("KAFKA_BROKERS", true)
		cfg.Queue.KafkaTopic = ldr.getString("KAFKA_TOPIC", "", true)
		cfg.Queue.KafkaMetadataRefreshSeconds = ldr.getInt("KAFKA_METADATA_REFRESH_SECONDS", 30, false)
		if cfg.Queue.KafkaMetadataRefreshSeconds <= 0 {
			ldr.addError("KAFKA_METADATA_REFRESH_SECONDS must be positive")
		}
	}

	cfg.Store.Backend = ldr.getOneOf("STORE_BACKEND", StoreDynamoDB, StoreDynamoDB, StorePostgres, StoreRedis, StoreMemory)
	cfg.Store.TableName = ldr.getString("DCE_TABLE_NAME", "", true)
	cfg.Store.PartitionKey = ldr.getString("DCE_TABLE_PK", "pk", false)
	cfg.Store.SortKey = ldr.getString("DCE_TABLE_SK", "sk", false)
	cfg.Store.AccessTableName = ldr.getString("ACCESS_TABLE_NAME", ldr.getString("LOG_DCE_TABLE_NAME", "", false), false)
	cfg.Store.AccessIndexName = ldr.getString("ACCESS_INDEX_NAME", "", false)
	switch cfg.Store.Backend {
	case StorePostgres:
		cfg.Store.PostgresDSN = ldr.getString("POSTGRES_DSN", "", true)
	case StoreRedis:
		cfg.Store.RedisAddr = ldr.getString("REDIS_ADDR", "", true)
	}

	cfg.AWS.Region = ldr.getString("AWS_REGION", "", false)
	cfg.AWS.EndpointURL = ldr.getString("AWS_ENDPOINT_URL", "", false)

	cfg.Auth.Token = ldr.getString("API_AUTH_TOKEN", "", false)
	cfg.Auth.AllowedClientIDs = ldr.getStringSlice("ALLOWED_CLIENT_IDS", false)
	cfg.Auth.Mode = ldr.getOneOf("AUTHZ_MODE", defaultAuthzMode(cfg), AuthzAllowList, AuthzStore, AuthzNone)
	switch cfg.Auth.Mode {
	case AuthzAllowList:
		if len(cfg.Auth.AllowedClientIDs) == 0 {
			ldr.addError("ALLOWED_CLIENT_IDS must contain at least one entry when AUTHZ_MODE is allowlist")
		}
	case AuthzStore:
		if cfg.Store.AccessTableName == "" {
			ldr.addError("ACCESS_TABLE_NAME is required when AUTHZ_MODE is store")
		}
	}

	cfg.Cancellation.Contract = ldr.getOneOf("PAYLOAD_CONTRACT", ContractMinimal, ContractMinimal, ContractEnvelope)
	cfg.Cancellation.DeadlineMinutes = ldr.getInt("CANCELLATION_DEADLINE_MINUTES", 1440, false)
	if cfg.Cancellation.DeadlineMinutes < 0 {
		ldr.addError("CANCELLATION_DEADLINE_MINUTES must not be negative")
	}

	if err := ldr.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// defaultAuthzMode derives the authorization mode when AUTHZ_MODE is unset:
// an allow-list wins, then an access table, else none.
func defaultAuthzMode(cfg *Config) string {
	switch {
	case len(cfg.Auth.AllowedClientIDs) > 0:
		return AuthzAllowList
	case cfg.Store.AccessTableName != "":
		return AuthzStore
	default:
		return AuthzNone
	}
}

type envLoader struct {
	errs []string
}

func (l *envLoader) validate() error {
	if len(l.errs) == 0 {
		return nil
	}
	return fmt.Errorf("config validation failed: %s", strings.Join(l.errs, "; "))
}

func (l *envLoader) getString(key, def string, required bool) string {
	if val, ok := os.LookupEnv(key); ok {
		val = strings.TrimSpace(val)
		if val == "" {
			if required {
				l.addError(fmt.Sprintf("%s is required", key))
			}
			return def
		}
		return val
	}
	if required {
		l.addError(fmt.Sprintf("%s is required", key))
	}
	return def
}

func (l *envLoader) getInt(key string, def int, required bool) int {
	if val, ok := os.LookupEnv(key); ok {
		val = strings.TrimSpace(val)
		if val == "" {
			if required {
				l.addError(fmt.Sprintf("%s is required", key))
			}
			return def
		}
		i, err := strconv.Atoi(val)
		if err != nil {
			l.addError(fmt.Sprintf("%s must be a valid integer", key))
			return def
		}
		return i
	}
	if required {
		l.addError(fmt.Sprintf("%s is required", key))
	}
	return def
}

// getOneOf reads a lower-cased enum value, recording an error when it is not
// one of allowed.
func (l *envLoader) getOneOf(key, def string, allowed ...string) string {
	val := strings.ToLower(l.getString(key, def, false))
	for _, a := range allowed {
		if val == a {
			return val
		}
	}
	l.addError(fmt.Sprintf("%s must be one of %s", key, strings.Join(allowed, ", ")))
	return def
}

func (l *envLoader) getStringSlice(key string, required bool) []string {
	raw := l.getString(key, "", required)
	if raw == "" {
		if required {
			return nil
		}
		return []string{}
	}
	parts := strings.Split(raw, ",")
	var out []string
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	if required && len(out) == 0 {
		l.addError(fmt.Sprintf("%s must contain at least one entry", key))
	}
	return out
}

func (l *envLoader) addError(err string) {
	l.errs = append(l.errs, err)
}
