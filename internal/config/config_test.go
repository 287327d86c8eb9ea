package config_test

import (
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/fiscaldocs/dce-cancel/internal/config"
)

var knownKeys = []string{
	"APP_ENV", "HTTP_PORT", "LOG_LEVEL",
	"QUEUE_BACKEND", "SQS_QUEUE_URL", "KAFKA_BROKERS", "KAFKA_TOPIC", "KAFKA_METADATA_REFRESH_SECONDS",
	"STORE_BACKEND", "DCE_TABLE_NAME", "DCE_TABLE_PK", "DCE_TABLE_SK",
	"ACCESS_TABLE_NAME", "LOG_DCE_TABLE_NAME", "ACCESS_INDEX_NAME", "POSTGRES_DSN", "REDIS_ADDR",
	"AWS_REGION", "AWS_ENDPOINT_URL",
	"API_AUTH_TOKEN", "ALLOWED_CLIENT_IDS", "AUTHZ_MODE",
	"PAYLOAD_CONTRACT", "CANCELLATION_DEADLINE_MINUTES",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range knownKeys {
		t.Setenv(key, "")
	}
}

func setCommonRequiredEnv(t *testing.T) {
	t.Helper()
	clearEnv(t)
	t.Setenv("SQS_QUEUE_URL", "https://sqs.queue")
	t.Setenv("DCE_TABLE_NAME", "dce-table")
}

func TestLoadDefaults(t *testing.T) {
	setCommonRequiredEnv(t)

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Queue.Backend != config.QueueSQS || cfg.Queue.SQSQueueURL != "https://sqs.queue" {
		t.Fatalf("unexpected queue config %+v", cfg.Queue)
	}
	if cfg.Store.Backend != config.StoreDynamoDB || cfg.Store.TableName != "dce-table" {
		t.Fatalf("unexpected store config %+v", cfg.Store)
	}
	if cfg.Store.PartitionKey != "pk" || cfg.Store.SortKey != "sk" {
		t.Fatalf("expected default key names pk/sk, got %s/%s", cfg.Store.PartitionKey, cfg.Store.SortKey)
	}
	if cfg.Auth.Token != "" || cfg.Auth.Mode != config.AuthzNone {
		t.Fatalf("expected open auth by default, got %+v", cfg.Auth)
	}
	if cfg.Cancellation.Contract != config.ContractMinimal {
		t.Fatalf("expected minimal contract, got %s", cfg.Cancellation.Contract)
	}
	if cfg.Cancellation.DeadlineMinutes != 1440 || cfg.Cancellation.Deadline() != 24*time.Hour {
		t.Fatalf("expected 1440 minute deadline, got %d", cfg.Cancellation.DeadlineMinutes)
	}
	if cfg.App.LogLevel != "info" || cfg.App.HTTPPort != 8080 {
		t.Fatalf("unexpected app config %+v", cfg.App)
	}
}

func TestLoadAllowList(t *testing.T) {
	setCommonRequiredEnv(t)
	t.Setenv("API_AUTH_TOKEN", "secret")
	t.Setenv("ALLOWED_CLIENT_IDS", "partner-123, partner-456,,")
	t.Setenv("CANCELLATION_DEADLINE_MINUTES", "525600")

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []string{"partner-123", "partner-456"}
	if !reflect.DeepEqual(cfg.Auth.AllowedClientIDs, want) {
		t.Fatalf("expected allowed ids %v, got %v", want, cfg.Auth.AllowedClientIDs)
	}
	if cfg.Auth.Mode != config.AuthzAllowList {
		t.Fatalf("expected allowlist mode derived from ALLOWED_CLIENT_IDS, got %s", cfg.Auth.Mode)
	}
	if cfg.Auth.Token != "secret" {
		t.Fatalf("expected auth token, got %q", cfg.Auth.Token)
	}
	if cfg.Cancellation.DeadlineMinutes != 525600 {
		t.Fatalf("unexpected deadline %d", cfg.Cancellation.DeadlineMinutes)
	}
}

func TestLoadStoreModeFromLegacyTableName(t *testing.T) {
	setCommonRequiredEnv(t)
	t.Setenv("LOG_DCE_TABLE_NAME", "logDce")

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Store.AccessTableName != "logDce" {
		t.Fatalf("expected access table from LOG_DCE_TABLE_NAME, got %q", cfg.Store.AccessTableName)
	}
	if cfg.Auth.Mode != config.AuthzStore {
		t.Fatalf("expected store mode, got %s", cfg.Auth.Mode)
	}
}

func TestLoadExplicitModeOverrides(t *testing.T) {
	setCommonRequiredEnv(t)
	t.Setenv("ALLOWED_CLIENT_IDS", "partner-123")
	t.Setenv("ACCESS_TABLE_NAME", "access")
	t.Setenv("AUTHZ_MODE", "STORE")

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Auth.Mode != config.AuthzStore {
		t.Fatalf("expected explicit store mode, got %s", cfg.Auth.Mode)
	}
}

func TestLoadKafkaBackend(t *testing.T) {
	clearEnv(t)
	t.Setenv("QUEUE_BACKEND", "kafka")
	t.Setenv("KAFKA_BROKERS", "broker-a:9092, broker-b:9093")
	t.Setenv("KAFKA_TOPIC", "dce.cancellations")
	t.Setenv("STORE_BACKEND", "postgres")
	t.Setenv("POSTGRES_DSN", "postgres://localhost/dce")
	t.Setenv("DCE_TABLE_NAME", "dce_status")

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	wantBrokers := []string{"broker-a:9092", "broker-b:9093"}
	if !reflect.DeepEqual(cfg.Queue.KafkaBrokers, wantBrokers) {
		t.Fatalf("expected brokers %v, got %v", wantBrokers, cfg.Queue.KafkaBrokers)
	}
	if cfg.Queue.KafkaTopic != "dce.cancellations" || cfg.Queue.SQSQueueURL != "" {
		t.Fatalf("unexpected queue config %+v", cfg.Queue)
	}
	if cfg.Queue.KafkaMetadataRefreshSeconds != 30 {
		t.Fatalf("expected default metadata refresh of 30s, got %d", cfg.Queue.KafkaMetadataRefreshSeconds)
	}
	if cfg.Store.PostgresDSN != "postgres://localhost/dce" {
		t.Fatalf("unexpected store config %+v", cfg.Store)
	}
}

func TestLoadMissingRequired(t *testing.T) {
	clearEnv(t)
	t.Setenv("STORE_BACKEND", "redis")
	t.Setenv("AUTHZ_MODE", "allowlist")

	_, err := config.Load()
	if err == nil {
		t.Fatalf("expected error when required values are missing")
	}

	msg := err.Error()
	for _, want := range []string{
		"SQS_QUEUE_URL is required",
		"DCE_TABLE_NAME is required",
		"REDIS_ADDR is required",
		"ALLOWED_CLIENT_IDS must contain at least one entry",
	} {
		if !strings.Contains(msg, want) {
			t.Fatalf("expected error to mention %q, got %q", want, msg)
		}
	}
}

func TestLoadInvalidValues(t *testing.T) {
	setCommonRequiredEnv(t)
	t.Setenv("QUEUE_BACKEND", "rabbitmq")
	t.Setenv("PAYLOAD_CONTRACT", "v3")
	t.Setenv("CANCELLATION_DEADLINE_MINUTES", "soon")

	_, err := config.Load()
	if err == nil {
		t.Fatalf("expected error for invalid values")
	}

	msg := err.Error()
	for _, want := range []string{
		"QUEUE_BACKEND must be one of",
		"PAYLOAD_CONTRACT must be one of",
		"CANCELLATION_DEADLINE_MINUTES must be a valid integer",
	} {
		if !strings.Contains(msg, want) {
			t.Fatalf("expected error to mention %q, got %q", want, msg)
		}
	}
}

func TestLoadKafkaRefreshMustBePositive(t *testing.T) {
	clearEnv(t)
	t.Setenv("QUEUE_BACKEND", "kafka")
	t.Setenv("KAFKA_BROKERS", "broker-a:9092")
	t.Setenv("KAFKA_TOPIC", "dce.cancellations")
	t.Setenv("KAFKA_METADATA_REFRESH_SECONDS", "0")
	t.Setenv("DCE_TABLE_NAME", "dce-table")

	_, err := config.Load()
	if err == nil || !strings.Contains(err.Error(), "KAFKA_METADATA_REFRESH_SECONDS must be positive") {
		t.Fatalf("expected refresh interval error, got %v", err)
	}
}
