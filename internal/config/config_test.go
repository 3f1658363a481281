package config

import (
	"testing"
	"time"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg := LoadConfig()

	if cfg.Environment != "development" {
		t.Errorf("Environment = %q, want development", cfg.Environment)
	}
	if got := cfg.GetServerAddress(); got != "0.0.0.0:8000" {
		t.Errorf("GetServerAddress() = %q, want 0.0.0.0:8000", got)
	}
	if cfg.Verification.ImageCodeTTL != 300*time.Second {
		t.Errorf("ImageCodeTTL = %v, want 300s", cfg.Verification.ImageCodeTTL)
	}
	if cfg.Verification.SMSCodeTTL != 300*time.Second {
		t.Errorf("SMSCodeTTL = %v, want 300s", cfg.Verification.SMSCodeTTL)
	}
	if cfg.Verification.SendInterval != 60*time.Second {
		t.Errorf("SendInterval = %v, want 60s", cfg.Verification.SendInterval)
	}
	if cfg.Verification.SMSConsumeOnVerify {
		t.Error("SMSConsumeOnVerify should default to false")
	}
	if cfg.Bucketing.UserBuckets != 64 {
		t.Errorf("UserBuckets = %d, want 64", cfg.Bucketing.UserBuckets)
	}
	if cfg.Session.RememberTTL != 14*24*time.Hour {
		t.Errorf("RememberTTL = %v, want 336h", cfg.Session.RememberTTL)
	}
	if cfg.Kafka.Enabled || cfg.Elasticsearch.Enabled || cfg.Clickhouse.Enabled {
		t.Error("optional backends should default to disabled")
	}
}

func TestLoadConfigFromEnvironment(t *testing.T) {
	t.Setenv("ENVIRONMENT", "production")
	t.Setenv("SERVER_HOST", "10.0.0.5")
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("SCYLLA_NODES", "node-a:9042,node-b:9042")
	t.Setenv("SMS_SEND_INTERVAL", "90s")
	t.Setenv("VERIFY_SMS_CONSUME", "true")
	t.Setenv("KAFKA_ENABLED", "true")

	cfg := LoadConfig()

	if !cfg.IsProduction() {
		t.Error("expected IsProduction() to be true")
	}
	if got := cfg.GetServerAddress(); got != "10.0.0.5:9090" {
		t.Errorf("GetServerAddress() = %q, want 10.0.0.5:9090", got)
	}
	if len(cfg.Scylla.Nodes) != 2 || cfg.Scylla.Nodes[1] != "node-b:9042" {
		t.Errorf("Scylla.Nodes = %v, want two nodes", cfg.Scylla.Nodes)
	}
	if cfg.Verification.SendInterval != 90*time.Second {
		t.Errorf("SendInterval = %v, want 90s", cfg.Verification.SendInterval)
	}
	if !cfg.Verification.SMSConsumeOnVerify {
		t.Error("expected SMSConsumeOnVerify to be true")
	}
	if !cfg.Kafka.Enabled {
		t.Error("expected Kafka.Enabled to be true")
	}
}

func TestLoadConfigIgnoresMalformedValues(t *testing.T) {
	t.Setenv("SERVER_PORT", "not-a-number")
	t.Setenv("SMS_SEND_INTERVAL", "soon")
	t.Setenv("KAFKA_ENABLED", "yes-please")

	cfg := LoadConfig()

	if cfg.Server.Port != 8000 {
		t.Errorf("Server.Port = %d, want fallback 8000", cfg.Server.Port)
	}
	if cfg.Verification.SendInterval != 60*time.Second {
		t.Errorf("SendInterval = %v, want fallback 60s", cfg.Verification.SendInterval)
	}
	if cfg.Kafka.Enabled {
		t.Error("malformed bool should fall back to false")
	}
}
