package config

import (
	"os"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.RedisHost != "localhost" || cfg.RedisPort != 6379 {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if len(cfg.Servers) != 1 || cfg.Servers[0].Name != "default" {
		t.Fatalf("expected one default server, got %+v", cfg.Servers)
	}
}

func TestLoadOverridesFromEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("REDIS_HOST", "redis.internal")
	t.Setenv("REDIS_PORT", "6380")
	t.Setenv("TEMPLATES_DIR", "/data/templates")
	t.Setenv("JENKINS_SERVERS", "staging=https://staging.jenkins,prod=https://prod.jenkins")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.RedisHost != "redis.internal" || cfg.RedisPort != 6380 {
		t.Fatalf("unexpected overrides: %+v", cfg)
	}
	if cfg.TemplatesDir != "/data/templates" {
		t.Fatalf("unexpected templates dir: %s", cfg.TemplatesDir)
	}
	if len(cfg.Servers) != 3 {
		t.Fatalf("expected default + 2 additional servers, got %+v", cfg.Servers)
	}
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{"REDIS_HOST", "REDIS_PORT", "TEMPLATES_DIR", "METADATA_DIR", "JENKINS_SERVER_NAME", "JENKINS_URL", "JENKINS_USERNAME", "JENKINS_PASSWORD", "JENKINS_SERVERS"} {
		os.Unsetenv(key)
	}
}
