// Package config loads the orchestrator's environment-variable
// configuration (§6 "Configuration") via viper, which the pack's services
// use for env-backed configuration instead of hand-rolled os.Getenv
// plumbing.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// JenkinsServer is one entry of the configured Jenkins server map (§6
// "Jenkins wire interface" implies multiple named servers; §3 "Deployment"
// keys a deployment by ServerName).
type JenkinsServer struct {
	Name     string
	URL      string
	Username string
	Password string
}

// Config is the orchestrator's fully resolved configuration.
type Config struct {
	RedisHost    string
	RedisPort    int
	TemplatesDir string
	MetadataDir  string

	DefaultServerName string
	DefaultUsername   string
	DefaultPassword   string
	Servers           []JenkinsServer
}

// Load reads configuration from the process environment, applying the
// defaults spec.md §6 names for REDIS_HOST/REDIS_PORT/TEMPLATES_DIR/
// METADATA_DIR and static fallback Jenkins credentials.
func Load() (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("")
	v.AutomaticEnv()
	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("TEMPLATES_DIR", "./templates")
	v.SetDefault("METADATA_DIR", "./metadata")
	v.SetDefault("JENKINS_SERVER_NAME", "default")
	v.SetDefault("JENKINS_URL", "http://localhost:8080")
	v.SetDefault("JENKINS_USERNAME", "admin")
	v.SetDefault("JENKINS_PASSWORD", "admin")

	cfg := &Config{
		RedisHost:         v.GetString("REDIS_HOST"),
		RedisPort:         v.GetInt("REDIS_PORT"),
		TemplatesDir:      v.GetString("TEMPLATES_DIR"),
		MetadataDir:       v.GetString("METADATA_DIR"),
		DefaultServerName: v.GetString("JENKINS_SERVER_NAME"),
		DefaultUsername:   v.GetString("JENKINS_USERNAME"),
		DefaultPassword:   v.GetString("JENKINS_PASSWORD"),
	}

	cfg.Servers = append(cfg.Servers, JenkinsServer{
		Name:     cfg.DefaultServerName,
		URL:      v.GetString("JENKINS_URL"),
		Username: cfg.DefaultUsername,
		Password: cfg.DefaultPassword,
	})
	cfg.Servers = append(cfg.Servers, additionalServers(v)...)

	if cfg.RedisHost == "" {
		return nil, fmt.Errorf("config: REDIS_HOST must not be empty")
	}
	return cfg, nil
}

// additionalServers parses JENKINS_SERVERS as a comma-separated list of
// name=url entries, letting an operator register more than one Jenkins
// server without a config file. Credentials for these default to the same
// fallback as the primary server; per-call username/password still
// override at the tool layer.
func additionalServers(v *viper.Viper) []JenkinsServer {
	raw := strings.TrimSpace(v.GetString("JENKINS_SERVERS"))
	if raw == "" {
		return nil
	}

	var servers []JenkinsServer
	for _, entry := range strings.Split(raw, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		name, url, ok := strings.Cut(entry, "=")
		if !ok {
			continue
		}
		servers = append(servers, JenkinsServer{
			Name:     strings.TrimSpace(name),
			URL:      strings.TrimSpace(url),
			Username: v.GetString("JENKINS_USERNAME"),
			Password: v.GetString("JENKINS_PASSWORD"),
		})
	}
	return servers
}
