// Package config defines the gateway's runtime configuration: the
// JSON5 file on disk plus the environment-variable overlay that
// supplies every secret. Fields tagged json:"-" are never read from
// or written to the config file; they exist only in the process
// environment, matching the convention the service's predecessor used
// for provider API keys and database DSNs.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/titanous/json5"
)

// DatabaseConfig configures the Postgres connection.
type DatabaseConfig struct {
	PostgresDSN string `json:"-"`
}

// VaultConfig configures the credential vault's AES-256-GCM key.
// CurrentKeyID/CurrentKey are sourced entirely from the environment;
// PriorKeys lets old rows still be decrypted after a rotation.
type VaultConfig struct {
	CurrentKeyID string            `json:"-"`
	CurrentKey   string            `json:"-"`
	PriorKeys    map[string]string `json:"-"`
}

// BridgeServerConfig describes one MCP server the bridge can connect
// tool-bearing clients to, and how per-user credentials (if any) are
// injected into its transport.
type BridgeServerConfig struct {
	Name              string            `json:"name"`
	Transport         string            `json:"transport"` // stdio | sse | streamable-http
	Command           string            `json:"command,omitempty"`
	Args              []string          `json:"args,omitempty"`
	URL               string            `json:"url,omitempty"`
	Env               map[string]string `json:"env,omitempty"`
	Headers           map[string]string `json:"headers,omitempty"`
	TimeoutSec        int               `json:"timeout_sec,omitempty"`
	CredentialService string            `json:"credential_service,omitempty"` // maps to user_credentials.service
	CredentialHeader  string            `json:"credential_header,omitempty"`  // header name for injected credential
}

// SchedulerConfig tunes the poll loop.
type SchedulerConfig struct {
	PollIntervalSeconds int `json:"poll_interval_seconds"`
}

// RegistryConfig points at the filesystem agent directories.
type RegistryConfig struct {
	AgentsDir       string `json:"agents_dir"`
	SystemAgentsDir string `json:"system_agents_dir"`
}

// GatewayConfig configures the HTTP/WS listener.
type GatewayConfig struct {
	ListenAddr     string   `json:"listen_addr"`
	AllowedOrigins []string `json:"allowed_origins,omitempty"`
	RateLimitRPM   int      `json:"rate_limit_rpm,omitempty"`
	Token          string   `json:"-"` // bearer token for RPC auth, env-only
}

// Config is the top-level configuration tree, hot-swappable via
// ReplaceFrom while holding mu so concurrent readers never observe a
// half-updated struct.
type Config struct {
	Database  DatabaseConfig       `json:"-"`
	Vault     VaultConfig          `json:"-"`
	Gateway   GatewayConfig        `json:"gateway"`
	Scheduler SchedulerConfig      `json:"scheduler"`
	Registry  RegistryConfig       `json:"registry"`
	Bridges   []BridgeServerConfig `json:"bridges"`

	mu sync.RWMutex
}

// Default returns a config with sane defaults for local development.
func Default() *Config {
	return &Config{
		Gateway: GatewayConfig{
			ListenAddr: ":8080",
		},
		Scheduler: SchedulerConfig{
			PollIntervalSeconds: 60,
		},
		Registry: RegistryConfig{
			AgentsDir:       "agents",
			SystemAgentsDir: "system-agents",
		},
	}
}

// Load reads a JSON5 config file, falling back to Default() if the
// file does not exist, then applies environment overrides.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("config: read %s: %w", path, err)
			}
		} else {
			if err := json5.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("config: parse %s: %w", path, err)
			}
		}
	}

	applyEnvOverrides(cfg)
	return cfg, nil
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

// applyEnvOverrides loads every secret and deployment-specific value
// from the environment. Nothing here is ever persisted back to the
// config file.
func applyEnvOverrides(cfg *Config) {
	cfg.Database.PostgresDSN = envStr("GATEWAY_POSTGRES_DSN", cfg.Database.PostgresDSN)

	cfg.Vault.CurrentKeyID = envStr("GATEWAY_VAULT_KEY_ID", "v1")
	cfg.Vault.CurrentKey = envStr("GATEWAY_VAULT_KEY", cfg.Vault.CurrentKey)
	if raw := os.Getenv("GATEWAY_VAULT_PRIOR_KEYS"); raw != "" {
		prior := map[string]string{}
		if err := json.Unmarshal([]byte(raw), &prior); err == nil {
			cfg.Vault.PriorKeys = prior
		}
	}

	cfg.Gateway.ListenAddr = envStr("GATEWAY_LISTEN_ADDR", cfg.Gateway.ListenAddr)
	cfg.Gateway.Token = envStr("GATEWAY_TOKEN", cfg.Gateway.Token)
	cfg.Scheduler.PollIntervalSeconds = envInt("GATEWAY_SCHEDULER_POLL_SECONDS", cfg.Scheduler.PollIntervalSeconds)
}

// PollInterval returns the scheduler poll interval as a duration.
func (c *Config) PollInterval() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return time.Duration(c.Scheduler.PollIntervalSeconds) * time.Second
}

// ReplaceFrom atomically swaps the contents of c with src, preserving
// c's own mutex so existing readers never race a torn update.
func (c *Config) ReplaceFrom(src *Config) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Database = src.Database
	c.Vault = src.Vault
	c.Gateway = src.Gateway
	c.Scheduler = src.Scheduler
	c.Registry = src.Registry
	c.Bridges = src.Bridges
}

// BridgeServers returns a copy of the configured bridge server list
// under read lock.
func (c *Config) BridgeServers() []BridgeServerConfig {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]BridgeServerConfig, len(c.Bridges))
	copy(out, c.Bridges)
	return out
}
