package common

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	toml "github.com/pelletier/go-toml/v2"
)

// Config holds all configuration for flytel-agent.
type Config struct {
	Agent     AgentConfig     `toml:"agent"`
	LLM       LLMConfig       `toml:"llm"`
	Gateway   GatewayConfig   `toml:"gateway"`
	Inventory InventoryConfig `toml:"inventory"`
	MCP       MCPConfig       `toml:"mcp"`
	Logging   LoggingConfig   `toml:"logging"`
}

// AgentConfig holds dispatch-loop settings.
type AgentConfig struct {
	// MaxIterations bounds the tool-call/answer loop within one user turn.
	MaxIterations int `toml:"max_iterations"`
	// ArchiveDir is where /save writes conversation transcripts.
	ArchiveDir string `toml:"archive_dir"`
}

// LLMConfig holds reasoning-service settings. Local is an OpenAI-compatible
// endpoint served by Ollama; Remote is a hosted endpoint with an API key.
type LLMConfig struct {
	// Chat selects which model drives the conversation: "local" or "remote".
	Chat   string      `toml:"chat"`
	Local  ModelConfig `toml:"local"`
	Remote ModelConfig `toml:"remote"`
}

// ModelConfig describes one OpenAI-compatible chat endpoint.
type ModelConfig struct {
	BaseURL string `toml:"base_url"`
	APIKey  string `toml:"api_key"`
	Model   string `toml:"model"`
	Timeout string `toml:"timeout"`
}

// GetTimeout parses and returns the timeout duration
func (c *ModelConfig) GetTimeout() time.Duration {
	d, err := time.ParseDuration(c.Timeout)
	if err != nil {
		return 30 * time.Second
	}
	return d
}

// GatewayConfig holds the external API gateway settings. An empty DatabasePath
// or an empty source identity disables the gateway for the session.
type GatewayConfig struct {
	DatabasePath string `toml:"database_path"`
	SourceName   string `toml:"source_name"`
	SourceID     int64  `toml:"source_id"`
	BearerToken  string `toml:"bearer_token"`
	// ToolMode is "per_operation" (one tool per catalog operation) or
	// "generic" (a single dispatch tool carrying the rendered catalog).
	ToolMode string `toml:"tool_mode"`
	// CatalogCap caps how many operations the generic tool description renders.
	CatalogCap int `toml:"catalog_cap"`
	// Resolver selects the first resolution strategy: "keyword", "local" or "remote".
	Resolver string `toml:"resolver"`
	// RateLimit is the max external API requests per second (0 = unlimited).
	RateLimit float64 `toml:"rate_limit"`
	Timeout   string  `toml:"timeout"`
	// CacheTTL is how long GET responses are reused before refetching
	// ("0" disables caching). CacheSize caps the number of cached responses.
	CacheTTL  string `toml:"cache_ttl"`
	CacheSize int    `toml:"cache_size"`
}

// GetCacheTTL parses and returns the response cache TTL; zero disables caching.
func (c *GatewayConfig) GetCacheTTL() time.Duration {
	d, err := time.ParseDuration(c.CacheTTL)
	if err != nil {
		return 0
	}
	return d
}

// GetTimeout parses and returns the timeout duration
func (c *GatewayConfig) GetTimeout() time.Duration {
	d, err := time.ParseDuration(c.Timeout)
	if err != nil {
		return 30 * time.Second
	}
	return d
}

// InventoryConfig holds local dataset settings.
type InventoryConfig struct {
	DataDir string `toml:"data_dir"`
}

// MCPConfig holds MCP server settings for flytel-mcp.
type MCPConfig struct {
	Name string `toml:"name"`
	Port string `toml:"port"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level      string   `toml:"level"`
	Outputs    []string `toml:"outputs"`
	FilePath   string   `toml:"file_path"`
	MaxSizeMB  int      `toml:"max_size_mb"`
	MaxBackups int      `toml:"max_backups"`
}

// NewDefaultConfig returns a Config with sensible defaults
func NewDefaultConfig() *Config {
	return &Config{
		Agent: AgentConfig{
			MaxIterations: 10,
			ArchiveDir:    "conversations",
		},
		LLM: LLMConfig{
			Chat: "local",
			Local: ModelConfig{
				BaseURL: "http://localhost:11434/v1",
				Model:   "functiongemma",
				Timeout: "120s",
			},
			Remote: ModelConfig{
				BaseURL: "https://api.openai.com/v1",
				Model:   "gpt-4o-mini",
				Timeout: "60s",
			},
		},
		Gateway: GatewayConfig{
			DatabasePath: "",
			ToolMode:     "per_operation",
			CatalogCap:   200,
			Resolver:     "keyword",
			Timeout:      "30s",
			CacheTTL:     "0",
			CacheSize:    256,
		},
		Inventory: InventoryConfig{
			DataDir: "data",
		},
		MCP: MCPConfig{
			Name: "Flytel-MCP",
			Port: "4343",
		},
		Logging: LoggingConfig{
			Level:      "info",
			Outputs:    []string{"console", "file"},
			FilePath:   "logs/flytel-agent.log",
			MaxSizeMB:  100,
			MaxBackups: 3,
		},
	}
}

// LoadConfig loads configuration from files with environment overrides.
// Later files override earlier files; missing files are skipped.
func LoadConfig(paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	for _, path := range paths {
		if path == "" {
			continue
		}

		if _, err := os.Stat(path); os.IsNotExist(err) {
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	applyEnvOverrides(config)
	normalizeConfig(config)

	return config, nil
}

// LoadDotEnv loads a .env file into the process environment, walking up from
// the working directory until one is found. Missing .env is not an error.
func LoadDotEnv() {
	dir, err := os.Getwd()
	if err != nil {
		return
	}
	for range [5]struct{}{} {
		path := filepath.Join(dir, ".env")
		if _, err := os.Stat(path); err == nil {
			_ = godotenv.Load(path)
			return
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return
		}
		dir = parent
	}
}

// applyEnvOverrides applies environment variable overrides to config
func applyEnvOverrides(config *Config) {
	if path := os.Getenv("FLYTEL_DATABASE_PATH"); path != "" {
		config.Gateway.DatabasePath = path
	} else if path := os.Getenv("DATABASE_PATH"); path != "" {
		config.Gateway.DatabasePath = path
	}

	if name := os.Getenv("API_SOURCE_NAME"); name != "" {
		config.Gateway.SourceName = name
	}
	if id := os.Getenv("API_SOURCE_ID"); id != "" {
		if v, err := strconv.ParseInt(id, 10, 64); err == nil {
			config.Gateway.SourceID = v
		}
	}

	if token := os.Getenv("EXTERNAL_API_BEARER_TOKEN"); token != "" {
		config.Gateway.BearerToken = token
	} else if token := os.Getenv("BEARER_TOKEN"); token != "" {
		config.Gateway.BearerToken = token
	}

	if resolver := os.Getenv("FLYTEL_RESOLVER"); resolver != "" {
		config.Gateway.Resolver = resolver
	}
	if mode := os.Getenv("FLYTEL_TOOL_MODE"); mode != "" {
		config.Gateway.ToolMode = mode
	}

	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		config.LLM.Remote.APIKey = key
	}
	if url := os.Getenv("OPENAI_BASE_URL"); url != "" {
		config.LLM.Remote.BaseURL = url
	}
	if url := os.Getenv("OLLAMA_BASE_URL"); url != "" {
		config.LLM.Local.BaseURL = url
	}
	if model := os.Getenv("OLLAMA_MODEL"); model != "" {
		config.LLM.Local.Model = model
	}

	if level := os.Getenv("FLYTEL_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}
	if port := os.Getenv("FLYTEL_MCP_PORT"); port != "" {
		config.MCP.Port = port
	}
	if dir := os.Getenv("FLYTEL_DATA_DIR"); dir != "" {
		config.Inventory.DataDir = dir
	}
}

// normalizeConfig maps value aliases to their canonical forms.
func normalizeConfig(config *Config) {
	config.Gateway.Resolver = strings.ToLower(strings.TrimSpace(config.Gateway.Resolver))
	switch config.Gateway.Resolver {
	case "keyword", "local", "remote":
	default:
		config.Gateway.Resolver = "keyword"
	}

	config.Gateway.ToolMode = strings.ToLower(strings.TrimSpace(config.Gateway.ToolMode))
	switch config.Gateway.ToolMode {
	case "per_operation", "generic":
	default:
		config.Gateway.ToolMode = "per_operation"
	}

	if config.LLM.Chat != "remote" {
		config.LLM.Chat = "local"
	}
	if config.Agent.MaxIterations <= 0 {
		config.Agent.MaxIterations = 10
	}
}

// ChatModel returns the model definition selected to drive the conversation.
func (c *Config) ChatModel() ModelConfig {
	if c.LLM.Chat == "remote" {
		return c.LLM.Remote
	}
	return c.LLM.Local
}

// GatewayEnabled reports whether the external API gateway is configured.
// A missing database path or source identity means the gateway is simply
// disabled for the session, never an error.
func (c *Config) GatewayEnabled() bool {
	if c.Gateway.DatabasePath == "" {
		return false
	}
	return c.Gateway.SourceName != "" || c.Gateway.SourceID > 0
}
