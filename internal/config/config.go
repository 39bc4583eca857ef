// Package config loads the runtime configuration: defaults, an optional
// YAML file in the agent home directory, a .env file, and environment
// variable overrides, in that order of precedence (environment wins).
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// homeDirName is the per-user agent directory holding config and logs.
const homeDirName = ".shellpilot"

// Config is the full runtime configuration for one session.
type Config struct {
	APIKey      string  `yaml:"api_key"`
	BaseURL     string  `yaml:"base_url"`
	Model       string  `yaml:"model"`
	Temperature float64 `yaml:"temperature"`

	WorkDir           string `yaml:"work_dir"`
	ConfirmBeforeExec bool   `yaml:"confirm_before_exec"`
	CommandTimeoutS   int    `yaml:"command_timeout_s"`

	// CommandTimeout is CommandTimeoutS as a duration, derived at load.
	CommandTimeout time.Duration `yaml:"-"`

	MCPConfigPath string `yaml:"mcp_config_path"`

	MaxContextTokens   int `yaml:"max_context_tokens"`
	KeepRecentMessages int `yaml:"keep_recent_messages"`

	Debug bool `yaml:"debug"`

	// Derived at load time, not configurable.
	OSName    string `yaml:"-"`
	ShellType string `yaml:"-"`
	LogDir    string `yaml:"-"`
}

// Default returns the configuration before any file or environment input.
func Default() *Config {
	cfg := &Config{
		Model:              "gpt-4o-mini",
		Temperature:        0.2,
		WorkDir:            "./work",
		ConfirmBeforeExec:  true,
		CommandTimeoutS:    30,
		MCPConfigPath:      "./mcp_config.json",
		MaxContextTokens:   100_000,
		KeepRecentMessages: 10,
	}
	cfg.CommandTimeout = time.Duration(cfg.CommandTimeoutS) * time.Second
	cfg.OSName, cfg.ShellType = platformInfo()
	return cfg
}

func platformInfo() (osName, shellType string) {
	switch runtime.GOOS {
	case "darwin":
		return "macOS", "bash"
	case "linux":
		return "Linux", "bash"
	case "windows":
		return "Windows", "cmd"
	default:
		return runtime.GOOS, "bash"
	}
}

// Load builds the effective configuration. The work directory is created
// if missing; a missing API key is an error because nothing works without
// the oracle.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := Default()

	home, err := os.UserHomeDir()
	if err == nil {
		path := filepath.Join(home, homeDirName, "config.yaml")
		if data, readErr := os.ReadFile(path); readErr == nil {
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse %s: %w", path, err)
			}
		}
		cfg.LogDir = filepath.Join(home, homeDirName, "logs")
	}

	applyEnvOverrides(cfg)

	if cfg.APIKey == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY is not set (environment, .env, or config file)")
	}

	workDir, err := filepath.Abs(cfg.WorkDir)
	if err != nil {
		return nil, fmt.Errorf("resolve work dir: %w", err)
	}
	cfg.WorkDir = workDir
	if err := os.MkdirAll(cfg.WorkDir, 0o755); err != nil {
		return nil, fmt.Errorf("create work dir: %w", err)
	}

	if mcpPath, err := filepath.Abs(cfg.MCPConfigPath); err == nil {
		cfg.MCPConfigPath = mcpPath
	}

	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		cfg.APIKey = v
	}
	if v := os.Getenv("OPENAI_BASE_URL"); v != "" {
		cfg.BaseURL = v
	}
	if v := os.Getenv("OPENAI_MODEL"); v != "" {
		cfg.Model = v
	}
	if v := os.Getenv("MODEL_TEMPERATURE"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Temperature = f
		}
	}
	if v := os.Getenv("WORK_DIR"); v != "" {
		cfg.WorkDir = v
	}
	if v := os.Getenv("CONFIRM_BEFORE_EXEC"); v != "" {
		cfg.ConfirmBeforeExec = strings.EqualFold(v, "yes")
	}
	if v := os.Getenv("COMMAND_TIMEOUT_S"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.CommandTimeoutS = n
		}
	}
	cfg.CommandTimeout = time.Duration(cfg.CommandTimeoutS) * time.Second
	if v := os.Getenv("MCP_CONFIG_PATH"); v != "" {
		cfg.MCPConfigPath = v
	}
	if v := os.Getenv("MAX_CONTEXT_TOKENS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.MaxContextTokens = n
		}
	}
	if v := os.Getenv("KEEP_RECENT_MESSAGES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.KeepRecentMessages = n
		}
	}
	if v := os.Getenv("SHELLPILOT_DEBUG"); v != "" {
		cfg.Debug = strings.EqualFold(v, "true") || v == "1"
	}
}
