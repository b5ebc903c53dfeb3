// Package config provides configuration loading and validation for the USDY oracle.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// Runtime modes.
const (
	// ModeFunction runs only the attested function and emits or submits its refresh transaction.
	ModeFunction = "function"
	// ModeLocal runs the function against an in-process ledger with the read/trigger API.
	ModeLocal = "local"
)

// Emit targets for the function's signed transaction.
const (
	EmitStdout = "stdout"
	EmitRPC    = "rpc"
)

// Ledger account stores.
const (
	StoreMemory = "memory"
	StoreRedis  = "redis"
)

// DefaultProgramID is the deployed oracle program.
const DefaultProgramID = "2LuPhyrumCFRXjeDuYp1bLNYp7EbzUraZcvrzN9ZBUkN"

// DefaultAttestationProgramID is the attestation program that owns function accounts.
const DefaultAttestationProgramID = "sbattyXrzedoNATfc4L31wC9Mhxsi1BmFhTiN8gDshx"

// EnvPrefix prefixes every environment override.
const EnvPrefix = "ORACLE"

// envOverrides are applied on top of the YAML file.
type envOverrides struct {
	Mode            string `envconfig:"MODE"`
	ProgramID       string `envconfig:"PROGRAM_ID"`
	FunctionAccount string `envconfig:"FUNCTION_ACCOUNT"`
	Emit            string `envconfig:"EMIT"`
	RPCURL          string `envconfig:"RPC_URL"`
	Store           string `envconfig:"LEDGER_STORE"`
	RedisAddr       string `envconfig:"REDIS_ADDR"`
	HTTPAddr        string `envconfig:"HTTP_ADDR"`
	LogLevel        string `envconfig:"LOG_LEVEL"`
}

// Load loads configuration from a .env file, the YAML file and ORACLE_* environment variables.
func Load(path string) (*Config, error) {
	// .env is optional
	_ = godotenv.Load()

	// Validate and sanitize path
	cleanPath := filepath.Clean(path)
	absPath, err := filepath.Abs(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("invalid config path: %w", err)
	}

	data, err := os.ReadFile(absPath) // #nosec G304 -- Path sanitized with filepath.Clean and filepath.Abs
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	return Parse(data)
}

// Parse parses YAML configuration bytes, expanding ${VAR} references and applying overrides and defaults.
func Parse(data []byte) (*Config, error) {
	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := applyEnv(&cfg); err != nil {
		return nil, fmt.Errorf("failed to read environment overrides: %w", err)
	}

	applyDefaults(&cfg)

	return &cfg, nil
}

func applyEnv(cfg *Config) error {
	var env envOverrides
	if err := envconfig.Process(EnvPrefix, &env); err != nil {
		return err
	}

	set := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	set(&cfg.Mode, env.Mode)
	set(&cfg.Program.ProgramID, env.ProgramID)
	set(&cfg.Function.Account, env.FunctionAccount)
	set(&cfg.Function.Emit, env.Emit)
	set(&cfg.Function.RPCURL, env.RPCURL)
	set(&cfg.Ledger.Store, env.Store)
	set(&cfg.Ledger.Redis.Addr, env.RedisAddr)
	set(&cfg.Server.HTTP.Addr, env.HTTPAddr)
	set(&cfg.Logging.Level, env.LogLevel)
	return nil
}

// applyDefaults sets default values for optional fields.
func applyDefaults(cfg *Config) {
	if cfg.Mode == "" {
		cfg.Mode = ModeFunction
	}

	// Program defaults
	if cfg.Program.ProgramID == "" {
		cfg.Program.ProgramID = DefaultProgramID
	}
	if cfg.Program.AttestationProgramID == "" {
		cfg.Program.AttestationProgramID = DefaultAttestationProgramID
	}

	// Function defaults
	if cfg.Function.Schedule == "" {
		cfg.Function.Schedule = "*/30 * * * * *"
	}
	if cfg.Function.Emit == "" {
		cfg.Function.Emit = EmitStdout
	}
	if cfg.Function.FetchTimeout.ToDuration() == 0 {
		cfg.Function.FetchTimeout = Duration(10 * time.Second)
	}
	if cfg.Function.CycleTimeout.ToDuration() == 0 {
		cfg.Function.CycleTimeout = Duration(60 * time.Second)
	}

	// Ledger defaults
	if cfg.Ledger.Store == "" {
		cfg.Ledger.Store = StoreMemory
	}
	if cfg.Ledger.Redis.Prefix == "" {
		cfg.Ledger.Redis.Prefix = "usdy:"
	}
	if cfg.Ledger.MaxRowAge.ToDuration() == 0 {
		cfg.Ledger.MaxRowAge = Duration(300 * time.Second)
	}
	if cfg.Ledger.SlotTime.ToDuration() == 0 {
		cfg.Ledger.SlotTime = Duration(400 * time.Millisecond)
	}

	// Server defaults
	if cfg.Server.HTTP.Addr == "" {
		cfg.Server.HTTP.Addr = ":8080"
	}
	if cfg.Server.TriggerRate == 0 {
		cfg.Server.TriggerRate = 0.2
	}
	if cfg.Server.TriggerBurst == 0 {
		cfg.Server.TriggerBurst = 1
	}

	// Metrics defaults
	if cfg.Metrics.Enabled && cfg.Metrics.Addr == "" {
		cfg.Metrics.Addr = ":9091"
	}
	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = "/metrics"
	}

	// Logging defaults
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
	if cfg.Logging.Output == "" {
		cfg.Logging.Output = "stdout"
	}
}

// GetString retrieves a string value from the source configuration.
func (sc *SourceConfig) GetString(key, defaultValue string) string {
	if val, ok := sc.Config[key]; ok {
		if str, ok := val.(string); ok {
			return str
		}
	}
	return defaultValue
}

// GetStringSlice retrieves a string slice from source config.
func (sc *SourceConfig) GetStringSlice(key string) []string {
	if val, ok := sc.Config[key]; ok {
		if slice, ok := val.([]interface{}); ok {
			result := make([]string, 0, len(slice))
			for _, item := range slice {
				if str, ok := item.(string); ok {
					result = append(result, str)
				}
			}
			return result
		}
	}
	return nil
}

// GetInt retrieves an integer from source config.
func (sc *SourceConfig) GetInt(key string, defaultValue int) int {
	if val, ok := sc.Config[key]; ok {
		if i, ok := val.(int); ok {
			return i
		}
	}
	return defaultValue
}

// GetBool retrieves a boolean from source config.
func (sc *SourceConfig) GetBool(key string, defaultValue bool) bool {
	if val, ok := sc.Config[key]; ok {
		if b, ok := val.(bool); ok {
			return b
		}
	}
	return defaultValue
}

// EnabledSources returns the enabled source configs.
func (c *Config) EnabledSources() []SourceConfig {
	out := make([]SourceConfig, 0, len(c.Sources))
	for _, s := range c.Sources {
		if s.Enabled {
			out = append(out, s)
		}
	}
	return out
}

// NormalizeMode converts mode string to lowercase.
func (c *Config) NormalizeMode() string {
	return strings.ToLower(c.Mode)
}

// IsLocalMode returns true if the in-process ledger and API should run.
func (c *Config) IsLocalMode() bool {
	return c.NormalizeMode() == ModeLocal
}

// IsFunctionMode returns true if only the function should run.
func (c *Config) IsFunctionMode() bool {
	return c.NormalizeMode() == ModeFunction
}
