package config

import "time"

// Config is the root configuration structure
type Config struct {
	Mode     string         `yaml:"mode"`
	Program  ProgramConfig  `yaml:"program"`
	Function FunctionConfig `yaml:"function"`
	Sources  []SourceConfig `yaml:"sources"`
	Symbols  []SymbolConfig `yaml:"symbols"`
	Ledger   LedgerConfig   `yaml:"ledger"`
	Server   ServerConfig   `yaml:"server"`
	Metrics  MetricsConfig  `yaml:"metrics"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// ProgramConfig identifies the on-ledger oracle program and its attestation collaborators
type ProgramConfig struct {
	ProgramID            string `yaml:"program_id"`
	AttestationProgramID string `yaml:"attestation_program_id"`
	AttestationQueue     string `yaml:"attestation_queue"`
}

// FunctionConfig configures the off-ledger attested function
type FunctionConfig struct {
	Account          string   `yaml:"account"`           // Function account public key (the bound writer)
	Schedule         string   `yaml:"schedule"`          // Cron expression with seconds field
	Keypair          string   `yaml:"keypair"`           // Enclave signer keygen JSON file
	KeypairEnv       string   `yaml:"keypair_env"`       // Environment variable holding a base58 enclave signer key
	AuthorityKeypair string   `yaml:"authority_keypair"` // Program authority keygen JSON file (local mode, trigger endpoint)
	Emit             string   `yaml:"emit"`              // "stdout" or "rpc"
	RPCURL           string   `yaml:"rpc_url"`           // Ledger JSON-RPC endpoint for emit=rpc
	MrEnclave        string   `yaml:"mr_enclave"`        // Hex measurement; empty means measure the running executable
	FetchTimeout     Duration `yaml:"fetch_timeout"`
	CycleTimeout     Duration `yaml:"cycle_timeout"`
}

// SourceConfig configures a quote source
type SourceConfig struct {
	Type    string                 `yaml:"type"`
	Name    string                 `yaml:"name"`
	Enabled bool                   `yaml:"enabled"`
	Config  map[string]interface{} `yaml:"config"`
}

// Key returns the registry key of the source ("type.name").
func (sc *SourceConfig) Key() string {
	return sc.Type + "." + sc.Name
}

// SymbolConfig assigns sources to the two prices of a tracked symbol
type SymbolConfig struct {
	Symbol    string   `yaml:"symbol"`    // e.g. "USDY/USDC"
	Market    []string `yaml:"market"`    // Source keys whose median is the traded price
	Reference string   `yaml:"reference"` // Source key passed through as the reference price
}

// LedgerConfig configures the in-process ledger runtime used in local mode
type LedgerConfig struct {
	Store     string      `yaml:"store"` // "memory" or "redis"
	Redis     RedisConfig `yaml:"redis"`
	MaxRowAge Duration    `yaml:"max_row_age"`
	SlotTime  Duration    `yaml:"slot_time"`
}

// RedisConfig configures the Redis account store
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Prefix   string `yaml:"prefix"`
}

// ServerConfig configures the read/trigger API
type ServerConfig struct {
	HTTP         HTTPConfig `yaml:"http"`
	WebSocket    WSConfig   `yaml:"websocket"`
	TriggerRate  float64    `yaml:"trigger_rate"`  // Trigger requests per second
	TriggerBurst int        `yaml:"trigger_burst"` // Trigger burst size
}

// HTTPConfig configures the HTTP server
type HTTPConfig struct {
	Addr string    `yaml:"addr"`
	TLS  TLSConfig `yaml:"tls"`
}

// WSConfig configures the WebSocket round stream
type WSConfig struct {
	Enabled bool `yaml:"enabled"`
}

// TLSConfig holds TLS certificate configuration
type TLSConfig struct {
	Enabled bool   `yaml:"enabled"`
	Cert    string `yaml:"cert"`
	Key     string `yaml:"key"`
}

// MetricsConfig configures Prometheus metrics
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
	Path    string `yaml:"path"`
}

// LoggingConfig configures logging
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Duration is a wrapper around time.Duration for YAML parsing
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler
func (d *Duration) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	td, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(td)
	return nil
}

// ToDuration converts Duration to time.Duration
func (d Duration) ToDuration() time.Duration {
	return time.Duration(d)
}
