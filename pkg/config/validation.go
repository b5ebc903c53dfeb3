package config

import (
	"encoding/hex"
	"fmt"
	"os"
	"strings"

	"github.com/gagliardetto/solana-go"
	"github.com/robfig/cron/v3"
)

// ScheduleParser parses function schedules (optional seconds field).
var ScheduleParser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// Validate checks configuration for errors
func Validate(cfg *Config) error {
	mode := cfg.NormalizeMode()
	if mode != ModeFunction && mode != ModeLocal {
		return fmt.Errorf("%w: %s (must be 'function' or 'local')", ErrInvalidMode, cfg.Mode)
	}

	if err := validateProgramConfig(&cfg.Program); err != nil {
		return fmt.Errorf("program config: %w", err)
	}

	if err := validateFunctionConfig(&cfg.Function, mode); err != nil {
		return fmt.Errorf("function config: %w", err)
	}

	if len(cfg.Sources) == 0 {
		return ErrNoSourcesConfigured
	}
	seen := make(map[string]bool, len(cfg.Sources))
	for i := range cfg.Sources {
		source := &cfg.Sources[i]
		if err := validateSourceConfig(source); err != nil {
			return fmt.Errorf("source %d (%s): %w", i, source.Key(), err)
		}
		if seen[source.Key()] {
			return fmt.Errorf("%w: %s", ErrDuplicateSource, source.Key())
		}
		seen[source.Key()] = true
	}

	if err := validateSymbols(cfg); err != nil {
		return fmt.Errorf("symbols: %w", err)
	}

	if mode == ModeLocal {
		if err := validateLedgerConfig(&cfg.Ledger); err != nil {
			return fmt.Errorf("ledger config: %w", err)
		}
		if err := validateServerConfig(&cfg.Server); err != nil {
			return fmt.Errorf("server config: %w", err)
		}
	}

	if err := validateLoggingConfig(&cfg.Logging); err != nil {
		return fmt.Errorf("logging config: %w", err)
	}

	return nil
}

func validateProgramConfig(cfg *ProgramConfig) error {
	if _, err := solana.PublicKeyFromBase58(cfg.ProgramID); err != nil {
		return fmt.Errorf("%w: %s", ErrProgramIDRequired, cfg.ProgramID)
	}
	if _, err := solana.PublicKeyFromBase58(cfg.AttestationProgramID); err != nil {
		return fmt.Errorf("%w: attestation_program_id %s", ErrInvalidPublicKey, cfg.AttestationProgramID)
	}
	if cfg.AttestationQueue != "" {
		if _, err := solana.PublicKeyFromBase58(cfg.AttestationQueue); err != nil {
			return fmt.Errorf("%w: attestation_queue %s", ErrInvalidPublicKey, cfg.AttestationQueue)
		}
	}
	return nil
}

func validateFunctionConfig(cfg *FunctionConfig, mode string) error {
	if cfg.Account == "" {
		return ErrFunctionAccountRequired
	}
	if _, err := solana.PublicKeyFromBase58(cfg.Account); err != nil {
		return fmt.Errorf("%w: account %s", ErrInvalidPublicKey, cfg.Account)
	}

	if _, err := ScheduleParser.Parse(cfg.Schedule); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrInvalidSchedule, cfg.Schedule, err)
	}

	switch strings.ToLower(cfg.Emit) {
	case EmitStdout:
	case EmitRPC:
		if cfg.RPCURL == "" {
			return ErrRPCURLRequired
		}
	default:
		return fmt.Errorf("%w: %s (must be 'stdout' or 'rpc')", ErrInvalidEmitTarget, cfg.Emit)
	}

	if cfg.KeypairEnv != "" && os.Getenv(cfg.KeypairEnv) == "" {
		return fmt.Errorf("%w: %s", ErrKeypairEnvNotSet, cfg.KeypairEnv)
	}

	if cfg.MrEnclave != "" {
		b, err := hex.DecodeString(strings.TrimPrefix(cfg.MrEnclave, "0x"))
		if err != nil || len(b) != 32 {
			return ErrInvalidMrEnclave
		}
	}

	if mode == ModeLocal && cfg.AuthorityKeypair == "" {
		return ErrAuthorityKeypairRequired
	}

	return nil
}

func validateSourceConfig(cfg *SourceConfig) error {
	if cfg.Type == "" {
		return ErrSourceTypeRequired
	}
	validTypes := []string{"evm"}
	typeValid := false
	for _, t := range validTypes {
		if strings.ToLower(cfg.Type) == t {
			typeValid = true
			break
		}
	}
	if !typeValid {
		return fmt.Errorf("%w: %s (must be one of: %s)", ErrInvalidSourceType, cfg.Type, strings.Join(validTypes, ", "))
	}

	if cfg.Name == "" {
		return ErrSourceNameRequired
	}

	return nil
}

func validateSymbols(cfg *Config) error {
	if len(cfg.Symbols) == 0 {
		return ErrNoSymbolsConfigured
	}

	enabled := make(map[string]bool)
	for _, s := range cfg.EnabledSources() {
		enabled[s.Key()] = true
	}

	for _, sym := range cfg.Symbols {
		if len(sym.Market) == 0 {
			return fmt.Errorf("%s: %w", sym.Symbol, ErrEmptyMarketPanel)
		}
		for _, key := range sym.Market {
			if !enabled[key] {
				return fmt.Errorf("%s: %w: %s", sym.Symbol, ErrUnknownSourceRef, key)
			}
		}
		if sym.Reference == "" {
			return fmt.Errorf("%s: %w", sym.Symbol, ErrReferenceRequired)
		}
		if !enabled[sym.Reference] {
			return fmt.Errorf("%s: %w: %s", sym.Symbol, ErrUnknownSourceRef, sym.Reference)
		}
	}
	return nil
}

func validateLedgerConfig(cfg *LedgerConfig) error {
	switch strings.ToLower(cfg.Store) {
	case StoreMemory:
	case StoreRedis:
		if cfg.Redis.Addr == "" {
			return ErrRedisAddrRequired
		}
	default:
		return fmt.Errorf("%w: %s (must be 'memory' or 'redis')", ErrInvalidStore, cfg.Store)
	}
	return nil
}

func validateServerConfig(cfg *ServerConfig) error {
	if cfg.HTTP.TLS.Enabled {
		if cfg.HTTP.TLS.Cert == "" || cfg.HTTP.TLS.Key == "" {
			return ErrTLSConfigIncomplete
		}
		if _, err := os.Stat(cfg.HTTP.TLS.Cert); err != nil {
			return fmt.Errorf("%w: %s", ErrTLSCertNotFound, cfg.HTTP.TLS.Cert)
		}
		if _, err := os.Stat(cfg.HTTP.TLS.Key); err != nil {
			return fmt.Errorf("%w: %s", ErrTLSKeyNotFound, cfg.HTTP.TLS.Key)
		}
	}
	return nil
}

func validateLoggingConfig(cfg *LoggingConfig) error {
	validLevels := []string{"debug", "info", "warn", "error"}
	levelValid := false
	for _, l := range validLevels {
		if strings.ToLower(cfg.Level) == l {
			levelValid = true
			break
		}
	}
	if !levelValid {
		return fmt.Errorf("%w: %s (must be one of: %s)", ErrInvalidLogLevel, cfg.Level, strings.Join(validLevels, ", "))
	}

	formatValid := strings.ToLower(cfg.Format) == "json" || strings.ToLower(cfg.Format) == "text"
	if !formatValid {
		return fmt.Errorf("%w: %s (must be 'json' or 'text')", ErrInvalidLogFormat, cfg.Format)
	}

	return nil
}
