package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const baseYAML = `
function:
  account: 9wFFyRfZBsuAha4YcuxcXLKwMxJR43S7fPfQLusDBzvT
sources:
  - type: evm
    name: uniswap_v3_a
    enabled: true
    config:
      factory: "0x1F98431c8aD98523631AE4a59f267346ea31F984"
  - type: evm
    name: ondo_reference
    enabled: true
symbols:
  - symbol: USDY/USDC
    market: [evm.uniswap_v3_a]
    reference: evm.ondo_reference
`

func TestParseAppliesDefaults(t *testing.T) {
	cfg, err := Parse([]byte(baseYAML))
	require.NoError(t, err)

	assert.Equal(t, ModeFunction, cfg.Mode)
	assert.Equal(t, DefaultProgramID, cfg.Program.ProgramID)
	assert.Equal(t, DefaultAttestationProgramID, cfg.Program.AttestationProgramID)
	assert.Equal(t, "*/30 * * * * *", cfg.Function.Schedule)
	assert.Equal(t, EmitStdout, cfg.Function.Emit)
	assert.Equal(t, 10*time.Second, cfg.Function.FetchTimeout.ToDuration())
	assert.Equal(t, 300*time.Second, cfg.Ledger.MaxRowAge.ToDuration())
	assert.Equal(t, StoreMemory, cfg.Ledger.Store)
	assert.Equal(t, ":8080", cfg.Server.HTTP.Addr)
	assert.Equal(t, "info", cfg.Logging.Level)

	require.NoError(t, Validate(cfg))
}

func TestParseExpandsEnvAndOverrides(t *testing.T) {
	t.Setenv("FACTORY_ADDR", "0xabc")
	t.Setenv("ORACLE_MODE", "local")
	t.Setenv("ORACLE_REDIS_ADDR", "localhost:6379")
	t.Setenv("ORACLE_LOG_LEVEL", "debug")

	yml := baseYAML + `
ledger:
  store: redis
`
	yml = strings.Replace(yml, `"0x1F98431c8aD98523631AE4a59f267346ea31F984"`, "${FACTORY_ADDR}", 1)
	cfg, err := Parse([]byte(yml))
	require.NoError(t, err)

	assert.Equal(t, ModeLocal, cfg.Mode)
	assert.True(t, cfg.IsLocalMode())
	assert.Equal(t, "localhost:6379", cfg.Ledger.Redis.Addr)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "0xabc", cfg.Sources[0].GetString("factory", ""))
}

func TestLoadReadsFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(baseYAML), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Len(t, cfg.Sources, 2)

	_, err = Load(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr error
	}{
		{
			name:    "invalid mode",
			mutate:  func(c *Config) { c.Mode = "ledger" },
			wantErr: ErrInvalidMode,
		},
		{
			name:    "bad program id",
			mutate:  func(c *Config) { c.Program.ProgramID = "not-a-key" },
			wantErr: ErrProgramIDRequired,
		},
		{
			name:    "missing function account",
			mutate:  func(c *Config) { c.Function.Account = "" },
			wantErr: ErrFunctionAccountRequired,
		},
		{
			name:    "bad schedule",
			mutate:  func(c *Config) { c.Function.Schedule = "every now and then" },
			wantErr: ErrInvalidSchedule,
		},
		{
			name:    "rpc without url",
			mutate:  func(c *Config) { c.Function.Emit = EmitRPC },
			wantErr: ErrRPCURLRequired,
		},
		{
			name:    "bad emit",
			mutate:  func(c *Config) { c.Function.Emit = "kafka" },
			wantErr: ErrInvalidEmitTarget,
		},
		{
			name:    "short mr_enclave",
			mutate:  func(c *Config) { c.Function.MrEnclave = "abcd" },
			wantErr: ErrInvalidMrEnclave,
		},
		{
			name:    "unknown source type",
			mutate:  func(c *Config) { c.Sources[0].Type = "cex" },
			wantErr: ErrInvalidSourceType,
		},
		{
			name: "duplicate source",
			mutate: func(c *Config) {
				c.Sources = append(c.Sources, c.Sources[0])
			},
			wantErr: ErrDuplicateSource,
		},
		{
			name:    "symbol references disabled source",
			mutate:  func(c *Config) { c.Sources[0].Enabled = false },
			wantErr: ErrUnknownSourceRef,
		},
		{
			name:    "empty market panel",
			mutate:  func(c *Config) { c.Symbols[0].Market = nil },
			wantErr: ErrEmptyMarketPanel,
		},
		{
			name:    "missing reference",
			mutate:  func(c *Config) { c.Symbols[0].Reference = "" },
			wantErr: ErrReferenceRequired,
		},
		{
			name: "local mode needs authority",
			mutate: func(c *Config) {
				c.Mode = ModeLocal
			},
			wantErr: ErrAuthorityKeypairRequired,
		},
		{
			name: "redis store needs addr",
			mutate: func(c *Config) {
				c.Mode = ModeLocal
				c.Function.AuthorityKeypair = "authority.json"
				c.Ledger.Store = StoreRedis
			},
			wantErr: ErrRedisAddrRequired,
		},
		{
			name:    "bad log level",
			mutate:  func(c *Config) { c.Logging.Level = "chatty" },
			wantErr: ErrInvalidLogLevel,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Parse([]byte(baseYAML))
			require.NoError(t, err)
			tt.mutate(cfg)
			err = Validate(cfg)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}
