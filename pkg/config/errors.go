// Package config provides configuration loading and validation for the USDY oracle.
package config

import "errors"

var (
	// ErrInvalidMode indicates that the mode is invalid.
	ErrInvalidMode = errors.New("invalid mode")
	// ErrProgramIDRequired indicates that program.program_id is missing or malformed.
	ErrProgramIDRequired = errors.New("program.program_id must be a valid public key")
	// ErrInvalidPublicKey indicates that a configured public key does not parse.
	ErrInvalidPublicKey = errors.New("invalid public key")
	// ErrFunctionAccountRequired indicates that function.account is missing.
	ErrFunctionAccountRequired = errors.New("function.account must be specified")
	// ErrInvalidSchedule indicates that function.schedule does not parse.
	ErrInvalidSchedule = errors.New("invalid function.schedule")
	// ErrInvalidEmitTarget indicates that function.emit is invalid.
	ErrInvalidEmitTarget = errors.New("invalid function.emit")
	// ErrRPCURLRequired indicates that function.rpc_url is missing for emit=rpc.
	ErrRPCURLRequired = errors.New("function.rpc_url must be specified when emit is rpc")
	// ErrKeypairEnvNotSet indicates that the keypair environment variable is not set.
	ErrKeypairEnvNotSet = errors.New("keypair environment variable not set")
	// ErrInvalidMrEnclave indicates that function.mr_enclave is not 32 hex bytes.
	ErrInvalidMrEnclave = errors.New("function.mr_enclave must be 32 hex-encoded bytes")
	// ErrNoSourcesConfigured indicates that no quote sources are configured.
	ErrNoSourcesConfigured = errors.New("at least one quote source must be configured")
	// ErrSourceTypeRequired indicates that source type is required.
	ErrSourceTypeRequired = errors.New("source type is required")
	// ErrSourceNameRequired indicates that source name is required.
	ErrSourceNameRequired = errors.New("source name is required")
	// ErrInvalidSourceType indicates that the source type is invalid.
	ErrInvalidSourceType = errors.New("invalid source type")
	// ErrDuplicateSource indicates two sources share a registry key.
	ErrDuplicateSource = errors.New("duplicate source")
	// ErrNoSymbolsConfigured indicates that no symbols are configured.
	ErrNoSymbolsConfigured = errors.New("at least one symbol must be configured")
	// ErrUnknownSourceRef indicates a symbol references a source that is not configured or disabled.
	ErrUnknownSourceRef = errors.New("symbol references unknown or disabled source")
	// ErrEmptyMarketPanel indicates a symbol has no market sources.
	ErrEmptyMarketPanel = errors.New("symbol market panel must not be empty")
	// ErrReferenceRequired indicates a symbol has no reference source.
	ErrReferenceRequired = errors.New("symbol reference source must be specified")
	// ErrInvalidStore indicates that ledger.store is invalid.
	ErrInvalidStore = errors.New("invalid ledger.store")
	// ErrRedisAddrRequired indicates that ledger.redis.addr is missing for store=redis.
	ErrRedisAddrRequired = errors.New("ledger.redis.addr must be specified when store is redis")
	// ErrAuthorityKeypairRequired indicates local mode has no authority keypair.
	ErrAuthorityKeypairRequired = errors.New("function.authority_keypair must be specified in local mode")
	// ErrTLSConfigIncomplete indicates that TLS config is incomplete.
	ErrTLSConfigIncomplete = errors.New("TLS cert and key must be specified when TLS is enabled")
	// ErrTLSCertNotFound indicates that the TLS cert file was not found.
	ErrTLSCertNotFound = errors.New("TLS cert file not found")
	// ErrTLSKeyNotFound indicates that the TLS key file was not found.
	ErrTLSKeyNotFound = errors.New("TLS key file not found")
	// ErrInvalidLogLevel indicates that the log level is invalid.
	ErrInvalidLogLevel = errors.New("invalid log level")
	// ErrInvalidLogFormat indicates that the log format is invalid.
	ErrInvalidLogFormat = errors.New("invalid log format")
)
