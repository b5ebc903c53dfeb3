package sources

import (
	"fmt"
	"strings"

	"github.com/switchboard-xyz/usdy-example/pkg/logging"
)

// GetLoggerFromConfig extracts logger from config map or returns a default noop logger.
// Sources should use this to get the logger passed from main.go.
// If no logger is configured, returns a noop logger to prevent nil pointer dereferences.
func GetLoggerFromConfig(config map[string]interface{}) *logging.Logger {
	if loggerInterface, ok := config["logger"]; ok {
		if logger, ok := loggerInterface.(*logging.Logger); ok {
			return logger
		}
	}

	return logging.NewNoopLogger()
}

// InstanceConfig copies a source's YAML config map and injects the instance name and logger.
func InstanceConfig(name string, raw map[string]interface{}, logger *logging.Logger) map[string]interface{} {
	out := make(map[string]interface{}, len(raw)+2)
	for k, v := range raw {
		out[k] = v
	}
	out["name"] = name
	out["logger"] = logger
	return out
}

// AdapterFromConfig returns the adapter key of a source config.
func AdapterFromConfig(config map[string]interface{}) (string, error) {
	adapter := GetString(config, "adapter")
	if adapter == "" {
		return "", fmt.Errorf("%w", ErrAdapterRequired)
	}
	return adapter, nil
}

// GetString returns a string value or "".
func GetString(m map[string]interface{}, key string) string {
	if v, ok := m[key].(string); ok {
		return v
	}
	return ""
}

// GetInt returns an integer value; YAML numbers may arrive as int or float64.
func GetInt(m map[string]interface{}, key string, defaultVal int) int {
	switch v := m[key].(type) {
	case int:
		return v
	case float64:
		return int(v)
	case int64:
		return int(v)
	default:
		return defaultVal
	}
}

// RequireString returns a required string value.
func RequireString(m map[string]interface{}, key string) (string, error) {
	v := GetString(m, key)
	if v == "" {
		return "", fmt.Errorf("%w: %s is required", ErrInvalidConfig, key)
	}
	return v, nil
}

// ValidateSymbolFormat checks if a symbol is in valid BASE/QUOTE format
// Valid formats:
//   - "USDY/USDC"
//
// Invalid formats:
//   - "USDY" (no quote currency)
//   - "USDYUSDC" (no separator)
//   - "" (empty).
func ValidateSymbolFormat(symbol string) error {
	if symbol == "" {
		return fmt.Errorf("%w", ErrInvalidSymbolFormat)
	}

	parts := strings.Split(symbol, "/")
	if len(parts) != 2 {
		return fmt.Errorf("%w: %s", ErrInvalidSymbolFormat, symbol)
	}

	base := strings.TrimSpace(parts[0])
	quote := strings.TrimSpace(parts[1])

	if base == "" {
		return fmt.Errorf("%w: %s", ErrEmptyBaseCurrency, symbol)
	}
	if quote == "" {
		return fmt.Errorf("%w: %s", ErrEmptyQuoteCurrency, symbol)
	}

	return nil
}
