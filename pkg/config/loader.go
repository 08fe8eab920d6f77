package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Environment variable names.
const (
	EnvHost             = "SANDBOX_HOST"
	EnvPort             = "SANDBOX_PORT"
	EnvAPIKey           = "SANDBOX_API_KEY"
	EnvAllowedOrigins   = "SANDBOX_ALLOWED_ORIGINS"
	EnvStoreBackend     = "SANDBOX_STORE_BACKEND"
	EnvDataDir          = "SANDBOX_DATA_DIR"
	EnvMockoonRunner    = "SANDBOX_MOCKOON_RUNNER"
	EnvMockoonCLI       = "SANDBOX_MOCKOON_CLI"
	EnvMockoonPortStart = "SANDBOX_MOCKOON_PORT_START"
	EnvMockoonPortEnd   = "SANDBOX_MOCKOON_PORT_END"
	EnvAIProvider       = "SANDBOX_AI_PROVIDER"
	EnvAIAPIKey         = "SANDBOX_AI_API_KEY"
	EnvAIModel          = "SANDBOX_AI_MODEL"
	EnvAIEndpoint       = "SANDBOX_AI_ENDPOINT"
	EnvAITimeout        = "SANDBOX_AI_TIMEOUT"
	EnvAIRateLimit      = "SANDBOX_AI_RATE_LIMIT"
	EnvAnalyticsMax     = "SANDBOX_ANALYTICS_MAX_ENTRIES"
	EnvLogLevel         = "SANDBOX_LOG_LEVEL"
	EnvLogFormat        = "SANDBOX_LOG_FORMAT"

	// Provider-native key variables, consulted when SANDBOX_AI_API_KEY is unset.
	EnvOpenAIKey     = "OPENAI_API_KEY"
	EnvAnthropicKey  = "ANTHROPIC_API_KEY"
	EnvOpenRouterKey = "OPENROUTER_API_KEY"
)

// ConfigError reports a problem reading or decoding a configuration file.
type ConfigError struct {
	Path    string
	Message string
	Cause   error
}

func (e *ConfigError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Path, e.Message, e.Cause)
	}
	return e.Path + ": " + e.Message
}

func (e *ConfigError) Unwrap() error {
	return e.Cause
}

// LookupFunc resolves an environment variable. os.LookupEnv satisfies it.
type LookupFunc func(key string) (string, bool)

// Load builds the configuration from defaults, the YAML file at path and the
// process environment, then validates it.
//
// An empty path loads DefaultConfigFile from the working directory when it
// exists; an explicit path that does not exist is an error.
func Load(path string) (*ServerConfig, error) {
	cfg := Default()

	if path == "" {
		if _, err := os.Stat(DefaultConfigFile); err == nil {
			path = DefaultConfigFile
		}
	}
	if path != "" {
		if err := loadFile(cfg, path); err != nil {
			return nil, err
		}
	}

	if err := ApplyEnv(cfg, os.LookupEnv); err != nil {
		return nil, err
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadFile(cfg *ServerConfig, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return &ConfigError{Path: path, Message: "cannot read config file", Cause: err}
	}
	return Decode(cfg, path, data)
}

// Decode merges YAML data onto cfg. Unknown keys are rejected.
func Decode(cfg *ServerConfig, path string, data []byte) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return &ConfigError{Path: path, Message: "invalid YAML", Cause: err}
	}
	return nil
}

// ApplyEnv overrides cfg with SANDBOX_* variables resolved through lookup.
func ApplyEnv(cfg *ServerConfig, lookup LookupFunc) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	var errs []error
	num := func(key string, dst *int) {
		if v, ok := lookup(key); ok && v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %q is not an integer", key, v))
				return
			}
			*dst = n
		}
	}
	dur := func(key string, dst *time.Duration) {
		if v, ok := lookup(key); ok && v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %q is not a duration", key, v))
				return
			}
			*dst = d
		}
	}

	str(EnvHost, &cfg.Server.Host)
	num(EnvPort, &cfg.Server.Port)
	str(EnvAPIKey, &cfg.Server.APIKey)
	if v, ok := lookup(EnvAllowedOrigins); ok && v != "" {
		cfg.Server.AllowedOrigins = splitList(v)
	}

	str(EnvStoreBackend, &cfg.Store.Backend)
	str(EnvDataDir, &cfg.Store.DataDir)

	str(EnvMockoonRunner, &cfg.Mockoon.Runner)
	str(EnvMockoonCLI, &cfg.Mockoon.CLIPath)
	num(EnvMockoonPortStart, &cfg.Mockoon.PortStart)
	num(EnvMockoonPortEnd, &cfg.Mockoon.PortEnd)

	str(EnvAIProvider, &cfg.AI.Provider)
	str(EnvAIAPIKey, &cfg.AI.APIKey)
	str(EnvAIModel, &cfg.AI.Model)
	str(EnvAIEndpoint, &cfg.AI.Endpoint)
	dur(EnvAITimeout, &cfg.AI.Timeout)
	num(EnvAIRateLimit, &cfg.AI.RateLimit)
	if cfg.AI.APIKey == "" {
		str(providerKeyEnv(cfg.AI.Provider), &cfg.AI.APIKey)
	}

	num(EnvAnalyticsMax, &cfg.Analytics.MaxEntries)

	str(EnvLogLevel, &cfg.Log.Level)
	str(EnvLogFormat, &cfg.Log.Format)

	return errors.Join(errs...)
}

func providerKeyEnv(provider string) string {
	switch provider {
	case "anthropic":
		return EnvAnthropicKey
	case "openrouter":
		return EnvOpenRouterKey
	default:
		return EnvOpenAIKey
	}
}

func splitList(s string) []string {
	parts := strings.Split(s, ",")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
