package config

import "time"

// Defaults.
const (
	DefaultHost          = "127.0.0.1"
	DefaultPort          = 4300
	DefaultBackend       = "file"
	DefaultRunner        = "builtin"
	DefaultCLIPath       = "mockoon-cli"
	DefaultPortStart     = 3000
	DefaultPortEnd       = 3099
	DefaultLogLines      = 200
	DefaultMaxEntries    = 5000
	DefaultReadTimeout   = 30 * time.Second
	DefaultWriteTimeout  = 60 * time.Second
	DefaultAITimeout     = 60 * time.Second
	DefaultAIRateLimit   = 30
	DefaultMaxBodyBytes  = 10 << 20
	DefaultConfigFile    = "sandboxd.yaml"
	DefaultAIProvider    = "openai"
	DefaultMockoonHostIP = "127.0.0.1"
)

// Default returns a configuration populated with defaults.
func Default() *ServerConfig {
	return &ServerConfig{
		Server: ServerSection{
			Host:         DefaultHost,
			Port:         DefaultPort,
			ReadTimeout:  DefaultReadTimeout,
			WriteTimeout: DefaultWriteTimeout,
			MaxBodyBytes: DefaultMaxBodyBytes,
		},
		Store: StoreSection{
			Backend: DefaultBackend,
		},
		Mockoon: MockoonSection{
			Runner:    DefaultRunner,
			CLIPath:   DefaultCLIPath,
			Host:      DefaultMockoonHostIP,
			PortStart: DefaultPortStart,
			PortEnd:   DefaultPortEnd,
			LogLines:  DefaultLogLines,
		},
		AI: AISection{
			Provider:  DefaultAIProvider,
			Timeout:   DefaultAITimeout,
			RateLimit: DefaultAIRateLimit,
		},
		Analytics: AnalyticsSection{
			MaxEntries: DefaultMaxEntries,
		},
		Log: LogSection{
			Level:  "info",
			Format: "text",
		},
	}
}
