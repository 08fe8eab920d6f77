package config

import "time"

// ServerConfig is the complete sandboxd configuration.
type ServerConfig struct {
	Server    ServerSection    `yaml:"server" json:"server"`
	Store     StoreSection     `yaml:"store" json:"store"`
	Mockoon   MockoonSection   `yaml:"mockoon" json:"mockoon"`
	AI        AISection        `yaml:"ai" json:"ai"`
	Analytics AnalyticsSection `yaml:"analytics" json:"analytics"`
	Log       LogSection       `yaml:"log" json:"log"`
}

// ServerSection configures the admin HTTP server.
type ServerSection struct {
	Host           string        `yaml:"host" json:"host" validate:"omitempty,hostname|ip"`
	Port           int           `yaml:"port" json:"port" validate:"min=0,max=65535"`
	APIKey         string        `yaml:"apiKey,omitempty" json:"-"`
	AllowedOrigins []string      `yaml:"allowedOrigins,omitempty" json:"allowedOrigins,omitempty"`
	ReadTimeout    time.Duration `yaml:"readTimeout" json:"readTimeout" validate:"min=0"`
	WriteTimeout   time.Duration `yaml:"writeTimeout" json:"writeTimeout" validate:"min=0"`
	MaxBodyBytes   int64         `yaml:"maxBodyBytes" json:"maxBodyBytes" validate:"min=0"`
	// TrustedProxies may set X-Forwarded-For for rate limiting.
	TrustedProxies []string `yaml:"trustedProxies,omitempty" json:"trustedProxies,omitempty"`
}

// StoreSection configures the persistence backend.
type StoreSection struct {
	Backend  string `yaml:"backend" json:"backend" validate:"oneof=file sqlite memory"`
	DataDir  string `yaml:"dataDir,omitempty" json:"dataDir,omitempty"`
	ReadOnly bool   `yaml:"readOnly,omitempty" json:"readOnly,omitempty"`
}

// MockoonSection configures how environments are run.
type MockoonSection struct {
	// Runner is "builtin" (in-process mock server) or "cli" (mockoon-cli).
	Runner    string `yaml:"runner" json:"runner" validate:"oneof=builtin cli"`
	CLIPath   string `yaml:"cliPath,omitempty" json:"cliPath,omitempty"`
	Host      string `yaml:"host" json:"host"`
	PortStart int    `yaml:"portStart" json:"portStart" validate:"min=1,max=65535"`
	PortEnd   int    `yaml:"portEnd" json:"portEnd" validate:"min=1,max=65535,gtefield=PortStart"`
	LogLines  int    `yaml:"logLines" json:"logLines" validate:"min=1"`
}

// AISection configures the AI enhancer. An empty APIKey disables it.
type AISection struct {
	Provider  string        `yaml:"provider" json:"provider" validate:"omitempty,oneof=openai anthropic openrouter"`
	APIKey    string        `yaml:"apiKey,omitempty" json:"-"`
	Model     string        `yaml:"model,omitempty" json:"model,omitempty"`
	Endpoint  string        `yaml:"endpoint,omitempty" json:"endpoint,omitempty" validate:"omitempty,url"`
	MaxTokens int           `yaml:"maxTokens,omitempty" json:"maxTokens,omitempty" validate:"min=0"`
	Timeout   time.Duration `yaml:"timeout,omitempty" json:"timeout,omitempty" validate:"min=0"`
	// RateLimit is enhancement requests per minute per client; 0 is unlimited.
	RateLimit int `yaml:"rateLimit" json:"rateLimit" validate:"min=0"`
	RateBurst int `yaml:"rateBurst,omitempty" json:"rateBurst,omitempty" validate:"min=0"`
}

// AnalyticsSection configures call recording.
type AnalyticsSection struct {
	MaxEntries int `yaml:"maxEntries" json:"maxEntries" validate:"min=1"`
}

// LogSection configures logging output.
type LogSection struct {
	Level  string `yaml:"level" json:"level" validate:"omitempty,oneof=debug info warn warning error"`
	Format string `yaml:"format" json:"format" validate:"omitempty,oneof=text json"`
}
