package types

// BridgeConfig is the runtime configuration of the poller. It is loaded from
// an optional YAML file and overridden by environment variables.
type BridgeConfig struct {
	QuayBaseURL  string        `yaml:"quayBaseURL" json:"quayBaseURL"`
	Token        TokenConfig   `yaml:"token" json:"token"`
	HTTP         HTTPConfig    `yaml:"http" json:"http"`
	Breaker      BreakerConfig `yaml:"breaker" json:"breaker"`
	Region       string        `yaml:"region,omitempty" json:"region,omitempty"`
	LogLevel     string        `yaml:"logLevel,omitempty" json:"logLevel,omitempty"`
	ServiceName  string        `yaml:"serviceName,omitempty" json:"serviceName,omitempty"`
	OTLPEndpoint string        `yaml:"otlpEndpoint,omitempty" json:"otlpEndpoint,omitempty"`
}

// TokenConfig locates the Quay API token.
type TokenConfig struct {
	Source TokenSource `yaml:"source" json:"source"`
	Name   string      `yaml:"name" json:"name"` // parameter name, secret id, or env var name
}

// HTTPConfig tunes the Quay HTTP client.
type HTTPConfig struct {
	Timeout      string `yaml:"timeout,omitempty" json:"timeout,omitempty"`           // Go duration, per request hop
	MaxRedirects int    `yaml:"maxRedirects,omitempty" json:"maxRedirects,omitempty"` // 0 means the default of 5
}

// BreakerConfig tunes the circuit breaker guarding Quay.
type BreakerConfig struct {
	FailThreshold int    `yaml:"failThreshold,omitempty" json:"failThreshold,omitempty"` // consecutive failures before opening; 0 disables the breaker
	Cooldown      string `yaml:"cooldown,omitempty" json:"cooldown,omitempty"`           // Go duration the breaker stays open
}
