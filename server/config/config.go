package config

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sethvargo/go-envconfig"
)

// Config holds all application configuration
type Config struct {
	AgentName          string             `env:"AGENT_NAME,default=a2a-agent" description:"Agent name advertised on the agent card"`
	AgentDescription   string             `env:"AGENT_DESCRIPTION" description:"Agent description advertised on the agent card"`
	AgentVersion       string             `env:"AGENT_VERSION,default=0.1.0" description:"Agent version advertised on the agent card"`
	AgentURL           string             `env:"AGENT_URL" description:"Externally reachable endpoint URL advertised on the agent card"`
	AgentCardFilePath  string             `env:"AGENT_CARD_FILE_PATH" description:"Path to JSON file containing a static agent card definition"`
	Debug              bool               `env:"DEBUG,default=false"`
	CapabilitiesConfig CapabilitiesConfig `env:",prefix=CAPABILITIES_"`
	AuthConfig         AuthConfig         `env:",prefix=AUTH_"`
	StorageConfig      StorageConfig      `env:",prefix=STORAGE_"`
	ServerConfig       ServerConfig       `env:",prefix=SERVER_"`
	StreamingConfig    StreamingConfig    `env:",prefix=STREAMING_"`
	TelemetryConfig    TelemetryConfig    `env:",prefix=TELEMETRY_"`
}

// CapabilitiesConfig defines the optional protocol features the agent advertises
type CapabilitiesConfig struct {
	Streaming              bool `env:"STREAMING,default=true" description:"Enable streaming support"`
	PushNotifications      bool `env:"PUSH_NOTIFICATIONS,default=true" description:"Enable push notifications"`
	StateTransitionHistory bool `env:"STATE_TRANSITION_HISTORY,default=false" description:"Enable state transition history"`
}

// TLSConfig holds TLS configuration
type TLSConfig struct {
	Enable   bool   `env:"ENABLE,default=false"`
	CertPath string `env:"CERT_PATH" description:"TLS certificate path"`
	KeyPath  string `env:"KEY_PATH" description:"TLS key path"`
}

// AuthConfig holds authentication configuration
type AuthConfig struct {
	Enable       bool   `env:"ENABLE,default=false"`
	IssuerURL    string `env:"ISSUER_URL" description:"OIDC issuer URL"`
	ClientID     string `env:"CLIENT_ID" description:"OIDC client id the tokens must be issued for"`
	ClientSecret string `env:"CLIENT_SECRET"`
}

// StorageConfig holds task store configuration
type StorageConfig struct {
	Provider    string            `env:"PROVIDER,default=memory" description:"Task store provider (memory, redis)"`
	URL         string            `env:"URL" description:"Connection URL for the task store"`
	Credentials map[string]string `env:"CREDENTIALS" description:"Provider-specific credentials"`
	Options     map[string]string `env:"OPTIONS" description:"Provider-specific configuration options"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port                  string        `env:"PORT,default=8080" description:"HTTP server port"`
	Endpoint              string        `env:"ENDPOINT,default=/" description:"Path the JSON-RPC endpoint is served on"`
	ReadTimeout           time.Duration `env:"READ_TIMEOUT,default=120s" description:"HTTP server read timeout"`
	WriteTimeout          time.Duration `env:"WRITE_TIMEOUT,default=120s" description:"HTTP server write timeout"`
	IdleTimeout           time.Duration `env:"IDLE_TIMEOUT,default=120s" description:"HTTP server idle timeout"`
	DisableHealthcheckLog bool          `env:"DISABLE_HEALTHCHECK_LOG,default=true" description:"Disable logging for health check requests"`
	TLSConfig             TLSConfig     `env:",prefix=TLS_"`
}

// StreamingConfig tunes the per-task subscriber queues
type StreamingConfig struct {
	QueueCapacity int `env:"QUEUE_CAPACITY,default=64" description:"Event queue capacity per subscriber; publishers drop events for subscribers whose queue is full"`
}

// MetricsConfig holds metrics server configuration
type MetricsConfig struct {
	Port         string        `env:"PORT,default=9090" description:"Metrics server port"`
	Host         string        `env:"HOST,default=" description:"Metrics server host (empty for all interfaces)"`
	ReadTimeout  time.Duration `env:"READ_TIMEOUT,default=30s" description:"Metrics server read timeout"`
	WriteTimeout time.Duration `env:"WRITE_TIMEOUT,default=30s" description:"Metrics server write timeout"`
	IdleTimeout  time.Duration `env:"IDLE_TIMEOUT,default=60s" description:"Metrics server idle timeout"`
}

// TelemetryConfig holds telemetry configuration
type TelemetryConfig struct {
	Enable        bool          `env:"ENABLE,default=false" description:"Enable telemetry collection"`
	MetricsConfig MetricsConfig `env:",prefix=METRICS_"`
}

// Load loads configuration from environment variables, merging with the provided base config.
func Load(ctx context.Context, baseConfig *Config) (*Config, error) {
	return LoadWithLookuper(ctx, baseConfig, envconfig.OsLookuper())
}

// LoadWithLookuper creates and loads configuration using a custom lookuper and merges with user config
func LoadWithLookuper(ctx context.Context, baseConfig *Config, lookuper envconfig.Lookuper) (*Config, error) {
	var cfg Config

	if baseConfig != nil {
		cfg = *baseConfig
	}

	err := envconfig.ProcessWith(ctx, &envconfig.Config{
		Target:   &cfg,
		Lookuper: lookuper,
	})
	if err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// NewWithDefaults creates a new config with defaults applied from struct tags.
func NewWithDefaults(ctx context.Context, baseConfig *Config) (*Config, error) {
	return LoadWithLookuper(ctx, baseConfig, &emptyLookuper{})
}

// emptyLookuper ensures that only default values from struct tags are used
type emptyLookuper struct{}

func (e *emptyLookuper) Lookup(key string) (string, bool) {
	return "", false
}

// Validate validates the configuration and applies corrections for invalid values
func (c *Config) Validate() error {
	if !strings.HasPrefix(c.ServerConfig.Endpoint, "/") {
		return fmt.Errorf("server endpoint must start with a slash, got %q", c.ServerConfig.Endpoint)
	}

	if c.StreamingConfig.QueueCapacity < 1 {
		c.StreamingConfig.QueueCapacity = 1
	}

	if c.AuthConfig.Enable && c.AuthConfig.IssuerURL == "" {
		return fmt.Errorf("auth is enabled but AUTH_ISSUER_URL is not set")
	}

	return nil
}
