package models

// Config holds the application configuration
type Config struct {
	Server        ServerConfig   `json:"server" mapstructure:"server"`
	Webhook       WebhookConfig  `json:"webhook" mapstructure:"webhook"`
	Database      DatabaseConfig `json:"database" mapstructure:"database"`
	Business      BusinessConfig `json:"business" mapstructure:"business"`
	Realtime      RealtimeConfig `json:"realtime" mapstructure:"realtime"`
	Events        EventsConfig   `json:"events" mapstructure:"events"`
	Retry         RetryConfig    `json:"retry" mapstructure:"retry"`
	Tracing       TracingConfig  `json:"tracing" mapstructure:"tracing"`
	LogLevel      string         `json:"logLevel" mapstructure:"logLevel"`
	RetentionDays int            `json:"retentionDays" mapstructure:"retentionDays"`
}

// ServerConfig holds HTTP listener settings
type ServerConfig struct {
	Port                 int      `json:"port" mapstructure:"port"`
	MaxBodyBytes         int64    `json:"maxBodyBytes" mapstructure:"maxBodyBytes"`
	AllowedOrigins       []string `json:"allowedOrigins" mapstructure:"allowedOrigins"`
	RateLimitPerMinute   int      `json:"rateLimitPerMinute" mapstructure:"rateLimitPerMinute"`
	CleanupIntervalHours int      `json:"cleanupIntervalHours" mapstructure:"cleanupIntervalHours"`
	ReadTimeoutSec       int      `json:"readTimeoutSec" mapstructure:"readTimeoutSec"`
	WriteTimeoutSec      int      `json:"writeTimeoutSec" mapstructure:"writeTimeoutSec"`
	IdleTimeoutSec       int      `json:"idleTimeoutSec" mapstructure:"idleTimeoutSec"`
}

// WebhookConfig holds provider webhook credentials
type WebhookConfig struct {
	VerifyToken string `json:"verifyToken" mapstructure:"verifyToken"`
	AppSecret   string `json:"appSecret" mapstructure:"appSecret"`
}

// DatabaseConfig selects and configures the message store
type DatabaseConfig struct {
	Driver          string `json:"driver" mapstructure:"driver"`
	Path            string `json:"path" mapstructure:"path"`
	URL             string `json:"url" mapstructure:"url"`
	QueryTimeoutSec int    `json:"queryTimeoutSec" mapstructure:"queryTimeoutSec"`
	MaxConns        int    `json:"maxConns" mapstructure:"maxConns"`
}

// BusinessConfig identifies the local business account on outbound messages
type BusinessConfig struct {
	PhoneNumber string `json:"phoneNumber" mapstructure:"phoneNumber"`
	DisplayName string `json:"displayName" mapstructure:"displayName"`
}

// RealtimeConfig tunes the websocket hub
type RealtimeConfig struct {
	SendQueueSize   int `json:"sendQueueSize" mapstructure:"sendQueueSize"`
	PingIntervalSec int `json:"pingIntervalSec" mapstructure:"pingIntervalSec"`
	WriteTimeoutSec int `json:"writeTimeoutSec" mapstructure:"writeTimeoutSec"`
}

// EventsConfig enables mirroring of realtime events to NATS
type EventsConfig struct {
	NatsURL       string `json:"natsUrl" mapstructure:"natsUrl"`
	SubjectPrefix string `json:"subjectPrefix" mapstructure:"subjectPrefix"`
}

// RetryConfig holds retry related configurations
type RetryConfig struct {
	InitialBackoffMs int `json:"initialBackoffMs" mapstructure:"initialBackoffMs"`
	MaxBackoffMs     int `json:"maxBackoffMs" mapstructure:"maxBackoffMs"`
	MaxAttempts      int `json:"maxAttempts" mapstructure:"maxAttempts"`
}

// TracingConfig contains OpenTelemetry configuration
type TracingConfig struct {
	Enabled      bool    `json:"enabled" mapstructure:"enabled"`
	ServiceName  string  `json:"serviceName" mapstructure:"serviceName"`
	Environment  string  `json:"environment" mapstructure:"environment"`
	OTLPEndpoint string  `json:"otlpEndpoint" mapstructure:"otlpEndpoint"`
	SampleRate   float64 `json:"sampleRate" mapstructure:"sampleRate"`
	UseStdout    bool    `json:"useStdout" mapstructure:"useStdout"`
}

type ConfigError struct {
	Message string
}

func (e ConfigError) Error() string {
	return e.Message
}
