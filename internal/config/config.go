package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"whatsrelay/internal/constants"
	"whatsrelay/internal/models"
	"whatsrelay/internal/security"
	"whatsrelay/internal/validation"
)

var (
	ErrUnsupportedDriver = models.ConfigError{Message: "database driver must be sqlite or postgres"}
	ErrMissingDBPath     = models.ConfigError{Message: "missing database path"}
	ErrMissingDBURL      = models.ConfigError{Message: "database url is required for the postgres driver"}
)

// LoadDotEnv loads variables from a .env file in the working directory.
// Variables already present in the environment are not overwritten.
func LoadDotEnv() {
	_ = godotenv.Load()
}

// LoadConfig reads the JSON or YAML file at path, applies environment
// overrides and defaults, and validates the result. An empty path builds the
// configuration from defaults and environment only.
func LoadConfig(path string) (*models.Config, error) {
	v := viper.New()

	if path != "" {
		if err := security.ValidateFilePath(path); err != nil {
			return nil, fmt.Errorf("invalid config path: %w", err)
		}
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config models.Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	if err := applyEnvironmentOverrides(&config); err != nil {
		return nil, err
	}

	if err := validate(&config); err != nil {
		return nil, err
	}

	// Perform security validation after environment overrides
	if err := validateSecurity(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

// ResolvePath returns the config file to load. An explicitly requested file
// must exist; the default file is optional.
func ResolvePath(path string, explicit bool) (string, error) {
	if path == "" {
		path = constants.DefaultConfigPath
	}
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) && !explicit {
			return "", nil
		}
		return "", fmt.Errorf("config file %s: %w", path, err)
	}
	return path, nil
}

func validate(c *models.Config) error {
	if c.Server.Port == 0 {
		c.Server.Port = constants.DefaultServerPort
	}
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return models.ConfigError{Message: fmt.Sprintf("invalid server port %d", c.Server.Port)}
	}
	if c.Server.MaxBodyBytes <= 0 {
		c.Server.MaxBodyBytes = constants.DefaultMaxBodyBytes
	}
	if len(c.Server.AllowedOrigins) == 0 {
		c.Server.AllowedOrigins = []string{constants.DefaultAllowedOrigin}
	}
	if c.Server.RateLimitPerMinute == 0 {
		c.Server.RateLimitPerMinute = constants.DefaultRateLimitPerMinute
	}
	if c.Server.CleanupIntervalHours <= 0 {
		c.Server.CleanupIntervalHours = constants.DefaultCleanupIntervalHours
	}
	if c.Server.ReadTimeoutSec <= 0 {
		c.Server.ReadTimeoutSec = constants.DefaultServerReadTimeoutSec
	}
	if c.Server.WriteTimeoutSec <= 0 {
		c.Server.WriteTimeoutSec = constants.DefaultServerWriteTimeoutSec
	}
	if c.Server.IdleTimeoutSec <= 0 {
		c.Server.IdleTimeoutSec = constants.DefaultServerIdleTimeoutSec
	}

	c.Database.Driver = strings.ToLower(strings.TrimSpace(c.Database.Driver))
	switch c.Database.Driver {
	case "", constants.DriverSQLite:
		c.Database.Driver = constants.DriverSQLite
		if c.Database.Path == "" {
			c.Database.Path = constants.DefaultDBPath
		}
	case constants.DriverPostgres:
		if c.Database.URL == "" {
			return ErrMissingDBURL
		}
	default:
		return ErrUnsupportedDriver
	}
	if c.Database.QueryTimeoutSec <= 0 {
		c.Database.QueryTimeoutSec = constants.DefaultQueryTimeoutSec
	}
	if c.Database.MaxConns <= 0 {
		c.Database.MaxConns = constants.DefaultPostgresMaxConns
	}

	if c.Business.PhoneNumber == "" {
		c.Business.PhoneNumber = constants.DefaultBusinessPhoneNumber
	}
	if c.Business.DisplayName == "" {
		c.Business.DisplayName = constants.DefaultBusinessDisplayName
	}

	if c.Realtime.SendQueueSize <= 0 {
		c.Realtime.SendQueueSize = constants.DefaultSendQueueSize
	}
	if c.Realtime.PingIntervalSec <= 0 {
		c.Realtime.PingIntervalSec = constants.DefaultPingIntervalSec
	}
	if c.Realtime.WriteTimeoutSec <= 0 {
		c.Realtime.WriteTimeoutSec = constants.DefaultRealtimeWriteSec
	}

	if c.Events.SubjectPrefix == "" {
		c.Events.SubjectPrefix = constants.DefaultNATSSubjectPrefix
	}

	if c.Retry.InitialBackoffMs <= 0 {
		c.Retry.InitialBackoffMs = constants.DefaultRetryBackoffMs
	}
	if c.Retry.MaxBackoffMs <= 0 {
		c.Retry.MaxBackoffMs = constants.DefaultMaxBackoffMs
	}
	if c.Retry.MaxAttempts <= 0 {
		c.Retry.MaxAttempts = constants.DefaultMaxAttempts
	}

	if c.Tracing.ServiceName == "" {
		c.Tracing.ServiceName = constants.DefaultTracingServiceName
	}
	if c.Tracing.OTLPEndpoint == "" {
		c.Tracing.OTLPEndpoint = constants.DefaultTracingEndpoint
	}
	if c.Tracing.SampleRate == 0 {
		c.Tracing.SampleRate = constants.DefaultTracingSampleRate
	}
	if c.Tracing.SampleRate < 0 || c.Tracing.SampleRate > 1 {
		return models.ConfigError{Message: "tracing sample rate must be between 0 and 1"}
	}

	if c.LogLevel == "" {
		c.LogLevel = constants.DefaultLogLevel
	}
	if err := validation.ValidateRetentionDays(c.RetentionDays); err != nil {
		return models.ConfigError{Message: err.Error()}
	}
	return nil
}

func applyEnvironmentOverrides(c *models.Config) error {
	if port := os.Getenv("PORT"); port != "" {
		n, err := strconv.Atoi(port)
		if err != nil {
			return models.ConfigError{Message: fmt.Sprintf("invalid PORT %q", port)}
		}
		c.Server.Port = n
	}

	// SECURITY: webhook credentials should be set via environment variables
	if token := os.Getenv("VERIFY_TOKEN"); token != "" {
		c.Webhook.VerifyToken = token
	}
	if secret := os.Getenv("WHATSRELAY_APP_SECRET"); secret != "" {
		c.Webhook.AppSecret = secret
	}

	if driver := os.Getenv("DB_DRIVER"); driver != "" {
		c.Database.Driver = driver
	}
	if path := os.Getenv("DB_PATH"); path != "" {
		c.Database.Path = path
	}
	if url := os.Getenv("DATABASE_URL"); url != "" {
		c.Database.URL = url
	}
	if url := os.Getenv("NATS_URL"); url != "" {
		c.Events.NatsURL = url
	}
	if origins := os.Getenv("WHATSRELAY_ALLOWED_ORIGINS"); origins != "" {
		c.Server.AllowedOrigins = splitList(origins)
	}
	if level := os.Getenv("LOG_LEVEL"); level != "" {
		c.LogLevel = level
	}
	return nil
}

// validateSecurity performs security-specific validation
func validateSecurity(c *models.Config) error {
	if IsProduction() {
		if len(c.Webhook.VerifyToken) < constants.MinProductionVerifyTokenLn {
			return models.ConfigError{Message: fmt.Sprintf("webhook verify token must be at least %d characters in production (set VERIFY_TOKEN)", constants.MinProductionVerifyTokenLn)}
		}
		if c.LogLevel == "debug" {
			return models.ConfigError{Message: "debug logging should not be used in production (security risk)"}
		}
		for _, origin := range c.Server.AllowedOrigins {
			if origin == "*" {
				return models.ConfigError{Message: "wildcard CORS origin is not allowed in production"}
			}
		}
	} else if c.Webhook.VerifyToken == "" {
		fmt.Fprintf(os.Stderr, "WARNING: webhook verify token not set. Set VERIFY_TOKEN to enable webhook verification.\n")
	}
	return nil
}

// IsProduction reports whether WHATSRELAY_ENV selects production mode.
func IsProduction() bool {
	return os.Getenv("WHATSRELAY_ENV") == "production"
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
