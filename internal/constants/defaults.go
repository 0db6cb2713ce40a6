package constants

// Server defaults
const (
	DefaultServerPort            = 3001
	DefaultMaxBodyBytes          = 10 << 20
	DefaultRateLimitPerMinute    = 600
	DefaultCleanupIntervalHours  = 24
	DefaultServerReadTimeoutSec  = 15
	DefaultServerWriteTimeoutSec = 15
	DefaultServerIdleTimeoutSec  = 60
	DefaultGracefulShutdownSec   = 30
	DefaultAllowedOrigin         = "http://localhost:5173"
	DefaultConfigPath            = "config.json"
	DefaultLogLevel              = "info"
	ConfigPollIntervalSec        = 5
)

// Store defaults
const (
	DriverSQLite             = "sqlite"
	DriverPostgres           = "postgres"
	DefaultDBPath            = "whatsrelay.db"
	DefaultQueryTimeoutSec   = 30
	DefaultPostgresMaxConns  = 10
	DefaultDatabaseRetries   = 3
	DefaultSQLiteBusyTimeout = 5000
)

// Retry defaults
const (
	DefaultRetryBackoffMs = 1000
	DefaultMaxBackoffMs   = 60000
	DefaultMaxAttempts    = 5
)

// Message paging
const (
	DefaultPage         = 1
	DefaultMessageLimit = 50
	MaxMessageLimit     = 200
	MaxPage             = 1_000_000
)

// Input limits
const (
	MaxConversationIDLength = 64
	MaxMessageIDLength      = 256
	MaxContentLength        = 65536
	MaxRetentionDays        = 3650
)

// Outbound identity
const (
	DefaultBusinessPhoneNumber = "business_phone_number"
	DefaultBusinessDisplayName = "Business"
	OutboundIDPrefix           = "out_"
)

// Realtime defaults
const (
	DefaultSendQueueSize       = 64
	DefaultPingIntervalSec     = 25
	DefaultRealtimeWriteSec    = 10
	DefaultRealtimeReadLimit   = 1 << 20
	DefaultNATSSubjectPrefix   = "whatsrelay"
	ForwarderMaxFailures       = 5
	ForwarderCooldownSec       = 30
	DefaultTracingServiceName  = "whatsrelay"
	DefaultTracingEndpoint     = "localhost:4318"
	DefaultTracingSampleRate   = 0.1
	MinProductionVerifyTokenLn = 16
)

// Privacy settings
const (
	DefaultPhoneMaskLength = 4
	DefaultMessageIDLength = 8
)
