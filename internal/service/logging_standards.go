package service

// Logging Standards for WhatsRelay
//
// Standard field names used across services. Identifiers that can reveal a
// person (phone numbers, conversation ids, message ids) are passed through
// internal/privacy before being logged.
const (
	// Core identifiers
	LogFieldConversationID = "conversation_id"
	LogFieldMessageID      = "message_id"
	LogFieldClientID       = "client_id"
	LogFieldConnectionID   = "connection_id"
	LogFieldRequestID      = "request_id"
	LogFieldTraceID        = "trace_id"

	// Service and operation fields
	LogFieldService   = "service"
	LogFieldOperation = "operation"
	LogFieldComponent = "component"
	LogFieldMethod    = "method"

	// Message and event fields
	LogFieldEvent       = "event"
	LogFieldContentType = "content_type"
	LogFieldStatus      = "status"
	LogFieldDirection   = "direction" // "incoming" or "outgoing"
	LogFieldObject      = "object"
	LogFieldField       = "field"

	// Performance and metrics
	LogFieldDuration = "duration_ms"
	LogFieldCount    = "count"
	LogFieldSize     = "size_bytes"

	// Network
	LogFieldURL        = "url"
	LogFieldStatusCode = "status_code"
	LogFieldRemoteIP   = "remote_ip"
	LogFieldUserAgent  = "user_agent"

	// Files
	LogFieldFilePath = "file_path"

	// Error and debugging
	LogFieldErrorCode = "error_code"
	LogFieldAttempt   = "attempt"
)

// Log Level Usage Guidelines
//
// DEBUG: per-item flow (each message normalized, each frame queued), ignored
// webhook objects.
//
// INFO: startup and shutdown, configuration loaded, migrations applied,
// connections opened and closed, retention runs.
//
// WARN: skipped webhook items, unmatched status updates, slow consumers
// dropped, retryable store failures.
//
// ERROR: failed operations that lose data or fail a client request.

// Standard Log Message Patterns
//
// Starting operations: "Starting [operation]"
// Completed operations: "[Operation] completed"
// Failed operations: "Failed to [operation]"
// Skipping operations: "Skipping [item]: [reason]"
