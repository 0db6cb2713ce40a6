package service

import (
	"context"

	"github.com/sirupsen/logrus"

	"whatsrelay/internal/models"
	"whatsrelay/internal/privacy"
	"whatsrelay/internal/tracing"
)

// ContextKey is a package-local type to prevent context key collisions
type ContextKey string

// VerboseContextKey is the strongly-typed context key for verbose logging flag
const VerboseContextKey ContextKey = "verbose"

// WithVerbose marks ctx so that message identifiers are logged unmasked.
func WithVerbose(ctx context.Context, verbose bool) context.Context {
	return context.WithValue(ctx, VerboseContextKey, verbose)
}

// IsVerboseLogging checks if verbose logging is enabled from context
func IsVerboseLogging(ctx context.Context) bool {
	if verbose, ok := ctx.Value(VerboseContextKey).(bool); ok {
		return verbose
	}
	return false
}

// messageFields builds the standard log fields for a message, masked unless
// verbose logging is on.
func messageFields(ctx context.Context, msg *models.Message) logrus.Fields {
	fields := logrus.Fields{
		LogFieldConversationID: msg.ConversationID,
		LogFieldMessageID:      msg.ExternalID,
		LogFieldDirection:      string(msg.Direction),
		LogFieldContentType:    string(msg.ContentType),
	}
	if !IsVerboseLogging(ctx) {
		fields = privacy.MaskSensitiveFields(fields)
	}
	if requestID := tracing.GetRequestID(ctx); requestID != "" {
		fields[LogFieldRequestID] = requestID
	}
	return fields
}

// maskID masks a message id unless verbose logging is on.
func maskID(ctx context.Context, id string) string {
	if IsVerboseLogging(ctx) {
		return id
	}
	return privacy.MaskMessageID(id)
}

func maskConversation(ctx context.Context, conversationID string) string {
	if IsVerboseLogging(ctx) {
		return conversationID
	}
	return privacy.MaskConversationID(conversationID)
}
