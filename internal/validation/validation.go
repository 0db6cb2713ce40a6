package validation

import (
	"fmt"
	"net/http"
	"strings"
	"unicode"
	"unicode/utf8"

	"whatsrelay/internal/constants"
	appErrors "whatsrelay/internal/errors"
)

// NormalizeConversationID returns the canonical form of a conversation key.
// Every path that reads, writes or publishes by conversation id applies it.
func NormalizeConversationID(conversationID string) string {
	return strings.TrimSpace(conversationID)
}

// ValidateConversationID checks a conversation key (the contact wa_id).
func ValidateConversationID(conversationID string) error {
	if strings.TrimSpace(conversationID) == "" {
		return appErrors.NewValidationError("conversationId", conversationID, "conversation id is required")
	}
	if len(conversationID) > constants.MaxConversationIDLength {
		return appErrors.NewValidationError("conversationId", "",
			fmt.Sprintf("conversation id too long (max %d characters)", constants.MaxConversationIDLength))
	}
	if hasControlChars(conversationID) {
		return appErrors.NewValidationError("conversationId", "", "conversation id contains invalid characters")
	}
	return nil
}

// ValidateMessageID checks an external id or status correlation id.
func ValidateMessageID(messageID string) error {
	if strings.TrimSpace(messageID) == "" {
		return appErrors.NewValidationError("id", messageID, "message id is required")
	}
	if len(messageID) > constants.MaxMessageIDLength {
		return appErrors.NewValidationError("id", "",
			fmt.Sprintf("message id too long (max %d characters)", constants.MaxMessageIDLength))
	}
	if hasControlChars(messageID) {
		return appErrors.NewValidationError("id", "", "message id contains invalid characters")
	}
	return nil
}

// ValidateContent checks client supplied message text.
func ValidateContent(content string) error {
	if strings.TrimSpace(content) == "" {
		return appErrors.NewValidationError("content", "", "content is required")
	}
	if !utf8.ValidString(content) {
		return appErrors.NewValidationError("content", "", "content must be valid UTF-8")
	}
	if len(content) > constants.MaxContentLength {
		return appErrors.NewValidationError("content", "",
			fmt.Sprintf("content too long (max %d bytes)", constants.MaxContentLength))
	}
	return nil
}

// ValidatePagination checks page and limit after defaults have been applied.
func ValidatePagination(page, limit int) error {
	if err := ValidateNumericRange(page, "page", 1, constants.MaxPage); err != nil {
		return err
	}
	return ValidateNumericRange(limit, "limit", 1, constants.MaxMessageLimit)
}

// ValidateHTTPRequestSize validates incoming HTTP request size
func ValidateHTTPRequestSize(r *http.Request, maxSizeBytes int64) error {
	if r.ContentLength > maxSizeBytes {
		return appErrors.NewValidationError("body", "",
			fmt.Sprintf("request too large: %d bytes (max %d bytes)", r.ContentLength, maxSizeBytes))
	}
	return nil
}

// ValidateNumericRange validates numeric values against bounds
func ValidateNumericRange(value int, fieldName string, min, max int) error {
	if value < min || value > max {
		return appErrors.NewValidationError(fieldName, fmt.Sprint(value),
			fmt.Sprintf("%s must be between %d and %d", fieldName, min, max))
	}
	return nil
}

// ValidateRetentionDays accepts 0 (retention disabled) up to ten years.
func ValidateRetentionDays(days int) error {
	return ValidateNumericRange(days, "retentionDays", 0, constants.MaxRetentionDays)
}

func hasControlChars(s string) bool {
	for _, r := range s {
		if unicode.IsControl(r) {
			return true
		}
	}
	return false
}
