package privacy

import (
	"strings"
)

// MaskPhoneNumber masks a phone number showing only the last 4 digits
// Example: "+919937320320" -> "+********0320"
func MaskPhoneNumber(phone string) string {
	if phone == "" {
		return ""
	}

	if strings.HasPrefix(phone, "+") {
		if len(phone) == 1 {
			return phone
		}
		return "+" + maskString(phone[1:], 4)
	}

	return maskString(phone, 4)
}

// MaskConversationID masks a conversation identifier. Conversations are keyed
// by the counterpart's WhatsApp id, which is a phone number.
func MaskConversationID(conversationID string) string {
	return MaskPhoneNumber(conversationID)
}

// MaskMessageID keeps the provider prefix and the tail of a message id
// Example: "wamid.HBgMOTE5OTM3MzIwMzIw" -> "wamid.***************MzIw"
func MaskMessageID(messageID string) string {
	if messageID == "" {
		return ""
	}

	for _, prefix := range []string{"wamid.", "out_"} {
		if rest, ok := strings.CutPrefix(messageID, prefix); ok {
			return prefix + maskString(rest, 4)
		}
	}

	return maskString(messageID, 8)
}

// MaskContent hides message bodies entirely
func MaskContent(content string) string {
	if content == "" {
		return ""
	}
	return "[hidden]"
}

// maskString masks a string showing only the last n characters
func maskString(s string, keepLast int) string {
	if s == "" {
		return ""
	}

	if len(s) <= keepLast {
		return strings.Repeat("*", len(s))
	}

	return strings.Repeat("*", len(s)-keepLast) + s[len(s)-keepLast:]
}

// MaskSensitiveFields applies appropriate masking to common logging fields
func MaskSensitiveFields(fields map[string]interface{}) map[string]interface{} {
	if fields == nil {
		return nil
	}

	masked := make(map[string]interface{}, len(fields))
	for k, v := range fields {
		s, isString := v.(string)
		if !isString {
			masked[k] = v
			continue
		}

		switch k {
		case "phone", "phone_number", "from", "to", "recipient":
			masked[k] = MaskPhoneNumber(s)
		case "conversation_id", "conversationId":
			masked[k] = MaskConversationID(s)
		case "message_id", "messageId", "external_id", "client_id":
			masked[k] = MaskMessageID(s)
		case "content", "body":
			masked[k] = MaskContent(s)
		default:
			masked[k] = v
		}
	}

	return masked
}
