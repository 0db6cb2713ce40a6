package models

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// WhatsApp Cloud API webhook discriminators
const (
	ObjectWhatsAppBusinessAccount = "whatsapp_business_account"
	FieldMessages                 = "messages"
)

// MediaPlaceholder is the content stored for media messages without a caption.
const MediaPlaceholder = "Media message"

// WebhookPayload is the top level body of a webhook delivery.
type WebhookPayload struct {
	Object string         `json:"object"`
	Entry  []WebhookEntry `json:"entry"`
}

type WebhookEntry struct {
	ID      string          `json:"id"`
	Changes []WebhookChange `json:"changes"`
}

type WebhookChange struct {
	Field string      `json:"field"`
	Value ChangeValue `json:"value"`
}

// ChangeValue keeps messages and statuses as raw JSON so that one malformed
// item cannot fail decoding of the whole delivery.
type ChangeValue struct {
	MessagingProduct string            `json:"messaging_product"`
	Metadata         *WebhookMetadata  `json:"metadata,omitempty"`
	Contacts         []WebhookContact  `json:"contacts,omitempty"`
	Messages         []json.RawMessage `json:"messages,omitempty"`
	Statuses         []json.RawMessage `json:"statuses,omitempty"`
}

type WebhookMetadata struct {
	DisplayPhoneNumber string `json:"display_phone_number"`
	PhoneNumberID      string `json:"phone_number_id"`
}

type WebhookContact struct {
	WaID    string `json:"wa_id"`
	Profile struct {
		Name string `json:"name"`
	} `json:"profile"`
}

// ContactName returns the profile name for waID, falling back to the first
// contact in the list.
func (v ChangeValue) ContactName(waID string) string {
	for _, c := range v.Contacts {
		if c.WaID == waID {
			return c.Profile.Name
		}
	}
	if len(v.Contacts) > 0 {
		return v.Contacts[0].Profile.Name
	}
	return ""
}

// InboundMessage is one element of value.messages.
type InboundMessage struct {
	ID        string     `json:"id"`
	From      string     `json:"from"`
	Timestamp EpochTime  `json:"timestamp"`
	Type      string     `json:"type"`
	Caption   string     `json:"caption,omitempty"`
	Text      *TextBody  `json:"text,omitempty"`
	Image     *MediaBody `json:"image,omitempty"`
	Video     *MediaBody `json:"video,omitempty"`
	Document  *MediaBody `json:"document,omitempty"`
	Audio     *MediaBody `json:"audio,omitempty"`
}

type TextBody struct {
	Body string `json:"body"`
}

type MediaBody struct {
	ID       string `json:"id"`
	MimeType string `json:"mime_type"`
	Caption  string `json:"caption,omitempty"`
	Filename string `json:"filename,omitempty"`
}

// MediaCaption returns the first non-empty caption carried by the message.
func (m *InboundMessage) MediaCaption() string {
	if m.Caption != "" {
		return m.Caption
	}
	for _, media := range []*MediaBody{m.Image, m.Video, m.Document} {
		if media != nil && media.Caption != "" {
			return media.Caption
		}
	}
	return ""
}

// InboundStatus is one element of value.statuses.
type InboundStatus struct {
	ID          string    `json:"id"`
	Status      string    `json:"status"`
	Timestamp   EpochTime `json:"timestamp"`
	RecipientID string    `json:"recipient_id"`
}

// MaxEpochSeconds is 9999-12-31T23:59:59Z, the last instant a four digit year
// can represent.
const MaxEpochSeconds int64 = 253402300799

// EpochTime holds provider epoch seconds, which arrive either as a JSON string
// or as a number. Valid is false when the field was absent, unparseable or
// outside 1..MaxEpochSeconds.
type EpochTime struct {
	Seconds int64
	Valid   bool
}

func (e *EpochTime) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*e = EpochTime{}
		return nil
	}

	raw := string(data)
	if raw[0] == '"' {
		unquoted, err := strconv.Unquote(raw)
		if err != nil {
			*e = EpochTime{}
			return nil
		}
		raw = strings.TrimSpace(unquoted)
	}

	secs, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		// Fractional numbers are truncated; anything else is treated as absent.
		f, ferr := strconv.ParseFloat(raw, 64)
		if ferr != nil || math.IsNaN(f) || f < 1 || f > float64(MaxEpochSeconds) {
			*e = EpochTime{}
			return nil
		}
		secs = int64(f)
	}
	*e = EpochTime{Seconds: secs, Valid: secs > 0 && secs <= MaxEpochSeconds}
	return nil
}
