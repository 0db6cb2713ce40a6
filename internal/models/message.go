package models

import (
	"encoding/json"
	"time"
)

type DeliveryStatus string

const (
	DeliveryStatusSent      DeliveryStatus = "sent"
	DeliveryStatusDelivered DeliveryStatus = "delivered"
	DeliveryStatusRead      DeliveryStatus = "read"
	DeliveryStatusFailed    DeliveryStatus = "failed"
)

// IsKnown reports whether s is one of the statuses the UI understands.
// Provider statuses are stored verbatim even when this returns false.
func (s DeliveryStatus) IsKnown() bool {
	switch s {
	case DeliveryStatusSent, DeliveryStatusDelivered, DeliveryStatusRead, DeliveryStatusFailed:
		return true
	}
	return false
}

type ContentType string

const (
	TextMessage     ContentType = "text"
	ImageMessage    ContentType = "image"
	DocumentMessage ContentType = "document"
	AudioMessage    ContentType = "audio"
	VideoMessage    ContentType = "video"
)

// ParseContentType maps a provider type tag onto a ContentType. The boolean is
// false when the tag is not recognized, in which case text is returned.
func ParseContentType(tag string) (ContentType, bool) {
	switch ContentType(tag) {
	case TextMessage, ImageMessage, DocumentMessage, AudioMessage, VideoMessage:
		return ContentType(tag), true
	}
	return TextMessage, false
}

type Direction string

const (
	DirectionIncoming Direction = "incoming"
	DirectionOutgoing Direction = "outgoing"
)

// Message is the canonical persisted unit of communication.
type Message struct {
	ID                  int64           `json:"-" db:"id"`
	ExternalID          string          `json:"externalId" db:"external_id"`
	StatusCorrelationID string          `json:"statusCorrelationId,omitempty" db:"status_correlation_id"`
	ConversationID      string          `json:"conversationId" db:"conversation_id"`
	SenderDisplayName   string          `json:"senderDisplayName" db:"sender_display_name"`
	Content             string          `json:"content" db:"content"`
	ContentType         ContentType     `json:"contentType" db:"content_type"`
	OccurredAt          time.Time       `json:"occurredAt" db:"occurred_at"`
	DeliveryStatus      DeliveryStatus  `json:"deliveryStatus" db:"delivery_status"`
	Direction           Direction       `json:"direction" db:"direction"`
	From                string          `json:"from" db:"from_address"`
	To                  string          `json:"to" db:"to_address"`
	RawPayload          json.RawMessage `json:"rawPayload,omitempty" db:"raw_payload"`
	CreatedAt           time.Time       `json:"createdAt" db:"created_at"`
	UpdatedAt           time.Time       `json:"updatedAt" db:"updated_at"`
}

// MessageSummary is the slice of a message shown in the conversation list.
type MessageSummary struct {
	Content        string         `json:"content"`
	OccurredAt     time.Time      `json:"occurredAt"`
	ContentType    ContentType    `json:"contentType"`
	DeliveryStatus DeliveryStatus `json:"deliveryStatus"`
	Direction      Direction      `json:"direction"`
}

// Conversation is derived from the messages sharing a conversation id.
type Conversation struct {
	ConversationID string         `json:"conversationId"`
	DisplayName    string         `json:"displayName"`
	LastMessage    MessageSummary `json:"lastMessage"`
	UnreadCount    int            `json:"unreadCount"`
}

// Pagination describes one page of a conversation's messages.
type Pagination struct {
	Page  int   `json:"page"`
	Limit int   `json:"limit"`
	Total int64 `json:"total"`
}

type MessagePage struct {
	Messages   []*Message `json:"messages"`
	Pagination Pagination `json:"pagination"`
}

// StatusUpdate is the normalized form of a provider status event.
type StatusUpdate struct {
	TargetID   string
	Status     DeliveryStatus
	OccurredAt time.Time
	Recipient  string
}

// OutgoingMessage is a client-originated send request.
type OutgoingMessage struct {
	ConversationID string      `json:"conversationId"`
	Content        string      `json:"content"`
	ContentType    ContentType `json:"contentType,omitempty"`
	ClientID       string      `json:"clientId,omitempty"`
}
