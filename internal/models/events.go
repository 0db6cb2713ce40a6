package models

import "time"

type DomainEventKind string

const (
	MessageCreated DomainEventKind = "message_created"
	StatusChanged  DomainEventKind = "status_changed"
)

// DomainEvent is produced by ingestion and the outbound path and turned into
// realtime events by the dispatcher.
type DomainEvent struct {
	Kind    DomainEventKind
	Message *Message
}

// Realtime event names shared with the browser client.
const (
	EventJoinConversation    = "join-conversation"
	EventLeaveConversation   = "leave-conversation"
	EventSendMessage         = "send-message"
	EventNewMessage          = "new-message"
	EventMessageStatusUpdate = "message-status-update"
	EventConversationUpdate  = "conversation-update"
	EventError               = "error"
)

// RealtimeEvent is a single frame delivered to realtime subscribers.
type RealtimeEvent struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

type StatusUpdateEvent struct {
	ID     string         `json:"id"`
	Status DeliveryStatus `json:"status"`
}

type ConversationUpdateEvent struct {
	ConversationID string   `json:"conversationId"`
	LastMessage    *Message `json:"lastMessage"`
}

type ErrorEvent struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ForwardedEvent is the envelope mirrored to the external event bus.
type ForwardedEvent struct {
	Event          string    `json:"event"`
	ConversationID string    `json:"conversationId,omitempty"`
	Data           any       `json:"data"`
	PublishedAt    time.Time `json:"publishedAt"`
}
