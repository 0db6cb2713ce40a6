package service

import (
	"context"
	"time"

	"whatsrelay/internal/models"
)

// MessageStore is the subset of the persistence layer the services depend on.
// database.Store satisfies it.
type MessageStore interface {
	InsertIfAbsent(ctx context.Context, msg *models.Message) (bool, error)
	UpdateStatus(ctx context.Context, targetID string, status models.DeliveryStatus) (*models.Message, error)
	GetMessage(ctx context.Context, externalID string) (*models.Message, error)
	ListMessages(ctx context.Context, conversationID string, offset, limit int) ([]*models.Message, int64, error)
	ListConversations(ctx context.Context) ([]models.Conversation, error)
	MarkConversationRead(ctx context.Context, conversationID string) (int64, error)
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}
