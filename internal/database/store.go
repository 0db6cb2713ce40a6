package database

import (
	"context"
	"fmt"
	"time"

	"whatsrelay/internal/constants"
	"whatsrelay/internal/migrations"
	"whatsrelay/internal/models"
)

// Store is the persistence contract for messages. Lookups that find nothing
// return (nil, nil).
type Store interface {
	// InsertIfAbsent inserts msg unless a row with the same external id exists.
	// It reports whether a row was created and fills ID, CreatedAt and UpdatedAt
	// on success.
	InsertIfAbsent(ctx context.Context, msg *models.Message) (bool, error)

	// UpdateStatus sets the delivery status of the message whose external id
	// equals targetID, falling back to the newest message whose status
	// correlation id equals targetID.
	UpdateStatus(ctx context.Context, targetID string, status models.DeliveryStatus) (*models.Message, error)

	GetMessage(ctx context.Context, externalID string) (*models.Message, error)

	// ListMessages returns up to limit messages of a conversation after
	// skipping offset newer ones, in chronological order, plus the total count.
	ListMessages(ctx context.Context, conversationID string, offset, limit int) ([]*models.Message, int64, error)

	ListConversations(ctx context.Context) ([]models.Conversation, error)
	MarkConversationRead(ctx context.Context, conversationID string) (int64, error)
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)

	Ping(ctx context.Context) error
	Driver() string
	Close() error

	migrations.Runner
}

// Open connects to the store selected by cfg.Driver.
func Open(ctx context.Context, cfg models.DatabaseConfig) (Store, error) {
	switch cfg.Driver {
	case "", constants.DriverSQLite:
		path := cfg.Path
		if path == "" {
			path = constants.DefaultDBPath
		}
		return NewSQLite(path)
	case constants.DriverPostgres:
		return NewPostgres(ctx, cfg.URL, cfg.MaxConns)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
}

// Migrate applies pending schema migrations and returns the versions applied.
func Migrate(ctx context.Context, store Store) ([]int, error) {
	return migrations.Run(ctx, store, store.Driver())
}

// nullable maps an empty string to SQL NULL.
func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func reverse(msgs []*models.Message) {
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
}

func rawPayloadText(msg *models.Message) string {
	if len(msg.RawPayload) == 0 {
		return "{}"
	}
	return string(msg.RawPayload)
}
