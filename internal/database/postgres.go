package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"whatsrelay/internal/constants"
	"whatsrelay/internal/migrations"
	"whatsrelay/internal/models"
)

// PostgresStore handles PostgreSQL database operations.
type PostgresStore struct {
	pool      *pgxpool.Pool
	encryptor *encryptor
}

// NewPostgres creates a PostgreSQL store with a connection pool.
func NewPostgres(ctx context.Context, databaseURL string, maxConns int) (*PostgresStore, error) {
	if databaseURL == "" {
		return nil, fmt.Errorf("database url is required for the postgres driver")
	}

	poolCfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid database url: %w", err)
	}
	if maxConns <= 0 {
		maxConns = constants.DefaultPostgresMaxConns
	}
	poolCfg.MaxConns = int32(maxConns)

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	enc, err := NewEncryptor()
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to initialize encryptor: %w", err)
	}

	return &PostgresStore{pool: pool, encryptor: enc}, nil
}

func (s *PostgresStore) Driver() string { return constants.DriverPostgres }

// Close closes the database connection pool.
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

// Ping checks the database connection.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *PostgresStore) InsertIfAbsent(ctx context.Context, msg *models.Message) (bool, error) {
	raw, err := s.encryptor.Encrypt(rawPayloadText(msg))
	if err != nil {
		return false, fmt.Errorf("failed to encrypt raw payload: %w", err)
	}

	err = withRetry(ctx, "insert message", func() error {
		return s.pool.QueryRow(ctx, postgresInsertMessageQuery,
			msg.ExternalID,
			nullable(msg.StatusCorrelationID),
			msg.ConversationID,
			msg.SenderDisplayName,
			msg.Content,
			string(msg.ContentType),
			msg.OccurredAt.UTC(),
			string(msg.DeliveryStatus),
			string(msg.Direction),
			msg.From,
			msg.To,
			raw,
		).Scan(&msg.ID, &msg.CreatedAt, &msg.UpdatedAt)
	})
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to insert message: %w", err)
	}
	return true, nil
}

func (s *PostgresStore) UpdateStatus(ctx context.Context, targetID string, status models.DeliveryStatus) (*models.Message, error) {
	for _, query := range []string{postgresUpdateStatusByExternalIDQuery, postgresUpdateStatusByCorrelationIDQuery} {
		var msg *models.Message
		err := withRetry(ctx, "update status", func() error {
			var scanErr error
			msg, scanErr = s.scanMessage(s.pool.QueryRow(ctx, query, string(status), targetID))
			return scanErr
		})
		if errors.Is(err, pgx.ErrNoRows) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to update delivery status: %w", err)
		}
		return msg, nil
	}
	return nil, nil
}

func (s *PostgresStore) GetMessage(ctx context.Context, externalID string) (*models.Message, error) {
	msg, err := s.scanMessage(s.pool.QueryRow(ctx, postgresSelectMessageQuery, externalID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get message: %w", err)
	}
	return msg, nil
}

func (s *PostgresStore) ListMessages(ctx context.Context, conversationID string, offset, limit int) ([]*models.Message, int64, error) {
	var total int64
	if err := s.pool.QueryRow(ctx, postgresCountConversationQuery, conversationID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count messages: %w", err)
	}

	rows, err := s.pool.Query(ctx, postgresSelectConversationPageQuery, conversationID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list messages: %w", err)
	}
	defer rows.Close()

	msgs := make([]*models.Message, 0, limit)
	for rows.Next() {
		msg, err := s.scanMessage(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan message: %w", err)
		}
		msgs = append(msgs, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to iterate messages: %w", err)
	}

	reverse(msgs)
	return msgs, total, nil
}

func (s *PostgresStore) ListConversations(ctx context.Context) ([]models.Conversation, error) {
	rows, err := s.pool.Query(ctx, selectConversationsQuery)
	if err != nil {
		return nil, fmt.Errorf("failed to list conversations: %w", err)
	}
	defer rows.Close()

	conversations := []models.Conversation{}
	for rows.Next() {
		var c models.Conversation
		if err := rows.Scan(
			&c.ConversationID,
			&c.DisplayName,
			&c.LastMessage.Content,
			&c.LastMessage.ContentType,
			&c.LastMessage.OccurredAt,
			&c.LastMessage.DeliveryStatus,
			&c.LastMessage.Direction,
			&c.UnreadCount,
		); err != nil {
			return nil, fmt.Errorf("failed to scan conversation: %w", err)
		}
		c.LastMessage.OccurredAt = c.LastMessage.OccurredAt.UTC()
		conversations = append(conversations, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate conversations: %w", err)
	}
	return conversations, nil
}

func (s *PostgresStore) MarkConversationRead(ctx context.Context, conversationID string) (int64, error) {
	var affected int64
	err := withRetry(ctx, "mark read", func() error {
		tag, err := s.pool.Exec(ctx, postgresMarkConversationReadQuery, conversationID)
		if err != nil {
			return err
		}
		affected = tag.RowsAffected()
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to mark conversation read: %w", err)
	}
	return affected, nil
}

func (s *PostgresStore) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, postgresDeleteOlderThanQuery, cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to delete old messages: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (s *PostgresStore) EnsureMigrationsTable(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresCreateMigrationsTableQuery)
	return err
}

func (s *PostgresStore) AppliedVersions(ctx context.Context) (map[int]bool, error) {
	rows, err := s.pool.Query(ctx, selectAppliedMigrationsQuery)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	applied := make(map[int]bool)
	for rows.Next() {
		var version int
		if err := rows.Scan(&version); err != nil {
			return nil, err
		}
		applied[version] = true
	}
	return applied, rows.Err()
}

func (s *PostgresStore) ApplyMigration(ctx context.Context, m migrations.Migration) error {
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, m.SQL); err != nil {
			return err
		}
		_, err := tx.Exec(ctx, postgresRecordMigrationQuery, m.Version, m.Name)
		return err
	})
}

func (s *PostgresStore) scanMessage(row rowScanner) (*models.Message, error) {
	var (
		msg models.Message
		raw string
	)
	if err := row.Scan(
		&msg.ID,
		&msg.ExternalID,
		&msg.StatusCorrelationID,
		&msg.ConversationID,
		&msg.SenderDisplayName,
		&msg.Content,
		&msg.ContentType,
		&msg.OccurredAt,
		&msg.DeliveryStatus,
		&msg.Direction,
		&msg.From,
		&msg.To,
		&raw,
		&msg.CreatedAt,
		&msg.UpdatedAt,
	); err != nil {
		return nil, err
	}

	msg.OccurredAt = msg.OccurredAt.UTC()
	msg.CreatedAt = msg.CreatedAt.UTC()
	msg.UpdatedAt = msg.UpdatedAt.UTC()

	plain, err := s.encryptor.Decrypt(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt raw payload: %w", err)
	}
	msg.RawPayload = []byte(plain)
	return &msg, nil
}
