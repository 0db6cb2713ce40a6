package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"whatsrelay/internal/constants"
	"whatsrelay/internal/migrations"
	"whatsrelay/internal/models"
	"whatsrelay/internal/security"
)

// sqliteTimeLayout is fixed width so that text comparison orders timestamps.
const sqliteTimeLayout = "2006-01-02T15:04:05.000000000Z"

// SQLiteStore is the default Store backed by a local SQLite file.
type SQLiteStore struct {
	db        *sql.DB
	encryptor *encryptor
}

func NewSQLite(dbPath string) (*SQLiteStore, error) {
	if err := security.ValidateFilePath(dbPath); err != nil {
		return nil, fmt.Errorf("invalid database path: %w", err)
	}

	file, err := os.OpenFile(dbPath, os.O_RDWR|os.O_CREATE, 0600)
	if err != nil {
		return nil, fmt.Errorf("failed to create database file: %w", err)
	}
	if err := file.Close(); err != nil {
		return nil, fmt.Errorf("failed to close database file: %w", err)
	}

	dsn := fmt.Sprintf("file:%s?_journal_mode=WAL&_busy_timeout=%d", dbPath, constants.DefaultSQLiteBusyTimeout)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			return nil, fmt.Errorf("failed to ping database: %w (close error: %v)", err, closeErr)
		}
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	enc, err := NewEncryptor()
	if err != nil {
		if closeErr := db.Close(); closeErr != nil {
			return nil, fmt.Errorf("failed to initialize encryptor: %w (close error: %v)", err, closeErr)
		}
		return nil, fmt.Errorf("failed to initialize encryptor: %w", err)
	}

	return &SQLiteStore{db: db, encryptor: enc}, nil
}

func (s *SQLiteStore) Driver() string { return constants.DriverSQLite }

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLiteStore) InsertIfAbsent(ctx context.Context, msg *models.Message) (bool, error) {
	raw, err := s.encryptor.Encrypt(rawPayloadText(msg))
	if err != nil {
		return false, fmt.Errorf("failed to encrypt raw payload: %w", err)
	}

	now := time.Now().UTC()
	var id int64
	err = withRetry(ctx, "insert message", func() error {
		return s.db.QueryRowContext(ctx, sqliteInsertMessageQuery,
			msg.ExternalID,
			nullable(msg.StatusCorrelationID),
			msg.ConversationID,
			msg.SenderDisplayName,
			msg.Content,
			string(msg.ContentType),
			formatTime(msg.OccurredAt),
			string(msg.DeliveryStatus),
			string(msg.Direction),
			msg.From,
			msg.To,
			raw,
			formatTime(now),
			formatTime(now),
		).Scan(&id)
	})
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to insert message: %w", err)
	}

	msg.ID = id
	msg.CreatedAt = now
	msg.UpdatedAt = now
	return true, nil
}

func (s *SQLiteStore) UpdateStatus(ctx context.Context, targetID string, status models.DeliveryStatus) (*models.Message, error) {
	for _, query := range []string{sqliteUpdateStatusByExternalIDQuery, sqliteUpdateStatusByCorrelationIDQuery} {
		var msg *models.Message
		err := withRetry(ctx, "update status", func() error {
			var scanErr error
			msg, scanErr = s.scanMessage(s.db.QueryRowContext(ctx, query, string(status), formatTime(time.Now().UTC()), targetID))
			return scanErr
		})
		if errors.Is(err, sql.ErrNoRows) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to update delivery status: %w", err)
		}
		return msg, nil
	}
	return nil, nil
}

func (s *SQLiteStore) GetMessage(ctx context.Context, externalID string) (*models.Message, error) {
	msg, err := s.scanMessage(s.db.QueryRowContext(ctx, sqliteSelectMessageQuery, externalID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get message: %w", err)
	}
	return msg, nil
}

func (s *SQLiteStore) ListMessages(ctx context.Context, conversationID string, offset, limit int) ([]*models.Message, int64, error) {
	var total int64
	if err := s.db.QueryRowContext(ctx, sqliteCountConversationQuery, conversationID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count messages: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, sqliteSelectConversationPageQuery, conversationID, limit, offset)
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

func (s *SQLiteStore) ListConversations(ctx context.Context) ([]models.Conversation, error) {
	rows, err := s.db.QueryContext(ctx, selectConversationsQuery)
	if err != nil {
		return nil, fmt.Errorf("failed to list conversations: %w", err)
	}
	defer rows.Close()

	conversations := []models.Conversation{}
	for rows.Next() {
		var (
			c          models.Conversation
			occurredAt string
		)
		if err := rows.Scan(
			&c.ConversationID,
			&c.DisplayName,
			&c.LastMessage.Content,
			&c.LastMessage.ContentType,
			&occurredAt,
			&c.LastMessage.DeliveryStatus,
			&c.LastMessage.Direction,
			&c.UnreadCount,
		); err != nil {
			return nil, fmt.Errorf("failed to scan conversation: %w", err)
		}
		if c.LastMessage.OccurredAt, err = parseTime(occurredAt); err != nil {
			return nil, err
		}
		conversations = append(conversations, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate conversations: %w", err)
	}
	return conversations, nil
}

func (s *SQLiteStore) MarkConversationRead(ctx context.Context, conversationID string) (int64, error) {
	var affected int64
	err := withRetry(ctx, "mark read", func() error {
		res, err := s.db.ExecContext(ctx, sqliteMarkConversationReadQuery, formatTime(time.Now().UTC()), conversationID)
		if err != nil {
			return err
		}
		affected, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("failed to mark conversation read: %w", err)
	}
	return affected, nil
}

func (s *SQLiteStore) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	var affected int64
	err := withRetry(ctx, "delete old messages", func() error {
		res, err := s.db.ExecContext(ctx, sqliteDeleteOlderThanQuery, formatTime(cutoff))
		if err != nil {
			return err
		}
		affected, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("failed to delete old messages: %w", err)
	}
	return affected, nil
}

func (s *SQLiteStore) EnsureMigrationsTable(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteCreateMigrationsTableQuery)
	return err
}

func (s *SQLiteStore) AppliedVersions(ctx context.Context) (map[int]bool, error) {
	rows, err := s.db.QueryContext(ctx, selectAppliedMigrationsQuery)
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

func (s *SQLiteStore) ApplyMigration(ctx context.Context, m migrations.Migration) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, m.SQL); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, sqliteRecordMigrationQuery, m.Version, m.Name, formatTime(time.Now().UTC())); err != nil {
		return err
	}
	return tx.Commit()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (s *SQLiteStore) scanMessage(row rowScanner) (*models.Message, error) {
	var (
		msg                              models.Message
		occurredAt, createdAt, updatedAt string
		raw                              string
	)
	if err := row.Scan(
		&msg.ID,
		&msg.ExternalID,
		&msg.StatusCorrelationID,
		&msg.ConversationID,
		&msg.SenderDisplayName,
		&msg.Content,
		&msg.ContentType,
		&occurredAt,
		&msg.DeliveryStatus,
		&msg.Direction,
		&msg.From,
		&msg.To,
		&raw,
		&createdAt,
		&updatedAt,
	); err != nil {
		return nil, err
	}

	var err error
	if msg.OccurredAt, err = parseTime(occurredAt); err != nil {
		return nil, err
	}
	if msg.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if msg.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}

	plain, err := s.encryptor.Decrypt(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt raw payload: %w", err)
	}
	msg.RawPayload = []byte(plain)
	return &msg, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(sqliteTimeLayout)
}

func parseTime(value string) (time.Time, error) {
	t, err := time.Parse(sqliteTimeLayout, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid stored timestamp %q: %w", value, err)
	}
	return t, nil
}
