package database

const messageColumns = `
	id, external_id, COALESCE(status_correlation_id, ''), conversation_id,
	sender_display_name, content, content_type, occurred_at, delivery_status,
	direction, from_address, to_address, raw_payload, created_at, updated_at`

// SQLite queries
const (
	sqliteInsertMessageQuery = `
		INSERT INTO messages (
			external_id, status_correlation_id, conversation_id, sender_display_name,
			content, content_type, occurred_at, delivery_status, direction,
			from_address, to_address, raw_payload, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(external_id) DO NOTHING
		RETURNING id`

	sqliteUpdateStatusByExternalIDQuery = `
		UPDATE messages
		SET delivery_status = ?, updated_at = ?
		WHERE external_id = ?
		RETURNING` + messageColumns

	sqliteUpdateStatusByCorrelationIDQuery = `
		UPDATE messages
		SET delivery_status = ?, updated_at = ?
		WHERE id = (
			SELECT id FROM messages
			WHERE status_correlation_id = ?
			ORDER BY id DESC
			LIMIT 1
		)
		RETURNING` + messageColumns

	sqliteSelectMessageQuery = `
		SELECT` + messageColumns + `
		FROM messages
		WHERE external_id = ?`

	sqliteSelectConversationPageQuery = `
		SELECT` + messageColumns + `
		FROM messages
		WHERE conversation_id = ?
		ORDER BY occurred_at DESC, id DESC
		LIMIT ? OFFSET ?`

	sqliteCountConversationQuery = `
		SELECT COUNT(*) FROM messages WHERE conversation_id = ?`

	sqliteMarkConversationReadQuery = `
		UPDATE messages
		SET delivery_status = 'read', updated_at = ?
		WHERE conversation_id = ?
		  AND direction = 'incoming'
		  AND delivery_status <> 'read'`

	sqliteDeleteOlderThanQuery = `
		DELETE FROM messages WHERE occurred_at < ?`

	sqliteCreateMigrationsTableQuery = `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			applied_at TEXT NOT NULL
		)`

	sqliteRecordMigrationQuery = `
		INSERT INTO schema_migrations (version, name, applied_at) VALUES (?, ?, ?)`
)

// PostgreSQL queries
const (
	postgresInsertMessageQuery = `
		INSERT INTO messages (
			external_id, status_correlation_id, conversation_id, sender_display_name,
			content, content_type, occurred_at, delivery_status, direction,
			from_address, to_address, raw_payload
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (external_id) DO NOTHING
		RETURNING id, created_at, updated_at`

	postgresUpdateStatusByExternalIDQuery = `
		UPDATE messages
		SET delivery_status = $1, updated_at = NOW()
		WHERE external_id = $2
		RETURNING` + messageColumns

	postgresUpdateStatusByCorrelationIDQuery = `
		UPDATE messages
		SET delivery_status = $1, updated_at = NOW()
		WHERE id = (
			SELECT id FROM messages
			WHERE status_correlation_id = $2
			ORDER BY id DESC
			LIMIT 1
		)
		RETURNING` + messageColumns

	postgresSelectMessageQuery = `
		SELECT` + messageColumns + `
		FROM messages
		WHERE external_id = $1`

	postgresSelectConversationPageQuery = `
		SELECT` + messageColumns + `
		FROM messages
		WHERE conversation_id = $1
		ORDER BY occurred_at DESC, id DESC
		LIMIT $2 OFFSET $3`

	postgresCountConversationQuery = `
		SELECT COUNT(*) FROM messages WHERE conversation_id = $1`

	postgresMarkConversationReadQuery = `
		UPDATE messages
		SET delivery_status = 'read', updated_at = NOW()
		WHERE conversation_id = $1
		  AND direction = 'incoming'
		  AND delivery_status <> 'read'`

	postgresDeleteOlderThanQuery = `
		DELETE FROM messages WHERE occurred_at < $1`

	postgresCreateMigrationsTableQuery = `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`

	postgresRecordMigrationQuery = `
		INSERT INTO schema_migrations (version, name) VALUES ($1, $2)`
)

// Shared by both drivers: the latest message per conversation is picked with
// a window function, ties broken by the newest row.
const (
	selectConversationsQuery = `
		WITH ranked AS (
			SELECT conversation_id, sender_display_name, content, content_type,
			       occurred_at, delivery_status, direction,
			       ROW_NUMBER() OVER (
			           PARTITION BY conversation_id
			           ORDER BY occurred_at DESC, id DESC
			       ) AS rn
			FROM messages
		),
		unread AS (
			SELECT conversation_id, COUNT(*) AS unread_count
			FROM messages
			WHERE direction = 'incoming' AND delivery_status <> 'read'
			GROUP BY conversation_id
		)
		SELECT r.conversation_id, r.sender_display_name, r.content, r.content_type,
		       r.occurred_at, r.delivery_status, r.direction,
		       COALESCE(u.unread_count, 0)
		FROM ranked r
		LEFT JOIN unread u ON u.conversation_id = r.conversation_id
		WHERE r.rn = 1
		ORDER BY r.occurred_at DESC, r.conversation_id ASC`

	selectAppliedMigrationsQuery = `
		SELECT version FROM schema_migrations`
)
