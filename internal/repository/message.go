package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/adilcse/okneppo-sub001/internal/model"
)

// MessageRepository handles database operations for the message ledger
type MessageRepository struct {
	db *sql.DB
}

// NewMessageRepository creates a new message repository
func NewMessageRepository(db *sql.DB) *MessageRepository {
	return &MessageRepository{db: db}
}

const messageColumns = `id, message_id, direction, from_number, to_number, business_account_id,
	type, content, status, timestamp, placeholder, created_at, updated_at`

// Upsert writes a full message snapshot keyed by the external message ID. A
// conflicting row (typically a status-only placeholder) is overwritten in
// place: direction, numbers, type, content, status and timestamp all take the
// incoming values, and the placeholder flag is cleared. The internal row ID is
// kept, so observers see a single row across the merge.
func (r *MessageRepository) Upsert(ctx context.Context, m *model.Message) error {
	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	now := time.Now()
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO messages (id, message_id, direction, from_number, to_number,
			business_account_id, type, content, status, timestamp, placeholder, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 0, ?, ?)
		ON CONFLICT(message_id) DO UPDATE SET
			direction = excluded.direction,
			from_number = excluded.from_number,
			to_number = excluded.to_number,
			business_account_id = excluded.business_account_id,
			type = excluded.type,
			content = excluded.content,
			status = excluded.status,
			timestamp = excluded.timestamp,
			placeholder = 0,
			updated_at = excluded.updated_at
	`, m.ID, m.MessageID, m.Direction, m.FromNumber, m.ToNumber,
		m.BusinessAccountID, m.Type, m.Content, m.Status, m.Timestamp, now, now)
	if err != nil {
		return err
	}

	// On a merge the row keeps its original internal ID; reflect it back so
	// callers never hand out an ID that is not in the ledger.
	return r.db.QueryRowContext(ctx, `SELECT id FROM messages WHERE message_id = ?`, m.MessageID).Scan(&m.ID)
}

// InsertPlaceholder creates a status-only row for a message whose content has
// not arrived yet. A concurrent insert of the same message ID wins silently.
func (r *MessageRepository) InsertPlaceholder(ctx context.Context, m *model.Message) error {
	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	now := time.Now()
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO messages (id, message_id, direction, from_number, to_number,
			business_account_id, type, content, status, timestamp, placeholder, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 1, ?, ?)
		ON CONFLICT(message_id) DO NOTHING
	`, m.ID, m.MessageID, m.Direction, m.FromNumber, m.ToNumber,
		m.BusinessAccountID, m.Type, m.Content, m.Status, m.Timestamp, now, now)
	return err
}

// GetByMessageID gets a message by its external message ID
func (r *MessageRepository) GetByMessageID(ctx context.Context, messageID string) (*model.Message, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+messageColumns+`
		FROM messages
		WHERE message_id = ?
		LIMIT 1
	`, messageID)

	var m model.Message
	var placeholder int
	err := row.Scan(
		&m.ID,
		&m.MessageID,
		&m.Direction,
		&m.FromNumber,
		&m.ToNumber,
		&m.BusinessAccountID,
		&m.Type,
		&m.Content,
		&m.Status,
		&m.Timestamp,
		&placeholder,
		&m.CreatedAt,
		&m.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	m.Placeholder = placeholder != 0
	return &m, nil
}

// UpdateStatus writes a new status/timestamp pair onto an existing row
func (r *MessageRepository) UpdateStatus(ctx context.Context, messageID, status string, ts time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE messages
		SET status = ?, timestamp = ?, updated_at = ?
		WHERE message_id = ?
	`, status, ts, time.Now(), messageID)
	return err
}

// HasConversationWith reports whether any message has been exchanged with the
// given phone number before
func (r *MessageRepository) HasConversationWith(ctx context.Context, phone string) (bool, error) {
	var exists int
	err := r.db.QueryRowContext(ctx, `
		SELECT EXISTS(SELECT 1 FROM messages WHERE from_number = ? OR to_number = ?)
	`, phone, phone).Scan(&exists)
	return exists != 0, err
}

// CountByMessageID returns the number of rows for an external message ID
func (r *MessageRepository) CountByMessageID(ctx context.Context, messageID string) (int64, error) {
	var count int64
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM messages WHERE message_id = ?`, messageID).Scan(&count)
	return count, err
}
