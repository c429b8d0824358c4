package repository

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/adilcse/okneppo-sub001/internal/model"
)

func newTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := NewStore(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to open test store: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestUpsertMergesIntoPlaceholderRow(t *testing.T) {
	repo := NewMessageRepository(newTestDB(t))
	ctx := context.Background()
	ts := time.Now().Truncate(time.Second)

	placeholder := &model.Message{
		MessageID: "wamid.A",
		Direction: model.DirectionOutbound,
		ToNumber:  "919900112233",
		Type:      "unknown",
		Content:   model.PlaceholderContent,
		Status:    model.MessageStatusSent,
		Timestamp: ts,
	}
	if err := repo.InsertPlaceholder(ctx, placeholder); err != nil {
		t.Fatalf("InsertPlaceholder() error = %v", err)
	}

	full := &model.Message{
		MessageID:  "wamid.A",
		Direction:  model.DirectionInbound,
		FromNumber: "919900112233",
		ToNumber:   "911234567890",
		Type:       "text",
		Content:    "real content",
		Status:     model.MessageStatusReceived,
		Timestamp:  ts.Add(time.Second),
	}
	if err := repo.Upsert(ctx, full); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}

	count, err := repo.CountByMessageID(ctx, "wamid.A")
	if err != nil {
		t.Fatalf("CountByMessageID() error = %v", err)
	}
	if count != 1 {
		t.Fatalf("rows = %d, want 1 after merge", count)
	}

	got, err := repo.GetByMessageID(ctx, "wamid.A")
	if err != nil {
		t.Fatalf("GetByMessageID() error = %v", err)
	}
	if got.ID != placeholder.ID {
		t.Errorf("internal id changed: %q -> %q", placeholder.ID, got.ID)
	}
	if got.Placeholder {
		t.Error("placeholder flag still set after merge")
	}
	if got.Content != "real content" || got.Direction != model.DirectionInbound {
		t.Errorf("merge did not take message snapshot: content=%q direction=%q", got.Content, got.Direction)
	}
}

func TestInsertPlaceholderDoesNotOverwriteExistingRow(t *testing.T) {
	repo := NewMessageRepository(newTestDB(t))
	ctx := context.Background()
	ts := time.Now().Truncate(time.Second)

	full := &model.Message{
		MessageID:  "wamid.A",
		Direction:  model.DirectionInbound,
		FromNumber: "919900112233",
		Type:       "text",
		Content:    "real content",
		Status:     model.MessageStatusReceived,
		Timestamp:  ts,
	}
	if err := repo.Upsert(ctx, full); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}

	stale := &model.Message{
		MessageID: "wamid.A",
		Direction: model.DirectionOutbound,
		Content:   model.PlaceholderContent,
		Status:    model.MessageStatusSent,
		Timestamp: ts,
	}
	if err := repo.InsertPlaceholder(ctx, stale); err != nil {
		t.Fatalf("InsertPlaceholder() error = %v", err)
	}

	got, _ := repo.GetByMessageID(ctx, "wamid.A")
	if got.Content != "real content" {
		t.Errorf("content = %q, placeholder insert overwrote an existing row", got.Content)
	}
}

func TestHasConversationWith(t *testing.T) {
	repo := NewMessageRepository(newTestDB(t))
	ctx := context.Background()

	if has, err := repo.HasConversationWith(ctx, "919900112233"); err != nil || has {
		t.Errorf("HasConversationWith() = %v, %v; want false, nil on empty ledger", has, err)
	}

	msg := &model.Message{
		MessageID:  "wamid.A",
		Direction:  model.DirectionInbound,
		FromNumber: "919900112233",
		ToNumber:   "911234567890",
		Type:       "text",
		Content:    "hi",
		Status:     model.MessageStatusReceived,
		Timestamp:  time.Now(),
	}
	if err := repo.Upsert(ctx, msg); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}

	// Matches either side of the exchange.
	for _, phone := range []string{"919900112233", "911234567890"} {
		if has, err := repo.HasConversationWith(ctx, phone); err != nil || !has {
			t.Errorf("HasConversationWith(%q) = %v, %v; want true, nil", phone, has, err)
		}
	}
}

func TestUpdateStatusWritesWholePair(t *testing.T) {
	repo := NewMessageRepository(newTestDB(t))
	ctx := context.Background()
	ts := time.Now().Truncate(time.Second)

	msg := &model.Message{
		MessageID: "wamid.A",
		Direction: model.DirectionOutbound,
		ToNumber:  "919900112233",
		Type:      "text",
		Content:   "welcome",
		Status:    model.MessageStatusSent,
		Timestamp: ts,
	}
	if err := repo.Upsert(ctx, msg); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}

	newTS := ts.Add(time.Minute)
	if err := repo.UpdateStatus(ctx, "wamid.A", model.MessageStatusRead, newTS); err != nil {
		t.Fatalf("UpdateStatus() error = %v", err)
	}

	got, _ := repo.GetByMessageID(ctx, "wamid.A")
	if got.Status != model.MessageStatusRead {
		t.Errorf("status = %q, want read", got.Status)
	}
	if !got.Timestamp.Equal(newTS) {
		t.Errorf("timestamp = %v, want %v", got.Timestamp, newTS)
	}
	if got.Content != "welcome" {
		t.Errorf("content = %q, status update must not touch content", got.Content)
	}
}
